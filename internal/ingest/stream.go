package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"stock-signal-sentry/pkg/types"
)

// StreamClient 盘中逐笔推送客户端：把WebSocket逐笔成交
// 聚合成当日的临时日线，收盘后由EOD数据覆盖
type StreamClient struct {
	endpoint string
	proxy    string
	symbols  []string

	conn        *websocket.Conn
	mu          sync.RWMutex
	isConnected bool

	bars     map[string]*types.Bar // 当日聚合中的临时日线
	barsMu   sync.RWMutex
	tradeDay time.Time

	ctx    context.Context
	cancel context.CancelFunc
}

// streamMessage 推送消息格式：{"type":"trade","data":[{"s":...,"p":...,"v":...,"t":...}]}
type streamMessage struct {
	Type string `json:"type"`
	Data []struct {
		Symbol    string  `json:"s"`
		Price     float64 `json:"p"`
		Volume    int64   `json:"v"`
		Timestamp int64   `json:"t"` // 毫秒
	} `json:"data"`
}

type streamSubscription struct {
	Type   string `json:"type"`
	Symbol string `json:"symbol"`
}

// NewStreamClient 创建推送客户端
func NewStreamClient(endpoint, proxy string, symbols []string) *StreamClient {
	ctx, cancel := context.WithCancel(context.Background())
	return &StreamClient{
		endpoint: endpoint,
		proxy:    proxy,
		symbols:  symbols,
		bars:     make(map[string]*types.Bar),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Connect 建立WebSocket连接
func (c *StreamClient) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	// 拷贝一份再改，避免污染全局DefaultDialer
	dialer := *websocket.DefaultDialer
	if c.proxy != "" {
		proxyURL, err := url.Parse(c.proxy)
		if err != nil {
			return fmt.Errorf("解析代理URL失败: %v", err)
		}
		dialer.Proxy = http.ProxyURL(proxyURL)
	}

	conn, _, err := dialer.Dial(c.endpoint, nil)
	if err != nil {
		return fmt.Errorf("WebSocket连接失败: %v", err)
	}

	c.conn = conn
	c.isConnected = true

	zap.L().Info("✅ 行情推送连接建立成功", zap.String("endpoint", c.endpoint))

	return nil
}

// Subscribe 订阅逐笔成交
func (c *StreamClient) Subscribe() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.isConnected || c.conn == nil {
		return fmt.Errorf("WebSocket未连接")
	}

	for _, symbol := range c.symbols {
		sub := streamSubscription{Type: "subscribe", Symbol: symbol}
		if err := c.conn.WriteJSON(sub); err != nil {
			return fmt.Errorf("订阅 %s 失败: %v", symbol, err)
		}
	}

	zap.L().Info("✅ 已订阅逐笔行情", zap.Int("symbols", len(c.symbols)))
	return nil
}

// StartReading 启动读取协程，断线按固定间隔重连
func (c *StreamClient) StartReading() {
	go func() {
		for {
			select {
			case <-c.ctx.Done():
				return
			default:
			}

			c.mu.RLock()
			conn := c.conn
			connected := c.isConnected
			c.mu.RUnlock()

			if !connected || conn == nil {
				time.Sleep(5 * time.Second)
				c.reconnect()
				continue
			}

			_, data, err := conn.ReadMessage()
			if err != nil {
				zap.L().Warn("⚠️ 读取推送失败，准备重连", zap.Error(err))
				c.mu.Lock()
				c.isConnected = false
				c.mu.Unlock()
				continue
			}

			var msg streamMessage
			if err := json.Unmarshal(data, &msg); err != nil || msg.Type != "trade" {
				continue
			}

			for _, t := range msg.Data {
				c.applyTick(types.QuoteTick{
					Symbol:    t.Symbol,
					Price:     t.Price,
					Volume:    t.Volume,
					Timestamp: time.UnixMilli(t.Timestamp),
				})
			}
		}
	}()
}

// applyTick 单笔成交并入当日临时日线
func (c *StreamClient) applyTick(tick types.QuoteTick) {
	c.barsMu.Lock()
	defer c.barsMu.Unlock()

	day := time.Date(tick.Timestamp.Year(), tick.Timestamp.Month(), tick.Timestamp.Day(), 0, 0, 0, 0, time.UTC)
	if !day.Equal(c.tradeDay) {
		// 跨日，丢弃前一日的聚合结果
		c.bars = make(map[string]*types.Bar)
		c.tradeDay = day
	}

	bar, ok := c.bars[tick.Symbol]
	if !ok {
		c.bars[tick.Symbol] = &types.Bar{
			Name:   tick.Symbol,
			Date:   day,
			Open:   tick.Price,
			High:   tick.Price,
			Low:    tick.Price,
			Close:  tick.Price,
			Volume: tick.Volume,
			Trades: 1,
			Value:  tick.Price * float64(tick.Volume),
		}
		return
	}

	if tick.Price > bar.High {
		bar.High = tick.Price
	}
	if tick.Price < bar.Low {
		bar.Low = tick.Price
	}
	bar.Close = tick.Price
	bar.Volume += tick.Volume
	bar.Trades++
	bar.Value += tick.Price * float64(tick.Volume)
}

// ProvisionalBars 当日聚合出的临时日线快照
func (c *StreamClient) ProvisionalBars(market string) []*types.Bar {
	c.barsMu.RLock()
	defer c.barsMu.RUnlock()

	out := make([]*types.Bar, 0, len(c.bars))
	for _, bar := range c.bars {
		snapshot := *bar
		snapshot.Market = market
		out = append(out, &snapshot)
	}
	return out
}

func (c *StreamClient) reconnect() {
	if err := c.Connect(); err != nil {
		zap.L().Warn("⚠️ 重连失败", zap.Error(err))
		return
	}
	if err := c.Subscribe(); err != nil {
		zap.L().Warn("⚠️ 重新订阅失败", zap.Error(err))
	}
}

// Close 关闭连接
func (c *StreamClient) Close() error {
	c.cancel()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		c.isConnected = false
		return c.conn.Close()
	}
	return nil
}
