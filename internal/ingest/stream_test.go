package ingest

import (
	"reflect"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"stock-signal-sentry/pkg/types"
)

func TestConnectDoesNotMutateDefaultDialer(t *testing.T) {
	before := reflect.ValueOf(websocket.DefaultDialer.Proxy).Pointer()

	// 不可达端点，连接必然失败，但不能把代理写进全局Dialer
	c := NewStreamClient("ws://127.0.0.1:1", "http://127.0.0.1:7890", []string{"ABC"})
	if err := c.Connect(); err == nil {
		c.Close()
		t.Fatal("连接不可达端点不应成功")
	}

	after := reflect.ValueOf(websocket.DefaultDialer.Proxy).Pointer()
	if before != after {
		t.Fatal("Connect 改写了全局DefaultDialer的代理配置")
	}
}

func TestApplyTickAggregation(t *testing.T) {
	c := NewStreamClient("ws://example.invalid", "", nil)
	day := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)

	c.applyTick(types.QuoteTick{Symbol: "ABC", Price: 100, Volume: 10, Timestamp: day})
	c.applyTick(types.QuoteTick{Symbol: "ABC", Price: 105, Volume: 5, Timestamp: day.Add(time.Minute)})
	c.applyTick(types.QuoteTick{Symbol: "ABC", Price: 98, Volume: 20, Timestamp: day.Add(2 * time.Minute)})

	bars := c.ProvisionalBars("ngx")
	if len(bars) != 1 {
		t.Fatalf("聚合日线条数 = %d, 期望 1", len(bars))
	}
	b := bars[0]
	if b.Open != 100 || b.High != 105 || b.Low != 98 || b.Close != 98 {
		t.Errorf("OHLC = %v/%v/%v/%v", b.Open, b.High, b.Low, b.Close)
	}
	if b.Volume != 35 || b.Trades != 3 {
		t.Errorf("量/笔数 = %d/%d, 期望 35/3", b.Volume, b.Trades)
	}
	if b.Market != "ngx" {
		t.Errorf("市场 = %q", b.Market)
	}

	// 跨日丢弃前一日聚合
	c.applyTick(types.QuoteTick{Symbol: "ABC", Price: 99, Volume: 1, Timestamp: day.AddDate(0, 0, 1)})
	bars = c.ProvisionalBars("ngx")
	if len(bars) != 1 || bars[0].Volume != 1 {
		t.Fatalf("跨日后聚合结果异常: %+v", bars)
	}
}
