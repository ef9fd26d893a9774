package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"stock-signal-sentry/pkg/types"
)

// EODFetcher 日线行情抓取器：从各市场的行情接口拉取收盘数据
type EODFetcher struct {
	market     string
	source     types.SourceConfig
	httpClient *http.Client
}

// eodRow 行情接口返回的单行数据
type eodRow struct {
	Name          string  `json:"name"`
	Date          string  `json:"date"` // 2006-01-02
	Open          float64 `json:"open"`
	High          float64 `json:"high"`
	Low           float64 `json:"low"`
	Close         float64 `json:"close"`
	PreviousClose float64 `json:"previous_close"`
	Volume        int64   `json:"volume"`
	Trades        int64   `json:"trades"`
	Value         float64 `json:"value"`
	Sector        string  `json:"sector"`
	SubSector     string  `json:"sub_sector"`
}

// NewEODFetcher 创建抓取器，支持代理与超时配置
func NewEODFetcher(market string, source types.SourceConfig, network types.NetworkConfig) *EODFetcher {
	timeout := network.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	httpClient := &http.Client{
		Timeout:   timeout,
		Transport: &http.Transport{},
	}

	if network.Proxy != "" {
		proxyURL, err := url.Parse(network.Proxy)
		if err == nil {
			httpClient.Transport.(*http.Transport).Proxy = http.ProxyURL(proxyURL)
			zap.L().Info("✅ 已配置HTTP代理", zap.String("proxy", network.Proxy))
		} else {
			zap.L().Warn("⚠️ 代理地址格式错误", zap.Error(err))
		}
	}

	return &EODFetcher{
		market:     market,
		source:     source,
		httpClient: httpClient,
	}
}

// FetchLatest 拉取最新一个交易日的全部行情
func (f *EODFetcher) FetchLatest(ctx context.Context) ([]*types.Bar, error) {
	if f.source.EODURL == "" {
		return nil, fmt.Errorf("市场 %s 未配置行情接口", f.market)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.source.EODURL, nil)
	if err != nil {
		return nil, fmt.Errorf("构建请求失败: %v", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("请求行情接口失败: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("行情接口返回异常状态: %d", resp.StatusCode)
	}

	var rows []eodRow
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("解析行情数据失败: %v", err)
	}

	bars := make([]*types.Bar, 0, len(rows))
	for _, row := range rows {
		bar, err := f.rowToBar(row)
		if err != nil {
			zap.L().Warn("⚠️ 跳过坏行", zap.String("name", row.Name), zap.Error(err))
			continue
		}
		bars = append(bars, bar)
	}

	zap.L().Info("✅ 日线行情拉取完成",
		zap.String("market", f.market),
		zap.Int("rows", len(bars)))

	return bars, nil
}

func (f *EODFetcher) rowToBar(row eodRow) (*types.Bar, error) {
	date, err := time.Parse("2006-01-02", row.Date)
	if err != nil {
		return nil, fmt.Errorf("日期格式非法: %q", row.Date)
	}

	bar := &types.Bar{
		Name:          row.Name,
		Market:        f.market,
		Date:          date,
		Open:          row.Open,
		High:          row.High,
		Low:           row.Low,
		Close:         row.Close,
		PreviousClose: row.PreviousClose,
		Volume:        row.Volume,
		Trades:        row.Trades,
		Value:         row.Value,
		Sector:        row.Sector,
		SubSector:     row.SubSector,
	}
	// 成交金额缺失时用收盘价×成交量近似
	if bar.Value == 0 && bar.Volume > 0 {
		bar.Value = bar.Close * float64(bar.Volume)
	}
	if bar.PreviousClose > 0 {
		bar.ChangePct = (bar.Close - bar.PreviousClose) / bar.PreviousClose * 100
	}
	return bar, nil
}
