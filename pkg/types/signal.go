package types

import "time"

// 动作建议取值
const (
	ActionBuy          = "BUY"
	ActionBuySmall     = "BUY SMALL"
	ActionBuyConfirmed = "BUY CONFIRMED"
	ActionWatch        = "WATCH"
	ActionAvoid        = "AVOID"
	ActionSell         = "SELL / AVOID"
	ActionExit         = "EXIT"
)

// 信号档位标签
const (
	TierConfirmed = "confirmed"
	TierSetup     = "setup"
	TierWatchlist = "watchlist"
	TierNone      = "none"
)

// NoBuyRange 非买入动作的区间占位符
const NoBuyRange = "—"

// Signal 分类器对单个 (股票, 交易日) 的输出
type Signal struct {
	Name            string    `json:"name"`
	Market          string    `json:"market"`
	Date            time.Time `json:"date"`
	Signal          string    `json:"signal"`
	ConfidenceScore int       `json:"confidence_score"` // 0~100
	Volume          int64     `json:"volume"`
	Trades          int64     `json:"trades"`
	Value           float64   `json:"value"`
	Close           float64   `json:"close"`
	Change          float64   `json:"change"`
	Action          string    `json:"action"`
	BuyRange        string    `json:"buy_range"`
	Explanation     string    `json:"explanation"`
	LimitStreak     int       `json:"limit_streak"`
	SignalTier      string    `json:"signal_tier"`
}

// SignalMemory 单只股票最近一次落库信号的记忆，分类器做回踩/衰减判断用
type SignalMemory struct {
	Name       string    `json:"name"`
	Market     string    `json:"market"`
	LastSignal string    `json:"last_signal"`
	LastAction string    `json:"last_action"`
	LastClose  float64   `json:"last_close"`
	LastHigh5  float64   `json:"last_high5"`
	Date       time.Time `json:"date"`
}

// SignalDigest 单个市场单日信号摘要，推送通知用
type SignalDigest struct {
	Market      string    `json:"market"`
	Date        time.Time `json:"date"`
	Signals     []*Signal `json:"signals"`
	GeneratedAt time.Time `json:"generated_at"`
}
