package types

import "time"

// Bar 单只股票单个交易日的行情记录
type Bar struct {
	Name          string    `json:"name"`   // 股票代码，市场内唯一
	Market        string    `json:"market"` // ngx / stockholm / us
	Date          time.Time `json:"date"`   // 交易日，无时间部分
	Open          float64   `json:"open"`
	High          float64   `json:"high"`
	Low           float64   `json:"low"`
	Close         float64   `json:"close"`
	PreviousClose float64   `json:"previous_close"`
	ChangePct     float64   `json:"change_pct"` // 相对前收的涨跌幅（百分比）
	Volume        int64     `json:"volume"`
	Trades        int64     `json:"trades"`
	Value         float64   `json:"value"` // 成交金额
	Sector        string    `json:"sector,omitempty"`
	SubSector     string    `json:"sub_sector,omitempty"`
}

// Change 日内涨跌幅（百分比），previous_close 缺失时回退到已存的 change_pct
func (b *Bar) Change() float64 {
	if b.PreviousClose > 0 {
		return (b.Close - b.PreviousClose) / b.PreviousClose * 100
	}
	return b.ChangePct
}

// QuoteTick 盘中逐笔成交推送
type QuoteTick struct {
	Symbol    string    `json:"s"`
	Price     float64   `json:"p"`
	Volume    int64     `json:"v"`
	Timestamp time.Time `json:"t"`
}

// DateError 回补过程中单个交易日的失败记录
type DateError struct {
	Date    time.Time `json:"date"`
	Stage   string    `json:"stage"` // features / classify / persist
	Message string    `json:"message"`
}
