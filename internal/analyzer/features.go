package analyzer

import (
	"fmt"
	"math"

	"stock-signal-sentry/pkg/types"
)

// FeatureRow 单根日线的滚动特征。Computable 为 false 表示
// 历史不足一个短窗口，该行不得进入分类
type FeatureRow struct {
	Computable bool

	AvgVolume5 float64
	AvgTrades5 float64
	High5      float64
	Low5       float64

	AvgVolume15   float64
	VolumeUptrend bool

	FootprintCount   int // 30日内成交量超过自身5日均量的天数
	FootprintDefined bool

	PriceChange15  float64
	VolumeChange15 float64
	StealthAccum   bool

	LimitStreak int // 涨停连板计数，当日不达标即归零
}

// BuildFeatures 对单只股票按日期升序的序列计算滚动特征，
// 与输入一一对应。窗口不足的长周期特征保持未定义状态
func BuildFeatures(bars []*types.Bar, p types.MarketProfile) []FeatureRow {
	n := len(bars)
	features := make([]FeatureRow, n)
	if n == 0 {
		return features
	}

	// 5日均量先全量算一遍（min_periods=1），机构足迹计数要用
	avgVol5Loose := make([]float64, n)
	for i := 0; i < n; i++ {
		start := i - p.ShortWindow + 1
		if start < 0 {
			start = 0
		}
		var sum float64
		for j := start; j <= i; j++ {
			sum += float64(bars[j].Volume)
		}
		avgVol5Loose[i] = sum / float64(i-start+1)
	}

	// 15日均量，样本不足 TrendMinPeriods 时记为 NaN
	avgVol15 := make([]float64, n)
	for i := 0; i < n; i++ {
		start := i - p.TrendWindow + 1
		if start < 0 {
			start = 0
		}
		count := i - start + 1
		if count < p.TrendMinPeriods {
			avgVol15[i] = math.NaN()
			continue
		}
		var sum float64
		for j := start; j <= i; j++ {
			sum += float64(bars[j].Volume)
		}
		avgVol15[i] = sum / float64(count)
	}

	streak := 0
	for i := 0; i < n; i++ {
		f := &features[i]
		b := bars[i]

		// 涨停连板：按4位小数取整后比较，9.9%恰好达标
		if b.PreviousClose > 0 && round4((b.Close-b.PreviousClose)/b.PreviousClose) >= p.LimitThreshold/100 {
			streak++
		} else {
			streak = 0
		}
		f.LimitStreak = streak

		// 短窗口特征：前 ShortWindow-1 行不可计算
		if i+1 < p.ShortWindow {
			continue
		}
		f.Computable = true

		start := i - p.ShortWindow + 1
		var volSum, tradeSum float64
		high := bars[start].High
		low := bars[start].Low
		for j := start; j <= i; j++ {
			volSum += float64(bars[j].Volume)
			tradeSum += float64(bars[j].Trades)
			if bars[j].High > high {
				high = bars[j].High
			}
			if bars[j].Low < low {
				low = bars[j].Low
			}
		}
		f.AvgVolume5 = volSum / float64(p.ShortWindow)
		f.AvgTrades5 = tradeSum / float64(p.ShortWindow)
		f.High5 = high
		f.Low5 = low

		// 15日量能上行：当前15日均量高于5天前的同口径均量
		if !math.IsNaN(avgVol15[i]) {
			f.AvgVolume15 = avgVol15[i]
			if i >= p.TrendMinPeriods && !math.IsNaN(avgVol15[i-p.TrendMinPeriods]) {
				f.VolumeUptrend = avgVol15[i] > avgVol15[i-p.TrendMinPeriods]
			}
		}

		// 机构足迹：30日窗口内成交量超过自身5日均量的天数
		if i+1 >= p.FootprintMinPeriods {
			f.FootprintDefined = true
			fpStart := i - p.FootprintWindow + 1
			if fpStart < 0 {
				fpStart = 0
			}
			for j := fpStart; j <= i; j++ {
				if float64(bars[j].Volume) > avgVol5Loose[j] {
					f.FootprintCount++
				}
			}
		}

		// 隐形吸筹：15日量增超30%而价格涨幅不足5%
		if i >= p.TrendWindow {
			prev := bars[i-p.TrendWindow]
			if prev.Close > 0 && prev.Volume > 0 {
				f.PriceChange15 = (b.Close - prev.Close) / prev.Close
				f.VolumeChange15 = (float64(b.Volume) - float64(prev.Volume)) / float64(prev.Volume)
				f.StealthAccum = f.VolumeChange15 > 0.3 && f.PriceChange15 < 0.05
			}
		}
	}

	return features
}

// ValidateBar 分类前的输入校验，坏行导致整个交易日跳过
func ValidateBar(b *types.Bar) error {
	if b.Volume < 0 || b.Trades < 0 {
		return fmt.Errorf("%s %s: 成交量或笔数为负", b.Name, b.Date.Format("2006-01-02"))
	}
	if b.High < b.Low {
		return fmt.Errorf("%s %s: 最高价低于最低价", b.Name, b.Date.Format("2006-01-02"))
	}
	if b.Close <= 0 || b.Open <= 0 {
		return fmt.Errorf("%s %s: 价格字段非法", b.Name, b.Date.Format("2006-01-02"))
	}
	return nil
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
