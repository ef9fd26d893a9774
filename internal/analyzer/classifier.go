package analyzer

import (
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"stock-signal-sentry/pkg/types"
)

// 信号标签取值
const (
	SignalLimitUpWatch  = "Limit-Up Watch"
	SignalLimitUpAccum  = "Limit-Up Accumulation"
	SignalLimitUpBreak  = "Limit-Up Breakout"
	SignalInstitutional = "Institutional Accumulation"
	SignalRetailFrenzy  = "Retail Buying Frenzy"
	SignalDistribution  = "Distribution Exit"
	SignalSetup         = "Setup Detected"
	SignalWatchlist     = "Watchlist Setup"
	SignalExit          = "Exit"
)

// Classifier 打分分类器：一套规则引擎吃不同市场的参数档位
type Classifier struct {
	profile types.MarketProfile
}

// NewClassifier 创建分类器
func NewClassifier(profile types.MarketProfile) *Classifier {
	return &Classifier{profile: profile}
}

// Classify 对单根带特征的日线打分，返回信号或nil。
// 纯函数：只依赖 (日线, 滚动特征, 上次信号记忆)，无时钟无IO。
// 规则有优先级，后面的阶段可以覆盖前面的结论
func (c *Classifier) Classify(bar *types.Bar, feat *FeatureRow, mem *types.SignalMemory) *types.Signal {
	if feat == nil || !feat.Computable {
		return nil
	}

	w := c.profile.Weights
	score := 0
	var reasons []string
	var signal, action string

	// === 阶段1：基础加分 ===
	priceUp := bar.Close > bar.Open
	priceDown := bar.Close < bar.Open
	if priceUp {
		score += w.PriceUp
		reasons = append(reasons, "Price Up")
	} else if priceDown {
		score += w.PriceDown
		reasons = append(reasons, "Price Down")
	}

	volumeSpike := feat.AvgVolume5 > 0 && float64(bar.Volume) > 1.5*feat.AvgVolume5
	if volumeSpike {
		score += w.VolumeSpike
		reasons = append(reasons, "Volume Spike")
	} else if feat.AvgVolume5 > 0 && float64(bar.Volume) < 0.5*feat.AvgVolume5 {
		score += w.QuietVolume
	}

	// K线实体占比，极小振幅加epsilon防除零
	if w.StrongCandle != 0 || w.WeakCandle != 0 {
		body := math.Abs(bar.Close - bar.Open)
		candleRange := bar.High - bar.Low + 1e-6
		bodyStrength := body / candleRange
		if bodyStrength > 0.6 {
			score += w.StrongCandle
			reasons = append(reasons, "Strong Candle")
		} else if bodyStrength < 0.3 {
			score += w.WeakCandle
			reasons = append(reasons, "Weak Candle")
		}
	}

	lowTrades := feat.AvgTrades5 > 0 && float64(bar.Trades) < feat.AvgTrades5
	highTrades := feat.AvgTrades5 > 0 && float64(bar.Trades) > 2*feat.AvgTrades5
	if lowTrades {
		score += w.LowTrades
		reasons = append(reasons, "Low Trade Count")
	} else if highTrades {
		score += w.HighTrades
		reasons = append(reasons, "High Trade Count")
	}

	if bar.Value > c.profile.HighValue {
		score += w.HighValue
		reasons = append(reasons, "High Value")
	}

	// === 阶段2：组合形态，按固定优先级只认首个命中 ===
	switch {
	case priceUp && volumeSpike && lowTrades:
		signal, action = SignalInstitutional, types.ActionBuy
		score += w.Combo
	case priceUp && highTrades:
		signal, action = SignalRetailFrenzy, types.ActionAvoid
		score += w.Combo
	case priceDown && volumeSpike && highTrades:
		signal, action = SignalDistribution, types.ActionSell
		score += w.Combo
	}

	// === 阶段3：趋势加成 ===
	if feat.VolumeUptrend {
		score += w.VolumeUptrend
		reasons = append(reasons, "15-Day Volume Uptrend")
	}
	if feat.FootprintDefined && feat.FootprintCount >= 10 {
		score += w.Footprint
		reasons = append(reasons, "10 of 30 Days Institutional Pattern")
	}
	if feat.StealthAccum {
		score += w.Stealth
		reasons = append(reasons, "Stealth Accumulation (Volume Up, Price Flat)")
	}

	// === 阶段4：涨停连板覆盖，优先级最高 ===
	streak := feat.LimitStreak
	if streak >= 1 {
		score += w.StreakBonus
		reasons = append(reasons, fmt.Sprintf("Limit-Up Streak: %d day(s)", streak))
		switch {
		case streak == 1:
			signal, action = SignalLimitUpWatch, types.ActionWatch
		case streak == 2:
			signal, action = SignalLimitUpAccum, types.ActionBuySmall
		default:
			signal, action = SignalLimitUpBreak, types.ActionBuyConfirmed
		}
	}

	// === 阶段5：记忆调整（回踩关键价位） ===
	if mem != nil && mem.LastClose > 0 &&
		math.Abs(bar.Close-mem.LastClose) <= 0.02*mem.LastClose {
		score += w.Retest
		reasons = append(reasons, "Retesting key level")
	}

	// === 阶段6：钳位与档位 ===
	clamped := clampScore(score)
	if signal == "" {
		switch {
		case clamped >= c.profile.Tiers.Confirmed:
			signal, action = SignalInstitutional, types.ActionBuy
		case clamped >= c.profile.Tiers.Setup:
			signal, action = SignalSetup, types.ActionWatch
		case clamped >= c.profile.Tiers.Watchlist:
			signal, action = SignalWatchlist, types.ActionWatch
		default:
			// 低于最低档，不出信号
			return nil
		}
	}

	// 记忆衰减：上次还是BUY，这次只剩WATCH，强制离场
	if mem != nil && mem.LastAction == types.ActionBuy && action == types.ActionWatch {
		signal, action = SignalExit, types.ActionExit
		reasons = append(reasons, "Signal weakening")
	}

	// === 阶段7：组装输出 ===
	out := &types.Signal{
		Name:            bar.Name,
		Market:          bar.Market,
		Date:            bar.Date,
		Signal:          signal,
		ConfidenceScore: clamped,
		Volume:          bar.Volume,
		Trades:          bar.Trades,
		Value:           bar.Value,
		Close:           bar.Close,
		Change:          math.Round(bar.Change()*100) / 100,
		Action:          action,
		BuyRange:        c.buyRange(bar, action),
		Explanation:     FormatReasons(reasons, streak),
		LimitStreak:     streak,
		SignalTier:      c.tierLabel(clamped),
	}

	zap.L().Debug("🎯 产出信号",
		zap.String("name", bar.Name),
		zap.String("signal", signal),
		zap.String("action", action),
		zap.Int("score", clamped),
		zap.Int("streak", streak))

	return out
}

// buyRange 买入区间 [min(open,close), max(open,close)]，非买入动作给占位符
func (c *Classifier) buyRange(bar *types.Bar, action string) string {
	if !strings.Contains(action, "BUY") {
		return types.NoBuyRange
	}
	low := math.Min(bar.Open, bar.Close)
	high := math.Max(bar.Open, bar.Close)
	return fmt.Sprintf("%s%.2f – %s%.2f", c.profile.Currency, low, c.profile.Currency, high)
}

func (c *Classifier) tierLabel(score int) string {
	switch {
	case score >= c.profile.Tiers.Confirmed:
		return types.TierConfirmed
	case score >= c.profile.Tiers.Setup:
		return types.TierSetup
	case score >= c.profile.Tiers.Watchlist:
		return types.TierWatchlist
	default:
		return types.TierNone
	}
}

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
