package analyzer

import (
	"strings"
	"testing"

	"stock-signal-sentry/pkg/types"
)

// computableFeat 可分类的空白特征行，测试里按需填字段
func computableFeat() *FeatureRow {
	return &FeatureRow{Computable: true}
}

func TestNotComputableYieldsNoSignal(t *testing.T) {
	c := NewClassifier(ngxProfile())
	bar := flatBar("ABC", 5, 1000, 100)

	if sig := c.Classify(bar, &FeatureRow{}, nil); sig != nil {
		t.Fatal("不可计算的特征行不应产出信号")
	}
	if sig := c.Classify(bar, nil, nil); sig != nil {
		t.Fatal("缺失特征行不应产出信号")
	}
}

func TestBelowWatchlistYieldsNoSignal(t *testing.T) {
	c := NewClassifier(ngxProfile())
	bar := flatBar("ABC", 5, 1000, 100)
	feat := computableFeat()
	feat.AvgVolume5 = 1000
	feat.AvgTrades5 = 100

	if sig := c.Classify(bar, feat, nil); sig != nil {
		t.Fatalf("零分日线不应产出信号, got %q", sig.Signal)
	}
}

func TestScoreClampedAt100(t *testing.T) {
	// 价涨+放量+低笔数+大额+3连板，原始分140，钳位到100
	c := NewClassifier(ngxProfile())
	bar := flatBar("ABC", 5, 2000, 50)
	bar.Close = 110.1
	bar.High = 111
	bar.Value = 60_000_000
	feat := computableFeat()
	feat.AvgVolume5 = 1000
	feat.AvgTrades5 = 100
	feat.LimitStreak = 3

	sig := c.Classify(bar, feat, nil)
	if sig == nil {
		t.Fatal("期望产出信号")
	}
	if sig.ConfidenceScore != 100 {
		t.Errorf("置信度 = %d, 期望钳位到100", sig.ConfidenceScore)
	}
	if sig.Signal != SignalLimitUpBreak {
		t.Errorf("信号 = %q, 期望 %q", sig.Signal, SignalLimitUpBreak)
	}
	if sig.Action != types.ActionBuyConfirmed {
		t.Errorf("动作 = %q, 期望 %q", sig.Action, types.ActionBuyConfirmed)
	}
	if sig.SignalTier != types.TierConfirmed {
		t.Errorf("档位 = %q, 期望 %q", sig.SignalTier, types.TierConfirmed)
	}
	if sig.BuyRange != "₦100.00 – ₦110.10" {
		t.Errorf("买入区间 = %q", sig.BuyRange)
	}
	if !strings.Contains(sig.Explanation, "3 consecutive day(s)") {
		t.Errorf("解释缺少连板描述: %q", sig.Explanation)
	}
}

func TestLimitStreakTiers(t *testing.T) {
	cases := []struct {
		streak int
		signal string
		action string
	}{
		{1, SignalLimitUpWatch, types.ActionWatch},
		{2, SignalLimitUpAccum, types.ActionBuySmall},
		{3, SignalLimitUpBreak, types.ActionBuyConfirmed},
		{5, SignalLimitUpBreak, types.ActionBuyConfirmed},
	}

	c := NewClassifier(ngxProfile())
	for _, tc := range cases {
		bar := flatBar("ABC", 5, 1000, 100)
		feat := computableFeat()
		feat.LimitStreak = tc.streak

		sig := c.Classify(bar, feat, nil)
		if sig == nil {
			t.Fatalf("streak=%d 期望产出信号", tc.streak)
		}
		if sig.Signal != tc.signal || sig.Action != tc.action {
			t.Errorf("streak=%d: got (%q, %q), want (%q, %q)",
				tc.streak, sig.Signal, sig.Action, tc.signal, tc.action)
		}
		if sig.LimitStreak != tc.streak {
			t.Errorf("streak=%d: 信号连板数 = %d", tc.streak, sig.LimitStreak)
		}
	}
}

func TestBuyRangeOnlyForBuyActions(t *testing.T) {
	c := NewClassifier(ngxProfile())

	// WATCH 动作不给买入区间
	bar := flatBar("ABC", 5, 1000, 100)
	feat := computableFeat()
	feat.LimitStreak = 1
	sig := c.Classify(bar, feat, nil)
	if sig == nil {
		t.Fatal("期望产出信号")
	}
	if sig.Action != types.ActionWatch {
		t.Fatalf("动作 = %q, 期望 WATCH", sig.Action)
	}
	if sig.BuyRange != types.NoBuyRange {
		t.Errorf("WATCH 动作的买入区间 = %q, 期望占位符", sig.BuyRange)
	}

	// BUY SMALL 也算买入动作
	feat.LimitStreak = 2
	sig = c.Classify(bar, feat, nil)
	if sig == nil || sig.Action != types.ActionBuySmall {
		t.Fatal("期望 BUY SMALL 信号")
	}
	if sig.BuyRange == types.NoBuyRange {
		t.Error("BUY SMALL 应当给出买入区间")
	}
}

func TestDistributionComposite(t *testing.T) {
	// 价跌+放量+高笔数：出货形态，直接给SELL
	c := NewClassifier(ngxProfile())
	bar := flatBar("ABC", 5, 2000, 250)
	bar.Open = 110
	bar.High = 111
	bar.Close = 100
	feat := computableFeat()
	feat.AvgVolume5 = 1000
	feat.AvgTrades5 = 100

	sig := c.Classify(bar, feat, nil)
	if sig == nil {
		t.Fatal("期望产出信号")
	}
	if sig.Signal != SignalDistribution {
		t.Errorf("信号 = %q, 期望 %q", sig.Signal, SignalDistribution)
	}
	if sig.Action != types.ActionSell {
		t.Errorf("动作 = %q, 期望 %q", sig.Action, types.ActionSell)
	}
	if sig.BuyRange != types.NoBuyRange {
		t.Errorf("卖出信号不应有买入区间, got %q", sig.BuyRange)
	}
}

func TestRetestBonus(t *testing.T) {
	// 价涨+放量+大额 = 70分；回踩上次收盘价 +5 → 75 进确认档
	c := NewClassifier(ngxProfile())
	bar := flatBar("ABC", 5, 2000, 100)
	bar.Close = 101
	bar.Value = 60_000_000
	feat := computableFeat()
	feat.AvgVolume5 = 1000
	feat.AvgTrades5 = 100

	mem := &types.SignalMemory{
		Name:       "ABC",
		Market:     "ngx",
		LastAction: types.ActionWatch,
		LastClose:  100,
	}

	sig := c.Classify(bar, feat, mem)
	if sig == nil {
		t.Fatal("期望产出信号")
	}
	if sig.ConfidenceScore != 75 {
		t.Errorf("置信度 = %d, 期望 75", sig.ConfidenceScore)
	}
	if sig.SignalTier != types.TierConfirmed {
		t.Errorf("档位 = %q, 期望 %q", sig.SignalTier, types.TierConfirmed)
	}

	// 没有记忆时同样的日线只有70分，落在进阶档
	noMem := c.Classify(bar, feat, nil)
	if noMem == nil || noMem.ConfidenceScore != 70 {
		t.Fatalf("无记忆时期望70分, got %+v", noMem)
	}
	if noMem.SignalTier != types.TierSetup {
		t.Errorf("无记忆档位 = %q, 期望 %q", noMem.SignalTier, types.TierSetup)
	}
}

func TestWeakeningOverridesToExit(t *testing.T) {
	// 上次BUY这次只够WATCH，强制离场
	c := NewClassifier(ngxProfile())
	bar := flatBar("ABC", 5, 2000, 100)
	bar.Close = 110
	bar.High = 111
	bar.Value = 60_000_000
	feat := computableFeat()
	feat.AvgVolume5 = 1000
	feat.AvgTrades5 = 100

	mem := &types.SignalMemory{
		Name:       "ABC",
		Market:     "ngx",
		LastAction: types.ActionBuy,
	}

	sig := c.Classify(bar, feat, mem)
	if sig == nil {
		t.Fatal("期望产出信号")
	}
	if sig.Signal != SignalExit || sig.Action != types.ActionExit {
		t.Errorf("got (%q, %q), want (%q, %q)",
			sig.Signal, sig.Action, SignalExit, types.ActionExit)
	}
	if !strings.Contains(sig.Explanation, "false positive") {
		t.Errorf("解释缺少衰减描述: %q", sig.Explanation)
	}
}

func TestTierLabelMonotonic(t *testing.T) {
	c := NewClassifier(ngxProfile())
	order := map[string]int{
		types.TierNone:      0,
		types.TierWatchlist: 1,
		types.TierSetup:     2,
		types.TierConfirmed: 3,
	}

	prev := -1
	for score := 0; score <= 100; score++ {
		rank, ok := order[c.tierLabel(score)]
		if !ok {
			t.Fatalf("score=%d 返回未知档位 %q", score, c.tierLabel(score))
		}
		if rank < prev {
			t.Fatalf("score=%d 档位回退", score)
		}
		prev = rank
	}

	if c.tierLabel(39) != types.TierNone {
		t.Error("39分应低于观察档")
	}
	if c.tierLabel(40) != types.TierWatchlist {
		t.Error("40分应进观察档")
	}
	if c.tierLabel(75) != types.TierConfirmed {
		t.Error("75分应进确认档")
	}
}

func TestFormatReasonsFallback(t *testing.T) {
	// 未知规则原样拼接兜底
	got := FormatReasons([]string{"Strong Candle", "High Value"}, 0)
	if got != "Strong Candle, High Value" {
		t.Errorf("兜底拼接 = %q", got)
	}

	got = FormatReasons([]string{"Limit-Up Streak: 2 day(s)", "Volume Spike"}, 2)
	if !strings.Contains(got, "2 consecutive day(s)") || !strings.Contains(got, "volume surged") {
		t.Errorf("组合解释 = %q", got)
	}
}
