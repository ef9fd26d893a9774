package analyzer

import (
	"math"
	"testing"
	"time"

	"stock-signal-sentry/pkg/types"
)

func ngxProfile() types.MarketProfile {
	return types.DefaultProfiles()["ngx"]
}

func tradingDay(offset int) time.Time {
	return time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC).AddDate(0, 0, offset)
}

// flatBar 无涨跌的基准日线
func flatBar(name string, day int, volume, trades int64) *types.Bar {
	return &types.Bar{
		Name:          name,
		Market:        "ngx",
		Date:          tradingDay(day),
		Open:          100,
		High:          101,
		Low:           99,
		Close:         100,
		PreviousClose: 100,
		Volume:        volume,
		Trades:        trades,
		Value:         100_000,
	}
}

func TestLimitStreakSequence(t *testing.T) {
	// 涨幅序列 10.1%、10.0%、3%、9.9%、10.5%，阈值9.9%
	closes := []float64{110.1, 110.0, 103.0, 109.9, 110.5}
	want := []int{1, 2, 0, 1, 2}

	bars := make([]*types.Bar, 0, len(closes))
	for i, c := range closes {
		b := flatBar("ABC", i, 1000, 100)
		b.Close = c
		b.High = c + 1
		bars = append(bars, b)
	}

	feats := BuildFeatures(bars, ngxProfile())
	if len(feats) != len(bars) {
		t.Fatalf("特征行数 = %d, 期望 %d", len(feats), len(bars))
	}
	for i, f := range feats {
		if f.LimitStreak != want[i] {
			t.Errorf("第%d日连板数 = %d, 期望 %d", i, f.LimitStreak, want[i])
		}
	}
}

func TestLimitStreakJustBelowThreshold(t *testing.T) {
	// 9.85% 四舍五入后仍不达标，不计连板
	b := flatBar("ABC", 0, 1000, 100)
	b.Close = 109.85

	feats := BuildFeatures([]*types.Bar{b}, ngxProfile())
	if feats[0].LimitStreak != 0 {
		t.Fatalf("9.85%%涨幅不应计入连板, got %d", feats[0].LimitStreak)
	}
}

func TestShortHistoryNotComputable(t *testing.T) {
	// 只有3根日线，短窗口要5根，任何一行都不可分类
	bars := []*types.Bar{
		flatBar("XYZ", 0, 1000, 100),
		flatBar("XYZ", 1, 1000, 100),
		flatBar("XYZ", 2, 1000, 100),
	}

	feats := BuildFeatures(bars, ngxProfile())
	for i, f := range feats {
		if f.Computable {
			t.Errorf("第%d日历史不足却被标记为可计算", i)
		}
	}
}

func TestShortWindowAverages(t *testing.T) {
	bars := make([]*types.Bar, 0, 6)
	for i := 0; i < 6; i++ {
		bars = append(bars, flatBar("ABC", i, int64(1000+i*100), int64(100+i*10)))
	}

	feats := BuildFeatures(bars, ngxProfile())
	last := feats[5]
	if !last.Computable {
		t.Fatal("6根日线的末行应当可计算")
	}
	// 末行窗口为第2~6根：均量 (1100+...+1500)/5
	if got, want := last.AvgVolume5, 1300.0; math.Abs(got-want) > 1e-9 {
		t.Errorf("5日均量 = %v, 期望 %v", got, want)
	}
	if got, want := last.AvgTrades5, 130.0; math.Abs(got-want) > 1e-9 {
		t.Errorf("5日均笔数 = %v, 期望 %v", got, want)
	}
}

func TestStealthAccumulation(t *testing.T) {
	// 15日量增40%而价格走平：隐形吸筹
	bars := make([]*types.Bar, 0, 16)
	for i := 0; i < 16; i++ {
		bars = append(bars, flatBar("ABC", i, 1000, 100))
	}
	bars[15].Volume = 1400

	feats := BuildFeatures(bars, ngxProfile())
	last := feats[15]
	if !last.StealthAccum {
		t.Fatal("量增价平应当触发隐形吸筹")
	}
	if !last.VolumeUptrend {
		t.Fatal("末日放量后15日均量应高于5天前")
	}
}

func TestStealthRequiresFlatPrice(t *testing.T) {
	// 量增但价格同步上涨超过5%，不算隐形吸筹
	bars := make([]*types.Bar, 0, 16)
	for i := 0; i < 16; i++ {
		bars = append(bars, flatBar("ABC", i, 1000, 100))
	}
	bars[15].Volume = 1400
	bars[15].Close = 108

	feats := BuildFeatures(bars, ngxProfile())
	if feats[15].StealthAccum {
		t.Fatal("价格大涨时不应触发隐形吸筹")
	}
}

func TestFootprintCount(t *testing.T) {
	// 成交量单调递增，第2根起每天都超过自身5日均量
	bars := make([]*types.Bar, 0, 12)
	for i := 0; i < 12; i++ {
		bars = append(bars, flatBar("ABC", i, int64(1000+i*500), 100))
	}

	feats := BuildFeatures(bars, ngxProfile())
	last := feats[11]
	if !last.FootprintDefined {
		t.Fatal("12根日线应当满足足迹计数的最少样本数")
	}
	if last.FootprintCount != 11 {
		t.Errorf("机构足迹计数 = %d, 期望 11", last.FootprintCount)
	}

	// 样本不足10根时足迹未定义
	if feats[8].FootprintDefined {
		t.Error("第9日样本不足，足迹不应有定义")
	}
}

func TestValidateBar(t *testing.T) {
	good := flatBar("ABC", 0, 1000, 100)
	if err := ValidateBar(good); err != nil {
		t.Fatalf("合法日线不应报错: %v", err)
	}

	negVol := flatBar("ABC", 0, -1, 100)
	if err := ValidateBar(negVol); err == nil {
		t.Error("负成交量应当报错")
	}

	inverted := flatBar("ABC", 0, 1000, 100)
	inverted.High = 90
	if err := ValidateBar(inverted); err == nil {
		t.Error("最高价低于最低价应当报错")
	}

	zeroClose := flatBar("ABC", 0, 1000, 100)
	zeroClose.Close = 0
	if err := ValidateBar(zeroClose); err == nil {
		t.Error("收盘价为零应当报错")
	}
}
