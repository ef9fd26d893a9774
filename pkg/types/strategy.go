package types

// ScoreWeights 各规则的加分权重，正负皆可
type ScoreWeights struct {
	PriceUp       int `mapstructure:"price_up"`
	PriceDown     int `mapstructure:"price_down"`
	VolumeSpike   int `mapstructure:"volume_spike"` // 成交量 > 1.5×5日均量
	QuietVolume   int `mapstructure:"quiet_volume"` // 成交量 < 0.5×5日均量
	StrongCandle  int `mapstructure:"strong_candle"`
	WeakCandle    int `mapstructure:"weak_candle"`
	LowTrades     int `mapstructure:"low_trades"`  // 笔数低于均值，疑似机构静默吸筹
	HighTrades    int `mapstructure:"high_trades"` // 笔数超过2倍均值，散户狂热
	HighValue     int `mapstructure:"high_value"`
	Combo         int `mapstructure:"combo"`          // 组合形态附加分
	VolumeUptrend int `mapstructure:"volume_uptrend"` // 15日量能上行
	Footprint     int `mapstructure:"footprint"`      // 30日内机构足迹≥10次
	Stealth       int `mapstructure:"stealth"`        // 隐形吸筹
	Retest        int `mapstructure:"retest"`         // 回踩关键价位
	StreakBonus   int `mapstructure:"streak_bonus"`   // 涨停连板附加分
}

// TierThresholds 档位阈值，从低到高；低于 Watchlist 不出信号
type TierThresholds struct {
	Watchlist int `mapstructure:"watchlist"`
	Setup     int `mapstructure:"setup"`
	Confirmed int `mapstructure:"confirmed"`
}

// MarketProfile 单个市场的完整打分参数：一套引擎，多份配置
type MarketProfile struct {
	Market   string
	Currency string

	ShortWindow         int // 短期动量窗口，默认5
	TrendWindow         int // 趋势确认窗口，默认15
	FootprintWindow     int // 机构足迹窗口，默认30
	TrendMinPeriods     int // 趋势特征最少样本数
	FootprintMinPeriods int // 足迹计数最少样本数

	LimitThreshold float64 // 涨停阈值（百分比），如 9.9
	HighValue      float64 // 大额成交金额阈值

	Weights ScoreWeights
	Tiers   TierThresholds
}

// DefaultProfiles 内置市场档位。阈值差异沿用各市场原始校准，未做统一。
func DefaultProfiles() map[string]MarketProfile {
	base := MarketProfile{
		ShortWindow:         5,
		TrendWindow:         15,
		FootprintWindow:     30,
		TrendMinPeriods:     5,
		FootprintMinPeriods: 10,
	}

	ngx := base
	ngx.Market = "ngx"
	ngx.Currency = "₦"
	ngx.LimitThreshold = 9.9
	ngx.HighValue = 50_000_000
	ngx.Weights = ScoreWeights{
		PriceUp: 20, PriceDown: 20,
		VolumeSpike: 30,
		LowTrades:   30, HighTrades: 30,
		HighValue:     20,
		VolumeUptrend: 10, Footprint: 15, Stealth: 15,
		Retest:      5,
		StreakBonus: 40,
	}
	ngx.Tiers = TierThresholds{Watchlist: 40, Setup: 60, Confirmed: 75}

	se := base
	se.Market = "stockholm"
	se.Currency = "kr"
	se.LimitThreshold = 4.0
	se.HighValue = 5_000_000
	se.Weights = ScoreWeights{
		PriceUp: 15, PriceDown: -5,
		VolumeSpike: 15, QuietVolume: -10,
		StrongCandle: 15, WeakCandle: -5,
		LowTrades: 10, HighTrades: 10,
		HighValue: 10, Combo: 15,
		VolumeUptrend: 10, Footprint: 15, Stealth: 20,
		Retest:      5,
		StreakBonus: 40,
	}
	se.Tiers = TierThresholds{Watchlist: 50, Setup: 65, Confirmed: 80}

	us := base
	us.Market = "us"
	us.Currency = "$"
	us.LimitThreshold = 7.0
	us.HighValue = 1_000_000
	us.Weights = ScoreWeights{
		PriceUp: 10, PriceDown: -5,
		VolumeSpike: 15, QuietVolume: -10,
		StrongCandle: 8, WeakCandle: -5,
		LowTrades: 20, HighTrades: 20,
		HighValue: 20, Combo: 15,
		VolumeUptrend: 10, Footprint: 15, Stealth: 25,
		Retest:      5,
		StreakBonus: 25,
	}
	us.Tiers = TierThresholds{Watchlist: 35, Setup: 55, Confirmed: 70}

	return map[string]MarketProfile{
		ngx.Market: ngx,
		se.Market:  se,
		us.Market:  us,
	}
}

// ProfileFor 取市场档位并套用配置覆盖；未知市场落到NGX参数
func ProfileFor(mc MarketConfig) MarketProfile {
	profiles := DefaultProfiles()
	p, ok := profiles[mc.Name]
	if !ok {
		p = profiles["ngx"]
		p.Market = mc.Name
	}
	if mc.Currency != "" {
		p.Currency = mc.Currency
	}
	if mc.LimitThreshold > 0 {
		p.LimitThreshold = mc.LimitThreshold
	}
	if mc.HighValue > 0 {
		p.HighValue = mc.HighValue
	}
	if mc.Tiers.Watchlist > 0 {
		p.Tiers = mc.Tiers
	}
	return p
}
