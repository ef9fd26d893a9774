package analyzer

import (
	"fmt"
	"strings"
)

// 触发规则到完整句子的映射，按固定顺序检查，每类只取首个命中
type reasonRule struct {
	match    func(reasons []string) bool
	sentence func(streak int) string
}

var reasonRules = []reasonRule{
	{
		match: func(rs []string) bool { return hasPrefix(rs, "Limit-Up Streak") },
		sentence: func(streak int) string {
			return fmt.Sprintf("The stock has hit its daily limit for %d consecutive day(s).", streak)
		},
	},
	{
		match:    func(rs []string) bool { return has(rs, "Volume Spike") },
		sentence: func(int) string { return "Today's volume surged above normal levels." },
	},
	{
		match:    func(rs []string) bool { return has(rs, "Weak Candle") && has(rs, "Volume Spike") },
		sentence: func(int) string { return "Big volume but small price move – accumulation in progress." },
	},
	{
		match:    func(rs []string) bool { return has(rs, "Price Up") && has(rs, "Volume Spike") },
		sentence: func(int) string { return "Strong bullish move with high demand." },
	},
	{
		match:    func(rs []string) bool { return has(rs, "Low Trade Count") },
		sentence: func(int) string { return "Few trades moved heavy volume – likely institutional blocks." },
	},
	{
		match:    func(rs []string) bool { return has(rs, "High Trade Count") },
		sentence: func(int) string { return "Unusually many small trades – retail crowd piling in." },
	},
	{
		match:    func(rs []string) bool { return has(rs, "Price Down") },
		sentence: func(int) string { return "Price declined – caution or exit may be needed." },
	},
	{
		match:    func(rs []string) bool { return has(rs, "15-Day Volume Uptrend") },
		sentence: func(int) string { return "Sustained 15-day volume uptrend. Strong interest building." },
	},
	{
		match:    func(rs []string) bool { return has(rs, "10 of 30 Days Institutional Pattern") },
		sentence: func(int) string { return "Institutional accumulation footprint seen 10+ times in last 30 days." },
	},
	{
		match:    func(rs []string) bool { return hasPrefix(rs, "Stealth Accumulation") },
		sentence: func(int) string { return "Volume rising steadily, but price stayed flat – signs of smart entry." },
	},
	{
		match:    func(rs []string) bool { return has(rs, "Retesting key level") },
		sentence: func(int) string { return "Price is retesting a previously flagged level." },
	},
	{
		match:    func(rs []string) bool { return has(rs, "Signal weakening") },
		sentence: func(int) string { return "Several weak alerts without follow-through. Likely false positive." },
	},
}

// FormatReasons 把触发规则串成人话；没有任何命中时原样拼接兜底
func FormatReasons(reasons []string, streak int) string {
	var parts []string
	for _, rule := range reasonRules {
		if rule.match(reasons) {
			parts = append(parts, rule.sentence(streak))
		}
	}
	if len(parts) == 0 {
		return strings.Join(reasons, ", ")
	}
	return strings.Join(parts, " ")
}

func has(reasons []string, token string) bool {
	for _, r := range reasons {
		if r == token {
			return true
		}
	}
	return false
}

func hasPrefix(reasons []string, prefix string) bool {
	for _, r := range reasons {
		if strings.HasPrefix(r, prefix) {
			return true
		}
	}
	return false
}
