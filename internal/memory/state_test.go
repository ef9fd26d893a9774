package memory

import (
	"testing"
	"time"

	"stock-signal-sentry/pkg/types"
)

func mkMemory(market, name, action string) *types.SignalMemory {
	return &types.SignalMemory{
		Name:       name,
		Market:     market,
		LastSignal: "Watchlist Setup",
		LastAction: action,
		LastClose:  100,
		Date:       time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
	}
}

func TestStateManagerMemoryMode(t *testing.T) {
	// 不配Redis，纯内存模式
	sm := NewStateManager(types.RedisConfig{})

	if got := sm.Get("ngx", "ABC"); got != nil {
		t.Fatalf("空缓存应返回nil, got %+v", got)
	}

	sm.Put(mkMemory("ngx", "ABC", types.ActionWatch))
	got := sm.Get("ngx", "ABC")
	if got == nil || got.LastAction != types.ActionWatch {
		t.Fatalf("写入后读取失败: %+v", got)
	}

	// 同键覆盖
	sm.Put(mkMemory("ngx", "ABC", types.ActionBuy))
	if got := sm.Get("ngx", "ABC"); got.LastAction != types.ActionBuy {
		t.Errorf("覆盖后动作 = %q", got.LastAction)
	}
	if sm.Count("ngx") != 1 {
		t.Errorf("记忆条数 = %d, 期望 1", sm.Count("ngx"))
	}

	// 市场之间互不可见
	if got := sm.Get("us", "ABC"); got != nil {
		t.Errorf("跨市场不应读到记忆: %+v", got)
	}
}

func TestHydrateReplacesBucket(t *testing.T) {
	sm := NewStateManager(types.RedisConfig{})
	sm.Put(mkMemory("ngx", "OLD", types.ActionWatch))

	sm.Hydrate("ngx", map[string]*types.SignalMemory{
		"ABC": mkMemory("ngx", "ABC", types.ActionBuy),
		"DEF": mkMemory("ngx", "DEF", types.ActionWatch),
	})

	if sm.Get("ngx", "OLD") != nil {
		t.Error("整体灌入后旧记忆应被替换")
	}
	if sm.Count("ngx") != 2 {
		t.Errorf("灌入后条数 = %d, 期望 2", sm.Count("ngx"))
	}
	if got := sm.Get("ngx", "ABC"); got == nil || got.LastAction != types.ActionBuy {
		t.Errorf("灌入的记忆读取失败: %+v", got)
	}
}

func TestResetClearsMarketOnly(t *testing.T) {
	sm := NewStateManager(types.RedisConfig{})
	sm.Put(mkMemory("ngx", "ABC", types.ActionWatch))
	sm.Put(mkMemory("us", "AAPL", types.ActionBuy))

	sm.Reset("ngx")

	if sm.Count("ngx") != 0 {
		t.Errorf("清空后ngx条数 = %d", sm.Count("ngx"))
	}
	if sm.Count("us") != 1 {
		t.Errorf("其他市场被误清, us条数 = %d", sm.Count("us"))
	}
}
