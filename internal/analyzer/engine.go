package analyzer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"stock-signal-sentry/internal/memory"
	"stock-signal-sentry/internal/notifier"
	"stock-signal-sentry/internal/store"
	"stock-signal-sentry/pkg/types"
)

// Stats 引擎运行统计
type Stats struct {
	Market         string    `json:"market"`
	LastRun        time.Time `json:"last_run"`
	LastDate       time.Time `json:"last_date"`
	SignalsWritten int       `json:"signals_written"`
	DatesFailed    int       `json:"dates_failed"`
}

// Engine 单个市场的信号流水线：滚动特征 → 打分分类 → 幂等落库
type Engine struct {
	profile    types.MarketProfile
	classifier *Classifier
	store      *store.Manager
	state      *memory.StateManager
	notify     notifier.Interface
	now        func() time.Time // 可注入时钟，测试用

	statsMu sync.Mutex // 调度协程写、查询API读
	stats   Stats
}

// NewEngine 创建引擎
func NewEngine(profile types.MarketProfile, st *store.Manager, state *memory.StateManager, notify notifier.Interface) *Engine {
	return &Engine{
		profile:    profile,
		classifier: NewClassifier(profile),
		store:      st,
		state:      state,
		notify:     notify,
		now:        time.Now,
		stats:      Stats{Market: profile.Market},
	}
}

// SetClock 注入时钟
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// Stats 当前运行统计
func (e *Engine) Stats() Stats {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()
	return e.stats
}

// RunLatest 对最新交易日跑一遍分类并落库，返回写入信号数。
// 周末直接跳过，与交易日历对齐
func (e *Engine) RunLatest(ctx context.Context) (int, error) {
	if wd := e.now().Weekday(); wd == time.Saturday || wd == time.Sunday {
		zap.L().Info("🛑 周末休市，本次跳过", zap.String("market", e.profile.Market))
		return 0, nil
	}

	latest, err := e.store.LatestDate(e.profile.Market)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			zap.L().Warn("⚠️ 行情库为空，无法分析", zap.String("market", e.profile.Market))
			return 0, nil
		}
		return 0, fmt.Errorf("查询最新交易日失败: %v", err)
	}

	bars, err := e.store.GetBarsThrough(e.profile.Market, latest)
	if err != nil {
		return 0, fmt.Errorf("加载行情失败: %v", err)
	}

	// 记忆以库表为准，先整体灌入缓存
	memories, err := e.store.LoadMemories(e.profile.Market)
	if err != nil {
		return 0, fmt.Errorf("加载信号记忆失败: %v", err)
	}
	e.state.Hydrate(e.profile.Market, memories)

	groups, names := groupBars(bars)
	signals, updates, err := e.classifyDate(ctx, groups, names, latest)
	if err != nil {
		return 0, err
	}

	if err := e.store.ReplaceForDates(e.profile.Market, []time.Time{latest}, signals); err != nil {
		return 0, err
	}
	e.applyMemoryUpdates(updates)

	e.statsMu.Lock()
	e.stats.LastRun = e.now()
	e.stats.LastDate = latest
	e.stats.SignalsWritten = len(signals)
	e.statsMu.Unlock()

	zap.L().Info("✅ 当日分析完成",
		zap.String("market", e.profile.Market),
		zap.String("date", latest.Format("2006-01-02")),
		zap.Int("signals", len(signals)))

	e.sendDigest(latest, signals)

	return len(signals), nil
}

// Backfill 从头重建全部信号历史。交易日严格升序处理，
// 因为记忆规则依赖前一日已落库的结论；单日失败记录后继续
func (e *Engine) Backfill(ctx context.Context) (int, []types.DateError, error) {
	dates, err := e.store.DistinctDates(e.profile.Market)
	if err != nil {
		return 0, nil, fmt.Errorf("查询交易日失败: %v", err)
	}
	if len(dates) == 0 {
		return 0, nil, nil
	}

	zap.L().Info("🔁 开始全量回补",
		zap.String("market", e.profile.Market),
		zap.Int("days", len(dates)))

	// 全量重建前清掉旧信号与记忆
	if err := e.store.ResetSignals(e.profile.Market); err != nil {
		return 0, nil, fmt.Errorf("清空旧信号失败: %v", err)
	}
	e.state.Reset(e.profile.Market)

	bars, err := e.store.GetBarsThrough(e.profile.Market, dates[len(dates)-1])
	if err != nil {
		return 0, nil, fmt.Errorf("加载行情失败: %v", err)
	}
	groups, names := groupBars(bars)

	total := 0
	var failures []types.DateError

	for _, date := range dates {
		select {
		case <-ctx.Done():
			return total, failures, ctx.Err()
		default:
		}

		signals, updates, derr := e.classifyDate(ctx, groups, names, date)
		if derr != nil {
			failures = append(failures, types.DateError{
				Date:    date,
				Stage:   "features",
				Message: derr.Error(),
			})
			zap.L().Warn("❌ 单日回补失败，跳过",
				zap.String("date", date.Format("2006-01-02")),
				zap.Error(derr))
			continue
		}

		if err := e.store.ReplaceForDates(e.profile.Market, []time.Time{date}, signals); err != nil {
			failures = append(failures, types.DateError{
				Date:    date,
				Stage:   "persist",
				Message: err.Error(),
			})
			zap.L().Warn("❌ 单日落库失败，跳过",
				zap.String("date", date.Format("2006-01-02")),
				zap.Error(err))
			continue
		}

		e.applyMemoryUpdates(updates)
		total += len(signals)
	}

	e.statsMu.Lock()
	e.stats.LastRun = e.now()
	e.stats.LastDate = dates[len(dates)-1]
	e.stats.SignalsWritten = total
	e.stats.DatesFailed = len(failures)
	e.statsMu.Unlock()

	zap.L().Info("✅ 全量回补完成",
		zap.String("market", e.profile.Market),
		zap.Int("signals", total),
		zap.Int("failed_days", len(failures)))

	return total, failures, nil
}

// classifyDate 对指定交易日的全部股票打分。
// 任一坏行导致整个交易日报错，由调用方决定跳过还是中止
func (e *Engine) classifyDate(ctx context.Context, groups map[string][]*types.Bar, names []string, date time.Time) ([]*types.Signal, []*types.SignalMemory, error) {
	var signals []*types.Signal
	var updates []*types.SignalMemory

	for _, name := range names {
		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		default:
		}

		series := groups[name]
		prefix := barsThrough(series, date)
		if len(prefix) == 0 {
			continue
		}
		last := prefix[len(prefix)-1]
		if !last.Date.Equal(date) {
			continue // 当日停牌，无行情
		}

		if err := ValidateBar(last); err != nil {
			return nil, nil, err
		}

		feats := BuildFeatures(prefix, e.profile)
		feat := &feats[len(feats)-1]
		if !feat.Computable {
			continue // 历史不足一个短窗口
		}

		mem := e.state.Get(e.profile.Market, name)
		if mem != nil && !mem.Date.Before(date) {
			// 记忆只认严格早于当日的结论，当日重算不吃自己的输出
			mem = nil
		}
		sig := e.classifier.Classify(last, feat, mem)
		if sig == nil {
			continue
		}

		signals = append(signals, sig)
		updates = append(updates, &types.SignalMemory{
			Name:       name,
			Market:     e.profile.Market,
			LastSignal: sig.Signal,
			LastAction: sig.Action,
			LastClose:  last.Close,
			LastHigh5:  feat.High5,
			Date:       date,
		})
	}

	return signals, updates, nil
}

// applyMemoryUpdates 信号落库成功后才更新记忆，保持两边一致
func (e *Engine) applyMemoryUpdates(updates []*types.SignalMemory) {
	for _, mem := range updates {
		if err := e.store.SaveMemory(mem); err != nil {
			zap.L().Warn("⚠️ 信号记忆落库失败",
				zap.String("name", mem.Name),
				zap.Error(err))
			continue
		}
		e.state.Put(mem)
	}
}

func (e *Engine) sendDigest(date time.Time, signals []*types.Signal) {
	if e.notify == nil || len(signals) == 0 {
		return
	}
	digest := &types.SignalDigest{
		Market:      e.profile.Market,
		Date:        date,
		Signals:     signals,
		GeneratedAt: e.now(),
	}
	if err := e.notify.SendDigest(digest); err != nil {
		zap.L().Warn("❌ 日报推送失败", zap.Error(err))
	}
}

// groupBars 按股票分组，组内保持日期升序；名字排序保证遍历确定性
func groupBars(bars []*types.Bar) (map[string][]*types.Bar, []string) {
	groups := make(map[string][]*types.Bar)
	for _, b := range bars {
		groups[b.Name] = append(groups[b.Name], b)
	}
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return groups, names
}

func barsThrough(series []*types.Bar, date time.Time) []*types.Bar {
	// 序列升序，找到第一个晚于date的位置截断
	idx := sort.Search(len(series), func(i int) bool {
		return series[i].Date.After(date)
	})
	return series[:idx]
}
