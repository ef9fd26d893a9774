package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"stock-signal-sentry/internal/analyzer"
	"stock-signal-sentry/internal/ingest"
	"stock-signal-sentry/internal/memory"
	"stock-signal-sentry/internal/notifier"
	"stock-signal-sentry/internal/scheduler"
	"stock-signal-sentry/internal/server"
	"stock-signal-sentry/internal/store"
	"stock-signal-sentry/pkg/types"
)

// App 应用程序管理器
type App struct {
	config   *types.Config
	store    *store.Manager
	state    *memory.StateManager
	notify   notifier.Interface
	engines  map[string]*analyzer.Engine
	fetchers map[string]*ingest.EODFetcher
	streams  map[string]*ingest.StreamClient
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewApp 创建应用程序实例，初始化各模块
func NewApp(config *types.Config) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())

	st, err := store.NewManager(config.Database)
	if err != nil {
		cancel()
		return nil, err
	}

	state := memory.NewStateManager(config.Redis)
	notify := notifier.New(config.DingTalk, config.PushPlus)

	engines := make(map[string]*analyzer.Engine)
	fetchers := make(map[string]*ingest.EODFetcher)
	streams := make(map[string]*ingest.StreamClient)
	for _, mc := range config.Markets {
		if !mc.Enabled {
			continue
		}
		profile := types.ProfileFor(mc)
		engines[mc.Name] = analyzer.NewEngine(profile, st, state, notify)
		fetchers[mc.Name] = ingest.NewEODFetcher(mc.Name, mc.Source, config.Network)
		if mc.Source.StreamURL != "" && len(mc.Source.Symbols) > 0 {
			streams[mc.Name] = ingest.NewStreamClient(mc.Source.StreamURL, config.Network.Proxy, mc.Source.Symbols)
		}
	}

	return &App{
		config:   config,
		store:    st,
		state:    state,
		notify:   notify,
		engines:  engines,
		fetchers: fetchers,
		streams:  streams,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// markets 取本次要处理的市场列表，market为空表示全部启用市场
func (app *App) markets(market string) []string {
	if market != "" {
		if _, ok := app.engines[market]; ok {
			return []string{market}
		}
		return nil
	}
	names := make([]string, 0, len(app.engines))
	for _, mc := range app.config.Markets {
		if mc.Enabled {
			names = append(names, mc.Name)
		}
	}
	return names
}

// RunOnce 对最新交易日跑一遍分类
func (app *App) RunOnce(market string) error {
	for _, name := range app.markets(market) {
		count, err := app.engines[name].RunLatest(app.ctx)
		if err != nil {
			return fmt.Errorf("市场 %s 分析失败: %v", name, err)
		}
		fmt.Printf("✅ %s: %d signals written\n", name, count)
	}
	return nil
}

// RunBackfill 全量重建信号历史
func (app *App) RunBackfill(market string) error {
	for _, name := range app.markets(market) {
		count, failures, err := app.engines[name].Backfill(app.ctx)
		if err != nil {
			return fmt.Errorf("市场 %s 回补失败: %v", name, err)
		}
		fmt.Printf("✅ %s: %d signals written, %d days skipped\n", name, count, len(failures))
		for _, f := range failures {
			fmt.Printf("   ⚠️ %s [%s] %s\n", f.Date.Format("2006-01-02"), f.Stage, f.Message)
		}
	}
	return nil
}

// RunIngest 拉取最新行情并落库，附带维护任务
func (app *App) RunIngest(market string) error {
	for _, name := range app.markets(market) {
		bars, err := app.fetchers[name].FetchLatest(app.ctx)
		if err != nil {
			// 接口挂了就退回盘中推送聚合出的临时日线
			stream := app.streams[name]
			if stream == nil {
				return fmt.Errorf("市场 %s 行情拉取失败: %v", name, err)
			}
			bars = stream.ProvisionalBars(name)
			if len(bars) == 0 {
				return fmt.Errorf("市场 %s 行情拉取失败且无盘中数据: %v", name, err)
			}
			zap.L().Warn("⚠️ 行情接口失败，使用盘中聚合数据",
				zap.String("market", name), zap.Int("bars", len(bars)))
		}
		if err := app.store.SaveBars(bars); err != nil {
			return fmt.Errorf("市场 %s 行情落库失败: %v", name, err)
		}
		if _, err := app.store.CorrectClosePrices(name); err != nil {
			zap.L().Warn("⚠️ 收盘价回填失败", zap.String("market", name), zap.Error(err))
		}
		if _, err := app.store.DeduplicateBars(name); err != nil {
			zap.L().Warn("⚠️ 行情去重失败", zap.String("market", name), zap.Error(err))
		}
		fmt.Printf("✅ %s: %d bars ingested\n", name, len(bars))
	}
	return nil
}

// RunDaemon 常驻模式：每日收盘调度 + 查询API
func (app *App) RunDaemon() error {
	zap.L().Info("🚀 Stock Signal Sentry 启动中...")

	// 配了推送源的市场盘中持续聚合，EOD接口失败时兜底
	for name, stream := range app.streams {
		if err := stream.Connect(); err != nil {
			zap.L().Warn("⚠️ 行情推送连接失败，稍后自动重连",
				zap.String("market", name), zap.Error(err))
		} else if err := stream.Subscribe(); err != nil {
			zap.L().Warn("⚠️ 行情推送订阅失败",
				zap.String("market", name), zap.Error(err))
		}
		stream.StartReading()
	}

	// 每个市场一个每日任务：先拉行情再跑分析
	var jobs []scheduler.Job
	for _, mc := range app.config.Markets {
		if !mc.Enabled {
			continue
		}
		name := mc.Name
		jobs = append(jobs, scheduler.Job{
			Market:    name,
			CloseTime: mc.CloseTime,
			Timezone:  mc.Timezone,
			Run: func(ctx context.Context) error {
				if err := app.RunIngest(name); err != nil {
					zap.L().Warn("⚠️ 行情拉取失败，继续用已有数据分析",
						zap.String("market", name), zap.Error(err))
				}
				_, err := app.engines[name].RunLatest(ctx)
				return err
			},
		})
	}

	sched := scheduler.NewScheduler(jobs)
	app.wg.Add(1)
	go func() {
		defer app.wg.Done()
		sched.Start(app.ctx)
	}()

	var srv *server.Server
	if app.config.Server.Enabled {
		srv = server.NewServer(app.store, app.config.Server.Addr, app.collectStats)
		app.wg.Add(1)
		go func() {
			defer app.wg.Done()
			if err := srv.Start(); err != nil {
				zap.L().Error("❌ 查询API异常退出", zap.Error(err))
			}
		}()
	}

	zap.L().Info("✅ Stock Signal Sentry 已启动")

	// 等待中断信号
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	zap.L().Info("🛑 收到停止信号，正在优雅关闭...")
	app.cancel()

	if srv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			zap.L().Warn("⚠️ 查询API关闭失败", zap.Error(err))
		}
	}

	// 等待所有goroutine结束，最多等待30秒
	done := make(chan struct{})
	go func() {
		app.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		zap.L().Info("✅ Stock Signal Sentry 已安全关闭")
	case <-time.After(30 * time.Second):
		zap.L().Warn("⚠️ 强制关闭超时")
	}

	return nil
}

// Close 释放资源
func (app *App) Close() {
	app.cancel()
	for name, stream := range app.streams {
		if err := stream.Close(); err != nil {
			zap.L().Warn("⚠️ 关闭行情推送失败", zap.String("market", name), zap.Error(err))
		}
	}
	if err := app.store.Close(); err != nil {
		zap.L().Warn("⚠️ 关闭数据库失败", zap.Error(err))
	}
}

func (app *App) collectStats() []analyzer.Stats {
	stats := make([]analyzer.Stats, 0, len(app.engines))
	for _, name := range app.markets("") {
		stats = append(stats, app.engines[name].Stats())
	}
	return stats
}
