package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Job 每日收盘后要执行的任务
type Job struct {
	Market    string
	CloseTime string // 当地收盘时间 15:04 格式
	Timezone  string
	Run       func(ctx context.Context) error
}

// Scheduler 调度器：每个市场对齐到当地收盘时间后触发一次，周末跳过
type Scheduler struct {
	jobs  []Job
	delay time.Duration // 收盘后的缓冲时间，等交易所出齐数据
}

// NewScheduler 创建调度器
func NewScheduler(jobs []Job) *Scheduler {
	return &Scheduler{
		jobs:  jobs,
		delay: 30 * time.Minute,
	}
}

// Start 启动全部市场的调度循环，阻塞直到ctx取消
func (s *Scheduler) Start(ctx context.Context) {
	zap.L().Info("🚀 调度器启动中...", zap.Int("jobs", len(s.jobs)))

	done := make(chan struct{})
	for _, job := range s.jobs {
		go s.runLoop(ctx, job)
	}

	go func() {
		<-ctx.Done()
		close(done)
	}()
	<-done

	zap.L().Info("📴 调度器已停止")
}

func (s *Scheduler) runLoop(ctx context.Context, job Job) {
	for {
		next := s.nextRunTime(job)
		wait := time.Until(next)

		zap.L().Info("⏰ 下次分析时间",
			zap.String("market", job.Market),
			zap.String("at", next.Format("2006-01-02 15:04:05 MST")),
			zap.Duration("wait", wait))

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}

		zap.L().Info("📊 触发每日分析", zap.String("market", job.Market))
		if err := job.Run(ctx); err != nil {
			zap.L().Error("❌ 每日分析失败",
				zap.String("market", job.Market),
				zap.Error(err))
		}
	}
}

// nextRunTime 计算下一个运行时间点：收盘时间+缓冲，跳过周末
func (s *Scheduler) nextRunTime(job Job) time.Time {
	loc, err := time.LoadLocation(job.Timezone)
	if err != nil {
		loc = time.UTC
	}

	closeAt, err := time.Parse("15:04", job.CloseTime)
	if err != nil {
		closeAt, _ = time.Parse("15:04", "16:00")
	}

	now := time.Now().In(loc)
	next := time.Date(now.Year(), now.Month(), now.Day(),
		closeAt.Hour(), closeAt.Minute(), 0, 0, loc).Add(s.delay)

	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}

	// 跳到下一个交易日
	for next.Weekday() == time.Saturday || next.Weekday() == time.Sunday {
		next = next.AddDate(0, 0, 1)
	}

	return next
}
