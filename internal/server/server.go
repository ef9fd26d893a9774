package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"stock-signal-sentry/internal/analyzer"
	"stock-signal-sentry/internal/store"
)

// Server 只读查询API，看板从这里取信号
type Server struct {
	echo    *echo.Echo
	store   *store.Manager
	statsFn func() []analyzer.Stats
	addr    string
}

// NewServer 创建查询服务
func NewServer(st *store.Manager, addr string, statsFn func() []analyzer.Stats) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	s := &Server{
		echo:    e,
		store:   st,
		statsFn: statsFn,
		addr:    addr,
	}

	api := e.Group("/api")
	api.GET("/signals", s.getSignals)
	api.GET("/stats", s.getStats)
	api.GET("/health", s.getHealth)

	return s
}

// Start 启动HTTP服务，阻塞
func (s *Server) Start() error {
	zap.L().Info("🚀 查询API启动", zap.String("addr", s.addr))
	if err := s.echo.Start(s.addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown 优雅关闭
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// getSignals 信号查询，支持市场/日期区间/股票/信号/动作/最低置信度过滤
func (s *Server) getSignals(c echo.Context) error {
	filter := store.SignalFilter{
		Market: c.QueryParam("market"),
		Name:   c.QueryParam("name"),
		Signal: c.QueryParam("signal"),
		Action: c.QueryParam("action"),
	}

	if v := c.QueryParam("from"); v != "" {
		from, err := time.Parse("2006-01-02", v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "from 日期格式应为 2006-01-02")
		}
		filter.From = from
	}
	if v := c.QueryParam("to"); v != "" {
		to, err := time.Parse("2006-01-02", v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "to 日期格式应为 2006-01-02")
		}
		filter.To = to
	}
	if v := c.QueryParam("min_score"); v != "" {
		minScore, err := strconv.Atoi(v)
		if err != nil || minScore < 0 || minScore > 100 {
			return echo.NewHTTPError(http.StatusBadRequest, "min_score 应为 0~100 的整数")
		}
		filter.MinScore = minScore
	}
	if v := c.QueryParam("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit 应为非负整数")
		}
		filter.Limit = limit
	}

	signals, err := s.store.QuerySignals(filter)
	if err != nil {
		zap.L().Error("❌ 信号查询失败", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "查询失败")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"count":   len(signals),
		"signals": signals,
	})
}

func (s *Server) getStats(c echo.Context) error {
	if s.statsFn == nil {
		return c.JSON(http.StatusOK, []analyzer.Stats{})
	}
	return c.JSON(http.StatusOK, s.statsFn())
}

func (s *Server) getHealth(c echo.Context) error {
	if err := s.store.Health(); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "down",
			"error":  err.Error(),
		})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
