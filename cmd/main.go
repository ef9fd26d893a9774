package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"stock-signal-sentry/pkg/config"
	"stock-signal-sentry/pkg/logger"
)

func main() {
	mode := flag.String("mode", "run", "运行模式: run(最新交易日) / backfill(全量回补) / ingest(拉取行情) / daemon(常驻)")
	market := flag.String("market", "", "只处理指定市场，留空处理全部启用市场")
	flag.Parse()

	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("加载配置失败:", err)
	}

	// 初始化日志
	zapLogger, err := logger.Init(cfg.Log)
	if err != nil {
		log.Fatal("初始化日志失败:", err)
	}
	defer zapLogger.Sync()

	app, err := NewApp(cfg)
	if err != nil {
		log.Fatal("初始化失败:", err)
	}
	defer app.Close()

	switch *mode {
	case "run":
		err = app.RunOnce(*market)
	case "backfill":
		err = app.RunBackfill(*market)
	case "ingest":
		err = app.RunIngest(*market)
	case "daemon":
		err = app.RunDaemon()
	default:
		fmt.Fprintf(os.Stderr, "未知模式: %s\n", *mode)
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}
