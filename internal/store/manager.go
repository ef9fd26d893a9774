package store

import (
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"stock-signal-sentry/pkg/types"
)

// Manager 数据库管理器
type Manager struct {
	db *gorm.DB
}

// BarRecord 日线行情库表模型
type BarRecord struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Name          string    `gorm:"type:varchar(32);not null;uniqueIndex:uk_bar_key" json:"name"`
	Market        string    `gorm:"type:varchar(16);not null;uniqueIndex:uk_bar_key;index:idx_bar_market_date" json:"market"`
	Date          time.Time `gorm:"type:date;not null;uniqueIndex:uk_bar_key;index:idx_bar_market_date" json:"date"`
	Open          float64   `gorm:"type:decimal(20,4);not null" json:"open"`
	High          float64   `gorm:"type:decimal(20,4);not null" json:"high"`
	Low           float64   `gorm:"type:decimal(20,4);not null" json:"low"`
	Close         float64   `gorm:"type:decimal(20,4);not null" json:"close"`
	PreviousClose float64   `gorm:"type:decimal(20,4)" json:"previous_close"`
	ChangePct     *float64  `gorm:"type:decimal(10,4)" json:"change_pct"`
	Volume        int64     `gorm:"not null" json:"volume"`
	Trades        int64     `gorm:"not null" json:"trades"`
	Value         float64   `gorm:"type:decimal(20,2)" json:"value"`
	Sector        *string   `gorm:"type:varchar(64)" json:"sector"`
	SubSector     *string   `gorm:"type:varchar(64)" json:"sub_sector"`
	CreatedAt     time.Time `json:"created_at"`
}

func (BarRecord) TableName() string { return "bars" }

// SignalRecord 信号库表模型
type SignalRecord struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	Name            string    `gorm:"type:varchar(32);not null;uniqueIndex:uk_signal_key" json:"name"`
	Market          string    `gorm:"type:varchar(16);not null;uniqueIndex:uk_signal_key;index:idx_signal_market_date" json:"market"`
	Date            time.Time `gorm:"type:date;not null;uniqueIndex:uk_signal_key;index:idx_signal_market_date" json:"date"`
	Signal          string    `gorm:"type:varchar(64);not null" json:"signal"`
	ConfidenceScore int       `gorm:"not null" json:"confidence_score"`
	Volume          int64     `json:"volume"`
	Trades          *int64    `json:"trades"`
	Value           *float64  `gorm:"type:decimal(20,2)" json:"value"`
	Close           float64   `gorm:"type:decimal(20,4)" json:"close"`
	Change          float64   `gorm:"type:decimal(10,4)" json:"change"`
	Action          string    `gorm:"type:varchar(16)" json:"action"`
	BuyRange        string    `gorm:"type:varchar(64)" json:"buy_range"`
	Explanation     string    `gorm:"type:text" json:"explanation"`
	LimitStreak     int       `gorm:"default:0" json:"limit_streak"`
	SignalTier      *string   `gorm:"type:varchar(16)" json:"signal_tier"`
	CreatedAt       time.Time `json:"created_at"`
}

func (SignalRecord) TableName() string { return "signals" }

// SignalMemoryRecord 信号记忆库表模型，每只股票一行
type SignalMemoryRecord struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Name       string    `gorm:"type:varchar(32);not null;uniqueIndex:uk_memory_key" json:"name"`
	Market     string    `gorm:"type:varchar(16);not null;uniqueIndex:uk_memory_key" json:"market"`
	LastSignal string    `gorm:"type:varchar(64)" json:"last_signal"`
	LastAction string    `gorm:"type:varchar(16)" json:"last_action"`
	LastClose  float64   `gorm:"type:decimal(20,4)" json:"last_close"`
	LastHigh5  float64   `gorm:"type:decimal(20,4)" json:"last_high5"`
	Date       time.Time `gorm:"type:date" json:"date"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (SignalMemoryRecord) TableName() string { return "signal_memory" }

// NewManager 按配置打开数据库，默认本地SQLite文件
func NewManager(cfg types.DatabaseConfig) (*Manager, error) {
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent), // 生产环境使用Silent
	}

	var (
		db  *gorm.DB
		err error
	)

	switch cfg.Driver {
	case "mysql":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			cfg.MySQL.Username,
			cfg.MySQL.Password,
			cfg.MySQL.Host,
			cfg.MySQL.Port,
			cfg.MySQL.Database,
		)
		db, err = gorm.Open(mysql.Open(dsn), gormConfig)
		if err != nil {
			return nil, fmt.Errorf("连接MySQL失败: %v", err)
		}

		sqlDB, derr := db.DB()
		if derr != nil {
			return nil, fmt.Errorf("获取数据库实例失败: %v", derr)
		}
		sqlDB.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
		sqlDB.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
		sqlDB.SetConnMaxLifetime(time.Hour)
	default:
		db, err = gorm.Open(sqlite.Open(cfg.SQLite.Path), gormConfig)
		if err != nil {
			return nil, fmt.Errorf("打开SQLite失败: %v", err)
		}
	}

	manager := &Manager{db: db}

	// 自动迁移表结构
	if err := manager.AutoMigrate(); err != nil {
		return nil, fmt.Errorf("数据库迁移失败: %v", err)
	}

	zap.L().Info("✅ 数据库连接成功", zap.String("driver", cfg.Driver))

	return manager, nil
}

var memoryDBSeq int64

// NewMemoryManager 打开独立的内存SQLite库，测试用
func NewMemoryManager() (*Manager, error) {
	seq := atomic.AddInt64(&memoryDBSeq, 1)
	return NewManager(types.DatabaseConfig{
		Driver: "sqlite",
		SQLite: types.SQLiteConfig{
			Path: fmt.Sprintf("file:memdb%d?mode=memory&cache=shared", seq),
		},
	})
}

// AutoMigrate 自动迁移表结构
func (m *Manager) AutoMigrate() error {
	return m.db.AutoMigrate(
		&BarRecord{},
		&SignalRecord{},
		&SignalMemoryRecord{},
	)
}

// Close 关闭数据库连接
func (m *Manager) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Health 检查数据库连接健康状态
func (m *Manager) Health() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// normalizeDate 统一截断到日期，保证 (name, date) 主键语义
func normalizeDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
