package types

import "time"

// Config 主配置结构
type Config struct {
	Log      LogConfig      `mapstructure:"log"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	DingTalk DingTalkConfig `mapstructure:"dingtalk"`
	PushPlus PushPlusConfig `mapstructure:"pushplus"`
	Server   ServerConfig   `mapstructure:"server"`
	Network  NetworkConfig  `mapstructure:"network"`
	Markets  []MarketConfig `mapstructure:"markets"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level"`       // 日志级别
	FilePath   string `mapstructure:"file_path"`   // 日志输出路径名
	MaxSize    int    `mapstructure:"max_size"`    // 日志文件大小 单位：MB，超限后会自动切割
	MaxAge     int    `mapstructure:"max_age"`     // 日志文件存放时间 单位：天
	MaxBackups int    `mapstructure:"max_backups"` // 日志文件备份数量
	Compress   bool   `mapstructure:"compress"`    // 日志文件压缩
}

// DatabaseConfig 数据库配置，driver 可选 sqlite / mysql
type DatabaseConfig struct {
	Driver string       `mapstructure:"driver"`
	SQLite SQLiteConfig `mapstructure:"sqlite"`
	MySQL  MySQLConfig  `mapstructure:"mysql"`
}

// SQLiteConfig SQLite配置（默认，本地文件库）
type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// MySQLConfig MySQL配置
type MySQLConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

// RedisConfig Redis配置（信号记忆缓存，可选）
type RedisConfig struct {
	URL      string `mapstructure:"url"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// DingTalkConfig 钉钉配置
type DingTalkConfig struct {
	WebhookURL string `mapstructure:"webhook_url"`
	Secret     string `mapstructure:"secret"`
}

// PushPlusConfig PushPlus配置
type PushPlusConfig struct {
	UserToken string `mapstructure:"user_token"`
	To        string `mapstructure:"to"` // 好友令牌，多人用逗号分隔
}

// ServerConfig 只读查询API配置
type ServerConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// NetworkConfig 网络配置
type NetworkConfig struct {
	Proxy   string        `mapstructure:"proxy"`   // HTTP代理地址，如 http://127.0.0.1:7890
	Timeout time.Duration `mapstructure:"timeout"` // 网络超时时间
}

// MarketConfig 单个市场的配置，覆盖内置档位
type MarketConfig struct {
	Name           string         `mapstructure:"name"`    // ngx / stockholm / us
	Enabled        bool           `mapstructure:"enabled"`
	Currency       string         `mapstructure:"currency"`
	CloseTime      string         `mapstructure:"close_time"` // 当地收盘时间，如 14:30
	Timezone       string         `mapstructure:"timezone"`
	LimitThreshold float64        `mapstructure:"limit_threshold"` // 涨停阈值（百分比）
	HighValue      float64        `mapstructure:"high_value"`      // 大额成交金额阈值
	Tiers          TierThresholds `mapstructure:"tiers"`
	Source         SourceConfig   `mapstructure:"source"`
}

// SourceConfig 行情数据源配置
type SourceConfig struct {
	EODURL    string   `mapstructure:"eod_url"`    // 日线行情接口
	StreamURL string   `mapstructure:"stream_url"` // 盘中逐笔推送，可为空
	Symbols   []string `mapstructure:"symbols"`
}
