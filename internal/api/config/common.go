package config

import "time"

// Config 配置主体
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	DB        DBConfig        `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Logstash  LogstashConfig  `mapstructure:"logstash"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Security  SecurityConfig  `mapstructure:"security"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Refresh   RefreshConfig   `mapstructure:"refresh"`
	Analytics AnalyticsConfig `mapstructure:"analytics"`
}

// ServerConfig Server配置
type ServerConfig struct {
	Port        int      `mapstructure:"port"`
	CronSecret  string   `mapstructure:"cron_secret"`
	JWTSecret   string   `mapstructure:"jwt_secret"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// DBConfig 数据库配置
type DBConfig struct {
	DSN         string `mapstructure:"dsn"`
	MaxIdle     int    `mapstructure:"max_idle"`
	MaxOpen     int    `mapstructure:"max_open"`
	MaxLifetime int    `mapstructure:"max_lifetime"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type LogstashConfig struct {
	Address string `mapstructure:"address"`
	Index   string `mapstructure:"index"`
	Token   string `mapstructure:"token"`
}

type KafkaConfig struct {
	Enable        bool       `mapstructure:"enable"`
	Brokers       []string   `mapstructure:"brokers"`
	Sasl          SaslConfig `mapstructure:"sasl"`
	SnapshotTopic string     `mapstructure:"snapshot_topic"`
}

type SaslConfig struct {
	Enable   bool   `mapstructure:"enable"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// SecurityConfig 凭据解密密钥，base64 编码的 32 字节
type SecurityConfig struct {
	CredentialKey string `mapstructure:"credential_key"`
}

// ProvidersConfig 第三方数据源配置
type ProvidersConfig struct {
	Primary     ProviderEndpoint  `mapstructure:"primary"`
	Scraper     ScraperConfig     `mapstructure:"scraper"`
	Syndication SyndicationConfig `mapstructure:"syndication"`
	UserAgent   string            `mapstructure:"user_agent"`
}

type ProviderEndpoint struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
	RPS     float64       `mapstructure:"rps"`
}

type ScraperConfig struct {
	ProviderEndpoint `mapstructure:",squash"`
	ActorID          string        `mapstructure:"actor_id"`
	PollAttempts     int           `mapstructure:"poll_attempts"`
	PollInterval     time.Duration `mapstructure:"poll_interval"`
}

type SyndicationConfig struct {
	ProviderEndpoint `mapstructure:",squash"`
	ProfileBaseURL   string `mapstructure:"profile_base_url"`
}

// RefreshConfig 刷新冷却与批处理节奏
type RefreshConfig struct {
	InteractiveCooldown time.Duration `mapstructure:"interactive_cooldown"`
	ProfileCooldown     time.Duration `mapstructure:"profile_cooldown"`
	BatchCooldown       time.Duration `mapstructure:"batch_cooldown"`
	BatchGroupSize      int           `mapstructure:"batch_group_size"`
	BatchGroupPause     time.Duration `mapstructure:"batch_group_pause"`
	BatchErrorSamples   int           `mapstructure:"batch_error_samples"`
	Schedule            string        `mapstructure:"schedule"`
	LockTTL             time.Duration `mapstructure:"lock_ttl"`
}

type AnalyticsConfig struct {
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}
