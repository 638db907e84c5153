package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Cfg 全局可访问的配置实例
var Cfg *Config

// LoadConfig 从文件加载配置并填充到 Cfg
func LoadConfig() error {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.SetEnvPrefix("TRACKLIGHT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg, err := unmarshal(v)
	if err != nil {
		return err
	}
	if err = validate(cfg); err != nil {
		return err
	}

	Cfg = cfg

	return nil
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// placeholderSecret 示例配置里的占位值，不能直接用于签名
const placeholderSecret = "change-me"

// validate 启动前检查必须由部署方提供的配置
func validate(cfg *Config) error {
	secret := strings.TrimSpace(cfg.Server.JWTSecret)
	if secret == "" || secret == placeholderSecret {
		return errors.New("server.jwt_secret must be set to a non-placeholder value")
	}
	return nil
}

// setDefaults 保证缺省配置下冷却时间和 HTTP 超时不会为零
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)

	v.SetDefault("database.max_idle", 10)
	v.SetDefault("database.max_open", 50)
	v.SetDefault("database.max_lifetime", 60)

	v.SetDefault("redis.pool_size", 20)

	v.SetDefault("logstash.index", "logstash-tracklight")

	v.SetDefault("kafka.snapshot_topic", "tracklight.snapshot.appended")

	v.SetDefault("providers.user_agent",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	v.SetDefault("providers.primary.base_url", "https://api.twitterapi.io")
	v.SetDefault("providers.primary.timeout", 15*time.Second)
	v.SetDefault("providers.primary.rps", 5)
	v.SetDefault("providers.scraper.base_url", "https://api.apify.com")
	v.SetDefault("providers.scraper.timeout", 30*time.Second)
	v.SetDefault("providers.scraper.rps", 2)
	v.SetDefault("providers.scraper.actor_id", "apidojo~tweet-scraper")
	v.SetDefault("providers.scraper.poll_attempts", 15)
	v.SetDefault("providers.scraper.poll_interval", 2*time.Second)
	v.SetDefault("providers.syndication.base_url", "https://cdn.syndication.twimg.com")
	v.SetDefault("providers.syndication.profile_base_url", "https://syndication.twitter.com")
	v.SetDefault("providers.syndication.timeout", 10*time.Second)
	v.SetDefault("providers.syndication.rps", 1)

	v.SetDefault("refresh.interactive_cooldown", 5*time.Minute)
	v.SetDefault("refresh.profile_cooldown", 15*time.Minute)
	v.SetDefault("refresh.batch_cooldown", time.Duration(0))
	v.SetDefault("refresh.batch_group_size", 10)
	v.SetDefault("refresh.batch_group_pause", time.Second)
	v.SetDefault("refresh.batch_error_samples", 10)
	v.SetDefault("refresh.schedule", "0 0 */6 * * *")
	v.SetDefault("refresh.lock_ttl", 30*time.Minute)

	v.SetDefault("analytics.cache_ttl", 30*time.Minute)
}
