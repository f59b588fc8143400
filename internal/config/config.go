package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all runtime configuration knobs for the engine.
type Config struct {
	HTTP struct {
		Addr         string        `mapstructure:"addr"`
		ReadTimeout  time.Duration `mapstructure:"read_timeout"`
		WriteTimeout time.Duration `mapstructure:"write_timeout"`
	} `mapstructure:"http"`
	Storage struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"storage"`
	Push struct {
		VAPIDPublicKey  string        `mapstructure:"vapid_public_key"`
		VAPIDPrivateKey string        `mapstructure:"vapid_private_key"`
		Subject         string        `mapstructure:"subject"`
		RequestTimeout  time.Duration `mapstructure:"request_timeout"`
		RatePerSec      int           `mapstructure:"rate_per_sec"`
	} `mapstructure:"push"`
	Queue struct {
		TickInterval      time.Duration `mapstructure:"tick_interval"`
		BatchSize         int           `mapstructure:"batch_size"`
		MaxRetries        int           `mapstructure:"max_retries"`
		BaseRetryDelay    time.Duration `mapstructure:"base_retry_delay"`
		MaxRetryDelay     time.Duration `mapstructure:"max_retry_delay"`
		BackoffMultiplier float64       `mapstructure:"backoff_multiplier"`
		DefaultTTL        time.Duration `mapstructure:"default_ttl"`
	} `mapstructure:"queue"`
	Cleanup struct {
		Schedule          string `mapstructure:"schedule"`
		SentRetentionDays int    `mapstructure:"sent_retention_days"`
		LogRetentionDays  int    `mapstructure:"log_retention_days"`
	} `mapstructure:"cleanup"`
	Auth struct {
		Enabled   bool   `mapstructure:"enabled"`
		Username  string `mapstructure:"username"`
		Password  string `mapstructure:"password"`
		JWTSecret string `mapstructure:"jwt_secret"`
	} `mapstructure:"auth"`
	Log struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`
}

// PushEnabled reports whether a VAPID keypair is configured. Without one the
// push leg is disabled; persistent writes still succeed.
func (c *Config) PushEnabled() bool {
	return c.Push.VAPIDPublicKey != "" && c.Push.VAPIDPrivateKey != ""
}

// Load reads the configuration from disk/environment using Viper.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("social_task_notify")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// allow env-only config when the file is missing
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":8091")
	v.SetDefault("http.read_timeout", "15s")
	v.SetDefault("http.write_timeout", "30s")

	v.SetDefault("storage.path", "./data/notify.db")

	v.SetDefault("push.subject", "mailto:ops@social-task.app")
	v.SetDefault("push.request_timeout", "10s")
	v.SetDefault("push.rate_per_sec", 20)

	v.SetDefault("queue.tick_interval", "30s")
	v.SetDefault("queue.batch_size", 50)
	v.SetDefault("queue.max_retries", 5)
	v.SetDefault("queue.base_retry_delay", "1s")
	v.SetDefault("queue.max_retry_delay", "5m")
	v.SetDefault("queue.backoff_multiplier", 2.0)
	v.SetDefault("queue.default_ttl", "15m")

	v.SetDefault("cleanup.schedule", "0 3 * * *")
	v.SetDefault("cleanup.sent_retention_days", 30)
	v.SetDefault("cleanup.log_retention_days", 7)

	v.SetDefault("auth.enabled", true)
	v.SetDefault("auth.username", "admin")
	v.SetDefault("auth.password", "admin123")
	v.SetDefault("auth.jwt_secret", "change-me-secret")

	v.SetDefault("log.level", "info")
}
