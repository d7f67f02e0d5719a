package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration (env + Viper).
type Config struct {
	Env          string
	Port         string
	DatabaseURL  string
	RedisURL     string
	LogLevel     string
	AdminKeyHash string // bcrypt hash of the key sent in X-Admin-Key
	CORSSuffix   string // allowed Origin suffix, e.g. .lab.example.edu

	Penalty  PenaltyConfig
	Schedule ScheduleConfig

	TxMaxRetries     int
	OverdueNoticeTTL time.Duration
	JobTimeout       time.Duration
}

type PenaltyConfig struct {
	Mode             string // hours | days
	Rate             float64
	Timezone         string
	RefundWindowDays int64
}

// ScheduleConfig holds six-field cron specs (seconds first).
type ScheduleConfig struct {
	DetectOverdue   string
	AccruePenalties string
	RelayOutbox     string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("PENALTY_MODE", "days")
	v.SetDefault("PENALTY_RATE", 10)
	v.SetDefault("PENALTY_TIMEZONE", "UTC")
	v.SetDefault("REFUND_WINDOW_DAYS", 7)
	v.SetDefault("TX_MAX_RETRIES", 3)
	v.SetDefault("SCHEDULE_DETECT_OVERDUE", "0 */15 * * * *")
	v.SetDefault("SCHEDULE_ACCRUE_PENALTIES", "0 5 0 * * *")
	v.SetDefault("SCHEDULE_RELAY_OUTBOX", "*/10 * * * * *")
	v.SetDefault("OVERDUE_NOTICE_TTL", "26h")
	v.SetDefault("JOB_TIMEOUT", "5m")
}

// Load loads config from env and optional .env file.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig()

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)

	cfg := &Config{
		Env:          v.GetString("APP_ENV"),
		Port:         v.GetString("PORT"),
		DatabaseURL:  v.GetString("DATABASE_URL"),
		RedisURL:     v.GetString("REDIS_URL"),
		LogLevel:     v.GetString("LOG_LEVEL"),
		AdminKeyHash: v.GetString("ADMIN_KEY_HASH"),
		CORSSuffix:   v.GetString("CORS_ALLOWED_SUFFIX"),
		Penalty: PenaltyConfig{
			Mode:             strings.ToLower(v.GetString("PENALTY_MODE")),
			Rate:             v.GetFloat64("PENALTY_RATE"),
			Timezone:         v.GetString("PENALTY_TIMEZONE"),
			RefundWindowDays: v.GetInt64("REFUND_WINDOW_DAYS"),
		},
		Schedule: ScheduleConfig{
			DetectOverdue:   v.GetString("SCHEDULE_DETECT_OVERDUE"),
			AccruePenalties: v.GetString("SCHEDULE_ACCRUE_PENALTIES"),
			RelayOutbox:     v.GetString("SCHEDULE_RELAY_OUTBOX"),
		},
		TxMaxRetries:     v.GetInt("TX_MAX_RETRIES"),
		OverdueNoticeTTL: v.GetDuration("OVERDUE_NOTICE_TTL"),
		JobTimeout:       v.GetDuration("JOB_TIMEOUT"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Penalty.Mode {
	case "hours", "days":
	default:
		return fmt.Errorf("PENALTY_MODE must be hours or days, got %q", c.Penalty.Mode)
	}
	if c.Penalty.Rate <= 0 {
		return fmt.Errorf("PENALTY_RATE must be positive, got %v", c.Penalty.Rate)
	}
	if c.Penalty.RefundWindowDays < 0 {
		return fmt.Errorf("REFUND_WINDOW_DAYS must not be negative")
	}
	if c.TxMaxRetries < 0 {
		return fmt.Errorf("TX_MAX_RETRIES must not be negative")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
