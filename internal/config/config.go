package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Port                  int    `env:"PORT" envDefault:"8080"`
	DatabaseURL           string `env:"DATABASE_URL,required"`
	RedisURL              string `env:"REDIS_URL,required"`
	SessionTTLSeconds     int    `env:"SESSION_TTL_SECONDS" envDefault:"1800"`
	SweepIntervalSeconds  int    `env:"SWEEP_INTERVAL_SECONDS" envDefault:"60"`
	MaxScannersPerSession int    `env:"MAX_SCANNERS_PER_SESSION" envDefault:"8"`
	CheckinRetentionDays  int    `env:"CHECKIN_RETENTION_DAYS" envDefault:"30"`
	CreateSessionPerMin   int    `env:"CREATE_SESSION_PER_MIN" envDefault:"10"`
	LogLevel              string `env:"LOG_LEVEL" envDefault:"info"`
}

func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLSeconds) * time.Second
}

func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}

func (c *Config) CheckinRetention() time.Duration {
	return time.Duration(c.CheckinRetentionDays) * 24 * time.Hour
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) Validate() error {
	if c.SessionTTLSeconds <= 0 {
		return fmt.Errorf("SESSION_TTL_SECONDS must be positive")
	}
	if c.SweepIntervalSeconds <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL_SECONDS must be positive")
	}
	if c.MaxScannersPerSession <= 0 {
		return fmt.Errorf("MAX_SCANNERS_PER_SESSION must be positive")
	}
	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
