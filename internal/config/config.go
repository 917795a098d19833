package config

import (
	"fmt"
	"time"

	"github.com/Netflix/go-env"
)

type Config struct {
	DatabaseDSN string `env:"DATABASE_DSN,required=true"`
	RabbitMQURL string `env:"RABBITMQ_URL,required=true"`
	RedisURL    string `env:"REDIS_URL,required=true"`

	RateLimitPerSec    int `env:"RATE_LIMIT_PER_SEC,default=100"`
	SmsRateLimitPerSec int `env:"SMS_RATE_LIMIT_PER_SEC,default=0"`
	DispatchBatchSize  int `env:"DISPATCH_BATCH_SIZE,default=100"`
	ClaimIntervalMs    int `env:"CLAIM_INTERVAL_MS,default=2000"`
	SweepIntervalMs    int `env:"SWEEP_INTERVAL_MS,default=5000"`
	ConsumerPrefetch   int `env:"CONSUMER_PREFETCH,default=16"`

	APIPort     int    `env:"API_PORT,default=8080"`
	MetricsPort int    `env:"METRICS_PORT,default=9090"`
	LogLevel    string `env:"LOG_LEVEL,default=info"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) ClaimInterval() time.Duration {
	return time.Duration(c.ClaimIntervalMs) * time.Millisecond
}

func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalMs) * time.Millisecond
}
