package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	DBHost     string `env:"DB_HOST" envDefault:"localhost"`
	DBPort     int    `env:"DB_PORT" envDefault:"5432"`
	DBUser     string `env:"DB_USER" envDefault:"postgres"`
	DBPassword string `env:"DB_PASSWORD"`
	DBName     string `env:"DB_NAME" envDefault:"pulse"`
	DBSSLMode  string `env:"DB_SSLMODE" envDefault:"disable"`

	// RedisAddr empty means claims are held in process.
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// AMQPURL empty means the queue gateway uses the in-memory queue.
	AMQPURL string `env:"AMQP_URL"`

	HTTPPort            int           `env:"HTTP_PORT" envDefault:"8080"`
	PollInterval        time.Duration `env:"POLL_INTERVAL" envDefault:"1m"`
	TickBatchSize       int           `env:"TICK_BATCH_SIZE" envDefault:"100"`
	LockTTL             time.Duration `env:"LOCK_TTL" envDefault:"5m"`
	DispatchConcurrency int           `env:"DISPATCH_CONCURRENCY" envDefault:"5"`
	DispatchMaxAttempts int           `env:"DISPATCH_MAX_ATTEMPTS" envDefault:"3"`

	Gateway   string `env:"GATEWAY" envDefault:"log"`
	MailerURL string `env:"MAILER_URL"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
}

// Load reads .env files when present, then the process environment.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		// a missing file is fine, the environment may already be set
		_ = godotenv.Load(f)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Gateway {
	case "log", "queue":
	case "http":
		if c.MailerURL == "" {
			return fmt.Errorf("GATEWAY=http needs MAILER_URL")
		}
	default:
		return fmt.Errorf("unknown GATEWAY %q", c.Gateway)
	}
	if c.DispatchConcurrency < 1 {
		return fmt.Errorf("DISPATCH_CONCURRENCY must be positive")
	}
	return nil
}

func (c *Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}
