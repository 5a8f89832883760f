package config

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	ServiceName string `env:"SERVICE_NAME" envDefault:"identity"`
	HTTPAddr    string `env:"HTTP_ADDR"    envDefault:":8080"`
	LogLevel    string `env:"LOG_LEVEL"    envDefault:"info"`

	DBDriver    string `env:"DB_DRIVER"    envDefault:"postgres"`
	DatabaseURL string `env:"DATABASE_URL"`

	TokenTTL          time.Duration `env:"TOKEN_TTL"             envDefault:"60s"`
	TokenLength       int           `env:"TOKEN_LENGTH"          envDefault:"10"`
	BcryptCost        int           `env:"BCRYPT_COST"           envDefault:"10"`
	MinPasswordLength int           `env:"MIN_PASSWORD_LENGTH"   envDefault:"0"`
	ValidateEmail     bool          `env:"VALIDATE_EMAIL_FORMAT" envDefault:"false"`

	AdminEmails []string `env:"ADMIN_EMAILS" envSeparator:","`

	SweepInterval  time.Duration `env:"TOKEN_SWEEP_INTERVAL" envDefault:"10m"`
	TokenRetention time.Duration `env:"TOKEN_RETENTION"      envDefault:"24h"`

	EventQueueSize int `env:"EVENT_QUEUE_SIZE" envDefault:"1024"`

	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `env:"KAFKA_TOPIC"   envDefault:"user_events"`

	RabbitMQURL   string `env:"RABBITMQ_URL"`
	RabbitMQQueue string `env:"RABBITMQ_QUEUE" envDefault:"user.events"`

	ESURL      string `env:"ES_URL"`
	ESUser     string `env:"ES_USER"`
	ESPassword string `env:"ES_PASSWORD"`
	ESIndex    string `env:"ES_INDEX" envDefault:"identity-audit"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	LoginRateCapacity    int           `env:"LOGIN_RATE_CAPACITY"     envDefault:"10"`
	LoginRateRefillEvery time.Duration `env:"LOGIN_RATE_REFILL_EVERY" envDefault:"6s"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Notice: .env file not found: %v. Using system environment variables", err)
	}
	return Parse()
}

func Parse() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	switch c.DBDriver {
	case "postgres":
		if err := MustNonEmpty(c.DatabaseURL, "DATABASE_URL"); err != nil {
			errs = append(errs, err)
		}
	case "sqlite":
		if c.DatabaseURL == "" {
			c.DatabaseURL = "identity.db"
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, fmt.Errorf("TOKEN_TTL must be positive, got %s", c.TokenTTL))
	}
	if c.TokenLength < 8 {
		errs = append(errs, fmt.Errorf("TOKEN_LENGTH must be at least 8, got %d", c.TokenLength))
	}
	return errors.Join(errs...)
}

func MustNonEmpty(value, envName string) error {
	if value == "" {
		return fmt.Errorf("missing required env %s", envName)
	}
	return nil
}
