package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server     ServerConfig
	Postgres   PostgresConfig
	Redis      RedisConfig
	Locks      LocksConfig
	Dispatcher DispatcherConfig
	Webhooks   WebhooksConfig
	Calendar   CalendarConfig
	RateLimit  RateLimitConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type PostgresConfig struct {
	User     string
	Password string
	Name     string
	Host     string
	Port     int
	SSLMode  string
}

func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode,
	)
}

// LocksConfig bounds how long a transition waits for its calendar slot lock
// before giving up with a busy error.
type LocksConfig struct {
	Timeout time.Duration
}

type DispatcherConfig struct {
	Workers    int
	QueueSize  int
	MaxRetries int
}

// WebhooksConfig points at the payment and notification collaborators.
// Empty URLs disable the corresponding side effect delivery.
type WebhooksConfig struct {
	RefundURL string
	NotifyURL string
}

type CalendarConfig struct {
	CacheTTL time.Duration
}

type RateLimitConfig struct {
	Limit  int
	Window time.Duration
}

func New() (*Config, error) {
	const op = "config.New"

	_ = godotenv.Load()

	serverPort, err := envInt("SERVER_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	serverCfg := ServerConfig{
		Host: envStr("SERVER_HOST", "localhost"),
		Port: serverPort,
	}

	postgresPort, err := envInt("POSTGRES_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	postgresUser := os.Getenv("POSTGRES_USER")
	if postgresUser == "" {
		return nil, fmt.Errorf("%s: missing POSTGRES_USER", op)
	}

	postgresPassword := os.Getenv("POSTGRES_PASSWORD")
	if postgresPassword == "" {
		return nil, fmt.Errorf("%s: missing POSTGRES_PASSWORD", op)
	}

	postgresDB := os.Getenv("POSTGRES_DB")
	if postgresDB == "" {
		return nil, fmt.Errorf("%s: missing POSTGRES_DB", op)
	}

	postgresCfg := PostgresConfig{
		User:     postgresUser,
		Password: postgresPassword,
		Name:     postgresDB,
		Host:     envStr("POSTGRES_HOST", "localhost"),
		Port:     postgresPort,
		SSLMode:  envStr("POSTGRES_SSLMODE", "disable"),
	}

	redisCfg := RedisConfig{
		Addr:     envStr("REDIS_ADDR", "localhost:6379"),
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       0,
	}

	lockTimeout, err := envDuration("LOCK_TIMEOUT", 3*time.Second)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	workers, err := envInt("DISPATCHER_WORKERS", 2)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	queueSize, err := envInt("DISPATCHER_QUEUE_SIZE", 256)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	maxRetries, err := envInt("DISPATCHER_MAX_RETRIES", 5)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	cacheTTL, err := envDuration("CALENDAR_CACHE_TTL", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	rlLimit, err := envInt("RATE_LIMIT_REGISTRATIONS", 30)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	rlWindow, err := envDuration("RATE_LIMIT_WINDOW", time.Minute)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return &Config{
		Server:   serverCfg,
		Postgres: postgresCfg,
		Redis:    redisCfg,
		Locks:    LocksConfig{Timeout: lockTimeout},
		Dispatcher: DispatcherConfig{
			Workers:    workers,
			QueueSize:  queueSize,
			MaxRetries: maxRetries,
		},
		Webhooks: WebhooksConfig{
			RefundURL: os.Getenv("REFUND_WEBHOOK_URL"),
			NotifyURL: os.Getenv("NOTIFY_WEBHOOK_URL"),
		},
		Calendar: CalendarConfig{CacheTTL: cacheTTL},
		RateLimit: RateLimitConfig{
			Limit:  rlLimit,
			Window: rlWindow,
		},
	}, nil
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}
