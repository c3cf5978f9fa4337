package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	SLA          SLAConfig
	Allocator    AllocatorConfig
	Index        IndexConfig
	Worker       WorkerConfig
	Auth         AuthConfig
	Notification NotificationConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// SLAConfig holds per-priority response/resolution targets in minutes.
type SLAConfig struct {
	UrgentResponseMinutes   int
	UrgentResolutionMinutes int
	HighResponseMinutes     int
	HighResolutionMinutes   int
	MediumResponseMinutes   int
	MediumResolutionMinutes int
	LowResponseMinutes      int
	LowResolutionMinutes    int
}

// AllocatorConfig tunes the sharded id allocator.
type AllocatorConfig struct {
	ShardCount         int
	CounterBase        int64
	LockWaitSeconds    int
	MaxRetries         int
	BackoffBaseMillis  int
	CounterPadding     int
	LockTTLSeconds     int
	LockPollIntervalMS int
}

// IndexConfig bounds the sharded ticket index and store entry sizes.
type IndexConfig struct {
	MaxEntriesPerShard int
	RetentionDays      int
	MaxValueBytes      int
}

// WorkerConfig schedules and bounds background sweeps.
type WorkerConfig struct {
	SLASweepSpec       string
	RetentionSpec      string
	InvocationBudgetMS int
}

// AuthConfig defines agent authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	AgentID               string
	AgentSecretHash       string
	BcryptCost            int
}

// NotificationConfig holds stub notification endpoints.
type NotificationConfig struct {
	EmailFrom  string
	WebhookURL string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "support-ticket-core"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		SLA: SLAConfig{
			UrgentResponseMinutes:   getEnvAsInt("SLA_URGENT_RESPONSE_MINUTES", 15),
			UrgentResolutionMinutes: getEnvAsInt("SLA_URGENT_RESOLUTION_MINUTES", 240),
			HighResponseMinutes:     getEnvAsInt("SLA_HIGH_RESPONSE_MINUTES", 60),
			HighResolutionMinutes:   getEnvAsInt("SLA_HIGH_RESOLUTION_MINUTES", 480),
			MediumResponseMinutes:   getEnvAsInt("SLA_MEDIUM_RESPONSE_MINUTES", 240),
			MediumResolutionMinutes: getEnvAsInt("SLA_MEDIUM_RESOLUTION_MINUTES", 1440),
			LowResponseMinutes:      getEnvAsInt("SLA_LOW_RESPONSE_MINUTES", 480),
			LowResolutionMinutes:    getEnvAsInt("SLA_LOW_RESOLUTION_MINUTES", 2880),
		},
		Allocator: AllocatorConfig{
			ShardCount:         getEnvAsInt("ALLOCATOR_SHARD_COUNT", 10),
			CounterBase:        int64(getEnvAsInt("ALLOCATOR_COUNTER_BASE", 10000)),
			LockWaitSeconds:    getEnvAsInt("ALLOCATOR_LOCK_WAIT_SECONDS", 5),
			MaxRetries:         getEnvAsInt("ALLOCATOR_MAX_RETRIES", 3),
			BackoffBaseMillis:  getEnvAsInt("ALLOCATOR_BACKOFF_BASE_MS", 100),
			CounterPadding:     getEnvAsInt("ALLOCATOR_COUNTER_PADDING", 6),
			LockTTLSeconds:     getEnvAsInt("ALLOCATOR_LOCK_TTL_SECONDS", 30),
			LockPollIntervalMS: getEnvAsInt("ALLOCATOR_LOCK_POLL_INTERVAL_MS", 50),
		},
		Index: IndexConfig{
			MaxEntriesPerShard: getEnvAsInt("INDEX_MAX_ENTRIES_PER_SHARD", 500),
			RetentionDays:      getEnvAsInt("INDEX_RETENTION_DAYS", 90),
			MaxValueBytes:      getEnvAsInt("STORE_MAX_VALUE_BYTES", 9*1024),
		},
		Worker: WorkerConfig{
			SLASweepSpec:       getEnv("WORKER_SLA_SWEEP_SPEC", "@every 5m"),
			RetentionSpec:      getEnv("WORKER_RETENTION_SPEC", "@daily"),
			InvocationBudgetMS: getEnvAsInt("WORKER_INVOCATION_BUDGET_MS", 300000),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			AgentID:               getEnv("AUTH_AGENT_ID", "support-agent"),
			AgentSecretHash:       os.Getenv("AUTH_AGENT_SECRET_HASH"),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
		},
		Notification: NotificationConfig{
			EmailFrom:  getEnv("NOTIFY_EMAIL_FROM", "noreply@example.com"),
			WebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
		},
	}

	// Shard digits are single characters in ticket ids.
	if cfg.Allocator.ShardCount < 1 || cfg.Allocator.ShardCount > 10 {
		return nil, fmt.Errorf("ALLOCATOR_SHARD_COUNT must be between 1 and 10, got %d", cfg.Allocator.ShardCount)
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// LockWait returns the bounded wait for counter locks.
func (a AllocatorConfig) LockWait() time.Duration {
	return time.Duration(a.LockWaitSeconds) * time.Second
}

// BackoffBase returns the initial retry backoff delay.
func (a AllocatorConfig) BackoffBase() time.Duration {
	return time.Duration(a.BackoffBaseMillis) * time.Millisecond
}

// LockTTL returns how long an acquired lock stays valid if never released.
func (a AllocatorConfig) LockTTL() time.Duration {
	return time.Duration(a.LockTTLSeconds) * time.Second
}

// LockPollInterval returns the interval between lock acquisition attempts.
func (a AllocatorConfig) LockPollInterval() time.Duration {
	return time.Duration(a.LockPollIntervalMS) * time.Millisecond
}

// RetentionHorizon returns the index retention window.
func (i IndexConfig) RetentionHorizon() time.Duration {
	return time.Duration(i.RetentionDays) * 24 * time.Hour
}

// InvocationBudget returns the wall-clock budget for one scheduled sweep.
func (w WorkerConfig) InvocationBudget() time.Duration {
	return time.Duration(w.InvocationBudgetMS) * time.Millisecond
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}
