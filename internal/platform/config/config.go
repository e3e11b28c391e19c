package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the full process configuration, read once at startup.
type Config struct {
	Server      Server
	Logging     LoggingConfig
	Redis       RedisConfig
	Postgres    PostgresConfig
	Kafka       KafkaConfig
	RateLimit   RateLimitConfig
	Quota       QuotaConfig
	LogQueue    LogQueueConfig
	Fingerprint FingerprintConfig
	Risk        RiskConfig
	Lists       ListsConfig
	DNS         DNSConfig
	Tenant      TenantConfig
	Privacy     PrivacyConfig
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	AdminToken      string
	ShutdownTimeout time.Duration
}

// LoggingConfig selects slog handler and level.
type LoggingConfig struct {
	Level  string
	Format string
}

// RedisConfig configures the shared Redis client. An empty URL disables Redis.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// PostgresConfig configures relational storage. An empty DSN disables it.
type PostgresConfig struct {
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
}

// KafkaConfig configures the validation-log topic producer.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// RateLimitConfig holds the fixed-window limiter settings.
type RateLimitConfig struct {
	Backend     string
	Window      time.Duration
	Grace       time.Duration
	ClientLimit int
	ServerLimit int
}

// QuotaConfig holds monthly usage counter settings.
type QuotaConfig struct {
	DefaultMonthlyLimit int
	FlushEvery          int
	FlushInterval       time.Duration
}

// LogQueueConfig holds validation log batching settings.
type LogQueueConfig struct {
	Sink          string
	MaxSize       int
	BatchSize     int
	SweepInterval time.Duration
}

// FingerprintConfig selects the device store backend.
type FingerprintConfig struct {
	Backend string
	Timeout time.Duration
	TTL     time.Duration
}

// RiskConfig selects the recommendation policy.
type RiskConfig struct {
	Policy string
}

// ListsConfig locates the reference lists (disposable, role, VPN, fraud).
type ListsConfig struct {
	Path            string
	RefreshInterval time.Duration
	DisposableStore string
}

// DNSConfig configures MX/TXT lookups.
type DNSConfig struct {
	Servers    []string
	MXCacheTTL time.Duration
}

// TenantConfig selects where tenant settings are read from.
type TenantConfig struct {
	Source   string
	SeedPath string
}

// PrivacyConfig carries the keys used to hash and seal emails before persistence.
type PrivacyConfig struct {
	EmailHashKey []byte
	EmailSealKey []byte
}

// Backend and policy identifiers accepted in configuration.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendKafka    = "kafka"
	BackendActor    = "actor"
	BackendKV       = "kv"
	BackendFile     = "file"

	PolicyThreshold = "threshold"
	PolicyAction    = "action"
)

// FromEnv builds a Config from environment variables so main stays lean.
// A .env file in the working directory is loaded first when present.
func FromEnv() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Config{
		Server: Server{
			Addr:            getString("MAILGUARD_ADDR", ":8080"),
			AdminToken:      os.Getenv("ADMIN_TOKEN"),
			ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Logging: LoggingConfig{
			Level:  getString("LOG_LEVEL", "info"),
			Format: getString("LOG_FORMAT", "json"),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     getInt("REDIS_POOL_SIZE", 20),
			MinIdleConns: getInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getDuration("REDIS_DIAL_TIMEOUT", 2*time.Second),
			ReadTimeout:  getDuration("REDIS_READ_TIMEOUT", 500*time.Millisecond),
			WriteTimeout: getDuration("REDIS_WRITE_TIMEOUT", 500*time.Millisecond),
		},
		Postgres: PostgresConfig{
			DSN:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: getInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns: getInt("DB_MAX_IDLE_CONNS", 5),
		},
		Kafka: KafkaConfig{
			Brokers: getList("KAFKA_BROKERS"),
			Topic:   getString("KAFKA_VALIDATION_LOG_TOPIC", "validation-logs"),
		},
		RateLimit: RateLimitConfig{
			Backend:     getString("RATE_LIMIT_BACKEND", BackendMemory),
			Window:      getDuration("RATE_LIMIT_WINDOW", time.Minute),
			Grace:       getDuration("RATE_LIMIT_GRACE", 10*time.Second),
			ClientLimit: getInt("RATE_LIMIT_CLIENT", 60),
			ServerLimit: getInt("RATE_LIMIT_SERVER", 600),
		},
		Quota: QuotaConfig{
			DefaultMonthlyLimit: getInt("QUOTA_DEFAULT_MONTHLY_LIMIT", 1000),
			FlushEvery:          getInt("QUOTA_FLUSH_EVERY", 10),
			FlushInterval:       getDuration("QUOTA_FLUSH_INTERVAL", time.Minute),
		},
		LogQueue: LogQueueConfig{
			Sink:          getString("LOG_SINK", BackendMemory),
			MaxSize:       getInt("LOG_QUEUE_MAX_SIZE", 10000),
			BatchSize:     getInt("LOG_QUEUE_BATCH_SIZE", 100),
			SweepInterval: getDuration("LOG_QUEUE_SWEEP_INTERVAL", time.Hour),
		},
		Fingerprint: FingerprintConfig{
			Backend: getString("FINGERPRINT_BACKEND", BackendActor),
			Timeout: getDuration("FINGERPRINT_TIMEOUT", 300*time.Millisecond),
			TTL:     getDuration("FINGERPRINT_TTL", 90*24*time.Hour),
		},
		Risk: RiskConfig{
			Policy: getString("RISK_POLICY", PolicyThreshold),
		},
		Lists: ListsConfig{
			Path:            os.Getenv("LISTS_PATH"),
			RefreshInterval: getDuration("LISTS_REFRESH_INTERVAL", 15*time.Minute),
			DisposableStore: getString("DISPOSABLE_STORE", BackendFile),
		},
		DNS: DNSConfig{
			Servers:    getListDefault("DNS_SERVERS", []string{"1.1.1.1:53", "8.8.8.8:53"}),
			MXCacheTTL: getDuration("MX_CACHE_TTL", time.Hour),
		},
		Tenant: TenantConfig{
			Source:   getString("TENANT_SOURCE", BackendFile),
			SeedPath: getString("TENANT_SEED_PATH", "tenants.yaml"),
		},
	}

	var err error
	if cfg.Privacy.EmailHashKey, err = getHexKey("EMAIL_HASH_KEY"); err != nil {
		return Config{}, err
	}
	if cfg.Privacy.EmailSealKey, err = getHexKey("EMAIL_SEAL_KEY"); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints that defaults alone cannot guarantee.
func (c Config) Validate() error {
	switch {
	case c.RateLimit.Window <= 0:
		return errors.New("config: RATE_LIMIT_WINDOW must be positive")
	case c.RateLimit.ClientLimit <= 0 || c.RateLimit.ServerLimit <= 0:
		return errors.New("config: rate limits must be positive")
	case c.LogQueue.MaxSize <= 0 || c.LogQueue.BatchSize <= 0:
		return errors.New("config: log queue sizes must be positive")
	case c.Quota.FlushEvery <= 0:
		return errors.New("config: QUOTA_FLUSH_EVERY must be positive")
	case c.Quota.FlushInterval <= 0 || c.LogQueue.SweepInterval <= 0:
		return errors.New("config: flush intervals must be positive")
	}
	switch c.Risk.Policy {
	case PolicyThreshold, PolicyAction:
	default:
		return fmt.Errorf("config: unknown RISK_POLICY %q", c.Risk.Policy)
	}
	needsRedis := c.RateLimit.Backend == BackendRedis ||
		c.Fingerprint.Backend == BackendRedis || c.Fingerprint.Backend == BackendKV ||
		c.Tenant.Source == BackendRedis || c.Lists.DisposableStore == BackendRedis
	if needsRedis && c.Redis.URL == "" {
		return errors.New("config: REDIS_URL is required by the selected backends")
	}
	needsPostgres := c.Fingerprint.Backend == BackendPostgres || c.LogQueue.Sink == BackendPostgres
	if needsPostgres && c.Postgres.DSN == "" {
		return errors.New("config: DATABASE_URL is required by the selected backends")
	}
	if c.LogQueue.Sink == BackendKafka && len(c.Kafka.Brokers) == 0 {
		return errors.New("config: KAFKA_BROKERS is required for the kafka log sink")
	}
	return nil
}

func getString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getListDefault(key string, def []string) []string {
	if l := getList(key); len(l) > 0 {
		return l
	}
	return def
}

func getHexKey(key string) ([]byte, error) {
	v := os.Getenv(key)
	if v == "" {
		return nil, nil
	}
	b, err := hex.DecodeString(v)
	if err != nil {
		return nil, fmt.Errorf("config: %s must be hex encoded: %w", key, err)
	}
	return b, nil
}
