package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the full runtime configuration, read from the environment.
type Config struct {
	Server      Server
	Database    DatabaseConfig
	Redis       RedisConfig
	Kafka       KafkaConfig
	Auth        AuthConfig
	Outbox      OutboxConfig
	Idempotency IdempotencyConfig
	RateLimit   RateLimitConfig
	Log         LogConfig
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	MaxBodyBytes    int64
}

// DatabaseConfig selects the ledger backend. An empty URL keeps the ledger in
// memory.
type DatabaseConfig struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
	TxTimeout    time.Duration
	AutoMigrate  bool
}

// RedisConfig configures the idempotency store. Empty URL means in-process.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures event publishing. No brokers means events are
// written to the log instead.
type KafkaConfig struct {
	Brokers           []string
	Topic             string
	Partitions        int32
	ReplicationFactor int16
	ClientID          string
}

// AuthConfig holds bearer token and mint credential settings.
type AuthConfig struct {
	JWTSigningKey      string
	JWTIssuer          string
	JWTAudience        string
	MintHolder         string
	MintCredentialHash string
	AdminToken         string
}

// OutboxConfig tunes the relay and retention.
type OutboxConfig struct {
	PollInterval  time.Duration
	BatchSize     int
	Retention     time.Duration
	PurgeSchedule string
}

type IdempotencyConfig struct {
	TTL      time.Duration
	MaxItems int
}

// RateLimitConfig bounds writes per caller. Zero WriteRequests disables it.
type RateLimitConfig struct {
	WriteRequests int
	Window        time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

const devSigningKey = "dev-secret-key-change-in-production"

// Load reads optional dotenv files, then the environment. Variables already
// set in the environment win over file values.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}
	return FromEnv()
}

// FromEnv builds the config from environment variables so main stays lean.
func FromEnv() (Config, error) {
	e := &envReader{}
	cfg := Config{
		Server: Server{
			Addr:            e.str("LEDGER_ADDR", ":8080"),
			ReadTimeout:     e.dur("LEDGER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    e.dur("LEDGER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     e.dur("LEDGER_IDLE_TIMEOUT", 60*time.Second),
			RequestTimeout:  e.dur("LEDGER_REQUEST_TIMEOUT", 10*time.Second),
			ShutdownTimeout: e.dur("LEDGER_SHUTDOWN_TIMEOUT", 20*time.Second),
			MaxBodyBytes:    int64(e.int("LEDGER_MAX_BODY_BYTES", 1<<20)),
		},
		Database: DatabaseConfig{
			URL:          e.str("DATABASE_URL", ""),
			MaxOpenConns: e.int("DATABASE_MAX_OPEN_CONNS", 20),
			MaxIdleConns: e.int("DATABASE_MAX_IDLE_CONNS", 10),
			MaxLifetime:  e.dur("DATABASE_CONN_MAX_LIFETIME", 30*time.Minute),
			TxTimeout:    e.dur("LEDGER_TX_TIMEOUT", 5*time.Second),
			AutoMigrate:  e.bool("DATABASE_AUTO_MIGRATE", true),
		},
		Redis: RedisConfig{
			URL:          e.str("REDIS_URL", ""),
			PoolSize:     e.int("REDIS_POOL_SIZE", 10),
			MinIdleConns: e.int("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  e.dur("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  e.dur("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: e.dur("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:           e.list("KAFKA_BROKERS"),
			Topic:             e.str("KAFKA_TOPIC", "ledger.events"),
			Partitions:        int32(e.int("KAFKA_TOPIC_PARTITIONS", 6)),
			ReplicationFactor: int16(e.int("KAFKA_TOPIC_REPLICATION", 1)),
			ClientID:          e.str("KAFKA_CLIENT_ID", "offsetledger"),
		},
		Auth: AuthConfig{
			JWTSigningKey:      e.str("JWT_SIGNING_KEY", devSigningKey),
			JWTIssuer:          e.str("JWT_ISSUER", "offsetledger"),
			JWTAudience:        e.str("JWT_AUDIENCE", "offsetledger-api"),
			MintHolder:         e.str("MINT_HOLDER", "registry"),
			MintCredentialHash: e.str("MINT_CREDENTIAL_HASH", ""),
			AdminToken:         e.str("ADMIN_TOKEN", ""),
		},
		Outbox: OutboxConfig{
			PollInterval:  e.dur("OUTBOX_POLL_INTERVAL", time.Second),
			BatchSize:     e.int("OUTBOX_BATCH_SIZE", 100),
			Retention:     e.dur("OUTBOX_RETENTION", 7*24*time.Hour),
			PurgeSchedule: e.str("OUTBOX_PURGE_SCHEDULE", "@hourly"),
		},
		Idempotency: IdempotencyConfig{
			TTL:      e.dur("IDEMPOTENCY_TTL", 24*time.Hour),
			MaxItems: e.int("IDEMPOTENCY_MAX_ITEMS", 100_000),
		},
		RateLimit: RateLimitConfig{
			WriteRequests: e.int("RATELIMIT_WRITE_REQUESTS", 120),
			Window:        e.dur("RATELIMIT_WINDOW", time.Minute),
		},
		Log: LogConfig{
			Level:  e.str("LOG_LEVEL", "info"),
			Format: e.str("LOG_FORMAT", "json"),
		},
	}
	if len(e.errs) > 0 {
		return Config{}, errors.Join(e.errs...)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects combinations the server cannot start with.
func (c Config) Validate() error {
	var errs []error
	if c.Outbox.BatchSize <= 0 {
		errs = append(errs, errors.New("OUTBOX_BATCH_SIZE must be positive"))
	}
	if c.Idempotency.MaxItems <= 0 {
		errs = append(errs, errors.New("IDEMPOTENCY_MAX_ITEMS must be positive"))
	}
	if c.RateLimit.WriteRequests < 0 || (c.RateLimit.WriteRequests > 0 && c.RateLimit.Window <= 0) {
		errs = append(errs, errors.New("RATELIMIT_WINDOW must be positive when rate limiting is on"))
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		errs = append(errs, errors.New("KAFKA_TOPIC required when KAFKA_BROKERS is set"))
	}
	if c.Auth.MintHolder == "" {
		errs = append(errs, errors.New("MINT_HOLDER must not be empty"))
	}
	return errors.Join(errs...)
}

// UsesDevSigningKey reports whether tokens are signed with the built-in key.
func (c Config) UsesDevSigningKey() bool {
	return c.Auth.JWTSigningKey == devSigningKey
}

// envReader collects parse errors instead of failing on the first.
type envReader struct {
	errs []error
}

func (e *envReader) str(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func (e *envReader) int(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

func (e *envReader) dur(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}

func (e *envReader) bool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return b
}

func (e *envReader) list(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
