package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the full process configuration, built from the environment so
// main stays lean.
type Config struct {
	Server       Server
	Ledger       Ledger
	Verification Verification
	Scoring      Scoring
	Search       Search
	Dependents   Dependents
	Redis        RedisConfig
	Postgres     PostgresConfig
	Kafka        KafkaConfig
	RateLimit    RateLimit
	Log          Log
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr          string
	AdminToken    string
	JWTSigningKey string
	JWTIssuer     string
	JWTAudience   string
}

// Ledger holds bonding-curve and transfer protocol parameters.
type Ledger struct {
	MinValuation int64
	DefaultPrice int64
	TransferFee  int64
	// TxWindow is how far in the past a transfer's created_at_time may be.
	TxWindow time.Duration
	// PermittedDrift tolerates clock skew in both directions.
	PermittedDrift time.Duration
}

type Verification struct {
	CacheTTL        time.Duration
	RecheckInterval time.Duration
	// TablesPath overrides the embedded calibration tables when set.
	TablesPath    string
	BatchInterval time.Duration
	BatchSize     int
	ScanInterval  time.Duration
	// JobTimeout bounds one job run once it has been claimed, independent of
	// the caller's context.
	JobTimeout time.Duration
	// MaxResponseBytes bounds every outbound response body.
	MaxResponseBytes int
}

type Scoring struct {
	URL          string
	Token        string
	Timeout      time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
}

type Search struct {
	URL     string
	Token   string
	Timeout time.Duration
}

type Dependents struct {
	// PushKey authenticates outbound pushes to dependents.
	PushKey string
	// PushKeyHash is the bcrypt hash inbound pushes are checked against.
	PushKeyHash        string
	PropagationTimeout time.Duration
	MaxConcurrentPush  int
}

type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type PostgresConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// RateLimit holds per-class request budgets over a sliding window.
type RateLimit struct {
	Disabled           bool
	Window             time.Duration
	Reads              int
	LedgerWrites       int
	VerificationStarts int
}

type Log struct {
	Level  string
	Format string
}

const defaultJWTSigningKey = "dev-secret-key-change-in-production"

// FromEnv builds a Config from environment variables with development defaults.
func FromEnv() (Config, error) {
	var errs []error
	p := parser{errs: &errs}

	cfg := Config{
		Server: Server{
			Addr:          p.str("ADDR", ":8080"),
			AdminToken:    p.str("ADMIN_TOKEN", ""),
			JWTSigningKey: p.str("JWT_SIGNING_KEY", defaultJWTSigningKey),
			JWTIssuer:     p.str("JWT_ISSUER", "trustex"),
			JWTAudience:   p.str("JWT_AUDIENCE", "trustex-api"),
		},
		Ledger: Ledger{
			MinValuation:   p.int64("LEDGER_MIN_VALUATION", 1_000_000),
			DefaultPrice:   p.int64("LEDGER_DEFAULT_PRICE", 100),
			TransferFee:    p.int64("LEDGER_TRANSFER_FEE", 10),
			TxWindow:       p.duration("LEDGER_TX_WINDOW", 5*time.Minute),
			PermittedDrift: p.duration("LEDGER_PERMITTED_DRIFT", 30*time.Second),
		},
		Verification: Verification{
			CacheTTL:         p.duration("VERIFICATION_CACHE_TTL", 24*time.Hour),
			RecheckInterval:  p.duration("VERIFICATION_RECHECK_INTERVAL", 7*24*time.Hour),
			TablesPath:       p.str("VERIFICATION_TABLES_PATH", ""),
			BatchInterval:    p.duration("BATCH_INTERVAL", 30*time.Second),
			BatchSize:        p.int("BATCH_SIZE", 10),
			ScanInterval:     p.duration("SCAN_INTERVAL", time.Hour),
			JobTimeout:       p.duration("VERIFICATION_JOB_TIMEOUT", 2*time.Minute),
			MaxResponseBytes: p.int("OUTBOUND_MAX_RESPONSE_BYTES", 1<<20),
		},
		Scoring: Scoring{
			URL:          p.str("SCORING_URL", ""),
			Token:        p.str("SCORING_TOKEN", ""),
			Timeout:      p.duration("SCORING_TIMEOUT", 10*time.Second),
			MaxRetries:   p.int("SCORING_MAX_RETRIES", 2),
			RetryBackoff: p.duration("SCORING_RETRY_BACKOFF", 200*time.Millisecond),
		},
		Search: Search{
			URL:     p.str("SEARCH_URL", ""),
			Token:   p.str("SEARCH_TOKEN", ""),
			Timeout: p.duration("SEARCH_TIMEOUT", 5*time.Second),
		},
		Dependents: Dependents{
			PushKey:            p.str("PUSH_KEY", ""),
			PushKeyHash:        p.str("PUSH_KEY_HASH", ""),
			PropagationTimeout: p.duration("PROPAGATION_TIMEOUT", 5*time.Second),
			MaxConcurrentPush:  p.int("PROPAGATION_CONCURRENCY", 8),
		},
		Redis: RedisConfig{
			URL:          p.str("REDIS_URL", ""),
			PoolSize:     p.int("REDIS_POOL_SIZE", 10),
			MinIdleConns: p.int("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  p.duration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  p.duration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: p.duration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Postgres: PostgresConfig{
			URL:             p.str("DATABASE_URL", ""),
			MaxOpenConns:    p.int("DATABASE_MAX_OPEN_CONNS", 20),
			MaxIdleConns:    p.int("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: p.duration("DATABASE_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(p.str("KAFKA_BROKERS", "")),
			Topic:   p.str("KAFKA_TOPIC", "trustex.audit"),
		},
		RateLimit: RateLimit{
			Disabled:           p.bool("RATE_LIMIT_DISABLED", false),
			Window:             p.duration("RATE_LIMIT_WINDOW", time.Minute),
			Reads:              p.int("RATE_LIMIT_READS", 600),
			LedgerWrites:       p.int("RATE_LIMIT_LEDGER_WRITES", 60),
			VerificationStarts: p.int("RATE_LIMIT_VERIFICATION_STARTS", 10),
		},
		Log: Log{
			Level:  p.str("LOG_LEVEL", "info"),
			Format: p.str("LOG_FORMAT", "json"),
		},
	}
	if len(errs) > 0 {
		return Config{}, errors.Join(errs...)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints that defaults cannot guarantee.
func (c Config) Validate() error {
	var errs []error
	if c.Ledger.MinValuation <= 0 {
		errs = append(errs, errors.New("LEDGER_MIN_VALUATION must be positive"))
	}
	if c.Ledger.DefaultPrice <= 0 {
		errs = append(errs, errors.New("LEDGER_DEFAULT_PRICE must be positive"))
	}
	if c.Ledger.TransferFee < 0 {
		errs = append(errs, errors.New("LEDGER_TRANSFER_FEE must not be negative"))
	}
	if c.Ledger.TxWindow <= 0 {
		errs = append(errs, errors.New("LEDGER_TX_WINDOW must be positive"))
	}
	if c.Ledger.PermittedDrift < 0 {
		errs = append(errs, errors.New("LEDGER_PERMITTED_DRIFT must not be negative"))
	}
	if c.Verification.CacheTTL <= 0 {
		errs = append(errs, errors.New("VERIFICATION_CACHE_TTL must be positive"))
	}
	if c.Verification.RecheckInterval <= 0 {
		errs = append(errs, errors.New("VERIFICATION_RECHECK_INTERVAL must be positive"))
	}
	if c.Verification.JobTimeout <= 0 {
		errs = append(errs, errors.New("VERIFICATION_JOB_TIMEOUT must be positive"))
	}
	if c.Verification.BatchSize <= 0 {
		errs = append(errs, errors.New("BATCH_SIZE must be positive"))
	}
	if c.Verification.MaxResponseBytes <= 0 {
		errs = append(errs, errors.New("OUTBOUND_MAX_RESPONSE_BYTES must be positive"))
	}
	if c.Scoring.MaxRetries < 0 {
		errs = append(errs, errors.New("SCORING_MAX_RETRIES must not be negative"))
	}
	if c.Dependents.MaxConcurrentPush <= 0 {
		errs = append(errs, errors.New("PROPAGATION_CONCURRENCY must be positive"))
	}
	if !c.RateLimit.Disabled {
		if c.RateLimit.Window <= 0 {
			errs = append(errs, errors.New("RATE_LIMIT_WINDOW must be positive"))
		}
		if c.RateLimit.Reads <= 0 || c.RateLimit.LedgerWrites <= 0 || c.RateLimit.VerificationStarts <= 0 {
			errs = append(errs, errors.New("RATE_LIMIT budgets must be positive"))
		}
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be json or text, got %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

// UsesDefaultSigningKey reports whether the development JWT key is in use.
func (c Config) UsesDefaultSigningKey() bool {
	return c.Server.JWTSigningKey == defaultJWTSigningKey
}

type parser struct {
	errs *[]error
}

func (p parser) str(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func (p parser) int(key string, def int) int {
	raw := p.str(key, "")
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		*p.errs = append(*p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return v
}

func (p parser) int64(key string, def int64) int64 {
	raw := p.str(key, "")
	if raw == "" {
		return def
	}
	v, err := strconv.ParseInt(strings.ReplaceAll(raw, "_", ""), 10, 64)
	if err != nil {
		*p.errs = append(*p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return v
}

func (p parser) bool(key string, def bool) bool {
	raw := p.str(key, "")
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		*p.errs = append(*p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return v
}

func (p parser) duration(key string, def time.Duration) time.Duration {
	raw := p.str(key, "")
	if raw == "" {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		*p.errs = append(*p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return v
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
