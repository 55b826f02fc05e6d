package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	platformstrings "fortis/pkg/platform/strings"
)

// Server captures process level configuration. Sections are filled from
// the environment by FromEnv and default to values suitable for local runs.
type Server struct {
	Addr              string
	LogLevel          string
	SessionSigningKey string
	RollServiceURL    string
	// AdminToken guards the operator routes. Empty disables them.
	AdminToken     string
	RequestTimeout time.Duration

	Redis    RedisConfig
	Postgres PostgresConfig
	Kafka    KafkaConfig
	Sync     SyncConfig
	Auth     AuthConfig
	Audit    AuditConfig
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

// PostgresConfig configures the durable stores. An empty URL selects in-memory stores.
type PostgresConfig struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
}

// KafkaConfig configures the audit alert sink. No brokers disables Kafka.
type KafkaConfig struct {
	Brokers    []string
	AlertTopic string
}

// VerificationNode is one consensus participant: where to reach it and the
// address its acknowledgements must recover to.
type VerificationNode struct {
	URL     string
	Address string
}

type SyncConfig struct {
	Nodes []VerificationNode
	// LocalSignerKeys are hex secp256k1 keys for in-process signers, used
	// only when no Nodes are configured.
	LocalSignerKeys    []string
	TransparencyLogURL string
	ThresholdRequired  int
	SignatureTimeout   time.Duration
	MaxRetryAttempts   int
	MerkleTreeDepth    int
	QueueCapacity      int
	JobDeadline        time.Duration
	StaleAfter         time.Duration
	CleanupRetention   time.Duration
}

type AuthConfig struct {
	LockoutDuration    time.Duration
	LockoutMaxAttempts int
	BiometricThreshold float64
	TrustedIssuers     []string
}

type AuditConfig struct {
	Genesis       string
	FlushInterval time.Duration
	BufferSize    int
	RetentionDays int
}

func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

func DefaultPostgresConfig() PostgresConfig {
	return PostgresConfig{MaxOpenConns: 20, MaxIdleConns: 5}
}

func DefaultKafkaConfig() KafkaConfig {
	return KafkaConfig{AlertTopic: "fortis.audit.alerts"}
}

func DefaultSyncConfig() SyncConfig {
	return SyncConfig{
		ThresholdRequired: 2,
		SignatureTimeout:  30 * time.Second,
		MaxRetryAttempts:  3,
		MerkleTreeDepth:   20,
		QueueCapacity:     1024,
		JobDeadline:       10 * time.Minute,
		StaleAfter:        24 * time.Hour,
		CleanupRetention:  24 * time.Hour,
	}
}

// DefaultTrustedIssuers is the ICP-Brasil chain accepted for voter certificates.
var DefaultTrustedIssuers = []string{
	"ICP-Brasil",
	"AC Raiz v1",
	"AC Raiz v2",
	"AC Raiz v3",
	"AC Raiz v4",
	"AC Raiz v5",
}

func DefaultAuthConfig() AuthConfig {
	return AuthConfig{
		LockoutDuration:    300 * time.Second,
		LockoutMaxAttempts: 3,
		BiometricThreshold: 0.85,
		TrustedIssuers:     append([]string(nil), DefaultTrustedIssuers...),
	}
}

func DefaultAuditConfig() AuditConfig {
	return AuditConfig{
		Genesis:       "fortis-genesis",
		FlushInterval: time.Second,
		BufferSize:    256,
		RetentionDays: 365,
	}
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() (Server, error) {
	cfg := Server{
		Addr:              envOr("FORTIS_ADDR", ":8080"),
		LogLevel:          envOr("LOG_LEVEL", "info"),
		SessionSigningKey: os.Getenv("SESSION_SIGNING_KEY"),
		RollServiceURL:    os.Getenv("ROLL_SERVICE_URL"),
		AdminToken:        os.Getenv("ADMIN_TOKEN"),
		RequestTimeout:    30 * time.Second,
		Redis:             DefaultRedisConfig(),
		Postgres:          DefaultPostgresConfig(),
		Kafka:             DefaultKafkaConfig(),
		Sync:              DefaultSyncConfig(),
		Auth:              DefaultAuthConfig(),
		Audit:             DefaultAuditConfig(),
	}
	if cfg.SessionSigningKey == "" {
		// development default, must be overridden in production
		cfg.SessionSigningKey = "dev-session-key-change-in-production"
	}

	cfg.Redis.URL = os.Getenv("REDIS_URL")
	cfg.Postgres.URL = os.Getenv("DATABASE_URL")
	cfg.Kafka.Brokers = platformstrings.SplitList(os.Getenv("KAFKA_BROKERS"), ",")
	cfg.Kafka.AlertTopic = envOr("AUDIT_ALERT_TOPIC", cfg.Kafka.AlertTopic)
	cfg.Sync.TransparencyLogURL = os.Getenv("TRANSPARENCY_LOG_URL")
	cfg.Sync.LocalSignerKeys = platformstrings.SplitList(os.Getenv("LOCAL_SIGNER_KEYS"), ",")
	cfg.Audit.Genesis = envOr("AUDIT_GENESIS", cfg.Audit.Genesis)

	nodes, err := ParseNodes(os.Getenv("VERIFICATION_NODES"))
	if err != nil {
		return Server{}, err
	}
	cfg.Sync.Nodes = nodes

	ints := []struct {
		key string
		dst *int
	}{
		{"THRESHOLD_REQUIRED", &cfg.Sync.ThresholdRequired},
		{"MAX_RETRY_ATTEMPTS", &cfg.Sync.MaxRetryAttempts},
		{"MERKLE_TREE_DEPTH", &cfg.Sync.MerkleTreeDepth},
		{"SYNC_QUEUE_CAPACITY", &cfg.Sync.QueueCapacity},
		{"LOCKOUT_MAX_ATTEMPTS", &cfg.Auth.LockoutMaxAttempts},
		{"AUDIT_RETENTION_DAYS", &cfg.Audit.RetentionDays},
	}
	for _, e := range ints {
		if err := envInt(e.key, e.dst); err != nil {
			return Server{}, err
		}
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"SIGNATURE_TIMEOUT", &cfg.Sync.SignatureTimeout},
		{"SYNC_JOB_DEADLINE", &cfg.Sync.JobDeadline},
		{"SYNC_STALE_AFTER", &cfg.Sync.StaleAfter},
		{"SYNC_CLEANUP_RETENTION", &cfg.Sync.CleanupRetention},
		{"REQUEST_TIMEOUT", &cfg.RequestTimeout},
		{"LOCKOUT_DURATION", &cfg.Auth.LockoutDuration},
		{"AUDIT_FLUSH_INTERVAL", &cfg.Audit.FlushInterval},
	}
	for _, e := range durations {
		if err := envDuration(e.key, e.dst); err != nil {
			return Server{}, err
		}
	}

	if v := os.Getenv("BIOMETRIC_THRESHOLD"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 || f > 1 {
			return Server{}, fmt.Errorf("BIOMETRIC_THRESHOLD must be a number in [0,1], got %q", v)
		}
		cfg.Auth.BiometricThreshold = f
	}

	if cfg.Sync.ThresholdRequired < 1 {
		return Server{}, fmt.Errorf("THRESHOLD_REQUIRED must be at least 1")
	}
	if n := len(cfg.Sync.Nodes); n > 0 && cfg.Sync.ThresholdRequired > n {
		return Server{}, fmt.Errorf("THRESHOLD_REQUIRED (%d) exceeds configured nodes (%d)", cfg.Sync.ThresholdRequired, n)
	}
	return cfg, nil
}

// ParseNodes reads a comma separated list of url|address pairs.
func ParseNodes(raw string) ([]VerificationNode, error) {
	var nodes []VerificationNode
	for _, item := range platformstrings.SplitList(raw, ",") {
		url, addr, ok := strings.Cut(item, "|")
		if !ok || url == "" || addr == "" {
			return nil, fmt.Errorf("invalid verification node %q: want url|address", item)
		}
		nodes = append(nodes, VerificationNode{URL: url, Address: addr})
	}
	return nodes, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, dst *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s must be an integer: %w", key, err)
	}
	*dst = n
	return nil
}

// envDuration accepts Go durations ("30s") or bare seconds ("300").
func envDuration(key string, dst *time.Duration) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	if secs, err := strconv.Atoi(v); err == nil {
		*dst = time.Duration(secs) * time.Second
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s must be a duration: %w", key, err)
	}
	*dst = d
	return nil
}
