package config

import (
	"encoding/hex"
	"time"
)

// Config is the root application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Crypto    CryptoConfig    `yaml:"crypto"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Lock      LockConfig      `yaml:"lock"`
	Reclaim   ReclaimConfig   `yaml:"reclaim"`
	Search    SearchConfig    `yaml:"search"`
	Cache     CacheConfig     `yaml:"cache"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig holds settings of the operational HTTP listener
// (health probes and metrics).
type ServerConfig struct {
	Host            string        `yaml:"host"             env:"SERVER_HOST"             env-default:"0.0.0.0"`
	Port            int           `yaml:"port"             env:"SERVER_PORT"             env-default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout"     env:"SERVER_READ_TIMEOUT"     env-default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout"    env:"SERVER_WRITE_TIMEOUT"    env-default:"30s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"10s"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"                env:"DATABASE_DSN"                env-required:"true"`
	MaxConns        int32         `yaml:"max_conns"          env:"DATABASE_MAX_CONNS"          env-default:"25"`
	MinConns        int32         `yaml:"min_conns"          env:"DATABASE_MIN_CONNS"          env-default:"5"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"  env:"DATABASE_MAX_CONN_LIFETIME"  env-default:"1h"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time" env:"DATABASE_MAX_CONN_IDLE_TIME" env-default:"30m"`
	MigrateOnStart  bool          `yaml:"migrate_on_start"   env:"DATABASE_MIGRATE_ON_START"   env-default:"false"`

	// StatementTimeout bounds every statement server-side; 0 leaves the
	// server default.
	StatementTimeout time.Duration `yaml:"statement_timeout" env:"DATABASE_STATEMENT_TIMEOUT" env-default:"30s"`
}

// RedisConfig holds the optional record cache connection. An empty URL
// disables caching.
type RedisConfig struct {
	URL          string        `yaml:"url"            env:"REDIS_URL"`
	PoolSize     int           `yaml:"pool_size"      env:"REDIS_POOL_SIZE"      env-default:"10"`
	MinIdleConns int           `yaml:"min_idle_conns" env:"REDIS_MIN_IDLE_CONNS" env-default:"2"`
	DialTimeout  time.Duration `yaml:"dial_timeout"   env:"REDIS_DIAL_TIMEOUT"   env-default:"5s"`
	ReadTimeout  time.Duration `yaml:"read_timeout"   env:"REDIS_READ_TIMEOUT"   env-default:"3s"`
	WriteTimeout time.Duration `yaml:"write_timeout"  env:"REDIS_WRITE_TIMEOUT"  env-default:"3s"`
}

// CryptoConfig holds the field encryption master key (64 hex characters).
type CryptoConfig struct {
	MasterKeyHex string `yaml:"master_key" env:"CRYPTO_MASTER_KEY" env-required:"true"`
}

// MasterKey decodes MasterKeyHex. Validate guarantees it succeeds.
func (c CryptoConfig) MasterKey() []byte {
	key, _ := hex.DecodeString(c.MasterKeyHex)
	return key
}

// EmbeddingConfig selects and tunes the semantic embedding provider.
type EmbeddingConfig struct {
	Provider   string        `yaml:"provider"    env:"EMBEDDING_PROVIDER"    env-default:"hashing"`
	URL        string        `yaml:"url"         env:"EMBEDDING_URL"`
	Model      string        `yaml:"model"       env:"EMBEDDING_MODEL"       env-default:"all-MiniLM-L6-v2"`
	Dimensions int           `yaml:"dimensions"  env:"EMBEDDING_DIMENSIONS"  env-default:"384"`
	Timeout    time.Duration `yaml:"timeout"     env:"EMBEDDING_TIMEOUT"     env-default:"5s"`
	RatePerSec float64       `yaml:"rate_per_sec" env:"EMBEDDING_RATE_PER_SEC" env-default:"20"`
	Burst      int           `yaml:"burst"       env:"EMBEDDING_BURST"       env-default:"5"`
}

// LockConfig holds the editing lease settings.
type LockConfig struct {
	TTL time.Duration `yaml:"ttl" env:"LOCK_TTL" env-default:"10m"`
}

// ReclaimConfig holds the reclamation scheduler settings.
type ReclaimConfig struct {
	Enabled        bool          `yaml:"enabled"         env:"RECLAIM_ENABLED"         env-default:"true"`
	Interval       time.Duration `yaml:"interval"        env:"RECLAIM_INTERVAL"        env-default:"10m"`
	BatchSize      int           `yaml:"batch_size"      env:"RECLAIM_BATCH_SIZE"      env-default:"500"`
	ReconcileEvery int           `yaml:"reconcile_every" env:"RECLAIM_RECONCILE_EVERY" env-default:"6"`
}

// SearchConfig holds paging limits for search operations.
type SearchConfig struct {
	DefaultLimit         int `yaml:"default_limit"          env:"SEARCH_DEFAULT_LIMIT"          env-default:"10"`
	MaxLimit             int `yaml:"max_limit"              env:"SEARCH_MAX_LIMIT"              env-default:"100"`
	SuggestionLimit      int `yaml:"suggestion_limit"       env:"SEARCH_SUGGESTION_LIMIT"       env-default:"10"`
	SuggestionCandidates int `yaml:"suggestion_candidates"  env:"SEARCH_SUGGESTION_CANDIDATES"  env-default:"30"`
}

// CacheConfig holds the record cache TTL.
type CacheConfig struct {
	TTL time.Duration `yaml:"ttl" env:"CACHE_TTL" env-default:"10m"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
}
