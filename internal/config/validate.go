package config

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Validate performs business-rule validation on the loaded configuration.
// It must be called after loading; Load calls it automatically.
func (c *Config) Validate() error {
	if err := c.Crypto.validate(); err != nil {
		return fmt.Errorf("crypto: %w", err)
	}
	if err := c.Embedding.validate(); err != nil {
		return fmt.Errorf("embedding: %w", err)
	}
	if c.Lock.TTL <= 0 {
		return fmt.Errorf("lock.ttl must be > 0 (got %s)", c.Lock.TTL)
	}
	if c.Redis.URL != "" && c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be > 0 when redis is configured (got %s)", c.Cache.TTL)
	}
	if err := c.Reclaim.validate(); err != nil {
		return fmt.Errorf("reclaim: %w", err)
	}
	if err := c.Search.validate(); err != nil {
		return fmt.Errorf("search: %w", err)
	}
	return nil
}

func (c CryptoConfig) validate() error {
	key, err := hex.DecodeString(c.MasterKeyHex)
	if err != nil {
		return fmt.Errorf("master_key must be hex: %w", err)
	}
	if len(key) != 32 {
		return fmt.Errorf("master_key must be 32 bytes (got %d)", len(key))
	}
	return nil
}

func (e EmbeddingConfig) validate() error {
	switch strings.ToLower(e.Provider) {
	case "hashing":
	case "http":
		if e.URL == "" {
			return fmt.Errorf("url is required for the http provider")
		}
	default:
		return fmt.Errorf("unknown provider %q (want hashing or http)", e.Provider)
	}
	if e.Dimensions != 384 {
		return fmt.Errorf("dimensions must be 384 (got %d)", e.Dimensions)
	}
	if e.Timeout <= 0 {
		return fmt.Errorf("timeout must be > 0 (got %s)", e.Timeout)
	}
	if e.RatePerSec <= 0 {
		return fmt.Errorf("rate_per_sec must be > 0 (got %v)", e.RatePerSec)
	}
	return nil
}

func (r ReclaimConfig) validate() error {
	if r.Interval <= 0 {
		return fmt.Errorf("interval must be > 0 (got %s)", r.Interval)
	}
	if r.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be > 0 (got %d)", r.BatchSize)
	}
	if r.ReconcileEvery < 0 {
		return fmt.Errorf("reconcile_every must be >= 0 (got %d)", r.ReconcileEvery)
	}
	return nil
}

func (s SearchConfig) validate() error {
	if s.MaxLimit <= 0 {
		return fmt.Errorf("max_limit must be > 0 (got %d)", s.MaxLimit)
	}
	if s.DefaultLimit <= 0 || s.DefaultLimit > s.MaxLimit {
		return fmt.Errorf("default_limit must be in 1..%d (got %d)", s.MaxLimit, s.DefaultLimit)
	}
	if s.SuggestionLimit <= 0 {
		return fmt.Errorf("suggestion_limit must be > 0 (got %d)", s.SuggestionLimit)
	}
	if s.SuggestionCandidates < s.SuggestionLimit {
		return fmt.Errorf("suggestion_candidates must be >= suggestion_limit (got %d)", s.SuggestionCandidates)
	}
	return nil
}
