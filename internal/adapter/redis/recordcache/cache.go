// Package recordcache caches encrypted record rows in Redis. Entries hold
// ciphertexts and search tokens only, never plaintext. Every failure is
// logged and treated as a miss so the database stays authoritative.
//
// Each record has a generation counter next to its entry. Invalidate bumps
// it, and Set only stores a row if the generation still matches the one Get
// returned on the miss. A row read before a concurrent write therefore never
// lands in the cache after that write's invalidation.
package recordcache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/heartmarshall/recordreview-backend/internal/domain"
)

const (
	keyPrefix = "record:"
	genSuffix = ":gen"

	// genTTLFactor keeps generation keys alive well past the entries they
	// guard, so a fill in flight cannot see a counter reset.
	genTTLFactor = 4
)

// noFill never matches a stored generation, so Set discards the row.
const noFill int64 = -1

// Cache is a read-through helper around a Redis client. A nil *Cache is a
// valid, always-missing cache.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	log    *slog.Logger
}

// New creates a Cache. Returns nil when client is nil so callers can wire an
// unconfigured Redis without branching.
func New(client *redis.Client, ttl time.Duration, logger *slog.Logger) *Cache {
	if client == nil {
		return nil
	}
	return &Cache{
		client: client,
		ttl:    ttl,
		log:    logger.With("adapter", "recordcache"),
	}
}

func key(id uuid.UUID) string {
	return keyPrefix + id.String()
}

func genKey(id uuid.UUID) string {
	return keyPrefix + id.String() + genSuffix
}

// errGenerationMoved aborts a fill whose generation was bumped.
var errGenerationMoved = errors.New("generation moved")

// Get returns the cached record. On a miss it returns the current generation,
// which the caller passes to Set after reading the row from the database.
func (c *Cache) Get(ctx context.Context, id uuid.UUID) (*domain.Record, int64, bool) {
	if c == nil {
		return nil, 0, false
	}

	vals, err := c.client.MGet(ctx, key(id), genKey(id)).Result()
	if err != nil {
		c.log.WarnContext(ctx, "cache get failed", slog.String("record_id", id.String()), slog.String("error", err.Error()))
		return nil, 0, false
	}

	gen, err := parseGeneration(vals[1])
	if err != nil {
		c.log.WarnContext(ctx, "cache generation corrupt", slog.String("record_id", id.String()), slog.String("error", err.Error()))
		if err := c.client.Del(ctx, key(id), genKey(id)).Err(); err != nil {
			c.log.WarnContext(ctx, "cache invalidate failed", slog.String("record_id", id.String()), slog.String("error", err.Error()))
		}
		return nil, noFill, false
	}

	raw, ok := vals[0].(string)
	if !ok {
		return nil, gen, false
	}

	var entry cachedRecord
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		c.log.WarnContext(ctx, "cache entry corrupt", slog.String("record_id", id.String()), slog.String("error", err.Error()))
		c.Invalidate(ctx, id)
		return nil, noFill, false
	}
	return entry.toDomain(), gen, true
}

// Set stores rec with the configured TTL, unless the record was invalidated
// since the miss that returned gen.
func (c *Cache) Set(ctx context.Context, rec *domain.Record, gen int64) {
	if c == nil || rec == nil {
		return
	}

	raw, err := json.Marshal(fromDomain(rec))
	if err != nil {
		c.log.WarnContext(ctx, "cache encode failed", slog.String("record_id", rec.ID.String()), slog.String("error", err.Error()))
		return
	}

	gk := genKey(rec.ID)
	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, gk).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		stored, err := parseGeneration(nilIfMissing(cur, err))
		if err != nil {
			return err
		}
		if stored != gen {
			return errGenerationMoved
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key(rec.ID), raw, c.ttl)
			return nil
		})
		return err
	}, gk)

	switch {
	case err == nil:
	case errors.Is(err, errGenerationMoved), errors.Is(err, redis.TxFailedErr):
		c.log.DebugContext(ctx, "cache fill skipped, record changed", slog.String("record_id", rec.ID.String()))
	default:
		c.log.WarnContext(ctx, "cache set failed", slog.String("record_id", rec.ID.String()), slog.String("error", err.Error()))
	}
}

// Invalidate drops the entry for id and bumps its generation.
func (c *Cache) Invalidate(ctx context.Context, id uuid.UUID) {
	if c == nil {
		return
	}
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key(id))
		pipe.Incr(ctx, genKey(id))
		pipe.Expire(ctx, genKey(id), c.ttl*genTTLFactor)
		return nil
	})
	if err != nil {
		c.log.WarnContext(ctx, "cache invalidate failed", slog.String("record_id", id.String()), slog.String("error", err.Error()))
	}
}

func nilIfMissing(v string, err error) any {
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return v
}

func parseGeneration(v any) (int64, error) {
	s, ok := v.(string)
	if !ok {
		return 0, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return n, nil
}
