package recordcache_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/heartmarshall/recordreview-backend/internal/adapter/redis/recordcache"
	"github.com/heartmarshall/recordreview-backend/internal/domain"
)

var (
	redisOnce sync.Once
	redisURL  string
	redisErr  error
)

// setupRedis starts one redis container for the package and returns a client
// connected to it. Skipped in -short mode.
func setupRedis(t *testing.T) *redis.Client {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping redis test in short mode")
	}

	redisOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
		defer cancel()

		container, err := tcredis.Run(ctx, "redis:7-alpine")
		if err != nil {
			redisErr = err
			return
		}
		redisURL, redisErr = container.ConnectionString(ctx)
	})
	if redisErr != nil {
		t.Fatalf("failed to start redis container: %v", redisErr)
	}

	opts, err := redis.ParseURL(redisURL)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleRecord() *domain.Record {
	alice := "alice"
	at := time.Date(2024, 4, 2, 10, 0, 0, 0, time.UTC)
	return &domain.Record{
		ID:              uuid.New(),
		PropertyAddress: domain.EncryptedField{Ciphertext: "v1:addr", Token: "t-addr"},
		BorrowerName:    domain.EncryptedField{Ciphertext: "v1:name", Token: "t-name"},
		ParcelID:        domain.EncryptedField{Ciphertext: "v1:apn", Token: "t-apn"},
		LoanAmount:      1,
		SalePrice:       2,
		DownPayment:     3,
		TransactionDate: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		Status:          domain.RecordStatusPending,
		AssignedTo:      &alice,
		EnteredBy:       "importer",
		Lock:            &domain.Lock{Holder: alice, AcquiredAt: at},
		CreatedAt:       at,
		UpdatedAt:       at,
	}
}

func TestCache_RoundTrip(t *testing.T) {
	t.Parallel()
	client := setupRedis(t)
	cache := recordcache.New(client, time.Minute, newTestLogger())
	ctx := context.Background()

	rec := sampleRecord()
	_, gen, ok := cache.Get(ctx, rec.ID)
	assert.False(t, ok, "empty cache must miss")
	assert.Zero(t, gen)

	cache.Set(ctx, rec, gen)

	got, _, ok := cache.Get(ctx, rec.ID)
	require.True(t, ok)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, rec.PropertyAddress, got.PropertyAddress)
	assert.Equal(t, *rec.AssignedTo, *got.AssignedTo)
	require.NotNil(t, got.Lock)
	assert.True(t, rec.Lock.AcquiredAt.Equal(got.Lock.AcquiredAt))

	raw, err := client.Get(ctx, "record:"+rec.ID.String()).Result()
	require.NoError(t, err)
	assert.NotContains(t, raw, "Main", "payload holds ciphertexts only")

	ttl, err := client.TTL(ctx, "record:"+rec.ID.String()).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	cache.Invalidate(ctx, rec.ID)
	_, gen, ok = cache.Get(ctx, rec.ID)
	assert.False(t, ok)
	assert.Equal(t, int64(1), gen)
}

func TestCache_FillAfterInvalidateIsDropped(t *testing.T) {
	t.Parallel()
	client := setupRedis(t)
	cache := recordcache.New(client, time.Minute, newTestLogger())
	ctx := context.Background()

	stale := sampleRecord()

	// Reader misses and reads the row; a writer commits and invalidates
	// before the reader fills.
	_, gen, ok := cache.Get(ctx, stale.ID)
	require.False(t, ok)
	cache.Invalidate(ctx, stale.ID)
	cache.Set(ctx, stale, gen)

	_, _, ok = cache.Get(ctx, stale.ID)
	assert.False(t, ok, "fill from before the invalidation is dropped")

	// The next reader fills normally.
	_, gen, ok = cache.Get(ctx, stale.ID)
	require.False(t, ok)
	fresh := sampleRecord()
	fresh.ID = stale.ID
	bob := "bob"
	fresh.AssignedTo = &bob
	cache.Set(ctx, fresh, gen)

	got, _, ok := cache.Get(ctx, stale.ID)
	require.True(t, ok)
	assert.Equal(t, "bob", *got.AssignedTo)

	ttl, err := client.TTL(ctx, "record:"+stale.ID.String()+":gen").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Minute, "generation outlives the entry")
}

func TestCache_CorruptEntryIsMiss(t *testing.T) {
	t.Parallel()
	client := setupRedis(t)
	cache := recordcache.New(client, time.Minute, newTestLogger())
	ctx := context.Background()

	id := uuid.New()
	require.NoError(t, client.Set(ctx, "record:"+id.String(), "{not json", time.Minute).Err())

	_, _, ok := cache.Get(ctx, id)
	assert.False(t, ok)

	exists, err := client.Exists(ctx, "record:"+id.String()).Result()
	require.NoError(t, err)
	assert.Zero(t, exists, "corrupt entry is dropped")
}

func TestCache_NilIsNoop(t *testing.T) {
	t.Parallel()

	cache := recordcache.New(nil, time.Minute, newTestLogger())
	assert.Nil(t, cache)

	ctx := context.Background()
	rec := sampleRecord()
	cache.Set(ctx, rec, 0)
	cache.Invalidate(ctx, rec.ID)
	_, _, ok := cache.Get(ctx, rec.ID)
	assert.False(t, ok)
}
