// Package record implements the record coordination engine: lease-based
// locking, field edits and reviews, assignment, search over encrypted fields
// and the audit trail that accompanies every mutation.
package record

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/recordreview-backend/internal/domain"
	"github.com/heartmarshall/recordreview-backend/internal/metrics"
)

type recordRepo interface {
	Create(ctx context.Context, rec *domain.Record, emb domain.Embedding) (*domain.Record, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Record, error)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Record, error)

	AcquireLock(ctx context.Context, id uuid.UUID, holder string, now, staleBefore time.Time) (*domain.Record, *domain.Lock, bool, error)
	ReleaseLock(ctx context.Context, id uuid.UUID, caller string, now time.Time) (*domain.Record, bool, error)
	ForceReleaseLock(ctx context.Context, id uuid.UUID, observed domain.Lock, now time.Time) (*domain.Record, bool, error)

	Review(ctx context.Context, id uuid.UUID, reviewer string, status domain.RecordStatus, now, staleBefore time.Time) (*domain.Record, bool, error)
	Assign(ctx context.Context, id uuid.UUID, assignee *string, now time.Time) (*domain.Record, error)
	UpdateFields(ctx context.Context, id uuid.UUID, editor string, params domain.RecordUpdateParams, now, staleBefore time.Time) (*domain.Record, bool, error)

	ListAssigned(ctx context.Context, assignee string, statuses []domain.RecordStatus, limit, offset int) ([]domain.Record, int, error)
	SearchByToken(ctx context.Context, q domain.TokenSearch) (*domain.RecordPage, error)
	NearestByEmbedding(ctx context.Context, emb domain.Embedding, assignee *string, k int) ([]domain.Record, error)
}

type operatorRepo interface {
	GetByUsername(ctx context.Context, username string) (*domain.Operator, error)
	AdjustAssigned(ctx context.Context, username string, delta int) error
}

type auditRepo interface {
	Append(ctx context.Context, entry domain.AuditEntry) error
	ListByRecord(ctx context.Context, recordID uuid.UUID, limit int) ([]domain.AuditEntry, error)
}

type fieldCodec interface {
	Encrypt(plaintext string) (domain.EncryptedField, error)
	Decrypt(ciphertext string) (string, error)
	SearchToken(term string) string
}

type embedder interface {
	Embed(ctx context.Context, text string) (domain.Embedding, error)
}

// recordCache is read-through. Get reports the generation seen on a miss and
// Set drops the row if Invalidate ran since.
type recordCache interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.Record, int64, bool)
	Set(ctx context.Context, rec *domain.Record, gen int64)
	Invalidate(ctx context.Context, id uuid.UUID)
}

type txManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

const (
	// MaxSuggestions caps SearchSemantic results.
	MaxSuggestions = 50

	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// Config holds the tunables of the record service.
type Config struct {
	LockTTL              time.Duration
	EmbedTimeout         time.Duration
	DefaultSearchLimit   int
	MaxSearchLimit       int
	DefaultSuggestions   int
	SuggestionCandidates int
}

// Service coordinates record mutations, reads and searches.
type Service struct {
	records   recordRepo
	operators operatorRepo
	audit     auditRepo
	tx        txManager
	codec     fieldCodec
	embedder  embedder
	cache     recordCache
	metrics   *metrics.Metrics
	cfg       Config
	clock     func() time.Time
	log       *slog.Logger
}

// NewService creates a new record service. cache may be nil.
func NewService(
	log *slog.Logger,
	records recordRepo,
	operators operatorRepo,
	audit auditRepo,
	tx txManager,
	codec fieldCodec,
	emb embedder,
	cache recordCache,
	m *metrics.Metrics,
	cfg Config,
) *Service {
	if cache == nil {
		cache = noopCache{}
	}
	return &Service{
		records:   records,
		operators: operators,
		audit:     audit,
		tx:        tx,
		codec:     codec,
		embedder:  emb,
		cache:     cache,
		metrics:   m,
		cfg:       cfg,
		clock:     func() time.Time { return time.Now().UTC() },
		log:       log.With("service", "record"),
	}
}

// staleBefore is the lease start time before which a lock has expired.
func (s *Service) staleBefore(now time.Time) time.Time {
	return now.Add(-s.cfg.LockTTL)
}

type noopCache struct{}

func (noopCache) Get(context.Context, uuid.UUID) (*domain.Record, int64, bool) { return nil, 0, false }
func (noopCache) Set(context.Context, *domain.Record, int64)                   {}
func (noopCache) Invalidate(context.Context, uuid.UUID)                        {}
