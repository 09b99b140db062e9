package record

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/heartmarshall/recordreview-backend/internal/domain"
	"github.com/heartmarshall/recordreview-backend/internal/metrics"
)

// ---------------------------------------------------------------------------
// Manual mocks (moq-style with func fields)
// ---------------------------------------------------------------------------

type mockRecordRepo struct {
	CreateFunc             func(ctx context.Context, rec *domain.Record, emb domain.Embedding) (*domain.Record, error)
	GetByIDFunc            func(ctx context.Context, id uuid.UUID) (*domain.Record, error)
	GetByIDForUpdateFunc   func(ctx context.Context, id uuid.UUID) (*domain.Record, error)
	AcquireLockFunc        func(ctx context.Context, id uuid.UUID, holder string, now, staleBefore time.Time) (*domain.Record, *domain.Lock, bool, error)
	ReleaseLockFunc        func(ctx context.Context, id uuid.UUID, caller string, now time.Time) (*domain.Record, bool, error)
	ForceReleaseLockFunc   func(ctx context.Context, id uuid.UUID, observed domain.Lock, now time.Time) (*domain.Record, bool, error)
	ReviewFunc             func(ctx context.Context, id uuid.UUID, reviewer string, status domain.RecordStatus, now, staleBefore time.Time) (*domain.Record, bool, error)
	AssignFunc             func(ctx context.Context, id uuid.UUID, assignee *string, now time.Time) (*domain.Record, error)
	UpdateFieldsFunc       func(ctx context.Context, id uuid.UUID, editor string, params domain.RecordUpdateParams, now, staleBefore time.Time) (*domain.Record, bool, error)
	ListAssignedFunc       func(ctx context.Context, assignee string, statuses []domain.RecordStatus, limit, offset int) ([]domain.Record, int, error)
	SearchByTokenFunc      func(ctx context.Context, q domain.TokenSearch) (*domain.RecordPage, error)
	NearestByEmbeddingFunc func(ctx context.Context, emb domain.Embedding, assignee *string, k int) ([]domain.Record, error)
}

func (m *mockRecordRepo) Create(ctx context.Context, rec *domain.Record, emb domain.Embedding) (*domain.Record, error) {
	return m.CreateFunc(ctx, rec, emb)
}

func (m *mockRecordRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Record, error) {
	return m.GetByIDFunc(ctx, id)
}

func (m *mockRecordRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Record, error) {
	return m.GetByIDForUpdateFunc(ctx, id)
}

func (m *mockRecordRepo) AcquireLock(ctx context.Context, id uuid.UUID, holder string, now, staleBefore time.Time) (*domain.Record, *domain.Lock, bool, error) {
	return m.AcquireLockFunc(ctx, id, holder, now, staleBefore)
}

func (m *mockRecordRepo) ReleaseLock(ctx context.Context, id uuid.UUID, caller string, now time.Time) (*domain.Record, bool, error) {
	return m.ReleaseLockFunc(ctx, id, caller, now)
}

func (m *mockRecordRepo) ForceReleaseLock(ctx context.Context, id uuid.UUID, observed domain.Lock, now time.Time) (*domain.Record, bool, error) {
	return m.ForceReleaseLockFunc(ctx, id, observed, now)
}

func (m *mockRecordRepo) Review(ctx context.Context, id uuid.UUID, reviewer string, status domain.RecordStatus, now, staleBefore time.Time) (*domain.Record, bool, error) {
	return m.ReviewFunc(ctx, id, reviewer, status, now, staleBefore)
}

func (m *mockRecordRepo) Assign(ctx context.Context, id uuid.UUID, assignee *string, now time.Time) (*domain.Record, error) {
	return m.AssignFunc(ctx, id, assignee, now)
}

func (m *mockRecordRepo) UpdateFields(ctx context.Context, id uuid.UUID, editor string, params domain.RecordUpdateParams, now, staleBefore time.Time) (*domain.Record, bool, error) {
	return m.UpdateFieldsFunc(ctx, id, editor, params, now, staleBefore)
}

func (m *mockRecordRepo) ListAssigned(ctx context.Context, assignee string, statuses []domain.RecordStatus, limit, offset int) ([]domain.Record, int, error) {
	return m.ListAssignedFunc(ctx, assignee, statuses, limit, offset)
}

func (m *mockRecordRepo) SearchByToken(ctx context.Context, q domain.TokenSearch) (*domain.RecordPage, error) {
	return m.SearchByTokenFunc(ctx, q)
}

func (m *mockRecordRepo) NearestByEmbedding(ctx context.Context, emb domain.Embedding, assignee *string, k int) ([]domain.Record, error) {
	return m.NearestByEmbeddingFunc(ctx, emb, assignee, k)
}

type mockOperatorRepo struct {
	GetByUsernameFunc  func(ctx context.Context, username string) (*domain.Operator, error)
	AdjustAssignedFunc func(ctx context.Context, username string, delta int) error
}

func (m *mockOperatorRepo) GetByUsername(ctx context.Context, username string) (*domain.Operator, error) {
	return m.GetByUsernameFunc(ctx, username)
}

func (m *mockOperatorRepo) AdjustAssigned(ctx context.Context, username string, delta int) error {
	return m.AdjustAssignedFunc(ctx, username, delta)
}

// mockAuditRepo keeps appended entries unless AppendFunc is set.
type mockAuditRepo struct {
	AppendFunc       func(ctx context.Context, entry domain.AuditEntry) error
	ListByRecordFunc func(ctx context.Context, recordID uuid.UUID, limit int) ([]domain.AuditEntry, error)

	mu      sync.Mutex
	entries []domain.AuditEntry
}

func (m *mockAuditRepo) Append(ctx context.Context, entry domain.AuditEntry) error {
	if m.AppendFunc != nil {
		return m.AppendFunc(ctx, entry)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockAuditRepo) ListByRecord(ctx context.Context, recordID uuid.UUID, limit int) ([]domain.AuditEntry, error) {
	return m.ListByRecordFunc(ctx, recordID, limit)
}

func (m *mockAuditRepo) Entries() []domain.AuditEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.AuditEntry(nil), m.entries...)
}

type mockTxManager struct {
	RunInTxFunc func(ctx context.Context, fn func(ctx context.Context) error) error
}

func (m *mockTxManager) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.RunInTxFunc != nil {
		return m.RunInTxFunc(ctx, fn)
	}
	// Default: pass-through (no real transaction).
	return fn(ctx)
}

type mockEmbedder struct {
	EmbedFunc func(ctx context.Context, text string) (domain.Embedding, error)

	mu    sync.Mutex
	texts []string
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) (domain.Embedding, error) {
	m.mu.Lock()
	m.texts = append(m.texts, text)
	m.mu.Unlock()
	if m.EmbedFunc != nil {
		return m.EmbedFunc(ctx, text)
	}
	return unitEmbedding(), nil
}

func (m *mockEmbedder) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.texts...)
}

// mockCache mirrors the generation check of the Redis cache.
type mockCache struct {
	mu          sync.Mutex
	records     map[uuid.UUID]*domain.Record
	gens        map[uuid.UUID]int64
	invalidated []uuid.UUID
}

func newMockCache() *mockCache {
	return &mockCache{records: map[uuid.UUID]*domain.Record{}, gens: map[uuid.UUID]int64{}}
}

func (m *mockCache) Get(_ context.Context, id uuid.UUID) (*domain.Record, int64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	return rec, m.gens[id], ok
}

func (m *mockCache) Set(_ context.Context, rec *domain.Record, gen int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gens[rec.ID] != gen {
		return
	}
	m.records[rec.ID] = rec
}

func (m *mockCache) Invalidate(_ context.Context, id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, id)
	m.gens[id]++
	m.invalidated = append(m.invalidated, id)
}

func (m *mockCache) Cached(id uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.records[id]
	return ok
}

func (m *mockCache) Invalidated() []uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]uuid.UUID(nil), m.invalidated...)
}

// fakeCodec marks ciphertexts with a prefix; anything else fails to decrypt.
type fakeCodec struct{}

const ctPrefix = "ct:"

func (fakeCodec) Encrypt(plaintext string) (domain.EncryptedField, error) {
	return domain.EncryptedField{Ciphertext: ctPrefix + plaintext, Token: fakeCodec{}.SearchToken(plaintext)}, nil
}

func (fakeCodec) Decrypt(ciphertext string) (string, error) {
	if !strings.HasPrefix(ciphertext, ctPrefix) {
		return "", domain.ErrDecryptionFailed
	}
	return strings.TrimPrefix(ciphertext, ctPrefix), nil
}

func (fakeCodec) SearchToken(term string) string {
	return "tok:" + domain.NormalizeText(term)
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

var (
	alice = domain.Identity{Username: "alice", Role: domain.RoleAgent}
	bob   = domain.Identity{Username: "bob", Role: domain.RoleAgent}
	admin = domain.Identity{Username: "root", Role: domain.RoleAdmin}
)

var errDB = errors.New("db down")

type testDeps struct {
	records   *mockRecordRepo
	operators *mockOperatorRepo
	audit     *mockAuditRepo
	tx        *mockTxManager
	embedder  *mockEmbedder
	cache     *mockCache
	metrics   *metrics.Metrics
}

func newDeps() *testDeps {
	return &testDeps{
		records:   &mockRecordRepo{},
		operators: &mockOperatorRepo{},
		audit:     &mockAuditRepo{},
		tx:        &mockTxManager{},
		embedder:  &mockEmbedder{},
		cache:     newMockCache(),
		metrics:   metrics.New(prometheus.NewRegistry()),
	}
}

func testConfig() Config {
	return Config{
		LockTTL:              10 * time.Minute,
		EmbedTimeout:         time.Second,
		DefaultSearchLimit:   10,
		MaxSearchLimit:       100,
		DefaultSuggestions:   10,
		SuggestionCandidates: 30,
	}
}

func newTestService(d *testDeps) *Service {
	svc := NewService(slog.Default(), d.records, d.operators, d.audit, d.tx, fakeCodec{}, d.embedder, d.cache, d.metrics, testConfig())
	svc.clock = func() time.Time { return t0 }
	return svc
}

func ptrString(s string) *string { return &s }

func unitEmbedding() domain.Embedding {
	emb := make(domain.Embedding, domain.EmbeddingDimensions)
	emb[0] = 1
	return emb
}

func encrypted(plain string) domain.EncryptedField {
	f, _ := fakeCodec{}.Encrypt(plain)
	return f
}

// pendingRecord returns an unlocked PENDING record assigned to assignee.
func pendingRecord(assignee string) *domain.Record {
	rec := &domain.Record{
		ID:              uuid.New(),
		PropertyAddress: encrypted("12 Main St"),
		BorrowerName:    encrypted("Jane Doe"),
		ParcelID:        encrypted("P-100"),
		LoanAmount:      200000,
		SalePrice:       250000,
		DownPayment:     50000,
		TransactionDate: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		Status:          domain.RecordStatusPending,
		EnteredBy:       "root",
		CreatedAt:       t0.Add(-time.Hour),
		UpdatedAt:       t0.Add(-time.Hour),
	}
	if assignee != "" {
		rec.AssignedTo = ptrString(assignee)
	}
	return rec
}

// withLock returns a copy of rec held by holder since at.
func withLock(rec *domain.Record, holder string, at time.Time) *domain.Record {
	cp := *rec
	cp.Lock = &domain.Lock{Holder: holder, AcquiredAt: at}
	return &cp
}

// getByID serves rec from a mock repo.
func getByID(rec *domain.Record) func(context.Context, uuid.UUID) (*domain.Record, error) {
	return func(_ context.Context, id uuid.UUID) (*domain.Record, error) {
		if id != rec.ID {
			return nil, domain.ErrNotFound
		}
		return rec, nil
	}
}
