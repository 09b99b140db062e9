//go:build e2e

package e2e_test

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/heartmarshall/recordreview-backend/internal/adapter/postgres"
	"github.com/heartmarshall/recordreview-backend/internal/adapter/postgres/audit"
	"github.com/heartmarshall/recordreview-backend/internal/adapter/postgres/operator"
	recordrepo "github.com/heartmarshall/recordreview-backend/internal/adapter/postgres/record"
	"github.com/heartmarshall/recordreview-backend/internal/adapter/postgres/testhelper"
	"github.com/heartmarshall/recordreview-backend/internal/adapter/provider/embedding"
	"github.com/heartmarshall/recordreview-backend/internal/crypto/fieldcodec"
	"github.com/heartmarshall/recordreview-backend/internal/domain"
	"github.com/heartmarshall/recordreview-backend/internal/metrics"
	"github.com/heartmarshall/recordreview-backend/internal/service/balancer"
	"github.com/heartmarshall/recordreview-backend/internal/service/reclaim"
	"github.com/heartmarshall/recordreview-backend/internal/service/record"
)

// testEnv is the engine wired against a real database, without a cache.
type testEnv struct {
	pool      *pgxpool.Pool
	records   *record.Service
	scheduler *reclaim.Scheduler
	operators *operator.Repo
	metrics   *metrics.Metrics
	logs      *bytes.Buffer
}

func setupEnv(t *testing.T, lockTTL time.Duration) *testEnv {
	t.Helper()

	pool := testhelper.SetupTestDB(t)

	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	codec, err := fieldcodec.New(bytes.Repeat([]byte{0x42}, 32))
	require.NoError(t, err)

	m := metrics.New(prometheus.NewRegistry())
	records := recordrepo.New(pool)
	auditRepo := audit.New(pool)
	operators := operator.New(pool)
	tx := postgres.NewTxManager(pool)

	svc := record.NewService(logger, records, operators, auditRepo, tx, codec,
		embedding.NewHashingEmbedder(domain.EmbeddingDimensions), nil, m, record.Config{
			LockTTL:              lockTTL,
			EmbedTimeout:         5 * time.Second,
			DefaultSearchLimit:   10,
			MaxSearchLimit:       100,
			DefaultSuggestions:   10,
			SuggestionCandidates: 30,
		})

	sched := reclaim.NewScheduler(logger, records, svc, operators, balancer.New(logger, operators), auditRepo, nil, tx, m, reclaim.Config{
		Interval:  time.Hour,
		LockTTL:   lockTTL,
		BatchSize: 100,
	})

	return &testEnv{
		pool:      pool,
		records:   svc,
		scheduler: sched,
		operators: operators,
		metrics:   m,
		logs:      &logs,
	}
}

func agent(op domain.Operator) domain.Identity {
	return domain.Identity{Username: op.Username, Role: domain.RoleAgent}
}

func adminOf(op domain.Operator) domain.Identity {
	return domain.Identity{Username: op.Username, Role: domain.RoleAdmin}
}

func createInput(addr, name, parcel string, assignee *string) record.CreateRecordInput {
	return record.CreateRecordInput{
		PropertyAddress: addr,
		BorrowerName:    name,
		ParcelID:        parcel,
		LoanAmount:      200000,
		SalePrice:       250000,
		DownPayment:     50000,
		TransactionDate: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		AssignedTo:      assignee,
	}
}

func ptr[T any](v T) *T { return &v }

func actions(entries []domain.AuditEntry) []domain.AuditAction {
	out := make([]domain.AuditAction, len(entries))
	for i, e := range entries {
		out[i] = e.Action
	}
	return out
}

func updateParcel(id uuid.UUID) record.UpdateFieldsInput {
	return record.UpdateFieldsInput{RecordID: id, ParcelID: ptr("X-1")}
}
