package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heartmarshall/recordreview-backend/internal/domain"
)

func newMockRepo(t *testing.T) (*Repo, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return New(mock), mock
}

func TestRepo_Append_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		entry     domain.AuditEntry
		wantField string
	}{
		{
			name:      "missing record id",
			entry:     domain.AuditEntry{Actor: "alice", Action: domain.AuditActionEdit},
			wantField: "record_id",
		},
		{
			name:      "missing actor",
			entry:     domain.AuditEntry{RecordID: uuid.New(), Action: domain.AuditActionEdit},
			wantField: "actor",
		},
		{
			name:      "unknown action",
			entry:     domain.AuditEntry{RecordID: uuid.New(), Actor: "alice", Action: "DELETE"},
			wantField: "action",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			repo, mock := newMockRepo(t)

			err := repo.Append(context.Background(), tt.entry)
			require.ErrorIs(t, err, domain.ErrValidation)

			var ve *domain.ValidationError
			require.True(t, errors.As(err, &ve))
			require.Len(t, ve.Errors, 1)
			assert.Equal(t, tt.wantField, ve.Errors[0].Field)

			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestRepo_Append_Insert(t *testing.T) {
	t.Parallel()
	repo, mock := newMockRepo(t)

	id := uuid.New()
	recordID := uuid.New()
	at := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)

	mock.ExpectExec("INSERT INTO audit_log").
		WithArgs(id, recordID, "alice", "EDIT", []string{"loan_amount"},
			[]byte(`{"loan_amount":100}`), []byte(`{"loan_amount":200}`), at).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := repo.Append(context.Background(), domain.AuditEntry{
		ID:         id,
		RecordID:   recordID,
		Actor:      "alice",
		Action:     domain.AuditActionEdit,
		FieldNames: []string{"loan_amount"},
		OldValue:   map[string]any{"loan_amount": 100},
		NewValue:   map[string]any{"loan_amount": 200},
		CreatedAt:  at,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepo_Append_FillsDefaults(t *testing.T) {
	t.Parallel()
	repo, mock := newMockRepo(t)

	recordID := uuid.New()
	var emptyJSON []byte

	mock.ExpectExec("INSERT INTO audit_log").
		WithArgs(pgxmock.AnyArg(), recordID, "system", "CREATE", []string{}, emptyJSON, emptyJSON, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := repo.Append(context.Background(), domain.AuditEntry{
		RecordID: recordID,
		Actor:    domain.SystemActor,
		Action:   domain.AuditActionCreate,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepo_Append_DBError(t *testing.T) {
	t.Parallel()
	repo, mock := newMockRepo(t)

	mock.ExpectExec("INSERT INTO audit_log").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("connection refused"))

	err := repo.Append(context.Background(), domain.AuditEntry{
		RecordID: uuid.New(),
		Actor:    "alice",
		Action:   domain.AuditActionVerify,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.NoError(t, mock.ExpectationsWereMet())
}
