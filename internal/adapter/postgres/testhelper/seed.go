package testhelper

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/heartmarshall/recordreview-backend/internal/domain"
)

// uniqueSuffix returns a short unique string for generating non-conflicting test data.
func uniqueSuffix() string {
	return uuid.New().String()[:8]
}

// SeedOperator inserts an operator with a unique username and a zero counter.
func SeedOperator(t *testing.T, pool *pgxpool.Pool, role domain.Role) domain.Operator {
	t.Helper()

	op := domain.Operator{
		Username:  "op-" + uniqueSuffix(),
		Role:      role,
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}

	_, err := pool.Exec(context.Background(),
		`INSERT INTO operators (username, role, assigned_count, created_at) VALUES ($1, $2, 0, $3)`,
		op.Username, string(op.Role), op.CreatedAt,
	)
	if err != nil {
		t.Fatalf("testhelper: SeedOperator: %v", err)
	}
	return op
}

// SeedRecordParams controls SeedRecord. Zero values produce an unassigned,
// unlocked PENDING record with placeholder ciphertexts.
type SeedRecordParams struct {
	AssignedTo      *string
	Status          domain.RecordStatus
	Lock            *domain.Lock
	PropertyAddress domain.EncryptedField
	BorrowerName    domain.EncryptedField
	ParcelID        domain.EncryptedField
	Embedding       domain.Embedding
	CreatedAt       time.Time
}

// SeedRecord inserts a record directly and bumps the assignee's counter.
func SeedRecord(t *testing.T, pool *pgxpool.Pool, p SeedRecordParams) domain.Record {
	t.Helper()
	ctx := context.Background()

	suffix := uniqueSuffix()
	placeholder := func(f domain.EncryptedField, name string) domain.EncryptedField {
		if f.IsZero() {
			return domain.EncryptedField{Ciphertext: "v1:" + name + "-" + suffix, Token: name + "-tok-" + suffix}
		}
		return f
	}

	now := p.CreatedAt
	if now.IsZero() {
		now = time.Now().UTC().Truncate(time.Microsecond)
	}
	status := p.Status
	if status == "" {
		status = domain.RecordStatusPending
	}
	emb := p.Embedding
	if emb == nil {
		emb = UnitEmbedding(0)
	}

	rec := domain.Record{
		ID:              uuid.New(),
		PropertyAddress: placeholder(p.PropertyAddress, "addr"),
		BorrowerName:    placeholder(p.BorrowerName, "name"),
		ParcelID:        placeholder(p.ParcelID, "apn"),
		LoanAmount:      250000,
		SalePrice:       300000,
		DownPayment:     50000,
		TransactionDate: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		Status:          status,
		AssignedTo:      p.AssignedTo,
		EnteredBy:       "seed",
		Lock:            p.Lock,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	var lockedBy *string
	var lockedAt *time.Time
	if p.Lock != nil {
		lockedBy, lockedAt = &p.Lock.Holder, &p.Lock.AcquiredAt
	}

	_, err := pool.Exec(ctx,
		`INSERT INTO records (
		    id, property_address_ct, property_address_token, borrower_name_ct, borrower_name_token,
		    parcel_id_ct, parcel_id_token, loan_amount, sale_price, down_payment, transaction_date,
		    status, assigned_to, entered_by, locked_by, locked_at, embedding, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $18)`,
		rec.ID, rec.PropertyAddress.Ciphertext, rec.PropertyAddress.Token,
		rec.BorrowerName.Ciphertext, rec.BorrowerName.Token,
		rec.ParcelID.Ciphertext, rec.ParcelID.Token,
		rec.LoanAmount, rec.SalePrice, rec.DownPayment, rec.TransactionDate,
		string(rec.Status), rec.AssignedTo, rec.EnteredBy, lockedBy, lockedAt,
		pgvector.NewVector(emb), now,
	)
	if err != nil {
		t.Fatalf("testhelper: SeedRecord: %v", err)
	}

	if p.AssignedTo != nil {
		_, err = pool.Exec(ctx,
			`UPDATE operators SET assigned_count = assigned_count + 1 WHERE username = $1`, *p.AssignedTo)
		if err != nil {
			t.Fatalf("testhelper: SeedRecord bump counter: %v", err)
		}
	}

	return rec
}

// UnitEmbedding returns a 384-dim vector with a single 1 at index i.
func UnitEmbedding(i int) domain.Embedding {
	v := make(domain.Embedding, domain.EmbeddingDimensions)
	v[i%domain.EmbeddingDimensions] = 1
	return v
}

// AssignedCount reads an operator's stored counter.
func AssignedCount(t *testing.T, pool *pgxpool.Pool, username string) int {
	t.Helper()
	var n int
	err := pool.QueryRow(context.Background(),
		`SELECT assigned_count FROM operators WHERE username = $1`, username).Scan(&n)
	if err != nil {
		t.Fatalf("testhelper: AssignedCount: %v", err)
	}
	return n
}
