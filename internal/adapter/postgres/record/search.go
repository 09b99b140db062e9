package record

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/pgvector/pgvector-go"

	"github.com/heartmarshall/recordreview-backend/internal/domain"
)

func tokenColumns(field domain.SearchField) []string {
	switch field {
	case domain.SearchFieldAddress:
		return []string{"property_address_token"}
	case domain.SearchFieldName:
		return []string{"borrower_name_token"}
	case domain.SearchFieldParcel:
		return []string{"parcel_id_token"}
	default:
		return []string{"property_address_token", "borrower_name_token", "parcel_id_token"}
	}
}

// SearchByToken matches q.Token for equality against the token columns of
// q.Field. It fetches one extra row to compute HasMore and counts the total
// separately.
func (r *Repo) SearchByToken(ctx context.Context, q domain.TokenSearch) (*domain.RecordPage, error) {
	match := squirrel.Or{}
	for _, col := range tokenColumns(q.Field) {
		match = append(match, squirrel.Eq{col: q.Token})
	}

	where := squirrel.And{match}
	if q.Assignee != nil {
		where = append(where, squirrel.Eq{"assigned_to": *q.Assignee})
	}

	b := psql.Select(columns...).
		From("records").
		Where(where).
		OrderBy("created_at DESC", "id ASC").
		Limit(uint64(q.Limit + 1)).
		Offset(uint64(q.Offset))

	recs, err := r.selectMany(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("search by token: %w", err)
	}

	total, err := r.count(ctx, where)
	if err != nil {
		return nil, fmt.Errorf("search by token: %w", err)
	}

	page := &domain.RecordPage{Records: recs, Total: total}
	if len(recs) > q.Limit {
		page.Records = recs[:q.Limit]
		page.HasMore = true
	}
	return page, nil
}

// NearestByEmbedding returns up to k records ordered by cosine distance to emb.
// A nil assignee searches every record.
func (r *Repo) NearestByEmbedding(ctx context.Context, emb domain.Embedding, assignee *string, k int) ([]domain.Record, error) {
	b := psql.Select(columns...).From("records")
	if assignee != nil {
		b = b.Where(squirrel.Eq{"assigned_to": *assignee})
	}
	b = b.OrderByClause("embedding <=> ?", pgvector.NewVector(emb)).
		Limit(uint64(k))

	recs, err := r.selectMany(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("nearest by embedding: %w", err)
	}
	return recs, nil
}
