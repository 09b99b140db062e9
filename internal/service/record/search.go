package record

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/heartmarshall/recordreview-backend/internal/domain"
)

// SearchExact matches term case-insensitively against the search tokens of
// the selected field, or of all three sensitive fields. Agents only see their
// own records. A term shorter than two characters yields an empty page.
func (s *Service) SearchExact(ctx context.Context, input SearchInput, caller domain.Identity) (*SearchResult, error) {
	if err := validateCaller(caller); err != nil {
		return nil, err
	}
	if err := input.Validate(); err != nil {
		return nil, err
	}

	term := strings.TrimSpace(input.Term)
	if utf8.RuneCountInString(term) < domain.MinSearchTermLength {
		return &SearchResult{Records: []RecordView{}}, nil
	}

	field := input.Field
	if field == "" {
		field = domain.SearchFieldAll
	}

	page, err := s.records.SearchByToken(ctx, domain.TokenSearch{
		Field:    field,
		Token:    s.codec.SearchToken(term),
		Assignee: scope(caller),
		Limit:    s.clampLimit(input.Limit),
		Offset:   input.Offset,
	})
	if err != nil {
		return nil, fmt.Errorf("search records: %w", err)
	}

	views, err := s.toViews(ctx, page.Records)
	if err != nil {
		return nil, err
	}
	return &SearchResult{
		Total:   page.Total,
		Records: views,
		HasMore: page.HasMore,
	}, nil
}

// SearchSemantic returns up to limit distinct field values of the records
// nearest to term in embedding space, closest first. Only the returned rows
// are decrypted.
func (s *Service) SearchSemantic(ctx context.Context, term string, limit int, caller domain.Identity) ([]string, error) {
	if err := validateCaller(caller); err != nil {
		return nil, err
	}

	term = strings.TrimSpace(term)
	if utf8.RuneCountInString(term) < domain.MinSearchTermLength {
		return []string{}, nil
	}
	switch {
	case limit <= 0:
		limit = s.cfg.DefaultSuggestions
	case limit > MaxSuggestions:
		limit = MaxSuggestions
	}

	emb, err := s.embed(ctx, term)
	if err != nil {
		return nil, err
	}

	k := max(limit, s.cfg.SuggestionCandidates)
	recs, err := s.records.NearestByEmbedding(ctx, emb, scope(caller), k)
	if err != nil {
		return nil, fmt.Errorf("nearest records: %w", err)
	}

	seen := make(map[string]struct{}, limit)
	out := make([]string, 0, limit)
	for i := range recs {
		p, err := s.decryptFields(ctx, &recs[i])
		if err != nil {
			return nil, err
		}
		for _, v := range []string{p.PropertyAddress, p.BorrowerName, p.ParcelID} {
			v = strings.TrimSpace(v)
			if v == "" {
				continue
			}
			if _, dup := seen[v]; dup {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
			if len(out) == limit {
				return out, nil
			}
		}
	}
	return out, nil
}
