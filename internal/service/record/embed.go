package record

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/heartmarshall/recordreview-backend/internal/domain"
)

// embed computes the embedding of text within the configured deadline.
// Any provider failure other than invalid input surfaces as ErrTransient so
// the dependent mutation fails instead of storing a stale vector.
func (s *Service) embed(ctx context.Context, text string) (domain.Embedding, error) {
	if s.cfg.EmbedTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.EmbedTimeout)
		defer cancel()
	}

	start := time.Now()
	emb, err := s.embedder.Embed(ctx, text)
	s.metrics.ObserveEmbedding(start)
	if err != nil {
		if errors.Is(err, domain.ErrValidation) || errors.Is(err, domain.ErrTransient) {
			return nil, fmt.Errorf("embed: %w", err)
		}
		return nil, fmt.Errorf("embed: %w: %v", domain.ErrTransient, err)
	}
	if len(emb) != domain.EmbeddingDimensions {
		return nil, fmt.Errorf("embed: got %d dimensions: %w", len(emb), domain.ErrTransient)
	}
	return emb, nil
}
