// Package balancer picks the operator a reclaimed record is handed to.
package balancer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/heartmarshall/recordreview-backend/internal/domain"
)

type operatorRepo interface {
	LeastLoaded(ctx context.Context, role domain.Role, exclude []string) (*domain.Operator, error)
}

// Balancer selects operators by their assignment counters.
type Balancer struct {
	operators operatorRepo
	log       *slog.Logger
}

// New creates a new Balancer.
func New(log *slog.Logger, operators operatorRepo) *Balancer {
	return &Balancer{
		operators: operators,
		log:       log.With("service", "balancer"),
	}
}

// LeastLoaded returns the operator of role with the fewest assigned records,
// ties broken by lowest username. Blank names in exclude are ignored. It
// returns nil, nil when no operator is eligible.
//
// Run it inside the transaction that moves the counters so the pick and the
// increment see the same state.
func (b *Balancer) LeastLoaded(ctx context.Context, role domain.Role, exclude ...string) (*domain.Operator, error) {
	if !role.IsValid() {
		return nil, domain.NewValidationError("role", "unknown role "+string(role))
	}

	skip := make([]string, 0, len(exclude))
	for _, u := range exclude {
		if u = strings.TrimSpace(u); u != "" {
			skip = append(skip, u)
		}
	}

	op, err := b.operators.LeastLoaded(ctx, role, skip)
	if err != nil {
		return nil, fmt.Errorf("least loaded %s: %w", role, err)
	}
	if op == nil {
		b.log.DebugContext(ctx, "no eligible operator",
			slog.String("role", string(role)),
			slog.Any("excluded", skip),
		)
	}
	return op, nil
}
