package record

import (
	"context"
	"fmt"
	"slices"
	"strings"
)

type counterAdjuster interface {
	AdjustAssigned(ctx context.Context, username string, delta int) error
}

type counterDelta struct {
	username string
	delta    int
}

// MoveAssignment moves one record's worth of load from one operator to
// another; either side may be nil. Rows are updated in username order, so two
// transactions moving records between the same operators in opposite
// directions lock them in the same order and cannot deadlock.
func MoveAssignment(ctx context.Context, ops counterAdjuster, from, to *string) error {
	var deltas []counterDelta
	if from != nil {
		deltas = append(deltas, counterDelta{username: *from, delta: -1})
	}
	if to != nil {
		deltas = append(deltas, counterDelta{username: *to, delta: 1})
	}
	slices.SortFunc(deltas, func(a, b counterDelta) int {
		return strings.Compare(a.username, b.username)
	})

	for _, d := range deltas {
		if err := ops.AdjustAssigned(ctx, d.username, d.delta); err != nil {
			return fmt.Errorf("adjust assigned count: %w", err)
		}
	}
	return nil
}
