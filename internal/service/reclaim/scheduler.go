// Package reclaim revokes expired editing leases and hands the affected
// records to the least-loaded agent.
package reclaim

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/recordreview-backend/internal/domain"
	"github.com/heartmarshall/recordreview-backend/internal/metrics"
	"github.com/heartmarshall/recordreview-backend/internal/service/record"
	"github.com/heartmarshall/recordreview-backend/pkg/ctxutil"
)

type recordRepo interface {
	ListExpiredLocks(ctx context.Context, staleBefore time.Time, limit int) ([]domain.Record, error)
	Assign(ctx context.Context, id uuid.UUID, assignee *string, now time.Time) (*domain.Record, error)
}

type lockReleaser interface {
	ForceRelease(ctx context.Context, id uuid.UUID, observed domain.Lock) (*domain.Record, bool, error)
}

type operatorRepo interface {
	AdjustAssigned(ctx context.Context, username string, delta int) error
	Reconcile(ctx context.Context) ([]domain.CounterDrift, error)
}

type balancer interface {
	LeastLoaded(ctx context.Context, role domain.Role, exclude ...string) (*domain.Operator, error)
}

type auditRepo interface {
	Append(ctx context.Context, entry domain.AuditEntry) error
}

type recordCache interface {
	Invalidate(ctx context.Context, id uuid.UUID)
}

type txManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Config holds the scheduler tunables.
type Config struct {
	Interval  time.Duration
	LockTTL   time.Duration
	BatchSize int
	// ReconcileEvery runs a counter recount every N ticks; 0 disables it.
	ReconcileEvery int
}

// SweepResult summarises one sweep.
type SweepResult struct {
	Expired    int
	Released   int
	Reassigned int
	Unassigned int
	Skipped    int
	Failed     int
}

// Scheduler periodically reclaims expired leases.
type Scheduler struct {
	records   recordRepo
	locks     lockReleaser
	operators operatorRepo
	balancer  balancer
	audit     auditRepo
	cache     recordCache
	tx        txManager
	metrics   *metrics.Metrics
	cfg       Config
	clock     func() time.Time
	log       *slog.Logger
}

// NewScheduler creates a new Scheduler. cache may be nil.
func NewScheduler(
	log *slog.Logger,
	records recordRepo,
	locks lockReleaser,
	operators operatorRepo,
	bal balancer,
	audit auditRepo,
	cache recordCache,
	tx txManager,
	m *metrics.Metrics,
	cfg Config,
) *Scheduler {
	if cache == nil {
		cache = noopCache{}
	}
	return &Scheduler{
		records:   records,
		locks:     locks,
		operators: operators,
		balancer:  bal,
		audit:     audit,
		cache:     cache,
		tx:        tx,
		metrics:   m,
		cfg:       cfg,
		clock:     func() time.Time { return time.Now().UTC() },
		log:       log.With("service", "reclaim"),
	}
}

// Run sweeps once immediately and then every Interval until ctx is done.
// Sweep errors are logged; they never stop the loop.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.InfoContext(ctx, "reclaim scheduler started",
		slog.Duration("interval", s.cfg.Interval),
		slog.Duration("lock_ttl", s.cfg.LockTTL),
	)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for tick := 1; ; tick++ {
		s.tick(ctx, tick)

		select {
		case <-ctx.Done():
			s.log.InfoContext(ctx, "reclaim scheduler stopped")
			return nil
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, n int) {
	ctx = ctxutil.WithRequestID(ctx, "reclaim-"+uuid.NewString())

	if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
		s.log.ErrorContext(ctx, "reclaim sweep failed",
			slog.String("request_id", ctxutil.RequestIDFromCtx(ctx)),
			slog.String("error", err.Error()),
		)
	}

	if s.cfg.ReconcileEvery > 0 && n%s.cfg.ReconcileEvery == 0 {
		if _, err := s.Reconcile(ctx); err != nil && ctx.Err() == nil {
			s.log.ErrorContext(ctx, "counter reconcile failed",
				slog.String("request_id", ctxutil.RequestIDFromCtx(ctx)),
				slog.String("error", err.Error()),
			)
		}
	}
}

// Sweep reclaims every lease that expired before now-LockTTL, at most
// BatchSize per call. Each record is handled in its own transaction; a
// failure on one record is logged and counted and the sweep moves on.
func (s *Scheduler) Sweep(ctx context.Context) (SweepResult, error) {
	start := time.Now()
	defer s.metrics.ObserveSweep(start)

	var res SweepResult
	now := s.clock()
	expired, err := s.records.ListExpiredLocks(ctx, now.Add(-s.cfg.LockTTL), s.cfg.BatchSize)
	if err != nil {
		return res, fmt.Errorf("list expired locks: %w", err)
	}
	res.Expired = len(expired)

	for i := range expired {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		out, err := s.reclaim(ctx, &expired[i])
		if err != nil {
			res.Failed++
			s.log.ErrorContext(ctx, "reclaim record failed",
				slog.String("request_id", ctxutil.RequestIDFromCtx(ctx)),
				slog.String("record_id", expired[i].ID.String()),
				slog.String("error", err.Error()),
			)
			continue
		}
		switch out {
		case outcomeSkipped:
			res.Skipped++
		case outcomeReassigned:
			res.Released++
			res.Reassigned++
		case outcomeUnassigned:
			res.Released++
			res.Unassigned++
		}
	}

	if res.Expired > 0 {
		s.log.InfoContext(ctx, "reclaim sweep completed",
			slog.String("request_id", ctxutil.RequestIDFromCtx(ctx)),
			slog.Int("expired", res.Expired),
			slog.Int("reassigned", res.Reassigned),
			slog.Int("unassigned", res.Unassigned),
			slog.Int("skipped", res.Skipped),
			slog.Int("failed", res.Failed),
			slog.Duration("duration", time.Since(start)),
		)
	}
	return res, nil
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeReassigned
	outcomeUnassigned
)

// reclaim force-releases one expired lease and reassigns the record in a
// single transaction. The lease is released only if it is still exactly the
// one observed by the listing, so a lease renewed meanwhile is left alone.
//
// The previous assignee is never a candidate: the record moves to the
// least-loaded other agent even when that agent carries more load, and stays
// unassigned when there is no other agent.
func (s *Scheduler) reclaim(ctx context.Context, rec *domain.Record) (outcome, error) {
	if rec.Lock == nil {
		return outcomeSkipped, nil
	}
	observed := *rec.Lock

	var (
		released   *domain.Record
		reassigned *domain.Record
		applied    bool
		target     *string
	)
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		released, applied, err = s.locks.ForceRelease(txCtx, rec.ID, observed)
		if err != nil {
			return err
		}
		if !applied {
			return nil
		}

		prev := released.AssignedTo
		var exclude []string
		if prev != nil {
			exclude = append(exclude, *prev)
		}
		pick, err := s.balancer.LeastLoaded(txCtx, domain.RoleAgent, exclude...)
		if err != nil {
			return err
		}
		if pick != nil {
			target = &pick.Username
		}

		reassigned, err = s.records.Assign(txCtx, rec.ID, target, s.clock())
		if err != nil {
			return fmt.Errorf("assign record: %w", err)
		}
		return record.MoveAssignment(txCtx, s.operators, prev, target)
	})
	if err != nil {
		return outcomeSkipped, err
	}
	if !applied {
		s.log.DebugContext(ctx, "lease changed before reclaim",
			slog.String("record_id", rec.ID.String()),
			slog.String("holder", observed.Holder),
		)
		return outcomeSkipped, nil
	}

	s.metrics.IncLockReclaimed()
	s.cache.Invalidate(ctx, rec.ID)
	s.appendAudit(ctx, record.LockChanges(rec.ID, domain.SystemActor, &observed, nil))
	if stringOrEmpty(released.AssignedTo) != stringOrEmpty(reassigned.AssignedTo) {
		s.appendAudit(ctx, record.AssignmentChange(rec.ID, domain.SystemActor, released.AssignedTo, reassigned.AssignedTo))
	}

	if target == nil {
		s.metrics.IncReassignment("unassigned")
		s.log.WarnContext(ctx, "no eligible operator, record left unassigned",
			slog.String("request_id", ctxutil.RequestIDFromCtx(ctx)),
			slog.String("record_id", rec.ID.String()),
			slog.String("previous_assignee", stringOrEmpty(released.AssignedTo)),
		)
		return outcomeUnassigned, nil
	}

	s.metrics.IncReassignment("reassigned")
	s.log.InfoContext(ctx, "record reassigned",
		slog.String("request_id", ctxutil.RequestIDFromCtx(ctx)),
		slog.String("record_id", rec.ID.String()),
		slog.String("from", stringOrEmpty(released.AssignedTo)),
		slog.String("to", *target),
		slog.String("expired_holder", observed.Holder),
	)
	return outcomeReassigned, nil
}

// Reconcile recomputes every operator counter from the records table and
// reports how many had drifted.
func (s *Scheduler) Reconcile(ctx context.Context) ([]domain.CounterDrift, error) {
	drifts, err := s.operators.Reconcile(ctx)
	if err != nil {
		return nil, fmt.Errorf("reconcile counters: %w", err)
	}
	s.metrics.SetCounterDrift(len(drifts))
	for _, d := range drifts {
		s.log.WarnContext(ctx, "assigned count drifted",
			slog.String("operator", d.Username),
			slog.Int("stored", d.Stored),
			slog.Int("actual", d.Actual),
		)
	}
	return drifts, nil
}

func (s *Scheduler) appendAudit(ctx context.Context, entry domain.AuditEntry) {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.clock()
	}
	if err := s.audit.Append(ctx, entry); err != nil {
		s.metrics.IncAuditAppendFailure()
		s.log.ErrorContext(ctx, "audit append failed",
			slog.String("record_id", entry.RecordID.String()),
			slog.String("actor", entry.Actor),
			slog.String("error", err.Error()),
		)
	}
}

func stringOrEmpty(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

type noopCache struct{}

func (noopCache) Invalidate(context.Context, uuid.UUID) {}
