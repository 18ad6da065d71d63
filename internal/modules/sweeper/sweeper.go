package sweeper

import (
	"context"
	"log/slog"
	"time"
)

// Lifecycle is the slice of the reservation lifecycle the sweeper drives.
type Lifecycle interface {
	SweepExpiredHolds(ctx context.Context, now time.Time) (int, error)
	CompleteEndedStays(ctx context.Context, now time.Time) (int, error)
}

// Sweeper runs two recurring sweeps: a fast one that expires stale payment
// holds and a slow one that finalizes stays that have run their course. Both
// go through the lifecycle manager; the sweeper owns no state transitions.
type Sweeper struct {
	lifecycle Lifecycle
	log       *slog.Logger

	holdInterval       time.Duration
	completionInterval time.Duration
}

func New(lifecycle Lifecycle, log *slog.Logger, holdInterval, completionInterval time.Duration) *Sweeper {
	return &Sweeper{
		lifecycle:          lifecycle,
		log:                log,
		holdInterval:       holdInterval,
		completionInterval: completionInterval,
	}
}

// Start launches both sweep loops and returns immediately. The loops stop
// when ctx is canceled.
func (s *Sweeper) Start(ctx context.Context) {
	go s.runHoldSweep(ctx)
	go s.runCompletionSweep(ctx)
}

func (s *Sweeper) runHoldSweep(ctx context.Context) {
	ticker := time.NewTicker(s.holdInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.lifecycle.SweepExpiredHolds(ctx, time.Now().UTC())
			if err != nil {
				s.log.Error("hold sweep failed", "error", err)
				continue
			}
			if n > 0 {
				s.log.Info("expired stale holds", "count", n)
			}
		}
	}
}

func (s *Sweeper) runCompletionSweep(ctx context.Context) {
	ticker := time.NewTicker(s.completionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// The completed_at stamp in the store carries the progress, so
			// each tick just sweeps everything still un-finalized. Downtime
			// delays a stay's finalization, never loses it.
			n, err := s.lifecycle.CompleteEndedStays(ctx, time.Now().UTC())
			if err != nil {
				s.log.Error("completion sweep failed", "error", err)
				continue
			}
			if n > 0 {
				s.log.Info("finalized ended stays", "count", n)
			}
		}
	}
}
