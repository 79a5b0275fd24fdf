package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/Mekazstan/paystack-forms-gateway/internal/gateway"
	"go.uber.org/zap"
)

const sweepBatchSize = int32(100)

type StaleEntryLister interface {
	ListStaleEntries(ctx context.Context, before time.Time, afterID int64, limit int32) ([]*gateway.Entry, error)
}

type PendingReconciler interface {
	ReconcilePending(ctx context.Context, entry *gateway.Entry) (*gateway.Action, error)
}

type ActionApplier interface {
	Apply(ctx context.Context, action *gateway.Action) (bool, error)
}

type SweepResult struct {
	Checked int
	Applied int
	Failed  int
}

// StaleSweep settles entries stuck in Processing, e.g. when the customer
// never came back from checkout and the webhook was missed.
type StaleSweep struct {
	entries    StaleEntryLister
	reconciler PendingReconciler
	applier    ActionApplier
	maxAge     time.Duration
	logger     *zap.Logger
	now        func() time.Time
}

func NewStaleSweep(entries StaleEntryLister, reconciler PendingReconciler, applier ActionApplier, maxAge time.Duration, logger *zap.Logger) *StaleSweep {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StaleSweep{
		entries:    entries,
		reconciler: reconciler,
		applier:    applier,
		maxAge:     maxAge,
		logger:     logger,
		now:        time.Now,
	}
}

// Run processes every entry untouched for longer than maxAge. Failures on
// one entry are logged and do not stop the sweep.
func (s *StaleSweep) Run(ctx context.Context) (SweepResult, error) {
	var result SweepResult
	before := s.now().Add(-s.maxAge)
	s.logger.Info("sweeping stale transactions", zap.Time("before", before))

	afterID := int64(0)
	for {
		entries, err := s.entries.ListStaleEntries(ctx, before, afterID, sweepBatchSize)
		if err != nil {
			return result, fmt.Errorf("failed to list stale entries: %w", err)
		}
		if len(entries) == 0 {
			break
		}

		for _, entry := range entries {
			afterID = entry.ID
			result.Checked++

			applied, err := s.settle(ctx, entry)
			if err != nil {
				result.Failed++
				s.logger.Error("failed to settle stale entry", zap.Int64("entry_id", entry.ID), zap.Error(err))
				continue
			}
			if applied {
				result.Applied++
			}
		}

		if ctx.Err() != nil {
			return result, ctx.Err()
		}
	}

	s.logger.Info("stale transaction sweep finished",
		zap.Int("checked", result.Checked),
		zap.Int("applied", result.Applied),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

func (s *StaleSweep) settle(ctx context.Context, entry *gateway.Entry) (bool, error) {
	action, err := s.reconciler.ReconcilePending(ctx, entry)
	if err != nil || action == nil {
		return false, err
	}
	return s.applier.Apply(ctx, action)
}
