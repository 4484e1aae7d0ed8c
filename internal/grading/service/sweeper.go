package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"dezolver/internal/grading/model"
	"dezolver/internal/grading/repository"
	"dezolver/pkg/utils/logger"
)

// Sweeper periodically reclaims submissions stuck in running after their
// worker's lease expired (crash, deadlock, lost node) and finalizes them as
// internal_error. The guarded transition in the repository means a sweep can
// never overwrite a verdict a worker managed to write first.
type Sweeper struct {
	subs     repository.SubmissionRepository
	statuses *repository.StatusRepository
	hub      *Hub
	interval time.Duration
	batch    int
}

// NewSweeper creates a sweeper scanning every interval.
func NewSweeper(subs repository.SubmissionRepository, statuses *repository.StatusRepository, hub *Hub, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Sweeper{
		subs:     subs,
		statuses: statuses,
		hub:      hub,
		interval: interval,
		batch:    100,
	}
}

// Run sweeps until ctx is canceled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// sweep finalizes every expired running submission it can claim.
func (s *Sweeper) sweep(ctx context.Context) {
	now := time.Now()
	expired, err := s.subs.ListExpiredRunning(ctx, now, s.batch)
	if err != nil {
		logger.Error(ctx, "list expired submissions failed", zap.Error(err))
		return
	}

	for _, sub := range expired {
		ok, err := s.subs.Finalize(ctx, sub.ID, model.VerdictInternalError, 0, 0, 0, now)
		if err != nil {
			logger.Error(ctx, "reclaim expired submission failed",
				zap.String("submission_id", sub.ID),
				zap.Error(err))
			continue
		}
		if !ok {
			// The owning worker finished between the scan and the reclaim.
			continue
		}

		logger.Warn(ctx, "reclaimed expired submission",
			zap.String("submission_id", sub.ID),
			zap.Time("lease_expired_at", *sub.LeaseExpiresAt))

		sub.Status = model.StatusInternalError
		sub.Verdict = model.VerdictInternalError
		sub.Score = 0
		done := now
		sub.CompletedAt = &done
		snap := sub.Snapshot()
		if s.statuses != nil {
			if err := s.statuses.Save(ctx, snap); err != nil {
				logger.Warn(ctx, "status cache write failed",
					zap.String("submission_id", sub.ID),
					zap.Error(err))
			}
		}
		if s.hub != nil {
			s.hub.Publish(snap)
		}
	}
}
