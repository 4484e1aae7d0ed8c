package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"dezolver/internal/grading/model"
	appErr "dezolver/pkg/errors"
)

// MemorySubmissionRepository is an in-memory SubmissionRepository. It backs
// single-node deployments and tests; the guarded transitions hold under the
// repository mutex instead of row-level compare-and-swap.
type MemorySubmissionRepository struct {
	mu   sync.RWMutex
	subs map[string]*model.Submission
}

// NewMemorySubmissionRepository creates an empty in-memory repository.
func NewMemorySubmissionRepository() *MemorySubmissionRepository {
	return &MemorySubmissionRepository{subs: make(map[string]*model.Submission)}
}

func (r *MemorySubmissionRepository) Create(_ context.Context, sub *model.Submission) error {
	if sub == nil {
		return appErr.New(appErr.InvalidParams).WithMessage("submission is nil")
	}
	if sub.ID == "" {
		return appErr.ValidationError("submission_id", "required")
	}
	if sub.Status != model.StatusPending {
		return appErr.Newf(appErr.InvalidParams, "new submission must be pending, got %q", sub.Status)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.subs[sub.ID]; exists {
		return appErr.New(appErr.SubmissionCreateFailed).WithMessage("submission already exists")
	}
	clone := *sub
	r.subs[sub.ID] = &clone
	return nil
}

func (r *MemorySubmissionRepository) GetByID(_ context.Context, submissionID string) (*model.Submission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sub, ok := r.subs[submissionID]
	if !ok {
		return nil, appErr.New(appErr.SubmissionNotFound)
	}
	clone := *sub
	return &clone, nil
}

func (r *MemorySubmissionRepository) BeginGrading(_ context.Context, submissionID string, leaseUntil time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.subs[submissionID]
	if !ok || sub.Status != model.StatusPending {
		return false, nil
	}
	sub.Status = model.StatusRunning
	lease := leaseUntil
	sub.LeaseExpiresAt = &lease
	return true, nil
}

func (r *MemorySubmissionRepository) ExtendLease(_ context.Context, submissionID string, leaseUntil time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.subs[submissionID]
	if !ok || sub.Status != model.StatusRunning {
		return appErr.New(appErr.LeaseLost)
	}
	lease := leaseUntil
	sub.LeaseExpiresAt = &lease
	return nil
}

func (r *MemorySubmissionRepository) Finalize(_ context.Context, submissionID string, verdict model.Verdict, score int, timeUsedMs, memoryUsedKB int64, completedAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.subs[submissionID]
	if !ok || sub.Status != model.StatusRunning {
		return false, nil
	}
	sub.Status = verdict.Status()
	sub.Verdict = verdict
	sub.Score = score
	sub.TimeUsedMs = timeUsedMs
	sub.MemoryUsedKB = memoryUsedKB
	done := completedAt
	sub.CompletedAt = &done
	sub.LeaseExpiresAt = nil
	return true, nil
}

func (r *MemorySubmissionRepository) DeletePending(_ context.Context, submissionID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.subs[submissionID]
	if !ok || sub.Status != model.StatusPending {
		return false, nil
	}
	delete(r.subs, submissionID)
	return true, nil
}

func (r *MemorySubmissionRepository) ListPending(_ context.Context, limit int) ([]*model.Submission, error) {
	if limit <= 0 {
		limit = 100
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var subs []*model.Submission
	for _, sub := range r.subs {
		if sub.Status == model.StatusPending {
			clone := *sub
			subs = append(subs, &clone)
		}
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].SubmittedAt.Before(subs[j].SubmittedAt) })
	if len(subs) > limit {
		subs = subs[:limit]
	}
	return subs, nil
}

func (r *MemorySubmissionRepository) ListExpiredRunning(_ context.Context, now time.Time, limit int) ([]*model.Submission, error) {
	if limit <= 0 {
		limit = 100
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var subs []*model.Submission
	for _, sub := range r.subs {
		if sub.Status == model.StatusRunning && sub.LeaseExpiresAt != nil && sub.LeaseExpiresAt.Before(now) {
			clone := *sub
			subs = append(subs, &clone)
		}
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].LeaseExpiresAt.Before(*subs[j].LeaseExpiresAt) })
	if len(subs) > limit {
		subs = subs[:limit]
	}
	return subs, nil
}
