package repository

import (
	"context"
	"encoding/json"
	"time"

	"dezolver/internal/common/cache"
	"dezolver/internal/grading/model"
	appErr "dezolver/pkg/errors"
)

const statusKeyPrefix = "grading:status:"

// StatusRepository caches submission status snapshots for cheap polling.
// The cache is write-through and best-effort: the submission row in the
// primary store stays authoritative, and readers fall back to it on a miss.
type StatusRepository struct {
	cache cache.Cache
	ttl   time.Duration
}

// NewStatusRepository creates a snapshot cache with the given TTL.
// A zero ttl keeps snapshots until evicted.
func NewStatusRepository(c cache.Cache, ttl time.Duration) *StatusRepository {
	return &StatusRepository{cache: c, ttl: ttl}
}

// Save writes the snapshot for its submission, replacing any previous one.
func (r *StatusRepository) Save(ctx context.Context, snap model.StatusSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return appErr.Wrapf(err, appErr.CacheError, "marshal status snapshot failed")
	}
	if err := r.cache.Set(ctx, statusKeyPrefix+snap.SubmissionID, string(data), r.ttl); err != nil {
		return appErr.Wrapf(err, appErr.CacheError, "save status snapshot failed")
	}
	return nil
}

// Get returns the cached snapshot, or (nil, nil) on a cache miss.
func (r *StatusRepository) Get(ctx context.Context, submissionID string) (*model.StatusSnapshot, error) {
	raw, err := r.cache.Get(ctx, statusKeyPrefix+submissionID)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.CacheError, "get status snapshot failed")
	}
	if raw == "" {
		return nil, nil
	}
	var snap model.StatusSnapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return nil, appErr.Wrapf(err, appErr.CacheError, "unmarshal status snapshot failed")
	}
	return &snap, nil
}
