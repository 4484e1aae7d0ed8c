package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"dezolver/internal/grading/model"
	"dezolver/internal/grading/queue"
	"dezolver/internal/grading/repository"
	appErr "dezolver/pkg/errors"
	"dezolver/pkg/utils/logger"
)

// SubmitRequest is the admission input.
type SubmitRequest struct {
	ProblemID  int64  `json:"problem_id" binding:"required"`
	UserID     int64  `json:"user_id" binding:"required"`
	Language   string `json:"language" binding:"required"`
	SourceCode string `json:"source_code" binding:"required"`
}

// AdmissionService validates and admits submissions into the grading queue,
// and serves status reads.
type AdmissionService struct {
	subs      repository.SubmissionRepository
	testcases repository.TestCaseStore
	queue     *queue.Queue
	limiter   *RateLimiter
	statuses  *repository.StatusRepository
	archive   *repository.SourceArchive
	hub       *Hub

	maxSourceBytes int
}

// NewAdmissionService wires the admission pipeline. archive may be nil when
// object storage is not configured; source archiving is then skipped.
func NewAdmissionService(
	subs repository.SubmissionRepository,
	testcases repository.TestCaseStore,
	q *queue.Queue,
	limiter *RateLimiter,
	statuses *repository.StatusRepository,
	archive *repository.SourceArchive,
	hub *Hub,
	maxSourceBytes int,
) *AdmissionService {
	if maxSourceBytes <= 0 {
		maxSourceBytes = 64 * 1024
	}
	return &AdmissionService{
		subs:           subs,
		testcases:      testcases,
		queue:          q,
		limiter:        limiter,
		statuses:       statuses,
		archive:        archive,
		hub:            hub,
		maxSourceBytes: maxSourceBytes,
	}
}

// Submit runs the admission checks in order (payload, language, problem,
// rate limit, queue capacity), persists the pending submission and enqueues
// it. Any check failure rejects the request without side effects beyond the
// rate limit counter.
func (s *AdmissionService) Submit(ctx context.Context, req SubmitRequest) (*model.Submission, error) {
	if req.SourceCode == "" {
		return nil, appErr.ValidationError("source_code", "required")
	}
	if len(req.SourceCode) > s.maxSourceBytes {
		return nil, appErr.New(appErr.PayloadTooLarge).
			WithDetail("max_bytes", s.maxSourceBytes).
			WithDetail("actual_bytes", len(req.SourceCode))
	}

	lang, ok := model.ParseLanguage(req.Language)
	if !ok {
		return nil, appErr.Newf(appErr.LanguageNotSupported, "language %q is not supported", req.Language)
	}

	exists, err := s.testcases.ProblemExists(ctx, req.ProblemID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, appErr.New(appErr.ProblemNotFound).WithDetail("problem_id", req.ProblemID)
	}

	if err := s.limiter.Allow(ctx, req.UserID); err != nil {
		return nil, err
	}

	sub := &model.Submission{
		ID:          uuid.NewString(),
		ProblemID:   req.ProblemID,
		UserID:      req.UserID,
		Language:    lang,
		SourceCode:  req.SourceCode,
		Status:      model.StatusPending,
		SubmittedAt: time.Now(),
	}

	if s.archive != nil {
		key, err := s.archive.Put(ctx, sub.ID, sub.SourceCode)
		if err != nil {
			// Archiving is best-effort; the submission row carries the source.
			logger.Warn(ctx, "source archive failed",
				zap.String("submission_id", sub.ID),
				zap.Error(err))
		} else {
			sub.SourceKey = key
		}
	}

	// Persist before enqueueing: a worker may dequeue the instant the
	// submission enters the queue, and its ownership claim must find the
	// pending row. If the queue turns out to be full, the row is rolled
	// back under its pending guard so rejection leaves no trace.
	if err := s.subs.Create(ctx, sub); err != nil {
		logger.Error(ctx, "persist submission failed",
			zap.String("submission_id", sub.ID),
			zap.Error(err))
		return nil, err
	}
	if err := s.queue.Enqueue(sub); err != nil {
		if _, delErr := s.subs.DeletePending(ctx, sub.ID); delErr != nil {
			logger.Error(ctx, "roll back rejected submission failed",
				zap.String("submission_id", sub.ID),
				zap.Error(delErr))
		}
		return nil, err
	}

	s.publishSnapshot(ctx, sub.Snapshot())

	logger.Info(ctx, "submission admitted",
		zap.String("submission_id", sub.ID),
		zap.Int64("problem_id", sub.ProblemID),
		zap.Int64("user_id", sub.UserID),
		zap.String("language", string(sub.Language)),
		zap.Int("queue_depth", s.queue.Len()))
	return sub, nil
}

// GetStatus serves the submission's current snapshot, preferring the cache
// and falling back to the primary store on a miss.
func (s *AdmissionService) GetStatus(ctx context.Context, submissionID string) (*model.StatusSnapshot, error) {
	if s.statuses != nil {
		snap, err := s.statuses.Get(ctx, submissionID)
		if err != nil {
			logger.Warn(ctx, "status cache read failed",
				zap.String("submission_id", submissionID),
				zap.Error(err))
		} else if snap != nil {
			return snap, nil
		}
	}

	sub, err := s.subs.GetByID(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	snap := sub.Snapshot()
	if s.statuses != nil {
		if err := s.statuses.Save(ctx, snap); err != nil {
			logger.Warn(ctx, "status cache backfill failed",
				zap.String("submission_id", submissionID),
				zap.Error(err))
		}
	}
	return &snap, nil
}

// GetSource returns the archived source for a submission, falling back to
// the submission row when no archive key is present.
func (s *AdmissionService) GetSource(ctx context.Context, submissionID string) (string, error) {
	sub, err := s.subs.GetByID(ctx, submissionID)
	if err != nil {
		return "", err
	}
	if sub.SourceKey != "" && s.archive != nil {
		source, err := s.archive.Get(ctx, sub.SourceKey)
		if err == nil {
			return source, nil
		}
		logger.Warn(ctx, "archived source read failed",
			zap.String("submission_id", submissionID),
			zap.Error(err))
	}
	return sub.SourceCode, nil
}

func (s *AdmissionService) publishSnapshot(ctx context.Context, snap model.StatusSnapshot) {
	if s.statuses != nil {
		if err := s.statuses.Save(ctx, snap); err != nil {
			logger.Warn(ctx, "status cache write failed",
				zap.String("submission_id", snap.SubmissionID),
				zap.Error(err))
		}
	}
	if s.hub != nil {
		s.hub.Publish(snap)
	}
}
