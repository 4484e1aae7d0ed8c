// Package repository provides persistence for submissions, test suites,
// status snapshots and archived sources behind swappable interfaces.
package repository

import (
	"context"
	"time"

	"dezolver/internal/common/db"
	"dezolver/internal/grading/model"
	appErr "dezolver/pkg/errors"
)

// SubmissionRepository persists submission records and owns every status
// transition. The guarded updates (BeginGrading, Finalize) are the mechanism
// behind the at-most-one-worker and terminal-immutability invariants.
type SubmissionRepository interface {
	// Create inserts a new pending submission.
	Create(ctx context.Context, sub *model.Submission) error

	// GetByID retrieves a submission by id, or SubmissionNotFound.
	GetByID(ctx context.Context, submissionID string) (*model.Submission, error)

	// BeginGrading atomically transitions pending -> running and writes the
	// ownership lease. Returns false when the submission was not pending,
	// meaning another worker already owns it.
	BeginGrading(ctx context.Context, submissionID string, leaseUntil time.Time) (bool, error)

	// ExtendLease refreshes the lease on a running submission.
	ExtendLease(ctx context.Context, submissionID string, leaseUntil time.Time) error

	// Finalize atomically transitions running -> terminal with the verdict,
	// score and resource aggregates. Returns false when the submission was
	// not running (already terminal, or reclaimed by the sweep).
	Finalize(ctx context.Context, submissionID string, verdict model.Verdict, score int, timeUsedMs, memoryUsedKB int64, completedAt time.Time) (bool, error)

	// DeletePending removes a submission that is still pending, as a
	// compensating rollback when admission fails after the row was written.
	// Returns false when the submission was not pending.
	DeletePending(ctx context.Context, submissionID string) (bool, error)

	// ListPending returns pending submissions in admission order, for
	// requeueing after a restart.
	ListPending(ctx context.Context, limit int) ([]*model.Submission, error)

	// ListExpiredRunning returns running submissions whose lease expired
	// before now, for the supervisory sweep.
	ListExpiredRunning(ctx context.Context, now time.Time, limit int) ([]*model.Submission, error)
}

// MySQLSubmissionRepository implements SubmissionRepository with MySQL.
type MySQLSubmissionRepository struct {
	db db.Database
}

// NewSubmissionRepository creates a MySQL-backed submission repository.
func NewSubmissionRepository(database db.Database) *MySQLSubmissionRepository {
	return &MySQLSubmissionRepository{db: database}
}

const submissionColumns = "submission_id, problem_id, user_id, language, source_code, source_key, status, verdict, score, time_used_ms, memory_used_kb, submitted_at, completed_at, lease_expires_at"

// Create inserts a submission record.
func (r *MySQLSubmissionRepository) Create(ctx context.Context, sub *model.Submission) error {
	if sub == nil {
		return appErr.New(appErr.InvalidParams).WithMessage("submission is nil")
	}
	if sub.ID == "" {
		return appErr.ValidationError("submission_id", "required")
	}
	if sub.Status != model.StatusPending {
		return appErr.Newf(appErr.InvalidParams, "new submission must be pending, got %q", sub.Status)
	}

	query := `
		INSERT INTO submissions
		(submission_id, problem_id, user_id, language, source_code, source_key, status, score, submitted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.Exec(
		ctx,
		query,
		sub.ID,
		sub.ProblemID,
		sub.UserID,
		string(sub.Language),
		sub.SourceCode,
		sub.SourceKey,
		string(sub.Status),
		sub.Score,
		sub.SubmittedAt,
	)
	if err != nil {
		if _, dup := db.UniqueViolation(err); dup {
			return appErr.Wrap(err, appErr.SubmissionCreateFailed).WithMessage("submission already exists")
		}
		return appErr.Wrapf(err, appErr.DatabaseError, "insert submission failed")
	}
	return nil
}

// GetByID retrieves a submission by id.
func (r *MySQLSubmissionRepository) GetByID(ctx context.Context, submissionID string) (*model.Submission, error) {
	if submissionID == "" {
		return nil, appErr.ValidationError("submission_id", "required")
	}
	query := "SELECT " + submissionColumns + " FROM submissions WHERE submission_id = ? LIMIT 1"
	row := r.db.QueryRow(ctx, query, submissionID)
	sub, err := scanSubmission(row)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, appErr.New(appErr.SubmissionNotFound)
		}
		return nil, appErr.Wrapf(err, appErr.DatabaseError, "get submission failed")
	}
	return sub, nil
}

// BeginGrading transitions pending -> running with a compare-and-swap on status.
func (r *MySQLSubmissionRepository) BeginGrading(ctx context.Context, submissionID string, leaseUntil time.Time) (bool, error) {
	query := `
		UPDATE submissions
		SET status = ?, lease_expires_at = ?
		WHERE submission_id = ? AND status = ?
	`
	res, err := r.db.Exec(ctx, query, string(model.StatusRunning), leaseUntil, submissionID, string(model.StatusPending))
	if err != nil {
		return false, appErr.Wrapf(err, appErr.DatabaseError, "begin grading failed")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, appErr.Wrapf(err, appErr.DatabaseError, "begin grading failed")
	}
	return affected == 1, nil
}

// ExtendLease refreshes the lease while the submission is still running.
func (r *MySQLSubmissionRepository) ExtendLease(ctx context.Context, submissionID string, leaseUntil time.Time) error {
	query := `
		UPDATE submissions
		SET lease_expires_at = ?
		WHERE submission_id = ? AND status = ?
	`
	res, err := r.db.Exec(ctx, query, leaseUntil, submissionID, string(model.StatusRunning))
	if err != nil {
		return appErr.Wrapf(err, appErr.DatabaseError, "extend lease failed")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return appErr.Wrapf(err, appErr.DatabaseError, "extend lease failed")
	}
	if affected != 1 {
		return appErr.New(appErr.LeaseLost)
	}
	return nil
}

// Finalize transitions running -> terminal with a compare-and-swap on status.
func (r *MySQLSubmissionRepository) Finalize(ctx context.Context, submissionID string, verdict model.Verdict, score int, timeUsedMs, memoryUsedKB int64, completedAt time.Time) (bool, error) {
	query := `
		UPDATE submissions
		SET status = ?, verdict = ?, score = ?, time_used_ms = ?, memory_used_kb = ?, completed_at = ?, lease_expires_at = NULL
		WHERE submission_id = ? AND status = ?
	`
	res, err := r.db.Exec(
		ctx,
		query,
		string(verdict.Status()),
		string(verdict),
		score,
		timeUsedMs,
		memoryUsedKB,
		completedAt,
		submissionID,
		string(model.StatusRunning),
	)
	if err != nil {
		return false, appErr.Wrapf(err, appErr.DatabaseError, "finalize submission failed")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, appErr.Wrapf(err, appErr.DatabaseError, "finalize submission failed")
	}
	return affected == 1, nil
}

// DeletePending removes a pending submission, guarded on status so a row a
// worker already claimed is never deleted.
func (r *MySQLSubmissionRepository) DeletePending(ctx context.Context, submissionID string) (bool, error) {
	res, err := r.db.Exec(
		ctx,
		"DELETE FROM submissions WHERE submission_id = ? AND status = ?",
		submissionID,
		string(model.StatusPending),
	)
	if err != nil {
		return false, appErr.Wrapf(err, appErr.DatabaseError, "delete pending submission failed")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, appErr.Wrapf(err, appErr.DatabaseError, "delete pending submission failed")
	}
	return affected == 1, nil
}

// ListPending returns pending submissions in admission order.
func (r *MySQLSubmissionRepository) ListPending(ctx context.Context, limit int) ([]*model.Submission, error) {
	if limit <= 0 {
		limit = 100
	}
	query := "SELECT " + submissionColumns + " FROM submissions WHERE status = ? ORDER BY submitted_at ASC LIMIT ?"
	return r.list(ctx, query, string(model.StatusPending), limit)
}

// ListExpiredRunning returns running submissions whose lease expired.
func (r *MySQLSubmissionRepository) ListExpiredRunning(ctx context.Context, now time.Time, limit int) ([]*model.Submission, error) {
	if limit <= 0 {
		limit = 100
	}
	query := "SELECT " + submissionColumns + " FROM submissions WHERE status = ? AND lease_expires_at IS NOT NULL AND lease_expires_at < ? ORDER BY lease_expires_at ASC LIMIT ?"
	return r.list(ctx, query, string(model.StatusRunning), now, limit)
}

func (r *MySQLSubmissionRepository) list(ctx context.Context, query string, args ...interface{}) ([]*model.Submission, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.DatabaseError, "list submissions failed")
	}
	defer rows.Close()

	var subs []*model.Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, appErr.Wrapf(err, appErr.DatabaseError, "scan submission failed")
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, appErr.Wrapf(err, appErr.DatabaseError, "iterate submissions failed")
	}
	return subs, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSubmission(row scanner) (*model.Submission, error) {
	sub := &model.Submission{}
	var (
		language  string
		status    string
		verdict   *string
		sourceKey *string
		completed *time.Time
		lease     *time.Time
	)
	if err := row.Scan(
		&sub.ID,
		&sub.ProblemID,
		&sub.UserID,
		&language,
		&sub.SourceCode,
		&sourceKey,
		&status,
		&verdict,
		&sub.Score,
		&sub.TimeUsedMs,
		&sub.MemoryUsedKB,
		&sub.SubmittedAt,
		&completed,
		&lease,
	); err != nil {
		return nil, err
	}
	sub.Language = model.Language(language)
	sub.Status = model.Status(status)
	if verdict != nil {
		sub.Verdict = model.Verdict(*verdict)
	}
	if sourceKey != nil {
		sub.SourceKey = *sourceKey
	}
	sub.CompletedAt = completed
	sub.LeaseExpiresAt = lease
	return sub, nil
}
