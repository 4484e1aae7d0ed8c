package repository_test

import (
	"context"
	"testing"
	"time"

	"dezolver/internal/grading/model"
	"dezolver/internal/grading/repository"
	appErr "dezolver/pkg/errors"
)

func newPending(id string) *model.Submission {
	return &model.Submission{
		ID:          id,
		ProblemID:   1,
		UserID:      1,
		Language:    model.LangPython,
		SourceCode:  "print(1)",
		Status:      model.StatusPending,
		SubmittedAt: time.Now(),
	}
}

func TestBeginGradingClaimsOnlyOnce(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemorySubmissionRepository()
	if err := repo.Create(ctx, newPending("s1")); err != nil {
		t.Fatalf("create: %v", err)
	}

	lease := time.Now().Add(30 * time.Second)
	ok, err := repo.BeginGrading(ctx, "s1", lease)
	if err != nil || !ok {
		t.Fatalf("first claim: ok=%v err=%v", ok, err)
	}

	// A second worker racing for the same submission must lose.
	ok, err = repo.BeginGrading(ctx, "s1", lease)
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if ok {
		t.Fatal("second claim succeeded, want rejection")
	}

	sub, err := repo.GetByID(ctx, "s1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if sub.Status != model.StatusRunning {
		t.Fatalf("status = %q, want running", sub.Status)
	}
	if sub.LeaseExpiresAt == nil {
		t.Fatal("lease not recorded")
	}
}

func TestFinalizeIsTerminalExactlyOnce(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemorySubmissionRepository()
	if err := repo.Create(ctx, newPending("s1")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if ok, _ := repo.BeginGrading(ctx, "s1", time.Now().Add(time.Minute)); !ok {
		t.Fatal("claim failed")
	}

	now := time.Now()
	ok, err := repo.Finalize(ctx, "s1", model.VerdictAccepted, 30, 120, 2048, now)
	if err != nil || !ok {
		t.Fatalf("finalize: ok=%v err=%v", ok, err)
	}

	// The sweep racing the worker must not overwrite the verdict.
	ok, err = repo.Finalize(ctx, "s1", model.VerdictInternalError, 0, 0, 0, now)
	if err != nil {
		t.Fatalf("second finalize: %v", err)
	}
	if ok {
		t.Fatal("second finalize succeeded, want rejection")
	}

	sub, err := repo.GetByID(ctx, "s1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if sub.Status != model.StatusAccepted || sub.Verdict != model.VerdictAccepted {
		t.Fatalf("status/verdict = %q/%q, want accepted", sub.Status, sub.Verdict)
	}
	if sub.Score != 30 || sub.TimeUsedMs != 120 || sub.MemoryUsedKB != 2048 {
		t.Fatalf("aggregates = %d/%d/%d, want 30/120/2048", sub.Score, sub.TimeUsedMs, sub.MemoryUsedKB)
	}
	if sub.LeaseExpiresAt != nil {
		t.Fatal("lease not cleared on finalize")
	}
}

func TestExtendLeaseOnNonRunningFails(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemorySubmissionRepository()
	if err := repo.Create(ctx, newPending("s1")); err != nil {
		t.Fatalf("create: %v", err)
	}

	err := repo.ExtendLease(ctx, "s1", time.Now().Add(time.Minute))
	if !appErr.Is(err, appErr.LeaseLost) {
		t.Fatalf("extend lease on pending: got %v, want LeaseLost", err)
	}
}

func TestListExpiredRunning(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemorySubmissionRepository()
	now := time.Now()

	for _, id := range []string{"fresh", "stale"} {
		if err := repo.Create(ctx, newPending(id)); err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
	}
	if ok, _ := repo.BeginGrading(ctx, "fresh", now.Add(time.Minute)); !ok {
		t.Fatal("claim fresh failed")
	}
	if ok, _ := repo.BeginGrading(ctx, "stale", now.Add(-time.Minute)); !ok {
		t.Fatal("claim stale failed")
	}

	expired, err := repo.ListExpiredRunning(ctx, now, 10)
	if err != nil {
		t.Fatalf("list expired: %v", err)
	}
	if len(expired) != 1 || expired[0].ID != "stale" {
		t.Fatalf("expired = %+v, want only stale", expired)
	}
}

func TestListPendingOrdersByAdmission(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemorySubmissionRepository()
	base := time.Now()

	for i, id := range []string{"third", "first", "second"} {
		sub := newPending(id)
		switch i {
		case 0:
			sub.SubmittedAt = base.Add(2 * time.Second)
		case 1:
			sub.SubmittedAt = base
		case 2:
			sub.SubmittedAt = base.Add(time.Second)
		}
		if err := repo.Create(ctx, sub); err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
	}

	pending, err := repo.ListPending(ctx, 10)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	want := []string{"first", "second", "third"}
	if len(pending) != len(want) {
		t.Fatalf("pending count = %d, want %d", len(pending), len(want))
	}
	for i, sub := range pending {
		if sub.ID != want[i] {
			t.Fatalf("pending[%d] = %s, want %s", i, sub.ID, want[i])
		}
	}
}

func TestGetByIDUnknownSubmission(t *testing.T) {
	repo := repository.NewMemorySubmissionRepository()
	_, err := repo.GetByID(context.Background(), "missing")
	if !appErr.Is(err, appErr.SubmissionNotFound) {
		t.Fatalf("got %v, want SubmissionNotFound", err)
	}
}
