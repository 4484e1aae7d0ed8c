package service_test

import (
	"context"
	"testing"
	"time"

	"dezolver/internal/grading/model"
	"dezolver/internal/grading/repository"
	"dezolver/internal/grading/service"
)

func TestSweeperReclaimsExpiredLease(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	subs := repository.NewMemorySubmissionRepository()
	sub := &model.Submission{
		ID:          "stuck",
		ProblemID:   1,
		UserID:      1,
		Language:    model.LangPython,
		Status:      model.StatusPending,
		SubmittedAt: time.Now(),
	}
	if err := subs.Create(ctx, sub); err != nil {
		t.Fatalf("create: %v", err)
	}
	// Simulate a worker that claimed the submission and died: lease in the past.
	if ok, _ := subs.BeginGrading(ctx, "stuck", time.Now().Add(-time.Minute)); !ok {
		t.Fatal("claim failed")
	}

	sweeper := service.NewSweeper(subs, nil, service.NewHub(), 10*time.Millisecond)
	go sweeper.Run(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		got, err := subs.GetByID(ctx, "stuck")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.Status.IsTerminal() {
			if got.Status != model.StatusInternalError || got.Verdict != model.VerdictInternalError {
				t.Fatalf("status/verdict = %q/%q, want internal_error", got.Status, got.Verdict)
			}
			if got.Score != 0 {
				t.Fatalf("score = %d, want 0", got.Score)
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("sweeper never reclaimed the expired submission")
}

func TestSweeperLeavesHealthyLeaseAlone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	subs := repository.NewMemorySubmissionRepository()
	sub := &model.Submission{
		ID:          "healthy",
		ProblemID:   1,
		UserID:      1,
		Language:    model.LangPython,
		Status:      model.StatusPending,
		SubmittedAt: time.Now(),
	}
	if err := subs.Create(ctx, sub); err != nil {
		t.Fatalf("create: %v", err)
	}
	if ok, _ := subs.BeginGrading(ctx, "healthy", time.Now().Add(time.Hour)); !ok {
		t.Fatal("claim failed")
	}

	sweeper := service.NewSweeper(subs, nil, service.NewHub(), 10*time.Millisecond)
	go sweeper.Run(ctx)

	time.Sleep(150 * time.Millisecond)
	got, err := subs.GetByID(ctx, "healthy")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != model.StatusRunning {
		t.Fatalf("status = %q, want running", got.Status)
	}
}

func TestSweeperDoesNotOverwriteTerminal(t *testing.T) {
	ctx := context.Background()
	subs := repository.NewMemorySubmissionRepository()
	sub := &model.Submission{
		ID:          "done",
		ProblemID:   1,
		UserID:      1,
		Language:    model.LangPython,
		Status:      model.StatusPending,
		SubmittedAt: time.Now(),
	}
	if err := subs.Create(ctx, sub); err != nil {
		t.Fatalf("create: %v", err)
	}
	if ok, _ := subs.BeginGrading(ctx, "done", time.Now().Add(-time.Minute)); !ok {
		t.Fatal("claim failed")
	}
	// The worker finishes just before the sweep runs.
	if ok, _ := subs.Finalize(ctx, "done", model.VerdictAccepted, 100, 10, 1024, time.Now()); !ok {
		t.Fatal("finalize failed")
	}

	runCtx, cancel := context.WithCancel(ctx)
	sweeper := service.NewSweeper(subs, nil, service.NewHub(), 10*time.Millisecond)
	go sweeper.Run(runCtx)
	time.Sleep(100 * time.Millisecond)
	cancel()

	got, err := subs.GetByID(ctx, "done")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != model.StatusAccepted || got.Score != 100 {
		t.Fatalf("status/score = %q/%d, want accepted/100", got.Status, got.Score)
	}
}
