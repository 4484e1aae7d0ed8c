package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"dezolver/internal/common/cache"
	"dezolver/internal/grading/model"
	"dezolver/internal/grading/repository"
)

func newTestCache(t *testing.T) cache.Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c, err := cache.NewRedisCacheWithClient(client)
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	return c
}

func TestStatusRepositorySaveAndGet(t *testing.T) {
	ctx := context.Background()
	statuses := repository.NewStatusRepository(newTestCache(t), time.Hour)

	snap := model.StatusSnapshot{
		SubmissionID: "s1",
		Status:       model.StatusRunning,
		SubmittedAt:  time.Now().Unix(),
	}
	if err := statuses.Save(ctx, snap); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := statuses.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil {
		t.Fatal("get returned nil, want snapshot")
	}
	if got.Status != model.StatusRunning || got.SubmissionID != "s1" {
		t.Fatalf("snapshot = %+v", got)
	}
}

func TestStatusRepositoryOverwrite(t *testing.T) {
	ctx := context.Background()
	statuses := repository.NewStatusRepository(newTestCache(t), time.Hour)

	if err := statuses.Save(ctx, model.StatusSnapshot{SubmissionID: "s1", Status: model.StatusRunning}); err != nil {
		t.Fatalf("save running: %v", err)
	}
	final := model.StatusSnapshot{
		SubmissionID: "s1",
		Status:       model.StatusAccepted,
		Verdict:      model.VerdictAccepted,
		Score:        100,
	}
	if err := statuses.Save(ctx, final); err != nil {
		t.Fatalf("save terminal: %v", err)
	}

	got, err := statuses.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != model.StatusAccepted || got.Score != 100 {
		t.Fatalf("snapshot = %+v, want accepted with score 100", got)
	}
}

func TestStatusRepositoryMiss(t *testing.T) {
	statuses := repository.NewStatusRepository(newTestCache(t), time.Hour)
	got, err := statuses.Get(context.Background(), "missing")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Fatalf("got %+v, want nil on miss", got)
	}
}
