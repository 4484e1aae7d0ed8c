package controller_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"dezolver/internal/grading/controller"
	"dezolver/internal/grading/model"
	"dezolver/internal/grading/queue"
	"dezolver/internal/grading/repository"
	"dezolver/internal/grading/service"
)

// flippingRepo serves a pending snapshot on the first read and a terminal one
// on every later read, simulating a grading run finishing between two reads.
type flippingRepo struct {
	mu    sync.Mutex
	reads int
	flip  bool
}

func (r *flippingRepo) GetByID(_ context.Context, submissionID string) (*model.Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reads++
	sub := &model.Submission{
		ID:          submissionID,
		ProblemID:   1,
		UserID:      1,
		Language:    model.LangPython,
		Status:      model.StatusPending,
		SubmittedAt: time.Now(),
	}
	if r.flip && r.reads > 1 {
		done := time.Now()
		sub.Status = model.StatusAccepted
		sub.Verdict = model.VerdictAccepted
		sub.Score = 100
		sub.CompletedAt = &done
	}
	return sub, nil
}

func (r *flippingRepo) Create(context.Context, *model.Submission) error { return nil }
func (r *flippingRepo) BeginGrading(context.Context, string, time.Time) (bool, error) {
	return false, nil
}
func (r *flippingRepo) ExtendLease(context.Context, string, time.Time) error { return nil }
func (r *flippingRepo) Finalize(context.Context, string, model.Verdict, int, int64, int64, time.Time) (bool, error) {
	return false, nil
}
func (r *flippingRepo) DeletePending(context.Context, string) (bool, error) { return false, nil }
func (r *flippingRepo) ListPending(context.Context, int) ([]*model.Submission, error) {
	return nil, nil
}
func (r *flippingRepo) ListExpiredRunning(context.Context, time.Time, int) ([]*model.Submission, error) {
	return nil, nil
}

func newEventsServer(t *testing.T, subs repository.SubmissionRepository, hub *service.Hub) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	svc := service.NewAdmissionService(subs, repository.NewMemoryTestCaseStore(), queue.New(1), nil, nil, nil, hub, 1024)
	router := gin.New()
	controller.NewSubmissionController(svc, hub).RegisterRoutes(router)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func dialEvents(t *testing.T, srv *httptest.Server, submissionID string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/submissions/" + submissionID + "/events"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial events: %v", err)
	}
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readSnapshot(t *testing.T, conn *websocket.Conn) model.StatusSnapshot {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var snap model.StatusSnapshot
	if err := conn.ReadJSON(&snap); err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	return snap
}

func TestStreamEventsCatchesTransitionDuringSetup(t *testing.T) {
	// The submission turns terminal right after the validation read. The
	// stream must deliver the terminal snapshot rather than the stale
	// pending one and a hang.
	repo := &flippingRepo{flip: true}
	srv := newEventsServer(t, repo, service.NewHub())

	conn := dialEvents(t, srv, "s1")
	snap := readSnapshot(t, conn)
	if snap.Status != model.StatusAccepted {
		t.Fatalf("first snapshot status = %q, want accepted", snap.Status)
	}
	if snap.Score != 100 {
		t.Fatalf("score = %d, want 100", snap.Score)
	}
}

func TestStreamEventsPushesLiveTransitions(t *testing.T) {
	repo := &flippingRepo{}
	hub := service.NewHub()
	srv := newEventsServer(t, repo, hub)

	conn := dialEvents(t, srv, "s1")
	snap := readSnapshot(t, conn)
	if snap.Status != model.StatusPending {
		t.Fatalf("first snapshot status = %q, want pending", snap.Status)
	}

	hub.Publish(model.StatusSnapshot{
		SubmissionID: "s1",
		Status:       model.StatusWrongAnswer,
		Verdict:      model.VerdictWrongAnswer,
		Score:        40,
	})

	snap = readSnapshot(t, conn)
	if snap.Status != model.StatusWrongAnswer || snap.Score != 40 {
		t.Fatalf("pushed snapshot = %+v, want wrong_answer/40", snap)
	}
}
