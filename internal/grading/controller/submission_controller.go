// Package controller exposes the grading pipeline over HTTP.
package controller

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"dezolver/internal/grading/model"
	"dezolver/internal/grading/service"
	"dezolver/pkg/utils/logger"
	"dezolver/pkg/utils/response"
)

// SubmissionController handles submission admission, status polling and the
// live status event stream.
type SubmissionController struct {
	admission *service.AdmissionService
	hub       *service.Hub
	upgrader  websocket.Upgrader
}

// NewSubmissionController creates the controller.
func NewSubmissionController(admission *service.AdmissionService, hub *service.Hub) *SubmissionController {
	return &SubmissionController{
		admission: admission,
		hub:       hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// RegisterRoutes mounts the grading API under /api/v1.
func (ctl *SubmissionController) RegisterRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")
	{
		v1.POST("/submissions", ctl.Submit)
		v1.GET("/submissions/:id", ctl.GetStatus)
		v1.GET("/submissions/:id/source", ctl.GetSource)
		v1.GET("/submissions/:id/events", ctl.StreamEvents)
		v1.GET("/languages", ctl.ListLanguages)
	}
}

// Submit admits a new submission.
// POST /api/v1/submissions
func (ctl *SubmissionController) Submit(c *gin.Context) {
	var req service.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	sub, err := ctl.admission.Submit(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, sub.Snapshot())
}

// GetStatus returns the current status snapshot.
// GET /api/v1/submissions/:id
func (ctl *SubmissionController) GetStatus(c *gin.Context) {
	snap, err := ctl.admission.GetStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, snap)
}

// GetSource returns the submitted source code.
// GET /api/v1/submissions/:id/source
func (ctl *SubmissionController) GetSource(c *gin.Context) {
	source, err := ctl.admission.GetSource(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"source_code": source})
}

// ListLanguages returns the supported language identifiers.
// GET /api/v1/languages
func (ctl *SubmissionController) ListLanguages(c *gin.Context) {
	langs := model.SupportedLanguages()
	out := make([]string, len(langs))
	for i, l := range langs {
		out[i] = string(l)
	}
	response.Success(c, gin.H{"languages": out})
}

// StreamEvents upgrades to a websocket and pushes status snapshots until the
// submission reaches a terminal state or the client disconnects.
// GET /api/v1/submissions/:id/events
func (ctl *SubmissionController) StreamEvents(c *gin.Context) {
	submissionID := c.Param("id")
	ctx := c.Request.Context()

	// Validate before upgrading so unknown ids get a proper HTTP error.
	if _, err := ctl.admission.GetStatus(ctx, submissionID); err != nil {
		response.Error(c, err)
		return
	}

	conn, err := ctl.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn(ctx, "websocket upgrade failed",
			zap.String("submission_id", submissionID),
			zap.Error(err))
		return
	}
	defer conn.Close()

	events, cancel := ctl.hub.Subscribe(submissionID)
	defer cancel()

	// Re-read after subscribing: a transition published between the
	// validation read and the subscription would otherwise be lost and the
	// watcher would hang on a snapshot that is already stale.
	snap, err := ctl.admission.GetStatus(ctx, submissionID)
	if err != nil {
		logger.Warn(ctx, "status read failed after subscribe",
			zap.String("submission_id", submissionID),
			zap.Error(err))
		return
	}
	if err := ctl.writeSnapshot(conn, *snap); err != nil {
		return
	}
	if snap.Status.IsTerminal() {
		return
	}

	// Drain client frames so close handshakes and pings are processed.
	clientGone := make(chan struct{})
	go func() {
		defer close(clientGone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-clientGone:
			return
		case snap, ok := <-events:
			if !ok {
				return
			}
			if err := ctl.writeSnapshot(conn, snap); err != nil {
				return
			}
			if snap.Status.IsTerminal() {
				conn.WriteControl(
					websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(snap.Status)),
					time.Now().Add(time.Second),
				)
				return
			}
		}
	}
}

func (ctl *SubmissionController) writeSnapshot(conn *websocket.Conn, snap model.StatusSnapshot) error {
	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return conn.WriteJSON(snap)
}
