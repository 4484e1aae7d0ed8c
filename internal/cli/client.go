// Package cli implements the interactive grader console: a small HTTP client
// for the grading API and a readline-driven REPL around it.
package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"dezolver/internal/grading/model"
	appErr "dezolver/pkg/errors"
)

// Client talks to a running grader instance.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the grader at baseURL, e.g.
// "http://localhost:8080".
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// apiEnvelope mirrors the server's response wrapper.
type apiEnvelope struct {
	Code    appErr.ErrorCode `json:"code"`
	Message string           `json:"message"`
	Data    json.RawMessage  `json:"data"`
}

// Submit sends a new submission and returns its initial snapshot.
func (c *Client) Submit(ctx context.Context, problemID, userID int64, language, sourceCode string) (*model.StatusSnapshot, error) {
	body, err := json.Marshal(map[string]interface{}{
		"problem_id":  problemID,
		"user_id":     userID,
		"language":    language,
		"source_code": sourceCode,
	})
	if err != nil {
		return nil, err
	}

	var snap model.StatusSnapshot
	if err := c.do(ctx, http.MethodPost, "/api/v1/submissions", bytes.NewReader(body), &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Status fetches the current snapshot for a submission.
func (c *Client) Status(ctx context.Context, submissionID string) (*model.StatusSnapshot, error) {
	var snap model.StatusSnapshot
	if err := c.do(ctx, http.MethodGet, "/api/v1/submissions/"+url.PathEscape(submissionID), nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Languages lists the language identifiers the grader accepts.
func (c *Client) Languages(ctx context.Context) ([]string, error) {
	var data struct {
		Languages []string `json:"languages"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/languages", nil, &data); err != nil {
		return nil, err
	}
	return data.Languages, nil
}

// Watch streams snapshots over the events websocket, invoking onUpdate for
// each, until the submission turns terminal or ctx is canceled.
func (c *Client) Watch(ctx context.Context, submissionID string, onUpdate func(model.StatusSnapshot)) error {
	wsURL := strings.Replace(c.baseURL, "http", "ws", 1) +
		"/api/v1/submissions/" + url.PathEscape(submissionID) + "/events"

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return fmt.Errorf("connect events stream: %w", err)
	}
	defer conn.Close()

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()
	defer close(done)

	for {
		var snap model.StatusSnapshot
		if err := conn.ReadJSON(&snap); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) || ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read events stream: %w", err)
		}
		onUpdate(snap)
		if snap.Status.IsTerminal() {
			return nil
		}
	}
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var envelope apiEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("unexpected response (%d): %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if envelope.Code != appErr.Success {
		return appErr.New(envelope.Code).WithMessage(envelope.Message)
	}
	if out != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("decode response data: %w", err)
		}
	}
	return nil
}
