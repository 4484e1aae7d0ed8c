// Package queue provides the bounded in-process submission queue drained by
// the worker pool.
package queue

import (
	"context"
	"sync"

	"dezolver/internal/grading/model"
	appErr "dezolver/pkg/errors"
)

// Queue buffers admitted submissions in first-admitted-first-served order and
// hands each to exactly one caller of Dequeue. Channel semantics guarantee
// exactly-once delivery across concurrent workers.
type Queue struct {
	ch chan *model.Submission

	mu     sync.Mutex
	closed bool
}

// New creates a queue with the given maximum depth.
func New(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue{ch: make(chan *model.Submission, capacity)}
}

// Enqueue accepts a pending submission. It never blocks: when the queue is at
// capacity it fails with CapacityExceeded so the admission endpoint can reject
// with a retryable error instead of stalling the client.
func (q *Queue) Enqueue(sub *model.Submission) error {
	if sub == nil {
		return appErr.New(appErr.InvalidParams).WithMessage("submission is nil")
	}
	if sub.Status != model.StatusPending {
		return appErr.Newf(appErr.InvalidParams, "cannot enqueue submission in status %q", sub.Status)
	}

	// Holding the lock through the send keeps Close from closing the channel
	// mid-send. Receivers are unaffected; the send never blocks.
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return appErr.New(appErr.ServiceUnavailable).WithMessage("queue is closed")
	}

	select {
	case q.ch <- sub:
		return nil
	default:
		return appErr.New(appErr.CapacityExceeded)
	}
}

// Dequeue blocks until a submission is available, the context is canceled, or
// the queue is closed and drained. Dequeue does not mutate submission status;
// the worker transitions it after taking ownership.
func (q *Queue) Dequeue(ctx context.Context) (*model.Submission, error) {
	select {
	case sub, ok := <-q.ch:
		if !ok {
			return nil, appErr.New(appErr.ServiceUnavailable).WithMessage("queue is closed")
		}
		return sub, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Len returns the current queue depth.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Cap returns the maximum queue depth.
func (q *Queue) Cap() int {
	return cap(q.ch)
}

// Close stops accepting new submissions. Buffered submissions remain
// dequeueable until drained.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.ch)
}
