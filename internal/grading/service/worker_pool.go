package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"dezolver/internal/grading/model"
	"dezolver/internal/grading/queue"
	"dezolver/internal/grading/repository"
	"dezolver/internal/grading/resolver"
	"dezolver/internal/grading/sandbox"
	appErr "dezolver/pkg/errors"
	"dezolver/pkg/utils/logger"
)

// WorkerPoolConfig bounds concurrency and the supervisory timings.
type WorkerPoolConfig struct {
	// Workers is the number of concurrent grading goroutines.
	Workers int
	// LeaseTTL is how long a worker may go without renewing ownership before
	// the sweep reclaims the submission.
	LeaseTTL time.Duration
	// RunMargin is added to the per-case time limit when deriving the hard
	// context deadline, so the sandbox gets first chance to report a timeout.
	RunMargin time.Duration
}

func (c *WorkerPoolConfig) applyDefaults() {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.LeaseTTL <= 0 {
		c.LeaseTTL = 30 * time.Second
	}
	if c.RunMargin <= 0 {
		c.RunMargin = 2 * time.Second
	}
}

// WorkerPool drains the queue with a fixed number of workers. Each worker
// claims exclusive ownership of a submission before grading it, renews its
// lease between test cases, and writes exactly one terminal transition.
type WorkerPool struct {
	cfg       WorkerPoolConfig
	queue     *queue.Queue
	subs      repository.SubmissionRepository
	testcases repository.TestCaseStore
	sandbox   sandbox.Sandbox
	statuses  *repository.StatusRepository
	archive   *repository.SourceArchive
	hub       *Hub

	wg sync.WaitGroup
}

// NewWorkerPool wires the grading workers. statuses, archive and hub may be
// nil; the corresponding side channels are then skipped.
func NewWorkerPool(
	cfg WorkerPoolConfig,
	q *queue.Queue,
	subs repository.SubmissionRepository,
	testcases repository.TestCaseStore,
	sb sandbox.Sandbox,
	statuses *repository.StatusRepository,
	archive *repository.SourceArchive,
	hub *Hub,
) *WorkerPool {
	cfg.applyDefaults()
	return &WorkerPool{
		cfg:       cfg,
		queue:     q,
		subs:      subs,
		testcases: testcases,
		sandbox:   sb,
		statuses:  statuses,
		archive:   archive,
		hub:       hub,
	}
}

// Start requeues submissions stranded in pending by a previous run, then
// launches the workers. It returns immediately; call Wait after canceling
// ctx to drain.
func (p *WorkerPool) Start(ctx context.Context) {
	p.requeuePending(ctx)

	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
	logger.Info(ctx, "worker pool started", zap.Int("workers", p.cfg.Workers))
}

// Wait blocks until every worker has exited.
func (p *WorkerPool) Wait() {
	p.wg.Wait()
}

// requeuePending reloads pending submissions into the queue after a restart.
// The queue is volatile; the pending rows are the durable backlog.
func (p *WorkerPool) requeuePending(ctx context.Context) {
	pending, err := p.subs.ListPending(ctx, p.queue.Cap())
	if err != nil {
		logger.Error(ctx, "requeue pending submissions failed", zap.Error(err))
		return
	}
	requeued := 0
	for _, sub := range pending {
		if err := p.queue.Enqueue(sub); err != nil {
			logger.Warn(ctx, "requeue stopped",
				zap.String("submission_id", sub.ID),
				zap.Error(err))
			break
		}
		requeued++
	}
	if requeued > 0 {
		logger.Info(ctx, "requeued pending submissions", zap.Int("count", requeued))
	}
}

func (p *WorkerPool) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	for {
		sub, err := p.queue.Dequeue(ctx)
		if err != nil {
			logger.Info(ctx, "worker stopping", zap.Int("worker", id))
			return
		}
		p.gradeSafely(ctx, sub)
	}
}

// gradeSafely isolates one submission's grading so a panic condemns only
// that submission, never the worker.
func (p *WorkerPool) gradeSafely(ctx context.Context, sub *model.Submission) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error(ctx, "grading panicked",
				zap.String("submission_id", sub.ID),
				zap.Any("panic", r))
			p.finalize(ctx, sub, resolver.Result{Verdict: model.VerdictInternalError}, 0, 0)
		}
	}()
	p.grade(ctx, sub)
}

func (p *WorkerPool) grade(ctx context.Context, sub *model.Submission) {
	ok, err := p.subs.BeginGrading(ctx, sub.ID, time.Now().Add(p.cfg.LeaseTTL))
	if err != nil {
		logger.Error(ctx, "claim submission failed",
			zap.String("submission_id", sub.ID),
			zap.Error(err))
		return
	}
	if !ok {
		// Another worker owns it or it was already graded; not ours.
		logger.Debug(ctx, "submission not claimable", zap.String("submission_id", sub.ID))
		return
	}

	sub.Status = model.StatusRunning
	p.publishSnapshot(ctx, sub.Snapshot())

	suite, err := p.testcases.GetTestSuite(ctx, sub.ProblemID)
	if err != nil {
		logger.Error(ctx, "load test suite failed",
			zap.String("submission_id", sub.ID),
			zap.Int64("problem_id", sub.ProblemID),
			zap.Error(err))
		p.finalize(ctx, sub, resolver.Result{Verdict: model.VerdictInternalError}, 0, 0)
		return
	}
	if len(suite.Cases) == 0 {
		logger.Error(ctx, "problem has no test cases",
			zap.String("submission_id", sub.ID),
			zap.Int64("problem_id", sub.ProblemID))
		p.finalize(ctx, sub, resolver.Result{Verdict: model.VerdictInternalError}, 0, 0)
		return
	}

	source := sub.SourceCode
	if source == "" && sub.SourceKey != "" && p.archive != nil {
		source, err = p.archive.Get(ctx, sub.SourceKey)
		if err != nil {
			logger.Error(ctx, "load archived source failed",
				zap.String("submission_id", sub.ID),
				zap.Error(err))
			p.finalize(ctx, sub, resolver.Result{Verdict: model.VerdictInternalError}, 0, 0)
			return
		}
	}

	outcomes, maxTime, maxMem, abandoned := p.runCases(ctx, sub, source, suite)
	if abandoned {
		// Lease lost mid-run: the sweep owns the submission now, and writing
		// a verdict here could overwrite its terminal transition.
		return
	}

	result := resolver.Resolve(outcomes, suite)
	p.finalize(ctx, sub, result, maxTime, maxMem)
}

// runCases executes test cases in order, stopping at the first failure.
// It returns the collected outcomes and the worst-case time/memory seen.
func (p *WorkerPool) runCases(ctx context.Context, sub *model.Submission, source string, suite *model.TestSuite) (outcomes []sandbox.Outcome, maxTime, maxMem int64, abandoned bool) {
	for i, tc := range suite.Cases {
		runCtx, cancel := context.WithTimeout(ctx, time.Duration(suite.TimeLimitMs)*time.Millisecond+p.cfg.RunMargin)
		out, err := p.sandbox.Run(runCtx, sandbox.Request{
			SubmissionID:  sub.ID,
			Language:      sub.Language,
			SourceCode:    source,
			Stdin:         tc.Input,
			TimeLimitMs:   suite.TimeLimitMs,
			MemoryLimitKB: suite.MemoryLimitKB,
		})
		cancel()
		if err != nil {
			logger.Error(ctx, "sandbox run failed",
				zap.String("submission_id", sub.ID),
				zap.Int("case", i),
				zap.Error(err))
			out = sandbox.Outcome{ExitClass: sandbox.ExitSandboxError}
		}

		outcomes = append(outcomes, out)
		if out.ElapsedMs > maxTime {
			maxTime = out.ElapsedMs
		}
		if out.PeakMemoryKB > maxMem {
			maxMem = out.PeakMemoryKB
		}

		if _, failed := resolver.Judge(out, tc, suite); failed {
			return outcomes, maxTime, maxMem, false
		}

		if i < len(suite.Cases)-1 {
			if err := p.subs.ExtendLease(ctx, sub.ID, time.Now().Add(p.cfg.LeaseTTL)); err != nil {
				if appErr.Is(err, appErr.LeaseLost) {
					logger.Warn(ctx, "lease lost mid-grading",
						zap.String("submission_id", sub.ID),
						zap.Int("completed_cases", i+1))
					return outcomes, maxTime, maxMem, true
				}
				logger.Warn(ctx, "extend lease failed",
					zap.String("submission_id", sub.ID),
					zap.Error(err))
			}
		}
	}
	return outcomes, maxTime, maxMem, false
}

// finalize writes the single terminal transition and publishes the result.
// A false compare-and-swap means the sweep got there first; the existing
// terminal state stands.
func (p *WorkerPool) finalize(ctx context.Context, sub *model.Submission, result resolver.Result, maxTime, maxMem int64) {
	completedAt := time.Now()
	ok, err := p.subs.Finalize(ctx, sub.ID, result.Verdict, result.Score, maxTime, maxMem, completedAt)
	if err != nil {
		logger.Error(ctx, "finalize submission failed",
			zap.String("submission_id", sub.ID),
			zap.Error(err))
		return
	}
	if !ok {
		logger.Warn(ctx, "submission already finalized elsewhere",
			zap.String("submission_id", sub.ID),
			zap.String("verdict", string(result.Verdict)))
		return
	}

	sub.Status = result.Verdict.Status()
	sub.Verdict = result.Verdict
	sub.Score = result.Score
	sub.TimeUsedMs = maxTime
	sub.MemoryUsedKB = maxMem
	sub.CompletedAt = &completedAt
	p.publishSnapshot(ctx, sub.Snapshot())

	logger.Info(ctx, "submission graded",
		zap.String("submission_id", sub.ID),
		zap.String("verdict", string(result.Verdict)),
		zap.Int("score", result.Score),
		zap.Int64("time_used_ms", maxTime),
		zap.Int64("memory_used_kb", maxMem))
}

func (p *WorkerPool) publishSnapshot(ctx context.Context, snap model.StatusSnapshot) {
	if p.statuses != nil {
		if err := p.statuses.Save(ctx, snap); err != nil {
			logger.Warn(ctx, "status cache write failed",
				zap.String("submission_id", snap.SubmissionID),
				zap.Error(err))
		}
	}
	if p.hub != nil {
		p.hub.Publish(snap)
	}
}
