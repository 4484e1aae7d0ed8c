// Package sandbox defines the execution adapter interface used by the worker
// pool. It is the only point where language-specific execution detail is
// hidden; isolation technology lives entirely behind the Sandbox interface.
package sandbox

import (
	"context"

	"dezolver/internal/grading/model"
)

// ExitClass classifies how one execution ended.
type ExitClass string

const (
	ExitOK             ExitClass = "ok"
	ExitTimeout        ExitClass = "timeout"
	ExitMemoryExceeded ExitClass = "memory_exceeded"
	ExitNonZero        ExitClass = "nonzero_exit"
	ExitCompileError   ExitClass = "compile_error"
	ExitSandboxError   ExitClass = "sandbox_error"
)

// Request contains everything needed to run submitted code against one input
// under resource constraints.
type Request struct {
	SubmissionID  string
	Language      model.Language
	SourceCode    string
	Stdin         string
	TimeLimitMs   int64
	MemoryLimitKB int64
}

// Outcome captures raw execution data for one test case. Outcomes are
// ephemeral: they feed the verdict resolver and only aggregates survive on
// the submission record.
type Outcome struct {
	Stdout       string
	Stderr       string
	ExitClass    ExitClass
	ExitCode     int
	ElapsedMs    int64
	PeakMemoryKB int64
}

// Sandbox runs code once, synchronously, and reports the raw outcome. The
// sandbox is responsible for killing the hosted process at the time limit and
// reporting ExitTimeout rather than hanging; the pipeline adds its own
// supervisory margin on top.
type Sandbox interface {
	Run(ctx context.Context, req Request) (Outcome, error)
}
