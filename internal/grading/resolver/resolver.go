// Package resolver maps a sequence of per-test-case execution outcomes to one
// overall verdict and score. It is pure: no I/O, no clock, no state.
package resolver

import (
	"strings"

	"dezolver/internal/grading/model"
	"dezolver/internal/grading/sandbox"
)

// Result is the resolved outcome of one grading run.
type Result struct {
	Verdict model.Verdict
	Score   int

	// FailedCaseIndex is the zero-based index of the test case that stopped
	// grading, or -1 when every case passed.
	FailedCaseIndex int
}

// Resolve walks outcomes in test-case order and applies the stop-at-first-
// failure policy: the first failing test case determines the verdict and
// later cases are never inspected or scored. An empty outcome list means the
// sandbox itself failed unrecoverably.
func Resolve(outcomes []sandbox.Outcome, suite *model.TestSuite) Result {
	if suite == nil || len(outcomes) == 0 {
		return Result{Verdict: model.VerdictInternalError, FailedCaseIndex: -1}
	}

	score := 0
	for i, out := range outcomes {
		if i >= len(suite.Cases) {
			// More outcomes than test cases is a pipeline bug.
			return Result{Verdict: model.VerdictInternalError, Score: 0, FailedCaseIndex: i}
		}

		if verdict, failed := Judge(out, suite.Cases[i], suite); failed {
			return Result{Verdict: verdict, Score: score, FailedCaseIndex: i}
		}
		score += suite.Cases[i].Points
	}

	if len(outcomes) < len(suite.Cases) {
		// Grading stopped early without a failing outcome; the run is
		// incomplete and must not be reported as accepted.
		return Result{Verdict: model.VerdictInternalError, Score: 0, FailedCaseIndex: len(outcomes)}
	}

	return Result{Verdict: model.VerdictAccepted, Score: suite.MaxScore(), FailedCaseIndex: -1}
}

// Judge evaluates a single test case outcome. The boolean reports failure;
// a timeout or memory verdict wins even when stdout happens to match the
// expected output. Callers running cases sequentially use Judge to stop at
// the first failure without executing later cases.
func Judge(out sandbox.Outcome, tc model.TestCase, suite *model.TestSuite) (model.Verdict, bool) {
	if verdict, failed := classify(out, suite); failed {
		return verdict, true
	}
	if NormalizeOutput(out.Stdout) != NormalizeOutput(tc.ExpectedOutput) {
		return model.VerdictWrongAnswer, true
	}
	return "", false
}

// classify maps a non-passing exit classification to its verdict.
func classify(out sandbox.Outcome, suite *model.TestSuite) (model.Verdict, bool) {
	switch out.ExitClass {
	case sandbox.ExitCompileError:
		return model.VerdictCompilationError, true
	case sandbox.ExitTimeout:
		return model.VerdictTimeLimitExceeded, true
	case sandbox.ExitMemoryExceeded:
		return model.VerdictMemoryLimitExceeded, true
	case sandbox.ExitNonZero:
		return model.VerdictRuntimeError, true
	case sandbox.ExitSandboxError:
		return model.VerdictInternalError, true
	}
	if suite.TimeLimitMs > 0 && out.ElapsedMs > suite.TimeLimitMs {
		return model.VerdictTimeLimitExceeded, true
	}
	if suite.MemoryLimitKB > 0 && out.PeakMemoryKB > suite.MemoryLimitKB {
		return model.VerdictMemoryLimitExceeded, true
	}
	return "", false
}

// NormalizeOutput strips trailing whitespace from each line and trailing
// blank lines. No other normalization is applied: leading whitespace and
// interior spacing stay significant.
func NormalizeOutput(raw string) string {
	lines := strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	end := len(lines)
	for end > 0 && lines[end-1] == "" {
		end--
	}
	return strings.Join(lines[:end], "\n")
}
