package resolver_test

import (
	"testing"

	"dezolver/internal/grading/model"
	"dezolver/internal/grading/resolver"
	"dezolver/internal/grading/sandbox"
)

func suite(timeLimitMs int64, expected ...string) *model.TestSuite {
	s := &model.TestSuite{ProblemID: 1, TimeLimitMs: timeLimitMs, MemoryLimitKB: 262144}
	for _, exp := range expected {
		s.Cases = append(s.Cases, model.TestCase{ExpectedOutput: exp, Points: 10})
	}
	return s
}

func ok(stdout string) sandbox.Outcome {
	return sandbox.Outcome{Stdout: stdout, ExitClass: sandbox.ExitOK, ElapsedMs: 5}
}

func TestResolveAllPass(t *testing.T) {
	s := suite(1000, "321", "0", "-321")
	outcomes := []sandbox.Outcome{ok("321"), ok("0"), ok("-321")}

	result := resolver.Resolve(outcomes, s)
	if result.Verdict != model.VerdictAccepted {
		t.Fatalf("verdict = %q, want accepted", result.Verdict)
	}
	if result.Score != 30 {
		t.Fatalf("score = %d, want 30", result.Score)
	}
	if result.FailedCaseIndex != -1 {
		t.Fatalf("failed case = %d, want -1", result.FailedCaseIndex)
	}
}

func TestResolveWrongAnswerStopsScoring(t *testing.T) {
	// Second case fails: only the first case's points count, and a third
	// outcome must not exist for the verdict to be correct anyway.
	s := suite(1000, "1", "2", "3")
	outcomes := []sandbox.Outcome{ok("1"), ok("999")}

	result := resolver.Resolve(outcomes, s)
	if result.Verdict != model.VerdictWrongAnswer {
		t.Fatalf("verdict = %q, want wrong_answer", result.Verdict)
	}
	if result.Score != 10 {
		t.Fatalf("score = %d, want 10", result.Score)
	}
	if result.FailedCaseIndex != 1 {
		t.Fatalf("failed case = %d, want 1", result.FailedCaseIndex)
	}
}

func TestResolveOverflowCaseReturnsZero(t *testing.T) {
	// Reverse-integer style problem: the overflow input must print "0".
	// A submission printing the overflowed value gets wrong_answer.
	s := suite(1000, "321", "0")
	outcomes := []sandbox.Outcome{ok("321"), ok("9646324351")}

	result := resolver.Resolve(outcomes, s)
	if result.Verdict != model.VerdictWrongAnswer {
		t.Fatalf("verdict = %q, want wrong_answer", result.Verdict)
	}
	if result.Score != 10 {
		t.Fatalf("score = %d, want 10", result.Score)
	}
}

func TestResolveTimeoutBeatsMatchingOutput(t *testing.T) {
	s := suite(1000, "42")
	outcomes := []sandbox.Outcome{{
		Stdout:    "42",
		ExitClass: sandbox.ExitOK,
		ElapsedMs: 1500,
	}}

	result := resolver.Resolve(outcomes, s)
	if result.Verdict != model.VerdictTimeLimitExceeded {
		t.Fatalf("verdict = %q, want time_limit_exceeded", result.Verdict)
	}
	if result.Score != 0 {
		t.Fatalf("score = %d, want 0", result.Score)
	}
}

func TestResolveExitClasses(t *testing.T) {
	tests := []struct {
		name  string
		class sandbox.ExitClass
		want  model.Verdict
	}{
		{"compile error", sandbox.ExitCompileError, model.VerdictCompilationError},
		{"timeout", sandbox.ExitTimeout, model.VerdictTimeLimitExceeded},
		{"memory", sandbox.ExitMemoryExceeded, model.VerdictMemoryLimitExceeded},
		{"nonzero exit", sandbox.ExitNonZero, model.VerdictRuntimeError},
		{"sandbox error", sandbox.ExitSandboxError, model.VerdictInternalError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := suite(1000, "x")
			result := resolver.Resolve([]sandbox.Outcome{{ExitClass: tt.class}}, s)
			if result.Verdict != tt.want {
				t.Fatalf("verdict = %q, want %q", result.Verdict, tt.want)
			}
		})
	}
}

func TestResolveEmptyOutcomes(t *testing.T) {
	result := resolver.Resolve(nil, suite(1000, "x"))
	if result.Verdict != model.VerdictInternalError {
		t.Fatalf("verdict = %q, want internal_error", result.Verdict)
	}
}

func TestResolveIncompleteRunWithoutFailure(t *testing.T) {
	s := suite(1000, "1", "2")
	result := resolver.Resolve([]sandbox.Outcome{ok("1")}, s)
	if result.Verdict != model.VerdictInternalError {
		t.Fatalf("verdict = %q, want internal_error", result.Verdict)
	}
	if result.Score != 0 {
		t.Fatalf("score = %d, want 0", result.Score)
	}
}

func TestNormalizeOutput(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"trailing spaces per line", "hello  \nworld\t\n", "hello\nworld"},
		{"trailing blank lines", "a\nb\n\n\n", "a\nb"},
		{"crlf", "a\r\nb\r\n", "a\nb"},
		{"leading whitespace preserved", "  a\nb", "  a\nb"},
		{"interior spacing preserved", "a  b", "a  b"},
		{"empty", "", ""},
		{"only blank lines", "\n\n", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := resolver.NormalizeOutput(tt.raw); got != tt.want {
				t.Fatalf("NormalizeOutput(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestNormalizedComparisonAccepts(t *testing.T) {
	s := suite(1000, "1534236469 reversed is 0\n")
	outcomes := []sandbox.Outcome{ok("1534236469 reversed is 0   \n\n")}

	result := resolver.Resolve(outcomes, s)
	if result.Verdict != model.VerdictAccepted {
		t.Fatalf("verdict = %q, want accepted", result.Verdict)
	}
}
