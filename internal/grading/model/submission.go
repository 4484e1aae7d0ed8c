// Package model defines the grading pipeline's domain types: submissions,
// test cases and the wire-visible status/verdict enumerations.
package model

import "time"

// Status represents the lifecycle state of a submission.
// The string values are wire-visible and must not change.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"

	// Terminal states mirror the verdict that produced them.
	StatusAccepted            Status = "accepted"
	StatusWrongAnswer         Status = "wrong_answer"
	StatusTimeLimitExceeded   Status = "time_limit_exceeded"
	StatusMemoryLimitExceeded Status = "memory_limit_exceeded"
	StatusRuntimeError        Status = "runtime_error"
	StatusCompilationError    Status = "compilation_error"
	StatusInternalError       Status = "internal_error"
)

// IsTerminal reports whether the status permits no further transition.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusAccepted, StatusWrongAnswer, StatusTimeLimitExceeded,
		StatusMemoryLimitExceeded, StatusRuntimeError,
		StatusCompilationError, StatusInternalError:
		return true
	}
	return false
}

// Verdict represents the terminal classification of a graded submission.
type Verdict string

const (
	VerdictAccepted            Verdict = "accepted"
	VerdictWrongAnswer         Verdict = "wrong_answer"
	VerdictTimeLimitExceeded   Verdict = "time_limit_exceeded"
	VerdictMemoryLimitExceeded Verdict = "memory_limit_exceeded"
	VerdictRuntimeError        Verdict = "runtime_error"
	VerdictCompilationError    Verdict = "compilation_error"
	VerdictInternalError       Verdict = "internal_error"
)

// Status returns the terminal status corresponding to the verdict.
func (v Verdict) Status() Status {
	return Status(v)
}

// Language is the closed enumeration of supported runtimes.
// Unknown values are rejected at the admission boundary.
type Language string

const (
	LangC          Language = "c"
	LangCpp        Language = "cpp"
	LangJava       Language = "java"
	LangPython     Language = "python"
	LangGo         Language = "go"
	LangJavaScript Language = "javascript"
)

// SupportedLanguages lists every admissible language value.
func SupportedLanguages() []Language {
	return []Language{LangC, LangCpp, LangJava, LangPython, LangGo, LangJavaScript}
}

// ParseLanguage validates a raw language value against the closed enumeration.
func ParseLanguage(raw string) (Language, bool) {
	for _, lang := range SupportedLanguages() {
		if string(lang) == raw {
			return lang, true
		}
	}
	return "", false
}

// Submission is one user's attempt to solve one problem.
// It is created by admission, mutated exclusively by the worker holding its
// lease, and never deleted by this subsystem.
type Submission struct {
	ID           string
	ProblemID    int64
	UserID       int64
	Language     Language
	SourceCode   string
	SourceKey    string
	Status       Status
	Verdict      Verdict
	Score        int
	TimeUsedMs   int64
	MemoryUsedKB int64
	SubmittedAt  time.Time
	CompletedAt  *time.Time

	// LeaseExpiresAt is set while Status is running; a supervisory sweep
	// reclaims submissions whose lease has expired.
	LeaseExpiresAt *time.Time
}

// Snapshot returns the wire-visible view of the submission.
func (s *Submission) Snapshot() StatusSnapshot {
	snap := StatusSnapshot{
		SubmissionID: s.ID,
		Status:       s.Status,
		Verdict:      s.Verdict,
		Score:        s.Score,
		TimeUsedMs:   s.TimeUsedMs,
		MemoryUsedKB: s.MemoryUsedKB,
		SubmittedAt:  s.SubmittedAt.Unix(),
	}
	if s.CompletedAt != nil {
		snap.CompletedAt = s.CompletedAt.Unix()
	}
	return snap
}

// StatusSnapshot is the read-only view returned to polling clients.
// It is safe to serve at any time, including mid-grading.
type StatusSnapshot struct {
	SubmissionID string  `json:"submission_id"`
	Status       Status  `json:"status"`
	Verdict      Verdict `json:"verdict,omitempty"`
	Score        int     `json:"score"`
	TimeUsedMs   int64   `json:"time_used_ms"`
	MemoryUsedKB int64   `json:"memory_used_kb"`
	SubmittedAt  int64   `json:"submitted_at"`
	CompletedAt  int64   `json:"completed_at,omitempty"`
}
