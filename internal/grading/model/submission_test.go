package model_test

import (
	"encoding/json"
	"testing"
	"time"

	"dezolver/internal/grading/model"
)

func TestStatusIsTerminal(t *testing.T) {
	if model.StatusPending.IsTerminal() {
		t.Fatal("pending must not be terminal")
	}
	if model.StatusRunning.IsTerminal() {
		t.Fatal("running must not be terminal")
	}
	terminal := []model.Status{
		model.StatusAccepted,
		model.StatusWrongAnswer,
		model.StatusTimeLimitExceeded,
		model.StatusMemoryLimitExceeded,
		model.StatusRuntimeError,
		model.StatusCompilationError,
		model.StatusInternalError,
	}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Fatalf("%q must be terminal", s)
		}
	}
}

func TestParseLanguage(t *testing.T) {
	for _, lang := range model.SupportedLanguages() {
		got, ok := model.ParseLanguage(string(lang))
		if !ok || got != lang {
			t.Fatalf("ParseLanguage(%q) = %q, %v", lang, got, ok)
		}
	}
	if _, ok := model.ParseLanguage("cobol"); ok {
		t.Fatal("unknown language accepted")
	}
	if _, ok := model.ParseLanguage("Python"); ok {
		t.Fatal("language matching must be exact")
	}
}

func TestTestSuiteMaxScore(t *testing.T) {
	suite := &model.TestSuite{Cases: []model.TestCase{
		{Points: 10},
		{Points: 40},
		{Points: 50},
	}}
	if got := suite.MaxScore(); got != 100 {
		t.Fatalf("MaxScore = %d, want 100", got)
	}
	empty := &model.TestSuite{}
	if got := empty.MaxScore(); got != 0 {
		t.Fatalf("MaxScore of empty suite = %d, want 0", got)
	}
}

func TestSnapshotWireFormat(t *testing.T) {
	submitted := time.Unix(1700000000, 0)
	completed := time.Unix(1700000042, 0)
	sub := &model.Submission{
		ID:           "abc",
		Status:       model.StatusWrongAnswer,
		Verdict:      model.VerdictWrongAnswer,
		Score:        40,
		TimeUsedMs:   128,
		MemoryUsedKB: 2048,
		SubmittedAt:  submitted,
		CompletedAt:  &completed,
	}

	data, err := json.Marshal(sub.Snapshot())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var wire map[string]interface{}
	if err := json.Unmarshal(data, &wire); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if wire["status"] != "wrong_answer" {
		t.Fatalf("status wire value = %v, want wrong_answer", wire["status"])
	}
	if wire["verdict"] != "wrong_answer" {
		t.Fatalf("verdict wire value = %v, want wrong_answer", wire["verdict"])
	}
	if wire["submission_id"] != "abc" {
		t.Fatalf("submission_id = %v", wire["submission_id"])
	}
}

func TestSnapshotOmitsVerdictWhileNonTerminal(t *testing.T) {
	sub := &model.Submission{
		ID:          "abc",
		Status:      model.StatusPending,
		SubmittedAt: time.Now(),
	}
	data, err := json.Marshal(sub.Snapshot())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var wire map[string]interface{}
	if err := json.Unmarshal(data, &wire); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, present := wire["verdict"]; present {
		t.Fatal("verdict must be omitted while pending")
	}
	if _, present := wire["completed_at"]; present {
		t.Fatal("completed_at must be omitted while pending")
	}
}
