package model

// TestCase is one (input, expected output, points) triple owned by a problem.
// Read-only from the pipeline's perspective.
type TestCase struct {
	Input          string
	ExpectedOutput string
	Points         int
	// IsSample affects visibility to the client, not grading.
	IsSample bool
}

// TestSuite is the ordered list of test cases for one problem together with
// its resource limits.
type TestSuite struct {
	ProblemID     int64
	Cases         []TestCase
	TimeLimitMs   int64
	MemoryLimitKB int64
}

// MaxScore returns the sum of all test case points.
func (s *TestSuite) MaxScore() int {
	total := 0
	for _, tc := range s.Cases {
		total += tc.Points
	}
	return total
}
