package repository

import (
	"context"
	"sync"

	"dezolver/internal/common/db"
	"dezolver/internal/grading/model"
	appErr "dezolver/pkg/errors"
)

// TestCaseStore loads the ordered test suite for a problem.
type TestCaseStore interface {
	// GetTestSuite returns the suite for problemID, or ProblemNotFound.
	GetTestSuite(ctx context.Context, problemID int64) (*model.TestSuite, error)

	// ProblemExists reports whether the problem is known, without loading
	// its test data. Admission uses it to reject unknown problems cheaply.
	ProblemExists(ctx context.Context, problemID int64) (bool, error)
}

// MySQLTestCaseStore implements TestCaseStore with MySQL.
type MySQLTestCaseStore struct {
	db db.Database
}

// NewTestCaseStore creates a MySQL-backed test case store.
func NewTestCaseStore(database db.Database) *MySQLTestCaseStore {
	return &MySQLTestCaseStore{db: database}
}

// GetTestSuite loads problem limits and test cases in definition order.
func (s *MySQLTestCaseStore) GetTestSuite(ctx context.Context, problemID int64) (*model.TestSuite, error) {
	suite := &model.TestSuite{ProblemID: problemID}

	row := s.db.QueryRow(ctx, "SELECT time_limit_ms, memory_limit_kb FROM problems WHERE problem_id = ? LIMIT 1", problemID)
	if err := row.Scan(&suite.TimeLimitMs, &suite.MemoryLimitKB); err != nil {
		if db.IsNoRows(err) {
			return nil, appErr.New(appErr.ProblemNotFound)
		}
		return nil, appErr.Wrapf(err, appErr.DatabaseError, "get problem failed")
	}

	rows, err := s.db.Query(
		ctx,
		"SELECT input, expected_output, points, is_sample FROM test_cases WHERE problem_id = ? ORDER BY ord ASC",
		problemID,
	)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.DatabaseError, "list test cases failed")
	}
	defer rows.Close()

	for rows.Next() {
		var tc model.TestCase
		if err := rows.Scan(&tc.Input, &tc.ExpectedOutput, &tc.Points, &tc.IsSample); err != nil {
			return nil, appErr.Wrapf(err, appErr.DatabaseError, "scan test case failed")
		}
		suite.Cases = append(suite.Cases, tc)
	}
	if err := rows.Err(); err != nil {
		return nil, appErr.Wrapf(err, appErr.DatabaseError, "iterate test cases failed")
	}
	return suite, nil
}

// ProblemExists checks for the problem row only.
func (s *MySQLTestCaseStore) ProblemExists(ctx context.Context, problemID int64) (bool, error) {
	var one int
	row := s.db.QueryRow(ctx, "SELECT 1 FROM problems WHERE problem_id = ? LIMIT 1", problemID)
	if err := row.Scan(&one); err != nil {
		if db.IsNoRows(err) {
			return false, nil
		}
		return false, appErr.Wrapf(err, appErr.DatabaseError, "check problem failed")
	}
	return true, nil
}

// MemoryTestCaseStore is an in-memory TestCaseStore for single-node
// deployments and tests.
type MemoryTestCaseStore struct {
	mu     sync.RWMutex
	suites map[int64]*model.TestSuite
}

// NewMemoryTestCaseStore creates an empty in-memory store.
func NewMemoryTestCaseStore() *MemoryTestCaseStore {
	return &MemoryTestCaseStore{suites: make(map[int64]*model.TestSuite)}
}

// Put registers or replaces the suite for a problem.
func (s *MemoryTestCaseStore) Put(suite *model.TestSuite) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.suites[suite.ProblemID] = suite
}

func (s *MemoryTestCaseStore) ProblemExists(_ context.Context, problemID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.suites[problemID]
	return ok, nil
}

func (s *MemoryTestCaseStore) GetTestSuite(_ context.Context, problemID int64) (*model.TestSuite, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	suite, ok := s.suites[problemID]
	if !ok {
		return nil, appErr.New(appErr.ProblemNotFound)
	}
	clone := *suite
	clone.Cases = append([]model.TestCase(nil), suite.Cases...)
	return &clone, nil
}
