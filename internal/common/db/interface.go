package db

import "context"

// Database is the abstraction over a SQL connection pool.
// Both Database and Transaction satisfy Querier so repositories can run
// the same statements inside or outside a transaction.
type Database interface {
	Querier

	// Transaction executes fn inside a transaction, rolling back on error.
	Transaction(ctx context.Context, fn func(tx Transaction) error) error

	// Ping verifies the connection is alive.
	Ping(ctx context.Context) error

	// Close closes the connection pool.
	Close() error
}

// Transaction represents an in-flight database transaction.
type Transaction interface {
	Querier

	Commit() error
	Rollback() error
}

// Querier abstracts statement execution for both database and transaction.
type Querier interface {
	Query(ctx context.Context, query string, args ...interface{}) (Rows, error)
	QueryRow(ctx context.Context, query string, args ...interface{}) Row
	Exec(ctx context.Context, query string, args ...interface{}) (Result, error)
}

// Rows is a result set cursor.
type Rows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Close() error
	Err() error
}

// Row is a single-row result.
type Row interface {
	Scan(dest ...interface{}) error
}

// Result reports statement side effects.
type Result interface {
	LastInsertId() (int64, error)
	RowsAffected() (int64, error)
}

// GetQuerier returns transaction if provided, otherwise uses the database.
func GetQuerier(database Database, tx Transaction) Querier {
	if tx != nil {
		return tx
	}
	return database
}
