// Package store provides the data access layer of the DevLens dashboard.
//
// Queries are written with ? placeholders and pass through dbopen.Rebind, so
// the same Store serves SQLite and PostgreSQL. Lookups return (nil, nil)
// when the row does not exist.
package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/hazyhaar/devlens/dbopen"
)

// ErrLimitReached is returned when an insert would exceed a per-user limit.
var ErrLimitReached = errors.New("store: limit reached")

// Store wraps the dashboard database.
type Store struct {
	DB     *sql.DB
	driver string
}

// NewStore creates a Store from an already-opened database connection.
// driver is dbopen.SQLite or dbopen.Postgres.
func NewStore(db *sql.DB, driver string) *Store {
	if driver == "" {
		driver = dbopen.SQLite
	}
	return &Store{DB: db, driver: driver}
}

// Driver returns the SQL driver name the store was built for.
func (s *Store) Driver() string { return s.driver }

func (s *Store) q(query string) string {
	return dbopen.Rebind(s.driver, query)
}

func (s *Store) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.DB.ExecContext(ctx, s.q(query), args...)
}

func (s *Store) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.DB.QueryRowContext(ctx, s.q(query), args...)
}

func (s *Store) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.DB.QueryContext(ctx, s.q(query), args...)
}

type scanner interface {
	Scan(dest ...any) error
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
