// Package sqlstore implements every core store interface over database/sql.
// The sqlite and postgres packages supply the driver, schema and dialect.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"guides-server/core"
)

// Dialect captures what differs between SQL backends.
type Dialect struct {
	Name string
	// Numbered reports whether placeholders are written $1, $2, ... instead of ?.
	Numbered bool
	// Schema is executed statement by statement when the store opens.
	Schema []string
	// IsUniqueViolation reports whether err is a unique constraint failure.
	IsUniqueViolation func(err error) bool
}

type Store struct {
	db      *sql.DB
	dialect Dialect
}

// New runs the dialect's schema against db and returns the store.
func New(db *sql.DB, dialect Dialect) (*Store, error) {
	for _, stmt := range dialect.Schema {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("%s schema: %w", dialect.Name, err)
		}
	}
	return &Store{db: db, dialect: dialect}, nil
}

// DB exposes the underlying handle for tests and maintenance commands.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Close() error {
	return s.db.Close()
}

// rebind rewrites ? placeholders for dialects that number them.
func (s *Store) rebind(query string) string {
	if !s.dialect.Numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) exec(ctx context.Context, q execer, query string, args ...any) (sql.Result, error) {
	return q.ExecContext(ctx, s.rebind(query), args...)
}

func (s *Store) query(ctx context.Context, q execer, query string, args ...any) (*sql.Rows, error) {
	return q.QueryContext(ctx, s.rebind(query), args...)
}

func (s *Store) queryRow(ctx context.Context, q execer, query string, args ...any) *sql.Row {
	return q.QueryRowContext(ctx, s.rebind(query), args...)
}

// conflict maps unique violations to core.ErrConflict.
func (s *Store) conflict(err error, what string) error {
	if s.dialect.IsUniqueViolation != nil && s.dialect.IsUniqueViolation(err) {
		return fmt.Errorf("%s: %w", what, core.ErrConflict)
	}
	return err
}

// affected turns a zero-row write into core.ErrNotFound.
func affected(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, core.ErrNotFound)
	}
	return nil
}

func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, core.ErrNotFound)
	}
	return err
}

// Times are stored as unix milliseconds so every dialect scans them the same way.
func millis(t time.Time) int64 { return t.UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
