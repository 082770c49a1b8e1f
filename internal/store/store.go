// Package store opens the collision database and hands out request-scoped
// sessions. SQLite files and PostgreSQL URLs are both accepted.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Store owns the connection pool for the collision database.
type Store struct {
	db      *sql.DB
	dialect Dialect
	path    string
}

// Open connects to databaseURL and verifies the connection. A postgres:// or
// postgresql:// URL selects PostgreSQL; anything else is a SQLite file path,
// opened read-only.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	dialect, dsn, path := resolve(databaseURL)

	db, err := sql.Open(dialect.driver(), dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", dialect, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: ping %s: %w", dialect, err)
	}
	return &Store{db: db, dialect: dialect, path: path}, nil
}

func resolve(databaseURL string) (Dialect, string, string) {
	if strings.HasPrefix(databaseURL, "postgres://") || strings.HasPrefix(databaseURL, "postgresql://") {
		return DialectPostgres, databaseURL, ""
	}
	path := strings.TrimPrefix(databaseURL, "sqlite://")
	return DialectSQLite, "file:" + path + "?mode=ro&_busy_timeout=5000", path
}

// Dialect reports which SQL dialect the store speaks.
func (s *Store) Dialect() Dialect { return s.dialect }

// Path is the SQLite database file, or "" for PostgreSQL.
func (s *Store) Path() string { return s.path }

// Session acquires one connection for the duration of fn and releases it
// when fn returns, whatever the outcome.
func (s *Store) Session(ctx context.Context, fn func(ctx context.Context, sess *Session) error) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("store: acquire connection: %w", err)
	}
	defer conn.Close()

	return fn(ctx, &Session{conn: conn, dialect: s.dialect})
}

// CheckReadiness pings the database.
func (s *Store) CheckReadiness(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database unreachable: %w", err)
	}
	return nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Session is a single connection scoped to one request.
type Session struct {
	conn    *sql.Conn
	dialect Dialect
}

// Dialect reports the SQL dialect of the underlying connection.
func (s *Session) Dialect() Dialect { return s.dialect }

// Query runs a read statement on the session's connection.
func (s *Session) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.conn.QueryContext(ctx, query, args...)
}

// QueryRow runs a statement expected to return at most one row.
func (s *Session) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.conn.QueryRowContext(ctx, query, args...)
}
