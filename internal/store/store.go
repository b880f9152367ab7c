// Package store is the SQL persistence layer of the forum. It runs on
// PostgreSQL in production and on SQLite for development and tests; the
// schema in migrations/ is portable between the two.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"modernc.org/sqlite" // registers the "sqlite" driver
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	// ErrNotFound is returned when the addressed row does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrConflict is returned when a uniqueness constraint or a state guard
	// rejects a write.
	ErrConflict = errors.New("store: conflict")
)

const (
	driverPostgres = "postgres"
	driverSQLite   = "sqlite"
)

// Store wraps a sqlx handle and a squirrel builder using the placeholder
// format of the underlying driver.
type Store struct {
	db     *sqlx.DB
	q      sqlx.ExtContext
	sb     sq.StatementBuilderType
	driver string
}

// Target is a parsed DATABASE_URL.
type Target struct {
	Driver       string // "postgres" or "sqlite"
	DSN          string // passed to sql.Open
	MigrationURL string // passed to golang-migrate

	path string
}

// ParseURL turns a DATABASE_URL into driver, DSN and migration URL.
// Accepted forms are postgres://..., postgresql://... and sqlite://<path>.
func ParseURL(url string) (Target, error) {
	switch {
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return Target{Driver: driverPostgres, DSN: url, MigrationURL: url}, nil
	case strings.HasPrefix(url, "sqlite://"):
		path := strings.TrimPrefix(url, "sqlite://")
		if path == "" {
			return Target{}, fmt.Errorf("store: empty sqlite path in %q", url)
		}
		dsn := "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite"
		return Target{Driver: driverSQLite, DSN: dsn, MigrationURL: url, path: path}, nil
	}
	return Target{}, fmt.Errorf("store: unsupported database url %q", url)
}

// ensureDir creates the parent directory of a SQLite database file.
func (t Target) ensureDir() error {
	if t.Driver != driverSQLite {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(t.path), 0o755); err != nil {
		return fmt.Errorf("store: create data dir: %w", err)
	}
	return nil
}

// Open connects to the database named by url and verifies the connection.
// The schema is not migrated; call MigrateUp first.
func Open(ctx context.Context, url string, maxOpenConns int) (*Store, error) {
	t, err := ParseURL(url)
	if err != nil {
		return nil, err
	}
	if err := t.ensureDir(); err != nil {
		return nil, err
	}

	db, err := sqlx.Open(t.Driver, t.DSN)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
		db.SetMaxIdleConns(maxOpenConns)
	}
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	return newStore(db, t.Driver), nil
}

func newStore(db *sqlx.DB, driver string) *Store {
	var format sq.PlaceholderFormat = sq.Question
	if driver == driverPostgres {
		format = sq.Dollar
	}
	return &Store{
		db:     db,
		q:      db,
		sb:     sq.StatementBuilder.PlaceholderFormat(format),
		driver: driver,
	}
}

// Close closes the underlying pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// WithTx runs fn inside a transaction. The Store passed to fn issues every
// statement on that transaction. fn's error rolls the transaction back.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Store) error) error {
	if _, nested := s.q.(*sqlx.Tx); nested {
		return fn(s)
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	txStore := *s
	txStore.q = tx
	if err := fn(&txStore); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

// exec runs a built statement and returns the number of affected rows.
func (s *Store) exec(ctx context.Context, b sq.Sqlizer) (int64, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return 0, err
	}
	res, err := s.q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) get(ctx context.Context, dest any, b sq.Sqlizer) error {
	query, args, err := b.ToSql()
	if err != nil {
		return err
	}
	err = sqlx.GetContext(ctx, s.q, dest, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (s *Store) selectRows(ctx context.Context, dest any, b sq.Sqlizer) error {
	query, args, err := b.ToSql()
	if err != nil {
		return err
	}
	return sqlx.SelectContext(ctx, s.q, dest, query, args...)
}

// mustAffect turns a zero-row update or delete into ErrNotFound.
func mustAffect(n int64, err error) error {
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// isUniqueViolation reports a unique or primary key violation on either
// driver. SQLite reports a duplicate TEXT primary key as
// SQLITE_CONSTRAINT_PRIMARYKEY.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}
	}
	return false
}

// ts normalizes a timestamp before it is written. Both drivers round-trip
// UTC microseconds exactly.
func ts(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

func tsPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := ts(*t)
	return &v
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
