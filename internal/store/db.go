package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Dialect names the SQL backend behind a DB.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// DB wraps sql.DB and tracks whether the schema has been migrated.
type DB struct {
	Client  *sql.DB
	Dialect Dialect

	log   *zap.Logger
	mu    sync.Mutex
	ready bool
}

// NewPostgres opens a Postgres pool through pgx.
func NewPostgres(connString string, log *zap.Logger) (*DB, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)
	return &DB{Client: db, Dialect: Postgres, log: log}, nil
}

// NewSQLite opens a SQLite database file. ":memory:" is accepted.
func NewSQLite(path string, log *zap.Logger) (*DB, error) {
	dsn := path
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create db dir: %w", err)
			}
		}
		dsn = path + "?_journal_mode=WAL&_busy_timeout=5000"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// a single connection keeps :memory: databases and transactions consistent
	db.SetMaxOpenConns(1)
	return &DB{Client: db, Dialect: SQLite, log: log}, nil
}

// EnsureSchema pings the database and applies pending migrations once.
// After a failure the next call tries again.
func (d *DB) EnsureSchema(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ready {
		return nil
	}
	if err := d.Client.PingContext(ctx); err != nil {
		return fmt.Errorf("ping db: %w", err)
	}
	if err := migrate(ctx, d); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	d.ready = true
	return nil
}

// Ready reports whether EnsureSchema has succeeded.
func (d *DB) Ready() bool {
	if d == nil {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ready
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	if d == nil || d.Client == nil {
		return nil
	}
	return d.Client.Close()
}

// IsUniqueViolation reports whether err came from a unique constraint on either backend.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
