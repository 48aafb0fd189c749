package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	"github.com/mattn/go-sqlite3"
)

// DefaultURL is used when no database url is configured.
const DefaultURL = "sqlite://blog.db"

// Dialect identifies the SQL flavour behind a DB.
type Dialect int

const (
	SQLite Dialect = iota
	Postgres
)

func (d Dialect) String() string {
	if d == Postgres {
		return "postgres"
	}
	return "sqlite"
}

// Querier is satisfied by *DB and by the transaction handle passed to Tx.
// Queries are written with ? placeholders and rebound for the dialect.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// DB is the store handle shared by the server and the CLI.
type DB struct {
	conn    *sql.DB
	dialect Dialect
	driver  string
	dsn     string
}

// Open connects to the database described by url. Accepted forms are
// sqlite://path, sqlite:path, a bare file path, and postgres:// urls.
func Open(url string) (*DB, error) {
	if url == "" {
		url = DefaultURL
	}
	driver, dsn, dialect, err := parseURL(url)
	if err != nil {
		return nil, err
	}
	if dialect == SQLite {
		if path := sqlitePath(dsn); path != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
				return nil, fmt.Errorf("creating database directory: %w", err)
			}
		}
	}
	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	return &DB{conn: conn, dialect: dialect, driver: driver, dsn: dsn}, nil
}

func parseURL(url string) (driver, dsn string, dialect Dialect, err error) {
	switch {
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return "pgx", url, Postgres, nil
	case strings.HasPrefix(url, "sqlite://"):
		return "sqlite3", sqliteDSN(strings.TrimPrefix(url, "sqlite://")), SQLite, nil
	case strings.HasPrefix(url, "sqlite:"):
		return "sqlite3", sqliteDSN(strings.TrimPrefix(url, "sqlite:")), SQLite, nil
	case strings.Contains(url, "://"):
		return "", "", 0, fmt.Errorf("unsupported database url %q", url)
	default:
		return "sqlite3", sqliteDSN(url), SQLite, nil
	}
}

// sqliteDSN turns foreign keys on for every pooled connection. Transactions
// take the write lock at BEGIN so concurrent writers wait on the busy
// timeout instead of failing when a read lock cannot be upgraded.
func sqliteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL&_txlock=immediate"
}

func sqlitePath(dsn string) string {
	if i := strings.Index(dsn, "?"); i >= 0 {
		return dsn[:i]
	}
	return dsn
}

func (d *DB) Dialect() Dialect { return d.dialect }

// SQL exposes the underlying pool for migrations.
func (d *DB) SQL() *sql.DB { return d.conn }

func (d *DB) Close() error { return d.conn.Close() }

func (d *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return d.conn.ExecContext(ctx, rebind(d.dialect, query), args...)
}

func (d *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return d.conn.QueryContext(ctx, rebind(d.dialect, query), args...)
}

func (d *DB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return d.conn.QueryRowContext(ctx, rebind(d.dialect, query), args...)
}

// Tx runs fn inside a single transaction. The transaction is committed when
// fn returns nil and rolled back otherwise.
func (d *DB) Tx(ctx context.Context, fn func(q Querier) error) error {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(&txQuerier{tx: tx, dialect: d.dialect}); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Lock serializes transactions that use the same key until they finish.
// On postgres it takes a transaction-scoped advisory lock. On sqlite every
// transaction already holds the database write lock, so it is a no-op.
// Outside a transaction there is nothing to hold the lock, and Lock fails
// on postgres.
func Lock(ctx context.Context, q Querier, key int64) error {
	switch v := q.(type) {
	case *txQuerier:
		if v.dialect != Postgres {
			return nil
		}
		if _, err := v.tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1)", key); err != nil {
			return fmt.Errorf("taking lock %d: %w", key, err)
		}
		return nil
	case *DB:
		if v.dialect != Postgres {
			return nil
		}
	}
	return fmt.Errorf("lock %d requires a transaction", key)
}

type txQuerier struct {
	tx      *sql.Tx
	dialect Dialect
}

func (t *txQuerier) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.tx.ExecContext(ctx, rebind(t.dialect, query), args...)
}

func (t *txQuerier) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return t.tx.QueryContext(ctx, rebind(t.dialect, query), args...)
}

func (t *txQuerier) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return t.tx.QueryRowContext(ctx, rebind(t.dialect, query), args...)
}

// rebind rewrites ? placeholders into $n for postgres.
func rebind(d Dialect, query string) string {
	if d != Postgres || !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
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

// IsUniqueViolation reports whether err came from a UNIQUE constraint.
func IsUniqueViolation(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	var pe *pgconn.PgError
	if errors.As(err, &pe) {
		return pe.Code == "23505"
	}
	return false
}

// IsForeignKeyViolation reports whether err came from a FOREIGN KEY constraint.
func IsForeignKeyViolation(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintForeignKey
	}
	var pe *pgconn.PgError
	if errors.As(err, &pe) {
		return pe.Code == "23503"
	}
	return false
}
