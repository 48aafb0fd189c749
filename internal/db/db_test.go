package db

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestRebind(t *testing.T) {
	q := "SELECT id FROM users WHERE email = ? AND role = ?"
	if got := rebind(SQLite, q); got != q {
		t.Errorf("sqlite rebind = %q, want unchanged", got)
	}
	want := "SELECT id FROM users WHERE email = $1 AND role = $2"
	if got := rebind(Postgres, q); got != want {
		t.Errorf("postgres rebind = %q, want %q", got, want)
	}
}

func TestParseURL(t *testing.T) {
	tests := []struct {
		url     string
		driver  string
		dialect Dialect
		path    string
	}{
		{"sqlite://blog.db", "sqlite3", SQLite, "blog.db"},
		{"sqlite:///var/lib/blog.db", "sqlite3", SQLite, "/var/lib/blog.db"},
		{"sqlite:data/blog.db", "sqlite3", SQLite, "data/blog.db"},
		{"blog.db", "sqlite3", SQLite, "blog.db"},
		{"postgres://u:p@localhost/blog", "pgx", Postgres, ""},
		{"postgresql://u:p@localhost/blog", "pgx", Postgres, ""},
	}
	for _, tt := range tests {
		driver, dsn, dialect, err := parseURL(tt.url)
		if err != nil {
			t.Fatalf("parseURL(%q) error = %v", tt.url, err)
		}
		if driver != tt.driver || dialect != tt.dialect {
			t.Errorf("parseURL(%q) = %s/%s, want %s/%s", tt.url, driver, dialect, tt.driver, tt.dialect)
		}
		if tt.dialect == SQLite && sqlitePath(dsn) != tt.path {
			t.Errorf("parseURL(%q) path = %q, want %q", tt.url, sqlitePath(dsn), tt.path)
		}
	}

	if _, _, _, err := parseURL("mysql://localhost/blog"); err == nil {
		t.Error("expected error for unsupported scheme")
	}
}

func openTestDB(t *testing.T) *DB {
	t.Helper()
	d, err := Open(filepath.Join(t.TempDir(), "nested", "test.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { d.Close() })
	if err := Migrate(d); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return d
}

func TestMigrateIsIdempotent(t *testing.T) {
	d := openTestDB(t)
	if err := Migrate(d); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}
	version, dirty, err := Version(d)
	if err != nil {
		t.Fatalf("Version() error = %v", err)
	}
	if version != 1 || dirty {
		t.Errorf("Version() = %d dirty=%v, want 1 clean", version, dirty)
	}
}

func TestTxRollsBackOnError(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := d.Tx(ctx, func(q Querier) error {
		_, err := q.ExecContext(ctx,
			`INSERT INTO users (name, email, password_hash, role, created_at) VALUES (?, ?, ?, ?, ?)`,
			"a", "a@x.com", "h", "user", time.Now().UTC())
		if err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Tx() error = %v, want boom", err)
	}

	var n int
	if err := d.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("users after rollback = %d, want 0", n)
	}
}

func TestConstraintClassification(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	insert := `INSERT INTO users (name, email, password_hash, role, created_at) VALUES (?, ?, ?, ?, ?)`
	if _, err := d.ExecContext(ctx, insert, "a", "a@x.com", "h", "user", time.Now().UTC()); err != nil {
		t.Fatal(err)
	}
	_, err := d.ExecContext(ctx, insert, "b", "a@x.com", "h", "user", time.Now().UTC())
	if !IsUniqueViolation(err) {
		t.Errorf("duplicate email error = %v, want unique violation", err)
	}

	_, err = d.ExecContext(ctx,
		`INSERT INTO comments (body, name, blog_post_id, created_at) VALUES (?, ?, ?, ?)`,
		"hi", "a", 999, time.Now().UTC())
	if !IsForeignKeyViolation(err) {
		t.Errorf("orphan comment error = %v, want foreign key violation", err)
	}
}

func TestTx_ConcurrentReadThenWrite(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()

	const writers = 12
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- d.Tx(ctx, func(q Querier) error {
				var n int
				if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
					return err
				}
				_, err := q.ExecContext(ctx,
					`INSERT INTO users (name, email, password_hash, role, created_at) VALUES (?, ?, ?, ?, ?)`,
					"u", fmt.Sprintf("u%d@x.com", i), "h", "user", time.Now().UTC())
				return err
			})
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Errorf("Tx() error = %v", err)
		}
	}

	var n int
	if err := d.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != writers {
		t.Errorf("users = %d, want %d", n, writers)
	}
}

func TestLock(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	err := d.Tx(ctx, func(q Querier) error {
		return Lock(ctx, q, 1)
	})
	if err != nil {
		t.Errorf("Lock() inside sqlite tx error = %v", err)
	}
	if err := Lock(ctx, d, 1); err != nil {
		t.Errorf("Lock() on sqlite handle error = %v", err)
	}
	if err := Lock(ctx, &DB{dialect: Postgres}, 1); err == nil {
		t.Error("Lock() on postgres handle outside a tx should fail")
	}
}

func TestMigrate_ReleasesConnections(t *testing.T) {
	d := openTestDB(t)
	for i := 0; i < 3; i++ {
		if err := Migrate(d); err != nil {
			t.Fatalf("Migrate() error = %v", err)
		}
		if _, _, err := Version(d); err != nil {
			t.Fatalf("Version() error = %v", err)
		}
	}
	if inUse := d.SQL().Stats().InUse; inUse != 0 {
		t.Errorf("connections in use after migrations = %d, want 0", inUse)
	}
	if err := d.SQL().Ping(); err != nil {
		t.Errorf("pool closed by migrations: %v", err)
	}
}
