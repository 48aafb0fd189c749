package db

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationFiles embed.FS

// Migrate brings the schema up to date. It is safe to call on every start.
func Migrate(d *DB) error {
	m, closeMigrate, err := newMigrate(d)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer closeMigrate()

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return nil
		}
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

// Version reports the applied schema version and whether the last migration
// left the database dirty.
func Version(d *DB) (uint, bool, error) {
	m, closeMigrate, err := newMigrate(d)
	if err != nil {
		return 0, false, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer closeMigrate()

	version, dirty, err := m.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to get database version: %w", err)
	}
	return version, dirty, nil
}

// newMigrate runs migrations over a private pool so that closing the
// migrate instance releases its connections without touching d's pool.
// An in-memory sqlite database is not shared across pools and cannot be
// migrated this way.
func newMigrate(d *DB) (*migrate.Migrate, func(), error) {
	dir := "migrations/" + d.dialect.String()
	sourceDriver, err := iofs.New(migrationFiles, dir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create source driver: %w", err)
	}

	conn, err := sql.Open(d.driver, d.dsn)
	if err != nil {
		sourceDriver.Close()
		return nil, nil, fmt.Errorf("opening migration connection: %w", err)
	}

	var dbDriver database.Driver
	switch d.dialect {
	case Postgres:
		dbDriver, err = migratepgx.WithInstance(conn, &migratepgx.Config{})
	default:
		dbDriver, err = migratesqlite.WithInstance(conn, &migratesqlite.Config{})
	}
	if err != nil {
		sourceDriver.Close()
		conn.Close()
		return nil, nil, fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, d.dialect.String(), dbDriver)
	if err != nil {
		sourceDriver.Close()
		dbDriver.Close()
		conn.Close()
		return nil, nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	closeMigrate := func() {
		m.Close()
		// The pgx driver leaves an instance pool open on Close.
		conn.Close()
	}
	return m, closeMigrate, nil
}
