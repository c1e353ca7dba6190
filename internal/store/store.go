// Package store persists acquisition run history in SQLite.
package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/simpeaks/internal/acquire"
	"github.com/banshee-data/simpeaks/internal/ndarray"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrRunNotFound is returned when a run end has no matching start.
var ErrRunNotFound = errors.New("store: run not found")

// DB is the run history database. It implements acquire.RunRecorder.
type DB struct {
	*sql.DB
	path string
}

var _ acquire.RunRecorder = (*DB)(nil)

// Open opens or creates the database at path and applies migrations.
func Open(path string) (*DB, error) {
	sqldb, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One writer; the worker records under its own lock.
	sqldb.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := sqldb.Exec(pragma); err != nil {
			sqldb.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	db := &DB{DB: sqldb, path: path}
	if err := db.MigrateUp(); err != nil {
		sqldb.Close()
		return nil, err
	}
	return db, nil
}

// MigrateUp applies all pending embedded migrations.
func (db *DB) MigrateUp() error {
	m, err := db.newMigrate()
	if err != nil {
		return err
	}
	// m is not closed: that would close db.DB.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// MigrateVersion returns the applied schema version, 0 if none.
func (db *DB) MigrateVersion() (version uint, dirty bool, err error) {
	m, err := db.newMigrate()
	if err != nil {
		return 0, false, err
	}
	version, dirty, err = m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

func (db *DB) newMigrate() (*migrate.Migrate, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(db.DB, &sqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.Log = migrateLogger{}
	return m, nil
}

type migrateLogger struct{}

func (migrateLogger) Printf(format string, v ...interface{}) {
	log.Printf("[migrate] "+format, v...)
}

func (migrateLogger) Verbose() bool { return false }

// RecordRunStart inserts a run row.
func (db *DB) RecordRunStart(r acquire.RunInfo) error {
	_, err := db.Exec(`
		INSERT INTO runs (run_id, image_mode, size_x, size_y, data_type, num_images, started_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Mode.String(), r.SizeX, r.SizeY, r.DataType.String(), r.NumImages, r.Started.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", r.ID, err)
	}
	return nil
}

// RecordRunEnd stores the end time, frame count and final state of a run.
func (db *DB) RecordRunEnd(r acquire.RunInfo) error {
	res, err := db.Exec(`
		UPDATE runs SET ended_ns = ?, frames = ?, final_state = ?
		WHERE run_id = ?`,
		r.Ended.UnixNano(), r.Frames, r.FinalState.String(), r.ID)
	if err != nil {
		return fmt.Errorf("failed to update run %s: %w", r.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, r.ID)
	}
	return nil
}

// RecentRuns returns up to limit runs, newest first.
func (db *DB) RecentRuns(ctx context.Context, limit int) ([]acquire.RunInfo, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.QueryContext(ctx, `
		SELECT run_id, image_mode, size_x, size_y, data_type, num_images,
		       started_ns, ended_ns, frames, final_state
		FROM runs ORDER BY started_ns DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []acquire.RunInfo
	for rows.Next() {
		var (
			r          acquire.RunInfo
			mode, dt   string
			started    int64
			ended      sql.NullInt64
			finalState sql.NullString
		)
		if err := rows.Scan(&r.ID, &mode, &r.SizeX, &r.SizeY, &dt, &r.NumImages,
			&started, &ended, &r.Frames, &finalState); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if r.Mode, err = acquire.ParseImageMode(mode); err != nil {
			return nil, err
		}
		if r.DataType, err = ndarray.ParseDataType(dt); err != nil {
			return nil, err
		}
		r.Started = time.Unix(0, started)
		if ended.Valid {
			r.Ended = time.Unix(0, ended.Int64)
		}
		r.FinalState = acquire.StateAcquiring
		if finalState.Valid {
			if r.FinalState, err = acquire.ParseState(finalState.String); err != nil {
				return nil, err
			}
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
