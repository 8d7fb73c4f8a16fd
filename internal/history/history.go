// Package history records sync passes in a SQLite database inside the vault.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
	_ "modernc.org/sqlite"

	"github.com/NathanCastle/arcgis-in-obsidian/internal/featuresync"
	"github.com/NathanCastle/arcgis-in-obsidian/internal/geo"
	"github.com/NathanCastle/arcgis-in-obsidian/internal/vault"
)

// ErrRunNotFound indicates the requested run id is not recorded.
var ErrRunNotFound = errors.New("run not found")

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// DB is the history database handle.
type DB struct {
	db *sql.DB
}

// Path returns the history database location for a vault.
func Path(vaultPath string) string {
	return filepath.Join(vaultPath, vault.StateDir, "history.db")
}

// Open opens or creates the history database of a vault.
func Open(vaultPath string) (*DB, error) {
	dbPath := Path(vaultPath)
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s directory: %w", vault.StateDir, err)
	}
	return open(dbPath)
}

// OpenInMemory opens an in-memory database (for testing).
func OpenInMemory() (*DB, error) {
	return open(":memory:")
}

func open(dsn string) (*DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps :memory: databases shared across calls.
	db.SetMaxOpenConns(1)

	d := &DB{db: db}
	if err := d.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return d, nil
}

// Close closes the database.
func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) initialize() error {
	schema := `
		PRAGMA journal_mode = WAL;
		PRAGMA synchronous = NORMAL;

		CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			started_at INTEGER NOT NULL,   -- unix millis
			finished_at INTEGER NOT NULL,
			dry_run INTEGER NOT NULL DEFAULT 0,
			cancelled INTEGER NOT NULL DEFAULT 0,
			excluded INTEGER NOT NULL DEFAULT 0,
			created INTEGER NOT NULL DEFAULT 0,
			updated INTEGER NOT NULL DEFAULT 0,
			skipped INTEGER NOT NULL DEFAULT 0,
			failed INTEGER NOT NULL DEFAULT 0,
			config_errors TEXT NOT NULL DEFAULT '[]'
		);

		CREATE TABLE IF NOT EXISTS results (
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			connection TEXT NOT NULL,
			path TEXT NOT NULL,
			status TEXT NOT NULL,
			object_id INTEGER,
			x REAL,
			y REAL,
			source TEXT,
			reason TEXT,
			error TEXT,
			PRIMARY KEY (run_id, seq)
		);

		CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
		CREATE INDEX IF NOT EXISTS idx_results_path ON results(path);
	`
	if _, err := d.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize history schema: %w", err)
	}
	if _, err := d.db.Exec(
		`INSERT INTO meta (key, value) VALUES ('version', ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		fmt.Sprint(SchemaVersion),
	); err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}
	return nil
}

// Run is a recorded sync pass.
type Run struct {
	ID           string                    `json:"id"`
	StartedAt    time.Time                 `json:"started_at"`
	FinishedAt   time.Time                 `json:"finished_at"`
	DryRun       bool                      `json:"dry_run"`
	Cancelled    bool                      `json:"cancelled"`
	Excluded     int                       `json:"excluded"`
	Counts       featuresync.Counts        `json:"counts"`
	ConfigErrors []featuresync.ConfigError `json:"config_errors,omitempty"`
}

// Record stores a finished pass and its per-document results.
func (d *DB) Record(ctx context.Context, report *featuresync.Report) error {
	configErrors, err := json.Marshal(report.ConfigErrors)
	if err != nil {
		return fmt.Errorf("encode config errors: %w", err)
	}
	if report.ConfigErrors == nil {
		configErrors = []byte("[]")
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	c := report.Counts()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO runs (id, started_at, finished_at, dry_run, cancelled, excluded, created, updated, skipped, failed, config_errors)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		report.RunID, report.StartedAt.UnixMilli(), report.FinishedAt.UnixMilli(),
		boolToInt(report.DryRun), boolToInt(report.Cancelled), report.Excluded,
		c.Created, c.Updated, c.Skipped, c.Failed, string(configErrors),
	); err != nil {
		return fmt.Errorf("insert run %s: %w", report.RunID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO results (run_id, seq, connection, path, status, object_id, x, y, source, reason, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare results: %w", err)
	}
	defer stmt.Close()

	for i, res := range report.Results {
		var x, y sql.NullFloat64
		if res.Location != nil {
			x = sql.NullFloat64{Float64: res.Location.X, Valid: true}
			y = sql.NullFloat64{Float64: res.Location.Y, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx,
			report.RunID, i, res.Connection, res.Path, string(res.Status),
			nullInt(res.ObjectID), x, y,
			nullString(res.Source), nullString(res.Reason), nullString(res.Error),
		); err != nil {
			return fmt.Errorf("insert result %s: %w", res.Path, err)
		}
	}

	return tx.Commit()
}

// Recent returns the most recent runs, newest first.
func (d *DB) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, dry_run, cancelled, excluded, created, updated, skipped, failed, config_errors
		FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	return scanRows(rows, func(rows *sql.Rows) (Run, error) {
		run, err := scanRun(rows)
		if err != nil {
			return Run{}, err
		}
		return *run, nil
	})
}

// Get returns one run by id.
func (d *DB) Get(ctx context.Context, id string) (*Run, error) {
	row := d.db.QueryRowContext(ctx, `
		SELECT id, started_at, finished_at, dry_run, cancelled, excluded, created, updated, skipped, failed, config_errors
		FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", id, ErrRunNotFound)
	}
	return run, err
}

// Results returns the per-document outcomes of a run in recorded order.
func (d *DB) Results(ctx context.Context, runID string) ([]featuresync.DocumentResult, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT connection, path, status, object_id, x, y, source, reason, error
		FROM results WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	return scanRows(rows, scanResult)
}

// Prune deletes all but the newest keep runs and returns how many were removed.
func (d *DB) Prune(ctx context.Context, keep int) (int64, error) {
	res, err := d.db.ExecContext(ctx, `
		DELETE FROM runs WHERE id NOT IN (
			SELECT id FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?
		)`, keep)
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	if _, err := d.db.ExecContext(ctx, `DELETE FROM results WHERE run_id NOT IN (SELECT id FROM runs)`); err != nil {
		return 0, fmt.Errorf("prune results: %w", err)
	}
	return res.RowsAffected()
}

func scanResult(rows *sql.Rows) (featuresync.DocumentResult, error) {
	var (
		res                  featuresync.DocumentResult
		status               string
		objectID             sql.NullInt64
		x, y                 sql.NullFloat64
		source, reason, errS sql.NullString
	)
	if err := rows.Scan(&res.Connection, &res.Path, &status, &objectID, &x, &y, &source, &reason, &errS); err != nil {
		return res, fmt.Errorf("scan result: %w", err)
	}
	res.Status = featuresync.Status(status)
	res.ObjectID = objectID.Int64
	if x.Valid && y.Valid {
		res.Location = &geo.Location{X: x.Float64, Y: y.Float64}
	}
	res.Source = source.String
	res.Reason = reason.String
	res.Error = errS.String
	return res, nil
}

// scanRows scans and closes rows.
func scanRows[T any](rows *sql.Rows, scan func(*sql.Rows) (T, error)) ([]T, error) {
	defer rows.Close()

	var out []T
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	var (
		run               Run
		started, finished int64
		dryRun, cancelled int
		configErrors      string
	)
	err := s.Scan(&run.ID, &started, &finished, &dryRun, &cancelled, &run.Excluded,
		&run.Counts.Created, &run.Counts.Updated, &run.Counts.Skipped, &run.Counts.Failed, &configErrors)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	run.StartedAt = time.UnixMilli(started)
	run.FinishedAt = time.UnixMilli(finished)
	run.DryRun = dryRun != 0
	run.Cancelled = cancelled != 0
	if err := json.Unmarshal([]byte(configErrors), &run.ConfigErrors); err != nil {
		return nil, fmt.Errorf("decode config errors: %w", err)
	}
	return &run, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullInt(v int64) sql.NullInt64 {
	return sql.NullInt64{Int64: v, Valid: v != 0}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
