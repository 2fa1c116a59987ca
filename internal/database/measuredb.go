package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/applet-tools/cardmeter/internal/model"
)

// dbFileName is the measurement database filename inside the data dir.
const dbFileName = "cardmeter.db"

// MeasureDB stores one row per measured (name, version) pair.
// It is the persistence behind the dedup cache and the source the
// aggregate documents are rebuilt from at startup.
type MeasureDB struct {
	db     *sql.DB
	dbPath string
}

// Options configures MeasureDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a MeasureDB in the specified directory.
func Open(dbDir string, opts Options) (*MeasureDB, error) {
	dbPath := filepath.Join(dbDir, dbFileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite supports one writer; a larger pool only causes lock errors.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	mdb := &MeasureDB{db: db, dbPath: dbPath}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := mdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return mdb, nil
}

// Close closes the database connection.
func (mdb *MeasureDB) Close() error {
	return mdb.db.Close()
}

// Path returns the database file path.
func (mdb *MeasureDB) Path() string {
	return mdb.dbPath
}

// createTables creates the schema if it doesn't exist.
func (mdb *MeasureDB) createTables() error {
	schema := `
	-- One row per measured (name, version) pair. The UNIQUE constraint is
	-- the dedup invariant: a key can never be measured twice.
	CREATE TABLE IF NOT EXISTS measurements (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		version TEXT NOT NULL,
		release_id TEXT NOT NULL DEFAULT '',
		persistent INTEGER NOT NULL,
		transient INTEGER NOT NULL,
		measured_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(name, version)
	);

	CREATE INDEX IF NOT EXISTS idx_measurements_name ON measurements(name);
	CREATE INDEX IF NOT EXISTS idx_measurements_release ON measurements(release_id);
	`
	_, err := mdb.db.ExecContext(context.Background(), schema)
	return err
}

// Has reports whether a measurement exists for the key.
func (mdb *MeasureDB) Has(ctx context.Context, key model.DedupKey) (bool, error) {
	var one int
	err := mdb.db.QueryRowContext(ctx,
		"SELECT 1 FROM measurements WHERE name = ? AND version = ?",
		key.Name, key.Version,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query measurement: %w", err)
	}
	return true, nil
}

// Record stores a measurement. Recording an existing key keeps the original
// row: the first measurement of a key wins, matching the orchestrator's
// never-remeasure guarantee.
func (mdb *MeasureDB) Record(ctx context.Context, rec model.MeasurementRecord) error {
	_, err := mdb.db.ExecContext(ctx, `
	INSERT INTO measurements (name, version, release_id, persistent, transient)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(name, version) DO NOTHING`,
		rec.Package.Name, rec.Package.Version, rec.ReleaseID,
		rec.Measurement.PersistentBytes, rec.Measurement.TransientBytes,
	)
	if err != nil {
		return fmt.Errorf("failed to record measurement: %w", err)
	}
	return nil
}

// All returns every stored record in insertion order.
func (mdb *MeasureDB) All(ctx context.Context) ([]model.MeasurementRecord, error) {
	rows, err := mdb.db.QueryContext(ctx, `
	SELECT name, version, release_id, persistent, transient
	FROM measurements ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list measurements: %w", err)
	}
	defer rows.Close()

	var recs []model.MeasurementRecord
	for rows.Next() {
		var rec model.MeasurementRecord
		if err := rows.Scan(
			&rec.Package.Name, &rec.Package.Version, &rec.ReleaseID,
			&rec.Measurement.PersistentBytes, &rec.Measurement.TransientBytes,
		); err != nil {
			return nil, fmt.Errorf("failed to scan measurement: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// VersionMeasurement is one measured version of an app, for history
// listings and comparisons.
type VersionMeasurement struct {
	Version     string
	ReleaseID   string
	Measurement model.StorageMeasurement
	MeasuredAt  time.Time
}

// History returns all measured versions of the named app, oldest first.
func (mdb *MeasureDB) History(ctx context.Context, name string) ([]VersionMeasurement, error) {
	rows, err := mdb.db.QueryContext(ctx, `
	SELECT version, release_id, persistent, transient, measured_at
	FROM measurements WHERE name = ? ORDER BY id`, name)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var history []VersionMeasurement
	for rows.Next() {
		var vm VersionMeasurement
		if err := rows.Scan(
			&vm.Version, &vm.ReleaseID,
			&vm.Measurement.PersistentBytes, &vm.Measurement.TransientBytes,
			&vm.MeasuredAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		history = append(history, vm)
	}
	return history, rows.Err()
}

// ListApps returns the distinct app names with stored measurements.
func (mdb *MeasureDB) ListApps(ctx context.Context) ([]string, error) {
	rows, err := mdb.db.QueryContext(ctx,
		"SELECT DISTINCT name FROM measurements ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to list apps: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan app name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Get returns the measurement for one version of an app.
func (mdb *MeasureDB) Get(ctx context.Context, key model.DedupKey) (model.StorageMeasurement, error) {
	var m model.StorageMeasurement
	err := mdb.db.QueryRowContext(ctx, `
	SELECT persistent, transient FROM measurements
	WHERE name = ? AND version = ?`,
		key.Name, key.Version,
	).Scan(&m.PersistentBytes, &m.TransientBytes)
	if err != nil {
		return model.StorageMeasurement{}, fmt.Errorf("no measurement for %s: %w", key, err)
	}
	return m, nil
}
