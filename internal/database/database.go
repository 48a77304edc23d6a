package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"photodex/internal/logging"
	"photodex/internal/metrics"
)

// Default timeout for database operations
const defaultTimeout = 5 * time.Second

// Database manages all persistence for the ingestion pipeline: photos,
// catalogs, jobs and the geocode cache.
type Database struct {
	db     *sql.DB
	dbPath string
}

// New opens (and if necessary creates) the SQLite database at dbPath.
// dbPath must be the full path to the database file; the parent directory
// must already exist and be writable. Use startup.LoadConfig to validate
// directories before calling this.
func New(ctx context.Context, dbPath string) (*Database, error) {
	logging.Info("Database path: %s", dbPath)

	// WAL mode plus busy_timeout keeps concurrent job writers from
	// tripping over "database is locked" errors.
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(time.Hour)

	d := &Database{
		db:     db,
		dbPath: dbPath,
	}

	if err := d.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after initialization failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	logging.Info("Database initialized successfully at %s", dbPath)
	return d, nil
}

func (d *Database) initialize(ctx context.Context) error {
	start := time.Now()
	schema := `
	CREATE TABLE IF NOT EXISTS photos (
		guid TEXT PRIMARY KEY,
		fingerprint TEXT NOT NULL UNIQUE,
		catalog_id INTEGER NOT NULL,
		path TEXT NOT NULL,
		file_size INTEGER NOT NULL,
		taken_at INTEGER NOT NULL,
		gps_lat REAL,
		gps_lon REAL,
		place_name TEXT,
		camera_make TEXT,
		width INTEGER NOT NULL DEFAULT 0,
		height INTEGER NOT NULL DEFAULT 0,
		rating INTEGER NOT NULL DEFAULT 0,
		deleted INTEGER NOT NULL DEFAULT 0,
		indexed_at INTEGER NOT NULL,
		FOREIGN KEY (catalog_id) REFERENCES catalogs(id)
	);

	CREATE INDEX IF NOT EXISTS idx_photos_catalog ON photos(catalog_id);
	CREATE INDEX IF NOT EXISTS idx_photos_taken_at ON photos(taken_at, guid);

	CREATE TABLE IF NOT EXISTS catalogs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		type TEXT NOT NULL DEFAULT 'library',
		updating INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS jobs (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		status TEXT NOT NULL,
		error TEXT,
		created_at INTEGER NOT NULL,
		completed_at INTEGER,
		processed INTEGER NOT NULL DEFAULT 0,
		indexed INTEGER NOT NULL DEFAULT 0,
		duplicates INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS geocode_cache (
		cache_key TEXT PRIMARY KEY,
		place_name TEXT,
		radius_km REAL NOT NULL DEFAULT 0,
		fetched_at INTEGER NOT NULL,
		last_used_at INTEGER NOT NULL,
		hit_count INTEGER NOT NULL DEFAULT 0
	);
	`

	_, err := d.db.ExecContext(ctx, schema)
	recordQuery("initialize_schema", start, err)
	return err
}

// Healthy pings the store; used by the readiness probe.
func (d *Database) Healthy(ctx context.Context) error {
	ctx, cancel := opCtx(ctx)
	defer cancel()
	return d.db.PingContext(ctx)
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

// UpdateDBMetrics updates database connection metrics.
func (d *Database) UpdateDBMetrics() {
	stats := d.db.Stats()
	metrics.DBConnectionsOpen.Set(float64(stats.OpenConnections))
}

// recordQuery records database query metrics
func recordQuery(operation string, start time.Time, err error) {
	duration := time.Since(start).Seconds()
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.DBQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.DBQueryDuration.WithLabelValues(operation).Observe(duration)
}

// opCtx derives a bounded context for a single query.
func opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, defaultTimeout)
}
