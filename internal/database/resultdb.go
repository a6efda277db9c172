package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/bannerscan/internal/model"
	"github.com/nao1215/bannerscan/internal/report"
)

// DefaultBatchSize is the number of results written per transaction.
const DefaultBatchSize = 256

// ErrClosed is returned when writing to a ResultDB after Close.
var ErrClosed = errors.New("result database is closed")

// ResultDB is a SQLite export of scan results.
// Each process run that writes at least one result adds one row to scans
// and one row per target to results. The file is an export artifact; the
// scanner never reads it back.
//
// ResultDB implements report.Writer, so it can be combined with the chosen
// output format through report.MultiWriter.
type ResultDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string

	batchSize int
	now       func() time.Time

	// scanID is zero until the first result is written.
	scanID  int64
	count   int
	tx      *sql.Tx
	insert  *sql.Stmt
	pending int
	closed  bool
}

// Options configures ResultDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool

	// BatchSize is the number of results per transaction.
	// Zero uses DefaultBatchSize.
	BatchSize int
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
		BatchSize:         DefaultBatchSize,
	}
}

// Open opens or creates a ResultDB at the specified file path.
// If CreateIfNotExists is true, the parent directory and the file are created.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbPath string, opts Options) (*ResultDB, error) {
	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// When CreateIfNotExists is false, we use mode=rw to prevent creating new files.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	batch := opts.BatchSize
	if batch <= 0 {
		batch = DefaultBatchSize
	}

	rdb := &ResultDB{
		db:        db,
		dbPath:    dbPath,
		batchSize: batch,
		now:       time.Now,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := rdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return rdb, nil
}

// Path returns the database file path.
func (r *ResultDB) Path() string {
	return r.dbPath
}

// createTables creates the database schema if it doesn't exist.
func (r *ResultDB) createTables() error {
	schema := `
	-- One row per scan run
	CREATE TABLE IF NOT EXISTS scans (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		result_count INTEGER NOT NULL DEFAULT 0
	);

	-- One row per scanned target
	CREATE TABLE IF NOT EXISTS results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		scan_id INTEGER NOT NULL REFERENCES scans(id),
		scanned_at TEXT NOT NULL,
		ip TEXT NOT NULL,
		port INTEGER NOT NULL,
		host TEXT,
		protocol TEXT NOT NULL,
		mode TEXT NOT NULL,
		status TEXT NOT NULL,
		phase TEXT,
		reason TEXT,
		note TEXT,
		banner BLOB,
		banner_text TEXT,
		banner_sha3 TEXT,
		truncated INTEGER NOT NULL DEFAULT 0,
		metadata TEXT,
		elapsed_ms INTEGER NOT NULL,
		connect_ms INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_results_scan ON results(scan_id);
	CREATE INDEX IF NOT EXISTS idx_results_endpoint ON results(ip, port);
	CREATE INDEX IF NOT EXISTS idx_results_sha3 ON results(banner_sha3);
	CREATE INDEX IF NOT EXISTS idx_results_status ON results(status);
	`

	_, err := r.db.ExecContext(context.Background(), schema)
	return err
}

const insertResult = `
	INSERT INTO results (
		scan_id, scanned_at, ip, port, host, protocol, mode, status, phase,
		reason, note, banner, banner_text, banner_sha3, truncated, metadata,
		elapsed_ms, connect_ms
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// Write stores one result. Results are committed in batches; Close
// commits the remainder.
func (r *ResultDB) Write(result *model.ConnectionResult) error {
	if r.closed {
		return ErrClosed
	}
	ctx := context.Background()

	if r.scanID == 0 {
		if err := r.beginScan(ctx); err != nil {
			return err
		}
	}
	if r.tx == nil {
		if err := r.beginBatch(ctx); err != nil {
			return err
		}
	}

	rec := report.NewRecord(result)
	var metadata any
	if len(rec.Metadata) > 0 {
		data, err := json.Marshal(rec.Metadata)
		if err != nil {
			return fmt.Errorf("failed to serialize metadata: %w", err)
		}
		metadata = string(data)
	}

	_, err := r.insert.ExecContext(ctx,
		r.scanID,
		rec.ScannedAt.Format(time.RFC3339Nano),
		rec.IP,
		int(rec.Port),
		nullString(rec.Host),
		rec.Protocol,
		rec.Mode,
		rec.Status,
		nullString(rec.Phase),
		nullString(rec.Reason),
		nullString(rec.Note),
		result.Outcome.Banner,
		nullString(rec.Banner),
		nullString(rec.BannerSHA3),
		rec.Truncated,
		metadata,
		rec.ElapsedMS,
		rec.ConnectMS,
	)
	if err != nil {
		return fmt.Errorf("failed to insert result for %s: %w", result.Target.Address(), err)
	}

	r.count++
	r.pending++
	if r.pending >= r.batchSize {
		return r.commit()
	}
	return nil
}

// beginScan inserts the scan row.
func (r *ResultDB) beginScan(ctx context.Context) error {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO scans (started_at) VALUES (?)",
		r.now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to record scan: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read scan id: %w", err)
	}
	r.scanID = id
	return nil
}

// beginBatch opens a transaction and prepares the insert statement.
func (r *ResultDB) beginBatch(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, insertResult)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	r.tx = tx
	r.insert = stmt
	return nil
}

// commit ends the current batch.
func (r *ResultDB) commit() error {
	if r.tx == nil {
		return nil
	}
	_ = r.insert.Close()
	err := r.tx.Commit()
	r.tx, r.insert, r.pending = nil, nil, 0
	if err != nil {
		return fmt.Errorf("failed to commit results: %w", err)
	}
	return nil
}

// Flush commits pending results.
func (r *ResultDB) Flush() error {
	if r.closed {
		return ErrClosed
	}
	return r.commit()
}

// Close commits pending results, records the scan's end and closes the
// database connection.
func (r *ResultDB) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true

	var errs []error
	if err := r.commit(); err != nil {
		errs = append(errs, err)
	}
	if r.scanID != 0 {
		_, err := r.db.ExecContext(context.Background(),
			"UPDATE scans SET finished_at = ?, result_count = ? WHERE id = ?",
			r.now().UTC().Format(time.RFC3339Nano), r.count, r.scanID,
		)
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to finish scan: %w", err))
		}
	}
	if err := r.db.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ScanRecord is a stored scan run.
type ScanRecord struct {
	ID          int64
	StartedAt   time.Time
	FinishedAt  time.Time
	ResultCount int
}

// Scans lists the stored scan runs, oldest first.
// The query methods commit any pending batch first.
func (r *ResultDB) Scans(ctx context.Context) ([]ScanRecord, error) {
	// the single connection is held by an open batch
	if err := r.Flush(); err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, started_at, COALESCE(finished_at, ''), result_count FROM scans ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query scans: %w", err)
	}
	defer rows.Close()

	var scans []ScanRecord
	for rows.Next() {
		var (
			s                 ScanRecord
			started, finished string
		)
		if err := rows.Scan(&s.ID, &started, &finished, &s.ResultCount); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		s.StartedAt = parseTimestamp(started)
		s.FinishedAt = parseTimestamp(finished)
		scans = append(scans, s)
	}
	return scans, rows.Err()
}

// Results returns the records of one scan in insertion order.
func (r *ResultDB) Results(ctx context.Context, scanID int64) ([]report.Record, error) {
	// the single connection is held by an open batch
	if err := r.Flush(); err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT scanned_at, ip, port, COALESCE(host, ''), protocol, mode, status,
			COALESCE(phase, ''), COALESCE(reason, ''), COALESCE(note, ''),
			COALESCE(banner_text, ''), COALESCE(banner_sha3, ''), truncated,
			COALESCE(metadata, ''), elapsed_ms, connect_ms
		FROM results WHERE scan_id = ? ORDER BY id`, scanID)
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer rows.Close()

	var records []report.Record
	for rows.Next() {
		var (
			rec       report.Record
			scanned   string
			port      int
			metadata  string
			truncated int
		)
		err := rows.Scan(
			&scanned, &rec.IP, &port, &rec.Host, &rec.Protocol, &rec.Mode, &rec.Status,
			&rec.Phase, &rec.Reason, &rec.Note, &rec.Banner, &rec.BannerSHA3, &truncated,
			&metadata, &rec.ElapsedMS, &rec.ConnectMS,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		rec.ScannedAt = parseTimestamp(scanned)
		rec.Port = uint16(port) //nolint:gosec // stored from a uint16
		rec.Truncated = truncated != 0
		if metadata != "" {
			if err := json.Unmarshal([]byte(metadata), &rec.Metadata); err != nil {
				return nil, fmt.Errorf("failed to parse metadata: %w", err)
			}
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// CountByStatus returns the number of results per status for one scan.
func (r *ResultDB) CountByStatus(ctx context.Context, scanID int64) (map[string]int, error) {
	// the single connection is held by an open batch
	if err := r.Flush(); err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx,
		"SELECT status, COUNT(*) FROM results WHERE scan_id = ? GROUP BY status", scanID)
	if err != nil {
		return nil, fmt.Errorf("failed to count results: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// nullString maps "" to SQL NULL.
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// parseTimestamp parses a stored RFC 3339 timestamp.
// Unset or unparsable values yield the zero time.
func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
