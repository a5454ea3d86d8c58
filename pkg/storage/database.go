package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/lirany1/cucumber-insights/pkg/logger"
	"github.com/lirany1/cucumber-insights/pkg/models"
)

// timestampLayout is fixed-width UTC so stored values compare lexically
const timestampLayout = "2006-01-02T15:04:05Z"

// Database keeps the history of parse runs
type Database struct {
	db   *sql.DB
	path string
}

// RunRecord is one stored parse run
type RunRecord struct {
	ID          string        `json:"id"`
	Timestamp   time.Time     `json:"timestamp"`
	Source      string        `json:"source"`
	FilesParsed int           `json:"filesParsed"`
	Total       int           `json:"total"`
	Passed      int           `json:"passed"`
	Failed      int           `json:"failed"`
	Skipped     int           `json:"skipped"`
	PassRate    float64       `json:"passRate"`
	Counts      models.Counts `json:"counts"`
}

// TestFailureCount is how often a test failed across stored runs
type TestFailureCount struct {
	Name     string `json:"name"`
	Failures int    `json:"failures"`
	Runs     int    `json:"runs"`
}

// NewDatabase creates or opens the history database under dir
func NewDatabase(dir string) (*Database, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	dbPath := filepath.Join(dir, "history.db")
	logger.Debugf("Opening history database at: %s", dbPath)

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	database := &Database{
		db:   db,
		path: dbPath,
	}

	if err := database.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return database, nil
}

// Path returns the database file location
func (d *Database) Path() string {
	return d.path
}

func (d *Database) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			created_at TEXT NOT NULL,
			source TEXT,
			files_parsed INTEGER NOT NULL,
			total INTEGER NOT NULL,
			passed INTEGER NOT NULL,
			failed INTEGER NOT NULL,
			skipped INTEGER NOT NULL,
			pass_rate REAL NOT NULL,
			counts TEXT
		)`,

		`CREATE INDEX IF NOT EXISTS idx_runs_created_at
		 ON runs(created_at DESC)`,

		`CREATE TABLE IF NOT EXISTS run_failures (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			file TEXT,
			name TEXT NOT NULL,
			reason TEXT NOT NULL,
			FOREIGN KEY (run_id) REFERENCES runs(id)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_run_failures_name
		 ON run_failures(name)`,

		`CREATE INDEX IF NOT EXISTS idx_run_failures_run
		 ON run_failures(run_id)`,
	}

	for i, migration := range migrations {
		if _, err := d.db.Exec(migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i, err)
		}
	}
	return nil
}

// SaveRun stores the aggregate of a run and its failures in one transaction
func (d *Database) SaveRun(id, source string, at time.Time, agg *models.Aggregate) error {
	countsJSON, err := json.Marshal(agg.Counts)
	if err != nil {
		return fmt.Errorf("failed to encode counts: %w", err)
	}

	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO runs (
			id, created_at, source, files_parsed, total,
			passed, failed, skipped, pass_rate, counts
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		at.UTC().Format(timestampLayout),
		source,
		agg.FilesParsed,
		agg.Total,
		agg.Passed,
		agg.Failed,
		agg.Skipped,
		models.PassRate(agg.Passed, agg.Total),
		string(countsJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO run_failures (run_id, file, name, reason) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare failure insert: %w", err)
	}
	defer stmt.Close()

	for _, f := range agg.Failures {
		if _, err := stmt.Exec(id, f.File, f.Name, f.Reason); err != nil {
			return fmt.Errorf("failed to save failure %q: %w", f.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}

	logger.Debugf("Saved run %s with %d failures", id, len(agg.Failures))
	return nil
}

// RecentRuns returns the last limit runs, newest first; limit <= 0 returns all
func (d *Database) RecentRuns(limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := d.db.Query(`
		SELECT id, created_at, source, files_parsed, total,
		       passed, failed, skipped, pass_rate, counts
		FROM runs
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()
	return scanRuns(rows)
}

// RunsSince returns the runs recorded within the last days, oldest first
func (d *Database) RunsSince(days int) ([]RunRecord, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -days).Format(timestampLayout)

	rows, err := d.db.Query(`
		SELECT id, created_at, source, files_parsed, total,
		       passed, failed, skipped, pass_rate, counts
		FROM runs
		WHERE created_at >= ?
		ORDER BY created_at ASC, rowid ASC`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()
	return scanRuns(rows)
}

func scanRuns(rows *sql.Rows) ([]RunRecord, error) {
	var runs []RunRecord
	for rows.Next() {
		var run RunRecord
		var createdAt string
		var source, countsJSON sql.NullString

		if err := rows.Scan(
			&run.ID,
			&createdAt,
			&source,
			&run.FilesParsed,
			&run.Total,
			&run.Passed,
			&run.Failed,
			&run.Skipped,
			&run.PassRate,
			&countsJSON,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		run.Source = source.String
		run.Timestamp, _ = time.Parse(timestampLayout, createdAt)
		run.Counts = models.Counts{}
		if countsJSON.Valid && countsJSON.String != "" {
			if err := json.Unmarshal([]byte(countsJSON.String), &run.Counts); err != nil {
				logger.Warnf("Run %s has unreadable counts: %v", run.ID, err)
			}
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// FailureCountsByTest ranks tests by how many stored runs within the last
// days they failed in; limit <= 0 returns every test
func (d *Database) FailureCountsByTest(days, limit int) ([]TestFailureCount, error) {
	if limit <= 0 {
		limit = -1
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -days).Format(timestampLayout)

	var totalRuns int
	if err := d.db.QueryRow(`SELECT COUNT(*) FROM runs WHERE created_at >= ?`, cutoff).Scan(&totalRuns); err != nil {
		return nil, fmt.Errorf("failed to count runs: %w", err)
	}

	rows, err := d.db.Query(`
		SELECT f.name, COUNT(DISTINCT f.run_id) AS failed_runs
		FROM run_failures f
		JOIN runs r ON f.run_id = r.id
		WHERE r.created_at >= ?
		GROUP BY f.name
		ORDER BY failed_runs DESC, f.name ASC
		LIMIT ?`, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query failures: %w", err)
	}
	defer rows.Close()

	var counts []TestFailureCount
	for rows.Next() {
		tc := TestFailureCount{Runs: totalRuns}
		if err := rows.Scan(&tc.Name, &tc.Failures); err != nil {
			return nil, fmt.Errorf("failed to scan failure count: %w", err)
		}
		counts = append(counts, tc)
	}
	return counts, rows.Err()
}

// CleanupOldData removes runs older than retentionDays and their failures.
// A retention of zero or less keeps every run.
func (d *Database) CleanupOldData(retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, nil
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays).Format(timestampLayout)

	if _, err := d.db.Exec(`
		DELETE FROM run_failures
		WHERE run_id IN (SELECT id FROM runs WHERE created_at < ?)`, cutoff); err != nil {
		return 0, fmt.Errorf("failed to cleanup run_failures: %w", err)
	}

	result, err := d.db.Exec(`DELETE FROM runs WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup runs: %w", err)
	}

	removed, _ := result.RowsAffected()
	if removed > 0 {
		logger.Infof("Cleaned up %d old runs", removed)
	}
	return removed, nil
}

// Close closes the database connection
func (d *Database) Close() error {
	if d.db != nil {
		return d.db.Close()
	}
	return nil
}
