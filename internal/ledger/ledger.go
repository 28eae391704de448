// Package ledger records build runs and the archives they produced in a
// SQLite database kept in the build directory.
package ledger

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Run statuses.
const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Run is one invocation of the build.
type Run struct {
	ID       string
	Started  time.Time
	Finished time.Time
	Status   string
	Error    string
	Targets  []TargetRecord
}

// TargetRecord is one archive produced by a run.
type TargetRecord struct {
	RunID    string
	Target   string
	Arch     string
	Archive  string
	SHA256   string
	Size     int64
	Duration time.Duration
}

// Ledger is the build history database.
type Ledger struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	started INTEGER NOT NULL,
	finished INTEGER,
	status TEXT NOT NULL,
	error TEXT
);
CREATE TABLE IF NOT EXISTS targets (
	run_id TEXT NOT NULL REFERENCES runs(id),
	target TEXT NOT NULL,
	arch TEXT NOT NULL,
	archive TEXT NOT NULL,
	sha256 TEXT NOT NULL,
	size INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL,
	PRIMARY KEY (run_id, target)
);
CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started);
`

// Open opens or creates the ledger at dbPath, creating its directory.
func Open(dbPath string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Ledger{db: db}, nil
}

// Close closes the database.
func (l *Ledger) Close() error { return l.db.Close() }

// StartRun records a run as running.
func (l *Ledger) StartRun(id string, at time.Time) error {
	_, err := l.db.Exec(`INSERT INTO runs (id, started, status) VALUES (?, ?, ?)`,
		id, at.UnixMilli(), StatusRunning)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", id, err)
	}
	return nil
}

// RecordTarget stores a produced archive.
func (l *Ledger) RecordTarget(rec TargetRecord) error {
	_, err := l.db.Exec(`
		INSERT OR REPLACE INTO targets (run_id, target, arch, archive, sha256, size, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.Target, rec.Arch, rec.Archive, rec.SHA256, rec.Size, rec.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("insert target %s/%s: %w", rec.RunID, rec.Target, err)
	}
	return nil
}

// FinishRun sets the final status of a run. runErr may be nil.
func (l *Ledger) FinishRun(id string, at time.Time, runErr error) error {
	status, msg := StatusSucceeded, ""
	if runErr != nil {
		status, msg = StatusFailed, runErr.Error()
	}
	res, err := l.db.Exec(`UPDATE runs SET finished = ?, status = ?, error = ? WHERE id = ?`,
		at.UnixMilli(), status, msg, id)
	if err != nil {
		return fmt.Errorf("update run %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update run %s: no such run", id)
	}
	return nil
}

// Runs returns up to limit runs, newest first, with their targets.
func (l *Ledger) Runs(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := l.db.Query(`
		SELECT id, started, finished, status, error FROM runs
		ORDER BY started DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer func() { _ = rows.Close() }() // safe to ignore

	var runs []Run
	for rows.Next() {
		var (
			r        Run
			started  int64
			finished sql.NullInt64
			errText  sql.NullString
		)
		if err := rows.Scan(&r.ID, &started, &finished, &r.Status, &errText); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Started = time.UnixMilli(started)
		if finished.Valid {
			r.Finished = time.UnixMilli(finished.Int64)
		}
		r.Error = errText.String
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	_ = rows.Close()

	for i := range runs {
		targets, err := l.targets(runs[i].ID)
		if err != nil {
			return nil, err
		}
		runs[i].Targets = targets
	}
	return runs, nil
}

func (l *Ledger) targets(runID string) ([]TargetRecord, error) {
	rows, err := l.db.Query(`
		SELECT target, arch, archive, sha256, size, duration_ms FROM targets
		WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("query targets: %w", err)
	}
	defer func() { _ = rows.Close() }() // safe to ignore

	var out []TargetRecord
	for rows.Next() {
		rec := TargetRecord{RunID: runID}
		var ms int64
		if err := rows.Scan(&rec.Target, &rec.Arch, &rec.Archive, &rec.SHA256, &rec.Size, &ms); err != nil {
			return nil, fmt.Errorf("scan target: %w", err)
		}
		rec.Duration = time.Duration(ms) * time.Millisecond
		out = append(out, rec)
	}
	return out, rows.Err()
}
