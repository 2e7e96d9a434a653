package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/p-arndt/sweeper/internal/runspec"

	_ "modernc.org/sqlite"
)

// Sentinel errors
var (
	ErrNotFound = errors.New("not found")
)

// isBusyLock reports whether err indicates SQLite database lock (SQLITE_BUSY).
// Handles wrapped errors from database/sql.
func isBusyLock(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "database is locked") || strings.Contains(s, "SQLITE_BUSY")
}

// retryOnBusy runs fn and retries on SQLITE_BUSY with exponential backoff.
func retryOnBusy(fn func() error) error {
	const maxAttempts = 4
	backoff := 25 * time.Millisecond
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil || !isBusyLock(lastErr) {
			return lastErr
		}
		if attempt < maxAttempts-1 {
			time.Sleep(backoff)
			backoff *= 2
		}
	}
	return lastErr
}

const (
	StatusRunning  = "running"
	StatusFinished = "finished"
	StatusFailed   = "failed"
)

// Sweep is one invocation of the driver.
type Sweep struct {
	ID         string    `json:"id"`
	Folder     string    `json:"folder"`
	OutputDir  string    `json:"output_dir"`
	CommitID   string    `json:"commit_id"`
	Expander   string    `json:"expander"`
	Status     string    `json:"status"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
	RunCount   int       `json:"run_count"`
}

// Run is one executed spec as recorded in the database.
type Run struct {
	SweepID    string
	Seq        int
	Spec       runspec.Spec
	Command    string
	ExitCode   int
	DurationMs int64
	CreatedAt  time.Time
}

type Store struct {
	db *sql.DB
}

const createTableSQL = `
CREATE TABLE IF NOT EXISTS sweeps (
	id          TEXT PRIMARY KEY,
	folder      TEXT NOT NULL,
	output_dir  TEXT NOT NULL,
	commit_id   TEXT NOT NULL DEFAULT '',
	expander    TEXT NOT NULL DEFAULT 'identity',
	status      TEXT NOT NULL DEFAULT 'running',
	started_at  DATETIME NOT NULL,
	finished_at DATETIME
);
CREATE TABLE IF NOT EXISTS runs (
	sweep_id    TEXT NOT NULL REFERENCES sweeps(id),
	seq         INTEGER NOT NULL,
	exec_path   TEXT NOT NULL,
	input_file  TEXT NOT NULL,
	max_columns TEXT NOT NULL,
	saft        TEXT NOT NULL,
	slave_stop  TEXT,
	extra_args  TEXT NOT NULL,
	output_file TEXT NOT NULL,
	env         TEXT NOT NULL DEFAULT '',
	command     TEXT NOT NULL,
	exit_code   INTEGER NOT NULL,
	user_time   REAL NOT NULL,
	system_time REAL NOT NULL,
	duration_ms INTEGER NOT NULL,
	created_at  DATETIME NOT NULL,
	PRIMARY KEY (sweep_id, seq)
);
CREATE INDEX IF NOT EXISTS idx_sweeps_started_at ON sweeps(started_at);
CREATE INDEX IF NOT EXISTS idx_runs_input_file ON runs(input_file);
`

// DefaultMaxOpenConns is the default connection pool size.
// The sweep driver is the only writer; extra connections serve history reads.
const DefaultMaxOpenConns = 2

// dsnWithPragmas returns a connection string with WAL, busy_timeout, and perf
// pragmas applied to every new connection.
func dsnWithPragmas(dbPath string) string {
	// busy_timeout: a history query may overlap with a running sweep
	// journal_mode=WAL: concurrent reads during writes
	// synchronous=NORMAL: safe in WAL
	return dbPath + "?_pragma=busy_timeout(15000)" +
		"&_pragma=journal_mode(WAL)" +
		"&_pragma=synchronous(NORMAL)" +
		"&_pragma=foreign_keys(ON)"
}

// New opens the store. maxOpenConns controls the connection pool size (0 = default).
func New(dbPath string, maxOpenConns int) (*Store, error) {
	dsn := dsnWithPragmas(dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if maxOpenConns <= 0 {
		maxOpenConns = DefaultMaxOpenConns
	}
	// Each connection to ":memory:" is a separate database.
	if dbPath == ":memory:" {
		maxOpenConns = 1
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxOpenConns)

	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) CreateSweep(sw *Sweep) error {
	if sw.Status == "" {
		sw.Status = StatusRunning
	}
	err := retryOnBusy(func() error {
		_, e := s.db.Exec(
			`INSERT INTO sweeps (id, folder, output_dir, commit_id, expander, status, started_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			sw.ID, sw.Folder, sw.OutputDir, sw.CommitID, sw.Expander, sw.Status, sw.StartedAt.UTC(),
		)
		return e
	})
	if err != nil {
		return fmt.Errorf("inserting sweep: %w", err)
	}
	return nil
}

func (s *Store) FinishSweep(id string, status string, finishedAt time.Time) error {
	var result sql.Result
	err := retryOnBusy(func() error {
		var e error
		result, e = s.db.Exec(
			`UPDATE sweeps SET status = ?, finished_at = ? WHERE id = ?`,
			status, finishedAt.UTC(), id,
		)
		return e
	})
	if err != nil {
		return fmt.Errorf("finishing sweep: %w", err)
	}
	return checkRowAffected(result, id)
}

const selectSweepSQL = `
SELECT s.id, s.folder, s.output_dir, s.commit_id, s.expander, s.status, s.started_at, s.finished_at,
       (SELECT COUNT(*) FROM runs r WHERE r.sweep_id = s.id)
FROM sweeps s`

// GetSweep returns nil, nil when no sweep has the given ID.
func (s *Store) GetSweep(id string) (*Sweep, error) {
	row := s.db.QueryRow(selectSweepSQL+` WHERE s.id = ?`, id)
	return scanSweep(row)
}

func (s *Store) ListSweeps() ([]*Sweep, error) {
	rows, err := s.db.Query(selectSweepSQL + ` ORDER BY s.started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing sweeps: %w", err)
	}
	defer rows.Close()

	var sweeps []*Sweep
	for rows.Next() {
		sw, err := scanSweep(rows)
		if err != nil {
			return nil, err
		}
		sweeps = append(sweeps, sw)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sweeps: %w", err)
	}
	return sweeps, nil
}

func (s *Store) RecordRun(r *Run) error {
	spec := r.Spec
	var slaveStop sql.NullString
	if spec.SlaveStop != nil {
		slaveStop = sql.NullString{String: *spec.SlaveStop, Valid: true}
	}
	err := retryOnBusy(func() error {
		_, e := s.db.Exec(
			`INSERT INTO runs (sweep_id, seq, exec_path, input_file, max_columns, saft, slave_stop,
			                   extra_args, output_file, env, command, exit_code, user_time, system_time,
			                   duration_ms, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.SweepID, r.Seq, spec.ExecPath, spec.InputFile, spec.MaxColumns, spec.Saft, slaveStop,
			spec.ExtraArgs, spec.OutputFile, strings.Join(spec.Env, "\n"), r.Command, r.ExitCode,
			spec.Stats.UserTime, spec.Stats.SystemTime, r.DurationMs, r.CreatedAt.UTC(),
		)
		return e
	})
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}
	return nil
}

// ListRuns returns a sweep's runs in execution order.
func (s *Store) ListRuns(sweepID string) ([]*Run, error) {
	rows, err := s.db.Query(
		`SELECT sweep_id, seq, exec_path, input_file, max_columns, saft, slave_stop, extra_args,
		        output_file, env, command, exit_code, user_time, system_time, duration_ms, created_at
		 FROM runs WHERE sweep_id = ? ORDER BY seq`, sweepID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating runs: %w", err)
	}
	return runs, nil
}

// Specs returns the specs of a sweep's runs, ready for aggregation.
func (s *Store) Specs(sweepID string) ([]runspec.Spec, error) {
	runs, err := s.ListRuns(sweepID)
	if err != nil {
		return nil, err
	}
	specs := make([]runspec.Spec, len(runs))
	for i, r := range runs {
		specs[i] = r.Spec
	}
	return specs, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanSweep(row scannable) (*Sweep, error) {
	var sw Sweep
	var finishedAt sql.NullTime
	err := row.Scan(
		&sw.ID, &sw.Folder, &sw.OutputDir, &sw.CommitID, &sw.Expander, &sw.Status,
		&sw.StartedAt, &finishedAt, &sw.RunCount,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning sweep: %w", err)
	}
	if finishedAt.Valid {
		sw.FinishedAt = finishedAt.Time
	}
	return &sw, nil
}

func scanRun(row scannable) (*Run, error) {
	var r Run
	var slaveStop sql.NullString
	var env string
	err := row.Scan(
		&r.SweepID, &r.Seq, &r.Spec.ExecPath, &r.Spec.InputFile, &r.Spec.MaxColumns, &r.Spec.Saft,
		&slaveStop, &r.Spec.ExtraArgs, &r.Spec.OutputFile, &env, &r.Command, &r.ExitCode,
		&r.Spec.Stats.UserTime, &r.Spec.Stats.SystemTime, &r.DurationMs, &r.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scanning run: %w", err)
	}
	if slaveStop.Valid {
		v := slaveStop.String
		r.Spec.SlaveStop = &v
	}
	if env != "" {
		r.Spec.Env = strings.Split(env, "\n")
	}
	return &r, nil
}

func checkRowAffected(result sql.Result, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: sweep %s", ErrNotFound, id)
	}
	return nil
}
