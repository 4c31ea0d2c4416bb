// Package sqlite persists integration run history in SQLite.
package sqlite

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/vsinha/drawdown/pkg/domain/entities"
)

// MemoryPath opens a private in-memory database
const MemoryPath = ":memory:"

// RunRow is one persisted run summary
type RunRow struct {
	RunID       string    `db:"run_id"`
	Scenario    string    `db:"scenario"`
	StartedAt   time.Time `db:"started_at"`
	FinishedAt  time.Time `db:"finished_at"`
	State       string    `db:"state"`
	Converged   bool      `db:"converged"`
	Iterations  int       `db:"iterations"`
	Warnings    int       `db:"warnings"`
	ClippedJSON string    `db:"clipped_json"`
	RecordCount int       `db:"record_count"`
}

// Clipped decodes the clipped solution list
func (r RunRow) Clipped() ([]entities.SolutionID, error) {
	var out []entities.SolutionID
	if r.ClippedJSON == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(r.ClippedJSON), &out); err != nil {
		return nil, fmt.Errorf("clipped solutions of run %s: %w", r.RunID, err)
	}
	return out, nil
}

// RecordRow is one persisted final-pass claim record
type RecordRow struct {
	RunID        string  `db:"run_id"`
	Iteration    int     `db:"iteration"`
	SolutionID   string  `db:"solution_id"`
	PoolCategory string  `db:"pool_category"`
	PoolRegion   string  `db:"pool_region"`
	Year         int     `db:"year"`
	Requested    float64 `db:"requested"`
	Granted      float64 `db:"granted"`
	Factor       float64 `db:"adjustment_factor"`
	Clipped      bool    `db:"was_clipped"`
	Overshoot    float64 `db:"overshoot"`
}

// ClaimRecord converts the row back to a domain record
func (r RecordRow) ClaimRecord() entities.ClaimRecord {
	return entities.ClaimRecord{
		Iteration:        r.Iteration,
		SolutionID:       entities.SolutionID(r.SolutionID),
		Pool:             entities.PoolID{Category: r.PoolCategory, Region: r.PoolRegion},
		Year:             entities.Year(r.Year),
		Requested:        r.Requested,
		Granted:          r.Granted,
		AdjustmentFactor: r.Factor,
		Clipped:          r.Clipped,
		Overshoot:        r.Overshoot,
	}
}

// Store wraps a SQLite connection holding run history
type Store struct {
	conn   *sqlx.DB
	logger *zap.Logger
}

// Open opens or creates a SQLite database at the given path
func Open(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	dsn := path
	if path != MemoryPath && !strings.Contains(path, "?") {
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	conn, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if path == MemoryPath {
		// every connection to :memory: is a separate database
		conn.SetMaxOpenConns(1)
	}

	s := &Store{conn: conn, logger: logger}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.conn.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		scenario TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		finished_at DATETIME NOT NULL,
		state TEXT NOT NULL,
		converged INTEGER NOT NULL,
		iterations INTEGER NOT NULL,
		warnings INTEGER NOT NULL,
		clipped_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS claim_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(run_id),
		iteration INTEGER NOT NULL,
		solution_id TEXT NOT NULL,
		pool_category TEXT NOT NULL,
		pool_region TEXT NOT NULL,
		year INTEGER NOT NULL,
		requested REAL NOT NULL,
		granted REAL NOT NULL,
		adjustment_factor REAL NOT NULL,
		was_clipped INTEGER NOT NULL,
		overshoot REAL NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_claim_records_run ON claim_records(run_id);
	`
	_, err := s.conn.Exec(schema)
	return err
}

// SaveReport writes a run summary and its final-pass records, replacing any
// earlier save of the same run
func (s *Store) SaveReport(scenario string, report *entities.IntegrationReport) error {
	if report == nil {
		return fmt.Errorf("report cannot be nil")
	}
	summary := report.Summary()
	if summary.RunID == "" {
		return fmt.Errorf("report has no run id")
	}
	clipped, err := json.Marshal(summary.ClippedSolutions)
	if err != nil {
		return fmt.Errorf("encode clipped solutions: %w", err)
	}

	tx, err := s.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM claim_records WHERE run_id = ?", summary.RunID); err != nil {
		return err
	}
	finished := report.FinishedAt
	if finished.IsZero() {
		finished = time.Now()
	}
	if _, err := tx.Exec(`INSERT OR REPLACE INTO runs
		(run_id, scenario, started_at, finished_at, state, converged, iterations, warnings, clipped_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		summary.RunID, scenario, report.StartedAt.UTC(), finished.UTC(), summary.StateName,
		summary.Converged, summary.Iterations, summary.Warnings, string(clipped),
	); err != nil {
		return fmt.Errorf("save run: %w", err)
	}

	stmt, err := tx.Preparex(`INSERT INTO claim_records
		(run_id, iteration, solution_id, pool_category, pool_region, year,
		 requested, granted, adjustment_factor, was_clipped, overshoot)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	records := report.FinalRecords()
	for _, rec := range records {
		if _, err := stmt.Exec(
			summary.RunID, rec.Iteration, string(rec.SolutionID), rec.Pool.Category, rec.Pool.Region,
			int(rec.Year), rec.Requested, rec.Granted, rec.AdjustmentFactor, rec.Clipped, rec.Overshoot,
		); err != nil {
			return fmt.Errorf("save record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	s.logger.Debug("saved run",
		zap.String("run_id", summary.RunID),
		zap.String("state", summary.StateName),
		zap.Int("records", len(records)),
	)
	return nil
}

// ListRuns returns the most recent runs, newest first. A non-positive limit
// returns every run.
func (s *Store) ListRuns(limit int) ([]RunRow, error) {
	query := `SELECT r.run_id, r.scenario, r.started_at, r.finished_at, r.state, r.converged,
		r.iterations, r.warnings, r.clipped_json,
		(SELECT COUNT(*) FROM claim_records c WHERE c.run_id = r.run_id) AS record_count
		FROM runs r ORDER BY r.started_at DESC, r.run_id`
	var runs []RunRow
	var err error
	if limit > 0 {
		err = s.conn.Select(&runs, query+" LIMIT ?", limit)
	} else {
		err = s.conn.Select(&runs, query)
	}
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// GetRun returns one run summary
func (s *Store) GetRun(runID string) (RunRow, error) {
	var run RunRow
	err := s.conn.Get(&run, `SELECT r.run_id, r.scenario, r.started_at, r.finished_at, r.state, r.converged,
		r.iterations, r.warnings, r.clipped_json,
		(SELECT COUNT(*) FROM claim_records c WHERE c.run_id = r.run_id) AS record_count
		FROM runs r WHERE r.run_id = ?`, runID)
	if err != nil {
		return RunRow{}, fmt.Errorf("get run %s: %w", runID, err)
	}
	return run, nil
}

// Records returns the persisted final-pass records of a run
func (s *Store) Records(runID string) ([]RecordRow, error) {
	var rows []RecordRow
	err := s.conn.Select(&rows, `SELECT run_id, iteration, solution_id, pool_category, pool_region, year,
		requested, granted, adjustment_factor, was_clipped, overshoot
		FROM claim_records WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("records of %s: %w", runID, err)
	}
	return rows, nil
}
