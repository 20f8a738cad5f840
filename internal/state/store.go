// Package state persists tool runs and their candidate models in a
// SQLite database so past searches can be listed and resumed.
package state

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// RunStatus is the lifecycle state of a tool run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Run is one invocation of a tool on a base model.
type Run struct {
	ID          string
	Tool        string
	Model       string
	Directory   string
	Status      RunStatus
	StartedAt   time.Time
	CompletedAt *time.Time
	Error       string
}

// Candidate is one model tried during a run.
type Candidate struct {
	ID          string
	RunID       string
	Name        string
	Description string
	OFV         *float64
	BIC         *float64
	DF          int
	PValue      *float64
	Selected    bool
}

// Store is the SQLite-backed run registry.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (or creates) the database at path and applies the schema.
// Use ":memory:" for tests.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	dsn := path + "?_pragma=foreign_keys(1)"
	if path != ":memory:" {
		dsn += "&_pragma=journal_mode(WAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open state database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping state database: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateRun registers a started run and returns it.
func (s *Store) CreateRun(tool, modelName, directory string) (*Run, error) {
	run := &Run{
		ID:        uuid.New().String(),
		Tool:      tool,
		Model:     modelName,
		Directory: directory,
		Status:    RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	s.logger.Debug("creating run", "id", run.ID, "tool", tool, "model", modelName)
	_, err := s.db.Exec(
		`INSERT INTO runs (id, tool, model, directory, status, started_at) VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.Tool, run.Model, run.Directory, run.Status, run.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}
	return run, nil
}

// CompleteRun marks a run finished. A non-empty errMsg marks it failed.
func (s *Store) CompleteRun(id string, errMsg string) error {
	status := RunStatusCompleted
	if errMsg != "" {
		status = RunStatusFailed
	}
	now := time.Now().UTC()
	res, err := s.db.Exec(
		`UPDATE runs SET status = ?, completed_at = ?, error = ? WHERE id = ?`,
		status, now, nullString(errMsg), id)
	if err != nil {
		return fmt.Errorf("complete run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("run not found: %s", id)
	}
	return nil
}

// GetRun retrieves a run by ID.
func (s *Store) GetRun(id string) (*Run, error) {
	row := s.db.QueryRow(
		`SELECT id, tool, model, directory, status, started_at, completed_at, error
		 FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	return run, err
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(
		`SELECT id, tool, model, directory, status, started_at, completed_at, error
		 FROM runs ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// AddCandidate records a candidate model tried during a run.
func (s *Store) AddCandidate(c Candidate) (*Candidate, error) {
	c.ID = uuid.New().String()
	_, err := s.db.Exec(
		`INSERT INTO candidates (id, run_id, name, description, ofv, bic, df, pvalue, selected)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.RunID, c.Name, c.Description, c.OFV, c.BIC, c.DF, c.PValue, c.Selected)
	if err != nil {
		return nil, fmt.Errorf("add candidate: %w", err)
	}
	return &c, nil
}

// SelectCandidate marks one candidate of a run as the chosen model and
// clears any earlier selection.
func (s *Store) SelectCandidate(runID, name string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.Exec(`UPDATE candidates SET selected = 0 WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("clear selection: %w", err)
	}
	res, err := tx.Exec(
		`UPDATE candidates SET selected = 1 WHERE run_id = ? AND name = ?`, runID, name)
	if err != nil {
		return fmt.Errorf("select candidate: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("candidate not found: %s", name)
	}
	return tx.Commit()
}

// Candidates returns the candidates of a run in insertion order.
func (s *Store) Candidates(runID string) ([]*Candidate, error) {
	rows, err := s.db.Query(
		`SELECT id, run_id, name, description, ofv, bic, df, pvalue, selected
		 FROM candidates WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	defer rows.Close()

	var out []*Candidate
	for rows.Next() {
		c := &Candidate{}
		if err := rows.Scan(&c.ID, &c.RunID, &c.Name, &c.Description,
			&c.OFV, &c.BIC, &c.DF, &c.PValue, &c.Selected); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	run := &Run{}
	var completed sql.NullTime
	var errMsg sql.NullString
	err := row.Scan(&run.ID, &run.Tool, &run.Model, &run.Directory,
		&run.Status, &run.StartedAt, &completed, &errMsg)
	if err != nil {
		return nil, err
	}
	if completed.Valid {
		t := completed.Time
		run.CompletedAt = &t
	}
	run.Error = errMsg.String
	return run, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
