package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Run status values.
const (
	RunStatusOK      = "ok"
	RunStatusFailed  = "failed"
	RunStatusSkipped = "skipped"
)

// ErrRunNotFound is returned by RunByID for an unknown run.
var ErrRunNotFound = errors.New("run not found")

// Run is one conversion of a deployment.
type Run struct {
	RunID       string    `json:"run_id"`
	Basename    string    `json:"basename"`
	Direction   string    `json:"direction"`
	Orientation string    `json:"orientation"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	Samples     int       `json:"samples"`
	Cells       int       `json:"cells"`
	Status      string    `json:"status"`
	Error       string    `json:"error,omitempty"`
	Outputs     []string  `json:"outputs"`
}

// CellStats summarises one output cell of a run.
type CellStats struct {
	CellIndex int
	Cell      float64
	MeanSpeed float64
	StdSpeed  float64
	Mean      [3]float64
}

// RecordRun inserts run and its per-cell statistics in one transaction.
func (db *DB) RecordRun(run Run, cells []CellStats) error {
	outputs := run.Outputs
	if outputs == nil {
		outputs = []string{}
	}
	outputsJSON, err := json.Marshal(outputs)
	if err != nil {
		return fmt.Errorf("failed to marshal outputs: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO conversion_runs (
			run_id, basename, direction, orientation, started_unix_nanos,
			finished_unix_nanos, samples, cells, status, error, outputs_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.Basename, run.Direction, run.Orientation, run.StartedAt.UnixNano(),
		run.FinishedAt.UnixNano(), run.Samples, run.Cells, run.Status, run.Error, string(outputsJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	for _, c := range cells {
		_, err = tx.Exec(
			`INSERT INTO conversion_run_cells (
				run_id, cell_index, cell, mean_speed, std_speed, mean_v1, mean_v2, mean_v3
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			run.RunID, c.CellIndex, c.Cell, c.MeanSpeed, c.StdSpeed, c.Mean[0], c.Mean[1], c.Mean[2],
		)
		if err != nil {
			return fmt.Errorf("failed to insert cell %d: %w", c.CellIndex, err)
		}
	}
	return tx.Commit()
}

const runColumns = `run_id, basename, direction, orientation, started_unix_nanos,
	finished_unix_nanos, samples, cells, status, error, outputs_json`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var (
		r                 Run
		started, finished int64
		outputsJSON       string
	)
	if err := row.Scan(&r.RunID, &r.Basename, &r.Direction, &r.Orientation, &started,
		&finished, &r.Samples, &r.Cells, &r.Status, &r.Error, &outputsJSON); err != nil {
		return Run{}, err
	}
	r.StartedAt = time.Unix(0, started).UTC()
	r.FinishedAt = time.Unix(0, finished).UTC()
	if err := json.Unmarshal([]byte(outputsJSON), &r.Outputs); err != nil {
		return Run{}, fmt.Errorf("failed to parse outputs of run %s: %w", r.RunID, err)
	}
	return r, nil
}

// Runs returns runs newest first. When basename is non-empty only runs of
// that deployment are returned.
func (db *DB) Runs(basename string) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM conversion_runs`
	var args []any
	if basename != "" {
		query += ` WHERE basename = ?`
		args = append(args, basename)
	}
	query += ` ORDER BY started_unix_nanos DESC`

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// RunByID returns a single run.
func (db *DB) RunByID(id string) (Run, error) {
	r, err := scanRun(db.QueryRow(`SELECT `+runColumns+` FROM conversion_runs WHERE run_id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return r, err
}

// RunCells returns the per-cell statistics of a run ordered by cell index.
func (db *DB) RunCells(id string) ([]CellStats, error) {
	rows, err := db.Query(
		`SELECT cell_index, cell, mean_speed, std_speed, mean_v1, mean_v2, mean_v3
		FROM conversion_run_cells WHERE run_id = ? ORDER BY cell_index`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CellStats
	for rows.Next() {
		var c CellStats
		if err := rows.Scan(&c.CellIndex, &c.Cell, &c.MeanSpeed, &c.StdSpeed, &c.Mean[0], &c.Mean[1], &c.Mean[2]); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
