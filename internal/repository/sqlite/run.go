package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/build-sandbox/internal/apperror"
	"github.com/sakif/build-sandbox/internal/model"
	"github.com/sakif/build-sandbox/internal/repository"
)

var _ repository.RunRepository = (*DB)(nil)

const runColumns = `id, name, package, workspace, success, failed_stage, outcome,
	job_descriptor, published_keys, submitted_by, created_at`

// Create inserts a finished run. An empty ID gets a fresh xid and a zero
// CreatedAt is set to now; both are written back to run.
func (db *DB) Create(ctx context.Context, run *model.Run) error {
	if run.ID == "" {
		run.ID = xid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	outcome, err := json.Marshal(run.Outcome)
	if err != nil {
		return fmt.Errorf("sqlite: encoding outcome: %w", err)
	}
	keys, err := json.Marshal(run.PublishedKeys)
	if err != nil {
		return fmt.Errorf("sqlite: encoding published keys: %w", err)
	}

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO runs (`+runColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.Name,
		run.Package,
		run.Workspace,
		run.Success,
		string(run.FailedStage),
		string(outcome),
		run.JobDescriptor,
		string(keys),
		run.SubmittedBy,
		run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating run: %w", err)
	}
	return nil
}

// GetByID returns apperror.NotFound when no run has the id.
func (db *DB) GetByID(ctx context.Context, id string) (*model.Run, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE id = ?`,
		id,
	)
	run, err := scanRun(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("run", id)
		}
		return nil, fmt.Errorf("sqlite: getting run %s: %w", id, err)
	}
	return run, nil
}

// List returns runs newest first. Limit defaults to 20 and is capped at 100.
func (db *DB) List(ctx context.Context, opts repository.ListOptions) ([]model.Run, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	offset := max(opts.Offset, 0)

	var (
		where strings.Builder
		args  []any
	)
	if opts.SubmittedBy != "" {
		where.WriteString(" WHERE submitted_by = ?")
		args = append(args, opts.SubmittedBy)
	}
	args = append(args, limit, offset)

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs`+where.String()+`
		 ORDER BY created_at DESC, id DESC
		 LIMIT ? OFFSET ?`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing runs: %w", err)
	}
	defer rows.Close()

	runs := make([]model.Run, 0, limit)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning run row: %w", err)
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating runs: %w", err)
	}
	return runs, nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*model.Run, error) {
	var (
		run         model.Run
		failedStage string
		outcome     string
		keys        string
	)
	if err := s.Scan(
		&run.ID,
		&run.Name,
		&run.Package,
		&run.Workspace,
		&run.Success,
		&failedStage,
		&outcome,
		&run.JobDescriptor,
		&keys,
		&run.SubmittedBy,
		&run.CreatedAt,
	); err != nil {
		return nil, err
	}
	run.FailedStage = model.StageName(failedStage)

	if outcome != "" && outcome != "null" {
		run.Outcome = &model.PipelineOutcome{}
		if err := json.Unmarshal([]byte(outcome), run.Outcome); err != nil {
			return nil, fmt.Errorf("decoding outcome of run %s: %w", run.ID, err)
		}
	}
	if err := json.Unmarshal([]byte(keys), &run.PublishedKeys); err != nil {
		return nil, fmt.Errorf("decoding published keys of run %s: %w", run.ID, err)
	}
	return &run, nil
}
