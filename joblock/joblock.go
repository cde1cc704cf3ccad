// Package joblock guards scheduled jobs against double execution within one
// scheduling period and keeps the run audit trail.
package joblock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Job kinds known to the pipeline.
const (
	JobSeedTopics   = "seed-topics"
	JobGhostReplies = "ghost-replies"
)

// Terminal run statuses. A claimed row starts as StatusClaimed.
const (
	StatusClaimed   = "claimed"
	StatusSucceeded = "succeeded"
	StatusPartial   = "partial"
	StatusEmpty     = "empty"
	StatusTimedOut  = "timed_out"
	StatusFailed    = "failed"
)

// ErrAlreadyRan signals a run for the same (job, period) was already claimed.
var ErrAlreadyRan = errors.New("joblock: run already claimed for this period")

// Run is one row of the run audit trail.
type Run struct {
	ID         string
	JobKind    string
	RunDate    time.Time
	Status     string
	Summary    []byte
	StartedAt  time.Time
	FinishedAt *time.Time
}

// Repository claims and settles job runs against the durable store.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Claim atomically reserves the (kind, date) slot and returns the run id.
// A unique violation means another invocation already holds the period.
func (r *Repository) Claim(ctx context.Context, kind string, date time.Time) (string, error) {
	var id string
	err := r.pool.QueryRow(ctx,
		`INSERT INTO job_runs (job_kind, run_date) VALUES ($1, $2) RETURNING id`,
		kind, date).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return "", ErrAlreadyRan
		}
		return "", fmt.Errorf("joblock: claim run: %w", err)
	}

	return id, nil
}

// Release deletes a claimed run. Only legal before anything was created
// externally; after submission the row must stay and be finished instead.
func (r *Repository) Release(ctx context.Context, id string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM job_runs WHERE id = $1`, id); err != nil {
		return fmt.Errorf("joblock: release run: %w", err)
	}
	return nil
}

// Finish records the terminal status and summary of a run.
func (r *Repository) Finish(ctx context.Context, id, status string, summary any) error {
	var payload []byte
	if summary != nil {
		var err error
		if payload, err = json.Marshal(summary); err != nil {
			return fmt.Errorf("joblock: marshal summary: %w", err)
		}
	}

	_, err := r.pool.Exec(ctx,
		`UPDATE job_runs SET status = $2, summary = $3, finished_at = now() WHERE id = $1`,
		id, status, payload)
	if err != nil {
		return fmt.Errorf("joblock: finish run: %w", err)
	}
	return nil
}

// ListRecent returns the latest runs for the operator console.
func (r *Repository) ListRecent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, job_kind, run_date, status, summary, started_at, finished_at
		FROM job_runs
		ORDER BY started_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("joblock: list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		if err := rows.Scan(&run.ID, &run.JobKind, &run.RunDate, &run.Status, &run.Summary, &run.StartedAt, &run.FinishedAt); err != nil {
			return nil, fmt.Errorf("joblock: scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("joblock: iterate runs: %w", err)
	}

	return runs, nil
}
