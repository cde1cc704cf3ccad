package topic

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound signals the requested topic does not exist.
var ErrNotFound = errors.New("topic: not found")

// Repository provides pgx-backed access to the sourced topic queue.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ExpireOlderThan marks every unconsumed topic created before cutoff as
// consumed and reports how many rows were retired.
func (r *Repository) ExpireOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE seeded_topics SET consumed = TRUE WHERE NOT consumed AND created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("topic: expire old topics: %w", err)
	}
	return tag.RowsAffected(), nil
}

// InsertBatch inserts the whole batch inside one transaction so a sourcing run
// never leaves partial writes behind.
func (r *Repository) InsertBatch(ctx context.Context, topics []NewTopic) error {
	if len(topics) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("topic: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, t := range topics {
		_, err := tx.Exec(ctx,
			`INSERT INTO seeded_topics (source, content, engagement_score) VALUES ($1, $2, $3)`,
			t.Source, t.Content, t.EngagementScore)
		if err != nil {
			return fmt.Errorf("topic: insert %q: %w", t.Source, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("topic: commit batch: %w", err)
	}
	return nil
}

// ListUnconsumed returns the queue ordered by engagement score for the
// operator composition flow.
func (r *Repository) ListUnconsumed(ctx context.Context, limit int) ([]Topic, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, source, content, engagement_score, consumed, created_at
		FROM seeded_topics
		WHERE NOT consumed
		ORDER BY engagement_score DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("topic: list unconsumed: %w", err)
	}
	defer rows.Close()

	var topics []Topic
	for rows.Next() {
		var t Topic
		if err := rows.Scan(&t.ID, &t.Source, &t.Content, &t.EngagementScore, &t.Consumed, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("topic: scan: %w", err)
		}
		topics = append(topics, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("topic: iterate: %w", err)
	}

	return topics, nil
}

// MarkConsumed flags a topic after an operator turns it into a real post.
func (r *Repository) MarkConsumed(ctx context.Context, id string) (Topic, error) {
	var t Topic
	err := r.pool.QueryRow(ctx, `
		UPDATE seeded_topics SET consumed = TRUE
		WHERE id = $1
		RETURNING id, source, content, engagement_score, consumed, created_at
	`, id).Scan(&t.ID, &t.Source, &t.Content, &t.EngagementScore, &t.Consumed, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Topic{}, ErrNotFound
		}
		return Topic{}, fmt.Errorf("topic: mark consumed: %w", err)
	}

	return t, nil
}
