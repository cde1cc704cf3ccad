package post

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads reply targets and persists synthesized replies.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TopSince returns up to limit non-synthetic posts created since the given
// time, highest engagement first.
func (r *Repository) TopSince(ctx context.Context, since time.Time, limit int) ([]TargetPost, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, author_id, content, likes, created_at
		FROM posts
		WHERE created_at >= $1 AND NOT is_synthetic
		ORDER BY likes DESC
		LIMIT $2
	`, since, limit)
	if err != nil {
		return nil, fmt.Errorf("post: query top since: %w", err)
	}
	defer rows.Close()

	var targets []TargetPost
	for rows.Next() {
		var t TargetPost
		if err := rows.Scan(&t.ID, &t.AuthorID, &t.Content, &t.Likes, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("post: scan target: %w", err)
		}
		targets = append(targets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("post: iterate targets: %w", err)
	}

	return targets, nil
}

// InsertReply persists one synthesized reply in a single atomic write and
// reports whether a row was actually created. A replayed reconciliation of the
// same batch hits the unique slot index and becomes a no-op.
func (r *Repository) InsertReply(ctx context.Context, reply Reply) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO posts (persona_id, parent_post_id, content, is_synthetic, source_batch_id)
		VALUES ($1, $2, $3, TRUE, $4)
		ON CONFLICT (source_batch_id, persona_id, parent_post_id) WHERE is_synthetic DO NOTHING
	`, reply.PersonaID, reply.TargetPostID, reply.Content, reply.SourceBatchID)
	if err != nil {
		return false, fmt.Errorf("post: insert reply: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}
