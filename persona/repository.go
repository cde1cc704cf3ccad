package persona

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound signals the requested persona does not exist.
	ErrNotFound = errors.New("persona: not found")
	// ErrDuplicateHandle signals the handle is already taken.
	ErrDuplicateHandle = errors.New("persona: duplicate handle")
)

// Repository provides pgx-backed access to personas.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository wires a pgxpool-backed repository implementation.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const personaColumns = `id, name, handle, trade, badge_label, badge_color, is_active, last_activity_at, created_at`

func scanPersona(row pgx.Row) (Persona, error) {
	var p Persona
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Handle,
		&p.Trade,
		&p.BadgeLabel,
		&p.BadgeColor,
		&p.Active,
		&p.LastActivityAt,
		&p.CreatedAt,
	)
	return p, err
}

// ListActive returns every persona currently eligible to contribute replies.
func (r *Repository) ListActive(ctx context.Context) ([]Persona, error) {
	query := fmt.Sprintf(`SELECT %s FROM personas WHERE is_active ORDER BY created_at ASC`, personaColumns)

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("persona: list active: %w", err)
	}
	defer rows.Close()

	var personas []Persona
	for rows.Next() {
		p, err := scanPersona(rows)
		if err != nil {
			return nil, fmt.Errorf("persona: scan: %w", err)
		}
		personas = append(personas, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("persona: iterate: %w", err)
	}

	return personas, nil
}

// GetByID fetches a persona by its primary key.
func (r *Repository) GetByID(ctx context.Context, id string) (Persona, error) {
	query := fmt.Sprintf(`SELECT %s FROM personas WHERE id = $1`, personaColumns)

	p, err := scanPersona(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Persona{}, ErrNotFound
		}
		return Persona{}, fmt.Errorf("persona: query by id: %w", err)
	}

	return p, nil
}

// Create registers a new active persona.
func (r *Repository) Create(ctx context.Context, params CreateParams) (Persona, error) {
	query := fmt.Sprintf(`
		INSERT INTO personas (name, handle, trade, badge_label, badge_color)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING %s
	`, personaColumns)

	p, err := scanPersona(r.pool.QueryRow(ctx, query,
		params.Name, params.Handle, params.Trade, params.BadgeLabel, params.BadgeColor))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Persona{}, ErrDuplicateHandle
		}
		return Persona{}, fmt.Errorf("persona: create: %w", err)
	}

	return p, nil
}

// Retire deactivates a persona so the orchestrator no longer samples it.
func (r *Repository) Retire(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE personas SET is_active = FALSE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("persona: retire: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// TouchLastActivity stamps last_activity_at for the given personas in a single
// statement, so one run's contribution set becomes visible atomically.
func (r *Repository) TouchLastActivity(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}

	_, err := r.pool.Exec(ctx,
		`UPDATE personas SET last_activity_at = $1 WHERE id = ANY($2)`, at, ids)
	if err != nil {
		return fmt.Errorf("persona: touch last activity: %w", err)
	}
	return nil
}
