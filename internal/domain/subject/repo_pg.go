package subject

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/medsched/medsched/internal/platform/db"
)

type repoPG struct{ db db.Querier }

func NewRepoPG(q db.Querier) Repository { return &repoPG{db: q} }

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.db)
}

func (r *repoPG) Create(ctx context.Context, s *Subject) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO subject (id, display_name, phone, email)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`,
		s.ID, s.DisplayName, s.Phone, s.Email).Scan(&s.CreatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Subject, error) {
	var s Subject
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT id, display_name, phone, email, created_at FROM subject WHERE id = $1`, id).
		Scan(&s.ID, &s.DisplayName, &s.Phone, &s.Email, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}
