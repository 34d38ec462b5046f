package practitioner

import (
	"context"

	"github.com/google/uuid"

	"github.com/medsched/medsched/internal/domain/scheduling"
)

type Repository interface {
	Upsert(ctx context.Context, p *Practitioner) error
	GetByID(ctx context.Context, id uuid.UUID) (*Practitioner, error)
	List(ctx context.Context, f ListFilter, limit, offset int) ([]*Practitioner, int, error)
	Departments(ctx context.Context) ([]string, error)
	// ReplaceWindows swaps every enumerated window of (id, date) for windows. An empty
	// windows clears the date.
	ReplaceWindows(ctx context.Context, id uuid.UUID, date scheduling.Date, windows []scheduling.Interval) error
	Windows(ctx context.Context, id uuid.UUID, date scheduling.Date) ([]scheduling.Interval, error)
}
