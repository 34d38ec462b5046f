package practitioner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/medsched/medsched/internal/domain/scheduling"
	"github.com/medsched/medsched/internal/platform/db"
)

type beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

type repoPG struct{ db db.Querier }

// NewRepoPG returns a Repository over q. ReplaceWindows needs a q that can begin
// transactions, such as a pool or pooled connection.
func NewRepoPG(q db.Querier) Repository { return &repoPG{db: q} }

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.db)
}

const practitionerCols = `id, name, specialization, work_start_minute, work_end_minute,
	slot_size_minutes, breaks, holidays, is_available, created_at, updated_at`

func scanPractitioner(row pgx.Row) (*Practitioner, error) {
	var p Practitioner
	var start, end int
	var breaks []byte
	var holidays []string
	err := row.Scan(&p.ID, &p.Name, &p.Specialization, &start, &end,
		&p.SlotSize, &breaks, &holidays, &p.IsAvailable, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.WorkStart = scheduling.Minute(start)
	p.WorkEnd = scheduling.Minute(end)
	p.Breaks = []scheduling.Interval{}
	if len(breaks) > 0 {
		if err := json.Unmarshal(breaks, &p.Breaks); err != nil {
			return nil, fmt.Errorf("decode breaks of %s: %w", p.ID, err)
		}
	}
	p.Holidays = make([]scheduling.Date, len(holidays))
	for i, h := range holidays {
		p.Holidays[i] = scheduling.Date(h)
	}
	return &p, nil
}

func (r *repoPG) Upsert(ctx context.Context, p *Practitioner) error {
	breaks, err := json.Marshal(p.Breaks)
	if err != nil {
		return err
	}
	holidays := make([]string, len(p.Holidays))
	for i, h := range p.Holidays {
		holidays[i] = string(h)
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO practitioner (id, name, specialization, work_start_minute, work_end_minute,
			slot_size_minutes, breaks, holidays, is_available, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			specialization = EXCLUDED.specialization,
			work_start_minute = EXCLUDED.work_start_minute,
			work_end_minute = EXCLUDED.work_end_minute,
			slot_size_minutes = EXCLUDED.slot_size_minutes,
			breaks = EXCLUDED.breaks,
			holidays = EXCLUDED.holidays,
			is_available = EXCLUDED.is_available,
			updated_at = EXCLUDED.updated_at
		RETURNING created_at, updated_at`,
		p.ID, p.Name, p.Specialization, int(p.WorkStart), int(p.WorkEnd),
		p.SlotSize, breaks, holidays, p.IsAvailable, p.UpdatedAt,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Practitioner, error) {
	p, err := scanPractitioner(r.conn(ctx).QueryRow(ctx,
		`SELECT `+practitionerCols+` FROM practitioner WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: practitioner %s", scheduling.ErrNotFound, id)
	}
	return p, err
}

func (r *repoPG) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Practitioner, int, error) {
	where := ` WHERE 1=1`
	var args []interface{}
	idx := 1

	if f.Department != "" {
		where += fmt.Sprintf(` AND specialization = $%d`, idx)
		args = append(args, f.Department)
		idx++
	}
	if f.Search != "" {
		where += fmt.Sprintf(` AND name ILIKE $%d`, idx)
		args = append(args, "%"+f.Search+"%")
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM practitioner`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + practitionerCols + ` FROM practitioner` + where +
		fmt.Sprintf(` ORDER BY name, id LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := []*Practitioner{}
	for rows.Next() {
		p, err := scanPractitioner(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}

func (r *repoPG) Departments(ctx context.Context) ([]string, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT DISTINCT specialization FROM practitioner WHERE specialization <> '' ORDER BY specialization`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *repoPG) ReplaceWindows(ctx context.Context, id uuid.UUID, date scheduling.Date, windows []scheduling.Interval) error {
	b, ok := r.conn(ctx).(beginner)
	if !ok {
		return errors.New("practitioner: connection cannot begin a transaction")
	}
	err := pgx.BeginFunc(ctx, b, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`DELETE FROM availability_window WHERE practitioner_id = $1 AND date = $2`,
			id, string(date)); err != nil {
			return err
		}
		for _, w := range windows {
			if _, err := tx.Exec(ctx, `
				INSERT INTO availability_window (practitioner_id, date, start_minute, end_minute)
				VALUES ($1, $2, $3, $4) ON CONFLICT DO NOTHING`,
				id, string(date), int(w.Start), int(w.End)); err != nil {
				return err
			}
		}
		return nil
	})
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23503" {
		return fmt.Errorf("%w: practitioner %s", scheduling.ErrNotFound, id)
	}
	return err
}

func (r *repoPG) Windows(ctx context.Context, id uuid.UUID, date scheduling.Date) ([]scheduling.Interval, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT start_minute, end_minute FROM availability_window
		WHERE practitioner_id = $1 AND date = $2
		ORDER BY start_minute, end_minute`, id, string(date))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []scheduling.Interval
	for rows.Next() {
		var start, end int
		if err := rows.Scan(&start, &end); err != nil {
			return nil, err
		}
		out = append(out, scheduling.Interval{Start: scheduling.Minute(start), End: scheduling.Minute(end)})
	}
	return out, rows.Err()
}
