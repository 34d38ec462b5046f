package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/medsched/medsched/internal/platform/db"
)

// PostgreSQL error codes the booking store translates.
const (
	pgExclusionViolation  = "23P01"
	pgCheckViolation      = "23514"
	pgForeignKeyViolation = "23503"
	pgSerializationFail   = "40001"
	pgDeadlockDetected    = "40P01"
)

type bookingRepoPG struct{ db db.Querier }

// NewBookingRepoPG returns a BookingRepository over q. Requests carrying a tenant
// connection in their context use it instead of q.
func NewBookingRepoPG(q db.Querier) BookingRepository { return &bookingRepoPG{db: q} }

func (r *bookingRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.db)
}

const bookingCols = `id, practitioner_id, subject_id, subject_name, department,
	to_char(date, 'YYYY-MM-DD'), start_minute, end_minute, status, session_type,
	appointment_type, reason, cancellation_reason, created_at, updated_at`

func scanBooking(row pgx.Row) (*Booking, error) {
	var b Booking
	var date, status, session, appt string
	var start, end int
	err := row.Scan(&b.ID, &b.PractitionerID, &b.SubjectID, &b.SubjectName, &b.Department,
		&date, &start, &end, &status, &session,
		&appt, &b.Reason, &b.CancellationReason, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	b.Date = Date(date)
	b.SetInterval(Interval{Start: Minute(start), End: Minute(end)})
	b.Status = Status(status)
	b.SessionType = SessionType(session)
	b.AppointmentType = AppointmentType(appt)
	return &b, nil
}

// translatePgError maps constraint and concurrency failures onto booking sentinels.
func translatePgError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgExclusionViolation:
		return fmt.Errorf("%w: %s", ErrSlotConflict, pgErr.ConstraintName)
	case pgForeignKeyViolation:
		return fmt.Errorf("%w: %s", ErrNotFound, pgErr.Detail)
	case pgCheckViolation:
		return fmt.Errorf("%w: %s", ErrValidation, pgErr.ConstraintName)
	case pgSerializationFail, pgDeadlockDetected:
		return fmt.Errorf("%w: %s", ErrBusy, pgErr.Message)
	}
	return err
}

func (r *bookingRepoPG) Create(ctx context.Context, b *Booking) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO booking (id, practitioner_id, subject_id, subject_name, department,
			date, start_minute, end_minute, status, session_type,
			appointment_type, reason, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		b.ID, b.PractitionerID, b.SubjectID, b.SubjectName, b.Department,
		string(b.Date), int(b.Start), int(b.End), string(b.Status), string(b.SessionType),
		string(b.AppointmentType), b.Reason, b.CreatedAt, b.UpdatedAt)
	return translatePgError(err)
}

func (r *bookingRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	b, err := scanBooking(r.conn(ctx).QueryRow(ctx, `SELECT `+bookingCols+` FROM booking WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: booking %s", ErrNotFound, id)
	}
	return b, err
}

func (r *bookingRepoPG) ListScheduled(ctx context.Context, practitionerID uuid.UUID, date Date) ([]*Booking, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+bookingCols+` FROM booking
		WHERE practitioner_id = $1 AND date = $2 AND status = 'scheduled'
		ORDER BY start_minute`, practitionerID, string(date))
	if err != nil {
		return nil, err
	}
	return collectBookings(rows)
}

func (r *bookingRepoPG) UpdateInterval(ctx context.Context, id uuid.UUID, iv Interval, updatedAt time.Time) (*Booking, error) {
	b, err := scanBooking(r.conn(ctx).QueryRow(ctx, `
		UPDATE booking SET start_minute = $2, end_minute = $3, updated_at = $4
		WHERE id = $1 AND status = 'scheduled'
		RETURNING `+bookingCols, id, int(iv.Start), int(iv.End), updatedAt))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, r.explainMiss(ctx, id)
	}
	if err != nil {
		return nil, translatePgError(err)
	}
	return b, nil
}

func (r *bookingRepoPG) TransitionStatus(ctx context.Context, id uuid.UUID, from, to Status, reason *string, updatedAt time.Time) (*Booking, error) {
	b, err := scanBooking(r.conn(ctx).QueryRow(ctx, `
		UPDATE booking SET status = $3, cancellation_reason = COALESCE($4, cancellation_reason), updated_at = $5
		WHERE id = $1 AND status = $2
		RETURNING `+bookingCols, id, string(from), string(to), reason, updatedAt))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, r.explainMiss(ctx, id)
	}
	if err != nil {
		return nil, translatePgError(err)
	}
	return b, nil
}

// explainMiss distinguishes a missing booking from one whose status moved on after a
// compare-and-set update matched no row.
func (r *bookingRepoPG) explainMiss(ctx context.Context, id uuid.UUID) error {
	var status string
	err := r.conn(ctx).QueryRow(ctx, `SELECT status FROM booking WHERE id = $1`, id).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: booking %s", ErrNotFound, id)
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: booking %s is %s", ErrInvalidStateTransition, id, status)
}

func (r *bookingRepoPG) Search(ctx context.Context, f SearchFilter, limit, offset int) ([]*Booking, int, error) {
	where := ` WHERE 1=1`
	var args []interface{}
	idx := 1

	if f.PractitionerID != uuid.Nil {
		where += fmt.Sprintf(` AND practitioner_id = $%d`, idx)
		args = append(args, f.PractitionerID)
		idx++
	}
	if f.SubjectID != uuid.Nil {
		where += fmt.Sprintf(` AND subject_id = $%d`, idx)
		args = append(args, f.SubjectID)
		idx++
	}
	if f.Date != "" {
		where += fmt.Sprintf(` AND date = $%d`, idx)
		args = append(args, string(f.Date))
		idx++
	}
	if f.Status != "" {
		where += fmt.Sprintf(` AND status = $%d`, idx)
		args = append(args, string(f.Status))
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM booking`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + bookingCols + ` FROM booking` + where +
		fmt.Sprintf(` ORDER BY date, start_minute, created_at LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	items, err := collectBookings(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func collectBookings(rows pgx.Rows) ([]*Booking, error) {
	defer rows.Close()
	items := []*Booking{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, b)
	}
	return items, rows.Err()
}
