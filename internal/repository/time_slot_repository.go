package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/coaching-core-api/internal/models"
)

const timeSlotColumns = `id, coach_id, slot_date, start_time::text AS start_time, end_time::text AS end_time,
max_bookings, current_bookings, slot_type, created_at`

// slotStartExpr converts the local slot date and time into an absolute instant.
const slotStartExpr = `((slot_date + start_time) AT TIME ZONE %s)`

// TimeSlotRepository is the only writer of slot occupancy.
type TimeSlotRepository struct {
	db       *sqlx.DB
	timezone string
}

// NewTimeSlotRepository builds the repository. timezone is the IANA name slot
// dates and times are interpreted in.
func NewTimeSlotRepository(db *sqlx.DB, timezone string) *TimeSlotRepository {
	if timezone == "" {
		timezone = "UTC"
	}
	return &TimeSlotRepository{db: db, timezone: timezone}
}

func (r *TimeSlotRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// ListAvailable returns slots of a coach starting within [from, to] that still
// have capacity, earliest first.
func (r *TimeSlotRepository) ListAvailable(ctx context.Context, coachID string, from, to time.Time) ([]models.TimeSlot, error) {
	query := fmt.Sprintf(`SELECT %s FROM time_slots
WHERE coach_id = $1 AND current_bookings < max_bookings
  AND %s BETWEEN $3 AND $4
ORDER BY slot_date ASC, start_time ASC`, timeSlotColumns, fmt.Sprintf(slotStartExpr, "$2"))

	var slots []models.TimeSlot
	if err := r.db.SelectContext(ctx, &slots, query, coachID, r.timezone, from, to); err != nil {
		return nil, fmt.Errorf("list available time slots: %w", err)
	}
	return slots, nil
}

// FindByID returns a slot by its ID.
func (r *TimeSlotRepository) FindByID(ctx context.Context, id string) (*models.TimeSlot, error) {
	query := fmt.Sprintf(`SELECT %s FROM time_slots WHERE id = $1`, timeSlotColumns)
	var slot models.TimeSlot
	if err := r.db.GetContext(ctx, &slot, query, id); err != nil {
		return nil, err
	}
	return &slot, nil
}

// Reserve takes one unit of capacity in a single conditional update. It
// returns sql.ErrNoRows for an unknown slot and ErrNoCapacity when the slot is
// full or already started. exec may be a transaction shared with the caller.
func (r *TimeSlotRepository) Reserve(ctx context.Context, exec sqlx.ExtContext, id string, now time.Time) error {
	target := r.exec(exec)
	query := fmt.Sprintf(`UPDATE time_slots SET current_bookings = current_bookings + 1
WHERE id = $1 AND current_bookings < max_bookings AND %s > $3`, fmt.Sprintf(slotStartExpr, "$2"))

	res, err := target.ExecContext(ctx, query, id, r.timezone, now)
	if err != nil {
		return fmt.Errorf("reserve time slot: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reserve time slot rows: %w", err)
	}
	if affected == 1 {
		return nil
	}

	var exists bool
	if err := sqlx.GetContext(ctx, target, &exists, `SELECT EXISTS (SELECT 1 FROM time_slots WHERE id = $1)`, id); err != nil {
		return fmt.Errorf("check time slot: %w", err)
	}
	if !exists {
		return sql.ErrNoRows
	}
	return ErrNoCapacity
}

// Release gives back one unit of capacity.
func (r *TimeSlotRepository) Release(ctx context.Context, exec sqlx.ExtContext, id string) error {
	const query = `UPDATE time_slots SET current_bookings = current_bookings - 1 WHERE id = $1 AND current_bookings > 0`
	res, err := r.exec(exec).ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("release time slot: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("release time slot rows: %w", err)
	}
	if affected == 0 {
		return ErrNotReserved
	}
	return nil
}
