package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lms-class-scheduler/internal/models"
)

// ErrSlotNotFound reports an unknown slot ID.
var ErrSlotNotFound = errors.New("time slot not found")

// TimeSlotRepository manages bookable teaching periods.
type TimeSlotRepository struct {
	db *sqlx.DB
}

// NewTimeSlotRepository constructs the repository.
func NewTimeSlotRepository(db *sqlx.DB) *TimeSlotRepository {
	return &TimeSlotRepository{db: db}
}

func (r *TimeSlotRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// ListAvailable returns open slots with at least one free seat.
func (r *TimeSlotRepository) ListAvailable(ctx context.Context) ([]models.TimeSlot, error) {
	const query = `SELECT id, day_of_week, start_time, end_time, duration, location, max_students, available_spots, is_available
FROM time_slots WHERE is_available = TRUE AND available_spots > 0 ORDER BY id ASC`
	var rows []timeSlotRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list available time slots: %w", err)
	}
	result := make([]models.TimeSlot, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.model())
	}
	return result, nil
}

// MarkBooked stores the post-booking state of slots. The update only applies
// while the slot is still open, so a concurrent booking surfaces as an error.
func (r *TimeSlotRepository) MarkBooked(ctx context.Context, exec sqlx.ExtContext, slots []models.TimeSlot) error {
	target := r.exec(exec)
	const query = `UPDATE time_slots SET available_spots = $2, is_available = $3 WHERE id = $1 AND is_available = TRUE`
	for _, slot := range slots {
		res, err := target.ExecContext(ctx, query, slot.ID, slot.Capacity.AvailableSpots, slot.IsAvailable)
		if err != nil {
			return fmt.Errorf("book time slot %s: %w", slot.ID, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("book time slot %s: %w", slot.ID, err)
		}
		if affected == 0 {
			return fmt.Errorf("book time slot %s: %w", slot.ID, ErrSlotTaken)
		}
	}
	return nil
}

// Release gives seats back to a slot and reopens it for booking. Spots never
// grow past max_students.
func (r *TimeSlotRepository) Release(ctx context.Context, exec sqlx.ExtContext, slotID string, seats int) error {
	if seats < 0 {
		seats = 0
	}
	const query = `UPDATE time_slots SET available_spots = LEAST(available_spots + $2, max_students), is_available = TRUE WHERE id = $1`
	res, err := r.exec(exec).ExecContext(ctx, query, slotID, seats)
	if err != nil {
		return fmt.Errorf("release time slot %s: %w", slotID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("release time slot %s: %w", slotID, err)
	}
	if affected == 0 {
		return fmt.Errorf("release time slot %s: %w", slotID, ErrSlotNotFound)
	}
	return nil
}
