package models

import (
	"fmt"
	"strings"
	"time"
)

// SlotType distinguishes the kind of session a slot is offered for.
type SlotType string

const (
	SlotTypeCoaching     SlotType = "coaching"
	SlotTypeConsultation SlotType = "consultation"
)

// TimeSlot is a bookable window on a coach's calendar. Date and clock times are
// stored separately and interpreted in the business timezone.
type TimeSlot struct {
	ID              string    `db:"id" json:"id"`
	CoachID         string    `db:"coach_id" json:"coach_id"`
	SlotDate        time.Time `db:"slot_date" json:"slot_date"`
	StartTime       string    `db:"start_time" json:"start_time"`
	EndTime         string    `db:"end_time" json:"end_time"`
	MaxBookings     int       `db:"max_bookings" json:"max_bookings"`
	CurrentBookings int       `db:"current_bookings" json:"current_bookings"`
	SlotType        SlotType  `db:"slot_type" json:"slot_type"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// StartsAt combines the slot date with its start time in loc.
func (s TimeSlot) StartsAt(loc *time.Location) (time.Time, error) {
	return combine(s.SlotDate, s.StartTime, loc)
}

// EndsAt combines the slot date with its end time in loc.
func (s TimeSlot) EndsAt(loc *time.Location) (time.Time, error) {
	return combine(s.SlotDate, s.EndTime, loc)
}

// HasCapacity reports whether another booking fits.
func (s TimeSlot) HasCapacity() bool {
	return s.CurrentBookings < s.MaxBookings
}

// Bookable reports whether the slot has capacity and starts after now.
func (s TimeSlot) Bookable(now time.Time, loc *time.Location) bool {
	if !s.HasCapacity() {
		return false
	}
	start, err := s.StartsAt(loc)
	if err != nil {
		return false
	}
	return start.After(now)
}

func combine(date time.Time, clock string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	hour, minute, second, err := parseClock(clock)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(date.Year(), date.Month(), date.Day(), hour, minute, second, 0, loc), nil
}

// parseClock accepts the HH:MM[:SS[.ffffff]] forms Postgres returns for TIME columns.
func parseClock(raw string) (int, int, int, error) {
	raw = strings.TrimSpace(raw)
	if idx := strings.IndexByte(raw, 'T'); idx >= 0 {
		raw = raw[idx+1:]
	}
	if idx := strings.IndexAny(raw, ".+Z"); idx >= 0 {
		raw = raw[:idx]
	}
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Hour(), t.Minute(), t.Second(), nil
		}
	}
	return 0, 0, 0, fmt.Errorf("invalid clock time %q", raw)
}
