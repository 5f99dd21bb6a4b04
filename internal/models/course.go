package models

import (
	"time"

	"github.com/lib/pq"
)

// Course is the catalogue entry a workflow run is built around.
type Course struct {
	ID              string         `db:"id" json:"id"`
	Title           string         `db:"title" json:"title"`
	Description     string         `db:"description" json:"description"`
	DurationMinutes int            `db:"duration_minutes" json:"duration_minutes"`
	Price           int64          `db:"price" json:"price"`
	Currency        string         `db:"currency" json:"currency"`
	Category        string         `db:"category" json:"category"`
	Tags            pq.StringArray `db:"tags" json:"tags"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updated_at"`
}

// IsFree reports whether enrolling requires no payment.
func (c Course) IsFree() bool {
	return c.Price == 0
}
