package models

import "time"

// PurchaseStatus mirrors the states collaborators write for course purchases.
type PurchaseStatus string

const (
	PurchaseStatusPending   PurchaseStatus = "pending"
	PurchaseStatusCompleted PurchaseStatus = "completed"
	PurchaseStatusRefunded  PurchaseStatus = "refunded"
)

// Purchase is written outside this service; payouts only read and claim it.
type Purchase struct {
	ID          string         `db:"id" json:"id"`
	UserID      string         `db:"user_id" json:"user_id"`
	CourseID    string         `db:"course_id" json:"course_id"`
	CoachID     string         `db:"coach_id" json:"coach_id"`
	Amount      int64          `db:"amount" json:"amount"`
	Status      PurchaseStatus `db:"status" json:"status"`
	PurchasedAt time.Time      `db:"purchased_at" json:"purchased_at"`
	PayoutID    *string        `db:"payout_id" json:"payout_id,omitempty"`
}
