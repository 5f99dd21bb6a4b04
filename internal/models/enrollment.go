package models

import "time"

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses.
const (
	EnrollmentStatusConfirmed EnrollmentStatus = "confirmed"
	EnrollmentStatusCancelled EnrollmentStatus = "cancelled"
	EnrollmentStatusCompleted EnrollmentStatus = "completed"
)

// PaymentStatus records how an enrollment was settled by the client.
type PaymentStatus string

const (
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusSkipped PaymentStatus = "skipped"
	PaymentStatusFailed  PaymentStatus = "failed"
)

// UserType decides whether the payment stage applies.
type UserType string

const (
	UserTypeEmployee   UserType = "employee"
	UserTypeIndividual UserType = "individual"
)

// Enrollment is created exactly once per successful workflow run.
type Enrollment struct {
	ID              string           `db:"id" json:"id"`
	UserID          string           `db:"user_id" json:"user_id"`
	CourseID        string           `db:"course_id" json:"course_id"`
	CoachID         string           `db:"coach_id" json:"coach_id"`
	SlotID          string           `db:"slot_id" json:"slot_id"`
	Status          EnrollmentStatus `db:"status" json:"status"`
	PaymentStatus   PaymentStatus    `db:"payment_status" json:"payment_status"`
	ScheduledAt     time.Time        `db:"scheduled_at" json:"scheduled_at"`
	AmountPaid      int64            `db:"amount_paid" json:"amount_paid"`
	Currency        string           `db:"currency" json:"currency"`
	PaymentOrderRef *string          `db:"payment_order_ref" json:"payment_order_ref,omitempty"`
	PayoutID        *string          `db:"payout_id" json:"payout_id,omitempty"`
	CreatedAt       time.Time        `db:"created_at" json:"created_at"`
}
