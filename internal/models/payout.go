package models

import (
	"fmt"
	"strings"
	"time"
)

// PayoutStatus represents the settlement lifecycle of a payout.
type PayoutStatus string

const (
	PayoutStatusPending    PayoutStatus = "pending"
	PayoutStatusProcessing PayoutStatus = "processing"
	PayoutStatusPaid       PayoutStatus = "paid"
	PayoutStatusFailed     PayoutStatus = "failed"
	PayoutStatusCancelled  PayoutStatus = "cancelled"
)

var payoutTransitions = map[PayoutStatus][]PayoutStatus{
	PayoutStatusPending:    {PayoutStatusProcessing, PayoutStatusPaid, PayoutStatusCancelled},
	PayoutStatusProcessing: {PayoutStatusPaid, PayoutStatusFailed, PayoutStatusCancelled},
	PayoutStatusFailed:     {PayoutStatusProcessing, PayoutStatusCancelled},
	PayoutStatusPaid:       nil,
	PayoutStatusCancelled:  nil,
}

// ParsePayoutStatus normalises raw input into a known status.
func ParsePayoutStatus(raw string) (PayoutStatus, error) {
	status := PayoutStatus(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := payoutTransitions[status]; !ok {
		return "", fmt.Errorf("unknown payout status %q", raw)
	}
	return status, nil
}

// Terminal reports whether no further transition is allowed.
func (s PayoutStatus) Terminal() bool {
	return len(payoutTransitions[s]) == 0
}

// CanTransitionTo reports whether moving from s to next is allowed.
func (s PayoutStatus) CanTransitionTo(next PayoutStatus) bool {
	for _, allowed := range payoutTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Payout aggregates a coach's billable activity over a settlement period.
type Payout struct {
	ID                    string       `db:"id" json:"id"`
	PayoutNumber          string       `db:"payout_number" json:"payout_number"`
	CoachID               string       `db:"coach_id" json:"coach_id"`
	PeriodStart           time.Time    `db:"period_start" json:"period_start"`
	PeriodEnd             time.Time    `db:"period_end" json:"period_end"`
	TotalStudents         int          `db:"total_students" json:"total_students"`
	PaymentRatePerStudent int64        `db:"payment_rate_per_student" json:"payment_rate_per_student"`
	GrossAmount           int64        `db:"gross_amount" json:"gross_amount"`
	TaxAmount             int64        `db:"tax_amount" json:"tax_amount"`
	NetAmount             int64        `db:"net_amount" json:"net_amount"`
	Currency              string       `db:"currency" json:"currency"`
	Status                PayoutStatus `db:"status" json:"status"`
	PaymentDate           *time.Time   `db:"payment_date" json:"payment_date,omitempty"`
	PaymentReference      *string      `db:"payment_reference" json:"payment_reference,omitempty"`
	Notes                 *string      `db:"notes" json:"notes,omitempty"`
	CreatedAt             time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time    `db:"updated_at" json:"updated_at"`
}

// PayoutLineItem is an immutable snapshot of one billed enrollment or purchase.
type PayoutLineItem struct {
	ID             string    `db:"id" json:"id"`
	PayoutID       string    `db:"payout_id" json:"payout_id"`
	EnrollmentID   *string   `db:"enrollment_id" json:"enrollment_id,omitempty"`
	PurchaseID     *string   `db:"purchase_id" json:"purchase_id,omitempty"`
	StudentName    string    `db:"student_name" json:"student_name"`
	StudentEmail   string    `db:"student_email" json:"student_email"`
	CourseTitle    string    `db:"course_title" json:"course_title"`
	EnrollmentDate time.Time `db:"enrollment_date" json:"enrollment_date"`
	Amount         int64     `db:"amount" json:"amount"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// BillableSource identifies which table a billable row came from.
type BillableSource string

const (
	BillableSourceEnrollment BillableSource = "enrollment"
	BillableSourcePurchase   BillableSource = "purchase"
)

// BillableActivity is an unclaimed enrollment or purchase eligible for a payout.
type BillableActivity struct {
	Source       BillableSource `db:"source" json:"source"`
	SourceID     string         `db:"source_id" json:"source_id"`
	StudentName  string         `db:"student_name" json:"student_name"`
	StudentEmail string         `db:"student_email" json:"student_email"`
	CourseTitle  string         `db:"course_title" json:"course_title"`
	OccurredAt   time.Time      `db:"occurred_at" json:"occurred_at"`
}

// PayoutCalculation is the read-only preview of a payout.
type PayoutCalculation struct {
	CoachID               string             `json:"coach_id"`
	PeriodStart           time.Time          `json:"period_start"`
	PeriodEnd             time.Time          `json:"period_end"`
	TotalStudents         int                `json:"total_students"`
	PaymentRatePerStudent int64              `json:"payment_rate_per_student"`
	GrossAmount           int64              `json:"gross_amount"`
	Currency              string             `json:"currency"`
	Details               []BillableActivity `json:"details"`
}

// PayoutFilter narrows payout listings.
type PayoutFilter struct {
	CoachID  string
	Status   PayoutStatus
	Page     int
	PageSize int
}

// PayoutStatusChange carries the fields written by a status transition.
type PayoutStatusChange struct {
	PayoutID         string
	From             PayoutStatus
	To               PayoutStatus
	PaymentReference *string
	ChangedAt        time.Time
}
