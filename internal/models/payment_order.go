package models

import "time"

// PaymentOrderStatus tracks a gateway order from creation to its callback.
type PaymentOrderStatus string

const (
	PaymentOrderCreated   PaymentOrderStatus = "created"
	PaymentOrderPaid      PaymentOrderStatus = "paid"
	PaymentOrderFailed    PaymentOrderStatus = "failed"
	PaymentOrderCancelled PaymentOrderStatus = "cancelled"
	PaymentOrderExpired   PaymentOrderStatus = "expired"
)

// PaymentOrder routes gateway callbacks back to the workflow that opened it.
type PaymentOrder struct {
	OrderRef       string             `db:"order_ref" json:"order_ref"`
	GatewayOrderID *string            `db:"gateway_order_id" json:"gateway_order_id,omitempty"`
	UserID         string             `db:"user_id" json:"user_id"`
	CourseID       string             `db:"course_id" json:"course_id"`
	CoachID        string             `db:"coach_id" json:"coach_id"`
	SlotID         string             `db:"slot_id" json:"slot_id"`
	Amount         int64              `db:"amount" json:"amount"`
	Currency       string             `db:"currency" json:"currency"`
	Status         PaymentOrderStatus `db:"status" json:"status"`
	FailureReason  *string            `db:"failure_reason" json:"failure_reason,omitempty"`
	CheckoutURL    *string            `db:"checkout_url" json:"checkout_url,omitempty"`
	ExpiresAt      time.Time          `db:"expires_at" json:"expires_at"`
	CreatedAt      time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time          `db:"updated_at" json:"updated_at"`
}

// Expired reports whether an unsettled order is past its deadline.
func (o PaymentOrder) Expired(now time.Time) bool {
	if o.Status == PaymentOrderExpired {
		return true
	}
	return o.Status == PaymentOrderCreated && !now.Before(o.ExpiresAt)
}
