package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/coaching-core-api/internal/models"
)

const paymentOrderColumns = `order_ref, gateway_order_id, user_id, course_id, coach_id, slot_id, amount, currency,
status, failure_reason, checkout_url, expires_at, created_at, updated_at`

// PaymentOrderRepository persists gateway orders opened by the workflow.
type PaymentOrderRepository struct {
	db *sqlx.DB
}

// NewPaymentOrderRepository constructs the repository.
func NewPaymentOrderRepository(db *sqlx.DB) *PaymentOrderRepository {
	return &PaymentOrderRepository{db: db}
}

// Create inserts a new order in the created state.
func (r *PaymentOrderRepository) Create(ctx context.Context, order *models.PaymentOrder) error {
	now := time.Now().UTC()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = order.CreatedAt
	if order.Status == "" {
		order.Status = models.PaymentOrderCreated
	}
	query := fmt.Sprintf(`INSERT INTO payment_orders (%s)
VALUES (:order_ref, :gateway_order_id, :user_id, :course_id, :coach_id, :slot_id, :amount, :currency,
    :status, :failure_reason, :checkout_url, :expires_at, :created_at, :updated_at)`, paymentOrderColumns)
	if _, err := r.db.NamedExecContext(ctx, query, order); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create payment order: %w", ErrDuplicate)
		}
		return fmt.Errorf("create payment order: %w", err)
	}
	return nil
}

// AttachGatewayOrder records the identifiers the gateway returned for an order.
func (r *PaymentOrderRepository) AttachGatewayOrder(ctx context.Context, orderRef, gatewayOrderID string, checkoutURL *string) error {
	const query = `UPDATE payment_orders SET gateway_order_id = $2, checkout_url = $3, updated_at = $4 WHERE order_ref = $1`
	if _, err := r.db.ExecContext(ctx, query, orderRef, gatewayOrderID, checkoutURL, time.Now().UTC()); err != nil {
		return fmt.Errorf("attach gateway order: %w", err)
	}
	return nil
}

// FindByRef returns an order by its reference.
func (r *PaymentOrderRepository) FindByRef(ctx context.Context, orderRef string) (*models.PaymentOrder, error) {
	query := fmt.Sprintf(`SELECT %s FROM payment_orders WHERE order_ref = $1`, paymentOrderColumns)
	var order models.PaymentOrder
	if err := r.db.GetContext(ctx, &order, query, orderRef); err != nil {
		return nil, err
	}
	return &order, nil
}

// Transition moves an order from one status to another only if it still holds
// the expected status. It returns ErrStaleStatus otherwise.
func (r *PaymentOrderRepository) Transition(ctx context.Context, orderRef string, from, to models.PaymentOrderStatus, reason *string) (*models.PaymentOrder, error) {
	query := fmt.Sprintf(`UPDATE payment_orders SET status = $3, failure_reason = COALESCE($4, failure_reason), updated_at = $5
WHERE order_ref = $1 AND status = $2
RETURNING %s`, paymentOrderColumns)
	var order models.PaymentOrder
	if err := r.db.GetContext(ctx, &order, query, orderRef, from, to, reason, time.Now().UTC()); err != nil {
		if isNoRows(err) {
			return nil, ErrStaleStatus
		}
		return nil, fmt.Errorf("transition payment order: %w", err)
	}
	return &order, nil
}

// ExpireStale marks every created order past its deadline as expired and
// returns the affected orders.
func (r *PaymentOrderRepository) ExpireStale(ctx context.Context, now time.Time) ([]models.PaymentOrder, error) {
	query := fmt.Sprintf(`UPDATE payment_orders SET status = $1, updated_at = $3
WHERE status = $2 AND expires_at <= $3
RETURNING %s`, paymentOrderColumns)
	var orders []models.PaymentOrder
	if err := r.db.SelectContext(ctx, &orders, query, models.PaymentOrderExpired, models.PaymentOrderCreated, now); err != nil {
		return nil, fmt.Errorf("expire stale payment orders: %w", err)
	}
	return orders, nil
}
