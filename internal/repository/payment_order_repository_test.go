package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/coaching-core-api/internal/models"
)

var paymentOrderRowColumns = []string{"order_ref", "gateway_order_id", "user_id", "course_id", "coach_id", "slot_id",
	"amount", "currency", "status", "failure_reason", "checkout_url", "expires_at", "created_at", "updated_at"}

func TestPaymentOrderRepositoryTransition(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPaymentOrderRepository(db)
	now := time.Now()
	transitionSQL := regexp.QuoteMeta("UPDATE payment_orders SET status = $3, failure_reason = COALESCE($4, failure_reason), updated_at = $5\nWHERE order_ref = $1 AND status = $2")

	mock.ExpectQuery(transitionSQL).
		WithArgs("ord-1", models.PaymentOrderCreated, models.PaymentOrderPaid, nil, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(paymentOrderRowColumns).
			AddRow("ord-1", "gw-1", "user-1", "course-1", "coach-1", "slot-1", 50000, "INR", "paid", nil, nil, now, now, now))
	mock.ExpectQuery(transitionSQL).
		WithArgs("ord-1", models.PaymentOrderCreated, models.PaymentOrderFailed, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(paymentOrderRowColumns))

	order, err := repo.Transition(context.Background(), "ord-1", models.PaymentOrderCreated, models.PaymentOrderPaid, nil)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentOrderPaid, order.Status)

	reason := "card declined"
	_, err = repo.Transition(context.Background(), "ord-1", models.PaymentOrderCreated, models.PaymentOrderFailed, &reason)
	assert.ErrorIs(t, err, ErrStaleStatus)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentOrderRepositoryExpireStale(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPaymentOrderRepository(db)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE payment_orders SET status = $1, updated_at = $3\nWHERE status = $2 AND expires_at <= $3")).
		WithArgs(models.PaymentOrderExpired, models.PaymentOrderCreated, now).
		WillReturnRows(sqlmock.NewRows(paymentOrderRowColumns).
			AddRow("ord-1", nil, "user-1", "course-1", "coach-1", "slot-1", 50000, "INR", "expired", nil, nil, now.Add(-time.Minute), now, now))

	orders, err := repo.ExpireStale(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, models.PaymentOrderExpired, orders[0].Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentOrderRepositoryCreateDefaults(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPaymentOrderRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO payment_orders")).WillReturnResult(sqlmock.NewResult(0, 1))

	order := &models.PaymentOrder{OrderRef: "ord-1", UserID: "user-1", Amount: 50000, Currency: "INR", ExpiresAt: time.Now().Add(30 * time.Minute)}
	require.NoError(t, repo.Create(context.Background(), order))
	assert.Equal(t, models.PaymentOrderCreated, order.Status)
	assert.False(t, order.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}
