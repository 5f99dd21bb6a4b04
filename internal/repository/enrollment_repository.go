package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/coaching-core-api/internal/models"
	"github.com/noah-isme/coaching-core-api/pkg/database"
)

const enrollmentColumns = `id, user_id, course_id, coach_id, slot_id, status, payment_status, scheduled_at,
amount_paid, currency, payment_order_ref, payout_id, created_at`

// EnrollmentRepository handles persistence of enrollments.
type EnrollmentRepository struct {
	db    *sqlx.DB
	slots *TimeSlotRepository
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB, slots *TimeSlotRepository) *EnrollmentRepository {
	return &EnrollmentRepository{db: db, slots: slots}
}

// CreateWithReservation reserves the enrollment's slot and inserts the
// enrollment in one transaction, so neither exists without the other.
func (r *EnrollmentRepository) CreateWithReservation(ctx context.Context, enrollment *models.Enrollment, now time.Time) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.CreatedAt.IsZero() {
		enrollment.CreatedAt = now.UTC()
	}
	if enrollment.Status == "" {
		enrollment.Status = models.EnrollmentStatusConfirmed
	}

	const query = `INSERT INTO enrollments (id, user_id, course_id, coach_id, slot_id, status, payment_status,
    scheduled_at, amount_paid, currency, payment_order_ref, created_at)
VALUES (:id, :user_id, :course_id, :coach_id, :slot_id, :status, :payment_status,
    :scheduled_at, :amount_paid, :currency, :payment_order_ref, :created_at)`

	return database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := r.slots.Reserve(ctx, tx, enrollment.SlotID, now); err != nil {
			return err
		}
		if _, err := tx.NamedExecContext(ctx, query, enrollment); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("create enrollment: %w", ErrDuplicate)
			}
			return fmt.Errorf("create enrollment: %w", err)
		}
		return nil
	})
}

// FindByID returns an enrollment by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollments WHERE id = $1`, enrollmentColumns)
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindByPaymentOrderRef returns the enrollment a settled payment order produced.
func (r *EnrollmentRepository) FindByPaymentOrderRef(ctx context.Context, orderRef string) (*models.Enrollment, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollments WHERE payment_order_ref = $1`, enrollmentColumns)
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, orderRef); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// ListByUser returns a client's enrollments, most recent session first.
func (r *EnrollmentRepository) ListByUser(ctx context.Context, userID string) ([]models.Enrollment, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollments WHERE user_id = $1 ORDER BY scheduled_at DESC`, enrollmentColumns)
	var enrollments []models.Enrollment
	if err := r.db.SelectContext(ctx, &enrollments, query, userID); err != nil {
		return nil, fmt.Errorf("list user enrollments: %w", err)
	}
	return enrollments, nil
}
