package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/coaching-core-api/internal/models"
	"github.com/noah-isme/coaching-core-api/pkg/database"
)

const payoutColumns = `id, payout_number, coach_id, period_start, period_end, total_students, payment_rate_per_student,
gross_amount, tax_amount, net_amount, currency, status, payment_date, payment_reference, notes, created_at, updated_at`

const lineItemColumns = `id, payout_id, enrollment_id, purchase_id, student_name, student_email, course_title,
enrollment_date, amount, created_at`

// billableQuery lists unclaimed confirmed/completed enrollments and completed
// purchases of a coach in the half-open window [$2, $3).
const billableQuery = `SELECT 'enrollment' AS source, e.id AS source_id,
       COALESCE(u.full_name, '') AS student_name, COALESCE(u.email, '') AS student_email,
       COALESCE(c.title, '') AS course_title, e.scheduled_at AS occurred_at
FROM enrollments e
LEFT JOIN users u ON u.id = e.user_id
LEFT JOIN courses c ON c.id = e.course_id
WHERE e.coach_id = $1 AND e.scheduled_at >= $2 AND e.scheduled_at < $3
  AND e.status = ANY($4) AND e.payout_id IS NULL
UNION ALL
SELECT 'purchase' AS source, p.id AS source_id,
       COALESCE(u.full_name, '') AS student_name, COALESCE(u.email, '') AS student_email,
       COALESCE(c.title, '') AS course_title, p.purchased_at AS occurred_at
FROM purchases p
LEFT JOIN users u ON u.id = p.user_id
LEFT JOIN courses c ON c.id = p.course_id
WHERE p.coach_id = $1 AND p.purchased_at >= $2 AND p.purchased_at < $3
  AND p.status = $5 AND p.payout_id IS NULL
ORDER BY occurred_at DESC, source_id ASC`

// PayoutRepository persists payouts, their line items and the claim markers
// on billed enrollments and purchases.
type PayoutRepository struct {
	db *sqlx.DB
}

// NewPayoutRepository constructs the repository.
func NewPayoutRepository(db *sqlx.DB) *PayoutRepository {
	return &PayoutRepository{db: db}
}

// ListBillable returns the activity a payout for the window would bill.
func (r *PayoutRepository) ListBillable(ctx context.Context, coachID string, from, until time.Time) ([]models.BillableActivity, error) {
	statuses := pq.Array([]string{string(models.EnrollmentStatusConfirmed), string(models.EnrollmentStatusCompleted)})
	var activity []models.BillableActivity
	if err := r.db.SelectContext(ctx, &activity, billableQuery, coachID, from, until, statuses, models.PurchaseStatusCompleted); err != nil {
		return nil, fmt.Errorf("list billable activity: %w", err)
	}
	return activity, nil
}

// PayoutDraft is everything Create needs to persist a payout atomically.
type PayoutDraft struct {
	Payout       *models.Payout
	Activity     []models.BillableActivity
	NumberPrefix string
}

// Create persists a payout in one transaction. It serializes on the coach with
// an advisory lock, draws the payout number from payout_number_seq, inserts the
// payout, claims every billed row and writes one line item per row.
// ErrClaimConflict is returned if any row was claimed by someone else and
// ErrDuplicate if a live payout already covers the same period.
func (r *PayoutRepository) Create(ctx context.Context, draft PayoutDraft) error {
	payout := draft.Payout
	if payout.ID == "" {
		payout.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if payout.CreatedAt.IsZero() {
		payout.CreatedAt = now
	}
	payout.UpdatedAt = payout.CreatedAt
	if payout.Status == "" {
		payout.Status = models.PayoutStatusPending
	}

	enrollmentIDs, purchaseIDs := splitActivity(draft.Activity)

	return database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, payout.CoachID); err != nil {
			return fmt.Errorf("lock coach payouts: %w", err)
		}

		var seq int64
		if err := tx.GetContext(ctx, &seq, `SELECT nextval('payout_number_seq')`); err != nil {
			return fmt.Errorf("next payout number: %w", err)
		}
		payout.PayoutNumber = FormatPayoutNumber(draft.NumberPrefix, payout.CreatedAt, seq)

		query := fmt.Sprintf(`INSERT INTO payouts (%s)
VALUES (:id, :payout_number, :coach_id, :period_start, :period_end, :total_students, :payment_rate_per_student,
    :gross_amount, :tax_amount, :net_amount, :currency, :status, :payment_date, :payment_reference, :notes,
    :created_at, :updated_at)`, payoutColumns)
		if _, err := tx.NamedExecContext(ctx, query, payout); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("create payout: %w", ErrDuplicate)
			}
			return fmt.Errorf("create payout: %w", err)
		}

		if err := claim(ctx, tx, "enrollments", payout.ID, enrollmentIDs); err != nil {
			return err
		}
		if err := claim(ctx, tx, "purchases", payout.ID, purchaseIDs); err != nil {
			return err
		}

		itemQuery := fmt.Sprintf(`INSERT INTO payout_line_items (%s)
VALUES (:id, :payout_id, :enrollment_id, :purchase_id, :student_name, :student_email, :course_title,
    :enrollment_date, :amount, :created_at)`, lineItemColumns)
		for _, item := range lineItems(payout, draft.Activity) {
			if _, err := tx.NamedExecContext(ctx, itemQuery, item); err != nil {
				return fmt.Errorf("create payout line item: %w", err)
			}
		}
		return nil
	})
}

// FormatPayoutNumber renders sequence values as PREFIX-YYYYMM-000042.
func FormatPayoutNumber(prefix string, at time.Time, seq int64) string {
	if prefix == "" {
		prefix = "PO"
	}
	return fmt.Sprintf("%s-%s-%06d", prefix, at.UTC().Format("200601"), seq)
}

func claim(ctx context.Context, tx *sqlx.Tx, table, payoutID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	query := fmt.Sprintf(`UPDATE %s SET payout_id = $1 WHERE id = ANY($2) AND payout_id IS NULL`, table)
	res, err := tx.ExecContext(ctx, query, payoutID, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("claim %s: %w", table, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("claim %s rows: %w", table, err)
	}
	if affected != int64(len(ids)) {
		return fmt.Errorf("claim %s: %d of %d rows: %w", table, affected, len(ids), ErrClaimConflict)
	}
	return nil
}

func splitActivity(activity []models.BillableActivity) (enrollments, purchases []string) {
	for _, a := range activity {
		switch a.Source {
		case models.BillableSourcePurchase:
			purchases = append(purchases, a.SourceID)
		default:
			enrollments = append(enrollments, a.SourceID)
		}
	}
	return enrollments, purchases
}

func lineItems(payout *models.Payout, activity []models.BillableActivity) []models.PayoutLineItem {
	items := make([]models.PayoutLineItem, 0, len(activity))
	for _, a := range activity {
		sourceID := a.SourceID
		item := models.PayoutLineItem{
			ID:             uuid.NewString(),
			PayoutID:       payout.ID,
			StudentName:    a.StudentName,
			StudentEmail:   a.StudentEmail,
			CourseTitle:    a.CourseTitle,
			EnrollmentDate: a.OccurredAt,
			Amount:         payout.PaymentRatePerStudent,
			CreatedAt:      payout.CreatedAt,
		}
		if a.Source == models.BillableSourcePurchase {
			item.PurchaseID = &sourceID
		} else {
			item.EnrollmentID = &sourceID
		}
		items = append(items, item)
	}
	return items
}

// FindByID returns a payout by its ID.
func (r *PayoutRepository) FindByID(ctx context.Context, id string) (*models.Payout, error) {
	query := fmt.Sprintf(`SELECT %s FROM payouts WHERE id = $1`, payoutColumns)
	var payout models.Payout
	if err := r.db.GetContext(ctx, &payout, query, id); err != nil {
		return nil, err
	}
	return &payout, nil
}

// List returns payouts matching the filter, newest first, with the total count.
func (r *PayoutRepository) List(ctx context.Context, filter models.PayoutFilter) ([]models.Payout, int, error) {
	var conditions []string
	var args []interface{}
	if filter.CoachID != "" {
		args = append(args, filter.CoachID)
		conditions = append(conditions, fmt.Sprintf("coach_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s FROM payouts%s ORDER BY created_at DESC LIMIT %d OFFSET %d`, payoutColumns, clause, size, offset)
	var payouts []models.Payout
	if err := r.db.SelectContext(ctx, &payouts, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list payouts: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM payouts"+clause, args...); err != nil {
		return nil, 0, fmt.Errorf("count payouts: %w", err)
	}
	return payouts, total, nil
}

// ListLineItems returns a payout's line items, latest activity first.
func (r *PayoutRepository) ListLineItems(ctx context.Context, payoutID string) ([]models.PayoutLineItem, error) {
	query := fmt.Sprintf(`SELECT %s FROM payout_line_items WHERE payout_id = $1 ORDER BY enrollment_date DESC, id ASC`, lineItemColumns)
	var items []models.PayoutLineItem
	if err := r.db.SelectContext(ctx, &items, query, payoutID); err != nil {
		return nil, fmt.Errorf("list payout line items: %w", err)
	}
	return items, nil
}

// UpdateStatus applies a status change if the payout still holds change.From.
// Paying stamps the payment date and reference; cancelling releases the claim
// markers so the activity can be billed again. Returns ErrStaleStatus when the
// current status differs.
func (r *PayoutRepository) UpdateStatus(ctx context.Context, change models.PayoutStatusChange) (*models.Payout, error) {
	var set string
	args := []interface{}{change.PayoutID, change.From, change.To, change.ChangedAt}
	if change.To == models.PayoutStatusPaid {
		set = "status = $3, updated_at = $4, payment_date = $4, payment_reference = COALESCE($5, payment_reference)"
		args = append(args, change.PaymentReference)
	} else {
		set = "status = $3, updated_at = $4"
	}
	query := fmt.Sprintf(`UPDATE payouts SET %s WHERE id = $1 AND status = $2 RETURNING %s`, set, payoutColumns)

	var updated models.Payout
	err := database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := tx.GetContext(ctx, &updated, query, args...); err != nil {
			if isNoRows(err) {
				return ErrStaleStatus
			}
			return fmt.Errorf("update payout status: %w", err)
		}
		if change.To != models.PayoutStatusCancelled {
			return nil
		}
		for _, table := range []string{"enrollments", "purchases"} {
			release := fmt.Sprintf(`UPDATE %s SET payout_id = NULL WHERE payout_id = $1`, table)
			if _, err := tx.ExecContext(ctx, release, change.PayoutID); err != nil {
				return fmt.Errorf("release %s claims: %w", table, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}
