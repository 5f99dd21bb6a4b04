package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/coaching-core-api/internal/models"
)

var payoutRowColumns = []string{"id", "payout_number", "coach_id", "period_start", "period_end", "total_students",
	"payment_rate_per_student", "gross_amount", "tax_amount", "net_amount", "currency", "status", "payment_date",
	"payment_reference", "notes", "created_at", "updated_at"}

func draftFixture() PayoutDraft {
	start := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	return PayoutDraft{
		Payout: &models.Payout{
			CoachID:               "coach-1",
			PeriodStart:           start,
			PeriodEnd:             start.AddDate(0, 1, -1),
			TotalStudents:         3,
			PaymentRatePerStudent: 500,
			GrossAmount:           1500,
			TaxAmount:             150,
			NetAmount:             1350,
			Currency:              "INR",
			CreatedAt:             time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC),
		},
		Activity: []models.BillableActivity{
			{Source: models.BillableSourceEnrollment, SourceID: "enr-1", OccurredAt: start.AddDate(0, 0, 3)},
			{Source: models.BillableSourceEnrollment, SourceID: "enr-2", OccurredAt: start.AddDate(0, 0, 2)},
			{Source: models.BillableSourcePurchase, SourceID: "pur-1", OccurredAt: start.AddDate(0, 0, 1)},
		},
		NumberPrefix: "PO",
	}
}

func TestPayoutRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPayoutRepository(db)
	draft := draftFixture()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock(hashtext($1))")).WithArgs("coach-1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT nextval('payout_number_seq')")).WillReturnRows(sqlmock.NewRows([]string{"nextval"}).AddRow(42))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO payouts")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollments SET payout_id = $1 WHERE id = ANY($2) AND payout_id IS NULL")).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE purchases SET payout_id = $1 WHERE id = ANY($2) AND payout_id IS NULL")).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 1))
	for i := 0; i < 3; i++ {
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO payout_line_items")).WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectCommit()

	require.NoError(t, repo.Create(context.Background(), draft))
	assert.Equal(t, "PO-202603-000042", draft.Payout.PayoutNumber)
	assert.Equal(t, models.PayoutStatusPending, draft.Payout.Status)
	assert.NotEmpty(t, draft.Payout.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPayoutRepositoryCreateClaimConflictRollsBack(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPayoutRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("pg_advisory_xact_lock")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("nextval")).WillReturnRows(sqlmock.NewRows([]string{"nextval"}).AddRow(7))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO payouts")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollments SET payout_id")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	err := repo.Create(context.Background(), draftFixture())
	assert.ErrorIs(t, err, ErrClaimConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPayoutRepositoryCreateDuplicatePeriod(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPayoutRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("pg_advisory_xact_lock")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("nextval")).WillReturnRows(sqlmock.NewRows([]string{"nextval"}).AddRow(8))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO payouts")).WillReturnError(&pq.Error{Code: "23505", Constraint: "payouts_coach_period_live_idx"})
	mock.ExpectRollback()

	err := repo.Create(context.Background(), draftFixture())
	assert.True(t, errors.Is(err, ErrDuplicate))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFormatPayoutNumber(t *testing.T) {
	at := time.Date(2026, 11, 30, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, "PO-202611-000042", FormatPayoutNumber("", at, 42))
	assert.Equal(t, "CP-202611-1234567", FormatPayoutNumber("CP", at, 1234567))
}

func TestPayoutRepositoryListBillable(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPayoutRepository(db)

	from := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	until := from.AddDate(0, 1, 0)
	rows := sqlmock.NewRows([]string{"source", "source_id", "student_name", "student_email", "course_title", "occurred_at"}).
		AddRow("enrollment", "enr-1", "Asha", "asha@example.com", "Career Sprint", from.AddDate(0, 0, 5)).
		AddRow("purchase", "pur-1", "Ravi", "ravi@example.com", "Career Sprint", from.AddDate(0, 0, 2))
	mock.ExpectQuery(regexp.QuoteMeta("FROM enrollments e")).
		WithArgs("coach-1", from, until, sqlmock.AnyArg(), models.PurchaseStatusCompleted).
		WillReturnRows(rows)

	activity, err := repo.ListBillable(context.Background(), "coach-1", from, until)
	require.NoError(t, err)
	require.Len(t, activity, 2)
	assert.Equal(t, models.BillableSourcePurchase, activity[1].Source)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPayoutRepositoryUpdateStatusPaid(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPayoutRepository(db)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	ref := "UTR-991"

	rows := sqlmock.NewRows(payoutRowColumns).AddRow("payout-1", "PO-202603-000042", "coach-1", now, now, 3, 500, 1500, 150, 1350,
		"INR", "paid", now, ref, nil, now, now)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE payouts SET status = $3, updated_at = $4, payment_date = $4, payment_reference = COALESCE($5, payment_reference) WHERE id = $1 AND status = $2")).
		WithArgs("payout-1", models.PayoutStatusProcessing, models.PayoutStatusPaid, now, &ref).
		WillReturnRows(rows)
	mock.ExpectCommit()

	payout, err := repo.UpdateStatus(context.Background(), models.PayoutStatusChange{
		PayoutID: "payout-1", From: models.PayoutStatusProcessing, To: models.PayoutStatusPaid, PaymentReference: &ref, ChangedAt: now,
	})
	require.NoError(t, err)
	assert.Equal(t, models.PayoutStatusPaid, payout.Status)
	require.NotNil(t, payout.PaymentDate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPayoutRepositoryUpdateStatusCancelledReleasesClaims(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPayoutRepository(db)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows(payoutRowColumns).AddRow("payout-1", "PO-202603-000042", "coach-1", now, now, 3, 500, 1500, 150, 1350,
		"INR", "cancelled", nil, nil, nil, now, now)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE payouts SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2")).
		WithArgs("payout-1", models.PayoutStatusPending, models.PayoutStatusCancelled, now).
		WillReturnRows(rows)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollments SET payout_id = NULL WHERE payout_id = $1")).WithArgs("payout-1").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE purchases SET payout_id = NULL WHERE payout_id = $1")).WithArgs("payout-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	payout, err := repo.UpdateStatus(context.Background(), models.PayoutStatusChange{
		PayoutID: "payout-1", From: models.PayoutStatusPending, To: models.PayoutStatusCancelled, ChangedAt: now,
	})
	require.NoError(t, err)
	assert.Equal(t, models.PayoutStatusCancelled, payout.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPayoutRepositoryUpdateStatusStale(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPayoutRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE payouts SET status")).WillReturnRows(sqlmock.NewRows(payoutRowColumns))
	mock.ExpectRollback()

	_, err := repo.UpdateStatus(context.Background(), models.PayoutStatusChange{
		PayoutID: "payout-1", From: models.PayoutStatusPending, To: models.PayoutStatusProcessing, ChangedAt: time.Now(),
	})
	assert.ErrorIs(t, err, ErrStaleStatus)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPayoutRepositoryListLineItemsOrdered(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPayoutRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "payout_id", "enrollment_id", "purchase_id", "student_name", "student_email",
		"course_title", "enrollment_date", "amount", "created_at"}).
		AddRow("li-1", "payout-1", "enr-1", nil, "Asha", "asha@example.com", "Career Sprint", now, 500, now).
		AddRow("li-2", "payout-1", nil, "pur-1", "Ravi", "ravi@example.com", "Career Sprint", now.Add(-time.Hour), 500, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM payout_line_items WHERE payout_id = $1 ORDER BY enrollment_date DESC")).
		WithArgs("payout-1").WillReturnRows(rows)

	items, err := repo.ListLineItems(context.Background(), "payout-1")
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.NotNil(t, items[0].EnrollmentID)
	require.NotNil(t, items[1].PurchaseID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPayoutRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPayoutRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM payouts WHERE coach_id = $1 AND status = $2 ORDER BY created_at DESC LIMIT 10 OFFSET 10")).
		WithArgs("coach-1", models.PayoutStatusPending).
		WillReturnRows(sqlmock.NewRows(payoutRowColumns))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM payouts WHERE coach_id = $1 AND status = $2")).
		WithArgs("coach-1", models.PayoutStatusPending).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(11))

	payouts, total, err := repo.List(context.Background(), models.PayoutFilter{CoachID: "coach-1", Status: models.PayoutStatusPending, Page: 2, PageSize: 10})
	require.NoError(t, err)
	assert.Empty(t, payouts)
	assert.Equal(t, 11, total)
	require.NoError(t, mock.ExpectationsWereMet())
}
