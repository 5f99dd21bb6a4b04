package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/coaching-core-api/internal/events"
	"github.com/noah-isme/coaching-core-api/internal/models"
	"github.com/noah-isme/coaching-core-api/internal/repository"
	appErrors "github.com/noah-isme/coaching-core-api/pkg/errors"
)

type mockPayoutRepo struct {
	activity   []models.BillableActivity
	billFrom   time.Time
	billUntil  time.Time
	createErr  error
	drafts     []repository.PayoutDraft
	payouts    map[string]*models.Payout
	items      map[string][]models.PayoutLineItem
	changes    []models.PayoutStatusChange
	updateErr  error
	listFilter models.PayoutFilter
}

func (m *mockPayoutRepo) ListBillable(ctx context.Context, coachID string, from, until time.Time) ([]models.BillableActivity, error) {
	m.billFrom, m.billUntil = from, until
	return m.activity, nil
}

func (m *mockPayoutRepo) Create(ctx context.Context, draft repository.PayoutDraft) error {
	if m.createErr != nil {
		return m.createErr
	}
	draft.Payout.ID = fmt.Sprintf("payout-%d", len(m.drafts)+1)
	draft.Payout.PayoutNumber = repository.FormatPayoutNumber(draft.NumberPrefix, draft.Payout.CreatedAt, int64(len(m.drafts)+1))
	m.drafts = append(m.drafts, draft)
	if m.payouts == nil {
		m.payouts = make(map[string]*models.Payout)
	}
	m.payouts[draft.Payout.ID] = draft.Payout
	return nil
}

func (m *mockPayoutRepo) FindByID(ctx context.Context, id string) (*models.Payout, error) {
	payout, ok := m.payouts[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *payout
	return &copied, nil
}

func (m *mockPayoutRepo) List(ctx context.Context, filter models.PayoutFilter) ([]models.Payout, int, error) {
	m.listFilter = filter
	var out []models.Payout
	for _, payout := range m.payouts {
		out = append(out, *payout)
	}
	return out, len(out), nil
}

func (m *mockPayoutRepo) ListLineItems(ctx context.Context, payoutID string) ([]models.PayoutLineItem, error) {
	return m.items[payoutID], nil
}

func (m *mockPayoutRepo) UpdateStatus(ctx context.Context, change models.PayoutStatusChange) (*models.Payout, error) {
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	payout, ok := m.payouts[change.PayoutID]
	if !ok || payout.Status != change.From {
		return nil, repository.ErrStaleStatus
	}
	m.changes = append(m.changes, change)
	payout.Status = change.To
	if change.To == models.PayoutStatusPaid {
		at := change.ChangedAt
		payout.PaymentDate = &at
		payout.PaymentReference = change.PaymentReference
	}
	copied := *payout
	return &copied, nil
}

type mockPayoutSettingsRepo struct {
	settings map[string]models.PayoutSettings
	upserted *models.PayoutSettings
}

func (m *mockPayoutSettingsRepo) FindByCoach(ctx context.Context, coachID string) (*models.PayoutSettings, error) {
	s, ok := m.settings[coachID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &s, nil
}

func (m *mockPayoutSettingsRepo) FindActiveByCoach(ctx context.Context, coachID string) (*models.PayoutSettings, error) {
	s, ok := m.settings[coachID]
	if !ok || !s.IsActive {
		return nil, sql.ErrNoRows
	}
	return &s, nil
}

func (m *mockPayoutSettingsRepo) Upsert(ctx context.Context, settings *models.PayoutSettings) error {
	m.upserted = settings
	if m.settings == nil {
		m.settings = make(map[string]models.PayoutSettings)
	}
	m.settings[settings.CoachID] = *settings
	return nil
}

func threeStudents() []models.BillableActivity {
	at := time.Date(2026, 2, 10, 10, 0, 0, 0, time.UTC)
	return []models.BillableActivity{
		{Source: models.BillableSourceEnrollment, SourceID: "e1", StudentName: "Ana", CourseTitle: "Sprint", OccurredAt: at.Add(48 * time.Hour)},
		{Source: models.BillableSourceEnrollment, SourceID: "e2", StudentName: "Bo", CourseTitle: "Sprint", OccurredAt: at.Add(24 * time.Hour)},
		{Source: models.BillableSourcePurchase, SourceID: "p1", StudentName: "Cy", CourseTitle: "Sprint", OccurredAt: at},
	}
}

func newPayoutFixture(activity []models.BillableActivity, settings map[string]models.PayoutSettings) (*PayoutService, *mockPayoutRepo, *mockPayoutSettingsRepo, *recordingPublisher) {
	repo := &mockPayoutRepo{activity: activity}
	settingsRepo := &mockPayoutSettingsRepo{settings: settings}
	coaches := &fakeCoachRepo{coaches: []models.Coach{{ID: "coach-1", Active: true}}}
	publisher := &recordingPublisher{}
	svc := NewPayoutService(repo, settingsRepo, NewCoachDirectoryService(coaches, nil, 0, nil), publisher, NewMetricsService(),
		PayoutConfig{Location: time.UTC, DefaultCurrency: "INR", NumberPrefix: "PO"}, validator.New(), zap.NewNop())
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC) }
	return svc, repo, settingsRepo, publisher
}

func februaryPeriod() PayoutPeriodRequest {
	return PayoutPeriodRequest{
		CoachID:     "coach-1",
		PeriodStart: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:   time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC),
	}
}

func activeRate(rate int64) map[string]models.PayoutSettings {
	return map[string]models.PayoutSettings{"coach-1": {CoachID: "coach-1", PaymentRatePerStudent: rate, Currency: "INR", IsActive: true}}
}

func TestPayoutServiceGenerateArithmetic(t *testing.T) {
	svc, repo, _, publisher := newPayoutFixture(threeStudents(), activeRate(500))

	payout, err := svc.GeneratePayout(context.Background(), GeneratePayoutRequest{
		PayoutPeriodRequest: februaryPeriod(),
		TaxAmount:           150,
		Notes:               "  february  ",
	})
	require.NoError(t, err)

	assert.Equal(t, 3, payout.TotalStudents)
	assert.Equal(t, int64(500), payout.PaymentRatePerStudent)
	assert.Equal(t, int64(1500), payout.GrossAmount)
	assert.Equal(t, int64(150), payout.TaxAmount)
	assert.Equal(t, int64(1350), payout.NetAmount)
	assert.Equal(t, models.PayoutStatusPending, payout.Status)
	assert.Equal(t, "PO-202603-000001", payout.PayoutNumber)
	require.NotNil(t, payout.Notes)
	assert.Equal(t, "february", *payout.Notes)

	require.Len(t, repo.drafts, 1)
	assert.Len(t, repo.drafts[0].Activity, 3)
	assert.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), repo.billFrom)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), repo.billUntil, "period end is inclusive")
	assert.Equal(t, []string{events.PayoutGenerated}, publisher.types())
}

func TestPayoutServiceCalculateWithoutSettings(t *testing.T) {
	svc, _, _, _ := newPayoutFixture(threeStudents(), nil)

	calc, err := svc.CalculatePayout(context.Background(), februaryPeriod())
	require.NoError(t, err)
	assert.Equal(t, 3, calc.TotalStudents)
	assert.Equal(t, int64(0), calc.PaymentRatePerStudent)
	assert.Equal(t, int64(0), calc.GrossAmount)
	assert.Equal(t, "INR", calc.Currency)
	assert.Len(t, calc.Details, 3)
}

func TestPayoutServiceEmptyPeriod(t *testing.T) {
	svc, repo, _, _ := newPayoutFixture(nil, activeRate(500))

	calc, err := svc.CalculatePayout(context.Background(), februaryPeriod())
	require.NoError(t, err)
	assert.Equal(t, 0, calc.TotalStudents)
	assert.Equal(t, int64(0), calc.GrossAmount)
	assert.NotNil(t, calc.Details)

	_, err = svc.GeneratePayout(context.Background(), GeneratePayoutRequest{PayoutPeriodRequest: februaryPeriod()})
	assert.True(t, errors.Is(err, appErrors.ErrNoBillableActivity))
	assert.Empty(t, repo.drafts)
}

func TestPayoutServiceGenerateValidation(t *testing.T) {
	tests := []struct {
		name     string
		settings map[string]models.PayoutSettings
		req      GeneratePayoutRequest
		want     *appErrors.Error
	}{
		{
			name:     "missing settings",
			settings: nil,
			req:      GeneratePayoutRequest{PayoutPeriodRequest: februaryPeriod()},
			want:     appErrors.ErrSettingsMissing,
		},
		{
			name:     "inactive settings",
			settings: map[string]models.PayoutSettings{"coach-1": {CoachID: "coach-1", PaymentRatePerStudent: 500}},
			req:      GeneratePayoutRequest{PayoutPeriodRequest: februaryPeriod()},
			want:     appErrors.ErrSettingsMissing,
		},
		{
			name:     "tax above gross",
			settings: activeRate(500),
			req:      GeneratePayoutRequest{PayoutPeriodRequest: februaryPeriod(), TaxAmount: 1501},
			want:     appErrors.ErrValidation,
		},
		{
			name:     "negative tax",
			settings: activeRate(500),
			req:      GeneratePayoutRequest{PayoutPeriodRequest: februaryPeriod(), TaxAmount: -1},
			want:     appErrors.ErrValidation,
		},
		{
			name:     "reversed period",
			settings: activeRate(500),
			req: GeneratePayoutRequest{PayoutPeriodRequest: PayoutPeriodRequest{
				CoachID:     "coach-1",
				PeriodStart: time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC),
				PeriodEnd:   time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
			}},
			want: appErrors.ErrValidation,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc, repo, _, _ := newPayoutFixture(threeStudents(), tc.settings)
			_, err := svc.GeneratePayout(context.Background(), tc.req)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.want), "got %v", err)
			assert.Empty(t, repo.drafts)
		})
	}
}

func TestPayoutServiceGenerateMapsRepositoryConflicts(t *testing.T) {
	for _, repoErr := range []error{repository.ErrDuplicate, repository.ErrClaimConflict} {
		svc, repo, _, _ := newPayoutFixture(threeStudents(), activeRate(500))
		repo.createErr = fmt.Errorf("create payout: %w", repoErr)

		_, err := svc.GeneratePayout(context.Background(), GeneratePayoutRequest{PayoutPeriodRequest: februaryPeriod()})
		assert.True(t, errors.Is(err, appErrors.ErrConflict))
	}

	svc, repo, _, _ := newPayoutFixture(threeStudents(), activeRate(500))
	repo.createErr = errors.New("connection refused")
	_, err := svc.GeneratePayout(context.Background(), GeneratePayoutRequest{PayoutPeriodRequest: februaryPeriod()})
	assert.True(t, errors.Is(err, appErrors.ErrPersistence))
}

func TestPayoutServiceUpdateStatus(t *testing.T) {
	svc, repo, _, publisher := newPayoutFixture(threeStudents(), activeRate(500))
	ctx := context.Background()
	payout, err := svc.GeneratePayout(ctx, GeneratePayoutRequest{PayoutPeriodRequest: februaryPeriod()})
	require.NoError(t, err)

	_, err = svc.UpdatePayoutStatus(ctx, payout.ID, UpdatePayoutStatusRequest{Status: "bogus"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	updated, err := svc.UpdatePayoutStatus(ctx, payout.ID, UpdatePayoutStatusRequest{Status: "Processing"})
	require.NoError(t, err)
	assert.Equal(t, models.PayoutStatusProcessing, updated.Status)

	ref := " TRX-778 "
	paid, err := svc.UpdatePayoutStatus(ctx, payout.ID, UpdatePayoutStatusRequest{Status: "paid", PaymentReference: &ref})
	require.NoError(t, err)
	assert.Equal(t, models.PayoutStatusPaid, paid.Status)
	require.NotNil(t, paid.PaymentDate)
	require.NotNil(t, paid.PaymentReference)
	assert.Equal(t, "TRX-778", *paid.PaymentReference)

	_, err = svc.UpdatePayoutStatus(ctx, payout.ID, UpdatePayoutStatusRequest{Status: "cancelled"})
	assert.True(t, errors.Is(err, appErrors.ErrInvalidTransition), "paid is terminal")

	_, err = svc.UpdatePayoutStatus(ctx, "missing", UpdatePayoutStatusRequest{Status: "paid"})
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	require.Len(t, repo.changes, 2)
	assert.Equal(t, models.PayoutStatusPending, repo.changes[0].From)
	assert.Equal(t, models.PayoutStatusProcessing, repo.changes[1].From)
	assert.Equal(t, []string{events.PayoutGenerated, events.PayoutStatusChanged, events.PayoutStatusChanged}, publisher.types())
}

func TestPayoutServiceUpdateStatusLostRace(t *testing.T) {
	svc, repo, _, _ := newPayoutFixture(threeStudents(), activeRate(500))
	ctx := context.Background()
	payout, err := svc.GeneratePayout(ctx, GeneratePayoutRequest{PayoutPeriodRequest: februaryPeriod()})
	require.NoError(t, err)

	repo.updateErr = repository.ErrStaleStatus
	_, err = svc.UpdatePayoutStatus(ctx, payout.ID, UpdatePayoutStatusRequest{Status: "cancelled"})
	assert.True(t, errors.Is(err, appErrors.ErrConflict))
}

func TestPayoutServiceLineItemsAndList(t *testing.T) {
	svc, repo, _, _ := newPayoutFixture(threeStudents(), activeRate(500))
	ctx := context.Background()
	payout, err := svc.GeneratePayout(ctx, GeneratePayoutRequest{PayoutPeriodRequest: februaryPeriod()})
	require.NoError(t, err)

	items, err := svc.GetLineItems(ctx, payout.ID)
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)

	_, err = svc.GetLineItems(ctx, "missing")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	payouts, pagination, err := svc.ListPayouts(ctx, models.PayoutFilter{CoachID: "coach-1", PageSize: 500})
	require.NoError(t, err)
	assert.Len(t, payouts, 1)
	assert.Equal(t, 1, pagination.Page)
	assert.Equal(t, 20, pagination.PageSize)
	assert.Equal(t, 1, pagination.TotalCount)
	assert.Equal(t, "coach-1", repo.listFilter.CoachID)
}

func TestPayoutServiceUpsertSettings(t *testing.T) {
	svc, _, settingsRepo, _ := newPayoutFixture(nil, nil)
	ctx := context.Background()

	settings, err := svc.UpsertCoachSettings(ctx, UpsertPayoutSettingsRequest{
		CoachID:               "coach-1",
		PaymentRatePerStudent: 750,
		BankDetails:           models.FreeformDetails[models.BankAccount]("HDFC 0012 3456"),
	})
	require.NoError(t, err)
	assert.Equal(t, "INR", settings.Currency)
	assert.True(t, settings.IsActive)
	assert.Equal(t, "HDFC 0012 3456", settingsRepo.upserted.BankDetails.Freeform)

	inactive := false
	settings, err = svc.UpsertCoachSettings(ctx, UpsertPayoutSettingsRequest{CoachID: "coach-1", PaymentRatePerStudent: 750, Currency: "usd", IsActive: &inactive})
	require.NoError(t, err)
	assert.Equal(t, "USD", settings.Currency)
	assert.False(t, settings.IsActive)

	_, err = svc.UpsertCoachSettings(ctx, UpsertPayoutSettingsRequest{CoachID: "coach-1", PaymentRatePerStudent: -5})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = svc.UpsertCoachSettings(ctx, UpsertPayoutSettingsRequest{CoachID: "ghost", PaymentRatePerStudent: 5})
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	stored, err := svc.GetCoachSettings(ctx, "coach-1")
	require.NoError(t, err)
	assert.Equal(t, int64(750), stored.PaymentRatePerStudent)
}
