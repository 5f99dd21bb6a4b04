package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/coaching-core-api/internal/models"
	"github.com/noah-isme/coaching-core-api/internal/service"
	appErrors "github.com/noah-isme/coaching-core-api/pkg/errors"
)

type payoutServiceMock struct {
	period      service.PayoutPeriodRequest
	generateReq service.GeneratePayoutRequest
	generateErr error
	statusID    string
	statusReq   service.UpdatePayoutStatusRequest
	statusErr   error
	filter      models.PayoutFilter
	settingsReq service.UpsertPayoutSettingsRequest
}

func (m *payoutServiceMock) CalculatePayout(ctx context.Context, req service.PayoutPeriodRequest) (*models.PayoutCalculation, error) {
	m.period = req
	return &models.PayoutCalculation{CoachID: req.CoachID, TotalStudents: 3, PaymentRatePerStudent: 500, GrossAmount: 1500}, nil
}

func (m *payoutServiceMock) GeneratePayout(ctx context.Context, req service.GeneratePayoutRequest) (*models.Payout, error) {
	m.generateReq = req
	if m.generateErr != nil {
		return nil, m.generateErr
	}
	return &models.Payout{ID: "payout-1", PayoutNumber: "PO-202603-000001", NetAmount: 1350}, nil
}

func (m *payoutServiceMock) UpdatePayoutStatus(ctx context.Context, payoutID string, req service.UpdatePayoutStatusRequest) (*models.Payout, error) {
	m.statusID, m.statusReq = payoutID, req
	if m.statusErr != nil {
		return nil, m.statusErr
	}
	return &models.Payout{ID: payoutID, Status: models.PayoutStatus(req.Status)}, nil
}

func (m *payoutServiceMock) GetPayout(ctx context.Context, id string) (*models.Payout, error) {
	return &models.Payout{ID: id}, nil
}

func (m *payoutServiceMock) ListPayouts(ctx context.Context, filter models.PayoutFilter) ([]models.Payout, *models.Pagination, error) {
	m.filter = filter
	return []models.Payout{{ID: "payout-1"}}, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: 1}, nil
}

func (m *payoutServiceMock) GetLineItems(ctx context.Context, payoutID string) ([]models.PayoutLineItem, error) {
	return []models.PayoutLineItem{{ID: "item-1", PayoutID: payoutID}}, nil
}

func (m *payoutServiceMock) GetCoachSettings(ctx context.Context, coachID string) (*models.PayoutSettings, error) {
	return nil, appErrors.Clone(appErrors.ErrNotFound, "payout settings not found")
}

func (m *payoutServiceMock) UpsertCoachSettings(ctx context.Context, req service.UpsertPayoutSettingsRequest) (*models.PayoutSettings, error) {
	m.settingsReq = req
	return &models.PayoutSettings{CoachID: req.CoachID, PaymentRatePerStudent: req.PaymentRatePerStudent}, nil
}

func adminContext(method, target, body string, params gin.Params) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, target, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = params
	return c, w
}

func TestPayoutHandlerPreviewParsesDates(t *testing.T) {
	mockSvc := &payoutServiceMock{}
	c, w := adminContext(http.MethodGet, "/admin/coaches/coach-1/payouts/preview?period_start=2026-03-01&period_end=2026-03-31", "",
		gin.Params{{Key: "coachId", Value: "coach-1"}})

	NewPayoutHandler(mockSvc).Preview(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "coach-1", mockSvc.period.CoachID)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), mockSvc.period.PeriodStart)
	assert.Equal(t, time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC), mockSvc.period.PeriodEnd)
}

func TestPayoutHandlerPreviewRejectsBadDate(t *testing.T) {
	c, w := adminContext(http.MethodGet, "/admin/coaches/coach-1/payouts/preview?period_start=03/01/2026&period_end=2026-03-31", "",
		gin.Params{{Key: "coachId", Value: "coach-1"}})

	NewPayoutHandler(&payoutServiceMock{}).Preview(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "period_start")
}

func TestPayoutHandlerGenerate(t *testing.T) {
	mockSvc := &payoutServiceMock{}
	body := `{"coach_id":"coach-1","period_start":"2026-03-01","period_end":"2026-03-31","tax_amount":150,"notes":"march"}`
	c, w := adminContext(http.MethodPost, "/admin/payouts", body, nil)

	NewPayoutHandler(mockSvc).Generate(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, int64(150), mockSvc.generateReq.TaxAmount)
	assert.Equal(t, "march", mockSvc.generateReq.Notes)
	assert.Equal(t, "coach-1", mockSvc.generateReq.CoachID)
	assert.Contains(t, w.Body.String(), "PO-202603-000001")
}

func TestPayoutHandlerGenerateErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"no activity", appErrors.ErrNoBillableActivity, http.StatusUnprocessableEntity},
		{"no settings", appErrors.ErrSettingsMissing, http.StatusPreconditionFailed},
		{"already billed", appErrors.ErrConflict, http.StatusConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			body := `{"coach_id":"coach-1","period_start":"2026-03-01","period_end":"2026-03-31"}`
			c, w := adminContext(http.MethodPost, "/admin/payouts", body, nil)
			NewPayoutHandler(&payoutServiceMock{generateErr: tc.err}).Generate(c)
			assert.Equal(t, tc.status, w.Code)
		})
	}
}

func TestPayoutHandlerUpdateStatus(t *testing.T) {
	mockSvc := &payoutServiceMock{}
	c, w := adminContext(http.MethodPatch, "/admin/payouts/payout-1/status", `{"status":"paid","payment_reference":"TRX-9"}`,
		gin.Params{{Key: "id", Value: "payout-1"}})
	NewPayoutHandler(mockSvc).UpdateStatus(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "payout-1", mockSvc.statusID)
	require.NotNil(t, mockSvc.statusReq.PaymentReference)
	assert.Equal(t, "TRX-9", *mockSvc.statusReq.PaymentReference)

	rejected := &payoutServiceMock{statusErr: appErrors.ErrInvalidTransition}
	c, w = adminContext(http.MethodPatch, "/admin/payouts/payout-1/status", `{"status":"pending"}`,
		gin.Params{{Key: "id", Value: "payout-1"}})
	NewPayoutHandler(rejected).UpdateStatus(c)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestPayoutHandlerListFilters(t *testing.T) {
	mockSvc := &payoutServiceMock{}
	c, w := adminContext(http.MethodGet, "/admin/payouts?coach_id=coach-1&status=PENDING&page=2&page_size=5", "", nil)
	NewPayoutHandler(mockSvc).List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.PayoutFilter{CoachID: "coach-1", Status: models.PayoutStatusPending, Page: 2, PageSize: 5}, mockSvc.filter)
	assert.Contains(t, w.Body.String(), `"total_count":1`)

	c, w = adminContext(http.MethodGet, "/admin/payouts?status=lost", "", nil)
	NewPayoutHandler(mockSvc).List(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPayoutHandlerListForCoachUsesPath(t *testing.T) {
	mockSvc := &payoutServiceMock{}
	c, w := adminContext(http.MethodGet, "/coaches/coach-7/payouts?coach_id=coach-1", "",
		gin.Params{{Key: "coachId", Value: "coach-7"}})
	NewPayoutHandler(mockSvc).ListForCoach(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "coach-7", mockSvc.filter.CoachID)
}

func TestPayoutHandlerSettings(t *testing.T) {
	mockSvc := &payoutServiceMock{}
	body := `{"payment_rate_per_student":500,"currency":"usd","bank_details":{"account_holder":"Dana Reyes","account_number":"123","bank_name":"First Bank"}}`
	c, w := adminContext(http.MethodPut, "/admin/coaches/coach-1/payout-settings", body,
		gin.Params{{Key: "coachId", Value: "coach-1"}})
	NewPayoutHandler(mockSvc).UpsertSettings(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "coach-1", mockSvc.settingsReq.CoachID)
	assert.Equal(t, int64(500), mockSvc.settingsReq.PaymentRatePerStudent)

	c, w = adminContext(http.MethodGet, "/admin/coaches/coach-2/payout-settings", "",
		gin.Params{{Key: "coachId", Value: "coach-2"}})
	NewPayoutHandler(mockSvc).GetSettings(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
