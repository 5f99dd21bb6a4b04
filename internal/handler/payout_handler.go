package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/coaching-core-api/internal/models"
	"github.com/noah-isme/coaching-core-api/internal/service"
	appErrors "github.com/noah-isme/coaching-core-api/pkg/errors"
	"github.com/noah-isme/coaching-core-api/pkg/response"
)

const dateLayout = "2006-01-02"

type payoutService interface {
	CalculatePayout(ctx context.Context, req service.PayoutPeriodRequest) (*models.PayoutCalculation, error)
	GeneratePayout(ctx context.Context, req service.GeneratePayoutRequest) (*models.Payout, error)
	UpdatePayoutStatus(ctx context.Context, payoutID string, req service.UpdatePayoutStatusRequest) (*models.Payout, error)
	GetPayout(ctx context.Context, id string) (*models.Payout, error)
	ListPayouts(ctx context.Context, filter models.PayoutFilter) ([]models.Payout, *models.Pagination, error)
	GetLineItems(ctx context.Context, payoutID string) ([]models.PayoutLineItem, error)
	GetCoachSettings(ctx context.Context, coachID string) (*models.PayoutSettings, error)
	UpsertCoachSettings(ctx context.Context, req service.UpsertPayoutSettingsRequest) (*models.PayoutSettings, error)
}

// generatePayoutBody takes calendar dates as YYYY-MM-DD.
type generatePayoutBody struct {
	CoachID     string `json:"coach_id" binding:"required"`
	PeriodStart string `json:"period_start" binding:"required"`
	PeriodEnd   string `json:"period_end" binding:"required"`
	TaxAmount   int64  `json:"tax_amount"`
	Notes       string `json:"notes"`
}

// PayoutHandler exposes payout operations to operators.
type PayoutHandler struct {
	service payoutService
}

// NewPayoutHandler builds a new handler.
func NewPayoutHandler(service payoutService) *PayoutHandler {
	return &PayoutHandler{service: service}
}

// Preview godoc
// @Summary Preview a coach payout for a period
// @Tags Payouts
// @Produce json
// @Param coachId path string true "Coach ID"
// @Param period_start query string true "First day (YYYY-MM-DD)"
// @Param period_end query string true "Last day, inclusive (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /admin/coaches/{coachId}/payouts/preview [get]
func (h *PayoutHandler) Preview(c *gin.Context) {
	period, err := parsePeriod(c.Param("coachId"), c.Query("period_start"), c.Query("period_end"))
	if err != nil {
		response.Error(c, err)
		return
	}
	calc, err := h.service.CalculatePayout(c.Request.Context(), period)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, calc, nil)
}

// Generate godoc
// @Summary Generate a payout for a coach and period
// @Tags Payouts
// @Accept json
// @Produce json
// @Param payload body generatePayoutBody true "Payout period"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /admin/payouts [post]
func (h *PayoutHandler) Generate(c *gin.Context) {
	var body generatePayoutBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payout payload"))
		return
	}
	period, err := parsePeriod(body.CoachID, body.PeriodStart, body.PeriodEnd)
	if err != nil {
		response.Error(c, err)
		return
	}
	payout, err := h.service.GeneratePayout(c.Request.Context(), service.GeneratePayoutRequest{
		PayoutPeriodRequest: period,
		TaxAmount:           body.TaxAmount,
		Notes:               body.Notes,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, payout)
}

// List godoc
// @Summary List payouts
// @Tags Payouts
// @Produce json
// @Param coach_id query string false "Coach ID"
// @Param status query string false "Payout status"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /admin/payouts [get]
func (h *PayoutHandler) List(c *gin.Context) {
	h.list(c, c.Query("coach_id"))
}

// ListForCoach godoc
// @Summary List a coach's own payouts
// @Tags Payouts
// @Produce json
// @Param coachId path string true "Coach ID"
// @Param status query string false "Payout status"
// @Success 200 {object} response.Envelope
// @Router /coaches/{coachId}/payouts [get]
func (h *PayoutHandler) ListForCoach(c *gin.Context) {
	h.list(c, c.Param("coachId"))
}

// Get godoc
// @Summary Get a payout
// @Tags Payouts
// @Produce json
// @Param id path string true "Payout ID"
// @Success 200 {object} response.Envelope
// @Router /admin/payouts/{id} [get]
func (h *PayoutHandler) Get(c *gin.Context) {
	payout, err := h.service.GetPayout(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payout, nil)
}

// LineItems godoc
// @Summary List a payout's line items
// @Tags Payouts
// @Produce json
// @Param id path string true "Payout ID"
// @Success 200 {object} response.Envelope
// @Router /admin/payouts/{id}/line-items [get]
func (h *PayoutHandler) LineItems(c *gin.Context) {
	items, err := h.service.GetLineItems(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// UpdateStatus godoc
// @Summary Move a payout to a new status
// @Tags Payouts
// @Accept json
// @Produce json
// @Param id path string true "Payout ID"
// @Param payload body service.UpdatePayoutStatusRequest true "Status change"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/payouts/{id}/status [patch]
func (h *PayoutHandler) UpdateStatus(c *gin.Context) {
	var req service.UpdatePayoutStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payout status payload"))
		return
	}
	payout, err := h.service.UpdatePayoutStatus(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payout, nil)
}

// GetSettings godoc
// @Summary Get a coach's payout settings
// @Tags Payouts
// @Produce json
// @Param coachId path string true "Coach ID"
// @Success 200 {object} response.Envelope
// @Router /admin/coaches/{coachId}/payout-settings [get]
func (h *PayoutHandler) GetSettings(c *gin.Context) {
	settings, err := h.service.GetCoachSettings(c.Request.Context(), c.Param("coachId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, settings, nil)
}

// UpsertSettings godoc
// @Summary Create or replace a coach's payout settings
// @Tags Payouts
// @Accept json
// @Produce json
// @Param coachId path string true "Coach ID"
// @Param payload body service.UpsertPayoutSettingsRequest true "Settings"
// @Success 200 {object} response.Envelope
// @Router /admin/coaches/{coachId}/payout-settings [put]
func (h *PayoutHandler) UpsertSettings(c *gin.Context) {
	var req service.UpsertPayoutSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payout settings payload"))
		return
	}
	req.CoachID = c.Param("coachId")
	settings, err := h.service.UpsertCoachSettings(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, settings, nil)
}

func (h *PayoutHandler) list(c *gin.Context, coachID string) {
	page, err := queryInt(c, "page", 1)
	if err != nil {
		response.Error(c, err)
		return
	}
	size, err := queryInt(c, "page_size", 20)
	if err != nil {
		response.Error(c, err)
		return
	}
	filter := models.PayoutFilter{CoachID: coachID, Page: page, PageSize: size}
	if raw := c.Query("status"); raw != "" {
		status, err := models.ParsePayoutStatus(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unknown payout status"))
			return
		}
		filter.Status = status
	}
	payouts, pagination, err := h.service.ListPayouts(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payouts, pagination)
}

func parsePeriod(coachID, start, end string) (service.PayoutPeriodRequest, error) {
	from, err := time.Parse(dateLayout, start)
	if err != nil {
		return service.PayoutPeriodRequest{}, appErrors.Clone(appErrors.ErrValidation, "period_start must be YYYY-MM-DD")
	}
	to, err := time.Parse(dateLayout, end)
	if err != nil {
		return service.PayoutPeriodRequest{}, appErrors.Clone(appErrors.ErrValidation, "period_end must be YYYY-MM-DD")
	}
	return service.PayoutPeriodRequest{CoachID: coachID, PeriodStart: from, PeriodEnd: to}, nil
}
