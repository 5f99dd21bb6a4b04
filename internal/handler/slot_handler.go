package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/coaching-core-api/internal/models"
	"github.com/noah-isme/coaching-core-api/pkg/response"
)

type slotService interface {
	ListAvailableSlots(ctx context.Context, coachID string, windowDays int) ([]models.TimeSlot, error)
	GetSlot(ctx context.Context, id string) (*models.TimeSlot, error)
	ReserveSlot(ctx context.Context, id string) error
	ReleaseSlot(ctx context.Context, id string) error
}

// SlotHandler exposes the slot ledger.
type SlotHandler struct {
	service slotService
}

// NewSlotHandler builds a new handler.
func NewSlotHandler(service slotService) *SlotHandler {
	return &SlotHandler{service: service}
}

// ListAvailable godoc
// @Summary List a coach's bookable slots
// @Tags Slots
// @Produce json
// @Param coachId path string true "Coach ID"
// @Param days query int false "Look-ahead window in days"
// @Success 200 {object} response.Envelope
// @Router /coaches/{coachId}/slots [get]
func (h *SlotHandler) ListAvailable(c *gin.Context) {
	days, err := queryInt(c, "days", 0)
	if err != nil {
		response.Error(c, err)
		return
	}
	slots, err := h.service.ListAvailableSlots(c.Request.Context(), c.Param("coachId"), days)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slots, nil)
}

// Get godoc
// @Summary Get a time slot
// @Tags Slots
// @Produce json
// @Param id path string true "Slot ID"
// @Success 200 {object} response.Envelope
// @Router /slots/{id} [get]
func (h *SlotHandler) Get(c *gin.Context) {
	slot, err := h.service.GetSlot(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slot, nil)
}

// Reserve godoc
// @Summary Take one unit of slot capacity (operator booking)
// @Tags Admin
// @Produce json
// @Param id path string true "Slot ID"
// @Success 204
// @Failure 409 {object} response.Envelope
// @Router /admin/slots/{id}/reserve [post]
func (h *SlotHandler) Reserve(c *gin.Context) {
	if err := h.service.ReserveSlot(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Release godoc
// @Summary Give back one unit of slot capacity
// @Tags Admin
// @Produce json
// @Param id path string true "Slot ID"
// @Success 204
// @Router /admin/slots/{id}/release [post]
func (h *SlotHandler) Release(c *gin.Context) {
	if err := h.service.ReleaseSlot(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
