package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/coaching-core-api/internal/models"
	"github.com/noah-isme/coaching-core-api/pkg/response"
)

type coachDirectoryService interface {
	ListCoaches(ctx context.Context, filter models.CoachFilter) ([]models.Coach, error)
	GetCoach(ctx context.Context, id string) (*models.Coach, error)
	Invalidate(ctx context.Context) error
}

// CoachHandler exposes the read-only coach directory.
type CoachHandler struct {
	service coachDirectoryService
}

// NewCoachHandler builds a new handler.
func NewCoachHandler(service coachDirectoryService) *CoachHandler {
	return &CoachHandler{service: service}
}

// List godoc
// @Summary List active coaches
// @Tags Coaches
// @Produce json
// @Param specialty query string false "Comma separated specialty tags"
// @Success 200 {object} response.Envelope
// @Router /coaches [get]
func (h *CoachHandler) List(c *gin.Context) {
	filter := models.CoachFilter{ActiveOnly: true}
	if raw := c.Query("specialty"); raw != "" {
		for _, tag := range strings.Split(raw, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				filter.Specialties = append(filter.Specialties, tag)
			}
		}
	}
	coaches, err := h.service.ListCoaches(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, coaches, nil)
}

// Get godoc
// @Summary Get a coach
// @Tags Coaches
// @Produce json
// @Param coachId path string true "Coach ID"
// @Success 200 {object} response.Envelope
// @Router /coaches/{coachId} [get]
func (h *CoachHandler) Get(c *gin.Context) {
	coach, err := h.service.GetCoach(c.Request.Context(), c.Param("coachId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, coach, nil)
}

// InvalidateCache godoc
// @Summary Drop cached coach listings
// @Tags Admin
// @Success 204
// @Router /admin/coaches/cache [delete]
func (h *CoachHandler) InvalidateCache(c *gin.Context) {
	if err := h.service.Invalidate(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
