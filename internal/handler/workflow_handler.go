package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/coaching-core-api/internal/models"
	"github.com/noah-isme/coaching-core-api/internal/service"
	appErrors "github.com/noah-isme/coaching-core-api/pkg/errors"
	"github.com/noah-isme/coaching-core-api/pkg/response"
)

type workflowService interface {
	Start(ctx context.Context, req service.StartWorkflowRequest) (*models.WorkflowSession, error)
	GetSession(ctx context.Context, userID string) (*models.WorkflowSession, error)
	SelectCourse(ctx context.Context, userID, courseID string) (*models.WorkflowSession, error)
	ListCoachCandidates(ctx context.Context, userID string) (*service.CoachCandidates, error)
	SelectCoach(ctx context.Context, userID, coachID string) (*models.WorkflowSession, error)
	ListSlots(ctx context.Context, userID string, windowDays int) ([]models.TimeSlot, error)
	SelectSlot(ctx context.Context, userID, slotID string) (*models.WorkflowSession, error)
	Next(ctx context.Context, userID string) (*models.WorkflowSession, error)
	Previous(ctx context.Context, userID string) (*models.WorkflowSession, error)
	Checkout(ctx context.Context, userID string) (*service.CheckoutResult, error)
	SubmitEnrollment(ctx context.Context, userID string) (*models.Enrollment, error)
	Cancel(ctx context.Context, userID string) error
}

type selectCourseBody struct {
	CourseID string `json:"course_id" binding:"required"`
}

type selectCoachBody struct {
	CoachID string `json:"coach_id" binding:"required"`
}

type selectSlotBody struct {
	SlotID string `json:"slot_id" binding:"required"`
}

// WorkflowHandler exposes the enrollment workflow to authenticated clients.
// The session always belongs to the caller named in the token.
type WorkflowHandler struct {
	service workflowService
}

// NewWorkflowHandler builds a new handler.
func NewWorkflowHandler(service workflowService) *WorkflowHandler {
	return &WorkflowHandler{service: service}
}

// Start godoc
// @Summary Start an enrollment workflow for a course
// @Tags Enrollment Workflow
// @Accept json
// @Produce json
// @Param payload body selectCourseBody true "Course to preview"
// @Success 201 {object} response.Envelope
// @Router /enrollment-workflow [post]
func (h *WorkflowHandler) Start(c *gin.Context) {
	claims, err := currentUser(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var body selectCourseBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid workflow payload"))
		return
	}
	session, err := h.service.Start(c.Request.Context(), service.StartWorkflowRequest{
		UserID:   claims.UserID,
		CourseID: body.CourseID,
		UserType: claims.UserType(),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, session)
}

// Get godoc
// @Summary Get the caller's workflow session
// @Tags Enrollment Workflow
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /enrollment-workflow [get]
func (h *WorkflowHandler) Get(c *gin.Context) {
	h.sessionCall(c, h.service.GetSession)
}

// SelectCourse godoc
// @Summary Replace the selected course
// @Tags Enrollment Workflow
// @Accept json
// @Produce json
// @Param payload body selectCourseBody true "Course"
// @Success 200 {object} response.Envelope
// @Router /enrollment-workflow/course [put]
func (h *WorkflowHandler) SelectCourse(c *gin.Context) {
	var body selectCourseBody
	if !bindSelection(c, &body) {
		return
	}
	h.sessionCall(c, func(ctx context.Context, userID string) (*models.WorkflowSession, error) {
		return h.service.SelectCourse(ctx, userID, body.CourseID)
	})
}

// Coaches godoc
// @Summary List coaches matching the selected course
// @Tags Enrollment Workflow
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /enrollment-workflow/coaches [get]
func (h *WorkflowHandler) Coaches(c *gin.Context) {
	claims, err := currentUser(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	candidates, err := h.service.ListCoachCandidates(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, candidates, nil)
}

// SelectCoach godoc
// @Summary Select a coach
// @Tags Enrollment Workflow
// @Accept json
// @Produce json
// @Param payload body selectCoachBody true "Coach"
// @Success 200 {object} response.Envelope
// @Router /enrollment-workflow/coach [put]
func (h *WorkflowHandler) SelectCoach(c *gin.Context) {
	var body selectCoachBody
	if !bindSelection(c, &body) {
		return
	}
	h.sessionCall(c, func(ctx context.Context, userID string) (*models.WorkflowSession, error) {
		return h.service.SelectCoach(ctx, userID, body.CoachID)
	})
}

// Slots godoc
// @Summary List bookable slots of the selected coach
// @Tags Enrollment Workflow
// @Produce json
// @Param days query int false "Look-ahead window in days"
// @Success 200 {object} response.Envelope
// @Router /enrollment-workflow/slots [get]
func (h *WorkflowHandler) Slots(c *gin.Context) {
	claims, err := currentUser(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	days, err := queryInt(c, "days", 0)
	if err != nil {
		response.Error(c, err)
		return
	}
	slots, err := h.service.ListSlots(c.Request.Context(), claims.UserID, days)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slots, nil)
}

// SelectSlot godoc
// @Summary Select a time slot
// @Tags Enrollment Workflow
// @Accept json
// @Produce json
// @Param payload body selectSlotBody true "Slot"
// @Success 200 {object} response.Envelope
// @Router /enrollment-workflow/slot [put]
func (h *WorkflowHandler) SelectSlot(c *gin.Context) {
	var body selectSlotBody
	if !bindSelection(c, &body) {
		return
	}
	h.sessionCall(c, func(ctx context.Context, userID string) (*models.WorkflowSession, error) {
		return h.service.SelectSlot(ctx, userID, body.SlotID)
	})
}

// Next godoc
// @Summary Advance to the next stage
// @Tags Enrollment Workflow
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /enrollment-workflow/next [post]
func (h *WorkflowHandler) Next(c *gin.Context) {
	h.sessionCall(c, h.service.Next)
}

// Previous godoc
// @Summary Go back one stage
// @Tags Enrollment Workflow
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /enrollment-workflow/previous [post]
func (h *WorkflowHandler) Previous(c *gin.Context) {
	h.sessionCall(c, h.service.Previous)
}

// Checkout godoc
// @Summary Complete the payment stage
// @Description Returns 201 with the enrollment when no payment is due, or 202 with the gateway order to pay.
// @Tags Enrollment Workflow
// @Produce json
// @Success 201 {object} response.Envelope
// @Success 202 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /enrollment-workflow/checkout [post]
func (h *WorkflowHandler) Checkout(c *gin.Context) {
	claims, err := currentUser(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.service.Checkout(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if result.AwaitingPayment() {
		response.Accepted(c, result)
		return
	}
	response.Created(c, result)
}

// Submit godoc
// @Summary Submit the enrollment
// @Tags Enrollment Workflow
// @Produce json
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /enrollment-workflow/submit [post]
func (h *WorkflowHandler) Submit(c *gin.Context) {
	claims, err := currentUser(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	enrollment, err := h.service.SubmitEnrollment(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, enrollment)
}

// Cancel godoc
// @Summary Discard the workflow session
// @Tags Enrollment Workflow
// @Success 204
// @Router /enrollment-workflow [delete]
func (h *WorkflowHandler) Cancel(c *gin.Context) {
	claims, err := currentUser(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.service.Cancel(c.Request.Context(), claims.UserID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func (h *WorkflowHandler) sessionCall(c *gin.Context, call func(ctx context.Context, userID string) (*models.WorkflowSession, error)) {
	claims, err := currentUser(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	session, err := call(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil, gin.H{"stage": session.Stage.String()})
}

func bindSelection(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid selection payload"))
		return false
	}
	return true
}
