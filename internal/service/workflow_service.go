package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/coaching-core-api/internal/events"
	"github.com/noah-isme/coaching-core-api/internal/models"
	"github.com/noah-isme/coaching-core-api/internal/payment"
	"github.com/noah-isme/coaching-core-api/internal/repository"
	appErrors "github.com/noah-isme/coaching-core-api/pkg/errors"
)

type workflowSessionStore interface {
	Get(ctx context.Context, userID string) (*models.WorkflowSession, error)
	Save(ctx context.Context, session *models.WorkflowSession) error
	Delete(ctx context.Context, userID string) error
}

type courseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

type coachDirectory interface {
	ListCoaches(ctx context.Context, filter models.CoachFilter) ([]models.Coach, error)
	GetCoach(ctx context.Context, id string) (*models.Coach, error)
}

type slotLedger interface {
	ListAvailableSlots(ctx context.Context, coachID string, windowDays int) ([]models.TimeSlot, error)
	GetSlot(ctx context.Context, id string) (*models.TimeSlot, error)
}

type enrollmentStore interface {
	CreateWithReservation(ctx context.Context, enrollment *models.Enrollment, now time.Time) error
	FindByPaymentOrderRef(ctx context.Context, orderRef string) (*models.Enrollment, error)
}

type paymentOrderStore interface {
	Create(ctx context.Context, order *models.PaymentOrder) error
	AttachGatewayOrder(ctx context.Context, orderRef, gatewayOrderID string, checkoutURL *string) error
	FindByRef(ctx context.Context, orderRef string) (*models.PaymentOrder, error)
	Transition(ctx context.Context, orderRef string, from, to models.PaymentOrderStatus, reason *string) (*models.PaymentOrder, error)
	ExpireStale(ctx context.Context, now time.Time) ([]models.PaymentOrder, error)
}

// WorkflowConfig tunes the enrollment workflow.
type WorkflowConfig struct {
	Location       *time.Location
	PaymentTimeout time.Duration
	Currency       string
}

// StartWorkflowRequest opens a workflow run for a course.
type StartWorkflowRequest struct {
	UserID   string          `json:"-" validate:"required"`
	CourseID string          `json:"course_id" validate:"required"`
	UserType models.UserType `json:"-" validate:"required,oneof=employee individual"`
}

// CoachCandidates is the coach selection offered for the session's course.
type CoachCandidates struct {
	Coaches         []models.Coach `json:"coaches"`
	NoMatchingCoach bool           `json:"no_matching_coach"`
}

// CheckoutResult is either a created enrollment or a payment order awaiting
// the gateway callback.
type CheckoutResult struct {
	Enrollment   *models.Enrollment      `json:"enrollment,omitempty"`
	PaymentOrder *models.PaymentOrder    `json:"payment_order,omitempty"`
	Session      *models.WorkflowSession `json:"session"`
}

// AwaitingPayment reports whether the client must complete payment with the gateway.
func (r *CheckoutResult) AwaitingPayment() bool {
	return r.Enrollment == nil && r.PaymentOrder != nil
}

// WorkflowService drives a user through course preview, coach selection, slot
// selection, review and payment, and materializes exactly one enrollment.
type WorkflowService struct {
	sessions    workflowSessionStore
	courses     courseReader
	coaches     coachDirectory
	slots       slotLedger
	enrollments enrollmentStore
	orders      paymentOrderStore
	gateway     payment.Gateway
	publisher   events.Publisher
	metrics     *MetricsService
	cfg         WorkflowConfig
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// WorkflowDeps groups the collaborators of WorkflowService.
type WorkflowDeps struct {
	Sessions    workflowSessionStore
	Courses     courseReader
	Coaches     coachDirectory
	Slots       slotLedger
	Enrollments enrollmentStore
	Orders      paymentOrderStore
	Gateway     payment.Gateway
	Publisher   events.Publisher
	Metrics     *MetricsService
}

// NewWorkflowService constructs WorkflowService.
func NewWorkflowService(deps WorkflowDeps, cfg WorkflowConfig, validate *validator.Validate, logger *zap.Logger) *WorkflowService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.PaymentTimeout <= 0 {
		cfg.PaymentTimeout = 30 * time.Minute
	}
	if deps.Publisher == nil {
		deps.Publisher = events.NopPublisher{}
	}
	return &WorkflowService{
		sessions:    deps.Sessions,
		courses:     deps.Courses,
		coaches:     deps.Coaches,
		slots:       deps.Slots,
		enrollments: deps.Enrollments,
		orders:      deps.Orders,
		gateway:     deps.Gateway,
		publisher:   deps.Publisher,
		metrics:     deps.Metrics,
		cfg:         cfg,
		validator:   validate,
		logger:      logger,
		now:         time.Now,
	}
}

// Start opens a session at the course preview stage with the course attached.
func (s *WorkflowService) Start(ctx context.Context, req StartWorkflowRequest) (*models.WorkflowSession, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid workflow start payload")
	}

	existing, err := s.session(ctx, req.UserID)
	switch {
	case err == nil && existing.PaidOrderRef != "":
		return nil, appErrors.Clone(appErrors.ErrConflict, "a paid checkout is waiting for a new slot; finish or cancel it first")
	case err == nil && existing.PaymentOrderRef != "":
		return nil, appErrors.Clone(appErrors.ErrConflict, "payment is in progress; cancel the workflow before starting another")
	case err != nil && !errors.Is(err, appErrors.ErrNotFound):
		return nil, err
	}

	course, err := s.loadCourse(ctx, req.CourseID)
	if err != nil {
		return nil, err
	}
	session := models.NewWorkflowSession(req.UserID, req.UserType, course, s.now().UTC())
	if err := s.save(ctx, session); err != nil {
		return nil, err
	}
	s.logger.Info("workflow started", zap.String("user_id", req.UserID), zap.String("course_id", course.ID))
	return session, nil
}

// GetSession returns the user's session after reconciling an expired payment.
func (s *WorkflowService) GetSession(ctx context.Context, userID string) (*models.WorkflowSession, error) {
	return s.session(ctx, userID)
}

// SelectCourse replaces the course of the session.
func (s *WorkflowService) SelectCourse(ctx context.Context, userID, courseID string) (*models.WorkflowSession, error) {
	session, err := s.session(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.ensureUnlocked(session); err != nil {
		return nil, err
	}
	course, err := s.loadCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	session.Course = course
	session.NoMatchingCoach = false
	return session, s.save(ctx, session)
}

// ListCoachCandidates returns coaches whose specialties overlap the course
// tags. An empty match is recorded on the session as the no-matching-coach
// state; the unfiltered directory is never offered instead. A course without
// tags is offered every active coach.
func (s *WorkflowService) ListCoachCandidates(ctx context.Context, userID string) (*CoachCandidates, error) {
	session, err := s.session(ctx, userID)
	if err != nil {
		return nil, err
	}
	candidates, err := s.candidates(ctx, session)
	if err != nil {
		return nil, err
	}
	session.NoMatchingCoach = candidates.NoMatchingCoach
	if err := s.save(ctx, session); err != nil {
		return nil, err
	}
	return candidates, nil
}

// SelectCoach sets the coach. The coach must be a candidate for the course,
// and a previously chosen slot of another coach is dropped.
func (s *WorkflowService) SelectCoach(ctx context.Context, userID, coachID string) (*models.WorkflowSession, error) {
	session, err := s.session(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.ensureUnlocked(session); err != nil {
		return nil, err
	}
	candidates, err := s.candidates(ctx, session)
	if err != nil {
		return nil, err
	}
	session.NoMatchingCoach = candidates.NoMatchingCoach

	var chosen *models.Coach
	for i := range candidates.Coaches {
		if candidates.Coaches[i].ID == coachID {
			chosen = &candidates.Coaches[i]
			break
		}
	}
	if chosen == nil {
		if err := s.save(ctx, session); err != nil {
			return nil, err
		}
		if candidates.NoMatchingCoach {
			return nil, appErrors.Clone(appErrors.ErrNoMatchingCoach, "no coach matches the selected course")
		}
		return nil, appErrors.Clone(appErrors.ErrValidation, "coach is not a candidate for the selected course")
	}

	session.Coach = chosen
	if session.Slot != nil && session.Slot.CoachID != chosen.ID {
		session.Slot = nil
	}
	return session, s.save(ctx, session)
}

// ListSlots proxies the slot ledger for the selected coach.
func (s *WorkflowService) ListSlots(ctx context.Context, userID string, windowDays int) ([]models.TimeSlot, error) {
	session, err := s.session(ctx, userID)
	if err != nil {
		return nil, err
	}
	if session.Coach == nil {
		return nil, appErrors.Clone(appErrors.ErrIncompleteWorkflow, "select a coach before listing slots")
	}
	return s.slots.ListAvailableSlots(ctx, session.Coach.ID, windowDays)
}

// SelectSlot sets the slot. The slot must belong to the selected coach (any
// coach when none is selected yet), have capacity and start within the
// widest window ListSlots can return.
func (s *WorkflowService) SelectSlot(ctx context.Context, userID, slotID string) (*models.WorkflowSession, error) {
	session, err := s.session(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.ensureUnlocked(session); err != nil {
		return nil, err
	}

	slot, err := s.slots.GetSlot(ctx, slotID)
	if err != nil {
		return nil, err
	}
	if session.Coach != nil && slot.CoachID != session.Coach.ID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "time slot is not available for the selected coach")
	}
	if !s.selectable(slot) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "time slot is full, already started or outside the booking window")
	}

	session.Slot = slot
	return session, s.save(ctx, session)
}

// selectable mirrors the availability query: capacity left and a start
// inside (now, now + maxSlotWindowDays].
func (s *WorkflowService) selectable(slot *models.TimeSlot) bool {
	now := s.now()
	if !slot.Bookable(now, s.cfg.Location) {
		return false
	}
	start, err := slot.StartsAt(s.cfg.Location)
	if err != nil {
		return false
	}
	return !start.After(now.AddDate(0, 0, maxSlotWindowDays))
}

// Next advances one stage if the stage guard holds.
func (s *WorkflowService) Next(ctx context.Context, userID string) (*models.WorkflowSession, error) {
	session, err := s.session(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !session.Advance() {
		return nil, appErrors.Clone(appErrors.ErrIncompleteWorkflow, guardMessage(session))
	}
	return session, s.save(ctx, session)
}

// Previous steps back one stage without touching selections.
func (s *WorkflowService) Previous(ctx context.Context, userID string) (*models.WorkflowSession, error) {
	session, err := s.session(ctx, userID)
	if err != nil {
		return nil, err
	}
	if session.PaymentOrderRef != "" {
		return nil, appErrors.Clone(appErrors.ErrConflict, "payment is in progress")
	}
	if !session.Retreat() {
		return nil, appErrors.Clone(appErrors.ErrIncompleteWorkflow, "already at the first stage")
	}
	return session, s.save(ctx, session)
}

// Checkout completes the payment stage. Employees and free courses enroll
// immediately; everyone else gets a gateway order and enrolls on the success
// callback. A settled order left over from a slot conflict is reused.
func (s *WorkflowService) Checkout(ctx context.Context, userID string) (*CheckoutResult, error) {
	session, err := s.session(ctx, userID)
	if err != nil {
		return nil, err
	}
	if session.Stage != models.StagePayment {
		return nil, appErrors.Clone(appErrors.ErrIncompleteWorkflow, "checkout is only available at the payment stage")
	}
	if !session.Complete() {
		return nil, appErrors.Clone(appErrors.ErrIncompleteWorkflow, "course, coach and slot must be selected")
	}

	if !session.RequiresPayment() || session.PaidOrderRef != "" {
		enrollment, err := s.submit(ctx, session, true)
		if err != nil {
			return nil, err
		}
		return &CheckoutResult{Enrollment: enrollment, Session: session}, nil
	}

	if session.PaymentOrderRef != "" {
		order, err := s.orders.FindByRef(ctx, session.PaymentOrderRef)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, persistenceError(err, "failed to load payment order")
		}
		if err == nil && order.Status == models.PaymentOrderCreated && !order.Expired(s.now()) {
			return &CheckoutResult{PaymentOrder: order, Session: session}, nil
		}
		session.PaymentOrderRef = ""
	}

	order, err := s.openOrder(ctx, session)
	if err != nil {
		return nil, err
	}
	return &CheckoutResult{PaymentOrder: order, Session: session}, nil
}

// SubmitEnrollment reserves the slot and persists the enrollment in one
// transaction, then resets the session. Paid courses need a settled order.
func (s *WorkflowService) SubmitEnrollment(ctx context.Context, userID string) (*models.Enrollment, error) {
	session, err := s.session(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.submit(ctx, session, true)
}

// HandlePaymentSuccess settles the order and submits the enrollment. A
// replayed callback returns the enrollment the first one produced.
func (s *WorkflowService) HandlePaymentSuccess(ctx context.Context, orderRef string) (*models.Enrollment, error) {
	order, err := s.settle(ctx, orderRef, models.PaymentOrderPaid, nil)
	if err != nil {
		if errors.Is(err, errAlreadySettled) {
			return s.replayedSuccess(ctx, orderRef)
		}
		s.metrics.RecordPaymentCallback(string(payment.CallbackSucceeded), callbackOutcome(err))
		return nil, err
	}

	session, owned, err := s.sessionForOrder(ctx, order)
	if err != nil {
		s.metrics.RecordPaymentCallback(string(payment.CallbackSucceeded), "error")
		return nil, err
	}
	session.PaymentOrderRef = ""
	session.PaidOrderRef = order.OrderRef
	session.Stage = models.StagePayment
	if owned {
		if err := s.save(ctx, session); err != nil {
			s.metrics.RecordPaymentCallback(string(payment.CallbackSucceeded), "error")
			return nil, err
		}
	}

	enrollment, err := s.submit(ctx, session, owned)
	s.metrics.RecordPaymentCallback(string(payment.CallbackSucceeded), callbackOutcome(err))
	return enrollment, err
}

// HandlePaymentFailure records a failed payment. The session stays at the
// payment stage so the user can retry.
func (s *WorkflowService) HandlePaymentFailure(ctx context.Context, orderRef, reason string) error {
	return s.handleUnpaid(ctx, orderRef, models.PaymentOrderFailed, payment.CallbackFailed, reason)
}

// HandlePaymentCancel records a payment abandoned at the gateway. The session
// stays at the payment stage so the user can retry.
func (s *WorkflowService) HandlePaymentCancel(ctx context.Context, orderRef string) error {
	return s.handleUnpaid(ctx, orderRef, models.PaymentOrderCancelled, payment.CallbackCancelled, "cancelled by user")
}

// Cancel discards the user's session and voids an open payment order.
func (s *WorkflowService) Cancel(ctx context.Context, userID string) error {
	session, err := s.sessions.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil
		}
		return persistenceError(err, "failed to load workflow session")
	}
	if session.PaymentOrderRef != "" {
		reason := "workflow cancelled"
		if _, err := s.orders.Transition(ctx, session.PaymentOrderRef, models.PaymentOrderCreated, models.PaymentOrderCancelled, &reason); err != nil &&
			!errors.Is(err, repository.ErrStaleStatus) {
			s.logger.Warn("failed to void payment order", zap.String("order_ref", session.PaymentOrderRef), zap.Error(err))
		}
	}
	if session.PaidOrderRef != "" {
		s.logger.Warn("workflow cancelled with a settled payment", zap.String("user_id", userID), zap.String("order_ref", session.PaidOrderRef))
	}
	if err := s.sessions.Delete(ctx, userID); err != nil {
		return persistenceError(err, "failed to delete workflow session")
	}
	return nil
}

// ExpireStalePayments marks created orders past their deadline as expired.
// Sessions pointing at them return to review on their next access.
func (s *WorkflowService) ExpireStalePayments(ctx context.Context) ([]models.PaymentOrder, error) {
	orders, err := s.orders.ExpireStale(ctx, s.now().UTC())
	if err != nil {
		return nil, persistenceError(err, "failed to expire payment orders")
	}
	s.metrics.RecordPaymentsExpired(len(orders))
	return orders, nil
}

// submit enrolls from session. With persist false the session is a detached
// copy and the user's stored session is left as it is.
func (s *WorkflowService) submit(ctx context.Context, session *models.WorkflowSession, persist bool) (*models.Enrollment, error) {
	if !session.Complete() {
		return nil, appErrors.Clone(appErrors.ErrIncompleteWorkflow, "course, coach and slot must be selected")
	}

	enrollment := &models.Enrollment{
		UserID:   session.UserID,
		CourseID: session.Course.ID,
		CoachID:  session.Coach.ID,
		SlotID:   session.Slot.ID,
		Status:   models.EnrollmentStatusConfirmed,
		Currency: s.currency(session.Course),
	}
	switch {
	case session.UserType == models.UserTypeEmployee:
		enrollment.PaymentStatus = models.PaymentStatusSkipped
	case session.Course.IsFree():
		enrollment.PaymentStatus = models.PaymentStatusPaid
	case session.PaidOrderRef != "":
		ref := session.PaidOrderRef
		enrollment.PaymentStatus = models.PaymentStatusPaid
		enrollment.AmountPaid = session.Course.Price
		enrollment.PaymentOrderRef = &ref
	default:
		return nil, appErrors.Clone(appErrors.ErrIncompleteWorkflow, "payment has not been completed")
	}

	scheduledAt, err := session.Slot.StartsAt(s.cfg.Location)
	if err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrInternal, err, "invalid time slot start")
	}
	enrollment.ScheduledAt = scheduledAt.UTC()

	err = s.enrollments.CreateWithReservation(ctx, enrollment, s.now().UTC())
	s.metrics.RecordSlotReservation(reservationOutcome(err))
	if err != nil {
		return s.handleSubmitError(ctx, session, persist, err)
	}

	s.metrics.RecordEnrollment(string(enrollment.PaymentStatus))
	s.publish(ctx, events.New(events.EnrollmentConfirmed, enrollment))
	s.logger.Info("enrollment created",
		zap.String("enrollment_id", enrollment.ID),
		zap.String("user_id", enrollment.UserID),
		zap.String("slot_id", enrollment.SlotID),
		zap.String("payment_status", string(enrollment.PaymentStatus)))

	if persist {
		session.Reset()
		if err := s.save(ctx, session); err != nil {
			s.logger.Warn("failed to reset workflow session", zap.String("user_id", session.UserID), zap.Error(err))
		}
	}
	return enrollment, nil
}

// handleSubmitError keeps course, coach and a paid order on slot conflicts so
// the user only picks another slot.
func (s *WorkflowService) handleSubmitError(ctx context.Context, session *models.WorkflowSession, persist bool, err error) (*models.Enrollment, error) {
	switch {
	case errors.Is(err, repository.ErrNoCapacity), errors.Is(err, sql.ErrNoRows):
		slotID := session.Slot.ID
		if !persist {
			// The settled order stays on record; the user's newer run is not replaced.
			s.logger.Warn("paid order lost its slot while another workflow is active",
				zap.String("user_id", session.UserID), zap.String("order_ref", session.PaidOrderRef), zap.String("slot_id", slotID))
			return nil, reservationError(err, slotID)
		}
		session.Slot = nil
		session.Stage = models.StageSlotSelection
		if saveErr := s.save(ctx, session); saveErr != nil {
			return nil, saveErr
		}
		s.logger.Info("slot taken during submit", zap.String("user_id", session.UserID), zap.String("slot_id", slotID))
		return nil, reservationError(err, slotID)
	case errors.Is(err, repository.ErrDuplicate) && session.PaidOrderRef != "":
		existing, findErr := s.enrollments.FindByPaymentOrderRef(ctx, session.PaidOrderRef)
		if findErr != nil {
			return nil, persistenceError(findErr, "failed to load enrollment for payment")
		}
		if persist {
			session.Reset()
			if saveErr := s.save(ctx, session); saveErr != nil {
				s.logger.Warn("failed to reset workflow session", zap.String("user_id", session.UserID), zap.Error(saveErr))
			}
		}
		return existing, nil
	default:
		return nil, persistenceError(err, "failed to create enrollment")
	}
}

func (s *WorkflowService) openOrder(ctx context.Context, session *models.WorkflowSession) (*models.PaymentOrder, error) {
	now := s.now().UTC()
	order := &models.PaymentOrder{
		OrderRef:  uuid.NewString(),
		UserID:    session.UserID,
		CourseID:  session.Course.ID,
		CoachID:   session.Coach.ID,
		SlotID:    session.Slot.ID,
		Amount:    session.Course.Price,
		Currency:  s.currency(session.Course),
		Status:    models.PaymentOrderCreated,
		ExpiresAt: now.Add(s.cfg.PaymentTimeout),
		CreatedAt: now,
	}
	if err := s.orders.Create(ctx, order); err != nil {
		return nil, persistenceError(err, "failed to create payment order")
	}

	opened, err := s.gateway.CreateOrder(ctx, payment.OrderRequest{
		Reference: order.OrderRef,
		Amount:    order.Amount,
		Currency:  order.Currency,
		Metadata: map[string]string{
			"user_id":   order.UserID,
			"course_id": order.CourseID,
			"coach_id":  order.CoachID,
			"slot_id":   order.SlotID,
		},
	})
	if err != nil {
		reason := truncate(err.Error(), 250)
		if _, tErr := s.orders.Transition(ctx, order.OrderRef, models.PaymentOrderCreated, models.PaymentOrderFailed, &reason); tErr != nil {
			s.logger.Warn("failed to mark payment order failed", zap.String("order_ref", order.OrderRef), zap.Error(tErr))
		}
		s.logger.Warn("payment gateway rejected order", zap.String("order_ref", order.OrderRef), zap.Error(err))
		return nil, appErrors.WrapAs(appErrors.ErrPaymentGateway, err, "payment gateway could not create the order")
	}

	var checkoutURL *string
	if opened.CheckoutURL != "" {
		checkoutURL = &opened.CheckoutURL
	}
	if err := s.orders.AttachGatewayOrder(ctx, order.OrderRef, opened.GatewayOrderID, checkoutURL); err != nil {
		return nil, persistenceError(err, "failed to record gateway order")
	}
	order.GatewayOrderID = &opened.GatewayOrderID
	order.CheckoutURL = checkoutURL

	session.PaymentOrderRef = order.OrderRef
	if err := s.save(ctx, session); err != nil {
		return nil, err
	}
	s.logger.Info("payment order opened", zap.String("order_ref", order.OrderRef), zap.String("user_id", session.UserID), zap.Int64("amount", order.Amount))
	return order, nil
}

var errAlreadySettled = errors.New("payment order already settled")

// settle moves a created order to status. Expired orders yield
// ErrPaymentTimeout; an order already in status yields errAlreadySettled.
func (s *WorkflowService) settle(ctx context.Context, orderRef string, status models.PaymentOrderStatus, reason *string) (*models.PaymentOrder, error) {
	order, err := s.orders.FindByRef(ctx, orderRef)
	if err != nil {
		return nil, lookupError(err, "payment order not found", "failed to load payment order")
	}

	if order.Expired(s.now()) {
		s.expireOrder(ctx, order)
		return nil, appErrors.Clone(appErrors.ErrPaymentTimeout, "payment order "+orderRef+" expired")
	}
	if order.Status == status {
		return order, errAlreadySettled
	}
	if order.Status != models.PaymentOrderCreated {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("payment order already %s", order.Status))
	}

	updated, err := s.orders.Transition(ctx, orderRef, models.PaymentOrderCreated, status, reason)
	if err != nil {
		if errors.Is(err, repository.ErrStaleStatus) {
			current, findErr := s.orders.FindByRef(ctx, orderRef)
			if findErr == nil && current.Status == status {
				return current, errAlreadySettled
			}
			return nil, appErrors.Clone(appErrors.ErrConflict, "payment order changed concurrently")
		}
		return nil, persistenceError(err, "failed to update payment order")
	}
	return updated, nil
}

func (s *WorkflowService) replayedSuccess(ctx context.Context, orderRef string) (*models.Enrollment, error) {
	enrollment, err := s.enrollments.FindByPaymentOrderRef(ctx, orderRef)
	if err == nil {
		s.metrics.RecordPaymentCallback(string(payment.CallbackSucceeded), "replayed")
		return enrollment, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, persistenceError(err, "failed to load enrollment for payment")
	}
	s.metrics.RecordPaymentCallback(string(payment.CallbackSucceeded), "pending_slot")
	return nil, appErrors.Clone(appErrors.ErrSlotFull, "payment recorded; select another time slot to finish enrolling")
}

func (s *WorkflowService) handleUnpaid(ctx context.Context, orderRef string, status models.PaymentOrderStatus, callback payment.CallbackType, reason string) error {
	var reasonPtr *string
	if reason = strings.TrimSpace(reason); reason != "" {
		reason = truncate(reason, 250)
		reasonPtr = &reason
	}
	order, err := s.settle(ctx, orderRef, status, reasonPtr)
	if err != nil {
		if errors.Is(err, errAlreadySettled) {
			s.metrics.RecordPaymentCallback(string(callback), "replayed")
			return nil
		}
		s.metrics.RecordPaymentCallback(string(callback), callbackOutcome(err))
		return err
	}
	s.metrics.RecordPaymentCallback(string(callback), "recorded")

	session, err := s.sessions.Get(ctx, order.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil
		}
		return persistenceError(err, "failed to load workflow session")
	}
	if session.PaymentOrderRef == orderRef {
		session.PaymentOrderRef = ""
		session.Stage = models.StagePayment
		if err := s.save(ctx, session); err != nil {
			return err
		}
	}
	s.logger.Info("payment not completed", zap.String("order_ref", orderRef), zap.String("status", string(status)), zap.String("reason", reason))
	return nil
}

// sessionForOrder returns the session that opened the order, rebuilding it
// from the order when the session expired or moved on. owned is false when
// the user's stored session belongs to another run and must not be replaced.
func (s *WorkflowService) sessionForOrder(ctx context.Context, order *models.PaymentOrder) (session *models.WorkflowSession, owned bool, err error) {
	live, err := s.sessions.Get(ctx, order.UserID)
	if err != nil && !errors.Is(err, repository.ErrSessionNotFound) {
		return nil, false, persistenceError(err, "failed to load workflow session")
	}
	if err == nil && live.PaymentOrderRef == order.OrderRef && live.Complete() {
		return live, true, nil
	}
	owned = err != nil

	course, err := s.loadCourse(ctx, order.CourseID)
	if err != nil {
		return nil, false, err
	}
	coach, err := s.coaches.GetCoach(ctx, order.CoachID)
	if err != nil {
		return nil, false, err
	}
	slot, err := s.slots.GetSlot(ctx, order.SlotID)
	if err != nil {
		return nil, false, err
	}
	rebuilt := models.NewWorkflowSession(order.UserID, models.UserTypeIndividual, course, s.now().UTC())
	rebuilt.Coach = coach
	rebuilt.Slot = slot
	rebuilt.Stage = models.StagePayment
	s.logger.Info("workflow session rebuilt from payment order",
		zap.String("order_ref", order.OrderRef), zap.String("user_id", order.UserID), zap.Bool("detached", !owned))
	return rebuilt, owned, nil
}

// session loads the user's session and folds in an expired payment order:
// the order is marked expired and the session returns to review.
func (s *WorkflowService) session(ctx context.Context, userID string) (*models.WorkflowSession, error) {
	if userID == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "user is required")
	}
	session, err := s.sessions.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no active enrollment workflow; start one first")
		}
		return nil, persistenceError(err, "failed to load workflow session")
	}
	if session.PaymentOrderRef == "" {
		return session, nil
	}

	order, err := s.orders.FindByRef(ctx, session.PaymentOrderRef)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		session.PaymentOrderRef = ""
	case err != nil:
		return nil, persistenceError(err, "failed to load payment order")
	case order.Expired(s.now()):
		s.expireOrder(ctx, order)
		session.PaymentOrderRef = ""
		if session.Stage == models.StagePayment {
			session.Stage = models.StageReview
		}
	case order.Status != models.PaymentOrderCreated:
		session.PaymentOrderRef = ""
	default:
		return session, nil
	}
	if err := s.save(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *WorkflowService) expireOrder(ctx context.Context, order *models.PaymentOrder) {
	if order.Status != models.PaymentOrderCreated {
		return
	}
	reason := "payment timeout"
	if _, err := s.orders.Transition(ctx, order.OrderRef, models.PaymentOrderCreated, models.PaymentOrderExpired, &reason); err != nil {
		if !errors.Is(err, repository.ErrStaleStatus) {
			s.logger.Warn("failed to expire payment order", zap.String("order_ref", order.OrderRef), zap.Error(err))
		}
		return
	}
	s.metrics.RecordPaymentsExpired(1)
}

func (s *WorkflowService) candidates(ctx context.Context, session *models.WorkflowSession) (*CoachCandidates, error) {
	coaches, err := s.coaches.ListCoaches(ctx, models.CoachFilter{ActiveOnly: true})
	if err != nil {
		return nil, err
	}
	if session.Course == nil || len(session.Course.Tags) == 0 {
		return &CoachCandidates{Coaches: coaches}, nil
	}

	matched := make([]models.Coach, 0, len(coaches))
	for _, coach := range coaches {
		if coach.MatchesAny(session.Course.Tags) {
			matched = append(matched, coach)
		}
	}
	return &CoachCandidates{Coaches: matched, NoMatchingCoach: len(matched) == 0}, nil
}

// ensureUnlocked rejects selection changes while a gateway order is open.
func (s *WorkflowService) ensureUnlocked(session *models.WorkflowSession) error {
	if session.PaymentOrderRef != "" {
		return appErrors.Clone(appErrors.ErrConflict, "payment is in progress; cancel it before changing selections")
	}
	return nil
}

func (s *WorkflowService) loadCourse(ctx context.Context, courseID string) (*models.Course, error) {
	if courseID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "course_id is required")
	}
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		return nil, lookupError(err, "course not found", "failed to load course")
	}
	return course, nil
}

func (s *WorkflowService) save(ctx context.Context, session *models.WorkflowSession) error {
	session.UpdatedAt = s.now().UTC()
	if err := s.sessions.Save(ctx, session); err != nil {
		return persistenceError(err, "failed to save workflow session")
	}
	return nil
}

func (s *WorkflowService) publish(ctx context.Context, event events.Event) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish event", zap.String("type", event.Type), zap.String("event_id", event.ID), zap.Error(err))
	}
}

func (s *WorkflowService) currency(course *models.Course) string {
	if course != nil && course.Currency != "" {
		return course.Currency
	}
	return s.cfg.Currency
}

func guardMessage(session *models.WorkflowSession) string {
	switch session.Stage {
	case models.StageCoursePreview:
		return "select a course before continuing"
	case models.StageCoachSelection:
		if session.NoMatchingCoach {
			return "no coach matches the selected course"
		}
		return "select a coach before continuing"
	case models.StageSlotSelection:
		return "select a time slot before continuing"
	default:
		return "use checkout to complete the payment stage"
	}
}

func callbackOutcome(err error) string {
	switch {
	case err == nil:
		return "enrolled"
	case errors.Is(err, appErrors.ErrPaymentTimeout):
		return "expired"
	case errors.Is(err, appErrors.ErrSlotFull):
		return "slot_full"
	case errors.Is(err, appErrors.ErrNotFound):
		return "unknown_order"
	case errors.Is(err, appErrors.ErrConflict):
		return "conflict"
	default:
		return "error"
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
