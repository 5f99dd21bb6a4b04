package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/coaching-core-api/internal/events"
	"github.com/noah-isme/coaching-core-api/internal/models"
	"github.com/noah-isme/coaching-core-api/internal/repository"
	appErrors "github.com/noah-isme/coaching-core-api/pkg/errors"
)

type payoutRepository interface {
	ListBillable(ctx context.Context, coachID string, from, until time.Time) ([]models.BillableActivity, error)
	Create(ctx context.Context, draft repository.PayoutDraft) error
	FindByID(ctx context.Context, id string) (*models.Payout, error)
	List(ctx context.Context, filter models.PayoutFilter) ([]models.Payout, int, error)
	ListLineItems(ctx context.Context, payoutID string) ([]models.PayoutLineItem, error)
	UpdateStatus(ctx context.Context, change models.PayoutStatusChange) (*models.Payout, error)
}

type payoutSettingsRepository interface {
	FindByCoach(ctx context.Context, coachID string) (*models.PayoutSettings, error)
	FindActiveByCoach(ctx context.Context, coachID string) (*models.PayoutSettings, error)
	Upsert(ctx context.Context, settings *models.PayoutSettings) error
}

type coachLookup interface {
	GetCoach(ctx context.Context, id string) (*models.Coach, error)
}

// PayoutConfig tunes payout generation.
type PayoutConfig struct {
	Location        *time.Location
	DefaultCurrency string
	NumberPrefix    string
}

// PayoutPeriodRequest names a coach and an inclusive date range.
type PayoutPeriodRequest struct {
	CoachID     string    `json:"coach_id" validate:"required"`
	PeriodStart time.Time `json:"period_start" validate:"required"`
	PeriodEnd   time.Time `json:"period_end" validate:"required"`
}

// GeneratePayoutRequest is the operator input for a new payout.
type GeneratePayoutRequest struct {
	PayoutPeriodRequest
	TaxAmount int64  `json:"tax_amount" validate:"min=0"`
	Notes     string `json:"notes" validate:"max=2000"`
}

// UpdatePayoutStatusRequest moves a payout along its lifecycle.
type UpdatePayoutStatusRequest struct {
	Status           string  `json:"status" validate:"required"`
	PaymentReference *string `json:"payment_reference" validate:"omitempty,max=255"`
}

// UpsertPayoutSettingsRequest replaces a coach's payout settings.
type UpsertPayoutSettingsRequest struct {
	CoachID               string                             `json:"-" validate:"required"`
	PaymentRatePerStudent int64                              `json:"payment_rate_per_student" validate:"min=0"`
	Currency              string                             `json:"currency" validate:"omitempty,len=3,alpha"`
	BankDetails           models.Details[models.BankAccount] `json:"bank_details"`
	TaxDetails            models.Details[models.TaxInfo]     `json:"tax_details"`
	IsActive              *bool                              `json:"is_active"`
}

// PayoutService prices coach activity and manages the payout lifecycle.
type PayoutService struct {
	repo      payoutRepository
	settings  payoutSettingsRepository
	coaches   coachLookup
	publisher events.Publisher
	metrics   *MetricsService
	cfg       PayoutConfig
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewPayoutService constructs PayoutService.
func NewPayoutService(repo payoutRepository, settings payoutSettingsRepository, coaches coachLookup, publisher events.Publisher, metrics *MetricsService, cfg PayoutConfig, validate *validator.Validate, logger *zap.Logger) *PayoutService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.DefaultCurrency == "" {
		cfg.DefaultCurrency = "INR"
	}
	if cfg.NumberPrefix == "" {
		cfg.NumberPrefix = "PO"
	}
	return &PayoutService{
		repo:      repo,
		settings:  settings,
		coaches:   coaches,
		publisher: publisher,
		metrics:   metrics,
		cfg:       cfg,
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// CalculatePayout previews what a payout for the period would bill. Without
// active settings the rate is zero; an empty period is a valid result.
func (s *PayoutService) CalculatePayout(ctx context.Context, req PayoutPeriodRequest) (*models.PayoutCalculation, error) {
	calc, _, err := s.calculate(ctx, req)
	return calc, err
}

// GeneratePayout bills every unclaimed activity of the period. The payout,
// its line items and the claim markers are written in one transaction.
func (s *PayoutService) GeneratePayout(ctx context.Context, req GeneratePayoutRequest) (*models.Payout, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid payout payload")
	}
	calc, settings, err := s.calculate(ctx, req.PayoutPeriodRequest)
	if err != nil {
		return nil, err
	}
	if calc.TotalStudents == 0 {
		return nil, appErrors.Clone(appErrors.ErrNoBillableActivity, "no billable activity for coach in period")
	}
	if settings == nil {
		return nil, appErrors.Clone(appErrors.ErrSettingsMissing, "coach has no active payout settings")
	}
	if req.TaxAmount > calc.GrossAmount {
		return nil, appErrors.Clone(appErrors.ErrValidation, "tax_amount cannot exceed gross amount")
	}

	payout := &models.Payout{
		CoachID:               calc.CoachID,
		PeriodStart:           calc.PeriodStart,
		PeriodEnd:             calc.PeriodEnd,
		TotalStudents:         calc.TotalStudents,
		PaymentRatePerStudent: calc.PaymentRatePerStudent,
		GrossAmount:           calc.GrossAmount,
		TaxAmount:             req.TaxAmount,
		NetAmount:             calc.GrossAmount - req.TaxAmount,
		Currency:              calc.Currency,
		Status:                models.PayoutStatusPending,
		CreatedAt:             s.now().UTC(),
	}
	if notes := strings.TrimSpace(req.Notes); notes != "" {
		payout.Notes = &notes
	}

	draft := repository.PayoutDraft{Payout: payout, Activity: calc.Details, NumberPrefix: s.cfg.NumberPrefix}
	start := time.Now()
	err = s.repo.Create(ctx, draft)
	s.metrics.ObserveDBQuery("payout_create", time.Since(start))
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicate):
			return nil, appErrors.WrapAs(appErrors.ErrConflict, err, "a payout already covers this period")
		case errors.Is(err, repository.ErrClaimConflict):
			return nil, appErrors.WrapAs(appErrors.ErrConflict, err, "billable activity was claimed by another payout; retry")
		default:
			return nil, persistenceError(err, "failed to create payout")
		}
	}

	s.metrics.RecordPayoutGenerated(payout.Currency, payout.NetAmount)
	s.publish(ctx, events.New(events.PayoutGenerated, payout))
	s.logger.Info("payout generated",
		zap.String("payout_id", payout.ID),
		zap.String("payout_number", payout.PayoutNumber),
		zap.String("coach_id", payout.CoachID),
		zap.Int("total_students", payout.TotalStudents),
		zap.Int64("net_amount", payout.NetAmount))
	return payout, nil
}

// UpdatePayoutStatus applies an allowed transition as a compare-and-set on
// the status the payout had when it was read.
func (s *PayoutService) UpdatePayoutStatus(ctx context.Context, payoutID string, req UpdatePayoutStatusRequest) (*models.Payout, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid payout status payload")
	}
	next, err := models.ParsePayoutStatus(req.Status)
	if err != nil {
		return nil, validationError(err, "unknown payout status")
	}

	current, err := s.GetPayout(ctx, payoutID)
	if err != nil {
		return nil, err
	}
	if !current.Status.CanTransitionTo(next) {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition,
			fmt.Sprintf("payout cannot move from %s to %s", current.Status, next))
	}

	var ref *string
	if req.PaymentReference != nil {
		if trimmed := strings.TrimSpace(*req.PaymentReference); trimmed != "" {
			ref = &trimmed
		}
	}
	updated, err := s.repo.UpdateStatus(ctx, models.PayoutStatusChange{
		PayoutID:         payoutID,
		From:             current.Status,
		To:               next,
		PaymentReference: ref,
		ChangedAt:        s.now().UTC(),
	})
	if err != nil {
		if errors.Is(err, repository.ErrStaleStatus) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "payout status changed concurrently; reload and retry")
		}
		return nil, persistenceError(err, "failed to update payout status")
	}

	s.metrics.RecordPayoutTransition(string(current.Status), string(next))
	s.publish(ctx, events.New(events.PayoutStatusChanged, map[string]interface{}{
		"payout_id":     updated.ID,
		"payout_number": updated.PayoutNumber,
		"coach_id":      updated.CoachID,
		"from":          current.Status,
		"to":            next,
	}))
	s.logger.Info("payout status changed",
		zap.String("payout_id", payoutID),
		zap.String("from", string(current.Status)),
		zap.String("to", string(next)))
	return updated, nil
}

// GetPayout returns a payout by ID.
func (s *PayoutService) GetPayout(ctx context.Context, id string) (*models.Payout, error) {
	if id == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "payout id is required")
	}
	payout, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "payout not found", "failed to load payout")
	}
	return payout, nil
}

// ListPayouts returns a page of payouts, newest first.
func (s *PayoutService) ListPayouts(ctx context.Context, filter models.PayoutFilter) ([]models.Payout, *models.Pagination, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 100 {
		filter.PageSize = 20
	}
	payouts, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, persistenceError(err, "failed to list payouts")
	}
	if payouts == nil {
		payouts = []models.Payout{}
	}
	return payouts, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// GetLineItems returns the payout's line items, latest activity first.
func (s *PayoutService) GetLineItems(ctx context.Context, payoutID string) ([]models.PayoutLineItem, error) {
	if _, err := s.GetPayout(ctx, payoutID); err != nil {
		return nil, err
	}
	items, err := s.repo.ListLineItems(ctx, payoutID)
	if err != nil {
		return nil, persistenceError(err, "failed to list payout line items")
	}
	if items == nil {
		items = []models.PayoutLineItem{}
	}
	return items, nil
}

// GetCoachSettings returns a coach's payout settings, active or not.
func (s *PayoutService) GetCoachSettings(ctx context.Context, coachID string) (*models.PayoutSettings, error) {
	settings, err := s.settings.FindByCoach(ctx, coachID)
	if err != nil {
		return nil, lookupError(err, "payout settings not found", "failed to load payout settings")
	}
	return settings, nil
}

// UpsertCoachSettings creates or replaces a coach's payout settings.
func (s *PayoutService) UpsertCoachSettings(ctx context.Context, req UpsertPayoutSettingsRequest) (*models.PayoutSettings, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid payout settings payload")
	}
	if _, err := s.coaches.GetCoach(ctx, req.CoachID); err != nil {
		return nil, err
	}

	settings := &models.PayoutSettings{
		CoachID:               req.CoachID,
		PaymentRatePerStudent: req.PaymentRatePerStudent,
		Currency:              strings.ToUpper(req.Currency),
		BankDetails:           req.BankDetails,
		TaxDetails:            req.TaxDetails,
		IsActive:              true,
	}
	if settings.Currency == "" {
		settings.Currency = s.cfg.DefaultCurrency
	}
	if req.IsActive != nil {
		settings.IsActive = *req.IsActive
	}
	if err := s.settings.Upsert(ctx, settings); err != nil {
		return nil, persistenceError(err, "failed to save payout settings")
	}
	s.logger.Info("payout settings saved",
		zap.String("coach_id", settings.CoachID),
		zap.Int64("rate", settings.PaymentRatePerStudent),
		zap.Bool("active", settings.IsActive))
	return settings, nil
}

// calculate returns the preview and the active settings it priced with, or
// nil settings when the coach has none.
func (s *PayoutService) calculate(ctx context.Context, req PayoutPeriodRequest) (*models.PayoutCalculation, *models.PayoutSettings, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, nil, validationError(err, "invalid payout period")
	}
	start := s.date(req.PeriodStart)
	end := s.date(req.PeriodEnd)
	if end.Before(start) {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "period_end must not be before period_start")
	}

	settings, err := s.settings.FindActiveByCoach(ctx, req.CoachID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, nil, persistenceError(err, "failed to load payout settings")
		}
		settings = nil
	}

	until := end.AddDate(0, 0, 1)
	activity, err := s.repo.ListBillable(ctx, req.CoachID, start, until)
	if err != nil {
		return nil, nil, persistenceError(err, "failed to list billable activity")
	}
	if activity == nil {
		activity = []models.BillableActivity{}
	}

	calc := &models.PayoutCalculation{
		CoachID:       req.CoachID,
		PeriodStart:   dateOnly(start),
		PeriodEnd:     dateOnly(end),
		TotalStudents: len(activity),
		Currency:      s.cfg.DefaultCurrency,
		Details:       activity,
	}
	if settings != nil {
		calc.PaymentRatePerStudent = settings.PaymentRatePerStudent
		if settings.Currency != "" {
			calc.Currency = settings.Currency
		}
	}
	calc.GrossAmount = int64(calc.TotalStudents) * calc.PaymentRatePerStudent
	return calc, settings, nil
}

// date truncates t to midnight of its calendar day in the business timezone.
func (s *PayoutService) date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, s.cfg.Location)
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (s *PayoutService) publish(ctx context.Context, event events.Event) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish event", zap.String("type", event.Type), zap.String("event_id", event.ID), zap.Error(err))
	}
}
