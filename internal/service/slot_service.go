package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/coaching-core-api/internal/models"
	"github.com/noah-isme/coaching-core-api/internal/repository"
	appErrors "github.com/noah-isme/coaching-core-api/pkg/errors"
)

const maxSlotWindowDays = 90

type timeSlotRepository interface {
	ListAvailable(ctx context.Context, coachID string, from, to time.Time) ([]models.TimeSlot, error)
	FindByID(ctx context.Context, id string) (*models.TimeSlot, error)
	Reserve(ctx context.Context, exec sqlx.ExtContext, id string, now time.Time) error
	Release(ctx context.Context, exec sqlx.ExtContext, id string) error
}

// SlotService is the slot ledger: it lists bookable coach slots and is the
// only component that changes their occupancy.
type SlotService struct {
	repo              timeSlotRepository
	metrics           *MetricsService
	defaultWindowDays int
	logger            *zap.Logger
	now               func() time.Time
}

// NewSlotService constructs the ledger.
func NewSlotService(repo timeSlotRepository, metrics *MetricsService, defaultWindowDays int, logger *zap.Logger) *SlotService {
	if defaultWindowDays <= 0 {
		defaultWindowDays = 14
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SlotService{repo: repo, metrics: metrics, defaultWindowDays: defaultWindowDays, logger: logger, now: time.Now}
}

// ListAvailableSlots returns the coach's slots starting within the next
// windowDays that still have capacity, earliest first.
func (s *SlotService) ListAvailableSlots(ctx context.Context, coachID string, windowDays int) ([]models.TimeSlot, error) {
	if coachID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "coach_id is required")
	}
	if windowDays <= 0 {
		windowDays = s.defaultWindowDays
	}
	if windowDays > maxSlotWindowDays {
		windowDays = maxSlotWindowDays
	}

	from := s.now().UTC()
	to := from.AddDate(0, 0, windowDays)
	start := time.Now()
	slots, err := s.repo.ListAvailable(ctx, coachID, from, to)
	s.metrics.ObserveDBQuery("slot_list_available", time.Since(start))
	if err != nil {
		return nil, persistenceError(err, "failed to list available slots")
	}
	if slots == nil {
		slots = []models.TimeSlot{}
	}
	return slots, nil
}

// GetSlot returns a slot by ID.
func (s *SlotService) GetSlot(ctx context.Context, id string) (*models.TimeSlot, error) {
	slot, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "time slot not found", "failed to load time slot")
	}
	return slot, nil
}

// ReserveSlot takes one unit of capacity. Concurrent callers on the same slot
// are serialized by the database; at most max_bookings of them succeed.
func (s *SlotService) ReserveSlot(ctx context.Context, id string) error {
	err := s.repo.Reserve(ctx, nil, id, s.now().UTC())
	s.metrics.RecordSlotReservation(reservationOutcome(err))
	if err != nil {
		return reservationError(err, id)
	}
	s.logger.Info("slot reserved", zap.String("slot_id", id))
	return nil
}

// ReleaseSlot gives back one unit of capacity, for operator corrections and
// cancelled bookings.
func (s *SlotService) ReleaseSlot(ctx context.Context, id string) error {
	if err := s.repo.Release(ctx, nil, id); err != nil {
		if errors.Is(err, repository.ErrNotReserved) {
			return appErrors.Clone(appErrors.ErrConflict, "time slot has no bookings to release")
		}
		return persistenceError(err, "failed to release time slot")
	}
	s.logger.Info("slot released", zap.String("slot_id", id))
	return nil
}

func reservationOutcome(err error) string {
	switch {
	case err == nil:
		return "reserved"
	case errors.Is(err, repository.ErrNoCapacity):
		return "full"
	case errors.Is(err, sql.ErrNoRows):
		return "missing"
	default:
		return "error"
	}
}

func reservationError(err error, slotID string) error {
	switch {
	case errors.Is(err, repository.ErrNoCapacity):
		return appErrors.WrapAs(appErrors.ErrSlotFull, err, "time slot "+slotID+" is fully booked or already started")
	case errors.Is(err, sql.ErrNoRows):
		return appErrors.Clone(appErrors.ErrNotFound, "time slot not found")
	default:
		return persistenceError(err, "failed to reserve time slot")
	}
}
