// Package scheduler runs periodic maintenance for the enrollment workflow.
package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/coaching-core-api/internal/models"
)

type paymentExpirer interface {
	ExpireStalePayments(ctx context.Context) ([]models.PaymentOrder, error)
}

// Scheduler expires payment orders whose callback never arrived.
type Scheduler struct {
	payments paymentExpirer
	interval time.Duration
	logger   *zap.Logger
}

// New constructs a Scheduler. interval <= 0 falls back to one minute.
func New(payments paymentExpirer, interval time.Duration, logger *zap.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{payments: payments, interval: interval, logger: logger}
}

// Start blocks until ctx is cancelled, sweeping once per interval.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("scheduler started", zap.Duration("interval", s.interval))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	expired, err := s.payments.ExpireStalePayments(ctx)
	if err != nil {
		s.logger.Error("failed to expire payment orders", zap.Error(err))
		return
	}

	for _, order := range expired {
		s.logger.Info("payment order expired",
			zap.String("order_ref", order.OrderRef),
			zap.String("user_id", order.UserID),
			zap.String("slot_id", order.SlotID),
		)
	}
}
