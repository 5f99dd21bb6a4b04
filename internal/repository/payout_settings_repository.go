package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/coaching-core-api/internal/models"
)

const payoutSettingsColumns = `coach_id, payment_rate_per_student, currency, bank_details, tax_details, is_active, updated_at`

// PayoutSettingsRepository stores per-coach payout pricing.
type PayoutSettingsRepository struct {
	db *sqlx.DB
}

// NewPayoutSettingsRepository constructs the repository.
func NewPayoutSettingsRepository(db *sqlx.DB) *PayoutSettingsRepository {
	return &PayoutSettingsRepository{db: db}
}

// FindByCoach returns the settings of a coach regardless of their active flag.
func (r *PayoutSettingsRepository) FindByCoach(ctx context.Context, coachID string) (*models.PayoutSettings, error) {
	query := fmt.Sprintf(`SELECT %s FROM payout_settings WHERE coach_id = $1`, payoutSettingsColumns)
	var settings models.PayoutSettings
	if err := r.db.GetContext(ctx, &settings, query, coachID); err != nil {
		return nil, err
	}
	return &settings, nil
}

// FindActiveByCoach returns the coach's settings only when they are active.
func (r *PayoutSettingsRepository) FindActiveByCoach(ctx context.Context, coachID string) (*models.PayoutSettings, error) {
	query := fmt.Sprintf(`SELECT %s FROM payout_settings WHERE coach_id = $1 AND is_active = TRUE`, payoutSettingsColumns)
	var settings models.PayoutSettings
	if err := r.db.GetContext(ctx, &settings, query, coachID); err != nil {
		return nil, err
	}
	return &settings, nil
}

// Upsert creates or replaces the settings of a coach.
func (r *PayoutSettingsRepository) Upsert(ctx context.Context, settings *models.PayoutSettings) error {
	settings.UpdatedAt = time.Now().UTC()
	query := fmt.Sprintf(`INSERT INTO payout_settings (%s)
VALUES (:coach_id, :payment_rate_per_student, :currency, :bank_details, :tax_details, :is_active, :updated_at)
ON CONFLICT (coach_id) DO UPDATE
SET payment_rate_per_student = EXCLUDED.payment_rate_per_student,
    currency = EXCLUDED.currency,
    bank_details = EXCLUDED.bank_details,
    tax_details = EXCLUDED.tax_details,
    is_active = EXCLUDED.is_active,
    updated_at = EXCLUDED.updated_at`, payoutSettingsColumns)
	if _, err := r.db.NamedExecContext(ctx, query, settings); err != nil {
		return fmt.Errorf("upsert payout settings: %w", err)
	}
	return nil
}
