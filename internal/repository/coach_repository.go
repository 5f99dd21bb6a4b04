package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/coaching-core-api/internal/models"
)

const coachColumns = `id, name, email, specialties, rating, experience_label, active, created_at`

// CoachRepository is the read side of the coach directory.
type CoachRepository struct {
	db *sqlx.DB
}

// NewCoachRepository constructs the repository.
func NewCoachRepository(db *sqlx.DB) *CoachRepository {
	return &CoachRepository{db: db}
}

// List returns coaches ordered by rating. Specialty filters match case-insensitively.
func (r *CoachRepository) List(ctx context.Context, filter models.CoachFilter) ([]models.Coach, error) {
	var conditions []string
	var args []interface{}

	if filter.ActiveOnly {
		conditions = append(conditions, "active = TRUE")
	}
	if len(filter.Specialties) > 0 {
		lowered := make([]string, 0, len(filter.Specialties))
		for _, s := range filter.Specialties {
			lowered = append(lowered, strings.ToLower(strings.TrimSpace(s)))
		}
		args = append(args, pq.Array(lowered))
		conditions = append(conditions, fmt.Sprintf("EXISTS (SELECT 1 FROM unnest(specialties) AS s WHERE lower(s) = ANY($%d))", len(args)))
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}
	query := fmt.Sprintf(`SELECT %s FROM coaches%s ORDER BY rating DESC, name ASC`, coachColumns, clause)

	var coaches []models.Coach
	if err := r.db.SelectContext(ctx, &coaches, query, args...); err != nil {
		return nil, fmt.Errorf("list coaches: %w", err)
	}
	return coaches, nil
}

// FindByID returns a coach by its ID.
func (r *CoachRepository) FindByID(ctx context.Context, id string) (*models.Coach, error) {
	query := fmt.Sprintf(`SELECT %s FROM coaches WHERE id = $1`, coachColumns)
	var coach models.Coach
	if err := r.db.GetContext(ctx, &coach, query, id); err != nil {
		return nil, err
	}
	return &coach, nil
}
