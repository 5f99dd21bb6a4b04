package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/coaching-core-api/internal/models"
)

const (
	coachCacheKey     = "coaches:active"
	coachCachePattern = "coaches:*"
)

type coachRepository interface {
	List(ctx context.Context, filter models.CoachFilter) ([]models.Coach, error)
	FindByID(ctx context.Context, id string) (*models.Coach, error)
}

// CoachDirectoryService reads the coach directory, caching the active list.
type CoachDirectoryService struct {
	repo   coachRepository
	cache  *CacheService
	ttl    time.Duration
	logger *zap.Logger
}

// NewCoachDirectoryService constructs the directory.
func NewCoachDirectoryService(repo coachRepository, cache *CacheService, ttl time.Duration, logger *zap.Logger) *CoachDirectoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CoachDirectoryService{repo: repo, cache: cache, ttl: ttl, logger: logger}
}

// ListCoaches returns coaches matching filter. Only the unfiltered active
// list is cached.
func (s *CoachDirectoryService) ListCoaches(ctx context.Context, filter models.CoachFilter) ([]models.Coach, error) {
	cacheable := filter.ActiveOnly && len(filter.Specialties) == 0
	if cacheable {
		var cached []models.Coach
		if s.cache.Get(ctx, coachCacheKey, &cached) {
			return cached, nil
		}
	}

	coaches, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, persistenceError(err, "failed to list coaches")
	}
	if coaches == nil {
		coaches = []models.Coach{}
	}
	if cacheable {
		s.cache.Set(ctx, coachCacheKey, coaches, s.ttl)
	}
	return coaches, nil
}

// GetCoach returns a coach by ID.
func (s *CoachDirectoryService) GetCoach(ctx context.Context, id string) (*models.Coach, error) {
	coach, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "coach not found", "failed to load coach")
	}
	return coach, nil
}

// Invalidate drops cached directory listings.
func (s *CoachDirectoryService) Invalidate(ctx context.Context) error {
	return s.cache.Invalidate(ctx, coachCachePattern)
}
