package repository

import (
	"context"
	"errors"
	"time"

	"github.com/noah-isme/coaching-core-api/internal/models"
	appErrors "github.com/noah-isme/coaching-core-api/pkg/errors"
)

const workflowSessionPrefix = "workflow:session:"

// ErrSessionNotFound means the user has no live workflow session.
var ErrSessionNotFound = errors.New("workflow session not found")

// WorkflowSessionRepository keeps per-user workflow state in Redis with a
// sliding TTL.
type WorkflowSessionRepository struct {
	cache *CacheRepository
	ttl   time.Duration
}

// NewWorkflowSessionRepository constructs the repository.
func NewWorkflowSessionRepository(cache *CacheRepository, ttl time.Duration) *WorkflowSessionRepository {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &WorkflowSessionRepository{cache: cache, ttl: ttl}
}

func sessionKey(userID string) string {
	return workflowSessionPrefix + userID
}

// Get loads the session of a user.
func (r *WorkflowSessionRepository) Get(ctx context.Context, userID string) (*models.WorkflowSession, error) {
	var session models.WorkflowSession
	if err := r.cache.Get(ctx, sessionKey(userID), &session); err != nil {
		if errors.Is(err, appErrors.ErrCacheMiss) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return &session, nil
}

// Save stores the session and refreshes its TTL.
func (r *WorkflowSessionRepository) Save(ctx context.Context, session *models.WorkflowSession) error {
	return r.cache.Set(ctx, sessionKey(session.UserID), session, r.ttl)
}

// Delete discards the session of a user.
func (r *WorkflowSessionRepository) Delete(ctx context.Context, userID string) error {
	return r.cache.Delete(ctx, sessionKey(userID))
}
