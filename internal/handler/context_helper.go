package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/coaching-core-api/internal/middleware"
	"github.com/noah-isme/coaching-core-api/internal/models"
	appErrors "github.com/noah-isme/coaching-core-api/pkg/errors"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	return middleware.Claims(c)
}

// currentUser returns the authenticated caller or an unauthorized error.
func currentUser(c *gin.Context) (*models.JWTClaims, error) {
	claims := claimsFromContext(c)
	if claims == nil || claims.UserID == "" {
		return nil, appErrors.ErrUnauthorized
	}
	return claims, nil
}

func queryInt(c *gin.Context, key string, fallback int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0, appErrors.Clone(appErrors.ErrValidation, key+" must be a non-negative integer")
	}
	return value, nil
}
