package service

import (
	"database/sql"
	"errors"

	appErrors "github.com/noah-isme/coaching-core-api/pkg/errors"
)

func persistenceError(err error, message string) error {
	return appErrors.WrapAs(appErrors.ErrPersistence, err, message)
}

// lookupError maps a missing row to NOT_FOUND and anything else to a
// retryable persistence error.
func lookupError(err error, notFound, failed string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, notFound)
	}
	return persistenceError(err, failed)
}

func validationError(err error, message string) error {
	return appErrors.WrapAs(appErrors.ErrValidation, err, message)
}
