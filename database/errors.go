package database

import (
	"errors"

	"gorm.io/gorm"

	apperrors "github.com/kbukum/ctckit/errors"
)

// IsNotFoundError checks if the error is a GORM record-not-found error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// FromDatabase converts a database error to an AppError.
// Missing records become NOT_FOUND; anything else is IO_ERROR.
func FromDatabase(err error, resource, id string) *apperrors.AppError {
	if err == nil {
		return nil
	}
	if IsNotFoundError(err) {
		return apperrors.NotFound(resource, id).WithCause(err)
	}
	return apperrors.IOError("query "+resource, err)
}
