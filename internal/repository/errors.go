package repository

import (
	"database/sql"
	"errors"

	ierr "github.com/cabfleet/cabfleet/internal/errors"
	"github.com/lib/pq"
)

const (
	pqSerializationFailure = "40001"
	pqUniqueViolation      = "23505"
)

// wrapDBError maps driver errors onto the sentinel taxonomy. Serialization
// failures surface as version conflicts so callers can retry; everything
// else is an infrastructure error.
func wrapDBError(err error, hint string) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return ierr.WithError(err).
			WithHint(hint).
			Mark(ierr.ErrNotFound)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case pqSerializationFailure:
			return ierr.WithError(err).
				WithHint(hint).
				Mark(ierr.ErrVersionConflict)
		case pqUniqueViolation:
			return ierr.WithError(err).
				WithHint(hint).
				Mark(ierr.ErrAlreadyExists)
		}
	}

	return ierr.WithError(err).
		WithHint(hint).
		Mark(ierr.ErrDatabase)
}
