package service

import (
	"context"
	"errors"
	"fmt"

	"stockpos/internal/apierror"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// runTx executes fn inside a GORM transaction when db is available,
// or calls fn(nil) directly when db is nil (unit test mode). Errors that are
// not already typed come back as internal failures.
func runTx(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	if db == nil {
		return apierror.Internal(fn(nil))
	}
	return apierror.Internal(db.WithContext(ctx).Transaction(fn))
}

// storeErr translates a repository error. Missing rows become NotFound with
// the given message and duplicate keys become Conflict.
func storeErr(err error, format string, args ...any) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apierror.NotFound(format, args...)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return apierror.Conflict("%s already exists", subject(format, args...))
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return apierror.Conflict("%s is still referenced", subject(format, args...))
	default:
		return apierror.Internal(err)
	}
}

// subject strips the trailing " not found" from a NotFound message so the
// same text can name the record in other errors.
func subject(format string, args ...any) string {
	s := fmt.Sprintf(format, args...)
	const suffix = " not found"
	if len(s) > len(suffix) && s[len(s)-len(suffix):] == suffix {
		return s[:len(s)-len(suffix)]
	}
	return s
}

// logFailure logs internal failures with their cause; typed domain failures
// are routine and only logged at debug level.
func logFailure(op string, err error, fields map[string]interface{}) {
	if apierror.KindOf(err) == apierror.KindInternal {
		log.Error().Err(err).Str("op", op).Fields(fields).Msg("operation failed")
		return
	}
	log.Debug().Err(err).Str("op", op).Fields(fields).Msg("operation rejected")
}
