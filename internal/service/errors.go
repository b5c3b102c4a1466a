package service

import (
	"context"
	"errors"
	"fmt"

	"smartpay/pkg/apperror"

	"github.com/jackc/pgx/v5/pgconn"
)

// PostgreSQL SQLSTATEs the ledger treats as transient.
const (
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
	sqlStateLockNotAvailable     = "55P03"
)

// storageErr maps an infrastructure failure to the error code callers see.
// AppErrors already produced further down pass through unchanged.
func storageErr(op string, err error) error {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	wrapped := fmt.Errorf("%s: %w", op, err)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case sqlStateSerializationFailure, sqlStateDeadlockDetected:
			return apperror.ErrCommitConflict(wrapped)
		case sqlStateLockNotAvailable:
			return apperror.ErrBusy(wrapped)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return apperror.ErrBusy(wrapped)
	}
	return apperror.ErrStorageUnavailable(wrapped)
}
