package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

const (
	CodeInsufficientBalance = "PAY_001"
	CodeInvalidAmount       = "PAY_002"
	CodeWalletNotFound      = "WAL_001"
	CodeBodyTooLarge        = "REQ_001"
	CodeRequestInFlight     = "IDEM_001"
	CodeKeyReused           = "IDEM_002"
	CodeRateLimited         = "RATE_001"
	CodeInternal            = "SYS_000"
	CodeStorageUnavailable  = "SYS_001"
	CodeBusy                = "SYS_002"
	CodeCommitConflict      = "SYS_004"
)

// ---- Ledger Business Logic (PAY / WAL) ----

// ErrInsufficientBalance carries the amounts so callers can show them.
func ErrInsufficientBalance(required, available int64) *AppError {
	return New(CodeInsufficientBalance,
		fmt.Sprintf("Insufficient balance. Required: %d, Available: %d", required, available),
		http.StatusPaymentRequired)
}

func ErrInvalidAmount() *AppError {
	return New(CodeInvalidAmount, "Invalid amount", http.StatusBadRequest)
}

func ErrWalletNotFound(cardUID string) *AppError {
	return New(CodeWalletNotFound, fmt.Sprintf("wallet for card %s not found", cardUID), http.StatusNotFound)
}

// ---- Requests (REQ / IDEM) ----

func ErrBodyTooLarge() *AppError {
	return New(CodeBodyTooLarge, "Request body too large", http.StatusRequestEntityTooLarge)
}

// ErrRequestInFlight means an earlier request with the same Idempotency-Key
// has not finished yet.
func ErrRequestInFlight() *AppError {
	return New(CodeRequestInFlight, "A request with this Idempotency-Key is still in progress", http.StatusConflict)
}

// ErrKeyReused means the Idempotency-Key was first used with a different body.
func ErrKeyReused() *AppError {
	return New(CodeKeyReused, "Idempotency-Key was already used for a different request", http.StatusUnprocessableEntity)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New(CodeRateLimited, "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

func ErrStorageUnavailable(err error) *AppError {
	return Wrap(CodeStorageUnavailable, "Storage unavailable", http.StatusServiceUnavailable, err)
}

func ErrBusy(err error) *AppError {
	return Wrap(CodeBusy, "Wallet is busy, retry later", http.StatusServiceUnavailable, err)
}

func ErrCommitConflict(err error) *AppError {
	return Wrap(CodeCommitConflict, "Commit conflict, retry later", http.StatusConflict, err)
}

// InternalError hides an unexpected failure behind a generic 500.
func InternalError(err error) *AppError {
	return Wrap(CodeInternal, "Internal server error", http.StatusInternalServerError, err)
}

// Validation returns a PAY_002-style validation error.
func Validation(message string) *AppError {
	return New(CodeInvalidAmount, message, http.StatusBadRequest)
}

// HasCode reports whether err is an AppError with the given code.
func HasCode(err error, code string) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// IsRetryable reports whether the caller may retry the same request unchanged.
func IsRetryable(err error) bool {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return false
	}
	switch appErr.Code {
	case CodeStorageUnavailable, CodeBusy, CodeCommitConflict, CodeRequestInFlight:
		return true
	}
	return false
}
