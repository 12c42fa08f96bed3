package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	ValidationError     ErrorCode = "validation_error"
	InvalidState        ErrorCode = "invalid_state"
	Unauthorized        ErrorCode = "unauthorized"
	NotFound            ErrorCode = "not_found"
	BadRequest          ErrorCode = "bad_request"
	ProviderUnavailable ErrorCode = "provider_unavailable"
	AlreadyProcessed    ErrorCode = "already_processed"
	StoreCommitFailure  ErrorCode = "store_commit_failure"
	InternalError       ErrorCode = "internal_error"
)

type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
	cause   error
}

func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches on code so wrapped copies of a sentinel still compare equal.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

func (e *AppError) Unwrap() error {
	return e.cause
}

func NewAppError(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

func NewAppErrorf(code ErrorCode, format string, args ...interface{}) *AppError {
	return &AppError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// WithDetails returns a copy so predefined errors are never mutated.
func (e *AppError) WithDetails(details string) *AppError {
	c := *e
	c.Details = details
	return &c
}

// Wrap returns a copy that carries err as its cause.
func (e *AppError) Wrap(err error) *AppError {
	c := *e
	c.cause = err
	if err != nil && c.Details == "" {
		c.Details = err.Error()
	}
	return &c
}

func (e *AppError) HTTPStatus() int {
	switch e.Code {
	case ValidationError, BadRequest:
		return http.StatusBadRequest
	case InvalidState:
		return http.StatusConflict
	case Unauthorized:
		return http.StatusUnauthorized
	case NotFound:
		return http.StatusNotFound
	case ProviderUnavailable:
		return http.StatusServiceUnavailable
	case AlreadyProcessed:
		return http.StatusOK
	default:
		return http.StatusInternalServerError
	}
}

// AsAppError unwraps err to an *AppError, converting unknown errors to internal errors.
func AsAppError(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return ErrInternal.Wrap(err)
}

// Predefined errors for common cases
var (
	ErrValidation          = NewAppError(ValidationError, "validation failed")
	ErrInvalidQuantity     = NewAppError(ValidationError, "quantity must be at least 1")
	ErrInvalidPrice        = NewAppError(ValidationError, "configured price is invalid")
	ErrNotPurchasable      = NewAppError(InvalidState, "target is not purchasable")
	ErrSoldOut             = NewAppError(InvalidState, "not enough tickets remaining")
	ErrUnauthorized        = NewAppError(Unauthorized, "webhook signature verification failed")
	ErrNotFound            = NewAppError(NotFound, "not found")
	ErrTransactionNotFound = NewAppError(NotFound, "transaction not found")
	ErrTargetNotFound      = NewAppError(NotFound, "purchase target not found")
	ErrBadPayload          = NewAppError(BadRequest, "unrecognised webhook payload")
	ErrNoProvider          = NewAppError(ProviderUnavailable, "no payment provider available")
	ErrAlreadyProcessed    = NewAppError(AlreadyProcessed, "transaction already processed")
	ErrStoreCommit         = NewAppError(StoreCommitFailure, "failed to commit ledger changes")
	ErrInternal            = NewAppError(InternalError, "internal error")
)
