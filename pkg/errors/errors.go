package errors

import (
	"errors"
	"net/http"
)

// AppError carries a client-safe code and message together with the HTTP
// status it renders with. Internal holds the cause for logs and never
// serialises.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

// New builds an AppError from scratch.
func New(code, message string, statusCode int) *AppError {
	return &AppError{Code: code, Message: message, StatusCode: statusCode}
}

func (e *AppError) Error() string {
	switch {
	case e == nil:
		return "<nil>"
	case e.Internal != nil:
		return e.Message + ": " + e.Internal.Error()
	}
	return e.Message
}

// Unwrap exposes the cause so errors.Is sees through wrapped sentinels.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Internal
}

// WithInternal copies the error and attaches a cause, leaving the shared
// sentinels immutable.
func (e *AppError) WithInternal(err error) *AppError {
	if e == nil {
		return nil
	}

	clone := *e
	clone.Internal = err
	return &clone
}

// Shared sentinels. Handlers and middleware compare against these; the
// domain-specific ones double as idempotency markers.
var (
	ErrUnauthorized   = New("UNAUTHORIZED", "Authentication required", http.StatusUnauthorized)
	ErrForbidden      = New("FORBIDDEN", "Access denied", http.StatusForbidden)
	ErrNotFound       = New("NOT_FOUND", "Resource not found", http.StatusNotFound)
	ErrBadRequest     = New("BAD_REQUEST", "Invalid request", http.StatusBadRequest)
	ErrInternalServer = New("INTERNAL_SERVER_ERROR", "Internal server error", http.StatusInternalServerError)

	// ErrUnknownEventType rejects appends whose code is missing from the
	// catalog or marked inactive; callers cannot distinguish the two cases.
	ErrUnknownEventType = New("events.unknown_type", "Event type does not exist or is inactive", http.StatusBadRequest)
	ErrMissingTarget    = New("events.missing_target", "Event type requires a target reference", http.StatusBadRequest)

	// ErrDuplicateFeedItem and ErrDuplicateMilestone mark benign replays.
	// Services swallow them; they never reach a producer.
	ErrDuplicateFeedItem  = New("feed.duplicate_item", "Feed item already exists for this user and event", http.StatusConflict)
	ErrDuplicateMilestone = New("milestones.duplicate", "Milestone already awarded", http.StatusConflict)
	ErrCacheUnavailable   = New("cache.unavailable", "Cache backend unavailable", http.StatusServiceUnavailable)
)

// Wrap turns any error into an internal AppError with the given client
// message, keeping the cause for logs.
func Wrap(err error, message string) *AppError {
	wrapped := New("INTERNAL_ERROR", message, http.StatusInternalServerError)
	wrapped.Internal = err
	return wrapped
}

// FromError coerces err to an AppError. Unknown errors become the generic
// internal error with the cause attached, so raw driver text never renders.
func FromError(err error) *AppError {
	var appErr *AppError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &appErr):
		return appErr
	default:
		return ErrInternalServer.WithInternal(err)
	}
}

// NewBadRequest keeps the BAD_REQUEST code but swaps in a message naming
// the offending field.
func NewBadRequest(message string) *AppError {
	return New(ErrBadRequest.Code, message, ErrBadRequest.StatusCode)
}

// NewNotFound builds a not-found error naming the missing resource.
func NewNotFound(message string) *AppError {
	return New(ErrNotFound.Code, message, ErrNotFound.StatusCode)
}
