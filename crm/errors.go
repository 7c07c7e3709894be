package crm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// ErrorCategory groups CRM failures for logs and audit trails
type ErrorCategory string

const (
	ErrorCategoryAuthentication ErrorCategory = "authentication"
	ErrorCategoryAuthorization  ErrorCategory = "authorization"
	ErrorCategoryValidation     ErrorCategory = "validation"
	ErrorCategoryRateLimit      ErrorCategory = "rate_limit"
	ErrorCategoryNotFound       ErrorCategory = "not_found"
	ErrorCategorySystem         ErrorCategory = "system"
	ErrorCategoryTimeout        ErrorCategory = "timeout"
	ErrorCategoryNetwork        ErrorCategory = "network"
)

// Sentinel errors matched with errors.Is
var (
	ErrMissingAPIKey  = errors.New("FOLLOWUP_BOSS_API_KEY environment variable not set")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrRateLimited    = errors.New("rate limited")
	ErrNotFound       = errors.New("not found")
	ErrConnection     = errors.New("connection failed")
	ErrInvalidRequest = errors.New("invalid request")
	ErrAPI            = errors.New("api request failed")
)

// Error wraps a CRM failure with its category and HTTP status
type Error struct {
	Category   ErrorCategory
	StatusCode int
	Message    string
	Err        error
	Timestamp  time.Time
	Details    map[string]any
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(category ErrorCategory, status int, sentinel error, message string, details map[string]any) *Error {
	return &Error{
		Category:   category,
		StatusCode: status,
		Message:    message,
		Err:        sentinel,
		Timestamp:  time.Now(),
		Details:    details,
	}
}

func invalid(message string) *Error {
	return newError(ErrorCategoryValidation, 0, ErrInvalidRequest, message, nil)
}

// statusError maps a non-2xx response to an Error
func statusError(status int, method, path string) *Error {
	details := map[string]any{"method": method, "path": path}
	switch status {
	case http.StatusUnauthorized:
		return newError(ErrorCategoryAuthentication, status, ErrUnauthorized, "Invalid API key or insufficient permissions", details)
	case http.StatusForbidden:
		return newError(ErrorCategoryAuthorization, status, ErrForbidden, "Access forbidden - check user permissions", details)
	case http.StatusTooManyRequests:
		return newError(ErrorCategoryRateLimit, status, ErrRateLimited, "Rate limit exceeded - please try again later", details)
	case http.StatusNotFound:
		return newError(ErrorCategoryNotFound, status, ErrNotFound, fmt.Sprintf("API request failed: %d", status), details)
	default:
		return newError(ErrorCategorySystem, status, ErrAPI, fmt.Sprintf("API request failed: %d", status), details)
	}
}

// transportError maps a failed round trip to an Error
func transportError(err error, method, path string) *Error {
	details := map[string]any{"method": method, "path": path, "cause": err.Error()}
	category := categorizeError(err)
	return newError(category, 0, fmt.Errorf("%w: %w", ErrConnection, err), "Failed to connect to FollowUp Boss API", details)
}

func categorizeError(err error) ErrorCategory {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorCategoryTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrorCategoryTimeout
	}
	return ErrorCategoryNetwork
}

// Message returns the user-facing message of err.
func Message(err error) string {
	var crmErr *Error
	if errors.As(err, &crmErr) {
		return crmErr.Message
	}
	return err.Error()
}

// LogError writes err with its CRM metadata when available
func LogError(logger zerolog.Logger, err error, msg string) {
	event := logger.Error().Err(err)

	var crmErr *Error
	if errors.As(err, &crmErr) {
		event = event.
			Str("category", string(crmErr.Category)).
			Int("status", crmErr.StatusCode).
			Time("error_time", crmErr.Timestamp)
		for k, v := range crmErr.Details {
			event = event.Interface(k, v)
		}
	}

	event.Msg(msg)
}
