// Package apperror provides structured error handling following RFC 7807 Problem Details.
// All business errors must use AppError for consistent API responses.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes grouped by the failure classes the back-office distinguishes.
const (
	// System errors (5xx)
	CodeInternal = "INTERNAL_ERROR"
	CodeDatabase = "DATABASE_ERROR"
	CodeTimeout  = "TIMEOUT_ERROR"

	// Validation errors (400 / 409 / 422)
	CodeValidation             = "VALIDATION_ERROR"
	CodeDuplicate              = "DUPLICATE_ENTRY"
	CodeMissingPrerequisite    = "MISSING_PREREQUISITE"
	CodeInvalidStateTransition = "INVALID_STATE_TRANSITION"

	// Data integrity (422). Recorded as a reconciliation fault, never auto-corrected.
	CodeDataIntegrity = "DATA_INTEGRITY"

	// Dependency failures (424)
	CodeMissingPrice = "MISSING_PRICE"
	CodeDependency   = "DEPENDENCY_ERROR"

	// Authorization errors (401, 403)
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"

	// Not found (404)
	CodeNotFound = "NOT_FOUND"

	// Idempotency (409, 422)
	CodeIdempotencyConflict = "IDEMPOTENCY_CONFLICT"
	CodeIdempotencyMismatch = "IDEMPOTENCY_MISMATCH"
)

// Integrity kinds carried in Details["kind"] of a DATA_INTEGRITY error.
const (
	IntegrityFIFOShortfall    = "fifo_shortfall"
	IntegrityIdentityMismatch = "identity_mismatch"
	IntegrityOrphanedLayer    = "orphaned_layer"
)

// AppError is the standard error type for the platform.
// It implements error interface and provides structured details for API responses.
type AppError struct {
	// Code is a machine-readable error identifier
	Code string `json:"code"`

	// Message is a human-readable error description
	Message string `json:"message"`

	// Details contains additional context (field errors, volumes, etc.)
	Details map[string]any `json:"details,omitempty"`

	// HTTPStatus is the suggested HTTP status code
	HTTPStatus int `json:"-"`

	// Err is the underlying error (not exposed in JSON)
	Err error `json:"-"`
}

// Error implements error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail adds a key-value pair to error details
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause sets the underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Err = err
	return e
}

// --- Factory functions ---

// NewValidation creates a validation error (400)
func NewValidation(message string) *AppError {
	return &AppError{
		Code:       CodeValidation,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewMissingPrerequisite is returned when an earlier leg of the daily workflow is absent.
func NewMissingPrerequisite(message string) *AppError {
	return &AppError{
		Code:       CodeMissingPrerequisite,
		Message:    message,
		HTTPStatus: http.StatusUnprocessableEntity,
	}
}

// NewInvalidTransition creates a workflow transition error (422)
func NewInvalidTransition(from, to string) *AppError {
	return &AppError{
		Code:       CodeInvalidStateTransition,
		Message:    fmt.Sprintf("cannot move from %s to %s", from, to),
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"from": from, "to": to},
	}
}

// NewNotFound creates a not found error (404)
func NewNotFound(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", entity),
		HTTPStatus: http.StatusNotFound,
		Details:    map[string]any{"entity": entity, "id": id},
	}
}

// NewDuplicate creates a duplicate entry error (409)
func NewDuplicate(entity, field, value string) *AppError {
	return &AppError{
		Code:       CodeDuplicate,
		Message:    fmt.Sprintf("%s with this %s already exists", entity, field),
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"entity": entity, "field": field, "value": value},
	}
}

// NewDataIntegrity creates an integrity violation of the given kind (422).
func NewDataIntegrity(kind, message string) *AppError {
	return &AppError{
		Code:       CodeDataIntegrity,
		Message:    message,
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"kind": kind},
	}
}

// NewFIFOShortfall reports that the tank's cost layers cannot cover the dispensed volume.
func NewFIFOShortfall(tankID string, needed, available string) *AppError {
	return NewDataIntegrity(IntegrityFIFOShortfall, "Insufficient FIFO inventory layers for dispensed volume").
		WithDetail("tank_id", tankID).
		WithDetail("needed_liters", needed).
		WithDetail("available_liters", available)
}

// NewMissingPrice is returned when no active selling price exists (424).
func NewMissingPrice(stationID, fuelType, asOf string) *AppError {
	return &AppError{
		Code:       CodeMissingPrice,
		Message:    "No active selling price for fuel type",
		HTTPStatus: http.StatusFailedDependency,
		Details:    map[string]any{"station_id": stationID, "fuel_type": fuelType, "as_of": asOf},
	}
}

// NewDependency wraps a failed external lookup (424).
func NewDependency(message string, err error) *AppError {
	return &AppError{
		Code:       CodeDependency,
		Message:    message,
		HTTPStatus: http.StatusFailedDependency,
		Err:        err,
	}
}

// NewTimeout creates a timeout error (504)
func NewTimeout(message string, err error) *AppError {
	return &AppError{
		Code:       CodeTimeout,
		Message:    message,
		HTTPStatus: http.StatusGatewayTimeout,
		Err:        err,
	}
}

// NewInternal creates an internal server error (hides details from client)
func NewInternal(err error) *AppError {
	return &AppError{
		Code:       CodeInternal,
		Message:    "Internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewUnauthorized creates an authentication error (401)
func NewUnauthorized(message string) *AppError {
	return &AppError{
		Code:       CodeUnauthorized,
		Message:    message,
		HTTPStatus: http.StatusUnauthorized,
	}
}

// NewForbidden creates an authorization error (403)
func NewForbidden(message string) *AppError {
	return &AppError{
		Code:       CodeForbidden,
		Message:    message,
		HTTPStatus: http.StatusForbidden,
	}
}

// NewIdempotencyConflict reports a key still being processed by another request (409)
func NewIdempotencyConflict(key string) *AppError {
	return &AppError{
		Code:       CodeIdempotencyConflict,
		Message:    "Request with this idempotency key is already in progress",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"idempotency_key": key},
	}
}

// NewIdempotencyMismatch reports a key reused for a different request (422)
func NewIdempotencyMismatch(key string) *AppError {
	return &AppError{
		Code:       CodeIdempotencyMismatch,
		Message:    "Idempotency key was already used for a different request",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"idempotency_key": key},
	}
}

// --- Helper functions ---

// AsAppError extracts AppError from error chain
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// GetHTTPStatus returns appropriate HTTP status for any error
func GetHTTPStatus(err error) int {
	if appErr, ok := AsAppError(err); ok {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code string) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == code
	}
	return false
}

// IsNotFound checks if error is CodeNotFound
func IsNotFound(err error) bool {
	return HasCode(err, CodeNotFound)
}

// IsDataIntegrity checks if error is CodeDataIntegrity
func IsDataIntegrity(err error) bool {
	return HasCode(err, CodeDataIntegrity)
}

// IsDependency reports dependency failures (missing price, lookup errors).
func IsDependency(err error) bool {
	return HasCode(err, CodeMissingPrice) || HasCode(err, CodeDependency)
}

// IsUserError reports errors caused by request input rather than the system.
func IsUserError(err error) bool {
	appErr, ok := AsAppError(err)
	if !ok {
		return false
	}
	switch appErr.Code {
	case CodeValidation, CodeDuplicate, CodeMissingPrerequisite, CodeInvalidStateTransition, CodeNotFound:
		return true
	}
	return false
}

// IntegrityKind returns the DATA_INTEGRITY sub-kind or "".
func IntegrityKind(err error) string {
	appErr, ok := AsAppError(err)
	if !ok || appErr.Code != CodeDataIntegrity {
		return ""
	}
	kind, _ := appErr.Details["kind"].(string)
	return kind
}
