package util

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes used across the service.
const (
	CodeNotFound            = "NOT_FOUND"
	CodeInvalidTransition   = "INVALID_TRANSITION"
	CodeAllocationExhausted = "ALLOCATION_EXHAUSTED"
	CodeStoreCorruption     = "STORE_CORRUPTION"
	CodeLockTimeout         = "LOCK_TIMEOUT"
	CodeVersionConflict     = "VERSION_CONFLICT"
	CodeValidationFailed    = "VALIDATION_FAILED"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeInternal            = "INTERNAL_ERROR"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidationFailed, message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewInvalidTransition(from, to string) error {
	return &DomainError{
		Code:       CodeInvalidTransition,
		Message:    fmt.Sprintf("cannot transition ticket from %q to %q", from, to),
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"from": from, "to": to},
	}
}

func NewAllocationExhausted(err error) error {
	return &DomainError{
		Code:       CodeAllocationExhausted,
		Message:    "id allocation retries exhausted",
		HTTPStatus: http.StatusServiceUnavailable,
		Err:        err,
	}
}

func NewStoreCorruption(key string, err error) error {
	return &DomainError{
		Code:       CodeStoreCorruption,
		Message:    fmt.Sprintf("stored entry %q failed to deserialize", key),
		HTTPStatus: http.StatusInternalServerError,
		Details:    map[string]any{"key": key},
		Err:        err,
	}
}

func NewLockTimeout(name string) error {
	return &DomainError{
		Code:       CodeLockTimeout,
		Message:    fmt.Sprintf("lock %q not acquired within wait budget", name),
		HTTPStatus: http.StatusServiceUnavailable,
		Details:    map[string]any{"lock": name},
	}
}

func NewVersionConflict(id string, expected, actual int64) error {
	return &DomainError{
		Code:       CodeVersionConflict,
		Message:    fmt.Sprintf("ticket %s was modified concurrently", id),
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"id": id, "expected_version": expected, "actual_version": actual},
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// IsCode reports whether err is a DomainError carrying the given code.
func IsCode(err error, code string) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func MapError(err error) error {
	return ToDomainError(err)
}
