package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed engine error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches errors by code so cloned sentinels still satisfy errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Non-fatal condition codes. They are recorded on results, never returned.
const (
	CodeMergeConflict       = "MERGE_CONFLICT"
	CodeUnknownQuestion     = "UNKNOWN_QUESTION"
	CodeTaskEvaluationError = "TASK_EVALUATION_ERROR"
)

// Predefined errors for common scenarios.
var (
	ErrNotFound     = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrUnauthorized = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrForbidden    = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrValidation   = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal     = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss    = New("CACHE_MISS", http.StatusNotFound, "cache entry not found")
	ErrConflict     = New("CONFLICT", http.StatusConflict, "operation already in progress")

	ErrCatalogInvalid          = New("CATALOG_INVALID", http.StatusInternalServerError, "task catalog is invalid")
	ErrCrossGradeContamination = New("CROSS_GRADE_CONTAMINATION", http.StatusInternalServerError, "answer records from different grades were mixed")
	ErrAggregateChildMismatch  = New("AGGREGATE_CHILD_COUNT_MISMATCH", http.StatusInternalServerError, "aggregate child counts do not sum to child total")
	ErrStaleAggregate          = New("STALE_AGGREGATE", http.StatusConflict, "aggregate could not be computed")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}
