package models

import (
	"errors"
	"fmt"
)

// Domain specific sentinel errors.
var (
	ErrNotFound        = errors.New("requested item not found")
	ErrConflict        = errors.New("item already exists or conflict")
	ErrUnauthenticated = errors.New("authentication required or invalid credentials")
	ErrForbidden       = errors.New("action forbidden")
	ErrBadRequest      = errors.New("bad request")
	ErrValidation      = errors.New("validation failed")
	ErrTerminalJob     = errors.New("job is terminal")
)

// Stable error codes carried verbatim in HTTP and WS payloads.
const (
	CodeValidationError        = "VALIDATION_ERROR"
	CodeUnauthorized           = "UNAUTHORIZED"
	CodeGateFail               = "GATE_FAIL"
	CodeMapperFailed           = "MAPPER_FAILED"
	CodeProviderFailed         = "PROVIDER_FAILED"
	CodeSearchFailed           = "SEARCH_FAILED"
	CodeStaleRunning           = "STALE_RUNNING"
	CodeResultMissing          = "RESULT_MISSING"
	CodeTicketStoreUnavailable = "WS_TICKET_REDIS_UNAVAILABLE"
)

// StageError is a typed pipeline failure. Fatal errors terminate the job
// with Code as the persisted error kind; recoverable ones yield a stage
// fallback and let the pipeline continue.
type StageError struct {
	Code    string
	Route   Route
	Message string
	Fatal   bool
	Cause   error
}

func (e *StageError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *StageError) Unwrap() error { return e.Cause }

// NewStageError builds a fatal stage error with the given stable code.
func NewStageError(code string, route Route, message string, cause error) *StageError {
	return &StageError{Code: code, Route: route, Message: message, Fatal: true, Cause: cause}
}

// AsStageError extracts a StageError from an error chain, or wraps the error
// as a generic SEARCH_FAILED.
func AsStageError(err error, route Route) *StageError {
	var se *StageError
	if errors.As(err, &se) {
		return se
	}
	return NewStageError(CodeSearchFailed, route, err.Error(), err)
}
