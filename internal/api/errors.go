package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/voltgrid/voltgrid-core/internal/bounds"
	"github.com/voltgrid/voltgrid-core/internal/component"
	"github.com/voltgrid/voltgrid-core/internal/driver"
	"github.com/voltgrid/voltgrid-core/internal/lifecycle"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes. The domain codes mirror the command error taxonomy so
// callers can branch on failure kind without parsing messages.
const (
	ErrCodeBadRequest           = "bad_request"
	ErrCodeNotFound             = "not_found"
	ErrCodeInternal             = "internal_error"
	ErrCodeInvalidArgument      = "invalid_argument"
	ErrCodeUnsupportedOperation = "unsupported_operation"
	ErrCodePreconditionFailed   = "precondition_failed"
	ErrCodeBusy                 = "busy"
	ErrCodeAdapterTimeout       = "adapter_timeout"
	ErrCodeAdapterFailure       = "adapter_failure"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeNotFound writes a 404 error response.
func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeDomainError maps domain errors onto HTTP responses.
func writeDomainError(w http.ResponseWriter, err error) {
	status, code := classifyDomainError(err)
	writeError(w, status, code, err.Error())
}

// classifyDomainError maps a domain error onto an HTTP status and a
// stable error code.
func classifyDomainError(err error) (int, string) {
	switch {
	case errors.Is(err, component.ErrNotFound):
		return http.StatusNotFound, ErrCodeNotFound
	case errors.Is(err, lifecycle.ErrUnsupportedOperation),
		errors.Is(err, bounds.ErrUnsupportedMetric):
		return http.StatusUnprocessableEntity, ErrCodeUnsupportedOperation
	case errors.Is(err, lifecycle.ErrInvalidArgument),
		errors.Is(err, bounds.ErrInvalidBounds):
		return http.StatusBadRequest, ErrCodeInvalidArgument
	case errors.Is(err, lifecycle.ErrPreconditionFailed):
		return http.StatusConflict, ErrCodePreconditionFailed
	case errors.Is(err, lifecycle.ErrBusy):
		return http.StatusConflict, ErrCodeBusy
	case errors.Is(err, lifecycle.ErrAdapterTimeout),
		errors.Is(err, driver.ErrTimeout):
		return http.StatusGatewayTimeout, ErrCodeAdapterTimeout
	case errors.Is(err, lifecycle.ErrAdapterFailure),
		errors.Is(err, driver.ErrFailure),
		errors.Is(err, driver.ErrUnknownComponent):
		return http.StatusBadGateway, ErrCodeAdapterFailure
	default:
		return http.StatusInternalServerError, ErrCodeInternal
	}
}
