package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/msmeflow/quoteflow/internal/google"
	"github.com/msmeflow/quoteflow/internal/grid"
	"github.com/msmeflow/quoteflow/internal/logging"
	"github.com/msmeflow/quoteflow/internal/quotation"
	"github.com/msmeflow/quoteflow/internal/session"
	"github.com/msmeflow/quoteflow/internal/storage"
	"github.com/msmeflow/quoteflow/internal/upload"
)

// APIError represents a structured API error response
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewBadRequestError creates a 400 Bad Request error
func NewBadRequestError(message string, cause error) *APIError {
	err := &APIError{
		Status:  http.StatusBadRequest,
		Code:    "BAD_REQUEST",
		Message: message,
	}
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

// NewValidationError creates a 400 validation error for a specific field
func NewValidationError(field string) *APIError {
	return &APIError{
		Status:  http.StatusBadRequest,
		Code:    "VALIDATION_ERROR",
		Message: fmt.Sprintf("validation failed for field: %s", field),
	}
}

// NewUnauthorizedError creates a 401 error shown as-is to the user.
func NewUnauthorizedError(message string) *APIError {
	return &APIError{
		Status:  http.StatusUnauthorized,
		Code:    "UNAUTHORIZED",
		Message: message,
	}
}

// NewNotFoundError creates a 404 Not Found error
func NewNotFoundError(resource string, id string) *APIError {
	return &APIError{
		Status:  http.StatusNotFound,
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s not found: %s", resource, id),
	}
}

// NewConflictError creates a 409 Conflict error
func NewConflictError(message string) *APIError {
	return &APIError{
		Status:  http.StatusConflict,
		Code:    "CONFLICT",
		Message: message,
	}
}

// NewInternalError creates a 500 Internal Server Error
func NewInternalError(message string, cause error) *APIError {
	err := &APIError{
		Status:  http.StatusInternalServerError,
		Code:    "INTERNAL_ERROR",
		Message: message,
	}
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

// NewUpstreamError creates a 502 for failures of a hosted collaborator.
func NewUpstreamError(message string, cause error) *APIError {
	err := &APIError{
		Status:  http.StatusBadGateway,
		Code:    "UPSTREAM_ERROR",
		Message: message,
	}
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

// fromError maps the sentinel errors of the service packages to API errors.
// Anything unrecognised is an upstream failure, since every operation
// behind the API ends at a remote service.
func fromError(message string, err error) *APIError {
	var apiErr *APIError
	var verr *upload.ValidationError
	switch {
	case errors.As(err, &apiErr):
		return apiErr
	case errors.As(err, &verr):
		return &APIError{Status: http.StatusBadRequest, Code: "VALIDATION_ERROR", Message: verr.Message}
	case errors.Is(err, session.ErrNoSession):
		return NewUnauthorizedError("Please sign in first")
	case errors.Is(err, google.ErrNoProviderToken):
		return NewUnauthorizedError("Please sign in with Google to use Gmail and Sheets")
	case errors.Is(err, upload.ErrForbidden):
		return &APIError{Status: http.StatusForbidden, Code: "FORBIDDEN", Message: err.Error()}
	case errors.Is(err, storage.ErrNotFound):
		return &APIError{Status: http.StatusNotFound, Code: "NOT_FOUND", Message: message, Details: err.Error()}
	case errors.Is(err, storage.ErrInvalidKey),
		errors.Is(err, grid.ErrOutOfRange),
		errors.Is(err, grid.ErrNotEditing),
		errors.Is(err, quotation.ErrRowOutOfRange),
		errors.Is(err, quotation.ErrColumnOutOfRange),
		errors.Is(err, quotation.ErrNoHeaderRow):
		return NewBadRequestError(message, err)
	case errors.Is(err, grid.ErrNoChanges):
		return NewConflictError(err.Error())
	}
	return NewUpstreamError(message, err)
}

// ErrorHandler renders every error as an APIError. Usage:
// e.HTTPErrorHandler = api.ErrorHandler(logger)
func ErrorHandler(logger *slog.Logger) echo.HTTPErrorHandler {
	logger = logging.WithComponent(logger, "api")
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var apiErr *APIError
		var httpErr *echo.HTTPError
		switch {
		case errors.As(err, &apiErr):
		case errors.As(err, &httpErr):
			apiErr = &APIError{
				Status:  httpErr.Code,
				Code:    "HTTP_ERROR",
				Message: fmt.Sprintf("%v", httpErr.Message),
			}
		default:
			apiErr = &APIError{
				Status:  http.StatusInternalServerError,
				Code:    "UNKNOWN_ERROR",
				Message: "An unexpected error occurred",
				Details: err.Error(),
			}
		}

		if apiErr.Status >= http.StatusInternalServerError {
			logger.Error("request failed",
				slog.String("path", c.Path()),
				slog.String("code", apiErr.Code),
				logging.Err(err))
		}
		_ = c.JSON(apiErr.Status, apiErr)
	}
}
