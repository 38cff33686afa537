// Package httperr defines the error taxonomy for the HTTP surface and the
// single translator that shapes every failure response. Handlers and
// middleware return *Error values; nothing writes its own error JSON.
package httperr

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/verdello/shop-backend/internal/logging"
)

const (
	KindValidation      = "ValidationError"
	KindConflict        = "ConflictError"
	KindUnauthenticated = "Unauthenticated"
	KindUnauthorized    = "Unauthorized"
	KindNotFound        = "NotFound"
	KindInternal        = "InternalError"
)

type Error struct {
	Kind    string
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind string, status int, message string) *Error {
	return &Error{Kind: kind, Status: status, Message: message}
}

func Validation(message string) *Error {
	return New(KindValidation, http.StatusBadRequest, message)
}

// Conflict keeps the source's 400 for duplicate email rather than 409.
func Conflict(message string) *Error {
	return New(KindConflict, http.StatusBadRequest, message)
}

func Unauthenticated(message string) *Error {
	return New(KindUnauthenticated, http.StatusUnauthorized, message)
}

func Unauthorized(message string) *Error {
	return New(KindUnauthorized, http.StatusForbidden, message)
}

func NotFound(message string) *Error {
	return New(KindNotFound, http.StatusNotFound, message)
}

func Internal(message string, err error) *Error {
	return &Error{Kind: KindInternal, Status: http.StatusInternalServerError, Message: message, Err: err}
}

// Handler is the centralized boundary translator: install it as the Echo
// HTTPErrorHandler so typed failures from gates and handlers all produce the
// same JSON shape.
func Handler() echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status := http.StatusInternalServerError
		kind := KindInternal
		message := "internal server error"

		var appErr *Error
		var echoErr *echo.HTTPError
		switch {
		case errors.As(err, &appErr):
			status = appErr.Status
			kind = appErr.Kind
			message = appErr.Message
			if appErr.Err != nil {
				message = message + ": " + appErr.Err.Error()
			}
		case errors.As(err, &echoErr):
			status = echoErr.Code
			message = http.StatusText(echoErr.Code)
			if s, ok := echoErr.Message.(string); ok {
				message = s
			}
			kind = kindForStatus(status)
		default:
			message = err.Error()
		}

		if status >= http.StatusInternalServerError {
			logging.FromContext(c.Request().Context()).Error("request failed",
				"status", status, "kind", kind, "error", err)
		}

		resp := map[string]string{"message": message, "error": kind}
		var writeErr error
		if c.Request().Method == http.MethodHead {
			writeErr = c.NoContent(status)
		} else {
			writeErr = c.JSON(status, resp)
		}
		if writeErr != nil {
			logging.FromContext(c.Request().Context()).Error("error response write failed", "error", writeErr)
		}
	}
}

func kindForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return KindValidation
	case http.StatusUnauthorized:
		return KindUnauthenticated
	case http.StatusForbidden:
		return KindUnauthorized
	case http.StatusNotFound:
		return KindNotFound
	default:
		return KindInternal
	}
}
