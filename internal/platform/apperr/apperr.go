// Package apperr defines the error taxonomy shared by every domain service and
// its mapping onto HTTP responses. Services wrap a sentinel with detail using
// fmt.Errorf("%w: ...") and callers test with errors.Is.
package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

var (
	ErrDuplicateIdentity     = errors.New("duplicate identity")
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrNotFound              = errors.New("not found")
	ErrAlreadyExists         = errors.New("already exists")
	ErrValidation            = errors.New("validation error")
	ErrNoData                = errors.New("no data")
	ErrPredictionUnavailable = errors.New("prediction unavailable")
)

// Stable machine-readable codes returned in error bodies.
const (
	CodeDuplicateIdentity     = "DUPLICATE_IDENTITY"
	CodeInvalidCredentials    = "INVALID_CREDENTIALS"
	CodeUnauthorized          = "UNAUTHORIZED"
	CodeNotFound              = "NOT_FOUND"
	CodeAlreadyExists         = "ALREADY_EXISTS"
	CodeValidation            = "VALIDATION_ERROR"
	CodeNoData                = "NO_DATA"
	CodePredictionUnavailable = "PREDICTION_UNAVAILABLE"
	CodeInternal              = "INTERNAL"
)

// Validation returns an ErrValidation carrying a field-level message.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

type mapping struct {
	sentinel error
	status   int
	code     string
	message  string
}

// The message is the default shown to clients; validation errors keep their
// own detail because it names only the offending field.
var mappings = []mapping{
	{ErrDuplicateIdentity, http.StatusConflict, CodeDuplicateIdentity, "An account with these identifiers already exists"},
	{ErrInvalidCredentials, http.StatusUnauthorized, CodeInvalidCredentials, "Invalid credentials"},
	{ErrUnauthorized, http.StatusForbidden, CodeUnauthorized, "Unauthorized. Caller is not permitted to perform this action."},
	{ErrNotFound, http.StatusNotFound, CodeNotFound, "Resource not found"},
	{ErrAlreadyExists, http.StatusConflict, CodeAlreadyExists, "Resource already exists"},
	{ErrValidation, http.StatusBadRequest, CodeValidation, ""},
	{ErrNoData, http.StatusNotFound, CodeNoData, "No data recorded yet"},
	{ErrPredictionUnavailable, http.StatusServiceUnavailable, CodePredictionUnavailable, "Prediction unavailable"},
}

// Body is the JSON error payload.
type Body struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Status returns the HTTP status and stable code for err. Errors outside the
// taxonomy map to 500/INTERNAL.
func Status(err error) (int, string) {
	for _, m := range mappings {
		if errors.Is(err, m.sentinel) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, CodeInternal
}

// ToHTTP converts err into an *echo.HTTPError with a stable code and message.
// Messages for internal errors are generic so driver errors never reach the
// client.
func ToHTTP(err error) *echo.HTTPError {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}
	for _, m := range mappings {
		if !errors.Is(err, m.sentinel) {
			continue
		}
		msg := m.message
		if msg == "" {
			msg = err.Error()
		}
		return echo.NewHTTPError(m.status, Body{Code: m.code, Message: msg}).SetInternal(err)
	}
	return echo.NewHTTPError(http.StatusInternalServerError, Body{Code: CodeInternal, Message: "internal server error"}).SetInternal(err)
}
