package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Codes for errors raised by the transport layer rather than a service.
const (
	CodeUnauthenticated  = "UNAUTHENTICATED"
	CodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	CodeBadRequest       = "BAD_REQUEST"
	CodeHTTP             = "HTTP_ERROR"
)

var statusCodes = map[int]string{
	http.StatusBadRequest:          CodeBadRequest,
	http.StatusUnauthorized:        CodeUnauthenticated,
	http.StatusForbidden:           CodeUnauthorized,
	http.StatusNotFound:            CodeNotFound,
	http.StatusMethodNotAllowed:    CodeMethodNotAllowed,
	http.StatusInternalServerError: CodeInternal,
}

// ErrorHandler renders every error as a Body. Errors that are not already
// *echo.HTTPError go through ToHTTP; 5xx responses are logged with their
// internal cause.
func ErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		he := ToHTTP(err)
		body := bodyFor(he)

		if he.Code >= http.StatusInternalServerError {
			cause := he.Internal
			if cause == nil {
				cause = err
			}
			rid, _ := c.Get("request_id").(string)
			logger.Error().Err(cause).
				Str("request_id", rid).
				Str("path", c.Request().URL.Path).
				Msg("request failed")
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(he.Code)
		} else {
			err = c.JSON(he.Code, body)
		}
		if err != nil {
			logger.Error().Err(err).Msg("writing error response")
		}
	}
}

func bodyFor(he *echo.HTTPError) Body {
	switch m := he.Message.(type) {
	case Body:
		return m
	case string:
		return Body{Code: codeForStatus(he.Code), Message: m}
	case error:
		var inner *echo.HTTPError
		if errors.As(m, &inner) {
			return bodyFor(inner)
		}
		return Body{Code: codeForStatus(he.Code), Message: http.StatusText(he.Code)}
	default:
		msg := http.StatusText(he.Code)
		if m != nil {
			msg = fmt.Sprint(m)
		}
		return Body{Code: codeForStatus(he.Code), Message: msg}
	}
}

func codeForStatus(status int) string {
	if code, ok := statusCodes[status]; ok {
		return code
	}
	if status >= http.StatusInternalServerError {
		return CodeInternal
	}
	return CodeHTTP
}
