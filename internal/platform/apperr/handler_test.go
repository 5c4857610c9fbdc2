package apperr

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

func render(t *testing.T, err error) (*httptest.ResponseRecorder, Body, string) {
	t.Helper()
	var logs bytes.Buffer
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/history", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	ErrorHandler(zerolog.New(&logs))(err, c)

	var body Body
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return rec, body, logs.String()
}

func TestErrorHandler_Sentinel(t *testing.T) {
	rec, body, logs := render(t, fmt.Errorf("%w: care link", ErrAlreadyExists))
	if rec.Code != http.StatusConflict || body.Code != CodeAlreadyExists {
		t.Errorf("unexpected %d %+v", rec.Code, body)
	}
	if logs != "" {
		t.Errorf("4xx should not be logged, got %s", logs)
	}
}

func TestErrorHandler_StringMessage(t *testing.T) {
	rec, body, _ := render(t, echo.NewHTTPError(http.StatusUnauthorized, "invalid token"))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
	if body.Code != CodeUnauthenticated || body.Message != "invalid token" {
		t.Errorf("unexpected body %+v", body)
	}
}

func TestErrorHandler_RouteNotFound(t *testing.T) {
	rec, body, _ := render(t, echo.ErrNotFound)
	if rec.Code != http.StatusNotFound || body.Code != CodeNotFound {
		t.Errorf("unexpected %d %+v", rec.Code, body)
	}
}

func TestErrorHandler_InternalIsLoggedNotExposed(t *testing.T) {
	rec, body, logs := render(t, errors.New("pq: connection reset"))
	if rec.Code != http.StatusInternalServerError || body.Code != CodeInternal {
		t.Errorf("unexpected %d %+v", rec.Code, body)
	}
	if strings.Contains(rec.Body.String(), "connection reset") {
		t.Error("driver error leaked to the client")
	}
	if !strings.Contains(logs, "connection reset") {
		t.Error("expected the cause to be logged")
	}
}

func TestErrorHandler_CommittedResponse(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	c.String(http.StatusOK, "partial")

	ErrorHandler(zerolog.Nop())(errors.New("late"), c)

	if rec.Body.String() != "partial" {
		t.Errorf("committed response must not be rewritten, got %q", rec.Body.String())
	}
}
