package clinical

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carelink/carelink/internal/platform/apperr"
	"github.com/carelink/carelink/internal/platform/auth"
)

func callerRequest(e *echo.Echo, method, path, body string, caller *auth.Identity) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if caller != nil {
		auth.SetCaller(c, *caller)
	}
	return c, rec
}

func expectStatus(t *testing.T, err error, status int, code string) {
	t.Helper()
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T (%v)", err, err)
	}
	if httpErr.Code != status {
		t.Errorf("expected %d, got %d", status, httpErr.Code)
	}
	if code != "" {
		body, ok := httpErr.Message.(apperr.Body)
		if !ok || body.Code != code {
			t.Errorf("expected code %s, got %v", code, httpErr.Message)
		}
	}
}

const measurementBody = `{"weight":70,"blood_glucose":130,"blood_pressure":145}`

func TestHandler_Record(t *testing.T) {
	env := newTestEnv(t)
	h, e := NewHandler(env.svc), echo.New()

	c, rec := callerRequest(e, http.MethodPost, "/api/v1/history", measurementBody, &env.caller)
	if err := h.Record(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}

	var resp struct {
		Message          string      `json:"message"`
		History          Measurement `json:"history"`
		Prediction       *Prediction `json:"prediction"`
		PredictionStatus string      `json:"prediction_status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Message != "History record created successfully" {
		t.Errorf("unexpected message %q", resp.Message)
	}
	if resp.History.PatientID != env.caller.ID || resp.History.WeightKG != 70 {
		t.Errorf("unexpected history %+v", resp.History)
	}
	if resp.PredictionStatus != PredictionOK || resp.Prediction == nil {
		t.Errorf("expected prediction, got %s", rec.Body.String())
	}
}

func TestHandler_Record_PredictionUnavailable(t *testing.T) {
	env := newTestEnv(t)
	env.scorer.score = nil
	env.scorer.err = apperr.ErrPredictionUnavailable
	h, e := NewHandler(env.svc), echo.New()

	c, rec := callerRequest(e, http.MethodPost, "/api/v1/history", measurementBody, &env.caller)
	if err := h.Record(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `"prediction":null`) || !strings.Contains(body, `"prediction_status":"unavailable"`) {
		t.Errorf("expected unavailable marker, got %s", body)
	}
}

func TestHandler_Record_Invalid(t *testing.T) {
	env := newTestEnv(t)
	h, e := NewHandler(env.svc), echo.New()

	c, _ := callerRequest(e, http.MethodPost, "/api/v1/history", `{"weight":-1,"blood_glucose":130,"blood_pressure":145}`, &env.caller)
	expectStatus(t, h.Record(c), http.StatusBadRequest, apperr.CodeValidation)

	c, _ = callerRequest(e, http.MethodPost, "/api/v1/history", `{not json`, &env.caller)
	expectStatus(t, h.Record(c), http.StatusBadRequest, apperr.CodeValidation)
}

func TestHandler_Record_Clinician(t *testing.T) {
	env := newTestEnv(t)
	h, e := NewHandler(env.svc), echo.New()
	clinician := auth.Identity{ID: uuid.New(), Role: auth.RoleClinician}

	c, _ := callerRequest(e, http.MethodPost, "/api/v1/history", measurementBody, &clinician)
	expectStatus(t, h.Record(c), http.StatusForbidden, apperr.CodeUnauthorized)
}

func TestHandler_Record_NoIdentity(t *testing.T) {
	env := newTestEnv(t)
	h, e := NewHandler(env.svc), echo.New()

	c, _ := callerRequest(e, http.MethodPost, "/api/v1/history", measurementBody, nil)
	expectStatus(t, h.Record(c), http.StatusUnauthorized, "")
}

func TestHandler_Latest_NoData(t *testing.T) {
	env := newTestEnv(t)
	h, e := NewHandler(env.svc), echo.New()

	c, _ := callerRequest(e, http.MethodGet, "/api/v1/history/latest", "", &env.caller)
	expectStatus(t, h.Latest(c), http.StatusNotFound, apperr.CodeNoData)
}

func TestHandler_AveragesAndList(t *testing.T) {
	env := newTestEnv(t)
	h, e := NewHandler(env.svc), echo.New()

	for i := 0; i < 3; i++ {
		c, _ := callerRequest(e, http.MethodPost, "/api/v1/history", measurementBody, &env.caller)
		if err := h.Record(c); err != nil {
			t.Fatal(err)
		}
	}

	c, rec := callerRequest(e, http.MethodGet, "/api/v1/history/averages", "", &env.caller)
	if err := h.Averages(c); err != nil {
		t.Fatal(err)
	}
	var avg struct {
		Message  string   `json:"message"`
		Averages Averages `json:"averages"`
	}
	json.Unmarshal(rec.Body.Bytes(), &avg)
	if avg.Averages.Count != 3 || avg.Averages.WeightKG == nil || *avg.Averages.WeightKG != 70 {
		t.Errorf("unexpected averages %s", rec.Body.String())
	}
	if avg.Message == "" {
		t.Error("expected a message with the averages")
	}

	c, rec = callerRequest(e, http.MethodGet, "/api/v1/history?limit=2", "", &env.caller)
	if err := h.List(c); err != nil {
		t.Fatal(err)
	}
	var page struct {
		Message string        `json:"message"`
		Data    []Measurement `json:"data"`
		Total   int           `json:"total"`
		HasMore bool          `json:"has_more"`
	}
	json.Unmarshal(rec.Body.Bytes(), &page)
	if page.Total != 3 || len(page.Data) != 2 || !page.HasMore {
		t.Errorf("unexpected page %s", rec.Body.String())
	}
	if page.Message != "History retrieved successfully" {
		t.Errorf("unexpected message %q", page.Message)
	}

	c, rec = callerRequest(e, http.MethodGet, "/api/v1/history/assessments", "", &env.caller)
	if err := h.Assessments(c); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(rec.Body.String(), `"total":3`) {
		t.Errorf("expected three assessments, got %s", rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"message":"Risk assessments retrieved successfully"`) {
		t.Errorf("expected a message, got %s", rec.Body.String())
	}

	c, rec = callerRequest(e, http.MethodGet, "/api/v1/history/latest", "", &env.caller)
	if err := h.Latest(c); err != nil {
		t.Fatal(err)
	}
	var latest struct {
		Message string       `json:"message"`
		History *Measurement `json:"history"`
	}
	json.Unmarshal(rec.Body.Bytes(), &latest)
	if latest.Message == "" || latest.History == nil {
		t.Errorf("unexpected latest body %s", rec.Body.String())
	}
}

func TestHandler_Averages_Empty(t *testing.T) {
	env := newTestEnv(t)
	h, e := NewHandler(env.svc), echo.New()

	c, rec := callerRequest(e, http.MethodGet, "/api/v1/history/averages", "", &env.caller)
	if err := h.Averages(c); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"weight":null`) {
		t.Errorf("expected null means, got %s", rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"message":"History averages retrieved successfully"`) {
		t.Errorf("expected a message with empty averages, got %s", rec.Body.String())
	}
}
