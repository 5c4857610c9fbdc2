package careteam

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

func callerRequest(e *echo.Echo, method, path, body string, caller auth.Identity) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	auth.SetCaller(c, caller)
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

func TestHandler_AddLink(t *testing.T) {
	env := newTestEnv(t)
	h, e := NewHandler(env.svc), echo.New()

	c, rec := callerRequest(e, http.MethodPost, "/api/v1/care", `{"national_id":"900101-1234567"}`, env.clinician)
	if err := h.AddLink(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "1234567") {
		t.Error("response must not echo the national id")
	}

	c, _ = callerRequest(e, http.MethodPost, "/api/v1/care", `{"national_id":"900101-1234567"}`, env.clinician)
	expectStatus(t, h.AddLink(c), http.StatusConflict, apperr.CodeAlreadyExists)
}

func TestHandler_AddLink_Errors(t *testing.T) {
	env := newTestEnv(t)
	h, e := NewHandler(env.svc), echo.New()

	c, _ := callerRequest(e, http.MethodPost, "/api/v1/care", `{}`, env.clinician)
	expectStatus(t, h.AddLink(c), http.StatusBadRequest, apperr.CodeValidation)

	c, _ = callerRequest(e, http.MethodPost, "/api/v1/care", `{"national_id":"000000-0000000"}`, env.clinician)
	expectStatus(t, h.AddLink(c), http.StatusNotFound, apperr.CodeNotFound)

	patient := auth.Identity{ID: uuid.New(), Role: auth.RolePatient}
	c, _ = callerRequest(e, http.MethodPost, "/api/v1/care", `{"national_id":"900101-1234567"}`, patient)
	expectStatus(t, h.AddLink(c), http.StatusForbidden, apperr.CodeUnauthorized)
}

func TestHandler_RemoveLink(t *testing.T) {
	env := newTestEnv(t)
	h, e := NewHandler(env.svc), echo.New()

	c, _ := callerRequest(e, http.MethodDelete, "/api/v1/care", `{"national_id":"900101-1234567"}`, env.clinician)
	expectStatus(t, h.RemoveLink(c), http.StatusNotFound, apperr.CodeNotFound)

	c, _ = callerRequest(e, http.MethodPost, "/api/v1/care", `{"national_id":"900101-1234567"}`, env.clinician)
	if err := h.AddLink(c); err != nil {
		t.Fatal(err)
	}
	c, rec := callerRequest(e, http.MethodDelete, "/api/v1/care", `{"national_id":"900101-1234567"}`, env.clinician)
	if err := h.RemoveLink(c); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestHandler_ListPatients(t *testing.T) {
	env := newTestEnv(t)
	h, e := NewHandler(env.svc), echo.New()

	c, _ := callerRequest(e, http.MethodPost, "/api/v1/care", `{"national_id":"850505-2345678"}`, env.clinician)
	h.AddLink(c)

	c, rec := callerRequest(e, http.MethodGet, "/api/v1/care/patients", "", env.clinician)
	if err := h.ListPatients(c); err != nil {
		t.Fatal(err)
	}
	var resp struct {
		Message  string          `json:"message"`
		Patients []LinkedPatient `json:"patients"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if len(resp.Patients) != 1 || resp.Patients[0].Name != "Park" {
		t.Errorf("unexpected patients %s", rec.Body.String())
	}
	if resp.Message != "Linked patients retrieved successfully" {
		t.Errorf("unexpected message %q", resp.Message)
	}
}

func TestHandler_PatientMeasurements(t *testing.T) {
	env := newTestEnv(t)
	h, e := NewHandler(env.svc), echo.New()
	patientID := env.patients["900101-1234567"].ID

	c, _ := callerRequest(e, http.MethodGet, "/", "", env.clinician)
	c.SetParamNames("id")
	c.SetParamValues("not-a-uuid")
	expectStatus(t, h.PatientMeasurements(c), http.StatusBadRequest, apperr.CodeValidation)

	c, _ = callerRequest(e, http.MethodGet, "/", "", env.clinician)
	c.SetParamNames("id")
	c.SetParamValues(patientID.String())
	expectStatus(t, h.PatientMeasurements(c), http.StatusNotFound, apperr.CodeNotFound)

	c, _ = callerRequest(e, http.MethodPost, "/api/v1/care", `{"national_id":"900101-1234567"}`, env.clinician)
	h.AddLink(c)

	c, rec := callerRequest(e, http.MethodGet, "/api/v1/care/patients/"+patientID.String()+"/measurements", "", env.clinician)
	c.SetParamNames("id")
	c.SetParamValues(patientID.String())
	if err := h.PatientMeasurements(c); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(rec.Body.String(), `"total":1`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"message":"Patient history retrieved successfully"`) {
		t.Errorf("expected a message, got %s", rec.Body.String())
	}
}

func TestHandler_ExportPatientMeasurements(t *testing.T) {
	env := newTestEnv(t)
	h, e := NewHandler(env.svc), echo.New()
	patientID := env.patients["900101-1234567"].ID

	c, _ := callerRequest(e, http.MethodPost, "/api/v1/care", `{"national_id":"900101-1234567"}`, env.clinician)
	h.AddLink(c)

	c, rec := callerRequest(e, http.MethodGet, "/", "", env.clinician)
	c.SetParamNames("id")
	c.SetParamValues(patientID.String())
	if err := h.ExportPatientMeasurements(c); err != nil {
		t.Fatal(err)
	}
	if ct := rec.Header().Get(echo.HeaderContentType); ct != xlsxContentType {
		t.Errorf("unexpected content type %q", ct)
	}
	if !strings.HasPrefix(rec.Header().Get(echo.HeaderContentDisposition), "attachment;") {
		t.Error("expected attachment disposition")
	}
	if rec.Body.String() != "xlsx" {
		t.Errorf("unexpected body %q", rec.Body.String())
	}
}
