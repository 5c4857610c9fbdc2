package identity

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/carelink/carelink/internal/platform/apperr"
	"github.com/carelink/carelink/internal/platform/auth"
)

func newTestHandler(t *testing.T) (*Handler, *echo.Echo) {
	t.Helper()
	svc := newTestService(t)
	tokens := auth.NewTokenIssuer("handler-test-secret-0123456789abcdef", time.Hour)
	store := auth.NewMemoryRevocationStore()
	t.Cleanup(func() { store.Close() })
	return NewHandler(svc, tokens, store), echo.New()
}

func jsonRequest(e *echo.Echo, method, path, body string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
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

const patientBody = `{"email":"u@example.com","password":"s3cret-pass","name":"Lee","national_id":"900101-1234567","height_cm":170,"birth_date":"1990-01-01","gender":"male"}`

func TestHandler_RegisterPatient(t *testing.T) {
	h, e := newTestHandler(t)

	c, rec := jsonRequest(e, http.MethodPost, "/auth/register", patientBody)
	if err := h.RegisterPatient(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "1234567") {
		t.Error("response must not echo the national id")
	}

	var resp struct {
		User accountSummary `json:"user"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.User.Email != "u@example.com" || resp.User.Role != auth.RolePatient {
		t.Errorf("unexpected user %+v", resp.User)
	}
}

func TestHandler_RegisterPatient_Duplicate(t *testing.T) {
	h, e := newTestHandler(t)

	c, _ := jsonRequest(e, http.MethodPost, "/auth/register", patientBody)
	if err := h.RegisterPatient(c); err != nil {
		t.Fatal(err)
	}
	c, _ = jsonRequest(e, http.MethodPost, "/auth/register", patientBody)
	expectStatus(t, h.RegisterPatient(c), http.StatusConflict, apperr.CodeDuplicateIdentity)
}

func TestHandler_RegisterPatient_BadRequest(t *testing.T) {
	h, e := newTestHandler(t)

	c, _ := jsonRequest(e, http.MethodPost, "/auth/register", `{"email":"u@example.com"}`)
	expectStatus(t, h.RegisterPatient(c), http.StatusBadRequest, apperr.CodeValidation)

	c, _ = jsonRequest(e, http.MethodPost, "/auth/register", `{not json`)
	expectStatus(t, h.RegisterPatient(c), http.StatusBadRequest, apperr.CodeValidation)
}

func TestHandler_RegisterClinician(t *testing.T) {
	h, e := newTestHandler(t)

	c, rec := jsonRequest(e, http.MethodPost, "/auth/register/clinician",
		`{"email":"d@example.com","password":"doctor-pass","name":"Dr. Park","license_no":1001}`)
	if err := h.RegisterClinician(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
}

func TestHandler_LoginAndMe(t *testing.T) {
	h, e := newTestHandler(t)

	c, _ := jsonRequest(e, http.MethodPost, "/auth/register", patientBody)
	if err := h.RegisterPatient(c); err != nil {
		t.Fatal(err)
	}

	c, rec := jsonRequest(e, http.MethodPost, "/auth/login", `{"email":"u@example.com","password":"s3cret-pass"}`)
	if err := h.Login(c); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var login struct {
		Token string         `json:"token"`
		User  accountSummary `json:"user"`
	}
	json.Unmarshal(rec.Body.Bytes(), &login)
	if login.Token == "" {
		t.Fatal("expected a token")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	req.Header.Set("Authorization", "Bearer "+login.Token)
	rec = httptest.NewRecorder()
	c = e.NewContext(req, rec)
	mw := auth.JWTMiddleware(auth.JWTConfig{Tokens: h.tokens, Revocations: h.revocations})
	if err := mw(h.Me)(c); err != nil {
		t.Fatalf("Me: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"name":"Lee"`) {
		t.Errorf("unexpected profile body %s", rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"message":"Profile retrieved successfully"`) {
		t.Errorf("expected a message, got %s", rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), "password") {
		t.Error("profile must not include password hash")
	}
}

func TestHandler_Login_InvalidCredentials(t *testing.T) {
	h, e := newTestHandler(t)

	c, _ := jsonRequest(e, http.MethodPost, "/auth/login", `{"email":"u@example.com","password":"nope-nope"}`)
	expectStatus(t, h.Login(c), http.StatusUnauthorized, apperr.CodeInvalidCredentials)
}

func TestHandler_Login_UnknownRole(t *testing.T) {
	h, e := newTestHandler(t)

	c, _ := jsonRequest(e, http.MethodPost, "/auth/login", `{"email":"u@example.com","password":"s3cret-pass","role":"admin"}`)
	expectStatus(t, h.Login(c), http.StatusBadRequest, apperr.CodeValidation)
}
