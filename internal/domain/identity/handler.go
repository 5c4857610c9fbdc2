package identity

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/carelink/carelink/internal/platform/apperr"
	"github.com/carelink/carelink/internal/platform/auth"
)

type Handler struct {
	svc         *Service
	tokens      *auth.TokenIssuer
	revocations auth.RevocationStore
}

func NewHandler(svc *Service, tokens *auth.TokenIssuer, revocations auth.RevocationStore) *Handler {
	return &Handler{svc: svc, tokens: tokens, revocations: revocations}
}

// RegisterRoutes mounts the account endpoints. authGroup is expected to run
// the JWT middleware with auth.AuthSkipper so register and login stay public.
func (h *Handler) RegisterRoutes(authGroup *echo.Group, api *echo.Group) {
	authGroup.POST("/register", h.RegisterPatient)
	authGroup.POST("/register/clinician", h.RegisterClinician)
	authGroup.POST("/login", h.Login)
	authGroup.POST("/logout", auth.LogoutHandler(h.revocations))

	api.GET("/me", h.Me)
}

type accountSummary struct {
	ID    string    `json:"id"`
	Email string    `json:"email"`
	Name  string    `json:"name"`
	Role  auth.Role `json:"role"`
}

func (h *Handler) RegisterPatient(c echo.Context) error {
	var req PatientRegistration
	if err := c.Bind(&req); err != nil {
		return apperr.ToHTTP(apperr.Validation("invalid request body"))
	}
	p, err := h.svc.RegisterPatient(c.Request().Context(), req)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"message": "User registered successfully",
		"user":    accountSummary{ID: p.ID.String(), Email: p.Email, Name: p.Name, Role: auth.RolePatient},
	})
}

func (h *Handler) RegisterClinician(c echo.Context) error {
	var req ClinicianRegistration
	if err := c.Bind(&req); err != nil {
		return apperr.ToHTTP(apperr.Validation("invalid request body"))
	}
	cl, err := h.svc.RegisterClinician(c.Request().Context(), req)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"message": "Clinician registered successfully",
		"user":    accountSummary{ID: cl.ID.String(), Email: cl.Email, Name: cl.Name, Role: auth.RoleClinician},
	})
}

type loginRequest struct {
	Email    string    `json:"email"`
	Password string    `json:"password"`
	Role     auth.Role `json:"role"`
}

func (h *Handler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return apperr.ToHTTP(apperr.Validation("invalid request body"))
	}
	if req.Role == "" {
		req.Role = auth.RolePatient
	}

	principal, err := h.svc.Authenticate(c.Request().Context(), req.Email, req.Password, req.Role)
	if err != nil {
		return apperr.ToHTTP(err)
	}

	token, exp, err := h.tokens.Issue(principal.Identity, principal.Name)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message":    "Login successful",
		"token":      token,
		"token_type": "Bearer",
		"expires_at": exp.UTC().Format(time.RFC3339),
		"user": accountSummary{
			ID:    principal.Identity.ID.String(),
			Email: principal.Email,
			Name:  principal.Name,
			Role:  principal.Identity.Role,
		},
	})
}

func (h *Handler) Me(c echo.Context) error {
	caller, err := auth.Caller(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	switch caller.Role {
	case auth.RolePatient:
		p, err := h.svc.GetPatient(ctx, caller.ID)
		if err != nil {
			return apperr.ToHTTP(err)
		}
		return c.JSON(http.StatusOK, map[string]interface{}{
			"message": "Profile retrieved successfully",
			"role":    caller.Role,
			"patient": p,
		})
	default:
		cl, err := h.svc.GetClinician(ctx, caller.ID)
		if err != nil {
			return apperr.ToHTTP(err)
		}
		return c.JSON(http.StatusOK, map[string]interface{}{
			"message":   "Profile retrieved successfully",
			"role":      caller.Role,
			"clinician": cl,
		})
	}
}
