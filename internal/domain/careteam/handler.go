package careteam

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carelink/carelink/internal/platform/apperr"
	"github.com/carelink/carelink/internal/platform/auth"
	"github.com/carelink/carelink/pkg/pagination"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/care", auth.RequireRole(auth.RoleClinician))
	g.POST("", h.AddLink)
	g.DELETE("", h.RemoveLink)
	g.GET("/patients", h.ListPatients)
	g.GET("/patients/:id/measurements", h.PatientMeasurements)
	g.GET("/patients/:id/measurements/export", h.ExportPatientMeasurements)
}

func bindLinkRequest(c echo.Context) (string, error) {
	var req LinkRequest
	if err := c.Bind(&req); err != nil {
		return "", apperr.ToHTTP(apperr.Validation("invalid request body"))
	}
	if req.NationalID == "" {
		return "", apperr.ToHTTP(apperr.Validation("national_id is required"))
	}
	return req.NationalID, nil
}

func (h *Handler) AddLink(c echo.Context) error {
	caller, err := auth.Caller(c)
	if err != nil {
		return err
	}
	raw, err := bindLinkRequest(c)
	if err != nil {
		return err
	}
	link, err := h.svc.AddLink(c.Request().Context(), caller, raw)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"message": "Patient linked successfully",
		"link":    link,
	})
}

func (h *Handler) RemoveLink(c echo.Context) error {
	caller, err := auth.Caller(c)
	if err != nil {
		return err
	}
	raw, err := bindLinkRequest(c)
	if err != nil {
		return err
	}
	if err := h.svc.RemoveLink(c.Request().Context(), caller, raw); err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"message": "Patient unlinked successfully"})
}

func (h *Handler) ListPatients(c echo.Context) error {
	caller, err := auth.Caller(c)
	if err != nil {
		return err
	}
	patients, err := h.svc.ListPatients(c.Request().Context(), caller)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message":  "Linked patients retrieved successfully",
		"patients": patients,
	})
}

func patientParam(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, apperr.ToHTTP(apperr.Validation("invalid patient id"))
	}
	return id, nil
}

func (h *Handler) PatientMeasurements(c echo.Context) error {
	caller, err := auth.Caller(c)
	if err != nil {
		return err
	}
	patientID, err := patientParam(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.PatientMeasurements(c.Request().Context(), caller, patientID, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	page := pagination.NewPage(items, total, pg, c.Request().URL.Path)
	return c.JSON(http.StatusOK, page.WithMessage("Patient history retrieved successfully"))
}

func (h *Handler) ExportPatientMeasurements(c echo.Context) error {
	caller, err := auth.Caller(c)
	if err != nil {
		return err
	}
	patientID, err := patientParam(c)
	if err != nil {
		return err
	}
	b, err := h.svc.ExportPatientMeasurements(c.Request().Context(), caller, patientID)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	filename := fmt.Sprintf("measurements-%s-%s.xlsx", patientID, time.Now().UTC().Format("20060102"))
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return c.Blob(http.StatusOK, xlsxContentType, b)
}
