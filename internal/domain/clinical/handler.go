package clinical

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/carelink/carelink/internal/platform/apperr"
	"github.com/carelink/carelink/internal/platform/auth"
	"github.com/carelink/carelink/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the patient's own history endpoints.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/history", auth.RequireRole(auth.RolePatient))
	g.POST("", h.Record)
	g.GET("", h.List)
	g.GET("/latest", h.Latest)
	g.GET("/averages", h.Averages)
	g.GET("/assessments", h.Assessments)
}

func (h *Handler) Record(c echo.Context) error {
	caller, err := auth.Caller(c)
	if err != nil {
		return err
	}
	var in MeasurementInput
	if err := c.Bind(&in); err != nil {
		return apperr.ToHTTP(apperr.Validation("invalid request body"))
	}

	result, err := h.svc.Record(c.Request().Context(), caller, in)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"message":           "History record created successfully",
		"history":           result.Measurement,
		"prediction":        result.Prediction,
		"prediction_status": result.PredictionStatus,
	})
}

func (h *Handler) List(c echo.Context) error {
	caller, err := auth.Caller(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListForPatient(c.Request().Context(), caller.ID, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	page := pagination.NewPage(items, total, pg, c.Request().URL.Path)
	return c.JSON(http.StatusOK, page.WithMessage("History retrieved successfully"))
}

func (h *Handler) Latest(c echo.Context) error {
	caller, err := auth.Caller(c)
	if err != nil {
		return err
	}
	m, err := h.svc.MostRecent(c.Request().Context(), caller.ID)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": "Latest history record retrieved successfully",
		"history": m,
	})
}

func (h *Handler) Averages(c echo.Context) error {
	caller, err := auth.Caller(c)
	if err != nil {
		return err
	}
	avg, err := h.svc.Averages(c.Request().Context(), caller.ID)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message":  "History averages retrieved successfully",
		"averages": avg,
	})
}

func (h *Handler) Assessments(c echo.Context) error {
	caller, err := auth.Caller(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.Assessments(c.Request().Context(), caller.ID, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	page := pagination.NewPage(items, total, pg, c.Request().URL.Path)
	return c.JSON(http.StatusOK, page.WithMessage("Risk assessments retrieved successfully"))
}
