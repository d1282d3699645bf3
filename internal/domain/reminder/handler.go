package reminder

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carebuddy/carebuddy/internal/domain/careplan"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/patients/:id/reminders", h.List)
	api.POST("/patients/:id/reminders/generate", h.Generate)
}

func (h *Handler) List(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	activeOnly := c.QueryParam("active") != "false"

	reminders, err := h.svc.List(c.Request().Context(), patientID, activeOnly)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if reminders == nil {
		reminders = []*Reminder{}
	}
	return c.JSON(http.StatusOK, reminders)
}

func (h *Handler) Generate(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}

	reminders, err := h.svc.Regenerate(c.Request().Context(), patientID)
	if err != nil {
		if errors.Is(err, careplan.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "no care plan for patient")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"reminders_generated": len(reminders),
		"reminders":           reminders,
	})
}
