package healthlog

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carebuddy/carebuddy/internal/domain/alert"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// logError maps service failures: correctable input is a 400, anything else
// (persistence, alert fan-out) is a 500.
func logError(err error) *echo.HTTPError {
	if errors.Is(err, ErrValidation) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/patients/:id/logs/glucose", h.LogGlucose)
	api.POST("/patients/:id/logs/medication", h.LogMedication)
	api.POST("/patients/:id/logs/meal", h.LogMeal)
	api.POST("/patients/:id/logs/activity", h.LogActivity)
	api.GET("/patients/:id/logs", h.RecentLogs)
}

// glucoseResponse pairs the stored log with the alert it raised, if any.
type glucoseResponse struct {
	Log   *GlucoseLog  `json:"log"`
	Alert *alert.Alert `json:"alert,omitempty"`
}

func (h *Handler) LogGlucose(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	var l GlucoseLog
	if err := c.Bind(&l); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	l.PatientID = patientID

	a, err := h.svc.LogGlucose(c.Request().Context(), &l)
	if err != nil {
		return logError(err)
	}
	return c.JSON(http.StatusCreated, glucoseResponse{Log: &l, Alert: a})
}

func (h *Handler) LogMedication(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	var l MedicationLog
	if err := c.Bind(&l); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	l.PatientID = patientID

	if err := h.svc.LogMedication(c.Request().Context(), &l); err != nil {
		return logError(err)
	}
	return c.JSON(http.StatusCreated, l)
}

func (h *Handler) LogMeal(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	var l MealLog
	if err := c.Bind(&l); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	l.PatientID = patientID

	if err := h.svc.LogMeal(c.Request().Context(), &l); err != nil {
		return logError(err)
	}
	return c.JSON(http.StatusCreated, l)
}

func (h *Handler) LogActivity(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	var l ActivityLog
	if err := c.Bind(&l); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	l.PatientID = patientID

	if err := h.svc.LogActivity(c.Request().Context(), &l); err != nil {
		return logError(err)
	}
	return c.JSON(http.StatusCreated, l)
}

func (h *Handler) RecentLogs(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	days := 7
	if raw := c.QueryParam("days"); raw != "" {
		days, err = strconv.Atoi(raw)
		if err != nil || days <= 0 || days > 365 {
			return echo.NewHTTPError(http.StatusBadRequest, "days must be between 1 and 365")
		}
	}

	logs, err := h.svc.RecentLogs(c.Request().Context(), patientID, days)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, logs)
}
