package emergency

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carebuddy/carebuddy/internal/domain/identity"
	"github.com/carebuddy/carebuddy/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/patients/:id/emergency", h.Contact)
	api.POST("/patients/:id/appointments", h.RequestAppointment)
	api.GET("/patients/:id/appointments", h.ListAppointments)
}

func (h *Handler) Contact(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}

	result, err := h.svc.Contact(c.Request().Context(), patientID)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "patient not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, result)
}

type appointmentRequestBody struct {
	PreferredDate *time.Time `json:"preferred_date"`
	Reason        string     `json:"reason"`
}

type appointmentResponse struct {
	*AppointmentRequest
	DoctorContact *DoctorContact `json:"doctor_contact"`
	Message       string         `json:"message"`
}

func (h *Handler) RequestAppointment(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	var body appointmentRequestBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	req, doctor, err := h.svc.RequestAppointment(c.Request().Context(), patientID, body.PreferredDate, body.Reason)
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "patient not found")
		case errors.Is(err, ErrNoDoctor):
			return echo.NewHTTPError(http.StatusBadRequest, "no doctor assigned")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, appointmentResponse{
		AppointmentRequest: req,
		DoctorContact:      doctor,
		Message:            "Appointment request submitted. Doctor will contact you.",
	})
}

func (h *Handler) ListAppointments(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	p := pagination.FromContext(c)

	items, total, err := h.svc.ListAppointments(c.Request().Context(), patientID, p.Limit, p.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if items == nil {
		items = []*AppointmentRequest{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, p.Limit, p.Offset))
}
