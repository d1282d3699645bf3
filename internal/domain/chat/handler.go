package chat

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type Handler struct {
	orch *Orchestrator
}

func NewHandler(orch *Orchestrator) *Handler {
	return &Handler{orch: orch}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/chat", h.Chat)
	api.POST("/insights", h.Insights)
}

type chatRequest struct {
	SessionID        string `json:"sessionId"`
	Message          string `json:"message"`
	PatientID        string `json:"patient_id"`
	GenerateInsights bool   `json:"generateInsights"`
}

func (h *Handler) Chat(c echo.Context) error {
	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.SessionID) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "sessionId is required")
	}
	if strings.TrimSpace(req.Message) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message is required")
	}

	turn := TurnRequest{
		SessionID:        req.SessionID,
		Message:          req.Message,
		GenerateInsights: req.GenerateInsights,
	}
	if req.PatientID != "" {
		patientID, err := uuid.Parse(req.PatientID)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
		}
		turn.PatientID = &patientID
	}

	return c.JSON(http.StatusOK, h.orch.Converse(c.Request().Context(), turn))
}

type insightsRequest struct {
	SessionID string `json:"sessionId"`
}

func (h *Handler) Insights(c echo.Context) error {
	var req insightsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.SessionID) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "sessionId is required")
	}

	result, err := h.orch.Insights(c.Request().Context(), req.SessionID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "session not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, result)
}
