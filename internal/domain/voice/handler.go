package voice

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carebuddy/carebuddy/internal/platform/telephony"
)

const (
	processPath = "/api/v1/voice/process"

	repromptText = "I'm sorry, I didn't catch that. Could you repeat?"
	noInputText  = "I didn't hear anything. Please call back when you're ready. Take care!"
	goodbyeText  = "Thank you for talking with me today. Take care and have a great day!"
	errorText    = "I'm sorry, there was an error. Please try calling back later."
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/voice/call/initiate", h.Initiate)
	api.POST("/voice/call", h.Answer)
	api.GET("/voice/call", h.Answer)
	api.POST("/voice/process", h.Process)
	api.POST("/voice/status", h.Status)
}

type initiateRequest struct {
	PhoneNumber string `json:"phone_number"`
	PatientID   string `json:"patient_id"`
}

func (h *Handler) Initiate(c echo.Context) error {
	var req initiateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.PhoneNumber == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "phone_number is required")
	}
	patientID, err := optionalPatientID(req.PatientID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
	}

	call, err := h.svc.InitiateCall(c.Request().Context(), req.PhoneNumber, patientID)
	if err != nil {
		if errors.Is(err, telephony.ErrNotConfigured) {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "voice calls not available")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"success":  true,
		"call_sid": call.SID,
		"status":   call.Status,
		"message":  fmt.Sprintf("Call initiated to %s", call.To),
	})
}

// Answer returns the greeting TwiML when the patient picks up.
func (h *Handler) Answer(c echo.Context) error {
	wh, err := telephony.ParseWebhook(c.Request())
	if err != nil {
		return h.errorTwiML(c)
	}
	patientID, err := optionalPatientID(c.QueryParam("patient_id"))
	if err != nil {
		patientID = nil
	}

	greeting := h.svc.Greeting(c.Request().Context(), patientID)
	resp := telephony.NewResponse().
		GatherSpeech(processAction(patientID), greeting).
		Say(noInputText).
		Hangup()

	h.svc.CallStatus(wh.CallSid, "answered")
	return h.twiml(c, resp)
}

// Process handles each transcribed utterance: empty speech re-prompts, an
// emergency turn speaks the escalation and hangs up, otherwise the reply is
// spoken and the next utterance gathered.
func (h *Handler) Process(c echo.Context) error {
	wh, err := telephony.ParseWebhook(c.Request())
	if err != nil {
		return h.errorTwiML(c)
	}
	patientID, err := optionalPatientID(c.QueryParam("patient_id"))
	if err != nil {
		patientID = nil
	}

	speech := wh.SpeechResult
	if speech == "" {
		speech = wh.Digits
	}
	if speech == "" {
		resp := telephony.NewResponse().
			Say(repromptText).
			GatherSpeech(processAction(patientID), "")
		return h.twiml(c, resp)
	}

	turn := h.svc.Turn(c.Request().Context(), wh.CallSid, speech, patientID)
	if turn.Emergency {
		resp := telephony.NewResponse().
			Say(turn.Reply + " If this is an emergency, please hang up and call 911 or go to the nearest emergency room.").
			Hangup()
		return h.twiml(c, resp)
	}

	resp := telephony.NewResponse().
		Say(turn.Reply).
		GatherSpeech(processAction(patientID), "").
		Say(goodbyeText).
		Hangup()
	return h.twiml(c, resp)
}

func (h *Handler) Status(c echo.Context) error {
	wh, err := telephony.ParseWebhook(c.Request())
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	h.svc.CallStatus(wh.CallSid, wh.CallStatus)
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) twiml(c echo.Context, resp *telephony.Response) error {
	body, err := resp.Render()
	if err != nil {
		return h.errorTwiML(c)
	}
	return c.Blob(http.StatusOK, "text/xml", []byte(body))
}

func (h *Handler) errorTwiML(c echo.Context) error {
	body, _ := telephony.NewResponse().Say(errorText).Hangup().Render()
	return c.Blob(http.StatusOK, "text/xml", []byte(body))
}

func processAction(patientID *uuid.UUID) string {
	if patientID != nil {
		return processPath + "?patient_id=" + patientID.String()
	}
	return processPath
}

func optionalPatientID(raw string) (*uuid.UUID, error) {
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
