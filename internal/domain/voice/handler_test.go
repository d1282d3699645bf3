package voice

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/carebuddy/carebuddy/internal/domain/chat"
	"github.com/carebuddy/carebuddy/internal/domain/identity"
	"github.com/carebuddy/carebuddy/internal/platform/telephony"
)

type mockConverser struct {
	result chat.TurnResult
	last   chat.TurnRequest
}

func (m *mockConverser) Converse(_ context.Context, req chat.TurnRequest) chat.TurnResult {
	m.last = req
	return m.result
}

type mockPatients struct{ patient *identity.Patient }

func (m *mockPatients) GetPatient(_ context.Context, _ uuid.UUID) (*identity.Patient, error) {
	if m.patient == nil {
		return nil, identity.ErrNotFound
	}
	return m.patient, nil
}

type mockInitiator struct {
	call *telephony.Call
	url  string
}

func (m *mockInitiator) InitiateCall(_ context.Context, to, webhookURL string) (*telephony.Call, error) {
	m.url = webhookURL
	if m.call == nil {
		m.call = &telephony.Call{SID: "CA123", Status: "queued", To: to, From: "+15550001111"}
	}
	return m.call, nil
}

func testLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).Level(zerolog.Disabled)
}

func newTestHandler(conv *mockConverser, calls telephony.CallInitiator) *Handler {
	svc := NewService(conv, &mockPatients{patient: &identity.Patient{ID: uuid.New(), Name: "Mary Johnson"}},
		calls, "https://example.com", testLogger())
	return NewHandler(svc)
}

func postForm(e *echo.Echo, target string, form url.Values) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestHandler_Initiate(t *testing.T) {
	e := echo.New()
	initiator := &mockInitiator{}
	h := newTestHandler(&mockConverser{}, initiator)
	patientID := uuid.New()

	body := `{"phone_number": "+15551234567", "patient_id": "` + patientID.String() + `"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	if err := h.Initiate(e.NewContext(req, rec)); err != nil {
		t.Fatalf("Initiate() error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(initiator.url, "/api/v1/voice/call?patient_id="+patientID.String()) {
		t.Errorf("webhook url = %q", initiator.url)
	}
}

func TestHandler_Initiate_Validation(t *testing.T) {
	e := echo.New()
	h := newTestHandler(&mockConverser{}, &mockInitiator{})

	for _, body := range []string{`{}`, `{"phone_number": "5551234567"}`} {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		err := h.Initiate(e.NewContext(req, rec))
		he, ok := err.(*echo.HTTPError)
		if !ok || he.Code != http.StatusBadRequest {
			t.Errorf("body %s: expected 400, got %v", body, err)
		}
	}
}

func TestHandler_Initiate_NotConfigured(t *testing.T) {
	e := echo.New()
	h := newTestHandler(&mockConverser{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"phone_number": "+15551234567"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	err := h.Initiate(e.NewContext(req, rec))
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %v", err)
	}
}

func TestHandler_Answer_GreetsByName(t *testing.T) {
	e := echo.New()
	h := newTestHandler(&mockConverser{}, &mockInitiator{})
	patientID := uuid.New()

	c, rec := postForm(e, "/?patient_id="+patientID.String(), url.Values{"CallSid": {"CA1"}})
	if err := h.Answer(c); err != nil {
		t.Fatalf("Answer() error: %v", err)
	}
	body := rec.Body.String()
	if rec.Header().Get(echo.HeaderContentType) != "text/xml" {
		t.Errorf("content type = %s", rec.Header().Get(echo.HeaderContentType))
	}
	if !strings.Contains(body, "Hi, this is CareBuddy, Mary.") {
		t.Errorf("greeting missing first name: %s", body)
	}
	if !strings.Contains(body, "<Gather") || !strings.Contains(body, "patient_id="+patientID.String()) {
		t.Errorf("gather action missing: %s", body)
	}
}

func TestHandler_Process_SpeaksReplyAndGathers(t *testing.T) {
	e := echo.New()
	conv := &mockConverser{result: chat.TurnResult{Reply: "Sounds good, keep it up!"}}
	h := newTestHandler(conv, &mockInitiator{})

	c, rec := postForm(e, "/", url.Values{"CallSid": {"CA1"}, "SpeechResult": {"I am doing fine"}})
	if err := h.Process(c); err != nil {
		t.Fatalf("Process() error: %v", err)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Sounds good, keep it up!") || !strings.Contains(body, "<Gather") {
		t.Errorf("unexpected TwiML: %s", body)
	}
	if conv.last.SessionID != "CA1" {
		t.Errorf("session keyed by %q, want call sid", conv.last.SessionID)
	}
	if conv.last.GenerateInsights {
		t.Error("voice turns should use the fast path")
	}
}

func TestHandler_Process_EmptySpeechReprompts(t *testing.T) {
	e := echo.New()
	conv := &mockConverser{}
	h := newTestHandler(conv, &mockInitiator{})

	c, rec := postForm(e, "/", url.Values{"CallSid": {"CA1"}})
	if err := h.Process(c); err != nil {
		t.Fatalf("Process() error: %v", err)
	}
	body := rec.Body.String()
	// The apostrophe in the reprompt is XML-escaped in the rendered TwiML.
	if !strings.Contains(body, "Could you repeat?") || !strings.Contains(body, "<Gather") {
		t.Errorf("expected reprompt TwiML: %s", body)
	}
	if conv.last.Message != "" {
		t.Error("empty speech should not reach the orchestrator")
	}
}

func TestHandler_Process_EmergencyHangsUp(t *testing.T) {
	e := echo.New()
	conv := &mockConverser{result: chat.TurnResult{
		Reply: "This could be serious.", Emergency: true,
	}}
	h := newTestHandler(conv, &mockInitiator{})

	c, rec := postForm(e, "/", url.Values{"CallSid": {"CA1"}, "SpeechResult": {"I have chest pain"}})
	if err := h.Process(c); err != nil {
		t.Fatalf("Process() error: %v", err)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "call 911") || !strings.Contains(body, "<Hangup") {
		t.Errorf("expected emergency hangup TwiML: %s", body)
	}
	if strings.Contains(body, "<Gather") {
		t.Error("emergency response must not gather more speech")
	}
}

func TestHandler_Status(t *testing.T) {
	e := echo.New()
	h := newTestHandler(&mockConverser{}, &mockInitiator{})

	c, rec := postForm(e, "/", url.Values{"CallSid": {"CA1"}, "CallStatus": {"completed"}})
	if err := h.Status(c); err != nil {
		t.Fatalf("Status() error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
}
