package voice

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carebuddy/carebuddy/internal/domain/chat"
	"github.com/carebuddy/carebuddy/internal/domain/identity"
	"github.com/carebuddy/carebuddy/internal/platform/telephony"
)

// Converser runs one conversation turn. chat.Orchestrator satisfies it.
type Converser interface {
	Converse(ctx context.Context, req chat.TurnRequest) chat.TurnResult
}

// PatientSource resolves patients for greeting personalization.
type PatientSource interface {
	GetPatient(ctx context.Context, id uuid.UUID) (*identity.Patient, error)
}

// Service drives phone conversations: outbound call initiation and the
// per-webhook conversation turns, keyed by the provider call id.
type Service struct {
	conv        Converser
	patients    PatientSource
	calls       telephony.CallInitiator
	webhookBase string
	log         zerolog.Logger
}

// NewService wires the voice flows. calls may be nil when telephony
// credentials are absent; initiation then fails with ErrNotConfigured while
// inbound webhooks keep working.
func NewService(conv Converser, patients PatientSource, calls telephony.CallInitiator,
	webhookBase string, log zerolog.Logger) *Service {
	return &Service{
		conv:        conv,
		patients:    patients,
		calls:       calls,
		webhookBase: strings.TrimSuffix(webhookBase, "/"),
		log:         log.With().Str("component", "voice").Logger(),
	}
}

// InitiateCall starts an outbound call to an E.164 number. The provider
// fetches the greeting TwiML from the answer webhook when the patient picks
// up.
func (s *Service) InitiateCall(ctx context.Context, phone string, patientID *uuid.UUID) (*telephony.Call, error) {
	if s.calls == nil {
		return nil, telephony.ErrNotConfigured
	}
	if !strings.HasPrefix(phone, "+") {
		return nil, fmt.Errorf("phone number must be in E.164 format (e.g., +1234567890)")
	}
	webhookURL := s.webhookBase + "/api/v1/voice/call"
	if patientID != nil {
		webhookURL += "?patient_id=" + patientID.String()
	}
	call, err := s.calls.InitiateCall(ctx, phone, webhookURL)
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("call_sid", call.SID).Str("to", call.To).Msg("outbound call initiated")
	return call, nil
}

// Greeting builds the answer prompt, using the patient's first name when
// the call is linked to one.
func (s *Service) Greeting(ctx context.Context, patientID *uuid.UUID) string {
	greeting := "Hi, this is CareBuddy"
	if patientID != nil {
		if patient, err := s.patients.GetPatient(ctx, *patientID); err == nil {
			if name := patient.FirstName(); name != "" {
				greeting += ", " + name
			}
		}
	}
	return greeting + ". I'm calling to check in with you today. How are you doing?"
}

// Turn runs one fast-path conversation turn keyed by the call id.
func (s *Service) Turn(ctx context.Context, callSid, speech string, patientID *uuid.UUID) chat.TurnResult {
	sessionID := callSid
	if sessionID == "" {
		sessionID = "voice_unknown"
		if patientID != nil {
			sessionID = "voice_" + patientID.String()
		}
	}
	return s.conv.Converse(ctx, chat.TurnRequest{
		SessionID: sessionID,
		Message:   speech,
		PatientID: patientID,
	})
}

// CallStatus records provider lifecycle updates.
func (s *Service) CallStatus(callSid, status string) {
	s.log.Info().Str("call_sid", callSid).Str("status", status).Msg("call status update")
}
