package chat

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carebuddy/carebuddy/internal/domain/alert"
	"github.com/carebuddy/carebuddy/internal/platform/llm"
	"github.com/carebuddy/carebuddy/internal/rules"
)

// ErrSessionNotFound is returned by Insights for an unknown session id.
var ErrSessionNotFound = errors.New("session not found")

// FindingEmergency is the alert type raised by the emergency short-circuit
// and by a critical risk assessment.
const FindingEmergency = rules.FindingEmergency

const (
	emergencyReply = "This could be serious. Please call emergency services or go to the nearest emergency room right away. I've alerted your care team."
	fallbackReply  = "I'm sorry, I'm having trouble right now. Please try again in a moment."
)

// PlanContextSource renders the care plan for prompt personalization.
// careplan.Service satisfies it.
type PlanContextSource interface {
	PromptContext(ctx context.Context, patientID uuid.UUID) string
}

// AlertSink persists emergency alerts. alert.Service satisfies it.
type AlertSink interface {
	CreateFromFinding(ctx context.Context, patientID uuid.UUID, f rules.Finding, sourceLogID *uuid.UUID) (*alert.Alert, bool, error)
}

type TurnRequest struct {
	SessionID        string
	Message          string
	PatientID        *uuid.UUID
	GenerateInsights bool
}

// TurnResult is always well-formed: stage failures degrade the reply, they
// never surface as errors.
type TurnResult struct {
	Reply     string          `json:"reply"`
	Emergency bool            `json:"is_emergency"`
	Extracted *ExtractedFacts `json:"extracted,omitempty"`
	Risk      *RiskAssessment `json:"risk,omitempty"`
	Summary   string          `json:"summary,omitempty"`
}

type InsightsResult struct {
	Extracted *ExtractedFacts `json:"extracted"`
	Risk      *RiskAssessment `json:"risk"`
	Summary   string          `json:"summary"`
}

// Orchestrator sequences the conversation stages. stages[0] is the
// conversational stage; the fast path runs only it, the full path runs the
// whole list in order.
type Orchestrator struct {
	sessions     *Sessions
	stages       []Stage
	detector     EmergencyDetector
	plans        PlanContextSource
	alerts       AlertSink
	stageTimeout time.Duration
	log          zerolog.Logger
}

func NewOrchestrator(sessions *Sessions, stages []Stage, detector EmergencyDetector,
	plans PlanContextSource, alerts AlertSink, stageTimeout time.Duration, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		sessions:     sessions,
		stages:       stages,
		detector:     detector,
		plans:        plans,
		alerts:       alerts,
		stageTimeout: stageTimeout,
		log:          log.With().Str("component", "orchestrator").Logger(),
	}
}

// Converse runs one conversation turn. Emergency keywords short-circuit the
// pipeline; otherwise the conversational stage runs, and when insights are
// requested the extraction, risk and summary stages follow. A critical risk
// assessment triggers the emergency side effects without aborting the turn.
func (o *Orchestrator) Converse(ctx context.Context, req TurnRequest) TurnResult {
	st, release := o.sessions.Acquire(req.SessionID)
	defer release()

	if req.PatientID != nil {
		st.PatientID = req.PatientID
	}
	st.UserMessage = req.Message
	st.Reply = ""

	if o.detector.Detect(req.Message) {
		st.Emergency = true
		o.raiseEmergency(ctx, st, "Emergency detected in conversation: "+truncate(req.Message, 200))
		st.Transcript = append(st.Transcript,
			llm.Message{Role: "user", Content: req.Message},
			llm.Message{Role: "assistant", Content: emergencyReply})
		return TurnResult{Reply: emergencyReply, Emergency: true}
	}

	if err := o.runStage(ctx, o.stages[0], st, o.planContext(ctx, st)); err != nil {
		o.log.Warn().Err(err).Str("session_id", st.SessionID).Msg("conversation stage degraded")
		return TurnResult{Reply: fallbackReply}
	}
	st.Transcript = append(st.Transcript,
		llm.Message{Role: "user", Content: req.Message},
		llm.Message{Role: "assistant", Content: st.Reply})

	result := TurnResult{Reply: st.Reply}
	if !req.GenerateInsights {
		return result
	}

	o.runInsightStages(ctx, st)
	result.Emergency = st.Emergency
	result.Extracted = st.Extracted
	result.Risk = st.Risk
	result.Summary = st.Summary
	return result
}

// Insights re-runs the full pipeline over the session's history, anchored
// on the most recent user turn.
func (o *Orchestrator) Insights(ctx context.Context, sessionID string) (*InsightsResult, error) {
	if !o.sessions.Lookup(sessionID) {
		return nil, ErrSessionNotFound
	}
	st, release := o.sessions.Acquire(sessionID)
	defer release()

	st.UserMessage = st.LastUserMessage()
	if st.UserMessage == "" {
		st.UserMessage = "Generate insights from this conversation"
	}
	if err := o.runStage(ctx, o.stages[0], st, o.planContext(ctx, st)); err != nil {
		o.log.Warn().Err(err).Str("session_id", sessionID).Msg("conversation stage degraded during insights")
	}
	o.runInsightStages(ctx, st)

	return &InsightsResult{Extracted: st.Extracted, Risk: st.Risk, Summary: st.Summary}, nil
}

func (o *Orchestrator) runInsightStages(ctx context.Context, st *State) {
	for _, stage := range o.stages[1:] {
		if err := o.runStage(ctx, stage, st, ""); err != nil {
			o.log.Warn().Err(err).Str("stage", stage.Name()).Msg("stage degraded")
		}
	}
	if st.Risk != nil && st.Risk.Level.AtLeast(RiskCritical) && !st.Emergency {
		st.Emergency = true
		o.raiseEmergency(ctx, st, "Critical risk assessment: "+st.Risk.OverallRisk)
	}
}

func (o *Orchestrator) runStage(ctx context.Context, stage Stage, st *State, planContext string) error {
	ctx, cancel := context.WithTimeout(ctx, o.stageTimeout)
	defer cancel()
	return stage.Run(ctx, st, planContext)
}

func (o *Orchestrator) planContext(ctx context.Context, st *State) string {
	if st.PatientID == nil {
		return ""
	}
	return o.plans.PromptContext(ctx, *st.PatientID)
}

// raiseEmergency creates the critical alert and lets the alert service fan
// out the doctor notification. Without patient linkage there is nothing to
// persist; the caller still receives the emergency flag.
func (o *Orchestrator) raiseEmergency(ctx context.Context, st *State, message string) {
	if st.PatientID == nil {
		o.log.Warn().Str("session_id", st.SessionID).Msg("emergency without patient linkage, no alert persisted")
		return
	}
	f := rules.Finding{
		Type:     FindingEmergency,
		Severity: rules.SeverityCritical,
		Message:  message,
		DedupKey: "emergency:" + st.SessionID + ":" + uuid.NewString(),
	}
	if _, _, err := o.alerts.CreateFromFinding(ctx, *st.PatientID, f, nil); err != nil {
		o.log.Error().Err(err).Str("session_id", st.SessionID).Msg("emergency alert persist failed")
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
