package chat

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carebuddy/carebuddy/internal/domain/alert"
	"github.com/carebuddy/carebuddy/internal/platform/llm"
	"github.com/carebuddy/carebuddy/internal/rules"
)

// fakeCompleter routes by system prompt so one fake serves all four stages.
type fakeCompleter struct {
	responses map[string]string
	errs      map[string]error
	calls     []string
}

func classifyStage(req llm.Request) string {
	switch {
	case strings.Contains(req.System, "data extraction agent"):
		return "extract"
	case strings.Contains(req.System, "risk assessment agent"):
		return "risk"
	case strings.Contains(req.System, "summary agent"):
		return "summary"
	default:
		return "buddy"
	}
}

func (f *fakeCompleter) Complete(_ context.Context, req llm.Request) (string, error) {
	stage := classifyStage(req)
	f.calls = append(f.calls, stage)
	if err := f.errs[stage]; err != nil {
		return "", err
	}
	if resp, ok := f.responses[stage]; ok {
		return resp, nil
	}
	return "ok", nil
}

type mockAlertSink struct {
	findings []rules.Finding
	err      error
}

func (m *mockAlertSink) CreateFromFinding(_ context.Context, patientID uuid.UUID, f rules.Finding, _ *uuid.UUID) (*alert.Alert, bool, error) {
	if m.err != nil {
		return nil, false, m.err
	}
	m.findings = append(m.findings, f)
	return &alert.Alert{ID: uuid.New(), PatientID: patientID, Type: f.Type, Severity: f.Severity}, true, nil
}

type mockPlanContext struct{ context string }

func (m *mockPlanContext) PromptContext(_ context.Context, _ uuid.UUID) string { return m.context }

func testLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).Level(zerolog.Disabled)
}

func newTestOrchestrator(fc *fakeCompleter, sink *mockAlertSink) *Orchestrator {
	stages := []Stage{
		NewBuddyStage(fc),
		NewExtractStage(fc),
		NewRiskStage(fc),
		NewSummaryStage(fc),
	}
	return NewOrchestrator(NewSessions(30*time.Minute), stages,
		NewKeywordDetector(nil), &mockPlanContext{}, sink, time.Second, testLogger())
}

func lowRiskJSON() string {
	return `{"level":"low","glucose_risk":"fine","symptom_risk":"fine","overall_risk":"fine","recommendations":[]}`
}

func TestConverse_FastPath(t *testing.T) {
	fc := &fakeCompleter{responses: map[string]string{"buddy": "Glad to hear it! How is your glucose today?"}}
	o := newTestOrchestrator(fc, &mockAlertSink{})

	res := o.Converse(context.Background(), TurnRequest{SessionID: "s1", Message: "Feeling good today"})

	if res.Reply != "Glad to hear it! How is your glucose today?" {
		t.Errorf("reply = %q", res.Reply)
	}
	if res.Emergency || res.Extracted != nil || res.Risk != nil || res.Summary != "" {
		t.Errorf("fast path leaked insights: %+v", res)
	}
	if len(fc.calls) != 1 || fc.calls[0] != "buddy" {
		t.Errorf("calls = %v, want only buddy", fc.calls)
	}
}

func TestConverse_TranscriptAccumulates(t *testing.T) {
	fc := &fakeCompleter{responses: map[string]string{"buddy": "hi"}}
	o := newTestOrchestrator(fc, &mockAlertSink{})

	o.Converse(context.Background(), TurnRequest{SessionID: "s1", Message: "first"})
	o.Converse(context.Background(), TurnRequest{SessionID: "s1", Message: "second"})

	st, release := o.sessions.Acquire("s1")
	defer release()
	if len(st.Transcript) != 4 {
		t.Errorf("transcript length = %d, want 4", len(st.Transcript))
	}
	if st.Transcript[2].Role != "user" || st.Transcript[2].Content != "second" {
		t.Errorf("transcript[2] = %+v", st.Transcript[2])
	}
}

func TestConverse_FullPath(t *testing.T) {
	fc := &fakeCompleter{responses: map[string]string{
		"buddy":   "Sounds okay.",
		"extract": `{"glucose":145,"medications_taken":true,"mood":"calm","symptoms":[],"concerns":null}`,
		"risk":    lowRiskJSON(),
		"summary": "Nice check-in today.",
	}}
	o := newTestOrchestrator(fc, &mockAlertSink{})

	res := o.Converse(context.Background(), TurnRequest{
		SessionID: "s1", Message: "My sugar was 145 after lunch", GenerateInsights: true,
	})

	if res.Extracted == nil || res.Extracted.Glucose == nil || *res.Extracted.Glucose != 145 {
		t.Errorf("extracted = %+v", res.Extracted)
	}
	if res.Risk == nil || res.Risk.Level != RiskLow {
		t.Errorf("risk = %+v", res.Risk)
	}
	if res.Summary != "Nice check-in today." {
		t.Errorf("summary = %q", res.Summary)
	}
	want := []string{"buddy", "extract", "risk", "summary"}
	if len(fc.calls) != 4 {
		t.Fatalf("calls = %v, want %v", fc.calls, want)
	}
	for i := range want {
		if fc.calls[i] != want[i] {
			t.Errorf("calls[%d] = %s, want %s", i, fc.calls[i], want[i])
		}
	}
}

func TestConverse_EmergencyShortCircuit(t *testing.T) {
	fc := &fakeCompleter{}
	sink := &mockAlertSink{}
	o := newTestOrchestrator(fc, sink)
	patientID := uuid.New()

	res := o.Converse(context.Background(), TurnRequest{
		SessionID: "s1", Message: "I have chest pain", PatientID: &patientID, GenerateInsights: true,
	})

	if !res.Emergency {
		t.Error("expected emergency flag")
	}
	if res.Reply != emergencyReply {
		t.Errorf("reply = %q", res.Reply)
	}
	if len(fc.calls) != 0 {
		t.Errorf("stages ran during short-circuit: %v", fc.calls)
	}
	if len(sink.findings) != 1 || sink.findings[0].Type != FindingEmergency ||
		sink.findings[0].Severity != rules.SeverityCritical {
		t.Errorf("findings = %+v", sink.findings)
	}
}

func TestConverse_EmergencyWithoutPatient(t *testing.T) {
	sink := &mockAlertSink{}
	o := newTestOrchestrator(&fakeCompleter{}, sink)

	res := o.Converse(context.Background(), TurnRequest{SessionID: "s1", Message: "I think I need to go to the ER"})

	if !res.Emergency {
		t.Error("expected emergency flag even without patient linkage")
	}
	if len(sink.findings) != 0 {
		t.Errorf("alert persisted without a patient: %+v", sink.findings)
	}
}

func TestConverse_DoctorIntent(t *testing.T) {
	o := newTestOrchestrator(&fakeCompleter{}, &mockAlertSink{})

	res := o.Converse(context.Background(), TurnRequest{SessionID: "s1", Message: "Please connect me to my doctor"})
	if !res.Emergency {
		t.Error("doctor intent should escalate")
	}
}

func TestConverse_CriticalRiskSideEffects(t *testing.T) {
	fc := &fakeCompleter{responses: map[string]string{
		"buddy":   "Let me check on that.",
		"extract": `{"glucose":40,"medications_taken":null,"mood":null,"symptoms":["dizziness"],"concerns":null}`,
		"risk":    `{"level":"critical","glucose_risk":"dangerously low","symptom_risk":"severe","overall_risk":"seek care now","recommendations":["seek immediate medical attention"]}`,
		"summary": "Please get help right away.",
	}}
	sink := &mockAlertSink{}
	o := newTestOrchestrator(fc, sink)
	patientID := uuid.New()

	res := o.Converse(context.Background(), TurnRequest{
		SessionID: "s1", Message: "I feel dizzy and my meter says 40", PatientID: &patientID, GenerateInsights: true,
	})

	if !res.Emergency {
		t.Error("critical risk should set the emergency flag")
	}
	// Pipeline completed normally: reply and summary are the staged outputs.
	if res.Reply != "Let me check on that." || res.Summary != "Please get help right away." {
		t.Errorf("pipeline aborted: %+v", res)
	}
	if len(sink.findings) != 1 || sink.findings[0].Type != FindingEmergency {
		t.Errorf("findings = %+v", sink.findings)
	}
}

func TestConverse_BuddyFailureDegrades(t *testing.T) {
	fc := &fakeCompleter{errs: map[string]error{"buddy": llm.ErrTimeout}}
	o := newTestOrchestrator(fc, &mockAlertSink{})

	res := o.Converse(context.Background(), TurnRequest{SessionID: "s1", Message: "hello", GenerateInsights: true})

	if res.Reply != fallbackReply {
		t.Errorf("reply = %q, want fallback", res.Reply)
	}
	if res.Emergency {
		t.Error("stage failure must not escalate")
	}
	if res.Extracted != nil || res.Risk != nil {
		t.Error("downstream stages ran after buddy failure")
	}
}

func TestConverse_ExtractFailureFallsBackEmpty(t *testing.T) {
	fc := &fakeCompleter{responses: map[string]string{
		"buddy":   "ok",
		"extract": "not json at all",
		"risk":    lowRiskJSON(),
		"summary": "done",
	}}
	o := newTestOrchestrator(fc, &mockAlertSink{})

	res := o.Converse(context.Background(), TurnRequest{SessionID: "s1", Message: "hi", GenerateInsights: true})

	if res.Extracted == nil {
		t.Fatal("expected empty extracted facts, got nil")
	}
	if res.Extracted.Glucose != nil || len(res.Extracted.Symptoms) != 0 {
		t.Errorf("extracted = %+v, want empty", res.Extracted)
	}
}

func TestConverse_RiskProviderFailureFallsBackLow(t *testing.T) {
	fc := &fakeCompleter{
		responses: map[string]string{"buddy": "ok", "extract": `{"symptoms":[]}`, "summary": "done"},
		errs:      map[string]error{"risk": errors.New("provider down")},
	}
	sink := &mockAlertSink{}
	o := newTestOrchestrator(fc, sink)

	res := o.Converse(context.Background(), TurnRequest{SessionID: "s1", Message: "hi", GenerateInsights: true})

	if res.Risk == nil || res.Risk.Level != RiskLow {
		t.Errorf("risk = %+v, want low fallback", res.Risk)
	}
	if len(sink.findings) != 0 {
		t.Error("fallback risk must not escalate")
	}
}

func TestInsights(t *testing.T) {
	fc := &fakeCompleter{responses: map[string]string{
		"buddy":   "ok",
		"extract": `{"glucose":120,"symptoms":[]}`,
		"risk":    lowRiskJSON(),
		"summary": "All looks steady.",
	}}
	o := newTestOrchestrator(fc, &mockAlertSink{})

	o.Converse(context.Background(), TurnRequest{SessionID: "s1", Message: "sugar was 120"})

	res, err := o.Insights(context.Background(), "s1")
	if err != nil {
		t.Fatalf("Insights() error: %v", err)
	}
	if res.Extracted == nil || res.Extracted.Glucose == nil || *res.Extracted.Glucose != 120 {
		t.Errorf("extracted = %+v", res.Extracted)
	}
	if res.Summary != "All looks steady." {
		t.Errorf("summary = %q", res.Summary)
	}
}

func TestInsights_UnknownSession(t *testing.T) {
	o := newTestOrchestrator(&fakeCompleter{}, &mockAlertSink{})

	if _, err := o.Insights(context.Background(), "never-seen"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("err = %v, want ErrSessionNotFound", err)
	}
}
