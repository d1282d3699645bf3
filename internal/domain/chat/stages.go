package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/carebuddy/carebuddy/internal/platform/llm"
)

// Stage is one step of the conversation pipeline. Run mutates the state in
// place; planContext is the rendered care plan, empty when the patient has
// none. The first stage's error degrades the whole turn; later stages
// degrade themselves to fallback values and return nil.
type Stage interface {
	Name() string
	Run(ctx context.Context, st *State, planContext string) error
}

const historyWindow = 10

const buddySystemPrompt = `You are CareBuddy, a warm, friendly diabetes check-in buddy.

GOALS:
- Have short, supportive daily conversations with people living with diabetes.
- Ask about their blood sugar, medications, how they feel, and anything worrying them.
- Provide gentle reminders about medications, glucose checks, exercise, and meals based on their care plan.
- Encourage them, educate them gently, and help them feel less alone.
- NEVER give medical dosing instructions or override their clinician.

TONE:
- Friendly, plain language, no jargon.
- Speak like a kind neighbor, not a robot or doctor.
- Short sentences. One question at a time.
- Respectful, non-judgmental, no shaming.

SAFETY:
- DO NOT adjust insulin doses, tell people to change meds, diagnose
  conditions, or recommend specific drugs or treatments.
- If the user asks for dosing or urgent medical advice, say:
  "I'm not a doctor and I can't safely answer that. Please call your doctor or nurse."
- If the user mentions chest pain, trouble breathing, confusion, passing
  out, or feeling like they might harm themselves, say:
  "This could be serious. Please call emergency services or go to the nearest emergency room right away."

STYLE:
- Keep replies 1-3 sentences.
- Ask only one question at a time.
- Use care plan information to provide personalized, relevant reminders.`

// buddyStage produces the conversational reply. It is the only stage whose
// failure degrades the turn.
type buddyStage struct {
	llm llm.Completer
}

func NewBuddyStage(completer llm.Completer) Stage {
	return &buddyStage{llm: completer}
}

func (s *buddyStage) Name() string { return "buddy" }

func (s *buddyStage) Run(ctx context.Context, st *State, planContext string) error {
	system := buddySystemPrompt
	if planContext != "" {
		system += "\n\nPATIENT CARE PLAN CONTEXT:\n" + planContext +
			"\n\nUse this information to provide personalized reminders and ask relevant questions about their medications, glucose targets, and health goals."
	}

	messages := append([]llm.Message{}, st.RecentTranscript(historyWindow)...)
	messages = append(messages, llm.Message{Role: "user", Content: st.UserMessage})

	reply, err := s.llm.Complete(ctx, llm.Request{
		System:      system,
		Messages:    messages,
		Temperature: 0.7,
	})
	if err != nil {
		return fmt.Errorf("buddy stage: %w", err)
	}
	st.Reply = strings.TrimSpace(reply)
	return nil
}

const extractSystemPrompt = `You are a data extraction agent. Extract structured information from diabetes-related conversations.

Extract the following information if mentioned:
- glucose: Blood glucose reading in mg/dL (numeric value only)
- medications_taken: Boolean indicating if medications were taken today
- mood: User's emotional state or mood
- symptoms: List of symptoms (dizziness, shakiness, thirst, fatigue, etc.)
- concerns: Any health concerns or worries mentioned

If information is not mentioned, set the field to null.
Return ONLY valid JSON with exactly these keys: glucose, medications_taken, mood, symptoms, concerns.`

// extractStage pulls structured facts out of the turn. Completion or parse
// failure degrades to empty facts.
type extractStage struct {
	llm llm.Completer
}

func NewExtractStage(completer llm.Completer) Stage {
	return &extractStage{llm: completer}
}

func (s *extractStage) Name() string { return "extract" }

func (s *extractStage) Run(ctx context.Context, st *State, _ string) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Extract data from this conversation:\n\nUser message: %s\nBuddy reply: %s\n\nConversation history:\n", st.UserMessage, st.Reply)
	for _, m := range st.RecentTranscript(historyWindow) {
		fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
	}

	facts := &ExtractedFacts{Symptoms: []string{}}
	raw, err := s.llm.Complete(ctx, llm.Request{
		System:      extractSystemPrompt,
		Messages:    []llm.Message{{Role: "user", Content: b.String()}},
		Temperature: 0.1,
	})
	if err == nil {
		if perr := json.Unmarshal([]byte(jsonBody(raw)), facts); perr != nil {
			facts = &ExtractedFacts{Symptoms: []string{}}
		}
	}
	if facts.Symptoms == nil {
		facts.Symptoms = []string{}
	}
	st.Extracted = facts
	return nil
}

const riskSystemPrompt = `You are a risk assessment agent for diabetes care. Assess risk based on extracted data.

Risk Levels:
- low: Normal glucose (70-180 mg/dL), no concerning symptoms, medications taken
- moderate: Glucose slightly out of range (50-70 or 180-250), mild symptoms, missed medications
- high: Glucose significantly out of range (<50 or >250), multiple symptoms, significant concerns
- critical: Severe symptoms (chest pain, trouble breathing, confusion), very high/low glucose, emergency situation

IMPORTANT SAFETY RULES:
- DO NOT provide medical advice or dosing instructions
- For critical situations, recommend immediate medical attention
- For high risk, recommend contacting healthcare provider
- Keep recommendations general and non-medical

Return ONLY valid JSON with exactly these keys: level, glucose_risk, symptom_risk, overall_risk, recommendations.`

// riskStage grades the extracted facts. Failure degrades to a low
// assessment so a broken provider never fabricates an escalation.
type riskStage struct {
	llm llm.Completer
}

func NewRiskStage(completer llm.Completer) Stage {
	return &riskStage{llm: completer}
}

func (s *riskStage) Name() string { return "risk" }

func (s *riskStage) Run(ctx context.Context, st *State, _ string) error {
	extracted, _ := json.Marshal(st.Extracted)

	assessment := fallbackRisk()
	raw, err := s.llm.Complete(ctx, llm.Request{
		System:      riskSystemPrompt,
		Messages:    []llm.Message{{Role: "user", Content: "Assess risk from this extracted data:\n\n" + string(extracted)}},
		Temperature: 0.1,
	})
	if err == nil {
		var parsed RiskAssessment
		if perr := json.Unmarshal([]byte(jsonBody(raw)), &parsed); perr == nil && riskKnown(parsed.Level) {
			assessment = &parsed
		}
	}
	if assessment.Recommendations == nil {
		assessment.Recommendations = []string{}
	}
	st.Risk = assessment
	return nil
}

func fallbackRisk() *RiskAssessment {
	return &RiskAssessment{
		Level:           RiskLow,
		GlucoseRisk:     "Unable to assess",
		SymptomRisk:     "Unable to assess",
		OverallRisk:     "Unable to assess",
		Recommendations: []string{},
	}
}

func riskKnown(l RiskLevel) bool {
	_, ok := riskRank[l]
	return ok
}

const summarySystemPrompt = `You are a friendly summary agent for CareBuddy. Generate a warm, supportive daily summary.

TONE:
- Friendly, encouraging, like a caring neighbor
- Plain language, no medical jargon
- 2-4 sentences maximum

CONTENT:
- Summarize the key points from today's check-in
- Acknowledge what the user shared
- If risk is moderate or high, include a gentle reminder to stay in touch with their healthcare team
- DO NOT provide medical advice or dosing instructions`

const fallbackSummary = "Thank you for checking in today. Take care!"

// summaryStage writes the human-readable wrap-up. Failure degrades to a
// fixed friendly message.
type summaryStage struct {
	llm llm.Completer
}

func NewSummaryStage(completer llm.Completer) Stage {
	return &summaryStage{llm: completer}
}

func (s *summaryStage) Name() string { return "summary" }

func (s *summaryStage) Run(ctx context.Context, st *State, _ string) error {
	extracted, _ := json.Marshal(st.Extracted)
	risk, _ := json.Marshal(st.Risk)
	prompt := fmt.Sprintf("Generate a friendly daily summary based on:\n\nConversation:\nUser: %s\nBuddy: %s\n\nExtracted Data:\n%s\n\nRisk Assessment:\n%s",
		st.UserMessage, st.Reply, extracted, risk)

	summary, err := s.llm.Complete(ctx, llm.Request{
		System:      summarySystemPrompt,
		Messages:    []llm.Message{{Role: "user", Content: prompt}},
		Temperature: 0.7,
	})
	if err != nil || strings.TrimSpace(summary) == "" {
		st.Summary = fallbackSummary
		return nil
	}
	st.Summary = strings.TrimSpace(summary)
	return nil
}

// jsonBody strips markdown code fences some providers wrap JSON output in.
func jsonBody(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSuffix(raw, "```")
	}
	return strings.TrimSpace(raw)
}
