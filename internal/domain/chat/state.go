package chat

import (
	"github.com/google/uuid"

	"github.com/carebuddy/carebuddy/internal/platform/llm"
)

// RiskLevel is the ordered outcome of the risk stage.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskModerate RiskLevel = "moderate"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

var riskRank = map[RiskLevel]int{
	RiskLow:      0,
	RiskModerate: 1,
	RiskHigh:     2,
	RiskCritical: 3,
}

// AtLeast reports whether l is at or above min in urgency. Unknown levels
// rank lowest.
func (l RiskLevel) AtLeast(min RiskLevel) bool {
	return riskRank[l] >= riskRank[min]
}

// ExtractedFacts is the structured output of the extraction stage. Fields
// are nil when the conversation did not mention them.
type ExtractedFacts struct {
	Glucose          *float64 `json:"glucose"`
	MedicationsTaken *bool    `json:"medications_taken"`
	Mood             *string  `json:"mood"`
	Symptoms         []string `json:"symptoms"`
	Concerns         *string  `json:"concerns"`
}

// RiskAssessment is the structured output of the risk stage.
type RiskAssessment struct {
	Level           RiskLevel `json:"level"`
	GlucoseRisk     string    `json:"glucose_risk"`
	SymptomRisk     string    `json:"symptom_risk"`
	OverallRisk     string    `json:"overall_risk"`
	Recommendations []string  `json:"recommendations"`
}

// State is the per-session conversation state. It lives in process memory
// only and is owned by whichever call holds the session lock.
type State struct {
	SessionID   string
	PatientID   *uuid.UUID
	Transcript  []llm.Message
	UserMessage string
	Reply       string
	Extracted   *ExtractedFacts
	Risk        *RiskAssessment
	Summary     string
	Emergency   bool
}

// RecentTranscript returns up to n of the most recent transcript messages.
func (s *State) RecentTranscript(n int) []llm.Message {
	if len(s.Transcript) <= n {
		return s.Transcript
	}
	return s.Transcript[len(s.Transcript)-n:]
}

// LastUserMessage returns the most recent user turn, or "" when the
// transcript has none.
func (s *State) LastUserMessage() string {
	for i := len(s.Transcript) - 1; i >= 0; i-- {
		if s.Transcript[i].Role == "user" {
			return s.Transcript[i].Content
		}
	}
	return ""
}
