package chat

import "strings"

// EmergencyDetector decides whether an utterance needs immediate escalation.
// The keyword implementation can be swapped for a classifier without
// touching the orchestrator.
type EmergencyDetector interface {
	Detect(text string) bool
}

// DefaultEmergencyKeywords is the built-in denylist, matched as
// case-insensitive substrings.
var DefaultEmergencyKeywords = []string{
	"chest pain", "trouble breathing", "can't breathe", "difficulty breathing",
	"confusion", "passing out", "fainted", "unconscious", "emergency",
	"emergency room", "go to the er", "hospital",
	"very high", "very low", "extremely high", "extremely low",
	"severe", "critical", "urgent", "help", "911",
}

// doctorIntents catch explicit requests to be connected to the care team.
var doctorIntents = []string{
	"connect me to my doctor",
	"call my doctor",
	"talk to my doctor",
	"speak to my doctor",
}

type KeywordDetector struct {
	keywords []string
}

// NewKeywordDetector builds a detector over the given denylist. An empty
// list falls back to DefaultEmergencyKeywords.
func NewKeywordDetector(keywords []string) *KeywordDetector {
	if len(keywords) == 0 {
		keywords = DefaultEmergencyKeywords
	}
	return &KeywordDetector{keywords: keywords}
}

func (d *KeywordDetector) Detect(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range d.keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	for _, intent := range doctorIntents {
		if strings.Contains(lower, intent) {
			return true
		}
	}
	return false
}
