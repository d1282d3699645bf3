// Package rules implements the deterministic clinical rule engine. It is a
// pure package: evaluation functions take snapshots of patient data and
// return findings without touching storage.
package rules

import (
	"fmt"
	"time"

	"github.com/carebuddy/carebuddy/internal/domain/careplan"
)

// Reading classification.
type ReadingType string

const (
	ReadingFasting  ReadingType = "fasting"
	ReadingPostMeal ReadingType = "post_meal"
	ReadingRandom   ReadingType = "random"
	ReadingBedtime  ReadingType = "bedtime"
)

// ValidReadingType reports whether t is a known classification.
func ValidReadingType(t ReadingType) bool {
	switch t {
	case ReadingFasting, ReadingPostMeal, ReadingRandom, ReadingBedtime:
		return true
	}
	return false
}

// Severity of a finding, ordered from least to most urgent.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// severityRank orders severities for comparison.
var severityRank = map[Severity]int{
	SeverityLow:      0,
	SeverityMedium:   1,
	SeverityHigh:     2,
	SeverityCritical: 3,
}

// AtLeast reports whether s is at least as urgent as other.
func (s Severity) AtLeast(other Severity) bool {
	return severityRank[s] >= severityRank[other]
}

// Finding types. FindingEmergency is raised by the conversation layer and
// the emergency contact flow, not by threshold evaluation.
const (
	FindingLowGlucose  = "low_glucose"
	FindingHighGlucose = "high_glucose"
	FindingMissedDose  = "missed_dose"
	FindingEmergency   = "emergency"
)

// Absolute thresholds in mg/dL beyond which any reading is critical
// regardless of the patient's configured targets.
const (
	CriticalLowMgdl  = 54
	CriticalHighMgdl = 250
)

// MissedDoseGrace is how long past a scheduled time a dose may still be
// taken before it counts as missed.
const MissedDoseGrace = 30 * time.Minute

// Finding is the outcome of a rule evaluation. DedupKey identifies the
// triggering condition so callers can suppress duplicates before persisting.
type Finding struct {
	Type     string
	Severity Severity
	Message  string
	DedupKey string
}

// rangeFor selects the applicable target range. Random and bedtime readings
// use the union of the fasting and post-meal ranges so that only readings
// outside both raise findings.
func rangeFor(t ReadingType, gt careplan.GlucoseTargets) (min, max int) {
	switch t {
	case ReadingFasting:
		return gt.FastingMin, gt.FastingMax
	case ReadingPostMeal:
		return gt.PostMealMin, gt.PostMealMax
	default:
		min = gt.FastingMin
		if gt.PostMealMin < min {
			min = gt.PostMealMin
		}
		max = gt.FastingMax
		if gt.PostMealMax > max {
			max = gt.PostMealMax
		}
		return min, max
	}
}

// EvaluateGlucose checks a reading against the patient's targets. It returns
// nil when the reading is in range. Out-of-range readings are medium
// severity; readings beyond the absolute critical thresholds are critical.
func EvaluateGlucose(reading float64, readingType ReadingType, gt careplan.GlucoseTargets) *Finding {
	min, max := rangeFor(readingType, gt)

	switch {
	case reading < CriticalLowMgdl:
		return &Finding{
			Type:     FindingLowGlucose,
			Severity: SeverityCritical,
			Message:  fmt.Sprintf("Critically low %s glucose: %g mg/dL", readingType, reading),
			DedupKey: glucoseDedupKey(readingType, reading),
		}
	case reading > CriticalHighMgdl:
		return &Finding{
			Type:     FindingHighGlucose,
			Severity: SeverityCritical,
			Message:  fmt.Sprintf("Critically high %s glucose: %g mg/dL", readingType, reading),
			DedupKey: glucoseDedupKey(readingType, reading),
		}
	case reading < float64(min):
		return &Finding{
			Type:     FindingLowGlucose,
			Severity: SeverityMedium,
			Message:  fmt.Sprintf("Low %s glucose: %g mg/dL (target: %d-%d)", readingType, reading, min, max),
			DedupKey: glucoseDedupKey(readingType, reading),
		}
	case reading > float64(max):
		return &Finding{
			Type:     FindingHighGlucose,
			Severity: SeverityMedium,
			Message:  fmt.Sprintf("High %s glucose: %g mg/dL (target: %d-%d)", readingType, reading, min, max),
			DedupKey: glucoseDedupKey(readingType, reading),
		}
	}
	return nil
}

func glucoseDedupKey(t ReadingType, reading float64) string {
	return fmt.Sprintf("glucose:%s:%g", t, reading)
}

// TakenDose is a medication log relevant to missed-dose evaluation.
type TakenDose struct {
	MedicationName string
	Taken          bool
	At             time.Time
}

// EvaluateMissedDoses walks the plan's medication schedule for now's
// calendar day and reports each dose whose scheduled time plus the grace
// window has passed without a matching taken log. The taken log must be for
// the same medication, marked taken, and timestamped at or after the
// scheduled time on the same day.
func EvaluateMissedDoses(plan *careplan.CarePlan, todaysLogs []TakenDose, now time.Time) []Finding {
	if plan == nil {
		return nil
	}

	var findings []Finding
	day := now.Format("2006-01-02")

	for _, med := range plan.Medications {
		for _, clock := range med.Times {
			t, err := time.Parse("15:04", clock)
			if err != nil {
				continue
			}
			scheduled := time.Date(now.Year(), now.Month(), now.Day(), t.Hour(), t.Minute(), 0, 0, now.Location())
			if !now.After(scheduled.Add(MissedDoseGrace)) {
				continue
			}

			if doseTaken(med.Name, scheduled, todaysLogs) {
				continue
			}

			findings = append(findings, Finding{
				Type:     FindingMissedDose,
				Severity: SeverityMedium,
				Message:  fmt.Sprintf("Missed dose: %s (%s) scheduled for %s", med.Name, med.Dosage, clock),
				DedupKey: fmt.Sprintf("missed_dose:%s:%s:%s", med.Name, clock, day),
			})
		}
	}
	return findings
}

func doseTaken(medication string, scheduled time.Time, logs []TakenDose) bool {
	for _, l := range logs {
		if !l.Taken || l.MedicationName != medication {
			continue
		}
		sameDay := l.At.Year() == scheduled.Year() && l.At.YearDay() == scheduled.YearDay()
		if sameDay && !l.At.Before(scheduled) {
			return true
		}
	}
	return false
}
