package report

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/carebuddy/carebuddy/internal/domain/alert"
	"github.com/carebuddy/carebuddy/internal/domain/careplan"
	"github.com/carebuddy/carebuddy/internal/domain/healthlog"
	"github.com/carebuddy/carebuddy/internal/rules"
)

const (
	WeeklyWindowDays  = 7
	MonthlyWindowDays = 30
)

// BuildWeekly folds one week of logs and alerts into a doctor-facing report.
// Pure function: no lookups, no clock reads beyond now.
func BuildWeekly(patientID uuid.UUID, plan *careplan.CarePlan, logs *healthlog.Logs,
	alerts []*alert.Alert, now time.Time) *WeeklyReport {
	r := &WeeklyReport{
		PatientID:   patientID,
		Period:      Period{Start: now.AddDate(0, 0, -WeeklyWindowDays), End: now},
		Glucose:     glucoseStats(logs.Glucose),
		Adherence:   adherence(plan, logs.Medication, WeeklyWindowDays),
		Activity:    activityStats(plan, logs.Activity, WeeklyWindowDays),
		Alerts:      alertStats(alerts),
		MealsLogged: len(logs.Meals),
	}
	r.RecentReadings = lastN(logs.Glucose, 10)
	r.RecentAlerts = lastN(alerts, 10)
	if r.RecentReadings == nil {
		r.RecentReadings = []*healthlog.GlucoseLog{}
	}
	if r.RecentAlerts == nil {
		r.RecentAlerts = []*alert.Alert{}
	}
	return r
}

// BuildMonthly folds thirty days of logs and alerts into a doctor-facing
// report, adding day-level highs and lows and recurring pattern detection.
func BuildMonthly(patientID uuid.UUID, plan *careplan.CarePlan, logs *healthlog.Logs,
	alerts []*alert.Alert, now time.Time) *MonthlyReport {
	targets := careplan.DefaultGlucoseTargets()
	if plan != nil {
		targets = plan.GlucoseTargets
	}
	highDays, lowDays := outOfRangeDays(logs.Glucose, targets)

	r := &MonthlyReport{
		PatientID:       patientID,
		Period:          Period{Start: now.AddDate(0, 0, -MonthlyWindowDays), End: now},
		Glucose:         glucoseStats(logs.Glucose),
		HighGlucoseDays: highDays,
		LowGlucoseDays:  lowDays,
		Patterns:        detectPatterns(logs.Glucose, targets),
		Adherence:       adherence(plan, logs.Medication, MonthlyWindowDays),
		Activity:        activityStats(plan, logs.Activity, MonthlyWindowDays),
		Alerts:          alertStats(alerts),
	}

	adherenceText := "n/a"
	if r.Adherence.Rate != nil {
		adherenceText = fmt.Sprintf("%.0f%%", *r.Adherence.Rate*100)
	}
	r.Summary = fmt.Sprintf("Patient showed %d days with high glucose and %d days with low glucose. Medication adherence: %s",
		highDays, lowDays, adherenceText)
	return r
}

// BuildSummary aggregates a trailing window into the patient-facing summary,
// including time in the standard 70-180 mg/dL band.
func BuildSummary(patientID uuid.UUID, plan *careplan.CarePlan, logs *healthlog.Logs,
	days int, now time.Time) *Summary {
	s := &Summary{
		PatientID:   patientID,
		PeriodDays:  days,
		TimeInRange: timeInRange(logs.Glucose),
		Glucose:     glucoseStats(logs.Glucose),
		MealsLogged: len(logs.Meals),
		GeneratedAt: now,
	}
	for _, l := range logs.Activity {
		s.ActivityMinutes += l.DurationMinutes
	}
	s.AdherenceRate = adherence(plan, logs.Medication, days).Rate
	return s
}

func glucoseStats(logs []*healthlog.GlucoseLog) GlucoseStats {
	stats := GlucoseStats{ReadingsCount: len(logs)}
	if len(logs) == 0 {
		return stats
	}
	sum, min, max := 0.0, logs[0].Reading, logs[0].Reading
	for _, l := range logs {
		sum += l.Reading
		if l.Reading < min {
			min = l.Reading
		}
		if l.Reading > max {
			max = l.Reading
		}
	}
	avg := sum / float64(len(logs))
	stats.Average, stats.Min, stats.Max = &avg, &min, &max
	return stats
}

func adherence(plan *careplan.CarePlan, logs []*healthlog.MedicationLog, days int) Adherence {
	a := Adherence{}
	for _, l := range logs {
		if l.Taken {
			a.Taken++
		}
	}
	if plan == nil || len(plan.Medications) == 0 {
		return a
	}
	for _, med := range plan.Medications {
		a.TotalExpected += len(med.Times) * days
	}
	if a.TotalExpected == 0 {
		return a
	}
	rate := float64(a.Taken) / float64(a.TotalExpected)
	if rate > 1 {
		rate = 1
	}
	a.Rate = &rate
	return a
}

func activityStats(plan *careplan.CarePlan, logs []*healthlog.ActivityLog, days int) ActivityStats {
	stats := ActivityStats{}
	for _, l := range logs {
		stats.TotalMinutes += l.DurationMinutes
	}
	if plan != nil && plan.HealthGoals.ActivityMinutesPerWeek != nil {
		goal := *plan.HealthGoals.ActivityMinutesPerWeek * days / 7
		stats.GoalMinutes = &goal
	}
	return stats
}

func alertStats(alerts []*alert.Alert) AlertStats {
	stats := AlertStats{Total: len(alerts)}
	for _, a := range alerts {
		if a.Severity == rules.SeverityCritical {
			stats.Critical++
		}
		switch a.Type {
		case rules.FindingHighGlucose:
			stats.HighGlucose++
		case rules.FindingLowGlucose:
			stats.LowGlucose++
		case rules.FindingMissedDose:
			stats.MissedDose++
		}
	}
	return stats
}

// outOfRangeDays counts distinct calendar days containing at least one high
// or low reading against the plan's targets.
func outOfRangeDays(logs []*healthlog.GlucoseLog, targets careplan.GlucoseTargets) (high, low int) {
	highDays := map[string]struct{}{}
	lowDays := map[string]struct{}{}
	for _, l := range logs {
		f := rules.EvaluateGlucose(l.Reading, l.ReadingType, targets)
		if f == nil {
			continue
		}
		day := l.LoggedAt.Format("2006-01-02")
		switch f.Type {
		case rules.FindingHighGlucose:
			highDays[day] = struct{}{}
		case rules.FindingLowGlucose:
			lowDays[day] = struct{}{}
		}
	}
	return len(highDays), len(lowDays)
}

// detectPatterns flags (reading type, direction) pairs that went out of
// range at least PatternMinOccurrences times in the window. Output order is
// stable: by reading type, high before low.
func detectPatterns(logs []*healthlog.GlucoseLog, targets careplan.GlucoseTargets) []Pattern {
	type key struct {
		readingType rules.ReadingType
		direction   string
	}
	counts := map[key]int{}
	for _, l := range logs {
		f := rules.EvaluateGlucose(l.Reading, l.ReadingType, targets)
		if f == nil {
			continue
		}
		direction := "low"
		if f.Type == rules.FindingHighGlucose {
			direction = "high"
		}
		counts[key{l.ReadingType, direction}]++
	}

	var patterns []Pattern
	for k, n := range counts {
		if n >= PatternMinOccurrences {
			patterns = append(patterns, Pattern{ReadingType: k.readingType, Direction: k.direction, Occurrences: n})
		}
	}
	sort.Slice(patterns, func(i, j int) bool {
		if patterns[i].ReadingType != patterns[j].ReadingType {
			return patterns[i].ReadingType < patterns[j].ReadingType
		}
		return patterns[i].Direction < patterns[j].Direction
	})
	return patterns
}

func timeInRange(logs []*healthlog.GlucoseLog) TimeInRange {
	tir := TimeInRange{ReadingsCount: len(logs)}
	if len(logs) == 0 {
		return tir
	}
	var below, in, above int
	for _, l := range logs {
		switch {
		case l.Reading < TimeInRangeLow:
			below++
		case l.Reading > TimeInRangeHigh:
			above++
		default:
			in++
		}
	}
	n := float64(len(logs))
	tir.BelowRange = round1(float64(below) / n * 100)
	tir.InRange = round1(float64(in) / n * 100)
	tir.AboveRange = round1(float64(above) / n * 100)
	return tir
}

func round1(v float64) float64 {
	return float64(int(v*10+0.5)) / 10
}

// lastN returns the trailing n elements.
func lastN[T any](s []T, n int) []T {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
