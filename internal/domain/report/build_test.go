package report

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/carebuddy/carebuddy/internal/domain/alert"
	"github.com/carebuddy/carebuddy/internal/domain/careplan"
	"github.com/carebuddy/carebuddy/internal/domain/healthlog"
	"github.com/carebuddy/carebuddy/internal/rules"
)

func testPlan() *careplan.CarePlan {
	activity := 140
	return &careplan.CarePlan{
		PatientID: uuid.New(),
		Medications: []careplan.Medication{
			{Name: "Metformin", Dosage: "500mg", Frequency: "twice daily", Times: []string{"08:00", "20:00"}},
		},
		GlucoseTargets: careplan.DefaultGlucoseTargets(),
		HealthGoals:    careplan.HealthGoals{ActivityMinutesPerWeek: &activity},
	}
}

func glucoseAt(reading float64, readingType rules.ReadingType, day int) *healthlog.GlucoseLog {
	return &healthlog.GlucoseLog{
		Reading:     reading,
		ReadingType: readingType,
		LoggedAt:    time.Date(2026, 8, day, 9, 0, 0, 0, time.UTC),
	}
}

func TestBuildWeekly(t *testing.T) {
	patientID := uuid.New()
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	logs := &healthlog.Logs{
		Glucose: []*healthlog.GlucoseLog{
			glucoseAt(100, rules.ReadingFasting, 23),
			glucoseAt(120, rules.ReadingFasting, 24),
			glucoseAt(140, rules.ReadingFasting, 25),
		},
		Medication: []*healthlog.MedicationLog{
			{MedicationName: "Metformin", Taken: true},
			{MedicationName: "Metformin", Taken: true},
			{MedicationName: "Metformin", Taken: false},
		},
		Activity: []*healthlog.ActivityLog{
			{DurationMinutes: 30}, {DurationMinutes: 45},
		},
		Meals: []*healthlog.MealLog{{}, {}, {}, {}},
	}
	alerts := []*alert.Alert{
		{Type: rules.FindingHighGlucose, Severity: rules.SeverityMedium},
		{Type: rules.FindingLowGlucose, Severity: rules.SeverityCritical},
		{Type: rules.FindingMissedDose, Severity: rules.SeverityMedium},
	}

	r := BuildWeekly(patientID, testPlan(), logs, alerts, now)

	if r.Glucose.Average == nil || *r.Glucose.Average != 120 {
		t.Errorf("average = %v, want 120", r.Glucose.Average)
	}
	if *r.Glucose.Min != 100 || *r.Glucose.Max != 140 {
		t.Errorf("min/max = %v/%v", *r.Glucose.Min, *r.Glucose.Max)
	}
	// 2 dose times * 7 days = 14 expected, 2 taken.
	if r.Adherence.TotalExpected != 14 || r.Adherence.Taken != 2 {
		t.Errorf("adherence = %+v", r.Adherence)
	}
	if r.Adherence.Rate == nil || *r.Adherence.Rate != 2.0/14.0 {
		t.Errorf("adherence rate = %v", r.Adherence.Rate)
	}
	if r.Activity.TotalMinutes != 75 || r.Activity.GoalMinutes == nil || *r.Activity.GoalMinutes != 140 {
		t.Errorf("activity = %+v", r.Activity)
	}
	if r.Alerts.Total != 3 || r.Alerts.Critical != 1 || r.Alerts.HighGlucose != 1 ||
		r.Alerts.LowGlucose != 1 || r.Alerts.MissedDose != 1 {
		t.Errorf("alerts = %+v", r.Alerts)
	}
	if r.MealsLogged != 4 {
		t.Errorf("meals = %d", r.MealsLogged)
	}
}

func TestBuildWeekly_NoData(t *testing.T) {
	now := time.Now().UTC()
	r := BuildWeekly(uuid.New(), nil, &healthlog.Logs{}, nil, now)

	if r.Glucose.Average != nil || r.Glucose.ReadingsCount != 0 {
		t.Errorf("glucose = %+v", r.Glucose)
	}
	if r.Adherence.Rate != nil {
		t.Errorf("expected nil adherence rate without a plan, got %v", *r.Adherence.Rate)
	}
	if r.RecentAlerts == nil || r.RecentReadings == nil {
		t.Error("expected empty slices, not nil")
	}
}

func TestAdherence_Clamped(t *testing.T) {
	plan := testPlan()
	var logs []*healthlog.MedicationLog
	// More taken doses than expected over one day.
	for i := 0; i < 5; i++ {
		logs = append(logs, &healthlog.MedicationLog{Taken: true})
	}
	a := adherence(plan, logs, 1)
	if a.Rate == nil || *a.Rate != 1 {
		t.Errorf("rate = %v, want clamped 1", a.Rate)
	}
}

func TestBuildMonthly_Patterns(t *testing.T) {
	patientID := uuid.New()
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	logs := &healthlog.Logs{
		Glucose: []*healthlog.GlucoseLog{
			// Three high fasting readings on distinct days: a pattern.
			glucoseAt(200, rules.ReadingFasting, 10),
			glucoseAt(210, rules.ReadingFasting, 11),
			glucoseAt(205, rules.ReadingFasting, 12),
			// Two low post-meal readings: below the threshold.
			glucoseAt(60, rules.ReadingPostMeal, 13),
			glucoseAt(65, rules.ReadingPostMeal, 14),
			// In range.
			glucoseAt(100, rules.ReadingFasting, 15),
		},
	}

	r := BuildMonthly(patientID, testPlan(), logs, nil, now)

	if len(r.Patterns) != 1 {
		t.Fatalf("patterns = %+v, want exactly one", r.Patterns)
	}
	p := r.Patterns[0]
	if p.ReadingType != rules.ReadingFasting || p.Direction != "high" || p.Occurrences != 3 {
		t.Errorf("pattern = %+v", p)
	}
	if r.HighGlucoseDays != 3 || r.LowGlucoseDays != 2 {
		t.Errorf("high/low days = %d/%d", r.HighGlucoseDays, r.LowGlucoseDays)
	}
	if r.Summary == "" {
		t.Error("expected summary text")
	}
}

func TestBuildMonthly_SameDayReadingsCountOnce(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	logs := &healthlog.Logs{
		Glucose: []*healthlog.GlucoseLog{
			glucoseAt(200, rules.ReadingFasting, 10),
			glucoseAt(210, rules.ReadingFasting, 10),
			glucoseAt(220, rules.ReadingFasting, 10),
		},
	}

	r := BuildMonthly(uuid.New(), testPlan(), logs, nil, now)
	if r.HighGlucoseDays != 1 {
		t.Errorf("high days = %d, want 1", r.HighGlucoseDays)
	}
	// Three readings are still a pattern even on one day.
	if len(r.Patterns) != 1 {
		t.Errorf("patterns = %+v", r.Patterns)
	}
}

func TestBuildSummary_TimeInRange(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	logs := &healthlog.Logs{
		Glucose: []*healthlog.GlucoseLog{
			glucoseAt(60, rules.ReadingFasting, 23),
			glucoseAt(100, rules.ReadingFasting, 24),
			glucoseAt(150, rules.ReadingFasting, 25),
			glucoseAt(200, rules.ReadingFasting, 26),
		},
		Activity: []*healthlog.ActivityLog{{DurationMinutes: 20}},
	}

	s := BuildSummary(uuid.New(), testPlan(), logs, 7, now)

	if s.TimeInRange.InRange != 50 || s.TimeInRange.BelowRange != 25 || s.TimeInRange.AboveRange != 25 {
		t.Errorf("time in range = %+v", s.TimeInRange)
	}
	if s.ActivityMinutes != 20 {
		t.Errorf("activity = %d", s.ActivityMinutes)
	}
	if s.AdherenceRate == nil || *s.AdherenceRate != 0 {
		t.Errorf("adherence = %v", s.AdherenceRate)
	}
}
