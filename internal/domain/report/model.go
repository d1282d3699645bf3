package report

import (
	"time"

	"github.com/google/uuid"

	"github.com/carebuddy/carebuddy/internal/domain/alert"
	"github.com/carebuddy/carebuddy/internal/domain/healthlog"
	"github.com/carebuddy/carebuddy/internal/rules"
)

// PatternMinOccurrences is the minimum number of out-of-range readings with
// the same reading type and direction before a monthly report flags them as
// a pattern.
const PatternMinOccurrences = 3

// Standard time-in-range band in mg/dL.
const (
	TimeInRangeLow  = 70
	TimeInRangeHigh = 180
)

type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// GlucoseStats summarizes readings over a report window. Average, Min and
// Max are nil when there are no readings.
type GlucoseStats struct {
	Average       *float64 `json:"average"`
	Min           *float64 `json:"min"`
	Max           *float64 `json:"max"`
	ReadingsCount int      `json:"readings_count"`
}

// Adherence compares taken doses against the doses the care plan expects
// over the window. Rate is a fraction in [0, 1], nil when the plan has no
// medications.
type Adherence struct {
	Rate          *float64 `json:"rate"`
	Taken         int      `json:"taken"`
	TotalExpected int      `json:"total_expected"`
}

// ActivityStats compares logged activity against the plan's weekly goal
// scaled to the report window.
type ActivityStats struct {
	TotalMinutes int  `json:"total_minutes"`
	GoalMinutes  *int `json:"goal_minutes"`
}

type AlertStats struct {
	Total       int `json:"total"`
	Critical    int `json:"critical"`
	HighGlucose int `json:"high_glucose"`
	LowGlucose  int `json:"low_glucose"`
	MissedDose  int `json:"missed_dose"`
}

// Pattern is a recurring out-of-range tendency found in a monthly window.
type Pattern struct {
	ReadingType rules.ReadingType `json:"reading_type"`
	Direction   string            `json:"direction"`
	Occurrences int               `json:"occurrences"`
}

type WeeklyReport struct {
	PatientID      uuid.UUID               `json:"patient_id"`
	Period         Period                  `json:"period"`
	Glucose        GlucoseStats            `json:"glucose"`
	Adherence      Adherence               `json:"medication_adherence"`
	Activity       ActivityStats           `json:"activity"`
	Alerts         AlertStats              `json:"alerts"`
	RecentAlerts   []*alert.Alert          `json:"recent_alerts"`
	RecentReadings []*healthlog.GlucoseLog `json:"recent_readings"`
	MealsLogged    int                     `json:"meals_logged"`
}

type MonthlyReport struct {
	PatientID       uuid.UUID     `json:"patient_id"`
	Period          Period        `json:"period"`
	Glucose         GlucoseStats  `json:"glucose"`
	HighGlucoseDays int           `json:"high_glucose_days"`
	LowGlucoseDays  int           `json:"low_glucose_days"`
	Patterns        []Pattern     `json:"patterns"`
	Adherence       Adherence     `json:"medication_adherence"`
	Activity        ActivityStats `json:"activity"`
	Alerts          AlertStats    `json:"alerts"`
	Summary         string        `json:"summary"`
}

// TimeInRange gives the share of readings inside, below and above the
// standard 70-180 mg/dL band, as percentages.
type TimeInRange struct {
	InRange       float64 `json:"in_range"`
	BelowRange    float64 `json:"below_range"`
	AboveRange    float64 `json:"above_range"`
	ReadingsCount int     `json:"readings_count"`
}

// Summary is the patient-facing aggregate used for sync.
type Summary struct {
	PatientID       uuid.UUID    `json:"patient_id"`
	PeriodDays      int          `json:"period_days"`
	TimeInRange     TimeInRange  `json:"time_in_range"`
	Glucose         GlucoseStats `json:"glucose"`
	AdherenceRate   *float64     `json:"medication_adherence"`
	ActivityMinutes int          `json:"activity_minutes"`
	MealsLogged     int          `json:"meals_logged"`
	GeneratedAt     time.Time    `json:"generated_at"`
}
