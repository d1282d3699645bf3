// Package careplan manages per-patient care plans: medication schedules,
// glucose target ranges, and health goals. The care plan drives reminder
// generation, rule evaluation, and conversational context.
package careplan

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a patient has no care plan.
var ErrNotFound = errors.New("careplan: not found")

// Medication is a single prescribed medication with its dosing schedule.
// Times are clock times in "HH:MM" 24-hour format.
type Medication struct {
	Name      string   `json:"name"`
	Dosage    string   `json:"dosage"`
	Frequency string   `json:"frequency"`
	Times     []string `json:"times"`
	StartDate string   `json:"start_date,omitempty"`
	Notes     *string  `json:"notes,omitempty"`
}

// GlucoseTargets holds the per-patient target ranges in mg/dL.
type GlucoseTargets struct {
	FastingMin  int      `json:"fasting_min"`
	FastingMax  int      `json:"fasting_max"`
	PostMealMin int      `json:"post_meal_min"`
	PostMealMax int      `json:"post_meal_max"`
	HbA1cTarget *float64 `json:"hba1c_target,omitempty"`
}

// DefaultGlucoseTargets returns the standard adult targets used when a plan
// does not override them.
func DefaultGlucoseTargets() GlucoseTargets {
	return GlucoseTargets{
		FastingMin:  80,
		FastingMax:  130,
		PostMealMin: 80,
		PostMealMax: 180,
	}
}

// HealthGoals holds optional lifestyle goals.
type HealthGoals struct {
	WeightTarget           *float64 `json:"weight_target,omitempty"`
	ActivityMinutesPerWeek *int     `json:"activity_minutes_per_week,omitempty"`
	DietaryGoals           *string  `json:"dietary_goals,omitempty"`
	OtherGoals             *string  `json:"other_goals,omitempty"`
}

// CarePlan maps to the care_plan table. Medications, glucose targets, and
// health goals are stored as JSONB. Each patient has at most one plan.
type CarePlan struct {
	ID                     uuid.UUID      `db:"id" json:"id"`
	PatientID              uuid.UUID      `db:"patient_id" json:"patient_id"`
	DoctorID               *uuid.UUID     `db:"doctor_id" json:"doctor_id,omitempty"`
	Medications            []Medication   `db:"medications" json:"medications"`
	GlucoseTargets         GlucoseTargets `db:"glucose_targets" json:"glucose_targets"`
	HealthGoals            HealthGoals    `db:"health_goals" json:"health_goals"`
	DietaryRecommendations *string        `db:"dietary_recommendations" json:"dietary_recommendations,omitempty"`
	Notes                  *string        `db:"notes" json:"notes,omitempty"`
	CreatedAt              time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt              time.Time      `db:"updated_at" json:"updated_at"`
}

// Validate checks medication schedules and target ranges.
func (cp *CarePlan) Validate() error {
	for i, med := range cp.Medications {
		if strings.TrimSpace(med.Name) == "" {
			return fmt.Errorf("medication %d: name is required", i)
		}
		if strings.TrimSpace(med.Dosage) == "" {
			return fmt.Errorf("medication %q: dosage is required", med.Name)
		}
		if len(med.Times) == 0 {
			return fmt.Errorf("medication %q: at least one scheduled time is required", med.Name)
		}
		for _, tm := range med.Times {
			if _, err := time.Parse("15:04", tm); err != nil {
				return fmt.Errorf("medication %q: invalid time %q, want HH:MM", med.Name, tm)
			}
		}
	}

	gt := cp.GlucoseTargets
	if gt.FastingMin <= 0 || gt.FastingMax <= 0 || gt.PostMealMin <= 0 || gt.PostMealMax <= 0 {
		return fmt.Errorf("glucose targets must be positive")
	}
	// min == max is a degenerate but legal single-value target.
	if gt.FastingMin > gt.FastingMax {
		return fmt.Errorf("fasting target range is inverted: %d-%d", gt.FastingMin, gt.FastingMax)
	}
	if gt.PostMealMin > gt.PostMealMax {
		return fmt.Errorf("post-meal target range is inverted: %d-%d", gt.PostMealMin, gt.PostMealMax)
	}
	return nil
}

// PromptContext renders the plan as plain text for inclusion in
// conversation prompts.
func (cp *CarePlan) PromptContext() string {
	var b strings.Builder

	b.WriteString("MEDICATIONS:\n")
	if len(cp.Medications) == 0 {
		b.WriteString("- none prescribed\n")
	}
	for _, med := range cp.Medications {
		fmt.Fprintf(&b, "- %s (%s) - %s at %s\n", med.Name, med.Dosage, med.Frequency, strings.Join(med.Times, ", "))
	}

	gt := cp.GlucoseTargets
	b.WriteString("\nGLUCOSE TARGETS:\n")
	fmt.Fprintf(&b, "Fasting %d-%d mg/dL, Post-meal %d-%d mg/dL\n", gt.FastingMin, gt.FastingMax, gt.PostMealMin, gt.PostMealMax)

	var goals []string
	if cp.HealthGoals.ActivityMinutesPerWeek != nil {
		goals = append(goals, fmt.Sprintf("Activity goal: %d minutes/week.", *cp.HealthGoals.ActivityMinutesPerWeek))
	}
	if cp.HealthGoals.WeightTarget != nil {
		goals = append(goals, fmt.Sprintf("Weight goal: %.1f.", *cp.HealthGoals.WeightTarget))
	}
	if cp.HealthGoals.DietaryGoals != nil {
		goals = append(goals, "Dietary: "+*cp.HealthGoals.DietaryGoals)
	}
	if cp.DietaryRecommendations != nil {
		goals = append(goals, "Recommendations: "+*cp.DietaryRecommendations)
	}
	if len(goals) > 0 {
		b.WriteString("\nHEALTH GOALS:\n")
		b.WriteString(strings.Join(goals, " "))
		b.WriteString("\n")
	}

	return b.String()
}
