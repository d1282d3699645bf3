// Package healthlog records patient self-reported data: glucose readings,
// medication intake, meals, and activity. Glucose entries are evaluated by
// the rule engine on write.
package healthlog

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/carebuddy/carebuddy/internal/rules"
)

// ErrNotFound is returned when a log entry does not exist.
var ErrNotFound = errors.New("healthlog: not found")

// Physiological bounds for glucose readings in mg/dL. Values outside are
// rejected as sensor or input errors before any rule runs.
const (
	GlucoseMinMgdl = 10
	GlucoseMaxMgdl = 1000
)

// GlucoseLog maps to the glucose_log table.
type GlucoseLog struct {
	ID          uuid.UUID         `db:"id" json:"id"`
	PatientID   uuid.UUID         `db:"patient_id" json:"patient_id"`
	Reading     float64           `db:"reading" json:"reading"`
	ReadingType rules.ReadingType `db:"reading_type" json:"reading_type"`
	LoggedAt    time.Time         `db:"logged_at" json:"logged_at"`
	Notes       *string           `db:"notes" json:"notes,omitempty"`
	CreatedAt   time.Time         `db:"created_at" json:"created_at"`
}

// MedicationLog maps to the medication_log table.
type MedicationLog struct {
	ID             uuid.UUID `db:"id" json:"id"`
	PatientID      uuid.UUID `db:"patient_id" json:"patient_id"`
	MedicationName string    `db:"medication_name" json:"medication_name"`
	Dosage         string    `db:"dosage" json:"dosage"`
	Taken          bool      `db:"taken" json:"taken"`
	LoggedAt       time.Time `db:"logged_at" json:"logged_at"`
	Notes          *string   `db:"notes" json:"notes,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// Meal classification.
type MealType string

const (
	MealBreakfast MealType = "breakfast"
	MealLunch     MealType = "lunch"
	MealDinner    MealType = "dinner"
	MealSnack     MealType = "snack"
)

// ValidMealType reports whether t is a known meal slot.
func ValidMealType(t MealType) bool {
	switch t {
	case MealBreakfast, MealLunch, MealDinner, MealSnack:
		return true
	}
	return false
}

// MealLog maps to the meal_log table.
type MealLog struct {
	ID            uuid.UUID `db:"id" json:"id"`
	PatientID     uuid.UUID `db:"patient_id" json:"patient_id"`
	MealType      MealType  `db:"meal_type" json:"meal_type"`
	Description   string    `db:"description" json:"description"`
	CarbsEstimate *float64  `db:"carbs_estimate" json:"carbs_estimate,omitempty"`
	LoggedAt      time.Time `db:"logged_at" json:"logged_at"`
	Notes         *string   `db:"notes" json:"notes,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// Activity intensity.
type Intensity string

const (
	IntensityLight    Intensity = "light"
	IntensityModerate Intensity = "moderate"
	IntensityVigorous Intensity = "vigorous"
)

// ValidIntensity reports whether i is a known intensity.
func ValidIntensity(i Intensity) bool {
	switch i {
	case IntensityLight, IntensityModerate, IntensityVigorous:
		return true
	}
	return false
}

// ActivityLog maps to the activity_log table.
type ActivityLog struct {
	ID              uuid.UUID `db:"id" json:"id"`
	PatientID       uuid.UUID `db:"patient_id" json:"patient_id"`
	ActivityType    string    `db:"activity_type" json:"activity_type"`
	DurationMinutes int       `db:"duration_minutes" json:"duration_minutes"`
	Intensity       Intensity `db:"intensity" json:"intensity"`
	LoggedAt        time.Time `db:"logged_at" json:"logged_at"`
	Notes           *string   `db:"notes" json:"notes,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}
