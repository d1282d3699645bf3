package reminder

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a reminder does not exist.
var ErrNotFound = errors.New("reminder not found")

// Type classifies what a reminder prompts the patient to do.
type Type string

const (
	TypeMedication   Type = "medication"
	TypeGlucoseCheck Type = "glucose_check"
	TypeExercise     Type = "exercise"
	TypeDietary      Type = "dietary"
)

// Reminder is a scheduled prompt derived from the patient's care plan.
// The full set is regenerated whenever the plan changes; reminders from a
// prior plan are deactivated, never merged.
type Reminder struct {
	ID            uuid.UUID `db:"id" json:"id"`
	PatientID     uuid.UUID `db:"patient_id" json:"patient_id"`
	Type          Type      `db:"reminder_type" json:"reminder_type"`
	Message       string    `db:"message" json:"message"`
	ScheduledTime time.Time `db:"scheduled_time" json:"scheduled_time"`
	Recurrence    string    `db:"recurrence" json:"recurrence"`
	Active        bool      `db:"active" json:"active"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}
