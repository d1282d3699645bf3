package emergency

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("appointment request not found")

// ErrNoDoctor is returned for appointment requests from patients without an
// assigned doctor. Emergency contact handles the same case with guidance
// instead of an error.
var ErrNoDoctor = errors.New("no doctor assigned")

// DoctorContact is the care team contact block returned to the patient.
type DoctorContact struct {
	Name  string  `json:"name"`
	Email string  `json:"email"`
	Phone *string `json:"phone,omitempty"`
}

// ContactResult is the outcome of an emergency contact request. Emergency
// guidance is always present, with or without doctor linkage.
type ContactResult struct {
	Emergency         bool           `json:"emergency"`
	AlertID           *uuid.UUID     `json:"alert_id,omitempty"`
	DoctorContact     *DoctorContact `json:"doctor_contact,omitempty"`
	Message           string         `json:"message"`
	Backup            string         `json:"backup,omitempty"`
	EmergencyServices string         `json:"emergency_services,omitempty"`
}

// AppointmentRequest is a non-emergency ask for doctor time. It is recorded
// and confirmed; booking happens outside the system.
type AppointmentRequest struct {
	ID            uuid.UUID  `db:"id" json:"appointment_id"`
	PatientID     uuid.UUID  `db:"patient_id" json:"patient_id"`
	DoctorID      uuid.UUID  `db:"doctor_id" json:"doctor_id"`
	PreferredDate *time.Time `db:"preferred_date" json:"requested_date,omitempty"`
	Reason        string     `db:"reason" json:"reason"`
	Status        string     `db:"status" json:"status"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
}

const StatusPending = "pending"
