// Package alert persists clinical alerts raised by the rule engine and
// fans them out to WebSocket subscribers and the care team.
package alert

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/carebuddy/carebuddy/internal/rules"
)

// ErrNotFound is returned when an alert does not exist.
var ErrNotFound = errors.New("alert: not found")

// Alert maps to the alert table.
type Alert struct {
	ID             uuid.UUID      `db:"id" json:"id"`
	PatientID      uuid.UUID      `db:"patient_id" json:"patient_id"`
	Type           string         `db:"type" json:"type"`
	Severity       rules.Severity `db:"severity" json:"severity"`
	Message        string         `db:"message" json:"message"`
	DedupKey       string         `db:"dedup_key" json:"-"`
	SourceLogID    *uuid.UUID     `db:"source_log_id" json:"source_log_id,omitempty"`
	Acknowledged   bool           `db:"acknowledged" json:"acknowledged"`
	DoctorNotified bool           `db:"doctor_notified" json:"doctor_notified"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
}
