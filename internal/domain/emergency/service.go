package emergency

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carebuddy/carebuddy/internal/domain/alert"
	"github.com/carebuddy/carebuddy/internal/domain/identity"
	"github.com/carebuddy/carebuddy/internal/platform/notification"
	"github.com/carebuddy/carebuddy/internal/rules"
)

// CareTeamSource resolves the patient and their doctor. identity.Service
// satisfies it.
type CareTeamSource interface {
	GetPatient(ctx context.Context, id uuid.UUID) (*identity.Patient, error)
	PatientDoctor(ctx context.Context, patientID uuid.UUID) (*identity.Doctor, error)
}

// AlertSink persists the critical alert. alert.Service satisfies it.
type AlertSink interface {
	CreateFromFinding(ctx context.Context, patientID uuid.UUID, f rules.Finding, sourceLogID *uuid.UUID) (*alert.Alert, bool, error)
}

// Notifier delivers doctor notifications, best-effort.
type Notifier interface {
	Notify(ctx context.Context, doctorEmail, templateID string, data map[string]string)
}

type Service struct {
	careTeam     CareTeamSource
	alerts       AlertSink
	appointments AppointmentRepository
	notifier     Notifier
	log          zerolog.Logger
}

func NewService(careTeam CareTeamSource, alerts AlertSink, appointments AppointmentRepository,
	notifier Notifier, log zerolog.Logger) *Service {
	return &Service{
		careTeam:     careTeam,
		alerts:       alerts,
		appointments: appointments,
		notifier:     notifier,
		log:          log.With().Str("component", "emergency").Logger(),
	}
}

// Contact escalates to the patient's doctor. A patient without reachable
// doctor linkage still gets emergency guidance; with a doctor, a critical
// alert is persisted and the doctor contact returned. Alert persist failure
// fails the operation.
func (s *Service) Contact(ctx context.Context, patientID uuid.UUID) (*ContactResult, error) {
	if _, err := s.careTeam.GetPatient(ctx, patientID); err != nil {
		return nil, err
	}

	doctor, err := s.careTeam.PatientDoctor(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if doctor == nil {
		return &ContactResult{
			Emergency:         true,
			Message:           "No doctor assigned. Please call 911 or go to emergency room immediately.",
			EmergencyServices: "911",
		}, nil
	}

	f := rules.Finding{
		Type:     rules.FindingEmergency,
		Severity: rules.SeverityCritical,
		Message:  "Emergency contact requested by patient",
		DedupKey: fmt.Sprintf("emergency_contact:%s:%d", patientID, time.Now().UnixNano()),
	}
	a, _, err := s.alerts.CreateFromFinding(ctx, patientID, f, nil)
	if err != nil {
		return nil, fmt.Errorf("persist emergency alert: %w", err)
	}

	return &ContactResult{
		Emergency:     true,
		AlertID:       &a.ID,
		DoctorContact: &DoctorContact{Name: doctor.Name, Email: doctor.Email, Phone: doctor.Phone},
		Message:       fmt.Sprintf("Emergency alert sent to Dr. %s. They will contact you immediately.", doctor.Name),
		Backup:        "If unable to reach doctor, call 911 or go to emergency room.",
	}, nil
}

// RequestAppointment records a non-emergency appointment request and
// notifies the doctor. The notification is best-effort; the record is not.
func (s *Service) RequestAppointment(ctx context.Context, patientID uuid.UUID,
	preferredDate *time.Time, reason string) (*AppointmentRequest, *DoctorContact, error) {
	patient, err := s.careTeam.GetPatient(ctx, patientID)
	if err != nil {
		return nil, nil, err
	}
	doctor, err := s.careTeam.PatientDoctor(ctx, patientID)
	if err != nil {
		return nil, nil, err
	}
	if doctor == nil {
		return nil, nil, ErrNoDoctor
	}

	if strings.TrimSpace(reason) == "" {
		reason = "Routine check-up"
	}
	req := &AppointmentRequest{
		PatientID:     patientID,
		DoctorID:      doctor.ID,
		PreferredDate: preferredDate,
		Reason:        reason,
		Status:        StatusPending,
	}
	if err := s.appointments.Create(ctx, req); err != nil {
		return nil, nil, fmt.Errorf("persist appointment request: %w", err)
	}

	date := "any time"
	if preferredDate != nil {
		date = preferredDate.Format("2006-01-02")
	}
	s.notifier.Notify(ctx, doctor.Email, notification.TemplateAppointmentReq, map[string]string{
		"patient_name":   patient.Name,
		"reason":         req.Reason,
		"preferred_date": date,
	})

	return req, &DoctorContact{Name: doctor.Name, Email: doctor.Email, Phone: doctor.Phone}, nil
}

// ListAppointments returns the patient's recorded requests.
func (s *Service) ListAppointments(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*AppointmentRequest, int, error) {
	return s.appointments.ListByPatient(ctx, patientID, limit, offset)
}
