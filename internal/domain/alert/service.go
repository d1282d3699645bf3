package alert

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carebuddy/carebuddy/internal/domain/careplan"
	"github.com/carebuddy/carebuddy/internal/domain/identity"
	"github.com/carebuddy/carebuddy/internal/platform/notification"
	"github.com/carebuddy/carebuddy/internal/platform/websocket"
	"github.com/carebuddy/carebuddy/internal/rules"
)

// PlanSource provides the patient's care plan. careplan.CarePlanRepository
// satisfies it.
type PlanSource interface {
	GetByPatient(ctx context.Context, patientID uuid.UUID) (*careplan.CarePlan, error)
}

// DoseSource provides today's medication logs for missed-dose checks. The
// health log service implements it.
type DoseSource interface {
	TakenDoses(ctx context.Context, patientID uuid.UUID, day time.Time) ([]rules.TakenDose, error)
}

// CareTeamSource resolves a patient and their assigned doctor.
// identity.Service satisfies it.
type CareTeamSource interface {
	GetPatient(ctx context.Context, id uuid.UUID) (*identity.Patient, error)
	PatientDoctor(ctx context.Context, patientID uuid.UUID) (*identity.Doctor, error)
}

// Notifier delivers care-team notifications best-effort.
// notification.DoctorNotifier satisfies it.
type Notifier interface {
	Notify(ctx context.Context, doctorEmail, templateID string, data map[string]string)
}

type Service struct {
	repo      AlertRepository
	plans     PlanSource
	doses     DoseSource
	careTeam  CareTeamSource
	notifier  Notifier
	publisher websocket.EventPublisher
	log       zerolog.Logger
}

func NewService(repo AlertRepository, plans PlanSource, careTeam CareTeamSource,
	notifier Notifier, publisher websocket.EventPublisher, log zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		plans:     plans,
		careTeam:  careTeam,
		notifier:  notifier,
		publisher: publisher,
		log:       log,
	}
}

// SetDoseSource wires the medication log source. Set after construction to
// break the dependency cycle with the health log service.
func (s *Service) SetDoseSource(src DoseSource) { s.doses = src }

// ListSince returns the patient's alerts created at or after since.
func (s *Service) ListSince(ctx context.Context, patientID uuid.UUID, since time.Time) ([]*Alert, error) {
	return s.repo.ListSince(ctx, patientID, since)
}

// CreateFromFinding persists an alert for a rule finding. When an alert with
// the same dedup key already exists for the patient, the existing alert is
// returned and created is false. Persist failures fail the operation;
// fan-out (websocket, doctor notification) is best-effort.
func (s *Service) CreateFromFinding(ctx context.Context, patientID uuid.UUID, f rules.Finding, sourceLogID *uuid.UUID) (*Alert, bool, error) {
	if existing, err := s.repo.GetByDedupKey(ctx, patientID, f.DedupKey); err == nil {
		return existing, false, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, false, fmt.Errorf("dedup lookup: %w", err)
	}

	a := &Alert{
		PatientID:   patientID,
		Type:        f.Type,
		Severity:    f.Severity,
		Message:     f.Message,
		DedupKey:    f.DedupKey,
		SourceLogID: sourceLogID,
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, false, fmt.Errorf("persist alert: %w", err)
	}

	s.fanOut(ctx, a)
	return a, true, nil
}

// fanOut publishes the alert to WebSocket subscribers and, for critical
// alerts, notifies the patient's doctor. Neither failure affects the caller.
func (s *Service) fanOut(ctx context.Context, a *Alert) {
	if s.publisher != nil {
		ev := websocket.NewAlertEvent(websocket.EventAlertCreated, a.PatientID, a)
		if err := s.publisher.Publish(ctx, ev); err != nil {
			s.log.Error().Err(err).Str("alert_id", a.ID.String()).Msg("alert publish failed")
		}
	}

	if !a.Severity.AtLeast(rules.SeverityCritical) || s.notifier == nil || s.careTeam == nil {
		return
	}

	patient, err := s.careTeam.GetPatient(ctx, a.PatientID)
	if err != nil {
		s.log.Error().Err(err).Str("patient_id", a.PatientID.String()).Msg("patient lookup for notification failed")
		return
	}
	doctor, err := s.careTeam.PatientDoctor(ctx, a.PatientID)
	if err != nil || doctor == nil {
		s.log.Warn().Str("patient_id", a.PatientID.String()).Msg("critical alert without reachable doctor")
		return
	}

	template := notification.TemplateCriticalGlucose
	if a.Type == rules.FindingEmergency {
		template = notification.TemplateEmergencyContact
	}
	s.notifier.Notify(ctx, doctor.Email, template, map[string]string{
		"patient_name": patient.Name,
		"message":      a.Message,
		"severity":     string(a.Severity),
		"logged_at":    a.CreatedAt.Format(time.RFC3339),
	})
	if err := s.repo.SetDoctorNotified(ctx, a.ID); err != nil {
		s.log.Error().Err(err).Str("alert_id", a.ID.String()).Msg("failed to record doctor notification")
	} else {
		a.DoctorNotified = true
	}
}

// Acknowledge marks an alert acknowledged and publishes the state change.
// The alert must belong to the given patient; a mismatch reports ErrNotFound
// rather than revealing that the id exists for someone else.
func (s *Service) Acknowledge(ctx context.Context, patientID, alertID uuid.UUID) (*Alert, error) {
	a, err := s.repo.GetByID(ctx, alertID)
	if err != nil {
		return nil, err
	}
	if a.PatientID != patientID {
		return nil, ErrNotFound
	}
	a, err = s.repo.SetAcknowledged(ctx, alertID)
	if err != nil {
		return nil, err
	}
	if s.publisher != nil {
		ev := websocket.NewAlertEvent(websocket.EventAlertAcknowledged, a.PatientID, a)
		if err := s.publisher.Publish(ctx, ev); err != nil {
			s.log.Error().Err(err).Str("alert_id", a.ID.String()).Msg("acknowledge publish failed")
		}
	}
	return a, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Alert, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, patientID uuid.UUID, unacknowledgedOnly bool, limit, offset int) ([]*Alert, int, error) {
	return s.repo.List(ctx, patientID, unacknowledgedOnly, limit, offset)
}

// CheckMissedDoses evaluates the patient's schedule against today's
// medication logs and persists an alert per new missed dose. Patients
// without a care plan yield no alerts.
func (s *Service) CheckMissedDoses(ctx context.Context, patientID uuid.UUID, now time.Time) ([]*Alert, error) {
	plan, err := s.plans.GetByPatient(ctx, patientID)
	if err != nil {
		if errors.Is(err, careplan.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load care plan: %w", err)
	}

	var doses []rules.TakenDose
	if s.doses != nil {
		doses, err = s.doses.TakenDoses(ctx, patientID, now)
		if err != nil {
			return nil, fmt.Errorf("load medication logs: %w", err)
		}
	}

	var created []*Alert
	for _, f := range rules.EvaluateMissedDoses(plan, doses, now) {
		a, isNew, err := s.CreateFromFinding(ctx, patientID, f, nil)
		if err != nil {
			return nil, err
		}
		if isNew {
			created = append(created, a)
		}
	}
	return created, nil
}
