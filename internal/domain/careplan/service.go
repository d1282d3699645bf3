package careplan

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// PlanObserver is notified after a care plan is created or replaced.
// The reminder scheduler implements it to regenerate the patient's
// medication reminders.
type PlanObserver interface {
	PlanUpdated(ctx context.Context, plan *CarePlan) error
}

type Service struct {
	repo      CarePlanRepository
	observers []PlanObserver
	log       zerolog.Logger
}

func NewService(repo CarePlanRepository, log zerolog.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// AddObserver registers an observer for plan updates.
func (s *Service) AddObserver(o PlanObserver) {
	s.observers = append(s.observers, o)
}

// SetCarePlan validates and stores the patient's plan, replacing any
// existing one, then notifies observers. Observer failures are logged and
// do not fail the operation; the plan is already persisted.
func (s *Service) SetCarePlan(ctx context.Context, cp *CarePlan) error {
	if cp.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if cp.GlucoseTargets == (GlucoseTargets{}) {
		cp.GlucoseTargets = DefaultGlucoseTargets()
	}
	if err := cp.Validate(); err != nil {
		return err
	}
	if err := s.repo.Upsert(ctx, cp); err != nil {
		return err
	}

	for _, o := range s.observers {
		if err := o.PlanUpdated(ctx, cp); err != nil {
			s.log.Error().Err(err).
				Str("patient_id", cp.PatientID.String()).
				Msg("care plan observer failed")
		}
	}
	return nil
}

func (s *Service) GetCarePlan(ctx context.Context, patientID uuid.UUID) (*CarePlan, error) {
	return s.repo.GetByPatient(ctx, patientID)
}

func (s *Service) DeleteCarePlan(ctx context.Context, patientID uuid.UUID) error {
	return s.repo.DeleteByPatient(ctx, patientID)
}

// PromptContext returns the patient's plan rendered for prompt inclusion,
// or "" when the patient has no plan.
func (s *Service) PromptContext(ctx context.Context, patientID uuid.UUID) string {
	cp, err := s.repo.GetByPatient(ctx, patientID)
	if err != nil {
		return ""
	}
	return cp.PromptContext()
}
