package reminder

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/carebuddy/carebuddy/internal/domain/careplan"
	"github.com/carebuddy/carebuddy/internal/platform/db"
)

// PlanSource provides the care plan a reminder set is derived from.
type PlanSource interface {
	GetByPatient(ctx context.Context, patientID uuid.UUID) (*careplan.CarePlan, error)
}

// TxStarter opens database transactions. pgxpool.Pool satisfies it; tests
// leave it nil.
type TxStarter interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

type Service struct {
	repo  Repository
	plans PlanSource
	txer  TxStarter
	log   zerolog.Logger
	now   func() time.Time
}

func NewService(repo Repository, plans PlanSource, txer TxStarter, log zerolog.Logger) *Service {
	return &Service{
		repo:  repo,
		plans: plans,
		txer:  txer,
		log:   log.With().Str("component", "reminder").Logger(),
		now:   time.Now,
	}
}

// Regenerate replaces the patient's active reminder set with one derived
// from the current care plan. The previous set is deactivated and the new
// one inserted in a single transaction so readers never see a mix of the two.
func (s *Service) Regenerate(ctx context.Context, patientID uuid.UUID) ([]*Reminder, error) {
	plan, err := s.plans.GetByPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("load care plan: %w", err)
	}
	return s.regenerateFromPlan(ctx, plan)
}

func (s *Service) regenerateFromPlan(ctx context.Context, plan *careplan.CarePlan) ([]*Reminder, error) {
	reminders := Generate(plan, plan.PatientID, s.now())

	write := func(ctx context.Context) error {
		deactivated, err := s.repo.DeactivateByPatient(ctx, plan.PatientID)
		if err != nil {
			return fmt.Errorf("deactivate previous reminders: %w", err)
		}
		if err := s.repo.CreateBatch(ctx, reminders); err != nil {
			return fmt.Errorf("insert reminders: %w", err)
		}
		s.log.Info().
			Str("patient_id", plan.PatientID.String()).
			Int64("deactivated", deactivated).
			Int("created", len(reminders)).
			Msg("reminder set regenerated")
		return nil
	}

	if err := s.inTx(ctx, write); err != nil {
		return nil, err
	}
	return reminders, nil
}

// PlanUpdated regenerates reminders whenever the care plan changes.
// careplan.Service calls this as an observer.
func (s *Service) PlanUpdated(ctx context.Context, plan *careplan.CarePlan) error {
	_, err := s.regenerateFromPlan(ctx, plan)
	return err
}

func (s *Service) List(ctx context.Context, patientID uuid.UUID, activeOnly bool) ([]*Reminder, error) {
	return s.repo.List(ctx, patientID, activeOnly)
}

func (s *Service) inTx(ctx context.Context, fn func(context.Context) error) error {
	if s.txer == nil {
		return fn(ctx)
	}
	tx, err := s.txer.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(db.ContextWithTx(ctx, tx)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
