package healthlog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/carebuddy/carebuddy/internal/domain/alert"
	"github.com/carebuddy/carebuddy/internal/domain/careplan"
	"github.com/carebuddy/carebuddy/internal/platform/db"
	"github.com/carebuddy/carebuddy/internal/rules"
)

// ErrValidation marks input the caller can correct. Handlers map it to a
// 400 response; everything else is a server error.
var ErrValidation = errors.New("invalid input")

func validationf(format string, a ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrValidation}, a...)...)
}

// PlanSource provides glucose targets for rule evaluation.
type PlanSource interface {
	GetByPatient(ctx context.Context, patientID uuid.UUID) (*careplan.CarePlan, error)
}

// AlertSink persists rule findings. alert.Service satisfies it.
type AlertSink interface {
	CreateFromFinding(ctx context.Context, patientID uuid.UUID, f rules.Finding, sourceLogID *uuid.UUID) (*alert.Alert, bool, error)
}

// TxStarter opens database transactions. pgxpool.Pool satisfies it; tests
// leave it nil to run without transactional coupling.
type TxStarter interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

type Service struct {
	glucose    GlucoseLogRepository
	medication MedicationLogRepository
	meals      MealLogRepository
	activity   ActivityLogRepository
	plans      PlanSource
	alerts     AlertSink
	txer       TxStarter
}

func NewService(glucose GlucoseLogRepository, medication MedicationLogRepository,
	meals MealLogRepository, activity ActivityLogRepository,
	plans PlanSource, alerts AlertSink, txer TxStarter) *Service {
	return &Service{
		glucose:    glucose,
		medication: medication,
		meals:      meals,
		activity:   activity,
		plans:      plans,
		alerts:     alerts,
		txer:       txer,
	}
}

// LogGlucose validates and stores a glucose reading, evaluates it against
// the patient's targets, and persists any resulting alert. The log and its
// alert are written in one transaction: an alert persist failure rolls the
// reading back.
func (s *Service) LogGlucose(ctx context.Context, l *GlucoseLog) (*alert.Alert, error) {
	if l.Reading < GlucoseMinMgdl || l.Reading > GlucoseMaxMgdl {
		return nil, validationf("reading %g mg/dL outside physiological bounds [%d, %d]",
			l.Reading, GlucoseMinMgdl, GlucoseMaxMgdl)
	}
	if !rules.ValidReadingType(l.ReadingType) {
		return nil, validationf("invalid reading_type %q", l.ReadingType)
	}
	if l.LoggedAt.IsZero() {
		l.LoggedAt = time.Now().UTC()
	}

	targets := careplan.DefaultGlucoseTargets()
	if plan, err := s.plans.GetByPatient(ctx, l.PatientID); err == nil {
		targets = plan.GlucoseTargets
	}

	var created *alert.Alert
	write := func(ctx context.Context) error {
		if err := s.glucose.Create(ctx, l); err != nil {
			return fmt.Errorf("persist glucose log: %w", err)
		}
		finding := rules.EvaluateGlucose(l.Reading, l.ReadingType, targets)
		if finding == nil {
			return nil
		}
		// One alert per log entry.
		finding.DedupKey = "glucose:" + l.ID.String()
		a, _, err := s.alerts.CreateFromFinding(ctx, l.PatientID, *finding, &l.ID)
		if err != nil {
			return err
		}
		created = a
		return nil
	}

	if err := s.inTx(ctx, write); err != nil {
		return nil, err
	}
	return created, nil
}

// inTx runs fn inside a transaction when a TxStarter is wired, otherwise
// directly.
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

// LogMedication validates and stores a medication intake log.
func (s *Service) LogMedication(ctx context.Context, l *MedicationLog) error {
	if strings.TrimSpace(l.MedicationName) == "" {
		return validationf("medication_name is required")
	}
	if strings.TrimSpace(l.Dosage) == "" {
		return validationf("dosage is required")
	}
	if l.LoggedAt.IsZero() {
		l.LoggedAt = time.Now().UTC()
	}
	return s.medication.Create(ctx, l)
}

// LogMeal validates and stores a meal log.
func (s *Service) LogMeal(ctx context.Context, l *MealLog) error {
	if !ValidMealType(l.MealType) {
		return validationf("invalid meal_type %q", l.MealType)
	}
	if strings.TrimSpace(l.Description) == "" {
		return validationf("description is required")
	}
	if l.CarbsEstimate != nil && *l.CarbsEstimate < 0 {
		return validationf("carbs_estimate must be non-negative")
	}
	if l.LoggedAt.IsZero() {
		l.LoggedAt = time.Now().UTC()
	}
	return s.meals.Create(ctx, l)
}

// LogActivity validates and stores an activity log.
func (s *Service) LogActivity(ctx context.Context, l *ActivityLog) error {
	if strings.TrimSpace(l.ActivityType) == "" {
		return validationf("activity_type is required")
	}
	if l.DurationMinutes <= 0 {
		return validationf("duration_minutes must be positive")
	}
	if !ValidIntensity(l.Intensity) {
		return validationf("invalid intensity %q", l.Intensity)
	}
	if l.LoggedAt.IsZero() {
		l.LoggedAt = time.Now().UTC()
	}
	return s.activity.Create(ctx, l)
}

// TakenDoses implements the missed-dose evaluation's view of the day's
// medication logs.
func (s *Service) TakenDoses(ctx context.Context, patientID uuid.UUID, day time.Time) ([]rules.TakenDose, error) {
	logs, err := s.medication.ListForDay(ctx, patientID, day)
	if err != nil {
		return nil, err
	}
	doses := make([]rules.TakenDose, 0, len(logs))
	for _, l := range logs {
		doses = append(doses, rules.TakenDose{
			MedicationName: l.MedicationName,
			Taken:          l.Taken,
			At:             l.LoggedAt,
		})
	}
	return doses, nil
}

// Logs bundles a patient's recent history across all log types.
type Logs struct {
	Glucose    []*GlucoseLog    `json:"glucose"`
	Medication []*MedicationLog `json:"medication"`
	Meals      []*MealLog       `json:"meals"`
	Activity   []*ActivityLog   `json:"activity"`
}

// RecentLogs returns the patient's logs from the trailing window of days.
func (s *Service) RecentLogs(ctx context.Context, patientID uuid.UUID, days int) (*Logs, error) {
	if days <= 0 {
		days = 7
	}
	since := time.Now().UTC().AddDate(0, 0, -days)

	glucose, err := s.glucose.ListSince(ctx, patientID, since)
	if err != nil {
		return nil, err
	}
	medication, err := s.medication.ListSince(ctx, patientID, since)
	if err != nil {
		return nil, err
	}
	meals, err := s.meals.ListSince(ctx, patientID, since)
	if err != nil {
		return nil, err
	}
	activity, err := s.activity.ListSince(ctx, patientID, since)
	if err != nil {
		return nil, err
	}

	return &Logs{Glucose: glucose, Medication: medication, Meals: meals, Activity: activity}, nil
}
