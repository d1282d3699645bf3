package report

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/carebuddy/carebuddy/internal/domain/alert"
	"github.com/carebuddy/carebuddy/internal/domain/careplan"
	"github.com/carebuddy/carebuddy/internal/domain/healthlog"
)

// LogSource provides the trailing log window. healthlog.Service satisfies it.
type LogSource interface {
	RecentLogs(ctx context.Context, patientID uuid.UUID, days int) (*healthlog.Logs, error)
}

// AlertSource provides alerts in the window. alert.Service satisfies it.
type AlertSource interface {
	ListSince(ctx context.Context, patientID uuid.UUID, since time.Time) ([]*alert.Alert, error)
}

// PlanSource provides the care plan. careplan service satisfies it through
// its repository.
type PlanSource interface {
	GetByPatient(ctx context.Context, patientID uuid.UUID) (*careplan.CarePlan, error)
}

// Service assembles reports. It is read-only: fetch the window, fold with
// the pure builders, return.
type Service struct {
	logs   LogSource
	alerts AlertSource
	plans  PlanSource
	now    func() time.Time
}

func NewService(logs LogSource, alerts AlertSource, plans PlanSource) *Service {
	return &Service{logs: logs, alerts: alerts, plans: plans, now: time.Now}
}

func (s *Service) Weekly(ctx context.Context, patientID uuid.UUID) (*WeeklyReport, error) {
	plan, logs, alerts, now, err := s.window(ctx, patientID, WeeklyWindowDays)
	if err != nil {
		return nil, err
	}
	return BuildWeekly(patientID, plan, logs, alerts, now), nil
}

func (s *Service) Monthly(ctx context.Context, patientID uuid.UUID) (*MonthlyReport, error) {
	plan, logs, alerts, now, err := s.window(ctx, patientID, MonthlyWindowDays)
	if err != nil {
		return nil, err
	}
	return BuildMonthly(patientID, plan, logs, alerts, now), nil
}

func (s *Service) Summary(ctx context.Context, patientID uuid.UUID, days int) (*Summary, error) {
	if days <= 0 {
		days = WeeklyWindowDays
	}
	plan, logs, _, now, err := s.window(ctx, patientID, days)
	if err != nil {
		return nil, err
	}
	return BuildSummary(patientID, plan, logs, days, now), nil
}

// window fetches everything a builder needs. A missing care plan is not an
// error; the builders fall back to default targets.
func (s *Service) window(ctx context.Context, patientID uuid.UUID, days int) (
	*careplan.CarePlan, *healthlog.Logs, []*alert.Alert, time.Time, error) {
	now := s.now().UTC()

	plan, err := s.plans.GetByPatient(ctx, patientID)
	if err != nil && !errors.Is(err, careplan.ErrNotFound) {
		return nil, nil, nil, now, err
	}
	logs, err := s.logs.RecentLogs(ctx, patientID, days)
	if err != nil {
		return nil, nil, nil, now, err
	}
	alerts, err := s.alerts.ListSince(ctx, patientID, now.AddDate(0, 0, -days))
	if err != nil {
		return nil, nil, nil, now, err
	}
	return plan, logs, alerts, now, nil
}
