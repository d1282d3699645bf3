package report

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/carebuddy/carebuddy/internal/domain/alert"
	"github.com/carebuddy/carebuddy/internal/domain/careplan"
	"github.com/carebuddy/carebuddy/internal/domain/healthlog"
	"github.com/carebuddy/carebuddy/internal/rules"
)

type mockLogs struct{ logs *healthlog.Logs }

func (m *mockLogs) RecentLogs(_ context.Context, _ uuid.UUID, _ int) (*healthlog.Logs, error) {
	if m.logs == nil {
		return &healthlog.Logs{}, nil
	}
	return m.logs, nil
}

type mockAlerts struct{ alerts []*alert.Alert }

func (m *mockAlerts) ListSince(_ context.Context, _ uuid.UUID, _ time.Time) ([]*alert.Alert, error) {
	return m.alerts, nil
}

type mockPlans struct{ plan *careplan.CarePlan }

func (m *mockPlans) GetByPatient(_ context.Context, _ uuid.UUID) (*careplan.CarePlan, error) {
	if m.plan == nil {
		return nil, careplan.ErrNotFound
	}
	return m.plan, nil
}

func TestService_Weekly(t *testing.T) {
	logs := &healthlog.Logs{
		Glucose: []*healthlog.GlucoseLog{
			{Reading: 110, ReadingType: rules.ReadingFasting, LoggedAt: time.Now().UTC()},
		},
	}
	svc := NewService(&mockLogs{logs: logs}, &mockAlerts{}, &mockPlans{plan: testPlan()})

	r, err := svc.Weekly(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("Weekly() error: %v", err)
	}
	if r.Glucose.ReadingsCount != 1 {
		t.Errorf("readings = %d", r.Glucose.ReadingsCount)
	}
}

func TestService_MissingPlanIsNotAnError(t *testing.T) {
	svc := NewService(&mockLogs{}, &mockAlerts{}, &mockPlans{})

	r, err := svc.Monthly(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("Monthly() error: %v", err)
	}
	if r.Adherence.Rate != nil {
		t.Errorf("expected nil adherence without a plan")
	}
}

func TestService_Summary_DefaultsWindow(t *testing.T) {
	svc := NewService(&mockLogs{}, &mockAlerts{}, &mockPlans{})

	s, err := svc.Summary(context.Background(), uuid.New(), 0)
	if err != nil {
		t.Fatalf("Summary() error: %v", err)
	}
	if s.PeriodDays != WeeklyWindowDays {
		t.Errorf("period_days = %d, want %d", s.PeriodDays, WeeklyWindowDays)
	}
}
