package alert

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carebuddy/carebuddy/internal/domain/careplan"
	"github.com/carebuddy/carebuddy/internal/domain/identity"
	"github.com/carebuddy/carebuddy/internal/platform/websocket"
	"github.com/carebuddy/carebuddy/internal/rules"
)

type mockAlertRepo struct {
	alerts map[uuid.UUID]*Alert
}

func newMockAlertRepo() *mockAlertRepo {
	return &mockAlertRepo{alerts: make(map[uuid.UUID]*Alert)}
}

func (m *mockAlertRepo) Create(_ context.Context, a *Alert) error {
	a.ID = uuid.New()
	a.CreatedAt = time.Now().UTC()
	m.alerts[a.ID] = a
	return nil
}

func (m *mockAlertRepo) GetByID(_ context.Context, id uuid.UUID) (*Alert, error) {
	a, ok := m.alerts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return a, nil
}

func (m *mockAlertRepo) GetByDedupKey(_ context.Context, patientID uuid.UUID, key string) (*Alert, error) {
	for _, a := range m.alerts {
		if a.PatientID == patientID && a.DedupKey == key {
			return a, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockAlertRepo) SetAcknowledged(_ context.Context, id uuid.UUID) (*Alert, error) {
	a, ok := m.alerts[id]
	if !ok {
		return nil, ErrNotFound
	}
	a.Acknowledged = true
	return a, nil
}

func (m *mockAlertRepo) SetDoctorNotified(_ context.Context, id uuid.UUID) error {
	a, ok := m.alerts[id]
	if !ok {
		return ErrNotFound
	}
	a.DoctorNotified = true
	return nil
}

func (m *mockAlertRepo) List(_ context.Context, patientID uuid.UUID, unackedOnly bool, limit, offset int) ([]*Alert, int, error) {
	var items []*Alert
	for _, a := range m.alerts {
		if a.PatientID != patientID {
			continue
		}
		if unackedOnly && a.Acknowledged {
			continue
		}
		items = append(items, a)
	}
	return items, len(items), nil
}

func (m *mockAlertRepo) ListSince(_ context.Context, patientID uuid.UUID, since time.Time) ([]*Alert, error) {
	var items []*Alert
	for _, a := range m.alerts {
		if a.PatientID == patientID && !a.CreatedAt.Before(since) {
			items = append(items, a)
		}
	}
	return items, nil
}

type mockPlanSource struct {
	plans map[uuid.UUID]*careplan.CarePlan
}

func (m *mockPlanSource) GetByPatient(_ context.Context, patientID uuid.UUID) (*careplan.CarePlan, error) {
	cp, ok := m.plans[patientID]
	if !ok {
		return nil, careplan.ErrNotFound
	}
	return cp, nil
}

type mockDoseSource struct {
	doses []rules.TakenDose
}

func (m *mockDoseSource) TakenDoses(_ context.Context, _ uuid.UUID, _ time.Time) ([]rules.TakenDose, error) {
	return m.doses, nil
}

type mockCareTeam struct {
	patient *identity.Patient
	doctor  *identity.Doctor
}

func (m *mockCareTeam) GetPatient(_ context.Context, _ uuid.UUID) (*identity.Patient, error) {
	if m.patient == nil {
		return nil, identity.ErrNotFound
	}
	return m.patient, nil
}

func (m *mockCareTeam) PatientDoctor(_ context.Context, _ uuid.UUID) (*identity.Doctor, error) {
	return m.doctor, nil
}

type mockNotifier struct {
	calls []string
}

func (m *mockNotifier) Notify(_ context.Context, doctorEmail, templateID string, _ map[string]string) {
	m.calls = append(m.calls, templateID+"->"+doctorEmail)
}

func newTestService(repo AlertRepository, plans PlanSource, careTeam CareTeamSource,
	notifier Notifier, hub *websocket.Hub) *Service {
	log := zerolog.New(os.Stderr).Level(zerolog.Disabled)
	return NewService(repo, plans, careTeam, notifier, hub, log)
}

func criticalFinding() rules.Finding {
	return rules.Finding{
		Type:     rules.FindingLowGlucose,
		Severity: rules.SeverityCritical,
		Message:  "Critically low fasting glucose: 48 mg/dL",
		DedupKey: "glucose:log-1",
	}
}

func TestService_CreateFromFinding(t *testing.T) {
	repo := newMockAlertRepo()
	patientID := uuid.New()
	careTeam := &mockCareTeam{
		patient: &identity.Patient{ID: patientID, Name: "Ana Silva"},
		doctor:  &identity.Doctor{ID: uuid.New(), Name: "Dr. Chen", Email: "chen@example.com"},
	}
	notifier := &mockNotifier{}
	svc := newTestService(repo, &mockPlanSource{}, careTeam, notifier, websocket.NewHub())

	a, created, err := svc.CreateFromFinding(context.Background(), patientID, criticalFinding(), nil)
	if err != nil {
		t.Fatalf("CreateFromFinding() error: %v", err)
	}
	if !created {
		t.Fatal("expected new alert")
	}
	if a.Severity != rules.SeverityCritical {
		t.Errorf("expected critical severity, got %s", a.Severity)
	}
	if len(notifier.calls) != 1 {
		t.Fatalf("expected doctor notification for critical alert, got %d", len(notifier.calls))
	}
	if !a.DoctorNotified {
		t.Error("expected doctor_notified recorded")
	}
}

func TestService_CreateFromFinding_Dedup(t *testing.T) {
	repo := newMockAlertRepo()
	patientID := uuid.New()
	svc := newTestService(repo, &mockPlanSource{}, nil, nil, websocket.NewHub())

	first, created, err := svc.CreateFromFinding(context.Background(), patientID, criticalFinding(), nil)
	if err != nil || !created {
		t.Fatalf("first create: %v created=%v", err, created)
	}

	second, created, err := svc.CreateFromFinding(context.Background(), patientID, criticalFinding(), nil)
	if err != nil {
		t.Fatalf("second create: %v", err)
	}
	if created {
		t.Fatal("expected dedup suppression")
	}
	if second.ID != first.ID {
		t.Errorf("expected existing alert returned, got %s vs %s", second.ID, first.ID)
	}
	if len(repo.alerts) != 1 {
		t.Errorf("expected 1 stored alert, got %d", len(repo.alerts))
	}

	// Same finding for a different patient is not suppressed.
	_, created, err = svc.CreateFromFinding(context.Background(), uuid.New(), criticalFinding(), nil)
	if err != nil || !created {
		t.Fatalf("expected create for other patient: %v created=%v", err, created)
	}
}

func TestService_CreateFromFinding_MediumNotNotified(t *testing.T) {
	repo := newMockAlertRepo()
	notifier := &mockNotifier{}
	careTeam := &mockCareTeam{
		patient: &identity.Patient{ID: uuid.New(), Name: "Ana"},
		doctor:  &identity.Doctor{Email: "chen@example.com"},
	}
	svc := newTestService(repo, &mockPlanSource{}, careTeam, notifier, websocket.NewHub())

	f := rules.Finding{
		Type:     rules.FindingHighGlucose,
		Severity: rules.SeverityMedium,
		Message:  "High post_meal glucose: 200 mg/dL (target: 80-180)",
		DedupKey: "glucose:log-2",
	}
	a, _, err := svc.CreateFromFinding(context.Background(), uuid.New(), f, nil)
	if err != nil {
		t.Fatalf("CreateFromFinding() error: %v", err)
	}
	if len(notifier.calls) != 0 {
		t.Errorf("expected no notification for medium severity, got %v", notifier.calls)
	}
	if a.DoctorNotified {
		t.Error("expected doctor_notified false")
	}
}

func TestService_CreateFromFinding_PublishesEvent(t *testing.T) {
	hub := websocket.NewHub()
	patientID := uuid.New()

	client := &websocket.Client{
		ID:     "sub",
		Topics: []string{websocket.AlertTopic(patientID)},
		Send:   make(chan []byte, 4),
	}
	hub.Register(client)

	svc := newTestService(newMockAlertRepo(), &mockPlanSource{}, nil, nil, hub)
	_, _, err := svc.CreateFromFinding(context.Background(), patientID, criticalFinding(), nil)
	if err != nil {
		t.Fatalf("CreateFromFinding() error: %v", err)
	}

	select {
	case <-client.Send:
	case <-time.After(time.Second):
		t.Fatal("expected websocket event for new alert")
	}
}

func TestService_Acknowledge(t *testing.T) {
	repo := newMockAlertRepo()
	svc := newTestService(repo, &mockPlanSource{}, nil, nil, websocket.NewHub())

	patientID := uuid.New()
	a, _, _ := svc.CreateFromFinding(context.Background(), patientID, criticalFinding(), nil)

	acked, err := svc.Acknowledge(context.Background(), patientID, a.ID)
	if err != nil {
		t.Fatalf("Acknowledge() error: %v", err)
	}
	if !acked.Acknowledged {
		t.Error("expected acknowledged true")
	}

	if _, err := svc.Acknowledge(context.Background(), patientID, uuid.New()); err != ErrNotFound {
		t.Errorf("expected ErrNotFound for unknown alert, got %v", err)
	}
}

func TestService_Acknowledge_WrongPatient(t *testing.T) {
	repo := newMockAlertRepo()
	svc := newTestService(repo, &mockPlanSource{}, nil, nil, websocket.NewHub())

	owner := uuid.New()
	a, _, _ := svc.CreateFromFinding(context.Background(), owner, criticalFinding(), nil)

	if _, err := svc.Acknowledge(context.Background(), uuid.New(), a.ID); err != ErrNotFound {
		t.Errorf("expected ErrNotFound for another patient's alert, got %v", err)
	}
	got, err := svc.Get(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.Acknowledged {
		t.Error("alert acknowledged despite patient mismatch")
	}
}

func TestService_CheckMissedDoses(t *testing.T) {
	repo := newMockAlertRepo()
	patientID := uuid.New()
	plans := &mockPlanSource{plans: map[uuid.UUID]*careplan.CarePlan{
		patientID: {
			PatientID: patientID,
			Medications: []careplan.Medication{
				{Name: "Metformin", Dosage: "500mg", Frequency: "twice daily", Times: []string{"08:00", "20:00"}},
			},
			GlucoseTargets: careplan.DefaultGlucoseTargets(),
		},
	}}
	svc := newTestService(repo, plans, nil, nil, websocket.NewHub())
	svc.SetDoseSource(&mockDoseSource{doses: []rules.TakenDose{
		{MedicationName: "Metformin", Taken: true, At: time.Date(2026, 8, 29, 8, 5, 0, 0, time.UTC)},
	}})

	now := time.Date(2026, 8, 29, 21, 0, 0, 0, time.UTC)
	created, err := svc.CheckMissedDoses(context.Background(), patientID, now)
	if err != nil {
		t.Fatalf("CheckMissedDoses() error: %v", err)
	}
	// 08:00 dose was taken; only the 20:00 dose is missed.
	if len(created) != 1 {
		t.Fatalf("expected 1 missed dose alert, got %d", len(created))
	}
	if created[0].Type != rules.FindingMissedDose {
		t.Errorf("expected missed_dose, got %s", created[0].Type)
	}

	// Running again the same day creates nothing new.
	created, err = svc.CheckMissedDoses(context.Background(), patientID, now)
	if err != nil {
		t.Fatalf("second CheckMissedDoses() error: %v", err)
	}
	if len(created) != 0 {
		t.Errorf("expected dedup on second run, got %d", len(created))
	}
}

func TestService_CheckMissedDoses_NoPlan(t *testing.T) {
	svc := newTestService(newMockAlertRepo(), &mockPlanSource{}, nil, nil, websocket.NewHub())
	created, err := svc.CheckMissedDoses(context.Background(), uuid.New(), time.Now())
	if err != nil {
		t.Fatalf("expected no error without plan, got %v", err)
	}
	if created != nil {
		t.Errorf("expected no alerts, got %+v", created)
	}
}
