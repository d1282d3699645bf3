// Package notification provides an Email/SMS notification system with template
// rendering, in-memory delivery tracking, retry, and Echo HTTP handlers.
package notification

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Type represents the channel used to deliver a notification.
type Type string

const (
	TypeEmail Type = "email"
	TypeSMS   Type = "sms"
)

// Delivery statuses.
const (
	StatusPending = "pending"
	StatusSent    = "sent"
	StatusFailed  = "failed"
)

// Notification is one outbound message and its delivery record.
type Notification struct {
	ID           string            `json:"id"`
	Type         Type              `json:"type"`
	Recipient    string            `json:"recipient"`
	Subject      string            `json:"subject,omitempty"`
	Body         string            `json:"body"`
	TemplateID   string            `json:"template_id,omitempty"`
	TemplateData map[string]string `json:"template_data,omitempty"`
	Status       string            `json:"status"`
	CreatedAt    time.Time         `json:"created_at"`
	SentAt       *time.Time        `json:"sent_at,omitempty"`
	Error        string            `json:"error,omitempty"`
}

// EmailSender is the interface for sending email messages.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// SMSSender is the interface for sending SMS messages.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// Template defines a reusable notification template.
type Template struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	Type    Type   `json:"type"`
}

// Template IDs registered at startup. Data keys each template expects are
// visible in the template body.
const (
	TemplateGlucoseAlert     = "glucose-alert"
	TemplateCriticalGlucose  = "critical-glucose-alert"
	TemplateMissedDose       = "missed-dose-alert"
	TemplateMedicationSMS    = "medication-reminder-sms"
	TemplateAppointmentReq   = "appointment-request"
	TemplateEmergencyContact = "emergency-contact"
)

// TemplateEngine manages notification templates and renders them with data.
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

// NewTemplateEngine creates a TemplateEngine with the built-in templates pre-registered.
func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{
		templates: make(map[string]*Template),
	}
	e.registerBuiltIn()
	return e
}

func (e *TemplateEngine) registerBuiltIn() {
	builtIn := []Template{
		{
			ID:      TemplateGlucoseAlert,
			Name:    "Glucose Alert",
			Subject: "Glucose alert for {{patient_name}}",
			Body:    "Patient {{patient_name}} logged a {{reading_type}} glucose of {{value}} mg/dL at {{logged_at}}. Severity: {{severity}}. {{message}}",
			Type:    TypeEmail,
		},
		{
			ID:      TemplateCriticalGlucose,
			Name:    "Critical Glucose Alert",
			Subject: "URGENT: critical glucose for {{patient_name}}",
			Body:    "Patient {{patient_name}} logged a critical {{reading_type}} glucose of {{value}} mg/dL at {{logged_at}}. {{message}} Please follow up immediately.",
			Type:    TypeEmail,
		},
		{
			ID:      TemplateMissedDose,
			Name:    "Missed Dose Alert",
			Subject: "Missed dose for {{patient_name}}",
			Body:    "Patient {{patient_name}} missed their {{medication}} dose scheduled for {{scheduled_time}}.",
			Type:    TypeEmail,
		},
		{
			ID:      TemplateMedicationSMS,
			Name:    "Medication Reminder SMS",
			Subject: "",
			Body:    "Hi {{patient_name}}, time to take your {{medication}} ({{dosage}}). Reply DONE once taken.",
			Type:    TypeSMS,
		},
		{
			ID:      TemplateAppointmentReq,
			Name:    "Appointment Request",
			Subject: "Appointment request from {{patient_name}}",
			Body:    "Patient {{patient_name}} requested an appointment. Reason: {{reason}}. Preferred time: {{preferred_time}}.",
			Type:    TypeEmail,
		},
		{
			ID:      TemplateEmergencyContact,
			Name:    "Emergency Contact",
			Subject: "EMERGENCY: {{patient_name}} needs help",
			Body:    "Patient {{patient_name}} triggered an emergency contact request at {{triggered_at}}. Last message: {{message}}",
			Type:    TypeEmail,
		},
	}
	for i := range builtIn {
		t := builtIn[i]
		e.templates[t.ID] = &t
	}
}

// RegisterTemplate adds or replaces a template in the engine.
func (e *TemplateEngine) RegisterTemplate(t Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[t.ID] = &t
}

// TypeOf reports the channel a template sends over. Unknown IDs report
// TypeEmail; callers are expected to Render first, which validates the ID.
func (e *TemplateEngine) TypeOf(templateID string) Type {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if t, ok := e.templates[templateID]; ok {
		return t.Type
	}
	return TypeEmail
}

// Render looks up a template by ID and performs {{key}} replacement using the
// supplied data map. Keys present in the template but absent from data are left
// as-is.
func (e *TemplateEngine) Render(templateID string, data map[string]string) (subject, body string, err error) {
	e.mu.RLock()
	t, ok := e.templates[templateID]
	e.mu.RUnlock()
	if !ok {
		return "", "", fmt.Errorf("template %q not found", templateID)
	}
	return expand(t.Subject, data), expand(t.Body, data), nil
}

func expand(s string, data map[string]string) string {
	for k, v := range data {
		s = strings.ReplaceAll(s, "{{"+k+"}}", v)
	}
	return s
}

// LogEmailSender writes emails to the log instead of delivering them. It is
// the default sender until an SMTP integration is configured.
type LogEmailSender struct {
	Log zerolog.Logger
}

func (s *LogEmailSender) SendEmail(_ context.Context, to, subject, body string) error {
	s.Log.Info().
		Str("to", to).
		Str("subject", subject).
		Int("body_len", len(body)).
		Msg("email (log sender)")
	return nil
}

// LogSMSSender writes SMS messages to the log instead of delivering them.
type LogSMSSender struct {
	Log zerolog.Logger
}

func (s *LogSMSSender) SendSMS(_ context.Context, to, body string) error {
	s.Log.Info().
		Str("to", to).
		Str("body", body).
		Msg("sms (log sender)")
	return nil
}

// EmailCall records a single call to SendEmail.
type EmailCall struct {
	To      string
	Subject string
	Body    string
}

// MockEmailSender records SendEmail calls for tests. Set ShouldFail to make
// deliveries return FailError.
type MockEmailSender struct {
	mu         sync.Mutex
	calls      []EmailCall
	ShouldFail bool
	FailError  string
}

func (m *MockEmailSender) SendEmail(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	m.calls = append(m.calls, EmailCall{To: to, Subject: subject, Body: body})
	m.mu.Unlock()
	return failErr(m.ShouldFail, m.FailError)
}

// Calls returns a copy of recorded email calls.
func (m *MockEmailSender) Calls() []EmailCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]EmailCall(nil), m.calls...)
}

// SMSCall records a single call to SendSMS.
type SMSCall struct {
	To   string
	Body string
}

// MockSMSSender records SendSMS calls for tests.
type MockSMSSender struct {
	mu         sync.Mutex
	calls      []SMSCall
	ShouldFail bool
	FailError  string
}

func (m *MockSMSSender) SendSMS(_ context.Context, to, body string) error {
	m.mu.Lock()
	m.calls = append(m.calls, SMSCall{To: to, Body: body})
	m.mu.Unlock()
	return failErr(m.ShouldFail, m.FailError)
}

// Calls returns a copy of recorded SMS calls.
func (m *MockSMSSender) Calls() []SMSCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SMSCall(nil), m.calls...)
}

func failErr(fail bool, msg string) error {
	if !fail {
		return nil
	}
	return errors.New(msg)
}

// Manager orchestrates sending, delivery tracking, and retrieval of
// notifications. Records live in memory; they are operational breadcrumbs,
// not durable audit data.
type Manager struct {
	email     EmailSender
	sms       SMSSender
	templates *TemplateEngine

	mu      sync.RWMutex
	records map[string]*Notification
}

// NewManager constructs a Manager.
func NewManager(email EmailSender, sms SMSSender, tpl *TemplateEngine) *Manager {
	return &Manager{
		email:     email,
		sms:       sms,
		templates: tpl,
		records:   make(map[string]*Notification),
	}
}

// dispatch pushes the notification through its channel and updates the
// delivery fields in place. The caller holds no lock.
func (m *Manager) dispatch(ctx context.Context, n *Notification) error {
	var err error
	switch n.Type {
	case TypeEmail:
		err = m.email.SendEmail(ctx, n.Recipient, n.Subject, n.Body)
	case TypeSMS:
		err = m.sms.SendSMS(ctx, n.Recipient, n.Body)
	default:
		err = fmt.Errorf("unsupported notification type: %s", n.Type)
	}

	if err != nil {
		n.Status = StatusFailed
		n.Error = err.Error()
		return err
	}
	n.Status = StatusSent
	n.Error = ""
	sentAt := time.Now().UTC()
	n.SentAt = &sentAt
	return nil
}

// Send assigns an ID, dispatches the notification, and records the outcome.
// The record is kept even when delivery fails so it can be retried later.
func (m *Manager) Send(ctx context.Context, n *Notification) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	n.CreatedAt = time.Now().UTC()
	n.Status = StatusPending

	sendErr := m.dispatch(ctx, n)

	m.mu.Lock()
	m.records[n.ID] = n
	m.mu.Unlock()

	return sendErr
}

// SendFromTemplate renders a template and sends the resulting notification.
func (m *Manager) SendFromTemplate(ctx context.Context, templateID string, data map[string]string, recipient string) (*Notification, error) {
	subject, body, err := m.templates.Render(templateID, data)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	n := &Notification{
		Type:         m.templates.TypeOf(templateID),
		Recipient:    recipient,
		Subject:      subject,
		Body:         body,
		TemplateID:   templateID,
		TemplateData: data,
	}
	return n, m.Send(ctx, n)
}

func (m *Manager) lookup(id string) (*Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if n, ok := m.records[id]; ok {
		return n, nil
	}
	return nil, fmt.Errorf("notification %q not found", id)
}

// Get retrieves a notification by ID.
func (m *Manager) Get(_ context.Context, id string) (*Notification, error) {
	return m.lookup(id)
}

// ListByRecipient returns notifications for a given recipient, up to limit.
func (m *Manager) ListByRecipient(_ context.Context, recipient string, limit int) ([]*Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*Notification, 0, limit)
	for _, n := range m.records {
		if n.Recipient != recipient {
			continue
		}
		result = append(result, n)
		if len(result) >= limit {
			break
		}
	}
	return result, nil
}

// Retry re-sends a notification that previously failed.
func (m *Manager) Retry(ctx context.Context, id string) error {
	n, err := m.lookup(id)
	if err != nil {
		return err
	}
	if n.Status != StatusFailed {
		return fmt.Errorf("notification %q is not in failed status (current: %s)", id, n.Status)
	}
	return m.dispatch(ctx, n)
}

// Stats returns counts of notifications grouped by status.
func (m *Manager) Stats(_ context.Context) map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := make(map[string]int, 3)
	for _, n := range m.records {
		counts[n.Status]++
	}
	return counts
}

// DoctorNotifier sends care-team notifications on a best-effort basis.
// Delivery failures are logged and never propagated, alerting must not fail
// because an email bounced.
type DoctorNotifier struct {
	manager *Manager
	log     zerolog.Logger
}

// NewDoctorNotifier constructs a DoctorNotifier.
func NewDoctorNotifier(mgr *Manager, log zerolog.Logger) *DoctorNotifier {
	return &DoctorNotifier{manager: mgr, log: log}
}

// Notify renders templateID with data and sends it to the doctor's email.
// Failures are logged, not returned.
func (d *DoctorNotifier) Notify(ctx context.Context, doctorEmail, templateID string, data map[string]string) {
	if doctorEmail == "" {
		d.log.Warn().Str("template_id", templateID).Msg("doctor notification skipped: no recipient")
		return
	}
	if _, err := d.manager.SendFromTemplate(ctx, templateID, data, doctorEmail); err != nil {
		d.log.Error().Err(err).
			Str("template_id", templateID).
			Str("recipient", doctorEmail).
			Msg("doctor notification failed")
		return
	}
	d.log.Info().Str("template_id", templateID).Str("recipient", doctorEmail).Msg("doctor notified")
}

// Handler exposes notification delivery records for operational inspection
// and a template-send endpoint for the care team tooling.
type Handler struct {
	manager *Manager
}

func NewHandler(mgr *Manager) *Handler {
	return &Handler{manager: mgr}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/notifications/send-template", h.SendTemplate)
	g.GET("/notifications/stats", h.Stats)
	g.GET("/notifications/:id", h.Get)
	g.GET("/notifications", h.List)
	g.POST("/notifications/:id/retry", h.Retry)
}

type sendTemplateRequest struct {
	TemplateID string            `json:"template_id"`
	Recipient  string            `json:"recipient"`
	Data       map[string]string `json:"data"`
}

// SendTemplate renders and sends a registered template. A delivery failure
// still returns the record (201) so the caller can retry it by ID.
func (h *Handler) SendTemplate(c echo.Context) error {
	var req sendTemplateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Recipient == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "recipient is required")
	}

	n, err := h.manager.SendFromTemplate(c.Request().Context(), req.TemplateID, req.Data, req.Recipient)
	if err != nil && n == nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, n)
}

func (h *Handler) Get(c echo.Context) error {
	n, err := h.manager.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.JSON(http.StatusOK, n)
}

func (h *Handler) List(c echo.Context) error {
	recipient := c.QueryParam("recipient")
	if recipient == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "recipient query parameter is required")
	}
	list, err := h.manager.ListByRecipient(c.Request().Context(), recipient, 100)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if list == nil {
		list = []*Notification{}
	}
	return c.JSON(http.StatusOK, list)
}

func (h *Handler) Retry(c echo.Context) error {
	id := c.Param("id")
	if err := h.manager.Retry(c.Request().Context(), id); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	n, _ := h.manager.Get(c.Request().Context(), id)
	return c.JSON(http.StatusOK, n)
}

func (h *Handler) Stats(c echo.Context) error {
	return c.JSON(http.StatusOK, h.manager.Stats(c.Request().Context()))
}
