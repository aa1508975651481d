// Package notification provides the fire-and-forget email/SMS delivery sinks.
// Sends happen off the request path; failures are logged and never surface to
// the business operation that triggered them.
package notification

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Type represents the channel used to deliver a notification.
type Type string

const (
	TypeEmail Type = "email"
	TypeSMS   Type = "sms"
)

// Notification represents a single outbound notification.
type Notification struct {
	ID           string            `json:"id"`
	Type         Type              `json:"type"`
	Recipient    string            `json:"recipient"`
	Subject      string            `json:"subject,omitempty"`
	Body         string            `json:"body"`
	TemplateID   string            `json:"template_id,omitempty"`
	TemplateData map[string]string `json:"template_data,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
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

// TemplateEngine manages notification templates and renders them with data.
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

// NewTemplateEngine creates a TemplateEngine with the built-in templates pre-registered.
func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{templates: make(map[string]*Template)}
	e.registerBuiltIn()
	return e
}

func (e *TemplateEngine) registerBuiltIn() {
	builtIn := []Template{
		{
			ID:      "emergency-alert",
			Name:    "Emergency Blood Alert",
			Subject: "Urgent: {{blood_type}} blood needed in {{city}}",
			Body:    "{{creator_name}} urgently needs {{units}} unit(s) of {{blood_type}} blood in {{city}}. Open the app to pledge.",
			Type:    TypeEmail,
		},
		{
			ID:      "pledge-received",
			Name:    "Pledge Received",
			Subject: "A donor pledged toward your emergency",
			Body:    "{{donor_name}} pledged {{units}} unit(s) toward your {{blood_type}} emergency.",
			Type:    TypeEmail,
		},
		{
			ID:   "request-accepted",
			Name: "Blood Request Accepted",
			Body: "Good news {{patient_name}}: {{blood_bank_name}} accepted your request for {{units}} unit(s) of {{blood_group}}. They will contact you on {{phone}}.",
			Type: TypeSMS,
		},
		{
			ID:   "dispatch-in-transit",
			Name: "Dispatch In Transit",
			Body: "Your blood dispatch {{tracking_number}} ({{units}} unit(s) of {{blood_type}}) is in transit.",
			Type: TypeSMS,
		},
	}

	for i := range builtIn {
		t := builtIn[i]
		e.templates[t.ID] = &t
	}
}

// Register adds or replaces a template.
func (e *TemplateEngine) Register(t *Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[t.ID] = t
}

// Render produces the subject and body for a template id with {{key}}
// placeholders substituted from data.
func (e *TemplateEngine) Render(templateID string, data map[string]string) (subject, body string, err error) {
	e.mu.RLock()
	t, ok := e.templates[templateID]
	e.mu.RUnlock()
	if !ok {
		return "", "", fmt.Errorf("unknown template %q", templateID)
	}

	return substitute(t.Subject, data), substitute(t.Body, data), nil
}

func substitute(s string, data map[string]string) string {
	for k, v := range data {
		s = strings.ReplaceAll(s, "{{"+k+"}}", v)
	}
	return s
}

// Service dispatches notifications through the configured senders.
type Service struct {
	email     EmailSender
	sms       SMSSender
	templates *TemplateEngine
	logger    zerolog.Logger

	wg sync.WaitGroup
}

func NewService(email EmailSender, sms SMSSender, logger zerolog.Logger) *Service {
	return &Service{
		email:     email,
		sms:       sms,
		templates: NewTemplateEngine(),
		logger:    logger,
	}
}

// Templates exposes the engine so callers can register custom templates.
func (s *Service) Templates() *TemplateEngine {
	return s.templates
}

// Send renders and delivers a notification synchronously.
func (s *Service) Send(ctx context.Context, n *Notification) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}

	if n.TemplateID != "" {
		subject, body, err := s.templates.Render(n.TemplateID, n.TemplateData)
		if err != nil {
			return err
		}
		if n.Subject == "" {
			n.Subject = subject
		}
		if n.Body == "" {
			n.Body = body
		}
	}

	switch n.Type {
	case TypeEmail:
		if s.email == nil {
			return fmt.Errorf("no email sender configured")
		}
		return s.email.SendEmail(ctx, n.Recipient, n.Subject, n.Body)
	case TypeSMS:
		if s.sms == nil {
			return fmt.Errorf("no sms sender configured")
		}
		return s.sms.SendSMS(ctx, n.Recipient, n.Body)
	default:
		return fmt.Errorf("unknown notification type %q", n.Type)
	}
}

// SendAsync delivers a notification off the request path. Errors are logged
// and swallowed: a failed notification must never fail or roll back the
// business operation that triggered it. A nil *Service is a no-op.
func (s *Service) SendAsync(n *Notification) {
	if s == nil {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.Send(ctx, n); err != nil {
			s.logger.Error().Err(err).
				Str("type", string(n.Type)).
				Str("template", n.TemplateID).
				Msg("notification send failed")
		}
	}()
}

// Wait blocks until all in-flight async sends finish. Used in shutdown and tests.
func (s *Service) Wait() {
	s.wg.Wait()
}

// LogSender is the default sink: it logs the message instead of delivering it.
// It stands in for real SMTP/SMS providers in development.
type LogSender struct {
	Logger zerolog.Logger
}

func (l LogSender) SendEmail(_ context.Context, to, subject, _ string) error {
	l.Logger.Info().Str("to", to).Str("subject", subject).Msg("email (log sink)")
	return nil
}

func (l LogSender) SendSMS(_ context.Context, to, body string) error {
	l.Logger.Info().Str("to", to).Str("body", body).Msg("sms (log sink)")
	return nil
}
