package dispatch

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"strings"
	"time"

	"leadflow_backend/platform/config"
	"leadflow_backend/platform/logger"

	gomail "github.com/wneessen/go-mail"
)

//go:embed templates/*.html
var templateFS embed.FS

var emailTemplates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

const defaultEmailSubject = "Acompanhamento"

type followupEmailData struct {
	Title      string
	Paragraphs []string
}

// EmailSender delivers follow-ups over SMTP with go-mail. Without SMTP
// settings it reports success without sending.
type EmailSender struct {
	host      string
	port      int
	username  string
	password  string
	fromName  string
	fromEmail string
	enabled   bool
	log       *logger.Logger
}

// NewEmailSender creates an email sender from configuration.
func NewEmailSender(cfg config.EmailConfig, log *logger.Logger) *EmailSender {
	if log == nil {
		log = logger.Nop()
	}
	return &EmailSender{
		host:      cfg.GetSMTPHost(),
		port:      cfg.GetSMTPPort(),
		username:  cfg.GetSMTPUsername(),
		password:  cfg.GetSMTPPassword(),
		fromName:  cfg.GetEmailFromName(),
		fromEmail: cfg.GetEmailFromAddress(),
		enabled:   cfg.IsEmailEnabled(),
		log:       log,
	}
}

func (s *EmailSender) Send(ctx context.Context, msg Message) error {
	to := strings.TrimSpace(msg.To.Email)
	if to == "" {
		return ErrMissingDestination
	}
	if !s.enabled {
		s.log.Debug("smtp not configured, email follow-up skipped", "executionId", msg.ExecutionID)
		return nil
	}

	subject := msg.Subject
	if strings.TrimSpace(subject) == "" {
		subject = defaultEmailSubject
	}
	html, err := renderFollowupEmail(subject, msg.Body)
	if err != nil {
		return err
	}

	m := gomail.NewMsg()
	if err := m.FromFormat(s.fromName, s.fromEmail); err != nil {
		return fmt.Errorf("smtp from: %w", err)
	}
	if err := m.AddToFormat(msg.To.Name, to); err != nil {
		return fmt.Errorf("smtp to: %w", err)
	}
	m.Subject(subject)
	m.SetBodyString(gomail.TypeTextPlain, msg.Body)
	m.AddAlternativeString(gomail.TypeTextHTML, html)

	opts := []gomail.Option{
		gomail.WithPort(s.port),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15 * time.Second),
	}
	if s.username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(s.username),
			gomail.WithPassword(s.password),
		)
	}
	client, err := gomail.NewClient(s.host, opts...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}

	s.log.Info("email follow-up sent", "executionId", msg.ExecutionID)
	return nil
}

func renderFollowupEmail(title, body string) (string, error) {
	data := followupEmailData{Title: title}
	for _, p := range strings.Split(body, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			data.Paragraphs = append(data.Paragraphs, p)
		}
	}

	var buf bytes.Buffer
	if err := emailTemplates.ExecuteTemplate(&buf, "followup.html", data); err != nil {
		return "", fmt.Errorf("render email template: %w", err)
	}
	return buf.String(), nil
}
