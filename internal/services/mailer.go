package services

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"gopkg.in/gomail.v2"

	"github.com/msdeveloper2k/cashback-zone/internal/config"
	"github.com/msdeveloper2k/cashback-zone/internal/utils"
)

// Mailer delivers one transactional email.
type Mailer interface {
	Send(ctx context.Context, to, subject, plainText, html string) error
}

// NewMailer picks SendGrid when an API key is configured, then SMTP, then a
// mailer that only logs.
func NewMailer(cfg *config.Config) Mailer {
	switch {
	case cfg.SendGridAPIKey != "":
		return &sendgridMailer{
			client:      sendgrid.NewSendClient(cfg.SendGridAPIKey),
			fromName:    cfg.OrganizationName,
			fromEmail:   cfg.LDFlag_SendgridFromEmail,
			sandboxMode: cfg.LDFlag_SendgridSandboxMode,
		}
	case cfg.SMTPHost != "":
		return &smtpMailer{
			dialer:    gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword),
			fromName:  cfg.OrganizationName,
			fromEmail: cfg.MailFromEmail,
		}
	default:
		return logMailer{}
	}
}

// ---------------------------------------------------------------------
// SendGrid
// ---------------------------------------------------------------------

type sendgridMailer struct {
	client      *sendgrid.Client
	fromName    string
	fromEmail   string
	sandboxMode bool
}

func (m *sendgridMailer) Send(ctx context.Context, to, subject, plainText, html string) error {
	from := mail.NewEmail(m.fromName, m.fromEmail)
	message := mail.NewSingleEmail(from, subject, mail.NewEmail("", to), plainText, html)

	if m.sandboxMode {
		ms := mail.NewMailSettings()
		ms.SetSandboxMode(mail.NewSetting(true))
		message.MailSettings = ms
	}

	resp, err := m.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("%w: failed to send email via sendgrid: %v", utils.ErrExternalServiceFailure, err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%w: sendgrid returned %d", utils.ErrExternalServiceFailure, resp.StatusCode)
	}
	return nil
}

// ---------------------------------------------------------------------
// SMTP
// ---------------------------------------------------------------------

type smtpMailer struct {
	dialer    *gomail.Dialer
	fromName  string
	fromEmail string
}

func (m *smtpMailer) Send(ctx context.Context, to, subject, plainText, html string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := gomail.NewMessage()
	msg.SetAddressHeader("From", m.fromEmail, m.fromName)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", plainText)
	if html != "" {
		msg.AddAlternative("text/html", html)
	}
	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("%w: failed to send email via smtp: %v", utils.ErrExternalServiceFailure, err)
	}
	return nil
}

// ---------------------------------------------------------------------
// Log only (local development)
// ---------------------------------------------------------------------

type logMailer struct{}

func (logMailer) Send(_ context.Context, to, subject, plainText, _ string) error {
	utils.Logger.WithField("to", to).Infof("Email not sent (no transport configured): %s | %s", subject, plainText)
	return nil
}
