// Package mail delivers transactional email such as OTP codes.
package mail

import (
	"context"
	"fmt"
	"time"

	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/config"
	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/observability"
)

// Mailer sends a plain-text message to a single recipient.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// LogMailer writes messages to the structured log instead of delivering them.
// It is the default backend outside production.
type LogMailer struct {
	From string
}

func (m *LogMailer) Send(ctx context.Context, to, subject, body string) error {
	observability.GlobalLogger.InfoContext(ctx, "mail (log backend)",
		"from", m.From,
		"to", to,
		"subject", subject,
		"body", body,
	)
	observability.MailDeliveriesTotal.WithLabelValues("log", "sent").Inc()
	return nil
}

// New builds the Mailer selected by MAIL_BACKEND.
func New(cfg *config.Config) (Mailer, error) {
	switch cfg.MailBackend {
	case "", "log":
		return &LogMailer{From: cfg.MailFrom}, nil
	case "smtp":
		return NewSMTPMailer(SMTPConfig{
			Host:          cfg.SMTPHost,
			Port:          cfg.SMTPPort,
			Username:      cfg.SMTPUsername,
			Password:      cfg.SMTPPassword,
			From:          cfg.MailFrom,
			RatePerSecond: cfg.MailRatePerSecond,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported mail backend %q", cfg.MailBackend)
	}
}

// OTPBody renders the message sent with a one-time code.
func OTPBody(code string, expiry time.Duration) string {
	return fmt.Sprintf("Your OTP code is %s. It is valid for %d minutes.", code, int(expiry.Minutes()))
}
