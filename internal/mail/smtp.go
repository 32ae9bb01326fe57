package mail

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/observability"

	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"
)

// SMTPConfig configures SMTPMailer.
type SMTPConfig struct {
	Host          string
	Port          int
	Username      string
	Password      string
	From          string
	RatePerSecond float64
}

// ErrMailUnavailable is returned while the breaker is open.
var ErrMailUnavailable = errors.New("mail delivery temporarily unavailable")

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPMailer delivers through an SMTP relay. Sends are throttled by a token
// bucket and guarded by a circuit breaker so a dead relay fails fast.
type SMTPMailer struct {
	cfg     SMTPConfig
	limiter *rate.Limiter
	cb      *gobreaker.CircuitBreaker[struct{}]
	send    sendFunc
}

// NewSMTPMailer returns an SMTPMailer for cfg.
func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	rps := cfg.RatePerSecond
	if rps <= 0 {
		rps = 5
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}

	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "smtp",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			observability.GlobalLogger.Warn("mail circuit breaker state change",
				"breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return &SMTPMailer{
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		cb:      cb,
		send:    smtp.SendMail,
	}
}

func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	if err := m.limiter.Wait(ctx); err != nil {
		observability.MailDeliveriesTotal.WithLabelValues("smtp", "throttled").Inc()
		return fmt.Errorf("mail rate limit: %w", err)
	}

	_, err := m.cb.Execute(func() (struct{}, error) {
		return struct{}{}, m.deliver(to, subject, body)
	})
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		observability.MailDeliveriesTotal.WithLabelValues("smtp", "rejected").Inc()
		return ErrMailUnavailable
	case err != nil:
		observability.MailDeliveriesTotal.WithLabelValues("smtp", "failed").Inc()
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	observability.MailDeliveriesTotal.WithLabelValues("smtp", "sent").Inc()
	return nil
}

func (m *SMTPMailer) deliver(to, subject, body string) error {
	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}
	return m.send(addr, auth, m.cfg.From, []string{to}, buildMessage(m.cfg.From, to, subject, body))
}

func buildMessage(from, to, subject, body string) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}
