package mail

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		backend string
		want    interface{}
		wantErr bool
	}{
		{"default", "", &LogMailer{}, false},
		{"log", "log", &LogMailer{}, false},
		{"smtp", "smtp", &SMTPMailer{}, false},
		{"unknown", "carrier-pigeon", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := New(&config.Config{MailBackend: tt.backend, MailFrom: "no-reply@espa.local", SMTPHost: "localhost", SMTPPort: 25})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, m)
		})
	}
}

func TestLogMailer_Send(t *testing.T) {
	m := &LogMailer{From: "no-reply@espa.local"}
	assert.NoError(t, m.Send(context.Background(), "a@example.com", "Login OTP", OTPBody("123456", 10*time.Minute)))
}

func TestOTPBody(t *testing.T) {
	t.Parallel()
	body := OTPBody("042042", 10*time.Minute)
	assert.Contains(t, body, "042042")
	assert.Contains(t, body, "10 minutes")
}

func TestSMTPMailer_Send(t *testing.T) {
	m := NewSMTPMailer(SMTPConfig{Host: "smtp.example.com", Port: 587, Username: "u", Password: "p", From: "from@espa.local", RatePerSecond: 100})

	var gotAddr string
	var gotTo []string
	var gotMsg string
	m.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotTo, gotMsg = addr, to, string(msg)
		assert.Equal(t, "from@espa.local", from)
		return nil
	}

	require.NoError(t, m.Send(context.Background(), "a@example.com", "Login OTP", "body text"))
	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Equal(t, []string{"a@example.com"}, gotTo)
	assert.True(t, strings.HasPrefix(gotMsg, "From: from@espa.local\r\n"))
	assert.Contains(t, gotMsg, "Subject: Login OTP\r\n")
	assert.True(t, strings.HasSuffix(gotMsg, "\r\n\r\nbody text"))
}

func TestSMTPMailer_BreakerOpensAfterFailures(t *testing.T) {
	m := NewSMTPMailer(SMTPConfig{Host: "smtp.example.com", Port: 25, From: "from@espa.local", RatePerSecond: 1000})
	calls := 0
	m.send = func(string, smtp.Auth, string, []string, []byte) error {
		calls++
		return errors.New("connection refused")
	}

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		err := m.Send(ctx, "a@example.com", "s", "b")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrMailUnavailable)
	}

	err := m.Send(ctx, "a@example.com", "s", "b")
	assert.ErrorIs(t, err, ErrMailUnavailable)
	assert.Equal(t, 5, calls, "an open breaker does not reach the relay")
}

func TestSMTPMailer_RespectsContext(t *testing.T) {
	m := NewSMTPMailer(SMTPConfig{Host: "h", Port: 25, RatePerSecond: 1})
	m.send = func(string, smtp.Auth, string, []string, []byte) error { return nil }

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, m.Send(ctx, "a@example.com", "s", "b"))
	cancel()
	assert.Error(t, m.Send(ctx, "a@example.com", "s", "b"))
}
