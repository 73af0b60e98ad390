package notification

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEmailNotifier(t *testing.T) {
	tests := []struct {
		name   string
		config SMTPConfig
	}{
		{"plain", SMTPConfig{Host: "smtp.example.com", Port: 25, From: "noreply@example.com"}},
		{"tls with auth", SMTPConfig{
			Host: "smtp.example.com", Port: 587, TLS: true,
			Username: "mailer", Password: "pw", From: "noreply@example.com",
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			n, err := NewEmailNotifier(tc.config)
			require.NoError(t, err)
			assert.NotNil(t, n)
		})
	}
}

func TestEmailNotifier_RequiresRecipient(t *testing.T) {
	n, err := NewEmailNotifier(SMTPConfig{Host: "smtp.example.com", Port: 25, From: "noreply@example.com"})
	require.NoError(t, err)

	err = n.Send(WelcomeNotice, NotificationData{}, NoticeTemplate{Subject: "hi"})
	assert.Error(t, err)
}
