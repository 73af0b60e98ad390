package notification

import (
	"fmt"
	"log/slog"
)

// NotificationSystem is a delivery channel (e.g. email).
type NotificationSystem string

const (
	EmailSystem NotificationSystem = "email"
)

// Manager routes notices to registered notifiers using registered
// templates. Registration happens during startup; Send may be called
// concurrently afterward.
type Manager struct {
	notifiers map[NotificationSystem]Notifier
	templates map[NoticeType]map[NotificationSystem]NoticeTemplate
}

func NewManager() *Manager {
	return &Manager{
		notifiers: make(map[NotificationSystem]Notifier),
		templates: make(map[NoticeType]map[NotificationSystem]NoticeTemplate),
	}
}

// RegisterNotifier registers a notifier for a delivery channel.
func (m *Manager) RegisterNotifier(system NotificationSystem, notifier Notifier) {
	m.notifiers[system] = notifier
}

// RegisterNotice registers the template used when sending the given
// notice type over the given channel.
func (m *Manager) RegisterNotice(noticeType NoticeType, system NotificationSystem, template NoticeTemplate) error {
	if noticeType == "" || system == "" {
		return fmt.Errorf("invalid input: notice type and system cannot be empty")
	}
	if _, exists := m.templates[noticeType]; !exists {
		m.templates[noticeType] = make(map[NotificationSystem]NoticeTemplate)
	}
	m.templates[noticeType][system] = template
	return nil
}

// Send delivers the notice over every channel that has both a template
// and a notifier registered. Delivery failures are logged, not returned;
// a security notice must never fail the operation that triggered it.
func (m *Manager) Send(noticeType NoticeType, notification NotificationData) {
	systems, exists := m.templates[noticeType]
	if !exists {
		slog.Debug("No templates registered for notice", "type", noticeType)
		return
	}
	for system, tmpl := range systems {
		notifier, ok := m.notifiers[system]
		if !ok {
			continue
		}
		if err := notifier.Send(noticeType, notification, tmpl); err != nil {
			slog.Error("Failed to deliver notice", "type", noticeType, "system", system, "err", err)
		}
	}
}

// DefaultTemplates returns the built-in email templates for the notices
// the authentication core emits.
func DefaultTemplates() map[NoticeType]NoticeTemplate {
	return map[NoticeType]NoticeTemplate{
		RecoveryCodeUsedNotice: {
			Subject: "A recovery code was used on your account",
			Text: "Hi {{.firstName}},\n\n" +
				"A two-factor recovery code was just used to sign in to your account. " +
				"You have {{.codesLeft}} recovery codes left.\n\n" +
				"If this was not you, reset your password immediately.\n",
		},
		InviteAcceptedNotice: {
			Subject: "{{.inviteeEmail}} accepted your invitation",
			Text: "Hi {{.firstName}},\n\n" +
				"{{.inviteeEmail}} has accepted your invitation and finished setting up their account.\n",
		},
		WelcomeNotice: {
			Subject: "Your account is ready",
			Text: "Hi {{.firstName}},\n\n" +
				"Your account has been created. You can sign in with your email address.\n",
		},
	}
}
