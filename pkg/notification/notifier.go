// Package notification delivers account-security notices to users.
package notification

// NoticeType identifies a notice the authentication core can send.
type NoticeType string

const (
	RecoveryCodeUsedNotice NoticeType = "recovery_code_used"
	InviteAcceptedNotice   NoticeType = "invite_accepted"
	WelcomeNotice          NoticeType = "welcome"
)

// NoticeTemplate holds the subject and body templates for a notice.
// Text and Html are Go templates executed against NotificationData.Data.
type NoticeTemplate struct {
	Subject string
	Text    string
	Html    string
}

// NotificationData carries the recipient and template fields for one notice.
type NotificationData struct {
	To   string
	Data map[string]string
}

// Notifier delivers a rendered notice over one channel.
type Notifier interface {
	Send(noticeType NoticeType, notification NotificationData, template NoticeTemplate) error
}
