package notification

import "sync"

// MockNotifier records notices for tests.
type MockNotifier struct {
	mu   sync.Mutex
	sent []SentNotice
}

type SentNotice struct {
	Type NoticeType
	Data NotificationData
}

func (m *MockNotifier) Send(noticeType NoticeType, notification NotificationData, template NoticeTemplate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, SentNotice{Type: noticeType, Data: notification})
	return nil
}

func (m *MockNotifier) Sent() []SentNotice {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SentNotice, len(m.sent))
	copy(out, m.sent)
	return out
}
