// Package events decouples the authentication core from whatever is
// listening for lifecycle signals. Emitting is fire-and-forget: a slow
// or failing listener never blocks a login.
package events

import (
	"log/slog"
	"time"
)

// Event names emitted by the authentication core.
const (
	UserLoggedIn     = "user-logged-in"
	UserSignedUp     = "user-signed-up"
	UserInviteClick  = "user-invite-click"
	RecoveryCodeUsed = "user-recovery-code-used"
)

// Event is a named fact with loosely typed payload fields.
type Event struct {
	Name   string
	At     time.Time
	Fields map[string]any
}

// Emitter publishes events to interested listeners.
type Emitter interface {
	Emit(name string, fields map[string]any)
}

// Handler consumes events delivered by an AsyncEmitter.
type Handler func(Event)

// AsyncEmitter buffers events on a channel and delivers them from a
// single background goroutine. When the buffer is full the event is
// dropped and logged rather than blocking the caller.
type AsyncEmitter struct {
	ch       chan Event
	done     chan struct{}
	handlers []Handler
}

// NewAsyncEmitter starts the delivery goroutine. Close releases it.
func NewAsyncEmitter(buffer int, handlers ...Handler) *AsyncEmitter {
	if buffer <= 0 {
		buffer = 64
	}
	e := &AsyncEmitter{
		ch:       make(chan Event, buffer),
		done:     make(chan struct{}),
		handlers: handlers,
	}
	go e.run()
	return e
}

func (e *AsyncEmitter) run() {
	defer close(e.done)
	for ev := range e.ch {
		for _, h := range e.handlers {
			h(ev)
		}
	}
}

// Emit queues the event for delivery
func (e *AsyncEmitter) Emit(name string, fields map[string]any) {
	ev := Event{Name: name, At: time.Now().UTC(), Fields: fields}
	select {
	case e.ch <- ev:
	default:
		slog.Warn("Event buffer full, dropping event", "name", name)
	}
}

// Close stops accepting events and waits for queued ones to drain
func (e *AsyncEmitter) Close() {
	close(e.ch)
	<-e.done
}

// NoopEmitter discards every event
type NoopEmitter struct{}

func (NoopEmitter) Emit(name string, fields map[string]any) {}

// LogHandler returns a Handler that records events through slog.
func LogHandler(logger *slog.Logger) Handler {
	return func(ev Event) {
		args := make([]any, 0, len(ev.Fields)*2)
		for k, v := range ev.Fields {
			args = append(args, k, v)
		}
		logger.Info("Event: "+ev.Name, args...)
	}
}
