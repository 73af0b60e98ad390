package events

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAsyncEmitter_DeliversInOrder(t *testing.T) {
	var mu sync.Mutex
	var got []string

	e := NewAsyncEmitter(16, func(ev Event) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, ev.Name)
	})

	e.Emit(UserLoggedIn, map[string]any{"user_id": "1"})
	e.Emit(UserInviteClick, nil)
	e.Close()

	assert.Equal(t, []string{UserLoggedIn, UserInviteClick}, got)
}

func TestAsyncEmitter_FullBufferDropsInsteadOfBlocking(t *testing.T) {
	block := make(chan struct{})
	e := NewAsyncEmitter(1, func(ev Event) {
		<-block
	})

	// First event occupies the worker, second fills the buffer; the
	// rest must not block the caller.
	for i := 0; i < 10; i++ {
		e.Emit(UserLoggedIn, nil)
	}
	close(block)
	e.Close()
}

func TestNoopEmitter(t *testing.T) {
	NoopEmitter{}.Emit(UserLoggedIn, map[string]any{"user_id": "1"})
}
