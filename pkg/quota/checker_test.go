package quota

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keelhq/authd/pkg/user"
)

func TestSeatChecker(t *testing.T) {
	repo := user.NewInMemoryRepository()
	ctx := context.Background()

	_, err := repo.Create(ctx, user.User{Email: "a@example.com", PasswordHash: "hash"})
	require.NoError(t, err)
	_, err = repo.Create(ctx, user.User{Email: "b@example.com", PasswordHash: "hash"})
	require.NoError(t, err)
	// Pending invitees do not occupy a seat
	_, err = repo.Create(ctx, user.User{Email: "pending@example.com"})
	require.NoError(t, err)

	tests := []struct {
		name string
		cap  int
		want bool
	}{
		{"below cap", 3, true},
		{"at cap", 2, false},
		{"unlimited", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := NewSeatChecker(repo, tt.cap).WithinLimit(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestStaticChecker(t *testing.T) {
	ok, err := StaticChecker{Allowed: true}.WithinLimit(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = StaticChecker{Allowed: false}.WithinLimit(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}
