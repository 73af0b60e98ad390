package user

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryRepository implements Repository using in-memory storage.
// It enforces the same email uniqueness constraint as the Postgres
// implementation so the just-in-time provisioning race behaves identically
// in tests.
type InMemoryRepository struct {
	mu           sync.RWMutex
	users        map[uuid.UUID]User
	usersByEmail map[string]uuid.UUID
	usersByLdap  map[string]uuid.UUID
}

// NewInMemoryRepository creates a new in-memory user repository
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		users:        make(map[uuid.UUID]User),
		usersByEmail: make(map[string]uuid.UUID),
		usersByLdap:  make(map[string]uuid.UUID),
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// detach copies the slice fields so callers never alias stored state.
// Without it a caller mutating a returned User would write through to the
// repository outside the lock.
func detach(u User) User {
	u.MFARecoveryCodes = slices.Clone(u.MFARecoveryCodes)
	return u
}

// FindByID finds a user by id
func (r *InMemoryRepository) FindByID(ctx context.Context, id uuid.UUID) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return detach(u), nil
}

// FindByEmail finds a user by email, case-insensitive
func (r *InMemoryRepository) FindByEmail(ctx context.Context, email string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.usersByEmail[normalizeEmail(email)]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return detach(r.users[id]), nil
}

// FindByLdapLoginID finds a user by directory login id
func (r *InMemoryRepository) FindByLdapLoginID(ctx context.Context, loginID string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.usersByLdap[loginID]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return detach(r.users[id]), nil
}

// FindByIDs returns the users matching the given ids
func (r *InMemoryRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var found []User
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			found = append(found, detach(u))
		}
	}
	return found, nil
}

// Create inserts a new user, enforcing email uniqueness
func (r *InMemoryRepository) Create(ctx context.Context, u User) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	email := normalizeEmail(u.Email)
	if _, exists := r.usersByEmail[email]; exists {
		return User{}, ErrEmailTaken
	}

	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	u.Email = email

	r.users[u.ID] = detach(u)
	r.usersByEmail[email] = u.ID
	if u.LdapLoginID != "" {
		r.usersByLdap[u.LdapLoginID] = u.ID
	}
	return u, nil
}

// CountActive counts users that have claimed their account
func (r *InMemoryRepository) CountActive(ctx context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, u := range r.users {
		if u.Claimed() {
			n++
		}
	}
	return n, nil
}

// Save updates an existing user record
func (r *InMemoryRepository) Save(ctx context.Context, u User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	old, ok := r.users[u.ID]
	if !ok {
		return ErrUserNotFound
	}

	email := normalizeEmail(u.Email)
	if email != old.Email {
		if _, exists := r.usersByEmail[email]; exists {
			return ErrEmailTaken
		}
		delete(r.usersByEmail, old.Email)
		r.usersByEmail[email] = u.ID
	}
	if old.LdapLoginID != u.LdapLoginID {
		delete(r.usersByLdap, old.LdapLoginID)
		if u.LdapLoginID != "" {
			r.usersByLdap[u.LdapLoginID] = u.ID
		}
	}

	u.Email = email
	u.CreatedAt = old.CreatedAt
	u.UpdatedAt = time.Now().UTC()
	r.users[u.ID] = detach(u)
	return nil
}

// ConsumeRecoveryCode removes one recovery code hash under the write lock,
// so concurrent spends of the same code resolve to exactly one winner
func (r *InMemoryRepository) ConsumeRecoveryCode(ctx context.Context, id uuid.UUID, hashedCode string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return 0, ErrUserNotFound
	}

	idx := slices.Index(u.MFARecoveryCodes, hashedCode)
	if idx < 0 {
		return 0, ErrRecoveryCodeNotFound
	}

	u.MFARecoveryCodes = slices.Delete(slices.Clone(u.MFARecoveryCodes), idx, idx+1)
	u.UpdatedAt = time.Now().UTC()
	r.users[id] = u
	return len(u.MFARecoveryCodes), nil
}
