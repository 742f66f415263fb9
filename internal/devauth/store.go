package devauth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/cursos-vacacionales/panel/internal/rbac"
)

var (
	// ErrNotFound indicates that the requested account does not exist.
	ErrNotFound = errors.New("devauth: not found")
	// ErrDuplicateEmail indicates an account already uses the email.
	ErrDuplicateEmail = errors.New("devauth: email already registered")
)

// Account is a user record held by the development service.
type Account struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         rbac.Role
	IsActive     bool
	CreatedAt    time.Time
}

// Repository defines persistence operations for the development service.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*Account, error)
	FindByID(ctx context.Context, id string) (*Account, error)
	Create(ctx context.Context, account Account) error
	SetActive(ctx context.Context, id string, active bool) error
	RevokeToken(ctx context.Context, id string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, id string) (bool, error)
}

// MemoryRepository implements Repository in process memory.
type MemoryRepository struct {
	mu       sync.RWMutex
	accounts map[string]Account
	byEmail  map[string]string
	revoked  map[string]time.Time
	now      func() time.Time
}

// NewMemoryRepository constructs an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		accounts: make(map[string]Account),
		byEmail:  make(map[string]string),
		revoked:  make(map[string]time.Time),
		now:      time.Now,
	}
}

func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// FindByEmail fetches an account by email.
func (r *MemoryRepository) FindByEmail(ctx context.Context, email string) (*Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[emailKey(email)]
	if !ok {
		return nil, ErrNotFound
	}
	account := r.accounts[id]
	return &account, nil
}

// FindByID fetches an account by id.
func (r *MemoryRepository) FindByID(ctx context.Context, id string) (*Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	account, ok := r.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &account, nil
}

// Create stores a new account.
func (r *MemoryRepository) Create(ctx context.Context, account Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := emailKey(account.Email)
	if _, exists := r.byEmail[key]; exists {
		return ErrDuplicateEmail
	}
	r.accounts[account.ID] = account
	r.byEmail[key] = account.ID
	return nil
}

// SetActive enables or locks an account.
func (r *MemoryRepository) SetActive(ctx context.Context, id string, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[id]
	if !ok {
		return ErrNotFound
	}
	account.IsActive = active
	r.accounts[id] = account
	return nil
}

// RevokeToken blocks a token id until it would have expired anyway.
func (r *MemoryRepository) RevokeToken(ctx context.Context, id string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	for jti, exp := range r.revoked {
		if exp.Before(now) {
			delete(r.revoked, jti)
		}
	}
	r.revoked[id] = expiresAt
	return nil
}

// IsRevoked reports whether the token id was revoked.
func (r *MemoryRepository) IsRevoked(ctx context.Context, id string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.revoked[id]
	return ok, nil
}

var _ Repository = (*MemoryRepository)(nil)
