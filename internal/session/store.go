package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cursos-vacacionales/panel/internal/shared"
)

// ErrNoCredential is returned by TokenStore.Load when nothing is stored.
var ErrNoCredential = errors.New("session: no stored credential")

// TokenStore persists the Stored Credential. Implementations are local and
// must not block on the network; the Provider is the only writer.
type TokenStore interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, token string) error
	Delete(ctx context.Context) error
}

// MemoryStore keeps the credential in process memory.
type MemoryStore struct {
	mu    sync.Mutex
	token string
}

// NewMemoryStore returns a store pre-loaded with token (may be empty).
func NewMemoryStore(token string) *MemoryStore {
	return &MemoryStore{token: token}
}

func (s *MemoryStore) Load(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == "" {
		return "", ErrNoCredential
	}
	return s.token, nil
}

func (s *MemoryStore) Save(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	return nil
}

// FileStore keeps the credential in a file readable only by its owner.
type FileStore struct {
	path string
}

// NewFileStore returns a store backed by path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the credential file location.
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Load(ctx context.Context) (string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNoCredential
		}
		return "", fmt.Errorf("session: read credential: %w", err)
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", ErrNoCredential
	}
	return token, nil
}

func (s *FileStore) Save(ctx context.Context, token string) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("session: create credential dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".credential-*")
	if err != nil {
		return fmt.Errorf("session: write credential: %w", err)
	}
	defer func() {
		_ = os.Remove(tmp.Name())
	}()
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("session: write credential: %w", err)
	}
	if _, err := tmp.WriteString(token + "\n"); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("session: write credential: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("session: write credential: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("session: write credential: %w", err)
	}
	return nil
}

func (s *FileStore) Delete(ctx context.Context) error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("session: delete credential: %w", err)
	}
	return nil
}

// CredentialKey is the browser-session key holding the credential.
const CredentialKey = "credential"

// BrowserStore keeps the credential inside a Redis-backed browser session. The
// value is persisted when the SessionManager commits the session.
type BrowserStore struct {
	sess *shared.Session
}

// NewBrowserStore wraps a browser session.
func NewBrowserStore(sess *shared.Session) *BrowserStore {
	return &BrowserStore{sess: sess}
}

func (s *BrowserStore) Load(ctx context.Context) (string, error) {
	if s.sess == nil {
		return "", ErrNoCredential
	}
	token := s.sess.Get(CredentialKey)
	if token == "" {
		return "", ErrNoCredential
	}
	return token, nil
}

func (s *BrowserStore) Save(ctx context.Context, token string) error {
	if s.sess == nil {
		return errors.New("session: browser session missing")
	}
	s.sess.Set(CredentialKey, token)
	return nil
}

func (s *BrowserStore) Delete(ctx context.Context) error {
	if s.sess == nil {
		return nil
	}
	s.sess.Delete(CredentialKey)
	return nil
}

var (
	_ TokenStore = (*MemoryStore)(nil)
	_ TokenStore = (*FileStore)(nil)
	_ TokenStore = (*BrowserStore)(nil)
)
