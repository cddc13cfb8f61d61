package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Strizzyy/LegalSaathi-sub001/model"
)

// Session holds the expert bearer token and profile snapshot. It is the
// only client-persisted state; everything else is re-fetched on demand.
type Session struct {
	Token     string           `json:"token"`
	ExpiresAt time.Time        `json:"expires_at"`
	Expert    model.ExpertUser `json:"expert"`
}

// Expired reports whether the session's token has passed its expiry.
func (s *Session) Expired() bool {
	return !s.ExpiresAt.IsZero() && time.Now().After(s.ExpiresAt)
}

// SessionStore abstracts where the session lives so the storage backend
// can change without touching call sites. Load returns (nil, nil) when no
// session is stored. Clear removes token and profile together; after a
// successful Clear no reader can observe either.
type SessionStore interface {
	Load() (*Session, error)
	Save(session *Session) error
	Clear() error
}

// MemorySessionStore keeps the session in memory. Used in tests and
// short-lived tools.
type MemorySessionStore struct {
	mu      sync.RWMutex
	session *Session
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{}
}

func (s *MemorySessionStore) Load() (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		return nil, nil
	}
	copied := *s.session
	return &copied, nil
}

func (s *MemorySessionStore) Save(session *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *session
	s.session = &copied
	return nil
}

func (s *MemorySessionStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = nil
	return nil
}

// FileSessionStore persists the session as a single JSON file, so token
// and profile are written and removed as one unit.
type FileSessionStore struct {
	path string
	mu   sync.Mutex
}

func NewFileSessionStore(path string) *FileSessionStore {
	return &FileSessionStore{path: path}
}

func (s *FileSessionStore) Load() (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to parse session file: %w", err)
	}
	return &session, nil
}

func (s *FileSessionStore) Save(session *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	// Write-then-rename so a crash never leaves a partial session.
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to save session file: %w", err)
	}
	return nil
}

func (s *FileSessionStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

// SessionGuard gates the queue, admin, and review-detail surfaces behind a
// valid expert session.
type SessionGuard struct {
	store SessionStore
}

func NewSessionGuard(store SessionStore) *SessionGuard {
	return &SessionGuard{store: store}
}

// Require returns the current session, or an AuthError when none exists
// or the token has expired. An AuthError is the caller's signal to
// redirect to the login flow.
func (g *SessionGuard) Require() (*Session, error) {
	session, err := g.store.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if session == nil || session.Token == "" {
		return nil, &AuthError{Message: "not logged in"}
	}
	if session.Expired() {
		// Expired sessions are cleared so later reads don't see stale state.
		if err := g.store.Clear(); err != nil {
			return nil, fmt.Errorf("failed to clear expired session: %w", err)
		}
		return nil, &AuthError{Message: "session expired"}
	}
	return session, nil
}

// Establish saves a freshly logged-in session.
func (g *SessionGuard) Establish(session *Session) error {
	return g.store.Save(session)
}

// Logout clears the token and profile together before any navigation.
func (g *SessionGuard) Logout() error {
	return g.store.Clear()
}
