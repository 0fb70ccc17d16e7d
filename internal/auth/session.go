package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/adrg/xdg"
)

// SessionStore is a small key/value store whose entries expire.
//
// Reading an expired entry removes it and reports it absent. A store opened
// with OpenFileStore writes itself back to disk after every change so that
// separate CLI invocations share one session.
type SessionStore struct {
	mu      sync.Mutex
	path    string
	now     func() time.Time
	entries map[string]sessionEntry
}

type sessionEntry struct {
	Value     string    `json:"value"`
	ExpiresAt time.Time `json:"expires_at,omitzero"`
}

func (e sessionEntry) expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && !now.Before(e.ExpiresAt)
}

// NewMemoryStore returns a store that lives only as long as the process.
func NewMemoryStore() *SessionStore {
	return &SessionStore{now: time.Now, entries: map[string]sessionEntry{}}
}

// DefaultSessionPath returns the session file under the XDG state
// directory, creating parent directories as needed.
func DefaultSessionPath() (string, error) {
	return xdg.StateFile(filepath.Join("canciones", "session.json"))
}

// OpenFileStore loads the store persisted at path. A missing file yields
// an empty store.
func OpenFileStore(path string) (*SessionStore, error) {
	s := &SessionStore{path: path, now: time.Now, entries: map[string]sessionEntry{}}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("read session: %w", err)
	}
	if err := json.Unmarshal(data, &s.entries); err != nil {
		return nil, fmt.Errorf("parse session %s: %w", path, err)
	}
	return s, nil
}

// Get returns the value stored under key.
func (s *SessionStore) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return "", false
	}
	if e.expired(s.now()) {
		delete(s.entries, key)
		_ = s.persist()
		return "", false
	}
	return e.Value, true
}

// Set stores value under key. A ttl of zero or less means no expiry.
func (s *SessionStore) Set(key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := sessionEntry{Value: value}
	if ttl > 0 {
		e.ExpiresAt = s.now().Add(ttl)
	}
	s.entries[key] = e
	return s.persist()
}

// Delete removes keys.
func (s *SessionStore) Delete(keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, k := range keys {
		delete(s.entries, k)
	}
	return s.persist()
}

func (s *SessionStore) persist() error {
	if s.path == "" {
		return nil
	}
	now := s.now()
	for k, e := range s.entries {
		if e.expired(now) {
			delete(s.entries, k)
		}
	}
	if len(s.entries) == 0 {
		if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove session: %w", err)
		}
		return nil
	}

	data, err := json.Marshal(s.entries)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}
