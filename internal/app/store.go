package app

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Store is the durable client storage boundary. It serializes state to JSON
// files under a single root directory and holds no merge or sync logic.
//
// Layout:
//
//	<root>/sessions.json     full session list, overwritten on every save
//	<root>/credentials.json  token pair + user profile
//	<root>/bindings.json     localID -> remoteID side cache
//	<root>/current           active-session pointer
type Store struct {
	Root string
	mu   sync.Mutex
}

func DefaultStorageRoot() string {
	// Prefer XDG data dir (Linux/macOS). If unavailable, fall back to ~/.local/share.
	if base := strings.TrimSpace(os.Getenv("XDG_DATA_HOME")); base != "" {
		return filepath.Join(base, "lawchat")
	}
	if base, err := os.UserHomeDir(); err == nil && base != "" {
		return filepath.Join(base, ".local", "share", "lawchat")
	}
	return filepath.Join(os.TempDir(), "lawchat")
}

func NewStore(root string) *Store {
	if strings.TrimSpace(root) == "" {
		root = DefaultStorageRoot()
	}
	return &Store{Root: root}
}

func (s *Store) sessionsPath() string    { return filepath.Join(s.Root, "sessions.json") }
func (s *Store) credentialsPath() string { return filepath.Join(s.Root, "credentials.json") }
func (s *Store) bindingsPath() string    { return filepath.Join(s.Root, "bindings.json") }
func (s *Store) currentPath() string     { return filepath.Join(s.Root, "current") }

// writeFile writes via a temp file and rename so a crash mid-write never
// leaves a truncated state file behind.
func (s *Store) writeFile(path string, data []byte) error {
	if err := os.MkdirAll(s.Root, 0o700); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// LoadSessions returns the persisted session list. Missing or corrupt data
// reads as an empty list, never an error.
func (s *Store) LoadSessions() []Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := os.ReadFile(s.sessionsPath())
	if err != nil {
		return []Session{}
	}
	var sessions []Session
	if err := json.Unmarshal(b, &sessions); err != nil {
		return []Session{}
	}
	return sessions
}

// SaveSessions overwrites the persisted session list.
func (s *Store) SaveSessions(sessions []Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sessions == nil {
		sessions = []Session{}
	}
	b, err := json.MarshalIndent(sessions, "", "  ")
	if err != nil {
		return err
	}
	return s.writeFile(s.sessionsPath(), b)
}

// Credentials returns the stored token pair. ok is false when nothing is
// stored or the file is unreadable.
func (s *Store) Credentials() (Credentials, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := os.ReadFile(s.credentialsPath())
	if err != nil {
		return Credentials{}, false
	}
	var creds Credentials
	if err := json.Unmarshal(b, &creds); err != nil {
		return Credentials{}, false
	}
	if creds.Token == "" && creds.RefreshToken == "" {
		return Credentials{}, false
	}
	return creds, true
}

func (s *Store) SaveCredentials(creds Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return err
	}
	return s.writeFile(s.credentialsPath(), b)
}

// UpdateTokens replaces the access token and, when the server rotated it, the
// refresh token. The user profile is carried over.
func (s *Store) UpdateTokens(token, refreshToken string) error {
	s.mu.Lock()
	creds := Credentials{}
	if b, err := os.ReadFile(s.credentialsPath()); err == nil {
		_ = json.Unmarshal(b, &creds)
	}
	creds.Token = token
	if refreshToken != "" {
		creds.RefreshToken = refreshToken
	}
	b, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		s.mu.Unlock()
		return err
	}
	err = s.writeFile(s.credentialsPath(), b)
	s.mu.Unlock()
	return err
}

// ClearAccessToken drops the access token but keeps the refresh token, so a
// failed refresh does not silently log the user out mid-flow.
func (s *Store) ClearAccessToken() error {
	creds, ok := s.Credentials()
	if !ok {
		return nil
	}
	creds.Token = ""
	return s.SaveCredentials(creds)
}

func (s *Store) ClearCredentials() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.credentialsPath()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Binding returns the cached remote id for a local session id. The cache is
// independent of the session list so bindings survive partial state resets.
func (s *Store) Binding(localID string) (string, bool) {
	bindings := s.loadBindings()
	id, ok := bindings[localID]
	return id, ok && id != ""
}

func (s *Store) SaveBinding(localID, remoteID string) error {
	if strings.TrimSpace(localID) == "" || strings.TrimSpace(remoteID) == "" {
		return errors.New("missing localID or remoteID")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	bindings := map[string]string{}
	if b, err := os.ReadFile(s.bindingsPath()); err == nil {
		_ = json.Unmarshal(b, &bindings)
	}
	bindings[localID] = remoteID
	b, err := json.MarshalIndent(bindings, "", "  ")
	if err != nil {
		return err
	}
	return s.writeFile(s.bindingsPath(), b)
}

func (s *Store) ClearBindings() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.bindingsPath()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (s *Store) loadBindings() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	bindings := map[string]string{}
	if b, err := os.ReadFile(s.bindingsPath()); err == nil {
		_ = json.Unmarshal(b, &bindings)
	}
	return bindings
}

// CurrentSession returns the persisted active-session pointer, or "".
func (s *Store) CurrentSession() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := os.ReadFile(s.currentPath())
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}

func (s *Store) SetCurrentSession(localID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(localID) == "" {
		if err := os.Remove(s.currentPath()); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		return nil
	}
	return s.writeFile(s.currentPath(), []byte(localID))
}
