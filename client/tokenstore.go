package client

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// AccessTokenFile is the fixed file name the access credential lives under.
const AccessTokenFile = "access_token"

// LogoutMarkerFile marks a logout initiated by this instance. It bridges the
// window between clearing the credential and the broadcast completing, so
// the file transport does not mistake our own logout for an external one.
const LogoutMarkerFile = "logout-event"

// TokenStore holds the access credential. Pure storage, no policy.
type TokenStore interface {
	Load() (string, bool)
	Save(token string) error
	Clear() error
}

// FileStore keeps the credential in a fixed-name file under a state
// directory.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore creates the state directory when missing.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the state directory, used by the tabsync file transport.
func (s *FileStore) Dir() string {
	return s.dir
}

// Path returns the credential file location.
func (s *FileStore) Path() string {
	return filepath.Join(s.dir, AccessTokenFile)
}

func (s *FileStore) Load() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.Path())
	if err != nil {
		return "", false
	}
	token := strings.TrimSpace(string(raw))
	if token == "" {
		return "", false
	}
	return token, true
}

func (s *FileStore) Save(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return os.WriteFile(s.Path(), []byte(token), 0o600)
}

// Clear removes the credential file. A missing file is not an error.
func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.Path())
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (s *FileStore) markerPath() string {
	return filepath.Join(s.dir, LogoutMarkerFile)
}

// SetLogoutMarker must be called before the credential is cleared during a
// local logout.
func (s *FileStore) SetLogoutMarker() error {
	return os.WriteFile(s.markerPath(), []byte("1"), 0o600)
}

// ClearLogoutMarker removes the marker once the logout broadcast completed.
func (s *FileStore) ClearLogoutMarker() error {
	err := os.Remove(s.markerPath())
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// HasLogoutMarker reports whether a local logout is mid-flight.
func (s *FileStore) HasLogoutMarker() bool {
	_, err := os.Stat(s.markerPath())
	return err == nil
}

// MemoryStore is the in-process TokenStore used in tests and embedded setups.
type MemoryStore struct {
	mu    sync.Mutex
	token string
	ok    bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, s.ok
}

func (s *MemoryStore) Save(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.ok = token != ""
	return nil
}

func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.ok = false
	return nil
}
