package invitesdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Marker records an invite token resolved before the user signed in. It has
// no expiry of its own; the server decides whether the token still works.
type Marker struct {
	Token   string    `json:"token"`
	SavedAt time.Time `json:"saved_at"`
}

// MarkerStore persists at most one pending marker.
type MarkerStore interface {
	// Load returns the marker and whether one was present.
	Load() (Marker, bool, error)
	Save(m Marker) error
	Clear() error

	// ClearIf removes the marker only while it still holds token, so a
	// link saved after token was read survives. It reports whether a
	// marker was removed.
	ClearIf(token string) (bool, error)
}

// FileMarkerStore keeps the marker in a JSON file readable only by the
// current user.
type FileMarkerStore struct {
	Path string

	mu sync.Mutex
}

func NewFileMarkerStore(path string) *FileMarkerStore {
	return &FileMarkerStore{Path: path}
}

func (s *FileMarkerStore) Load() (Marker, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *FileMarkerStore) load() (Marker, bool, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Marker{}, false, nil
		}
		return Marker{}, false, fmt.Errorf("failed to read invite marker: %w", err)
	}

	var m Marker
	if err := json.Unmarshal(data, &m); err != nil {
		return Marker{}, false, fmt.Errorf("failed to decode invite marker: %w", err)
	}
	if m.Token == "" {
		return Marker{}, false, nil
	}
	return m, true, nil
}

func (s *FileMarkerStore) Save(m Marker) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode invite marker: %w", err)
	}

	// Write then rename so a crash never leaves half a marker behind.
	tmp, err := os.CreateTemp(filepath.Dir(s.Path), ".invite-marker-*")
	if err != nil {
		return fmt.Errorf("failed to write invite marker: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write invite marker: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write invite marker: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write invite marker: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.Path); err != nil {
		return fmt.Errorf("failed to write invite marker: %w", err)
	}
	return nil
}

func (s *FileMarkerStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remove()
}

func (s *FileMarkerStore) ClearIf(token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok, err := s.load()
	if err != nil || !ok || m.Token != token {
		return false, err
	}
	if err := s.remove(); err != nil {
		return false, err
	}
	return true, nil
}

func (s *FileMarkerStore) remove() error {
	if err := os.Remove(s.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to clear invite marker: %w", err)
	}
	return nil
}

// MemoryMarkerStore keeps the marker for the life of the process.
type MemoryMarkerStore struct {
	mu     sync.Mutex
	marker *Marker
}

func (s *MemoryMarkerStore) Load() (Marker, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.marker == nil {
		return Marker{}, false, nil
	}
	return *s.marker, true, nil
}

func (s *MemoryMarkerStore) Save(m Marker) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marker = &m
	return nil
}

func (s *MemoryMarkerStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marker = nil
	return nil
}

func (s *MemoryMarkerStore) ClearIf(token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.marker == nil || s.marker.Token != token {
		return false, nil
	}
	s.marker = nil
	return true, nil
}
