package profile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Store persists profiles as one JSON file per learner under a base
// directory. Writes are atomic (temp file + rename) so a crash mid-write
// never leaves a truncated profile. Thread-safe for concurrent use.
type Store struct {
	mu  sync.Mutex
	dir string
}

// NewStore creates a Store rooted at dir, creating it if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("profile: create dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) path(userID string) string {
	return filepath.Join(s.dir, userID+".json")
}

// Load reads the profile for userID, returning a fresh default profile
// when none exists yet.
func (s *Store) Load(userID string) (*Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path(userID))
	if errors.Is(err, os.ErrNotExist) {
		return New(userID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("profile: read %s: %w", userID, err)
	}

	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("profile: decode %s: %w", userID, err)
	}
	return &p, nil
}

// Save writes the profile to disk, stamping UpdatedAt.
func (s *Store) Save(p *Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("profile: marshal %s: %w", p.UserID, err)
	}

	tmp, err := os.CreateTemp(s.dir, p.UserID+"-*.json")
	if err != nil {
		return fmt.Errorf("profile: create temp: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("profile: write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("profile: close temp: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path(p.UserID)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("profile: rename: %w", err)
	}
	return nil
}
