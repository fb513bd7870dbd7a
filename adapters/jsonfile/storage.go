package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"ecorewards/core"
)

// Store persists every profile to a single JSON file.
// Suitable for demos and small deployments.
type Store struct {
	path string
	mu   sync.Mutex
	// in-memory cache for speed
	data map[core.UserID]core.UserProfile
}

func New(path string) (*Store, error) {
	s := &Store{path: path, data: map[core.UserID]core.UserProfile{}}
	if err := s.load(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) load() error {
	b, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}
	var raw map[string]core.UserProfile
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	for k, v := range raw {
		s.data[core.UserID(k)] = v
	}
	return nil
}

func (s *Store) persist() error {
	tmp := s.path + ".tmp"
	raw := make(map[string]core.UserProfile, len(s.data))
	for k, v := range s.data {
		raw[string(k)] = v
	}
	b, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *Store) Load(_ context.Context, user core.UserID) (core.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.data[user]
	if !ok {
		return core.UserProfile{}, core.ErrNotFound
	}
	return p.Clone(), nil
}

// Save replaces the profile and rewrites the file. A failed write rolls the cache back.
func (s *Store) Save(_ context.Context, profile core.UserProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, had := s.data[profile.UserID]
	s.data[profile.UserID] = profile.Clone()
	if err := s.persist(); err != nil {
		if had {
			s.data[profile.UserID] = prev
		} else {
			delete(s.data, profile.UserID)
		}
		return err
	}
	return nil
}

func (s *Store) Users(_ context.Context) ([]core.UserID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.UserID, 0, len(s.data))
	for u := range s.data {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}
