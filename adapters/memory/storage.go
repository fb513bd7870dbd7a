package memory

import (
	"context"
	"sort"
	"sync"

	"ecorewards/core"
)

// Store is a concurrent in-memory profile store.
type Store struct {
	users sync.Map // map[core.UserID]core.UserProfile

	mu       sync.RWMutex
	failSave error
}

func New() *Store { return &Store{} }

// FailSaves makes every following Save return err; nil restores normal operation.
func (s *Store) FailSaves(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failSave = err
}

func (s *Store) Load(_ context.Context, user core.UserID) (core.UserProfile, error) {
	v, ok := s.users.Load(user)
	if !ok {
		return core.UserProfile{}, core.ErrNotFound
	}
	return v.(core.UserProfile).Clone(), nil
}

func (s *Store) Save(_ context.Context, profile core.UserProfile) error {
	s.mu.RLock()
	err := s.failSave
	s.mu.RUnlock()
	if err != nil {
		return err
	}
	s.users.Store(profile.UserID, profile.Clone())
	return nil
}

func (s *Store) Users(_ context.Context) ([]core.UserID, error) {
	var out []core.UserID
	s.users.Range(func(k, _ any) bool {
		out = append(out, k.(core.UserID))
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

var _ interface {
	Load(context.Context, core.UserID) (core.UserProfile, error)
	Save(context.Context, core.UserProfile) error
	Users(context.Context) ([]core.UserID, error)
} = (*Store)(nil)
