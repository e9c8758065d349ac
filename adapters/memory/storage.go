package memory

import (
	"context"
	"sync"
	"time"

	"rewardkit/core"
)

// Store is a concurrent in-memory Storage implementation for tests and
// demos. Users must be created explicitly; grants against unknown users
// fail with core.ErrUserNotFound rather than provisioning a record.
type Store struct {
	users sync.Map // map[core.UserID]*userRecord

	markerMu sync.Mutex
	markers  map[string]struct{}
}

type userRecord struct {
	mu       sync.Mutex
	progress core.Progress
}

func New() *Store {
	return &Store{markers: make(map[string]struct{})}
}

func (s *Store) CreateUser(_ context.Context, user core.UserID) error {
	rec := &userRecord{progress: core.Progress{
		UserID:  user,
		XP:      0,
		Level:   1,
		Updated: time.Now().UTC(),
	}}
	s.users.LoadOrStore(user, rec)
	return nil
}

func (s *Store) GetProgress(_ context.Context, user core.UserID) (core.Progress, error) {
	v, ok := s.users.Load(user)
	if !ok {
		return core.Progress{}, core.ErrUserNotFound
	}
	rec := v.(*userRecord)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.progress, nil
}

func (s *Store) AddXP(_ context.Context, user core.UserID, delta int64) (core.Progress, error) {
	v, ok := s.users.Load(user)
	if !ok {
		return core.Progress{}, core.ErrUserNotFound
	}
	rec := v.(*userRecord)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	next, err := core.AddSafe(rec.progress.XP, delta)
	if err != nil {
		return core.Progress{}, err
	}
	rec.progress.XP = next
	rec.progress.Level = core.LevelForXP(next)
	rec.progress.Updated = time.Now().UTC()
	return rec.progress, nil
}

func (s *Store) PutIfAbsent(_ context.Context, kind core.ScopeKind, user core.UserID, scope core.ScopeID) (bool, error) {
	key := string(kind) + "\x00" + string(user) + "\x00" + string(scope)
	s.markerMu.Lock()
	defer s.markerMu.Unlock()
	if _, exists := s.markers[key]; exists {
		return false, nil
	}
	s.markers[key] = struct{}{}
	return true, nil
}
