package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"rewardkit/core"
)

// Store persists entire state to a single JSON file.
// Suitable for demos and small deployments. The whole file is held under
// one mutex, so increments are trivially atomic within the process; the
// single-writer assumption is the same one the cooldown map already makes.
type Store struct {
	path string
	mu   sync.Mutex
	data fileState
}

type fileState struct {
	Users   map[core.UserID]core.Progress `json:"users"`
	Markers map[string]time.Time          `json:"markers"`
}

func New(path string) (*Store, error) {
	s := &Store{path: path, data: fileState{
		Users:   map[core.UserID]core.Progress{},
		Markers: map[string]time.Time{},
	}}
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
	var raw fileState
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if raw.Users != nil {
		s.data.Users = raw.Users
	}
	if raw.Markers != nil {
		s.data.Markers = raw.Markers
	}
	return nil
}

func (s *Store) persist() error {
	tmp := s.path + ".tmp"
	b, err := json.MarshalIndent(s.data, "", "  ")
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

func (s *Store) CreateUser(_ context.Context, user core.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data.Users[user]; ok {
		return nil
	}
	s.data.Users[user] = core.Progress{UserID: user, XP: 0, Level: 1, Updated: time.Now().UTC()}
	return s.persist()
}

func (s *Store) GetProgress(_ context.Context, user core.UserID) (core.Progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.data.Users[user]
	if !ok {
		return core.Progress{}, core.ErrUserNotFound
	}
	return p, nil
}

func (s *Store) AddXP(_ context.Context, user core.UserID, delta int64) (core.Progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.data.Users[user]
	if !ok {
		return core.Progress{}, core.ErrUserNotFound
	}
	next, err := core.AddSafe(prev.XP, delta)
	if err != nil {
		return core.Progress{}, err
	}
	p := prev
	p.XP = next
	p.Level = core.LevelForXP(next)
	p.Updated = time.Now().UTC()
	s.data.Users[user] = p
	if err := s.persist(); err != nil {
		s.data.Users[user] = prev
		return core.Progress{}, err
	}
	return p, nil
}

func (s *Store) PutIfAbsent(_ context.Context, kind core.ScopeKind, user core.UserID, scope core.ScopeID) (bool, error) {
	key := string(kind) + ":" + string(user) + ":" + string(scope)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.data.Markers[key]; exists {
		return false, nil
	}
	s.data.Markers[key] = time.Now().UTC()
	if err := s.persist(); err != nil {
		delete(s.data.Markers, key)
		return false, err
	}
	return true, nil
}
