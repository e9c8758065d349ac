package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"rewardkit/core"
)

func TestMemoryStore(t *testing.T) {
	s := New()
	ctx := context.Background()
	user := core.UserID("u")

	if _, err := s.AddXP(ctx, user, 5); !errors.Is(err, core.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}

	if err := s.CreateUser(ctx, user); err != nil {
		t.Fatal(err)
	}
	p, err := s.AddXP(ctx, user, 5)
	if err != nil || p.XP != 5 || p.Level != 1 {
		t.Fatalf("got %+v %v", p, err)
	}
	p, _ = s.GetProgress(ctx, user)
	if p.XP != 5 {
		t.Fatalf("progress xp = %d", p.XP)
	}
}

func TestMemoryStore_LevelDerived(t *testing.T) {
	s := New()
	ctx := context.Background()
	user := core.UserID("u")
	_ = s.CreateUser(ctx, user)

	p, err := s.AddXP(ctx, user, 105)
	if err != nil {
		t.Fatal(err)
	}
	if p.Level != 2 {
		t.Fatalf("level = %d, want 2", p.Level)
	}
}

func TestMemoryStore_Markers(t *testing.T) {
	s := New()
	ctx := context.Background()

	inserted, err := s.PutIfAbsent(ctx, "post", "u", "p1")
	if err != nil || !inserted {
		t.Fatalf("first insert: %v %v", inserted, err)
	}
	inserted, err = s.PutIfAbsent(ctx, "post", "u", "p1")
	if err != nil || inserted {
		t.Fatalf("duplicate insert: %v %v", inserted, err)
	}
	inserted, _ = s.PutIfAbsent(ctx, "post", "u", "p2")
	if !inserted {
		t.Fatal("different scope should insert")
	}
	inserted, _ = s.PutIfAbsent(ctx, "day", "u", "p1")
	if !inserted {
		t.Fatal("different kind should insert")
	}
}

func TestMemoryStore_ConcurrentAddXP(t *testing.T) {
	s := New()
	ctx := context.Background()
	user := core.UserID("u")
	_ = s.CreateUser(ctx, user)

	const n = 100
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			if _, err := s.AddXP(ctx, user, 3); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	p, _ := s.GetProgress(ctx, user)
	if p.XP != n*3 {
		t.Fatalf("lost updates: xp = %d, want %d", p.XP, n*3)
	}
}
