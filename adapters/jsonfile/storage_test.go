package jsonfile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"rewardkit/core"
)

func TestStorePersistAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rewards.json")

	store, err := New(path)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	ctx := context.Background()
	if err := store.CreateUser(ctx, "alice"); err != nil {
		t.Fatalf("create user: %v", err)
	}
	p, err := store.AddXP(ctx, "alice", 120)
	if err != nil || p.XP != 120 || p.Level != 2 {
		t.Fatalf("add xp: %+v err=%v", p, err)
	}
	inserted, err := store.PutIfAbsent(ctx, "post", "alice", "p-1")
	if err != nil || !inserted {
		t.Fatalf("marker: %v %v", inserted, err)
	}

	// ensure file written
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected file at %s", path)
	}

	// reload
	reloaded, err := New(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	p, err = reloaded.GetProgress(ctx, "alice")
	if err != nil || p.XP != 120 || p.Level != 2 {
		t.Fatalf("reloaded progress: %+v err=%v", p, err)
	}
	inserted, err = reloaded.PutIfAbsent(ctx, "post", "alice", "p-1")
	if err != nil || inserted {
		t.Fatalf("marker should survive reload: %v %v", inserted, err)
	}
}

func TestStoreUserNotFound(t *testing.T) {
	store, err := New(filepath.Join(t.TempDir(), "rewards.json"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.AddXP(context.Background(), "ghost", 5); !errors.Is(err, core.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestAddXPRollsBackOnPersistFailure(t *testing.T) {
	dir := t.TempDir()
	store, err := New(filepath.Join(dir, "rewards.json"))
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := store.CreateUser(ctx, "alice"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.AddXP(ctx, "alice", 50); err != nil {
		t.Fatal(err)
	}

	// A regular file where a directory is needed makes persist fail.
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	store.path = filepath.Join(blocker, "rewards.json")

	if _, err := store.AddXP(ctx, "alice", 25); err == nil {
		t.Fatal("expected persist failure")
	}

	// The failed increment must not be visible afterwards.
	p, err := store.GetProgress(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if p.XP != 50 || p.Level != 1 {
		t.Fatalf("failed grant leaked into the ledger: %+v", p)
	}
}

func TestStoreCreateUserIdempotent(t *testing.T) {
	store, err := New(filepath.Join(t.TempDir(), "rewards.json"))
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	_ = store.CreateUser(ctx, "alice")
	if _, err := store.AddXP(ctx, "alice", 10); err != nil {
		t.Fatal(err)
	}
	if err := store.CreateUser(ctx, "alice"); err != nil {
		t.Fatal(err)
	}
	p, _ := store.GetProgress(ctx, "alice")
	if p.XP != 10 {
		t.Fatalf("re-create reset the ledger: xp=%d", p.XP)
	}
}
