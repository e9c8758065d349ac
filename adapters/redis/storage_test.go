package redis

import (
	"context"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rewardkit/core"
)

// newTestClient spins up a miniredis server and returns a client plus cleanup.
func newTestClient(t *testing.T) (*redis.Client, func()) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cleanup := func() {
		_ = client.Close()
		mr.Close()
	}
	return client, cleanup
}

func TestStore_CreateUser(t *testing.T) {
	client, cleanup := newTestClient(t)
	defer cleanup()

	store := NewWithClient(client)
	ctx := context.Background()
	user := core.UserID("test-user")

	require.NoError(t, store.CreateUser(ctx, user))

	p, err := store.GetProgress(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, int64(0), p.XP)
	assert.Equal(t, 1, p.Level)

	// Re-creating must not reset an existing ledger.
	_, err = store.AddXP(ctx, user, 42)
	require.NoError(t, err)
	require.NoError(t, store.CreateUser(ctx, user))
	p, err = store.GetProgress(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, int64(42), p.XP)
}

func TestStore_AddXP(t *testing.T) {
	client, cleanup := newTestClient(t)
	defer cleanup()

	store := NewWithClient(client)
	ctx := context.Background()
	user := core.UserID("test-user")
	require.NoError(t, store.CreateUser(ctx, user))

	p, err := store.AddXP(ctx, user, 50)
	require.NoError(t, err)
	assert.Equal(t, int64(50), p.XP)
	assert.Equal(t, 1, p.Level)

	p, err = store.AddXP(ctx, user, 75)
	require.NoError(t, err)
	assert.Equal(t, int64(125), p.XP)
	assert.Equal(t, 2, p.Level)

	p, err = store.AddXP(ctx, user, 1000)
	require.NoError(t, err)
	assert.Equal(t, int64(1125), p.XP)
	assert.Equal(t, 5, p.Level)
}

func TestStore_AddXP_UserNotFound(t *testing.T) {
	client, cleanup := newTestClient(t)
	defer cleanup()

	store := NewWithClient(client)
	ctx := context.Background()

	_, err := store.AddXP(ctx, core.UserID("ghost"), 10)
	assert.ErrorIs(t, err, core.ErrUserNotFound)
}

func TestStore_GetProgress_UserNotFound(t *testing.T) {
	client, cleanup := newTestClient(t)
	defer cleanup()

	store := NewWithClient(client)
	_, err := store.GetProgress(context.Background(), core.UserID("ghost"))
	assert.ErrorIs(t, err, core.ErrUserNotFound)
}

func TestStore_PutIfAbsent(t *testing.T) {
	client, cleanup := newTestClient(t)
	defer cleanup()

	store := NewWithClient(client)
	ctx := context.Background()

	inserted, err := store.PutIfAbsent(ctx, "post", "u1", "p-1")
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = store.PutIfAbsent(ctx, "post", "u1", "p-1")
	require.NoError(t, err)
	assert.False(t, inserted)

	inserted, err = store.PutIfAbsent(ctx, "post", "u1", "p-2")
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = store.PutIfAbsent(ctx, "day", "u1", "p-1")
	require.NoError(t, err)
	assert.True(t, inserted)
}
