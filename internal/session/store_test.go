package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/load28/foodie/internal/database"
)

func testStore(t *testing.T, ttl time.Duration) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewStore(database.NewRedisFromClient(client), ttl), mr
}

func TestStore_CreateAndGet(t *testing.T) {
	store, mr := testStore(t, time.Hour)
	ctx := context.Background()

	id, err := store.Create(ctx, "user-1")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	assert.Equal(t, time.Hour, mr.TTL(sessionKeyPrefix+id))

	sess, found, err := store.Get(ctx, id)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "user-1", sess.UserID)
	assert.False(t, sess.CreatedAt.IsZero())
}

func TestStore_DefaultTTL(t *testing.T) {
	store, _ := testStore(t, 0)
	assert.Equal(t, DefaultTTL, store.TTL())
}

func TestStore_GetUnknown(t *testing.T) {
	store, _ := testStore(t, time.Hour)

	_, found, err := store.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStore_Expiry(t *testing.T) {
	store, mr := testStore(t, time.Hour)
	ctx := context.Background()

	id, err := store.Create(ctx, "user-1")
	require.NoError(t, err)

	mr.FastForward(2 * time.Hour)

	_, found, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStore_Touch(t *testing.T) {
	store, mr := testStore(t, time.Hour)
	ctx := context.Background()

	id, err := store.Create(ctx, "user-1")
	require.NoError(t, err)

	mr.FastForward(30 * time.Minute)
	existed, err := store.Touch(ctx, id)
	require.NoError(t, err)
	assert.True(t, existed)

	// TTL was reset to the full hour
	assert.Equal(t, time.Hour, mr.TTL(sessionKeyPrefix+id))

	existed, err = store.Touch(ctx, "no-such-session")
	require.NoError(t, err)
	assert.False(t, existed)
}

func TestStore_Delete(t *testing.T) {
	store, _ := testStore(t, time.Hour)
	ctx := context.Background()

	id, err := store.Create(ctx, "user-1")
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, id))

	_, found, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStore_DeleteAllForUser(t *testing.T) {
	store, _ := testStore(t, time.Hour)
	ctx := context.Background()

	a1, err := store.Create(ctx, "user-a")
	require.NoError(t, err)
	a2, err := store.Create(ctx, "user-a")
	require.NoError(t, err)
	b1, err := store.Create(ctx, "user-b")
	require.NoError(t, err)

	deleted, err := store.DeleteAllForUser(ctx, "user-a")
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	_, found, _ := store.Get(ctx, a1)
	assert.False(t, found)
	_, found, _ = store.Get(ctx, a2)
	assert.False(t, found)

	// Other user's session untouched
	_, found, _ = store.Get(ctx, b1)
	assert.True(t, found)
}
