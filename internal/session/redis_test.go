package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terra-clan/codeladder/internal/models"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewRedisStore(rdb), mr
}

func TestRedisStoreRoundTrip(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()

	s := &models.Session{
		ID:        "abc",
		Username:  "alice",
		Token:     "tok",
		CreatedAt: time.Now().UTC().Truncate(time.Second),
		ExpiresAt: time.Now().Add(time.Hour).UTC().Truncate(time.Second),
	}
	require.NoError(t, store.Save(ctx, s))

	assert.True(t, mr.Exists(KeyPrefix+"abc"))
	ttl := mr.TTL(KeyPrefix + "abc")
	assert.Greater(t, ttl, 59*time.Minute)

	got, err := store.Get(ctx, "abc")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "alice", got.Username)
	assert.Equal(t, "tok", got.Token)
	assert.True(t, s.ExpiresAt.Equal(got.ExpiresAt))

	require.NoError(t, store.Delete(ctx, "abc"))
	got, err = store.Get(ctx, "abc")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisStoreKeyExpires(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &models.Session{ID: "short", ExpiresAt: time.Now().Add(time.Minute)}))
	mr.FastForward(2 * time.Minute)

	got, err := store.Get(ctx, "short")
	require.NoError(t, err)
	assert.Nil(t, got)

	n, err := store.DeleteExpired(ctx, time.Now())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRedisStoreNoExpiry(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &models.Session{ID: "forever", Username: "bob"}))

	assert.Equal(t, time.Duration(0), mr.TTL(KeyPrefix+"forever"))
	assert.NoError(t, store.Ping(ctx))
}

func TestRedisStoreSkipsAlreadyExpired(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &models.Session{ID: "gone", ExpiresAt: time.Now().Add(-time.Second)}))

	assert.False(t, mr.Exists(KeyPrefix+"gone"))
}

func TestRedisStoreCorruptValue(t *testing.T) {
	store, mr := newRedisStore(t)
	require.NoError(t, mr.Set(KeyPrefix+"bad", "{not json"))

	_, err := store.Get(context.Background(), "bad")
	assert.ErrorContains(t, err, "failed to unmarshal session")
}

func TestManagerWithRedisStore(t *testing.T) {
	store, _ := newRedisStore(t)
	m := NewManager(&fakeAuth{token: "t"}, store, time.Hour, nil)
	ctx := context.Background()

	s, err := m.Login(ctx, "alice", "pw")
	require.NoError(t, err)

	got, err := m.Resolve(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)

	require.NoError(t, m.Logout(ctx, s.ID))
	_, err = m.Resolve(ctx, s.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
