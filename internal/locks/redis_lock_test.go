package locks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

func newLocker(t *testing.T) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	raw := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = raw.Close() })
	locker, err := NewRedisLocker(redis.NewFromClient(raw))
	require.NoError(t, err)
	return locker, mr
}

func TestAcquireIsExclusive(t *testing.T) {
	ctx := context.Background()
	locker, mr := newLocker(t)
	key := locker.CartKey("cart-1")

	lease, err := locker.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "sf:lock:cart:cart-1", lease.Key())

	_, err = locker.Acquire(ctx, key, time.Minute)
	assert.True(t, errors.Is(err, ErrNotAcquired))

	require.NoError(t, lease.Release(ctx))
	assert.False(t, mr.Exists(key))

	again, err := locker.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)
	require.NoError(t, again.Release(ctx))
}

func TestReleaseDoesNotDropForeignLock(t *testing.T) {
	ctx := context.Background()
	locker, mr := newLocker(t)
	key := locker.CartKey("cart-2")

	lease, err := locker.Acquire(ctx, key, time.Second)
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)
	other, err := locker.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)

	require.NoError(t, lease.Release(ctx))
	assert.True(t, mr.Exists(key), "expired lease must not release the new owner")

	require.NoError(t, other.Release(ctx))
	require.NoError(t, other.Release(ctx))
	assert.False(t, mr.Exists(key))
}

func TestNewRedisLockerRequiresStore(t *testing.T) {
	_, err := NewRedisLocker(nil)
	assert.Error(t, err)
}

func TestCartLockerUsesCartKey(t *testing.T) {
	ctx := context.Background()
	locker, mr := newLocker(t)
	carts, err := NewCartLocker(locker, time.Minute)
	require.NoError(t, err)

	cartID := uuid.New()
	lease, err := carts.Lock(ctx, cartID)
	require.NoError(t, err)
	assert.Equal(t, "sf:lock:cart:"+cartID.String(), lease.Key())
	assert.True(t, mr.Exists(lease.Key()))

	_, err = carts.Lock(ctx, cartID)
	assert.ErrorIs(t, err, ErrNotAcquired)

	require.NoError(t, lease.Release(ctx))
	_, err = NewCartLocker(nil, time.Minute)
	assert.Error(t, err)
}
