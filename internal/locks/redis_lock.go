package locks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

const defaultTTL = 30 * time.Second

// ErrNotAcquired is returned when another owner currently holds the key.
var ErrNotAcquired = errors.New("lock held by another owner")

// Locker hands out exclusive leases keyed by name.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (*Lease, error)
}

// RedisLocker implements Locker with SET NX plus an owner token.
type RedisLocker struct {
	store redis.LockStore
}

// NewRedisLocker constructs a Redis-backed locker.
func NewRedisLocker(store redis.LockStore) (*RedisLocker, error) {
	if store == nil {
		return nil, errors.New("lock store required")
	}
	return &RedisLocker{store: store}, nil
}

// CartKey returns the lock key serializing fulfillment of one cart.
func (l *RedisLocker) CartKey(cartID string) string {
	return l.store.LockKey("cart", cartID)
}

// Acquire claims key for ttl. It returns ErrNotAcquired when the key is taken.
func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (*Lease, error) {
	if key == "" {
		return nil, errors.New("lock key is required")
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	owner := uuid.NewString()
	ok, err := l.store.SetNX(ctx, key, owner, ttl)
	if err != nil {
		return nil, fmt.Errorf("setnx: %w", err)
	}
	if !ok {
		return nil, ErrNotAcquired
	}
	return &Lease{store: l.store, key: key, owner: owner}, nil
}

// Lease is a held lock. Release is idempotent.
type Lease struct {
	store redis.LockStore
	key   string
	owner string
}

// Key reports the locked key.
func (l *Lease) Key() string {
	if l == nil {
		return ""
	}
	return l.key
}

// Release frees the lock only if the owner value still matches.
func (l *Lease) Release(ctx context.Context) error {
	if l == nil || l.owner == "" {
		return nil
	}
	if _, err := l.store.CompareAndDelete(ctx, l.key, l.owner); err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	l.owner = ""
	return nil
}

// CartLocker serializes fulfillment of a single cart across processes.
type CartLocker struct {
	locker *RedisLocker
	ttl    time.Duration
}

// NewCartLocker wraps locker with the lease TTL used for cart fulfillment.
func NewCartLocker(locker *RedisLocker, ttl time.Duration) (*CartLocker, error) {
	if locker == nil {
		return nil, errors.New("locker required")
	}
	return &CartLocker{locker: locker, ttl: ttl}, nil
}

// Lock claims the cart. It returns ErrNotAcquired while another owner holds it.
func (c *CartLocker) Lock(ctx context.Context, cartID uuid.UUID) (*Lease, error) {
	return c.locker.Acquire(ctx, c.locker.CartKey(cartID.String()), c.ttl)
}
