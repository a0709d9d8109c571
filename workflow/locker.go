package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bsm/redislock"
)

var ErrLockNotObtained = errors.New("could not obtain inventory item lock")

// ItemLocker serializes read-compute-write cycles on one inventory item.
type ItemLocker interface {
	Lock(ctx context.Context, itemId int) (unlock func(), err error)
}

// RedisItemLocker serializes across instances with a redislock key per item.
type RedisItemLocker struct {
	client  *redislock.Client
	ttl     time.Duration
	backoff time.Duration
	retries int
}

func NewRedisItemLocker(client *redislock.Client, ttl time.Duration) *RedisItemLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisItemLocker{
		client:  client,
		ttl:     ttl,
		backoff: 100 * time.Millisecond,
		retries: 50,
	}
}

func itemLockKey(itemId int) string {
	return fmt.Sprintf("lock:item:%d", itemId)
}

func (l *RedisItemLocker) Lock(ctx context.Context, itemId int) (func(), error) {
	if l.client == nil {
		return nil, errors.New("service not ready (redis lock not initialized)")
	}
	lock, err := l.client.Obtain(ctx, itemLockKey(itemId), l.ttl, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(l.backoff), l.retries),
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, fmt.Errorf("item %d: %w", itemId, ErrLockNotObtained)
	} else if err != nil {
		return nil, err
	}
	return func() {
		// release even when the request context is already cancelled
		_ = lock.Release(context.WithoutCancel(ctx))
	}, nil
}

// LocalItemLocker serializes within one process. Entries are dropped once no
// caller holds or waits for them.
type LocalItemLocker struct {
	mu    sync.Mutex
	locks map[int]*localLock
}

type localLock struct {
	ch   chan struct{}
	refs int
}

func NewLocalItemLocker() *LocalItemLocker {
	return &LocalItemLocker{locks: make(map[int]*localLock)}
}

func (l *LocalItemLocker) Lock(ctx context.Context, itemId int) (func(), error) {
	l.mu.Lock()
	ll := l.locks[itemId]
	if ll == nil {
		ll = &localLock{ch: make(chan struct{}, 1)}
		l.locks[itemId] = ll
	}
	ll.refs++
	l.mu.Unlock()

	select {
	case ll.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(itemId, ll, false)
		return nil, fmt.Errorf("item %d: %w: %v", itemId, ErrLockNotObtained, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.release(itemId, ll, true) })
	}, nil
}

func (l *LocalItemLocker) release(itemId int, ll *localLock, held bool) {
	if held {
		<-ll.ch
	}
	l.mu.Lock()
	ll.refs--
	if ll.refs == 0 {
		delete(l.locks, itemId)
	}
	l.mu.Unlock()
}

// size is the number of tracked item locks.
func (l *LocalItemLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
