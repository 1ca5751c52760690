package store

import (
	"context"
	"errors"
	"sync"
)

var ErrLockHeld = errors.New("lock is held")

// Locker hands out per-id mutual exclusion.
type Locker interface {
	// Lock blocks until the lease for id is acquired or ctx is done.
	Lock(ctx context.Context, id string) (Unlock, error)
	// TryLock acquires the lease only if it is free, returning ErrLockHeld
	// otherwise.
	TryLock(ctx context.Context, id string) (Unlock, error)
}

// Unlock releases a lease. It is safe to call more than once.
type Unlock func()

// KeyedMutex is an in-process Locker.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	// token is buffered with capacity one, holding it is holding the lock.
	token   chan struct{}
	waiters int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: map[string]*keyedLock{}}
}

func (m *KeyedMutex) acquireRef(id string) *keyedLock {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.locks[id]
	if !ok {
		l = &keyedLock{token: make(chan struct{}, 1)}
		m.locks[id] = l
	}
	l.waiters++
	return l
}

func (m *KeyedMutex) releaseRef(id string, l *keyedLock) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l.waiters--
	if l.waiters == 0 {
		delete(m.locks, id)
	}
}

func (m *KeyedMutex) Lock(ctx context.Context, id string) (Unlock, error) {
	l := m.acquireRef(id)
	select {
	case l.token <- struct{}{}:
		return m.unlocker(id, l), nil
	case <-ctx.Done():
		m.releaseRef(id, l)
		return nil, ctx.Err()
	}
}

func (m *KeyedMutex) TryLock(_ context.Context, id string) (Unlock, error) {
	l := m.acquireRef(id)
	select {
	case l.token <- struct{}{}:
		return m.unlocker(id, l), nil
	default:
		m.releaseRef(id, l)
		return nil, ErrLockHeld
	}
}

func (m *KeyedMutex) unlocker(id string, l *keyedLock) Unlock {
	var once sync.Once
	return func() {
		once.Do(func() {
			<-l.token
			m.releaseRef(id, l)
		})
	}
}
