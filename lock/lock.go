/*
Package lock serializes work on the same reconciliation key.

PURPOSE:
  Two concurrent recomputations of one WorkDay would both write a correct
  value, but the first write is wasted and readers may observe it after an
  older event set. Holding a per-key lock while loading events and writing
  the aggregate keeps each key single-writer. Different keys never contend.

IMPLEMENTATIONS:
  KeyedMutex:  In-process, one mutex per key, reference counted
  RedisLocker: SET NX with a random token, for replicas sharing one database

USAGE:
  unlock, err := locker.Lock(ctx, key.String())
  if err != nil {
      return err
  }
  defer unlock()
*/
package lock

import (
	"context"
	"sync"
)

// Locker acquires a lock on key. The returned func releases it.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// =============================================================================
// IN-PROCESS
// =============================================================================

// KeyedMutex is a Locker backed by per-key channels. Idle keys are freed.
type KeyedMutex struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{slots: make(map[string]*slot)}
}

// Lock blocks until key is free or ctx is done.
func (m *KeyedMutex) Lock(ctx context.Context, key string) (func(), error) {
	m.mu.Lock()
	s, ok := m.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		m.slots[key] = s
	}
	s.refs++
	m.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		m.release(key, s)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			m.release(key, s)
		})
	}, nil
}

func (m *KeyedMutex) release(key string, s *slot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(m.slots, key)
	}
}

// Len returns the number of keys currently held or waited on.
func (m *KeyedMutex) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.slots)
}
