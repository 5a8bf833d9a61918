// Package keyedlock serializes read-modify-write cycles per key within a
// single process. It does not protect against concurrent writers across
// processes; that limitation is part of its contract.
package keyedlock

import (
	"context"
	"sync"
)

// KeyedLock is an instance-owned registry of per-key FIFO locks. Entries
// are created on demand and removed once the last holder or waiter for a
// key is gone.
type KeyedLock struct {
	mu    sync.Mutex
	tails map[string]chan struct{}
	count map[string]int
}

func New() *KeyedLock {
	return &KeyedLock{
		tails: make(map[string]chan struct{}),
		count: make(map[string]int),
	}
}

// Acquire blocks until all previously issued acquisitions for key have
// released, then returns a release function. Callers for the same key
// proceed in issuance order; different keys never block each other.
// The release function is idempotent and must be called on every exit
// path (defer it).
func (l *KeyedLock) Acquire(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	prev := l.tails[key]
	ch := make(chan struct{})
	l.tails[key] = ch
	l.count[key]++
	l.mu.Unlock()

	if prev != nil {
		select {
		case <-prev:
		case <-ctx.Done():
			// Keep the chain moving so waiters queued behind the
			// canceled slot are not stranded.
			go func() {
				<-prev
				close(ch)
			}()
			l.drop(key, ch)
			return nil, ctx.Err()
		}
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			close(ch)
			l.drop(key, ch)
		})
	}
	return release, nil
}

// drop decrements the key's refcount and clears the registry entry once the
// key is uncontended. The tail is only deleted when it still belongs to
// this acquisition, so a release can never remove a newer waiter's entry.
func (l *KeyedLock) drop(key string, ch chan struct{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.count[key]--
	if l.count[key] > 0 {
		return
	}
	delete(l.count, key)
	if l.tails[key] == ch {
		delete(l.tails, key)
	}
}

// Len reports the number of keys with live acquisitions. Used by tests to
// verify entries are cleaned up.
func (l *KeyedLock) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.tails)
}
