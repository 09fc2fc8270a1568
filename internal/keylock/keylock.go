// Package keylock serialises work per account id with a fixed set of
// striped mutexes.
package keylock

import (
	"sync"

	"github.com/cespare/xxhash/v2"
)

// DefaultStripes is used when New is called with n <= 0.
const DefaultStripes = 256

// Locker maps keys onto a fixed array of mutexes. Two keys may share a
// stripe; a key never maps to two stripes.
type Locker struct {
	stripes []sync.Mutex
}

// New returns a Locker with n stripes rounded up to a power of two.
func New(n int) *Locker {
	if n <= 0 {
		n = DefaultStripes
	}
	size := 1
	for size < n {
		size <<= 1
	}
	return &Locker{stripes: make([]sync.Mutex, size)}
}

func (l *Locker) stripe(key string) *sync.Mutex {
	h := xxhash.Sum64String(key)
	return &l.stripes[h&uint64(len(l.stripes)-1)]
}

// Lock acquires the stripe for key and returns its unlock function.
func (l *Locker) Lock(key string) (unlock func()) {
	mu := l.stripe(key)
	mu.Lock()
	return mu.Unlock
}
