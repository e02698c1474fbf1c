package world

import (
	"sync"

	"github.com/codeyousef/voxelstream/internal/sim/coords"
)

// posLocks is a fixed-granularity lock map: one mutex per chunk position,
// reference counted so entries disappear as soon as the last holder
// releases. This bounds the map to the positions generating right now
// instead of growing with every position ever touched.
type posLocks struct {
	mu sync.Mutex
	m  map[coords.ChunkPos]*posLock
}

type posLock struct {
	mu   sync.Mutex
	refs int
}

func (l *posLocks) acquire(pos coords.ChunkPos) *posLock {
	l.mu.Lock()
	defer l.mu.Unlock()
	e := l.m[pos]
	if e == nil {
		e = &posLock{}
		l.m[pos] = e
	}
	e.refs++
	return e
}

func (l *posLocks) release(pos coords.ChunkPos, e *posLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs <= 0 {
		delete(l.m, pos)
	}
}

func (l *posLocks) reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.m = map[coords.ChunkPos]*posLock{}
}

func (l *posLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.m)
}
