package explorer

import (
	"slices"
	"sync"
)

// pathLocks hands out one mutex per path, created on demand and dropped when unused.
type pathLocks struct {
	mu    sync.Mutex
	locks map[string]*pathLock
}

type pathLock struct {
	mu   sync.Mutex
	refs int
}

func newPathLocks() *pathLocks {
	return &pathLocks{locks: make(map[string]*pathLock)}
}

// Lock acquires the locks of all paths in sorted order, so that callers
// locking overlapping sets cannot deadlock. It returns the unlock function.
func (p *pathLocks) Lock(paths ...string) func() {
	sorted := slices.Clone(paths)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	held := make([]*pathLock, 0, len(sorted))
	for _, path := range sorted {
		l := p.acquire(path)
		l.mu.Lock()
		held = append(held, l)
	}

	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].mu.Unlock()
			p.release(sorted[i])
		}
	}
}

func (p *pathLocks) acquire(path string) *pathLock {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.locks[path]
	if !ok {
		l = &pathLock{}
		p.locks[path] = l
	}
	l.refs++
	return l
}

func (p *pathLocks) release(path string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	l := p.locks[path]
	l.refs--
	if l.refs == 0 {
		delete(p.locks, path)
	}
}

func (p *pathLocks) size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.locks)
}
