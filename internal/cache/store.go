package cache

import (
	"errors"
	"sync"
	"time"

	"github.com/bassista/solution_explorer/internal/domain"
	"github.com/bassista/solution_explorer/internal/solution"
)

// ErrDiagramNotFound is returned when removing a name the cache does not hold.
var ErrDiagramNotFound = errors.New("diagram not found in cache")

// Store keeps an in-memory copy of the diagrams of one open session.
// Every value going in or out is deep-copied.
type Store struct {
	mu          sync.RWMutex
	diagrams    map[string]domain.Diagram
	fingerprint solution.Fingerprint
	stale       bool  // true if the next read must go back to disk
	lastUpdate  int64 // unix millis of the last Replace/mutation
}

// NewStore creates a cache holding diagrams as of fingerprint fp.
func NewStore(diagrams []domain.Diagram, fp solution.Fingerprint) *Store {
	s := &Store{}
	s.replaceUnlocked(diagrams, fp)
	return s
}

// MarkStale forces the next reader to reload from disk.
func (s *Store) MarkStale() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stale = true
}

// IsStale reports whether the cache was explicitly invalidated.
func (s *Store) IsStale() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stale
}

// GetLastUpdate returns the cache's last update timestamp.
func (s *Store) GetLastUpdate() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastUpdate
}

// Fingerprint returns the disk state the cache was built from.
func (s *Store) Fingerprint() solution.Fingerprint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fingerprint
}

// Snapshot returns deep copies of all cached diagrams, sorted by name.
func (s *Store) Snapshot() []domain.Diagram {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Diagram, 0, len(s.diagrams))
	for _, d := range s.diagrams {
		out = append(out, d.Clone())
	}
	domain.SortDiagrams(out)
	return out
}

// Get returns a copy of the named diagram.
func (s *Store) Get(name string) (domain.Diagram, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.diagrams[name]
	if !ok {
		return domain.Diagram{}, false
	}
	return d.Clone(), true
}

// Len returns the number of cached diagrams.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.diagrams)
}

// Replace swaps the cached diagrams and clears the stale flag.
func (s *Store) Replace(diagrams []domain.Diagram, fp solution.Fingerprint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replaceUnlocked(diagrams, fp)
}

// Upsert stores d by name and records the new stamp of its file.
func (s *Store) Upsert(d domain.Diagram, stamp solution.Fingerprint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.diagrams[d.Name] = d.Clone()
	s.mergeStampUnlocked(stamp)
	s.lastUpdate = time.Now().UnixMilli()
}

// Remove drops the named diagram and forgets the stamp of its file.
func (s *Store) Remove(name string) (domain.Diagram, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.diagrams[name]
	if !ok {
		return domain.Diagram{}, ErrDiagramNotFound
	}
	delete(s.diagrams, name)
	s.forgetStampUnlocked(d.Path)
	s.lastUpdate = time.Now().UnixMilli()
	return d, nil
}

// Rename moves the entry oldName to renamed, keyed by renamed.Name.
func (s *Store) Rename(oldName string, renamed domain.Diagram, stamp solution.Fingerprint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.diagrams[oldName]
	if !ok {
		return ErrDiagramNotFound
	}
	delete(s.diagrams, oldName)
	s.forgetStampUnlocked(old.Path)
	s.diagrams[renamed.Name] = renamed.Clone()
	s.mergeStampUnlocked(stamp)
	s.lastUpdate = time.Now().UnixMilli()
	return nil
}

func (s *Store) replaceUnlocked(diagrams []domain.Diagram, fp solution.Fingerprint) {
	s.diagrams = make(map[string]domain.Diagram, len(diagrams))
	for _, d := range diagrams {
		s.diagrams[d.Name] = d.Clone()
	}
	s.fingerprint = make(solution.Fingerprint, len(fp))
	for path, stamp := range fp {
		s.fingerprint[path] = stamp
	}
	s.stale = false
	s.lastUpdate = time.Now().UnixMilli()
}

// The fingerprint map is copied on write so values handed out by Fingerprint stay immutable.
func (s *Store) mergeStampUnlocked(stamp solution.Fingerprint) {
	next := make(solution.Fingerprint, len(s.fingerprint)+len(stamp))
	for path, st := range s.fingerprint {
		next[path] = st
	}
	for path, st := range stamp {
		next[path] = st
	}
	s.fingerprint = next
}

func (s *Store) forgetStampUnlocked(path string) {
	if _, ok := s.fingerprint[path]; !ok {
		return
	}
	next := make(solution.Fingerprint, len(s.fingerprint))
	for p, st := range s.fingerprint {
		if p != path {
			next[p] = st
		}
	}
	s.fingerprint = next
}
