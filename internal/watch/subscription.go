package watch

import (
	"sync"

	"github.com/google/uuid"
)

// Subscription is the handle of one Watch registration.
type Subscription struct {
	w    *Watcher
	path string
	id   uuid.UUID
	once sync.Once
}

// Path is the absolute path the subscription watches.
func (s *Subscription) Path() string { return s.path }

// ID identifies the registration.
func (s *Subscription) ID() string { return s.id.String() }

// Close releases the registration. Other registrations for the same path are
// unaffected. Closing twice is a no-op.
func (s *Subscription) Close() error {
	s.once.Do(func() { s.w.release(s.path, s.id) })
	return nil
}
