// Package watch turns raw file-system events into debounced per-path notifications.
package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/bassista/solution_explorer/internal/logger"
)

// DefaultDebounce is the coalescing window used when none is configured.
const DefaultDebounce = 200 * time.Millisecond

// ErrClosed is returned by Watch after the watcher has been closed.
var ErrClosed = errors.New("watcher closed")

// Callback receives the watched path that changed. It runs on a timer
// goroutine and should only trigger work, not perform it.
//
// Unwatch and Subscription.Close wait for running callbacks of their path to
// return, so a callback must not release its own path synchronously.
type Callback func(path string)

// Watcher multiplexes path registrations onto one fsnotify watcher.
//
// Parent directories are watched instead of files so that atomic replace
// sequences (temp file + rename) are observed. Paths that do not exist yet are
// anchored at their nearest existing ancestor and re-anchored as directories
// appear. Every raw event restarts the path's debounce timer; when the timer
// expires the callbacks registered at that moment are invoked once.
type Watcher struct {
	fsw      *fsnotify.Watcher
	debounce time.Duration
	logger   *logrus.Entry

	mu      sync.Mutex
	entries map[string]*entry
	dirRefs map[string]int
	closed  bool

	closeOnce sync.Once
	done      chan struct{}
}

type entry struct {
	path string
	regs map[uuid.UUID]Callback
	// epoch is bumped whenever a scheduled delivery becomes obsolete:
	// on every new event (debounce restart) and on removal.
	epoch  uint64
	timer  *time.Timer
	anchor string // watched ancestor directory
	self   string // path itself, when it is a watched directory

	// delivering is read-held from the liveness check until the callback
	// returns; removal write-locks it to wait out deliveries in flight.
	delivering sync.RWMutex
}

// New starts a watcher. It stops when ctx is cancelled or Close is called.
func New(ctx context.Context, debounce time.Duration) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	w := &Watcher{
		fsw:      fsw,
		debounce: debounce,
		logger:   logger.WithComponent("watch"),
		entries:  make(map[string]*entry),
		dirRefs:  make(map[string]int),
		done:     make(chan struct{}),
	}
	go w.run(ctx)
	return w, nil
}

// Done is closed once the event loop has exited.
func (w *Watcher) Done() <-chan struct{} { return w.done }

// Watch registers cb for changes to path. The path does not need to exist.
// Closing the returned subscription releases exactly this registration.
func (w *Watcher) Watch(path string, cb Callback) (*Subscription, error) {
	if cb == nil {
		return nil, errors.New("callback is required")
	}
	abs, err := normalize(path)
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil, ErrClosed
	}

	e, ok := w.entries[abs]
	if !ok {
		e = &entry{path: abs, regs: make(map[uuid.UUID]Callback)}
		if err := w.anchorLocked(e); err != nil {
			w.releaseDirLocked(e.anchor)
			return nil, err
		}
		w.entries[abs] = e
	}

	id := uuid.New()
	e.regs[id] = cb
	w.logger.WithFields(logrus.Fields{"path": abs, "anchor": e.anchor, "subscription": id}).Debug("watch registered")
	return &Subscription{w: w, path: abs, id: id}, nil
}

// Unwatch removes every registration for path. Once it returns no callback
// for path is running or will start, including deliveries already scheduled.
func (w *Watcher) Unwatch(path string) error {
	abs, err := normalize(path)
	if err != nil {
		return err
	}
	w.mu.Lock()
	e, ok := w.entries[abs]
	if ok {
		w.removeLocked(e)
	}
	w.mu.Unlock()
	if !ok {
		return nil
	}

	e.awaitDeliveries()
	w.logger.WithField("path", abs).Debug("watch removed")
	return nil
}

// Paths lists the currently watched paths.
func (w *Watcher) Paths() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	paths := make([]string, 0, len(w.entries))
	for p := range w.entries {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Close drops every registration and releases the OS watcher.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		w.mu.Lock()
		w.closed = true
		for _, e := range w.entries {
			w.removeLocked(e)
		}
		w.mu.Unlock()
		err = w.fsw.Close()
	})
	return err
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.done)
	for {
		select {
		case <-ctx.Done():
			_ = w.Close()
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Errorf("watcher error: %v", err)
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	name := filepath.Clean(event.Name)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}

	if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		if _, watched := w.dirRefs[name]; watched {
			w.forgetDirLocked(name)
			w.reanchorLocked()
		}
	}
	if event.Has(fsnotify.Create) {
		w.reanchorLocked()
	}

	if e, ok := w.entries[name]; ok {
		w.scheduleLocked(e)
	}
	if e, ok := w.entries[filepath.Dir(name)]; ok && e.self != "" && name != e.path {
		w.scheduleLocked(e)
	}
}

// scheduleLocked (re)starts the debounce timer of e.
func (w *Watcher) scheduleLocked(e *entry) {
	if e.timer != nil {
		e.timer.Stop()
	}
	e.epoch++
	epoch := e.epoch
	e.timer = time.AfterFunc(w.debounce, func() { w.fire(e, epoch) })
}

func (w *Watcher) fire(e *entry, epoch uint64) {
	w.mu.Lock()
	if w.closed || w.entries[e.path] != e || e.epoch != epoch {
		w.mu.Unlock()
		return
	}
	e.timer = nil
	ids := make([]uuid.UUID, 0, len(e.regs))
	for id := range e.regs {
		ids = append(ids, id)
	}
	w.mu.Unlock()

	w.logger.WithField("path", e.path).Debugf("change detected, notifying %d subscriber(s)", len(ids))
	for _, id := range ids {
		w.deliver(e, id)
	}
}

// deliver invokes registration id if it is still live. An Unwatch or
// Subscription.Close racing with it either suppresses the call or waits for it.
func (w *Watcher) deliver(e *entry, id uuid.UUID) {
	e.delivering.RLock()
	defer e.delivering.RUnlock()
	if cb, ok := w.liveCallback(e, id); ok {
		w.invoke(cb, e.path)
	}
}

func (w *Watcher) liveCallback(e *entry, id uuid.UUID) (Callback, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed || w.entries[e.path] != e {
		return nil, false
	}
	cb, ok := e.regs[id]
	return cb, ok
}

func (w *Watcher) invoke(cb Callback, path string) {
	defer func() {
		if rec := recover(); rec != nil {
			w.logger.WithField("path", path).Errorf("watch callback panicked: %v", rec)
		}
	}()
	cb(path)
}

func (w *Watcher) release(path string, id uuid.UUID) {
	w.mu.Lock()
	e, ok := w.entries[path]
	if ok {
		_, ok = e.regs[id]
	}
	if !ok {
		w.mu.Unlock()
		return
	}
	delete(e.regs, id)
	if len(e.regs) == 0 {
		w.removeLocked(e)
	}
	w.mu.Unlock()

	e.awaitDeliveries()
}

// awaitDeliveries returns once no callback of e is running. Deliveries
// starting afterwards observe the removal and skip the callback.
func (e *entry) awaitDeliveries() {
	e.delivering.Lock()
	e.delivering.Unlock()
}

func (w *Watcher) removeLocked(e *entry) {
	e.epoch++
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	w.releaseDirLocked(e.anchor)
	w.releaseDirLocked(e.self)
	e.anchor, e.self = "", ""
	delete(w.entries, e.path)
}

// anchorLocked points e at the directories it must be watched through.
func (w *Watcher) anchorLocked(e *entry) error {
	anchor := nearestExistingDir(filepath.Dir(e.path))
	self := ""
	if info, err := os.Stat(e.path); err == nil && info.IsDir() {
		self = e.path
	}

	if anchor != e.anchor {
		if err := w.addDirLocked(anchor); err != nil {
			return err
		}
		w.releaseDirLocked(e.anchor)
		e.anchor = anchor
	}
	if self != e.self {
		if self != "" {
			if err := w.addDirLocked(self); err != nil {
				return err
			}
		}
		w.releaseDirLocked(e.self)
		e.self = self
	}
	return nil
}

// reanchorLocked follows directories appearing or disappearing along watched paths.
func (w *Watcher) reanchorLocked() {
	for _, e := range w.entries {
		anchor, self := e.anchor, e.self
		if err := w.anchorLocked(e); err != nil {
			w.logger.WithField("path", e.path).Warnf("re-anchor watch: %v", err)
			continue
		}
		if anchor != e.anchor || self != e.self {
			w.logger.WithFields(logrus.Fields{"path": e.path, "anchor": e.anchor}).Debug("watch re-anchored")
			// The path may have appeared before the deeper directory was watched.
			if _, err := os.Stat(e.path); err == nil {
				w.scheduleLocked(e)
			}
		}
	}
}

// forgetDirLocked drops bookkeeping for a directory the OS stopped watching.
func (w *Watcher) forgetDirLocked(dir string) {
	delete(w.dirRefs, dir)
	_ = w.fsw.Remove(dir)
	for _, e := range w.entries {
		if e.anchor == dir {
			e.anchor = ""
		}
		if e.self == dir {
			e.self = ""
		}
	}
}

func (w *Watcher) addDirLocked(dir string) error {
	if dir == "" {
		return nil
	}
	if w.dirRefs[dir] == 0 {
		if err := w.fsw.Add(dir); err != nil {
			return fmt.Errorf("watch dir %s: %w", dir, err)
		}
	}
	w.dirRefs[dir]++
	return nil
}

func (w *Watcher) releaseDirLocked(dir string) {
	if dir == "" {
		return
	}
	refs, ok := w.dirRefs[dir]
	if !ok {
		return
	}
	if refs <= 1 {
		delete(w.dirRefs, dir)
		_ = w.fsw.Remove(dir)
		return
	}
	w.dirRefs[dir] = refs - 1
}

func nearestExistingDir(dir string) string {
	for {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return dir
		}
		dir = parent
	}
}

func normalize(path string) (string, error) {
	if path == "" {
		return "", errors.New("watch path is required")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve watch path: %w", err)
	}
	return abs, nil
}
