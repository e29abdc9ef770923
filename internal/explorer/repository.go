// Package explorer is the solution explorer repository: it maps pathspecs to
// solutions of diagrams, keeps them in sync with the disk and notifies about changes.
package explorer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bassista/solution_explorer/internal/auth"
	"github.com/bassista/solution_explorer/internal/diagram"
	"github.com/bassista/solution_explorer/internal/domain"
	"github.com/bassista/solution_explorer/internal/logger"
	"github.com/bassista/solution_explorer/internal/pathspec"
	"github.com/bassista/solution_explorer/internal/solution"
	"github.com/bassista/solution_explorer/internal/watch"
)

// Options configures a Repository.
type Options struct {
	// WorkDir is the base for relative pathspecs; empty means the process working directory.
	WorkDir string
	// Extensions recognized as diagram files; the first one names new files.
	Extensions []string
	// IgnoreFile is read from solution roots; empty disables ignore rules.
	IgnoreFile      string
	LoadConcurrency int
	Debounce        time.Duration
	Format          diagram.Format
	Authorizer      auth.Authorizer
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		Extensions:      []string{diagram.DefaultExtension},
		IgnoreFile:      ".gitignore",
		LoadConcurrency: 8,
		Debounce:        watch.DefaultDebounce,
		Format:          diagram.XMLFormat{},
		Authorizer:      auth.AllowAll{},
	}
}

// Repository is the facade over path resolution, diagram persistence,
// solution aggregation and file watching. It tracks the most recently opened
// session so callers can use it without holding a Session themselves.
type Repository struct {
	resolver   *pathspec.Resolver
	classifier diagram.Classifier
	store      *diagram.Store
	aggregator *solution.Aggregator
	watcher    *watch.Watcher
	authz      auth.Authorizer
	locks      *pathLocks
	logger     *logrus.Entry

	mu      sync.RWMutex
	current *Session
}

// New wires a repository. The file watcher lives until ctx is cancelled or Close is called.
func New(ctx context.Context, opts Options) (*Repository, error) {
	if opts.Authorizer == nil {
		opts.Authorizer = auth.AllowAll{}
	}
	classifier := diagram.NewExtensionClassifier(opts.Extensions...)

	resolver, err := pathspec.NewResolver(opts.WorkDir, classifier)
	if err != nil {
		return nil, err
	}

	store := diagram.NewStore(classifier, opts.Format, opts.Authorizer)
	aggregator := solution.NewAggregator(store, classifier,
		solution.WithIgnoreFile(opts.IgnoreFile),
		solution.WithConcurrency(opts.LoadConcurrency),
	)

	watcher, err := watch.New(ctx, opts.Debounce)
	if err != nil {
		return nil, err
	}

	return &Repository{
		resolver:   resolver,
		classifier: classifier,
		store:      store,
		aggregator: aggregator,
		watcher:    watcher,
		authz:      opts.Authorizer,
		locks:      newPathLocks(),
		logger:     logger.WithComponent("explorer"),
	}, nil
}

// OpenPath resolves pathspec, loads what it denotes and makes the result the current session.
//
// When some diagrams of a solution fail to load, the session is still opened
// and returned together with a *domain.PartialLoadError. On any other error
// the previously open session, if any, stays current.
func (r *Repository) OpenPath(ctx context.Context, spec string, id domain.Identity) (*Session, error) {
	res, err := r.resolver.Resolve(spec)
	if err != nil {
		return nil, err
	}
	if err := r.authz.Authorize(ctx, id, auth.OpOpen, res.Path); err != nil {
		return nil, err
	}

	s := newSession(r, spec, res, id)
	loadErr := s.reload(ctx)
	var partial *domain.PartialLoadError
	if loadErr != nil && !errors.As(loadErr, &partial) {
		return nil, loadErr
	}

	r.mu.Lock()
	r.current = s
	r.mu.Unlock()

	r.logger.WithFields(logrus.Fields{"path": res.Path, "kind": res.Kind.String()}).Infof("opened with %d diagram(s)", s.cache.Len())
	return s, loadErr
}

// Current returns the most recently opened session.
func (r *Repository) Current() (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.current == nil {
		return nil, &domain.InvalidPathError{Reason: "no path opened"}
	}
	return r.current, nil
}

// GetDiagrams returns the diagrams of the current session.
func (r *Repository) GetDiagrams(ctx context.Context) ([]domain.Diagram, error) {
	s, err := r.Current()
	if err != nil {
		return nil, err
	}
	return s.GetDiagrams(ctx)
}

// GetDiagramByName looks name up in the current session or in the target pathspec.
func (r *Repository) GetDiagramByName(ctx context.Context, name string, target Target) (domain.Diagram, error) {
	s, err := r.Current()
	if err != nil {
		return domain.Diagram{}, err
	}
	return s.GetDiagramByName(ctx, name, target)
}

// SaveSolution saves every diagram of sol, see Session.SaveSolution.
func (r *Repository) SaveSolution(ctx context.Context, sol domain.Solution, target Target) ([]string, error) {
	s, err := r.Current()
	if err != nil {
		return nil, err
	}
	return s.SaveSolution(ctx, sol, target)
}

// SaveDiagram saves one diagram, see Session.SaveDiagram.
func (r *Repository) SaveDiagram(ctx context.Context, d domain.Diagram, target Target) (domain.Diagram, error) {
	s, err := r.Current()
	if err != nil {
		return domain.Diagram{}, err
	}
	return s.SaveDiagram(ctx, d, target)
}

// DeleteDiagram deletes one diagram of the current session.
func (r *Repository) DeleteDiagram(ctx context.Context, d domain.Diagram) error {
	s, err := r.Current()
	if err != nil {
		return err
	}
	return s.DeleteDiagram(ctx, d)
}

// RenameDiagram renames one diagram of the current session.
func (r *Repository) RenameDiagram(ctx context.Context, d domain.Diagram, newName string) (domain.Diagram, error) {
	s, err := r.Current()
	if err != nil {
		return domain.Diagram{}, err
	}
	return s.RenameDiagram(ctx, d, newName)
}

// Watch registers cb for changes to the file or directory at pathspec.
// Watching does not reload any session; cb decides what to do.
func (r *Repository) Watch(spec string, cb watch.Callback) (*watch.Subscription, error) {
	path, err := r.resolver.Normalize(spec)
	if err != nil {
		return nil, err
	}
	return r.watcher.Watch(path, cb)
}

// Unwatch removes every registration for pathspec.
func (r *Repository) Unwatch(spec string) error {
	path, err := r.resolver.Normalize(spec)
	if err != nil {
		return err
	}
	return r.watcher.Unwatch(path)
}

// WatchedPaths lists the paths with at least one registration.
func (r *Repository) WatchedPaths() []string {
	return r.watcher.Paths()
}

// Close stops the file watcher. Sessions stay usable for reads and writes.
func (r *Repository) Close() error {
	if err := r.watcher.Close(); err != nil {
		return fmt.Errorf("close watcher: %w", err)
	}
	return nil
}
