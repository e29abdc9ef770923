package explorer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/bassista/solution_explorer/internal/cache"
	"github.com/bassista/solution_explorer/internal/diagram"
	"github.com/bassista/solution_explorer/internal/domain"
	"github.com/bassista/solution_explorer/internal/pathspec"
	"github.com/bassista/solution_explorer/internal/solution"
)

// Session is the handle of one opened pathspec. Its kind (file or directory)
// is fixed for its lifetime. Diagrams handed out are copies: changing them has
// no effect until they are saved.
type Session struct {
	*sessionState
	identity domain.Identity
}

// sessionState is shared by every view of a session returned by As.
type sessionState struct {
	repo   *Repository
	spec   string
	res    pathspec.Resolution
	cache  *cache.Store
	logger *logrus.Entry

	reloadMu   sync.Mutex
	partialMu  sync.RWMutex
	partialErr error
}

func newSession(r *Repository, spec string, res pathspec.Resolution, id domain.Identity) *Session {
	return &Session{
		sessionState: &sessionState{
			repo:   r,
			spec:   spec,
			res:    res,
			cache:  cache.NewStore(nil, nil),
			logger: r.logger.WithField("session", res.Path),
		},
		identity: id,
	}
}

// As returns a view of the same session acting on behalf of id. Views share
// the cached diagrams; authorization uses the view's identity.
func (s *Session) As(id domain.Identity) *Session {
	return &Session{sessionState: s.sessionState, identity: id}
}

// Pathspec returns the pathspec as given to OpenPath.
func (s *Session) Pathspec() string { return s.spec }

// Path returns the resolved absolute path.
func (s *Session) Path() string { return s.res.Path }

// Kind tells whether the session is a single diagram or a solution.
func (s *Session) Kind() pathspec.Kind { return s.res.Kind }

// Identity returns the identity the session was opened with.
func (s *Session) Identity() domain.Identity { return s.identity }

// GetDiagrams returns the diagrams currently on disk, sorted by name. The cache
// is reloaded when the files changed since it was built. While some files of
// the solution cannot be loaded the usable diagrams are returned together with
// a *domain.PartialLoadError.
func (s *Session) GetDiagrams(ctx context.Context) ([]domain.Diagram, error) {
	if err := s.refresh(ctx); err != nil {
		var partial *domain.PartialLoadError
		if !errors.As(err, &partial) {
			return nil, err
		}
	}
	return s.cache.Snapshot(), s.partial()
}

// GetDiagramByName looks a diagram up by name, in the session or in an explicit pathspec.
func (s *Session) GetDiagramByName(ctx context.Context, name string, target Target) (domain.Diagram, error) {
	if target.IsExplicit() {
		return s.lookupElsewhere(ctx, name, target.Path())
	}

	if err := s.refresh(ctx); err != nil {
		var partial *domain.PartialLoadError
		if !errors.As(err, &partial) {
			return domain.Diagram{}, err
		}
	}
	d, ok := s.cache.Get(name)
	if !ok {
		return domain.Diagram{}, &domain.NotFoundError{Name: name, Path: s.res.Path}
	}
	return d, nil
}

// SaveDiagram writes d and returns it as stored.
//
// With CurrentPath the diagram's recorded source path is authoritative; a
// diagram without one is placed in the solution root (or written to the
// session file). With ExplicitPath the target is that file, or
// <dir>/<name><ext> when it names a directory. An existing file is overwritten.
// The stored diagram is named after its file.
func (s *Session) SaveDiagram(ctx context.Context, d domain.Diagram, target Target) (domain.Diagram, error) {
	path, err := s.diagramTarget(d, target)
	if err != nil {
		return domain.Diagram{}, err
	}

	classifier := s.repo.classifier
	saved := d.Clone()
	saved.Name = classifier.NameOf(path)
	saved.Path = path

	unlock := s.repo.locks.Lock(path)
	defer unlock()

	tracked := s.tracks(path)
	if tracked {
		if existing, ok := s.cache.Get(saved.Name); ok && existing.Path != path {
			return domain.Diagram{}, &domain.ConflictError{Name: saved.Name, Paths: []string{existing.Path, path}}
		}
	}

	if err := s.repo.store.Save(ctx, s.identity, d, path); err != nil {
		return domain.Diagram{}, err
	}
	if tracked {
		s.cache.Upsert(saved, solution.StampFiles([]string{path}))
		// The save may have repaired a file that failed to load.
		if s.partial() != nil {
			s.cache.MarkStale()
		}
	}
	s.logger.WithField("path", path).Info("diagram saved")
	return saved, nil
}

// DeleteDiagram removes the diagram's file. The diagram is located by its
// recorded path, or by name within the session when it has none.
func (s *Session) DeleteDiagram(ctx context.Context, d domain.Diagram) error {
	path, err := s.locate(d)
	if err != nil {
		return err
	}

	unlock := s.repo.locks.Lock(path)
	defer unlock()

	if err := s.repo.store.Delete(ctx, s.identity, path); err != nil {
		return err
	}
	if s.tracks(path) {
		// An uncached file is one that failed to load or appeared since the
		// last reload; either way the next read reloads.
		if _, err := s.cache.Remove(s.repo.classifier.NameOf(path)); errors.Is(err, cache.ErrDiagramNotFound) || s.partial() != nil {
			s.cache.MarkStale()
		}
	}
	s.logger.WithField("path", path).Info("diagram deleted")
	return nil
}

// RenameDiagram renames d within its directory, keeping its extension, and
// returns the renamed diagram. An existing target is never overwritten.
func (s *Session) RenameDiagram(ctx context.Context, d domain.Diagram, newName string) (domain.Diagram, error) {
	if !diagram.ValidName(newName) {
		return domain.Diagram{}, &domain.InvalidPathError{Path: newName, Reason: "invalid diagram name"}
	}
	oldPath, err := s.locate(d)
	if err != nil {
		return domain.Diagram{}, err
	}
	newPath := filepath.Join(filepath.Dir(oldPath), newName+filepath.Ext(oldPath))
	oldName := s.repo.classifier.NameOf(oldPath)

	unlock := s.repo.locks.Lock(oldPath, newPath)
	defer unlock()

	tracked := s.tracks(oldPath)
	if tracked && newName != oldName {
		if existing, ok := s.cache.Get(newName); ok {
			return domain.Diagram{}, &domain.ConflictError{Name: newName, Paths: []string{existing.Path, newPath}}
		}
	}

	if err := s.repo.store.Rename(ctx, s.identity, oldPath, newPath); err != nil {
		return domain.Diagram{}, err
	}

	renamed := d.Clone()
	if cached, ok := s.cache.Get(oldName); ok && tracked {
		renamed.Content = cached.Content
	}
	renamed.Name = newName
	renamed.Path = newPath

	if tracked {
		if err := s.cache.Rename(oldName, renamed, solution.StampFiles([]string{newPath})); err != nil {
			s.cache.MarkStale()
		}
	}
	s.logger.WithFields(logrus.Fields{"from": oldPath, "to": newPath}).Info("diagram renamed")
	return renamed, nil
}

// SaveSolution writes every diagram of sol under the session root or the
// explicit target directory, returning the written paths. Individual failures
// are reported through *domain.PartialSaveError.
func (s *Session) SaveSolution(ctx context.Context, sol domain.Solution, target Target) ([]string, error) {
	root := s.res.Path
	if target.IsExplicit() {
		p, err := s.repo.resolver.Normalize(target.Path())
		if err != nil {
			return nil, err
		}
		root = p
	} else if s.res.Kind != pathspec.Directory {
		return nil, &domain.InvalidPathError{Path: s.res.Path, Reason: "session is a single diagram file, not a solution"}
	}

	srcRoot := sol.RootPath
	if srcRoot == "" {
		srcRoot = root
	}
	paths := make([]string, 0, len(sol.Diagrams))
	for _, d := range sol.Diagrams {
		paths = append(paths, s.repo.aggregator.TargetPath(srcRoot, root, d))
	}

	unlock := s.repo.locks.Lock(paths...)
	defer unlock()

	sol.RootPath = srcRoot
	saved, err := s.repo.aggregator.Save(ctx, s.identity, sol, root)
	if len(saved) > 0 && s.res.Kind == pathspec.Directory && (root == s.res.Path || within(s.res.Path, root)) {
		s.cache.MarkStale()
	}
	if len(saved) > 0 && s.res.Kind == pathspec.File {
		for _, p := range saved {
			if p == s.res.Path {
				s.cache.MarkStale()
			}
		}
	}
	return saved, err
}

func (s *Session) refresh(ctx context.Context) error {
	if s.fresh() {
		return nil
	}
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()
	if s.fresh() {
		return nil
	}
	s.logger.Debug("cache is stale, reloading from disk")
	return s.reload(ctx)
}

func (s *Session) fresh() bool {
	if s.cache.IsStale() {
		return false
	}
	fp, err := s.fingerprint()
	if err != nil {
		return false
	}
	return fp.Equal(s.cache.Fingerprint())
}

func (s *Session) fingerprint() (solution.Fingerprint, error) {
	if s.res.Kind == pathspec.File {
		return solution.StampFiles([]string{s.res.Path}), nil
	}
	return s.repo.aggregator.Fingerprint(s.res.Path)
}

// reload rebuilds the cache from disk. The fingerprint is taken before
// loading so that changes racing with the load trigger another reload.
func (s *Session) reload(ctx context.Context) error {
	fp, err := s.fingerprint()
	if err != nil {
		return err
	}

	if s.res.Kind == pathspec.File {
		d, err := s.repo.store.Load(ctx, s.identity, s.res.Path)
		var notFound *domain.NotFoundError
		switch {
		case errors.As(err, &notFound):
			s.cache.Replace(nil, fp)
			s.setPartial(nil)
			return nil
		case err != nil:
			return err
		}
		s.cache.Replace([]domain.Diagram{d}, fp)
		s.setPartial(nil)
		return nil
	}

	sol, err := s.repo.aggregator.Load(ctx, s.identity, s.res.Path)
	var partial *domain.PartialLoadError
	if err != nil && !errors.As(err, &partial) {
		return err
	}
	s.cache.Replace(sol.Diagrams, fp)
	s.setPartial(err)
	return err
}

func (s *Session) partial() error {
	s.partialMu.RLock()
	defer s.partialMu.RUnlock()
	return s.partialErr
}

func (s *Session) setPartial(err error) {
	s.partialMu.Lock()
	defer s.partialMu.Unlock()
	s.partialErr = err
}

func (s *Session) lookupElsewhere(ctx context.Context, name, spec string) (domain.Diagram, error) {
	res, err := s.repo.resolver.Resolve(spec)
	if err != nil {
		return domain.Diagram{}, err
	}
	if res.Kind == pathspec.File {
		d, err := s.repo.store.Load(ctx, s.identity, res.Path)
		if err != nil {
			return domain.Diagram{}, err
		}
		if d.Name != name {
			return domain.Diagram{}, &domain.NotFoundError{Name: name, Path: res.Path}
		}
		return d, nil
	}

	sol, err := s.repo.aggregator.Load(ctx, s.identity, res.Path)
	var partial *domain.PartialLoadError
	if err != nil && !errors.As(err, &partial) {
		return domain.Diagram{}, err
	}
	d, ok := sol.DiagramByName(name)
	if !ok {
		return domain.Diagram{}, &domain.NotFoundError{Name: name, Path: res.Path}
	}
	return d, nil
}

// diagramTarget picks the file SaveDiagram writes to.
func (s *Session) diagramTarget(d domain.Diagram, target Target) (string, error) {
	ext := s.repo.classifier.DefaultExtension()
	if target.IsExplicit() {
		p, err := s.repo.resolver.Normalize(target.Path())
		if err != nil {
			return "", err
		}
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			return filepath.Join(p, d.Name+ext), nil
		}
		return p, nil
	}
	if d.Path != "" {
		return s.repo.resolver.Normalize(d.Path)
	}
	if s.res.Kind == pathspec.File {
		return s.res.Path, nil
	}
	return filepath.Join(s.res.Path, d.Name+ext), nil
}

// locate finds the file of an existing diagram.
func (s *Session) locate(d domain.Diagram) (string, error) {
	if d.Path != "" {
		return s.repo.resolver.Normalize(d.Path)
	}
	if cached, ok := s.cache.Get(d.Name); ok {
		return cached.Path, nil
	}
	return "", &domain.NotFoundError{Name: d.Name, Path: s.res.Path}
}

// tracks reports whether path belongs to what this session shows.
func (s *Session) tracks(path string) bool {
	if s.res.Kind == pathspec.File {
		return path == s.res.Path
	}
	return s.repo.aggregator.Includes(s.res.Path, path)
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
