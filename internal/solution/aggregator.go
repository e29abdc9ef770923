// Package solution builds and persists solutions: every diagram under a root directory.
package solution

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/bassista/solution_explorer/internal/diagram"
	"github.com/bassista/solution_explorer/internal/domain"
	"github.com/bassista/solution_explorer/internal/logger"
)

const defaultConcurrency = 8

// DiagramStore is the diagram persistence the aggregator builds on.
type DiagramStore interface {
	Load(ctx context.Context, id domain.Identity, path string) (domain.Diagram, error)
	Save(ctx context.Context, id domain.Identity, d domain.Diagram, path string) error
}

// Aggregator enumerates, loads and saves the diagrams of a solution.
type Aggregator struct {
	store       DiagramStore
	classifier  diagram.Classifier
	ignoreFile  string
	concurrency int
	logger      *logrus.Entry
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithIgnoreFile names the gitignore-style file read from the solution root.
// An empty name disables ignore rules.
func WithIgnoreFile(name string) Option {
	return func(a *Aggregator) { a.ignoreFile = name }
}

// WithConcurrency bounds the number of diagrams loaded in parallel.
func WithConcurrency(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.concurrency = n
		}
	}
}

// NewAggregator creates an aggregator on top of a diagram store.
func NewAggregator(store DiagramStore, classifier diagram.Classifier, opts ...Option) *Aggregator {
	if classifier == nil {
		classifier = diagram.NewExtensionClassifier()
	}
	a := &Aggregator{
		store:       store,
		classifier:  classifier,
		ignoreFile:  ".gitignore",
		concurrency: defaultConcurrency,
		logger:      logger.WithComponent("solution"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Load builds the solution rooted at root.
//
// Files that fail to load do not abort the whole load: the returned Solution
// holds every usable diagram and the error is a *domain.PartialLoadError.
// Two files resolving to the same name fail the load with *domain.ConflictError.
// Authorization failures and context cancellation abort the load.
func (a *Aggregator) Load(ctx context.Context, id domain.Identity, root string) (domain.Solution, error) {
	paths, failures, err := a.Discover(root)
	if err != nil {
		return domain.Solution{}, err
	}

	loaded := make([]domain.Diagram, len(paths))
	loadErrs := make([]error, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(a.concurrency, max(len(paths), 1)))
	for i, path := range paths {
		g.Go(func() error {
			d, err := a.store.Load(gctx, id, path)
			if err != nil {
				if isFatal(err) {
					return err
				}
				loadErrs[i] = err
				return nil
			}
			loaded[i] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return domain.Solution{}, err
	}

	sol := domain.Solution{RootPath: root, Diagrams: make([]domain.Diagram, 0, len(paths))}
	for i, path := range paths {
		if loadErrs[i] != nil {
			failures = append(failures, domain.FileFailure{Path: path, Err: loadErrs[i]})
			continue
		}
		sol.Diagrams = append(sol.Diagrams, loaded[i])
	}

	if err := checkUniqueNames(sol.Diagrams); err != nil {
		return domain.Solution{}, err
	}
	domain.SortDiagrams(sol.Diagrams)

	if len(failures) > 0 {
		a.logger.WithField("root", root).Warnf("solution loaded with %d failure(s)", len(failures))
		return sol, &domain.PartialLoadError{Loaded: sol.Clone().Diagrams, Failures: failures}
	}
	a.logger.WithField("root", root).Debugf("solution loaded with %d diagram(s)", len(sol.Diagrams))
	return sol, nil
}

// Save writes every diagram of sol under root (sol.RootPath when root is empty).
// Diagrams are rebased from sol.RootPath onto root and their file name follows
// their name. It returns the written paths; when any diagram failed the error is
// a *domain.PartialSaveError listing the written and failed paths. Files under
// root that are not part of sol are left untouched.
func (a *Aggregator) Save(ctx context.Context, id domain.Identity, sol domain.Solution, root string) ([]string, error) {
	if root == "" {
		root = sol.RootPath
	}
	if root == "" {
		return nil, &domain.InvalidPathError{Reason: "solution has no root path"}
	}
	if err := checkUniqueNames(sol.Diagrams); err != nil {
		return nil, err
	}

	var (
		saved    []string
		failures []domain.FileFailure
	)
	for _, d := range sol.Diagrams {
		target := a.TargetPath(sol.RootPath, root, d)
		if err := ctx.Err(); err != nil {
			failures = append(failures, domain.FileFailure{Path: target, Err: err})
			continue
		}
		if err := a.store.Save(ctx, id, d, target); err != nil {
			failures = append(failures, domain.FileFailure{Path: target, Err: err})
			continue
		}
		saved = append(saved, target)
	}

	if len(failures) > 0 {
		a.logger.WithField("root", root).Warnf("solution saved with %d failure(s)", len(failures))
		return saved, &domain.PartialSaveError{Saved: saved, Failures: failures}
	}
	a.logger.WithField("root", root).Debugf("solution saved with %d diagram(s)", len(saved))
	return saved, nil
}

// TargetPath computes where d is written when a solution rooted at srcRoot is saved under dstRoot.
func (a *Aggregator) TargetPath(srcRoot, dstRoot string, d domain.Diagram) string {
	ext := a.classifier.DefaultExtension()
	if d.Path == "" {
		return filepath.Join(dstRoot, d.Name+ext)
	}

	var rebased string
	switch {
	case !filepath.IsAbs(d.Path):
		rebased = filepath.Join(dstRoot, d.Path)
	case srcRoot != "" && within(srcRoot, d.Path):
		rel, _ := filepath.Rel(srcRoot, d.Path)
		rebased = filepath.Join(dstRoot, rel)
	default:
		rebased = filepath.Join(dstRoot, filepath.Base(d.Path))
	}

	if a.classifier.IsDiagram(rebased) {
		ext = filepath.Ext(rebased)
	}
	return filepath.Join(filepath.Dir(rebased), d.Name+ext)
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func checkUniqueNames(diagrams []domain.Diagram) error {
	dups := domain.DuplicateNames(diagrams)
	if len(dups) == 0 {
		return nil
	}
	names := make([]string, 0, len(dups))
	for name := range dups {
		names = append(names, name)
	}
	sort.Strings(names)
	paths := dups[names[0]]
	sort.Strings(paths)
	return &domain.ConflictError{Name: names[0], Paths: paths}
}

func isFatal(err error) bool {
	var (
		forbidden    *domain.ForbiddenError
		unauthorized *domain.UnauthorizedError
	)
	return errors.As(err, &forbidden) || errors.As(err, &unauthorized) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

