package solution

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/bassista/solution_explorer/internal/domain"
)

// Discover lists the diagram files under root, sorted by path.
// Hidden entries, symlinks and paths matched by the root's ignore file are skipped.
// Subtrees that cannot be read are reported as failures rather than aborting the walk.
func (a *Aggregator) Discover(root string) ([]string, []domain.FileFailure, error) {
	info, err := os.Stat(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, &domain.NotFoundError{Path: root}
		}
		return nil, nil, &domain.NotReadableError{Path: root, Err: err}
	}
	if !info.IsDir() {
		return nil, nil, &domain.InvalidPathError{Path: root, Reason: "solution root is not a directory"}
	}

	gi := a.loadIgnore(root)
	var (
		paths    []string
		failures []domain.FileFailure
	)

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return &domain.NotReadableError{Path: root, Err: err}
			}
			failures = append(failures, domain.FileFailure{Path: path, Err: &domain.NotReadableError{Path: path, Err: err}})
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if path == root {
			return nil
		}

		name := d.Name()
		if strings.HasPrefix(name, ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}

		if d.IsDir() {
			if gi != nil && gi.MatchesPath(rel+"/") {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 || !d.Type().IsRegular() {
			return nil
		}
		if gi != nil && gi.MatchesPath(rel) {
			return nil
		}
		if !a.classifier.IsDiagram(path) {
			return nil
		}

		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	sort.Strings(paths)
	return paths, failures, nil
}

func (a *Aggregator) loadIgnore(root string) *ignore.GitIgnore {
	if a.ignoreFile == "" {
		return nil
	}
	gi, err := ignore.CompileIgnoreFile(filepath.Join(root, a.ignoreFile))
	if err != nil {
		return nil
	}
	return gi
}

// Includes reports whether path would be discovered as a diagram of the solution at root.
func (a *Aggregator) Includes(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." || !within(root, path) {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if strings.HasPrefix(part, ".") {
			return false
		}
	}
	if gi := a.loadIgnore(root); gi != nil && gi.MatchesPath(rel) {
		return false
	}
	return a.classifier.IsDiagram(path)
}
