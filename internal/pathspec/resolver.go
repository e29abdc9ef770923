// Package pathspec resolves user supplied pathspecs to diagram files or solution roots.
package pathspec

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bassista/solution_explorer/internal/domain"
)

// Kind tells whether a pathspec denotes a single diagram or a solution root.
type Kind int

const (
	File Kind = iota + 1
	Directory
)

func (k Kind) String() string {
	switch k {
	case File:
		return "file"
	case Directory:
		return "directory"
	default:
		return "unknown"
	}
}

// Resolution is the outcome of resolving a pathspec.
type Resolution struct {
	Kind Kind
	Path string // absolute, cleaned
}

// DiagramMatcher is the subset of the diagram classifier the resolver needs.
type DiagramMatcher interface {
	IsDiagram(path string) bool
}

// Resolver normalizes pathspecs against a working directory and checks them
// against the current disk state. It caches nothing.
type Resolver struct {
	workDir string
	matcher DiagramMatcher
}

// NewResolver creates a resolver. An empty workDir means the process working directory.
func NewResolver(workDir string, matcher DiagramMatcher) (*Resolver, error) {
	if workDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("determine working directory: %w", err)
		}
		workDir = wd
	}
	abs, err := filepath.Abs(workDir)
	if err != nil {
		return nil, fmt.Errorf("resolve working directory: %w", err)
	}
	return &Resolver{workDir: abs, matcher: matcher}, nil
}

// Normalize validates the syntax of spec and returns its absolute, cleaned form
// without touching the disk.
func (r *Resolver) Normalize(spec string) (string, error) {
	if strings.TrimSpace(spec) == "" {
		return "", &domain.InvalidPathError{Path: spec, Reason: "empty pathspec"}
	}
	if strings.ContainsRune(spec, 0) {
		return "", &domain.InvalidPathError{Path: spec, Reason: "contains NUL byte"}
	}
	if strings.HasPrefix(spec, "~") {
		return "", &domain.InvalidPathError{Path: spec, Reason: "home directory expansion is not supported"}
	}
	if !filepath.IsAbs(spec) {
		spec = filepath.Join(r.workDir, spec)
	}
	return filepath.Clean(spec), nil
}

// Resolve normalizes spec and determines whether it names a diagram file or a directory.
func (r *Resolver) Resolve(spec string) (Resolution, error) {
	path, err := r.Normalize(spec)
	if err != nil {
		return Resolution{}, err
	}

	info, err := os.Stat(path)
	if err != nil {
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return Resolution{}, &domain.NotFoundError{Path: path}
		case errors.Is(err, fs.ErrPermission):
			return Resolution{}, &domain.NotReadableError{Path: path, Err: err}
		}
		return Resolution{}, &domain.InvalidPathError{Path: path, Reason: err.Error()}
	}

	switch {
	case info.IsDir():
		if err := probeDir(path); err != nil {
			return Resolution{}, &domain.NotReadableError{Path: path, Err: err}
		}
		return Resolution{Kind: Directory, Path: path}, nil
	case info.Mode().IsRegular():
		if r.matcher != nil && !r.matcher.IsDiagram(path) {
			return Resolution{}, &domain.InvalidPathError{Path: path, Reason: "not a diagram file"}
		}
		if err := probeFile(path); err != nil {
			return Resolution{}, &domain.NotReadableError{Path: path, Err: err}
		}
		return Resolution{Kind: File, Path: path}, nil
	default:
		return Resolution{}, &domain.InvalidPathError{Path: path, Reason: "neither a regular file nor a directory"}
	}
}

func probeDir(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.ReadDir(1)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func probeFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	return f.Close()
}
