// Package diagram loads and persists single diagram files.
package diagram

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/bassista/solution_explorer/internal/auth"
	"github.com/bassista/solution_explorer/internal/domain"
	"github.com/bassista/solution_explorer/internal/logger"
)

// Store handles disk persistence of individual diagrams.
// It holds no state about solutions; callers serialize mutations per path.
type Store struct {
	classifier Classifier
	format     Format
	authz      auth.Authorizer
	validator  *validator.Validate
	logger     *logrus.Entry
}

// NewStore creates a store. Nil collaborators fall back to the BPMN
// extension classifier, XMLFormat and AllowAll.
func NewStore(classifier Classifier, format Format, authz auth.Authorizer) *Store {
	if classifier == nil {
		classifier = NewExtensionClassifier()
	}
	if format == nil {
		format = XMLFormat{}
	}
	if authz == nil {
		authz = auth.AllowAll{}
	}
	return &Store{
		classifier: classifier,
		format:     format,
		authz:      authz,
		validator:  newValidator(),
		logger:     logger.WithComponent("diagram-store"),
	}
}

// Classifier returns the classifier the store names diagrams with.
func (s *Store) Classifier() Classifier { return s.classifier }

// Load reads and parses the diagram file at path.
func (s *Store) Load(ctx context.Context, id domain.Identity, path string) (domain.Diagram, error) {
	if err := s.authorize(ctx, id, auth.OpRead, path); err != nil {
		return domain.Diagram{}, err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return domain.Diagram{}, classifyIOError(path, err)
	}

	content, err := s.format.Parse(raw)
	if err != nil {
		return domain.Diagram{}, &domain.ParseError{Path: path, Err: err}
	}

	return domain.Diagram{Name: s.classifier.NameOf(path), Path: path, Content: content}, nil
}

// Save writes the diagram to path, or to d.Path when path is empty.
// The write is atomic: content goes to a temp file in the target directory
// which is then renamed over the target. An existing file is overwritten.
func (s *Store) Save(ctx context.Context, id domain.Identity, d domain.Diagram, path string) error {
	if path == "" {
		path = d.Path
	}
	if path == "" {
		return &domain.InvalidPathError{Reason: fmt.Sprintf("diagram %q has no target path", d.Name)}
	}
	if err := s.validator.Struct(&d); err != nil {
		return &domain.InvalidPathError{Path: path, Reason: fmt.Sprintf("invalid diagram: %v", err)}
	}
	if err := s.authorize(ctx, id, auth.OpSave, path); err != nil {
		return err
	}

	payload, err := s.format.Serialize(d.Content)
	if err != nil {
		return &domain.ParseError{Path: path, Err: err}
	}

	if err := writeFileAtomic(path, payload); err != nil {
		return err
	}
	s.logger.WithField("path", path).Debug("diagram saved")
	return nil
}

// Delete removes the diagram file. Deleting a missing file is an error.
func (s *Store) Delete(ctx context.Context, id domain.Identity, path string) error {
	if err := s.authorize(ctx, id, auth.OpDelete, path); err != nil {
		return err
	}

	info, err := os.Lstat(path)
	if err != nil {
		return classifyIOError(path, err)
	}
	if info.IsDir() {
		return &domain.InvalidPathError{Path: path, Reason: "is a directory"}
	}

	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &domain.NotFoundError{Path: path}
		}
		return fmt.Errorf("delete diagram file: %w", err)
	}
	s.logger.WithField("path", path).Debug("diagram deleted")
	return nil
}

// Rename moves the diagram file from oldPath to newPath. Unlike Save it never
// overwrites: an existing newPath yields a *domain.ConflictError.
func (s *Store) Rename(ctx context.Context, id domain.Identity, oldPath, newPath string) error {
	if err := s.authorize(ctx, id, auth.OpRename, oldPath); err != nil {
		return err
	}
	if oldPath == newPath {
		return nil
	}
	if !s.classifier.IsDiagram(newPath) {
		return &domain.InvalidPathError{Path: newPath, Reason: "not a diagram file"}
	}

	if _, err := os.Lstat(oldPath); err != nil {
		return classifyIOError(oldPath, err)
	}
	if err := os.MkdirAll(filepath.Dir(newPath), 0o755); err != nil {
		return fmt.Errorf("create target dir: %w", err)
	}
	if err := moveNoClobber(oldPath, newPath); err != nil {
		return err
	}
	s.logger.WithFields(logrus.Fields{"from": oldPath, "to": newPath}).Debug("diagram renamed")
	return nil
}

func (s *Store) authorize(ctx context.Context, id domain.Identity, op auth.Operation, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.authz.Authorize(ctx, id, op, path)
}

// writeFileAtomic replaces path with payload via temp file, fsync and rename.
func writeFileAtomic(path string, payload []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create parent dir: %w", err)
	}

	mode := fs.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		if info.IsDir() {
			return &domain.InvalidPathError{Path: path, Reason: "is a directory"}
		}
		mode = info.Mode().Perm()
	}

	// The leading dot keeps half-written temp files out of discovery.
	tmpFile, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		tmpFile.Close()
		os.Remove(tmpFile.Name())
	}()

	if _, err := tmpFile.Write(payload); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmpFile.Chmod(mode); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpFile.Name(), path); err != nil {
		return fmt.Errorf("replace diagram file: %w", err)
	}
	return nil
}

// moveNoClobber hard-links then unlinks, which fails atomically when the
// target exists. File systems without hard links fall back to a checked rename.
func moveNoClobber(oldPath, newPath string) error {
	err := os.Link(oldPath, newPath)
	switch {
	case err == nil:
		if err := os.Remove(oldPath); err != nil {
			return fmt.Errorf("remove renamed source: %w", err)
		}
		return nil
	case errors.Is(err, fs.ErrExist):
		return &domain.ConflictError{Paths: []string{newPath}, Exists: true}
	}

	if _, statErr := os.Lstat(newPath); statErr == nil {
		return &domain.ConflictError{Paths: []string{newPath}, Exists: true}
	}
	if err := os.Rename(oldPath, newPath); err != nil {
		return fmt.Errorf("rename diagram file: %w", err)
	}
	return nil
}

func classifyIOError(path string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return &domain.NotFoundError{Path: path}
	case errors.Is(err, fs.ErrPermission):
		return &domain.NotReadableError{Path: path, Err: err}
	}
	if info, statErr := os.Stat(path); statErr == nil && info.IsDir() {
		return &domain.InvalidPathError{Path: path, Reason: "is a directory"}
	}
	return &domain.NotReadableError{Path: path, Err: err}
}
