package domain

import (
	"fmt"
	"sort"
	"strings"

	"github.com/containerd/errdefs"
)

// Error kinds surfaced by the explorer. Each kind maps onto an errdefs class,
// so callers can use either errors.As with the concrete type or errdefs.IsXxx.
type (
	// InvalidPathError indicates an empty, malformed or unusable pathspec.
	InvalidPathError struct {
		Path   string
		Reason string
	}

	// NotFoundError indicates a missing file or an unknown diagram name.
	NotFoundError struct {
		Path string
		Name string
	}

	// NotReadableError indicates an existing entry that cannot be read.
	NotReadableError struct {
		Path string
		Err  error
	}

	// ForbiddenError indicates the identity lacks the claims for an operation.
	ForbiddenError struct {
		Operation string
		Path      string
	}

	// UnauthorizedError indicates a missing or rejected credential.
	UnauthorizedError struct {
		Operation string
		Reason    string
	}

	// ParseError wraps a failure of the content format collaborator.
	ParseError struct {
		Path string
		Err  error
	}
)

func (e *InvalidPathError) Error() string {
	if e.Path == "" {
		return "invalid path: " + e.Reason
	}
	return fmt.Sprintf("invalid path %q: %s", e.Path, e.Reason)
}

func (e *NotFoundError) Error() string {
	switch {
	case e.Name != "" && e.Path != "":
		return fmt.Sprintf("diagram %q not found in %s", e.Name, e.Path)
	case e.Name != "":
		return fmt.Sprintf("diagram %q not found", e.Name)
	default:
		return fmt.Sprintf("%s: not found", e.Path)
	}
}

func (e *NotReadableError) Error() string {
	return fmt.Sprintf("%s: not readable: %v", e.Path, e.Err)
}

func (e *NotReadableError) Unwrap() error { return e.Err }

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("%s %s: forbidden", e.Operation, e.Path)
}

func (e *UnauthorizedError) Error() string {
	if e.Reason == "" {
		return e.Operation + ": unauthorized"
	}
	return fmt.Sprintf("%s: unauthorized: %s", e.Operation, e.Reason)
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func (e *InvalidPathError) Is(target error) bool  { return target == errdefs.ErrInvalidArgument }
func (e *NotFoundError) Is(target error) bool     { return target == errdefs.ErrNotFound }
func (e *NotReadableError) Is(target error) bool  { return target == errdefs.ErrFailedPrecondition }
func (e *ForbiddenError) Is(target error) bool    { return target == errdefs.ErrPermissionDenied }
func (e *UnauthorizedError) Is(target error) bool { return target == errdefs.ErrUnauthenticated }
func (e *ParseError) Is(target error) bool        { return target == errdefs.ErrDataLoss }

// ConflictError reports a duplicate diagram name or an occupied rename target.
type ConflictError struct {
	Name  string
	Paths []string
	// Exists is set when the conflict is an already existing target file.
	Exists bool
}

func (e *ConflictError) Error() string {
	if e.Exists {
		return fmt.Sprintf("%s: already exists", strings.Join(e.Paths, ", "))
	}
	return fmt.Sprintf("duplicate diagram name %q: %s", e.Name, strings.Join(e.Paths, ", "))
}

func (e *ConflictError) Is(target error) bool {
	return target == errdefs.ErrConflict || (e.Exists && target == errdefs.ErrAlreadyExists)
}

// FileFailure is the outcome of one failed item in a multi-file operation.
type FileFailure struct {
	Path string
	Err  error
}

func (f FileFailure) String() string { return fmt.Sprintf("%s: %v", f.Path, f.Err) }

// PartialLoadError is returned next to a usable Solution when some files could not be loaded.
type PartialLoadError struct {
	Loaded   []Diagram
	Failures []FileFailure
}

func (e *PartialLoadError) Error() string {
	return fmt.Sprintf("loaded %d diagram(s), %d failed: %s", len(e.Loaded), len(e.Failures), joinFailures(e.Failures))
}

func (e *PartialLoadError) Unwrap() []error { return failureErrors(e.Failures) }

// PartialSaveError reports which diagrams were written and which were not.
type PartialSaveError struct {
	Saved    []string
	Failures []FileFailure
}

func (e *PartialSaveError) Error() string {
	return fmt.Sprintf("saved %d diagram(s), %d failed: %s", len(e.Saved), len(e.Failures), joinFailures(e.Failures))
}

func (e *PartialSaveError) Unwrap() []error { return failureErrors(e.Failures) }

func joinFailures(failures []FileFailure) string {
	parts := make([]string, len(failures))
	for i, f := range failures {
		parts[i] = f.String()
	}
	sort.Strings(parts)
	return strings.Join(parts, "; ")
}

func failureErrors(failures []FileFailure) []error {
	errs := make([]error, 0, len(failures))
	for _, f := range failures {
		errs = append(errs, f.Err)
	}
	return errs
}
