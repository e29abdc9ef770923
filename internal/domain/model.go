// Package domain holds the solution explorer's data model and error kinds.
package domain

import (
	"bytes"
	"slices"
	"strings"
)

// Diagram is one named document backed by a single file.
// Content is opaque to the explorer; only the content format collaborator interprets it.
type Diagram struct {
	Name    string `json:"name" validate:"required,diagramname"`
	Path    string `json:"path"`
	Content []byte `json:"content"`
}

// Clone returns a copy that shares no memory with d.
func (d Diagram) Clone() Diagram {
	d.Content = bytes.Clone(d.Content)
	return d
}

// Equal reports whether two diagrams have the same name, path and content.
func (d Diagram) Equal(other Diagram) bool {
	return d.Name == other.Name && d.Path == other.Path && bytes.Equal(d.Content, other.Content)
}

// Solution is the set of diagrams found under a root directory.
// Names are unique within a solution.
type Solution struct {
	RootPath string    `json:"rootPath"`
	Diagrams []Diagram `json:"diagrams"`
}

// Clone deep-copies the solution.
func (s Solution) Clone() Solution {
	out := Solution{RootPath: s.RootPath, Diagrams: make([]Diagram, len(s.Diagrams))}
	for i, d := range s.Diagrams {
		out.Diagrams[i] = d.Clone()
	}
	return out
}

// DiagramByName returns the diagram with the given name.
func (s Solution) DiagramByName(name string) (Diagram, bool) {
	for _, d := range s.Diagrams {
		if d.Name == name {
			return d, true
		}
	}
	return Diagram{}, false
}

// SortDiagrams orders diagrams by name.
func SortDiagrams(diagrams []Diagram) {
	slices.SortFunc(diagrams, func(a, b Diagram) int {
		return strings.Compare(a.Name, b.Name)
	})
}

// DuplicateNames returns, per duplicated name, every path that claims it.
func DuplicateNames(diagrams []Diagram) map[string][]string {
	byName := make(map[string][]string, len(diagrams))
	for _, d := range diagrams {
		byName[d.Name] = append(byName[d.Name], d.Path)
	}
	dups := make(map[string][]string)
	for name, paths := range byName {
		if len(paths) > 1 {
			dups[name] = paths
		}
	}
	return dups
}

// Identity is the caller's credential. The explorer never inspects it; it is
// handed to the authorization collaborator as-is.
type Identity struct {
	Subject string   `json:"subject,omitempty"`
	Token   string   `json:"-"`
	Claims  []string `json:"claims,omitempty"`
}

// IsAnonymous reports whether the identity carries no credential at all.
func (id Identity) IsAnonymous() bool {
	return id.Token == "" && id.Subject == ""
}

// HasClaim reports whether the identity carries the given claim.
func (id Identity) HasClaim(claim string) bool {
	return slices.Contains(id.Claims, claim)
}
