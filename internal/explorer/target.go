package explorer

// Target selects the pathspec an operation applies to.
// The zero value is CurrentPath.
type Target struct {
	explicit string
}

// CurrentPath targets the session's own pathspec, or for diagrams their recorded source path.
func CurrentPath() Target { return Target{} }

// ExplicitPath targets the given pathspec instead.
func ExplicitPath(pathspec string) Target { return Target{explicit: pathspec} }

// IsExplicit reports whether an explicit pathspec was given.
func (t Target) IsExplicit() bool { return t.explicit != "" }

// Path returns the explicit pathspec, or "" for CurrentPath.
func (t Target) Path() string { return t.explicit }

func (t Target) String() string {
	if t.explicit == "" {
		return "<current>"
	}
	return t.explicit
}
