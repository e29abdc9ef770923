package diagram

import (
	"path/filepath"
	"strings"
)

// DefaultExtension is the file extension of BPMN diagrams.
const DefaultExtension = ".bpmn"

// Classifier decides which files are diagrams and how they are named.
type Classifier interface {
	IsDiagram(path string) bool
	NameOf(path string) string
	DefaultExtension() string
}

// ExtensionClassifier recognizes diagrams by file extension, case-insensitively.
type ExtensionClassifier struct {
	exts []string
}

// NewExtensionClassifier returns a classifier for the given extensions.
// The first extension is used for diagrams saved without an explicit file name.
func NewExtensionClassifier(exts ...string) *ExtensionClassifier {
	if len(exts) == 0 {
		exts = []string{DefaultExtension}
	}
	normalized := make([]string, 0, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		normalized = append(normalized, ext)
	}
	return &ExtensionClassifier{exts: normalized}
}

func (c *ExtensionClassifier) IsDiagram(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return false
	}
	for _, e := range c.exts {
		if e == ext {
			return true
		}
	}
	return false
}

// NameOf strips the directory and the last extension.
func (c *ExtensionClassifier) NameOf(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func (c *ExtensionClassifier) DefaultExtension() string {
	if len(c.exts) == 0 {
		return DefaultExtension
	}
	return c.exts[0]
}
