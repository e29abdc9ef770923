package diagram

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("diagramname", func(fl validator.FieldLevel) bool {
		return ValidName(fl.Field().String())
	})
	return v
}

// ValidName reports whether name can be used as a diagram file name.
// Names starting with a dot are rejected because discovery skips hidden files.
func ValidName(name string) bool {
	if strings.TrimSpace(name) == "" || name == ".." {
		return false
	}
	if strings.HasPrefix(name, ".") {
		return false
	}
	return !strings.ContainsAny(name, "/\\\x00")
}
