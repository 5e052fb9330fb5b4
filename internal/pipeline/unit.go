package pipeline

import (
	"strings"
	"unicode"

	"github.com/sakif/build-sandbox/internal/apperror"
	"github.com/sakif/build-sandbox/internal/model"
)

// ValidateUnit checks that unit names a class the toolchain can place and
// launch: Name a single identifier, Package a dot-separated identifier list.
func ValidateUnit(unit model.SourceUnit) error {
	if unit.Name == "" {
		return apperror.ValidationFailed("name", "class name is required")
	}
	if !isIdentifier(unit.Name) {
		return apperror.ValidationFailed("name", "class name must be a single identifier without dots or path separators")
	}
	if unit.Package == "" {
		return nil
	}
	for _, seg := range strings.Split(unit.Package, ".") {
		if !isIdentifier(seg) {
			return apperror.ValidationFailed("package", "package must be dot-separated identifiers")
		}
	}
	return nil
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || r == '$' || unicode.IsLetter(r):
		case i > 0 && unicode.IsDigit(r):
		default:
			return false
		}
	}
	return true
}
