// Package model defines the data structures shared by the pipeline, the
// service layer and the API.
package model

import "strings"

// SourceUnit is one submitted compilation unit: a simple class name, the
// package it lives in and its raw source text.
//
// The qualified name (Package + "." + Name) drives both the file location
// under the workspace source root and the class the runtime launches, so the
// Package here must match the package declaration inside Text.
type SourceUnit struct {
	Name    string `json:"name"    yaml:"name"`
	Package string `json:"package" yaml:"package"`
	Text    string `json:"-"       yaml:"-"`
}

// QualifiedName returns "pkg.Name", or just Name for the default package.
func (u SourceUnit) QualifiedName() string {
	if u.Package == "" {
		return u.Name
	}
	return u.Package + "." + u.Name
}

// WithDefaultPackage returns a copy with Package set to pkg when empty.
func (u SourceUnit) WithDefaultPackage(pkg string) SourceUnit {
	if strings.TrimSpace(u.Package) == "" {
		u.Package = pkg
	}
	return u
}
