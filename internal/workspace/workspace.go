// Package workspace owns the directory tree a single pipeline run reads from
// and writes to.
//
// LAYOUT:
//
//	<root>/
//	  src/main/java/   source root: submitted units and their .class files
//	  target/          output root: whatever the build tool produces
//	  pom.xml          written by the scaffold stage
//	  jenkins-job.xml  written after a successful run
//
// The layout follows the Maven standard directory layout, so the build tool
// needs no extra configuration to find the sources or to place the artifact.
//
// A Workspace is not safe for concurrent pipeline runs: two runs against the
// same root write the same files. Callers serialize, or give every run its
// own root.
package workspace

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/sakif/build-sandbox/internal/apperror"
)

const (
	// SourceExt is appended to the last segment of a qualified name.
	SourceExt = ".java"
	// ArtifactExt is the packaged artifact extension.
	ArtifactExt = ".jar"
	// IntermediateMarker marks the pre-shading copy some Maven plugins leave
	// next to the real artifact.
	IntermediateMarker = "original-"
)

// Layout names the derived directories relative to the root.
type Layout struct {
	SourceDir string
	OutputDir string
}

// DefaultLayout is the Maven layout.
func DefaultLayout() Layout {
	return Layout{
		SourceDir: filepath.Join("src", "main", "java"),
		OutputDir: "target",
	}
}

// Workspace is a root directory plus the source and output roots derived from
// it. It holds no other state.
type Workspace struct {
	root       string
	sourceRoot string
	outputRoot string
}

// New creates (or reuses) a workspace at root with the default layout.
func New(root string) (*Workspace, error) {
	return NewWithLayout(root, DefaultLayout())
}

// NewWithLayout creates both derived directories eagerly. Calling it again on
// the same root is a no-op. A regular file sitting where a directory should
// be, or a permission problem, is reported as an ErrFilesystem AppError.
func NewWithLayout(root string, layout Layout) (*Workspace, error) {
	if strings.TrimSpace(root) == "" {
		return nil, apperror.ValidationFailed("root", "workspace root is required")
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, apperror.Filesystem("resolve", root, err)
	}

	ws := &Workspace{
		root:       abs,
		sourceRoot: filepath.Join(abs, layout.SourceDir),
		outputRoot: filepath.Join(abs, layout.OutputDir),
	}

	for _, dir := range []string{ws.sourceRoot, ws.outputRoot} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, apperror.Filesystem("mkdir", dir, err)
		}
	}

	return ws, nil
}

// Root is the absolute workspace directory. Every process the pipeline starts
// uses it as working directory.
func (w *Workspace) Root() string { return w.root }

// SourceRoot is the classpath root for source-level execution.
func (w *Workspace) SourceRoot() string { return w.sourceRoot }

// OutputRoot is where the build tool leaves the packaged artifact.
func (w *Workspace) OutputRoot() string { return w.outputRoot }

// Path joins elements onto the workspace root.
func (w *Workspace) Path(elem ...string) string {
	return filepath.Join(append([]string{w.root}, elem...)...)
}

// ResolveSourcePath maps a dotted qualified name to its file under the source
// root: every segment before the last becomes a directory, the last one
// becomes <Name>.java. It does no I/O.
//
//	com.acme.Widget -> <sourceRoot>/com/acme/Widget.java
func (w *Workspace) ResolveSourcePath(qualifiedName string) string {
	segments := strings.Split(qualifiedName, ".")
	last := len(segments) - 1
	segments[last] += SourceExt
	return filepath.Join(append([]string{w.sourceRoot}, segments...)...)
}

// WriteSource writes text to the resolved path of qualifiedName, creating the
// package directories first, and returns that path.
func (w *Workspace) WriteSource(qualifiedName, text string) (string, error) {
	path := w.ResolveSourcePath(qualifiedName)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", apperror.Filesystem("mkdir", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return "", apperror.Filesystem("write", path, err)
	}
	return path, nil
}

// WriteFile writes data to a path relative to the root.
func (w *Workspace) WriteFile(rel string, data []byte) (string, error) {
	path := w.Path(rel)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", apperror.Filesystem("write", path, err)
	}
	return path, nil
}

// MkdirAll creates a directory relative to the root.
func (w *Workspace) MkdirAll(rel string) error {
	path := w.Path(rel)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return apperror.Filesystem("mkdir", path, err)
	}
	return nil
}

// FindOutputArtifact returns the absolute path of the first regular file
// directly under the output root whose name satisfies match.
//
// Entries are visited in lexicographic order (os.ReadDir sorts by name), so
// when several files match the lexicographically smallest wins. A missing or
// empty output root is "not found", not an error: the build tool's clean goal
// removes the directory before it fails.
func (w *Workspace) FindOutputArtifact(match func(name string) bool) (string, bool) {
	entries, err := os.ReadDir(w.outputRoot)
	if err != nil {
		return "", false
	}

	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		if match(entry.Name()) {
			return filepath.Join(w.outputRoot, entry.Name()), true
		}
	}
	return "", false
}

// IsPackagedArtifact matches a finished .jar and rejects the intermediate
// "original-" copy.
func IsPackagedArtifact(name string) bool {
	return strings.HasSuffix(name, ArtifactExt) && !strings.Contains(name, IntermediateMarker)
}

// Exists reports whether rel exists under the root.
func (w *Workspace) Exists(rel string) bool {
	_, err := os.Stat(w.Path(rel))
	return err == nil
}
