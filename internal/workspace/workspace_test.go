package workspace

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/build-sandbox/internal/apperror"
)

func newTestWorkspace(t *testing.T) *Workspace {
	t.Helper()
	ws, err := New(t.TempDir())
	require.NoError(t, err)
	return ws
}

func touch(t *testing.T, dir, name string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
}

func TestNew_CreatesDerivedDirectories(t *testing.T) {
	root := t.TempDir()

	ws, err := New(root)
	require.NoError(t, err)

	for _, dir := range []string{ws.SourceRoot(), ws.OutputRoot()} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir(), "%s should be a directory", dir)
	}
	assert.Equal(t, filepath.Join(root, "src", "main", "java"), ws.SourceRoot())
	assert.Equal(t, filepath.Join(root, "target"), ws.OutputRoot())
}

func TestNew_IsIdempotent(t *testing.T) {
	root := t.TempDir()

	first, err := New(root)
	require.NoError(t, err)

	// A file left behind by the first "run" must survive the second New.
	touch(t, first.OutputRoot(), "keep.jar")

	second, err := New(root)
	require.NoError(t, err)

	assert.Equal(t, first.Root(), second.Root())
	assert.FileExists(t, filepath.Join(second.OutputRoot(), "keep.jar"))
}

func TestNew_FileInTheWay(t *testing.T) {
	root := t.TempDir()
	// "target" exists as a regular file, so the output root cannot be created.
	touch(t, root, "target")

	_, err := New(root)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperror.ErrFilesystem), "got %v", err)
}

func TestNew_EmptyRoot(t *testing.T) {
	_, err := New("  ")
	assert.True(t, errors.Is(err, apperror.ErrValidation))
}

func TestResolveSourcePath(t *testing.T) {
	ws := newTestWorkspace(t)

	tests := []struct {
		name      string
		qualified string
		want      string
	}{
		{"default package", "Main", filepath.Join(ws.SourceRoot(), "Main.java")},
		{"one segment package", "app.Main", filepath.Join(ws.SourceRoot(), "app", "Main.java")},
		{
			name:      "nested package",
			qualified: "com.sandbox.components.TestComponent",
			want:      filepath.Join(ws.SourceRoot(), "com", "sandbox", "components", "TestComponent.java"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ws.ResolveSourcePath(tt.qualified))
		})
	}
}

func TestResolveSourcePath_NoIO(t *testing.T) {
	ws := newTestWorkspace(t)

	path := ws.ResolveSourcePath("x.y.Z")
	assert.NoFileExists(t, path)
	assert.NoDirExists(t, filepath.Dir(path))
}

func TestWriteSource(t *testing.T) {
	ws := newTestWorkspace(t)

	path, err := ws.WriteSource("com.acme.Widget", "class Widget {}")
	require.NoError(t, err)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "class Widget {}", string(got))
	assert.Equal(t, ws.ResolveSourcePath("com.acme.Widget"), path)
}

func TestFindOutputArtifact_SkipsIntermediateCopies(t *testing.T) {
	ws := newTestWorkspace(t)
	for _, name := range []string{"a.jar", "original-a.jar", "a.txt"} {
		touch(t, ws.OutputRoot(), name)
	}

	path, ok := ws.FindOutputArtifact(IsPackagedArtifact)
	require.True(t, ok)
	assert.Equal(t, "a.jar", filepath.Base(path))
}

func TestFindOutputArtifact_LexicographicTieBreak(t *testing.T) {
	ws := newTestWorkspace(t)
	for _, name := range []string{"zeta-1.0.jar", "alpha-1.0.jar"} {
		touch(t, ws.OutputRoot(), name)
	}

	path, ok := ws.FindOutputArtifact(IsPackagedArtifact)
	require.True(t, ok)
	assert.Equal(t, "alpha-1.0.jar", filepath.Base(path))
}

func TestFindOutputArtifact_IgnoresDirectories(t *testing.T) {
	ws := newTestWorkspace(t)
	require.NoError(t, os.Mkdir(filepath.Join(ws.OutputRoot(), "classes.jar"), 0o755))

	_, ok := ws.FindOutputArtifact(IsPackagedArtifact)
	assert.False(t, ok)
}

func TestFindOutputArtifact_EmptyOrMissing(t *testing.T) {
	ws := newTestWorkspace(t)

	_, ok := ws.FindOutputArtifact(IsPackagedArtifact)
	assert.False(t, ok, "empty output root")

	require.NoError(t, os.RemoveAll(ws.OutputRoot()))
	_, ok = ws.FindOutputArtifact(IsPackagedArtifact)
	assert.False(t, ok, "missing output root")
}

func TestIsPackagedArtifact(t *testing.T) {
	tests := map[string]bool{
		"TestComponent-1.0.0.jar":          true,
		"original-TestComponent-1.0.0.jar": false,
		"TestComponent-1.0.0.jar.sha1":     false,
		"classes":                          false,
	}
	for name, want := range tests {
		assert.Equal(t, want, IsPackagedArtifact(name), name)
	}
}
