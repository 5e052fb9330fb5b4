package docker

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/build-sandbox/internal/apperror"
	"github.com/sakif/build-sandbox/internal/executor"
)

func TestLaunchFailed(t *testing.T) {
	tests := []struct {
		name     string
		exitCode int
		output   string
		want     bool
	}{
		{
			name:     "binary missing",
			exitCode: 127,
			output:   `OCI runtime exec failed: exec failed: unable to start container process: exec: "javac": executable file not found in $PATH: unknown`,
			want:     true,
		},
		{
			name:     "not executable",
			exitCode: 126,
			output:   `exec: "/ws/run.sh": permission denied`,
			want:     true,
		},
		{name: "program exit 127 without runtime message", exitCode: 127, output: "custom failure", want: false},
		{name: "plain failure", exitCode: 1, output: "error: ';' expected", want: false},
		{name: "success", exitCode: 0, output: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, launchFailed(tt.exitCode, tt.output))
		})
	}
}

func TestEnvList_Sorted(t *testing.T) {
	assert.Nil(t, envList(nil))
	assert.Equal(t,
		[]string{"A=1", "MAVEN_OPTS=-Xmx512m"},
		envList(map[string]string{"MAVEN_OPTS": "-Xmx512m", "A": "1"}),
	)
}

func TestNew_RequiresMountRoot(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	_, err := New(DefaultConfig(), logger)
	assert.Error(t, err)
}

// TestDockerExecutor talks to a real daemon and pulls the toolchain image.
func TestDockerExecutor(t *testing.T) {
	if os.Getenv("SANDBOX_DOCKER_TESTS") == "" {
		t.Skip("set SANDBOX_DOCKER_TESTS=1 to run against a local docker daemon")
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	root := t.TempDir()
	cfg := DefaultConfig()
	cfg.PoolSize = 1
	cfg.MountRoot = root

	exec, err := New(cfg, logger)
	require.NoError(t, err, "Should initialize docker executor without error")
	defer exec.Close()

	t.Run("successful execution in the mounted workspace", func(t *testing.T) {
		require.NoError(t, os.WriteFile(filepath.Join(root, "marker"), []byte("here"), 0o644))

		res, err := exec.Run(context.Background(), executor.ProcessSpec{
			Command: "cat",
			Args:    []string{"marker"},
			Dir:     root,
		})
		require.NoError(t, err)
		assert.Equal(t, 0, res.ExitCode)
		assert.Equal(t, "here", res.Output)
	})

	t.Run("missing binary is a launch error", func(t *testing.T) {
		_, err := exec.Run(context.Background(), executor.ProcessSpec{
			Command: "no-such-binary",
			Dir:     root,
		})
		require.Error(t, err)
		assert.True(t, errors.Is(err, apperror.ErrLaunch))
	})

	t.Run("deadline kills the exec", func(t *testing.T) {
		res, err := executor.RunWithDeadline(context.Background(), exec, executor.ProcessSpec{
			Command: "sleep",
			Args:    []string{"60"},
			Dir:     root,
		}, 2*time.Second)
		require.NoError(t, err)
		assert.True(t, res.TimedOut)
		assert.Less(t, res.Duration, 15*time.Second)
	})
}
