package pipeline

import (
	"io"
	"time"
)

// Toolchain names the external binaries the stages invoke.
type Toolchain struct {
	// Compiler performs the syntax/compile check: `<Compiler> <file>`.
	Compiler string
	// Launcher runs classes and jars: `<Launcher> -cp <dir> <class>` and
	// `<Launcher> -jar <path>`.
	Launcher string
	// BuildTool packages the workspace: `<BuildTool> <PackageArgs...>`.
	BuildTool   string
	PackageArgs []string
}

// DefaultToolchain is the JDK + Maven toolchain.
func DefaultToolchain() Toolchain {
	return Toolchain{
		Compiler:  "javac",
		Launcher:  "java",
		BuildTool: "mvn",
		// -B keeps the streamed log free of progress bars and colour codes.
		PackageArgs: []string{"-B", "clean", "package"},
	}
}

// Config holds everything a Pipeline needs besides its workspace and runner.
type Config struct {
	// Package is used for units submitted without one.
	Package string
	GroupID string
	// Version is the artifact version written into pom.xml.
	Version     string
	JavaRelease string
	// MavenOpts is exported as MAVEN_OPTS to the package stage.
	MavenOpts string

	// Zero means no deadline.
	ValidateTimeout time.Duration
	ExecuteTimeout  time.Duration
	PackageTimeout  time.Duration
	RunTimeout      time.Duration

	Toolchain Toolchain

	// Progress receives stage banners and the package stage's build log, one
	// line per Write. Nil discards them.
	Progress io.Writer
}

// DefaultConfig mirrors the original sandbox: 30 second deadlines on the two
// stages that run submitted code, none on compilation or packaging.
func DefaultConfig() Config {
	return Config{
		Package:        "com.sandbox.components",
		GroupID:        "com.sandbox.components",
		Version:        "1.0.0",
		JavaRelease:    "8",
		MavenOpts:      "-Xmx512m",
		ExecuteTimeout: 30 * time.Second,
		RunTimeout:     30 * time.Second,
		Toolchain:      DefaultToolchain(),
	}
}
