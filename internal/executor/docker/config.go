package docker

// Config holds the configuration for container execution.
type Config struct {
	// Image must carry the whole toolchain (javac, java, mvn).
	Image string
	// MemoryLimit is the maximum amount of memory the container can use (in bytes).
	MemoryLimit int64
	// CPULimit is the number of CPUs the container can use.
	CPULimit float64
	// PoolSize is the number of pre-warmed containers to maintain.
	PoolSize int
	// MountRoot is the host directory that holds the workspaces. It is bind
	// mounted at the same path inside every container, so workspace paths
	// mean the same thing on both sides.
	MountRoot string
	// NetworkMode is passed to the container host config. The package stage
	// resolves plugins from Maven Central, so "none" only works with a
	// pre-seeded repository in the image.
	NetworkMode string
	// User runs the exec'd commands; empty keeps the image default.
	User string
}

// DefaultConfig provides defaults for a JDK + Maven sandbox.
func DefaultConfig() Config {
	return Config{
		Image: "maven:3.9-eclipse-temurin-17",
		// 1 GB memory limit: javac plus a Maven JVM at -Xmx512m
		MemoryLimit: 1024 * 1024 * 1024,
		CPULimit:    1.0,
		PoolSize:    2,
		NetworkMode: "bridge",
	}
}
