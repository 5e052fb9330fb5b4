// Package config loads sandbox.yaml with environment overrides.
//
// Lookup order, lowest to highest precedence: built-in defaults, the config
// file (./sandbox.yaml, then $HOME/.sandbox/sandbox.yaml, or the file given
// with --config), then SANDBOX_* environment variables where a dot in the key
// becomes an underscore (SANDBOX_SERVER_PORT overrides server.port).
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// SlogLevel parses Level, falling back to info.
func (c LogConfig) SlogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.Level)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

type WorkspaceConfig struct {
	// BaseDir holds one workspace per submission, named by run id.
	BaseDir string `mapstructure:"base_dir"`
	// DemoDir is the fixed workspace of the demo command.
	DemoDir string `mapstructure:"demo_dir"`
}

type PipelineConfig struct {
	Package         string        `mapstructure:"package"`
	GroupID         string        `mapstructure:"group_id"`
	Version         string        `mapstructure:"version"`
	JavaRelease     string        `mapstructure:"java_release"`
	MavenOpts       string        `mapstructure:"maven_opts"`
	ValidateTimeout time.Duration `mapstructure:"validate_timeout"`
	ExecuteTimeout  time.Duration `mapstructure:"execute_timeout"`
	PackageTimeout  time.Duration `mapstructure:"package_timeout"`
	RunTimeout      time.Duration `mapstructure:"run_timeout"`
}

type ToolchainConfig struct {
	Compiler    string   `mapstructure:"compiler"`
	Launcher    string   `mapstructure:"launcher"`
	BuildTool   string   `mapstructure:"build_tool"`
	PackageArgs []string `mapstructure:"package_args"`
}

const (
	ExecutorLocal  = "local"
	ExecutorDocker = "docker"
)

type DockerConfig struct {
	Image       string  `mapstructure:"image"`
	MemoryMB    int64   `mapstructure:"memory_mb"`
	CPUs        float64 `mapstructure:"cpus"`
	PoolSize    int     `mapstructure:"pool_size"`
	NetworkMode string  `mapstructure:"network_mode"`
	User        string  `mapstructure:"user"`
}

type ExecutorConfig struct {
	// Kind is "local" (host processes) or "docker" (pre-warmed containers).
	Kind   string       `mapstructure:"kind"`
	Docker DockerConfig `mapstructure:"docker"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type StorageConfig struct {
	DBPath string `mapstructure:"db_path"`
}

type AuthConfig struct {
	// JWTSecret enables bearer-token checks on the run routes when set.
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

type PublishConfig struct {
	// Endpoint is host[:port] without a scheme. Empty disables publishing.
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Prefix    string `mapstructure:"prefix"`
}

// Enabled reports whether artifact publishing is configured.
func (c PublishConfig) Enabled() bool {
	return c.Endpoint != ""
}

type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Workspace WorkspaceConfig `mapstructure:"workspace"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Toolchain ToolchainConfig `mapstructure:"toolchain"`
	Executor  ExecutorConfig  `mapstructure:"executor"`
	Server    ServerConfig    `mapstructure:"server"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Publish   PublishConfig   `mapstructure:"publish"`
}

// Load reads the configuration. path, when non-empty, names the config file
// explicitly and must exist; otherwise a missing sandbox.yaml is fine and
// defaults apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("SANDBOX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("sandbox")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.sandbox")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	home, _ := os.UserHomeDir()

	v.SetDefault("log.level", "info")

	v.SetDefault("workspace.base_dir", filepath.Join(os.TempDir(), "java-sandbox"))
	v.SetDefault("workspace.demo_dir", "/tmp/java-sandbox-test")

	v.SetDefault("pipeline.package", "com.sandbox.components")
	v.SetDefault("pipeline.group_id", "com.sandbox.components")
	v.SetDefault("pipeline.version", "1.0.0")
	v.SetDefault("pipeline.java_release", "8")
	v.SetDefault("pipeline.maven_opts", "-Xmx512m")
	v.SetDefault("pipeline.validate_timeout", 0)
	v.SetDefault("pipeline.execute_timeout", 30*time.Second)
	v.SetDefault("pipeline.package_timeout", 0)
	v.SetDefault("pipeline.run_timeout", 30*time.Second)

	v.SetDefault("toolchain.compiler", "javac")
	v.SetDefault("toolchain.launcher", "java")
	v.SetDefault("toolchain.build_tool", "mvn")
	v.SetDefault("toolchain.package_args", []string{"-B", "clean", "package"})

	v.SetDefault("executor.kind", ExecutorLocal)
	v.SetDefault("executor.docker.image", "maven:3.9-eclipse-temurin-17")
	v.SetDefault("executor.docker.memory_mb", 1024)
	v.SetDefault("executor.docker.cpus", 1.0)
	v.SetDefault("executor.docker.pool_size", 2)
	v.SetDefault("executor.docker.network_mode", "bridge")
	v.SetDefault("executor.docker.user", "")

	v.SetDefault("server.port", 8080)
	v.SetDefault("storage.db_path", filepath.Join(home, ".sandbox", "sandbox.db"))

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", 24*time.Hour)

	v.SetDefault("publish.endpoint", "")
	v.SetDefault("publish.access_key", "")
	v.SetDefault("publish.secret_key", "")
	v.SetDefault("publish.bucket", "sandbox-artifacts")
	v.SetDefault("publish.region", "")
	v.SetDefault("publish.use_ssl", false)
	v.SetDefault("publish.prefix", "runs")
}

// Validate rejects settings no component could start with.
func (c *Config) Validate() error {
	switch c.Executor.Kind {
	case ExecutorLocal, ExecutorDocker:
	default:
		return fmt.Errorf("config: executor.kind must be %q or %q, got %q", ExecutorLocal, ExecutorDocker, c.Executor.Kind)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d out of range", c.Server.Port)
	}
	if c.Workspace.BaseDir == "" {
		return errors.New("config: workspace.base_dir is required")
	}
	for name, d := range map[string]time.Duration{
		"validate_timeout": c.Pipeline.ValidateTimeout,
		"execute_timeout":  c.Pipeline.ExecuteTimeout,
		"package_timeout":  c.Pipeline.PackageTimeout,
		"run_timeout":      c.Pipeline.RunTimeout,
	} {
		if d < 0 {
			return fmt.Errorf("config: pipeline.%s must not be negative", name)
		}
	}
	return nil
}
