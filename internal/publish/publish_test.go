package publish

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		Endpoint:  "localhost:9000",
		AccessKey: "minio",
		SecretKey: "minio123",
		Bucket:    "sandbox-artifacts",
		Prefix:    "runs",
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing endpoint", mutate: func(c *Config) { c.Endpoint = " " }, wantErr: true},
		{name: "endpoint with scheme", mutate: func(c *Config) { c.Endpoint = "http://localhost:9000" }, wantErr: true},
		{name: "missing secret", mutate: func(c *Config) { c.SecretKey = "" }, wantErr: true},
		{name: "missing bucket", mutate: func(c *Config) { c.Bucket = "" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNew_DoesNotDial(t *testing.T) {
	p, err := New(validConfig(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	assert.NotNil(t, p)
}

func TestObjectKey(t *testing.T) {
	assert.Equal(t, "runs/abc/TestComponent-1.0.0.jar", ObjectKey("/runs/", "abc", "/ws/abc/target/TestComponent-1.0.0.jar"))
	assert.Equal(t, "abc/jenkins-job.xml", ObjectKey("", "abc", "/ws/abc/jenkins-job.xml"))
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "application/java-archive", ContentType("a.JAR"))
	assert.Equal(t, "application/xml", ContentType("jenkins-job.xml"))
	assert.Equal(t, "application/octet-stream", ContentType("README"))
}
