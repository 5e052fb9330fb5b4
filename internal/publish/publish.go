// Package publish uploads packaged artifacts and job descriptors to an
// S3-compatible object store.
package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type Config struct {
	// Endpoint is host[:port]; the scheme comes from UseSSL.
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
	// Prefix is prepended to every object key.
	Prefix string
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Endpoint) == "" {
		return errors.New("publish: endpoint is required")
	}
	if strings.Contains(c.Endpoint, "://") {
		return errors.New("publish: endpoint must be host[:port] without a scheme")
	}
	if strings.TrimSpace(c.AccessKey) == "" || strings.TrimSpace(c.SecretKey) == "" {
		return errors.New("publish: access key and secret key are required")
	}
	if strings.TrimSpace(c.Bucket) == "" {
		return errors.New("publish: bucket is required")
	}
	return nil
}

// Publisher writes run outputs under <prefix>/<run-id>/<file name>.
type Publisher struct {
	client *minio.Client
	config Config
	logger *slog.Logger
}

// New creates a Publisher. It does not contact the server; EnsureBucket does.
func New(cfg Config, logger *slog.Logger) (*Publisher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:    cfg.UseSSL,
		Region:    cfg.Region,
		Transport: newTransport(),
	})
	if err != nil {
		return nil, fmt.Errorf("publish: creating client: %w", err)
	}

	return &Publisher{client: client, config: cfg, logger: logger}, nil
}

// EnsureBucket creates the target bucket when it does not exist yet.
func (p *Publisher) EnsureBucket(ctx context.Context) error {
	exists, err := p.client.BucketExists(ctx, p.config.Bucket)
	if err != nil {
		return fmt.Errorf("publish: checking bucket %s: %w", p.config.Bucket, err)
	}
	if exists {
		return nil
	}
	if err := p.client.MakeBucket(ctx, p.config.Bucket, minio.MakeBucketOptions{Region: p.config.Region}); err != nil {
		return fmt.Errorf("publish: creating bucket %s: %w", p.config.Bucket, err)
	}
	p.logger.Info("created artifact bucket", slog.String("bucket", p.config.Bucket))
	return nil
}

// Publish uploads files and returns their object keys in the same order. It
// stops at the first failed upload.
func (p *Publisher) Publish(ctx context.Context, runID string, files []string) ([]string, error) {
	keys := make([]string, 0, len(files))
	for _, file := range files {
		key := ObjectKey(p.config.Prefix, runID, file)
		info, err := p.client.FPutObject(ctx, p.config.Bucket, key, file, minio.PutObjectOptions{
			ContentType: ContentType(file),
		})
		if err != nil {
			return keys, fmt.Errorf("publish: uploading %s: %w", file, err)
		}
		p.logger.Info("published object",
			slog.String("bucket", p.config.Bucket),
			slog.String("key", key),
			slog.Int64("size", info.Size),
		)
		keys = append(keys, key)
	}
	return keys, nil
}

// ObjectKey builds the key for one file of a run.
func ObjectKey(prefix, runID, file string) string {
	return path.Join(strings.Trim(prefix, "/"), runID, filepath.Base(file))
}

// ContentType picks the MIME type for the file kinds a run produces.
func ContentType(file string) string {
	switch strings.ToLower(filepath.Ext(file)) {
	case ".jar":
		return "application/java-archive"
	case ".xml":
		return "application/xml"
	default:
		return "application/octet-stream"
	}
}

func newTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}
