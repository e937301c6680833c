package storage

import (
	"context"
	"io"
	"time"
)

// Storage stores objects under caller-chosen keys.
type Storage interface {
	// Put uploads size bytes from r to key, replacing any existing object.
	Put(ctx context.Context, key string, r io.Reader, size int64, opts ...Option) (*FileInfo, error)

	// Get opens the object. The caller closes the reader.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes the object.
	Delete(ctx context.Context, key string) error

	// URL returns the public address of key. It does not check existence.
	URL(key string) string
}

// Config holds S3-compatible storage settings, loaded with go-envconfig.
// An empty Bucket disables storage.
type Config struct {
	Bucket    string `env:"S3_BUCKET"`
	AccessKey string `env:"S3_ACCESS_KEY"`
	SecretKey string `env:"S3_SECRET_KEY"`

	// Endpoint is set for MinIO and other S3-compatible services.
	Endpoint string `env:"S3_ENDPOINT"`
	Region   string `env:"S3_REGION, default=us-east-1"`

	// PublicURL is a CDN prefix used by URL instead of the bucket address.
	PublicURL string `env:"S3_PUBLIC_URL"`

	DefaultACL ACL `env:"S3_DEFAULT_ACL, default=public-read"`

	// PathStyle is required by MinIO.
	PathStyle bool `env:"S3_PATH_STYLE, default=false"`

	Timeout time.Duration `env:"S3_TIMEOUT, default=30s"`
}

// Enabled reports whether a bucket is configured.
func (c Config) Enabled() bool {
	return c.Bucket != ""
}

// FileInfo describes a stored object.
type FileInfo struct {
	Key         string
	ContentType string
	ACL         ACL
	Size        int64
}

// ACL is the canned access level of an object.
type ACL string

const (
	ACLPrivate    ACL = "private"
	ACLPublicRead ACL = "public-read"
)

// DefaultRegion is used when Config.Region is empty.
const DefaultRegion = "us-east-1"

func (c *Config) applyDefaults() {
	if c.Region == "" {
		c.Region = DefaultRegion
	}
	if c.DefaultACL == "" {
		c.DefaultACL = ACLPrivate
	}
}

func (c *Config) validate() error {
	if c.Bucket == "" || c.AccessKey == "" || c.SecretKey == "" {
		return ErrInvalidConfig
	}
	switch c.DefaultACL {
	case ACLPrivate, ACLPublicRead:
	default:
		return ErrInvalidConfig
	}
	return nil
}
