package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/tendant/simple-storefront/pkg/storefront"
)

const defaultPublicBase = "https://storage.googleapis.com"

// Config options for the Google Cloud Storage backend
type Config struct {
	Bucket string

	// PublicBaseURL is prepended to "<bucket>/<object>" when no custom
	// domain is set. Defaults to https://storage.googleapis.com.
	PublicBaseURL string

	// CacheControl is set on every written object
	CacheControl string

	// CredentialsFile is an optional service account key; the default
	// credential chain is used otherwise.
	CredentialsFile string
}

// Backend is a GCS implementation of the storefront.BlobStore interface
type Backend struct {
	client *storage.Client
	bucket *storage.BucketHandle
	config Config
	prefix string
}

var _ storefront.BlobStore = (*Backend)(nil)

// New creates a storage client and the backend on top of it
func New(ctx context.Context, config Config) (*Backend, error) {
	if strings.TrimSpace(config.Bucket) == "" {
		return nil, errors.New("bucket name is required")
	}

	var opts []option.ClientOption
	if config.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(config.CredentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage.NewClient failed: %w", err)
	}
	return NewWithClient(client, config)
}

// NewWithClient builds the backend on an existing client
func NewWithClient(client *storage.Client, config Config) (*Backend, error) {
	if client == nil {
		return nil, errors.New("storage client is required")
	}
	if strings.TrimSpace(config.Bucket) == "" {
		return nil, errors.New("bucket name is required")
	}
	return &Backend{
		client: client,
		bucket: client.Bucket(config.Bucket),
		config: config,
		prefix: publicPrefix(config),
	}, nil
}

func publicPrefix(config Config) string {
	base := strings.TrimRight(config.PublicBaseURL, "/")
	if base == "" {
		base = defaultPublicBase
	}
	if base == defaultPublicBase {
		return base + "/" + config.Bucket + "/"
	}
	return base + "/"
}

func (b *Backend) locatorOf(object string) string {
	return b.prefix + object
}

// objectOf accepts a public URL, a gs:// URI or a bare object name.
func (b *Backend) objectOf(locator string) string {
	if strings.HasPrefix(locator, b.prefix) {
		return strings.TrimPrefix(locator, b.prefix)
	}
	gsPrefix := "gs://" + b.config.Bucket + "/"
	if strings.HasPrefix(locator, gsPrefix) {
		return strings.TrimPrefix(locator, gsPrefix)
	}
	return strings.TrimLeft(locator, "/")
}

// Put streams the payload to the bucket
func (b *Backend) Put(ctx context.Context, name string, reader io.Reader, contentType string) (string, error) {
	object := strings.TrimLeft(name, "/")
	w := b.bucket.Object(object).NewWriter(ctx)
	if contentType != "" {
		w.ContentType = contentType
	}
	if b.config.CacheControl != "" {
		w.CacheControl = b.config.CacheControl
	}

	if _, err := io.Copy(w, reader); err != nil {
		_ = w.Close()
		return "", &storefront.StorageError{Backend: "gcs", Locator: object, Op: "put", Err: classify(err)}
	}
	if err := w.Close(); err != nil {
		return "", &storefront.StorageError{Backend: "gcs", Locator: object, Op: "put", Err: classify(err)}
	}
	return b.locatorOf(object), nil
}

// Open reads the object behind locator
func (b *Backend) Open(ctx context.Context, locator string) (io.ReadCloser, error) {
	r, err := b.bucket.Object(b.objectOf(locator)).NewReader(ctx)
	if err != nil {
		return nil, &storefront.StorageError{Backend: "gcs", Locator: locator, Op: "open", Err: classify(err)}
	}
	return r, nil
}

// Delete removes the object behind locator; ErrObjectNotExist is treated as success
func (b *Backend) Delete(ctx context.Context, locator string) error {
	err := b.bucket.Object(b.objectOf(locator)).Delete(ctx)
	if err == nil || errors.Is(err, storage.ErrObjectNotExist) {
		return nil
	}
	return &storefront.StorageError{Backend: "gcs", Locator: locator, Op: "delete", Err: classify(err)}
}

// Close releases the underlying client
func (b *Backend) Close() error {
	return b.client.Close()
}

func classify(err error) error {
	if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
		return fmt.Errorf("%w: %v", storefront.ErrNotFound, err)
	}
	return fmt.Errorf("%w: %w", storefront.ErrStoreUnavailable, err)
}
