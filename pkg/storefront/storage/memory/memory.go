package memory

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"

	"github.com/tendant/simple-storefront/pkg/storefront"
)

// Scheme prefixes every locator this backend returns.
const Scheme = "memory://"

type object struct {
	data        []byte
	contentType string
}

// Backend is an in-memory implementation of the storefront.BlobStore interface
type Backend struct {
	mu      sync.RWMutex
	objects map[string]object
}

// New creates a new in-memory storage backend
func New() *Backend {
	return &Backend{
		objects: make(map[string]object),
	}
}

var _ storefront.BlobStore = (*Backend)(nil)

func keyOf(locator string) string {
	return strings.TrimPrefix(locator, Scheme)
}

// Put stores the payload and returns memory://<name>
func (b *Backend) Put(ctx context.Context, name string, reader io.Reader, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", &storefront.StorageError{Backend: "memory", Locator: name, Op: "put", Err: err}
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[name] = object{data: data, contentType: contentType}
	return Scheme + name, nil
}

// Open returns the payload stored at locator
func (b *Backend) Open(ctx context.Context, locator string) (io.ReadCloser, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	obj, exists := b.objects[keyOf(locator)]
	if !exists {
		return nil, &storefront.StorageError{Backend: "memory", Locator: locator, Op: "open", Err: storefront.ErrNotFound}
	}
	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

// Delete removes the payload. Deleting a missing object succeeds.
func (b *Backend) Delete(ctx context.Context, locator string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.objects, keyOf(locator))
	return nil
}

// ContentType returns the stored content type of locator
func (b *Backend) ContentType(locator string) (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	obj, exists := b.objects[keyOf(locator)]
	return obj.contentType, exists
}

// Len returns the number of stored objects
func (b *Backend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.objects)
}
