package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/tendant/simple-storefront/pkg/storefront"
)

const fileScheme = "file://"

// Backend is a filesystem implementation of the storefront.BlobStore interface
type Backend struct {
	baseDir   string
	urlPrefix string
}

// Config options for the filesystem backend
type Config struct {
	BaseDir   string // Base directory for storing files
	URLPrefix string // Optional public URL prefix; locators are file:// paths otherwise
}

// New creates a new filesystem storage backend
func New(config Config) (*Backend, error) {
	if config.BaseDir == "" {
		return nil, errors.New("base directory is required")
	}

	base, err := filepath.Abs(config.BaseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base directory: %w", err)
	}
	if err := os.MkdirAll(base, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &Backend{
		baseDir:   base,
		urlPrefix: strings.TrimRight(config.URLPrefix, "/"),
	}, nil
}

var _ storefront.BlobStore = (*Backend)(nil)

// pathOf maps a locator (or bare key) to a path inside baseDir.
func (b *Backend) pathOf(locator string) (string, error) {
	var key string
	switch {
	case strings.HasPrefix(locator, fileScheme):
		p := filepath.Clean(strings.TrimPrefix(locator, fileScheme))
		rel, err := filepath.Rel(b.baseDir, p)
		if err != nil {
			return "", err
		}
		key = rel
	case b.urlPrefix != "" && strings.HasPrefix(locator, b.urlPrefix+"/"):
		unescaped, err := url.PathUnescape(strings.TrimPrefix(locator, b.urlPrefix+"/"))
		if err != nil {
			return "", err
		}
		key = unescaped
	default:
		key = locator
	}

	full := filepath.Join(b.baseDir, filepath.FromSlash(key))
	if full != b.baseDir && !strings.HasPrefix(full, b.baseDir+string(filepath.Separator)) {
		return "", fmt.Errorf("locator %q escapes base directory", locator)
	}
	return full, nil
}

func (b *Backend) locatorOf(name string) string {
	if b.urlPrefix != "" {
		return b.urlPrefix + "/" + name
	}
	return fileScheme + filepath.Join(b.baseDir, filepath.FromSlash(name))
}

// Put writes the payload under baseDir/name
func (b *Backend) Put(ctx context.Context, name string, reader io.Reader, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	filePath, err := b.pathOf(name)
	if err != nil {
		return "", &storefront.StorageError{Backend: "fs", Locator: name, Op: "put", Err: err}
	}

	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return "", &storefront.StorageError{Backend: "fs", Locator: name, Op: "put", Err: fmt.Errorf("failed to create directory: %w", err)}
	}

	// Write to a temp file first so a failed copy never leaves a partial blob.
	tmp, err := os.CreateTemp(filepath.Dir(filePath), ".upload-*")
	if err != nil {
		return "", &storefront.StorageError{Backend: "fs", Locator: name, Op: "put", Err: fmt.Errorf("failed to create file: %w", err)}
	}
	if _, err := io.Copy(tmp, reader); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", &storefront.StorageError{Backend: "fs", Locator: name, Op: "put", Err: fmt.Errorf("failed to write file: %w", err)}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", &storefront.StorageError{Backend: "fs", Locator: name, Op: "put", Err: err}
	}
	if err := os.Rename(tmp.Name(), filePath); err != nil {
		os.Remove(tmp.Name())
		return "", &storefront.StorageError{Backend: "fs", Locator: name, Op: "put", Err: err}
	}

	return b.locatorOf(name), nil
}

// Open opens the file behind locator
func (b *Backend) Open(ctx context.Context, locator string) (io.ReadCloser, error) {
	filePath, err := b.pathOf(locator)
	if err != nil {
		return nil, &storefront.StorageError{Backend: "fs", Locator: locator, Op: "open", Err: err}
	}

	file, err := os.Open(filePath)
	if os.IsNotExist(err) {
		return nil, &storefront.StorageError{Backend: "fs", Locator: locator, Op: "open", Err: storefront.ErrNotFound}
	} else if err != nil {
		return nil, &storefront.StorageError{Backend: "fs", Locator: locator, Op: "open", Err: err}
	}
	return file, nil
}

// Delete removes the file behind locator. A missing file is not an error.
func (b *Backend) Delete(ctx context.Context, locator string) error {
	filePath, err := b.pathOf(locator)
	if err != nil {
		return &storefront.StorageError{Backend: "fs", Locator: locator, Op: "delete", Err: err}
	}

	if err := os.Remove(filePath); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return &storefront.StorageError{Backend: "fs", Locator: locator, Op: "delete", Err: fmt.Errorf("failed to delete file: %w", err)}
	}

	b.cleanupEmptyDirectories(filepath.Dir(filePath))
	return nil
}

// cleanupEmptyDirectories removes empty directories up to baseDir
func (b *Backend) cleanupEmptyDirectories(dir string) {
	if dir == b.baseDir || !strings.HasPrefix(dir, b.baseDir) {
		return
	}
	if entries, err := os.ReadDir(dir); err == nil && len(entries) == 0 {
		if os.Remove(dir) == nil {
			b.cleanupEmptyDirectories(filepath.Dir(dir))
		}
	}
}
