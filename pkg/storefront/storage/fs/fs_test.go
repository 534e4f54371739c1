package fs

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-storefront/pkg/storefront"
)

func TestFSBackend_BasicOps(t *testing.T) {
	tmp := t.TempDir()
	backend, err := New(Config{BaseDir: tmp})
	require.NoError(t, err)

	ctx := context.Background()
	locator, err := backend.Put(ctx, "galeri/objects/ab/cd_file.txt", strings.NewReader("hello fs"), "text/plain")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(locator, "file://"))

	rc, err := backend.Open(ctx, locator)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "hello fs", string(data))

	require.NoError(t, backend.Delete(ctx, locator))

	base, err := filepath.Abs(tmp)
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(base, "galeri"))
	assert.True(t, os.IsNotExist(err), "empty directories are cleaned up")

	_, err = backend.Open(ctx, locator)
	assert.ErrorIs(t, err, storefront.ErrNotFound)

	assert.NoError(t, backend.Delete(ctx, locator), "deleting a missing file succeeds")
}

func TestFSBackend_URLPrefix(t *testing.T) {
	backend, err := New(Config{BaseDir: t.TempDir(), URLPrefix: "http://localhost:8080/files/"})
	require.NoError(t, err)

	ctx := context.Background()
	locator, err := backend.Put(ctx, "products/a.png", strings.NewReader("png"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/files/products/a.png", locator)

	rc, err := backend.Open(ctx, locator)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "png", string(data))
}

func TestFSBackend_RejectsEscapes(t *testing.T) {
	backend, err := New(Config{BaseDir: t.TempDir()})
	require.NoError(t, err)

	_, err = backend.Put(context.Background(), "../outside.txt", strings.NewReader("x"), "")
	assert.Error(t, err)

	_, err = backend.Open(context.Background(), "file:///etc/passwd")
	assert.Error(t, err)
}

func TestFSBackend_RequiresBaseDir(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}
