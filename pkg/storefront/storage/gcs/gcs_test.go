package gcs

import (
	"errors"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"

	"github.com/tendant/simple-storefront/pkg/storefront"
)

func TestPublicPrefix(t *testing.T) {
	tests := []struct {
		name   string
		config Config
		want   string
	}{
		{
			name:   "default host includes bucket",
			config: Config{Bucket: "toko-media"},
			want:   "https://storage.googleapis.com/toko-media/",
		},
		{
			name:   "explicit default host",
			config: Config{Bucket: "toko-media", PublicBaseURL: "https://storage.googleapis.com/"},
			want:   "https://storage.googleapis.com/toko-media/",
		},
		{
			name:   "custom domain is bucket-rooted",
			config: Config{Bucket: "toko-media", PublicBaseURL: "https://cdn.example.com"},
			want:   "https://cdn.example.com/",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, publicPrefix(tt.config))
		})
	}
}

func TestObjectOf(t *testing.T) {
	b := &Backend{config: Config{Bucket: "toko-media"}, prefix: publicPrefix(Config{Bucket: "toko-media"})}

	assert.Equal(t, "galeri/a.png", b.objectOf("https://storage.googleapis.com/toko-media/galeri/a.png"))
	assert.Equal(t, "galeri/a.png", b.objectOf("gs://toko-media/galeri/a.png"))
	assert.Equal(t, "galeri/a.png", b.objectOf("/galeri/a.png"))
	assert.Equal(t, "https://storage.googleapis.com/toko-media/x", b.locatorOf("x"))
}

func TestNewRequiresBucket(t *testing.T) {
	_, err := NewWithClient(nil, Config{Bucket: "b"})
	assert.Error(t, err)
}

func TestClassify(t *testing.T) {
	assert.ErrorIs(t, classify(storage.ErrObjectNotExist), storefront.ErrNotFound)
	assert.ErrorIs(t, classify(errors.New("503 backend error")), storefront.ErrStoreUnavailable)
}
