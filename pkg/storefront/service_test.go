package storefront_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-storefront/pkg/storefront"
	"github.com/tendant/simple-storefront/pkg/storefront/repo/memory"
	blobmemory "github.com/tendant/simple-storefront/pkg/storefront/storage/memory"
)

func TestNew_RequiresStores(t *testing.T) {
	_, err := storefront.New(storefront.WithBlobStore(blobmemory.New()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "repository is required")

	_, err = storefront.New(storefront.WithRepository(memory.New()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "blob store is required")

	svc, err := storefront.New(
		storefront.WithRepository(memory.New()),
		storefront.WithBlobStore(blobmemory.New()),
		storefront.WithEventSink(nil),
		storefront.WithLogger(nil),
	)
	require.NoError(t, err)
	assert.NotNil(t, svc)
}
