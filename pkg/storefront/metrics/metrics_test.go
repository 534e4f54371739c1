package metrics_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-storefront/pkg/storefront"
	"github.com/tendant/simple-storefront/pkg/storefront/metrics"
)

func TestSinkCountsEvents(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := metrics.New(reg)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, sink.AssetUploaded(ctx, &storefront.AssetRecord{Category: "robotik"}))
	require.NoError(t, sink.AssetUploaded(ctx, &storefront.AssetRecord{Category: "robotik"}))
	require.NoError(t, sink.BlobOrphaned(ctx, "memory://galeri/x", errors.New("insert failed")))
	require.NoError(t, sink.BlobCleanupFailed(ctx, uuid.New(), "memory://galeri/y", errors.New("gone")))
	require.NoError(t, sink.CartLineChanged(ctx, &storefront.CartLine{}, false))
	require.NoError(t, sink.CartLineChanged(ctx, &storefront.CartLine{}, true))

	count, err := testutil.GatherAndCount(reg,
		"storefront_assets_uploaded_total",
		"storefront_blobs_orphaned_total",
		"storefront_blob_cleanup_failures_total",
		"storefront_cart_line_changes_total",
	)
	require.NoError(t, err)
	// one series per label set: robotik, orphaned, cleanup, upsert, remove
	assert.Equal(t, 5, count)

	rec := httptest.NewRecorder()
	metrics.Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `storefront_assets_uploaded_total{category="robotik"} 2`)
	assert.Contains(t, rec.Body.String(), "storefront_blobs_orphaned_total 1")
}

func TestNewRejectsDoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := metrics.New(reg)
	require.NoError(t, err)
	_, err = metrics.New(reg)
	assert.Error(t, err)
}
