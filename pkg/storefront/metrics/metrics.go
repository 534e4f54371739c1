// Package metrics exposes storefront events as Prometheus counters.
package metrics

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tendant/simple-storefront/pkg/storefront"
)

const namespace = "storefront"

// Sink is a storefront.EventSink that counts lifecycle events.
type Sink struct {
	assetsUploaded  *prometheus.CounterVec
	assetsDeleted   prometheus.Counter
	blobsOrphaned   prometheus.Counter
	cleanupFailures prometheus.Counter
	productsCreated *prometheus.CounterVec
	productsDeleted prometheus.Counter
	cartChanges     *prometheus.CounterVec
}

var _ storefront.EventSink = (*Sink)(nil)

// New registers the storefront collectors on reg.
func New(reg prometheus.Registerer) (*Sink, error) {
	s := &Sink{
		assetsUploaded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assets_uploaded_total",
			Help:      "Asset records created, by category.",
		}, []string{"category"}),
		assetsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assets_deleted_total",
			Help:      "Asset records deleted.",
		}),
		blobsOrphaned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blobs_orphaned_total",
			Help:      "Blobs stored without a metadata record after a failed upload.",
		}),
		cleanupFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blob_cleanup_failures_total",
			Help:      "Blobs left behind after their record was deleted.",
		}),
		productsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "products_created_total",
			Help:      "Catalog items created, by category.",
		}, []string{"category"}),
		productsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "products_deleted_total",
			Help:      "Catalog items deleted.",
		}),
		cartChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_line_changes_total",
			Help:      "Cart line writes, by kind (upsert or remove).",
		}, []string{"kind"}),
	}

	for _, c := range []prometheus.Collector{
		s.assetsUploaded, s.assetsDeleted, s.blobsOrphaned, s.cleanupFailures,
		s.productsCreated, s.productsDeleted, s.cartChanges,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func (s *Sink) AssetUploaded(ctx context.Context, asset *storefront.AssetRecord) error {
	s.assetsUploaded.WithLabelValues(asset.Category).Inc()
	return nil
}

func (s *Sink) AssetDeleted(ctx context.Context, assetID uuid.UUID) error {
	s.assetsDeleted.Inc()
	return nil
}

func (s *Sink) BlobOrphaned(ctx context.Context, locator string, cause error) error {
	s.blobsOrphaned.Inc()
	return nil
}

func (s *Sink) BlobCleanupFailed(ctx context.Context, assetID uuid.UUID, locator string, cause error) error {
	s.cleanupFailures.Inc()
	return nil
}

func (s *Sink) ProductCreated(ctx context.Context, product *storefront.CatalogItem) error {
	s.productsCreated.WithLabelValues(product.Category).Inc()
	return nil
}

func (s *Sink) ProductDeleted(ctx context.Context, productID uuid.UUID) error {
	s.productsDeleted.Inc()
	return nil
}

func (s *Sink) CartLineChanged(ctx context.Context, line *storefront.CartLine, removed bool) error {
	kind := "upsert"
	if removed {
		kind = "remove"
	}
	s.cartChanges.WithLabelValues(kind).Inc()
	return nil
}
