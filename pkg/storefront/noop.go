package storefront

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// NoopEventSink is a no-operation implementation of EventSink
type NoopEventSink struct{}

// NewNoopEventSink creates a new no-operation event sink
func NewNoopEventSink() EventSink {
	return &NoopEventSink{}
}

// AssetUploaded does nothing and returns nil
func (n *NoopEventSink) AssetUploaded(ctx context.Context, asset *AssetRecord) error {
	return nil
}

// AssetDeleted does nothing and returns nil
func (n *NoopEventSink) AssetDeleted(ctx context.Context, assetID uuid.UUID) error {
	return nil
}

// BlobOrphaned does nothing and returns nil
func (n *NoopEventSink) BlobOrphaned(ctx context.Context, locator string, cause error) error {
	return nil
}

// BlobCleanupFailed does nothing and returns nil
func (n *NoopEventSink) BlobCleanupFailed(ctx context.Context, assetID uuid.UUID, locator string, cause error) error {
	return nil
}

// ProductCreated does nothing and returns nil
func (n *NoopEventSink) ProductCreated(ctx context.Context, product *CatalogItem) error {
	return nil
}

// ProductDeleted does nothing and returns nil
func (n *NoopEventSink) ProductDeleted(ctx context.Context, productID uuid.UUID) error {
	return nil
}

// CartLineChanged does nothing and returns nil
func (n *NoopEventSink) CartLineChanged(ctx context.Context, line *CartLine, removed bool) error {
	return nil
}

// LoggingEventSink logs every event at debug level, and consistency gaps at warn.
// Useful for development and debugging
type LoggingEventSink struct {
	logger *slog.Logger
}

// NewLoggingEventSink creates a new logging event sink
func NewLoggingEventSink(logger *slog.Logger) EventSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingEventSink{logger: logger.With("component", "events")}
}

func (l *LoggingEventSink) AssetUploaded(ctx context.Context, asset *AssetRecord) error {
	l.logger.DebugContext(ctx, "asset uploaded", "asset_id", asset.ID, "category", asset.Category)
	return nil
}

func (l *LoggingEventSink) AssetDeleted(ctx context.Context, assetID uuid.UUID) error {
	l.logger.DebugContext(ctx, "asset deleted", "asset_id", assetID)
	return nil
}

func (l *LoggingEventSink) BlobOrphaned(ctx context.Context, locator string, cause error) error {
	l.logger.WarnContext(ctx, "orphaned blob needs cleanup", "locator", locator, "cause", cause)
	return nil
}

func (l *LoggingEventSink) BlobCleanupFailed(ctx context.Context, assetID uuid.UUID, locator string, cause error) error {
	l.logger.WarnContext(ctx, "blob of deleted asset needs cleanup", "asset_id", assetID, "locator", locator, "cause", cause)
	return nil
}

func (l *LoggingEventSink) ProductCreated(ctx context.Context, product *CatalogItem) error {
	l.logger.DebugContext(ctx, "product created", "product_id", product.ID, "name", product.Name)
	return nil
}

func (l *LoggingEventSink) ProductDeleted(ctx context.Context, productID uuid.UUID) error {
	l.logger.DebugContext(ctx, "product deleted", "product_id", productID)
	return nil
}

func (l *LoggingEventSink) CartLineChanged(ctx context.Context, line *CartLine, removed bool) error {
	l.logger.DebugContext(ctx, "cart line changed", "line_id", line.ID, "quantity", line.Quantity, "removed", removed)
	return nil
}

// MultiEventSink fans events out to several sinks and returns the first error.
type MultiEventSink []EventSink

func (m MultiEventSink) each(fn func(EventSink) error) error {
	var first error
	for _, sink := range m {
		if err := fn(sink); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m MultiEventSink) AssetUploaded(ctx context.Context, asset *AssetRecord) error {
	return m.each(func(s EventSink) error { return s.AssetUploaded(ctx, asset) })
}

func (m MultiEventSink) AssetDeleted(ctx context.Context, assetID uuid.UUID) error {
	return m.each(func(s EventSink) error { return s.AssetDeleted(ctx, assetID) })
}

func (m MultiEventSink) BlobOrphaned(ctx context.Context, locator string, cause error) error {
	return m.each(func(s EventSink) error { return s.BlobOrphaned(ctx, locator, cause) })
}

func (m MultiEventSink) BlobCleanupFailed(ctx context.Context, assetID uuid.UUID, locator string, cause error) error {
	return m.each(func(s EventSink) error { return s.BlobCleanupFailed(ctx, assetID, locator, cause) })
}

func (m MultiEventSink) ProductCreated(ctx context.Context, product *CatalogItem) error {
	return m.each(func(s EventSink) error { return s.ProductCreated(ctx, product) })
}

func (m MultiEventSink) ProductDeleted(ctx context.Context, productID uuid.UUID) error {
	return m.each(func(s EventSink) error { return s.ProductDeleted(ctx, productID) })
}

func (m MultiEventSink) CartLineChanged(ctx context.Context, line *CartLine, removed bool) error {
	return m.each(func(s EventSink) error { return s.CartLineChanged(ctx, line, removed) })
}
