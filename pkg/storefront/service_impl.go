package storefront

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tendant/simple-storefront/pkg/storefront/objectkey"
)

const (
	defaultUploadConcurrency = 4

	// maxWriteAttempts bounds how often a cart command re-reads and
	// re-applies after losing a conditional write.
	maxWriteAttempts = 5
)

// service implements the Service interface
type service struct {
	repository         Repository
	blobStore          BlobStore
	eventSink          EventSink
	logger             *slog.Logger
	keyGen             objectkey.Generator
	now                func() time.Time
	uploadConcurrency  int
	galleryCategories  map[string]bool
	productCategories  map[string]bool
	clearCartOnSignOut bool

	locks *keyedLock
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithRepository sets the metadata store
func WithRepository(repo Repository) Option {
	return func(s *service) {
		s.repository = repo
	}
}

// WithBlobStore sets the blob store
func WithBlobStore(store BlobStore) Option {
	return func(s *service) {
		s.blobStore = store
	}
}

// WithEventSink sets the event sink for the service
func WithEventSink(sink EventSink) Option {
	return func(s *service) {
		s.eventSink = sink
	}
}

// WithLogger sets the logger for the service
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithKeyGenerator sets the blob key generation strategy
func WithKeyGenerator(gen objectkey.Generator) Option {
	return func(s *service) {
		if gen != nil {
			s.keyGen = gen
		}
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithUploadConcurrency bounds how many files of one upload are written in parallel
func WithUploadConcurrency(n int) Option {
	return func(s *service) {
		if n > 0 {
			s.uploadConcurrency = n
		}
	}
}

// WithGalleryCategories sets the accepted gallery categories. An empty list accepts any.
func WithGalleryCategories(categories ...string) Option {
	return func(s *service) {
		s.galleryCategories = categorySet(categories)
	}
}

// WithProductCategories sets the accepted product categories. An empty list accepts any.
func WithProductCategories(categories ...string) Option {
	return func(s *service) {
		s.productCategories = categorySet(categories)
	}
}

// WithClearCartOnSignOut makes SignOut remove the caller's cart lines
func WithClearCartOnSignOut(clear bool) Option {
	return func(s *service) {
		s.clearCartOnSignOut = clear
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{
		eventSink:         NewNoopEventSink(),
		logger:            slog.Default(),
		keyGen:            objectkey.NewDefaultGenerator(),
		now:               func() time.Time { return time.Now().UTC() },
		uploadConcurrency: defaultUploadConcurrency,
		galleryCategories: categorySet(DefaultGalleryCategories),
		productCategories: categorySet(DefaultProductCategories),
		locks:             newKeyedLock(),
	}

	for _, option := range options {
		option(s)
	}

	if s.repository == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if s.blobStore == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	if s.eventSink == nil {
		s.eventSink = NewNoopEventSink()
	}

	return s, nil
}

func categorySet(categories []string) map[string]bool {
	if len(categories) == 0 {
		return nil
	}
	set := make(map[string]bool, len(categories))
	for _, c := range categories {
		set[c] = true
	}
	return set
}

// emit runs an event sink callback and logs its failure.
func (s *service) emit(ctx context.Context, event string, fn func() error) {
	if err := fn(); err != nil {
		s.logger.WarnContext(ctx, "event sink failed", "event", event, "error", err)
	}
}
