package storefront_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-storefront/pkg/storefront"
	"github.com/tendant/simple-storefront/pkg/storefront/repo/memory"
	blobmemory "github.com/tendant/simple-storefront/pkg/storefront/storage/memory"
)

var (
	admin    = storefront.Identity{Subject: "uid-admin", Email: "admin@example.com", Role: storefront.RoleAdmin}
	employee = storefront.Identity{Subject: "uid-employee", Email: "staff@example.com", Role: storefront.RoleEmployee}
	alice    = storefront.Identity{Subject: "uid-alice", Email: "alice@example.com", Role: storefront.RoleUser}
	bob      = storefront.Identity{Subject: "uid-bob", Email: "bob@example.com", Role: storefront.RoleUser}
)

type fixture struct {
	svc   storefront.Service
	repo  *memory.Repository
	blobs *blobmemory.Backend
	sink  *recordingSink
}

func newFixture(t *testing.T, opts ...storefront.Option) *fixture {
	t.Helper()
	f := &fixture{
		repo:  memory.New(),
		blobs: blobmemory.New(),
		sink:  &recordingSink{},
	}
	base := []storefront.Option{
		storefront.WithRepository(f.repo),
		storefront.WithBlobStore(f.blobs),
		storefront.WithEventSink(f.sink),
	}
	svc, err := storefront.New(append(base, opts...)...)
	require.NoError(t, err)
	f.svc = svc
	return f
}

func file(name, content string) storefront.FileUpload {
	return storefront.FileUpload{
		FileName:    name,
		ContentType: "image/png",
		Reader:      strings.NewReader(content),
		Size:        int64(len(content)),
	}
}

func readAll(t *testing.T, rc io.ReadCloser) string {
	t.Helper()
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(data)
}

// seedProduct stores a product directly, bypassing image upload.
func seedProduct(t *testing.T, repo storefront.Repository, name string, price int64) *storefront.CatalogItem {
	t.Helper()
	now := time.Now().UTC()
	p := &storefront.CatalogItem{
		ID:          uuid.New(),
		Name:        name,
		Description: name + " description",
		PriceMinor:  price,
		ImageURLs:   []string{"memory://products/" + name},
		Category:    "Mikrokontroler",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(t, repo.CreateProduct(context.Background(), p))
	return p
}

// recordingSink captures events for assertions.
type recordingSink struct {
	mu             sync.Mutex
	uploaded       []uuid.UUID
	deleted        []uuid.UUID
	orphaned       []string
	cleanupFailed  []string
	productCreated []uuid.UUID
	productDeleted []uuid.UUID
	cartChanges    int
	cartRemovals   int
}

func (s *recordingSink) AssetUploaded(ctx context.Context, asset *storefront.AssetRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploaded = append(s.uploaded, asset.ID)
	return nil
}

func (s *recordingSink) AssetDeleted(ctx context.Context, assetID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, assetID)
	return nil
}

func (s *recordingSink) BlobOrphaned(ctx context.Context, locator string, cause error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orphaned = append(s.orphaned, locator)
	return nil
}

func (s *recordingSink) BlobCleanupFailed(ctx context.Context, assetID uuid.UUID, locator string, cause error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleanupFailed = append(s.cleanupFailed, locator)
	return nil
}

func (s *recordingSink) ProductCreated(ctx context.Context, product *storefront.CatalogItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.productCreated = append(s.productCreated, product.ID)
	return nil
}

func (s *recordingSink) ProductDeleted(ctx context.Context, productID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.productDeleted = append(s.productDeleted, productID)
	return nil
}

func (s *recordingSink) CartLineChanged(ctx context.Context, line *storefront.CartLine, removed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cartChanges++
	if removed {
		s.cartRemovals++
	}
	return nil
}

func (s *recordingSink) snapshotOrphaned() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.orphaned...)
}

var errInjected = errors.New("injected failure")

// faultyBlobStore wraps a blob store and fails selected calls.
type faultyBlobStore struct {
	storefront.BlobStore
	failPut    func(name string) bool
	failDelete bool
	putDelay   func(name string) time.Duration
}

func (b *faultyBlobStore) Put(ctx context.Context, name string, r io.Reader, contentType string) (string, error) {
	if b.putDelay != nil {
		time.Sleep(b.putDelay(name))
	}
	if b.failPut != nil && b.failPut(name) {
		return "", errInjected
	}
	return b.BlobStore.Put(ctx, name, r, contentType)
}

func (b *faultyBlobStore) Delete(ctx context.Context, locator string) error {
	if b.failDelete {
		return errInjected
	}
	return b.BlobStore.Delete(ctx, locator)
}

// faultyRepo wraps the memory repository and fails or races selected calls.
type faultyRepo struct {
	*memory.Repository

	failCreateAsset func(asset *storefront.AssetRecord) bool
	failDeleteAsset bool

	mu sync.Mutex
	// racesOnCreate makes the next n CreateCartLine calls lose against a
	// line of quantity 1 written by "another process".
	racesOnCreate int
	// racesOnUpdate makes the next n quantity writes lose against a
	// concurrent +1.
	racesOnUpdate int
	// alwaysConflict makes every quantity write fail with ErrConflict.
	alwaysConflict bool
}

func (r *faultyRepo) CreateAsset(ctx context.Context, asset *storefront.AssetRecord) error {
	if r.failCreateAsset != nil && r.failCreateAsset(asset) {
		return errInjected
	}
	return r.Repository.CreateAsset(ctx, asset)
}

func (r *faultyRepo) DeleteAsset(ctx context.Context, id uuid.UUID) error {
	if r.failDeleteAsset {
		return errInjected
	}
	return r.Repository.DeleteAsset(ctx, id)
}

func (r *faultyRepo) CreateCartLine(ctx context.Context, line *storefront.CartLine) error {
	r.mu.Lock()
	race := r.racesOnCreate > 0
	if race {
		r.racesOnCreate--
	}
	r.mu.Unlock()

	if race {
		rival := *line
		rival.ID = uuid.New()
		rival.Quantity = 1
		if err := r.Repository.CreateCartLine(ctx, &rival); err != nil {
			return err
		}
		return storefront.ErrDuplicate
	}
	return r.Repository.CreateCartLine(ctx, line)
}

func (r *faultyRepo) UpdateCartLineQuantity(ctx context.Context, id uuid.UUID, expected, quantity int64, updatedAt time.Time) error {
	r.mu.Lock()
	race := r.racesOnUpdate > 0
	if race {
		r.racesOnUpdate--
	}
	always := r.alwaysConflict
	r.mu.Unlock()

	if always {
		return storefront.ErrConflict
	}
	if race {
		if err := r.Repository.UpdateCartLineQuantity(ctx, id, expected, expected+1, updatedAt); err != nil {
			return err
		}
		return storefront.ErrConflict
	}
	return r.Repository.UpdateCartLineQuantity(ctx, id, expected, quantity, updatedAt)
}
