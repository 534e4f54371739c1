// Package repotest holds the behaviour every storefront.Repository
// implementation must share. Backend packages call Run from their tests.
package repotest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-storefront/pkg/storefront"
)

// Factory returns an empty repository for one subtest.
type Factory func(t *testing.T) storefront.Repository

// Run exercises the full repository contract.
func Run(t *testing.T, newRepo Factory) {
	t.Run("Assets", func(t *testing.T) { testAssets(t, newRepo(t)) })
	t.Run("AssetQueries", func(t *testing.T) { testAssetQueries(t, newRepo(t)) })
	t.Run("Products", func(t *testing.T) { testProducts(t, newRepo(t)) })
	t.Run("CartLines", func(t *testing.T) { testCartLines(t, newRepo(t)) })
	t.Run("CartConditionalWrites", func(t *testing.T) { testCartConditionalWrites(t, newRepo(t)) })
	t.Run("CartConcurrentCreate", func(t *testing.T) { testCartConcurrentCreate(t, newRepo(t)) })
	t.Run("Users", func(t *testing.T) { testUsers(t, newRepo(t)) })
}

// base is truncated so backends storing microseconds compare equal.
var base = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func newAsset(owner, category string, uploadedAt time.Time) *storefront.AssetRecord {
	id := uuid.New()
	return &storefront.AssetRecord{
		ID:            id,
		Name:          "asset " + id.String()[:8],
		URL:           "memory://galeri/" + id.String(),
		Category:      category,
		OwnerIdentity: owner,
		OwnerEmail:    owner + "@example.com",
		ContentType:   "image/png",
		Size:          3,
		UploadedAt:    uploadedAt,
	}
}

func testAssets(t *testing.T, repo storefront.Repository) {
	ctx := context.Background()
	asset := newAsset("uid-1", "elektro", base)

	require.NoError(t, repo.CreateAsset(ctx, asset))

	got, err := repo.GetAsset(ctx, asset.ID)
	require.NoError(t, err)
	assert.Equal(t, asset.Name, got.Name)
	assert.Equal(t, asset.URL, got.URL)
	assert.Equal(t, asset.OwnerIdentity, got.OwnerIdentity)
	assert.True(t, asset.UploadedAt.Equal(got.UploadedAt))
	assert.Equal(t, uuid.Nil, got.ProductID)

	image := newAsset("uid-1", "IoT", base)
	image.ProductID = uuid.New()
	require.NoError(t, repo.CreateAsset(ctx, image))
	gotImage, err := repo.GetAsset(ctx, image.ID)
	require.NoError(t, err)
	assert.Equal(t, image.ProductID, gotImage.ProductID)
	require.NoError(t, repo.DeleteAsset(ctx, image.ID))

	got.Name = "renamed"
	got.Category = "robotik"
	got.URL = "memory://elsewhere"
	require.NoError(t, repo.UpdateAsset(ctx, got))

	updated, err := repo.GetAsset(ctx, asset.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Name)
	assert.Equal(t, "robotik", updated.Category)
	assert.Equal(t, asset.URL, updated.URL, "url is immutable")

	require.NoError(t, repo.DeleteAsset(ctx, asset.ID))
	_, err = repo.GetAsset(ctx, asset.ID)
	assert.ErrorIs(t, err, storefront.ErrNotFound)
	assert.ErrorIs(t, repo.DeleteAsset(ctx, asset.ID), storefront.ErrNotFound)
	assert.ErrorIs(t, repo.UpdateAsset(ctx, asset), storefront.ErrNotFound)
}

func testAssetQueries(t *testing.T, repo storefront.Repository) {
	ctx := context.Background()
	old := newAsset("uid-1", "elektro", base.Add(-10*24*time.Hour))
	mid := newAsset("uid-2", "robotik", base.Add(-2*24*time.Hour))
	recent := newAsset("uid-1", "robotik", base.Add(-time.Hour))
	for _, a := range []*storefront.AssetRecord{old, mid, recent} {
		require.NoError(t, repo.CreateAsset(ctx, a))
	}

	ids := func(assets []*storefront.AssetRecord) []uuid.UUID {
		out := make([]uuid.UUID, len(assets))
		for i, a := range assets {
			out[i] = a.ID
		}
		return out
	}

	all, err := repo.ListAssets(ctx, storefront.AssetQuery{})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{recent.ID, mid.ID, old.ID}, ids(all), "newest first")

	byCategory, err := repo.ListAssets(ctx, storefront.AssetQuery{Category: "robotik"})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{recent.ID, mid.ID}, ids(byCategory))

	byOwner, err := repo.ListAssets(ctx, storefront.AssetQuery{OwnerIdentity: "uid-1"})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{recent.ID, old.ID}, ids(byOwner))

	latest, err := repo.ListAssets(ctx, storefront.AssetQuery{UploadedAfter: base.Add(-storefront.RecentWindow)})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{recent.ID, mid.ID}, ids(latest))

	none, err := repo.ListAssets(ctx, storefront.AssetQuery{Category: "lainnya"})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func testProducts(t *testing.T, repo storefront.Repository) {
	ctx := context.Background()
	product := &storefront.CatalogItem{
		ID:          uuid.New(),
		Name:        "Arduino Uno",
		Description: "board",
		PriceMinor:  150000,
		ImageURLs:   []string{"memory://products/a", "memory://products/b"},
		Category:    "Mikrokontroler",
		CreatedAt:   base,
		UpdatedAt:   base,
	}
	require.NoError(t, repo.CreateProduct(ctx, product))

	other := &storefront.CatalogItem{
		ID:          uuid.New(),
		Name:        "DHT22",
		Description: "sensor",
		PriceMinor:  45000,
		ImageURLs:   []string{"memory://products/c"},
		Category:    "Sensor",
		CreatedAt:   base.Add(time.Minute),
		UpdatedAt:   base.Add(time.Minute),
	}
	require.NoError(t, repo.CreateProduct(ctx, other))

	got, err := repo.GetProduct(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, product.ImageURLs, got.ImageURLs, "image order is preserved")
	assert.Equal(t, product.PriceMinor, got.PriceMinor)

	got.Name = "Arduino Uno R3"
	got.PriceMinor = 175000
	got.ImageURLs = []string{"memory://ignored"}
	got.UpdatedAt = base.Add(time.Hour)
	require.NoError(t, repo.UpdateProduct(ctx, got))

	updated, err := repo.GetProduct(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, "Arduino Uno R3", updated.Name)
	assert.Equal(t, int64(175000), updated.PriceMinor)
	assert.Equal(t, product.ImageURLs, updated.ImageURLs, "update never touches images")

	sensors, err := repo.ListProducts(ctx, "Sensor")
	require.NoError(t, err)
	require.Len(t, sensors, 1)
	assert.Equal(t, other.ID, sensors[0].ID)

	all, err := repo.ListProducts(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, repo.DeleteProduct(ctx, product.ID))
	_, err = repo.GetProduct(ctx, product.ID)
	assert.ErrorIs(t, err, storefront.ErrNotFound)
	assert.ErrorIs(t, repo.DeleteProduct(ctx, product.ID), storefront.ErrNotFound)
}

func newLine(user string, product uuid.UUID, qty int64, at time.Time) *storefront.CartLine {
	return &storefront.CartLine{
		ID:                  uuid.New(),
		UserIdentity:        user,
		ProductID:           product,
		ProductNameSnapshot: "Arduino Uno",
		UnitPriceSnapshot:   1000,
		Quantity:            qty,
		AddedAt:             at,
		UpdatedAt:           at,
	}
}

func testCartLines(t *testing.T, repo storefront.Repository) {
	ctx := context.Background()
	p1, p2, p3 := uuid.New(), uuid.New(), uuid.New()

	first := newLine("uid-1", p1, 1, base)
	second := newLine("uid-1", p2, 2, base.Add(time.Second))
	third := newLine("uid-1", p3, 3, base.Add(2*time.Second))
	foreign := newLine("uid-2", p1, 4, base)
	for _, l := range []*storefront.CartLine{first, second, third, foreign} {
		require.NoError(t, repo.CreateCartLine(ctx, l))
	}

	got, err := repo.GetCartLine(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Quantity)
	assert.Equal(t, "Arduino Uno", got.ProductNameSnapshot)

	found, err := repo.FindCartLine(ctx, "uid-1", p1)
	require.NoError(t, err)
	assert.Equal(t, first.ID, found.ID)

	_, err = repo.FindCartLine(ctx, "uid-2", p2)
	assert.ErrorIs(t, err, storefront.ErrNotFound)

	lines, err := repo.ListCartLines(ctx, "uid-1")
	require.NoError(t, err)
	require.Len(t, lines, 3)
	assert.Equal(t, []uuid.UUID{first.ID, second.ID, third.ID}, []uuid.UUID{lines[0].ID, lines[1].ID, lines[2].ID}, "insertion order")

	require.NoError(t, repo.DeleteCartLine(ctx, second.ID, 0))
	assert.ErrorIs(t, repo.DeleteCartLine(ctx, second.ID, 0), storefront.ErrNotFound)
	_, err = repo.FindCartLine(ctx, "uid-1", p2)
	assert.ErrorIs(t, err, storefront.ErrNotFound)

	// The pair is free again once its line is gone.
	require.NoError(t, repo.CreateCartLine(ctx, newLine("uid-1", p2, 1, base.Add(3*time.Second))))

	n, err := repo.DeleteCartLines(ctx, "uid-1")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	lines, err = repo.ListCartLines(ctx, "uid-1")
	require.NoError(t, err)
	assert.Empty(t, lines)

	others, err := repo.ListCartLines(ctx, "uid-2")
	require.NoError(t, err)
	assert.Len(t, others, 1)
}

func testCartConditionalWrites(t *testing.T, repo storefront.Repository) {
	ctx := context.Background()
	product := uuid.New()
	line := newLine("uid-1", product, 2, base)
	require.NoError(t, repo.CreateCartLine(ctx, line))

	err := repo.CreateCartLine(ctx, newLine("uid-1", product, 1, base))
	assert.ErrorIs(t, err, storefront.ErrDuplicate)

	assert.ErrorIs(t, repo.UpdateCartLineQuantity(ctx, line.ID, 5, 6, base), storefront.ErrConflict)
	require.NoError(t, repo.UpdateCartLineQuantity(ctx, line.ID, 2, 7, base.Add(time.Minute)))

	got, err := repo.GetCartLine(ctx, line.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.Quantity)

	assert.ErrorIs(t, repo.DeleteCartLine(ctx, line.ID, 2), storefront.ErrConflict)
	require.NoError(t, repo.DeleteCartLine(ctx, line.ID, 7))

	assert.ErrorIs(t, repo.UpdateCartLineQuantity(ctx, line.ID, 7, 8, base), storefront.ErrNotFound)
	_, err = repo.GetCartLine(ctx, line.ID)
	assert.ErrorIs(t, err, storefront.ErrNotFound)
}

func testCartConcurrentCreate(t *testing.T, repo storefront.Repository) {
	ctx := context.Background()
	product := uuid.New()

	const writers = 8
	errs := make([]error, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = repo.CreateCartLine(ctx, newLine("uid-race", product, 1, base))
		}(i)
	}
	wg.Wait()

	created := 0
	for _, err := range errs {
		if err == nil {
			created++
			continue
		}
		assert.ErrorIs(t, err, storefront.ErrDuplicate)
	}
	assert.Equal(t, 1, created)

	lines, err := repo.ListCartLines(ctx, "uid-race")
	require.NoError(t, err)
	assert.Len(t, lines, 1)
}

func testUsers(t *testing.T, repo storefront.Repository) {
	ctx := context.Background()
	user := &storefront.User{
		Identity:  "uid-1",
		Email:     "one@example.com",
		Role:      storefront.RoleUser,
		CreatedAt: base,
		UpdatedAt: base,
	}
	require.NoError(t, repo.CreateUser(ctx, user))
	assert.ErrorIs(t, repo.CreateUser(ctx, user), storefront.ErrDuplicate)

	require.NoError(t, repo.UpdateUserRole(ctx, "uid-1", storefront.RoleEmployee, base.Add(time.Hour)))
	got, err := repo.GetUser(ctx, "uid-1")
	require.NoError(t, err)
	assert.Equal(t, storefront.RoleEmployee, got.Role)
	assert.Equal(t, "one@example.com", got.Email)

	assert.ErrorIs(t, repo.UpdateUserRole(ctx, "missing", storefront.RoleAdmin, base), storefront.ErrNotFound)
	_, err = repo.GetUser(ctx, "missing")
	assert.ErrorIs(t, err, storefront.ErrNotFound)

	require.NoError(t, repo.CreateUser(ctx, &storefront.User{Identity: "uid-2", Role: storefront.RoleUser, CreatedAt: base, UpdatedAt: base}))
	users, err := repo.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 2)
}
