package storefront

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
)

// BlobStore defines the interface for binary payload storage backends.
// The locator returned by Put is what AssetRecord.URL stores, and is the
// argument Open and Delete accept.
type BlobStore interface {
	// Put writes the payload under name and returns its locator
	Put(ctx context.Context, name string, reader io.Reader, contentType string) (string, error)

	// Open returns the payload stored at locator
	Open(ctx context.Context, locator string) (io.ReadCloser, error)

	// Delete removes the payload stored at locator
	Delete(ctx context.Context, locator string) error
}

// AssetQuery narrows ListAssets. Zero fields do not filter. Results are
// ordered newest first.
type AssetQuery struct {
	Category      string
	OwnerIdentity string
	UploadedAfter time.Time
}

// AssetRepository persists AssetRecords
type AssetRepository interface {
	CreateAsset(ctx context.Context, asset *AssetRecord) error
	GetAsset(ctx context.Context, id uuid.UUID) (*AssetRecord, error)
	// UpdateAsset writes the mutable fields (name, category)
	UpdateAsset(ctx context.Context, asset *AssetRecord) error
	DeleteAsset(ctx context.Context, id uuid.UUID) error
	ListAssets(ctx context.Context, query AssetQuery) ([]*AssetRecord, error)
}

// ProductRepository persists CatalogItems
type ProductRepository interface {
	CreateProduct(ctx context.Context, product *CatalogItem) error
	GetProduct(ctx context.Context, id uuid.UUID) (*CatalogItem, error)
	// UpdateProduct writes name, description, price and category; image URLs
	// are left as stored
	UpdateProduct(ctx context.Context, product *CatalogItem) error
	DeleteProduct(ctx context.Context, id uuid.UUID) error
	// ListProducts returns products of a category, or all when category is empty
	ListProducts(ctx context.Context, category string) ([]*CatalogItem, error)
}

// CartRepository persists CartLines. Implementations must provide the two
// conditional writes the cart relies on: CreateCartLine fails with
// ErrDuplicate when a line for the same (user, product) exists, and the
// quantity writes fail with ErrConflict when the stored quantity is not the
// expected one.
type CartRepository interface {
	CreateCartLine(ctx context.Context, line *CartLine) error
	GetCartLine(ctx context.Context, id uuid.UUID) (*CartLine, error)
	FindCartLine(ctx context.Context, userIdentity string, productID uuid.UUID) (*CartLine, error)

	// UpdateCartLineQuantity sets quantity if the stored quantity equals expected
	UpdateCartLineQuantity(ctx context.Context, id uuid.UUID, expected, quantity int64, updatedAt time.Time) error

	// DeleteCartLine removes the line if the stored quantity equals expected.
	// An expected value of 0 deletes unconditionally.
	DeleteCartLine(ctx context.Context, id uuid.UUID, expected int64) error

	// ListCartLines returns a user's lines in insertion order
	ListCartLines(ctx context.Context, userIdentity string) ([]*CartLine, error)

	// DeleteCartLines removes every line of a user and returns how many were removed
	DeleteCartLines(ctx context.Context, userIdentity string) (int, error)
}

// UserRepository persists the user directory
type UserRepository interface {
	CreateUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, identity string) (*User, error)
	UpdateUserRole(ctx context.Context, identity string, role Role, updatedAt time.Time) error
	ListUsers(ctx context.Context) ([]*User, error)
}

// Repository is the full metadata store
type Repository interface {
	AssetRepository
	ProductRepository
	CartRepository
	UserRepository
}

// EventSink receives notifications about completed commands and about
// consistency gaps that need out-of-band attention. Errors returned by a
// sink are logged and never fail the command.
type EventSink interface {
	// AssetUploaded is fired for every record created by an upload
	AssetUploaded(ctx context.Context, asset *AssetRecord) error

	// AssetDeleted is fired when a record is deleted
	AssetDeleted(ctx context.Context, assetID uuid.UUID) error

	// BlobOrphaned is fired for a blob left without a record after a failed upload
	BlobOrphaned(ctx context.Context, locator string, cause error) error

	// BlobCleanupFailed is fired when a record was deleted but its blob was not
	BlobCleanupFailed(ctx context.Context, assetID uuid.UUID, locator string, cause error) error

	// ProductCreated is fired when a catalog item is created
	ProductCreated(ctx context.Context, product *CatalogItem) error

	// ProductDeleted is fired when a catalog item is deleted
	ProductDeleted(ctx context.Context, productID uuid.UUID) error

	// CartLineChanged is fired after a line is created, merged, changed or removed
	CartLineChanged(ctx context.Context, line *CartLine, removed bool) error
}
