package storefront

import (
	"context"
	"io"

	"github.com/google/uuid"
)

// Service is the command surface of the storefront core. Every command takes
// the caller's Identity; the service keeps no session state.
type Service interface {
	// Asset operations
	Upload(ctx context.Context, id Identity, req UploadAssetsRequest) ([]*AssetRecord, error)
	RenameAsset(ctx context.Context, id Identity, assetID uuid.UUID, newName string) (*AssetRecord, error)
	RetagAsset(ctx context.Context, id Identity, assetID uuid.UUID, category string) (*AssetRecord, error)
	DeleteAsset(ctx context.Context, id Identity, assetID uuid.UUID) error
	GetAsset(ctx context.Context, id Identity, assetID uuid.UUID) (*AssetRecord, error)
	ListAssets(ctx context.Context, id Identity, filter AssetFilter) ([]*AssetRecord, error)
	OpenAsset(ctx context.Context, assetID uuid.UUID) (io.ReadCloser, *AssetRecord, error)

	// Catalog operations
	CreateProduct(ctx context.Context, id Identity, req CreateProductRequest) (*CatalogItem, error)
	UpdateProduct(ctx context.Context, id Identity, productID uuid.UUID, req UpdateProductRequest) (*CatalogItem, error)
	DeleteProduct(ctx context.Context, id Identity, productID uuid.UUID) error
	GetProduct(ctx context.Context, productID uuid.UUID) (*CatalogItem, error)
	ListProducts(ctx context.Context, category string) ([]*CatalogItem, error)

	// Cart operations
	AddToCart(ctx context.Context, id Identity, productID uuid.UUID, quantity int64) (*CartLine, error)
	ChangeQuantity(ctx context.Context, id Identity, lineID uuid.UUID, delta int64) (*CartLine, bool, error)
	ChangeQuantityStrict(ctx context.Context, id Identity, lineID uuid.UUID, delta int64) (*CartLine, bool, error)
	RemoveLine(ctx context.Context, id Identity, lineID uuid.UUID) error
	ListCart(ctx context.Context, id Identity) ([]*CartLine, error)
	CartSummary(ctx context.Context, id Identity, selected []uuid.UUID) (*CartSummary, error)
	ClearCart(ctx context.Context, id Identity) (int, error)

	// User directory operations
	EnsureUser(ctx context.Context, id Identity) (*User, error)
	GetUser(ctx context.Context, identity string) (*User, error)
	ListUsers(ctx context.Context, id Identity) ([]*User, error)
	ChangeUserRole(ctx context.Context, id Identity, target string, role Role) (*User, error)

	// SignOut applies the configured sign-out cart policy
	SignOut(ctx context.Context, id Identity) error
}
