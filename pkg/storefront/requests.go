package storefront

import (
	"io"
	"time"

	"github.com/google/uuid"
)

// FileUpload is one file of a multi-file upload
type FileUpload struct {
	FileName    string
	ContentType string
	Reader      io.Reader
	Size        int64
}

// UploadAssetsRequest contains parameters for a gallery upload
type UploadAssetsRequest struct {
	Name     string
	Category string
	Files    []FileUpload
}

// AssetFilterKind selects the ListAssets filter
type AssetFilterKind string

const (
	FilterAll        AssetFilterKind = "all"
	FilterByCategory AssetFilterKind = "category"
	FilterByOwner    AssetFilterKind = "owner"
	FilterRecent     AssetFilterKind = "recent"
)

// AssetFilter is the argument of ListAssets
type AssetFilter struct {
	Kind     AssetFilterKind
	Category string
	Owner    string
	Within   time.Duration
}

// AllAssets matches every record.
func AllAssets() AssetFilter { return AssetFilter{Kind: FilterAll} }

// ByCategory matches records tagged with category.
func ByCategory(category string) AssetFilter {
	return AssetFilter{Kind: FilterByCategory, Category: category}
}

// ByOwner matches records uploaded by the given identity.
func ByOwner(owner string) AssetFilter {
	return AssetFilter{Kind: FilterByOwner, Owner: owner}
}

// Recent matches records uploaded within d of now.
func Recent(d time.Duration) AssetFilter {
	return AssetFilter{Kind: FilterRecent, Within: d}
}

// CreateProductRequest contains parameters for creating a catalog item
type CreateProductRequest struct {
	Name        string
	Description string
	PriceMinor  int64
	Category    string
	Images      []FileUpload
}

// UpdateProductRequest contains the metadata fields of a catalog item. Nil
// fields are left untouched.
type UpdateProductRequest struct {
	Name        *string
	Description *string
	PriceMinor  *int64
	Category    *string
}

// lineKey identifies the (user, product) pair a cart line belongs to
type lineKey struct {
	user    string
	product uuid.UUID
}
