package storefront

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role is the capability claim attached to an identity by the identity provider.
type Role string

// Role constants (typed).
const (
	RoleUser     Role = "user"
	RoleAdmin    Role = "admin"
	RoleEmployee Role = "employee"
)

// legacyEmployeeRole is the value older user documents carry for employees.
const legacyEmployeeRole = "karyawan"

// ParseRole converts a stored or claimed role string into a Role.
func ParseRole(s string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(RoleUser):
		return RoleUser, true
	case string(RoleAdmin):
		return RoleAdmin, true
	case string(RoleEmployee), legacyEmployeeRole:
		return RoleEmployee, true
	default:
		return "", false
	}
}

// IsValid reports whether r is one of the known roles.
func (r Role) IsValid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleEmployee:
		return true
	}
	return false
}

// Identity is the caller of a command as asserted by the identity provider.
// Subject is opaque and stable; Email is informational.
type Identity struct {
	Subject string `json:"subject"`
	Email   string `json:"email,omitempty"`
	Role    Role   `json:"role"`
}

// IsZero reports whether the identity is unauthenticated.
func (i Identity) IsZero() bool {
	return strings.TrimSpace(i.Subject) == ""
}

// AssetRecord is the metadata of one managed binary object.
//
// URL is set once on upload and never changes; the blob it references exists
// for as long as the record does. ProductID is set on product images and is
// uuid.Nil for gallery uploads.
type AssetRecord struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	URL           string    `json:"url"`
	Category      string    `json:"category"`
	OwnerIdentity string    `json:"owner_identity"`
	OwnerEmail    string    `json:"owner_email,omitempty"`
	ContentType   string    `json:"content_type,omitempty"`
	Size          int64     `json:"size"`
	ProductID     uuid.UUID `json:"product_id"`
	UploadedAt    time.Time `json:"uploaded_at"`
}

// IsProductImage reports whether the record backs a catalog item image.
func (a *AssetRecord) IsProductImage() bool {
	return a.ProductID != uuid.Nil
}

// CatalogItem is one product. ImageURLs is never empty; its order is the
// display order and matches the order the images were submitted in.
type CatalogItem struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	PriceMinor  int64     `json:"price_minor"`
	ImageURLs   []string  `json:"image_urls"`
	Category    string    `json:"category"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CartLine is one user's holding of one product. Quantity is always >= 1;
// the name and unit price are captured when the line is first created.
type CartLine struct {
	ID                  uuid.UUID `json:"id"`
	UserIdentity        string    `json:"user_identity"`
	ProductID           uuid.UUID `json:"product_id"`
	ProductNameSnapshot string    `json:"product_name"`
	UnitPriceSnapshot   int64     `json:"unit_price_minor"`
	Quantity            int64     `json:"quantity"`
	AddedAt             time.Time `json:"added_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// Subtotal returns unit price times quantity.
func (l *CartLine) Subtotal() int64 {
	return l.UnitPriceSnapshot * l.Quantity
}

// User is a directory entry for an identity that has signed in at least once.
type User struct {
	Identity    string    `json:"identity"`
	Email       string    `json:"email,omitempty"`
	DisplayName string    `json:"display_name,omitempty"`
	Role        Role      `json:"role"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CartSummary is a user's cart with the total of the selected lines.
type CartSummary struct {
	Lines         []*CartLine `json:"lines"`
	LineCount     int         `json:"line_count"`
	SelectedCount int         `json:"selected_count"`
	TotalMinor    int64       `json:"total_minor"`
}

// Default category sets.
var (
	DefaultGalleryCategories = []string{
		"trainer smk otomotif",
		"elektro",
		"microcontroller",
		"robotik",
		"programming",
		"lainnya",
	}

	DefaultProductCategories = []string{
		"Mikrokontroler",
		"IoT",
		"Sensor",
		"Trainer SMK Otomotif",
		"Trainer SMK Elektronika",
		"Trainer SMK Listrik",
		"Trainer SMK Microcontroller",
	}
)

// RecentWindow is the age limit of the gallery "latest" filter.
const RecentWindow = 7 * 24 * time.Hour
