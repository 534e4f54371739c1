package sqlite

import (
	"time"

	"github.com/google/uuid"

	"github.com/tendant/simple-storefront/pkg/storefront"
)

// Timestamps are kept as unix nanoseconds so ordering and range filters
// compare numerically regardless of the driver's time format.

type assetModel struct {
	ID            string `gorm:"primaryKey;type:text"`
	Name          string `gorm:"not null"`
	URL           string `gorm:"not null"`
	Category      string `gorm:"not null;index"`
	OwnerIdentity string `gorm:"not null;index"`
	OwnerEmail    string
	ContentType   string
	Size          int64
	ProductID     string `gorm:"index"`
	UploadedAtNS  int64  `gorm:"not null;index"`
}

func (assetModel) TableName() string { return "assets" }

type productModel struct {
	ID          string   `gorm:"primaryKey;type:text"`
	Name        string   `gorm:"not null"`
	Description string   `gorm:"not null"`
	PriceMinor  int64    `gorm:"not null"`
	ImageURLs   []string `gorm:"serializer:json;not null"`
	Category    string   `gorm:"not null;index"`
	CreatedAtNS int64    `gorm:"not null"`
	UpdatedAtNS int64    `gorm:"not null"`
}

func (productModel) TableName() string { return "products" }

type cartLineModel struct {
	ID                  string `gorm:"primaryKey;type:text"`
	UserIdentity        string `gorm:"not null;uniqueIndex:idx_cart_user_product"`
	ProductID           string `gorm:"not null;uniqueIndex:idx_cart_user_product"`
	ProductNameSnapshot string `gorm:"not null"`
	UnitPriceSnapshot   int64  `gorm:"not null"`
	Quantity            int64  `gorm:"not null"`
	AddedAtNS           int64  `gorm:"not null"`
	UpdatedAtNS         int64  `gorm:"not null"`
}

func (cartLineModel) TableName() string { return "cart_lines" }

type userModel struct {
	Identity    string `gorm:"primaryKey;type:text"`
	Email       string
	DisplayName string
	Role        string `gorm:"not null"`
	CreatedAtNS int64  `gorm:"not null"`
	UpdatedAtNS int64  `gorm:"not null"`
}

func (userModel) TableName() string { return "users" }

func toNS(t time.Time) int64 { return t.UnixNano() }

func fromNS(ns int64) time.Time { return time.Unix(0, ns).UTC() }

func fromAsset(a *storefront.AssetRecord) *assetModel {
	return &assetModel{
		ID:            a.ID.String(),
		Name:          a.Name,
		URL:           a.URL,
		Category:      a.Category,
		OwnerIdentity: a.OwnerIdentity,
		OwnerEmail:    a.OwnerEmail,
		ContentType:   a.ContentType,
		Size:          a.Size,
		ProductID:     optionalID(a.ProductID),
		UploadedAtNS:  toNS(a.UploadedAt),
	}
}

// optionalID stores uuid.Nil as an empty string.
func optionalID(id uuid.UUID) string {
	if id == uuid.Nil {
		return ""
	}
	return id.String()
}

func parseOptionalID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, nil
	}
	return uuid.Parse(s)
}

func (m *assetModel) record() (*storefront.AssetRecord, error) {
	id, err := uuid.Parse(m.ID)
	if err != nil {
		return nil, err
	}
	productID, err := parseOptionalID(m.ProductID)
	if err != nil {
		return nil, err
	}
	return &storefront.AssetRecord{
		ID:            id,
		Name:          m.Name,
		URL:           m.URL,
		Category:      m.Category,
		OwnerIdentity: m.OwnerIdentity,
		OwnerEmail:    m.OwnerEmail,
		ContentType:   m.ContentType,
		Size:          m.Size,
		ProductID:     productID,
		UploadedAt:    fromNS(m.UploadedAtNS),
	}, nil
}

func fromProduct(p *storefront.CatalogItem) *productModel {
	images := make([]string, len(p.ImageURLs))
	copy(images, p.ImageURLs)
	return &productModel{
		ID:          p.ID.String(),
		Name:        p.Name,
		Description: p.Description,
		PriceMinor:  p.PriceMinor,
		ImageURLs:   images,
		Category:    p.Category,
		CreatedAtNS: toNS(p.CreatedAt),
		UpdatedAtNS: toNS(p.UpdatedAt),
	}
}

func (m *productModel) item() (*storefront.CatalogItem, error) {
	id, err := uuid.Parse(m.ID)
	if err != nil {
		return nil, err
	}
	return &storefront.CatalogItem{
		ID:          id,
		Name:        m.Name,
		Description: m.Description,
		PriceMinor:  m.PriceMinor,
		ImageURLs:   m.ImageURLs,
		Category:    m.Category,
		CreatedAt:   fromNS(m.CreatedAtNS),
		UpdatedAt:   fromNS(m.UpdatedAtNS),
	}, nil
}

func fromLine(l *storefront.CartLine) *cartLineModel {
	return &cartLineModel{
		ID:                  l.ID.String(),
		UserIdentity:        l.UserIdentity,
		ProductID:           l.ProductID.String(),
		ProductNameSnapshot: l.ProductNameSnapshot,
		UnitPriceSnapshot:   l.UnitPriceSnapshot,
		Quantity:            l.Quantity,
		AddedAtNS:           toNS(l.AddedAt),
		UpdatedAtNS:         toNS(l.UpdatedAt),
	}
}

func (m *cartLineModel) line() (*storefront.CartLine, error) {
	id, err := uuid.Parse(m.ID)
	if err != nil {
		return nil, err
	}
	productID, err := uuid.Parse(m.ProductID)
	if err != nil {
		return nil, err
	}
	return &storefront.CartLine{
		ID:                  id,
		UserIdentity:        m.UserIdentity,
		ProductID:           productID,
		ProductNameSnapshot: m.ProductNameSnapshot,
		UnitPriceSnapshot:   m.UnitPriceSnapshot,
		Quantity:            m.Quantity,
		AddedAt:             fromNS(m.AddedAtNS),
		UpdatedAt:           fromNS(m.UpdatedAtNS),
	}, nil
}

func fromUser(u *storefront.User) *userModel {
	return &userModel{
		Identity:    u.Identity,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		Role:        string(u.Role),
		CreatedAtNS: toNS(u.CreatedAt),
		UpdatedAtNS: toNS(u.UpdatedAt),
	}
}

func (m *userModel) user() *storefront.User {
	role, ok := storefront.ParseRole(m.Role)
	if !ok {
		role = storefront.RoleUser
	}
	return &storefront.User{
		Identity:    m.Identity,
		Email:       m.Email,
		DisplayName: m.DisplayName,
		Role:        role,
		CreatedAt:   fromNS(m.CreatedAtNS),
		UpdatedAt:   fromNS(m.UpdatedAtNS),
	}
}
