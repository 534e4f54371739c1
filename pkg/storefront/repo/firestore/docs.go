package firestore

import (
	"time"

	"github.com/google/uuid"

	"github.com/tendant/simple-storefront/pkg/storefront"
)

type assetDoc struct {
	ID            string    `firestore:"id"`
	Name          string    `firestore:"name"`
	URL           string    `firestore:"url"`
	Category      string    `firestore:"category"`
	OwnerIdentity string    `firestore:"ownerIdentity"`
	OwnerEmail    string    `firestore:"ownerEmail"`
	ContentType   string    `firestore:"contentType"`
	Size          int64     `firestore:"size"`
	ProductID     string    `firestore:"productId,omitempty"`
	UploadedAt    time.Time `firestore:"uploadedAt"`
}

type productDoc struct {
	ID          string    `firestore:"id"`
	Name        string    `firestore:"name"`
	Description string    `firestore:"description"`
	PriceMinor  int64     `firestore:"priceMinor"`
	ImageURLs   []string  `firestore:"imageUrls"`
	Category    string    `firestore:"category"`
	CreatedAt   time.Time `firestore:"createdAt"`
	UpdatedAt   time.Time `firestore:"updatedAt"`
}

type cartLineDoc struct {
	ID                  string    `firestore:"id"`
	UserIdentity        string    `firestore:"userIdentity"`
	ProductID           string    `firestore:"productId"`
	ProductNameSnapshot string    `firestore:"productName"`
	UnitPriceSnapshot   int64     `firestore:"unitPriceMinor"`
	Quantity            int64     `firestore:"quantity"`
	AddedAt             time.Time `firestore:"addedAt"`
	UpdatedAt           time.Time `firestore:"updatedAt"`
	// Seq breaks AddedAt ties so listing keeps insertion order.
	Seq int64 `firestore:"seq"`
}

// cartPairDoc guards the (user, product) uniqueness of cart lines.
type cartPairDoc struct {
	LineID string `firestore:"lineId"`
}

type userDoc struct {
	Identity    string    `firestore:"identity"`
	Email       string    `firestore:"email"`
	DisplayName string    `firestore:"displayName"`
	Role        string    `firestore:"role"`
	CreatedAt   time.Time `firestore:"createdAt"`
	UpdatedAt   time.Time `firestore:"updatedAt"`
}

// pairNamespace seeds the deterministic ids of cart pair guard documents.
var pairNamespace = uuid.MustParse("8b7c3f0e-4d0a-4f51-9d3e-6a1c2b5e7f90")

// pairDocID maps a (user, product) pair onto a valid document id. User
// identities may hold characters Firestore rejects in ids.
func pairDocID(userIdentity string, productID uuid.UUID) string {
	return uuid.NewSHA1(pairNamespace, []byte(userIdentity+"\x00"+productID.String())).String()
}

func fromAsset(a *storefront.AssetRecord) assetDoc {
	doc := assetDoc{
		ID:            a.ID.String(),
		Name:          a.Name,
		URL:           a.URL,
		Category:      a.Category,
		OwnerIdentity: a.OwnerIdentity,
		OwnerEmail:    a.OwnerEmail,
		ContentType:   a.ContentType,
		Size:          a.Size,
		UploadedAt:    a.UploadedAt.UTC(),
	}
	if a.ProductID != uuid.Nil {
		doc.ProductID = a.ProductID.String()
	}
	return doc
}

func (d assetDoc) record() (*storefront.AssetRecord, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, err
	}
	var productID uuid.UUID
	if d.ProductID != "" {
		if productID, err = uuid.Parse(d.ProductID); err != nil {
			return nil, err
		}
	}
	return &storefront.AssetRecord{
		ID:            id,
		Name:          d.Name,
		URL:           d.URL,
		Category:      d.Category,
		OwnerIdentity: d.OwnerIdentity,
		OwnerEmail:    d.OwnerEmail,
		ContentType:   d.ContentType,
		Size:          d.Size,
		ProductID:     productID,
		UploadedAt:    d.UploadedAt.UTC(),
	}, nil
}

func fromProduct(p *storefront.CatalogItem) productDoc {
	images := make([]string, len(p.ImageURLs))
	copy(images, p.ImageURLs)
	return productDoc{
		ID:          p.ID.String(),
		Name:        p.Name,
		Description: p.Description,
		PriceMinor:  p.PriceMinor,
		ImageURLs:   images,
		Category:    p.Category,
		CreatedAt:   p.CreatedAt.UTC(),
		UpdatedAt:   p.UpdatedAt.UTC(),
	}
}

func (d productDoc) item() (*storefront.CatalogItem, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, err
	}
	return &storefront.CatalogItem{
		ID:          id,
		Name:        d.Name,
		Description: d.Description,
		PriceMinor:  d.PriceMinor,
		ImageURLs:   d.ImageURLs,
		Category:    d.Category,
		CreatedAt:   d.CreatedAt.UTC(),
		UpdatedAt:   d.UpdatedAt.UTC(),
	}, nil
}

func fromLine(l *storefront.CartLine, seq int64) cartLineDoc {
	return cartLineDoc{
		ID:                  l.ID.String(),
		UserIdentity:        l.UserIdentity,
		ProductID:           l.ProductID.String(),
		ProductNameSnapshot: l.ProductNameSnapshot,
		UnitPriceSnapshot:   l.UnitPriceSnapshot,
		Quantity:            l.Quantity,
		AddedAt:             l.AddedAt.UTC(),
		UpdatedAt:           l.UpdatedAt.UTC(),
		Seq:                 seq,
	}
}

func (d cartLineDoc) line() (*storefront.CartLine, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, err
	}
	productID, err := uuid.Parse(d.ProductID)
	if err != nil {
		return nil, err
	}
	return &storefront.CartLine{
		ID:                  id,
		UserIdentity:        d.UserIdentity,
		ProductID:           productID,
		ProductNameSnapshot: d.ProductNameSnapshot,
		UnitPriceSnapshot:   d.UnitPriceSnapshot,
		Quantity:            d.Quantity,
		AddedAt:             d.AddedAt.UTC(),
		UpdatedAt:           d.UpdatedAt.UTC(),
	}, nil
}

func fromUser(u *storefront.User) userDoc {
	return userDoc{
		Identity:    u.Identity,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		Role:        string(u.Role),
		CreatedAt:   u.CreatedAt.UTC(),
		UpdatedAt:   u.UpdatedAt.UTC(),
	}
}

func (d userDoc) user() *storefront.User {
	role, ok := storefront.ParseRole(d.Role)
	if !ok {
		role = storefront.RoleUser
	}
	return &storefront.User{
		Identity:    d.Identity,
		Email:       d.Email,
		DisplayName: d.DisplayName,
		Role:        role,
		CreatedAt:   d.CreatedAt.UTC(),
		UpdatedAt:   d.UpdatedAt.UTC(),
	}
}
