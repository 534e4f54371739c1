package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tendant/simple-storefront/pkg/storefront"
)

type cartEntry struct {
	line *storefront.CartLine
	seq  uint64
}

type pairKey struct {
	user    string
	product uuid.UUID
}

// Repository implements storefront.Repository using in-memory storage.
// All methods store and return copies.
type Repository struct {
	mu       sync.RWMutex
	assets   map[uuid.UUID]*storefront.AssetRecord
	products map[uuid.UUID]*storefront.CatalogItem
	lines    map[uuid.UUID]*cartEntry
	pairs    map[pairKey]uuid.UUID // (user, product) -> line id
	users    map[string]*storefront.User
	seq      uint64
}

// New creates a new in-memory repository
func New() *Repository {
	return &Repository{
		assets:   make(map[uuid.UUID]*storefront.AssetRecord),
		products: make(map[uuid.UUID]*storefront.CatalogItem),
		lines:    make(map[uuid.UUID]*cartEntry),
		pairs:    make(map[pairKey]uuid.UUID),
		users:    make(map[string]*storefront.User),
	}
}

var _ storefront.Repository = (*Repository)(nil)

// Asset operations

func (r *Repository) CreateAsset(ctx context.Context, asset *storefront.AssetRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.assets[asset.ID]; exists {
		return storefront.ErrDuplicate
	}
	assetCopy := *asset
	r.assets[asset.ID] = &assetCopy
	return nil
}

func (r *Repository) GetAsset(ctx context.Context, id uuid.UUID) (*storefront.AssetRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	asset, exists := r.assets[id]
	if !exists {
		return nil, storefront.ErrNotFound
	}
	assetCopy := *asset
	return &assetCopy, nil
}

func (r *Repository) UpdateAsset(ctx context.Context, asset *storefront.AssetRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, exists := r.assets[asset.ID]
	if !exists {
		return storefront.ErrNotFound
	}
	stored.Name = asset.Name
	stored.Category = asset.Category
	return nil
}

func (r *Repository) DeleteAsset(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.assets[id]; !exists {
		return storefront.ErrNotFound
	}
	delete(r.assets, id)
	return nil
}

func (r *Repository) ListAssets(ctx context.Context, query storefront.AssetQuery) ([]*storefront.AssetRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*storefront.AssetRecord, 0, len(r.assets))
	for _, asset := range r.assets {
		if query.Category != "" && asset.Category != query.Category {
			continue
		}
		if query.OwnerIdentity != "" && asset.OwnerIdentity != query.OwnerIdentity {
			continue
		}
		if !query.UploadedAfter.IsZero() && asset.UploadedAt.Before(query.UploadedAfter) {
			continue
		}
		assetCopy := *asset
		result = append(result, &assetCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].UploadedAt.After(result[j].UploadedAt)
	})
	return result, nil
}

// Product operations

func copyProduct(p *storefront.CatalogItem) *storefront.CatalogItem {
	productCopy := *p
	productCopy.ImageURLs = append([]string(nil), p.ImageURLs...)
	return &productCopy
}

func (r *Repository) CreateProduct(ctx context.Context, product *storefront.CatalogItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.products[product.ID]; exists {
		return storefront.ErrDuplicate
	}
	r.products[product.ID] = copyProduct(product)
	return nil
}

func (r *Repository) GetProduct(ctx context.Context, id uuid.UUID) (*storefront.CatalogItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	product, exists := r.products[id]
	if !exists {
		return nil, storefront.ErrNotFound
	}
	return copyProduct(product), nil
}

func (r *Repository) UpdateProduct(ctx context.Context, product *storefront.CatalogItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, exists := r.products[product.ID]
	if !exists {
		return storefront.ErrNotFound
	}
	stored.Name = product.Name
	stored.Description = product.Description
	stored.PriceMinor = product.PriceMinor
	stored.Category = product.Category
	stored.UpdatedAt = product.UpdatedAt
	return nil
}

func (r *Repository) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.products[id]; !exists {
		return storefront.ErrNotFound
	}
	delete(r.products, id)
	return nil
}

func (r *Repository) ListProducts(ctx context.Context, category string) ([]*storefront.CatalogItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*storefront.CatalogItem, 0, len(r.products))
	for _, product := range r.products {
		if category != "" && product.Category != category {
			continue
		}
		result = append(result, copyProduct(product))
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// Cart operations

func (r *Repository) CreateCartLine(ctx context.Context, line *storefront.CartLine) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := pairKey{user: line.UserIdentity, product: line.ProductID}
	if _, exists := r.pairs[key]; exists {
		return storefront.ErrDuplicate
	}
	if _, exists := r.lines[line.ID]; exists {
		return storefront.ErrDuplicate
	}

	r.seq++
	lineCopy := *line
	r.lines[line.ID] = &cartEntry{line: &lineCopy, seq: r.seq}
	r.pairs[key] = line.ID
	return nil
}

func (r *Repository) GetCartLine(ctx context.Context, id uuid.UUID) (*storefront.CartLine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, exists := r.lines[id]
	if !exists {
		return nil, storefront.ErrNotFound
	}
	lineCopy := *entry.line
	return &lineCopy, nil
}

func (r *Repository) FindCartLine(ctx context.Context, userIdentity string, productID uuid.UUID) (*storefront.CartLine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, exists := r.pairs[pairKey{user: userIdentity, product: productID}]
	if !exists {
		return nil, storefront.ErrNotFound
	}
	lineCopy := *r.lines[id].line
	return &lineCopy, nil
}

func (r *Repository) UpdateCartLineQuantity(ctx context.Context, id uuid.UUID, expected, quantity int64, updatedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, exists := r.lines[id]
	if !exists {
		return storefront.ErrNotFound
	}
	if entry.line.Quantity != expected {
		return storefront.ErrConflict
	}
	entry.line.Quantity = quantity
	entry.line.UpdatedAt = updatedAt
	return nil
}

func (r *Repository) DeleteCartLine(ctx context.Context, id uuid.UUID, expected int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, exists := r.lines[id]
	if !exists {
		return storefront.ErrNotFound
	}
	if expected > 0 && entry.line.Quantity != expected {
		return storefront.ErrConflict
	}
	delete(r.lines, id)
	delete(r.pairs, pairKey{user: entry.line.UserIdentity, product: entry.line.ProductID})
	return nil
}

func (r *Repository) ListCartLines(ctx context.Context, userIdentity string) ([]*storefront.CartLine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]*cartEntry, 0)
	for _, entry := range r.lines {
		if entry.line.UserIdentity == userIdentity {
			entries = append(entries, entry)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })

	result := make([]*storefront.CartLine, len(entries))
	for i, entry := range entries {
		lineCopy := *entry.line
		result[i] = &lineCopy
	}
	return result, nil
}

func (r *Repository) DeleteCartLines(ctx context.Context, userIdentity string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for id, entry := range r.lines {
		if entry.line.UserIdentity != userIdentity {
			continue
		}
		delete(r.lines, id)
		delete(r.pairs, pairKey{user: userIdentity, product: entry.line.ProductID})
		n++
	}
	return n, nil
}

// User operations

func (r *Repository) CreateUser(ctx context.Context, user *storefront.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.users[user.Identity]; exists {
		return storefront.ErrDuplicate
	}
	userCopy := *user
	r.users[user.Identity] = &userCopy
	return nil
}

func (r *Repository) GetUser(ctx context.Context, identity string) (*storefront.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, exists := r.users[identity]
	if !exists {
		return nil, storefront.ErrNotFound
	}
	userCopy := *user
	return &userCopy, nil
}

func (r *Repository) UpdateUserRole(ctx context.Context, identity string, role storefront.Role, updatedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, exists := r.users[identity]
	if !exists {
		return storefront.ErrNotFound
	}
	user.Role = role
	user.UpdatedAt = updatedAt
	return nil
}

func (r *Repository) ListUsers(ctx context.Context) ([]*storefront.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*storefront.User, 0, len(r.users))
	for _, user := range r.users {
		userCopy := *user
		result = append(result, &userCopy)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Identity < result[j].Identity })
	return result, nil
}
