// Package sqlite stores storefront records in SQLite through gorm using the
// pure-Go modernc driver. It suits single-node deployments and tests.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"

	"github.com/tendant/simple-storefront/pkg/storefront"
)

// Repository implements storefront.Repository on a gorm database.
type Repository struct {
	db *gorm.DB
}

var _ storefront.Repository = (*Repository)(nil)

// Open connects to the SQLite database at dsn and migrates the schema.
func Open(dsn string) (*Repository, error) {
	dial := gormsqlite.Dialector{DriverName: "sqlite", DSN: dsn}
	db, err := gorm.Open(dial, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite has a single writer; one connection avoids SQLITE_BUSY under load.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	repo := New(db)
	if err := repo.Migrate(); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return repo, nil
}

// New wraps an already opened gorm database.
func New(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Migrate creates or updates the tables.
func (r *Repository) Migrate() error {
	if err := r.db.AutoMigrate(&assetModel{}, &productModel{}, &cartLineModel{}, &userModel{}); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (r *Repository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func mapError(operation string, err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%s: %w", operation, storefront.ErrNotFound)
	case isUniqueViolation(err):
		return fmt.Errorf("%s: %w", operation, storefront.ErrDuplicate)
	default:
		return fmt.Errorf("%s: %w", operation, storefront.Classify(err))
	}
}

// insert creates value, reporting ErrDuplicate when a primary key or unique
// index already holds it.
func (r *Repository) insert(ctx context.Context, operation string, value interface{}) error {
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(value)
	if result.Error != nil {
		return mapError(operation, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%s: %w", operation, storefront.ErrDuplicate)
	}
	return nil
}

func affected(result *gorm.DB, operation string) error {
	if result.Error != nil {
		return mapError(operation, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%s: %w", operation, storefront.ErrNotFound)
	}
	return nil
}

// Asset operations

func (r *Repository) CreateAsset(ctx context.Context, asset *storefront.AssetRecord) error {
	return r.insert(ctx, "create asset", fromAsset(asset))
}

func (r *Repository) GetAsset(ctx context.Context, id uuid.UUID) (*storefront.AssetRecord, error) {
	var m assetModel
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id.String()).Error; err != nil {
		return nil, mapError("get asset", err)
	}
	return m.record()
}

func (r *Repository) UpdateAsset(ctx context.Context, asset *storefront.AssetRecord) error {
	result := r.db.WithContext(ctx).Model(&assetModel{}).
		Where("id = ?", asset.ID.String()).
		Updates(map[string]interface{}{"name": asset.Name, "category": asset.Category})
	return affected(result, "update asset")
}

func (r *Repository) DeleteAsset(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Where("id = ?", id.String()).Delete(&assetModel{})
	return affected(result, "delete asset")
}

func (r *Repository) ListAssets(ctx context.Context, q storefront.AssetQuery) ([]*storefront.AssetRecord, error) {
	tx := r.db.WithContext(ctx).Model(&assetModel{})
	if q.Category != "" {
		tx = tx.Where("category = ?", q.Category)
	}
	if q.OwnerIdentity != "" {
		tx = tx.Where("owner_identity = ?", q.OwnerIdentity)
	}
	if !q.UploadedAfter.IsZero() {
		tx = tx.Where("uploaded_at_ns >= ?", toNS(q.UploadedAfter))
	}

	var models []assetModel
	if err := tx.Order("uploaded_at_ns DESC").Find(&models).Error; err != nil {
		return nil, mapError("list assets", err)
	}

	result := make([]*storefront.AssetRecord, 0, len(models))
	for i := range models {
		record, err := models[i].record()
		if err != nil {
			return nil, mapError("list assets", err)
		}
		result = append(result, record)
	}
	return result, nil
}

// Product operations

func (r *Repository) CreateProduct(ctx context.Context, product *storefront.CatalogItem) error {
	return r.insert(ctx, "create product", fromProduct(product))
}

func (r *Repository) GetProduct(ctx context.Context, id uuid.UUID) (*storefront.CatalogItem, error) {
	var m productModel
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id.String()).Error; err != nil {
		return nil, mapError("get product", err)
	}
	return m.item()
}

func (r *Repository) UpdateProduct(ctx context.Context, product *storefront.CatalogItem) error {
	result := r.db.WithContext(ctx).Model(&productModel{}).
		Where("id = ?", product.ID.String()).
		Updates(map[string]interface{}{
			"name":          product.Name,
			"description":   product.Description,
			"price_minor":   product.PriceMinor,
			"category":      product.Category,
			"updated_at_ns": toNS(product.UpdatedAt),
		})
	return affected(result, "update product")
}

func (r *Repository) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Where("id = ?", id.String()).Delete(&productModel{})
	return affected(result, "delete product")
}

func (r *Repository) ListProducts(ctx context.Context, category string) ([]*storefront.CatalogItem, error) {
	tx := r.db.WithContext(ctx).Model(&productModel{})
	if category != "" {
		tx = tx.Where("category = ?", category)
	}

	var models []productModel
	if err := tx.Order("created_at_ns DESC").Find(&models).Error; err != nil {
		return nil, mapError("list products", err)
	}

	result := make([]*storefront.CatalogItem, 0, len(models))
	for i := range models {
		item, err := models[i].item()
		if err != nil {
			return nil, mapError("list products", err)
		}
		result = append(result, item)
	}
	return result, nil
}

// Cart operations

func (r *Repository) CreateCartLine(ctx context.Context, line *storefront.CartLine) error {
	return r.insert(ctx, "create cart line", fromLine(line))
}

func (r *Repository) GetCartLine(ctx context.Context, id uuid.UUID) (*storefront.CartLine, error) {
	var m cartLineModel
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id.String()).Error; err != nil {
		return nil, mapError("get cart line", err)
	}
	return m.line()
}

func (r *Repository) FindCartLine(ctx context.Context, userIdentity string, productID uuid.UUID) (*storefront.CartLine, error) {
	var m cartLineModel
	err := r.db.WithContext(ctx).
		Where("user_identity = ? AND product_id = ?", userIdentity, productID.String()).
		First(&m).Error
	if err != nil {
		return nil, mapError("find cart line", err)
	}
	return m.line()
}

// conditionalMiss reports whether a conditional write missed because the
// line is gone or because its quantity moved on.
func (r *Repository) conditionalMiss(ctx context.Context, id uuid.UUID, operation string) error {
	var n int64
	if err := r.db.WithContext(ctx).Model(&cartLineModel{}).Where("id = ?", id.String()).Count(&n).Error; err != nil {
		return mapError(operation, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", operation, storefront.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", operation, storefront.ErrConflict)
}

func (r *Repository) UpdateCartLineQuantity(ctx context.Context, id uuid.UUID, expected, quantity int64, updatedAt time.Time) error {
	result := r.db.WithContext(ctx).Model(&cartLineModel{}).
		Where("id = ? AND quantity = ?", id.String(), expected).
		Updates(map[string]interface{}{"quantity": quantity, "updated_at_ns": toNS(updatedAt)})
	if result.Error != nil {
		return mapError("update cart line", result.Error)
	}
	if result.RowsAffected == 0 {
		return r.conditionalMiss(ctx, id, "update cart line")
	}
	return nil
}

func (r *Repository) DeleteCartLine(ctx context.Context, id uuid.UUID, expected int64) error {
	tx := r.db.WithContext(ctx).Where("id = ?", id.String())
	if expected > 0 {
		tx = tx.Where("quantity = ?", expected)
	}
	result := tx.Delete(&cartLineModel{})
	if result.Error != nil {
		return mapError("delete cart line", result.Error)
	}
	if result.RowsAffected == 0 {
		if expected > 0 {
			return r.conditionalMiss(ctx, id, "delete cart line")
		}
		return fmt.Errorf("delete cart line: %w", storefront.ErrNotFound)
	}
	return nil
}

func (r *Repository) ListCartLines(ctx context.Context, userIdentity string) ([]*storefront.CartLine, error) {
	var models []cartLineModel
	err := r.db.WithContext(ctx).
		Where("user_identity = ?", userIdentity).
		Order("rowid").
		Find(&models).Error
	if err != nil {
		return nil, mapError("list cart lines", err)
	}

	result := make([]*storefront.CartLine, 0, len(models))
	for i := range models {
		line, err := models[i].line()
		if err != nil {
			return nil, mapError("list cart lines", err)
		}
		result = append(result, line)
	}
	return result, nil
}

func (r *Repository) DeleteCartLines(ctx context.Context, userIdentity string) (int, error) {
	result := r.db.WithContext(ctx).Where("user_identity = ?", userIdentity).Delete(&cartLineModel{})
	if result.Error != nil {
		return 0, mapError("delete cart lines", result.Error)
	}
	return int(result.RowsAffected), nil
}

// User operations

func (r *Repository) CreateUser(ctx context.Context, user *storefront.User) error {
	return r.insert(ctx, "create user", fromUser(user))
}

func (r *Repository) GetUser(ctx context.Context, identity string) (*storefront.User, error) {
	var m userModel
	if err := r.db.WithContext(ctx).First(&m, "identity = ?", identity).Error; err != nil {
		return nil, mapError("get user", err)
	}
	return m.user(), nil
}

func (r *Repository) UpdateUserRole(ctx context.Context, identity string, role storefront.Role, updatedAt time.Time) error {
	result := r.db.WithContext(ctx).Model(&userModel{}).
		Where("identity = ?", identity).
		Updates(map[string]interface{}{"role": string(role), "updated_at_ns": toNS(updatedAt)})
	return affected(result, "update user role")
}

func (r *Repository) ListUsers(ctx context.Context) ([]*storefront.User, error) {
	var models []userModel
	if err := r.db.WithContext(ctx).Order("identity").Find(&models).Error; err != nil {
		return nil, mapError("list users", err)
	}

	result := make([]*storefront.User, 0, len(models))
	for i := range models {
		result = append(result, models[i].user())
	}
	return result, nil
}
