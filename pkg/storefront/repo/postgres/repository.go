package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tendant/simple-storefront/pkg/storefront"
)

//go:embed schema.sql
var Schema string

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository implements storefront.Repository using PostgreSQL
type Repository struct {
	db DBTX
}

var _ storefront.Repository = (*Repository)(nil)

// New creates a new PostgreSQL repository
func New(db DBTX) *Repository {
	return &Repository{db: db}
}

// NewWithPool creates a new PostgreSQL repository with connection pool
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

// EnsureSchema creates the tables if they do not exist
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, Schema); err != nil {
		return r.handlePostgresError("ensure schema", err)
	}
	return nil
}

// handlePostgresError maps driver errors onto storefront error kinds
func (r *Repository) handlePostgresError(operation string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", operation, storefront.ErrNotFound)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("%s: %w: %s", operation, storefront.ErrDuplicate, pgErr.ConstraintName)
		case "23514", "23502": // check_violation, not_null_violation
			return fmt.Errorf("%s: %w: %s", operation, storefront.ErrValidationFailed, pgErr.Message)
		case "42P01": // undefined_table
			return fmt.Errorf("%s: table does not exist - database migration required: %w", operation, storefront.ErrStoreUnavailable)
		default:
			return fmt.Errorf("database error in %s: %s (code: %s): %w", operation, pgErr.Message, pgErr.Code, storefront.ErrStoreUnavailable)
		}
	}

	return fmt.Errorf("database error in %s: %w", operation, storefront.Classify(err))
}

// requireRow turns an UPDATE/DELETE that touched nothing into ErrNotFound.
func requireRow(tag pgconn.CommandTag, operation string) error {
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", operation, storefront.ErrNotFound)
	}
	return nil
}

// Asset operations

const assetColumns = `id, name, url, category, owner_identity, owner_email, content_type, size, product_id, uploaded_at`

func scanAsset(row pgx.Row) (*storefront.AssetRecord, error) {
	var a storefront.AssetRecord
	var productID uuid.NullUUID
	err := row.Scan(&a.ID, &a.Name, &a.URL, &a.Category, &a.OwnerIdentity, &a.OwnerEmail, &a.ContentType, &a.Size, &productID, &a.UploadedAt)
	if err != nil {
		return nil, err
	}
	a.ProductID = productID.UUID
	return &a, nil
}

// nullableID stores uuid.Nil as NULL.
func nullableID(id uuid.UUID) uuid.NullUUID {
	return uuid.NullUUID{UUID: id, Valid: id != uuid.Nil}
}

func (r *Repository) CreateAsset(ctx context.Context, asset *storefront.AssetRecord) error {
	query := `INSERT INTO assets (` + assetColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.db.Exec(ctx, query,
		asset.ID, asset.Name, asset.URL, asset.Category, asset.OwnerIdentity,
		asset.OwnerEmail, asset.ContentType, asset.Size, nullableID(asset.ProductID), asset.UploadedAt)
	if err != nil {
		return r.handlePostgresError("create asset", err)
	}
	return nil
}

func (r *Repository) GetAsset(ctx context.Context, id uuid.UUID) (*storefront.AssetRecord, error) {
	query := `SELECT ` + assetColumns + ` FROM assets WHERE id = $1`

	asset, err := scanAsset(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, r.handlePostgresError("get asset", err)
	}
	return asset, nil
}

func (r *Repository) UpdateAsset(ctx context.Context, asset *storefront.AssetRecord) error {
	query := `UPDATE assets SET name = $2, category = $3 WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, asset.ID, asset.Name, asset.Category)
	if err != nil {
		return r.handlePostgresError("update asset", err)
	}
	return requireRow(tag, "update asset")
}

func (r *Repository) DeleteAsset(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM assets WHERE id = $1`, id)
	if err != nil {
		return r.handlePostgresError("delete asset", err)
	}
	return requireRow(tag, "delete asset")
}

func (r *Repository) ListAssets(ctx context.Context, q storefront.AssetQuery) ([]*storefront.AssetRecord, error) {
	var where []string
	var args []interface{}
	argIndex := 1

	if q.Category != "" {
		where = append(where, fmt.Sprintf("category = $%d", argIndex))
		args = append(args, q.Category)
		argIndex++
	}
	if q.OwnerIdentity != "" {
		where = append(where, fmt.Sprintf("owner_identity = $%d", argIndex))
		args = append(args, q.OwnerIdentity)
		argIndex++
	}
	if !q.UploadedAfter.IsZero() {
		where = append(where, fmt.Sprintf("uploaded_at >= $%d", argIndex))
		args = append(args, q.UploadedAfter)
	}

	query := `SELECT ` + assetColumns + ` FROM assets`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY uploaded_at DESC"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, r.handlePostgresError("list assets", err)
	}
	defer rows.Close()

	var result []*storefront.AssetRecord
	for rows.Next() {
		asset, err := scanAsset(rows)
		if err != nil {
			return nil, r.handlePostgresError("scan asset", err)
		}
		result = append(result, asset)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("list assets", err)
	}
	return result, nil
}

// Product operations

const productColumns = `id, name, description, price_minor, image_urls, category, created_at, updated_at`

func scanProduct(row pgx.Row) (*storefront.CatalogItem, error) {
	var p storefront.CatalogItem
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.PriceMinor, &p.ImageURLs, &p.Category, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Repository) CreateProduct(ctx context.Context, product *storefront.CatalogItem) error {
	query := `INSERT INTO products (` + productColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.Exec(ctx, query,
		product.ID, product.Name, product.Description, product.PriceMinor,
		product.ImageURLs, product.Category, product.CreatedAt, product.UpdatedAt)
	if err != nil {
		return r.handlePostgresError("create product", err)
	}
	return nil
}

func (r *Repository) GetProduct(ctx context.Context, id uuid.UUID) (*storefront.CatalogItem, error) {
	product, err := scanProduct(r.db.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if err != nil {
		return nil, r.handlePostgresError("get product", err)
	}
	return product, nil
}

func (r *Repository) UpdateProduct(ctx context.Context, product *storefront.CatalogItem) error {
	query := `
		UPDATE products SET
			name = $2, description = $3, price_minor = $4, category = $5, updated_at = $6
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query,
		product.ID, product.Name, product.Description, product.PriceMinor, product.Category, product.UpdatedAt)
	if err != nil {
		return r.handlePostgresError("update product", err)
	}
	return requireRow(tag, "update product")
}

func (r *Repository) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return r.handlePostgresError("delete product", err)
	}
	return requireRow(tag, "delete product")
}

func (r *Repository) ListProducts(ctx context.Context, category string) ([]*storefront.CatalogItem, error) {
	query := `SELECT ` + productColumns + ` FROM products`
	var args []interface{}
	if category != "" {
		query += ` WHERE category = $1`
		args = append(args, category)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, r.handlePostgresError("list products", err)
	}
	defer rows.Close()

	var result []*storefront.CatalogItem
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, r.handlePostgresError("scan product", err)
		}
		result = append(result, product)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("list products", err)
	}
	return result, nil
}

// Cart operations

const cartColumns = `id, user_identity, product_id, product_name_snapshot, unit_price_snapshot, quantity, added_at, updated_at`

func scanLine(row pgx.Row) (*storefront.CartLine, error) {
	var l storefront.CartLine
	err := row.Scan(&l.ID, &l.UserIdentity, &l.ProductID, &l.ProductNameSnapshot, &l.UnitPriceSnapshot, &l.Quantity, &l.AddedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// CreateCartLine relies on cart_lines_user_product_key for the pair guard.
func (r *Repository) CreateCartLine(ctx context.Context, line *storefront.CartLine) error {
	query := `INSERT INTO cart_lines (` + cartColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.Exec(ctx, query,
		line.ID, line.UserIdentity, line.ProductID, line.ProductNameSnapshot,
		line.UnitPriceSnapshot, line.Quantity, line.AddedAt, line.UpdatedAt)
	if err != nil {
		return r.handlePostgresError("create cart line", err)
	}
	return nil
}

func (r *Repository) GetCartLine(ctx context.Context, id uuid.UUID) (*storefront.CartLine, error) {
	line, err := scanLine(r.db.QueryRow(ctx, `SELECT `+cartColumns+` FROM cart_lines WHERE id = $1`, id))
	if err != nil {
		return nil, r.handlePostgresError("get cart line", err)
	}
	return line, nil
}

func (r *Repository) FindCartLine(ctx context.Context, userIdentity string, productID uuid.UUID) (*storefront.CartLine, error) {
	query := `SELECT ` + cartColumns + ` FROM cart_lines WHERE user_identity = $1 AND product_id = $2`

	line, err := scanLine(r.db.QueryRow(ctx, query, userIdentity, productID))
	if err != nil {
		return nil, r.handlePostgresError("find cart line", err)
	}
	return line, nil
}

// conditionalMiss distinguishes a missing row from a stale expectation
// after a conditional write touched nothing.
func (r *Repository) conditionalMiss(ctx context.Context, id uuid.UUID, operation string) error {
	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM cart_lines WHERE id = $1)`, id).Scan(&exists); err != nil {
		return r.handlePostgresError(operation, err)
	}
	if !exists {
		return fmt.Errorf("%s: %w", operation, storefront.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", operation, storefront.ErrConflict)
}

func (r *Repository) UpdateCartLineQuantity(ctx context.Context, id uuid.UUID, expected, quantity int64, updatedAt time.Time) error {
	query := `UPDATE cart_lines SET quantity = $3, updated_at = $4 WHERE id = $1 AND quantity = $2`

	tag, err := r.db.Exec(ctx, query, id, expected, quantity, updatedAt)
	if err != nil {
		return r.handlePostgresError("update cart line", err)
	}
	if tag.RowsAffected() == 0 {
		return r.conditionalMiss(ctx, id, "update cart line")
	}
	return nil
}

func (r *Repository) DeleteCartLine(ctx context.Context, id uuid.UUID, expected int64) error {
	var (
		tag pgconn.CommandTag
		err error
	)
	if expected > 0 {
		tag, err = r.db.Exec(ctx, `DELETE FROM cart_lines WHERE id = $1 AND quantity = $2`, id, expected)
	} else {
		tag, err = r.db.Exec(ctx, `DELETE FROM cart_lines WHERE id = $1`, id)
	}
	if err != nil {
		return r.handlePostgresError("delete cart line", err)
	}
	if tag.RowsAffected() == 0 {
		if expected > 0 {
			return r.conditionalMiss(ctx, id, "delete cart line")
		}
		return fmt.Errorf("delete cart line: %w", storefront.ErrNotFound)
	}
	return nil
}

func (r *Repository) ListCartLines(ctx context.Context, userIdentity string) ([]*storefront.CartLine, error) {
	query := `SELECT ` + cartColumns + ` FROM cart_lines WHERE user_identity = $1 ORDER BY seq`

	rows, err := r.db.Query(ctx, query, userIdentity)
	if err != nil {
		return nil, r.handlePostgresError("list cart lines", err)
	}
	defer rows.Close()

	var result []*storefront.CartLine
	for rows.Next() {
		line, err := scanLine(rows)
		if err != nil {
			return nil, r.handlePostgresError("scan cart line", err)
		}
		result = append(result, line)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("list cart lines", err)
	}
	return result, nil
}

func (r *Repository) DeleteCartLines(ctx context.Context, userIdentity string) (int, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM cart_lines WHERE user_identity = $1`, userIdentity)
	if err != nil {
		return 0, r.handlePostgresError("delete cart lines", err)
	}
	return int(tag.RowsAffected()), nil
}

// User operations

func (r *Repository) CreateUser(ctx context.Context, user *storefront.User) error {
	query := `
		INSERT INTO users (identity, email, display_name, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.Exec(ctx, query, user.Identity, user.Email, user.DisplayName, string(user.Role), user.CreatedAt, user.UpdatedAt)
	if err != nil {
		return r.handlePostgresError("create user", err)
	}
	return nil
}

func scanUser(row pgx.Row) (*storefront.User, error) {
	var u storefront.User
	var role string
	if err := row.Scan(&u.Identity, &u.Email, &u.DisplayName, &role, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	// Older rows may carry legacy role names.
	if parsed, ok := storefront.ParseRole(role); ok {
		u.Role = parsed
	} else {
		u.Role = storefront.RoleUser
	}
	return &u, nil
}

func (r *Repository) GetUser(ctx context.Context, identity string) (*storefront.User, error) {
	query := `SELECT identity, email, display_name, role, created_at, updated_at FROM users WHERE identity = $1`

	user, err := scanUser(r.db.QueryRow(ctx, query, identity))
	if err != nil {
		return nil, r.handlePostgresError("get user", err)
	}
	return user, nil
}

func (r *Repository) UpdateUserRole(ctx context.Context, identity string, role storefront.Role, updatedAt time.Time) error {
	tag, err := r.db.Exec(ctx, `UPDATE users SET role = $2, updated_at = $3 WHERE identity = $1`, identity, string(role), updatedAt)
	if err != nil {
		return r.handlePostgresError("update user role", err)
	}
	return requireRow(tag, "update user role")
}

func (r *Repository) ListUsers(ctx context.Context) ([]*storefront.User, error) {
	rows, err := r.db.Query(ctx, `SELECT identity, email, display_name, role, created_at, updated_at FROM users ORDER BY identity`)
	if err != nil {
		return nil, r.handlePostgresError("list users", err)
	}
	defer rows.Close()

	var result []*storefront.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, r.handlePostgresError("scan user", err)
		}
		result = append(result, user)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("list users", err)
	}
	return result, nil
}
