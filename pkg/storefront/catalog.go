package storefront

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/tendant/simple-storefront/pkg/storefront/objectkey"
)

// CreateProduct uploads every image through the asset path and inserts the
// catalog item only when all of them succeeded. Image URLs keep input order.
func (s *service) CreateProduct(ctx context.Context, id Identity, req CreateProductRequest) (*CatalogItem, error) {
	if err := canManageCatalog(id, "create product"); err != nil {
		return nil, err
	}
	if err := s.validateProduct(req.Name, req.Description, req.PriceMinor, req.Category); err != nil {
		return nil, err
	}
	if len(req.Images) == 0 {
		return nil, invalid("images", "at least one image is required")
	}
	if err := validateUpload(req.Name, req.Category, req.Images, nil); err != nil {
		return nil, err
	}

	productID := uuid.New()
	assets, err := s.uploadFiles(ctx, id, strings.TrimSpace(req.Name), req.Category, req.Images, objectkey.PrefixProducts, productID)
	if err != nil {
		var failure *UploadFailure
		if errors.As(err, &failure) {
			for _, a := range failure.Created {
				s.logger.WarnContext(ctx, "product image left without product", "product_id", productID, "asset_id", a.ID, "url", a.URL)
			}
		}
		return nil, &ProductError{ProductID: productID, Op: "create", Err: err}
	}

	urls := make([]string, len(assets))
	for i, a := range assets {
		urls[i] = a.URL
	}

	now := s.now()
	product := &CatalogItem{
		ID:          productID,
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		PriceMinor:  req.PriceMinor,
		ImageURLs:   urls,
		Category:    req.Category,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repository.CreateProduct(ctx, product); err != nil {
		for _, u := range urls {
			s.logger.WarnContext(ctx, "product image left without product", "product_id", productID, "url", u, "error", err)
		}
		return nil, &ProductError{ProductID: productID, Op: "create", Err: Classify(err)}
	}

	s.logger.InfoContext(ctx, "product created", "product_id", productID, "images", len(urls))
	s.emit(ctx, "product_created", func() error { return s.eventSink.ProductCreated(ctx, product) })
	return product, nil
}

func (s *service) validateProduct(name, description string, price int64, category string) error {
	if strings.TrimSpace(name) == "" {
		return invalid("name", "is required")
	}
	if strings.TrimSpace(description) == "" {
		return invalid("description", "is required")
	}
	if price <= 0 {
		return invalid("price", "must be positive")
	}
	if strings.TrimSpace(category) == "" {
		return invalid("category", "is required")
	}
	if s.productCategories != nil && !s.productCategories[category] {
		return invalid("category", fmt.Sprintf("%q is not a known category", category))
	}
	return nil
}

// UpdateProduct changes metadata only; image URLs are never touched.
func (s *service) UpdateProduct(ctx context.Context, id Identity, productID uuid.UUID, req UpdateProductRequest) (*CatalogItem, error) {
	if err := canManageCatalog(id, "update product"); err != nil {
		return nil, err
	}

	product, err := s.repository.GetProduct(ctx, productID)
	if err != nil {
		return nil, &ProductError{ProductID: productID, Op: "update", Err: Classify(err)}
	}

	if req.Name != nil {
		product.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		product.Description = *req.Description
	}
	if req.PriceMinor != nil {
		product.PriceMinor = *req.PriceMinor
	}
	if req.Category != nil {
		product.Category = *req.Category
	}
	if err := s.validateProduct(product.Name, product.Description, product.PriceMinor, product.Category); err != nil {
		return nil, err
	}
	product.UpdatedAt = s.now()

	if err := s.repository.UpdateProduct(ctx, product); err != nil {
		return nil, &ProductError{ProductID: productID, Op: "update", Err: Classify(err)}
	}
	return product, nil
}

// DeleteProduct removes the catalog item. Its images stay in the gallery.
func (s *service) DeleteProduct(ctx context.Context, id Identity, productID uuid.UUID) error {
	if err := canManageCatalog(id, "delete product"); err != nil {
		return err
	}
	if err := s.repository.DeleteProduct(ctx, productID); err != nil {
		return &ProductError{ProductID: productID, Op: "delete", Err: Classify(err)}
	}
	s.logger.InfoContext(ctx, "product deleted", "product_id", productID)
	s.emit(ctx, "product_deleted", func() error { return s.eventSink.ProductDeleted(ctx, productID) })
	return nil
}

func (s *service) GetProduct(ctx context.Context, productID uuid.UUID) (*CatalogItem, error) {
	product, err := s.repository.GetProduct(ctx, productID)
	if err != nil {
		return nil, &ProductError{ProductID: productID, Op: "get", Err: Classify(err)}
	}
	return product, nil
}

func (s *service) ListProducts(ctx context.Context, category string) ([]*CatalogItem, error) {
	products, err := s.repository.ListProducts(ctx, category)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", Classify(err))
	}
	return products, nil
}
