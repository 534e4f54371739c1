package storefront

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/tendant/simple-storefront/pkg/storefront/objectkey"
)

// fileError ties a per-file upload failure to its input position.
type fileError struct {
	index int
	name  string
	err   error
}

func (e *fileError) Error() string { return e.err.Error() }
func (e *fileError) Unwrap() error { return e.err }

func (s *service) Upload(ctx context.Context, id Identity, req UploadAssetsRequest) ([]*AssetRecord, error) {
	if err := canUpload(id); err != nil {
		return nil, err
	}
	if err := validateUpload(req.Name, req.Category, req.Files, s.galleryCategories); err != nil {
		return nil, err
	}
	return s.uploadFiles(ctx, id, strings.TrimSpace(req.Name), req.Category, req.Files, objectkey.PrefixGallery, uuid.Nil)
}

func validateUpload(name, category string, files []FileUpload, categories map[string]bool) error {
	if strings.TrimSpace(name) == "" {
		return invalid("name", "is required")
	}
	if strings.TrimSpace(category) == "" {
		return invalid("category", "is required")
	}
	if categories != nil && !categories[category] {
		return invalid("category", fmt.Sprintf("%q is not a known category", category))
	}
	if len(files) == 0 {
		return invalid("files", "at least one file is required")
	}
	for i, f := range files {
		if f.Reader == nil {
			return invalid(fmt.Sprintf("files[%d]", i), "has no content")
		}
	}
	return nil
}

// assetName is the record name of file i of n.
func assetName(name string, i, n int) string {
	if n == 1 {
		return name
	}
	return fmt.Sprintf("%s (%d/%d)", name, i+1, n)
}

// uploadFiles writes every blob before its record. Files are processed
// concurrently; results keep input order. On failure records already
// inserted stay, and blobs whose record was never inserted are reported as
// orphans.
func (s *service) uploadFiles(ctx context.Context, id Identity, name, category string, files []FileUpload, prefix string, productID uuid.UUID) ([]*AssetRecord, error) {
	records := make([]*AssetRecord, len(files))
	locators := make([]string, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.uploadConcurrency)

	for i, f := range files {
		g.Go(func() error {
			// A sibling already failed; do not start new writes.
			if err := gctx.Err(); err != nil {
				return err
			}

			asset := &AssetRecord{
				ID:            uuid.New(),
				Name:          assetName(name, i, len(files)),
				Category:      category,
				OwnerIdentity: id.Subject,
				OwnerEmail:    id.Email,
				Size:          f.Size,
				ProductID:     productID,
			}

			reader, contentType := sniffContentType(f.Reader, f.ContentType)
			asset.ContentType = contentType

			key := s.keyGen.GenerateKey(asset.ID, &objectkey.KeyMetadata{
				Prefix:        prefix,
				FileName:      f.FileName,
				Category:      category,
				OwnerIdentity: id.Subject,
			})

			url, err := s.blobStore.Put(gctx, key, reader, contentType)
			if err != nil {
				return &fileError{index: i, name: f.FileName, err: fmt.Errorf("put blob %s: %w", key, err)}
			}
			locators[i] = url

			asset.URL = url
			asset.UploadedAt = s.now()

			// The blob is written; insert with the caller's context so a
			// failing sibling does not orphan it.
			if err := s.repository.CreateAsset(ctx, asset); err != nil {
				return &fileError{index: i, name: f.FileName, err: &AssetError{AssetID: asset.ID, Op: "create", Err: err}}
			}
			records[i] = asset
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, s.uploadFailure(ctx, err, records, locators)
	}

	for _, asset := range records {
		s.logger.InfoContext(ctx, "asset uploaded", "asset_id", asset.ID, "url", asset.URL, "owner", asset.OwnerIdentity)
		s.emit(ctx, "asset_uploaded", func() error { return s.eventSink.AssetUploaded(ctx, asset) })
	}
	return records, nil
}

func (s *service) uploadFailure(ctx context.Context, err error, records []*AssetRecord, locators []string) error {
	failure := &UploadFailure{Index: -1, Err: err}
	var fe *fileError
	if errors.As(err, &fe) {
		failure.Index = fe.index
		failure.FileName = fe.name
		failure.Err = fe.err
	}

	for i, locator := range locators {
		if records[i] != nil {
			failure.Created = append(failure.Created, records[i])
			continue
		}
		if locator == "" {
			continue
		}
		failure.Orphaned = append(failure.Orphaned, locator)
		s.logger.WarnContext(ctx, "blob orphaned by failed upload", "locator", locator, "error", failure.Err)
		s.emit(ctx, "blob_orphaned", func() error { return s.eventSink.BlobOrphaned(ctx, locator, failure.Err) })
	}

	s.logger.ErrorContext(ctx, "upload failed",
		"file_index", failure.Index,
		"file_name", failure.FileName,
		"created", len(failure.Created),
		"orphaned", len(failure.Orphaned),
		"error", failure.Err)
	return failure
}

// sniffContentType returns a reader positioned at the start of the payload
// and the content type, detected from the first bytes when not declared.
func sniffContentType(r io.Reader, declared string) (io.Reader, string) {
	if declared != "" {
		return r, declared
	}
	buffer := make([]byte, 512)
	n, _ := io.ReadFull(r, buffer)
	return io.MultiReader(bytes.NewReader(buffer[:n]), r), http.DetectContentType(buffer[:n])
}

func (s *service) RenameAsset(ctx context.Context, id Identity, assetID uuid.UUID, newName string) (*AssetRecord, error) {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return nil, invalid("name", "is required")
	}
	return s.updateAsset(ctx, id, assetID, "rename", func(a *AssetRecord) { a.Name = newName })
}

func (s *service) RetagAsset(ctx context.Context, id Identity, assetID uuid.UUID, category string) (*AssetRecord, error) {
	if strings.TrimSpace(category) == "" {
		return nil, invalid("category", "is required")
	}
	if s.galleryCategories != nil && !s.galleryCategories[category] {
		return nil, invalid("category", fmt.Sprintf("%q is not a known category", category))
	}
	return s.updateAsset(ctx, id, assetID, "retag", func(a *AssetRecord) { a.Category = category })
}

// updateAsset applies a metadata-only change. The blob is never touched.
func (s *service) updateAsset(ctx context.Context, id Identity, assetID uuid.UUID, op string, apply func(*AssetRecord)) (*AssetRecord, error) {
	asset, err := s.repository.GetAsset(ctx, assetID)
	if err != nil {
		return nil, &AssetError{AssetID: assetID, Op: op, Err: Classify(err)}
	}
	if err := canModifyAsset(id, asset); err != nil {
		return nil, err
	}

	apply(asset)
	if err := s.repository.UpdateAsset(ctx, asset); err != nil {
		return nil, &AssetError{AssetID: assetID, Op: op, Err: Classify(err)}
	}

	s.logger.InfoContext(ctx, "asset updated", "asset_id", assetID, "op", op)
	return asset, nil
}

// DeleteAsset removes the record first and the blob second. A failed blob
// delete leaves an orphan and is reported as a *CleanupWarning.
func (s *service) DeleteAsset(ctx context.Context, id Identity, assetID uuid.UUID) error {
	asset, err := s.repository.GetAsset(ctx, assetID)
	if err != nil {
		return &AssetError{AssetID: assetID, Op: "delete", Err: Classify(err)}
	}
	if err := canModifyAsset(id, asset); err != nil {
		return err
	}
	// A product image lives as long as its product.
	if asset.IsProductImage() {
		_, err := s.repository.GetProduct(ctx, asset.ProductID)
		switch {
		case err == nil:
			return &AssetError{AssetID: assetID, Op: "delete", Err: fmt.Errorf("%w: image of product %s", ErrConflict, asset.ProductID)}
		case !errors.Is(err, ErrNotFound):
			return &AssetError{AssetID: assetID, Op: "delete", Err: Classify(err)}
		}
	}

	if err := s.repository.DeleteAsset(ctx, assetID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return &AssetError{AssetID: assetID, Op: "delete", Err: err}
		}
		return &AssetError{AssetID: assetID, Op: "delete", Err: fmt.Errorf("%w: %w", ErrAssetDeleteFailed, err)}
	}
	s.emit(ctx, "asset_deleted", func() error { return s.eventSink.AssetDeleted(ctx, assetID) })

	if asset.URL == "" {
		return nil
	}
	if err := s.blobStore.Delete(ctx, asset.URL); err != nil {
		s.logger.WarnContext(ctx, "asset record deleted but blob remains", "asset_id", assetID, "locator", asset.URL, "error", err)
		s.emit(ctx, "blob_cleanup_failed", func() error { return s.eventSink.BlobCleanupFailed(ctx, assetID, asset.URL, err) })
		return &CleanupWarning{AssetID: assetID, Locator: asset.URL, Err: err}
	}

	s.logger.InfoContext(ctx, "asset deleted", "asset_id", assetID)
	return nil
}

func (s *service) GetAsset(ctx context.Context, id Identity, assetID uuid.UUID) (*AssetRecord, error) {
	if err := canViewGallery(id, "get asset"); err != nil {
		return nil, err
	}
	asset, err := s.repository.GetAsset(ctx, assetID)
	if err != nil {
		return nil, &AssetError{AssetID: assetID, Op: "get", Err: Classify(err)}
	}
	return asset, nil
}

// ListAssets returns gallery uploads matching filter, newest first. Product
// images are not part of the gallery.
func (s *service) ListAssets(ctx context.Context, id Identity, filter AssetFilter) ([]*AssetRecord, error) {
	if err := canViewGallery(id, "list assets"); err != nil {
		return nil, err
	}

	var query AssetQuery
	switch filter.Kind {
	case FilterAll, "":
	case FilterByCategory:
		if filter.Category == "" {
			return nil, invalid("category", "is required for the category filter")
		}
		query.Category = filter.Category
	case FilterByOwner:
		if filter.Owner == "" {
			return nil, invalid("owner", "is required for the owner filter")
		}
		query.OwnerIdentity = filter.Owner
	case FilterRecent:
		within := filter.Within
		if within <= 0 {
			within = RecentWindow
		}
		query.UploadedAfter = s.now().Add(-within)
	default:
		return nil, invalid("filter", fmt.Sprintf("unknown kind %q", filter.Kind))
	}

	assets, err := s.repository.ListAssets(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", Classify(err))
	}

	gallery := assets[:0]
	for _, a := range assets {
		if !a.IsProductImage() {
			gallery = append(gallery, a)
		}
	}
	return gallery, nil
}

// OpenAsset streams a blob by record id. It needs no identity because product
// images are served to every visitor.
func (s *service) OpenAsset(ctx context.Context, assetID uuid.UUID) (io.ReadCloser, *AssetRecord, error) {
	asset, err := s.repository.GetAsset(ctx, assetID)
	if err != nil {
		return nil, nil, &AssetError{AssetID: assetID, Op: "open", Err: Classify(err)}
	}
	rc, err := s.blobStore.Open(ctx, asset.URL)
	if err != nil {
		return nil, nil, &AssetError{AssetID: assetID, Op: "open", Err: Classify(err)}
	}
	return rc, asset, nil
}
