package storefront

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Error kinds. Every error returned by the Service matches at least one of
// these through errors.Is.
var (
	// ErrNotFound indicates the referenced id does not resolve. Often benign,
	// the result of a concurrent delete.
	ErrNotFound = errors.New("not found")

	// ErrValidationFailed indicates a missing required field or a
	// non-positive quantity or price.
	ErrValidationFailed = errors.New("validation failed")

	// ErrAssetUploadFailed indicates a blob write or record insert failed
	// during an upload. Blobs written before the failure are left orphaned.
	ErrAssetUploadFailed = errors.New("asset upload failed")

	// ErrAssetDeleteFailed indicates the metadata delete failed; the blob was
	// not touched.
	ErrAssetDeleteFailed = errors.New("asset delete failed")

	// ErrAssetCleanupWarning indicates the record was deleted but its blob
	// could not be removed. The delete itself succeeded.
	ErrAssetCleanupWarning = errors.New("asset cleanup warning")

	// ErrStoreUnavailable indicates an I/O failure or timeout talking to
	// either store.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrForbidden indicates the caller's role does not allow the command.
	ErrForbidden = errors.New("forbidden")

	// ErrConflict indicates a conditional write lost against a concurrent
	// writer more times than the command is willing to re-apply, or that the
	// target is still referenced (an image of a live product).
	ErrConflict = errors.New("conflict")

	// ErrDuplicate indicates a pair-unique create found an existing line.
	// Repositories return it; the Service resolves it by merging.
	ErrDuplicate = errors.New("duplicate")
)

// ValidationError describes which input failed validation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidationFailed
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// AssetError represents an error related to asset operations
type AssetError struct {
	AssetID uuid.UUID
	Op      string
	Err     error
}

func (e *AssetError) Error() string {
	return fmt.Sprintf("asset operation %s failed for asset %s: %v", e.Op, e.AssetID, e.Err)
}

func (e *AssetError) Unwrap() error {
	return e.Err
}

// ProductError represents an error related to catalog operations
type ProductError struct {
	ProductID uuid.UUID
	Op        string
	Err       error
}

func (e *ProductError) Error() string {
	return fmt.Sprintf("product operation %s failed for product %s: %v", e.Op, e.ProductID, e.Err)
}

func (e *ProductError) Unwrap() error {
	return e.Err
}

// CartError represents an error related to cart operations
type CartError struct {
	LineID uuid.UUID
	Op     string
	Err    error
}

func (e *CartError) Error() string {
	return fmt.Sprintf("cart operation %s failed for line %s: %v", e.Op, e.LineID, e.Err)
}

func (e *CartError) Unwrap() error {
	return e.Err
}

// StorageError represents an error related to blob storage operations
type StorageError struct {
	Backend string
	Locator string
	Op      string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage operation %s failed for %s on backend %s: %v", e.Op, e.Locator, e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// CleanupWarning is returned by DeleteAsset when the record is gone but the
// blob is still in the store. The locator is kept for out-of-band cleanup.
type CleanupWarning struct {
	AssetID uuid.UUID
	Locator string
	Err     error
}

func (w *CleanupWarning) Error() string {
	return fmt.Sprintf("asset %s deleted but blob %s was not removed: %v", w.AssetID, w.Locator, w.Err)
}

// Unwrap exposes both the warning kind and the underlying blob error.
func (w *CleanupWarning) Unwrap() []error {
	return []error{ErrAssetCleanupWarning, w.Err}
}

// IsWarning reports whether err only carries a non-fatal cleanup warning.
func IsWarning(err error) bool {
	var w *CleanupWarning
	return errors.As(err, &w)
}

// UploadFailure is returned by Upload. Index and FileName identify the file
// that failed first (Index is -1 when the call was cancelled before any file
// failed). Orphaned lists the locators of blobs written without a record;
// Created lists records that were inserted and are not rolled back.
type UploadFailure struct {
	Index    int
	FileName string
	Orphaned []string
	Created  []*AssetRecord
	Err      error
}

func (e *UploadFailure) Error() string {
	return fmt.Sprintf("upload of file %d (%s) failed, %d orphaned blob(s): %v", e.Index, e.FileName, len(e.Orphaned), e.Err)
}

func (e *UploadFailure) Unwrap() []error {
	return []error{ErrAssetUploadFailed, e.Err}
}

// Classify maps an error from a backend to its kind. Errors that already
// carry a kind are returned unchanged; anything else (I/O, timeouts,
// cancellation) is reported as ErrStoreUnavailable.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	for _, kind := range []error{
		ErrNotFound, ErrValidationFailed, ErrAssetUploadFailed, ErrAssetDeleteFailed,
		ErrAssetCleanupWarning, ErrStoreUnavailable, ErrForbidden, ErrConflict, ErrDuplicate,
	} {
		if errors.Is(err, kind) {
			return err
		}
	}
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}
