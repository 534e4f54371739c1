package storefront_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/tendant/simple-storefront/pkg/storefront"
)

func TestClassify(t *testing.T) {
	assert.Nil(t, storefront.Classify(nil))

	notFound := fmt.Errorf("lookup: %w", storefront.ErrNotFound)
	assert.Same(t, notFound, storefront.Classify(notFound), "kinded errors pass through")

	timeout := storefront.Classify(context.DeadlineExceeded)
	assert.ErrorIs(t, timeout, storefront.ErrStoreUnavailable)
	assert.ErrorIs(t, timeout, context.DeadlineExceeded)

	assert.ErrorIs(t, storefront.Classify(errors.New("connection reset")), storefront.ErrStoreUnavailable)
}

func TestTypedErrors(t *testing.T) {
	id := uuid.New()

	assetErr := &storefront.AssetError{AssetID: id, Op: "rename", Err: storefront.ErrNotFound}
	assert.ErrorIs(t, assetErr, storefront.ErrNotFound)
	assert.Contains(t, assetErr.Error(), id.String())

	warning := &storefront.CleanupWarning{AssetID: id, Locator: "memory://x", Err: errInjected}
	assert.ErrorIs(t, warning, storefront.ErrAssetCleanupWarning)
	assert.ErrorIs(t, warning, errInjected)
	assert.True(t, storefront.IsWarning(fmt.Errorf("wrapped: %w", warning)))
	assert.False(t, storefront.IsWarning(assetErr))

	failure := &storefront.UploadFailure{Index: 2, FileName: "c.png", Err: errInjected}
	assert.ErrorIs(t, failure, storefront.ErrAssetUploadFailed)
	assert.ErrorIs(t, failure, errInjected)

	validation := &storefront.ValidationError{Field: "price", Reason: "must be positive"}
	assert.ErrorIs(t, validation, storefront.ErrValidationFailed)
	assert.Equal(t, "validation failed: price must be positive", validation.Error())
}
