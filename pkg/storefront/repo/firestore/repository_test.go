package firestore_test

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-storefront/pkg/storefront"
	"github.com/tendant/simple-storefront/pkg/storefront/repo/firestore"
	"github.com/tendant/simple-storefront/pkg/storefront/repo/repotest"
)

// Runs against the Firestore emulator when FIRESTORE_EMULATOR_HOST is set.
func TestFirestoreRepository(t *testing.T) {
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}

	ctx := context.Background()
	repotest.Run(t, func(t *testing.T) storefront.Repository {
		prefix := fmt.Sprintf("t%s_", uuid.NewString()[:8])
		repo, err := firestore.Dial(ctx, "storefront-test", "", firestore.WithCollectionPrefix(prefix))
		require.NoError(t, err)
		t.Cleanup(func() { _ = repo.Close() })
		return repo
	})
}

func TestPairDocIDIsStable(t *testing.T) {
	product := uuid.New()
	a := firestore.PairDocID("uid/with/slashes", product)
	b := firestore.PairDocID("uid/with/slashes", product)
	assert.Equal(t, a, b)
	assert.NotContains(t, a, "/")
	assert.NotEqual(t, a, firestore.PairDocID("other", product))
}
