// Package firestore stores storefront records in Cloud Firestore.
//
// Collections: assets, products, cartLines, cartPairs and users, each
// optionally prefixed. A cartPairs document keyed by the (user, product)
// pair is written in the same transaction as its cart line, which makes
// duplicate lines impossible across processes. Queries use equality
// filters only; range filters and ordering happen in memory so the
// deployment needs no composite indexes.
package firestore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/tendant/simple-storefront/pkg/storefront"
)

// Option configures a Repository.
type Option func(*Repository)

// WithCollectionPrefix namespaces every collection, e.g. "staging_".
func WithCollectionPrefix(prefix string) Option {
	return func(r *Repository) { r.prefix = prefix }
}

// Repository implements storefront.Repository on Firestore.
type Repository struct {
	client *firestore.Client
	prefix string
	seq    atomic.Int64
}

var _ storefront.Repository = (*Repository)(nil)

// New wraps an existing client.
func New(client *firestore.Client, opts ...Option) *Repository {
	r := &Repository{client: client}
	for _, opt := range opts {
		opt(r)
	}
	r.seq.Store(time.Now().UnixNano())
	return r
}

// Dial creates a client for projectID. An empty credentialsFile uses
// application default credentials; FIRESTORE_EMULATOR_HOST is honoured by
// the client library.
func Dial(ctx context.Context, projectID, credentialsFile string, opts ...Option) (*Repository, error) {
	var clientOpts []option.ClientOption
	if credentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := firestore.NewClient(ctx, projectID, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	return New(client, opts...), nil
}

// Close closes the underlying client.
func (r *Repository) Close() error {
	return r.client.Close()
}

func (r *Repository) col(name string) *firestore.CollectionRef {
	return r.client.Collection(r.prefix + name)
}

func (r *Repository) assets() *firestore.CollectionRef   { return r.col("assets") }
func (r *Repository) products() *firestore.CollectionRef { return r.col("products") }
func (r *Repository) lines() *firestore.CollectionRef    { return r.col("cartLines") }
func (r *Repository) pairs() *firestore.CollectionRef    { return r.col("cartPairs") }
func (r *Repository) users() *firestore.CollectionRef    { return r.col("users") }

func mapError(operation string, err error) error {
	switch status.Code(err) {
	case codes.NotFound:
		return fmt.Errorf("%s: %w", operation, storefront.ErrNotFound)
	case codes.AlreadyExists:
		return fmt.Errorf("%s: %w", operation, storefront.ErrDuplicate)
	case codes.Aborted:
		return fmt.Errorf("%s: %w: %w", operation, storefront.ErrConflict, err)
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted:
		return fmt.Errorf("%s: %w: %w", operation, storefront.ErrStoreUnavailable, err)
	}
	return fmt.Errorf("%s: %w", operation, storefront.Classify(err))
}

// each runs fn over every document a query yields.
func each(ctx context.Context, q firestore.Query, fn func(*firestore.DocumentSnapshot) error) error {
	iter := q.Documents(ctx)
	defer iter.Stop()
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(snap); err != nil {
			return err
		}
	}
}

// Asset operations

func (r *Repository) CreateAsset(ctx context.Context, asset *storefront.AssetRecord) error {
	if _, err := r.assets().Doc(asset.ID.String()).Create(ctx, fromAsset(asset)); err != nil {
		return mapError("create asset", err)
	}
	return nil
}

func (r *Repository) GetAsset(ctx context.Context, id uuid.UUID) (*storefront.AssetRecord, error) {
	snap, err := r.assets().Doc(id.String()).Get(ctx)
	if err != nil {
		return nil, mapError("get asset", err)
	}
	var doc assetDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, mapError("decode asset", err)
	}
	return doc.record()
}

func (r *Repository) UpdateAsset(ctx context.Context, asset *storefront.AssetRecord) error {
	_, err := r.assets().Doc(asset.ID.String()).Update(ctx, []firestore.Update{
		{Path: "name", Value: asset.Name},
		{Path: "category", Value: asset.Category},
	})
	if err != nil {
		return mapError("update asset", err)
	}
	return nil
}

func (r *Repository) DeleteAsset(ctx context.Context, id uuid.UUID) error {
	if _, err := r.assets().Doc(id.String()).Delete(ctx, firestore.Exists); err != nil {
		return mapError("delete asset", err)
	}
	return nil
}

func (r *Repository) ListAssets(ctx context.Context, q storefront.AssetQuery) ([]*storefront.AssetRecord, error) {
	query := r.assets().Query
	if q.Category != "" {
		query = query.Where("category", "==", q.Category)
	}
	if q.OwnerIdentity != "" {
		query = query.Where("ownerIdentity", "==", q.OwnerIdentity)
	}

	var result []*storefront.AssetRecord
	err := each(ctx, query, func(snap *firestore.DocumentSnapshot) error {
		var doc assetDoc
		if err := snap.DataTo(&doc); err != nil {
			return err
		}
		if !q.UploadedAfter.IsZero() && doc.UploadedAt.Before(q.UploadedAfter) {
			return nil
		}
		record, err := doc.record()
		if err != nil {
			return err
		}
		result = append(result, record)
		return nil
	})
	if err != nil {
		return nil, mapError("list assets", err)
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].UploadedAt.After(result[j].UploadedAt)
	})
	return result, nil
}

// Product operations

func (r *Repository) CreateProduct(ctx context.Context, product *storefront.CatalogItem) error {
	if _, err := r.products().Doc(product.ID.String()).Create(ctx, fromProduct(product)); err != nil {
		return mapError("create product", err)
	}
	return nil
}

func (r *Repository) GetProduct(ctx context.Context, id uuid.UUID) (*storefront.CatalogItem, error) {
	snap, err := r.products().Doc(id.String()).Get(ctx)
	if err != nil {
		return nil, mapError("get product", err)
	}
	var doc productDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, mapError("decode product", err)
	}
	return doc.item()
}

func (r *Repository) UpdateProduct(ctx context.Context, product *storefront.CatalogItem) error {
	_, err := r.products().Doc(product.ID.String()).Update(ctx, []firestore.Update{
		{Path: "name", Value: product.Name},
		{Path: "description", Value: product.Description},
		{Path: "priceMinor", Value: product.PriceMinor},
		{Path: "category", Value: product.Category},
		{Path: "updatedAt", Value: product.UpdatedAt.UTC()},
	})
	if err != nil {
		return mapError("update product", err)
	}
	return nil
}

func (r *Repository) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	if _, err := r.products().Doc(id.String()).Delete(ctx, firestore.Exists); err != nil {
		return mapError("delete product", err)
	}
	return nil
}

func (r *Repository) ListProducts(ctx context.Context, category string) ([]*storefront.CatalogItem, error) {
	query := r.products().Query
	if category != "" {
		query = query.Where("category", "==", category)
	}

	var result []*storefront.CatalogItem
	err := each(ctx, query, func(snap *firestore.DocumentSnapshot) error {
		var doc productDoc
		if err := snap.DataTo(&doc); err != nil {
			return err
		}
		item, err := doc.item()
		if err != nil {
			return err
		}
		result = append(result, item)
		return nil
	})
	if err != nil {
		return nil, mapError("list products", err)
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// Cart operations

func (r *Repository) CreateCartLine(ctx context.Context, line *storefront.CartLine) error {
	lineRef := r.lines().Doc(line.ID.String())
	pairRef := r.pairs().Doc(pairDocID(line.UserIdentity, line.ProductID))
	doc := fromLine(line, r.seq.Add(1))

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if err := tx.Create(pairRef, cartPairDoc{LineID: doc.ID}); err != nil {
			return err
		}
		return tx.Create(lineRef, doc)
	})
	if err != nil {
		return mapError("create cart line", err)
	}
	return nil
}

func (r *Repository) GetCartLine(ctx context.Context, id uuid.UUID) (*storefront.CartLine, error) {
	snap, err := r.lines().Doc(id.String()).Get(ctx)
	if err != nil {
		return nil, mapError("get cart line", err)
	}
	var doc cartLineDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, mapError("decode cart line", err)
	}
	return doc.line()
}

func (r *Repository) FindCartLine(ctx context.Context, userIdentity string, productID uuid.UUID) (*storefront.CartLine, error) {
	snap, err := r.pairs().Doc(pairDocID(userIdentity, productID)).Get(ctx)
	if err != nil {
		return nil, mapError("find cart line", err)
	}
	var pair cartPairDoc
	if err := snap.DataTo(&pair); err != nil {
		return nil, mapError("decode cart pair", err)
	}
	id, err := uuid.Parse(pair.LineID)
	if err != nil {
		return nil, mapError("decode cart pair", err)
	}
	return r.GetCartLine(ctx, id)
}

// readLineTx loads a line inside tx and checks the expected quantity.
// expected 0 skips the check.
func (r *Repository) readLineTx(tx *firestore.Transaction, ref *firestore.DocumentRef, expected int64) (cartLineDoc, error) {
	var doc cartLineDoc
	snap, err := tx.Get(ref)
	if err != nil {
		return doc, err
	}
	if err := snap.DataTo(&doc); err != nil {
		return doc, err
	}
	if expected > 0 && doc.Quantity != expected {
		return doc, storefront.ErrConflict
	}
	return doc, nil
}

func (r *Repository) UpdateCartLineQuantity(ctx context.Context, id uuid.UUID, expected, quantity int64, updatedAt time.Time) error {
	ref := r.lines().Doc(id.String())
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if _, err := r.readLineTx(tx, ref, expected); err != nil {
			return err
		}
		return tx.Update(ref, []firestore.Update{
			{Path: "quantity", Value: quantity},
			{Path: "updatedAt", Value: updatedAt.UTC()},
		})
	})
	if err != nil {
		return mapError("update cart line", err)
	}
	return nil
}

func (r *Repository) DeleteCartLine(ctx context.Context, id uuid.UUID, expected int64) error {
	ref := r.lines().Doc(id.String())
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := r.readLineTx(tx, ref, expected)
		if err != nil {
			return err
		}
		productID, err := uuid.Parse(doc.ProductID)
		if err != nil {
			return err
		}
		if err := tx.Delete(ref); err != nil {
			return err
		}
		return tx.Delete(r.pairs().Doc(pairDocID(doc.UserIdentity, productID)))
	})
	if err != nil {
		return mapError("delete cart line", err)
	}
	return nil
}

func (r *Repository) listLineDocs(ctx context.Context, userIdentity string) ([]cartLineDoc, error) {
	var docs []cartLineDoc
	err := each(ctx, r.lines().Where("userIdentity", "==", userIdentity), func(snap *firestore.DocumentSnapshot) error {
		var doc cartLineDoc
		if err := snap.DataTo(&doc); err != nil {
			return err
		}
		docs = append(docs, doc)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(docs, func(i, j int) bool {
		if !docs[i].AddedAt.Equal(docs[j].AddedAt) {
			return docs[i].AddedAt.Before(docs[j].AddedAt)
		}
		return docs[i].Seq < docs[j].Seq
	})
	return docs, nil
}

func (r *Repository) ListCartLines(ctx context.Context, userIdentity string) ([]*storefront.CartLine, error) {
	docs, err := r.listLineDocs(ctx, userIdentity)
	if err != nil {
		return nil, mapError("list cart lines", err)
	}
	result := make([]*storefront.CartLine, 0, len(docs))
	for _, doc := range docs {
		line, err := doc.line()
		if err != nil {
			return nil, mapError("list cart lines", err)
		}
		result = append(result, line)
	}
	return result, nil
}

func (r *Repository) DeleteCartLines(ctx context.Context, userIdentity string) (int, error) {
	docs, err := r.listLineDocs(ctx, userIdentity)
	if err != nil {
		return 0, mapError("delete cart lines", err)
	}
	if len(docs) == 0 {
		return 0, nil
	}

	bw := r.client.BulkWriter(ctx)
	var jobs []*firestore.BulkWriterJob
	for _, doc := range docs {
		productID, err := uuid.Parse(doc.ProductID)
		if err != nil {
			bw.End()
			return 0, mapError("delete cart lines", err)
		}
		for _, ref := range []*firestore.DocumentRef{
			r.lines().Doc(doc.ID),
			r.pairs().Doc(pairDocID(doc.UserIdentity, productID)),
		} {
			job, err := bw.Delete(ref)
			if err != nil {
				bw.End()
				return 0, mapError("delete cart lines", err)
			}
			jobs = append(jobs, job)
		}
	}
	bw.End()

	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			return 0, mapError("delete cart lines", err)
		}
	}
	return len(docs), nil
}

// User operations

func (r *Repository) CreateUser(ctx context.Context, user *storefront.User) error {
	if _, err := r.users().Doc(user.Identity).Create(ctx, fromUser(user)); err != nil {
		return mapError("create user", err)
	}
	return nil
}

func (r *Repository) GetUser(ctx context.Context, identity string) (*storefront.User, error) {
	snap, err := r.users().Doc(identity).Get(ctx)
	if err != nil {
		return nil, mapError("get user", err)
	}
	var doc userDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, mapError("decode user", err)
	}
	return doc.user(), nil
}

func (r *Repository) UpdateUserRole(ctx context.Context, identity string, role storefront.Role, updatedAt time.Time) error {
	_, err := r.users().Doc(identity).Update(ctx, []firestore.Update{
		{Path: "role", Value: string(role)},
		{Path: "updatedAt", Value: updatedAt.UTC()},
	})
	if err != nil {
		return mapError("update user role", err)
	}
	return nil
}

func (r *Repository) ListUsers(ctx context.Context) ([]*storefront.User, error) {
	var result []*storefront.User
	err := each(ctx, r.users().Query, func(snap *firestore.DocumentSnapshot) error {
		var doc userDoc
		if err := snap.DataTo(&doc); err != nil {
			return err
		}
		result = append(result, doc.user())
		return nil
	})
	if err != nil {
		return nil, mapError("list users", err)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Identity < result[j].Identity })
	return result, nil
}
