// Package storefront provides the consistency core of a small storefront:
// gallery and product assets kept in lockstep across a blob store and a
// metadata store, a product catalog built on top of those assets, and a
// per-user cart of mergeable, quantity-bearing lines.
//
// A single Service interface exposes every command. Each command receives the
// caller's Identity explicitly; the package never keeps session state.
// Implementations of repositories (memory, Postgres, SQLite, Firestore) and
// blob stores (memory, filesystem, S3, GCS) are provided under subpackages.
//
// Consistency Strategy
//
// The two stores share no transaction. Uploads write the blob before the
// record, deletes remove the record before the blob, so the only partial state
// that can be observed is an orphaned blob, never a record pointing at a
// missing blob. Orphans are logged and reported to the EventSink.
//
// Cart lines are unique per (user, product). Mutations for one pair are
// serialized in-process by a keyed lock and guarded at the store boundary by
// conditional writes (pair-unique create, quantity compare-and-set), so
// several processes sharing one store stay correct.
package storefront
