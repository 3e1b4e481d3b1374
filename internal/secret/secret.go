// Package secret keeps database passwords out of persisted profiles.
// Profiles carry an opaque identifier; the store maps identifiers to
// secrets, and the resolver turns an identifier into an optional secret at
// connect time. Secret values must never appear in logs or error text.
package secret

import "context"

// Store persists secrets keyed by caller-chosen identifiers. Writes are
// upserts; deletes are idempotent.
type Store interface {
	// Set stores secret under id, overwriting any existing value.
	Set(ctx context.Context, id, secret string) error

	// Get returns the secret for id. A missing id is (_, false, nil),
	// never an error.
	Get(ctx context.Context, id string) (string, bool, error)

	// Delete removes the secret for id. Deleting a missing id succeeds.
	Delete(ctx context.Context, id string) error

	// Close releases the underlying storage.
	Close() error
}

// Resolver resolves a profile's password reference. An empty id and a
// missing record both resolve to "no secret" without error; some engines
// legitimately have no password.
type Resolver interface {
	Resolve(ctx context.Context, id string) (string, bool, error)
}

// StoreResolver adapts a Store into a Resolver.
type StoreResolver struct {
	Store Store
}

// Resolve looks id up in the store. An empty id short-circuits to no
// secret without touching storage.
func (r StoreResolver) Resolve(ctx context.Context, id string) (string, bool, error) {
	if id == "" {
		return "", false, nil
	}
	return r.Store.Get(ctx, id)
}

// None is a Resolver that never has a secret. Useful for engines without
// authentication and for tests.
type None struct{}

// Resolve always reports no secret.
func (None) Resolve(context.Context, string) (string, bool, error) {
	return "", false, nil
}
