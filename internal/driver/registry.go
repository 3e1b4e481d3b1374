package driver

import (
	"context"

	"github.com/hgwr/TableGlass-sub000/internal/schema"
	"github.com/hgwr/TableGlass-sub000/internal/secret"
	"github.com/hgwr/TableGlass-sub000/internal/value"
)

// Factory constructs an unconnected Connection for a profile. The resolver
// supplies the password at connect time; factories must not resolve it
// eagerly.
type Factory func(profile Profile, secrets secret.Resolver) Connection

// Registry maps engine kinds to connection factories. It is a value:
// registration returns a new Registry and never mutates shared state, so a
// built registry is safe for concurrent use from any number of callers.
type Registry struct {
	factories map[EngineKind]Factory
	fallback  Factory
}

// NewRegistry returns a registry whose every kind resolves to a placeholder
// connection that fails all operations with an unavailable error.
func NewRegistry() Registry {
	return Registry{fallback: newPlaceholder}
}

func newPlaceholder(profile Profile, _ secret.Resolver) Connection {
	return &placeholderConn{
		kind:   profile.Engine,
		reason: "no driver registered for this engine",
	}
}

// With returns a copy of the registry with factory registered for kind,
// shadowing the fallback for that kind. The receiver is unchanged.
func (r Registry) With(kind EngineKind, factory Factory) Registry {
	factories := make(map[EngineKind]Factory, len(r.factories)+1)
	for k, f := range r.factories {
		factories[k] = f
	}
	factories[kind] = factory
	return Registry{factories: factories, fallback: r.fallback}
}

// MakeConnection constructs a connection for the profile's engine kind,
// falling back to the placeholder for unregistered kinds. The zero-value
// Registry behaves like NewRegistry().
func (r Registry) MakeConnection(profile Profile, secrets secret.Resolver) Connection {
	if f, ok := r.factories[profile.Engine]; ok {
		return f(profile, secrets)
	}
	if r.fallback == nil {
		return newPlaceholder(profile, secrets)
	}
	return r.fallback(profile, secrets)
}

// placeholderConn deterministically fails every operation. It lets the
// surrounding application offer connection UI for engines whose driver is
// not linked without special-casing "unsupported" anywhere else.
type placeholderConn struct {
	kind   EngineKind
	reason string
}

func (p *placeholderConn) err() error {
	return &UnavailableError{Kind: p.kind, Reason: p.reason}
}

func (p *placeholderConn) Connect(context.Context) error    { return p.err() }
func (p *placeholderConn) Disconnect(context.Context) error { return nil }
func (p *placeholderConn) IsConnected() bool                { return false }

func (p *placeholderConn) Execute(context.Context, value.Request) (*value.Result, error) {
	return nil, p.err()
}

func (p *placeholderConn) Metadata(context.Context, schema.Scope) (*schema.Schema, error) {
	return nil, p.err()
}

func (p *placeholderConn) BeginTransaction(context.Context, TxOptions) (Transaction, error) {
	return nil, p.err()
}
