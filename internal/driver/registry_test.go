package driver

import (
	"context"
	"errors"
	"testing"

	"github.com/hgwr/TableGlass-sub000/internal/schema"
	"github.com/hgwr/TableGlass-sub000/internal/secret"
	"github.com/hgwr/TableGlass-sub000/internal/value"
)

// fakeConn is a minimal Connection for registry tests.
type fakeConn struct {
	profile Profile
}

func (f *fakeConn) Connect(context.Context) error    { return nil }
func (f *fakeConn) Disconnect(context.Context) error { return nil }
func (f *fakeConn) IsConnected() bool                { return true }

func (f *fakeConn) Execute(context.Context, value.Request) (*value.Result, error) {
	return &value.Result{}, nil
}

func (f *fakeConn) Metadata(context.Context, schema.Scope) (*schema.Schema, error) {
	return &schema.Schema{}, nil
}

func (f *fakeConn) BeginTransaction(context.Context, TxOptions) (Transaction, error) {
	return nil, errors.New("fake: no transactions")
}

func assertUnavailable(t *testing.T, err error, kind EngineKind) {
	t.Helper()
	var ue *UnavailableError
	if !errors.As(err, &ue) {
		t.Fatalf("error = %v, want *UnavailableError", err)
	}
	if ue.Kind != kind {
		t.Errorf("UnavailableError.Kind = %q, want %q", ue.Kind, kind)
	}
	if ue.Reason == "" {
		t.Error("UnavailableError.Reason should name a reason")
	}
}

func TestRegistryPlaceholderFailsEveryOperation(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry()

	for _, kind := range []EngineKind{EnginePostgres, EngineMySQL, EngineSQLite, EngineDuckDB} {
		t.Run(string(kind), func(t *testing.T) {
			conn := reg.MakeConnection(Profile{Engine: kind}, secret.None{})

			assertUnavailable(t, conn.Connect(ctx), kind)

			_, err := conn.Execute(ctx, value.NewRequest("SELECT 1"))
			assertUnavailable(t, err, kind)

			_, err = conn.Metadata(ctx, schema.AllScope())
			assertUnavailable(t, err, kind)

			_, err = conn.BeginTransaction(ctx, TxOptions{})
			assertUnavailable(t, err, kind)

			if conn.IsConnected() {
				t.Error("placeholder should never report connected")
			}
			if err := conn.Disconnect(ctx); err != nil {
				t.Errorf("placeholder Disconnect() = %v, want nil", err)
			}
		})
	}
}

func TestRegistryZeroValueFallsBackToPlaceholder(t *testing.T) {
	var reg Registry

	conn := reg.MakeConnection(Profile{Engine: EngineSQLite}, secret.None{})
	assertUnavailable(t, conn.Connect(context.Background()), EngineSQLite)
}

func TestRegistryWithOverridesPlaceholder(t *testing.T) {
	reg := NewRegistry().With(EnginePostgres, func(p Profile, _ secret.Resolver) Connection {
		return &fakeConn{profile: p}
	})

	conn := reg.MakeConnection(Profile{Engine: EnginePostgres, Host: "db"}, secret.None{})
	fc, ok := conn.(*fakeConn)
	if !ok {
		t.Fatalf("MakeConnection returned %T, want *fakeConn", conn)
	}
	if fc.profile.Host != "db" {
		t.Errorf("profile.Host = %q, want %q", fc.profile.Host, "db")
	}

	// Other kinds still hit the placeholder.
	other := reg.MakeConnection(Profile{Engine: EngineMySQL}, secret.None{})
	assertUnavailable(t, other.Connect(context.Background()), EngineMySQL)
}

func TestRegistryWithDoesNotMutateReceiver(t *testing.T) {
	base := NewRegistry()
	_ = base.With(EnginePostgres, func(p Profile, _ secret.Resolver) Connection {
		return &fakeConn{profile: p}
	})

	conn := base.MakeConnection(Profile{Engine: EnginePostgres}, secret.None{})
	assertUnavailable(t, conn.Connect(context.Background()), EnginePostgres)
}

func TestRegistryWithLastRegistrationWins(t *testing.T) {
	first := func(p Profile, _ secret.Resolver) Connection { return &fakeConn{} }
	second := func(p Profile, _ secret.Resolver) Connection {
		return &fakeConn{profile: Profile{Host: "second"}}
	}

	reg := NewRegistry().
		With(EnginePostgres, first).
		With(EnginePostgres, second)

	conn := reg.MakeConnection(Profile{Engine: EnginePostgres}, secret.None{})
	if fc := conn.(*fakeConn); fc.profile.Host != "second" {
		t.Errorf("profile.Host = %q, want %q", fc.profile.Host, "second")
	}
}

func TestEngineKindDefaultPort(t *testing.T) {
	tests := []struct {
		kind EngineKind
		want int
	}{
		{EnginePostgres, 5432},
		{EngineMySQL, 3306},
		{EngineSQLite, 0},
		{EngineDuckDB, 0},
	}
	for _, tt := range tests {
		if got := tt.kind.DefaultPort(); got != tt.want {
			t.Errorf("%s DefaultPort() = %d, want %d", tt.kind, got, tt.want)
		}
	}
}

func TestIsolationLevelSQL(t *testing.T) {
	tests := []struct {
		level IsolationLevel
		want  string
	}{
		{IsolationDefault, ""},
		{IsolationReadUncommitted, "ISOLATION LEVEL READ UNCOMMITTED"},
		{IsolationReadCommitted, "ISOLATION LEVEL READ COMMITTED"},
		{IsolationRepeatableRead, "ISOLATION LEVEL REPEATABLE READ"},
		{IsolationSerializable, "ISOLATION LEVEL SERIALIZABLE"},
	}
	for _, tt := range tests {
		if got := tt.level.SQL(); got != tt.want {
			t.Errorf("SQL() = %q, want %q", got, tt.want)
		}
	}
}
