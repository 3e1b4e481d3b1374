// Package driver defines the contracts every database driver must satisfy:
// query execution, metadata introspection, connection lifecycle,
// transactions, and table editing. Concrete drivers live in subpackages;
// the factory registry hands out connections by engine kind.
package driver

import (
	"context"

	"github.com/google/uuid"

	"github.com/hgwr/TableGlass-sub000/internal/schema"
	"github.com/hgwr/TableGlass-sub000/internal/value"
)

// EngineKind names the relational database product a profile targets.
type EngineKind string

const (
	EnginePostgres EngineKind = "postgres"
	EngineMySQL    EngineKind = "mysql"
	EngineSQLite   EngineKind = "sqlite"
	EngineDuckDB   EngineKind = "duckdb"
)

// DefaultPort returns the engine's conventional TCP port, or 0 for
// file-based engines.
func (k EngineKind) DefaultPort() int {
	switch k {
	case EnginePostgres:
		return 5432
	case EngineMySQL:
		return 3306
	default:
		return 0
	}
}

// Profile carries everything needed to construct a connection. It never
// holds a plaintext password, only an opaque reference into the secret
// store; the driver resolves it at connect time.
type Profile struct {
	Engine      EngineKind
	Host        string
	Port        int
	User        string
	Database    string
	PasswordRef string
}

// Executor runs one statement. Implementations must be safe for concurrent
// callers; serialization of the underlying physical connection is the
// implementation's job, not the caller's.
type Executor interface {
	Execute(ctx context.Context, req value.Request) (*value.Result, error)
}

// MetadataProvider introspects database structure. It is read-only at the
// domain level, though it issues queries internally.
type MetadataProvider interface {
	Metadata(ctx context.Context, scope schema.Scope) (*schema.Schema, error)
}

// IsolationLevel selects the transaction isolation level. The zero value
// defers to the engine default.
type IsolationLevel int

const (
	IsolationDefault IsolationLevel = iota
	IsolationReadUncommitted
	IsolationReadCommitted
	IsolationRepeatableRead
	IsolationSerializable
)

// SQL returns the standard ISOLATION LEVEL clause, or "" for the default.
func (l IsolationLevel) SQL() string {
	switch l {
	case IsolationReadUncommitted:
		return "ISOLATION LEVEL READ UNCOMMITTED"
	case IsolationReadCommitted:
		return "ISOLATION LEVEL READ COMMITTED"
	case IsolationRepeatableRead:
		return "ISOLATION LEVEL REPEATABLE READ"
	case IsolationSerializable:
		return "ISOLATION LEVEL SERIALIZABLE"
	default:
		return ""
	}
}

// TxOptions configures BeginTransaction.
type TxOptions struct {
	Isolation IsolationLevel
}

// Connection is a logical connection to one database.
type Connection interface {
	Executor
	MetadataProvider

	// Connect establishes the physical connection and verifies liveness.
	// It is a no-op when already connected.
	Connect(ctx context.Context) error

	// Disconnect tears the connection down: it cancels in-flight work,
	// abandons open transactions, and blocks until everything has exited;
	// after it returns no operation started earlier is still in flight.
	Disconnect(ctx context.Context) error

	// IsConnected reports whether Connect has succeeded and Disconnect has
	// not been called since.
	IsConnected() bool

	// BeginTransaction checks out one physical connection for the
	// transaction's whole life.
	BeginTransaction(ctx context.Context, opts TxOptions) (Transaction, error)
}

// Transaction executes statements on the single physical connection it was
// born with. Commit and Rollback are idempotent once the transaction has
// reached a terminal state; Execute fails after either.
type Transaction interface {
	Executor

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TableRow pairs a generated identity, stable across edit and commit
// cycles, with the row's current value snapshot.
type TableRow struct {
	ID     uuid.UUID
	Values *value.Row
}

// NewTableRow wraps a snapshot with a fresh identity.
func NewTableRow(values *value.Row) TableRow {
	return TableRow{ID: uuid.New(), Values: values}
}

// Page is one page of a relation's rows.
type Page struct {
	Columns []string
	Rows    []TableRow
	HasMore bool
}

// TableDataService edits relation contents keyed by row snapshots rather
// than primary keys, so tables without declared keys remain editable.
type TableDataService interface {
	// FetchPage returns up to pageSize rows of the relation, ordered by its
	// first column, with HasMore set when another page exists.
	FetchPage(ctx context.Context, table schema.TableIdentifier, page, pageSize int) (*Page, error)

	// UpdateRow applies changes to the row identified by its last-known
	// snapshot and returns the server-authoritative result.
	UpdateRow(ctx context.Context, table schema.TableIdentifier, row TableRow, changes *value.Row) (TableRow, error)

	// InsertRow inserts values, or an all-defaults row when values is
	// empty, and returns the row the server actually stored.
	InsertRow(ctx context.Context, table schema.TableIdentifier, values *value.Row) (TableRow, error)

	// DeleteRow removes the row identified by its snapshot. Zero affected
	// rows is a failure, not a silent success.
	DeleteRow(ctx context.Context, table schema.TableIdentifier, row TableRow) error

	// DeleteRows removes each row independently; one failure does not stop
	// the rest. The returned error aggregates every failed row.
	DeleteRows(ctx context.Context, table schema.TableIdentifier, rows []TableRow) error
}
