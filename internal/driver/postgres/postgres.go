// Package postgres is the reference driver: a PostgreSQL implementation of
// the connectivity contracts on top of pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hgwr/TableGlass-sub000/internal/audit"
	"github.com/hgwr/TableGlass-sub000/internal/driver"
	"github.com/hgwr/TableGlass-sub000/internal/secret"
	"github.com/hgwr/TableGlass-sub000/internal/value"
)

// Fixed deadlines. Every connect and every statement races against these;
// whichever of operation and timer finishes first wins and the loser is
// cancelled.
const (
	connectTimeout = 10 * time.Second
	queryTimeout   = 30 * time.Second
)

// Factory returns a driver.Factory producing PostgreSQL connections that
// log statement outcomes to log. A nil log disables auditing.
func Factory(log *audit.Logger) driver.Factory {
	return func(profile driver.Profile, secrets secret.Resolver) driver.Connection {
		return New(profile, secrets, log)
	}
}

type connState int32

const (
	stateDisconnected connState = iota
	stateConnecting
	stateConnected
)

// Conn implements driver.Connection for PostgreSQL. A Conn serializes its
// lifecycle transitions internally; statement execution rides on a pgx pool,
// so concurrent Execute calls never share a physical connection.
type Conn struct {
	profile driver.Profile
	secrets secret.Resolver
	log     *audit.Logger

	mu     sync.Mutex
	pool   *pgxpool.Pool
	state  atomic.Int32
	closed bool

	// root outlives every statement started on this connection; Disconnect
	// cancels it so in-flight work dies instead of being waited out.
	root       context.Context
	rootCancel context.CancelFunc
	txs        map[*Tx]struct{}
}

// New returns an unconnected Conn for the profile.
func New(profile driver.Profile, secrets secret.Resolver, log *audit.Logger) *Conn {
	return &Conn{profile: profile, secrets: secrets, log: log}
}

// IsConnected reports whether the connection is live.
func (c *Conn) IsConnected() bool {
	return connState(c.state.Load()) == stateConnected
}

// Connect resolves the profile's password, opens the pool, and confirms
// liveness with a round-trip query before flipping to connected. Any
// failure tears everything down and leaves the connection disconnected.
// Connect is a no-op when already connected and revives a disconnected
// connection.
func (c *Conn) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if connState(c.state.Load()) == stateConnected {
		return nil
	}
	if c.profile.Database == "" {
		return &driver.ConfigError{Message: "postgres profile requires a database name"}
	}

	c.state.Store(int32(stateConnecting))

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	pool, err := c.open(ctx)
	if err != nil {
		c.state.Store(int32(stateDisconnected))
		return err
	}

	// Liveness probe. Opening the pool is lazy; only a round trip proves
	// the server is actually there.
	if _, err := pool.Exec(ctx, "SELECT 1"); err != nil {
		pool.Close()
		c.state.Store(int32(stateDisconnected))
		return mapConnectErr(ctx, err)
	}

	c.pool = pool
	c.root, c.rootCancel = context.WithCancel(context.Background())
	c.txs = make(map[*Tx]struct{})
	c.closed = false
	c.state.Store(int32(stateConnected))
	return nil
}

func (c *Conn) open(ctx context.Context) (*pgxpool.Pool, error) {
	password, ok, err := c.secrets.Resolve(ctx, c.profile.PasswordRef)
	if err != nil {
		return nil, &driver.ConnectionError{Message: "resolving stored password failed", Err: err}
	}

	u := &url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(c.profile.Host, strconv.Itoa(c.port())),
		Path:   "/" + c.profile.Database,
		User:   url.User(c.profile.User),
	}

	cfg, err := pgxpool.ParseConfig(u.String())
	if err != nil {
		return nil, &driver.ConfigError{Message: err.Error()}
	}
	if ok {
		// The password travels through pgx config only, never through a
		// DSN string that could end up displayed or logged.
		cfg.ConnConfig.Password = password
	}
	cfg.ConnConfig.ConnectTimeout = connectTimeout

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, mapConnectErr(ctx, err)
	}
	return pool, nil
}

func (c *Conn) port() int {
	if c.profile.Port > 0 {
		return c.profile.Port
	}
	return driver.EnginePostgres.DefaultPort()
}

// Disconnect cancels all in-flight work, abandons open transactions, and
// blocks until every physical connection has been returned, so no operation
// started before Disconnect is still running when it returns. The context
// bounds only how long the caller is willing to wait; the teardown itself
// finishes in the background if the caller gives up.
func (c *Conn) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	pool := c.pool
	cancel := c.rootCancel
	txs := c.txs
	c.pool = nil
	c.rootCancel = nil
	c.txs = nil
	if pool != nil {
		c.closed = true
	}
	c.state.Store(int32(stateDisconnected))
	c.mu.Unlock()

	if pool == nil {
		return nil
	}

	// Kill in-flight statements first, then force pinned transaction
	// connections back to the pool; only then can Close drain it.
	if cancel != nil {
		cancel()
	}
	for t := range txs {
		t.forceClose()
	}

	done := make(chan struct{})
	go func() {
		pool.Close()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("disconnect: %w", ctx.Err())
	}
}

// session returns the live pool and the connection's root context, or the
// taxonomy error for the current lifecycle state.
func (c *Conn) session() (*pgxpool.Pool, context.Context, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pool == nil || connState(c.state.Load()) != stateConnected {
		if c.closed {
			return nil, nil, driver.ErrClosed
		}
		return nil, nil, driver.ErrNotConnected
	}
	return c.pool, c.root, nil
}

// mergeRoot ties the caller's context to the connection root, so Disconnect
// cancels work the caller is still waiting on.
func mergeRoot(parent, root context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	if root == nil {
		return ctx, cancel
	}
	stop := context.AfterFunc(root, cancel)
	return ctx, func() { stop(); cancel() }
}

// withTimeout is mergeRoot plus the per-statement budget.
func withTimeout(parent, root context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	merged, cancelMerge := mergeRoot(parent, root)
	ctx, cancel := context.WithTimeout(merged, d)
	return ctx, func() { cancel(); cancelMerge() }
}

// Execute runs one statement against the pool. Safe for concurrent callers;
// each call rides its own pooled physical connection.
func (c *Conn) Execute(ctx context.Context, req value.Request) (*value.Result, error) {
	pool, root, err := c.session()
	if err != nil {
		return nil, err
	}

	ctx, cancel := withTimeout(ctx, root, queryTimeout)
	defer cancel()

	start := time.Now()
	res, err := runRequest(ctx, pool, req)
	c.logStatement(req.SQL, start, res, err)
	return res, err
}

func (c *Conn) logStatement(sql string, start time.Time, res *value.Result, err error) {
	var rows int64
	if res != nil {
		if res.HasRowsAffected {
			rows = res.RowsAffected
		} else {
			rows = int64(len(res.Rows))
		}
	}
	c.log.Log(audit.Entry{
		Timestamp:  start,
		Statement:  sql,
		Engine:     string(driver.EnginePostgres),
		Database:   c.profile.Database,
		DurationMS: time.Since(start).Milliseconds(),
		RowCount:   rows,
		IsError:    err != nil,
	})
}

// BeginTransaction checks one physical connection out of the pool and pins
// it for the transaction's whole life.
func (c *Conn) BeginTransaction(ctx context.Context, opts driver.TxOptions) (driver.Transaction, error) {
	pool, root, err := c.session()
	if err != nil {
		return nil, err
	}

	ctx, cancel := withTimeout(ctx, root, queryTimeout)
	defer cancel()

	pc, err := pool.Acquire(ctx)
	if err != nil {
		return nil, mapExecErr(ctx, "begin transaction", err)
	}

	begin := "BEGIN"
	if iso := opts.Isolation.SQL(); iso != "" {
		begin += " " + iso
	}
	if _, err := pc.Exec(ctx, begin); err != nil {
		pc.Release()
		return nil, mapExecErr(ctx, "begin transaction", err)
	}

	t := &Tx{owner: c, root: root, conn: pc}
	if !c.registerTx(t) {
		// Disconnect won the race; hand the connection back so the pool
		// can drain.
		t.forceClose()
		return nil, driver.ErrClosed
	}
	return t, nil
}

func (c *Conn) registerTx(t *Tx) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.txs == nil {
		return false
	}
	c.txs[t] = struct{}{}
	return true
}

func (c *Conn) dropTx(t *Tx) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.txs != nil {
		delete(c.txs, t)
	}
}

// Tx implements driver.Transaction on one pinned physical connection.
// Statements execute in submission order; the mutex serializes interleaved
// callers.
type Tx struct {
	owner *Conn
	root  context.Context

	mu   sync.Mutex
	conn *pgxpool.Conn
	done bool
}

// Execute runs one statement inside the transaction.
func (t *Tx) Execute(ctx context.Context, req value.Request) (*value.Result, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.done {
		return nil, driver.ErrTxDone
	}

	ctx, cancel := withTimeout(ctx, t.root, queryTimeout)
	defer cancel()

	start := time.Now()
	res, err := runRequest(ctx, t.conn, req)
	t.owner.logStatement(req.SQL, start, res, err)
	return res, err
}

// Commit sends COMMIT and releases the pinned connection. Calling Commit
// after the transaction already ended is a no-op.
func (t *Tx) Commit(ctx context.Context) error {
	return t.finish(ctx, "COMMIT")
}

// Rollback sends ROLLBACK and releases the pinned connection. Calling
// Rollback after the transaction already ended is a no-op.
func (t *Tx) Rollback(ctx context.Context) error {
	return t.finish(ctx, "ROLLBACK")
}

func (t *Tx) finish(ctx context.Context, stmt string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.done {
		return nil
	}
	t.done = true

	ctx, cancel := withTimeout(ctx, t.root, queryTimeout)
	defer cancel()

	_, err := t.conn.Exec(ctx, stmt)
	t.release()
	t.owner.dropTx(t)
	if err != nil {
		return mapExecErr(ctx, stmt, err)
	}
	return nil
}

// forceClose abandons the transaction during Disconnect. The pool discards
// a connection released mid-transaction, and the server rolls the
// transaction back when that connection dies.
func (t *Tx) forceClose() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.done {
		return
	}
	t.done = true
	t.release()
}

// release returns the pinned connection to the pool exactly once.
func (t *Tx) release() {
	if t.conn == nil {
		panic("postgres: transaction connection released twice")
	}
	t.conn.Release()
	t.conn = nil
}

// querier is the subset of pgx shared by pools and checked-out connections.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// runRequest binds parameters, executes, and maps the native result set
// back onto the value model.
func runRequest(ctx context.Context, q querier, req value.Request) (*value.Result, error) {
	args := make([]any, len(req.Params))
	for i, p := range req.Params {
		args[i] = bindParam(p)
	}

	rows, err := q.Query(ctx, req.SQL, args...)
	if err != nil {
		return nil, mapExecErr(ctx, "execute", err)
	}

	fields := rows.FieldDescriptions()
	columns := make([]string, len(fields))
	for i, fd := range fields {
		columns[i] = fd.Name
	}
	var out []*value.Row
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			rows.Close()
			return nil, mapExecErr(ctx, "decode row", err)
		}
		row := value.NewRow()
		for i, fd := range fields {
			row.Set(fd.Name, decodeValue(vals[i]))
		}
		out = append(out, row)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, mapExecErr(ctx, "execute", err)
	}

	tag := rows.CommandTag()
	res := &value.Result{Columns: columns, Rows: out}
	if tag.Insert() || tag.Update() || tag.Delete() {
		res.RowsAffected = tag.RowsAffected()
		res.HasRowsAffected = true
	}
	return res, nil
}

// mapExecErr translates a statement failure into the driver taxonomy.
// Caller cancellation and deadline expiry are kept distinct from each other
// and from engine-side failures.
func mapExecErr(ctx context.Context, op string, err error) error {
	if ctxErr := contextFailure(ctx, op, err); ctxErr != nil {
		return ctxErr
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return &driver.QueryError{Message: pgErr.Message, Err: err}
	}
	return &driver.QueryError{Message: fmt.Sprintf("%s: %v", op, err), Err: err}
}

// mapConnectErr is mapExecErr for the connect path.
func mapConnectErr(ctx context.Context, err error) error {
	if ctxErr := contextFailure(ctx, "connect", err); ctxErr != nil {
		return ctxErr
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return &driver.ConnectionError{Message: pgErr.Message, Err: err}
	}
	return &driver.ConnectionError{Message: err.Error(), Err: err}
}

func contextFailure(ctx context.Context, op string, err error) error {
	switch {
	case ctx.Err() == context.Canceled || errors.Is(err, context.Canceled):
		return driver.ErrCancelled
	case ctx.Err() == context.DeadlineExceeded || errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w", op, driver.ErrTimeout)
	}
	return nil
}
