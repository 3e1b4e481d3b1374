package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hgwr/TableGlass-sub000/internal/driver"
	"github.com/hgwr/TableGlass-sub000/internal/schema"
)

// Metadata introspects the connected database into the schema hierarchy.
// Target namespaces come from the scope's allow-list, or from the engine's
// catalog views when the list is nil. An empty allow-list yields an empty
// schema, never an error.
func (c *Conn) Metadata(ctx context.Context, scope schema.Scope) (*schema.Schema, error) {
	pool, root, err := c.session()
	if err != nil {
		return nil, err
	}
	ctx, cancel := mergeRoot(ctx, root)
	defer cancel()

	namespaces := scope.Namespaces
	if namespaces == nil {
		namespaces, err = c.listNamespaces(ctx, pool)
		if err != nil {
			return nil, err
		}
	}
	if len(namespaces) == 0 {
		return &schema.Schema{}, nil
	}

	catalogName, err := c.currentDatabase(ctx, pool)
	if err != nil {
		return nil, err
	}

	byName := make(map[string]*schema.Namespace, len(namespaces))
	for _, ns := range namespaces {
		byName[ns] = &schema.Namespace{Name: ns}
	}

	if scope.IncludeTables {
		if err := c.loadTables(ctx, pool, namespaces, byName); err != nil {
			return nil, err
		}
	}
	if scope.IncludeViews {
		if err := c.loadViews(ctx, pool, namespaces, byName); err != nil {
			return nil, err
		}
	}
	if scope.IncludeProcedures {
		if err := c.loadProcedures(ctx, pool, namespaces, byName); err != nil {
			return nil, err
		}
	}

	catalog := schema.Catalog{Name: catalogName}
	for _, ns := range byName {
		catalog.Namespaces = append(catalog.Namespaces, *ns)
	}
	out := &schema.Schema{Catalogs: []schema.Catalog{catalog}}
	out.Sort()
	return out, nil
}

func (c *Conn) currentDatabase(ctx context.Context, pool *pgxpool.Pool) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var name string
	if err := pool.QueryRow(ctx, `SELECT current_database()`).Scan(&name); err != nil {
		return "", mapExecErr(ctx, "current database", err)
	}
	return name, nil
}

// listNamespaces returns all non-system namespaces.
func (c *Conn) listNamespaces(ctx context.Context, pool *pgxpool.Pool) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := pool.Query(ctx,
		`SELECT schema_name
		 FROM information_schema.schemata
		 WHERE schema_name NOT IN ('pg_catalog', 'information_schema', 'pg_toast')
		 ORDER BY schema_name`)
	if err != nil {
		return nil, mapExecErr(ctx, "namespaces", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, mapExecErr(ctx, "namespaces scan", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, mapExecErr(ctx, "namespaces", err)
	}
	return names, nil
}

// loadTables fills in base tables, their columns, and primary keys.
func (c *Conn) loadTables(ctx context.Context, pool *pgxpool.Pool, namespaces []string, byName map[string]*schema.Namespace) error {
	qctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := pool.Query(qctx,
		`SELECT table_schema, table_name
		 FROM information_schema.tables
		 WHERE table_schema = ANY($1)
		   AND table_type = 'BASE TABLE'
		 ORDER BY table_schema, table_name`, namespaces)
	if err != nil {
		return mapExecErr(qctx, "tables", err)
	}
	defer rows.Close()

	tableIndex := make(map[schema.TableIdentifier]*schema.Table)
	var order []schema.TableIdentifier
	for rows.Next() {
		var ns, name string
		if err := rows.Scan(&ns, &name); err != nil {
			return mapExecErr(qctx, "tables scan", err)
		}
		if byName[ns] == nil {
			continue
		}
		id := schema.TableIdentifier{Namespace: ns, Name: name}
		tableIndex[id] = &schema.Table{Name: name}
		order = append(order, id)
	}
	if err := rows.Err(); err != nil {
		return mapExecErr(qctx, "tables", err)
	}

	if err := c.loadColumns(ctx, pool, namespaces, tableIndex); err != nil {
		return err
	}
	if err := c.loadPrimaryKeys(ctx, pool, namespaces, tableIndex); err != nil {
		return err
	}

	for _, id := range order {
		owner := byName[id.Namespace]
		owner.Tables = append(owner.Tables, *tableIndex[id])
	}
	return nil
}

func (c *Conn) loadColumns(ctx context.Context, pool *pgxpool.Pool, namespaces []string, tableIndex map[schema.TableIdentifier]*schema.Table) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := pool.Query(ctx,
		`SELECT table_schema, table_name, column_name, data_type, is_nullable,
		        COALESCE(column_default, '')
		 FROM information_schema.columns
		 WHERE table_schema = ANY($1)
		 ORDER BY table_schema, table_name, ordinal_position`, namespaces)
	if err != nil {
		return mapExecErr(ctx, "columns", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ns, table, name, dtype, nullable, dflt string
		if err := rows.Scan(&ns, &table, &name, &dtype, &nullable, &dflt); err != nil {
			return mapExecErr(ctx, "columns scan", err)
		}
		t := tableIndex[schema.TableIdentifier{Namespace: ns, Name: table}]
		if t == nil {
			continue // view or relation outside the requested kinds
		}
		t.Columns = append(t.Columns, schema.Column{
			Name:     name,
			DataType: dtype,
			Nullable: nullable == "YES",
			Default:  dflt,
		})
	}
	return rows.Err()
}

func (c *Conn) loadPrimaryKeys(ctx context.Context, pool *pgxpool.Pool, namespaces []string, tableIndex map[schema.TableIdentifier]*schema.Table) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := pool.Query(ctx,
		`SELECT n.nspname, t.relname, a.attname
		 FROM pg_index i
		 JOIN pg_class t ON t.oid = i.indrelid
		 JOIN pg_namespace n ON n.oid = t.relnamespace
		 JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = ANY(i.indkey)
		 WHERE i.indisprimary
		   AND n.nspname = ANY($1)
		 ORDER BY n.nspname, t.relname, a.attnum`, namespaces)
	if err != nil {
		return mapExecErr(ctx, "primary keys", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ns, table, column string
		if err := rows.Scan(&ns, &table, &column); err != nil {
			return mapExecErr(ctx, "primary keys scan", err)
		}
		if t := tableIndex[schema.TableIdentifier{Namespace: ns, Name: table}]; t != nil {
			t.PrimaryKey = append(t.PrimaryKey, column)
		}
	}
	return rows.Err()
}

func (c *Conn) loadViews(ctx context.Context, pool *pgxpool.Pool, namespaces []string, byName map[string]*schema.Namespace) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := pool.Query(ctx,
		`SELECT table_schema, table_name, COALESCE(view_definition, '')
		 FROM information_schema.views
		 WHERE table_schema = ANY($1)
		 ORDER BY table_schema, table_name`, namespaces)
	if err != nil {
		return mapExecErr(ctx, "views", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ns, name, definition string
		if err := rows.Scan(&ns, &name, &definition); err != nil {
			return mapExecErr(ctx, "views scan", err)
		}
		if owner := byName[ns]; owner != nil {
			owner.Views = append(owner.Views, schema.View{Name: name, Definition: definition})
		}
	}
	return rows.Err()
}

func (c *Conn) loadProcedures(ctx context.Context, pool *pgxpool.Pool, namespaces []string, byName map[string]*schema.Namespace) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := pool.Query(ctx,
		`SELECT r.routine_schema, r.routine_name,
		        COALESCE(p.parameter_name, ''),
		        COALESCE(p.data_type, ''),
		        COALESCE(p.parameter_mode, '')
		 FROM information_schema.routines r
		 LEFT JOIN information_schema.parameters p
		      ON p.specific_schema = r.specific_schema
		     AND p.specific_name   = r.specific_name
		 WHERE r.routine_schema = ANY($1)
		 ORDER BY r.routine_schema, r.routine_name, p.ordinal_position`, namespaces)
	if err != nil {
		return mapExecErr(ctx, "procedures", err)
	}
	defer rows.Close()

	type procKey struct{ ns, name string }
	procs := make(map[procKey]*schema.Procedure)
	var order []procKey
	for rows.Next() {
		var ns, name, param, dtype, mode string
		if err := rows.Scan(&ns, &name, &param, &dtype, &mode); err != nil {
			return mapExecErr(ctx, "procedures scan", err)
		}
		if byName[ns] == nil {
			continue
		}
		key := procKey{ns, name}
		proc := procs[key]
		if proc == nil {
			proc = &schema.Procedure{Name: name}
			procs[key] = proc
			order = append(order, key)
		}
		if param == "" && dtype == "" {
			continue // routine without parameters
		}
		proc.Params = append(proc.Params, schema.ProcedureParam{
			Name:      param,
			DataType:  dtype,
			Direction: paramDirection(mode),
		})
	}
	if err := rows.Err(); err != nil {
		return mapExecErr(ctx, "procedures", err)
	}

	for _, key := range order {
		owner := byName[key.ns]
		owner.Procedures = append(owner.Procedures, *procs[key])
	}
	return nil
}

func paramDirection(mode string) schema.ParamDirection {
	switch mode {
	case "OUT":
		return schema.ParamOut
	case "INOUT":
		return schema.ParamInOut
	default:
		return schema.ParamIn
	}
}

var _ driver.Connection = (*Conn)(nil)
var _ driver.Transaction = (*Tx)(nil)
