// Package tabledata edits relation contents through any Executor by
// synthesizing SQL from untyped row snapshots. It never needs engine
// introspection or declared primary keys: rows are identified by their
// last-known snapshot, with NULL-aware predicates.
package tabledata

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/hgwr/TableGlass-sub000/internal/driver"
	"github.com/hgwr/TableGlass-sub000/internal/schema"
	"github.com/hgwr/TableGlass-sub000/internal/value"
)

// Service implements driver.TableDataService over an Executor.
type Service struct {
	exec driver.Executor
}

// New returns a Service executing through exec. The executor may be a
// connection or an open transaction.
func New(exec driver.Executor) *Service {
	return &Service{exec: exec}
}

// FetchPage returns one page of the relation, ordered by its first column.
// It asks for pageSize+1 rows; a full overflow row means another page
// exists and is trimmed from the result.
func (s *Service) FetchPage(ctx context.Context, table schema.TableIdentifier, page, pageSize int) (*driver.Page, error) {
	if pageSize <= 0 {
		return nil, &driver.ConfigError{Message: fmt.Sprintf("page size must be positive, got %d", pageSize)}
	}
	if page < 0 {
		return nil, &driver.ConfigError{Message: fmt.Sprintf("page must not be negative, got %d", page)}
	}

	req := value.NewRequest(
		fmt.Sprintf("SELECT * FROM %s ORDER BY 1 LIMIT $1 OFFSET $2", qualify(table)),
		value.Int(int64(pageSize+1)),
		value.Int(int64(page)*int64(pageSize)),
	)
	res, err := s.exec.Execute(ctx, req)
	if err != nil {
		return nil, err
	}

	rows := res.Rows
	hasMore := false
	if len(rows) > pageSize {
		hasMore = true
		rows = rows[:pageSize]
	}

	out := &driver.Page{Columns: res.Columns, HasMore: hasMore}
	for _, r := range rows {
		out.Rows = append(out.Rows, driver.NewTableRow(r))
	}
	return out, nil
}

// UpdateRow applies changes to the row identified by its snapshot and
// returns the server-authoritative row. Only columns whose value actually
// differs from the snapshot enter the SET list.
func (s *Service) UpdateRow(ctx context.Context, table schema.TableIdentifier, row driver.TableRow, changes *value.Row) (driver.TableRow, error) {
	var (
		sets []string
		args []value.Value
	)
	for i := 0; i < changes.Len(); i++ {
		col, v := changes.At(i)
		if old, ok := row.Values.Get(col); ok && old.Equal(v) {
			continue
		}
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", quoteIdent(col), len(args)))
	}
	if len(sets) == 0 {
		return row, nil
	}

	predicate, predArgs, err := makePredicate(row.Values, len(args)+1)
	if err != nil {
		return driver.TableRow{}, err
	}
	args = append(args, predArgs...)

	req := value.NewRequest(
		fmt.Sprintf("UPDATE %s SET %s WHERE %s RETURNING *",
			qualify(table), strings.Join(sets, ", "), predicate),
		args...,
	)
	res, err := s.exec.Execute(ctx, req)
	if err != nil {
		return driver.TableRow{}, err
	}
	if len(res.Rows) == 0 {
		return driver.TableRow{}, fmt.Errorf("update %s: %w", table.Name, driver.ErrRowNotFound)
	}
	return driver.TableRow{ID: row.ID, Values: res.Rows[0]}, nil
}

// InsertRow inserts values and returns the stored row. An empty value set
// becomes a default-values insert. Column names are sorted so the same
// logical insert always produces the same statement shape.
func (s *Service) InsertRow(ctx context.Context, table schema.TableIdentifier, values *value.Row) (driver.TableRow, error) {
	var req value.Request
	if values.Len() == 0 {
		req = value.NewRequest(fmt.Sprintf("INSERT INTO %s DEFAULT VALUES RETURNING *", qualify(table)))
	} else {
		columns := append([]string(nil), values.Columns()...)
		sort.Strings(columns)

		quoted := make([]string, len(columns))
		placeholders := make([]string, len(columns))
		args := make([]value.Value, len(columns))
		for i, col := range columns {
			v, _ := values.Get(col)
			quoted[i] = quoteIdent(col)
			placeholders[i] = fmt.Sprintf("$%d", i+1)
			args[i] = v
		}
		req = value.NewRequest(
			fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING *",
				qualify(table), strings.Join(quoted, ", "), strings.Join(placeholders, ", ")),
			args...,
		)
	}

	res, err := s.exec.Execute(ctx, req)
	if err != nil {
		return driver.TableRow{}, err
	}
	if len(res.Rows) == 0 {
		return driver.TableRow{}, &driver.QueryError{Message: fmt.Sprintf("insert into %s returned no row", table.Name)}
	}
	return driver.NewTableRow(res.Rows[0]), nil
}

// DeleteRow removes the row identified by its snapshot. The engine must
// report a positive affected-row count; zero rows means the row was not
// found and is an error, never a silent success.
func (s *Service) DeleteRow(ctx context.Context, table schema.TableIdentifier, row driver.TableRow) error {
	predicate, args, err := makePredicate(row.Values, 1)
	if err != nil {
		return err
	}

	req := value.NewRequest(
		fmt.Sprintf("DELETE FROM %s WHERE %s", qualify(table), predicate),
		args...,
	)
	res, err := s.exec.Execute(ctx, req)
	if err != nil {
		return err
	}
	if !res.HasRowsAffected {
		return fmt.Errorf("delete from %s: engine reported no affected-row count: %w", table.Name, driver.ErrDeleteRejected)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("delete from %s: %w", table.Name, driver.ErrRowNotFound)
	}
	return nil
}

// DeleteRows deletes each row independently. A failing row never aborts the
// rest of the batch; all failures come back aggregated, naming each row.
func (s *Service) DeleteRows(ctx context.Context, table schema.TableIdentifier, rows []driver.TableRow) error {
	var failures []driver.RowFailure
	for _, row := range rows {
		if err := s.DeleteRow(ctx, table, row); err != nil {
			failures = append(failures, driver.RowFailure{RowID: row.ID.String(), Err: err})
		}
	}
	if len(failures) > 0 {
		return &driver.BatchError{Failures: failures}
	}
	return nil
}

// makePredicate builds the WHERE clause identifying one row from its
// last-known snapshot. Every column becomes an equality test bound at the
// next placeholder index, except null values, which become IS NULL: an
// equality parameter bound to null is never true in SQL and would match
// nothing. An empty snapshot is refused outright rather than producing an
// unconstrained statement.
func makePredicate(row *value.Row, firstPlaceholder int) (string, []value.Value, error) {
	if row.Len() == 0 {
		return "", nil, fmt.Errorf("cannot build a row predicate from an empty snapshot")
	}

	var (
		clauses []string
		args    []value.Value
	)
	n := firstPlaceholder
	for i := 0; i < row.Len(); i++ {
		col, v := row.At(i)
		if v.IsNull() {
			clauses = append(clauses, fmt.Sprintf("%s IS NULL", quoteIdent(col)))
			continue
		}
		clauses = append(clauses, fmt.Sprintf("%s = $%d", quoteIdent(col), n))
		args = append(args, v)
		n++
	}
	return strings.Join(clauses, " AND "), args, nil
}

// quoteIdent quotes an identifier, doubling embedded quotes. All
// identifiers entering generated SQL pass through here.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// qualify renders a table identifier as namespace.name, both quoted. The
// catalog never appears: a connection is already bound to one catalog.
func qualify(table schema.TableIdentifier) string {
	if table.Namespace == "" {
		return quoteIdent(table.Name)
	}
	return quoteIdent(table.Namespace) + "." + quoteIdent(table.Name)
}

var _ driver.TableDataService = (*Service)(nil)
