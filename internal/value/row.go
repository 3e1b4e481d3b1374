package value

import "fmt"

// Row is an ordered mapping from column name to Value. Column names are
// unique within a row; a duplicate name overwrites in place and keeps the
// original position.
type Row struct {
	columns []string
	values  []Value
	index   map[string]int
}

// NewRow returns an empty row.
func NewRow() *Row {
	return &Row{index: make(map[string]int)}
}

// Set appends the column if new, or overwrites its value in place.
func (r *Row) Set(column string, v Value) {
	if r.index == nil {
		r.index = make(map[string]int)
	}
	if i, ok := r.index[column]; ok {
		r.values[i] = v
		return
	}
	r.index[column] = len(r.columns)
	r.columns = append(r.columns, column)
	r.values = append(r.values, v)
}

// Get returns the value for column and whether the column exists.
func (r *Row) Get(column string) (Value, bool) {
	if r == nil || r.index == nil {
		return Value{}, false
	}
	i, ok := r.index[column]
	if !ok {
		return Value{}, false
	}
	return r.values[i], true
}

// Columns returns the column names in insertion order. The slice is shared;
// callers must not mutate it.
func (r *Row) Columns() []string {
	if r == nil {
		return nil
	}
	return r.columns
}

// Len returns the number of columns.
func (r *Row) Len() int {
	if r == nil {
		return 0
	}
	return len(r.columns)
}

// At returns the i-th column name and value.
func (r *Row) At(i int) (string, Value) {
	return r.columns[i], r.values[i]
}

// Clone returns an independent copy of the row.
func (r *Row) Clone() *Row {
	if r == nil {
		return nil
	}
	out := NewRow()
	for i, c := range r.columns {
		out.Set(c, r.values[i])
	}
	return out
}

// Equal reports whether two rows have the same columns, order, and values.
func (r *Row) Equal(o *Row) bool {
	if r.Len() != o.Len() {
		return false
	}
	for i := range r.columns {
		if r.columns[i] != o.columns[i] || !r.values[i].Equal(o.values[i]) {
			return false
		}
	}
	return true
}

// Request is one SQL statement plus its ordered, typed parameters.
type Request struct {
	SQL    string
	Params []Value
}

// NewRequest builds a Request from SQL text and parameters.
func NewRequest(sql string, params ...Value) Request {
	return Request{SQL: sql, Params: params}
}

// String renders the request without parameter values, so it is safe to log.
func (q Request) String() string {
	return fmt.Sprintf("%s [%d params]", q.SQL, len(q.Params))
}

// Result is the outcome of executing a Request: the result columns (known
// even when zero rows came back), the rows, and for mutations the number of
// affected rows. RowsAffected is meaningless for selects and callers must
// gate on HasRowsAffected.
type Result struct {
	Columns         []string
	Rows            []*Row
	RowsAffected    int64
	HasRowsAffected bool
}
