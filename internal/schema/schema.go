// Package schema models introspected database structure: catalogs containing
// namespaces containing tables, views, and stored procedures.
package schema

import "sort"

// Schema is the root of an introspection result.
type Schema struct {
	Catalogs []Catalog
}

// Catalog groups namespaces; "database" in most engines.
type Catalog struct {
	Name       string
	Namespaces []Namespace
}

// Namespace groups relations; "schema" in most engines.
type Namespace struct {
	Name       string
	Tables     []Table
	Views      []View
	Procedures []Procedure
}

// Table is a base table with its columns and primary key.
type Table struct {
	Name       string
	Columns    []Column
	PrimaryKey []string // column names, subset of Columns
}

// Column describes one table column.
type Column struct {
	Name     string
	DataType string
	Nullable bool
	Default  string // empty when no default
}

// View is a named query, with its definition text when the engine exposes it.
type View struct {
	Name       string
	Definition string
}

// ParamDirection is the direction of a procedure parameter.
type ParamDirection int

const (
	ParamIn ParamDirection = iota
	ParamOut
	ParamInOut
)

// String returns IN/OUT/INOUT.
func (d ParamDirection) String() string {
	switch d {
	case ParamOut:
		return "OUT"
	case ParamInOut:
		return "INOUT"
	default:
		return "IN"
	}
}

// Procedure is a stored procedure or function with its ordered parameters.
type Procedure struct {
	Name   string
	Params []ProcedureParam
}

// ProcedureParam is one procedure parameter.
type ProcedureParam struct {
	Name      string
	DataType  string
	Direction ParamDirection
}

// TableIdentifier names exactly one relation. It is comparable and usable
// as a map key.
type TableIdentifier struct {
	Catalog   string
	Namespace string
	Name      string
}

// Scope filters what metadata introspection fetches. A nil Namespaces list
// means "all non-system namespaces"; an explicit empty list yields an empty
// schema rather than an error.
type Scope struct {
	Namespaces        []string
	IncludeTables     bool
	IncludeViews      bool
	IncludeProcedures bool
}

// AllScope introspects everything in all non-system namespaces.
func AllScope() Scope {
	return Scope{IncludeTables: true, IncludeViews: true, IncludeProcedures: true}
}

// Sort orders every level of the hierarchy by name, so repeated
// introspection of the same database yields identical output.
func (s *Schema) Sort() {
	sort.Slice(s.Catalogs, func(i, j int) bool { return s.Catalogs[i].Name < s.Catalogs[j].Name })
	for ci := range s.Catalogs {
		c := &s.Catalogs[ci]
		sort.Slice(c.Namespaces, func(i, j int) bool { return c.Namespaces[i].Name < c.Namespaces[j].Name })
		for ni := range c.Namespaces {
			n := &c.Namespaces[ni]
			sort.Slice(n.Tables, func(i, j int) bool { return n.Tables[i].Name < n.Tables[j].Name })
			sort.Slice(n.Views, func(i, j int) bool { return n.Views[i].Name < n.Views[j].Name })
			sort.Slice(n.Procedures, func(i, j int) bool { return n.Procedures[i].Name < n.Procedures[j].Name })
		}
	}
}

// Validate checks the primary-key invariant: every primary-key column name
// must also appear in the table's column list. It returns the first
// offending table identifier, or ok.
func (s *Schema) Validate() (TableIdentifier, bool) {
	for _, c := range s.Catalogs {
		for _, n := range c.Namespaces {
			for _, t := range n.Tables {
				cols := make(map[string]bool, len(t.Columns))
				for _, col := range t.Columns {
					cols[col.Name] = true
				}
				for _, pk := range t.PrimaryKey {
					if !cols[pk] {
						return TableIdentifier{Catalog: c.Name, Namespace: n.Name, Name: t.Name}, false
					}
				}
			}
		}
	}
	return TableIdentifier{}, true
}
