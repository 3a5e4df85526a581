package sorter

import (
	"fmt"
	"reflect"

	"github.com/mesh-intelligence/pantry/pkg/query"
	"github.com/mesh-intelligence/pantry/pkg/types"
)

// Control is one runtime column choice.
type Control struct {
	Column    string
	Direction types.SortDirection
}

// TableSorter maps runtime column controls onto named clauses. The first
// control is primary; the rest break ties. An unmatched primary control
// selects the default plan (or no ordering); unmatched later controls are
// ignored.
type TableSorter struct {
	controls   func(req any) ([]Control, error)
	columns    map[string]Clause
	def        []Clause
	hasDefault bool
}

// Table reads the controls with controls.
func Table[TReq any](controls func(TReq) []Control) *TableSorter {
	return &TableSorter{
		controls: func(req any) ([]Control, error) {
			r, err := requestAs[TReq](req)
			if err != nil {
				return nil, err
			}
			return controls(r), nil
		},
		columns: make(map[string]Clause),
	}
}

// TableOn reads a single control from the request's exported fields. The
// direction field may hold a types.SortDirection or a string such as "desc".
func TableOn(columnField, directionField string) *TableSorter {
	return &TableSorter{
		controls: func(req any) ([]Control, error) {
			col, err := fieldValue(req, columnField)
			if err != nil {
				return nil, fmt.Errorf("table column control: %w", err)
			}
			c := Control{Column: fmt.Sprint(col.Interface())}
			if directionField == "" {
				return []Control{c}, nil
			}
			dir, err := fieldValue(req, directionField)
			if err != nil {
				return nil, fmt.Errorf("table direction control: %w", err)
			}
			switch d := dir.Interface().(type) {
			case types.SortDirection:
				c.Direction = d
			case string:
				c.Direction = types.ParseSortDirection(d)
			default:
				return nil, fmt.Errorf("table direction control %T: %w", d, types.ErrTypeMismatch)
			}
			return []Control{c}, nil
		},
		columns: make(map[string]Clause),
	}
}

// Column maps a column name onto a clause. The control decides direction.
func (t *TableSorter) Column(name string, c Clause) *TableSorter {
	t.columns[name] = c
	return t
}

// Default sets the plan used when the primary control matches no column.
func (t *TableSorter) Default(clauses ...Clause) *TableSorter {
	t.def = clauses
	t.hasDefault = true
	return t
}

// Sort implements Sorter.
func (t *TableSorter) Sort(req any, q *query.Query) (*query.Query, error) {
	controls, err := t.controls(req)
	if err != nil {
		return nil, err
	}
	if len(controls) == 0 {
		return t.fallback(q), nil
	}
	primary, ok := t.columns[controls[0].Column]
	if !ok {
		return t.fallback(q), nil
	}
	clauses := []Clause{primary.With(controls[0].Direction)}
	for _, c := range controls[1:] {
		if col, ok := t.columns[c.Column]; ok {
			clauses = append(clauses, col.With(c.Direction))
		}
	}
	return plan(q, clauses), nil
}

func (t *TableSorter) fallback(q *query.Query) *query.Query {
	if t.hasDefault {
		return plan(q, t.def)
	}
	return q
}

// Fields registers every ordered exported field of TEntity as a column of t
// under the field's name.
func Fields[TEntity any](t *TableSorter) *TableSorter {
	st := reflect.TypeFor[TEntity]()
	if st.Kind() == reflect.Pointer {
		st = st.Elem()
	}
	if st.Kind() != reflect.Struct {
		return t
	}
	for _, f := range reflect.VisibleFields(st) {
		if !f.IsExported() || f.Anonymous {
			continue
		}
		if c, err := Property[TEntity](f.Name); err == nil {
			t.Column(f.Name, c)
		}
	}
	return t
}
