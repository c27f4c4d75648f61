package table

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Kind tags the dynamic type held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindText
	KindNumber
	KindDate
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindNumber:
		return "number"
	case KindDate:
		return "date"
	default:
		return "null"
	}
}

// DateLayout is the canonical rendering of date cells.
const DateLayout = "2006-01-02"

// Value is a single table cell.
type Value struct {
	Kind Kind
	Str  string
	Num  float64
	Time time.Time
}

// Null returns the empty cell.
func Null() Value { return Value{} }

// Text returns a string cell. Empty strings become null.
func Text(s string) Value {
	if s == "" {
		return Value{}
	}
	return Value{Kind: KindText, Str: s}
}

// Number returns a numeric cell.
func Number(f float64) Value { return Value{Kind: KindNumber, Num: f} }

// Date returns a date cell.
func Date(t time.Time) Value { return Value{Kind: KindDate, Time: t} }

// IsNull reports whether the cell holds no value.
func (v Value) IsNull() bool { return v.Kind == KindNull }

// String renders the cell as the text used for categorical keys.
func (v Value) String() string {
	switch v.Kind {
	case KindText:
		return v.Str
	case KindNumber:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case KindDate:
		return v.Time.Format(DateLayout)
	default:
		return ""
	}
}

// Float returns the cell as a float64 when it is numeric or numeric text.
func (v Value) Float() (float64, bool) {
	switch v.Kind {
	case KindNumber:
		return v.Num, true
	case KindText:
		f, err := strconv.ParseFloat(v.Str, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindNull:
		return []byte("null"), nil
	case KindNumber:
		return json.Marshal(v.Num)
	default:
		return json.Marshal(v.String())
	}
}

func (v *Value) UnmarshalJSON(b []byte) error {
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	switch x := raw.(type) {
	case nil:
		*v = Null()
	case string:
		*v = Text(x)
	case float64:
		*v = Number(x)
	case bool:
		*v = Text(strconv.FormatBool(x))
	default:
		return fmt.Errorf("unsupported cell value %s", string(b))
	}
	return nil
}

// Table is an ordered set of named columns and ordered rows.
type Table struct {
	name    string
	columns []string
	rows    [][]Value
}

// New creates an empty table with the given header.
func New(name string, columns []string) *Table {
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &Table{name: name, columns: cols}
}

// Name is the source the table was loaded from.
func (t *Table) Name() string { return t.name }

// Columns returns a copy of the header in column order.
func (t *Table) Columns() []string {
	out := make([]string, len(t.columns))
	copy(out, t.columns)
	return out
}

// Len is the number of rows.
func (t *Table) Len() int { return len(t.rows) }

// Width is the number of columns.
func (t *Table) Width() int { return len(t.columns) }

// Append adds a row. Short rows are padded with nulls; long rows are rejected.
func (t *Table) Append(row []Value) error {
	if len(row) > len(t.columns) {
		return fmt.Errorf("row %d has %d cells, table has %d columns", len(t.rows)+1, len(row), len(t.columns))
	}
	r := make([]Value, len(t.columns))
	copy(r, row)
	t.rows = append(t.rows, r)
	return nil
}

// Cell returns the value at (row, col).
func (t *Table) Cell(row, col int) Value { return t.rows[row][col] }

// Set replaces the value at (row, col).
func (t *Table) Set(row, col int, v Value) { t.rows[row][col] = v }

// Column returns a copy of one column's values in row order.
func (t *Table) Column(col int) []Value {
	out := make([]Value, len(t.rows))
	for i, r := range t.rows {
		out[i] = r[col]
	}
	return out
}

// Index returns the position of the column with exactly this name, or -1.
func (t *Table) Index(name string) int {
	for i, c := range t.columns {
		if c == name {
			return i
		}
	}
	return -1
}

// AddColumn appends a column, or overwrites an existing column of the same name.
func (t *Table) AddColumn(name string, values []Value) (int, error) {
	if len(values) != len(t.rows) {
		return -1, fmt.Errorf("column %q has %d values, table has %d rows", name, len(values), len(t.rows))
	}
	idx := t.Index(name)
	if idx < 0 {
		t.columns = append(t.columns, name)
		idx = len(t.columns) - 1
		for i := range t.rows {
			t.rows[i] = append(t.rows[i], Null())
		}
	}
	for i, v := range values {
		t.rows[i][idx] = v
	}
	return idx, nil
}

// Rename changes the header of one column.
func (t *Table) Rename(col int, name string) { t.columns[col] = name }

// Clone returns a deep copy that shares nothing with t.
func (t *Table) Clone() *Table {
	c := &Table{name: t.name, columns: t.Columns(), rows: make([][]Value, len(t.rows))}
	for i, r := range t.rows {
		nr := make([]Value, len(r))
		copy(nr, r)
		c.rows[i] = nr
	}
	return c
}
