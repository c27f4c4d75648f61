// Package aggregate computes sparse frequency counts and two-way
// cross-tabulations over table columns.
//
// Entries keep the order in which values first appear in the table. Count
// ordering is a separate display step (SortedByCount) so the raw maps stay
// deterministic and independent of presentation.
package aggregate

import (
	"sort"

	"github.com/KaramelBytes/vetviz-cli/internal/table"
)

// Count is one distinct value and the number of rows holding it.
type Count struct {
	Value string `json:"value" yaml:"value"`
	Count int    `json:"count" yaml:"count"`
}

// Frequency is the result of CountBy.
type Frequency struct {
	Column  string  `json:"column" yaml:"column"`
	Entries []Count `json:"entries" yaml:"entries"`
	// Nulls is the number of rows with an empty cell, which are not counted.
	Nulls int `json:"nulls" yaml:"nulls"`

	pos map[string]int
}

// CountBy counts the distinct non-null values of one column.
func CountBy(t *table.Table, col int) *Frequency {
	f := &Frequency{Column: t.Columns()[col], pos: map[string]int{}}
	for r := 0; r < t.Len(); r++ {
		v := t.Cell(r, col)
		if v.IsNull() {
			f.Nulls++
			continue
		}
		f.add(v.String())
	}
	return f
}

func (f *Frequency) add(value string) {
	if i, ok := f.pos[value]; ok {
		f.Entries[i].Count++
		return
	}
	f.pos[value] = len(f.Entries)
	f.Entries = append(f.Entries, Count{Value: value, Count: 1})
}

// Get returns the count for value, 0 when absent.
func (f *Frequency) Get(value string) int {
	for _, e := range f.Entries {
		if e.Value == value {
			return e.Count
		}
	}
	return 0
}

// Total is the sum of all counts.
func (f *Frequency) Total() int {
	n := 0
	for _, e := range f.Entries {
		n += e.Count
	}
	return n
}

// SortedByCount returns the entries by descending count; ties keep first-appearance order.
func (f *Frequency) SortedByCount() []Count {
	out := make([]Count, len(f.Entries))
	copy(out, f.Entries)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}

// Pair is one co-occurring (A, B) combination.
type Pair struct {
	A     string `json:"a" yaml:"a"`
	B     string `json:"b" yaml:"b"`
	Count int    `json:"count" yaml:"count"`
}

// CrossTab is the result of CrossCount.
type CrossTab struct {
	ColumnA string `json:"column_a" yaml:"column_a"`
	ColumnB string `json:"column_b" yaml:"column_b"`
	Pairs   []Pair `json:"pairs" yaml:"pairs"`
	// Skipped counts rows where either cell is empty.
	Skipped int `json:"skipped" yaml:"skipped"`

	pos map[[2]string]int
}

// CrossCount counts co-occurrences of values from two columns.
func CrossCount(t *table.Table, colA, colB int) *CrossTab {
	cols := t.Columns()
	ct := &CrossTab{ColumnA: cols[colA], ColumnB: cols[colB], pos: map[[2]string]int{}}
	for r := 0; r < t.Len(); r++ {
		a, b := t.Cell(r, colA), t.Cell(r, colB)
		if a.IsNull() || b.IsNull() {
			ct.Skipped++
			continue
		}
		key := [2]string{a.String(), b.String()}
		if i, ok := ct.pos[key]; ok {
			ct.Pairs[i].Count++
			continue
		}
		ct.pos[key] = len(ct.Pairs)
		ct.Pairs = append(ct.Pairs, Pair{A: key[0], B: key[1], Count: 1})
	}
	return ct
}

// Get returns the count for (a, b), 0 when absent.
func (ct *CrossTab) Get(a, b string) int {
	for _, p := range ct.Pairs {
		if p.A == a && p.B == b {
			return p.Count
		}
	}
	return 0
}

// Axis selects a side of a cross-tabulation.
type Axis int

const (
	AxisA Axis = iota
	AxisB
)

// SortedByCount orders pairs for heatmap tiling: values of the chosen axis by
// descending marginal total, then pairs within a value by descending count.
// Ties keep first-appearance order.
func (ct *CrossTab) SortedByCount(axis Axis) []Pair {
	key := func(p Pair) string {
		if axis == AxisB {
			return p.B
		}
		return p.A
	}
	totals := map[string]int{}
	first := map[string]int{}
	for i, p := range ct.Pairs {
		k := key(p)
		totals[k] += p.Count
		if _, ok := first[k]; !ok {
			first[k] = i
		}
	}
	out := make([]Pair, len(ct.Pairs))
	copy(out, ct.Pairs)
	sort.SliceStable(out, func(i, j int) bool {
		ki, kj := key(out[i]), key(out[j])
		if ki != kj {
			if totals[ki] != totals[kj] {
				return totals[ki] > totals[kj]
			}
			return first[ki] < first[kj]
		}
		return out[i].Count > out[j].Count
	})
	return out
}
