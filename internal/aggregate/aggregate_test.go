package aggregate

import (
	"reflect"
	"testing"

	"github.com/KaramelBytes/vetviz-cli/internal/table"
)

func visits(t *testing.T) *table.Table {
	t.Helper()
	tbl := table.New("visits", []string{"Species", "Reason"})
	rows := [][2]string{
		{"dog", "vaccine"},
		{"cat", "dental"},
		{"cat", "vaccine"},
		{"dog", "vaccine"},
		{"", "injury"},
		{"cat", ""},
		{"cat", "dental"},
	}
	for _, r := range rows {
		if err := tbl.Append([]table.Value{table.Text(r[0]), table.Text(r[1])}); err != nil {
			t.Fatal(err)
		}
	}
	return tbl
}

func TestCountByFirstAppearance(t *testing.T) {
	tbl := visits(t)
	f := CountBy(tbl, 0)

	if f.Column != "Species" {
		t.Errorf("column = %q", f.Column)
	}
	if want := []Count{{"dog", 2}, {"cat", 4}}; !reflect.DeepEqual(f.Entries, want) {
		t.Fatalf("entries = %v, want %v", f.Entries, want)
	}
	if f.Nulls != 1 {
		t.Errorf("nulls = %d, want 1", f.Nulls)
	}
	// Sum of counts equals non-null rows.
	if f.Total() != tbl.Len()-f.Nulls {
		t.Errorf("total = %d, want %d", f.Total(), tbl.Len()-f.Nulls)
	}
	if f.Get("cat") != 4 || f.Get("rabbit") != 0 {
		t.Errorf("Get: cat=%d rabbit=%d", f.Get("cat"), f.Get("rabbit"))
	}
}

func TestFrequencySortedByCount(t *testing.T) {
	f := CountBy(visits(t), 1)
	if want := []Count{{"vaccine", 3}, {"dental", 2}, {"injury", 1}}; !reflect.DeepEqual(f.SortedByCount(), want) {
		t.Fatalf("sorted = %v, want %v", f.SortedByCount(), want)
	}
	// The raw entries keep first-appearance order.
	if f.Entries[0].Value != "vaccine" || f.Entries[1].Value != "dental" {
		t.Fatalf("entries reordered: %v", f.Entries)
	}
}

func TestCrossCount(t *testing.T) {
	ct := CrossCount(visits(t), 0, 1)

	want := []Pair{
		{A: "dog", B: "vaccine", Count: 2},
		{A: "cat", B: "dental", Count: 2},
		{A: "cat", B: "vaccine", Count: 1},
	}
	if !reflect.DeepEqual(ct.Pairs, want) {
		t.Fatalf("pairs = %v, want %v", ct.Pairs, want)
	}
	if ct.Skipped != 2 {
		t.Errorf("skipped = %d, want 2", ct.Skipped)
	}
	// Absent pairs are not materialized.
	if ct.Get("dog", "dental") != 0 {
		t.Errorf("dog/dental = %d", ct.Get("dog", "dental"))
	}
}

func TestCrossTabSortedByCount(t *testing.T) {
	ct := CrossCount(visits(t), 0, 1)

	byA := ct.SortedByCount(AxisA)
	want := []Pair{
		{A: "cat", B: "dental", Count: 2},
		{A: "cat", B: "vaccine", Count: 1},
		{A: "dog", B: "vaccine", Count: 2},
	}
	if !reflect.DeepEqual(byA, want) {
		t.Fatalf("by A = %v, want %v", byA, want)
	}

	byB := ct.SortedByCount(AxisB)
	if byB[0].B != "vaccine" || byB[0].A != "dog" || byB[2].B != "dental" {
		t.Fatalf("by B = %v", byB)
	}
}

func TestCountByNumbers(t *testing.T) {
	tbl := table.New("n", []string{"Weight"})
	for _, v := range []float64{4, 4.5, 4} {
		if err := tbl.Append([]table.Value{table.Number(v)}); err != nil {
			t.Fatal(err)
		}
	}
	f := CountBy(tbl, 0)
	if want := []Count{{"4", 2}, {"4.5", 1}}; !reflect.DeepEqual(f.Entries, want) {
		t.Fatalf("entries = %v, want %v", f.Entries, want)
	}
}
