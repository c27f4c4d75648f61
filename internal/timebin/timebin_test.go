package timebin

import (
	"testing"
	"time"

	"github.com/KaramelBytes/vetviz-cli/internal/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dated(t *testing.T, cells ...table.Value) *table.Table {
	t.Helper()
	tbl := table.New("visits", []string{"Visit Date"})
	for _, c := range cells {
		require.NoError(t, tbl.Append([]table.Value{c}))
	}
	return tbl
}

func TestByMonthExample(t *testing.T) {
	tbl := dated(t,
		table.Date(day(2024, 1, 5)),
		table.Date(day(2024, 1, 20)),
		table.Date(day(2024, 2, 2)),
	)
	res := ByMonth(tbl, 0)

	assert.Equal(t, []Bin{
		{Start: day(2024, 1, 1), End: day(2024, 2, 1), Count: 2},
		{Start: day(2024, 2, 1), End: day(2024, 3, 1), Count: 1},
	}, res.Bins)
	assert.Equal(t, 0, res.Excluded)
	assert.Equal(t, 3, res.Dated())
	assert.Len(t, res.Daily, 3)
}

func TestByMonthExcludesUndated(t *testing.T) {
	tbl := dated(t,
		table.Date(day(2023, 12, 31)),
		table.Null(),
		table.Text("sometime"),
		table.Date(day(2024, 3, 9)),
		table.Date(day(2024, 3, 9)),
	)
	res := ByMonth(tbl, 0)

	require.Len(t, res.Dates, tbl.Len())
	assert.Nil(t, res.Dates[1])
	assert.Nil(t, res.Dates[2])
	assert.Equal(t, day(2024, 3, 9), *res.Dates[3])
	assert.Equal(t, 2, res.Excluded)

	// December and March only: empty months are never materialized.
	require.Len(t, res.Bins, 2)
	assert.Equal(t, day(2023, 12, 1), res.Bins[0].Start)
	assert.Equal(t, day(2024, 1, 1), res.Bins[0].End)
	assert.Equal(t, day(2024, 3, 1), res.Bins[1].Start)

	assert.Equal(t, []Day{{Date: day(2023, 12, 31), Count: 1}, {Date: day(2024, 3, 9), Count: 2}}, res.Daily)
}

func TestBinsPartitionDates(t *testing.T) {
	var cells []table.Value
	for i := 0; i < 400; i += 7 {
		cells = append(cells, table.Date(day(2023, 1, 1).AddDate(0, 0, i).Add(13*time.Hour)))
	}
	tbl := dated(t, cells...)
	res := ByMonth(tbl, 0)

	sum := 0
	for i, b := range res.Bins {
		sum += b.Count
		assert.Equal(t, 1, b.Start.Day())
		assert.Equal(t, b.Start.AddDate(0, 1, 0), b.End)
		if i > 0 {
			assert.False(t, res.Bins[i-1].End.After(b.Start), "bins overlap")
		}
	}
	assert.Equal(t, res.Dated(), sum)

	for _, d := range res.Dates {
		n := 0
		for _, b := range res.Bins {
			if b.Contains(*d) {
				n++
			}
		}
		assert.Equal(t, 1, n, "date %s", d)
	}
}

func TestByMonthUsesWrittenCalendarDate(t *testing.T) {
	plus2 := time.FixedZone("+02:00", 2*60*60)
	early := time.Date(2024, 2, 1, 0, 30, 0, 0, plus2) // 2024-01-31T22:30Z
	res := ByMonth(dated(t, table.Date(early)), 0)

	require.Len(t, res.Bins, 1)
	assert.Equal(t, day(2024, 2, 1), res.Bins[0].Start)
	assert.True(t, res.Bins[0].Contains(early))
	assert.Equal(t, []Day{{Date: day(2024, 2, 1), Count: 1}}, res.Daily)
}
