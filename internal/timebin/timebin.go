// Package timebin groups dated rows into calendar months and days.
package timebin

import (
	"sort"
	"time"

	"github.com/KaramelBytes/vetviz-cli/internal/table"
)

// Bin is one observed month as the half-open interval [Start, End).
type Bin struct {
	Start time.Time `json:"start" yaml:"start"`
	End   time.Time `json:"end" yaml:"end"`
	Count int       `json:"count" yaml:"count"`
}

// Contains reports whether the calendar date of d falls inside the bin.
func (b Bin) Contains(d time.Time) bool {
	w := wallClock(d)
	return !w.Before(b.Start) && w.Before(b.End)
}

// Day is the raw count for one calendar day.
type Day struct {
	Date  time.Time `json:"date" yaml:"date"`
	Count int       `json:"count" yaml:"count"`
}

// Result is the month binning of one date column.
type Result struct {
	Column string `json:"column" yaml:"column"`
	// Bins holds one entry per observed month, ascending. Empty months are absent.
	Bins []Bin `json:"bins" yaml:"bins"`
	// Daily holds per-day counts, ascending, for overlay plots.
	Daily []Day `json:"daily" yaml:"daily"`
	// Dates is the per-row date series; nil where the cell is empty or unparseable.
	Dates []*time.Time `json:"-" yaml:"-"`
	// Excluded counts rows without a parseable date.
	Excluded int `json:"excluded" yaml:"excluded"`
}

// Dated is the number of rows that landed in a bin.
func (r Result) Dated() int { return len(r.Dates) - r.Excluded }

// ByMonth bins the date cells of col by calendar month.
func ByMonth(t *table.Table, col int) Result {
	res := Result{Column: t.Columns()[col], Dates: make([]*time.Time, t.Len())}
	months := map[time.Time]int{}
	days := map[time.Time]int{}

	for r := 0; r < t.Len(); r++ {
		v := t.Cell(r, col)
		if v.Kind != table.KindDate {
			res.Excluded++
			continue
		}
		d := v.Time
		res.Dates[r] = &d
		months[MonthStart(d)]++
		days[time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)]++
	}

	for start, n := range months {
		res.Bins = append(res.Bins, Bin{Start: start, End: start.AddDate(0, 1, 0), Count: n})
	}
	sort.Slice(res.Bins, func(i, j int) bool { return res.Bins[i].Start.Before(res.Bins[j].Start) })

	for d, n := range days {
		res.Daily = append(res.Daily, Day{Date: d, Count: n})
	}
	sort.Slice(res.Daily, func(i, j int) bool { return res.Daily[i].Date.Before(res.Daily[j].Date) })
	return res
}

// MonthStart is midnight UTC on the first of the month d is written in.
// The offset of d is ignored: 2024-02-01T00:30:00+02:00 starts February.
func MonthStart(d time.Time) time.Time {
	return time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// wallClock re-reads the clock fields of d as UTC.
func wallClock(d time.Time) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), d.Hour(), d.Minute(), d.Second(), d.Nanosecond(), time.UTC)
}
