package table

import (
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
)

// clock supplies the current year for yearless dates; tests freeze it via SetClock.
var clock = clockwork.NewRealClock()

// SetClock swaps the time source. Pass nil to reset to real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}

// DefaultDateLayouts lists the layouts tried on date-like columns.
// "02-Jan" is the day-month export format of the clinic systems and carries no year.
func DefaultDateLayouts() []string {
	return []string{
		"2006-01-02",
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006/01/02",
		"01/02/2006",
		"1/2/2006",
		"02-Jan-2006",
		"02-Jan-06",
		"02-Jan",
	}
}

// IsDateHeader reports whether a header name triggers date parsing.
func IsDateHeader(name string) bool {
	return strings.Contains(strings.ToLower(name), "date")
}

// ParseDateColumns converts text cells of date-like columns into date cells.
// Cells that match no layout are kept as text; they count as unparseable downstream.
// When serials is true, bare numbers are read as Excel day serials.
func ParseDateColumns(t *Table, opt Options, serials bool) {
	for c, name := range t.columns {
		if IsDateHeader(name) {
			ParseDateColumn(t, c, opt, serials)
		}
	}
}

// ParseDate tries each layout in order. Layouts without a year component get
// year; a day that does not exist in that year (29 Feb) fails the layout.
// Offsets are kept, so the calendar date is the one written in the cell.
func ParseDate(s string, layouts []string, year int) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, l := range layouts {
		d, err := time.Parse(l, s)
		if err != nil {
			continue
		}
		if !strings.Contains(l, "06") {
			month, day := d.Month(), d.Day()
			d = time.Date(year, month, day, d.Hour(), d.Minute(), d.Second(), 0, d.Location())
			if d.Month() != month || d.Day() != day {
				continue
			}
		}
		return d, true
	}
	return time.Time{}, false
}

// ParseDateColumn converts the text cells of one column into date cells.
// Cells already holding dates, and text that matches no layout, are left alone.
func ParseDateColumn(t *Table, col int, opt Options, serials bool) {
	layouts := opt.DateLayouts
	if len(layouts) == 0 {
		layouts = DefaultDateLayouts()
	}
	year := opt.DefaultYear
	if year == 0 {
		year = clock.Now().Year()
	}
	for r := range t.rows {
		v := t.rows[r][col]
		if v.Kind != KindText {
			continue
		}
		if d, ok := ParseDate(v.Str, layouts, year); ok {
			t.rows[r][col] = Date(d)
		} else if serials {
			if d, ok := excelSerial(v.Str); ok {
				t.rows[r][col] = Date(d)
			}
		}
	}
}

// excelSerial converts a spreadsheet day serial (1900 date system) to a date.
func excelSerial(s string) (time.Time, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || f < 1 || f > 2958465 {
		return time.Time{}, false
	}
	base := time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)
	return base.AddDate(0, 0, int(f)), true
}
