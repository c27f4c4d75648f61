// Package geo attaches coordinates to records, either by joining a location
// name against a lookup table or by promoting coordinate columns already
// present in the records.
package geo

import (
	"fmt"

	"github.com/KaramelBytes/vetviz-cli/internal/resolve"
	"github.com/KaramelBytes/vetviz-cli/internal/table"
)

// Roles used to find the coordinate columns of a table.
const (
	RoleLongitude = "long"
	RoleLatitude  = "lat"
)

// Coordinate is a WGS84 longitude/latitude pair.
type Coordinate struct {
	Lon float64 `json:"lon" yaml:"lon"`
	Lat float64 `json:"lat" yaml:"lat"`
}

// DuplicateKey records a lookup name seen more than once. The later row wins.
type DuplicateKey struct {
	Name     string     `json:"name" yaml:"name"`
	Row      int        `json:"row" yaml:"row"`
	Previous Coordinate `json:"previous" yaml:"previous"`
	Current  Coordinate `json:"current" yaml:"current"`
}

// Lookup maps exact, case-sensitive location names to coordinates.
type Lookup struct {
	coords map[string]Coordinate

	Duplicates []DuplicateKey
	// Skipped counts source rows without a name or with unreadable coordinates.
	Skipped int
}

// NewLookup returns an empty lookup.
func NewLookup() *Lookup {
	return &Lookup{coords: make(map[string]Coordinate)}
}

// Add stores c under name, overwriting and recording any previous entry.
func (l *Lookup) Add(name string, c Coordinate, row int) {
	if prev, ok := l.coords[name]; ok {
		l.Duplicates = append(l.Duplicates, DuplicateKey{Name: name, Row: row, Previous: prev, Current: c})
	}
	l.coords[name] = c
}

// Get returns the coordinate stored for name.
func (l *Lookup) Get(name string) (Coordinate, bool) {
	if l == nil {
		return Coordinate{}, false
	}
	c, ok := l.coords[name]
	return c, ok
}

// Len is the number of distinct names.
func (l *Lookup) Len() int {
	if l == nil {
		return 0
	}
	return len(l.coords)
}

// LookupFromTable builds a Lookup from a table holding a name column and
// longitude/latitude columns, all resolved by role.
func LookupFromTable(t *table.Table, nameRole string) (*Lookup, error) {
	b, err := resolve.New(t.Columns()).Bind(nameRole, RoleLongitude, RoleLatitude)
	if err != nil {
		return nil, fmt.Errorf("lookup table %s: %w", t.Name(), err)
	}
	nameCol, lonCol, latCol := b[nameRole], b[RoleLongitude], b[RoleLatitude]

	l := NewLookup()
	for r := 0; r < t.Len(); r++ {
		name := t.Cell(r, nameCol)
		lon, okLon := t.Cell(r, lonCol).Float()
		lat, okLat := t.Cell(r, latCol).Float()
		if name.IsNull() || !okLon || !okLat {
			l.Skipped++
			continue
		}
		l.Add(name.String(), Coordinate{Lon: lon, Lat: lat}, r)
	}
	return l, nil
}
