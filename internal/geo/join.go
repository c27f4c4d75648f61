package geo

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/KaramelBytes/vetviz-cli/internal/resolve"
	"github.com/KaramelBytes/vetviz-cli/internal/table"
)

// Canonical column names written by Join and ExtractInline.
const (
	ColLongitude = "Longitude"
	ColLatitude  = "Latitude"
	ColStatus    = "Location Status"
)

// MissingName replaces empty location cells before lookup.
const MissingName = "N/A"

// Status is the outcome of placing one row.
type Status string

const (
	StatusMapped   Status = "mapped"
	StatusGeocoded Status = "geocoded"
	StatusUnmapped Status = "unmapped"
)

// Placement is the coordinate assigned to one row, if any.
type Placement struct {
	Row    int         `json:"row" yaml:"row"`
	Name   string      `json:"name,omitempty" yaml:"name,omitempty"`
	Coord  *Coordinate `json:"coord,omitempty" yaml:"coord,omitempty"`
	Status Status      `json:"status" yaml:"status"`
}

// Coordinates returns lon/lat with the legacy (0, 0) for unmapped rows.
func (p Placement) Coordinates() (lon, lat float64) {
	if p.Coord == nil {
		return 0, 0
	}
	return p.Coord.Lon, p.Coord.Lat
}

// NameCount is an unmapped location name and how many rows carry it.
type NameCount struct {
	Name  string `json:"name" yaml:"name"`
	Count int    `json:"count" yaml:"count"`
}

// Result describes a join. Placements has one entry per row, in row order.
type Result struct {
	Placements []Placement `json:"placements" yaml:"placements"`
	Hits       int         `json:"hits" yaml:"hits"`
	Geocoded   int         `json:"geocoded" yaml:"geocoded"`
	Unmapped   int         `json:"unmapped" yaml:"unmapped"`
	// Misses lists the distinct unmapped names in first-appearance order.
	Misses []NameCount `json:"misses,omitempty" yaml:"misses,omitempty"`
}

// Mapped returns the placements that carry a coordinate.
func (r Result) Mapped() []Placement {
	out := make([]Placement, 0, len(r.Placements)-r.Unmapped)
	for _, p := range r.Placements {
		if p.Coord != nil {
			out = append(out, p)
		}
	}
	return out
}

func (r *Result) place(p Placement) {
	switch p.Status {
	case StatusMapped:
		r.Hits++
	case StatusGeocoded:
		r.Geocoded++
	default:
		r.Unmapped++
		r.miss(p.Name)
	}
	r.Placements = append(r.Placements, p)
}

func (r *Result) miss(name string) {
	if name == "" {
		return
	}
	for i := range r.Misses {
		if r.Misses[i].Name == name {
			r.Misses[i].Count++
			return
		}
	}
	r.Misses = append(r.Misses, NameCount{Name: name, Count: 1})
}

// Joiner places rows by exact lookup, falling back to an optional geocoder.
type Joiner struct {
	Lookup   *Lookup
	Geocoder Geocoder // nil disables the fallback
	State    string   // scopes geocoder queries, e.g. "Virginia"
	Logger   *slog.Logger
}

// Join returns a copy of t with Longitude, Latitude and Location Status
// columns. Rows are never dropped; rows without a match keep null
// coordinates and status unmapped.
func (j *Joiner) Join(ctx context.Context, t *table.Table, locCol int) (*table.Table, Result, error) {
	var res Result
	if locCol < 0 || locCol >= t.Width() {
		return nil, res, fmt.Errorf("location column %d out of range", locCol)
	}
	logger := j.Logger
	if logger == nil {
		logger = slog.Default()
	}

	out := t.Clone()
	n := out.Len()
	lons, lats, status := make([]table.Value, n), make([]table.Value, n), make([]table.Value, n)
	geocoded := map[string]*Coordinate{}

	for r := 0; r < n; r++ {
		cell := out.Cell(r, locCol)
		name := cell.String()
		missing := cell.IsNull()
		if missing {
			name = MissingName
			out.Set(r, locCol, table.Text(MissingName))
		}

		// An empty cell stays unmapped even if the lookup has an "N/A" key.
		p := Placement{Row: r, Name: name, Status: StatusUnmapped}
		if c, ok := j.Lookup.Get(name); ok && !missing {
			p.Coord, p.Status = &c, StatusMapped
		} else if j.Geocoder != nil && !missing {
			c, seen := geocoded[name]
			if !seen {
				var err error
				c, err = j.geocode(ctx, logger, name)
				if err != nil {
					if ctx.Err() != nil {
						return nil, res, ctx.Err()
					}
					logger.Warn("geocode failed", "location", name, "error", err)
				}
				geocoded[name] = c
			}
			if c != nil {
				p.Coord, p.Status = c, StatusGeocoded
			}
		}

		if p.Coord != nil {
			lons[r], lats[r] = table.Number(p.Coord.Lon), table.Number(p.Coord.Lat)
		}
		status[r] = table.Text(string(p.Status))
		res.place(p)
	}

	for _, c := range []struct {
		name string
		vals []table.Value
	}{{ColLongitude, lons}, {ColLatitude, lats}, {ColStatus, status}} {
		if _, err := out.AddColumn(c.name, c.vals); err != nil {
			return nil, res, err
		}
	}
	if res.Unmapped > 0 {
		logger.Info("unmapped locations", "rows", res.Unmapped, "names", len(res.Misses))
	}
	return out, res, nil
}

func (j *Joiner) geocode(ctx context.Context, logger *slog.Logger, name string) (*Coordinate, error) {
	gr, err := j.Geocoder.ForwardGeocode(ctx, name, j.State)
	if err != nil || !gr.Found() {
		return nil, err
	}
	logger.Debug("geocoded location", "location", name, "place", gr.PlaceName, "address", gr.FormattedAddress, "confidence", gr.Confidence)
	return &Coordinate{Lon: gr.Lon, Lat: gr.Lat}, nil
}

// ExtractInline promotes the longitude/latitude columns of t, resolved by
// role, to the canonical names. Cell values are untouched; the Result places
// rows whose coordinates parse as numbers.
func ExtractInline(t *table.Table) (*table.Table, Result, error) {
	var res Result
	b, err := resolve.New(t.Columns()).Bind(RoleLongitude, RoleLatitude)
	if err != nil {
		return nil, res, err
	}
	lonCol, _ := b.Column(RoleLongitude)
	latCol, _ := b.Column(RoleLatitude)

	out := t.Clone()
	for _, c := range []struct {
		col  int
		name string
	}{{lonCol, ColLongitude}, {latCol, ColLatitude}} {
		if i := out.Index(c.name); i >= 0 && i != c.col {
			return nil, res, fmt.Errorf("cannot rename %q: column %q already exists", out.Columns()[c.col], c.name)
		}
		out.Rename(c.col, c.name)
	}

	for r := 0; r < out.Len(); r++ {
		p := Placement{Row: r, Status: StatusUnmapped}
		lon, okLon := out.Cell(r, lonCol).Float()
		lat, okLat := out.Cell(r, latCol).Float()
		if okLon && okLat {
			p.Coord, p.Status = &Coordinate{Lon: lon, Lat: lat}, StatusMapped
		}
		res.place(p)
	}
	return out, res, nil
}
