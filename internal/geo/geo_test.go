package geo

import (
	"context"
	"errors"
	"testing"

	"github.com/KaramelBytes/vetviz-cli/internal/observability"
	"github.com/KaramelBytes/vetviz-cli/internal/resolve"
	"github.com/KaramelBytes/vetviz-cli/internal/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func shelters(t *testing.T, names ...string) *table.Table {
	t.Helper()
	tbl := table.New("records", []string{"Species", "Location"})
	for _, n := range names {
		require.NoError(t, tbl.Append([]table.Value{table.Text("dog"), table.Text(n)}))
	}
	return tbl
}

func lookupTable(t *testing.T, rows ...[]table.Value) *table.Table {
	t.Helper()
	tbl := table.New("coords", []string{"Location Name", "Longitude", "Latitude"})
	for _, r := range rows {
		require.NoError(t, tbl.Append(r))
	}
	return tbl
}

func TestJoinUnmappedLocation(t *testing.T) {
	l := NewLookup()
	l.Add("Shelter A", Coordinate{Lon: -80.0, Lat: 38.0}, 0)
	j := &Joiner{Lookup: l, Logger: observability.Discard()}

	src := shelters(t, "Shelter A", "Shelter B")
	out, res, err := j.Join(context.Background(), src, 1)
	require.NoError(t, err)

	require.Equal(t, src.Len(), out.Len(), "no row is dropped")
	assert.Equal(t, 1, res.Hits)
	assert.Equal(t, 1, res.Unmapped)
	assert.Equal(t, []NameCount{{Name: "Shelter B", Count: 1}}, res.Misses)

	lon, lat := res.Placements[1].Coordinates()
	assert.Equal(t, 0.0, lon)
	assert.Equal(t, 0.0, lat)
	assert.Nil(t, res.Placements[1].Coord)

	lonCol, latCol, stCol := out.Index(ColLongitude), out.Index(ColLatitude), out.Index(ColStatus)
	assert.Equal(t, -80.0, out.Cell(0, lonCol).Num)
	assert.Equal(t, 38.0, out.Cell(0, latCol).Num)
	assert.True(t, out.Cell(1, lonCol).IsNull())
	assert.Equal(t, "unmapped", out.Cell(1, stCol).String())
	assert.Equal(t, "mapped", out.Cell(0, stCol).String())

	require.Len(t, res.Mapped(), 1)
	assert.Equal(t, "Shelter A", res.Mapped()[0].Name)

	// The input keeps its original shape.
	assert.Equal(t, 2, src.Width())
}

func TestJoinMissingNameBecomesNA(t *testing.T) {
	l := NewLookup()
	l.Add("Shelter A", Coordinate{Lon: -80, Lat: 38}, 0)
	src := table.New("records", []string{"Location"})
	require.NoError(t, src.Append([]table.Value{table.Null()}))

	out, res, err := (&Joiner{Lookup: l}).Join(context.Background(), src, 0)
	require.NoError(t, err)
	assert.Equal(t, MissingName, out.Cell(0, 0).String())
	assert.Equal(t, StatusUnmapped, res.Placements[0].Status)
	assert.True(t, src.Cell(0, 0).IsNull())
}

func TestJoinEveryRowMappedOrSentinel(t *testing.T) {
	l := NewLookup()
	l.Add("A", Coordinate{Lon: 1, Lat: 2}, 0)
	l.Add("B", Coordinate{Lon: 3, Lat: 4}, 1)
	src := shelters(t, "A", "B", "C", "a", "A ", "B")

	out, res, err := (&Joiner{Lookup: l}).Join(context.Background(), src, 1)
	require.NoError(t, err)
	require.Equal(t, src.Len(), out.Len())
	require.Len(t, res.Placements, src.Len())

	for _, p := range res.Placements {
		lon, lat := p.Coordinates()
		if c, ok := l.Get(p.Name); ok {
			assert.Equal(t, StatusMapped, p.Status)
			assert.Equal(t, c, Coordinate{Lon: lon, Lat: lat})
		} else {
			assert.Equal(t, StatusUnmapped, p.Status, "exact and case-sensitive: %q", p.Name)
			assert.Equal(t, [2]float64{0, 0}, [2]float64{lon, lat})
		}
	}
	assert.Equal(t, 3, res.Hits)
}

type stubGeocoder struct {
	calls   map[string]int
	results map[string]GeocodingResult
	err     error
}

func (s *stubGeocoder) ForwardGeocode(_ context.Context, name, state string) (GeocodingResult, error) {
	if s.calls == nil {
		s.calls = map[string]int{}
	}
	s.calls[name+"|"+state]++
	if s.err != nil {
		return GeocodingResult{}, s.err
	}
	return s.results[name], nil
}

func TestJoinGeocoderFallback(t *testing.T) {
	l := NewLookup()
	l.Add("Shelter A", Coordinate{Lon: -80, Lat: 38}, 0)
	g := &stubGeocoder{results: map[string]GeocodingResult{
		"Roanoke": {Lon: -79.94, Lat: 37.27, FormattedAddress: "Roanoke, Virginia, United States"},
	}}
	j := &Joiner{Lookup: l, Geocoder: g, State: "Virginia", Logger: observability.Discard()}

	src := shelters(t, "Shelter A", "Roanoke", "Nowhere", "Roanoke")
	require.NoError(t, src.Append([]table.Value{table.Text("cat"), table.Null()}))

	out, res, err := j.Join(context.Background(), src, 1)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Hits)
	assert.Equal(t, 2, res.Geocoded)
	assert.Equal(t, 2, res.Unmapped)
	assert.Equal(t, 1, g.calls["Roanoke|Virginia"], "one request per distinct name")
	assert.Zero(t, g.calls["Shelter A|Virginia"], "lookup hits never reach the geocoder")
	assert.Zero(t, g.calls[MissingName+"|Virginia"])
	assert.Equal(t, "geocoded", out.Cell(1, out.Index(ColStatus)).String())
	assert.InDelta(t, 37.27, out.Cell(3, out.Index(ColLatitude)).Num, 1e-9)
}

func TestJoinGeocoderErrorIsNotFatal(t *testing.T) {
	g := &stubGeocoder{err: errors.New("boom")}
	j := &Joiner{Lookup: NewLookup(), Geocoder: g, Logger: observability.Discard()}

	_, res, err := j.Join(context.Background(), shelters(t, "X"), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Unmapped)
}

func TestJoinContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	g := &stubGeocoder{err: context.Canceled}
	j := &Joiner{Lookup: NewLookup(), Geocoder: g, Logger: observability.Discard()}

	_, _, err := j.Join(ctx, shelters(t, "X"), 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLookupFromTableDuplicates(t *testing.T) {
	src := lookupTable(t,
		[]table.Value{table.Text("Shelter A"), table.Number(-80), table.Number(38)},
		[]table.Value{table.Text("Shelter B"), table.Text("-81.5"), table.Text("37.5")},
		[]table.Value{table.Text("Shelter A"), table.Number(-79), table.Number(39)},
		[]table.Value{table.Null(), table.Number(1), table.Number(1)},
		[]table.Value{table.Text("Shelter C"), table.Text("west"), table.Number(1)},
	)

	l, err := LookupFromTable(src, "location")
	require.NoError(t, err)
	assert.Equal(t, 2, l.Len())
	assert.Equal(t, 2, l.Skipped)

	c, ok := l.Get("Shelter A")
	require.True(t, ok)
	assert.Equal(t, Coordinate{Lon: -79, Lat: 39}, c, "last write wins")
	require.Len(t, l.Duplicates, 1)
	assert.Equal(t, DuplicateKey{Name: "Shelter A", Row: 2, Previous: Coordinate{-80, 38}, Current: Coordinate{-79, 39}}, l.Duplicates[0])

	c, ok = l.Get("Shelter B")
	require.True(t, ok)
	assert.Equal(t, Coordinate{Lon: -81.5, Lat: 37.5}, c)
}

func TestLookupFromTableMissingColumn(t *testing.T) {
	src := table.New("coords", []string{"Name", "Longitude"})
	_, err := LookupFromTable(src, "name")
	require.Error(t, err)
	assert.ErrorIs(t, err, resolve.ErrColumnNotFound)

	var cnf *resolve.ColumnNotFoundError
	require.ErrorAs(t, err, &cnf)
	assert.Equal(t, RoleLatitude, cnf.Role)
}

func TestExtractInline(t *testing.T) {
	src := table.New("records", []string{"Species", "long_deg", "lat_deg"})
	require.NoError(t, src.Append([]table.Value{table.Text("cat"), table.Number(-80), table.Number(38)}))
	require.NoError(t, src.Append([]table.Value{table.Text("dog"), table.Null(), table.Number(38)}))

	out, res, err := ExtractInline(src)
	require.NoError(t, err)
	assert.Equal(t, []string{"Species", ColLongitude, ColLatitude}, out.Columns())
	assert.Equal(t, []string{"Species", "long_deg", "lat_deg"}, src.Columns())
	assert.Equal(t, -80.0, out.Cell(0, 1).Num)
	assert.Equal(t, 1, res.Hits)
	assert.Equal(t, 1, res.Unmapped)
	assert.Empty(t, res.Misses)
}

func TestExtractInlineColumnNotFound(t *testing.T) {
	src := table.New("records", []string{"Species", "Longitude"})
	_, _, err := ExtractInline(src)
	assert.ErrorIs(t, err, resolve.ErrColumnNotFound)
}

func TestJoinEmptyCellIgnoresNAKey(t *testing.T) {
	l := NewLookup()
	l.Add(MissingName, Coordinate{Lon: 5, Lat: 6}, 0)
	l.Add("Shelter A", Coordinate{Lon: -80, Lat: 38}, 1)
	src := table.New("records", []string{"Location"})
	require.NoError(t, src.Append([]table.Value{table.Null()}))
	require.NoError(t, src.Append([]table.Value{table.Text("Shelter A")}))

	out, res, err := (&Joiner{Lookup: l, Logger: observability.Discard()}).Join(context.Background(), src, 0)
	require.NoError(t, err)
	assert.Equal(t, StatusUnmapped, res.Placements[0].Status)
	assert.Nil(t, res.Placements[0].Coord)
	assert.True(t, out.Cell(0, out.Index(ColLongitude)).IsNull())
	assert.Equal(t, StatusMapped, res.Placements[1].Status)
	assert.Equal(t, []NameCount{{Name: MissingName, Count: 1}}, res.Misses)
}
