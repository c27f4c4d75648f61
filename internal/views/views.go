// Package views composes column resolution, age normalization, location
// joins, aggregation and month binning into the derived views a plotting
// layer consumes.
//
// Build works on a private clone of the input table. Every view resolves its
// own roles, so a missing column fails only the views that need it.
package views

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/KaramelBytes/vetviz-cli/internal/aggregate"
	"github.com/KaramelBytes/vetviz-cli/internal/geo"
	"github.com/KaramelBytes/vetviz-cli/internal/lifestage"
	"github.com/KaramelBytes/vetviz-cli/internal/observability"
	"github.com/KaramelBytes/vetviz-cli/internal/resolve"
	"github.com/KaramelBytes/vetviz-cli/internal/table"
	"github.com/KaramelBytes/vetviz-cli/internal/timebin"
)

// View names, as reported in errors and metrics.
const (
	ViewAges     = "ages"
	ViewBar      = "bar"
	ViewHeatmap  = "heatmap"
	ViewPie      = "pie"
	ViewTimeline = "timeline"
	ViewGIS      = "gis"
)

// Options are the named settings of one analysis run.
type Options struct {
	Species    lifestage.Target `json:"species" yaml:"species"`
	XData      string           `json:"x_data" yaml:"x_data"`
	Categories string           `json:"categories" yaml:"categories"`
	State      string           `json:"state,omitempty" yaml:"state,omitempty"`
	// InlineCoordinates reads longitude/latitude from the records instead of a lookup.
	InlineCoordinates bool `json:"inline_coordinates,omitempty" yaml:"inline_coordinates,omitempty"`

	DateRole     string `json:"date_role,omitempty" yaml:"date_role,omitempty"`
	AgeRole      string `json:"age_role,omitempty" yaml:"age_role,omitempty"`
	SpeciesRole  string `json:"species_role,omitempty" yaml:"species_role,omitempty"`
	LocationRole string `json:"location_role,omitempty" yaml:"location_role,omitempty"`
}

// DefaultOptions mirrors the configuration defaults.
func DefaultOptions() Options {
	return Options{
		Species:      lifestage.TargetMulti,
		XData:        "reason",
		Categories:   "species",
		DateRole:     "date",
		AgeRole:      "age",
		SpeciesRole:  "species",
		LocationRole: "location",
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Species == "" {
		o.Species = d.Species
	}
	if o.DateRole == "" {
		o.DateRole = d.DateRole
	}
	if o.AgeRole == "" {
		o.AgeRole = d.AgeRole
	}
	if o.SpeciesRole == "" {
		o.SpeciesRole = d.SpeciesRole
	}
	if o.LocationRole == "" {
		o.LocationRole = d.LocationRole
	}
	return o
}

// Inputs carries everything Build needs besides the records.
type Inputs struct {
	Options Options
	// Lookup enables the GIS view in lookup mode; nil skips it unless
	// Options.InlineCoordinates is set.
	Lookup   *geo.Lookup
	Geocoder geo.Geocoder // optional fallback for lookup misses
	// Dates holds the layouts and default year for text cells of the date column.
	Dates table.Options

	Logger  *slog.Logger
	Metrics *observability.Metrics // optional
	Clock   clockwork.Clock        // defaults to the real clock
}

// AgesView is the life-stage normalization summary.
type AgesView struct {
	Column  string           `json:"column" yaml:"column"`
	Species lifestage.Target `json:"species" yaml:"species"`
	Report  lifestage.Report `json:"report" yaml:"report"`
	// Stages counts the normalized age column, first-appearance order.
	Stages *aggregate.Frequency `json:"stages" yaml:"stages"`
}

// HeatmapView is the x_data by categories cross-tabulation.
type HeatmapView struct {
	CrossTab *aggregate.CrossTab `json:"crosstab" yaml:"crosstab"`
	// Tiles are the pairs ordered by descending count on the x axis.
	Tiles []aggregate.Pair `json:"tiles" yaml:"tiles"`
}

// Point is one placed row for geospatial rendering.
type Point struct {
	Row      int        `json:"row" yaml:"row"`
	Name     string     `json:"name,omitempty" yaml:"name,omitempty"`
	Lon      float64    `json:"lon" yaml:"lon"`
	Lat      float64    `json:"lat" yaml:"lat"`
	Status   geo.Status `json:"status" yaml:"status"`
	Category string     `json:"category,omitempty" yaml:"category,omitempty"`
}

// GISView holds placed records. Unmapped rows are counted, never plotted.
type GISView struct {
	Mode       string             `json:"mode" yaml:"mode"` // lookup|inline
	State      string             `json:"state,omitempty" yaml:"state,omitempty"`
	Points     []Point            `json:"points" yaml:"points"`
	Hits       int                `json:"hits" yaml:"hits"`
	Geocoded   int                `json:"geocoded" yaml:"geocoded"`
	Unmapped   int                `json:"unmapped" yaml:"unmapped"`
	Misses     []geo.NameCount    `json:"misses,omitempty" yaml:"misses,omitempty"`
	Duplicates []geo.DuplicateKey `json:"duplicates,omitempty" yaml:"duplicates,omitempty"`
}

// ViewError reports a view that could not be built.
type ViewError struct {
	View    string `json:"view" yaml:"view"`
	Role    string `json:"role,omitempty" yaml:"role,omitempty"`
	Message string `json:"message" yaml:"message"`

	err error
}

func (e ViewError) Error() string { return e.View + ": " + e.Message }

func (e ViewError) Unwrap() error { return e.err }

// Views is the result of one build.
type Views struct {
	RunID       uuid.UUID `json:"run_id" yaml:"run_id"`
	GeneratedAt time.Time `json:"generated_at" yaml:"generated_at"`
	Source      string    `json:"source" yaml:"source"`
	Options     Options   `json:"options" yaml:"options"`

	// Total is the row count; Dated and Undated split it by date parse.
	Total   int `json:"total" yaml:"total"`
	Dated   int `json:"dated" yaml:"dated"`
	Undated int `json:"undated" yaml:"undated"`

	Ages     *AgesView            `json:"ages,omitempty" yaml:"ages,omitempty"`
	Bar      *aggregate.Frequency `json:"bar,omitempty" yaml:"bar,omitempty"`
	Heatmap  *HeatmapView         `json:"heatmap,omitempty" yaml:"heatmap,omitempty"`
	Pie      *aggregate.Frequency `json:"pie,omitempty" yaml:"pie,omitempty"`
	Timeline *timebin.Result      `json:"timeline,omitempty" yaml:"timeline,omitempty"`
	GIS      *GISView             `json:"gis,omitempty" yaml:"gis,omitempty"`

	Errors []ViewError `json:"errors,omitempty" yaml:"errors,omitempty"`

	// Table is the enriched working table: stage labels and coordinate columns.
	Table *table.Table `json:"-" yaml:"-"`
}

// Err returns the failure of a view, or nil.
func (v *Views) Err(view string) error {
	for _, e := range v.Errors {
		if e.View == view {
			return e
		}
	}
	return nil
}

// build holds the working state of one Build call.
type build struct {
	in   Inputs
	opt  Options
	log  *slog.Logger
	work *table.Table
	res  *resolve.Resolver
	out  *Views
}

// Build derives every view from t. It only fails when ctx is canceled;
// per-view failures are collected in Views.Errors.
func Build(ctx context.Context, t *table.Table, in Inputs) (*Views, error) {
	clock := in.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	b := &build{
		in:   in,
		opt:  in.Options.withDefaults(),
		log:  in.Logger,
		work: t.Clone(),
	}
	if b.log == nil {
		b.log = slog.Default()
	}
	start := clock.Now()
	b.out = &Views{
		RunID:       uuid.New(),
		GeneratedAt: start.UTC(),
		Source:      t.Name(),
		Total:       t.Len(),
	}
	b.out.Options = b.opt
	b.log = b.log.With("run_id", b.out.RunID.String(), "source", t.Name())
	b.refresh()

	if m := in.Metrics; m != nil {
		m.RowsIngested.Add(float64(t.Len()))
	}

	// Enrichment first, so every count sees stage labels.
	b.step(ViewAges, b.ages)
	if err := b.gis(ctx); err != nil {
		return nil, err
	}
	b.step(ViewBar, b.bar)
	b.step(ViewHeatmap, b.heatmap)
	b.step(ViewPie, b.pie)
	b.step(ViewTimeline, b.timeline)
	if b.out.Timeline == nil {
		b.out.Undated = b.out.Total
	}

	b.out.Table = b.work
	if m := in.Metrics; m != nil {
		m.BuildDuration.Observe(clock.Since(start).Seconds())
	}
	b.log.Info("views built", "rows", b.out.Total, "dated", b.out.Dated, "failed_views", len(b.out.Errors))
	return b.out, nil
}

func (b *build) refresh() { b.res = resolve.New(b.work.Columns()) }

func (b *build) step(view string, fn func() error) {
	if err := fn(); err != nil {
		b.fail(view, err)
	}
}

func (b *build) fail(view string, err error) {
	ve := ViewError{View: view, Message: err.Error(), err: err}
	if cnf, ok := asColumnNotFound(err); ok {
		ve.Role = cnf.Role
	}
	b.out.Errors = append(b.out.Errors, ve)
	b.log.Warn("view failed", "view", view, "error", err)
	if m := b.in.Metrics; m != nil {
		m.ViewFailures.WithLabelValues(view).Inc()
	}
}

func asColumnNotFound(err error) (*resolve.ColumnNotFoundError, bool) {
	var cnf *resolve.ColumnNotFoundError
	ok := errors.As(err, &cnf)
	return cnf, ok
}

func (b *build) column(role, what string) (int, error) {
	if role == "" {
		return -1, fmt.Errorf("no role configured for %s", what)
	}
	return b.res.Resolve(role)
}

func (b *build) ages() error {
	ageCol, err := b.column(b.opt.AgeRole, "age")
	if err != nil {
		return err
	}
	cols := lifestage.Columns{Age: ageCol, Species: -1}
	if b.opt.Species == lifestage.TargetMulti {
		if cols.Species, err = b.column(b.opt.SpeciesRole, "species"); err != nil {
			return err
		}
	}
	out, rep, err := lifestage.Normalize(b.work, b.opt.Species, cols)
	if err != nil {
		return err
	}
	b.work = out
	b.out.Ages = &AgesView{
		Column:  b.work.Columns()[ageCol],
		Species: b.opt.Species,
		Report:  rep,
		Stages:  aggregate.CountBy(b.work, ageCol),
	}
	if n := rep.UnclassifiedRows(); n > 0 {
		b.log.Info("unclassified ages", "rows", n, "distinct", len(rep.Unclassified))
	}
	if m := b.in.Metrics; m != nil {
		m.AgesClassified.Add(float64(rep.Classified))
		m.AgesUnclassified.Add(float64(rep.UnclassifiedRows()))
	}
	return nil
}

func (b *build) gis(ctx context.Context) error {
	if !b.opt.InlineCoordinates && b.in.Lookup == nil {
		return nil
	}
	var (
		out *table.Table
		res geo.Result
		err error
	)
	view := &GISView{State: b.opt.State}
	if b.opt.InlineCoordinates {
		view.Mode = "inline"
		out, res, err = geo.ExtractInline(b.work)
	} else {
		view.Mode = "lookup"
		view.Duplicates = b.in.Lookup.Duplicates
		for _, d := range view.Duplicates {
			b.log.Warn("duplicate lookup key", "name", d.Name, "row", d.Row)
		}
		if m := b.in.Metrics; m != nil {
			m.DuplicateKeys.Add(float64(len(view.Duplicates)))
		}
		var locCol int
		if locCol, err = b.column(b.opt.LocationRole, "location"); err == nil {
			j := &geo.Joiner{Lookup: b.in.Lookup, Geocoder: b.in.Geocoder, State: b.opt.State, Logger: b.log}
			out, res, err = j.Join(ctx, b.work, locCol)
		}
	}
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b.fail(ViewGIS, err)
		return nil
	}
	b.work = out
	b.refresh()

	catCol := -1
	if b.opt.Categories != "" {
		if c, err := b.res.Resolve(b.opt.Categories); err == nil {
			catCol = c
		}
	}
	for _, p := range res.Mapped() {
		pt := Point{Row: p.Row, Name: p.Name, Lon: p.Coord.Lon, Lat: p.Coord.Lat, Status: p.Status}
		if catCol >= 0 {
			pt.Category = b.work.Cell(p.Row, catCol).String()
		}
		view.Points = append(view.Points, pt)
	}
	view.Hits, view.Geocoded, view.Unmapped, view.Misses = res.Hits, res.Geocoded, res.Unmapped, res.Misses
	b.out.GIS = view

	if m := b.in.Metrics; m != nil {
		m.Locations.WithLabelValues(string(geo.StatusMapped)).Add(float64(res.Hits))
		m.Locations.WithLabelValues(string(geo.StatusGeocoded)).Add(float64(res.Geocoded))
		m.Locations.WithLabelValues(string(geo.StatusUnmapped)).Add(float64(res.Unmapped))
	}
	return nil
}

func (b *build) bar() error {
	x, err := b.column(b.opt.XData, "x_data")
	if err != nil {
		return err
	}
	b.out.Bar = aggregate.CountBy(b.work, x)
	return nil
}

func (b *build) heatmap() error {
	x, err := b.column(b.opt.XData, "x_data")
	if err != nil {
		return err
	}
	c, err := b.column(b.opt.Categories, "categories")
	if err != nil {
		return err
	}
	ct := aggregate.CrossCount(b.work, x, c)
	b.out.Heatmap = &HeatmapView{CrossTab: ct, Tiles: ct.SortedByCount(aggregate.AxisA)}
	return nil
}

func (b *build) pie() error {
	c, err := b.column(b.opt.Categories, "categories")
	if err != nil {
		return err
	}
	b.out.Pie = aggregate.CountBy(b.work, c)
	return nil
}

func (b *build) timeline() error {
	d, err := b.column(b.opt.DateRole, "date")
	if err != nil {
		return err
	}
	// Loaders only parse headers that say "date"; the role may name any column.
	table.ParseDateColumn(b.work, d, b.in.Dates, false)
	res := timebin.ByMonth(b.work, d)
	b.out.Timeline = &res
	b.out.Dated, b.out.Undated = res.Dated(), res.Excluded
	if res.Excluded > 0 {
		b.log.Info("rows without a parseable date excluded from timeline", "rows", res.Excluded)
	}
	return nil
}
