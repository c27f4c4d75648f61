package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/KaramelBytes/vetviz-cli/internal/adapter/mapbox"
	cfgpkg "github.com/KaramelBytes/vetviz-cli/internal/config"
	"github.com/KaramelBytes/vetviz-cli/internal/geo"
	"github.com/KaramelBytes/vetviz-cli/internal/lifestage"
	"github.com/KaramelBytes/vetviz-cli/internal/observability"
	"github.com/KaramelBytes/vetviz-cli/internal/table"
	"github.com/KaramelBytes/vetviz-cli/internal/views"
)

// tableOptions maps ingestion settings onto loader options.
func tableOptions(c *cfgpkg.Global) table.Options {
	opt := table.DefaultOptions()
	if len(c.DateLayouts) > 0 {
		opt.DateLayouts = c.DateLayouts
	}
	opt.DefaultYear = c.DefaultYear
	opt.SheetName = c.SheetName
	opt.SheetIndex = c.SheetIndex
	return opt
}

// viewOptions maps analysis settings onto build options.
func viewOptions(c *cfgpkg.Global) (views.Options, error) {
	species, err := lifestage.ParseTarget(c.Species)
	if err != nil {
		return views.Options{}, err
	}
	return views.Options{
		Species:           species,
		XData:             c.XData,
		Categories:        c.Categories,
		State:             c.State,
		InlineCoordinates: c.InlineCoordinates(),
		DateRole:          c.DateRole,
		AgeRole:           c.AgeRole,
		SpeciesRole:       c.SpeciesRole,
		LocationRole:      c.LocationRole,
	}, nil
}

// newGeocoder returns the cached Mapbox fallback, or nil when disabled.
func newGeocoder(c *cfgpkg.Global, metrics *observability.Metrics) geo.Geocoder {
	if !c.MapboxEnabled {
		logger.Debug("mapbox geocoding disabled")
		return nil
	}
	timeout := time.Duration(c.MapboxTimeoutSec) * time.Second
	client := mapbox.NewClient(c.MapboxToken, timeout, metrics, logger)
	logger.Info("mapbox geocoding enabled", "cache_size", c.MapboxCacheSize, "timeout", timeout)
	return mapbox.NewCachedGeocoder(client, c.MapboxCacheSize, metrics)
}

func parseDelimiter(s string) (rune, error) {
	switch strings.ToLower(s) {
	case "":
		return 0, nil
	case ",":
		return ',', nil
	case "\t", "tab":
		return '\t', nil
	case ";":
		return ';', nil
	case "|", "pipe":
		return '|', nil
	}
	return 0, fmt.Errorf("unsupported --delimiter: %s", s)
}
