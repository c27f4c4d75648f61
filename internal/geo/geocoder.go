package geo

import "context"

// GeocodingResult contains location data returned by a geocoding provider.
type GeocodingResult struct {
	Lat              float64
	Lon              float64
	FormattedAddress string
	PlaceName        string
	Confidence       float64 // 0.0–1.0 provider confidence score
}

// Found reports whether the provider returned a place.
func (r GeocodingResult) Found() bool { return r.FormattedAddress != "" }

// Geocoder resolves location names that the lookup table does not know.
type Geocoder interface {
	// ForwardGeocode converts a location name and state to coordinates.
	ForwardGeocode(ctx context.Context, name, state string) (GeocodingResult, error)
}
