package geocode

import (
	"context"
	"errors"
	"strings"
)

// ErrNotFound is returned by providers when a query yields no candidates.
var ErrNotFound = errors.New("geocode not found")

// Provider turns a free-text location query into coordinates.
type Provider interface {
	Geocode(ctx context.Context, query string) (lat float64, lon float64, err error)
}

// Source tags a resolved location with the fallback tier that produced it.
// Observability only; routing never branches on it.
type Source string

const (
	SourceProviderCity   Source = "provider_city"
	SourceProviderRegion Source = "provider_region"
	SourceTableExact     Source = "table_exact"
	SourceTableFuzzy     Source = "table_fuzzy"
	SourceTablePartial   Source = "table_partial"
	SourceNone           Source = "unresolved"
)

// ResolvedLocation is either coordinates plus provenance or an explicit
// unresolved marker. Callers must treat the unresolved case as a first-class
// outcome, not a failure.
type ResolvedLocation struct {
	Lat      float64
	Lon      float64
	Source   Source
	Resolved bool
}

// Unresolved is the symbolic outcome when every fallback tier failed.
func Unresolved() ResolvedLocation {
	return ResolvedLocation{Source: SourceNone}
}

// BoundingBox is a lat/lon rectangle used to reject provider hits outside
// the serviced country.
type BoundingBox struct {
	LatMin, LatMax float64
	LonMin, LonMax float64
}

func (b BoundingBox) Contains(lat, lon float64) bool {
	return lat >= b.LatMin && lat <= b.LatMax && lon >= b.LonMin && lon <= b.LonMax
}

// IsForeign reports whether the country field explicitly names a non-KZ
// country. Empty values are NOT foreign: missing data falls through to
// geocoding (the routing layer decides what to do with it).
func IsForeign(country string) bool {
	v := strings.ToLower(strings.TrimSpace(country))
	if v == "" {
		return false
	}
	switch v {
	case "казахстан", "kazakhstan", "kz", "қазақстан":
		return false
	}
	return true
}

// BuildQuery joins non-empty location parts into a single provider query.
func BuildQuery(parts ...string) string {
	var out []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ", ")
}
