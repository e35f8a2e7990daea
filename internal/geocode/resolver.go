package geocode

import (
	"context"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/routedesk/backend/internal/metrics"
)

// ResolverConfig carries the lookup data injected into a Resolver. Tables
// are deployment configuration, not compiled-in behavior: a different
// region swaps tables, not code.
type ResolverConfig struct {
	Cities  map[string]Coord
	Aliases map[string]string
	BBox    BoundingBox
	Logger  zerolog.Logger
}

// Resolver turns free-text location fields into coordinates through an
// ordered fallback chain:
//
//	1. provider, city + region + country qualifier (bbox validated)
//	2. provider, region + country qualifier (bbox validated)
//	3. exact offline table lookup of the region
//	4. fuzzy offline table lookup (typo tolerant)
//	5. substring match against table keys
//
// Exhausting all tiers yields Unresolved, never an error.
type Resolver struct {
	provider Provider
	cities   map[string]Coord
	cityKeys []string
	aliases  map[string]string
	bbox     BoundingBox
	logger   zerolog.Logger
	steps    []resolveStep
}

type resolveStep struct {
	source  Source
	attempt func(ctx context.Context, city, region string) (Coord, bool)
}

// NewResolver builds a Resolver around an optional provider. A nil provider
// (e.g. no API key configured) simply skips tiers 1-2.
func NewResolver(provider Provider, cfg ResolverConfig) *Resolver {
	r := &Resolver{
		provider: provider,
		cities:   cfg.Cities,
		aliases:  cfg.Aliases,
		bbox:     cfg.BBox,
		logger:   cfg.Logger,
	}
	if r.cities == nil {
		r.cities = DefaultCityTable()
	}
	if r.aliases == nil {
		r.aliases = DefaultAliases()
	}
	if r.bbox == (BoundingBox{}) {
		r.bbox = KazakhstanBBox()
	}
	r.cityKeys = make([]string, 0, len(r.cities))
	for k := range r.cities {
		r.cityKeys = append(r.cityKeys, k)
	}
	sort.Strings(r.cityKeys)

	r.steps = []resolveStep{
		{SourceProviderCity, r.providerCity},
		{SourceProviderRegion, r.providerRegion},
		{SourceTableExact, r.tableExact},
		{SourceTableFuzzy, r.tableFuzzy},
		{SourceTablePartial, r.tablePartial},
	}
	return r
}

// Resolve maps a client location to coordinates. Street and house are
// accepted for contract compatibility but intentionally unused: the ru_KZ
// provider locale disambiguates without exact addresses, and the offline
// tiers are city/region grained anyway.
func (r *Resolver) Resolve(ctx context.Context, country, region, city, street string) ResolvedLocation {
	_ = country
	_ = street

	city = r.Canonical(city)
	region = r.Canonical(region)

	for _, step := range r.steps {
		if coord, ok := step.attempt(ctx, city, region); ok {
			metrics.GeoResolutions.WithLabelValues(string(step.source)).Inc()
			return ResolvedLocation{Lat: coord.Lat, Lon: coord.Lon, Source: step.source, Resolved: true}
		}
	}
	metrics.GeoResolutions.WithLabelValues(string(SourceNone)).Inc()
	return Unresolved()
}

// Canonical maps a Latin-script alias to its native-script canonical name;
// unmapped names pass through unchanged.
func (r *Resolver) Canonical(name string) string {
	if mapped, ok := r.aliases[strings.ToLower(strings.TrimSpace(name))]; ok {
		return mapped
	}
	return strings.TrimSpace(name)
}

// TableLookup is the exact offline lookup, exposed so the routing layer can
// fetch coordinates for a known city without a provider call.
func (r *Resolver) TableLookup(name string) (Coord, bool) {
	coord, ok := r.cities[r.Canonical(name)]
	return coord, ok
}

func (r *Resolver) providerCity(ctx context.Context, city, region string) (Coord, bool) {
	if r.provider == nil || city == "" {
		return Coord{}, false
	}
	return r.queryProvider(ctx, BuildQuery(city, region, "Казахстан"))
}

func (r *Resolver) providerRegion(ctx context.Context, _, region string) (Coord, bool) {
	if r.provider == nil || region == "" {
		return Coord{}, false
	}
	return r.queryProvider(ctx, BuildQuery(region, "Казахстан"))
}

func (r *Resolver) queryProvider(ctx context.Context, query string) (Coord, bool) {
	lat, lon, err := r.provider.Geocode(ctx, query)
	if err != nil {
		// Provider timeouts and misses only fail this tier.
		if err != ErrNotFound {
			metrics.ProviderErrors.Inc()
			r.logger.Warn().Err(err).Str("query", query).Msg("geocode provider error")
		}
		return Coord{}, false
	}
	if !r.bbox.Contains(lat, lon) {
		r.logger.Debug().Str("query", query).Float64("lat", lat).Float64("lon", lon).
			Msg("provider result outside service bbox, skipping")
		return Coord{}, false
	}
	return Coord{Lat: lat, Lon: lon}, true
}

func (r *Resolver) tableExact(_ context.Context, _, region string) (Coord, bool) {
	if region == "" {
		return Coord{}, false
	}
	coord, ok := r.cities[region]
	return coord, ok
}

func (r *Resolver) tableFuzzy(_ context.Context, _, region string) (Coord, bool) {
	if region == "" {
		return Coord{}, false
	}
	key, ok := ClosestKey(region, r.cityKeys, FuzzyCutoff)
	if !ok {
		return Coord{}, false
	}
	r.logger.Debug().Str("input", region).Str("matched", key).Msg("fuzzy table match")
	return r.cities[key], true
}

func (r *Resolver) tablePartial(_ context.Context, _, region string) (Coord, bool) {
	if region == "" {
		return Coord{}, false
	}
	lower := strings.ToLower(region)
	for _, key := range r.cityKeys {
		keyLower := strings.ToLower(key)
		if strings.Contains(lower, keyLower) || strings.Contains(keyLower, lower) {
			return r.cities[key], true
		}
	}
	return Coord{}, false
}
