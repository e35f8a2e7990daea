package geocode

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	lat, lon float64
	err      error
	queries  []string
}

func (f *fakeProvider) Geocode(_ context.Context, query string) (float64, float64, error) {
	f.queries = append(f.queries, query)
	if f.err != nil {
		return 0, 0, f.err
	}
	return f.lat, f.lon, nil
}

func newTestResolver(p Provider) *Resolver {
	return NewResolver(p, ResolverConfig{Logger: zerolog.Nop()})
}

func TestResolveProviderCityTier(t *testing.T) {
	p := &fakeProvider{lat: 43.25, lon: 76.9}
	r := newTestResolver(p)

	loc := r.Resolve(context.Background(), "Казахстан", "Алматинская", "Алматы", "")
	require.True(t, loc.Resolved)
	assert.Equal(t, SourceProviderCity, loc.Source)
	assert.Equal(t, 43.25, loc.Lat)
	require.Len(t, p.queries, 1)
	assert.Equal(t, "Алматы, Алматинская, Казахстан", p.queries[0])
}

func TestResolveAliasAppliedBeforeProvider(t *testing.T) {
	p := &fakeProvider{lat: 43.64, lon: 51.17}
	r := newTestResolver(p)

	loc := r.Resolve(context.Background(), "Kazakhstan", "mangystau", "aktau", "")
	require.True(t, loc.Resolved)
	require.Len(t, p.queries, 1)
	assert.Equal(t, "Актау, Мангистауская, Казахстан", p.queries[0])
}

func TestResolveRejectsOutOfBBoxAndFallsBack(t *testing.T) {
	// Provider confidently returns Moscow; both provider tiers must be
	// rejected and the offline table must win.
	p := &fakeProvider{lat: 55.75, lon: 37.61}
	r := newTestResolver(p)

	loc := r.Resolve(context.Background(), "Казахстан", "Атырауская", "Атырау", "")
	require.True(t, loc.Resolved)
	assert.Equal(t, SourceTableExact, loc.Source)
	assert.InDelta(t, 47.0945, loc.Lat, 0.0001)
	assert.Len(t, p.queries, 2)
}

func TestResolveProviderErrorFallsThrough(t *testing.T) {
	p := &fakeProvider{err: errors.New("timeout")}
	r := newTestResolver(p)

	loc := r.Resolve(context.Background(), "Казахстан", "Павлодарская", "", "")
	require.True(t, loc.Resolved)
	assert.Equal(t, SourceTableExact, loc.Source)
}

func TestResolveFuzzyTier(t *testing.T) {
	r := newTestResolver(nil)

	// One substitution away from "Алматы".
	loc := r.Resolve(context.Background(), "Казахстан", "Алмата", "", "")
	require.True(t, loc.Resolved)
	assert.Equal(t, SourceTableFuzzy, loc.Source)
	assert.InDelta(t, 43.2220, loc.Lat, 0.0001)
}

func TestResolvePartialTier(t *testing.T) {
	r := newTestResolver(nil)

	loc := r.Resolve(context.Background(), "Казахстан", "город Астана, левый берег", "", "")
	require.True(t, loc.Resolved)
	assert.Equal(t, SourceTablePartial, loc.Source)
	assert.InDelta(t, 51.1694, loc.Lat, 0.0001)
}

func TestResolveUnresolvedWhenAllTiersFail(t *testing.T) {
	r := newTestResolver(nil)

	loc := r.Resolve(context.Background(), "", "Munich", "", "")
	assert.False(t, loc.Resolved)
	assert.Equal(t, SourceNone, loc.Source)
}

func TestResolveEmptyInput(t *testing.T) {
	p := &fakeProvider{lat: 51, lon: 71}
	r := newTestResolver(p)

	loc := r.Resolve(context.Background(), "", "", "", "")
	assert.False(t, loc.Resolved)
	assert.Empty(t, p.queries)
}

func TestIsForeign(t *testing.T) {
	cases := map[string]bool{
		"":           false,
		"Казахстан":  false,
		"Kazakhstan": false,
		"kz":         false,
		"Қазақстан":  false,
		"Russia":     true,
		"UAE":        true,
	}
	for country, want := range cases {
		assert.Equal(t, want, IsForeign(country), "country %q", country)
	}
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("Астана", "астана"))
	assert.Greater(t, Similarity("Алмата", "Алматы"), 0.75)
	assert.Less(t, Similarity("Лондон", "Астана"), 0.5)
}

func TestClosestKeyDeterministicTies(t *testing.T) {
	keys := []string{"bbb", "abb"}
	got, ok := ClosestKey("abb", keys, 0.75)
	require.True(t, ok)
	assert.Equal(t, "abb", got)
}
