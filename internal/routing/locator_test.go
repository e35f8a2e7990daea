package routing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/routedesk/backend/internal/geocode"
	"github.com/routedesk/backend/internal/models"
)

func locatorUnits() []models.BusinessUnit {
	return []models.BusinessUnit{
		{ID: "bu-1", Name: "Астана", City: "Астана", Lat: 51.1295, Lon: 71.4431},
		{ID: "bu-2", Name: "Алматы", City: "Алматы", Lat: 43.2183, Lon: 76.8932},
		{ID: "bu-3", Name: "Павлодар", City: "Павлодар", Lat: 52.2856, Lon: 76.9412},
	}
}

func resolvedAt(lat, lon float64) geocode.ResolvedLocation {
	return geocode.ResolvedLocation{Lat: lat, Lon: lon, Source: geocode.SourceTableExact, Resolved: true}
}

func TestLocateNearestByDistance(t *testing.T) {
	l := NewLocator(locatorUnits(), LocatorConfig{})

	sel := l.Locate(resolvedAt(51.1295, 71.4431), "", nil)

	assert.Equal(t, "Астана", sel.Office)
	assert.Equal(t, RuleNearest, sel.Rule)
	require.Len(t, sel.Ranked, 3)
	assert.Equal(t, "Астана", sel.Ranked[0].Office)
	assert.Less(t, sel.Ranked[0].DistanceKm, sel.Ranked[1].DistanceKm)
}

func TestLocateSingleOfficeCityOverridesDistance(t *testing.T) {
	l := NewLocator(locatorUnits(), LocatorConfig{})

	// Client coordinates sit on top of Астана but the city field names
	// Павлодар; the shortcut wins over geometry.
	sel := l.Locate(resolvedAt(51.1295, 71.4431), "Павлодар", nil)

	assert.Equal(t, "Павлодар", sel.Office)
	assert.Equal(t, RuleShortcut, sel.Rule)
}

func TestLocateSingleOfficeCityFuzzy(t *testing.T) {
	l := NewLocator(locatorUnits(), LocatorConfig{})

	office, ok := l.SingleOfficeCity("Павлодр")
	require.True(t, ok)
	assert.Equal(t, "Павлодар", office)
}

func TestLocateSingleOfficeCityLatinAlias(t *testing.T) {
	l := NewLocator(locatorUnits(), LocatorConfig{})

	office, ok := l.SingleOfficeCity("pavlodar")
	require.True(t, ok)
	assert.Equal(t, "Павлодар", office)
}

func TestLocateAmbiguousCityFallsBackToRanking(t *testing.T) {
	units := append(locatorUnits(), models.BusinessUnit{
		ID: "bu-4", Name: "Астана-Есиль", City: "Астана", Lat: 51.1605, Lon: 71.4704,
	})
	l := NewLocator(units, LocatorConfig{})

	_, ok := l.SingleOfficeCity("Астана")
	assert.False(t, ok)

	sel := l.Locate(resolvedAt(52.2856, 76.9412), "Астана", nil)
	assert.Equal(t, "Павлодар", sel.Office)
	assert.Equal(t, RuleNearest, sel.Rule)
}

func TestLocateEquidistantLoadTieBreak(t *testing.T) {
	units := []models.BusinessUnit{
		{ID: "bu-1", Name: "Караганда", City: "Караганда", Lat: 49.8156, Lon: 73.0833},
		{ID: "bu-2", Name: "Темиртау", City: "Темиртау", Lat: 50.0597, Lon: 72.9594},
		{ID: "bu-3", Name: "Алматы", City: "Алматы", Lat: 43.2183, Lon: 76.8932},
	}
	l := NewLocator(units, LocatorConfig{})
	loc := resolvedAt(49.8156, 73.0833) // exactly at Караганда, Темиртау ~29 km away

	sel := l.Locate(loc, "", map[string]int{"Караганда": 10, "Темиртау": 2})
	assert.Equal(t, "Темиртау", sel.Office)
	assert.Equal(t, RuleLoadTie, sel.Rule)

	sel = l.Locate(loc, "", map[string]int{"Караганда": 3, "Темиртау": 3})
	assert.Equal(t, "Караганда", sel.Office, "equal loads keep the nearest office")
	assert.Equal(t, RuleLoadTie, sel.Rule)
}

func TestLocateFarSecondOfficeSkipsTieBreak(t *testing.T) {
	l := NewLocator(locatorUnits(), LocatorConfig{})

	// Астана to Караганда-area client: second-ranked office is hundreds of
	// kilometers further, loads must not matter.
	sel := l.Locate(resolvedAt(51.1295, 71.4431), "", map[string]int{"Астана": 100, "Павлодар": 0})
	assert.Equal(t, "Астана", sel.Office)
	assert.Equal(t, RuleNearest, sel.Rule)
}

func TestNextFallbackHubAlternates(t *testing.T) {
	l := NewLocator(locatorUnits(), LocatorConfig{})

	var got []string
	for i := 0; i < 4; i++ {
		sel := l.Locate(geocode.Unresolved(), "", nil)
		assert.Equal(t, RuleFallbackHub, sel.Rule)
		got = append(got, sel.Office)
	}
	assert.Equal(t, []string{"Астана", "Алматы", "Астана", "Алматы"}, got)
}
