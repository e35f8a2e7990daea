package routing

import (
	"sort"
	"strings"
	"sync"

	"github.com/routedesk/backend/internal/geocode"
	"github.com/routedesk/backend/internal/models"
	"github.com/routedesk/backend/internal/utils"
)

// Selection rules, recorded for reasoning output.
const (
	RuleShortcut    = "single_office_city"
	RuleNearest     = "nearest_by_distance"
	RuleLoadTie     = "equidistant_load_tiebreak"
	RuleFallbackHub = "fallback_hub_50_50"
)

// DefaultEquidistantKm is the radius within which the two nearest offices
// count as equidistant and the load tie-break applies.
const DefaultEquidistantKm = 50.0

type OfficeDistance struct {
	Office     string  `json:"office"`
	DistanceKm float64 `json:"distance_km"`
}

// Selection is the locator's verdict for one ticket.
type Selection struct {
	Office string
	Rule   string
	Ranked []OfficeDistance
}

// LocatorConfig tunes a Locator. Zero values fall back to defaults.
type LocatorConfig struct {
	EquidistantKm float64
	FallbackHubs  [2]string
	Aliases       map[string]string
}

// Locator picks a target office for resolved coordinates or a known city.
// The fallback pool for unresolved clients alternates between the two
// configured hubs; alternation state persists across calls.
type Locator struct {
	units         []models.BusinessUnit
	officesByCity map[string][]string
	cityNames     []string
	aliases       map[string]string
	equidistantKm float64
	hubs          [2]string

	mu         sync.Mutex
	hubCounter int
}

func NewLocator(units []models.BusinessUnit, cfg LocatorConfig) *Locator {
	l := &Locator{
		units:         units,
		officesByCity: map[string][]string{},
		aliases:       cfg.Aliases,
		equidistantKm: cfg.EquidistantKm,
		hubs:          cfg.FallbackHubs,
	}
	if l.aliases == nil {
		l.aliases = geocode.DefaultAliases()
	}
	if l.equidistantKm <= 0 {
		l.equidistantKm = DefaultEquidistantKm
	}
	if l.hubs[0] == "" {
		l.hubs = [2]string{"Астана", "Алматы"}
	}
	for _, u := range units {
		city := u.City
		if city == "" {
			city = u.Name
		}
		key := normalizeCityKey(city)
		l.officesByCity[key] = append(l.officesByCity[key], u.Name)
	}
	l.cityNames = make([]string, 0, len(l.officesByCity))
	for name := range l.officesByCity {
		l.cityNames = append(l.cityNames, name)
	}
	sort.Strings(l.cityNames)
	return l
}

// Locate ranks candidate offices for a ticket.
//
// A city mapping to exactly one office short-circuits distance ranking
// entirely: the mapped office wins even when another office is
// geometrically closer. Unresolved locations bypass ranking and draw from
// the alternating hub pool. officeLoads supplies the aggregate roster load
// per office for the equidistant tie-break.
func (l *Locator) Locate(loc geocode.ResolvedLocation, city string, officeLoads map[string]int) Selection {
	if city != "" {
		if office, ok := l.SingleOfficeCity(city); ok {
			return Selection{
				Office: office,
				Rule:   RuleShortcut,
				Ranked: []OfficeDistance{{Office: office}},
			}
		}
	}

	if !loc.Resolved {
		return l.NextFallbackHub()
	}

	ranked := l.rank(loc.Lat, loc.Lon)
	if len(ranked) == 0 {
		return l.NextFallbackHub()
	}

	office := ranked[0].Office
	rule := RuleNearest
	if len(ranked) >= 2 && ranked[1].DistanceKm-ranked[0].DistanceKm <= l.equidistantKm {
		rule = RuleLoadTie
		if officeLoads[ranked[1].Office] < officeLoads[ranked[0].Office] {
			office = ranked[1].Office
		}
	}
	return Selection{Office: office, Rule: rule, Ranked: ranked}
}

// SingleOfficeCity maps a city name to its office when exactly one office
// serves that city; direct match first, then a typo-tolerant fuzzy match.
func (l *Locator) SingleOfficeCity(city string) (string, bool) {
	city = strings.TrimSpace(city)
	if city == "" {
		return "", false
	}
	if mapped, ok := l.aliases[strings.ToLower(city)]; ok {
		city = mapped
	}
	key := normalizeCityKey(city)
	if offices, ok := l.officesByCity[key]; ok {
		if len(offices) == 1 {
			return offices[0], true
		}
		return "", false // ambiguous city, rank by distance instead
	}
	matched, ok := geocode.ClosestKey(key, l.cityNames, geocode.FuzzyCutoff)
	if !ok {
		return "", false
	}
	if offices := l.officesByCity[matched]; len(offices) == 1 {
		return offices[0], true
	}
	return "", false
}

// NextFallbackHub alternates 50/50 between the two designated hubs.
func (l *Locator) NextFallbackHub() Selection {
	l.mu.Lock()
	idx := l.hubCounter % 2
	l.hubCounter++
	l.mu.Unlock()

	return Selection{
		Office: l.hubs[idx],
		Rule:   RuleFallbackHub,
		Ranked: []OfficeDistance{{Office: l.hubs[idx]}, {Office: l.hubs[1-idx]}},
	}
}

// FallbackHubs returns the escalation order for empty eligible pools.
func (l *Locator) FallbackHubs() [2]string {
	return l.hubs
}

// UnitCount reports how many business units the locator was built from.
func (l *Locator) UnitCount() int {
	return len(l.units)
}

func (l *Locator) rank(lat, lon float64) []OfficeDistance {
	out := make([]OfficeDistance, 0, len(l.units))
	for _, u := range l.units {
		out = append(out, OfficeDistance{
			Office:     u.Name,
			DistanceKm: utils.HaversineKm(lat, lon, u.Lat, u.Lon),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DistanceKm == out[j].DistanceKm {
			return out[i].Office < out[j].Office
		}
		return out[i].DistanceKm < out[j].DistanceKm
	})
	return out
}

func normalizeCityKey(city string) string {
	return strings.ToLower(strings.TrimSpace(city))
}
