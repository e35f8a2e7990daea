package routing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/routedesk/backend/internal/geocode"
	"github.com/routedesk/backend/internal/models"
)

// Assignment statuses.
const (
	StatusAssigned   = "assigned"
	StatusUnassigned = "unassigned"
)

// ReasonFallbackExhausted marks a ticket no office could take, including
// both escalation hubs.
const ReasonFallbackExhausted = "FALLBACK_EXHAUSTED"

// ErrInconsistentState signals corrupted load counters (negative loads) in
// the pool the engine was about to allocate from. The run must not paper
// over it: callers surface the error instead of assigning.
var ErrInconsistentState = errors.New("inconsistent manager load state")

// Attempt records one office the engine tried before settling.
type Attempt struct {
	Office     string `json:"office"`
	Candidates int    `json:"candidates"`
	Eligible   int    `json:"eligible"`
	ReasonCode string `json:"reason_code,omitempty"`
}

// Result is the engine's terminal verdict for one ticket. Both statuses are
// successful outcomes of the pipeline; errors are reserved for broken
// inputs and corrupted state.
type Result struct {
	TicketID    string
	Status      string
	ManagerID   string
	Office      string
	ReasonCode  string
	ReasonText  string
	RRIndex     int
	Fingerprint string
	Location    geocode.ResolvedLocation
	Selection   Selection
	Attempts    []Attempt
}

// Engine runs the full per-ticket pipeline: geo resolution, office
// selection, eligibility filtering with hub escalation, fair allocation.
// One engine serves one processing run; the Allocator and its counters may
// outlive it.
type Engine struct {
	resolver  *geocode.Resolver
	locator   *Locator
	allocator *Allocator
	loads     *LoadTracker
	roster    []models.Manager
	byOffice  map[string][]models.Manager
	logger    zerolog.Logger

	mu       sync.Mutex
	results  map[string]Result
	inflight map[string]chan struct{}
}

// EngineConfig wires an Engine. Resolver, Locator, Allocator and Loads are
// all required.
type EngineConfig struct {
	Resolver  *geocode.Resolver
	Locator   *Locator
	Allocator *Allocator
	Loads     *LoadTracker
	Logger    zerolog.Logger
}

// NewEngine validates the roster against the office reference set. A
// manager pointing at an office no business unit declares is a data error,
// caught here rather than mid-run.
func NewEngine(managers []models.Manager, units []models.BusinessUnit, cfg EngineConfig) (*Engine, error) {
	known := make(map[string]struct{}, len(units))
	for _, u := range units {
		known[u.Name] = struct{}{}
	}
	byOffice := make(map[string][]models.Manager)
	for _, m := range managers {
		if _, ok := known[m.Office]; !ok {
			return nil, fmt.Errorf("manager %s references unknown office %q: %w", m.ID, m.Office, ErrInconsistentState)
		}
		byOffice[m.Office] = append(byOffice[m.Office], m)
	}
	return &Engine{
		resolver:  cfg.Resolver,
		locator:   cfg.Locator,
		allocator: cfg.Allocator,
		loads:     cfg.Loads,
		roster:    managers,
		byOffice:  byOffice,
		logger:    cfg.Logger,
		results:   map[string]Result{},
		inflight:  map[string]chan struct{}{},
	}, nil
}

// Loads exposes the engine's load tracker for persistence after a run.
func (e *Engine) Loads() *LoadTracker {
	return e.loads
}

// Process routes one ticket. Calling it again with the same ticket ID
// returns the first verdict unchanged: no counter moves, no load changes.
// Concurrent calls for one ticket collapse into a single execution.
func (e *Engine) Process(ctx context.Context, attrs TicketAttributes) (Result, error) {
	if attrs.TicketID == "" {
		return Result{}, errors.New("ticket without an ID")
	}
	if strings.EqualFold(strings.TrimSpace(attrs.Type), models.TypeSpam) {
		return Result{}, fmt.Errorf("ticket %s: spam must be filtered before routing", attrs.TicketID)
	}

	e.mu.Lock()
	if cached, ok := e.results[attrs.TicketID]; ok {
		e.mu.Unlock()
		return cached, nil
	}
	if ch, ok := e.inflight[attrs.TicketID]; ok {
		e.mu.Unlock()
		select {
		case <-ch:
		case <-ctx.Done():
			return Result{}, ctx.Err()
		}
		e.mu.Lock()
		cached, ok := e.results[attrs.TicketID]
		e.mu.Unlock()
		if ok {
			return cached, nil
		}
		return Result{}, fmt.Errorf("ticket %s: concurrent routing attempt failed", attrs.TicketID)
	}
	ch := make(chan struct{})
	e.inflight[attrs.TicketID] = ch
	e.mu.Unlock()

	res, err := e.route(ctx, attrs)

	e.mu.Lock()
	if err == nil {
		e.results[attrs.TicketID] = res
	}
	delete(e.inflight, attrs.TicketID)
	e.mu.Unlock()
	close(ch)

	return res, err
}

func (e *Engine) route(ctx context.Context, attrs TicketAttributes) (Result, error) {
	loc, sel := e.selectOffice(ctx, attrs)

	res := Result{
		TicketID:  attrs.TicketID,
		Location:  loc,
		Selection: sel,
	}

	for _, office := range e.escalationOrder(sel.Office) {
		candidates := e.byOffice[office]
		elig := FilterEligible(candidates, attrs)
		attempt := Attempt{
			Office:     office,
			Candidates: len(candidates),
			Eligible:   len(elig.Eligible),
			ReasonCode: elig.ReasonCode,
		}
		res.Attempts = append(res.Attempts, attempt)

		if len(elig.Eligible) == 0 {
			e.logger.Debug().Str("ticket_id", attrs.TicketID).Str("office", office).
				Str("reason", elig.ReasonCode).Msg("no eligible managers, escalating")
			continue
		}

		for _, m := range elig.Eligible {
			if e.loads.Load(m.ID) < 0 {
				return Result{}, fmt.Errorf("manager %s has negative load: %w", m.ID, ErrInconsistentState)
			}
		}

		fp := BuildFingerprint(office, attrs.IsVIP(), attrs.IsDataChange(), attrs.NormalizedLanguage(), attrs.NeedsSenior())
		chosen, idx := e.allocator.Allocate(elig.Eligible, fp, e.loads)

		res.Status = StatusAssigned
		res.ManagerID = chosen.ID
		res.Office = office
		res.RRIndex = idx
		res.Fingerprint = fp
		if office != sel.Office {
			res.ReasonCode = "ESCALATED_TO_" + escalationTag(office)
			res.ReasonText = fmt.Sprintf("No eligible managers in %s, escalated to %s", sel.Office, office)
		}
		return res, nil
	}

	last := res.Attempts[len(res.Attempts)-1]
	res.Status = StatusUnassigned
	res.Office = sel.Office
	res.ReasonCode = ReasonFallbackExhausted
	res.ReasonText = fmt.Sprintf("No eligible managers in %s or fallback offices (last: %s)", sel.Office, last.ReasonCode)
	return res, nil
}

// selectOffice runs geo resolution and facility selection.
//
// Foreign and blank countries skip geocoding entirely and draw an
// alternating hub. A city served by exactly one office skips the provider
// round-trip when the street field is empty; an exact street suggests the
// client typed a real address and distance ranking should decide.
func (e *Engine) selectOffice(ctx context.Context, attrs TicketAttributes) (geocode.ResolvedLocation, Selection) {
	country := strings.TrimSpace(attrs.Country)
	if country == "" || geocode.IsForeign(country) {
		return geocode.Unresolved(), e.locator.NextFallbackHub()
	}

	shortcutCity := ""
	if strings.TrimSpace(attrs.Street) == "" {
		shortcutCity = attrs.City
	}

	var loc geocode.ResolvedLocation
	if shortcutCity != "" {
		if _, ok := e.locator.SingleOfficeCity(shortcutCity); ok {
			// Table coords backfill the record; no provider call needed.
			if coord, found := e.resolver.TableLookup(shortcutCity); found {
				loc = geocode.ResolvedLocation{Lat: coord.Lat, Lon: coord.Lon, Source: geocode.SourceTableExact, Resolved: true}
			} else {
				loc = geocode.Unresolved()
			}
			return loc, e.locator.Locate(loc, shortcutCity, nil)
		}
	}

	loc = e.resolver.Resolve(ctx, attrs.Country, attrs.Region, attrs.City, attrs.Street)
	return loc, e.locator.Locate(loc, shortcutCity, e.loads.OfficeLoads(e.roster))
}

// escalationOrder yields the selected office followed by the fallback hubs
// that were not already tried.
func (e *Engine) escalationOrder(selected string) []string {
	order := []string{selected}
	for _, hub := range e.locator.FallbackHubs() {
		if hub != selected {
			order = append(order, hub)
		}
	}
	return order
}

// escalationTags maps office cities to the Latin reason-code suffix.
var escalationTags = map[string]string{
	"Астана":           "ASTANA",
	"Алматы":           "ALMATY",
	"Актау":            "AKTAU",
	"Актобе":           "AKTOBE",
	"Атырау":           "ATYRAU",
	"Караганда":        "KARAGANDA",
	"Кокшетау":         "KOKSHETAU",
	"Костанай":         "KOSTANAY",
	"Кызылорда":        "KYZYLORDA",
	"Павлодар":         "PAVLODAR",
	"Петропавловск":    "PETROPAVLOVSK",
	"Тараз":            "TARAZ",
	"Уральск":          "URALSK",
	"Усть-Каменогорск": "UST_KAMENOGORSK",
	"Шымкент":          "SHYMKENT",
}

// escalationTag keeps reason codes distinct per hub even when the fallback
// pool is configured to offices outside the known set.
func escalationTag(office string) string {
	if t, ok := escalationTags[office]; ok {
		return t
	}
	tag := strings.ToUpper(strings.TrimSpace(office))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(tag)
}
