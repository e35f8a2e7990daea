package routing

import (
	"fmt"
	"sort"
	"sync"

	"github.com/routedesk/backend/internal/models"
)

// BuildFingerprint keys the round-robin counter by the eligibility pool the
// ticket competes in, never by raw ticket fields. Two tickets funneling
// into the same pool of managers must share one counter so their
// alternation advances together; a per-ticket key would fragment the
// counter space and break fairness.
func BuildFingerprint(office string, isVIP, isDataChange bool, language string, needsSenior bool) string {
	if language != "KZ" && language != "ENG" {
		language = "RU"
	}
	return fmt.Sprintf("%s|vip=%t|data=%t|lang=%s|senior=%t", office, isVIP, isDataChange, language, needsSenior)
}

// LoadTracker owns the mutable current-load counters for a run. Each
// manager has its own lock so read-modify-write stays serialized per
// manager without serializing unrelated offices.
type LoadTracker struct {
	mu      sync.RWMutex
	entries map[string]*loadEntry
}

type loadEntry struct {
	mu   sync.Mutex
	load int
}

// NewLoadTracker seeds the tracker from the roster's persisted loads.
func NewLoadTracker(managers []models.Manager) *LoadTracker {
	t := &LoadTracker{entries: make(map[string]*loadEntry, len(managers))}
	for _, m := range managers {
		t.entries[m.ID] = &loadEntry{load: m.CurrentLoad}
	}
	return t
}

// Load returns the current load for a manager; unknown managers read as 0.
func (t *LoadTracker) Load(id string) int {
	t.mu.RLock()
	e, ok := t.entries[id]
	t.mu.RUnlock()
	if !ok {
		return 0
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.load
}

// Apply returns a copy of the pool with tracked loads filled in.
func (t *LoadTracker) Apply(pool []models.Manager) []models.Manager {
	out := make([]models.Manager, 0, len(pool))
	for _, m := range pool {
		m.CurrentLoad = t.Load(m.ID)
		out = append(out, m)
	}
	return out
}

// OfficeLoads sums tracked loads per office over the full roster.
func (t *LoadTracker) OfficeLoads(managers []models.Manager) map[string]int {
	out := map[string]int{}
	for _, m := range managers {
		out[m.Office] += t.Load(m.ID)
	}
	return out
}

func (t *LoadTracker) increment(id string) {
	t.mu.Lock()
	e, ok := t.entries[id]
	if !ok {
		e = &loadEntry{}
		t.entries[id] = e
	}
	t.mu.Unlock()

	e.mu.Lock()
	e.load++
	e.mu.Unlock()
}

// Allocator picks exactly one manager from an eligible pool using a
// least-loaded-then-alternate policy. Counters are keyed by eligibility
// fingerprint and live for the life of the Allocator; Reset clears them.
type Allocator struct {
	mu       sync.Mutex
	counters map[string]*counter
}

type counter struct {
	mu sync.Mutex
	n  int
}

func NewAllocator() *Allocator {
	return &Allocator{counters: map[string]*counter{}}
}

// Reset clears all alternation counters. Tracked loads are untouched;
// they belong to the run, not the allocator.
func (a *Allocator) Reset() {
	a.mu.Lock()
	a.counters = map[string]*counter{}
	a.mu.Unlock()
}

// Allocate picks one manager from the eligible pool and increments both the
// fingerprint counter and the winner's load as a single atomic step: the
// fingerprint's lock is held for the whole observe-pick-increment sequence
// so no two tickets of the same pool act on the same pre-increment load.
//
// The pool is sorted by tracked load ascending, ties broken by manager ID
// for determinism. The two lowest-load candidates alternate via the
// counter; a single candidate is picked directly without touching it.
// Returns the chosen manager and the alternation index used.
func (a *Allocator) Allocate(eligible []models.Manager, fingerprint string, loads *LoadTracker) (models.Manager, int) {
	if len(eligible) == 0 {
		return models.Manager{}, 0
	}

	c := a.counter(fingerprint)
	c.mu.Lock()
	defer c.mu.Unlock()

	pool := loads.Apply(eligible)
	sort.SliceStable(pool, func(i, j int) bool {
		if pool[i].CurrentLoad == pool[j].CurrentLoad {
			return pool[i].ID < pool[j].ID
		}
		return pool[i].CurrentLoad < pool[j].CurrentLoad
	})

	if len(pool) == 1 {
		loads.increment(pool[0].ID)
		return pool[0], 0
	}

	idx := c.n % 2
	c.n++
	chosen := pool[idx]
	loads.increment(chosen.ID)
	return chosen, idx
}

func (a *Allocator) counter(fingerprint string) *counter {
	a.mu.Lock()
	defer a.mu.Unlock()
	c, ok := a.counters[fingerprint]
	if !ok {
		c = &counter{}
		a.counters[fingerprint] = c
	}
	return c
}
