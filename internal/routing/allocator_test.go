package routing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/routedesk/backend/internal/models"
)

func TestBuildFingerprint(t *testing.T) {
	fp := BuildFingerprint("Астана", true, false, "KZ", true)
	assert.Equal(t, "Астана|vip=true|data=false|lang=KZ|senior=true", fp)

	// Any language outside KZ/ENG collapses to RU so a French and a Russian
	// ticket share one counter.
	assert.Equal(t,
		BuildFingerprint("Алматы", false, false, "RU", false),
		BuildFingerprint("Алматы", false, false, "FR", false),
	)
}

func TestAllocatePicksLeastLoaded(t *testing.T) {
	pool := []models.Manager{
		{ID: "m-1", CurrentLoad: 5},
		{ID: "m-2", CurrentLoad: 0},
	}
	loads := NewLoadTracker(pool)
	a := NewAllocator()

	chosen, idx := a.Allocate(pool, "fp", loads)

	assert.Equal(t, "m-2", chosen.ID)
	assert.Equal(t, 0, idx)
	assert.Equal(t, 1, loads.Load("m-2"))
	assert.Equal(t, 5, loads.Load("m-1"))
}

func TestAllocateCounterAlternates(t *testing.T) {
	pool := []models.Manager{
		{ID: "m-1"},
		{ID: "m-2"},
	}
	loads := NewLoadTracker(pool)
	a := NewAllocator()

	var idxs []int
	for i := 0; i < 4; i++ {
		_, idx := a.Allocate(pool, "fp", loads)
		idxs = append(idxs, idx)
	}
	assert.Equal(t, []int{0, 1, 0, 1}, idxs)
}

func TestAllocateEqualLoadPickSequence(t *testing.T) {
	pool := []models.Manager{
		{ID: "m-a"},
		{ID: "m-b"},
	}
	loads := NewLoadTracker(pool)
	a := NewAllocator()

	var picks []string
	for i := 0; i < 4; i++ {
		chosen, _ := a.Allocate(pool, "fp", loads)
		picks = append(picks, chosen.ID)
	}

	// Loads move with every pick, so after the first pick the winner sits
	// at index 1 of the re-sorted pool and the counter lands on it once
	// more before the rotation settles.
	assert.Equal(t, []string{"m-a", "m-a", "m-b", "m-a"}, picks)
	assert.Equal(t, 3, loads.Load("m-a"))
	assert.Equal(t, 1, loads.Load("m-b"))
}

func TestAllocateFairOverManyTickets(t *testing.T) {
	pool := []models.Manager{
		{ID: "m-1"},
		{ID: "m-2"},
	}
	loads := NewLoadTracker(pool)
	a := NewAllocator()

	for i := 0; i < 20; i++ {
		a.Allocate(pool, "fp", loads)
	}

	l1, l2 := loads.Load("m-1"), loads.Load("m-2")
	assert.Equal(t, 20, l1+l2, "every allocation increments exactly one load")
	diff := l1 - l2
	if diff < 0 {
		diff = -diff
	}
	assert.LessOrEqual(t, diff, 2, "loads stay balanced within the alternation window")
}

func TestAllocateDeterministicTieBreakByID(t *testing.T) {
	pool := []models.Manager{
		{ID: "m-9"},
		{ID: "m-1"},
		{ID: "m-5"},
	}
	loads := NewLoadTracker(pool)
	a := NewAllocator()

	chosen, _ := a.Allocate(pool, "fp", loads)
	assert.Equal(t, "m-1", chosen.ID)

	chosen, _ = a.Allocate(pool, "fp", loads)
	assert.Equal(t, "m-9", chosen.ID, "counter index 1 lands on the second slot of the re-sorted pool")
}

func TestAllocateSingleCandidateSkipsCounter(t *testing.T) {
	pool := []models.Manager{{ID: "m-1"}}
	loads := NewLoadTracker(pool)
	a := NewAllocator()

	for i := 0; i < 3; i++ {
		chosen, idx := a.Allocate(pool, "fp", loads)
		assert.Equal(t, "m-1", chosen.ID)
		assert.Equal(t, 0, idx)
	}
	assert.Equal(t, 3, loads.Load("m-1"))
}

func TestAllocateIndependentFingerprints(t *testing.T) {
	pool := []models.Manager{
		{ID: "m-1"},
		{ID: "m-2"},
	}
	a := NewAllocator()

	// Fresh trackers per fingerprint so only the counters are shared state.
	_, idxA := a.Allocate(pool, "fp-a", NewLoadTracker(pool))
	_, idxB := a.Allocate(pool, "fp-b", NewLoadTracker(pool))

	assert.Equal(t, 0, idxA)
	assert.Equal(t, 0, idxB, "a different fingerprint starts its own counter at zero")
}

func TestAllocateReset(t *testing.T) {
	pool := []models.Manager{
		{ID: "m-1"},
		{ID: "m-2"},
	}
	a := NewAllocator()

	_, idx := a.Allocate(pool, "fp", NewLoadTracker(pool))
	require.Equal(t, 0, idx)
	_, idx = a.Allocate(pool, "fp", NewLoadTracker(pool))
	require.Equal(t, 1, idx)

	a.Reset()

	_, idx = a.Allocate(pool, "fp", NewLoadTracker(pool))
	assert.Equal(t, 0, idx)
}

func TestAllocateEmptyPool(t *testing.T) {
	a := NewAllocator()
	chosen, idx := a.Allocate(nil, "fp", NewLoadTracker(nil))

	assert.Empty(t, chosen.ID)
	assert.Equal(t, 0, idx)
}

func TestLoadTrackerOfficeLoads(t *testing.T) {
	roster := []models.Manager{
		{ID: "m-1", Office: "Астана", CurrentLoad: 2},
		{ID: "m-2", Office: "Астана", CurrentLoad: 3},
		{ID: "m-3", Office: "Алматы", CurrentLoad: 1},
	}
	loads := NewLoadTracker(roster)

	got := loads.OfficeLoads(roster)
	assert.Equal(t, map[string]int{"Астана": 5, "Алматы": 1}, got)
}
