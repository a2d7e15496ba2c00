package coverage

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/crawlgraph/internal/entity"
	"github.com/user/crawlgraph/internal/snapshot"
)

func observe(t *testing.T, a *Analyzer, fp string, s entity.Snapshot) {
	t.Helper()
	n, err := snapshot.Normalize(s)
	require.NoError(t, err)
	a.ObserveSnapshot(fp, n)
}

func listPage() entity.Snapshot {
	return entity.Snapshot{
		URL:   "https://app.test/users",
		Title: "Users",
		Elements: []entity.Element{
			{Tag: "a", Selector: "#u1", Href: "/users/1", Text: "Alice"},
			{Tag: "a", Selector: "#u2", Href: "/users/2", Text: "Bob"},
			{Tag: "input", Type: "search", Selector: "#q"},
			{Tag: "table", Selector: "#grid"},
		},
	}
}

func assertBounded(t *testing.T, cats map[entity.CoverageCategory]entity.CategoryCoverage) {
	t.Helper()
	require.Len(t, cats, len(entity.CoverageCategories))
	for name, c := range cats {
		assert.LessOrEqual(t, c.Covered, c.Total, name)
		assert.GreaterOrEqual(t, c.Percentage, 0.0, name)
		assert.LessOrEqual(t, c.Percentage, 100.0, name)
	}
}

func TestEmptyStatistics(t *testing.T) {
	stats := NewAnalyzer().Statistics()

	require.Len(t, stats.Categories, len(entity.CoverageCategories))
	for name, c := range stats.Categories {
		assert.Zero(t, c.Total, name)
		assert.Zero(t, c.Covered, name)
		assert.Zero(t, c.Percentage, name)
	}
	assert.Zero(t, stats.Overall)
	assert.Empty(t, stats.History)
}

func TestObserveSnapshotAndTransition(t *testing.T) {
	a := NewAnalyzer()
	observe(t, a, "fp-list", listPage())

	cats := a.Categories()
	assertBounded(t, cats)
	assert.Equal(t, 4, cats[entity.CoverageElements].Total)
	assert.Equal(t, 1, cats[entity.CoverageStates].Total)
	assert.Zero(t, cats[entity.CoverageStates].Covered)
	assert.Equal(t, len(InteractionTypes), cats[entity.CoverageInteractions].Total)
	assert.Equal(t, 2, cats[entity.CoveragePaths].Total)
	assert.Zero(t, cats[entity.CoverageFeatures].Covered)

	a.ObserveTransition("fp-list", "https://app.test/users", "https://app.test/users/1",
		entity.Action{Type: "click", Selector: "#u1"})

	cats = a.Categories()
	assertBounded(t, cats)
	assert.Equal(t, 1, cats[entity.CoverageElements].Covered)
	assert.Equal(t, 1, cats[entity.CoverageStates].Covered)
	assert.Equal(t, 1, cats[entity.CoverageInteractions].Covered)
	assert.Equal(t, 2, cats[entity.CoveragePaths].Total)
	assert.Equal(t, 1, cats[entity.CoveragePaths].Covered)
	assert.Equal(t, 50.0, cats[entity.CoveragePaths].Percentage)
	assert.Equal(t, cats[entity.CoverageFeatures].Total, cats[entity.CoverageFeatures].Covered)
}

func TestTransitionOnUnknownElementGrowsTotal(t *testing.T) {
	a := NewAnalyzer()
	observe(t, a, "fp", listPage())

	a.ObserveTransition("fp", "", "", entity.Action{Type: "hover", Selector: "#menu"})
	a.ObserveTransition("fp", "", "", entity.Action{Type: "click", Text: "bob"})

	cats := a.Categories()
	assertBounded(t, cats)
	assert.Equal(t, 5, cats[entity.CoverageElements].Total)
	assert.Equal(t, 2, cats[entity.CoverageElements].Covered)
	assert.Equal(t, 2, cats[entity.CoverageInteractions].Covered)
}

func TestStatesKeyedByFingerprint(t *testing.T) {
	a := NewAnalyzer()
	observe(t, a, "fp", listPage())
	observe(t, a, "fp", listPage())

	assert.Equal(t, 1, a.Categories()[entity.CoverageStates].Total)
}

func TestInteractionType(t *testing.T) {
	for raw, want := range map[string]string{
		"CLICK":     InteractionClick,
		"mouseover": InteractionHover,
		"blur":      InteractionFocus,
		"keydown":   InteractionKeyboard,
		"swipe":     InteractionTouch,
		"drop":      InteractionDrag,
	} {
		got, ok := InteractionType(raw)
		assert.True(t, ok, raw)
		assert.Equal(t, want, got, raw)
	}
	_, ok := InteractionType("scroll")
	assert.False(t, ok)
}

func TestRecordCycleMarginalGain(t *testing.T) {
	a := NewAnalyzer()
	t0 := time.Unix(1000, 0)

	first := a.RecordCycle(t0)
	assert.Zero(t, first.Overall)
	assert.Zero(t, first.OverallGain)

	observe(t, a, "fp", listPage())
	a.ObserveTransition("fp", "https://app.test/users", "https://app.test/users/2", entity.Action{Type: "click", Selector: "#u2"})

	second := a.RecordCycle(t0.Add(time.Minute))
	assert.Greater(t, second.Overall, 0.0)
	assert.InDelta(t, second.Overall, second.OverallGain, 1e-9)
	assert.Equal(t, 100.0, second.MarginalGain[entity.CoverageStates])

	third := a.RecordCycle(t0.Add(2 * time.Minute))
	assert.Zero(t, third.OverallGain)
	for _, g := range third.MarginalGain {
		assert.Zero(t, g)
	}

	stats := a.Statistics()
	assert.Len(t, stats.History, 3)
	assert.Equal(t, third.MarginalGain, stats.MarginalGain)
}

func TestShouldContinue(t *testing.T) {
	a := NewAnalyzer()
	assert.True(t, a.ShouldContinue(1, 2))

	observe(t, a, "fp", listPage())
	a.ObserveTransition("fp", "", "", entity.Action{Type: "click", Selector: "#u1"})
	a.RecordCycle(time.Now()) // gain > 0
	a.RecordCycle(time.Now()) // gain 0
	assert.True(t, a.ShouldContinue(1, 2))

	a.RecordCycle(time.Now()) // gain 0
	assert.False(t, a.ShouldContinue(1, 2))
	assert.True(t, a.ShouldContinue(1, 0))
}

func TestReset(t *testing.T) {
	a := NewAnalyzer()
	observe(t, a, "fp", listPage())
	a.RecordCycle(time.Now())

	a.Reset()
	stats := a.Statistics()
	assert.Zero(t, stats.Categories[entity.CoverageStates].Total)
	assert.Empty(t, stats.History)
}

func TestConcurrentObservations(t *testing.T) {
	a := NewAnalyzer()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, _ := snapshot.Normalize(listPage())
			for j := 0; j < 50; j++ {
				a.ObserveSnapshot("fp", n)
				a.ObserveTransition("fp", "https://app.test/users", "https://app.test/users/1", entity.Action{Type: "click", Selector: "#u1"})
				_ = a.Statistics()
			}
		}()
	}
	wg.Wait()
	assertBounded(t, a.Categories())
}
