package clustering

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/user/crawlgraph/internal/entity"
)

func TestCentrality(t *testing.T) {
	n := &entity.Node{Features: entity.FeatureVector{
		URL:                     "https://app.test/admin/dashboard",
		Title:                   "Admin",
		ElementCount:            50,
		InteractiveElementCount: 5,
		HasScreenshot:           true,
		IsStatsPage:             true,
	}}
	// keyword 2 (once) + title 1 + elements 2 (capped) + interactive 1 + screenshot 1 + stats 2
	assert.InDelta(t, 9.0, Centrality(n), 1e-9)

	home := &entity.Node{Features: entity.FeatureVector{URL: "https://app.test/index.html"}}
	assert.Equal(t, 1.0, Centrality(home))

	assert.Zero(t, Centrality(nil))
}

func TestSelectRepresentative(t *testing.T) {
	assert.Nil(t, SelectRepresentative(nil))

	lone := page("n_1", "", "", 0)
	assert.Same(t, lone, SelectRepresentative([]*entity.Node{lone}))

	a := page("n_a", "https://app.test/items/1", "Item", 10)
	b := page("n_b", "https://app.test/dashboard", "Dashboard", 10)
	c := page("n_c", "https://app.test/items/2", "Item", 10)
	assert.Equal(t, "n_b", SelectRepresentative([]*entity.Node{a, b, c}).ID)

	// equal scores keep the first member
	assert.Equal(t, "n_a", SelectRepresentative([]*entity.Node{a, c}).ID)
}

func TestTopK(t *testing.T) {
	a := page("n_a", "https://app.test/items/1", "", 10)
	b := page("n_b", "https://app.test/items/2", "", 30)
	c := page("n_c", "https://app.test/items/3", "", 10)
	d := page("n_d", "https://app.test/items/4", "", 20)

	top := TopK([]*entity.Node{a, b, c, d}, 3)
	ids := make([]string, len(top))
	for i, n := range top {
		ids[i] = n.ID
	}
	assert.Equal(t, []string{"n_b", "n_d", "n_a"}, ids)
	assert.Len(t, TopK([]*entity.Node{a}, 5), 1)
	assert.Nil(t, TopK([]*entity.Node{a}, 0))
}
