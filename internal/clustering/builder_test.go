package clustering

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/crawlgraph/internal/entity"
	"github.com/user/crawlgraph/internal/similarity"
)

func page(id, url, title string, elements int) *entity.Node {
	return &entity.Node{
		ID: id,
		Features: entity.FeatureVector{
			URL:          url,
			Title:        title,
			ElementCount: elements,
		},
	}
}

// fixedScorer returns scores from a table keyed by "a|b" in either order.
type fixedScorer map[string]float64

func (f fixedScorer) Similarity(a, b *entity.Node) float64 {
	if v, ok := f[a.ID+"|"+b.ID]; ok {
		return v
	}
	return f[b.ID+"|"+a.ID]
}

func TestClusterEmpty(t *testing.T) {
	clusters := NewBuilder(nil).Cluster(nil, 0.7)
	assert.NotNil(t, clusters)
	assert.Empty(t, clusters)
}

func TestClusterSamePageJoins(t *testing.T) {
	a := page("n_a", "https://app.test/orders", "Orders", 5)
	b := page("n_b", "https://app.test/orders", "Orders", 5)

	clusters := NewBuilder(similarity.Blend{}).Cluster([]*entity.Node{a, b}, 0.7)
	require.Len(t, clusters, 1)
	assert.Equal(t, []string{"n_a", "n_b"}, clusters[0].MemberIDs)
	assert.Equal(t, "c_a", clusters[0].ID)
}

func TestClusterCrossHostStaysApart(t *testing.T) {
	a := page("n_a", "https://app.test/orders", "Orders", 5)
	b := page("n_b", "https://other.test/orders", "Orders", 5)

	clusters := NewBuilder(similarity.Blend{}).Cluster([]*entity.Node{a, b}, 0.7)
	assert.Len(t, clusters, 2)
}

func TestClusterIsSeedBased(t *testing.T) {
	// b is close to both a and c, but a and c are far apart. b joins a's
	// cluster; c is not pulled in transitively.
	s := fixedScorer{"a|b": 0.9, "b|c": 0.9, "a|c": 0.1}
	a, b, c := page("a", "", "", 0), page("b", "", "", 0), page("c", "", "", 0)

	clusters := NewBuilder(s).Cluster([]*entity.Node{a, b, c}, 0.7)
	require.Len(t, clusters, 2)
	assert.Equal(t, []string{"a", "b"}, clusters[0].MemberIDs)
	assert.Equal(t, []string{"c"}, clusters[1].MemberIDs)
	assert.InDelta(t, 0.9, clusters[0].MeanPairwiseSimilarity, 1e-9)
	assert.Equal(t, 1.0, clusters[1].MeanPairwiseSimilarity)

	// Seed order changes membership.
	clusters = NewBuilder(s).Cluster([]*entity.Node{b, a, c}, 0.7)
	require.Len(t, clusters, 1)
	assert.Equal(t, []string{"b", "a", "c"}, clusters[0].MemberIDs)
}

func TestClusterThresholdIsStrict(t *testing.T) {
	s := fixedScorer{"a|b": 0.7}
	clusters := NewBuilder(s).Cluster([]*entity.Node{page("a", "", "", 0), page("b", "", "", 0)}, 0.7)
	assert.Len(t, clusters, 2)
}

func TestClusterIdempotentAndValid(t *testing.T) {
	var nodes []*entity.Node
	for i := 0; i < 20; i++ {
		path := fmt.Sprintf("/items/%d", i%4)
		nodes = append(nodes, page(fmt.Sprintf("n_%02d", i), "https://app.test"+path, fmt.Sprintf("Item %d", i%4), 10+i%3))
	}

	b := NewBuilder(similarity.NewMatrix(nodes, similarity.Blend{}))
	first := b.Cluster(nodes, 0.7)
	second := b.Cluster(nodes, 0.7)
	assert.Equal(t, first, second)

	seen := make(map[string]bool)
	for _, c := range first {
		require.NotEmpty(t, c.MemberIDs)
		assert.True(t, c.HasMember(c.RepresentativeID), c.ID)
		for _, id := range c.MemberIDs {
			assert.False(t, seen[id], "node %s in two clusters", id)
			seen[id] = true
		}
	}
	assert.Len(t, seen, len(nodes))
}

func TestRebuild(t *testing.T) {
	b := NewBuilder(nil)
	_, ok := b.Rebuild("c_x", nil)
	assert.False(t, ok)

	c, ok := b.Rebuild("c_x", []*entity.Node{page("n_1", "https://app.test/", "Home", 3)})
	require.True(t, ok)
	assert.Equal(t, "c_x", c.ID)
	assert.Equal(t, "n_1", c.RepresentativeID)
}
