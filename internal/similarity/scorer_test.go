package similarity

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/crawlgraph/internal/entity"
)

func node(id, url, title string, elements int, types map[string]int) *entity.Node {
	return &entity.Node{
		ID: id,
		Features: entity.FeatureVector{
			URL:          url,
			Title:        title,
			ElementCount: elements,
		},
		ElementTypes: types,
	}
}

func randomNode(r *rand.Rand, i int) *entity.Node {
	hosts := []string{"app.test", "admin.test", ""}
	paths := []string{"/", "/users", "/users/1", "/users/1/edit", "/settings", "/reports/monthly"}
	titles := []string{"", "Users", "User detail", "Edit user", "Settings", "Monthly report"}
	tags := []string{"div", "a", "button", "input", "img"}

	types := make(map[string]int)
	for _, tag := range tags {
		if r.Intn(2) == 0 {
			types[tag] = r.Intn(6)
		}
	}
	url := ""
	if h := hosts[r.Intn(len(hosts))]; h != "" {
		url = "https://" + h + paths[r.Intn(len(paths))]
	}
	return &entity.Node{
		ID: fmt.Sprintf("n%d", i),
		Features: entity.FeatureVector{
			URL:                     url,
			Title:                   titles[r.Intn(len(titles))],
			ElementCount:            r.Intn(30),
			InteractiveElementCount: r.Intn(10),
			FormElementCount:        r.Intn(4),
			MediaElementCount:       r.Intn(3),
			HasScreenshot:           r.Intn(2) == 0,
			IsStatsPage:             r.Intn(4) == 0,
		},
		ElementTypes: types,
	}
}

func TestSimilaritySymmetricAndBounded(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	nodes := make([]*entity.Node, 60)
	for i := range nodes {
		nodes[i] = randomNode(r, i)
	}

	var s Blend
	for _, a := range nodes {
		for _, b := range nodes {
			ab := s.Similarity(a, b)
			ba := s.Similarity(b, a)
			require.Equal(t, ab, ba, "%s vs %s", a.ID, b.ID)
			require.GreaterOrEqual(t, ab, 0.0)
			require.LessOrEqual(t, ab, 1.0)
		}
	}
}

func TestSimilaritySamePage(t *testing.T) {
	a := node("a", "https://app.test/orders", "Orders", 5, nil)
	b := node("b", "https://app.test/orders", "Orders", 5, nil)

	assert.GreaterOrEqual(t, Blend{}.Similarity(a, b), 0.95)
}

func TestSimilarityDifferentHosts(t *testing.T) {
	a := node("a", "https://app.test/orders", "Orders", 5, nil)
	b := node("b", "https://other.test/orders", "Orders", 5, nil)

	score, sameHost := URLSimilarity(a.Features.URL, b.Features.URL)
	assert.Zero(t, score)
	assert.False(t, sameHost)
	assert.Less(t, Blend{}.Similarity(a, b), 0.5)
}

func TestSimilarityNilNodes(t *testing.T) {
	a := node("a", "https://app.test/", "Home", 1, nil)
	assert.Zero(t, Blend{}.Similarity(a, nil))
	assert.Zero(t, Blend{}.Similarity(nil, a))
}

func TestURLSimilarity(t *testing.T) {
	cases := []struct {
		a, b string
		want float64
	}{
		{"https://app.test/", "https://app.test", 1},
		{"https://app.test/users/1", "https://app.test/users/2", 0.5},
		{"https://app.test/users", "https://app.test/users/1/edit", 1.0 / 3},
		{"https://app.test/a/b", "https://app.test/c/b", 0.5},
		{"", "https://app.test/", 0},
		{"not a url", "https://app.test/", 0},
	}
	for _, c := range cases {
		got, _ := URLSimilarity(c.a, c.b)
		assert.InDelta(t, c.want, got, 1e-9, "%s vs %s", c.a, c.b)
	}
}

func TestTitleSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, TitleSimilarity("User Settings", "settings USER"))
	assert.InDelta(t, 1.0/3, TitleSimilarity("Edit user", "View user"), 1e-9)
	assert.Zero(t, TitleSimilarity("", ""))
	assert.Zero(t, TitleSimilarity("Home", ""))
}

func TestNumericCloseness(t *testing.T) {
	assert.Equal(t, 1.0, NumericCloseness(0, 0))
	assert.Equal(t, 0.5, NumericCloseness(5, 10))
	assert.Equal(t, 0.0, NumericCloseness(0, 3))
	assert.Equal(t, 0.0, NumericCloseness(-1, 3))
}

func TestStructuralSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, StructuralSimilarity(nil, map[string]int{}))
	assert.Equal(t, 0.0, StructuralSimilarity(nil, map[string]int{"div": 1}))
	// min: div 2 + a 0 = 2; max: div 3 + a 1 + img 1 = 5
	got := StructuralSimilarity(map[string]int{"div": 3, "a": 1}, map[string]int{"div": 2, "img": 1})
	assert.InDelta(t, 0.4, got, 1e-9)
}

func TestFunctionalSimilarity(t *testing.T) {
	a := entity.FeatureVector{InteractiveElementCount: 3, FormElementCount: 1, MediaElementCount: 0}
	b := entity.FeatureVector{InteractiveElementCount: 3, FormElementCount: 2, MediaElementCount: 0, IsStatsPage: true}
	assert.Equal(t, 0.5, FunctionalSimilarity(a, b))
}

func TestMatrixMatchesScorer(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	nodes := make([]*entity.Node, 9)
	for i := range nodes {
		nodes[i] = randomNode(r, i)
	}

	m := NewMatrix(nodes, Blend{})
	assert.Equal(t, 9, m.Len())
	for _, a := range nodes {
		for _, b := range nodes {
			if a == b {
				assert.Equal(t, 1.0, m.Similarity(a, b))
				continue
			}
			assert.Equal(t, Blend{}.Similarity(a, b), m.Similarity(a, b))
		}
	}

	outsider := randomNode(r, 99)
	assert.Equal(t, Blend{}.Similarity(nodes[0], outsider), m.Similarity(nodes[0], outsider))
}

func TestMatrixDistribution(t *testing.T) {
	a := node("a", "https://app.test/x", "X", 5, nil)
	b := node("b", "https://app.test/x", "X", 5, nil)
	c := node("c", "https://other.test/x", "X", 5, nil)

	d := NewMatrix([]*entity.Node{a, b, c}, nil).Distribution(0.8)
	assert.Equal(t, 3, d.Pairs)
	assert.Equal(t, 1, d.AboveThreshold)
	assert.InDelta(t, 1.0/3, d.AboveRatio, 1e-9)
	assert.InDelta(t, 1.0, d.Max, 1e-9)

	empty := NewMatrix(nil, nil).Distribution(0.8)
	assert.Zero(t, empty.Pairs)
	assert.Zero(t, empty.Mean)
}
