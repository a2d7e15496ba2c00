package similarity

import "github.com/user/crawlgraph/internal/entity"

// Matrix caches pairwise scores for one node set so a mitigation cycle pays
// the O(n²) cost once. It implements Scorer for nodes it was built from and
// falls back to the underlying scorer for any other pair.
type Matrix struct {
	scorer Scorer
	index  map[string]int
	// upper triangle, row-major, diagonal excluded
	values []float64
	n      int
}

// NewMatrix scores every unordered pair of nodes.
func NewMatrix(nodes []*entity.Node, scorer Scorer) *Matrix {
	if scorer == nil {
		scorer = Blend{}
	}
	m := &Matrix{
		scorer: scorer,
		index:  make(map[string]int, len(nodes)),
		n:      len(nodes),
	}
	if m.n > 1 {
		m.values = make([]float64, m.n*(m.n-1)/2)
	}
	for i, node := range nodes {
		m.index[node.ID] = i
	}
	for i := 0; i < m.n; i++ {
		for j := i + 1; j < m.n; j++ {
			m.values[m.offset(i, j)] = scorer.Similarity(nodes[i], nodes[j])
		}
	}
	return m
}

func (m *Matrix) offset(i, j int) int {
	// rows before i hold (n-1) + (n-2) + ... + (n-i) entries
	return i*(2*m.n-i-1)/2 + (j - i - 1)
}

// Similarity returns the cached score, 1 for a node against itself.
func (m *Matrix) Similarity(a, b *entity.Node) float64 {
	if a == nil || b == nil {
		return 0
	}
	i, okA := m.index[a.ID]
	j, okB := m.index[b.ID]
	if !okA || !okB {
		return m.scorer.Similarity(a, b)
	}
	if i == j {
		return 1
	}
	if i > j {
		i, j = j, i
	}
	return m.values[m.offset(i, j)]
}

// Len returns the number of nodes the matrix was built from.
func (m *Matrix) Len() int { return m.n }

// Distribution summarizes the pairwise scores.
type Distribution struct {
	Pairs          int     `json:"pairs"`
	Mean           float64 `json:"mean"`
	Max            float64 `json:"max"`
	AboveThreshold int     `json:"aboveThreshold"`
	AboveRatio     float64 `json:"aboveRatio"`
}

// Distribution counts pairs whose score is at least threshold.
func (m *Matrix) Distribution(threshold float64) Distribution {
	d := Distribution{Pairs: len(m.values)}
	if d.Pairs == 0 {
		return d
	}
	var sum float64
	for _, v := range m.values {
		sum += v
		if v > d.Max {
			d.Max = v
		}
		if v >= threshold {
			d.AboveThreshold++
		}
	}
	d.Mean = sum / float64(d.Pairs)
	d.AboveRatio = float64(d.AboveThreshold) / float64(d.Pairs)
	return d
}
