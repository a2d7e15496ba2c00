// Package clustering groups near-duplicate states and picks an exemplar for
// each group.
package clustering

import (
	"strings"

	"github.com/user/crawlgraph/internal/entity"
	"github.com/user/crawlgraph/internal/similarity"
)

// Builder performs seed-based, single-pass clustering. A node joins the
// cluster of the first unassigned seed it is more similar to than the
// threshold; membership is not transitive, so results depend on input order.
type Builder struct {
	scorer similarity.Scorer
}

func NewBuilder(scorer similarity.Scorer) *Builder {
	if scorer == nil {
		scorer = similarity.Blend{}
	}
	return &Builder{scorer: scorer}
}

// Cluster partitions nodes in their given order. Every node lands in exactly
// one cluster and every cluster has its representative selected.
func (b *Builder) Cluster(nodes []*entity.Node, threshold float64) []entity.Cluster {
	if len(nodes) == 0 {
		return []entity.Cluster{}
	}

	assigned := make([]bool, len(nodes))
	clusters := make([]entity.Cluster, 0)
	for i, seed := range nodes {
		if assigned[i] {
			continue
		}
		assigned[i] = true
		members := []*entity.Node{seed}
		for j := i + 1; j < len(nodes); j++ {
			if assigned[j] {
				continue
			}
			if b.scorer.Similarity(seed, nodes[j]) > threshold {
				assigned[j] = true
				members = append(members, nodes[j])
			}
		}
		clusters = append(clusters, b.build(ClusterID(seed.ID), members))
	}
	return clusters
}

// Rebuild recomputes a cluster from an already chosen member list, keeping
// the given id. Used after pruning shrinks a cluster.
func (b *Builder) Rebuild(id string, members []*entity.Node) (entity.Cluster, bool) {
	if len(members) == 0 {
		return entity.Cluster{}, false
	}
	return b.build(id, members), true
}

func (b *Builder) build(id string, members []*entity.Node) entity.Cluster {
	ids := make([]string, len(members))
	for i, m := range members {
		ids[i] = m.ID
	}
	return entity.Cluster{
		ID:                     id,
		MemberIDs:              ids,
		RepresentativeID:       SelectRepresentative(members).ID,
		MeanPairwiseSimilarity: b.meanPairwise(members),
	}
}

func (b *Builder) meanPairwise(members []*entity.Node) float64 {
	if len(members) < 2 {
		return 1
	}
	var sum float64
	pairs := 0
	for i := 0; i < len(members); i++ {
		for j := i + 1; j < len(members); j++ {
			sum += b.scorer.Similarity(members[i], members[j])
			pairs++
		}
	}
	return sum / float64(pairs)
}

// ClusterID derives a stable cluster id from its seed node id.
func ClusterID(seedID string) string {
	return "c_" + strings.TrimPrefix(seedID, "n_")
}
