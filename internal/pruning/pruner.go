// Package pruning computes which nodes and edges a mitigation cycle removes.
// The pruner never mutates its input; it returns a Plan that the graph store
// applies in one step.
package pruning

import (
	"strconv"

	"github.com/user/crawlgraph/internal/clustering"
	"github.com/user/crawlgraph/internal/entity"
)

// Rule names the pruning step responsible for a removal.
type Rule string

const (
	RuleDuplicateNode   Rule = "duplicate_node"
	RuleLowValue        Rule = "low_value"
	RuleOrphan          Rule = "orphan"
	RuleDuplicateEdge   Rule = "duplicate_edge"
	RuleLowTraffic      Rule = "low_traffic"
	RuleClusterOverflow Rule = "cluster_overflow"
	// RuleDangling removes edges whose endpoint was removed by another rule.
	RuleDangling Rule = "dangling"
)

const (
	DefaultMaxClusterSize = 10
	DefaultMinNodeValue   = 0.1
	DefaultMinEdgeWeight  = 0.1
)

type Config struct {
	MaxClusterSize int
	// Nodes scoring at or below MinNodeValue are dropped unless entry points.
	MinNodeValue float64
	// Edges whose aggregated weight is at or below MinEdgeWeight are dropped.
	MinEdgeWeight float64
}

func DefaultConfig() Config {
	return Config{
		MaxClusterSize: DefaultMaxClusterSize,
		MinNodeValue:   DefaultMinNodeValue,
		MinEdgeWeight:  DefaultMinEdgeWeight,
	}
}

// Removal records one pruned entity.
type Removal struct {
	ID   string `json:"id"`
	Rule Rule   `json:"rule"`
}

// Report summarizes a plan.
type Report struct {
	NodesBefore  int          `json:"nodesBefore"`
	NodesAfter   int          `json:"nodesAfter"`
	EdgesBefore  int          `json:"edgesBefore"`
	EdgesAfter   int          `json:"edgesAfter"`
	NodesByRule  map[Rule]int `json:"nodesByRule"`
	EdgesByRule  map[Rule]int `json:"edgesByRule"`
	ClustersKept int          `json:"clustersKept"`
}

// Plan is the complete outcome of one pruning pass.
type Plan struct {
	RemovedNodes []Removal
	RemovedEdges []Removal
	// EdgeWeights holds the aggregated weight of edges that absorbed duplicates.
	EdgeWeights map[string]float64
	Clusters    []entity.Cluster
	Report      Report

	nodeRules map[string]Rule
	edgeRules map[string]Rule
}

// NodeRemoved reports whether the plan removes the node.
func (p *Plan) NodeRemoved(id string) bool {
	_, ok := p.nodeRules[id]
	return ok
}

// EdgeRemoved reports whether the plan removes the edge.
func (p *Plan) EdgeRemoved(id string) bool {
	_, ok := p.edgeRules[id]
	return ok
}

func newPlan() *Plan {
	return &Plan{
		EdgeWeights: make(map[string]float64),
		Clusters:    []entity.Cluster{},
		Report: Report{
			NodesByRule: make(map[Rule]int),
			EdgesByRule: make(map[Rule]int),
		},
		nodeRules: make(map[string]Rule),
		edgeRules: make(map[string]Rule),
	}
}

func (p *Plan) removeNode(id string, r Rule) {
	if _, ok := p.nodeRules[id]; ok {
		return
	}
	p.nodeRules[id] = r
	p.RemovedNodes = append(p.RemovedNodes, Removal{ID: id, Rule: r})
	p.Report.NodesByRule[r]++
}

func (p *Plan) removeEdge(id string, r Rule) {
	if _, ok := p.edgeRules[id]; ok {
		return
	}
	p.edgeRules[id] = r
	p.RemovedEdges = append(p.RemovedEdges, Removal{ID: id, Rule: r})
	p.Report.EdgesByRule[r]++
	delete(p.EdgeWeights, id)
}

// Pruner applies the fixed rule sequence. Cluster statistics of shrunk
// clusters are recomputed with the builder's scorer.
type Pruner struct {
	cfg     Config
	builder *clustering.Builder
}

func New(cfg Config, builder *clustering.Builder) *Pruner {
	if cfg.MaxClusterSize < 1 {
		cfg.MaxClusterSize = DefaultMaxClusterSize
	}
	if builder == nil {
		builder = clustering.NewBuilder(nil)
	}
	return &Pruner{cfg: cfg, builder: builder}
}

// NodeValue is the heuristic worth of keeping a node.
func NodeValue(n *entity.Node) float64 {
	return float64(n.Features.ElementCount)*0.01 +
		float64(n.InteractionCount)*0.05 +
		n.AccessibilityScore*0.1 +
		n.PerformanceScore*0.1
}

// Plan runs, in order: node dedupe, low-value removal, orphan removal, edge
// dedupe with weight aggregation, low-traffic edge removal and cluster size
// enforcement. Nodes must be in first-seen order.
func (p *Pruner) Plan(nodes []*entity.Node, edges []*entity.Edge, clusters []entity.Cluster) *Plan {
	plan := newPlan()
	plan.Report.NodesBefore = len(nodes)
	plan.Report.EdgesBefore = len(edges)

	byID := make(map[string]*entity.Node, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
	}
	alive := func(id string) bool {
		_, known := byID[id]
		return known && !plan.NodeRemoved(id)
	}

	// 1. duplicate (url, title, elementCount)
	seen := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		key := n.Features.URL + "\x00" + n.Features.Title + "\x00" + strconv.Itoa(n.Features.ElementCount)
		if seen[key] {
			plan.removeNode(n.ID, RuleDuplicateNode)
			continue
		}
		seen[key] = true
	}

	// 2. low value
	for _, n := range nodes {
		if alive(n.ID) && !n.IsEntryPoint && NodeValue(n) <= p.cfg.MinNodeValue {
			plan.removeNode(n.ID, RuleLowValue)
		}
	}
	p.dropDangling(plan, edges, alive)

	// 3. orphans
	incident := make(map[string]bool)
	for _, e := range edges {
		if !plan.EdgeRemoved(e.ID) {
			incident[e.From] = true
			incident[e.To] = true
		}
	}
	for _, n := range nodes {
		if alive(n.ID) && !n.IsEntryPoint && !incident[n.ID] {
			plan.removeNode(n.ID, RuleOrphan)
		}
	}

	// 4. duplicate (from, to), weights folded into the first edge
	firstByPair := make(map[string]*entity.Edge)
	weights := make(map[string]float64)
	for _, e := range edges {
		if plan.EdgeRemoved(e.ID) {
			continue
		}
		pair := e.From + "\x00" + e.To
		first, ok := firstByPair[pair]
		if !ok {
			firstByPair[pair] = e
			weights[e.ID] = e.Weight
			continue
		}
		weights[first.ID] += e.Weight
		plan.EdgeWeights[first.ID] = weights[first.ID]
		plan.removeEdge(e.ID, RuleDuplicateEdge)
	}

	// 5. low traffic
	for _, e := range edges {
		if !plan.EdgeRemoved(e.ID) && weights[e.ID] <= p.cfg.MinEdgeWeight {
			plan.removeEdge(e.ID, RuleLowTraffic)
		}
	}

	// 6. cluster size bound
	for _, c := range clusters {
		members := make([]*entity.Node, 0, len(c.MemberIDs))
		for _, id := range c.MemberIDs {
			if alive(id) {
				members = append(members, byID[id])
			}
		}
		if len(members) > p.cfg.MaxClusterSize {
			keep := make(map[string]bool, p.cfg.MaxClusterSize)
			for _, m := range clustering.TopK(members, p.cfg.MaxClusterSize) {
				keep[m.ID] = true
			}
			kept := members[:0:0]
			for _, m := range members {
				if keep[m.ID] {
					kept = append(kept, m)
				} else {
					plan.removeNode(m.ID, RuleClusterOverflow)
				}
			}
			members = kept
		}
		if rebuilt, ok := p.rebuild(c, members); ok {
			plan.Clusters = append(plan.Clusters, rebuilt)
		}
	}
	p.dropDangling(plan, edges, alive)

	plan.Report.NodesAfter = len(nodes) - len(plan.RemovedNodes)
	plan.Report.EdgesAfter = len(edges) - len(plan.RemovedEdges)
	plan.Report.ClustersKept = len(plan.Clusters)
	return plan
}

// rebuild keeps a cluster's id and, when its membership is unchanged, its
// statistics; otherwise the representative and mean are recomputed.
func (p *Pruner) rebuild(c entity.Cluster, members []*entity.Node) (entity.Cluster, bool) {
	if len(members) == 0 {
		return entity.Cluster{}, false
	}
	if len(members) == len(c.MemberIDs) && c.HasMember(c.RepresentativeID) {
		out := c
		out.MemberIDs = append([]string(nil), c.MemberIDs...)
		return out, true
	}
	return p.builder.Rebuild(c.ID, members)
}

func (p *Pruner) dropDangling(plan *Plan, edges []*entity.Edge, alive func(string) bool) {
	for _, e := range edges {
		if plan.EdgeRemoved(e.ID) {
			continue
		}
		if !alive(e.From) || !alive(e.To) {
			rule := RuleDangling
			if r, ok := plan.nodeRules[e.From]; ok && r == RuleClusterOverflow {
				rule = RuleClusterOverflow
			} else if r, ok := plan.nodeRules[e.To]; ok && r == RuleClusterOverflow {
				rule = RuleClusterOverflow
			}
			plan.removeEdge(e.ID, rule)
		}
	}
}
