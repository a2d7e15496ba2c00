package graphstore

import (
	"time"

	"github.com/user/crawlgraph/internal/entity"
	"github.com/user/crawlgraph/internal/fingerprint"
)

// export copies the graph out. Caller holds at least the read lock.
func (s *Store) export() entity.Graph {
	g := entity.Graph{
		Nodes:    make([]entity.GraphNode, 0, len(s.order)),
		Edges:    make([]entity.GraphEdge, 0, len(s.edgeOrder)),
		Clusters: make([]entity.GraphCluster, 0, len(s.clusters)),
	}
	for _, id := range s.order {
		g.Nodes = append(g.Nodes, toGraphNode(s.nodes[id]))
	}
	for _, id := range s.edgeOrder {
		e := s.edges[id]
		g.Edges = append(g.Edges, entity.GraphEdge{
			ID:        e.ID,
			From:      e.From,
			To:        e.To,
			Action:    e.Action,
			Weight:    e.Weight,
			Timestamp: unixMilli(e.Timestamp),
		})
	}
	for _, c := range s.clusters {
		g.Clusters = append(g.Clusters, entity.GraphCluster{
			ID:                     c.ID,
			MemberIDs:              append([]string(nil), c.MemberIDs...),
			RepresentativeID:       c.RepresentativeID,
			MeanPairwiseSimilarity: c.MeanPairwiseSimilarity,
		})
	}
	return g
}

// load replaces the graph with g. Edges with a missing endpoint and cluster
// members that are not nodes are dropped. Caller holds the write lock.
func (s *Store) load(g entity.Graph) {
	s.reset()
	for _, gn := range g.Nodes {
		if gn.ID == "" {
			continue
		}
		if _, dup := s.nodes[gn.ID]; dup {
			continue
		}
		n := fromGraphNode(gn)
		s.nodes[n.ID] = n
		s.order = append(s.order, n.ID)
		if n.Seq > s.seq {
			s.seq = n.Seq
		}
		if n.Fingerprint != "" {
			s.fingerprints.Register(fingerprint.Fingerprint(n.Fingerprint), n.ID)
		}
	}
	for _, ge := range g.Edges {
		if s.nodes[ge.From] == nil || s.nodes[ge.To] == nil {
			continue
		}
		if _, dup := s.edges[ge.ID]; dup {
			continue
		}
		s.edges[ge.ID] = &entity.Edge{
			ID:        ge.ID,
			From:      ge.From,
			To:        ge.To,
			Action:    ge.Action,
			Weight:    ge.Weight,
			Timestamp: fromUnixMilli(ge.Timestamp),
		}
		s.edgeOrder = append(s.edgeOrder, ge.ID)
	}
	clusters := make([]entity.Cluster, 0, len(g.Clusters))
	for _, gc := range g.Clusters {
		clusters = append(clusters, entity.Cluster{
			ID:                     gc.ID,
			MemberIDs:              gc.MemberIDs,
			RepresentativeID:       gc.RepresentativeID,
			MeanPairwiseSimilarity: gc.MeanPairwiseSimilarity,
		})
	}
	s.installClusters(clusters)
}

func toGraphNode(n *entity.Node) entity.GraphNode {
	types := make(map[string]int, len(n.ElementTypes))
	for k, v := range n.ElementTypes {
		types[k] = v
	}
	return entity.GraphNode{
		ID:                      n.ID,
		Fingerprint:             n.Fingerprint,
		URL:                     n.Features.URL,
		Title:                   n.Features.Title,
		ElementCount:            n.Features.ElementCount,
		InteractiveElementCount: n.Features.InteractiveElementCount,
		FormElementCount:        n.Features.FormElementCount,
		MediaElementCount:       n.Features.MediaElementCount,
		HasScreenshot:           n.Features.HasScreenshot,
		IsStatsPage:             n.Features.IsStatsPage,
		IsEntryPoint:            n.IsEntryPoint,
		ClusterID:               n.ClusterID,
		ElementTypes:            types,
		VisitCount:              n.VisitCount,
		InteractionCount:        n.InteractionCount,
		AccessibilityScore:      n.AccessibilityScore,
		PerformanceScore:        n.PerformanceScore,
		Seq:                     n.Seq,
		Timestamp:               unixMilli(n.Features.Timestamp),
		FirstSeen:               unixMilli(n.FirstSeen),
		LastSeen:                unixMilli(n.LastSeen),
	}
}

func fromGraphNode(g entity.GraphNode) *entity.Node {
	types := make(map[string]int, len(g.ElementTypes))
	for k, v := range g.ElementTypes {
		types[k] = v
	}
	return &entity.Node{
		ID:          g.ID,
		Fingerprint: g.Fingerprint,
		Features: entity.FeatureVector{
			URL:                     g.URL,
			Title:                   g.Title,
			ElementCount:            g.ElementCount,
			InteractiveElementCount: g.InteractiveElementCount,
			FormElementCount:        g.FormElementCount,
			MediaElementCount:       g.MediaElementCount,
			HasScreenshot:           g.HasScreenshot,
			IsStatsPage:             g.IsStatsPage,
			Timestamp:               fromUnixMilli(g.Timestamp),
		},
		ElementTypes:       types,
		IsEntryPoint:       g.IsEntryPoint,
		VisitCount:         g.VisitCount,
		InteractionCount:   g.InteractionCount,
		AccessibilityScore: g.AccessibilityScore,
		PerformanceScore:   g.PerformanceScore,
		Seq:                g.Seq,
		FirstSeen:          fromUnixMilli(g.FirstSeen),
		LastSeen:           fromUnixMilli(g.LastSeen),
	}
}

func unixMilli(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromUnixMilli(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
