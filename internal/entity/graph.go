package entity

import "time"

// FeatureVector is the canonical comparison summary of a snapshot. It is a
// value type and never modified after normalization.
type FeatureVector struct {
	URL                     string    `json:"url"`
	Title                   string    `json:"title"`
	ElementCount            int       `json:"elementCount"`
	InteractiveElementCount int       `json:"interactiveElementCount"`
	FormElementCount        int       `json:"formElementCount"`
	MediaElementCount       int       `json:"mediaElementCount"`
	HasScreenshot           bool      `json:"hasScreenshot"`
	IsStatsPage             bool      `json:"isStatsPage"`
	Timestamp               time.Time `json:"timestamp"`
}

// Node is a distinct application state in the exploration graph.
type Node struct {
	ID           string         `json:"id"`
	Fingerprint  string         `json:"fingerprint"`
	Features     FeatureVector  `json:"features"`
	ElementTypes map[string]int `json:"elementTypes,omitempty"`
	IsEntryPoint bool           `json:"isEntryPoint"`
	Pruned       bool           `json:"pruned"`
	ClusterID    string         `json:"clusterId,omitempty"`

	VisitCount         int     `json:"visitCount"`
	InteractionCount   int     `json:"interactionCount"`
	AccessibilityScore float64 `json:"accessibilityScore"`
	PerformanceScore   float64 `json:"performanceScore"`

	// Seq is the first-seen order inside the owning store.
	Seq       int64     `json:"seq"`
	FirstSeen time.Time `json:"firstSeen"`
	LastSeen  time.Time `json:"lastSeen"`
}

// Clone returns a deep copy so callers never alias store-owned maps.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	c := *n
	if n.ElementTypes != nil {
		c.ElementTypes = make(map[string]int, len(n.ElementTypes))
		for k, v := range n.ElementTypes {
			c.ElementTypes[k] = v
		}
	}
	return &c
}

// Edge is a recorded transition between two nodes.
type Edge struct {
	ID        string    `json:"id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Action    Action    `json:"action"`
	Weight    float64   `json:"weight"`
	Timestamp time.Time `json:"timestamp"`
}

// Cluster groups nodes judged functionally equivalent. A cluster is replaced
// wholesale on every mitigation cycle.
type Cluster struct {
	ID                     string   `json:"id"`
	MemberIDs              []string `json:"memberIds"`
	RepresentativeID       string   `json:"representativeId"`
	MeanPairwiseSimilarity float64  `json:"meanPairwiseSimilarity"`
}

// HasMember reports whether id belongs to the cluster.
func (c Cluster) HasMember(id string) bool {
	for _, m := range c.MemberIDs {
		if m == id {
			return true
		}
	}
	return false
}
