package entity

// Graph is the persisted and exported form of the exploration graph.
type Graph struct {
	Nodes    []GraphNode    `json:"nodes"`
	Edges    []GraphEdge    `json:"edges"`
	Clusters []GraphCluster `json:"clusters"`
}

type GraphNode struct {
	ID                      string         `json:"id"`
	Fingerprint             string         `json:"fingerprint"`
	URL                     string         `json:"url"`
	Title                   string         `json:"title"`
	ElementCount            int            `json:"elementCount"`
	InteractiveElementCount int            `json:"interactiveElementCount"`
	FormElementCount        int            `json:"formElementCount"`
	MediaElementCount       int            `json:"mediaElementCount"`
	HasScreenshot           bool           `json:"hasScreenshot"`
	IsStatsPage             bool           `json:"isStatsPage"`
	IsEntryPoint            bool           `json:"isEntryPoint"`
	ClusterID               string         `json:"clusterId,omitempty"`
	ElementTypes            map[string]int `json:"elementTypes,omitempty"`
	VisitCount              int            `json:"visitCount"`
	InteractionCount        int            `json:"interactionCount"`
	AccessibilityScore      float64        `json:"accessibilityScore"`
	PerformanceScore        float64        `json:"performanceScore"`
	Seq                     int64          `json:"seq"`
	Timestamp               int64          `json:"timestamp"` // Unix ms of the snapshot
	FirstSeen               int64          `json:"firstSeen"`
	LastSeen                int64          `json:"lastSeen"`
}

type GraphEdge struct {
	ID        string  `json:"id"`
	From      string  `json:"from"`
	To        string  `json:"to"`
	Action    Action  `json:"action"`
	Weight    float64 `json:"weight"`
	Timestamp int64   `json:"timestamp"` // Unix ms
}

type GraphCluster struct {
	ID                     string   `json:"id"`
	MemberIDs              []string `json:"memberIds"`
	RepresentativeID       string   `json:"representativeId"`
	MeanPairwiseSimilarity float64  `json:"meanPairwiseSimilarity"`
}
