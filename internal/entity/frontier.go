package entity

// FrontierItem is a page waiting to be visited by a crawl worker.
type FrontierItem struct {
	URL        string `json:"url"`
	FromNodeID string `json:"fromNodeId,omitempty"`
	Action     Action `json:"action"`
	Depth      int    `json:"depth"`
}
