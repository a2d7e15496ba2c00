package request

import "time"

type SubmitCrawlRequest struct {
	URL        string `json:"url"`
	ForceCrawl bool   `json:"force_crawl"`
}

// TransitionRequest records an action between two existing nodes.
type TransitionRequest struct {
	FromNodeID string    `json:"fromNodeId"`
	ToNodeID   string    `json:"toNodeId"`
	ActionType string    `json:"actionType"`
	Selector   string    `json:"selector,omitempty"`
	Text       string    `json:"text,omitempty"`
	Weight     float64   `json:"weight,omitempty"`
	Timestamp  time.Time `json:"timestamp,omitempty"`
}
