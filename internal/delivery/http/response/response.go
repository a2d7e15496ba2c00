package response

import "github.com/user/crawlgraph/internal/entity"

type SubmitCrawlResponse struct {
	Status         string `json:"status"`
	Message        string `json:"message"`
	CrawlRequestID string `json:"crawl_request_id"`
}

type StopResponse struct {
	Stopped bool   `json:"stopped"`
	State   string `json:"state"`
}

type StateResponse struct {
	State          string `json:"state"`
	ShouldContinue bool   `json:"shouldContinue"`
	Nodes          int    `json:"nodes"`
	Edges          int    `json:"edges"`
	Clusters       int    `json:"clusters"`
}

type CyclesResponse struct {
	Cycles []*entity.CycleRecord `json:"cycles"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
