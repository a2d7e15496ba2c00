package entity

import "time"

// CoverageCategory names one dimension of crawl coverage.
type CoverageCategory string

const (
	CoverageElements     CoverageCategory = "elements"
	CoverageStates       CoverageCategory = "states"
	CoverageInteractions CoverageCategory = "interactions"
	CoveragePaths        CoverageCategory = "paths"
	CoverageFeatures     CoverageCategory = "features"
)

// CoverageCategories lists every category in reporting order.
var CoverageCategories = []CoverageCategory{
	CoverageElements,
	CoverageStates,
	CoverageInteractions,
	CoveragePaths,
	CoverageFeatures,
}

// CategoryCoverage is the covered fraction of a single category.
type CategoryCoverage struct {
	Total      int     `json:"total"`
	Covered    int     `json:"covered"`
	Percentage float64 `json:"percentage"`
}

// CoverageRecord is one entry of the coverage history, taken at the end of a
// mitigation cycle.
type CoverageRecord struct {
	Timestamp    time.Time                             `json:"timestamp"`
	Categories   map[CoverageCategory]CategoryCoverage `json:"categories"`
	Overall      float64                               `json:"overall"`
	MarginalGain map[CoverageCategory]float64          `json:"marginalGain"`
	OverallGain  float64                               `json:"overallGain"`
}

// CoverageStatistics is the current coverage picture plus its history.
type CoverageStatistics struct {
	Categories   map[CoverageCategory]CategoryCoverage `json:"categories"`
	Overall      float64                               `json:"overall"`
	MarginalGain map[CoverageCategory]float64          `json:"marginalGain"`
	History      []CoverageRecord                      `json:"history"`
}
