package entity

import "time"

// CycleOutcome is how a mitigation cycle ended.
type CycleOutcome string

const (
	CycleCompleted CycleOutcome = "completed"
	CycleStopped   CycleOutcome = "stopped"
	CycleFailed    CycleOutcome = "failed"
)

// RiskLevel grades how close the graph is to a state explosion.
type RiskLevel string

const (
	RiskNone   RiskLevel = "none"
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// CycleRecord is the archived summary of one mitigation cycle.
type CycleRecord struct {
	ID           int64        `json:"id,omitempty"`
	StartedAt    time.Time    `json:"startedAt"`
	FinishedAt   time.Time    `json:"finishedAt"`
	Outcome      CycleOutcome `json:"outcome"`
	Risk         RiskLevel    `json:"risk"`
	NodesBefore  int          `json:"nodesBefore"`
	NodesAfter   int          `json:"nodesAfter"`
	EdgesBefore  int          `json:"edgesBefore"`
	EdgesAfter   int          `json:"edgesAfter"`
	Clusters     int          `json:"clusters"`
	Coverage     float64      `json:"coverage"`
	CoverageGain float64      `json:"coverageGain"`
	Error        string       `json:"error,omitempty"`
}
