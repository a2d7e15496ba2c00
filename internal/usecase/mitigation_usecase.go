package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/user/crawlgraph/internal/clustering"
	"github.com/user/crawlgraph/internal/coverage"
	"github.com/user/crawlgraph/internal/entity"
	"github.com/user/crawlgraph/internal/fingerprint"
	"github.com/user/crawlgraph/internal/graphstore"
	"github.com/user/crawlgraph/internal/pruning"
	"github.com/user/crawlgraph/internal/repository"
	"github.com/user/crawlgraph/internal/similarity"
	"github.com/user/crawlgraph/internal/snapshot"
	"github.com/user/crawlgraph/pkg/metrics"
)

// MitigationConfig holds the tunables of a mitigation cycle.
type MitigationConfig struct {
	SimilarityThreshold    float64
	ClusterThreshold       float64
	ExplosionNodeThreshold int
	CoverageMinGain        float64
	CoverageStallCycles    int
	Pruning                pruning.Config
}

func DefaultMitigationConfig() MitigationConfig {
	return MitigationConfig{
		SimilarityThreshold:    0.8,
		ClusterThreshold:       0.7,
		ExplosionNodeThreshold: 50,
		CoverageMinGain:        1.0,
		CoverageStallCycles:    3,
		Pruning:                pruning.DefaultConfig(),
	}
}

// IngestResult describes what happened to one submitted snapshot.
type IngestResult struct {
	NodeID      string   `json:"nodeId,omitempty"`
	Fingerprint string   `json:"fingerprint,omitempty"`
	Created     bool     `json:"created"`
	Skipped     bool     `json:"skipped"`
	Reason      string   `json:"reason,omitempty"`
	Links       []string `json:"links,omitempty"`
}

// TransitionInput is a recorded user action between two states.
type TransitionInput struct {
	FromNodeID string        `json:"fromNodeId"`
	ToNodeID   string        `json:"toNodeId"`
	Action     entity.Action `json:"action"`
	Weight     float64       `json:"weight"`
	Timestamp  time.Time     `json:"timestamp"`
}

// CycleReport is the outcome of StartMitigation.
type CycleReport struct {
	Cycle        entity.CycleRecord      `json:"cycle"`
	Distribution similarity.Distribution `json:"distribution"`
	Prune        *pruning.Report         `json:"prune,omitempty"`
	Coverage     *entity.CoverageRecord  `json:"coverage,omitempty"`
}

// Mitigator is the control surface of the engine. All state lives in the
// injected store and analyzer.
type Mitigator struct {
	cfg      MitigationConfig
	store    *graphstore.Store
	coverage *coverage.Analyzer
	cycles   repository.CycleRepository
	metrics  *metrics.Metrics
	logger   *zap.Logger
	life     *lifecycle
	now      func() time.Time
}

// NewMitigator wires the engine. cycles may be nil when no archive is
// configured.
func NewMitigator(
	cfg MitigationConfig,
	store *graphstore.Store,
	analyzer *coverage.Analyzer,
	cycles repository.CycleRepository,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Mitigator {
	return &Mitigator{
		cfg:      cfg,
		store:    store,
		coverage: analyzer,
		cycles:   cycles,
		metrics:  m,
		logger:   logger,
		life:     newLifecycle(),
		now:      time.Now,
	}
}

// IngestSnapshot normalizes and records a snapshot. Malformed snapshots are
// skipped and logged.
func (m *Mitigator) IngestSnapshot(s entity.Snapshot) IngestResult {
	n, err := snapshot.Normalize(s)
	if err != nil {
		m.logger.Warn("skipping malformed snapshot", zap.String("url", s.URL), zap.Error(err))
		m.metrics.SnapshotsTotal.WithLabelValues("skipped").Inc()
		return IngestResult{Skipped: true, Reason: err.Error()}
	}

	res := m.store.Ingest(n)
	m.coverage.ObserveSnapshot(string(res.Fingerprint), n)

	result := "merged"
	if res.Created {
		result = "created"
		m.logger.Debug("new state", zap.String("node_id", res.Node.ID), zap.String("url", n.Features.URL))
	}
	m.metrics.SnapshotsTotal.WithLabelValues(result).Inc()
	m.updateGraphGauges()

	return IngestResult{
		NodeID:      res.Node.ID,
		Fingerprint: string(res.Fingerprint),
		Created:     res.Created,
		Links:       n.Links,
	}
}

// RecordTransition records an edge between two known nodes.
func (m *Mitigator) RecordTransition(in TransitionInput) (*entity.Edge, error) {
	ts := in.Timestamp
	if ts.IsZero() {
		ts = m.now()
	}
	edge, err := m.store.RecordTransition(in.FromNodeID, in.ToNodeID, in.Action, in.Weight, ts)
	if err != nil {
		return nil, err
	}
	from, okFrom := m.store.Node(in.FromNodeID)
	to, okTo := m.store.Node(in.ToNodeID)
	if okFrom && okTo {
		m.coverage.ObserveTransition(from.Fingerprint, from.Features.URL, to.Features.URL, in.Action)
	}
	m.updateGraphGauges()
	return edge, nil
}

var errCycleStopped = errors.New("mitigation cycle stopped")

// StartMitigation runs one full cycle synchronously: analyze, cluster,
// select representatives, prune, record coverage, persist. A stop request
// or cancelled ctx is honoured between phases; once the prune is applied
// the cycle runs to completion.
func (m *Mitigator) StartMitigation(ctx context.Context) (*CycleReport, error) {
	cycleCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := m.life.begin(cancel); err != nil {
		return nil, err
	}

	start := m.now()
	report := &CycleReport{Cycle: entity.CycleRecord{StartedAt: start}}
	err := m.runCycle(cycleCtx, ctx, report)

	ev := EventFinish
	switch {
	case err == nil:
		report.Cycle.Outcome = entity.CycleCompleted
	case errors.Is(err, errCycleStopped) || (errors.Is(err, context.Canceled) && m.life.stopRequested()):
		ev = EventAbort
		report.Cycle.Outcome = entity.CycleStopped
		err = nil
	default:
		ev = EventAbort
		report.Cycle.Outcome = entity.CycleFailed
		report.Cycle.Error = err.Error()
	}
	if lerr := m.life.end(ev); lerr != nil {
		m.logger.Error("lifecycle out of sync", zap.Error(lerr))
	}

	report.Cycle.FinishedAt = m.now()
	m.metrics.CyclesTotal.WithLabelValues(string(report.Cycle.Outcome)).Inc()
	m.metrics.CycleDuration.Observe(report.Cycle.FinishedAt.Sub(start).Seconds())
	m.archive(ctx, &report.Cycle)

	m.logger.Info("mitigation cycle finished",
		zap.String("outcome", string(report.Cycle.Outcome)),
		zap.String("risk", string(report.Cycle.Risk)),
		zap.Int("nodes_before", report.Cycle.NodesBefore),
		zap.Int("nodes_after", report.Cycle.NodesAfter),
		zap.Int("clusters", report.Cycle.Clusters),
		zap.Float64("coverage", report.Cycle.Coverage))
	return report, err
}

// runCycle executes the phases. cycleCtx is cancelled by StopMitigation;
// the prune is applied and persisted with the caller's ctx, and is rolled
// back when it cannot be persisted.
func (m *Mitigator) runCycle(cycleCtx, ctx context.Context, report *CycleReport) error {
	rec := &report.Cycle
	nodes := m.store.Nodes()
	edges := m.store.Edges()
	rec.NodesBefore, rec.EdgesBefore = len(nodes), len(edges)
	rec.NodesAfter, rec.EdgesAfter = rec.NodesBefore, rec.EdgesBefore

	// analyze
	matrix := similarity.NewMatrix(nodes, similarity.Blend{})
	report.Distribution = matrix.Distribution(m.cfg.SimilarityThreshold)
	rec.Risk = AssessRisk(len(nodes), m.cfg.ExplosionNodeThreshold, report.Distribution)
	m.logger.Debug("explosion risk assessed",
		zap.String("risk", string(rec.Risk)),
		zap.Int("nodes", len(nodes)),
		zap.Float64("similar_ratio", report.Distribution.AboveRatio))
	if err := m.checkpoint(cycleCtx); err != nil {
		return err
	}

	// cluster and select representatives
	builder := clustering.NewBuilder(matrix)
	clusters := builder.Cluster(nodes, m.cfg.ClusterThreshold)
	if err := m.checkpoint(cycleCtx); err != nil {
		return err
	}

	// prune
	plan := pruning.New(m.cfg.Pruning, builder).Plan(nodes, edges, clusters)
	if err := m.checkpoint(cycleCtx); err != nil {
		return err
	}
	if _, err := m.store.ApplyPrune(ctx, plan); err != nil {
		return fmt.Errorf("apply prune: %w", err)
	}
	report.Prune = &plan.Report
	for rule, n := range plan.Report.NodesByRule {
		m.metrics.PrunedTotal.WithLabelValues(string(rule)).Add(float64(n))
	}
	rec.NodesAfter, rec.EdgesAfter, rec.Clusters = m.store.Counts()
	m.updateGraphGauges()

	// coverage
	cov := m.coverage.RecordCycle(m.now())
	report.Coverage = &cov
	rec.Coverage = cov.Overall
	rec.CoverageGain = cov.OverallGain
	for cat, c := range cov.Categories {
		m.metrics.CoveragePercent.WithLabelValues(string(cat)).Set(c.Percentage)
	}
	return nil
}

func (m *Mitigator) checkpoint(ctx context.Context) error {
	if m.life.stopRequested() {
		return errCycleStopped
	}
	return ctx.Err()
}

func (m *Mitigator) archive(ctx context.Context, rec *entity.CycleRecord) {
	if m.cycles == nil {
		return
	}
	if err := m.cycles.Save(context.WithoutCancel(ctx), rec); err != nil {
		m.logger.Warn("failed to archive mitigation cycle", zap.Error(err))
	}
}

// AssessRisk grades explosion risk from graph size relative to
// nodeThreshold and the share of near-duplicate pairs.
func AssessRisk(nodes, nodeThreshold int, d similarity.Distribution) entity.RiskLevel {
	score := 0
	switch {
	case nodeThreshold > 0 && nodes >= nodeThreshold:
		score += 2
	case nodeThreshold > 0 && nodes*2 >= nodeThreshold:
		score++
	}
	switch {
	case d.AboveRatio >= 0.3:
		score += 2
	case d.AboveRatio >= 0.1:
		score++
	}
	switch {
	case score >= 3:
		return entity.RiskHigh
	case score == 2:
		return entity.RiskMedium
	case score == 1:
		return entity.RiskLow
	default:
		return entity.RiskNone
	}
}

// StopMitigation requests the running cycle to stop. It reports false when
// no cycle was running.
func (m *Mitigator) StopMitigation() bool {
	stopped := m.life.stop()
	if stopped {
		m.logger.Info("mitigation stop requested")
	}
	return stopped
}

// State returns the lifecycle state.
func (m *Mitigator) State() State {
	return m.life.current()
}

// ExportGraph returns the full graph snapshot.
func (m *Mitigator) ExportGraph() entity.Graph {
	return m.store.Export()
}

// Node looks a node up by id, then by the fingerprint it is bound to.
func (m *Mitigator) Node(key string) (*entity.Node, bool) {
	if n, ok := m.store.Node(key); ok {
		return n, true
	}
	return m.store.NodeByFingerprint(fingerprint.Fingerprint(key))
}

// GraphCounts returns node, edge and cluster totals.
func (m *Mitigator) GraphCounts() (nodes, edges, clusters int) {
	return m.store.Counts()
}

// GetCoverageStatistics returns live coverage and its history.
func (m *Mitigator) GetCoverageStatistics() entity.CoverageStatistics {
	return m.coverage.Statistics()
}

// ClearData drops the graph, its persisted record and coverage history.
func (m *Mitigator) ClearData(ctx context.Context) error {
	err := m.life.whileIdle(func() error {
		if err := m.store.Clear(ctx); err != nil {
			return err
		}
		m.coverage.Reset()
		return nil
	})
	if err != nil {
		return err
	}
	m.metrics.CoveragePercent.Reset()
	m.updateGraphGauges()
	m.logger.Info("exploration data cleared")
	return nil
}

// Restore loads a previously persisted graph. Coverage starts over.
func (m *Mitigator) Restore(ctx context.Context) (bool, error) {
	var found bool
	err := m.life.whileIdle(func() error {
		var err error
		found, err = m.store.Load(ctx)
		return err
	})
	if err != nil {
		return false, err
	}
	m.updateGraphGauges()
	return found, nil
}

// ShouldContinueCrawling is false once coverage gains have stalled.
func (m *Mitigator) ShouldContinueCrawling() bool {
	return m.coverage.ShouldContinue(m.cfg.CoverageMinGain, m.cfg.CoverageStallCycles)
}

// RecentCycles returns archived cycles, newest first.
func (m *Mitigator) RecentCycles(ctx context.Context, limit int) ([]*entity.CycleRecord, error) {
	if m.cycles == nil {
		return []*entity.CycleRecord{}, nil
	}
	return m.cycles.Recent(ctx, limit)
}

func (m *Mitigator) updateGraphGauges() {
	nodes, edges, clusters := m.store.Counts()
	m.metrics.GraphNodes.Set(float64(nodes))
	m.metrics.GraphEdges.Set(float64(edges))
	m.metrics.GraphClusters.Set(float64(clusters))
}
