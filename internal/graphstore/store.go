// Package graphstore owns the authoritative exploration graph. Every mutation
// goes through a single lock so cross-entity invariants (representatives are
// members, no edge points at a missing node) hold at every observable point.
package graphstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/user/crawlgraph/internal/clustering"
	"github.com/user/crawlgraph/internal/entity"
	"github.com/user/crawlgraph/internal/fingerprint"
	"github.com/user/crawlgraph/internal/pruning"
	"github.com/user/crawlgraph/internal/repository"
	"github.com/user/crawlgraph/internal/snapshot"
	"github.com/user/crawlgraph/pkg/utils"
)

const DefaultKey = "exploration_graph"

var ErrNodeNotFound = errors.New("node not found")

type Options struct {
	// Key is the single key the graph is persisted under.
	Key string
	// EntryURLs are always flagged as entry points, in addition to the first
	// node ever ingested.
	EntryURLs []string
}

// Store is an owned, injectable exploration graph.
type Store struct {
	mu sync.RWMutex

	kv     repository.KeyValueStore
	key    string
	logger *zap.Logger

	fingerprints *fingerprint.Engine
	entryURLs    map[string]bool

	nodes     map[string]*entity.Node
	order     []string
	seq       int64
	edges     map[string]*entity.Edge
	edgeOrder []string
	clusters  []entity.Cluster
}

func New(kv repository.KeyValueStore, opts Options, logger *zap.Logger) *Store {
	if opts.Key == "" {
		opts.Key = DefaultKey
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	entry := make(map[string]bool, len(opts.EntryURLs))
	for _, u := range opts.EntryURLs {
		entry[utils.CanonicalURL(u)] = true
	}
	s := &Store{
		kv:           kv,
		key:          opts.Key,
		logger:       logger,
		fingerprints: fingerprint.NewEngine(),
		entryURLs:    entry,
	}
	s.reset()
	return s
}

func (s *Store) reset() {
	s.fingerprints.Reset()
	s.nodes = make(map[string]*entity.Node)
	s.order = nil
	s.seq = 0
	s.edges = make(map[string]*entity.Edge)
	s.edgeOrder = nil
	s.clusters = nil
}

// IngestResult describes what Ingest did with a snapshot.
type IngestResult struct {
	Node        *entity.Node
	Fingerprint fingerprint.Fingerprint
	Created     bool
}

// Ingest adds a node for an unseen fingerprint or counts another visit on
// the node that already carries it.
func (s *Store) Ingest(n snapshot.Normalized) IngestResult {
	fp := fingerprint.Compute(n.Features)
	ts := n.Features.Timestamp

	s.mu.Lock()
	defer s.mu.Unlock()

	id, known := s.fingerprints.Resolve(fp)
	if !known {
		id = fp.NodeID()
	}
	if node, ok := s.nodes[id]; ok {
		node.VisitCount++
		if ts.After(node.LastSeen) {
			node.LastSeen = ts
		}
		node.IsEntryPoint = node.IsEntryPoint || n.IsEntryPoint
		if n.AccessibilityScore > 0 {
			node.AccessibilityScore = n.AccessibilityScore
		}
		if n.PerformanceScore > 0 {
			node.PerformanceScore = n.PerformanceScore
		}
		s.fingerprints.Register(fp, id)
		return IngestResult{Node: node.Clone(), Fingerprint: fp}
	}

	types := make(map[string]int, len(n.ElementTypes))
	for k, v := range n.ElementTypes {
		types[k] = v
	}
	s.seq++
	node := &entity.Node{
		ID:                 id,
		Fingerprint:        string(fp),
		Features:           n.Features,
		ElementTypes:       types,
		IsEntryPoint:       n.IsEntryPoint || s.seq == 1 || s.entryURLs[utils.CanonicalURL(n.Features.URL)],
		VisitCount:         1,
		AccessibilityScore: n.AccessibilityScore,
		PerformanceScore:   n.PerformanceScore,
		Seq:                s.seq,
		FirstSeen:          ts,
		LastSeen:           ts,
	}
	s.nodes[id] = node
	s.order = append(s.order, id)
	s.fingerprints.Register(fp, id)
	return IngestResult{Node: node.Clone(), Fingerprint: fp, Created: true}
}

// NodeByFingerprint returns a copy of the node currently bound to fp.
func (s *Store) NodeByFingerprint(fp fingerprint.Fingerprint) (*entity.Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.fingerprints.Resolve(fp)
	if !ok {
		return nil, false
	}
	n, ok := s.nodes[id]
	return n.Clone(), ok
}

// RecordTransition adds an edge or increments the weight of the existing
// edge for the same (from, to, action). weight <= 0 counts as one traversal.
func (s *Store) RecordTransition(from, to string, action entity.Action, weight float64, ts time.Time) (*entity.Edge, error) {
	if weight <= 0 {
		weight = 1
	}
	if ts.IsZero() {
		ts = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	src, ok := s.nodes[from]
	if !ok {
		return nil, fmt.Errorf("transition source %s: %w", from, ErrNodeNotFound)
	}
	if _, ok := s.nodes[to]; !ok {
		return nil, fmt.Errorf("transition target %s: %w", to, ErrNodeNotFound)
	}

	id := "e_" + utils.HashParts(from, to, action.Type, action.Selector)[:16]
	src.InteractionCount++
	if e, ok := s.edges[id]; ok {
		e.Weight += weight
		if ts.After(e.Timestamp) {
			e.Timestamp = ts
		}
		c := *e
		return &c, nil
	}
	e := &entity.Edge{ID: id, From: from, To: to, Action: action, Weight: weight, Timestamp: ts}
	s.edges[id] = e
	s.edgeOrder = append(s.edgeOrder, id)
	c := *e
	return &c, nil
}

// Node returns a copy of the node with the given id.
func (s *Store) Node(id string) (*entity.Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[id]
	return n.Clone(), ok
}

// Nodes returns copies of all nodes in first-seen order.
func (s *Store) Nodes() []*entity.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*entity.Node, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.nodes[id].Clone())
	}
	return out
}

// Edges returns copies of all edges in insertion order.
func (s *Store) Edges() []*entity.Edge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*entity.Edge, 0, len(s.edgeOrder))
	for _, id := range s.edgeOrder {
		c := *s.edges[id]
		out = append(out, &c)
	}
	return out
}

// Clusters returns the clusters installed by the last applied prune.
func (s *Store) Clusters() []entity.Cluster {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyClusters(s.clusters)
}

// Counts returns node, edge and cluster totals.
func (s *Store) Counts() (nodes, edges, clusters int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes), len(s.edges), len(s.clusters)
}

// ApplyResult lists what ApplyPrune removed.
type ApplyResult struct {
	PrunedNodes  []*entity.Node
	RemovedEdges int
}

// ApplyPrune installs a pruning plan and persists the result in a single
// critical section. Nodes ingested after the plan was computed are kept and
// left unclustered; edges touching any removed node are dropped with it.
// When the write fails the graph is rolled back to its state before the
// plan and the error is returned.
func (s *Store) ApplyPrune(ctx context.Context, plan *pruning.Plan) (ApplyResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := s.checkpoint()
	res := s.applyPrune(plan)
	if err := s.persist(ctx); err != nil {
		s.rollback(before)
		s.logger.Warn("prune rolled back, graph could not be persisted",
			zap.Int("nodes", len(s.nodes)),
			zap.Int("reverted_removals", len(res.PrunedNodes)),
			zap.Error(err))
		return ApplyResult{}, err
	}
	return res, nil
}

// applyPrune mutates the graph per plan. Caller holds the write lock.
func (s *Store) applyPrune(plan *pruning.Plan) ApplyResult {
	var res ApplyResult
	for _, r := range plan.RemovedNodes {
		node, ok := s.nodes[r.ID]
		if !ok {
			continue
		}
		pruned := node.Clone()
		pruned.Pruned = true
		pruned.ClusterID = ""
		res.PrunedNodes = append(res.PrunedNodes, pruned)
		delete(s.nodes, r.ID)
		s.fingerprints.Forget(fingerprint.Fingerprint(node.Fingerprint))
	}
	s.order = compact(s.order, func(id string) bool { _, ok := s.nodes[id]; return ok })

	for _, r := range plan.RemovedEdges {
		if _, ok := s.edges[r.ID]; ok {
			delete(s.edges, r.ID)
			res.RemovedEdges++
		}
	}
	for id, w := range plan.EdgeWeights {
		if e, ok := s.edges[id]; ok {
			e.Weight = w
		}
	}
	for id, e := range s.edges {
		if s.nodes[e.From] == nil || s.nodes[e.To] == nil {
			delete(s.edges, id)
			res.RemovedEdges++
		}
	}
	s.edgeOrder = compact(s.edgeOrder, func(id string) bool { _, ok := s.edges[id]; return ok })

	s.installClusters(plan.Clusters)

	s.logger.Debug("prune applied",
		zap.Int("nodes_removed", len(res.PrunedNodes)),
		zap.Int("edges_removed", res.RemovedEdges),
		zap.Int("clusters", len(s.clusters)),
		zap.Int("fingerprints", s.fingerprints.Len()))
	return res
}

// state is a deep copy of the mutable graph, taken before a prune.
type state struct {
	nodes     map[string]*entity.Node
	order     []string
	edges     map[string]*entity.Edge
	edgeOrder []string
	clusters  []entity.Cluster
}

func (s *Store) checkpoint() state {
	st := state{
		nodes:     make(map[string]*entity.Node, len(s.nodes)),
		order:     append([]string(nil), s.order...),
		edges:     make(map[string]*entity.Edge, len(s.edges)),
		edgeOrder: append([]string(nil), s.edgeOrder...),
		clusters:  copyClusters(s.clusters),
	}
	for id, n := range s.nodes {
		st.nodes[id] = n.Clone()
	}
	for id, e := range s.edges {
		c := *e
		st.edges[id] = &c
	}
	return st
}

// rollback reinstalls st and rebinds every fingerprint it holds.
func (s *Store) rollback(st state) {
	s.nodes, s.order = st.nodes, st.order
	s.edges, s.edgeOrder = st.edges, st.edgeOrder
	s.clusters = st.clusters
	for id, n := range s.nodes {
		s.fingerprints.Register(fingerprint.Fingerprint(n.Fingerprint), id)
	}
}

// installClusters replaces all cluster assignments. Caller holds the lock.
func (s *Store) installClusters(clusters []entity.Cluster) {
	for _, n := range s.nodes {
		n.ClusterID = ""
	}
	installed := make([]entity.Cluster, 0, len(clusters))
	for _, c := range clusters {
		members := make([]*entity.Node, 0, len(c.MemberIDs))
		for _, id := range c.MemberIDs {
			if n, ok := s.nodes[id]; ok && n.ClusterID == "" {
				members = append(members, n)
			}
		}
		if len(members) == 0 {
			continue
		}
		out := entity.Cluster{ID: c.ID, MeanPairwiseSimilarity: c.MeanPairwiseSimilarity}
		for _, m := range members {
			m.ClusterID = c.ID
			out.MemberIDs = append(out.MemberIDs, m.ID)
		}
		out.RepresentativeID = c.RepresentativeID
		if !out.HasMember(out.RepresentativeID) {
			out.RepresentativeID = clustering.SelectRepresentative(members).ID
		}
		installed = append(installed, out)
	}
	s.clusters = installed
}

// Export renders the graph in its persisted form.
func (s *Store) Export() entity.Graph {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.export()
}

// Save writes the whole graph under the store key.
func (s *Store) Save(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.persist(ctx)
}

// persist encodes and writes the graph. Caller holds at least the read lock.
func (s *Store) persist(ctx context.Context) error {
	data, err := json.Marshal(s.export())
	if err != nil {
		return fmt.Errorf("encode graph: %w", err)
	}
	if err := s.kv.Set(ctx, s.key, data); err != nil {
		return fmt.Errorf("persist graph %q: %w", s.key, err)
	}
	return nil
}

// Load replaces the in-memory graph with the persisted one. It reports false
// when nothing was persisted yet. On error the in-memory graph is untouched.
func (s *Store) Load(ctx context.Context) (bool, error) {
	data, err := s.kv.Get(ctx, s.key)
	if errors.Is(err, repository.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read graph %q: %w", s.key, err)
	}
	var g entity.Graph
	if err := json.Unmarshal(data, &g); err != nil {
		return false, fmt.Errorf("decode graph %q: %w", s.key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.load(g)
	return true, nil
}

// Clear removes the persisted record and then empties the graph. A failed
// delete leaves both untouched.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.kv.Delete(ctx, s.key); err != nil {
		return fmt.Errorf("delete graph %q: %w", s.key, err)
	}
	s.mu.Lock()
	s.reset()
	s.mu.Unlock()
	return nil
}

func compact(ids []string, keep func(string) bool) []string {
	out := ids[:0]
	for _, id := range ids {
		if keep(id) {
			out = append(out, id)
		}
	}
	return out
}

func copyClusters(in []entity.Cluster) []entity.Cluster {
	out := make([]entity.Cluster, len(in))
	for i, c := range in {
		out[i] = c
		out[i].MemberIDs = append([]string(nil), c.MemberIDs...)
	}
	return out
}
