// Package fingerprint collapses exact-duplicate page states.
package fingerprint

import (
	"strconv"
	"strings"
	"sync"

	"github.com/user/crawlgraph/internal/entity"
	"github.com/user/crawlgraph/pkg/utils"
)

// Fingerprint is the hex SHA-256 digest of a canonicalized feature vector.
type Fingerprint string

// NodeID derives the graph node id for a fingerprint.
func (f Fingerprint) NodeID() string {
	s := string(f)
	if len(s) > 16 {
		s = s[:16]
	}
	return "n_" + s
}

// Compute hashes the identity fields of fv in a fixed order: canonical url,
// title, element, form and media counts, and the stats flag. Interactive
// counts, screenshot presence and timestamps are not part of identity.
func Compute(fv entity.FeatureVector) Fingerprint {
	return Fingerprint(utils.HashParts(
		utils.CanonicalURL(fv.URL),
		strings.TrimSpace(fv.Title),
		strconv.Itoa(fv.ElementCount),
		strconv.Itoa(fv.FormElementCount),
		strconv.Itoa(fv.MediaElementCount),
		strconv.FormatBool(fv.IsStatsPage),
	))
}

// Engine maps fingerprints to the node that first carried them.
// Collisions are not detected.
type Engine struct {
	mu    sync.RWMutex
	index map[Fingerprint]string
}

func NewEngine() *Engine {
	return &Engine{index: make(map[Fingerprint]string)}
}

// Resolve returns the node already registered for fp.
func (e *Engine) Resolve(fp Fingerprint) (string, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	id, ok := e.index[fp]
	return id, ok
}

// Register binds fp to nodeID, replacing any previous binding.
func (e *Engine) Register(fp Fingerprint, nodeID string) {
	e.mu.Lock()
	e.index[fp] = nodeID
	e.mu.Unlock()
}

// Forget drops the binding for fp, used when its node is pruned.
func (e *Engine) Forget(fp Fingerprint) {
	e.mu.Lock()
	delete(e.index, fp)
	e.mu.Unlock()
}

// Reset clears every binding.
func (e *Engine) Reset() {
	e.mu.Lock()
	e.index = make(map[Fingerprint]string)
	e.mu.Unlock()
}

// Len returns the number of registered fingerprints.
func (e *Engine) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.index)
}
