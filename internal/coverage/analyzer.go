// Package coverage tracks how much of the application a crawl has seen and
// how quickly that picture is still growing.
package coverage

import (
	"strings"
	"sync"
	"time"

	"github.com/user/crawlgraph/internal/entity"
	"github.com/user/crawlgraph/internal/snapshot"
	"github.com/user/crawlgraph/pkg/utils"
)

// Interaction types counted by the interactions category.
const (
	InteractionClick    = "click"
	InteractionHover    = "hover"
	InteractionFocus    = "focus"
	InteractionKeyboard = "keyboard"
	InteractionTouch    = "touch"
	InteractionDrag     = "drag"
)

var InteractionTypes = []string{
	InteractionClick,
	InteractionHover,
	InteractionFocus,
	InteractionKeyboard,
	InteractionTouch,
	InteractionDrag,
}

var interactionAliases = map[string]string{
	"click": InteractionClick, "dblclick": InteractionClick, "contextmenu": InteractionClick,
	"submit": InteractionClick, "navigate": InteractionClick, "link": InteractionClick,
	"hover": InteractionHover, "mouseover": InteractionHover, "mouseenter": InteractionHover, "mousemove": InteractionHover,
	"focus": InteractionFocus, "focusin": InteractionFocus, "blur": InteractionFocus,
	"keyboard": InteractionKeyboard, "keydown": InteractionKeyboard, "keyup": InteractionKeyboard,
	"keypress": InteractionKeyboard, "input": InteractionKeyboard, "type": InteractionKeyboard, "fill": InteractionKeyboard,
	"touch": InteractionTouch, "touchstart": InteractionTouch, "touchend": InteractionTouch,
	"tap": InteractionTouch, "swipe": InteractionTouch, "pinch": InteractionTouch,
	"drag": InteractionDrag, "dragstart": InteractionDrag, "dragend": InteractionDrag, "drop": InteractionDrag,
}

// InteractionType maps a raw action type onto one of InteractionTypes.
func InteractionType(action string) (string, bool) {
	t, ok := interactionAliases[strings.ToLower(strings.TrimSpace(action))]
	return t, ok
}

// Analyzer accumulates coverage observations. It is safe for concurrent use.
type Analyzer struct {
	mu sync.Mutex

	elements        map[string]bool
	elementLookup   map[string]string // "sel:"/"txt:" → element key
	elementsCovered map[string]bool

	states         map[string]bool // fingerprints
	statesExplored map[string]bool
	stateFeatures  map[string][]string

	interactions map[string]bool

	paths          map[string]bool
	pathsTraversed map[string]bool

	features        map[string]bool
	featuresCovered map[string]bool

	history []entity.CoverageRecord
}

func NewAnalyzer() *Analyzer {
	a := &Analyzer{}
	a.reset()
	return a
}

func (a *Analyzer) reset() {
	a.elements = make(map[string]bool)
	a.elementLookup = make(map[string]string)
	a.elementsCovered = make(map[string]bool)
	a.states = make(map[string]bool)
	a.statesExplored = make(map[string]bool)
	a.stateFeatures = make(map[string][]string)
	a.interactions = make(map[string]bool)
	a.paths = make(map[string]bool)
	a.pathsTraversed = make(map[string]bool)
	a.features = make(map[string]bool)
	a.featuresCovered = make(map[string]bool)
	a.history = nil
}

// Reset forgets every observation and the history.
func (a *Analyzer) Reset() {
	a.mu.Lock()
	a.reset()
	a.mu.Unlock()
}

// ObserveSnapshot records the state, its elements, its outgoing links and
// detected features. States are keyed by fingerprint.
func (a *Analyzer) ObserveSnapshot(fingerprint string, n snapshot.Normalized) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.states[fingerprint] = true

	for _, el := range n.Elements {
		a.elements[el.Key] = true
		if el.Selector != "" {
			a.elementLookup["sel:"+el.Selector] = el.Key
		}
		if el.Text != "" {
			if _, taken := a.elementLookup["txt:"+el.Text]; !taken {
				a.elementLookup["txt:"+el.Text] = el.Key
			}
		}
	}

	from := utils.CanonicalURL(n.Features.URL)
	for _, link := range n.Links {
		a.paths[pathKey(from, link)] = true
	}

	if len(n.FeatureKinds) > 0 {
		a.stateFeatures[fingerprint] = append([]string(nil), n.FeatureKinds...)
	}
	for _, f := range n.FeatureKinds {
		a.features[f] = true
	}
	if a.statesExplored[fingerprint] {
		a.coverFeatures(fingerprint)
	}
}

// ObserveTransition records an action performed on the state with
// fingerprint fromFP that led from fromURL to toURL.
func (a *Analyzer) ObserveTransition(fromFP, fromURL, toURL string, action entity.Action) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if fromFP != "" {
		a.states[fromFP] = true
		a.statesExplored[fromFP] = true
		a.coverFeatures(fromFP)
	}

	if t, ok := InteractionType(action.Type); ok {
		a.interactions[t] = true
	}

	if key, ok := a.resolveElement(action); ok {
		a.elements[key] = true
		a.elementsCovered[key] = true
	}

	if fromURL != "" && toURL != "" {
		p := pathKey(utils.CanonicalURL(fromURL), utils.CanonicalURL(toURL))
		a.paths[p] = true
		a.pathsTraversed[p] = true
	}
}

func (a *Analyzer) resolveElement(action entity.Action) (string, bool) {
	sel := strings.TrimSpace(action.Selector)
	if sel != "" {
		if key, ok := a.elementLookup["sel:"+sel]; ok {
			return key, true
		}
	}
	if txt := strings.ToLower(strings.TrimSpace(action.Text)); txt != "" {
		if key, ok := a.elementLookup["txt:"+txt]; ok {
			return key, true
		}
	}
	if sel != "" {
		return "action|" + sel, true
	}
	return "", false
}

func (a *Analyzer) coverFeatures(fp string) {
	for _, f := range a.stateFeatures[fp] {
		a.featuresCovered[f] = true
	}
}

func pathKey(from, to string) string {
	return from + " -> " + to
}

// Categories returns the current per-category coverage.
func (a *Analyzer) Categories() map[entity.CoverageCategory]entity.CategoryCoverage {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.categories()
}

func (a *Analyzer) categories() map[entity.CoverageCategory]entity.CategoryCoverage {
	interactionTotal := 0
	if len(a.states) > 0 {
		interactionTotal = len(InteractionTypes)
	}
	return map[entity.CoverageCategory]entity.CategoryCoverage{
		entity.CoverageElements:     category(len(a.elements), len(a.elementsCovered)),
		entity.CoverageStates:       category(len(a.states), len(a.statesExplored)),
		entity.CoverageInteractions: category(interactionTotal, len(a.interactions)),
		entity.CoveragePaths:        category(len(a.paths), len(a.pathsTraversed)),
		entity.CoverageFeatures:     category(len(a.features), len(a.featuresCovered)),
	}
}

func category(total, covered int) entity.CategoryCoverage {
	if covered > total {
		covered = total
	}
	c := entity.CategoryCoverage{Total: total, Covered: covered}
	if total > 0 {
		c.Percentage = float64(covered) / float64(total) * 100
	}
	return c
}

func overall(cats map[entity.CoverageCategory]entity.CategoryCoverage) float64 {
	var sum float64
	for _, c := range entity.CoverageCategories {
		sum += cats[c].Percentage
	}
	return sum / float64(len(entity.CoverageCategories))
}

// RecordCycle appends the current coverage to the history and returns it
// with the marginal gain against the previous record. The first record is
// measured against zero coverage.
func (a *Analyzer) RecordCycle(now time.Time) entity.CoverageRecord {
	a.mu.Lock()
	defer a.mu.Unlock()

	cats := a.categories()
	rec := entity.CoverageRecord{
		Timestamp:    now,
		Categories:   cats,
		Overall:      overall(cats),
		MarginalGain: make(map[entity.CoverageCategory]float64, len(cats)),
	}
	var prev entity.CoverageRecord
	if len(a.history) > 0 {
		prev = a.history[len(a.history)-1]
	}
	for _, c := range entity.CoverageCategories {
		rec.MarginalGain[c] = cats[c].Percentage - prev.Categories[c].Percentage
	}
	rec.OverallGain = rec.Overall - prev.Overall

	a.history = append(a.history, rec)
	return rec
}

// Statistics returns the live coverage, the gain of the last recorded cycle
// and a copy of the history.
func (a *Analyzer) Statistics() entity.CoverageStatistics {
	a.mu.Lock()
	defer a.mu.Unlock()

	cats := a.categories()
	stats := entity.CoverageStatistics{
		Categories:   cats,
		Overall:      overall(cats),
		MarginalGain: make(map[entity.CoverageCategory]float64, len(cats)),
		History:      make([]entity.CoverageRecord, len(a.history)),
	}
	copy(stats.History, a.history)
	for _, c := range entity.CoverageCategories {
		stats.MarginalGain[c] = 0
	}
	if n := len(a.history); n > 0 {
		for c, g := range a.history[n-1].MarginalGain {
			stats.MarginalGain[c] = g
		}
	}
	return stats
}

// ShouldContinue is false once the overall gain stayed below minGain
// percentage points for the last stallCycles records.
func (a *Analyzer) ShouldContinue(minGain float64, stallCycles int) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if stallCycles <= 0 || len(a.history) < stallCycles {
		return true
	}
	for _, rec := range a.history[len(a.history)-stallCycles:] {
		if rec.OverallGain >= minGain {
			return true
		}
	}
	return false
}
