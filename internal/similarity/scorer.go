// Package similarity scores how functionally alike two graph nodes are.
package similarity

import (
	"math"
	"net/url"
	"strings"

	"github.com/user/crawlgraph/internal/entity"
)

// Blend weights. Each group sums to 1.
const (
	weightFeature    = 0.4
	weightStructural = 0.3
	weightFunctional = 0.3

	featureURL        = 0.30
	featureTitle      = 0.20
	featureCount      = 0.10 // per count field, four of them
	featureScreenshot = 0.05
	featureStats      = 0.05
)

// Scorer computes a symmetric similarity in [0,1] between two nodes.
type Scorer interface {
	Similarity(a, b *entity.Node) float64
}

// Blend is the default weighted feature/structural/functional scorer.
type Blend struct{}

// Similarity scores a against b. Missing data contributes zero to its
// sub-score. States on different hosts only receive the feature term, so
// cross-origin pages never reach a clustering threshold.
func (Blend) Similarity(a, b *entity.Node) float64 {
	if a == nil || b == nil {
		return 0
	}
	urlScore, sameHost := URLSimilarity(a.Features.URL, b.Features.URL)
	feature := featureScore(a.Features, b.Features, urlScore)
	if !sameHost {
		return clamp(weightFeature * feature)
	}
	return clamp(weightFeature*feature +
		weightStructural*StructuralSimilarity(a.ElementTypes, b.ElementTypes) +
		weightFunctional*FunctionalSimilarity(a.Features, b.Features))
}

func featureScore(a, b entity.FeatureVector, urlScore float64) float64 {
	s := featureURL*urlScore +
		featureTitle*TitleSimilarity(a.Title, b.Title) +
		featureCount*NumericCloseness(a.ElementCount, b.ElementCount) +
		featureCount*NumericCloseness(a.InteractiveElementCount, b.InteractiveElementCount) +
		featureCount*NumericCloseness(a.FormElementCount, b.FormElementCount) +
		featureCount*NumericCloseness(a.MediaElementCount, b.MediaElementCount)
	if a.HasScreenshot == b.HasScreenshot {
		s += featureScreenshot
	}
	if a.IsStatsPage == b.IsStatsPage {
		s += featureStats
	}
	return s
}

// URLSimilarity returns 0 when either URL is missing or the hostnames
// differ, otherwise the share of positionally equal path segments relative
// to the longer path. The second result reports whether the hosts match.
func URLSimilarity(a, b string) (float64, bool) {
	ua, err := url.Parse(strings.TrimSpace(a))
	if err != nil || ua.Hostname() == "" {
		return 0, false
	}
	ub, err := url.Parse(strings.TrimSpace(b))
	if err != nil || ub.Hostname() == "" {
		return 0, false
	}
	if !strings.EqualFold(ua.Hostname(), ub.Hostname()) {
		return 0, false
	}

	sa, sb := segments(ua.Path), segments(ub.Path)
	longer := max(len(sa), len(sb))
	if longer == 0 {
		return 1, true
	}
	shared := 0
	for i := 0; i < min(len(sa), len(sb)); i++ {
		if sa[i] == sb[i] {
			shared++
		}
	}
	return float64(shared) / float64(longer), true
}

func segments(p string) []string {
	var out []string
	for _, s := range strings.Split(p, "/") {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// TitleSimilarity is the case-insensitive token-set Jaccard ratio.
// An empty title on either side scores 0.
func TitleSimilarity(a, b string) float64 {
	ta, tb := tokens(a), tokens(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	inter := 0
	for t := range ta {
		if tb[t] {
			inter++
		}
	}
	union := len(ta) + len(tb) - inter
	return float64(inter) / float64(union)
}

func tokens(s string) map[string]bool {
	set := make(map[string]bool)
	for _, f := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r > 127)
	}) {
		set[f] = true
	}
	return set
}

// NumericCloseness is 1 − |a−b|/max(a,b), and 1 when both are zero.
func NumericCloseness(a, b int) float64 {
	if a < 0 || b < 0 {
		return 0
	}
	hi := max(a, b)
	if hi == 0 {
		return 1
	}
	return 1 - math.Abs(float64(a-b))/float64(hi)
}

// StructuralSimilarity is the multiset Jaccard ratio Σmin/Σmax over element
// tag counts. Two empty pages are identical; one empty page matches nothing.
func StructuralSimilarity(a, b map[string]int) float64 {
	ea, eb := total(a) == 0, total(b) == 0
	switch {
	case ea && eb:
		return 1
	case ea || eb:
		return 0
	}
	var lo, hi int
	for tag, ca := range a {
		cb := b[tag]
		lo += min(ca, cb)
		hi += max(ca, cb)
	}
	for tag, cb := range b {
		if _, ok := a[tag]; !ok {
			hi += cb
		}
	}
	return float64(lo) / float64(hi)
}

func total(m map[string]int) int {
	n := 0
	for _, c := range m {
		if c > 0 {
			n += c
		}
	}
	return n
}

// FunctionalSimilarity is the fraction of interactive, form and media
// counts plus the stats flag that match exactly.
func FunctionalSimilarity(a, b entity.FeatureVector) float64 {
	matches := 0
	if a.InteractiveElementCount == b.InteractiveElementCount {
		matches++
	}
	if a.FormElementCount == b.FormElementCount {
		matches++
	}
	if a.MediaElementCount == b.MediaElementCount {
		matches++
	}
	if a.IsStatsPage == b.IsStatsPage {
		matches++
	}
	return float64(matches) / 4
}

func clamp(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
