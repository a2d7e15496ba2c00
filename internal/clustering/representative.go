package clustering

import (
	"math"
	"net/url"
	"sort"
	"strings"

	"github.com/user/crawlgraph/internal/entity"
)

var highValueKeywords = []string{"dashboard", "admin", "settings", "account", "profile", "analytics"}

var homePaths = map[string]bool{
	"":            true,
	"/":           true,
	"/home":       true,
	"/index":      true,
	"/index.html": true,
	"/index.php":  true,
}

// Centrality is a heuristic importance score for a node. It is a tie-break
// aid, not a measurement.
func Centrality(n *entity.Node) float64 {
	if n == nil {
		return 0
	}
	fv := n.Features
	lowerURL := strings.ToLower(fv.URL)

	score := 0.0
	for _, kw := range highValueKeywords {
		if strings.Contains(lowerURL, kw) {
			score += 2
			break
		}
	}
	if isHome(fv.URL) {
		score++
	}
	if strings.TrimSpace(fv.Title) != "" {
		score++
	}
	score += math.Min(2, float64(fv.ElementCount)/10)
	score += math.Min(2, float64(fv.InteractiveElementCount)/5)
	if fv.HasScreenshot {
		score++
	}
	if fv.IsStatsPage {
		score += 2
	}
	return score
}

func isHome(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}
	return homePaths[strings.ToLower(strings.TrimRight(u.Path, "/"))]
}

// SelectRepresentative returns the most central member, the earliest one on
// ties. A single member is returned as is; nil for an empty slice.
func SelectRepresentative(members []*entity.Node) *entity.Node {
	switch len(members) {
	case 0:
		return nil
	case 1:
		return members[0]
	}
	best := members[0]
	bestScore := Centrality(best)
	for _, m := range members[1:] {
		if s := Centrality(m); s > bestScore {
			best, bestScore = m, s
		}
	}
	return best
}

// TopK returns the k most central members, ordered by score and then by
// their position in members.
func TopK(members []*entity.Node, k int) []*entity.Node {
	if k <= 0 {
		return nil
	}
	ranked := make([]*entity.Node, len(members))
	copy(ranked, members)
	scores := make(map[*entity.Node]float64, len(members))
	for _, m := range members {
		scores[m] = Centrality(m)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return scores[ranked[i]] > scores[ranked[j]]
	})
	if k < len(ranked) {
		ranked = ranked[:k]
	}
	return ranked
}
