// Package snapshot turns raw crawler captures into canonical feature vectors.
package snapshot

import (
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/user/crawlgraph/internal/entity"
	"github.com/user/crawlgraph/pkg/utils"
)

var (
	ErrMissingURL      = errors.New("snapshot has no url")
	ErrMissingElements = errors.New("snapshot has no element list")
)

// Feature kinds detected from page elements, used by coverage accounting.
const (
	FeatureForms          = "forms"
	FeatureNavigation     = "navigation"
	FeatureSearch         = "search"
	FeatureMedia          = "media"
	FeatureAuthentication = "authentication"
	FeatureStatistics     = "statistics"
	FeatureTables         = "tables"
	FeatureDialogs        = "dialogs"
)

// FeatureCatalog is every feature kind the normalizer can detect.
var FeatureCatalog = []string{
	FeatureForms,
	FeatureNavigation,
	FeatureSearch,
	FeatureMedia,
	FeatureAuthentication,
	FeatureStatistics,
	FeatureTables,
	FeatureDialogs,
}

var (
	interactiveTags = map[string]bool{"a": true, "button": true, "input": true, "select": true, "textarea": true}
	formTags        = map[string]bool{"form": true, "input": true, "select": true, "textarea": true}
	mediaTags       = map[string]bool{"img": true, "video": true, "audio": true, "picture": true, "canvas": true, "svg": true}
	statsKeywords   = []string{"stats", "statistics", "analytics", "dashboard", "metrics", "report"}
	authKeywords    = []string{"login", "log in", "sign in", "signin", "logout", "sign out", "password", "register", "sign up"}
)

// Normalized is a snapshot reduced to what the graph engine consumes.
type Normalized struct {
	Features     entity.FeatureVector
	ElementTypes map[string]int
	// Elements lists each distinct element of the page once, in page order.
	Elements []ElementRef
	// Links are the canonical http(s) targets of anchors on the page.
	Links        []string
	FeatureKinds []string

	IsEntryPoint       bool
	AccessibilityScore float64
	PerformanceScore   float64
}

// Normalize validates a raw snapshot and derives its feature vector.
func Normalize(s entity.Snapshot) (Normalized, error) {
	rawURL := strings.TrimSpace(s.URL)
	if rawURL == "" {
		return Normalized{}, ErrMissingURL
	}
	if s.Elements == nil {
		return Normalized{}, ErrMissingElements
	}

	ts := s.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	fv := entity.FeatureVector{
		URL:           rawURL,
		Title:         strings.TrimSpace(s.Title),
		ElementCount:  len(s.Elements),
		HasScreenshot: strings.TrimSpace(s.ScreenshotRef) != "",
		Timestamp:     ts,
	}

	types := make(map[string]int)
	refs := make([]ElementRef, 0, len(s.Elements))
	seenKeys := make(map[string]bool)
	var links []string
	seenLinks := make(map[string]bool)
	base, baseErr := url.Parse(rawURL)

	for _, el := range s.Elements {
		tag := strings.ToLower(strings.TrimSpace(el.Tag))
		if tag == "" {
			tag = "unknown"
		}
		types[tag]++

		if el.Interactive || interactiveTags[tag] {
			fv.InteractiveElementCount++
		}
		if formTags[tag] {
			fv.FormElementCount++
		}
		if mediaTags[tag] {
			fv.MediaElementCount++
		}

		if k := ElementKey(el); !seenKeys[k] {
			seenKeys[k] = true
			refs = append(refs, ElementRef{
				Key:      k,
				Selector: strings.TrimSpace(el.Selector),
				Text:     strings.ToLower(strings.TrimSpace(el.Text)),
			})
		}

		if tag == "a" && el.Href != "" && baseErr == nil {
			if link, ok := resolveLink(base, el.Href); ok && !seenLinks[link] {
				seenLinks[link] = true
				links = append(links, link)
			}
		}
	}

	if s.IsStatsPage != nil {
		fv.IsStatsPage = *s.IsStatsPage
	} else {
		fv.IsStatsPage = looksLikeStats(fv.URL, fv.Title)
	}

	return Normalized{
		Features:           fv,
		ElementTypes:       types,
		Elements:           refs,
		Links:              links,
		FeatureKinds:       detectFeatures(fv, s.Elements),
		IsEntryPoint:       s.IsEntryPoint,
		AccessibilityScore: clamp01(s.AccessibilityScore),
		PerformanceScore:   clamp01(s.PerformanceScore),
	}, nil
}

// ElementRef is a deduplicated element with the handles actions use to
// target it. Text is lower-cased.
type ElementRef struct {
	Key      string
	Selector string
	Text     string
}

// ElementKey identifies an element across snapshots: tag plus selector, or
// tag plus visible text when the collector supplied no selector.
func ElementKey(el entity.Element) string {
	tag := strings.ToLower(strings.TrimSpace(el.Tag))
	if sel := strings.TrimSpace(el.Selector); sel != "" {
		return tag + "|" + sel
	}
	return tag + "#" + strings.ToLower(strings.TrimSpace(el.Text))
}

func resolveLink(base *url.URL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") ||
		strings.HasPrefix(strings.ToLower(href), "mailto:") {
		return "", false
	}
	abs, err := utils.ToAbsoluteURL(base, href)
	if err != nil {
		return "", false
	}
	u, err := url.Parse(abs)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return "", false
	}
	return utils.CanonicalURL(abs), true
}

func looksLikeStats(rawURL, title string) bool {
	return containsAny(strings.ToLower(rawURL), statsKeywords) || containsAny(strings.ToLower(title), statsKeywords)
}

func detectFeatures(fv entity.FeatureVector, elements []entity.Element) []string {
	found := make(map[string]bool)
	for _, el := range elements {
		tag := strings.ToLower(el.Tag)
		typ := strings.ToLower(el.Type)
		text := strings.ToLower(el.Text + " " + el.Selector)
		switch {
		case tag == "form" || tag == "textarea" || tag == "select":
			found[FeatureForms] = true
		case tag == "nav":
			found[FeatureNavigation] = true
		case tag == "table":
			found[FeatureTables] = true
		case tag == "dialog":
			found[FeatureDialogs] = true
		}
		if tag == "input" {
			found[FeatureForms] = true
			if typ == "search" {
				found[FeatureSearch] = true
			}
			if typ == "password" {
				found[FeatureAuthentication] = true
			}
		}
		if tag == "a" && el.Href != "" {
			found[FeatureNavigation] = true
		}
		if mediaTags[tag] {
			found[FeatureMedia] = true
		}
		if strings.Contains(text, "search") {
			found[FeatureSearch] = true
		}
		if containsAny(text, authKeywords) {
			found[FeatureAuthentication] = true
		}
		if strings.Contains(text, "modal") || strings.Contains(text, "dialog") {
			found[FeatureDialogs] = true
		}
	}
	if fv.IsStatsPage {
		found[FeatureStatistics] = true
	}

	kinds := make([]string, 0, len(found))
	for _, k := range FeatureCatalog {
		if found[k] {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
