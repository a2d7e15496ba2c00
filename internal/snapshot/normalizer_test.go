package snapshot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/crawlgraph/internal/entity"
)

func TestNormalizeRejectsIncompleteSnapshots(t *testing.T) {
	_, err := Normalize(entity.Snapshot{Elements: []entity.Element{}})
	assert.ErrorIs(t, err, ErrMissingURL)

	_, err = Normalize(entity.Snapshot{URL: "https://app.test/"})
	assert.ErrorIs(t, err, ErrMissingElements)
}

func TestNormalizeEmptyElementListIsValid(t *testing.T) {
	n, err := Normalize(entity.Snapshot{URL: "https://app.test/", Elements: []entity.Element{}})
	require.NoError(t, err)
	assert.Zero(t, n.Features.ElementCount)
	assert.False(t, n.Features.Timestamp.IsZero())
}

func TestNormalizeCounts(t *testing.T) {
	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	n, err := Normalize(entity.Snapshot{
		URL:           "https://app.test/users",
		Title:         "  Users  ",
		ScreenshotRef: "shots/1.png",
		Timestamp:     ts,
		Elements: []entity.Element{
			{Tag: "FORM", Selector: "#f"},
			{Tag: "input", Type: "search", Selector: "#q"},
			{Tag: "button", Selector: "#go", Text: "Search"},
			{Tag: "img", Selector: "img.logo"},
			{Tag: "div", Selector: ".card", Interactive: true},
			{Tag: "a", Href: "/users/2", Text: "Next"},
			{Tag: "a", Href: "#top", Text: "Top"},
		},
	})
	require.NoError(t, err)

	fv := n.Features
	assert.Equal(t, "Users", fv.Title)
	assert.Equal(t, 7, fv.ElementCount)
	assert.Equal(t, 5, fv.InteractiveElementCount) // input, button, div, two anchors
	assert.Equal(t, 2, fv.FormElementCount)
	assert.Equal(t, 1, fv.MediaElementCount)
	assert.True(t, fv.HasScreenshot)
	assert.False(t, fv.IsStatsPage)
	assert.Equal(t, ts, fv.Timestamp)

	assert.Equal(t, 2, n.ElementTypes["a"])
	assert.Equal(t, 1, n.ElementTypes["form"])
	assert.Equal(t, []string{"https://app.test/users/2"}, n.Links)
	assert.Contains(t, n.FeatureKinds, FeatureForms)
	assert.Contains(t, n.FeatureKinds, FeatureSearch)
	assert.Contains(t, n.FeatureKinds, FeatureMedia)
	assert.Contains(t, n.FeatureKinds, FeatureNavigation)
	assert.NotContains(t, n.FeatureKinds, FeatureStatistics)
}

func TestNormalizeStatsFlag(t *testing.T) {
	n, err := Normalize(entity.Snapshot{URL: "https://app.test/analytics", Elements: []entity.Element{}})
	require.NoError(t, err)
	assert.True(t, n.Features.IsStatsPage)
	assert.Contains(t, n.FeatureKinds, FeatureStatistics)

	no := false
	n, err = Normalize(entity.Snapshot{URL: "https://app.test/analytics", Elements: []entity.Element{}, IsStatsPage: &no})
	require.NoError(t, err)
	assert.False(t, n.Features.IsStatsPage)
}

func TestNormalizeClampsProbeScores(t *testing.T) {
	n, err := Normalize(entity.Snapshot{
		URL:                "https://app.test/",
		Elements:           []entity.Element{},
		AccessibilityScore: 3,
		PerformanceScore:   -1,
	})
	require.NoError(t, err)
	assert.Equal(t, 1.0, n.AccessibilityScore)
	assert.Equal(t, 0.0, n.PerformanceScore)
}

func TestElementKey(t *testing.T) {
	assert.Equal(t, "button|#save", ElementKey(entity.Element{Tag: "BUTTON", Selector: "#save"}))
	assert.Equal(t, "a#next", ElementKey(entity.Element{Tag: "a", Text: " Next "}))
}

func TestNormalizeDeduplicatesElementRefs(t *testing.T) {
	n, err := Normalize(entity.Snapshot{
		URL: "https://app.test/",
		Elements: []entity.Element{
			{Tag: "button", Selector: " #save ", Text: "Save"},
			{Tag: "BUTTON", Selector: "#save", Text: "Save again"},
			{Tag: "a", Text: " Next "},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, []ElementRef{
		{Key: "button|#save", Selector: "#save", Text: "save"},
		{Key: "a#next", Text: "next"},
	}, n.Elements)
}
