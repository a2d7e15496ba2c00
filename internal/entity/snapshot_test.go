package entity

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotUnmarshalSeedFields(t *testing.T) {
	var s Snapshot
	err := json.Unmarshal([]byte(`{
		"fingerprint_seed_fields": {
			"url": "https://app.test/",
			"title": "Home",
			"elements": [{"tag": "button", "interactive": true}],
			"isStatsPage": true
		},
		"screenshotRef": "shots/home.png",
		"timestamp": 1700000000000
	}`), &s)
	require.NoError(t, err)

	assert.Equal(t, "https://app.test/", s.URL)
	assert.Equal(t, "Home", s.Title)
	require.Len(t, s.Elements, 1)
	assert.Equal(t, "button", s.Elements[0].Tag)
	require.NotNil(t, s.IsStatsPage)
	assert.True(t, *s.IsStatsPage)
	assert.Equal(t, "shots/home.png", s.ScreenshotRef)
	assert.Equal(t, time.UnixMilli(1700000000000).UTC(), s.Timestamp)
}

func TestSnapshotUnmarshalFlatFields(t *testing.T) {
	var s Snapshot
	err := json.Unmarshal([]byte(`{
		"url": "https://app.test/a",
		"title": "A",
		"elements": [],
		"timestamp": "2024-05-01T12:00:00Z"
	}`), &s)
	require.NoError(t, err)

	assert.Equal(t, "https://app.test/a", s.URL)
	assert.NotNil(t, s.Elements)
	assert.Nil(t, s.IsStatsPage)
	assert.Equal(t, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), s.Timestamp)
}

func TestSnapshotUnmarshalTimestamp(t *testing.T) {
	for _, tc := range []struct {
		name string
		raw  string
		want time.Time
	}{
		{"absent", `{}`, time.Time{}},
		{"null", `{"timestamp": null}`, time.Time{}},
		{"unix ms", `{"timestamp": 1700000000123}`, time.UnixMilli(1700000000123).UTC()},
		{"rfc3339", `{"timestamp": "2024-05-01T12:00:00.5+02:00"}`, time.Date(2024, 5, 1, 10, 0, 0, 5e8, time.UTC)},
	} {
		t.Run(tc.name, func(t *testing.T) {
			var s Snapshot
			require.NoError(t, json.Unmarshal([]byte(tc.raw), &s))
			assert.True(t, tc.want.Equal(s.Timestamp), "got %v", s.Timestamp)
		})
	}

	var s Snapshot
	assert.Error(t, json.Unmarshal([]byte(`{"timestamp": "yesterday"}`), &s))
	assert.Error(t, json.Unmarshal([]byte(`{"timestamp": true}`), &s))
}
