package entity

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Element is one DOM element reported by the in-page collector.
type Element struct {
	Tag         string `json:"tag"`            // node type, e.g. "button"
	Type        string `json:"type,omitempty"` // type attribute for inputs
	Selector    string `json:"selector,omitempty"`
	Text        string `json:"text,omitempty"`
	Href        string `json:"href,omitempty"`
	Interactive bool   `json:"interactive"`
	Visible     bool   `json:"visible"`
}

// Snapshot is a raw page capture as produced by the crawler. On the wire the
// url, title, elements and isStatsPage may be nested under
// fingerprint_seed_fields or given at top level.
type Snapshot struct {
	URL           string    `json:"url"`
	Title         string    `json:"title"`
	Elements      []Element `json:"elements"`
	IsStatsPage   *bool     `json:"isStatsPage,omitempty"`
	IsEntryPoint  bool      `json:"isEntryPoint,omitempty"`
	ScreenshotRef string    `json:"screenshotRef,omitempty"`
	Timestamp     time.Time `json:"timestamp"`

	// Optional probe results in [0,1]; zero when no probe ran.
	AccessibilityScore float64 `json:"accessibilityScore,omitempty"`
	PerformanceScore   float64 `json:"performanceScore,omitempty"`
}

type seedFields struct {
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	Elements    []Element `json:"elements"`
	IsStatsPage *bool     `json:"isStatsPage"`
}

// UnmarshalJSON accepts the nested fingerprint_seed_fields form, falling
// back to top-level fields, and a timestamp given as Unix milliseconds or
// an RFC 3339 string.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	type plain Snapshot
	var w struct {
		plain
		Seed      *seedFields     `json:"fingerprint_seed_fields"`
		Timestamp json.RawMessage `json:"timestamp"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	ts, err := parseTimestamp(w.Timestamp)
	if err != nil {
		return err
	}

	*s = Snapshot(w.plain)
	s.Timestamp = ts
	if seed := w.Seed; seed != nil {
		if seed.URL != "" {
			s.URL = seed.URL
		}
		if seed.Title != "" {
			s.Title = seed.Title
		}
		if seed.Elements != nil {
			s.Elements = seed.Elements
		}
		if seed.IsStatsPage != nil {
			s.IsStatsPage = seed.IsStatsPage
		}
	}
	return nil
}

func parseTimestamp(raw json.RawMessage) (time.Time, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return time.Time{}, nil
	}
	if raw[0] == '"' {
		var str string
		if err := json.Unmarshal(raw, &str); err != nil {
			return time.Time{}, err
		}
		if str == "" {
			return time.Time{}, nil
		}
		t, err := time.Parse(time.RFC3339Nano, str)
		if err != nil {
			return time.Time{}, fmt.Errorf("timestamp %q: %w", str, err)
		}
		return t, nil
	}
	var ms float64
	if err := json.Unmarshal(raw, &ms); err != nil {
		return time.Time{}, fmt.Errorf("timestamp %s: want unix milliseconds or RFC 3339", raw)
	}
	return time.UnixMilli(int64(ms)).UTC(), nil
}

// Action describes the gesture that moved the crawler from one state to another.
type Action struct {
	Type     string `json:"type"`
	Selector string `json:"selector,omitempty"`
	Text     string `json:"text,omitempty"`
}
