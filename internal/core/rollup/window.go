package rollup

import (
	"fmt"
	"time"
)

// Window is a half-open aggregation interval [Start, End) of fixed length.
// Boundaries are aligned by truncation from the Unix epoch in UTC, so a
// timestamp maps to the same window no matter when aggregation runs.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether ts falls inside the window.
func (w Window) Contains(ts time.Time) bool {
	return !ts.Before(w.Start) && ts.Before(w.End)
}

// WindowOf maps a timestamp to its containing window of the given size.
// Pure and total: any valid timestamp and positive size yield a window.
// Example: WindowOf(10:35:42, 1h) → [10:00:00, 11:00:00)
func WindowOf(ts time.Time, size time.Duration) Window {
	start := ts.UTC().Truncate(size)
	return Window{Start: start, End: start.Add(size)}
}

// Classify reports whether a sample is active at the evaluation instant:
// active iff its age at evaluation is within the staleness threshold.
// A sample exactly at the threshold is active.
func Classify(sampleTS, evalInstant time.Time, staleThreshold time.Duration) bool {
	return evalInstant.Sub(sampleTS) <= staleThreshold
}

// ParseWindowSize parses a duration string into a window length.
// Supports Go duration syntax (e.g. "5m", "1h") plus "Xd" for days.
func ParseWindowSize(s string) (time.Duration, error) {
	if s == "" {
		return 0, fmt.Errorf("window size must not be empty")
	}

	// Handle "d" suffix (days), which time.ParseDuration does not support.
	if len(s) > 1 && s[len(s)-1] == 'd' {
		var days int
		if _, err := fmt.Sscanf(s, "%dd", &days); err != nil {
			return 0, fmt.Errorf("invalid window size %q: %w", s, err)
		}
		if days <= 0 {
			return 0, fmt.Errorf("window size must be positive, got %q", s)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid window size %q: %w", s, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("window size must be positive, got %q", s)
	}
	return d, nil
}
