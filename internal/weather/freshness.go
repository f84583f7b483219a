package weather

import (
	"strings"
	"time"
)

// FreshnessWindow is how long a cached forward-window row is trusted.
const FreshnessWindow = 30 * time.Minute

// StoreTimeLayout is the fixed-width UTC layout update times are written in,
// so that textual ordering matches chronological ordering.
const StoreTimeLayout = "2006-01-02T15:04:05.000000Z07:00"

var updatedAtLayouts = []string{
	StoreTimeLayout,
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02 15:04:05",
}

// IsFresh reports whether lastUpdated is within FreshnessWindow of now.
// Exactly FreshnessWindow old is still fresh.
func IsFresh(lastUpdated, now time.Time) bool {
	return now.Sub(lastUpdated) <= FreshnessWindow
}

// IsFreshRaw is IsFresh over a stored timestamp. Unparseable values are
// never fresh.
func IsFreshRaw(raw string, now time.Time) bool {
	t, ok := ParseUpdatedAt(raw)
	if !ok {
		return false
	}
	return IsFresh(t, now)
}

// ParseUpdatedAt parses a stored update time in any of the layouts the
// supported drivers produce.
func ParseUpdatedAt(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range updatedAtLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FormatUpdatedAt renders t in StoreTimeLayout.
func FormatUpdatedAt(t time.Time) string {
	return t.UTC().Format(StoreTimeLayout)
}

// ReferenceUpdate picks the update time the freshness decision is based on:
// the row for start if present, otherwise the newest parseable update time.
func ReferenceUpdate(rows []CachedDay, start string) string {
	for _, r := range rows {
		if r.Day.Date == start {
			return r.UpdatedAt
		}
	}
	var (
		latestRaw string
		latest    time.Time
	)
	for _, r := range rows {
		t, ok := ParseUpdatedAt(r.UpdatedAt)
		if !ok {
			continue
		}
		if latestRaw == "" || t.After(latest) {
			latest = t
			latestRaw = r.UpdatedAt
		}
	}
	return latestRaw
}
