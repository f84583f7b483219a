package weather

import (
	"testing"
	"time"
)

func TestIsFreshBoundary(t *testing.T) {
	now := time.Date(2025, 3, 10, 4, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		age  time.Duration
		want bool
	}{
		{name: "just written", age: 0, want: true},
		{name: "29m59s old", age: 29*time.Minute + 59*time.Second, want: true},
		{name: "exactly 30m old", age: 30 * time.Minute, want: true},
		{name: "30m01s old", age: 30*time.Minute + time.Second, want: false},
		{name: "a day old", age: 24 * time.Hour, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsFresh(now.Add(-tt.age), now); got != tt.want {
				t.Errorf("IsFresh(age %v) = %v, want %v", tt.age, got, tt.want)
			}
			if got := IsFreshRaw(FormatUpdatedAt(now.Add(-tt.age)), now); got != tt.want {
				t.Errorf("IsFreshRaw(age %v) = %v, want %v", tt.age, got, tt.want)
			}
		})
	}
}

func TestIsFreshRawUnparseableIsStale(t *testing.T) {
	now := time.Now()
	for _, raw := range []string{"", "yesterday", "2025-13-45"} {
		if IsFreshRaw(raw, now) {
			t.Errorf("expected %q to be stale", raw)
		}
	}
}

func TestParseUpdatedAtLayouts(t *testing.T) {
	want := time.Date(2025, 3, 10, 2, 30, 0, 0, time.UTC)
	for _, raw := range []string{
		FormatUpdatedAt(want),
		"2025-03-10T10:30:00+08:00",
		"2025-03-10 02:30:00+00:00",
		"2025-03-10 02:30:00",
	} {
		got, ok := ParseUpdatedAt(raw)
		if !ok {
			t.Errorf("failed to parse %q", raw)
			continue
		}
		if !got.Equal(want) {
			t.Errorf("ParseUpdatedAt(%q) = %v, want %v", raw, got, want)
		}
	}
}

func TestFormatUpdatedAtSortsChronologically(t *testing.T) {
	a := FormatUpdatedAt(time.Date(2025, 3, 10, 9, 59, 59, 999000, time.UTC))
	b := FormatUpdatedAt(time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC))
	if !(a < b) {
		t.Fatalf("expected %s < %s", a, b)
	}
	if len(a) != len(b) {
		t.Fatalf("expected fixed width, got %d and %d", len(a), len(b))
	}
}

func TestReferenceUpdate(t *testing.T) {
	rows := []CachedDay{
		{Day: DailyWeather{Date: "2025-03-10"}, UpdatedAt: "2025-03-10T01:00:00.000000Z"},
		{Day: DailyWeather{Date: "2025-03-11"}, UpdatedAt: "2025-03-10T03:00:00.000000Z"},
		{Day: DailyWeather{Date: "2025-03-12"}, UpdatedAt: "garbage"},
	}

	if got := ReferenceUpdate(rows, "2025-03-10"); got != "2025-03-10T01:00:00.000000Z" {
		t.Errorf("expected start row update, got %q", got)
	}
	if got := ReferenceUpdate(rows[1:], "2025-03-10"); got != "2025-03-10T03:00:00.000000Z" {
		t.Errorf("expected newest update, got %q", got)
	}
	if got := ReferenceUpdate(rows[2:], "2025-03-10"); got != "" {
		t.Errorf("expected empty reference, got %q", got)
	}
	if got := ReferenceUpdate(nil, "2025-03-10"); got != "" {
		t.Errorf("expected empty reference for no rows, got %q", got)
	}
}
