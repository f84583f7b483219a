package weather

import (
	"testing"
	"time"
)

func TestParseCoordinate(t *testing.T) {
	tests := []struct {
		lat, lon string
		ok       bool
		key      string
	}{
		{"39.9042", "116.4074", true, "39.9042000,116.4074000"},
		{" 39.123456789 ", "-0.00000004", true, "39.1234568,0.0000000"},
		{"-90", "180", true, "-90.0000000,180.0000000"},
		{"90.1", "0", false, ""},
		{"0", "-180.5", false, ""},
		{"abc", "1", false, ""},
		{"", "", false, ""},
	}
	for _, tt := range tests {
		coord, ok := ParseCoordinate(tt.lat, tt.lon)
		if ok != tt.ok {
			t.Errorf("ParseCoordinate(%q, %q) ok = %v, want %v", tt.lat, tt.lon, ok, tt.ok)
			continue
		}
		if ok && coord.Key() != tt.key {
			t.Errorf("ParseCoordinate(%q, %q) key = %s, want %s", tt.lat, tt.lon, coord.Key(), tt.key)
		}
	}
}

func TestCoordinateEqualityAfterRounding(t *testing.T) {
	a, _ := ParseCoordinate("31.23040001", "121.47370001")
	b, _ := CoordinateFromFloat(31.2304, 121.4737)
	if a.Key() != b.Key() {
		t.Fatalf("expected equal keys, got %s and %s", a.Key(), b.Key())
	}
}

func TestTodayUsesCivilZone(t *testing.T) {
	tests := []struct {
		now  time.Time
		want string
	}{
		{time.Date(2025, 3, 9, 15, 59, 59, 0, time.UTC), "2025-03-09"},
		{time.Date(2025, 3, 9, 16, 0, 0, 0, time.UTC), "2025-03-10"},
		{time.Date(2025, 12, 31, 20, 0, 0, 0, time.UTC), "2026-01-01"},
	}
	for _, tt := range tests {
		if got := Today(tt.now); got != tt.want {
			t.Errorf("Today(%v) = %s, want %s", tt.now, got, tt.want)
		}
	}
}

func TestAddDays(t *testing.T) {
	got, err := AddDays("2025-03-01", -1)
	if err != nil {
		t.Fatalf("AddDays: %v", err)
	}
	if got != "2025-02-28" {
		t.Errorf("expected 2025-02-28, got %s", got)
	}
	if _, err := AddDays("bad", 1); err == nil {
		t.Error("expected error for invalid date")
	}
}

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		in   string
		want string
		err  bool
	}{
		{"2025-03-10", "2025-03-10", false},
		{"20250310", "2025-03-10", false},
		{"2025-03-10T00:00:00Z", "2025-03-10", false},
		{"2025-02-30", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := NormalizeDate(tt.in)
		if (err != nil) != tt.err {
			t.Errorf("NormalizeDate(%q) err = %v, want error %v", tt.in, err, tt.err)
			continue
		}
		if got != tt.want {
			t.Errorf("NormalizeDate(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCompactDate(t *testing.T) {
	d := DailyWeather{Date: "2025-03-10"}
	if got := d.CompactDate(); got != "20250310" {
		t.Fatalf("expected 20250310, got %s", got)
	}
}

func TestLocationRef(t *testing.T) {
	if (LocationRef{}).Valid() {
		t.Error("empty ref should be invalid")
	}
	if !(LocationRef{ID: "101010100"}).Valid() {
		t.Error("id ref should be valid")
	}
	coord, _ := ParseCoordinate("1", "2")
	if !(LocationRef{Coord: &coord}).Valid() {
		t.Error("coordinate ref should be valid")
	}
}
