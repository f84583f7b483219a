package weather

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CoordinatePrecision is the number of decimal places coordinates are
// rounded to before they are used as cache keys (DECIMAL(10,7)).
const CoordinatePrecision = 7

// CivilZone is the fixed civil calendar used to decide what "today" is.
var CivilZone = time.FixedZone("UTC+8", 8*60*60)

const (
	dateLayout        = "2006-01-02"
	compactDateLayout = "20060102"
)

// DailyWeather is one calendar day's weather at one location.
type DailyWeather struct {
	// Date is always the canonical YYYY-MM-DD form.
	Date    string `json:"date"`
	Text    string `json:"text"`
	TempMin string `json:"tempMin"`
	TempMax string `json:"tempMax"`
	Icon    string `json:"icon,omitempty"`
	Wind    string `json:"wind,omitempty"`
	Sunrise string `json:"sunrise,omitempty"` // HH:mm
	Sunset  string `json:"sunset,omitempty"`  // HH:mm

	// FromCache and UpdatedAt are resolved during assembly and never persisted.
	FromCache bool      `json:"fromCache"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CompactDate returns the date as YYYYMMDD, the form used in calendar output.
func (d DailyWeather) CompactDate() string {
	return strings.ReplaceAll(d.Date, "-", "")
}

// CachedDay is a row as read back from the cache store. UpdatedAt is the raw
// stored value; it is only turned into a time during projection.
type CachedDay struct {
	Day       DailyWeather
	UpdatedAt string
}

// Coordinate is a latitude/longitude pair held at a fixed precision so that it
// can be compared for equality in storage.
type Coordinate struct {
	Lat decimal.Decimal
	Lon decimal.Decimal
}

// ParseCoordinate parses textual latitude and longitude. It reports false
// for anything unparseable or out of range.
func ParseCoordinate(lat, lon string) (Coordinate, bool) {
	la, err := decimal.NewFromString(strings.TrimSpace(lat))
	if err != nil {
		return Coordinate{}, false
	}
	lo, err := decimal.NewFromString(strings.TrimSpace(lon))
	if err != nil {
		return Coordinate{}, false
	}
	return NewCoordinate(la, lo)
}

// NewCoordinate rounds lat/lon to CoordinatePrecision and validates ranges.
func NewCoordinate(lat, lon decimal.Decimal) (Coordinate, bool) {
	if lat.Abs().GreaterThan(decimal.NewFromInt(90)) || lon.Abs().GreaterThan(decimal.NewFromInt(180)) {
		return Coordinate{}, false
	}
	return Coordinate{
		Lat: lat.Round(CoordinatePrecision),
		Lon: lon.Round(CoordinatePrecision),
	}, true
}

// CoordinateFromFloat is a convenience for providers that report floats.
func CoordinateFromFloat(lat, lon float64) (Coordinate, bool) {
	return NewCoordinate(decimal.NewFromFloat(lat), decimal.NewFromFloat(lon))
}

// LatString and LonString return the fixed-precision storage form.
func (c Coordinate) LatString() string { return c.Lat.StringFixed(CoordinatePrecision) }
func (c Coordinate) LonString() string { return c.Lon.StringFixed(CoordinatePrecision) }

// Key returns a canonical string key for indexing this coordinate.
func (c Coordinate) Key() string {
	return c.LatString() + "," + c.LonString()
}

// LatFloat and LonFloat are for calculations that need floats.
func (c Coordinate) LatFloat() float64 { return c.Lat.InexactFloat64() }
func (c Coordinate) LonFloat() float64 { return c.Lon.InexactFloat64() }

// LocationRef is what the upstream providers are asked about: either an
// explicit provider location id or a coordinate.
type LocationRef struct {
	ID    string
	Coord *Coordinate
}

// Valid reports whether the reference names any location at all.
func (r LocationRef) Valid() bool {
	return r.ID != "" || r.Coord != nil
}

func (r LocationRef) String() string {
	if r.ID != "" {
		return "id:" + r.ID
	}
	if r.Coord != nil {
		return r.Coord.Key()
	}
	return "<none>"
}

// Today returns the current date in the civil zone as YYYY-MM-DD.
func Today(now time.Time) string {
	return now.In(CivilZone).Format(dateLayout)
}

// AddDays shifts a YYYY-MM-DD date by n days.
func AddDays(date string, n int) (string, error) {
	t, err := time.Parse(dateLayout, date)
	if err != nil {
		return "", fmt.Errorf("invalid date %q: %w", date, err)
	}
	return t.AddDate(0, 0, n).Format(dateLayout), nil
}

// NormalizeDate accepts YYYY-MM-DD or YYYYMMDD and returns YYYY-MM-DD.
func NormalizeDate(s string) (string, error) {
	s = strings.TrimSpace(s)
	if len(s) > len(dateLayout) {
		// Drivers sometimes hand back full timestamps for DATE columns.
		s = s[:len(dateLayout)]
	}
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t.Format(dateLayout), nil
	}
	if t, err := time.Parse(compactDateLayout, s); err == nil {
		return t.Format(dateLayout), nil
	}
	return "", fmt.Errorf("invalid date %q", s)
}
