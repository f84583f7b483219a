package weather

import (
	"log"
	"time"
)

// projectCached resolves provenance and update time for rows read from the
// cache. An unparseable stored time falls back to now; the calendar always
// prints an update line.
func projectCached(rows []CachedDay, now time.Time) []DailyWeather {
	out := make([]DailyWeather, 0, len(rows))
	for _, r := range rows {
		d := r.Day
		d.FromCache = true
		if t, ok := ParseUpdatedAt(r.UpdatedAt); ok {
			d.UpdatedAt = t
		} else {
			log.Printf("WARN: unparseable cached updated_at %q for %s; using now", r.UpdatedAt, d.Date)
			d.UpdatedAt = now
		}
		out = append(out, d)
	}
	return out
}

// projectLive stamps freshly fetched rows.
func projectLive(days []DailyWeather, now time.Time) []DailyWeather {
	out := make([]DailyWeather, 0, len(days))
	for _, d := range days {
		if norm, err := NormalizeDate(d.Date); err == nil {
			d.Date = norm
		} else {
			log.Printf("WARN: dropping provider row with %v", err)
			continue
		}
		d.FromCache = false
		d.UpdatedAt = now
		out = append(out, d)
	}
	return out
}
