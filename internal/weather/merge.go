package weather

import "sort"

// MergeDaily combines day sets into one chronologically ordered slice with
// one entry per date. Sets are given in precedence order: once a date has
// been taken from an earlier set, later sets cannot overwrite it.
func MergeDaily(sets ...[]DailyWeather) []DailyWeather {
	byDate := make(map[string]DailyWeather)
	for _, set := range sets {
		for _, d := range set {
			if d.Date == "" {
				continue
			}
			if _, exists := byDate[d.Date]; exists {
				continue
			}
			byDate[d.Date] = d
		}
	}

	merged := make([]DailyWeather, 0, len(byDate))
	for _, d := range byDate {
		merged = append(merged, d)
	}
	// Dates are fixed-width and zero-padded, so string order is date order.
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Date < merged[j].Date
	})
	return merged
}
