package weather

import (
	"time"

	"github.com/sixdouglas/suncalc"
)

// FillSunTimes computes sunrise/sunset for days the provider left blank.
// Times are rendered in CivilZone as HH:mm.
func FillSunTimes(days []DailyWeather, coord Coordinate) {
	for i := range days {
		if days[i].Sunrise != "" && days[i].Sunset != "" {
			continue
		}
		date, err := time.ParseInLocation(dateLayout, days[i].Date, CivilZone)
		if err != nil {
			continue
		}
		// Noon keeps the calculation on the intended solar day.
		times := suncalc.GetTimes(date.Add(12*time.Hour), coord.LatFloat(), coord.LonFloat())
		if days[i].Sunrise == "" {
			if rise, ok := times["sunrise"]; ok && !rise.Value.IsZero() {
				days[i].Sunrise = rise.Value.In(CivilZone).Format("15:04")
			}
		}
		if days[i].Sunset == "" {
			if set, ok := times["sunset"]; ok && !set.Value.IsZero() {
				days[i].Sunset = set.Value.In(CivilZone).Format("15:04")
			}
		}
	}
}
