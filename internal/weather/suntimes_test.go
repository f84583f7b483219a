package weather

import "testing"

func TestFillSunTimes(t *testing.T) {
	beijing, _ := ParseCoordinate("39.9042", "116.4074")
	days := []DailyWeather{
		{Date: "2025-03-10"},
		{Date: "2025-03-11", Sunrise: "06:00", Sunset: "18:00"},
		{Date: "not-a-date"},
	}

	FillSunTimes(days, beijing)

	if days[0].Sunrise < "06:00" || days[0].Sunrise > "07:00" {
		t.Errorf("unexpected sunrise %q", days[0].Sunrise)
	}
	if days[0].Sunset < "18:00" || days[0].Sunset > "19:00" {
		t.Errorf("unexpected sunset %q", days[0].Sunset)
	}
	if days[1].Sunrise != "06:00" || days[1].Sunset != "18:00" {
		t.Errorf("provider times should be kept, got %s/%s", days[1].Sunrise, days[1].Sunset)
	}
	if days[2].Sunrise != "" || days[2].Sunset != "" {
		t.Errorf("invalid dates should be skipped, got %s/%s", days[2].Sunrise, days[2].Sunset)
	}
}
