package weather

import "github.com/i474232898/weather-ics/internal/common"

// Condition represents a normalized high-level weather condition.
type Condition string

const (
	ConditionUnknown  Condition = "unknown"
	ConditionClear    Condition = "clear"
	ConditionOvercast Condition = "overcast"
	ConditionCloudy   Condition = "cloudy"
	ConditionRain     Condition = "rain"
	ConditionSnow     Condition = "snow"
	ConditionStorm    Condition = "storm"
	ConditionFog      Condition = "fog"
)

var pictograms = map[Condition]string{
	ConditionClear:    "☀️",
	ConditionOvercast: "🌥️",
	ConditionCloudy:   "☁️",
	ConditionRain:     "🌧️",
	ConditionSnow:     "❄️",
	ConditionStorm:    "⛈️",
	ConditionFog:      "🌫️",
	ConditionUnknown:  "🌡️",
}

// ClassifyCondition maps free condition text (Chinese or English) to a
// Condition by keyword. Thunder is checked before rain so that thunder
// showers get the storm pictogram.
func ClassifyCondition(text string) Condition {
	switch {
	case text == "":
		return ConditionUnknown
	case common.HasAny(text, "雷", "thunder", "storm"):
		return ConditionStorm
	case common.HasAny(text, "雪", "snow", "sleet", "blizzard"):
		return ConditionSnow
	case common.HasAny(text, "雨", "rain", "shower", "drizzle"):
		return ConditionRain
	case common.HasAny(text, "雾", "霾", "fog", "mist", "haze"):
		return ConditionFog
	case common.HasAny(text, "晴", "clear", "sunny"):
		return ConditionClear
	case common.HasAny(text, "阴", "overcast"):
		return ConditionOvercast
	case common.HasAny(text, "云", "cloud"):
		return ConditionCloudy
	default:
		return ConditionUnknown
	}
}

// Pictogram returns the emoji shown in calendar summaries.
func (c Condition) Pictogram() string {
	if p, ok := pictograms[c]; ok {
		return p
	}
	return pictograms[ConditionUnknown]
}

// Pictogram is a shortcut for ClassifyCondition(text).Pictogram().
func Pictogram(text string) string {
	return ClassifyCondition(text).Pictogram()
}
