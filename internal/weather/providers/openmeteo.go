package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-ics/internal/weather"
)

// OpenMeteoProvider implements weather.ForecastProvider for Open-Meteo.
// It needs no API key but only understands coordinates.
type OpenMeteoProvider struct {
	name    string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewOpenMeteoProvider(client *http.Client, timeout time.Duration) *OpenMeteoProvider {
	return &OpenMeteoProvider{
		name:    "openmeteo",
		baseURL: "https://api.open-meteo.com/v1/forecast",
		httpCfg: defaultHTTPConfig(client, timeout),
		circuit: newBreaker("openmeteo"),
	}
}

func (p *OpenMeteoProvider) Name() string {
	return p.name
}

func (p *OpenMeteoProvider) FetchForecast(ctx context.Context, ref weather.LocationRef) ([]weather.DailyWeather, error) {
	if ref.Coord == nil {
		return nil, upstreamErr(p.name, "openmeteo requires latitude and longitude")
	}

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("latitude", ref.Coord.LatString())
		values.Set("longitude", ref.Coord.LonString())
		values.Set("daily", "weathercode,temperature_2m_max,temperature_2m_min,sunrise,sunset,winddirection_10m_dominant")
		values.Set("timezone", "Asia/Shanghai")
		values.Set("forecast_days", "7")

		return http.NewRequest(http.MethodGet, fmt.Sprintf("%s?%s", p.baseURL, values.Encode()), nil)
	}

	resp, cancel, err := doRequestWithResilience(ctx, p.name, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return nil, err
	}
	defer cancel()
	defer resp.Body.Close()

	var payload struct {
		Daily struct {
			Time        []string  `json:"time"`
			WeatherCode []int     `json:"weathercode"`
			TempMax     []float64 `json:"temperature_2m_max"`
			TempMin     []float64 `json:"temperature_2m_min"`
			Sunrise     []string  `json:"sunrise"`
			Sunset      []string  `json:"sunset"`
			WindDir     []float64 `json:"winddirection_10m_dominant"`
		} `json:"daily"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, upstreamErr(p.name, "decode forecast: %v", err)
	}

	d := payload.Daily
	days := make([]weather.DailyWeather, 0, len(d.Time))
	for i, date := range d.Time {
		day := weather.DailyWeather{Date: date}
		if i < len(d.WeatherCode) {
			day.Text = openMeteoConditionText(d.WeatherCode[i])
			day.Icon = fmt.Sprintf("%d", d.WeatherCode[i])
		}
		if i < len(d.TempMin) {
			day.TempMin = fmt.Sprintf("%.0f", d.TempMin[i])
		}
		if i < len(d.TempMax) {
			day.TempMax = fmt.Sprintf("%.0f", d.TempMax[i])
		}
		if i < len(d.Sunrise) {
			day.Sunrise = clockPart(d.Sunrise[i])
		}
		if i < len(d.Sunset) {
			day.Sunset = clockPart(d.Sunset[i])
		}
		if i < len(d.WindDir) {
			day.Wind = compassPoint(d.WindDir[i])
		}
		days = append(days, day)
	}
	return days, nil
}

// openMeteoConditionText maps WMO weather codes to short English text.
func openMeteoConditionText(code int) string {
	switch {
	case code == 0:
		return "Clear"
	case code >= 1 && code <= 2:
		return "Partly cloudy"
	case code == 3:
		return "Overcast"
	case code == 45 || code == 48:
		return "Fog"
	case code >= 51 && code <= 57:
		return "Drizzle"
	case (code >= 61 && code <= 67) || (code >= 80 && code <= 82):
		return "Rain"
	case (code >= 71 && code <= 77) || code == 85 || code == 86:
		return "Snow"
	case code >= 95:
		return "Thunderstorm"
	default:
		return "Unknown"
	}
}

// clockPart turns "2025-01-02T06:59" into "06:59".
func clockPart(iso string) string {
	if i := strings.IndexByte(iso, 'T'); i >= 0 && len(iso) >= i+6 {
		return iso[i+1 : i+6]
	}
	return ""
}

func compassPoint(deg float64) string {
	points := []string{"N", "NE", "E", "SE", "S", "SW", "W", "NW"}
	idx := int((deg+22.5)/45) % len(points)
	if idx < 0 {
		idx += len(points)
	}
	return points[idx]
}
