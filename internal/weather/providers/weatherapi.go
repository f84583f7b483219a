package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-ics/internal/weather"
)

// WeatherAPIProvider implements weather.ForecastProvider for WeatherAPI.com.
type WeatherAPIProvider struct {
	name    string
	apiKey  string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewWeatherAPIProvider(client *http.Client, apiKey string, timeout time.Duration) *WeatherAPIProvider {
	return &WeatherAPIProvider{
		name:    "weatherapi",
		apiKey:  apiKey,
		baseURL: "https://api.weatherapi.com/v1/forecast.json",
		httpCfg: defaultHTTPConfig(client, timeout),
		circuit: newBreaker("weatherapi"),
	}
}

func (p *WeatherAPIProvider) Name() string {
	return p.name
}

func (p *WeatherAPIProvider) FetchForecast(ctx context.Context, ref weather.LocationRef) ([]weather.DailyWeather, error) {
	if p.apiKey == "" {
		return nil, upstreamErr(p.name, "weatherapi api key is not configured")
	}

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("key", p.apiKey)
		values.Set("days", "7")
		values.Set("lang", "zh")
		// WeatherAPI uses "q" for location; it accepts "lat,lon" or an id.
		if ref.Coord != nil {
			values.Set("q", ref.Coord.LatString()+","+ref.Coord.LonString())
		} else {
			values.Set("q", ref.ID)
		}

		return http.NewRequest(http.MethodGet, fmt.Sprintf("%s?%s", p.baseURL, values.Encode()), nil)
	}

	resp, cancel, err := doRequestWithResilience(ctx, p.name, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return nil, err
	}
	defer cancel()
	defer resp.Body.Close()

	var payload struct {
		Forecast struct {
			ForecastDay []struct {
				Date string `json:"date"`
				Day  struct {
					MaxTempC  float64 `json:"maxtemp_c"`
					MinTempC  float64 `json:"mintemp_c"`
					MaxWind   float64 `json:"maxwind_kph"`
					Condition struct {
						Text string `json:"text"`
						Code int    `json:"code"`
					} `json:"condition"`
				} `json:"day"`
				Astro struct {
					Sunrise string `json:"sunrise"`
					Sunset  string `json:"sunset"`
				} `json:"astro"`
			} `json:"forecastday"`
		} `json:"forecast"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, upstreamErr(p.name, "decode forecast: %v", err)
	}

	days := make([]weather.DailyWeather, 0, len(payload.Forecast.ForecastDay))
	for _, fd := range payload.Forecast.ForecastDay {
		days = append(days, weather.DailyWeather{
			Date:    fd.Date,
			Text:    fd.Day.Condition.Text,
			TempMin: fmt.Sprintf("%.0f", fd.Day.MinTempC),
			TempMax: fmt.Sprintf("%.0f", fd.Day.MaxTempC),
			Icon:    fmt.Sprintf("%d", fd.Day.Condition.Code),
			Wind:    fmt.Sprintf("%.0f km/h", fd.Day.MaxWind),
			Sunrise: to24h(fd.Astro.Sunrise),
			Sunset:  to24h(fd.Astro.Sunset),
		})
	}
	return days, nil
}

// to24h converts WeatherAPI's "06:12 AM" to "06:12".
func to24h(s string) string {
	t, err := time.Parse("03:04 PM", s)
	if err != nil {
		return ""
	}
	return t.Format("15:04")
}
