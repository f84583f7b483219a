package providers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-ics/internal/weather"
)

const (
	qweatherDefaultHost = "devapi.qweather.com"
	qweatherLang        = "zh-hans"

	// DefaultHistoryBatchSize and DefaultHistoryBatchPause keep the live
	// history fan-out inside QWeather's rate limits.
	DefaultHistoryBatchSize  = 3
	DefaultHistoryBatchPause = time.Second
)

// QWeatherProvider implements weather.ForecastProvider and
// weather.HistoryProvider for QWeather (HeFeng).
type QWeatherProvider struct {
	name    string
	apiKey  string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker

	batchSize  int
	batchPause time.Duration
}

// QWeatherBaseURL returns the API base for an optional private host.
func QWeatherBaseURL(host string) string {
	host = strings.TrimSpace(host)
	if host == "" {
		host = qweatherDefaultHost
	}
	if strings.HasPrefix(host, "http://") || strings.HasPrefix(host, "https://") {
		return strings.TrimRight(host, "/")
	}
	return "https://" + strings.TrimRight(host, "/")
}

func NewQWeatherProvider(client *http.Client, apiKey, host string, timeout time.Duration) *QWeatherProvider {
	return &QWeatherProvider{
		name:       "qweather",
		apiKey:     apiKey,
		baseURL:    QWeatherBaseURL(host),
		httpCfg:    defaultHTTPConfig(client, timeout),
		circuit:    newBreaker("qweather"),
		batchSize:  DefaultHistoryBatchSize,
		batchPause: DefaultHistoryBatchPause,
	}
}

func (p *QWeatherProvider) Name() string {
	return p.name
}

// qweatherLocation formats a reference the way QWeather expects it:
// a location id, or "lon,lat" with at most two decimals.
func qweatherLocation(ref weather.LocationRef) (string, error) {
	if ref.ID != "" {
		return ref.ID, nil
	}
	if ref.Coord != nil {
		return ref.Coord.Lon.StringFixed(2) + "," + ref.Coord.Lat.StringFixed(2), nil
	}
	return "", weather.ErrNoLocation
}

func (p *QWeatherProvider) get(ctx context.Context, path string, values url.Values, out any) error {
	if p.apiKey == "" {
		return upstreamErr(p.name, "qweather api key is not configured")
	}
	values.Set("key", p.apiKey)
	values.Set("lang", qweatherLang)

	buildRequest := func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, p.baseURL+path+"?"+values.Encode(), nil)
	}

	resp, cancel, err := doRequestWithResilience(ctx, p.name, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return err
	}
	defer cancel()
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return upstreamErr(p.name, "decode %s: %v", path, err)
	}
	return nil
}

type qweatherDaily struct {
	FxDate     string `json:"fxDate"`
	Sunrise    string `json:"sunrise"`
	Sunset     string `json:"sunset"`
	TempMax    string `json:"tempMax"`
	TempMin    string `json:"tempMin"`
	IconDay    string `json:"iconDay"`
	TextDay    string `json:"textDay"`
	WindDirDay string `json:"windDirDay"`
}

func (p *QWeatherProvider) FetchForecast(ctx context.Context, ref weather.LocationRef) ([]weather.DailyWeather, error) {
	loc, err := qweatherLocation(ref)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Code  string          `json:"code"`
		Daily []qweatherDaily `json:"daily"`
	}
	values := url.Values{}
	values.Set("location", loc)
	if err := p.get(ctx, "/v7/weather/7d", values, &payload); err != nil {
		return nil, err
	}
	if payload.Code != "200" {
		return nil, upstreamErr(p.name, "api returned code %s", payload.Code)
	}

	days := make([]weather.DailyWeather, 0, len(payload.Daily))
	for _, d := range payload.Daily {
		days = append(days, weather.DailyWeather{
			Date:    d.FxDate,
			Text:    d.TextDay,
			TempMin: d.TempMin,
			TempMax: d.TempMax,
			Icon:    d.IconDay,
			Wind:    d.WindDirDay,
			Sunrise: d.Sunrise,
			Sunset:  d.Sunset,
		})
	}
	return days, nil
}

// FetchHistory fetches each date individually in small batches with a
// pause in between. Failed days are logged and left out.
func (p *QWeatherProvider) FetchHistory(ctx context.Context, ref weather.LocationRef, dates []string) ([]weather.DailyWeather, error) {
	if ref.ID == "" {
		return nil, upstreamErr(p.name, "historical weather requires a location id")
	}

	batchSize := p.batchSize
	if batchSize <= 0 {
		batchSize = DefaultHistoryBatchSize
	}

	var (
		mu   sync.Mutex
		days []weather.DailyWeather
	)
	for start := 0; start < len(dates); start += batchSize {
		if start > 0 && p.batchPause > 0 {
			select {
			case <-ctx.Done():
				return days, ctx.Err()
			case <-time.After(p.batchPause):
			}
		}

		end := start + batchSize
		if end > len(dates) {
			end = len(dates)
		}

		var wg sync.WaitGroup
		for _, date := range dates[start:end] {
			date := date
			wg.Add(1)
			go func() {
				defer wg.Done()

				day, err := p.fetchHistoricalDay(ctx, ref.ID, date)
				if err != nil {
					log.Printf("WARN: qweather history for %s on %s: %v", ref.ID, date, err)
					return
				}

				mu.Lock()
				days = append(days, day)
				mu.Unlock()
			}()
		}
		wg.Wait()
	}
	return days, nil
}

func (p *QWeatherProvider) fetchHistoricalDay(ctx context.Context, locationID, date string) (weather.DailyWeather, error) {
	norm, err := weather.NormalizeDate(date)
	if err != nil {
		return weather.DailyWeather{}, err
	}

	var payload struct {
		Code         string `json:"code"`
		WeatherDaily struct {
			Date    string `json:"date"`
			Sunrise string `json:"sunrise"`
			Sunset  string `json:"sunset"`
			TempMax string `json:"tempMax"`
			TempMin string `json:"tempMin"`
		} `json:"weatherDaily"`
		WeatherHourly []struct {
			Text    string `json:"text"`
			Icon    string `json:"icon"`
			WindDir string `json:"windDir"`
		} `json:"weatherHourly"`
	}
	values := url.Values{}
	values.Set("location", locationID)
	values.Set("date", strings.ReplaceAll(norm, "-", ""))
	if err := p.get(ctx, "/v7/historical/weather", values, &payload); err != nil {
		return weather.DailyWeather{}, err
	}
	if payload.Code != "200" {
		return weather.DailyWeather{}, upstreamErr(p.name, "historical api returned code %s", payload.Code)
	}

	day := weather.DailyWeather{
		Date:    norm,
		TempMin: payload.WeatherDaily.TempMin,
		TempMax: payload.WeatherDaily.TempMax,
		Sunrise: payload.WeatherDaily.Sunrise,
		Sunset:  payload.WeatherDaily.Sunset,
	}
	// The daily block carries no condition; use the midday hour.
	if n := len(payload.WeatherHourly); n > 0 {
		h := payload.WeatherHourly[n/2]
		day.Text, day.Icon, day.Wind = h.Text, h.Icon, h.WindDir
	}
	return day, nil
}
