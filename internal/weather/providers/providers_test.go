package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/i474232898/weather-ics/internal/weather"
)

func fastBackoff(cfg *HTTPClientConfig) {
	cfg.Backoff.InitialInterval = time.Millisecond
	cfg.Backoff.MaxInterval = 5 * time.Millisecond
}

func beijing(t *testing.T) *weather.Coordinate {
	t.Helper()
	c, ok := weather.ParseCoordinate("39.9042", "116.4074")
	if !ok {
		t.Fatal("invalid coordinate")
	}
	return &c
}

func TestDoRequestRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		if ua := r.Header.Get("User-Agent"); ua != userAgent {
			t.Errorf("unexpected user agent %q", ua)
		}
		fmt.Fprint(w, "ok")
	}))
	defer srv.Close()

	cfg := defaultHTTPConfig(srv.Client(), time.Second)
	fastBackoff(&cfg)

	resp, cancel, err := doRequestWithResilience(context.Background(), "test", cfg, newBreaker("test"), func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, srv.URL, nil)
	})
	if err != nil {
		t.Fatalf("expected success after retry, got %v", err)
	}
	defer cancel()
	resp.Body.Close()

	if n := calls.Load(); n != 2 {
		t.Fatalf("expected 2 calls, got %d", n)
	}
}

func TestDoRequestDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	cfg := defaultHTTPConfig(srv.Client(), time.Second)
	fastBackoff(&cfg)

	_, _, err := doRequestWithResilience(context.Background(), "test", cfg, newBreaker("test"), func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, srv.URL, nil)
	})
	var upErr *weather.UpstreamError
	if !errors.As(err, &upErr) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	if !errors.Is(err, errUnexpected) {
		t.Errorf("expected errUnexpected in chain, got %v", err)
	}
	if n := calls.Load(); n != 1 {
		t.Fatalf("expected a single call, got %d", n)
	}
}

func TestDoRequestTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	cfg := defaultHTTPConfig(srv.Client(), 20*time.Millisecond)
	fastBackoff(&cfg)

	_, _, err := doRequestWithResilience(context.Background(), "test", cfg, newBreaker("test"), func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, srv.URL, nil)
	})
	var upErr *weather.UpstreamError
	if !errors.As(err, &upErr) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	if !upErr.Timeout {
		t.Errorf("expected timeout flag, got %v", err)
	}
}

func TestDoRequestWithoutClient(t *testing.T) {
	_, _, err := doRequestWithResilience(context.Background(), "test", HTTPClientConfig{}, newBreaker("test"), nil)
	if !errors.Is(err, errNoHTTPClient) {
		t.Fatalf("expected errNoHTTPClient, got %v", err)
	}
}

func TestQWeatherBaseURL(t *testing.T) {
	tests := map[string]string{
		"":                         "https://devapi.qweather.com",
		"abc.re.qweatherapi.com":   "https://abc.re.qweatherapi.com",
		"https://private.example/": "https://private.example",
		"http://localhost:8080":    "http://localhost:8080",
	}
	for in, want := range tests {
		if got := QWeatherBaseURL(in); got != want {
			t.Errorf("QWeatherBaseURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestQWeatherLocation(t *testing.T) {
	coord := beijing(t)

	got, err := qweatherLocation(weather.LocationRef{ID: "101010100", Coord: coord})
	if err != nil || got != "101010100" {
		t.Errorf("expected id to win, got %q, %v", got, err)
	}
	got, err = qweatherLocation(weather.LocationRef{Coord: coord})
	if err != nil || got != "116.41,39.90" {
		t.Errorf("expected lon,lat, got %q, %v", got, err)
	}
	if _, err := qweatherLocation(weather.LocationRef{}); !errors.Is(err, weather.ErrNoLocation) {
		t.Errorf("expected ErrNoLocation, got %v", err)
	}
}

func newTestQWeather(t *testing.T, handler http.HandlerFunc) *QWeatherProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p := NewQWeatherProvider(srv.Client(), "test-key", srv.URL, time.Second)
	fastBackoff(&p.httpCfg)
	p.batchPause = 0
	return p
}

func TestQWeatherFetchForecast(t *testing.T) {
	p := newTestQWeather(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v7/weather/7d" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("key") != "test-key" || q.Get("location") != "101010100" || q.Get("lang") != "zh-hans" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"code":"200","daily":[
			{"fxDate":"2025-03-10","sunrise":"06:35","sunset":"18:17","tempMax":"12","tempMin":"2","iconDay":"100","textDay":"晴","windDirDay":"北风"},
			{"fxDate":"2025-03-11","sunrise":"06:33","sunset":"18:18","tempMax":"14","tempMin":"3","iconDay":"101","textDay":"多云","windDirDay":"南风"}
		]}`)
	})

	days, err := p.FetchForecast(context.Background(), weather.LocationRef{ID: "101010100"})
	if err != nil {
		t.Fatalf("FetchForecast: %v", err)
	}
	if len(days) != 2 {
		t.Fatalf("expected 2 days, got %d", len(days))
	}
	want := weather.DailyWeather{
		Date: "2025-03-10", Text: "晴", TempMin: "2", TempMax: "12",
		Icon: "100", Wind: "北风", Sunrise: "06:35", Sunset: "18:17",
	}
	if days[0] != want {
		t.Errorf("unexpected first day %+v", days[0])
	}
}

func TestQWeatherFetchForecastAPIError(t *testing.T) {
	p := newTestQWeather(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code":"402"}`)
	})

	_, err := p.FetchForecast(context.Background(), weather.LocationRef{ID: "101010100"})
	var upErr *weather.UpstreamError
	if !errors.As(err, &upErr) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	if !strings.Contains(err.Error(), "402") {
		t.Errorf("expected code in error, got %v", err)
	}
}

func TestQWeatherFetchForecastMalformed(t *testing.T) {
	p := newTestQWeather(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code":`)
	})

	_, err := p.FetchForecast(context.Background(), weather.LocationRef{ID: "101010100"})
	var upErr *weather.UpstreamError
	if !errors.As(err, &upErr) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
}

func TestQWeatherRequiresKey(t *testing.T) {
	p := NewQWeatherProvider(http.DefaultClient, "", "", time.Second)
	if _, err := p.FetchForecast(context.Background(), weather.LocationRef{ID: "1"}); err == nil {
		t.Fatal("expected error without api key")
	}
}

func TestQWeatherFetchHistoryToleratesFailedDays(t *testing.T) {
	p := newTestQWeather(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v7/historical/weather" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		date := r.URL.Query().Get("date")
		if date == "20250308" {
			fmt.Fprint(w, `{"code":"404"}`)
			return
		}
		fmt.Fprintf(w, `{"code":"200",
			"weatherDaily":{"date":"%s","sunrise":"06:40","sunset":"18:10","tempMax":"10","tempMin":"1"},
			"weatherHourly":[{"text":"阴","icon":"104","windDir":"北风"},{"text":"小雨","icon":"305","windDir":"东风"},{"text":"阴","icon":"104","windDir":"北风"}]}`, date)
	})

	dates := []string{"2025-03-06", "2025-03-07", "2025-03-08", "2025-03-09"}
	days, err := p.FetchHistory(context.Background(), weather.LocationRef{ID: "101010100"}, dates)
	if err != nil {
		t.Fatalf("FetchHistory: %v", err)
	}
	if len(days) != 3 {
		t.Fatalf("expected 3 days, got %d", len(days))
	}
	seen := map[string]weather.DailyWeather{}
	for _, d := range days {
		seen[d.Date] = d
	}
	if _, ok := seen["2025-03-08"]; ok {
		t.Error("failed day should be omitted")
	}
	d := seen["2025-03-09"]
	if d.Text != "小雨" || d.Icon != "305" || d.TempMax != "10" || d.Sunrise != "06:40" {
		t.Errorf("unexpected history day %+v", d)
	}
}

func TestQWeatherFetchHistoryNeedsLocationID(t *testing.T) {
	p := NewQWeatherProvider(http.DefaultClient, "key", "", time.Second)
	_, err := p.FetchHistory(context.Background(), weather.LocationRef{Coord: beijing(t)}, []string{"2025-03-09"})
	if err == nil {
		t.Fatal("expected error without location id")
	}
}

func TestOpenMeteoFetchForecast(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("latitude") != "39.9042000" || q.Get("timezone") != "Asia/Shanghai" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		fmt.Fprint(w, `{"daily":{
			"time":["2025-03-10","2025-03-11"],
			"weathercode":[0,63],
			"temperature_2m_max":[12.4,9.6],
			"temperature_2m_min":[1.6,-1.4],
			"sunrise":["2025-03-10T06:35","2025-03-11T06:33"],
			"sunset":["2025-03-10T18:17","2025-03-11T18:18"],
			"winddirection_10m_dominant":[350,95]
		}}`)
	}))
	defer srv.Close()

	p := NewOpenMeteoProvider(srv.Client(), time.Second)
	p.baseURL = srv.URL
	fastBackoff(&p.httpCfg)

	days, err := p.FetchForecast(context.Background(), weather.LocationRef{Coord: beijing(t)})
	if err != nil {
		t.Fatalf("FetchForecast: %v", err)
	}
	if len(days) != 2 {
		t.Fatalf("expected 2 days, got %d", len(days))
	}
	if days[0].Text != "Clear" || days[0].TempMax != "12" || days[0].Sunrise != "06:35" || days[0].Wind != "N" {
		t.Errorf("unexpected first day %+v", days[0])
	}
	if days[1].Text != "Rain" || days[1].TempMin != "-1" || days[1].Wind != "E" {
		t.Errorf("unexpected second day %+v", days[1])
	}
}

func TestOpenMeteoNeedsCoordinates(t *testing.T) {
	p := NewOpenMeteoProvider(http.DefaultClient, time.Second)
	if _, err := p.FetchForecast(context.Background(), weather.LocationRef{ID: "x"}); err == nil {
		t.Fatal("expected error without coordinates")
	}
}

func TestWeatherAPIFetchForecast(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("key") != "k" || q.Get("q") != "39.9042000,116.4074000" || q.Get("days") != "7" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		fmt.Fprint(w, `{"forecast":{"forecastday":[
			{"date":"2025-03-10","day":{"maxtemp_c":12.2,"mintemp_c":1.8,"maxwind_kph":14.4,"condition":{"text":"晴","code":1000}},
			 "astro":{"sunrise":"06:35 AM","sunset":"06:17 PM"}}
		]}}`)
	}))
	defer srv.Close()

	p := NewWeatherAPIProvider(srv.Client(), "k", time.Second)
	p.baseURL = srv.URL
	fastBackoff(&p.httpCfg)

	days, err := p.FetchForecast(context.Background(), weather.LocationRef{Coord: beijing(t)})
	if err != nil {
		t.Fatalf("FetchForecast: %v", err)
	}
	want := weather.DailyWeather{
		Date: "2025-03-10", Text: "晴", TempMin: "2", TempMax: "12",
		Icon: "1000", Wind: "14 km/h", Sunrise: "06:35", Sunset: "18:17",
	}
	if len(days) != 1 || days[0] != want {
		t.Fatalf("unexpected days %+v", days)
	}
}

func TestCompassPoint(t *testing.T) {
	tests := map[float64]string{0: "N", 44: "NE", 90: "E", 180: "S", 270: "W", 337.6: "N", 315: "NW"}
	for deg, want := range tests {
		if got := compassPoint(deg); got != want {
			t.Errorf("compassPoint(%v) = %s, want %s", deg, got, want)
		}
	}
}
