package geocode

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/i474232898/weather-ics/internal/weather"
)

func TestNewSelectsProvider(t *testing.T) {
	tests := map[string]string{
		"hefeng":    ProviderHeFeng,
		"Nominatim": ProviderNominatim,
		"google":    ProviderGoogle,
		"bing":      ProviderHeFeng,
		"":          ProviderHeFeng,
	}
	for in, want := range tests {
		if got := New(Options{Provider: in}).Name(); got != want {
			t.Errorf("New(%q).Name() = %s, want %s", in, got, want)
		}
	}
}

func TestNewHeFengBaseURL(t *testing.T) {
	tests := map[string]string{
		"":                       "https://geoapi.qweather.com/v2",
		"abc.re.qweatherapi.com": "https://abc.re.qweatherapi.com/geo/v2",
		"http://localhost:9000/": "http://localhost:9000/geo/v2",
	}
	for host, want := range tests {
		if got := NewHeFeng("k", host, time.Second).baseURL; got != want {
			t.Errorf("NewHeFeng(host %q) baseURL = %s, want %s", host, got, want)
		}
	}
}

func TestNominatimPassesThroughJSON(t *testing.T) {
	const body = `[{"place_id":1,"lat":"39.9","lon":"116.4","display_name":"北京市"}]`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("q") != "北京" || q.Get("format") != "json" || q.Get("limit") != "10" || q.Get("addressdetails") != "1" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		if r.Header.Get("Accept-Language") == "" {
			t.Error("expected Accept-Language header")
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, body)
	}))
	defer srv.Close()

	n := NewNominatim(time.Second)
	n.baseURL = srv.URL

	got, err := n.Search(context.Background(), " 北京 ")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if string(got) != body {
		t.Fatalf("expected body passed through, got %s", got)
	}
}

func TestHeFengSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/geo/v2/city/lookup" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("key") != "k" || r.URL.Query().Get("location") != "beijing" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		fmt.Fprint(w, `{"code":"200","location":[{"name":"北京","id":"101010100"}]}`)
	}))
	defer srv.Close()

	h := NewHeFeng("k", srv.URL, time.Second)
	got, err := h.Search(context.Background(), "beijing")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) == 0 {
		t.Fatal("expected body")
	}
}

func TestSearchErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("q") {
		case "slow":
			select {
			case <-r.Context().Done():
			case <-time.After(time.Second):
			}
		case "broken":
			fmt.Fprint(w, "<html>")
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	n := NewNominatim(50 * time.Millisecond)
	n.baseURL = srv.URL

	tests := []struct {
		query   string
		timeout bool
	}{
		{query: "slow", timeout: true},
		{query: "broken", timeout: false},
		{query: "fail", timeout: false},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			_, err := n.Search(context.Background(), tt.query)
			var upErr *weather.UpstreamError
			if !errors.As(err, &upErr) {
				t.Fatalf("expected UpstreamError, got %v", err)
			}
			if upErr.Timeout != tt.timeout {
				t.Errorf("timeout = %v, want %v (%v)", upErr.Timeout, tt.timeout, err)
			}
		})
	}
}

func TestEmptyQuery(t *testing.T) {
	for _, s := range []Searcher{NewNominatim(time.Second), NewHeFeng("k", "", time.Second), NewGoogle("k")} {
		if _, err := s.Search(context.Background(), "  "); !errors.Is(err, ErrEmptyQuery) {
			t.Errorf("%s: expected ErrEmptyQuery, got %v", s.Name(), err)
		}
	}
}

func TestMissingKeys(t *testing.T) {
	for _, s := range []Searcher{NewHeFeng("", "", time.Second), NewGoogle("")} {
		_, err := s.Search(context.Background(), "北京")
		var upErr *weather.UpstreamError
		if !errors.As(err, &upErr) {
			t.Errorf("%s: expected UpstreamError, got %v", s.Name(), err)
		}
	}
}
