// Package geocode proxies free-text place search to a geocoding provider and
// passes the provider's JSON through untouched.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/i474232898/weather-ics/internal/metrics"
	"github.com/i474232898/weather-ics/internal/weather"
)

const userAgent = "weather-ics/1.0"

// DefaultTimeout bounds a single lookup.
const DefaultTimeout = 10 * time.Second

// Provider names accepted in configuration.
const (
	ProviderHeFeng    = "hefeng"
	ProviderNominatim = "nominatim"
	ProviderGoogle    = "google"
)

// ErrEmptyQuery is returned for blank search text.
var ErrEmptyQuery = errors.New("missing query parameter")

// Searcher looks up places by free text.
type Searcher interface {
	Name() string
	Search(ctx context.Context, query string) (json.RawMessage, error)
}

// Options selects and configures a Searcher.
type Options struct {
	Provider     string
	HeFengKey    string
	HeFengHost   string
	GoogleAPIKey string
	Timeout      time.Duration
}

// New returns the Searcher named by opts.Provider; unknown names fall back
// to hefeng.
func New(opts Options) Searcher {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	switch strings.ToLower(opts.Provider) {
	case ProviderNominatim:
		return NewNominatim(opts.Timeout)
	case ProviderGoogle:
		return NewGoogle(opts.GoogleAPIKey)
	default:
		return NewHeFeng(opts.HeFengKey, opts.HeFengHost, opts.Timeout)
	}
}

func newRestyClient(timeout time.Duration) *resty.Client {
	return resty.New().
		SetTimeout(timeout).
		SetHeader("User-Agent", userAgent)
}

// fetchJSON runs a GET and returns the body if it is a successful JSON
// response.
func fetchJSON(ctx context.Context, provider string, req *resty.Request, url string) (json.RawMessage, error) {
	start := time.Now()
	resp, err := req.SetContext(ctx).Get(url)
	metrics.UpstreamLatency.WithLabelValues(provider).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues(provider, "error").Inc()
		return nil, &weather.UpstreamError{Provider: provider, Timeout: isTimeout(err), Err: err}
	}
	if !resp.IsSuccess() {
		metrics.UpstreamRequests.WithLabelValues(provider, "error").Inc()
		return nil, &weather.UpstreamError{Provider: provider, Err: fmt.Errorf("status %d", resp.StatusCode())}
	}
	body := resp.Body()
	if !json.Valid(body) {
		metrics.UpstreamRequests.WithLabelValues(provider, "error").Inc()
		return nil, &weather.UpstreamError{Provider: provider, Err: errors.New("response is not valid JSON")}
	}
	metrics.UpstreamRequests.WithLabelValues(provider, "ok").Inc()
	return json.RawMessage(body), nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
