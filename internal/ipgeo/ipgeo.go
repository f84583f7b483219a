// Package ipgeo resolves a client IP to an approximate location. Lookups are
// best effort; callers ignore every error.
package ipgeo

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/patrickmn/go-cache"

	"github.com/i474232898/weather-ics/internal/metrics"
	"github.com/i474232898/weather-ics/internal/weather"
)

// DefaultTimeout bounds a single lookup.
const DefaultTimeout = 5 * time.Second

var (
	ErrNonPublicIP = errors.New("ip is not publicly routable")
	ErrNoLocation  = errors.New("ip lookup returned no location")
)

// Result is an approximate location for an IP.
type Result struct {
	Coord weather.Coordinate
	City  string
}

// Client looks IPs up on ip-api.com and remembers answers for an hour.
type Client struct {
	client  *resty.Client
	baseURL string
	cache   *cache.Cache
}

func New(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		client: resty.New().
			SetTimeout(timeout).
			SetHeader("User-Agent", "weather-ics/1.0"),
		baseURL: "http://ip-api.com/json",
		cache:   cache.New(time.Hour, 2*time.Hour),
	}
}

// Lookup resolves ip.
func (c *Client) Lookup(ctx context.Context, ip string) (Result, error) {
	parsed := net.ParseIP(strings.TrimSpace(ip))
	if parsed == nil || parsed.IsLoopback() || parsed.IsPrivate() || parsed.IsUnspecified() || parsed.IsLinkLocalUnicast() {
		return Result{}, ErrNonPublicIP
	}
	key := parsed.String()
	if cached, found := c.cache.Get(key); found {
		return cached.(Result), nil
	}

	var payload struct {
		Status string  `json:"status"`
		Lat    float64 `json:"lat"`
		Lon    float64 `json:"lon"`
		City   string  `json:"city"`
	}
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("lang", "zh-CN").
		SetResult(&payload).
		Get(c.baseURL + "/" + key)
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues("ipapi", "error").Inc()
		return Result{}, fmt.Errorf("ip lookup: %w", err)
	}
	if !resp.IsSuccess() {
		metrics.UpstreamRequests.WithLabelValues("ipapi", "error").Inc()
		return Result{}, fmt.Errorf("ip lookup: status %d", resp.StatusCode())
	}
	metrics.UpstreamRequests.WithLabelValues("ipapi", "ok").Inc()

	if payload.Status != "success" || (payload.Lat == 0 && payload.Lon == 0) {
		return Result{}, ErrNoLocation
	}
	coord, ok := weather.CoordinateFromFloat(payload.Lat, payload.Lon)
	if !ok {
		return Result{}, ErrNoLocation
	}

	result := Result{Coord: coord, City: payload.City}
	c.cache.Set(key, result, cache.DefaultExpiration)
	return result, nil
}

// ClientIP picks the first X-Forwarded-For entry, falling back to the
// socket address.
func ClientIP(forwardedFor, remote string) string {
	if forwardedFor != "" {
		first := strings.TrimSpace(strings.Split(forwardedFor, ",")[0])
		if first != "" {
			return first
		}
	}
	if host, _, err := net.SplitHostPort(remote); err == nil {
		return host
	}
	return remote
}
