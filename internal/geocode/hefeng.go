package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/i474232898/weather-ics/internal/weather"
)

const hefengDefaultGeoHost = "https://geoapi.qweather.com"

// HeFeng searches QWeather's GeoAPI city lookup.
type HeFeng struct {
	client  *resty.Client
	apiKey  string
	baseURL string
}

// NewHeFeng uses the public GeoAPI host unless a private API host is
// configured, in which case the lookup lives under /geo on that host.
func NewHeFeng(apiKey, host string, timeout time.Duration) *HeFeng {
	base := hefengDefaultGeoHost + "/v2"
	if host = strings.TrimSpace(host); host != "" {
		if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
			host = "https://" + host
		}
		base = strings.TrimRight(host, "/") + "/geo/v2"
	}
	return &HeFeng{
		client:  newRestyClient(timeout),
		apiKey:  apiKey,
		baseURL: base,
	}
}

func (h *HeFeng) Name() string { return ProviderHeFeng }

func (h *HeFeng) Search(ctx context.Context, query string) (json.RawMessage, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if h.apiKey == "" {
		return nil, &weather.UpstreamError{Provider: h.Name(), Err: errors.New("qweather api key is not configured")}
	}
	req := h.client.R().SetQueryParams(map[string]string{
		"location": query,
		"key":      h.apiKey,
		"lang":     "zh",
		"number":   "10",
	})
	return fetchJSON(ctx, h.Name(), req, h.baseURL+"/city/lookup")
}
