package geocode

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Nominatim searches OpenStreetMap's Nominatim service.
type Nominatim struct {
	client  *resty.Client
	baseURL string
}

func NewNominatim(timeout time.Duration) *Nominatim {
	return &Nominatim{
		client: newRestyClient(timeout).
			SetHeader("Accept-Language", "zh-CN,zh;q=0.9,en;q=0.8"),
		baseURL: "https://nominatim.openstreetmap.org",
	}
}

func (n *Nominatim) Name() string { return ProviderNominatim }

func (n *Nominatim) Search(ctx context.Context, query string) (json.RawMessage, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	req := n.client.R().SetQueryParams(map[string]string{
		"q":              query,
		"format":         "json",
		"addressdetails": "1",
		"limit":          "10",
	})
	return fetchJSON(ctx, n.Name(), req, n.baseURL+"/search")
}
