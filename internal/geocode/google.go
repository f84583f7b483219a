package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"github.com/kelvins/geocoder"

	"github.com/i474232898/weather-ics/internal/weather"
)

// geocoder keeps its key in a package variable.
var googleKeyMu sync.Mutex

// Google resolves free text with the Google Geocoding API.
type Google struct {
	apiKey string
}

func NewGoogle(apiKey string) *Google {
	return &Google{apiKey: apiKey}
}

func (g *Google) Name() string { return ProviderGoogle }

type googlePlace struct {
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

func (g *Google) Search(ctx context.Context, query string) (json.RawMessage, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if g.apiKey == "" {
		return nil, &weather.UpstreamError{Provider: g.Name(), Err: errors.New("google geocoding api key is not configured")}
	}

	type result struct {
		loc geocoder.Location
		err error
	}
	ch := make(chan result, 1)
	go func() {
		googleKeyMu.Lock()
		geocoder.ApiKey = g.apiKey
		loc, err := geocoder.Geocoding(geocoder.Address{Street: query})
		googleKeyMu.Unlock()
		ch <- result{loc: loc, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, &weather.UpstreamError{Provider: g.Name(), Timeout: isTimeout(ctx.Err()), Err: ctx.Err()}
	case r := <-ch:
		if r.err != nil {
			return nil, &weather.UpstreamError{Provider: g.Name(), Err: r.err}
		}
		body, err := json.Marshal([]googlePlace{{Name: query, Lat: r.loc.Latitude, Lon: r.loc.Longitude}})
		if err != nil {
			return nil, err
		}
		return body, nil
	}
}
