package weather

import (
	"context"
	"errors"
	"fmt"
)

// ErrNoLocation is returned when a request carries no usable location hint.
var ErrNoLocation = errors.New("missing locationId or lat/lon")

// UpstreamError wraps a failure of a third-party provider.
type UpstreamError struct {
	Provider string
	Timeout  bool
	Err      error
}

func (e *UpstreamError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("%s: request timed out: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// ForecastProvider abstracts a multi-day forecast source.
// Returned days are ordered by date ascending.
type ForecastProvider interface {
	Name() string
	FetchForecast(ctx context.Context, ref LocationRef) ([]DailyWeather, error)
}

// HistoryProvider fetches observed weather for specific past dates. Partial
// results are fine: days that could not be fetched are simply omitted.
type HistoryProvider interface {
	FetchHistory(ctx context.Context, ref LocationRef, dates []string) ([]DailyWeather, error)
}

// FromDateResult is the forward-window read: all cached rows on or after a
// date plus the reference update time used for the freshness decision.
type FromDateResult struct {
	Rows []CachedDay
	// LatestUpdate is the raw stored update time of the start-date row, or
	// the newest update among Rows; empty when there is none.
	LatestUpdate string
}

// CacheStore is the contract every weather cache backend satisfies.
type CacheStore interface {
	// UpsertDaily writes all days atomically, one row per (coord, date).
	UpsertDaily(ctx context.Context, coord Coordinate, city string, days []DailyWeather) error
	// ReadRange returns at most one row per date in [start, endExclusive).
	ReadRange(ctx context.Context, coord Coordinate, start, endExclusive string) ([]CachedDay, error)
	// ReadFromDate returns rows with date >= start; errors mean the store
	// could not be consulted at all.
	ReadFromDate(ctx context.Context, coord Coordinate, start string) (FromDateResult, error)
}
