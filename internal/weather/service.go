package weather

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/i474232898/weather-ics/internal/metrics"
)

// DefaultMaxHistoryDays bounds the backward window when not configured.
const DefaultMaxHistoryDays = 31

// Options tunes a Service. The zero value is usable.
type Options struct {
	// History, when set, serves requests that ask for live history.
	History HistoryProvider
	// MaxHistoryDays is how far back cached history is read.
	MaxHistoryDays int
	Now            func() time.Time
}

// Service assembles the day list behind a calendar: fresh cache or live
// forecast for the forward window, cached history for the backward window.
type Service struct {
	forecast       ForecastProvider
	store          CacheStore
	writer         *CacheWriter
	history        HistoryProvider
	maxHistoryDays int
	now            func() time.Time
}

// NewService creates a new Service. store and writer may be nil, which
// disables caching entirely.
func NewService(forecast ForecastProvider, store CacheStore, writer *CacheWriter, opts Options) *Service {
	s := &Service{
		forecast:       forecast,
		store:          store,
		writer:         writer,
		history:        opts.History,
		maxHistoryDays: opts.MaxHistoryDays,
		now:            opts.Now,
	}
	if s.maxHistoryDays == 0 {
		s.maxHistoryDays = DefaultMaxHistoryDays
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// CachingEnabled reports whether a cache store is wired in.
func (s *Service) CachingEnabled() bool {
	return s.store != nil
}

// Request describes one calendar request after location resolution.
type Request struct {
	LocationID string
	Coord      *Coordinate
	City       string
	// HistoryDays asks for that many past days from the history provider.
	HistoryDays int
}

func (r Request) ref() LocationRef {
	return LocationRef{ID: r.LocationID, Coord: r.Coord}
}

// Assemble returns the merged, date-ordered days for req. Only a missing
// location or a failed live forecast fetch produce an error; every cache
// and history problem degrades to less data.
func (s *Service) Assemble(ctx context.Context, req Request) ([]DailyWeather, error) {
	ref := req.ref()
	if !ref.Valid() {
		return nil, ErrNoLocation
	}

	now := s.now()
	today := Today(now)
	cacheOn := s.store != nil && req.Coord != nil

	var historyCh chan []DailyWeather
	if s.history != nil && req.HistoryDays > 0 {
		historyCh = make(chan []DailyWeather, 1)
		go func() {
			historyCh <- s.liveHistory(ctx, ref, today, req.HistoryDays, now)
		}()
	}

	var forward []DailyWeather
	if cacheOn {
		forward = s.cachedForward(ctx, *req.Coord, today, now)
	}
	if forward == nil {
		fetched, err := s.fetchForward(ctx, ref, now)
		if err != nil {
			return nil, err
		}
		if cacheOn && s.writer != nil && len(fetched) > 0 {
			days := make([]DailyWeather, len(fetched))
			copy(days, fetched)
			s.writer.Enqueue(WriteJob{Coord: *req.Coord, City: req.City, Days: days})
		}
		forward = fetched
	}

	var backward []DailyWeather
	if cacheOn {
		backward = s.cachedBackward(ctx, *req.Coord, today, now)
	}

	var live []DailyWeather
	if historyCh != nil {
		live = <-historyCh
	}

	return MergeDaily(forward, backward, live), nil
}

// Warm fetches the forecast for coord and writes it to the cache
// synchronously.
func (s *Service) Warm(ctx context.Context, coord Coordinate, city string) error {
	if s.store == nil {
		return errors.New("caching is disabled")
	}
	days, err := s.fetchForward(ctx, LocationRef{Coord: &coord}, s.now())
	if err != nil {
		return err
	}
	return s.store.UpsertDaily(ctx, coord, city, days)
}

// cachedForward returns the cached forward window when it is present and
// fresh, or nil when a live fetch is needed.
func (s *Service) cachedForward(ctx context.Context, coord Coordinate, today string, now time.Time) []DailyWeather {
	res, err := s.store.ReadFromDate(ctx, coord, today)
	if err != nil {
		log.Printf("WARN: forward cache read failed for %s, fetching live: %v", coord.Key(), err)
		metrics.CacheLookups.WithLabelValues("forward", "error").Inc()
		return nil
	}
	if len(res.Rows) == 0 || res.LatestUpdate == "" {
		metrics.CacheLookups.WithLabelValues("forward", "miss").Inc()
		return nil
	}
	if !IsFreshRaw(res.LatestUpdate, now) {
		log.Printf("DEBUG: forward cache for %s is stale (updated %s)", coord.Key(), res.LatestUpdate)
		metrics.CacheLookups.WithLabelValues("forward", "stale").Inc()
		return nil
	}
	metrics.CacheLookups.WithLabelValues("forward", "fresh").Inc()
	return projectCached(res.Rows, now)
}

func (s *Service) cachedBackward(ctx context.Context, coord Coordinate, today string, now time.Time) []DailyWeather {
	if s.maxHistoryDays <= 0 {
		return nil
	}
	start, err := AddDays(today, -s.maxHistoryDays)
	if err != nil {
		log.Printf("ERROR: computing history window: %v", err)
		return nil
	}
	rows, err := s.store.ReadRange(ctx, coord, start, today)
	if err != nil {
		log.Printf("WARN: history cache read failed for %s: %v", coord.Key(), err)
		metrics.CacheLookups.WithLabelValues("backward", "error").Inc()
		return nil
	}
	metrics.CacheLookups.WithLabelValues("backward", "ok").Inc()
	return projectCached(rows, now)
}

func (s *Service) fetchForward(ctx context.Context, ref LocationRef, now time.Time) ([]DailyWeather, error) {
	if s.forecast == nil {
		return nil, &UpstreamError{Provider: "forecast", Err: errors.New("no forecast provider configured")}
	}
	days, err := s.forecast.FetchForecast(ctx, ref)
	if err != nil {
		var upErr *UpstreamError
		if errors.As(err, &upErr) {
			return nil, err
		}
		return nil, &UpstreamError{
			Provider: s.forecast.Name(),
			Timeout:  errors.Is(err, context.DeadlineExceeded),
			Err:      err,
		}
	}
	days = projectLive(days, now)
	if ref.Coord != nil {
		FillSunTimes(days, *ref.Coord)
	}
	return days, nil
}

func (s *Service) liveHistory(ctx context.Context, ref LocationRef, today string, n int, now time.Time) []DailyWeather {
	dates := make([]string, 0, n)
	for i := n; i >= 1; i-- {
		d, err := AddDays(today, -i)
		if err != nil {
			return nil
		}
		dates = append(dates, d)
	}
	days, err := s.history.FetchHistory(ctx, ref, dates)
	if err != nil {
		log.Printf("WARN: live history fetch failed for %s: %v", ref, err)
	}
	return projectLive(days, now)
}
