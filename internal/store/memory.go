package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/i474232898/weather-ics/internal/weather"
)

type memoryRow struct {
	city      string
	day       weather.DailyWeather
	updatedAt string
}

// MemoryStore is a concurrency-safe in-memory weather cache. It keeps the
// same one-row-per-(coordinate, date) contract as the SQL store but does
// not survive restarts.
type MemoryStore struct {
	mu sync.RWMutex

	// key: coordinate key, then date
	data map[string]map[string]*memoryRow

	now func() time.Time
}

// NewMemoryStore creates an empty MemoryStore. now may be nil.
func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{
		data: make(map[string]map[string]*memoryRow),
		now:  now,
	}
}

// UpsertDaily validates every day before touching the map so that a bad row
// leaves the store unchanged.
func (s *MemoryStore) UpsertDaily(_ context.Context, coord weather.Coordinate, city string, days []weather.DailyWeather) error {
	normalized := make([]weather.DailyWeather, 0, len(days))
	for _, d := range days {
		date, err := weather.NormalizeDate(d.Date)
		if err != nil {
			return err
		}
		d.Date = date
		d.FromCache = false
		d.UpdatedAt = time.Time{}
		normalized = append(normalized, d)
	}

	ts := weather.FormatUpdatedAt(s.now())

	s.mu.Lock()
	defer s.mu.Unlock()

	byDate, ok := s.data[coord.Key()]
	if !ok {
		byDate = make(map[string]*memoryRow)
		s.data[coord.Key()] = byDate
	}
	for _, d := range normalized {
		byDate[d.Date] = &memoryRow{city: city, day: d, updatedAt: ts}
	}
	return nil
}

// ReadRange returns rows with start <= date < endExclusive, ascending.
func (s *MemoryStore) ReadRange(_ context.Context, coord weather.Coordinate, start, endExclusive string) ([]weather.CachedDay, error) {
	return s.collect(coord, func(date string) bool {
		return date >= start && date < endExclusive
	}), nil
}

// ReadFromDate returns rows with date >= start, ascending.
func (s *MemoryStore) ReadFromDate(_ context.Context, coord weather.Coordinate, start string) (weather.FromDateResult, error) {
	rows := s.collect(coord, func(date string) bool {
		return date >= start
	})
	return weather.FromDateResult{
		Rows:         rows,
		LatestUpdate: weather.ReferenceUpdate(rows, start),
	}, nil
}

func (s *MemoryStore) collect(coord weather.Coordinate, keep func(date string) bool) []weather.CachedDay {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []weather.CachedDay
	for date, row := range s.data[coord.Key()] {
		if keep(date) {
			result = append(result, weather.CachedDay{Day: row.day, UpdatedAt: row.updatedAt})
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Day.Date < result[j].Day.Date
	})
	return result
}

// Len returns the number of stored rows for coord.
func (s *MemoryStore) Len(coord weather.Coordinate) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data[coord.Key()])
}
