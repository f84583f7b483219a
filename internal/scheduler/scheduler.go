package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/weather-ics/internal/config"
	"github.com/i474232898/weather-ics/internal/weather"
)

const warmTimeout = 30 * time.Second

// Warmer is the part of weather.Service the scheduler drives.
type Warmer interface {
	Warm(ctx context.Context, coord weather.Coordinate, city string) error
}

// Scheduler periodically refreshes the cached forecast for configured
// locations so their first request is served from a fresh cache.
type Scheduler struct {
	scheduler *gocron.Scheduler
	warmer    Warmer
	locations []config.WarmLocation
	interval  time.Duration
}

// New creates a new Scheduler.
func New(locations []config.WarmLocation, interval time.Duration, warmer Warmer) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		warmer:    warmer,
		locations: locations,
		interval:  interval,
	}
}

// Start schedules the warming job and starts the underlying scheduler. The
// first run happens immediately.
func (s *Scheduler) Start() error {
	if len(s.locations) == 0 {
		log.Println("scheduler: no warm locations configured; nothing to schedule")
		return nil
	}

	minutes := int(s.interval.Minutes())
	if minutes <= 0 {
		minutes = 30
	}

	_, err := s.scheduler.Every(minutes).Minutes().Do(s.RunOnce)
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// RunOnce warms every configured location in parallel.
func (s *Scheduler) RunOnce() {
	log.Printf("scheduler: warming %d locations", len(s.locations))

	var wg sync.WaitGroup
	for _, loc := range s.locations {
		loc := loc
		wg.Add(1)
		go func() {
			defer wg.Done()

			ctx, cancel := context.WithTimeout(context.Background(), warmTimeout)
			defer cancel()

			if err := s.warmer.Warm(ctx, loc.Coord, loc.City); err != nil {
				log.Printf("scheduler: warm failed for %s: %v", loc.Coord.Key(), err)
			}
		}()
	}
	wg.Wait()
	log.Println("scheduler: warming complete")
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
