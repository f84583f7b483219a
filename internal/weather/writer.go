package weather

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/i474232898/weather-ics/internal/metrics"
)

const defaultWriteTimeout = 10 * time.Second

// WriteJob is one batch of freshly fetched days to persist.
type WriteJob struct {
	Coord Coordinate
	City  string
	Days  []DailyWeather
}

// CacheWriter persists fetched rows in the background. Enqueue never blocks
// and write failures only reach the log.
type CacheWriter struct {
	store   CacheStore
	jobs    chan WriteJob
	errs    chan error
	timeout time.Duration

	mu      sync.RWMutex
	closed  bool
	started bool
	done    chan struct{}
}

// NewCacheWriter creates a writer with a bounded queue.
func NewCacheWriter(store CacheStore, queueSize int) *CacheWriter {
	if queueSize <= 0 {
		queueSize = 64
	}
	return &CacheWriter{
		store:   store,
		jobs:    make(chan WriteJob, queueSize),
		errs:    make(chan error, queueSize),
		timeout: defaultWriteTimeout,
		done:    make(chan struct{}),
	}
}

// Start launches the worker and its error logger.
func (w *CacheWriter) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started || w.closed {
		return
	}
	w.started = true

	logged := make(chan struct{})
	go func() {
		defer close(logged)
		for err := range w.errs {
			log.Printf("ERROR: cache writer: %v", err)
		}
	}()

	go func() {
		defer close(w.done)
		for job := range w.jobs {
			if err := w.write(job); err != nil {
				w.errs <- err
			}
		}
		close(w.errs)
		<-logged
	}()
}

func (w *CacheWriter) write(job WriteJob) error {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	if err := w.store.UpsertDaily(ctx, job.Coord, job.City, job.Days); err != nil {
		metrics.CacheWrites.WithLabelValues("error").Inc()
		return fmt.Errorf("upsert %d days for %s: %w", len(job.Days), job.Coord.Key(), err)
	}
	metrics.CacheWrites.WithLabelValues("ok").Inc()
	return nil
}

// Enqueue hands a job to the worker. It reports false when the job was
// dropped because the queue is full or the writer is closed.
func (w *CacheWriter) Enqueue(job WriteJob) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		metrics.CacheWrites.WithLabelValues("dropped").Inc()
		return false
	}
	select {
	case w.jobs <- job:
		return true
	default:
		log.Printf("WARN: cache writer queue full; dropping %d days for %s", len(job.Days), job.Coord.Key())
		metrics.CacheWrites.WithLabelValues("dropped").Inc()
		return false
	}
}

// Close stops accepting jobs and waits for queued ones to be written.
func (w *CacheWriter) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	close(w.jobs)
	started := w.started
	w.mu.Unlock()

	if started {
		<-w.done
	}
}
