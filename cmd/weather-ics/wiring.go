package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/i474232898/weather-ics/internal/config"
	"github.com/i474232898/weather-ics/internal/store"
	"github.com/i474232898/weather-ics/internal/weather"
	"github.com/i474232898/weather-ics/internal/weather/providers"
)

// newService builds the assembly engine for the configured forecast
// provider. Live history is only available from QWeather.
func newService(cfg *config.AppConfig, cache weather.CacheStore, writer *weather.CacheWriter) *weather.Service {
	// Shared HTTP client for outbound provider calls; per-call timeouts are
	// applied by the providers.
	httpClient := &http.Client{}

	var (
		forecast weather.ForecastProvider
		history  weather.HistoryProvider
	)
	switch cfg.ForecastProvider {
	case "openmeteo":
		forecast = providers.NewOpenMeteoProvider(httpClient, cfg.ForecastTimeout)
	case "weatherapi":
		forecast = providers.NewWeatherAPIProvider(httpClient, cfg.WeatherAPIKey, cfg.ForecastTimeout)
	default:
		q := providers.NewQWeatherProvider(httpClient, cfg.HeFengAPIKey, cfg.HeFengAPIHost, cfg.ForecastTimeout)
		forecast, history = q, q
	}

	return weather.NewService(forecast, cache, writer, weather.Options{
		History:        history,
		MaxHistoryDays: cfg.MaxHistoryDays,
	})
}

// openCache returns the configured cache store, or nil when caching is off
// or the store cannot be initialised. The returned func releases it.
func openCache(ctx context.Context, cfg *config.AppConfig) (weather.CacheStore, func()) {
	noop := func() {}
	if !cfg.EnableDatabaseCache {
		return nil, noop
	}
	if cfg.CacheDriver == config.CacheDriverMemory {
		log.Println("INFO: using in-memory weather cache")
		return store.NewMemoryStore(nil), noop
	}

	s, err := openSQLStore(ctx, cfg)
	if err != nil {
		log.Printf("ERROR: cache store unavailable, caching disabled: %v", err)
		return nil, noop
	}
	if err := s.Migrate(ctx); err != nil {
		log.Printf("ERROR: cache schema migration failed, caching disabled: %v", err)
		s.Close()
		return nil, noop
	}
	return s, func() {
		if err := s.Close(); err != nil {
			log.Printf("WARN: closing cache store: %v", err)
		}
	}
}

func openSQLStore(ctx context.Context, cfg *config.AppConfig) (*store.SQLStore, error) {
	driver := store.Driver(cfg.CacheDriver)
	if driver == store.DriverSQLite {
		ensureSQLiteDir(cfg.CacheDSN)
	}
	return store.Open(ctx, store.Options{
		Driver:   driver,
		DSN:      cfg.CacheDSN,
		MaxConns: cfg.CacheMaxConns,
	})
}

func ensureSQLiteDir(dsn string) {
	if dsn == "" || strings.HasPrefix(dsn, "file:") || strings.Contains(dsn, ":memory:") {
		return
	}
	if dir := filepath.Dir(dsn); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Printf("WARN: creating sqlite directory %s: %v", dir, err)
		}
	}
}
