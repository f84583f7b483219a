package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	httpapi "github.com/i474232898/weather-ics/internal/api/http"
	"github.com/i474232898/weather-ics/internal/calendar"
	"github.com/i474232898/weather-ics/internal/config"
	"github.com/i474232898/weather-ics/internal/geocode"
	"github.com/i474232898/weather-ics/internal/ipgeo"
	"github.com/i474232898/weather-ics/internal/scheduler"
	"github.com/i474232898/weather-ics/internal/weather"
)

type serveCmd struct{}

func (serveCmd) Run(cfg *config.AppConfig) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cache, closeCache := openCache(ctx, cfg)
	defer closeCache()

	var writer *weather.CacheWriter
	if cache != nil {
		writer = weather.NewCacheWriter(cache, cfg.CacheWriteQueue)
		writer.Start()
		defer writer.Close()
	}

	service := newService(cfg, cache, writer)

	// Cache warming only makes sense with a cache to warm.
	if cache != nil {
		sched := scheduler.New(cfg.WarmLocations, cfg.WarmInterval, service)
		if err := sched.Start(); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		defer sched.Stop()
	}

	app := fiber.New(fiber.Config{
		AppName:               "weather-ics",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		// Long enough for a forecast fetch plus live history batches.
		WriteTimeout: cfg.ForecastTimeout + 30*time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			var e *fiber.Error
			if errors.As(err, &e) {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	httpapi.RegisterRoutes(app, httpapi.Deps{
		Service: service,
		Geocoder: geocode.New(geocode.Options{
			Provider:     cfg.GeoAPIProvider,
			HeFengKey:    cfg.HeFengAPIKey,
			HeFengHost:   cfg.HeFengAPIHost,
			GoogleAPIKey: cfg.GoogleGeocodingKey,
			Timeout:      cfg.GeocodeTimeout,
		}),
		GeocodeTimeout:     cfg.GeocodeTimeout,
		IPLocator:          ipgeo.New(cfg.IPGeoTimeout),
		MaxLiveHistoryDays: cfg.MaxLiveHistoryDays,
		Client: httpapi.ClientConfig{
			GeoAPIProvider:     cfg.GeoAPIProvider,
			UseServerNominatim: cfg.UseServerNominatim,
			HeFengAPIHost:      cfg.HeFengAPIHost,
		},
	})

	go func() {
		log.Printf("INFO: listening on :%s (forecast provider %s, cache %t)", cfg.Port, cfg.ForecastProvider, cache != nil)
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("fiber server stopped: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
	return nil
}

type migrateCmd struct{}

func (migrateCmd) Run(cfg *config.AppConfig) error {
	if cfg.CacheDriver == config.CacheDriverMemory {
		log.Println("INFO: memory cache has no schema to migrate")
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	s, err := openSQLStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()
	return s.Migrate(ctx)
}

type renderCmd struct {
	LocationID string `name:"location-id" help:"Provider location id."`
	Lat        string `help:"Latitude."`
	Lon        string `help:"Longitude."`
	City       string `help:"City label shown in the calendar."`
	History    int    `help:"Days of live history to include."`
}

func (r renderCmd) Run(cfg *config.AppConfig) error {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ForecastTimeout+30*time.Second)
	defer cancel()

	cache, closeCache := openCache(ctx, cfg)
	defer closeCache()

	// Close drains the queue, so fetched days are cached before exit.
	var writer *weather.CacheWriter
	if cache != nil {
		writer = weather.NewCacheWriter(cache, 1)
		writer.Start()
		defer writer.Close()
	}

	req := weather.Request{LocationID: r.LocationID, City: r.City, HistoryDays: r.History}
	if r.Lat != "" || r.Lon != "" {
		coord, ok := weather.ParseCoordinate(r.Lat, r.Lon)
		if !ok {
			return fmt.Errorf("invalid coordinates %q,%q", r.Lat, r.Lon)
		}
		req.Coord = &coord
	}

	days, err := newService(cfg, cache, writer).Assemble(ctx, req)
	if err != nil {
		return err
	}

	key := req.LocationID
	if key == "" && req.Coord != nil {
		key = req.Coord.Key()
	}
	_, err = fmt.Fprint(os.Stdout, calendar.Render(days, req.City, key, time.Now()))
	return err
}
