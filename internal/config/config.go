package config

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/i474232898/weather-ics/internal/weather"
)

// Cache drivers understood by CACHE_DRIVER.
const (
	CacheDriverPostgres = "postgres"
	CacheDriverSQLite   = "sqlite"
	CacheDriverMemory   = "memory"
)

// WarmLocation is a location whose forecast is kept warm in the cache.
type WarmLocation struct {
	Coord weather.Coordinate
	City  string
}

type AppConfig struct {
	Port string `validate:"required,numeric"`

	HeFengAPIKey  string
	HeFengAPIHost string

	ForecastProvider string `validate:"oneof=qweather openmeteo weatherapi"`
	WeatherAPIKey    string

	GeoAPIProvider     string `validate:"oneof=hefeng nominatim google"`
	GoogleGeocodingKey string
	UseServerNominatim string `validate:"oneof=true false auto"`

	EnableDatabaseCache bool
	CacheDriver         string `validate:"oneof=postgres sqlite memory"`
	CacheDSN            string
	CacheMaxConns       int `validate:"gte=1"`
	CacheWriteQueue     int `validate:"gte=1"`

	MaxHistoryDays     int `validate:"gte=0"`
	MaxLiveHistoryDays int `validate:"gte=0"`

	ForecastTimeout time.Duration
	GeocodeTimeout  time.Duration
	IPGeoTimeout    time.Duration

	WarmLocations []WarmLocation
	WarmInterval  time.Duration
}

var validate = validator.New()

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	return FromEnv()
}

// FromEnv builds the configuration from the current environment only.
func FromEnv() (*AppConfig, error) {
	cfg := &AppConfig{}

	cfg.Port = getenvDefault("PORT", "8080")
	cfg.HeFengAPIKey = os.Getenv("HEFENG_API_KEY")
	cfg.HeFengAPIHost = strings.TrimSpace(os.Getenv("HEFENG_API_HOST"))
	cfg.ForecastProvider = strings.ToLower(getenvDefault("FORECAST_PROVIDER", "qweather"))
	cfg.WeatherAPIKey = os.Getenv("WEATHERAPI_API_KEY")

	// Unknown geocoding providers fall back to hefeng rather than failing.
	cfg.GeoAPIProvider = strings.ToLower(getenvDefault("GEO_API_PROVIDER", "hefeng"))
	switch cfg.GeoAPIProvider {
	case "hefeng", "nominatim", "google":
	default:
		log.Printf("WARN: unknown GEO_API_PROVIDER %q, using hefeng", cfg.GeoAPIProvider)
		cfg.GeoAPIProvider = "hefeng"
	}
	cfg.GoogleGeocodingKey = os.Getenv("GOOGLE_GEOCODING_API_KEY")

	cfg.UseServerNominatim = strings.ToLower(getenvDefault("USE_SERVER_NOMINATIM", "false"))
	switch cfg.UseServerNominatim {
	case "true", "false", "auto":
	default:
		cfg.UseServerNominatim = "false"
	}

	cfg.EnableDatabaseCache = getenvBool("ENABLE_DATABASE_CACHE", false)
	cfg.CacheDriver = strings.ToLower(getenvDefault("CACHE_DRIVER", CacheDriverPostgres))
	cfg.CacheMaxConns = getenvInt("CACHE_MAX_CONNS", 10)
	cfg.CacheWriteQueue = getenvInt("CACHE_WRITE_QUEUE", 64)
	cfg.CacheDSN = os.Getenv("CACHE_DSN")
	if cfg.CacheDSN == "" {
		cfg.CacheDSN = defaultDSN(cfg.CacheDriver)
	}

	cfg.MaxHistoryDays = getenvInt("MAX_HISTORY_DAYS", weather.DefaultMaxHistoryDays)
	cfg.MaxLiveHistoryDays = getenvInt("MAX_LIVE_HISTORY_DAYS", 10)

	var err error
	if cfg.ForecastTimeout, err = getenvDuration("FORECAST_TIMEOUT", "15s"); err != nil {
		return nil, err
	}
	if cfg.GeocodeTimeout, err = getenvDuration("GEOCODE_TIMEOUT", "10s"); err != nil {
		return nil, err
	}
	if cfg.IPGeoTimeout, err = getenvDuration("IPGEO_TIMEOUT", "5s"); err != nil {
		return nil, err
	}
	if cfg.WarmInterval, err = getenvDuration("WARM_INTERVAL", "30m"); err != nil {
		return nil, err
	}

	cfg.WarmLocations, err = ParseWarmLocations(os.Getenv("WARM_LOCATIONS"))
	if err != nil {
		return nil, err
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// ParseWarmLocations parses "lat,lon,city;lat,lon,city". The city part is
// optional.
func ParseWarmLocations(raw string) ([]WarmLocation, error) {
	var locs []WarmLocation
	for _, entry := range strings.Split(raw, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ",", 3)
		if len(parts) < 2 {
			return nil, fmt.Errorf("invalid WARM_LOCATIONS entry %q: want lat,lon[,city]", entry)
		}
		coord, ok := weather.ParseCoordinate(parts[0], parts[1])
		if !ok {
			return nil, fmt.Errorf("invalid WARM_LOCATIONS coordinates in %q", entry)
		}
		loc := WarmLocation{Coord: coord}
		if len(parts) == 3 {
			loc.City = strings.TrimSpace(parts[2])
		}
		locs = append(locs, loc)
	}
	return locs, nil
}

func defaultDSN(driver string) string {
	switch driver {
	case CacheDriverSQLite:
		return getenvDefault("SQLITE_PATH", "data/weather-ics.db")
	case CacheDriverPostgres:
		u := url.URL{
			Scheme: "postgres",
			User: url.UserPassword(
				getenvDefault("PG_USER", "postgres"),
				os.Getenv("PG_PASSWORD"),
			),
			Host: getenvDefault("PG_HOST", "localhost") + ":" + getenvDefault("PG_PORT", "5432"),
			Path: "/" + getenvDefault("PG_DATABASE", "weather_ics"),
		}
		return u.String()
	}
	return ""
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getenvDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
