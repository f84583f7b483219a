package httpapi

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/i474232898/weather-ics/internal/calendar"
	"github.com/i474232898/weather-ics/internal/common"
	"github.com/i474232898/weather-ics/internal/geocode"
	"github.com/i474232898/weather-ics/internal/ipgeo"
	"github.com/i474232898/weather-ics/internal/metrics"
	"github.com/i474232898/weather-ics/internal/weather"
)

var validate = validator.New()

// Assembler produces the day list for one calendar request.
type Assembler interface {
	Assemble(ctx context.Context, req weather.Request) ([]weather.DailyWeather, error)
}

// IPLocator resolves a client IP to an approximate location.
type IPLocator interface {
	Lookup(ctx context.Context, ip string) (ipgeo.Result, error)
}

// ClientConfig is the non-secret configuration published to browser clients.
type ClientConfig struct {
	GeoAPIProvider     string `json:"geoApiProvider"`
	UseServerNominatim string `json:"useServerNominatim"`
	HeFengAPIHost      string `json:"hefengApiHost"`
}

// Deps are the collaborators behind the HTTP surface. Geocoder and IPLocator
// may be nil.
type Deps struct {
	Service            Assembler
	Geocoder           geocode.Searcher
	GeocodeTimeout     time.Duration
	IPLocator          IPLocator
	MaxLiveHistoryDays int
	Client             ClientConfig
	Now                func() time.Time
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, deps Deps) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.GeocodeTimeout <= 0 {
		deps.GeocodeTimeout = geocode.DefaultTimeout
	}
	h := &handlers{deps: deps}

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "weather-ics",
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	app.Get("/client-config", func(c *fiber.Ctx) error {
		return c.JSON(deps.Client)
	})
	app.Get("/weather-calendar", h.calendar)
	app.Get("/geocode", h.geocode)
}

type handlers struct {
	deps Deps
}

// calendarQuery holds the query parameters of /weather-calendar.
type calendarQuery struct {
	LocationID string
	Lat        string
	Lon        string
	City       string
	History    int `validate:"gte=0"`
}

func (q *calendarQuery) bind(c *fiber.Ctx, maxHistory int) error {
	q.LocationID = c.Query("locationId")
	q.Lat = c.Query("lat")
	q.Lon = c.Query("lon")
	q.City = c.Query("city")

	if raw := c.Query("history"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return errors.New("history must be an integer")
		}
		q.History = n
	}
	if err := validate.Struct(q); err != nil {
		return err
	}
	if err := validate.Var(q.History, fmt.Sprintf("lte=%d", maxHistory)); err != nil {
		return fmt.Errorf("history must be at most %d", maxHistory)
	}
	return nil
}

// coordinate returns the request coordinate, or nil when either part is
// missing or invalid.
func (q calendarQuery) coordinate() *weather.Coordinate {
	if q.Lat == "" || q.Lon == "" {
		return nil
	}
	if validate.Var(q.Lat, "latitude") != nil || validate.Var(q.Lon, "longitude") != nil {
		return nil
	}
	coord, ok := weather.ParseCoordinate(q.Lat, q.Lon)
	if !ok {
		return nil
	}
	return &coord
}

func (h *handlers) calendar(c *fiber.Ctx) error {
	var q calendarQuery
	if err := q.bind(c, h.deps.MaxLiveHistoryDays); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	req := weather.Request{
		LocationID:  q.LocationID,
		Coord:       q.coordinate(),
		City:        q.City,
		HistoryDays: q.History,
	}
	if req.LocationID == "" && req.Coord == nil {
		h.locateByIP(c, &req)
	}

	days, err := h.deps.Service.Assemble(c.UserContext(), req)
	if err != nil {
		var upErr *weather.UpstreamError
		switch {
		case errors.Is(err, weather.ErrNoLocation):
			return fiber.NewError(fiber.StatusBadRequest, "missing location: provide locationId or lat/lon")
		case errors.As(err, &upErr):
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch weather forecast")
		default:
			return fiber.NewError(fiber.StatusInternalServerError, "failed to build weather calendar")
		}
	}

	key := req.LocationID
	if key == "" && req.Coord != nil {
		key = req.Coord.Key()
	}
	body := calendar.Render(days, req.City, key, h.deps.Now())
	metrics.CalendarsRendered.Inc()

	c.Set(fiber.HeaderContentType, "text/calendar; charset=utf-8")
	c.Set(fiber.HeaderContentDisposition, `inline; filename="weather.ics"`)
	return c.SendString(body)
}

// locateByIP fills in a coordinate from the client IP. Failures are ignored;
// the request then fails validation further down if nothing else is known.
func (h *handlers) locateByIP(c *fiber.Ctx, req *weather.Request) {
	if h.deps.IPLocator == nil {
		return
	}
	ip := ipgeo.ClientIP(c.Get(fiber.HeaderXForwardedFor), c.IP())
	res, err := h.deps.IPLocator.Lookup(c.UserContext(), ip)
	if err != nil {
		return
	}
	coord := res.Coord
	req.Coord = &coord
	req.City = common.FirstNonEmpty(req.City, res.City)
}

func (h *handlers) geocode(c *fiber.Ctx) error {
	query := common.FirstNonEmpty(c.Query("q"), c.Query("query"))
	if validate.Var(query, "required") != nil {
		return fiber.NewError(fiber.StatusBadRequest, "missing query parameter")
	}
	if h.deps.Geocoder == nil {
		return fiber.NewError(fiber.StatusBadGateway, "geocoding is not configured")
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), h.deps.GeocodeTimeout)
	defer cancel()

	body, err := h.deps.Geocoder.Search(ctx, query)
	if err != nil {
		var upErr *weather.UpstreamError
		switch {
		case errors.Is(err, geocode.ErrEmptyQuery):
			return fiber.NewError(fiber.StatusBadRequest, "missing query parameter")
		case errors.As(err, &upErr) && upErr.Timeout:
			return fiber.NewError(fiber.StatusGatewayTimeout, "geocoding request timed out")
		default:
			return fiber.NewError(fiber.StatusBadGateway, "geocoding request failed")
		}
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSONCharsetUTF8)
	return c.Send(body)
}
