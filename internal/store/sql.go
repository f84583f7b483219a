package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/i474232898/weather-ics/internal/weather"
)

// Driver names a supported relational backend.
type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverSQLite   Driver = "sqlite"
)

// DefaultMaxConns bounds the connection pool.
const DefaultMaxConns = 10

// dialect captures the few places where PostgreSQL and SQLite differ.
type dialect struct {
	sqlDriver  string
	numbered   bool   // $1 placeholders instead of ?
	dateParam  string // placeholder for a YYYY-MM-DD parameter
	numParam   string // placeholder for a fixed-precision decimal parameter
	timeParam  string // placeholder for a timestamp parameter
	dateSelect string // expression yielding the date as YYYY-MM-DD text
	migrations []migration
}

var dialects = map[Driver]dialect{
	DriverPostgres: {
		sqlDriver:  "pgx",
		numbered:   true,
		dateParam:  "CAST(? AS DATE)",
		numParam:   "CAST(? AS NUMERIC)",
		timeParam:  "CAST(? AS TIMESTAMPTZ)",
		dateSelect: "to_char(date, 'YYYY-MM-DD')",
		migrations: postgresMigrations,
	},
	DriverSQLite: {
		sqlDriver:  "sqlite",
		dateParam:  "?",
		numParam:   "?",
		timeParam:  "?",
		dateSelect: "date",
		migrations: sqliteMigrations,
	},
}

// Options configures Open.
type Options struct {
	Driver   Driver
	DSN      string
	MaxConns int
	// Now overrides the clock used for updated_at; defaults to time.Now.
	Now func() time.Time
}

// SQLStore is the relational weather cache. It owns its connection pool.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
	now     func() time.Time

	upsertSQL    string
	rangeSQL     string
	fromDateSQL  string
	migrationSQL string
}

// Open creates the pool and checks that the database answers.
func Open(ctx context.Context, opts Options) (*SQLStore, error) {
	d, ok := dialects[opts.Driver]
	if !ok {
		return nil, fmt.Errorf("unsupported cache driver %q", opts.Driver)
	}

	db, err := sql.Open(d.sqlDriver, opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", opts.Driver, err)
	}

	maxConns := opts.MaxConns
	if maxConns <= 0 {
		maxConns = DefaultMaxConns
	}
	if opts.Driver == DriverSQLite {
		// One writer at a time; also keeps :memory: databases on one connection.
		maxConns = 1
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(30 * time.Minute)

	if opts.Driver == DriverSQLite {
		db.ExecContext(ctx, "PRAGMA journal_mode=WAL")
		db.ExecContext(ctx, "PRAGMA busy_timeout=5000")
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", opts.Driver, err)
	}

	log.Printf("INFO: store: %s cache pool ready (max %d connections)", opts.Driver, maxConns)
	return New(db, opts.Driver, opts.Now)
}

// New wraps an existing database handle.
func New(db *sql.DB, driver Driver, now func() time.Time) (*SQLStore, error) {
	d, ok := dialects[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported cache driver %q", driver)
	}
	if now == nil {
		now = time.Now
	}
	s := &SQLStore{db: db, dialect: d, now: now}
	s.upsertSQL = s.bind(fmt.Sprintf(`
		INSERT INTO weather_cache
			(lat, lon, city, date, condition_text, temp_min, temp_max, icon, wind, sunrise, sunset, created_at, updated_at)
		VALUES (%[1]s, %[1]s, ?, %[2]s, ?, ?, ?, ?, ?, ?, ?, %[3]s, %[3]s)
		ON CONFLICT (lat, lon, date) DO UPDATE SET
			city = excluded.city,
			condition_text = excluded.condition_text,
			temp_min = excluded.temp_min,
			temp_max = excluded.temp_max,
			icon = excluded.icon,
			wind = excluded.wind,
			sunrise = excluded.sunrise,
			sunset = excluded.sunset,
			updated_at = excluded.updated_at
	`, d.numParam, d.dateParam, d.timeParam))
	s.rangeSQL = s.bind(s.latestPerDateSQL(fmt.Sprintf(" AND date < %s", d.dateParam)))
	s.fromDateSQL = s.bind(s.latestPerDateSQL(""))
	s.migrationSQL = s.bind("INSERT INTO schema_migrations (version, description, applied_at) VALUES (?, ?, ?)")
	return s, nil
}

// latestPerDateSQL keeps one physical row per date: the newest updated_at,
// then the highest id.
func (s *SQLStore) latestPerDateSQL(extra string) string {
	d := s.dialect
	return fmt.Sprintf(`
		SELECT cache_date, condition_text, temp_min, temp_max, icon, wind, sunrise, sunset, updated_at
		FROM (
			SELECT %s AS cache_date, condition_text, temp_min, temp_max, icon, wind, sunrise, sunset, updated_at,
				ROW_NUMBER() OVER (PARTITION BY date ORDER BY updated_at DESC, id DESC) AS rn
			FROM weather_cache
			WHERE lat = %s AND lon = %s AND date >= %s%s
		) ranked
		WHERE rn = 1
		ORDER BY cache_date ASC
	`, d.dateSelect, d.numParam, d.numParam, d.dateParam, extra)
}

// bind rewrites ? placeholders for drivers that number them.
func (s *SQLStore) bind(query string) string {
	if !s.dialect.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// DB exposes the underlying handle.
func (s *SQLStore) DB() *sql.DB {
	return s.db
}

// Close releases the pool.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// UpsertDaily writes every day in one transaction. Either all rows commit or
// none do.
func (s *SQLStore) UpsertDaily(ctx context.Context, coord weather.Coordinate, city string, days []weather.DailyWeather) error {
	if len(days) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, s.upsertSQL)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	ts := weather.FormatUpdatedAt(s.now())
	for _, d := range days {
		date, err := weather.NormalizeDate(d.Date)
		if err != nil {
			tx.Rollback()
			return err
		}
		if _, err := stmt.ExecContext(ctx,
			coord.LatString(), coord.LonString(), city, date,
			d.Text, d.TempMin, d.TempMax, d.Icon, d.Wind, d.Sunrise, d.Sunset,
			ts, ts,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("upsert %s: %w", date, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert: %w", err)
	}
	log.Printf("DEBUG: store: saved %d days for %s", len(days), coord.Key())
	return nil
}

// ReadRange returns the newest row per date in [start, endExclusive).
func (s *SQLStore) ReadRange(ctx context.Context, coord weather.Coordinate, start, endExclusive string) ([]weather.CachedDay, error) {
	if endExclusive <= start {
		return nil, nil
	}
	return s.query(ctx, s.rangeSQL, coord.LatString(), coord.LonString(), start, endExclusive)
}

// ReadFromDate returns the newest row per date from start onward together
// with the reference update time.
func (s *SQLStore) ReadFromDate(ctx context.Context, coord weather.Coordinate, start string) (weather.FromDateResult, error) {
	rows, err := s.query(ctx, s.fromDateSQL, coord.LatString(), coord.LonString(), start)
	if err != nil {
		return weather.FromDateResult{}, err
	}
	return weather.FromDateResult{
		Rows:         rows,
		LatestUpdate: weather.ReferenceUpdate(rows, start),
	}, nil
}

func (s *SQLStore) query(ctx context.Context, query string, args ...any) ([]weather.CachedDay, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query weather cache: %w", err)
	}
	defer rows.Close()

	var out []weather.CachedDay
	for rows.Next() {
		var (
			date      string
			day       weather.DailyWeather
			updatedAt sql.NullString
		)
		if err := rows.Scan(&date, &day.Text, &day.TempMin, &day.TempMax, &day.Icon, &day.Wind, &day.Sunrise, &day.Sunset, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan weather cache: %w", err)
		}
		if day.Date, err = weather.NormalizeDate(date); err != nil {
			log.Printf("WARN: store: skipping row with %v", err)
			continue
		}
		out = append(out, weather.CachedDay{Day: day, UpdatedAt: updatedAt.String})
	}
	return out, rows.Err()
}
