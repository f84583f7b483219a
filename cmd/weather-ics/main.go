package main

import (
	"log"

	"github.com/alecthomas/kong"

	"github.com/i474232898/weather-ics/internal/config"
)

type cli struct {
	Serve   serveCmd   `cmd:"" default:"1" help:"Run the calendar HTTP server."`
	Migrate migrateCmd `cmd:"" help:"Create or upgrade the cache schema and exit."`
	Render  renderCmd  `cmd:"" help:"Print one weather calendar to stdout."`
}

func main() {
	var c cli
	ctx := kong.Parse(&c,
		kong.Name("weather-ics"),
		kong.Description("Weather forecast as a calendar subscription."),
		kong.UsageOnError(),
	)

	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx.FatalIfErrorf(ctx.Run(cfg))
}
