package main

import (
	"context"
	"embed"
	"flag"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"tagboard/internal/app"
	"tagboard/internal/config"
)

// Embedded dashboard frontend files
//go:embed all:web
var frontendFiles embed.FS

func main() {
	var (
		file       string
		format     string
		aliases    string
		port       int
		sampleRate float64
		origin     string
		logLevel   string
		noWatch    bool
	)

	flag.StringVar(&file, "f", "", "dataset file to serve")
	flag.StringVar(&file, "file", "", "dataset file to serve")
	flag.StringVar(&format, "t", "", "dataset format: csv | tsv | excel | json (defaults to csv)")
	flag.StringVar(&format, "format", "", "dataset format: csv | tsv | excel | json (defaults to csv)")
	flag.StringVar(&aliases, "a", "", "JSON file mapping tag names to display aliases")
	flag.StringVar(&aliases, "aliases", "", "JSON file mapping tag names to display aliases")
	flag.IntVar(&port, "p", 0, "port to serve on (defaults to 5006, walks forward when taken)")
	flag.IntVar(&port, "port", 0, "port to serve on (defaults to 5006, walks forward when taken)")
	flag.Float64Var(&sampleRate, "s", 0, "random fraction of rows to keep, in (0, 1]")
	flag.Float64Var(&sampleRate, "sample-rate", 0, "random fraction of rows to keep, in (0, 1]")
	flag.StringVar(&origin, "origin", "", "extra allowed origin for cross-origin requests")
	flag.StringVar(&logLevel, "log-level", "", "log level: debug | info | warn | error")
	flag.BoolVar(&noWatch, "no-watch", false, "disable reloading when the dataset file changes")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Flags override file and environment configuration.
	if file != "" {
		cfg.Dataset.Path = file
	}
	if format != "" {
		cfg.Dataset.Format = format
	}
	if aliases != "" {
		cfg.Dataset.AliasesFile = aliases
	}
	if port != 0 {
		cfg.Server.Port = port
	}
	if sampleRate != 0 {
		cfg.Dataset.SampleRate = sampleRate
	}
	if origin != "" {
		cfg.Security.AllowedOrigins = append(cfg.Security.AllowedOrigins, origin)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if noWatch {
		cfg.Dataset.Watch = false
	}

	if cfg.Dataset.Path == "" {
		slog.Error("No dataset file given, pass -f or set TAGBOARD_DATASET_PATH")
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	var frontendFS fs.FS
	if sub, err := fs.Sub(frontendFiles, "web"); err == nil {
		frontendFS = sub
	} else {
		slog.Warn("Frontend embedding failed, serving API only", slog.String("error", err.Error()))
	}

	application, err := app.NewApplication(cfg, frontendFS)
	if err != nil {
		slog.Error("Failed to initialize application", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil {
		slog.Error("Application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
