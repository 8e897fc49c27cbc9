package app

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"tagboard/internal/config"
	apierrors "tagboard/internal/errors"
	"tagboard/internal/infrastructure"
	custommw "tagboard/internal/middleware"
	"tagboard/internal/services"
	transport "tagboard/internal/transport/http"
	"tagboard/internal/watcher"
	"tagboard/internal/websocket"
)

const (
	AppName = "tagboard"
	Version = "1.2.0"
)

// Application wires the dashboard server together: config, logger, metrics,
// the dataset service, the websocket hub, the file watcher and the HTTP
// router.
type Application struct {
	Config  *config.Config
	Logger  *slog.Logger
	Metrics *infrastructure.Metrics

	Service *services.DashboardService
	Hub     *websocket.Hub
	Watcher *watcher.Watcher

	Router chi.Router
	Server *http.Server

	// Port is the port actually bound, which may differ from the configured
	// one when the retry loop had to walk past ports in use.
	Port int

	frontendFS fs.FS
}

// NewApplication builds a ready-to-run application. frontendFS is the
// embedded dashboard frontend.
func NewApplication(cfg *config.Config, frontendFS fs.FS) (*Application, error) {
	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}

	metrics := infrastructure.NewMetrics()

	service, err := services.NewDashboardService(cfg.Dataset, logger, metrics)
	if err != nil {
		return nil, err
	}

	hub := websocket.NewHub(logger, metrics)

	a := &Application{
		Config:     cfg,
		Logger:     logger,
		Metrics:    metrics,
		Service:    service,
		Hub:        hub,
		frontendFS: frontendFS,
	}

	if cfg.Dataset.Watch {
		a.Watcher = watcher.New(cfg.Dataset.Path, service, hub, logger)
	}

	a.setupRouter()
	a.createServer()

	return a, nil
}

func (a *Application) setupRouter() {
	r := chi.NewRouter()

	// Minimal middleware that does not wrap the ResponseWriter, so the
	// websocket upgrade keeps working.
	r.Use(custommw.RequestID)
	r.Use(custommw.RealIP)

	errorHandler := apierrors.NewErrorHandler(a.Logger, false)

	// WebSocket route stays outside the full middleware group.
	wsHandler := transport.NewWebSocketHandler(
		a.Hub,
		a.Config.Security.AllowedOrigins,
		a.Config.WebSocket.ReadBufferSize,
		a.Config.WebSocket.WriteBufferSize,
		a.Logger,
		errorHandler,
	)
	r.Get("/ws", wsHandler.HandleWS)

	// Prometheus endpoint outside the middleware group.
	r.Handle("/metrics", a.Metrics.Handler())

	// Static assets outside the group as well, compressed.
	if a.frontendFS != nil {
		r.Route("/static", func(r chi.Router) {
			r.Use(custommw.Compress(5))
			r.Handle("/*", a.serveStaticWithMIME(a.frontendFS))
		})
	}

	// Everything else gets the full middleware chain.
	r.Group(func(r chi.Router) {
		r.Use(custommw.Metrics(a.Metrics))
		r.Use(custommw.StructuredLogger(a.Logger))
		r.Use(custommw.Recoverer(a.Logger))
		r.Use(custommw.SecurityHeaders)

		if a.Config.Security.EnableCORS {
			r.Use(custommw.CORS(custommw.CORSConfig{
				AllowedOrigins: a.Config.Security.AllowedOrigins,
				ExposedHeaders: []string{"X-Request-ID"},
				Logger:         a.Logger,
			}))
		}

		if a.Config.Security.RateLimit.Enabled {
			r.Use(custommw.NewRateLimiter(
				a.Config.Security.RateLimit.RPS,
				a.Config.Security.RateLimit.Burst,
				a.Logger,
			).Handler)
		}

		a.setupAPIRoutes(r, errorHandler)

		if a.frontendFS != nil {
			r.Get("/", a.serveFrontendFile("index.html"))
			r.NotFound(a.serveSPAHandler())
		}
	})

	a.Router = r
}

// setupAPIRoutes configures the /api endpoints.
func (a *Application) setupAPIRoutes(r chi.Router, errorHandler *apierrors.ErrorHandler) {
	r.Route("/api", func(r chi.Router) {
		r.Use(custommw.Timeout(a.Config.Server.ReadTimeout, a.Logger))

		healthHandler := transport.NewHealthHandler(a.Service, a.Logger, Version)
		r.Mount("/health", healthHandler.Routes())
		r.Get("/version", transport.VersionHandler(Version))

		dashboardHandler := transport.NewDashboardHandler(a.Service, a.Logger, errorHandler)
		r.Mount("/tags", dashboardHandler.Routes())
	})
}

// serveFrontendFile serves a single file from the embedded frontend.
func (a *Application) serveFrontendFile(filename string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		file, err := a.frontendFS.Open(filename)
		if err != nil {
			http.NotFound(w, r)
			return
		}
		defer file.Close()

		w.Header().Set("Content-Type", contentTypeFor(filename))
		io.Copy(w, file)
	}
}

// serveStaticWithMIME serves embedded assets with explicit MIME types, which
// an fs.FS file server cannot infer on all platforms.
func (a *Application) serveStaticWithMIME(frontendFS fs.FS) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := strings.TrimPrefix(r.URL.Path, "/")

		file, err := frontendFS.Open(p)
		if err != nil {
			http.NotFound(w, r)
			return
		}
		defer file.Close()

		w.Header().Set("Content-Type", contentTypeFor(p))
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		io.Copy(w, file)
	})
}

// serveSPAHandler serves the dashboard page for unknown paths so browser
// refreshes keep working, and 404s for API and asset paths.
func (a *Application) serveSPAHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		urlPath := path.Clean(r.URL.Path)
		if strings.HasPrefix(urlPath, "/api/") || strings.Contains(path.Base(urlPath), ".") {
			http.NotFound(w, r)
			return
		}
		a.serveFrontendFile("index.html")(w, r)
	}
}

func contentTypeFor(filename string) string {
	switch strings.ToLower(path.Ext(filename)) {
	case ".html":
		return "text/html; charset=utf-8"
	case ".js":
		return "application/javascript"
	case ".css":
		return "text/css"
	case ".json":
		return "application/json"
	case ".svg":
		return "image/svg+xml"
	case ".png":
		return "image/png"
	case ".ico":
		return "image/x-icon"
	default:
		return "application/octet-stream"
	}
}

func (a *Application) createServer() {
	a.Server = &http.Server{
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// listen binds the configured port, walking forward through the retry window
// when ports are already taken.
func (a *Application) listen() (net.Listener, error) {
	base := a.Config.Server.Port
	for attempt := 0; attempt <= a.Config.Server.PortRetries; attempt++ {
		port := base + attempt
		ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
		if err == nil {
			a.Port = port
			return ln, nil
		}
		a.Logger.Warn("port unavailable, trying next",
			slog.Int("port", port),
			slog.String("error", err.Error()),
		)
	}
	return nil, fmt.Errorf("no free port in range %d-%d", base, base+a.Config.Server.PortRetries)
}

// Run starts the server and blocks until ctx is cancelled or a component
// fails.
func (a *Application) Run(ctx context.Context) error {
	ln, err := a.listen()
	if err != nil {
		return err
	}

	a.Logger.InfoContext(ctx, "starting application",
		slog.String("name", AppName),
		slog.String("version", Version),
		slog.Int("port", a.Port),
		slog.String("address", fmt.Sprintf("http://localhost:%d", a.Port)),
	)

	a.Hub.Start()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := a.Server.Serve(ln); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	if a.Watcher != nil {
		g.Go(func() error {
			err := a.Watcher.Run(gctx)
			if err == context.Canceled {
				return nil
			}
			return err
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		return a.Stop(context.Background())
	})

	return g.Wait()
}

// Stop gracefully shuts down the server and hub.
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	err := a.Server.Shutdown(shutdownCtx)
	a.Hub.Stop()
	infrastructure.CloseLogFile()

	if err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	a.Logger.InfoContext(ctx, "application stopped")
	return nil
}
