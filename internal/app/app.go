package app

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"verdiff/internal/config"
	apierrors "verdiff/internal/errors"
	"verdiff/internal/infrastructure"
	custommw "verdiff/internal/middleware"
	handlers "verdiff/internal/transport/http"
	"verdiff/internal/validation"
)

// Application wires the analysis API: configuration, observability, the
// router and the HTTP server.
type Application struct {
	Config        *config.Config
	Paths         *config.Paths
	Router        *chi.Mux
	Server        *http.Server
	Logger        *slog.Logger
	Metrics       *infrastructure.Metrics
	OTelProviders *infrastructure.OTelProviders

	errorHandler *apierrors.ErrorHandler

	mu       sync.Mutex
	listener net.Listener
}

// Option customizes an Application.
type Option func(*Application)

// WithLogger sets the application logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Application) { a.Logger = logger }
}

// WithMetrics shares an existing metrics registry.
func WithMetrics(m *infrastructure.Metrics) Option {
	return func(a *Application) { a.Metrics = m }
}

// WithOTel hands over tracing providers; Stop shuts them down.
func WithOTel(p *infrastructure.OTelProviders) Option {
	return func(a *Application) { a.OTelProviders = p }
}

// NewApplication creates the router and server for cfg. Missing logger and
// metrics are created here.
func NewApplication(cfg *config.Config, paths *config.Paths, opts ...Option) (*Application, error) {
	if cfg == nil {
		return nil, apierrors.NewConfigError("configuration is required", nil)
	}
	if paths == nil {
		var err error
		if paths, err = cfg.ResolvePaths(""); err != nil {
			return nil, apierrors.NewConfigError("failed to resolve paths", err)
		}
	}

	a := &Application{Config: cfg, Paths: paths}
	for _, opt := range opts {
		opt(a)
	}

	if a.Logger == nil {
		a.Logger = infrastructure.GetLogger()
	}
	if a.Metrics == nil {
		m, err := infrastructure.NewMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to initialize metrics: %w", err)
		}
		a.Metrics = m
	}

	a.errorHandler = apierrors.NewErrorHandler(a.Logger, false)
	a.setupRouter()
	a.createServer()

	return a, nil
}

func (a *Application) tracer() trace.Tracer {
	if a.OTelProviders != nil && a.OTelProviders.Tracer != nil {
		return a.OTelProviders.Tracer
	}
	return otel.Tracer(infrastructure.TracerName)
}

// setupRouter configures the middleware chain and the routes.
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(infrastructure.TraceIDMiddleware)
	r.Use(middleware.RealIP)
	r.Use(apierrors.NewErrorMiddleware(a.errorHandler, a.Logger).Handler)
	r.Use(custommw.NewInstrumentation(a.tracer(), a.Metrics, a.Logger).Handler)
	r.Use(custommw.SecurityHeaders)

	r.NotFound(a.errorHandler.NotFound)
	r.MethodNotAllowed(a.errorHandler.MethodNotAllowed)

	health := handlers.NewHealthHandler(a.Logger)
	r.Get(config.HealthEndpoint, health.HealthCheck)
	r.Method(http.MethodGet, config.MetricsEndpoint, handlers.NewMetricsHandler(a.Metrics))

	a.setupAPIRoutes(r)

	a.Router = r
}

// setupAPIRoutes mounts the analysis endpoints behind the rate limiter.
func (a *Application) setupAPIRoutes(r chi.Router) {
	limiter := custommw.NewRateLimiterFromConfig(a.Config.Server.RateLimit, a.Logger, a.errorHandler)
	validation := custommw.NewValidationMiddleware(a.Logger, a.errorHandler, a.Config.Server.MaxBodyBytes)
	analysis := handlers.NewAnalysisHandler(a.Config.AnalysisParams, validation, a.Metrics, a.Logger, a.errorHandler)

	r.Group(func(r chi.Router) {
		r.Use(limiter.Handler)
		r.Mount(config.APIBasePath, analysis.Routes())
	})
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:         a.Config.Server.Addr,
		Handler:      a.Router,
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
		IdleTimeout:  a.Config.Server.IdleTimeout,
		ErrorLog:     slog.NewLogLogger(a.Logger.Handler(), slog.LevelError),
	}
}

// Addr returns the address the server listens on once started.
func (a *Application) Addr() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener != nil {
		return a.listener.Addr().String()
	}
	return a.Server.Addr
}

// Start binds the listen address and serves in the background. A serve
// failure after startup calls cancel.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	a.Logger.InfoContext(ctx, "starting server",
		slog.String("name", config.AppName),
		slog.String("version", config.AppVersion),
		slog.String("addr", a.Config.Server.Addr),
		slog.String("level", a.Config.Logging.Level))

	a.Paths.LogPathResolution(a.Logger)

	if err := a.performStartupHealthCheck(ctx); err != nil {
		a.Logger.WarnContext(ctx, "startup health check warnings", slog.String("warnings", err.Error()))
	}

	ln, err := net.Listen("tcp", a.Config.Server.Addr)
	if err != nil {
		return apierrors.NewNetworkError(fmt.Sprintf("failed to listen on %s", a.Config.Server.Addr), err)
	}
	a.mu.Lock()
	a.listener = ln
	a.mu.Unlock()

	go func() {
		if err := a.Server.Serve(ln); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			a.Logger.ErrorContext(ctx, "server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	a.Logger.InfoContext(ctx, "server started",
		slog.String("address", "http://"+a.Addr()),
		slog.String("api", config.APIBasePath))
	return nil
}

// Stop drains in-flight requests, then flushes metrics and traces.
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "shutting down server")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	if err := a.Metrics.WriteToTextfile(a.Paths.MetricsFile); err != nil {
		a.Logger.ErrorContext(ctx, "failed to write metrics textfile", slog.String("error", err.Error()))
	}
	if err := a.Metrics.Shutdown(shutdownCtx); err != nil {
		a.Logger.ErrorContext(ctx, "error shutting down metrics", slog.String("error", err.Error()))
	}
	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}
	}

	a.Logger.InfoContext(ctx, "server shutdown complete")
	return nil
}

// Run serves until ctx is done or the process is interrupted.
func (a *Application) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	select {
	case sig := <-sigChan:
		a.Logger.InfoContext(ctx, "received signal", slog.String("signal", sig.String()))
	case <-ctx.Done():
	}

	return a.Stop(context.Background())
}

// performStartupHealthCheck makes sure every output directory exists and
// is writable.
func (a *Application) performStartupHealthCheck(ctx context.Context) error {
	if err := a.Paths.EnsureDirectories(); err != nil {
		return err
	}

	var warnings []string

	directories := map[string]string{
		"Logs":    a.Paths.LogsDir,
		"Prompts": a.Paths.PromptsDir,
		"Results": a.Paths.ResultsDir,
		"Reports": a.Paths.ReportsDir,
		"Exports": a.Paths.ExportsDir,
	}

	validator := validation.NewFileValidator(a.Logger)
	for name, dir := range directories {
		if err := validator.ValidateOutputDirectory(dir); err != nil {
			warnings = append(warnings, fmt.Sprintf("%s directory not writable: %s", name, dir))
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("startup health check warnings: %s", strings.Join(warnings, "; "))
	}

	a.Logger.DebugContext(ctx, "startup health check passed")
	return nil
}
