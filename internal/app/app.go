package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/go-chi/chi/v5"

	"github.com/gddickinson/flipr-calcium-response-analysis-sub000/internal/config"
	"github.com/gddickinson/flipr-calcium-response-analysis-sub000/internal/errors"
	"github.com/gddickinson/flipr-calcium-response-analysis-sub000/internal/infrastructure"
	customMiddleware "github.com/gddickinson/flipr-calcium-response-analysis-sub000/internal/middleware"
	"github.com/gddickinson/flipr-calcium-response-analysis-sub000/internal/services"
	handlers "github.com/gddickinson/flipr-calcium-response-analysis-sub000/internal/transport/http"
	ws "github.com/gddickinson/flipr-calcium-response-analysis-sub000/internal/websocket"
	"github.com/gddickinson/flipr-calcium-response-analysis-sub000/pkg/contracts"
)

// Application represents the main application container
type Application struct {
	Config          *config.Config
	Paths           *config.Paths
	Router          *chi.Mux
	Server          *http.Server
	WebSocketHub    *ws.Hub
	AnalysisService *services.AnalysisService
	HealthService   *services.HealthService
	Logger          *slog.Logger
	OTelProviders   *infrastructure.OTelProviders
	Metrics         *infrastructure.BusinessMetrics
	ErrorHandler    *errors.ErrorHandler
}

// NewApplication loads configuration and wires every component
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if cfg.Logging.FilePath != "" && !filepath.IsAbs(cfg.Logging.FilePath) {
		cfg.Logging.FilePath = filepath.Join(cfg.Paths.BaseDir, cfg.Logging.FilePath)
	}
	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return New(cfg, logger)
}

// New builds an application from an explicit configuration. A nil logger
// uses the default logger.
func New(cfg *config.Config, logger *slog.Logger) (*Application, error) {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("Application starting",
		slog.String("name", config.AppName),
		slog.String("version", contracts.Version))

	paths := cfg.ResolvedPaths()
	if err := paths.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to ensure directories: %w", err)
	}
	paths.LogPathResolution(logger)

	otelProviders, err := infrastructure.InitializeOTel(infrastructure.OTelConfigFrom(cfg.Telemetry), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	app := &Application{
		Config:        cfg,
		Paths:         paths,
		Logger:        logger,
		OTelProviders: otelProviders,
		ErrorHandler:  errors.NewErrorHandler(logger, cfg.Logging.Development),
	}

	if err := app.initializeServices(); err != nil {
		otelProviders.Shutdown(context.Background())
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.setupRouter()
	app.createServer()

	return app, nil
}

// initializeServices creates the hub, the analysis session and health checks
func (a *Application) initializeServices() error {
	metrics, err := infrastructure.CreateBusinessMetrics(a.OTelProviders.Meter)
	if err != nil {
		return fmt.Errorf("failed to create business metrics: %w", err)
	}
	a.Metrics = metrics

	collector, err := infrastructure.NewSystemMetricsCollector(a.OTelProviders.Meter)
	if err != nil {
		return fmt.Errorf("failed to create system metrics collector: %w", err)
	}

	a.WebSocketHub = ws.NewHub(a.Config.WebSocket, metrics, a.Logger)

	diagnosisPath := a.Config.Diagnosis.ConfigFile
	if diagnosisPath == "" {
		diagnosisPath = a.Paths.DiagnosisConfigFile
	} else if !filepath.IsAbs(diagnosisPath) {
		diagnosisPath = filepath.Join(a.Paths.BaseDir, diagnosisPath)
	}

	analysis, err := services.NewAnalysisService(services.AnalysisOptions{
		Params:              a.Config.Analysis.Parameters(),
		DiagnosisConfigPath: diagnosisPath,
		Workers:             a.Config.Analysis.Workers,
		Paths:               a.Paths,
		Publisher:           a.WebSocketHub,
		Tracer:              a.OTelProviders.Tracer,
		Metrics:             metrics,
		Logger:              a.Logger,
	})
	if err != nil {
		return err
	}
	a.AnalysisService = analysis

	a.HealthService = services.NewHealthService(a.Paths, analysis, a.WebSocketHub, collector, a.Logger)
	return nil
}

// setupRouter configures the HTTP router
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)

	// The upgrade needs the raw ResponseWriter, so /ws sits outside the
	// logging and compression stack.
	r.With(customMiddleware.WebSocketTraceMiddleware(a.Logger)).
		Handle("/ws", ws.NewHandler(a.WebSocketHub, a.Config.Server.AllowedOrigins, a.Logger))

	r.Group(func(r chi.Router) {
		if otelMiddleware, err := customMiddleware.NewOTelMiddleware(a.OTelProviders, a.Metrics); err != nil {
			a.Logger.Warn("OpenTelemetry middleware disabled", slog.String("error", err.Error()))
		} else {
			r.Use(otelMiddleware.Handler)
		}
		r.Use(customMiddleware.StructuredLogger(a.Logger))
		r.Use(customMiddleware.Recoverer(a.ErrorHandler))
		r.Use(customMiddleware.DefaultSecureHeaders(a.isDevelopmentMode()).Handler)
		r.Use(customMiddleware.CORS(customMiddleware.CORSConfigFrom(a.Config.Server, a.Logger)))
		if limiter := customMiddleware.NewRateLimiter(a.Config.RateLimit, a.Logger); limiter != nil {
			r.Use(limiter.Handler)
		}

		handlers.NewHealthHandler(a.HealthService, a.Logger, a.ErrorHandler).RegisterRoutes(r)
		r.Route("/api/v1", a.setupAPIRoutes)

		if a.OTelProviders.PrometheusHTTP != nil {
			r.Handle("/metrics", a.OTelProviders.PrometheusHTTP)
		}

		r.NotFound(func(w http.ResponseWriter, req *http.Request) {
			if strings.HasPrefix(req.URL.Path, "/api/") {
				a.ErrorHandler.HandleError(w, req, errors.NotFoundError("route "+req.URL.Path))
				return
			}
			handlers.ServeMainApp(a.Paths.WebDir)(w, req)
		})
		r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
			a.ErrorHandler.HandleError(w, req,
				errors.New(http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", req.Method+" is not allowed on "+req.URL.Path))
		})
	})

	a.Router = r
}

// uploadContentTypes are the request bodies the API accepts: JSON commands,
// instrument exports and metadata sheets.
var uploadContentTypes = []string{
	"application/json",
	"multipart/form-data",
	"text/",
	"application/octet-stream",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

// setupAPIRoutes mounts the versioned REST API
func (a *Application) setupAPIRoutes(r chi.Router) {
	r.Use(customMiddleware.MaxBodySize(a.Config.Server.MaxUploadBytes))
	r.Use(customMiddleware.ContentTypeValidator(uploadContentTypes...))
	r.Use(customMiddleware.NewValidationMiddleware(a.Logger, a.ErrorHandler, a.Config.Server.MaxUploadBytes).ValidateRequest)
	r.Use(customMiddleware.Compress(5))

	r.Post("/logs", handlers.NewClientLogHandler(a.Logger, a.ErrorHandler).Handle)

	handlers.NewDataHandler(a.AnalysisService, a.Logger, a.ErrorHandler).RegisterRoutes(r)
	handlers.NewLayoutHandler(a.AnalysisService, a.Logger, a.ErrorHandler).RegisterRoutes(r)
	handlers.NewAnalysisHandler(a.AnalysisService, a.Logger, a.ErrorHandler).RegisterRoutes(r)
	handlers.NewExportHandler(a.AnalysisService, a.Logger, a.ErrorHandler).RegisterRoutes(r)
}

func (a *Application) isDevelopmentMode() bool {
	if a.Config.Logging.Development {
		return true
	}
	return strings.EqualFold(a.Config.Telemetry.Environment, "development")
}

func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           a.Config.Server.Addr(),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// Start starts the hub and the HTTP server. A listener failure cancels ctx
// through cancel.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	a.Logger.InfoContext(ctx, "Starting application",
		slog.String("name", config.AppName),
		slog.String("version", contracts.Version),
		slog.String("address", a.Server.Addr),
		slog.String("level", a.Config.Logging.Level))

	a.WebSocketHub.Start()

	go func() {
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			infrastructure.WithError(a.Logger, err).ErrorContext(ctx, "Server error")
			cancel()
		}
	}()

	if err := a.performStartupHealthCheck(ctx); err != nil {
		a.Logger.WarnContext(ctx, "Startup health check warnings", slog.String("warnings", err.Error()))
	}

	a.Logger.InfoContext(ctx, "Application started successfully",
		slog.String("address", a.Server.Addr))
	return nil
}

// Stop gracefully stops the application
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	var shutdownErr error
	if a.Server != nil {
		if err := a.Server.Shutdown(shutdownCtx); err != nil {
			shutdownErr = fmt.Errorf("server shutdown error: %w", err)
		}
	}

	a.WebSocketHub.Stop()

	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}
	}

	if err := infrastructure.CloseLogFile(); err != nil {
		a.Logger.ErrorContext(ctx, "Error closing log file", slog.String("error", err.Error()))
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return shutdownErr
}

// Run runs the application until interrupted or the server fails
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	select {
	case <-sigChan:
		a.Logger.InfoContext(ctx, "Received interrupt signal")
	case <-ctx.Done():
		a.Logger.ErrorContext(ctx, "Server stopped unexpectedly")
	}

	return a.Stop(context.Background())
}

// performStartupHealthCheck verifies the writable directories and the
// frontend. Problems are reported, never fatal.
func (a *Application) performStartupHealthCheck(ctx context.Context) error {
	var warnings []string

	directories := map[string]string{
		"Data":    a.Paths.DataDir,
		"Reports": a.Paths.ReportsDir,
		"Layouts": a.Paths.LayoutsDir,
		"Logs":    a.Paths.LogsDir,
	}
	for name, dir := range directories {
		testFile := filepath.Join(dir, ".write_test")
		if err := os.WriteFile(testFile, []byte("test"), 0644); err != nil {
			warnings = append(warnings, fmt.Sprintf("%s directory not writable: %s", name, dir))
		} else {
			os.Remove(testFile)
		}
	}

	if !config.FileExists(filepath.Join(a.Paths.WebDir, "index.html")) {
		a.Logger.InfoContext(ctx, "Frontend not installed", slog.String("web_dir", a.Paths.WebDir))
	}
	if !config.FileExists(a.Paths.DiagnosisConfigFile) {
		a.Logger.InfoContext(ctx, "Diagnosis configuration not found, using defaults",
			slog.String("path", a.Paths.DiagnosisConfigFile))
	}

	if len(warnings) > 0 {
		return fmt.Errorf("startup health check warnings: %s", strings.Join(warnings, "; "))
	}

	a.Logger.InfoContext(ctx, "Startup health check passed")
	return nil
}
