package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"calqtrade/internal/config"
	apierrors "calqtrade/internal/errors"
	"calqtrade/internal/exporter"
	"calqtrade/internal/infrastructure"
	customMiddleware "calqtrade/internal/middleware"
	"calqtrade/internal/services"
	"calqtrade/internal/sessions"
	handlers "calqtrade/internal/transport/http"
	ws "calqtrade/internal/websocket"
	"calqtrade/pkg/contracts"
)

const AppName = "CalqTrade"

// Application is the dependency container for the service.
type Application struct {
	Config *config.Config
	Router *chi.Mux
	Server *http.Server

	Store          *sessions.Store
	WebSocketHub   *ws.Hub
	CalcService    *services.CalcService
	SessionService *services.SessionService
	HealthService  *services.HealthService

	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders

	metricsCollector *infrastructure.SystemMetricsCollector
	sweepCancel      context.CancelFunc
}

// NewApplication creates a fully wired application instance.
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Info("application starting",
		slog.String("name", AppName),
		slog.String("version", contracts.Version))

	otelProviders, err := infrastructure.InitializeOTel(infrastructure.DefaultOTelConfig(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	app := &Application{
		Config:        cfg,
		Logger:        logger,
		OTelProviders: otelProviders,
	}

	if err := app.initializeServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.setupRouter()
	app.createServer()

	return app, nil
}

// initializeServices builds the session store, hub and service layer.
func (a *Application) initializeServices() error {
	businessMetrics, err := infrastructure.CreateBusinessMetrics(a.OTelProviders.Meter)
	if err != nil {
		a.Logger.Warn("business metrics unavailable", slog.String("error", err.Error()))
	}

	a.Store = sessions.NewStore(a.Config.Sessions, a.Logger)
	if businessMetrics != nil {
		a.Store.OnExpire(func(count int) {
			ctx := context.Background()
			businessMetrics.SessionsExpired.Add(ctx, int64(count))
			businessMetrics.SessionsActive.Add(ctx, -int64(count))
		})
	}

	hub := ws.NewHub(a.Config.WebSocket, a.Logger)
	hub.SetMetrics(businessMetrics)
	a.WebSocketHub = hub

	calcService, err := services.NewCalcService(a.Config.Fees, a.Logger, businessMetrics)
	if err != nil {
		return fmt.Errorf("failed to initialize calculation service: %w", err)
	}
	a.CalcService = calcService

	a.SessionService = services.NewSessionService(a.Store, calcService, hub, a.Logger, businessMetrics)

	collector, err := infrastructure.NewSystemMetricsCollector(a.OTelProviders.Meter, 30*time.Second)
	if err != nil {
		a.Logger.Warn("system metrics collector unavailable", slog.String("error", err.Error()))
	}
	a.metricsCollector = collector

	a.HealthService = services.NewHealthService(a.Store, collector, a.Logger)

	return nil
}

// setupRouter configures the HTTP router with all routes.
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	// Minimal middleware that will not wrap the ResponseWriter; the
	// websocket upgrade needs the raw http.ResponseWriter.
	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)

	wsHandler := handlers.NewWebSocketHandler(a.WebSocketHub, a.Logger)
	r.With(customMiddleware.WebSocketTraceMiddleware(a.Logger)).Get("/ws", wsHandler.ServeHTTP)

	errorHandler := apierrors.NewErrorHandler(a.Logger, a.Config.Logging.Development)
	validation := customMiddleware.NewValidationMiddleware(a.Logger, errorHandler)

	r.Group(func(r chi.Router) {
		otelMiddleware, err := customMiddleware.NewOTelMiddleware(a.OTelProviders)
		if err != nil {
			a.Logger.Error("failed to create OpenTelemetry middleware", slog.String("error", err.Error()))
		} else {
			r.Use(otelMiddleware.Handler)
			r.Use(customMiddleware.BusinessMetricsMiddleware(otelMiddleware.Metrics()))
		}

		r.Use(customMiddleware.StructuredLogger(a.Logger))
		r.Use(customMiddleware.Recoverer(a.Logger))
		r.Use(customMiddleware.SecurityHeaders)

		if a.Config.Security.EnableCORS {
			r.Use(customMiddleware.CORS(a.getCORSConfig()))
		}

		if a.Config.Security.RateLimit.Enabled {
			r.Use(customMiddleware.NewRateLimiter(
				a.Config.Security.RateLimit.RPS,
				a.Config.Security.RateLimit.Burst,
				a.Logger,
			).Handler)
		}

		r.Use(customMiddleware.Timeout(a.Config.Server.RequestTimeout, a.Logger))

		a.setupAPIRoutes(r, errorHandler, validation)
	})

	r.NotFound(errorHandler.NotFound)
	r.MethodNotAllowed(errorHandler.MethodNotAllowed)

	// Prometheus scrape endpoint stays outside the middleware group.
	if a.OTelProviders.PrometheusHTTP != nil {
		r.Handle("/metrics", a.OTelProviders.PrometheusHTTP)
	} else {
		r.Handle("/metrics", handlers.MetricsHandler())
	}

	a.Router = r
}

// setupAPIRoutes mounts the /api route tree.
func (a *Application) setupAPIRoutes(r chi.Router, errorHandler *apierrors.ErrorHandler, validation *customMiddleware.ValidationMiddleware) {
	calcHandler := handlers.NewCalcHandler(a.CalcService, validation, a.Logger, errorHandler)
	sessionHandler := handlers.NewSessionHandler(a.SessionService, exporter.New(a.Logger), validation, a.Config.Sessions.MaxLots, a.Logger, errorHandler)
	healthHandler := handlers.NewHealthHandler(a.HealthService, a.Logger)

	r.Route("/api", func(r chi.Router) {
		// Reject oversized and malformed bodies before routing, and
		// require JSON on write endpoints.
		r.Use(validation.ValidateRequest)
		r.Use(customMiddleware.ContentTypeValidator("application/json"))

		r.Mount("/trades", calcHandler.TradeRoutes())
		r.Mount("/breakeven", calcHandler.BreakEvenRoutes())
		r.Mount("/policies", calcHandler.PolicyRoutes())
		r.Mount("/sessions", sessionHandler.Routes())
		r.Mount("/health", healthHandler.Routes())
		r.Get("/version", healthHandler.Version)
	})
}

func (a *Application) getCORSConfig() customMiddleware.CORSConfig {
	return customMiddleware.CORSConfig{
		AllowedOrigins:   a.Config.Security.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           300,
		Logger:           a.Logger,
	}
}

func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// Start launches the background services and the HTTP server.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	a.Logger.InfoContext(ctx, "starting server",
		slog.Int("port", a.Config.Server.Port),
		slog.String("level", a.Config.Logging.Level))

	a.WebSocketHub.Start()

	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	a.sweepCancel = sweepCancel
	a.Store.StartSweeper(sweepCtx)

	if a.metricsCollector != nil {
		go a.metricsCollector.Start(sweepCtx)
	}

	go func() {
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.Logger.ErrorContext(ctx, "server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	a.Logger.InfoContext(ctx, "application started",
		slog.String("address", fmt.Sprintf("http://localhost:%d", a.Config.Server.Port)))
	return nil
}

// Stop gracefully stops the application.
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	a.WebSocketHub.Stop()
	if a.sweepCancel != nil {
		a.sweepCancel()
	}
	a.Store.Stop()
	if a.metricsCollector != nil {
		a.metricsCollector.Stop()
	}

	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}
	}

	a.Logger.InfoContext(ctx, "application shutdown complete")
	return nil
}

// Run runs the application until interrupted.
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	select {
	case <-sigChan:
		a.Logger.InfoContext(ctx, "received interrupt signal")
	case <-ctx.Done():
	}

	return a.Stop(context.Background())
}
