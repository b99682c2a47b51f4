package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/leadwire/relay/internal/api/handlers"
	"github.com/leadwire/relay/internal/api/middleware"
	"github.com/leadwire/relay/internal/config"
	"github.com/leadwire/relay/internal/observability"
	"github.com/leadwire/relay/internal/quotes"
	"github.com/leadwire/relay/internal/repository"
	"github.com/leadwire/relay/internal/service"
	"github.com/leadwire/relay/internal/worker"
)

// App holds all server dependencies and coordinates startup and shutdown.
type App struct {
	cfg         *config.Config
	db          *pgxpool.Pool
	server      *http.Server
	bus         *service.EventBus
	monitor     *worker.AlertMonitor
	monitorDone chan struct{}
}

// NewApp builds and wires all components. It does not start the HTTP server
// or the alert monitor; call Run to start and block until shutdown or failure.
func NewApp(cfg *config.Config, db *pgxpool.Pool) (*App, error) {
	// Install RequestContextHandler so request_id appears in request-scoped logs.
	defaultHandler := slog.Default().Handler()
	slog.SetDefault(slog.New(observability.NewRequestContextHandler(defaultHandler)))

	webhooksRepo := repository.NewWebhooksRepository(db)
	notificationsRepo := repository.NewNotificationsRepository(db)
	leadsRepo := repository.NewLeadsRepository(db)
	alertsRepo := repository.NewAlertsRepository(db)

	dispatcher := service.NewDispatcher(webhooksRepo, &service.DispatcherConfig{
		MaxConcurrent: cfg.WebhookDeliveryMaxConcurrent,
		CacheEnabled:  cfg.WebhookCacheEnabled,
		CacheTTL:      cfg.WebhookCacheTTL,
	})

	bus := service.NewEventBus(dispatcher, &service.EventBusConfig{
		BufferSize:      cfg.EventBufferSize,
		DispatchTimeout: cfg.EventDispatchTimeout,
	})

	notificationsService := service.NewNotificationsService(notificationsRepo)
	webhooksService := service.NewWebhooksService(webhooksRepo, dispatcher)
	leadsService := service.NewLeadsService(leadsRepo, bus, notificationsService)
	alertsService := service.NewAlertsService(alertsRepo, bus)

	var monitor *worker.AlertMonitor
	if cfg.AlertMonitorEnabled {
		quoteClient := quotes.NewClient(cfg.QuoteProviderURL,
			quotes.WithRetryMax(cfg.QuoteRetryMax),
			quotes.WithRateLimit(float64(cfg.QuoteRequestsPerMin)/60),
		)
		monitor = worker.NewAlertMonitor(alertsRepo, quoteClient, bus, notificationsService, cfg.AlertPollInterval)
	} else {
		slog.Info("alert monitor disabled (ALERT_MONITOR_ENABLED not set)")
	}

	server := newHTTPServer(cfg,
		handlers.NewHealthHandler(),
		handlers.NewWebhooksHandler(webhooksService),
		handlers.NewNotificationsHandler(notificationsService),
		handlers.NewLeadsHandler(leadsService),
		handlers.NewAlertsHandler(alertsService),
	)

	return &App{
		cfg:     cfg,
		db:      db,
		server:  server,
		bus:     bus,
		monitor: monitor,
	}, nil
}

// newHTTPServer builds the HTTP server and muxes (no auth on /health, API key on /v1/).
func newHTTPServer(
	cfg *config.Config,
	health *handlers.HealthHandler,
	webhooks *handlers.WebhooksHandler,
	notifications *handlers.NotificationsHandler,
	leads *handlers.LeadsHandler,
	alerts *handlers.AlertsHandler,
) *http.Server {
	public := http.NewServeMux()
	public.HandleFunc("GET /health", health.Check)

	protected := http.NewServeMux()
	protected.HandleFunc("POST /v1/webhooks", webhooks.Create)
	protected.HandleFunc("GET /v1/webhooks", webhooks.List)
	protected.HandleFunc("GET /v1/webhooks/{id}", webhooks.Get)
	protected.HandleFunc("PATCH /v1/webhooks/{id}", webhooks.Update)
	protected.HandleFunc("DELETE /v1/webhooks/{id}", webhooks.Delete)

	protected.HandleFunc("POST /v1/leads", leads.Create)
	protected.HandleFunc("GET /v1/leads", leads.List)
	protected.HandleFunc("GET /v1/leads/{id}", leads.Get)
	protected.HandleFunc("PATCH /v1/leads/{id}", leads.Update)
	protected.HandleFunc("DELETE /v1/leads/{id}", leads.Delete)
	protected.HandleFunc("POST /v1/leads/{id}/share", leads.Share)
	protected.HandleFunc("PUT /v1/leads/{id}/realtor", leads.AssignRealtor)
	protected.HandleFunc("DELETE /v1/leads/{id}/realtor", leads.UnassignRealtor)
	protected.HandleFunc("PUT /v1/leads/{id}/partner", leads.AssignPartner)
	protected.HandleFunc("DELETE /v1/leads/{id}/partner", leads.UnassignPartner)
	protected.HandleFunc("PUT /v1/leads/{id}/broker", leads.AssignBroker)

	protected.HandleFunc("POST /v1/alerts", alerts.Create)
	protected.HandleFunc("GET /v1/alerts", alerts.List)
	protected.HandleFunc("GET /v1/alerts/{id}", alerts.Get)
	protected.HandleFunc("PATCH /v1/alerts/{id}", alerts.Update)
	protected.HandleFunc("DELETE /v1/alerts/{id}", alerts.Delete)

	protected.HandleFunc("POST /v1/notifications", notifications.Create)
	protected.HandleFunc("GET /v1/notifications", notifications.List)
	protected.HandleFunc("POST /v1/notifications/{id}/read", notifications.MarkRead)
	protected.HandleFunc("POST /v1/notifications/read-all", notifications.MarkAllRead)

	protectedWithAuth := middleware.Auth(cfg.APIKey)(protected)
	mux := http.NewServeMux()
	mux.Handle("/v1/", protectedWithAuth)
	mux.Handle("/", public)

	handler := middleware.Logging(mux)
	handler = middleware.MaxBody(cfg.MaxRequestBodyBytes)(handler)
	handler = middleware.RequestID(handler)

	const (
		readTimeout  = 15 * time.Second
		writeTimeout = 15 * time.Second
		idleTimeout  = 60 * time.Second
	)

	return &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}
}

// Run starts the HTTP server and the alert monitor, then blocks until ctx is
// cancelled (e.g. signal) or the server fails. Caller should then call Shutdown.
func (a *App) Run(ctx context.Context) error {
	runErr := make(chan error, 1)

	monitorCtx, cancelMonitor := context.WithCancel(ctx)
	defer cancelMonitor()

	if a.monitor != nil {
		a.monitorDone = make(chan struct{})
		go func() {
			defer close(a.monitorDone)
			a.monitor.Start(monitorCtx)
		}()
	}

	go func() {
		slog.Info("Starting server", "port", a.cfg.Port)

		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			select {
			case runErr <- fmt.Errorf("server: %w", err):
			default:
			}
		}
	}()

	select {
	case err := <-runErr:
		cancelMonitor()
		a.waitForMonitor()

		return err
	case <-ctx.Done():
		cancelMonitor()
		a.waitForMonitor()

		return nil
	}
}

// waitForMonitor joins the monitor goroutine so it cannot publish into the
// event bus after Shutdown begins.
func (a *App) waitForMonitor() {
	if a.monitorDone != nil {
		<-a.monitorDone
	}
}

// Shutdown stops the server then the event bus in order. Call after Run returns.
// The bus is drained last so in-flight domain writes still get their events dispatched.
func (a *App) Shutdown(ctx context.Context) error {
	defer a.bus.Shutdown()

	if err := a.server.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
