package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"

	cfhttp "github.com/Strob0t/StaffForge/internal/adapter/http"
	"github.com/Strob0t/StaffForge/internal/adapter/memory"
	cfnats "github.com/Strob0t/StaffForge/internal/adapter/nats"
	"github.com/Strob0t/StaffForge/internal/adapter/natskv"
	cfotel "github.com/Strob0t/StaffForge/internal/adapter/otel"
	"github.com/Strob0t/StaffForge/internal/adapter/postgres"
	"github.com/Strob0t/StaffForge/internal/adapter/ristretto"
	"github.com/Strob0t/StaffForge/internal/adapter/tiered"
	"github.com/Strob0t/StaffForge/internal/adapter/ws"
	"github.com/Strob0t/StaffForge/internal/config"
	"github.com/Strob0t/StaffForge/internal/domain/allocation"
	"github.com/Strob0t/StaffForge/internal/domain/assignment"
	"github.com/Strob0t/StaffForge/internal/domain/availability"
	"github.com/Strob0t/StaffForge/internal/logger"
	"github.com/Strob0t/StaffForge/internal/middleware"
	"github.com/Strob0t/StaffForge/internal/port/cache"
	"github.com/Strob0t/StaffForge/internal/port/database"
	"github.com/Strob0t/StaffForge/internal/port/eventstore"
	"github.com/Strob0t/StaffForge/internal/port/messagequeue"
	"github.com/Strob0t/StaffForge/internal/port/notifier"
	"github.com/Strob0t/StaffForge/internal/service"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "admin" {
		if err := runAdmin(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

// storeBackend is the persistence selected by store.driver.
type storeBackend interface {
	database.Store
	Ping(ctx context.Context) error
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, logCloser := logger.New(cfg.Logging)
	defer logCloser.Close()
	slog.SetDefault(log)

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"store", cfg.Store.Driver,
		"log_level", cfg.Logging.Level,
		"nats", cfg.NATS.URL != "",
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Telemetry ---

	otelShutdown, err := cfotel.Init(ctx, cfg.OTEL)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(sctx); err != nil {
			slog.Warn("otel shutdown", "error", err)
		}
	}()
	metrics, err := cfotel.NewMetrics()
	if err != nil {
		return fmt.Errorf("otel metrics: %w", err)
	}

	// --- Persistence ---

	var (
		store  storeBackend
		events eventstore.Store
	)
	switch cfg.Store.Driver {
	case "memory":
		store = memory.NewStore()
		events = memory.NewEventStore()
		slog.Warn("using in-memory store, data is lost on restart")
	case "postgres", "":
		pool, err := postgres.NewPool(ctx, cfg.Postgres)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		defer pool.Close()
		slog.Info("postgres connected")

		if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		slog.Info("migrations applied")

		store = postgres.NewStore(pool)
		events = postgres.NewEventStore(pool)
	default:
		return fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	// --- Messaging ---

	var (
		queue       messagequeue.Queue
		natsQueue   *cfnats.Queue
		replayStore middleware.ReplayStore
		l2          cache.Cache
	)
	if cfg.NATS.URL != "" {
		natsQueue, err = cfnats.Connect(ctx, cfg.NATS)
		if err != nil {
			return fmt.Errorf("nats: %w", err)
		}
		defer func() { _ = natsQueue.Close() }()
		queue = natsQueue

		idem, err := natsQueue.KeyValue(ctx, cfg.Idempotency.Bucket, cfg.Idempotency.TTL)
		if err != nil {
			return fmt.Errorf("idempotency bucket: %w", err)
		}
		replayStore = idem

		kv, err := natsQueue.KeyValue(ctx, cfg.Cache.L2Bucket, cfg.Cache.L2TTL)
		if err != nil {
			return fmt.Errorf("cache bucket: %w", err)
		}
		l2 = natskv.New(kv)
	}

	l1, err := ristretto.New(cfg.Cache.L1MaxSizeMB << 20)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer l1.Close()
	var readCache cache.Cache = l1
	if l2 != nil {
		readCache = tiered.New(l1, l2, cfg.Cache.TTL)
	}

	// --- Side effects ---

	notifiers, err := buildNotifiers(cfg.Notification)
	if err != nil {
		return fmt.Errorf("notifiers: %w", err)
	}
	slog.Info("notifiers configured", "count", len(notifiers))
	notifications := service.NewNotificationService(notifiers, cfg.Notification.EnabledEvents)
	notifications.SetBreakerPolicy(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout)
	notifications.SetMetrics(metrics)

	dispatcher := service.NewEventDispatcher(queue, service.NewAnalyticsService(events), notifications)
	dispatcher.SetMetrics(metrics)
	cancelConsume, err := dispatcher.Consume(ctx)
	if err != nil {
		return fmt.Errorf("event consumer: %w", err)
	}
	defer cancelConsume()

	hub := ws.NewHub(allowedOrigins(cfg.Server.CORSOrigin))

	projector := service.NewProjectorService(store, cfg.Projection.Timeout, cfg.Projection.Concurrency)
	projector.SetCache(readCache)
	projector.SetBroadcaster(hub)
	projector.SetMetrics(metrics)

	// --- Services ---

	consultants := service.NewConsultantService(store, dispatcher)
	consultants.SetCache(readCache, cfg.Cache.TTL)

	availabilitySvc := service.NewAvailabilityService(store, dispatcher, projector, availability.Policy{
		AutoApproveDays:   cfg.TimeOff.AutoApproveDays,
		AdvanceNoticeDays: cfg.TimeOff.AdvanceNoticeDays,
		MaxDaysPerRequest: cfg.TimeOff.MaxDaysPerRequest,
		SeniorRoles:       cfg.TimeOff.SeniorRoles,
	})
	availabilitySvc.SetMetrics(metrics)

	assignments := service.NewAssignmentService(store, dispatcher, projector, service.AssignmentPolicy{
		Rules: allocation.Rules{
			MaxAllocation:       cfg.Scheduling.MaxAllocation,
			WarningThreshold:    cfg.Scheduling.WarningThreshold,
			MaxConcurrent:       cfg.Scheduling.MaxConcurrent,
			AllowOverallocation: cfg.Scheduling.AllowOverallocation,
		},
		AutoApproval: assignment.AutoApprovalRule{
			MaxDays:       cfg.Approval.AutoApproveMaxDays,
			RateCeiling:   decimal.NewFromFloat(cfg.Approval.RateCeiling),
			MaxPercentage: cfg.Approval.AutoApproveAllocation,
		},
		DefaultApprovers:    cfg.Approval.DefaultApprovers,
		DefaultHoursPerWeek: cfg.Scheduling.DefaultHoursPerWeek,
		DefaultHoursPerDay:  cfg.Scheduling.DefaultHoursPerDay,
	})
	assignments.SetMetrics(metrics)

	handlers := &cfhttp.Handlers{
		Consultants:  consultants,
		Availability: availabilitySvc,
		Capacity: service.NewCapacityService(store, allocation.Defaults{
			HoursPerDay:       cfg.Scheduling.DefaultHoursPerDay,
			UtilizationTarget: cfg.Scheduling.UtilizationTarget,
		}),
		Assignments: assignments,
		Projector:   projector,
		Tenants:     service.NewTenantService(store),
		Analytics:   service.NewAnalyticsService(events),
		Store:       store,
		BodyLimit:   cfg.Server.MaxBodyBytes,
	}

	if cfg.Projection.OnStartup {
		if err := reprojectTenants(ctx, store, projector); err != nil {
			slog.Warn("startup projection failed", "error", err)
		}
	}

	// --- HTTP ---

	limiter := middleware.NewRateLimiter(cfg.Rate.RequestsPerSecond, cfg.Rate.Burst)
	stopCleanup := limiter.StartCleanup(cfg.Rate.CleanupInterval, cfg.Rate.MaxIdleTime)
	defer stopCleanup()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(cfotel.HTTPMiddleware(cfg.OTEL.ServiceName))
	r.Use(cfhttp.SecurityHeaders)
	r.Use(cfhttp.CORS(cfg.Server.CORSOrigin))
	r.Use(middleware.TenantID)
	r.Use(middleware.Identity)
	r.Use(cfhttp.Logger)
	r.Use(limiter.Handler)
	if replayStore != nil {
		r.Use(middleware.Idempotency(replayStore))
	}

	cfhttp.MountRoutes(r, handlers, cfhttp.RouteConfig{ApproverRoles: cfg.TimeOff.SeniorRoles}, hub.HandleWS)

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
	}
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	// Let queued side effects and summaries settle before the store closes.
	projector.Wait()
	dispatcher.Wait()
	if natsQueue != nil {
		if err := natsQueue.Drain(); err != nil {
			slog.Warn("nats drain", "error", err)
		}
	}
	return nil
}

// reprojectTenants rebuilds the summaries of the default tenant and of every
// registered tenant.
func reprojectTenants(ctx context.Context, store database.Store, projector *service.ProjectorService) error {
	tenants, err := store.ListTenants(ctx)
	if err != nil {
		return fmt.Errorf("list tenants: %w", err)
	}
	seen := map[string]bool{}
	ids := []string{middleware.DefaultTenantID}
	for i := range tenants {
		ids = append(ids, tenants[i].ID, tenants[i].Slug)
	}
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		res, err := projector.RecomputeAll(middleware.WithTenantID(ctx, id))
		if err != nil {
			return fmt.Errorf("tenant %s: %w", id, err)
		}
		if res.Total > 0 {
			slog.Info("startup projection done", "tenant_id", id, "total", res.Total, "failed", res.Failed)
		}
	}
	return nil
}

// buildNotifiers returns the configured primary provider plus the optional
// chat webhooks, all resolved through the notifier registry.
func buildNotifiers(cfg config.Notification) ([]notifier.Notifier, error) {
	type provider struct {
		name string
		conf map[string]string
	}
	var providers []provider
	switch cfg.Provider {
	case "":
	case "email":
		providers = append(providers, provider{"email", map[string]string{
			"host":     cfg.SMTPHost,
			"port":     strconv.Itoa(cfg.SMTPPort),
			"from":     cfg.From,
			"user":     cfg.SMTPUser,
			"password": cfg.SMTPPassword,
		}})
	default:
		providers = append(providers, provider{cfg.Provider, nil})
	}
	if cfg.SlackWebhook != "" {
		providers = append(providers, provider{"slack", map[string]string{"webhook_url": cfg.SlackWebhook}})
	}
	if cfg.DiscordHook != "" {
		providers = append(providers, provider{"discord", map[string]string{"webhook_url": cfg.DiscordHook}})
	}

	out := make([]notifier.Notifier, 0, len(providers))
	for _, sp := range providers {
		n, err := notifier.New(sp.name, sp.conf)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

// allowedOrigins turns the CORS origin into a websocket origin pattern.
func allowedOrigins(origin string) []string {
	if origin == "" || origin == "*" {
		return nil
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return []string{origin}
	}
	return []string{u.Host}
}
