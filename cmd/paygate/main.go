// Command paygate runs the entitlement reconciliation and usage quota service.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/paygate/migrations"
	"github.com/dmitrymomot/paygate/pkg/billing"
	"github.com/dmitrymomot/paygate/pkg/config"
	"github.com/dmitrymomot/paygate/pkg/email"
	"github.com/dmitrymomot/paygate/pkg/entitlement"
	"github.com/dmitrymomot/paygate/pkg/gate"
	"github.com/dmitrymomot/paygate/pkg/httpserver"
	"github.com/dmitrymomot/paygate/pkg/logger"
	"github.com/dmitrymomot/paygate/pkg/metrics"
	"github.com/dmitrymomot/paygate/pkg/pg"
	"github.com/dmitrymomot/paygate/pkg/quota"
	"github.com/dmitrymomot/paygate/pkg/redis"
	"github.com/dmitrymomot/paygate/svc/admin"
	"github.com/dmitrymomot/paygate/svc/usage"
	"github.com/dmitrymomot/paygate/svc/webhooks"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		slog.Error("paygate stopped with error", logger.Error(err))
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	var (
		appCfg     appConfig
		pgCfg      pg.Config
		billingCfg billing.Config
		emailCfg   email.Config
		httpCfg    httpserver.Config
	)
	for _, load := range []func() error{
		func() error { return config.Load(&appCfg) },
		func() error { return config.Load(&pgCfg) },
		func() error { return config.Load(&billingCfg) },
		func() error { return config.Load(&emailCfg) },
		func() error { return config.Load(&httpCfg) },
	} {
		if err := load(); err != nil {
			return fmt.Errorf("configuration: %w", err)
		}
	}

	log := logger.New(
		logger.WithEnvironment(appCfg.Env, appCfg.ServiceName),
		logger.WithLevelName(appCfg.LogLevel),
		logger.WithRequestID(),
	)
	logger.SetAsDefault(log)

	pool, err := pg.Connect(ctx, pgCfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	if pgCfg.AutoMigrate {
		if err := pg.Migrate(ctx, pool, pgCfg, migrations.FS, log); err != nil {
			return err
		}
	}

	checks := []httpserver.Check{{Name: "postgres", Fn: pg.Healthcheck(pool)}}

	ledger, closeLedger, err := newLedger(ctx, appCfg, pool, &checks)
	if err != nil {
		return err
	}
	defer closeLedger()

	m := metrics.New()

	var store entitlement.Store = entitlement.NewPostgresStore(pool)
	if appCfg.EntitlementCacheSize > 0 {
		cached, err := entitlement.NewCachedStore(store, appCfg.EntitlementCacheSize)
		if err != nil {
			return err
		}
		store = cached
	}

	engine := entitlement.NewEngine(store,
		entitlement.WithLogger(log),
		entitlement.WithMaxAttempts(appCfg.ReconcileAttempts),
		entitlement.WithConflictHook(m.ReconcileConflict),
	)

	g, err := gate.New(engine, ledger, quota.Limits(appCfg.FeatureLimits),
		gate.WithLocation(appCfg.location()),
		gate.WithLogger(log),
		gate.WithDecisionHook(m.GateDecision),
	)
	if err != nil {
		return fmt.Errorf("configuration: %w", err)
	}

	customers := billing.NewPostgresCustomerIndex(pool)
	processor, err := billing.NewProcessorSource(billingCfg, customers)
	if err != nil {
		return fmt.Errorf("configuration: %w", err)
	}
	relay, err := billing.NewRelaySource(billingCfg)
	if err != nil {
		return fmt.Errorf("configuration: %w", err)
	}

	hookOpts := []webhooks.Option{
		webhooks.WithCustomerIndex(customers),
		webhooks.WithAnomalyRecorder(billing.MultiAnomalyRecorder{
			billing.NewLogAnomalyRecorder(log),
			billing.NewPostgresAnomalyRecorder(pool),
		}),
		webhooks.WithObserver(m),
		webhooks.WithLogger(log),
		webhooks.WithMaxBodyBytes(appCfg.WebhookMaxBodyBytes),
	}
	if billingCfg.AnomalyAlertEmail != "" {
		sender, err := email.NewSender(emailCfg)
		if err != nil {
			return fmt.Errorf("configuration: %w", err)
		}
		hookOpts = append(hookOpts, webhooks.WithAnomalyNotifier(
			billing.NewEmailAnomalyNotifier(sender, billingCfg.AnomalyAlertEmail),
		))
	}

	if appCfg.AdminToken == "" {
		log.WarnContext(ctx, "ADMIN_TOKEN is empty, admin API rejects every request")
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer, m.Middleware)
	r.Get("/healthz", httpserver.LivenessHandler())
	r.Get("/readyz", httpserver.HealthCheckHandler(log, 0, checks...))
	r.Method(http.MethodGet, "/metrics", m.Handler())
	r.Mount("/webhooks", webhooks.New(engine, processor, relay, hookOpts...).Routes())
	r.Mount("/v1", usage.New(g, usage.WithUpgradeURL(appCfg.UpgradeURL)).Routes())
	r.Mount("/admin", admin.New(engine, g, appCfg.AdminToken, log).Routes())

	log.InfoContext(ctx, "paygate configured",
		slog.String("processor", billingCfg.ProcessorKind),
		slog.String("quota_backend", appCfg.QuotaBackend),
		slog.String("quota_timezone", appCfg.QuotaTimezone),
		slog.Int("features", len(appCfg.FeatureLimits)),
	)

	return httpserver.NewFromConfig(httpCfg, httpserver.WithLogger(log)).Run(ctx, r)
}

// newLedger builds the quota ledger selected by QUOTA_BACKEND and appends its readiness probe.
func newLedger(ctx context.Context, cfg appConfig, pool *pgxpool.Pool, checks *[]httpserver.Check) (quota.Ledger, func(), error) {
	switch cfg.QuotaBackend {
	case backendRedis:
		var redisCfg redis.Config
		if err := config.Load(&redisCfg); err != nil {
			return nil, nil, fmt.Errorf("configuration: %w", err)
		}
		client, err := redis.Connect(ctx, redisCfg)
		if err != nil {
			return nil, nil, err
		}
		*checks = append(*checks, httpserver.Check{Name: "redis", Fn: redis.Healthcheck(client)})
		ledger := quota.NewRedisLedger(client, quota.WithKeyPrefix(redisCfg.KeyPrefix))
		return ledger, closeRedis(client), nil
	case backendMemory:
		ledger := quota.NewMemoryLedger()
		return ledger, ledger.Close, nil
	default:
		return quota.NewPostgresLedger(pool), func() {}, nil
	}
}

func closeRedis(client *goredis.Client) func() {
	return func() {
		if err := client.Close(); err != nil {
			slog.Error("failed to close redis client", logger.Error(err))
		}
	}
}
