package routes

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/escrow/internal/audit"
	"github.com/congo-pay/escrow/internal/auth"
	"github.com/congo-pay/escrow/internal/campaign"
	"github.com/congo-pay/escrow/internal/config"
	"github.com/congo-pay/escrow/internal/identity"
	"github.com/congo-pay/escrow/internal/ledger"
	"github.com/congo-pay/escrow/internal/metrics"
	"github.com/congo-pay/escrow/internal/middleware"
	"github.com/congo-pay/escrow/internal/notification"
	"github.com/congo-pay/escrow/internal/payout"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg      config.Config
	DB       *pgxpool.Pool
	Cache    *redis.Client
	Logger   *slog.Logger
	Registry *prometheus.Registry
	// Connector overrides the payout connector; nil uses payout.StaticConnector.
	Connector payout.Connector
}

// AppConfig is the Fiber configuration every app serving these routes uses.
// Handlers hand header and path values to stores that outlive the request,
// so Fiber must not recycle the buffers behind them.
func AppConfig(appName string, logger *slog.Logger) fiber.Config {
	return fiber.Config{
		AppName:               appName,
		Immutable:             true,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          30 * time.Second,
		DisableStartupMessage: true,
		ErrorHandler:          middleware.ErrorHandler(logger),
	}
}

// Setup configures middlewares and all application routes. Without a
// database the stores are kept in memory, which is only allowed in development.
func Setup(app *fiber.App, d Deps) error {
	// Enforce DB/Redis presence outside of dev, even though config also checks.
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}
	if d.Registry == nil {
		d.Registry = prometheus.NewRegistry()
	}
	m := metrics.New(d.Registry)

	// Middlewares
	app.Use(middleware.RequestID())
	app.Use(middleware.AccessLog(d.Logger, m))
	app.Use(recover.New())

	// Health
	RegisterHealthRoutes(app, d)

	// Stores
	var (
		identityRepo  identity.Repository
		campaignRepo  campaign.Repository
		events        audit.Reader
		ledgerBackend ledger.Ledger
	)
	if d.DB != nil {
		pgLedger, err := ledger.NewPostgresLedger(context.Background(), d.DB)
		if err != nil {
			return fmt.Errorf("init ledger: %w", err)
		}
		ledgerBackend = pgLedger
		identityRepo = identity.NewPostgresRepository(d.DB)
		campaignRepo = campaign.NewPostgresRepository(d.DB)
		events = audit.NewPostgresLog(d.DB)
	} else {
		log := audit.NewMemoryLog()
		ledgerBackend = ledger.NewInMemory()
		identityRepo = identity.NewMemoryRepository(log)
		campaignRepo = campaign.NewMemoryRepository(log, ledgerBackend)
		events = log
	}

	// Services and handlers
	notifier := notification.Multi{notification.NewLoggerNotifier(d.Logger)}
	if d.Cache != nil {
		notifier = append(notifier, notification.NewRedisNotifier(d.Cache, d.Cfg.EventsChannel))
	}

	identitySvc, err := identity.NewService(identityRepo, d.Cfg.AdminHolder, identity.Options{
		Logger:   d.Logger,
		Notifier: notifier,
		Metrics:  m,
	})
	if err != nil {
		return err
	}
	payoutSvc, err := payout.NewService(ledgerBackend, d.Connector)
	if err != nil {
		return err
	}
	campaignSvc, err := campaign.NewService(campaignRepo, identitySvc, payoutSvc, campaign.Options{
		Logger:          d.Logger,
		Notifier:        notifier,
		Metrics:         m,
		WithdrawalLease: d.Cfg.WithdrawalLease,
	})
	if err != nil {
		return err
	}

	identityHandler := identity.NewHandler(identitySvc)
	campaignHandler := campaign.NewHandler(campaignSvc, d.Cfg.AmountDecimals)
	payoutHandler := payout.NewHandler(payoutSvc, d.Cfg.AmountDecimals)
	eventsHandler := audit.NewHandler(events)

	var verifier *auth.Verifier
	if d.Cfg.JWTSecret != "" {
		if verifier, err = auth.NewVerifier(d.Cfg.JWTSecret); err != nil {
			return err
		}
	}
	trustHeader := d.Cfg.IsDev() && verifier == nil
	if trustHeader {
		d.Logger.Warn("JWT_SECRET not set; trusting the " + middleware.HolderHeader + " header")
	}

	// API routes
	api := app.Group("/api/v1",
		middleware.HolderAuth(verifier, trustHeader),
		middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger),
	)
	api.Get("/ping", func(c *fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"holder":     auth.Holder(c),
			"request_id": middleware.RequestIDFrom(c),
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	RegisterIdentityRoutes(api, identityHandler, middleware.SubmitRateLimit(d.Cache, d.Cfg.KYCSubmitLimit))
	RegisterCampaignRoutes(api, campaignHandler)
	RegisterLedgerRoutes(api, eventsHandler, payoutHandler)

	return nil
}
