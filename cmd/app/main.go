// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dheerurajpoot/quote-generator-sub001/internal/config"
	"github.com/dheerurajpoot/quote-generator-sub001/internal/domain/model"
	"github.com/dheerurajpoot/quote-generator-sub001/internal/domain/ports/adapter"
	payAdapters "github.com/dheerurajpoot/quote-generator-sub001/internal/infra/adapters/payment"
	tele "github.com/dheerurajpoot/quote-generator-sub001/internal/infra/adapters/telegram"
	"github.com/dheerurajpoot/quote-generator-sub001/internal/infra/api"
	pg "github.com/dheerurajpoot/quote-generator-sub001/internal/infra/db/postgres"
	"github.com/dheerurajpoot/quote-generator-sub001/internal/infra/events"
	"github.com/dheerurajpoot/quote-generator-sub001/internal/infra/i18n"
	"github.com/dheerurajpoot/quote-generator-sub001/internal/infra/logging"
	"github.com/dheerurajpoot/quote-generator-sub001/internal/infra/metrics"
	red "github.com/dheerurajpoot/quote-generator-sub001/internal/infra/redis"
	"github.com/dheerurajpoot/quote-generator-sub001/internal/infra/sched"
	"github.com/dheerurajpoot/quote-generator-sub001/internal/infra/security"
	"github.com/dheerurajpoot/quote-generator-sub001/internal/infra/worker"
	"github.com/dheerurajpoot/quote-generator-sub001/internal/usecase"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	schemaPath := flag.String("schema", "deploy/postgres/init.sql", "DDL applied at startup; empty skips it")
	lang := flag.String("lang", i18n.DefaultLang, "language of admin notifications")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, unredacted PII)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] enabled")
	}

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()
	if *schemaPath != "" {
		ddl, err := os.ReadFile(*schemaPath)
		if err != nil {
			logger.Fatal().Err(err).Str("path", *schemaPath).Msg("read schema")
		}
		if err := pg.ApplySchema(ctx, pool, string(ddl)); err != nil {
			logger.Fatal().Err(err).Msg("apply schema")
		}
	}

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()
	limiter := red.NewUPISubmissionLimiter(red.NewRateLimiter(redisClient), cfg.Payment.UPIRateLimit, cfg.Payment.UPIRateWindow)
	locker := red.NewLocker(redisClient)

	// ---- Encryption ----
	var cipher pg.FieldCipher
	if cfg.Security.EncryptionKey != "" {
		fc, err := security.NewFieldCipher(cfg.Security.EncryptionKey)
		if err != nil {
			logger.Fatal().Err(err).Msg("encryption")
		}
		cipher = fc
	} else {
		logger.Warn().Msg("security.encryption_key not set; UPI ids are stored in clear")
	}

	// ---- Repositories ----
	tm := pg.NewTxManager(pool)
	subRepo := pg.NewSubscriptionRepoCacheDecorator(pg.NewSubscriptionRepo(pool, cipher), redisClient, cfg.Redis.TTL)
	txnRepo := pg.NewTransactionRepo(pool, cipher)
	hookRepo := pg.NewWebhookEventRepo(pool)

	catalog, err := buildCatalog(cfg.Plans)
	if err != nil {
		logger.Fatal().Err(err).Msg("plans")
	}

	// ---- Adapters ----
	rp := cfg.Payment.Razorpay
	var gateway adapter.PaymentGateway
	if rp.KeyID != "" && rp.KeySecret != "" {
		gateway, err = payAdapters.NewRazorpayGateway(rp, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("razorpay gateway")
		}
	} else {
		logger.Warn().Msg("razorpay keys not set; gateway checkout disabled")
		gateway = payAdapters.NewNoopPaymentGateway()
	}

	var notifier adapter.AdminNotifier = tele.NewNoopAdminNotifier(logger)
	if cfg.Admin.TelegramToken != "" && cfg.Admin.TelegramChatID != 0 {
		bot, err := tele.NewBotAdminNotifier(cfg.Admin.TelegramToken, cfg.Admin.TelegramChatID, logger)
		if err != nil {
			logger.Error().Err(err).Msg("telegram notifier unavailable; admin notifications disabled")
		} else {
			notifier = bot
		}
	}

	publisher := events.NewPublisher(cfg.Events.AMQPURL, cfg.Events.Exchange, logger)
	defer publisher.Close()

	messages := i18n.Default(*lang)

	// ---- Side-effect workers ----
	workers := worker.NewPool(cfg.Workers, logger)
	workers.Start(ctx)
	dispatch := func(task func(context.Context) error) {
		if err := workers.Submit(task); err != nil {
			logger.Warn().Err(err).Msg("side effect dropped")
		}
	}

	// ---- Use cases ----
	entitlementUC := usecase.NewEntitlementUseCase(usecase.EntitlementDeps{
		Subs:     subRepo,
		Txns:     txnRepo,
		Webhooks: hookRepo,
		TM:       tm,
		Users:    tm,
		Catalog:  catalog,
		Gateway:  gateway,
		Verifier: security.NewSignatureVerifier(rp.WebhookSecret, rp.KeySecret),
		Limiter:  limiter,
		Locker:   locker,
		Notifier: notifier,
		Messages: messages,
		Events:   publisher,
		Dispatch: dispatch,
		Logger:   logger,
		Dev:      cfg.Runtime.Dev,
	})
	adminUC := usecase.NewAdminUseCase(subRepo, txnRepo, entitlementUC, logger)

	// ---- Scheduler ----
	scheduler := sched.NewScheduler(logger)
	if err := scheduler.Add("expiry", cfg.Scheduler.ExpiryCheckCron, sched.NewExpiryWorker(ctx, entitlementUC, 0, logger)); err != nil {
		logger.Fatal().Err(err).Msg("scheduler")
	}
	statsWorker := sched.NewStatsWorker(ctx, adminUC, func() { pg.ReportPoolStats(pool) }, notifier, logger)
	statsWorker.RemindPending = cfg.Scheduler.RemindPending
	statsWorker.Messages = messages
	if err := scheduler.Add("stats", cfg.Scheduler.StatsCron, statsWorker); err != nil {
		logger.Fatal().Err(err).Msg("scheduler")
	}
	scheduler.Start()

	// ---- HTTP ----
	auth := api.NewAuthManager(cfg.Admin.JWTSecret, 0)
	router := api.NewRouter(api.NewHandler(entitlementUC, adminUC, logger), auth, api.RouterOptions{
		CORSOrigins:    cfg.HTTP.CORSOrigins,
		RequestTimeout: cfg.HTTP.RequestTimeout,
	}, logger)
	server := api.NewServer(cfg.HTTP.Port, router, cfg.HTTP.ReadTimeout, cfg.HTTP.WriteTimeout, logger)

	errc := make(chan error, 1)
	go func() { errc <- server.Start() }()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigc:
		logger.Info().Msg("shutdown requested")
	case err := <-errc:
		if err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 15*time.Second)
	defer stop()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	select {
	case <-scheduler.Stop().Done():
	case <-shutdownCtx.Done():
		logger.Warn().Msg("scheduled jobs still running at shutdown")
	}
	// Drain queued side effects while their context is still live.
	workers.Stop()
	cancel()
	logger.Info().Msg("bye")
}

func buildCatalog(plans []config.PlanConfig) (*model.Catalog, error) {
	out := make([]*model.Plan, 0, len(plans))
	for _, pc := range plans {
		tier := model.Tier(strings.ToLower(strings.TrimSpace(pc.Tier)))
		if tier == "" {
			tier = model.TierPremium
		}
		p, err := model.NewPlan(pc.ID, pc.Name, tier, pc.MonthlyPrice, pc.AnnualPrice, pc.Currency)
		if err != nil {
			return nil, fmt.Errorf("plan %q: %w", pc.ID, err)
		}
		p.GatewayPlanMonthly = pc.GatewayPlanMonthly
		p.GatewayPlanAnnual = pc.GatewayPlanAnnual
		out = append(out, p)
	}
	if len(out) == 0 {
		return nil, errors.New("no plans configured")
	}
	return model.NewCatalog(out...), nil
}
