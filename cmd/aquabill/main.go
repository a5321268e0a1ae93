package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/aquabill/aquabill/cmd/aquabill/cli"
	"github.com/aquabill/aquabill/internal/app"
	"github.com/aquabill/aquabill/internal/billingconfig"
	"github.com/aquabill/aquabill/internal/customers"
	"github.com/aquabill/aquabill/internal/invoices"
	"github.com/aquabill/aquabill/internal/observability"
	"github.com/aquabill/aquabill/internal/platform/cache"
	"github.com/aquabill/aquabill/internal/platform/db"
	"github.com/aquabill/aquabill/internal/readings"
	"github.com/aquabill/aquabill/internal/shared"
	"github.com/aquabill/aquabill/jobs"
	"github.com/aquabill/aquabill/report"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	if len(os.Args) > 1 {
		if err := runCommand(ctx, cfg, logger, os.Args[1:]); err != nil {
			logger.Error("command failed", slog.Any("error", err))
			os.Exit(1)
		}
		return
	}

	if cfg.PGAutoMigrate {
		if err := db.Migrate(cfg.PGDSN, logger); err != nil {
			logger.Error("migrate database", slog.Any("error", err))
			os.Exit(1)
		}
	}

	dbpool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, billing config cache disabled", slog.Any("error", err))
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	metrics := observability.NewMetrics()
	billingMetrics := observability.NewBillingMetrics(metrics.Registerer())

	auditLogger := shared.NewAuditLogger(dbpool)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)

	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	customerService := customers.NewService(customers.NewRepository(dbpool), auditLogger)
	customersHandler := customers.NewHandler(logger, customerService)

	configStore := billingconfig.NewStore(
		billingconfig.NewRepository(dbpool),
		billingconfig.NewCache(redisClient, cfg.ConfigCacheTTL, logger),
		auditLogger,
		logger,
	)
	billingConfigHandler := billingconfig.NewHandler(logger, configStore)

	resolver := readings.NewResolver(readings.NewRepository(dbpool), billingMetrics, logger)
	readingsHandler := readings.NewHandler(logger, resolver)

	reportClient := report.NewClient(cfg.GotenbergURL, cfg.GotenbergTimeout)
	reportHandler := report.NewHandler(reportClient, logger)
	formatter := report.NewFormatter(cfg.DocumentLocale, cfg.DocumentCurrency)

	invoiceRepo := invoices.NewRepository(dbpool)
	invoicesHandler := invoices.NewHandler(
		logger,
		invoices.NewGenerator(invoiceRepo, jobClient, billingMetrics, logger),
		invoices.NewStatusManager(invoiceRepo, auditLogger, billingMetrics, logger),
		invoices.NewService(invoiceRepo),
		invoices.NewDocuments(invoiceRepo, formatter, reportClient),
		idempotencyStore,
	)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:               logger,
		Config:               cfg,
		CustomersHandler:     customersHandler,
		ReadingsHandler:      readingsHandler,
		BillingConfigHandler: billingConfigHandler,
		InvoicesHandler:      invoicesHandler,
		ReportHandler:        reportHandler,
		JobHandler:           jobHandler,
		Metrics:              metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

// runCommand handles the operator subcommands:
//
//	aquabill migrate
//	aquabill jobs trigger <task>
//	aquabill jobs stats
func runCommand(ctx context.Context, cfg *app.Config, logger *slog.Logger, args []string) error {
	switch args[0] {
	case "migrate":
		return db.Migrate(cfg.PGDSN, logger)
	case "jobs":
		if len(args) < 2 {
			return fmt.Errorf("usage: aquabill jobs <trigger|stats>")
		}
		ops, err := cli.NewJobs(cfg.RedisAddr)
		if err != nil {
			return err
		}
		defer func() { _ = ops.Close() }()
		switch args[1] {
		case "trigger":
			if len(args) < 3 {
				return fmt.Errorf("usage: aquabill jobs trigger <%s|%s>", jobs.TaskOverdueSweep, jobs.TaskIdempotencyCleanup)
			}
			info, err := ops.Trigger(ctx, args[2])
			if err != nil {
				return err
			}
			logger.Info("job enqueued", slog.String("type", info.Type), slog.String("id", info.ID))
			return nil
		case "stats":
			stats, err := ops.Stats()
			if err != nil {
				return err
			}
			logger.Info("queue stats",
				slog.String("queue", stats.Queue),
				slog.Int("pending", stats.Pending),
				slog.Int("active", stats.Active),
				slog.Int("scheduled", stats.Scheduled),
				slog.Int("retry", stats.Retry),
				slog.Int("archived", stats.Archived),
			)
			return nil
		}
		return fmt.Errorf("unknown jobs command %q", args[1])
	}
	return fmt.Errorf("unknown command %q", args[0])
}
