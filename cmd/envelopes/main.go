package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"envelopes/internal/amqp"
	"envelopes/internal/config"
	apphttp "envelopes/internal/http"
	"envelopes/internal/ledger"
	applog "envelopes/internal/log"
	"envelopes/internal/metrics"
	"envelopes/internal/middleware/ratelimit"
	"envelopes/internal/services"
)

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		bootstrapLogger().WithComponent(applog.ComponentConfig).Error("Failed to load configuration", applog.FieldError, err.Error())
		return err
	}
	if err := cfg.Validate(); err != nil {
		bootstrapLogger().WithComponent(applog.ComponentConfig).Error("Configuration validation failed", applog.FieldError, err.Error())
		return err
	}

	level, _ := applog.ParseLevel(cfg.LogLevel)
	logger := applog.New(applog.Config{
		Level:     level,
		Format:    cfg.LogFormat,
		Component: applog.ComponentApp,
		Output:    os.Stdout,
	})
	applog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	book := ledger.New()
	m := metrics.New()

	var publisher services.EventPublisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			// Events are best-effort; the API works without a broker.
			logger.WithComponent(applog.ComponentAMQP).Warn("AMQP unavailable, ledger events disabled",
				applog.FieldError, err.Error())
		} else {
			publisher = client
			logger.WithComponent(applog.ComponentAMQP).Info("AMQP publisher connected",
				"exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	} else {
		logger.Info("AMQP_URL not set, ledger events disabled")
	}

	budget := services.NewBudgetService(book, publisher, m)
	defer func() {
		if err := budget.Close(); err != nil {
			logger.Warn("Failed to close budget service", applog.FieldError, err.Error())
		}
	}()
	m.RegisterLedger(budget)

	if amount, ok, err := cfg.InitialBudgetAmount(); err != nil {
		logger.WithComponent(applog.ComponentConfig).Error("Invalid INITIAL_BUDGET", applog.FieldError, err.Error())
		return err
	} else if ok {
		if _, err := budget.InitializeBudget(ctx, amount); err != nil {
			logger.Error("Failed to apply initial budget", applog.FieldError, err.Error())
			return err
		}
	}

	limiter := ratelimit.NewLimiter(ratelimit.Config{
		RequestsPerSecond: cfg.RateLimitRPS,
		Burst:             cfg.RateLimitBurst,
	})

	srv := apphttp.NewServer(":"+cfg.Port, budget, apphttp.Options{
		Logger:  logger.WithComponent(applog.ComponentHTTP),
		Metrics: m,
		Limiter: limiter,
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting envelopes server",
			"port", cfg.Port,
			applog.FieldOperation, applog.OpStartup,
			"amqp_enabled", publisher != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutdown signal received", applog.FieldOperation, applog.OpShutdown)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", applog.FieldError, err.Error(), "port", cfg.Port)
		return err
	}

	logger.Info("Server stopped gracefully")
	return nil
}

// bootstrapLogger is used before the configuration, and with it the log
// settings, is known.
func bootstrapLogger() *applog.Logger {
	return applog.New(applog.DefaultConfig())
}
