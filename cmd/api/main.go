package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/emrmusicgroup/tape16-api/api/routes"
	"github.com/emrmusicgroup/tape16-api/internal/issuance"
	"github.com/emrmusicgroup/tape16-api/internal/ledger"
	"github.com/emrmusicgroup/tape16-api/internal/notify"
	"github.com/emrmusicgroup/tape16-api/internal/revocation"
	stripewebhook "github.com/emrmusicgroup/tape16-api/internal/webhooks/stripe"
	"github.com/emrmusicgroup/tape16-api/pkg/config"
	"github.com/emrmusicgroup/tape16-api/pkg/instance"
	"github.com/emrmusicgroup/tape16-api/pkg/logger"
	"github.com/emrmusicgroup/tape16-api/pkg/metrics"
	"github.com/emrmusicgroup/tape16-api/pkg/redis"
	"github.com/emrmusicgroup/tape16-api/pkg/resend"
	"github.com/emrmusicgroup/tape16-api/pkg/stripe"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "tape16-api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "tape16-api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	mets := metrics.New(registry)

	orders, err := ledger.New(redisClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger", err)
		os.Exit(1)
	}

	stripeClient := stripe.NewClient(cfg.Stripe.APIKey, cfg.Stripe.WebhookSecret, cfg.Stripe.PriceID)
	mailClient := resend.NewClient(cfg.Resend.APIKey, cfg.Resend.From)

	dispatcher, err := notify.NewDispatcher(mailClient, logg, mets)
	if err != nil {
		logg.Error(context.Background(), "failed to create notification dispatcher", err)
		os.Exit(1)
	}

	issuer, err := issuance.NewService(issuance.ServiceParams{
		Ledger:    orders,
		Processor: stripeClient,
		Notifier:  dispatcher,
		Logger:    logg,
		Metrics:   mets,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create issuance service", err)
		os.Exit(1)
	}

	revoker, err := revocation.NewService(revocation.ServiceParams{
		Ledger:    orders,
		Processor: stripeClient,
		Logger:    logg,
		Metrics:   mets,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create revocation service", err)
		os.Exit(1)
	}

	webhookSvc, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		Issuer:   issuer,
		Revoker:  revoker,
		Notifier: dispatcher,
		Logger:   logg,
		Metrics:  mets,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.GetID(),
	})
	logg.Info(ctx, "starting tape16 api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:         cfg,
			Logger:         logg,
			Metrics:        mets,
			Registry:       registry,
			StripeClient:   stripeClient,
			Issuance:       issuer,
			WebhookService: webhookSvc,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
