package main

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"merchkit/app/internal/archiver"
	"merchkit/app/internal/catalog"
	"merchkit/app/internal/config"
	"merchkit/app/internal/content"
	"merchkit/app/internal/customer"
	appdb "merchkit/app/internal/db"
	apphttp "merchkit/app/internal/http"
	applog "merchkit/app/internal/log"
	"merchkit/app/internal/payout"
	"merchkit/app/internal/search"
	"merchkit/app/internal/storage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return eris.Wrap(err, "failure loading configuration")
	}

	logger, err := applog.NewLogger(cfg.LogLevel)
	if err != nil {
		return eris.Wrap(err, "failure initialising logger")
	}

	sentryHub, flush, err := applog.InitSentry(logger, applog.SentrySettings{
		DSN:         cfg.SentryDSN,
		Environment: cfg.Environment,
	})
	if err != nil {
		return eris.Wrap(err, "failure initialising sentry")
	}
	defer flush()

	dbConn, err := appdb.Open(appdb.Options{Path: cfg.DBPath})
	if err != nil {
		return eris.Wrap(err, "opening database")
	}
	defer func() {
		if closeErr := appdb.Close(dbConn); closeErr != nil {
			logger.WithError(closeErr).Error("closing database")
		}
	}()

	if err := catalog.Migrate(ctx, dbConn, logger); err != nil {
		return eris.Wrap(err, "running catalog migrations")
	}
	if err := content.Migrate(ctx, dbConn, logger); err != nil {
		return eris.Wrap(err, "running content migrations")
	}
	if err := payout.Migrate(ctx, dbConn, logger); err != nil {
		return eris.Wrap(err, "running payout migrations")
	}
	if err := customer.Migrate(ctx, dbConn, logger); err != nil {
		return eris.Wrap(err, "running customer migrations")
	}

	catalogRepo, err := catalog.NewRepository(dbConn, logger)
	if err != nil {
		return eris.Wrap(err, "building catalog repository")
	}
	products, err := catalog.NewService(catalogRepo, logger, sentryHub)
	if err != nil {
		return eris.Wrap(err, "creating catalog service")
	}

	contentRepo, err := content.NewRepository(dbConn, logger)
	if err != nil {
		return eris.Wrap(err, "building content repository")
	}
	contentService, err := content.NewService(contentRepo, logger, sentryHub)
	if err != nil {
		return eris.Wrap(err, "creating content service")
	}

	layouts, err := payout.LoadLayouts()
	if err != nil {
		return eris.Wrap(err, "loading payout country table")
	}
	payoutRepo, err := payout.NewRepository(dbConn, logger)
	if err != nil {
		return eris.Wrap(err, "building payout repository")
	}
	payouts, err := payout.NewService(payoutRepo, layouts, logger, sentryHub)
	if err != nil {
		return eris.Wrap(err, "creating payout service")
	}

	discovery, err := search.NewService(dbConn, logger)
	if err != nil {
		return eris.Wrap(err, "creating search service")
	}

	customerRepo, err := customer.NewRepository(dbConn, logger)
	if err != nil {
		return eris.Wrap(err, "building customer repository")
	}
	customers, err := customer.NewService(customerRepo, logger, sentryHub)
	if err != nil {
		return eris.Wrap(err, "creating customer service")
	}

	blobs, err := storage.NewLocalStore(cfg.BlobDir)
	if err != nil {
		return eris.Wrap(err, "initialising blob store")
	}

	fetcher, err := archiver.NewBlobFetcher(blobs)
	if err != nil {
		return eris.Wrap(err, "creating file fetcher")
	}

	worker, err := archiver.NewWorker(archiver.Options{
		Repository:   contentRepo,
		Blobs:        blobs,
		Fetcher:      fetcher,
		Logger:       logger,
		SentryHub:    sentryHub,
		PollInterval: cfg.ArchivePollRate,
	})
	if err != nil {
		return eris.Wrap(err, "creating archive worker")
	}

	go worker.Run(ctx)

	transport, err := apphttp.NewServer(apphttp.Options{
		Products:       products,
		Content:        contentService,
		Payouts:        payouts,
		Discovery:      discovery,
		Customers:      customers,
		Blobs:          blobs,
		Database:       dbConn,
		Logger:         logger,
		SentryHub:      sentryHub,
		AllowedOrigins: cfg.AllowedOrigins,
		RateLimiter: apphttp.RateLimiterSettings{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
			ClientTTL:         cfg.RateLimit.ClientTTL,
		},
	})
	if err != nil {
		return eris.Wrap(err, "initialising http transport")
	}

	httpServer := &stdhttp.Server{
		Addr:    fmt.Sprintf("0.0.0.0:%d", cfg.ServerPort),
		Handler: transport.Handler(),
	}

	logger.WithFields(logrus.Fields{
		"addr": httpServer.Addr,
	}).Info("starting http server")

	serverErrCh := make(chan error, 1)
	go func() {
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			serverErrCh <- err
		} else {
			serverErrCh <- nil
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErrCh:
		if err != nil {
			return eris.Wrap(err, "http server error")
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return eris.Wrap(err, "shutting down http server")
	}

	logger.Info("http server shut down cleanly")
	return nil
}
