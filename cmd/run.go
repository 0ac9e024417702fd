package cmd

import (
	"context"
	"fmt"
	"time"

	"raffle/application"
	"raffle/config"
	"raffle/infrastructure"
	"raffle/infrastructure/observability"

	log "github.com/sirupsen/logrus"
)

// Run starts the settlement service: webhook intake, the pending-order sweep and
// the winner draw worker. It blocks until ctx is cancelled.
func Run(ctx context.Context) error {
	cfg := config.Get()
	ConfigureLogging(cfg)
	log.WithField("environment", cfg.Environment).Info("Starting raffle settlement service...")

	if err := observability.InitializeGlobalMetrics(ctx, cfg); err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := observability.ShutdownGlobalMetrics(shutdownCtx); err != nil {
			log.WithError(err).Error("Error shutting down metrics provider")
		}
	}()

	rt, err := newRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.close()

	dedup, closeDedup, err := rt.newDedupCache(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize dedup cache: %w", err)
	}
	defer closeDedup()

	reconciler := rt.newReconciler(dedup)

	if rt.natsClient != nil {
		consumer := infrastructure.NewPaymentWebhookConsumer(rt.natsClient, reconciler)
		if err := consumer.Start(ctx); err != nil {
			return fmt.Errorf("failed to start payment webhook consumer: %w", err)
		}
	} else {
		log.Warn("No message bus configured, payment webhooks will not be consumed")
	}

	sweeper := application.NewPendingOrderSweeper(rt.uowFactory, reconciler, cfg.PendingOrderTimeout, cfg.SweepInterval, cfg.SweepBatchSize)
	stopSweeper := sweeper.Start(ctx)

	drawWorker := application.NewWinnerDrawWorker(rt.uowFactory, nil, rt.retry, cfg.DrawInterval)
	stopDrawWorker := drawWorker.Start(ctx)

	log.Info("Raffle settlement service is running")
	<-ctx.Done()

	log.Info("Shutting down raffle settlement service...")
	stopSweeper()
	stopDrawWorker()

	// Give in-flight transactions a moment to finish before the pool closes
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	select {
	case <-shutdownCtx.Done():
		log.Warn("Shutdown timeout exceeded")
	case <-time.After(1 * time.Second):
		log.Info("Shutdown completed")
	}
	return nil
}
