package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"raffle/application"
	"raffle/config"
	"raffle/database"
	"raffle/domain/interfaces"
	"raffle/domain/services"
	"raffle/events"
	"raffle/infrastructure"
	"raffle/infrastructure/observability"
	"raffle/repository"

	log "github.com/sirupsen/logrus"
)

// ConfigureLogging applies the configured level and formatter
func ConfigureLogging(cfg *config.Config) {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.WithField("level", cfg.LogLevel).Warn("Unknown log level, using info")
		level = log.InfoLevel
	}
	log.SetLevel(level)
	log.SetOutput(os.Stdout)

	if cfg.IsProduction() {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}

// runtime holds the shared dependencies of the service and admin commands
type runtime struct {
	cfg        *config.Config
	db         *database.DB
	natsClient *infrastructure.NATSClient
	bus        *events.Bus
	uowFactory interfaces.UnitOfWorkFactory
	allocator  *services.NumberAllocator
	retry      application.RetryPolicy
}

// newRuntime connects to the database and, when configured, to NATS. Events published
// by committed units of work reach the bus, which forwards them to the broker.
func newRuntime(ctx context.Context, cfg *config.Config) (*runtime, error) {
	db, err := database.NewConnection(ctx, cfg.GetDatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	log.Info("Database connection established successfully")

	rt := &runtime{
		cfg:       cfg,
		db:        db,
		bus:       events.NewBus(),
		allocator: services.NewNumberAllocator(nil),
		retry:     application.NewRetryPolicy(cfg.LockRetryMaxElapsed),
	}

	var publisher events.Publisher = infrastructure.NewNoopEventPublisher()
	if strings.TrimSpace(cfg.NATSServers) != "" {
		natsClient := infrastructure.NewNATSClient(cfg.NATSServers)
		if err := natsClient.Connect(ctx); err != nil {
			db.Close()
			return nil, err
		}
		natsPublisher := infrastructure.NewNATSEventPublisher(natsClient, infrastructure.NewEventSubjectMapper())
		if err := natsPublisher.EnsureNotificationStream(natsClient); err != nil {
			natsClient.Close()
			db.Close()
			return nil, err
		}
		rt.natsClient = natsClient
		publisher = natsPublisher
	} else {
		log.Warn("NATS_SERVERS not set, notifications will be dropped")
	}

	forwardEvents(rt.bus, publisher)
	rt.uowFactory = repository.NewUnitOfWorkFactory(db, rt.bus, cfg.LockTimeout)
	return rt, nil
}

// forwardEvents relays every notification event from the bus to the publisher and
// derives settlement metrics from it
func forwardEvents(bus *events.Bus, publisher events.Publisher) {
	for _, eventType := range []events.EventType{
		events.EventTypeOrderReceived,
		events.EventTypeOrderSettled,
		events.EventTypeWinnersDrawn,
		events.EventTypeCreditChanged,
	} {
		bus.Subscribe(eventType, func(ctx context.Context, event events.Event) {
			observability.GetMetrics().RecordEvent(ctx, event)
			if err := publisher.Publish(event); err != nil {
				log.WithFields(log.Fields{
					"eventType": event.Type(),
					"error":     err,
				}).Error("Failed to forward event")
			}
		})
	}
}

// newDedupCache uses Redis when configured and a process-local window otherwise
func (rt *runtime) newDedupCache(ctx context.Context) (application.DedupCache, func(), error) {
	if strings.TrimSpace(rt.cfg.RedisAddr) == "" {
		log.Warn("REDIS_ADDR not set, webhook duplicates are suppressed per process only")
		return infrastructure.NewMemoryDedupCache(), func() {}, nil
	}

	client, err := infrastructure.NewRedisClient(ctx, rt.cfg.RedisAddr)
	if err != nil {
		return nil, nil, err
	}
	log.WithField("addr", rt.cfg.RedisAddr).Info("Connected to Redis")
	return infrastructure.NewRedisDedupCache(client), func() { _ = client.Close() }, nil
}

func (rt *runtime) newReconciler(dedup application.DedupCache) *application.SettlementReconciler {
	return application.NewSettlementReconciler(rt.uowFactory, rt.allocator, rt.retry, dedup, rt.cfg.WebhookDedupWindow, nil)
}

func (rt *runtime) close() {
	if rt.natsClient != nil {
		if err := rt.natsClient.Close(); err != nil {
			log.WithError(err).Error("Error closing NATS connection")
		}
	}
	log.Info("Closing database connection...")
	rt.db.Close()
}
