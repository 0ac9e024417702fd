package observability

import (
	"context"
	"fmt"
	"sync"
	"time"

	"raffle/config"
	"raffle/domain/entities"
	"raffle/events"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.34.0"
)

// MetricsProvider manages OpenTelemetry metrics for the settlement service
type MetricsProvider struct {
	config        *config.Config
	reader        sdkmetric.Reader
	meterProvider *sdkmetric.MeterProvider
	meter         metric.Meter
	initialized   bool
	enabled       bool
	mu            sync.RWMutex

	ordersSettledCounter      metric.Int64Counter
	ticketsAllocatedCounter   metric.Int64Counter
	ticketsRevokedCounter     metric.Int64Counter
	paymentEventsCounter      metric.Int64Counter
	winnersDrawnCounter       metric.Int64Counter
	creditTransactionsCounter metric.Int64Counter
	natsPublishedCounter      metric.Int64Counter
}

// NewMetricsProvider creates a metrics provider that exports as configured
func NewMetricsProvider(cfg *config.Config) *MetricsProvider {
	return &MetricsProvider{config: cfg}
}

// NewMetricsProviderWithReader creates an enabled provider reading through the given reader
func NewMetricsProviderWithReader(cfg *config.Config, reader sdkmetric.Reader) *MetricsProvider {
	return &MetricsProvider{config: cfg, reader: reader}
}

// Initialize sets up the OpenTelemetry metrics provider
func (mp *MetricsProvider) Initialize(ctx context.Context) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if mp.initialized {
		log.Info("Metrics provider already initialized")
		return nil
	}

	reader := mp.reader
	if reader == nil {
		if !mp.config.OTelEnabled {
			log.Info("OpenTelemetry metrics disabled")
			mp.initialized = true
			return nil
		}

		exporter, err := mp.newExporter(ctx)
		if err != nil {
			return err
		}
		if exporter == nil {
			mp.initialized = true
			return nil
		}
		reader = sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(mp.config.OTelExportInterval))
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(mp.config.OTelServiceName),
			attribute.String("environment", mp.config.Environment),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}

	mp.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)
	otel.SetMeterProvider(mp.meterProvider)
	mp.meter = mp.meterProvider.Meter("raffle")

	if err := mp.createInstruments(); err != nil {
		return fmt.Errorf("failed to create instruments: %w", err)
	}

	mp.initialized = true
	mp.enabled = true
	log.Info("Metrics provider initialized successfully")
	return nil
}

// newExporter returns nil when export is turned off
func (mp *MetricsProvider) newExporter(ctx context.Context) (sdkmetric.Exporter, error) {
	switch mp.config.OTelExporterType {
	case "console":
		exporter, err := stdoutmetric.New()
		if err != nil {
			return nil, fmt.Errorf("failed to create console exporter: %w", err)
		}
		log.Info("Using console metric exporter")
		return exporter, nil

	case "otlp":
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		exporter, err := otlpmetricgrpc.New(ctx,
			otlpmetricgrpc.WithEndpoint(mp.config.OTelOTLPEndpoint),
			otlpmetricgrpc.WithInsecure(),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
		log.WithField("endpoint", mp.config.OTelOTLPEndpoint).Info("Using OTLP metric exporter")
		return exporter, nil

	case "none":
		log.Info("Metrics export disabled (exporter type 'none')")
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown exporter type: %s", mp.config.OTelExporterType)
	}
}

func (mp *MetricsProvider) createInstruments() error {
	counters := []struct {
		dest        *metric.Int64Counter
		name        string
		description string
	}{
		{&mp.ordersSettledCounter, OrdersSettledTotal, "Orders that reached a terminal status"},
		{&mp.ticketsAllocatedCounter, TicketsAllocatedTotal, "Ticket numbers confirmed by completed orders"},
		{&mp.ticketsRevokedCounter, TicketsRevokedTotal, "Ticket numbers released by failed orders"},
		{&mp.paymentEventsCounter, PaymentEventsTotal, "Payment results received from the gateway"},
		{&mp.winnersDrawnCounter, WinnersDrawnTotal, "Winning tickets drawn"},
		{&mp.creditTransactionsCounter, CreditTransactionsTotal, "Credit ledger entries recorded"},
		{&mp.natsPublishedCounter, NATSMessagesPublishedTotal, "Notification messages published to NATS"},
	}

	for _, c := range counters {
		counter, err := mp.meter.Int64Counter(c.name, metric.WithDescription(c.description), metric.WithUnit("1"))
		if err != nil {
			return fmt.Errorf("failed to create %s counter: %w", c.name, err)
		}
		*c.dest = counter
	}
	return nil
}

// Shutdown flushes and stops the metrics provider
func (mp *MetricsProvider) Shutdown(ctx context.Context) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if mp.meterProvider != nil {
		return mp.meterProvider.Shutdown(ctx)
	}
	return nil
}

// RecordEvent derives settlement metrics from a committed domain event
func (mp *MetricsProvider) RecordEvent(ctx context.Context, event events.Event) {
	if !mp.isEnabled() {
		return
	}

	switch e := event.(type) {
	case events.OrderSettledEvent:
		mp.ordersSettledCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String(LabelStatus, string(e.Status)),
			attribute.String(LabelTrigger, string(e.Trigger)),
		))
		tickets := 0
		for _, numbers := range e.Tickets {
			tickets += len(numbers)
		}
		if e.Status == entities.OrderStatusCompleted {
			mp.ticketsAllocatedCounter.Add(ctx, int64(tickets))
		} else {
			mp.ticketsRevokedCounter.Add(ctx, int64(tickets))
		}
	case events.WinnersDrawnEvent:
		mp.winnersDrawnCounter.Add(ctx, int64(len(e.Winners)))
	case events.CreditChangedEvent:
		mp.creditTransactionsCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String(LabelType, string(e.Kind)),
		))
	}
}

// RecordPaymentEvent records how a gateway payment result was handled
func (mp *MetricsProvider) RecordPaymentEvent(outcome string) {
	if !mp.isEnabled() {
		return
	}

	mp.paymentEventsCounter.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String(LabelOutcome, outcome)),
	)
}

// RecordNATSMessagePublished records a notification published to NATS
func (mp *MetricsProvider) RecordNATSMessagePublished(eventType string) {
	if !mp.isEnabled() {
		return
	}

	mp.natsPublishedCounter.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String(LabelEventType, eventType)),
	)
}

func (mp *MetricsProvider) isEnabled() bool {
	if mp == nil {
		return false
	}
	mp.mu.RLock()
	defer mp.mu.RUnlock()
	return mp.initialized && mp.enabled
}

// Global metrics provider instance
var (
	globalMetrics *MetricsProvider
	metricsOnce   sync.Once
)

// InitializeGlobalMetrics initializes the global metrics provider
func InitializeGlobalMetrics(ctx context.Context, cfg *config.Config) error {
	var err error
	metricsOnce.Do(func() {
		globalMetrics = NewMetricsProvider(cfg)
		err = globalMetrics.Initialize(ctx)
	})
	return err
}

// GetMetrics returns the global metrics provider, nil before initialization.
// Recording on a nil provider is a no-op.
func GetMetrics() *MetricsProvider {
	return globalMetrics
}

// ShutdownGlobalMetrics shuts down the global metrics provider
func ShutdownGlobalMetrics(ctx context.Context) error {
	if globalMetrics != nil {
		return globalMetrics.Shutdown(ctx)
	}
	return nil
}
