package infrastructure

import (
	"context"
	"errors"
	"testing"

	"raffle/application"
	"raffle/config"
	"raffle/infrastructure/observability"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type mockPaymentEventHandler struct {
	mock.Mock
}

func (m *mockPaymentEventHandler) HandlePaymentEvent(ctx context.Context, event application.PaymentEvent) (*application.SettlementOutcome, error) {
	args := m.Called(ctx, event)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*application.SettlementOutcome), args.Error(1)
}

func TestPaymentWebhookConsumer_HandleMessage(t *testing.T) {
	ctx := context.Background()

	t.Run("decodes and forwards", func(t *testing.T) {
		handler := new(mockPaymentEventHandler)
		consumer := NewPaymentWebhookConsumer(nil, handler)
		handler.On("HandlePaymentEvent", ctx, mock.MatchedBy(func(e application.PaymentEvent) bool {
			return e.CheckoutID == "chk-1" &&
				e.ResultCode == "000.000.000" &&
				e.Payload.RiskScore != nil && *e.Payload.RiskScore == 12 &&
				assert.ObjectsAreEqual([]string{"HOLD"}, e.Payload.Flags)
		})).Return(&application.SettlementOutcome{}, nil)

		err := consumer.HandleMessage(ctx, []byte(`{
			"checkout_id": "chk-1",
			"result_code": "000.000.000",
			"payload": {"risk_score": 12, "flags": ["HOLD"]}
		}`))

		require.NoError(t, err)
		handler.AssertExpectations(t)
	})

	t.Run("malformed payload is acknowledged", func(t *testing.T) {
		handler := new(mockPaymentEventHandler)
		consumer := NewPaymentWebhookConsumer(nil, handler)

		assert.NoError(t, consumer.HandleMessage(ctx, []byte(`{not json`)))
		assert.NoError(t, consumer.HandleMessage(ctx, []byte(`{"result_code": "000.000.000"}`)))
		handler.AssertNotCalled(t, "HandlePaymentEvent", mock.Anything, mock.Anything)
	})

	t.Run("reconciler error requests redelivery", func(t *testing.T) {
		handler := new(mockPaymentEventHandler)
		consumer := NewPaymentWebhookConsumer(nil, handler)
		handler.On("HandlePaymentEvent", ctx, mock.Anything).Return(nil, errors.New("database unavailable"))

		err := consumer.HandleMessage(ctx, []byte(`{"checkout_id": "chk-2", "result_code": "000.000.000"}`))
		assert.ErrorContains(t, err, "database unavailable")
	})
}

func TestPaymentWebhookConsumer_RecordsOutcomes(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	metrics := observability.NewMetricsProviderWithReader(config.NewTestConfig(), reader)
	require.NoError(t, metrics.Initialize(ctx))
	t.Cleanup(func() { _ = metrics.Shutdown(ctx) })

	handler := new(mockPaymentEventHandler)
	consumer := NewPaymentWebhookConsumer(nil, handler)
	consumer.metrics = metrics

	handler.On("HandlePaymentEvent", ctx, mock.MatchedBy(func(e application.PaymentEvent) bool { return e.CheckoutID == "chk-a" })).
		Return(&application.SettlementOutcome{}, nil)
	handler.On("HandlePaymentEvent", ctx, mock.MatchedBy(func(e application.PaymentEvent) bool { return e.CheckoutID == "chk-b" })).
		Return(&application.SettlementOutcome{Duplicate: true}, nil)

	require.NoError(t, consumer.HandleMessage(ctx, []byte(`{"checkout_id": "chk-a", "result_code": "000.000.000"}`)))
	require.NoError(t, consumer.HandleMessage(ctx, []byte(`{"checkout_id": "chk-b", "result_code": "000.000.000"}`)))
	require.NoError(t, consumer.HandleMessage(ctx, []byte(`{not json`)))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	byOutcome := map[string]int64{}
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name != observability.PaymentEventsTotal {
				continue
			}
			for _, dp := range m.Data.(metricdata.Sum[int64]).DataPoints {
				outcome, _ := dp.Attributes.Value(attribute.Key(observability.LabelOutcome))
				byOutcome[outcome.AsString()] += dp.Value
			}
		}
	}

	assert.Equal(t, map[string]int64{
		observability.PaymentOutcomeApplied:   1,
		observability.PaymentOutcomeDuplicate: 1,
		observability.PaymentOutcomeMalformed: 1,
	}, byOutcome)
}
