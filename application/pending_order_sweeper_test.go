package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"raffle/domain/entities"
	"raffle/domain/testhelpers"
	"raffle/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func staleOrder(id int64, status entities.OrderStatus, checkoutID string) *entities.Order {
	order := testhelpers.CreateTestOrder(id, 1, status, entities.CartLine{GiveawayID: 1, Amount: 1})
	order.UpdatedAt = time.Now().Add(-time.Hour)
	if checkoutID != "" {
		order.CheckoutID = &checkoutID
	}
	return order
}

func TestSweepOnce_FailsAbandonedOrders(t *testing.T) {
	ctx := context.Background()
	m := newMockUnitOfWork()
	sweeper := NewPendingOrderSweeper(m.factory, newTestReconciler(m, nil, nil), 10*time.Minute, time.Minute, 50)

	order := staleOrder(7, entities.OrderStatusCreated, "")
	revoked := []*entities.TicketAssignment{testhelpers.CreateTestAssignment(70, 7, 1, 4)}

	m.orders.On("GetStale", mock.Anything,
		[]entities.OrderStatus{entities.OrderStatusCreated, entities.OrderStatusPending},
		mock.AnythingOfType("time.Time"), 50,
	).Return([]*entities.Order{order}, nil)
	m.orders.On("GetByIDForUpdate", mock.Anything, int64(7)).Return(order, nil)
	m.tickets.On("DeleteByOrder", mock.Anything, int64(7)).Return(revoked, nil)
	m.orders.On("UpdateStatus", mock.Anything, int64(7), entities.OrderStatusFailed, mock.Anything).Return(nil)

	failed, err := sweeper.SweepOnce(ctx)

	require.NoError(t, err)
	assert.Equal(t, 1, failed)
	settled := m.recorder.OfType(events.EventTypeOrderSettled)
	require.Len(t, settled, 1)
	event := settled[0].(events.OrderSettledEvent)
	assert.Equal(t, entities.TriggerTimeout, event.Trigger)
	assert.Equal(t, map[int64][]int{1: {4}}, event.Tickets)
}

func TestSweepOnce_SkipsOrderTouchedSinceListing(t *testing.T) {
	ctx := context.Background()
	m := newMockUnitOfWork()
	sweeper := NewPendingOrderSweeper(m.factory, newTestReconciler(m, nil, nil), 10*time.Minute, time.Minute, 50)

	listed := staleOrder(8, entities.OrderStatusPending, "")
	locked := staleOrder(8, entities.OrderStatusPending, "")
	locked.UpdatedAt = time.Now()

	m.orders.On("GetStale", mock.Anything, mock.Anything, mock.Anything, 50).Return([]*entities.Order{listed}, nil)
	m.orders.On("GetByIDForUpdate", mock.Anything, int64(8)).Return(locked, nil)

	failed, err := sweeper.SweepOnce(ctx)

	require.NoError(t, err)
	assert.Equal(t, 0, failed)
	m.tickets.AssertNotCalled(t, "DeleteByOrder", mock.Anything, mock.Anything)
}

func TestSweepOnce_GatewayErrorLeavesOrder(t *testing.T) {
	ctx := context.Background()
	m := newMockUnitOfWork()
	gateway := &fakeGateway{err: errors.New("gateway unavailable")}
	sweeper := NewPendingOrderSweeper(m.factory, newTestReconciler(m, nil, gateway), 10*time.Minute, time.Minute, 50)

	m.orders.On("GetStale", mock.Anything, mock.Anything, mock.Anything, 50).
		Return([]*entities.Order{staleOrder(9, entities.OrderStatusPending, "chk-9")}, nil)

	failed, err := sweeper.SweepOnce(ctx)

	require.NoError(t, err)
	assert.Equal(t, 0, failed)
	assert.Equal(t, 1, gateway.calls)
	m.orders.AssertNotCalled(t, "GetByIDForUpdate", mock.Anything, mock.Anything)
}

func TestSweepOnce_NonTerminalGatewayAnswerTimesOut(t *testing.T) {
	ctx := context.Background()
	m := newMockUnitOfWork()
	gateway := &fakeGateway{event: &PaymentEvent{CheckoutID: "chk-11", ResultCode: "000.200.000"}}
	sweeper := NewPendingOrderSweeper(m.factory, newTestReconciler(m, nil, gateway), 10*time.Minute, time.Minute, 50)

	order := staleOrder(11, entities.OrderStatusPending, "chk-11")
	order.UpdatedAt = time.Now().Add(-72 * time.Hour)
	m.orders.On("GetStale", mock.Anything, mock.Anything, mock.Anything, 50).Return([]*entities.Order{order}, nil)
	m.orders.On("GetByIDForUpdate", mock.Anything, int64(11)).Return(order, nil)
	m.tickets.On("DeleteByOrder", mock.Anything, int64(11)).Return([]*entities.TicketAssignment{}, nil)
	m.orders.On("UpdateStatus", mock.Anything, int64(11), entities.OrderStatusFailed, mock.Anything).Return(nil)

	failed, err := sweeper.SweepOnce(ctx)

	require.NoError(t, err)
	assert.Equal(t, 1, failed)
	assert.Equal(t, 1, gateway.calls)
	assert.Equal(t, entities.OrderStatusFailed, order.Status)
	settled := m.recorder.OfType(events.EventTypeOrderSettled)
	require.Len(t, settled, 1)
	assert.Equal(t, entities.TriggerTimeout, settled[0].(events.OrderSettledEvent).Trigger)
}

func TestSweepOnce_NonTerminalAnswerRespectsRecentUpdate(t *testing.T) {
	ctx := context.Background()
	m := newMockUnitOfWork()
	gateway := &fakeGateway{event: &PaymentEvent{CheckoutID: "chk-12", ResultCode: "000.400.000"}}
	sweeper := NewPendingOrderSweeper(m.factory, newTestReconciler(m, nil, gateway), 10*time.Minute, time.Minute, 50)

	listed := staleOrder(12, entities.OrderStatusPending, "chk-12")
	locked := staleOrder(12, entities.OrderStatusPending, "chk-12")
	locked.UpdatedAt = time.Now()
	m.orders.On("GetStale", mock.Anything, mock.Anything, mock.Anything, 50).Return([]*entities.Order{listed}, nil)
	m.orders.On("GetByIDForUpdate", mock.Anything, int64(12)).Return(locked, nil)

	failed, err := sweeper.SweepOnce(ctx)

	require.NoError(t, err)
	assert.Equal(t, 0, failed)
	assert.Equal(t, entities.OrderStatusPending, locked.Status)
	m.orders.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSweepOnce_GatewayFailureFailsOrder(t *testing.T) {
	ctx := context.Background()
	m := newMockUnitOfWork()
	gateway := &fakeGateway{event: &PaymentEvent{CheckoutID: "chk-10", ResultCode: "800.100.151"}}
	sweeper := NewPendingOrderSweeper(m.factory, newTestReconciler(m, nil, gateway), 10*time.Minute, time.Minute, 50)

	order := staleOrder(10, entities.OrderStatusPending, "chk-10")
	m.orders.On("GetStale", mock.Anything, mock.Anything, mock.Anything, 50).Return([]*entities.Order{order}, nil)
	m.orders.On("GetByIDForUpdate", mock.Anything, int64(10)).Return(order, nil)
	m.tickets.On("DeleteByOrder", mock.Anything, int64(10)).Return([]*entities.TicketAssignment{}, nil)
	m.orders.On("UpdateStatus", mock.Anything, int64(10), entities.OrderStatusFailed, mock.Anything).Return(nil)

	failed, err := sweeper.SweepOnce(ctx)

	require.NoError(t, err)
	assert.Equal(t, 1, failed)
	settled := m.recorder.OfType(events.EventTypeOrderSettled)
	require.Len(t, settled, 1)
	assert.Equal(t, entities.TriggerPaymentFailure, settled[0].(events.OrderSettledEvent).Trigger)
}

func TestSweepOnce_NothingStale(t *testing.T) {
	m := newMockUnitOfWork()
	sweeper := NewPendingOrderSweeper(m.factory, newTestReconciler(m, nil, nil), 10*time.Minute, time.Minute, 0)
	m.orders.On("GetStale", mock.Anything, mock.Anything, mock.Anything, 100).Return([]*entities.Order{}, nil)

	failed, err := sweeper.SweepOnce(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 0, failed)
}
