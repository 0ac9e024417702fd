package repository

import (
	"context"
	"testing"
	"time"

	"raffle/domain/entities"
	"raffle/repository/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderRepository_CreateAndGet(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()
	repo := newOrderRepositoryWithTx(testDB.DB.Pool)

	user := testutil.CreateTestUser(t, testDB.DB, "0")
	checkoutID := "chk_123"
	order := &entities.Order{
		UserID:        user.ID,
		Status:        entities.OrderStatusPending,
		Total:         decimal.RequireFromString("7.50"),
		OriginalTotal: decimal.RequireFromString("10.00"),
		CreditUsed:    decimal.RequireFromString("2.50"),
		Cart:          []entities.CartLine{{GiveawayID: 4, Amount: 2, Numbers: []int{3, 9}}},
		Address:       entities.Address{Line1: "1 High Street", City: "Leeds", Postcode: "LS1 1AA"},
		CheckoutID:    &checkoutID,
	}
	require.NoError(t, repo.Create(ctx, order))
	assert.NotZero(t, order.ID)

	got, err := repo.GetByCheckoutIDForUpdate(ctx, checkoutID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, order.ID, got.ID)
	assert.Equal(t, entities.OrderStatusPending, got.Status)
	assert.True(t, got.CreditUsed.Equal(order.CreditUsed))
	assert.Equal(t, order.Cart, got.Cart)
	assert.Equal(t, order.Address, got.Address)
	assert.Nil(t, got.SettledAt)

	missing, err := repo.GetByID(ctx, order.ID+1000)
	require.NoError(t, err)
	assert.Nil(t, missing)

	settledAt := time.Now()
	require.NoError(t, repo.UpdateStatus(ctx, order.ID, entities.OrderStatusCompleted, &settledAt))
	require.NoError(t, repo.UpdateStatus(ctx, order.ID, entities.OrderStatusCompleted, nil))

	got, err = repo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.OrderStatusCompleted, got.Status)
	require.NotNil(t, got.SettledAt, "a nil settlement time keeps the previous one")

	err = repo.UpdateStatus(ctx, order.ID+1000, entities.OrderStatusFailed, nil)
	assert.ErrorIs(t, err, entities.ErrOrderNotFound)
}

func TestOrderRepository_GetStale(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()
	repo := newOrderRepositoryWithTx(testDB.DB.Pool)

	user := testutil.CreateTestUser(t, testDB.DB, "0")
	stalePending := createTestOrder(t, testDB.DB.Pool, user.ID, entities.OrderStatusPending)
	staleCompleted := createTestOrder(t, testDB.DB.Pool, user.ID, entities.OrderStatusCompleted)
	fresh := createTestOrder(t, testDB.DB.Pool, user.ID, entities.OrderStatusCreated)

	_, err := testDB.DB.Exec(ctx, `UPDATE orders SET updated_at = NOW() - INTERVAL '1 hour' WHERE id = ANY($1)`,
		[]int64{stalePending.ID, staleCompleted.ID})
	require.NoError(t, err)

	stale, err := repo.GetStale(ctx,
		[]entities.OrderStatus{entities.OrderStatusCreated, entities.OrderStatusPending},
		time.Now().Add(-10*time.Minute), 50)
	require.NoError(t, err)

	require.Len(t, stale, 1)
	assert.Equal(t, stalePending.ID, stale[0].ID)
	assert.NotEqual(t, fresh.ID, stale[0].ID)
}
