package services

import (
	"context"
	"testing"

	"raffle/domain/entities"
	"raffle/domain/testhelpers"
	"raffle/events"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func decimalEq(want string) any {
	expected := decimal.RequireFromString(want)
	return mock.MatchedBy(func(d decimal.Decimal) bool { return d.Equal(expected) })
}

func newTestCreditLedger() (*CreditLedger, *testhelpers.MockUserRepository, *testhelpers.MockCreditTransactionRepository, *events.Recorder) {
	userRepo := new(testhelpers.MockUserRepository)
	creditRepo := new(testhelpers.MockCreditTransactionRepository)
	recorder := events.NewRecorder()
	return NewCreditLedger(userRepo, creditRepo, recorder), userRepo, creditRepo, recorder
}

func TestCreditLedger_Add(t *testing.T) {
	ctx := context.Background()
	ledger, userRepo, creditRepo, recorder := newTestCreditLedger()

	userRepo.On("GetByIDForUpdate", ctx, int64(1)).Return(testhelpers.CreateTestUser(1, "10.00"), nil)
	userRepo.On("UpdateCredit", ctx, int64(1), decimalEq("15.50")).Return(nil)
	creditRepo.On("Record", ctx, mock.MatchedBy(func(tx *entities.CreditTransaction) bool {
		return tx.Type == entities.CreditTransactionAdd &&
			tx.Kind == entities.CreditKindManual &&
			tx.BalanceAfter.Equal(decimal.RequireFromString("15.50"))
	})).Return(nil)

	entry, err := ledger.Add(ctx, CreditChange{
		UserID:      1,
		Amount:      decimal.RequireFromString("5.50"),
		Kind:        entities.CreditKindManual,
		Description: "goodwill",
	})

	require.NoError(t, err)
	assert.True(t, entry.BalanceAfter.Equal(decimal.RequireFromString("15.50")))
	userRepo.AssertExpectations(t)
	creditRepo.AssertExpectations(t)

	changed := recorder.OfType(events.EventTypeCreditChanged)
	require.Len(t, changed, 1)
	assert.Equal(t, entities.CreditTransactionAdd, changed[0].(events.CreditChangedEvent).TxType)
}

func TestCreditLedger_Deduct_InsufficientCredit(t *testing.T) {
	ctx := context.Background()
	ledger, userRepo, creditRepo, recorder := newTestCreditLedger()

	userRepo.On("GetByIDForUpdate", ctx, int64(1)).Return(testhelpers.CreateTestUser(1, "3.00"), nil)

	_, err := ledger.Deduct(ctx, CreditChange{
		UserID: 1,
		Amount: decimal.RequireFromString("3.01"),
		Kind:   entities.CreditKindOrderPayment,
	})

	assert.ErrorIs(t, err, entities.ErrInsufficientCredit)
	userRepo.AssertNotCalled(t, "UpdateCredit", mock.Anything, mock.Anything, mock.Anything)
	creditRepo.AssertNotCalled(t, "Record", mock.Anything, mock.Anything)
	assert.Empty(t, recorder.Events())
}

func TestCreditLedger_Deduct_ExactBalance(t *testing.T) {
	ctx := context.Background()
	ledger, userRepo, creditRepo, _ := newTestCreditLedger()

	userRepo.On("GetByIDForUpdate", ctx, int64(1)).Return(testhelpers.CreateTestUser(1, "3.00"), nil)
	userRepo.On("UpdateCredit", ctx, int64(1), decimalEq("0")).Return(nil)
	creditRepo.On("Record", ctx, mock.Anything).Return(nil)

	entry, err := ledger.Deduct(ctx, CreditChange{
		UserID: 1,
		Amount: decimal.RequireFromString("3.00"),
		Kind:   entities.CreditKindOrderPayment,
	})

	require.NoError(t, err)
	assert.True(t, entry.BalanceAfter.IsZero())
}

func TestCreditLedger_RejectsNonPositiveAmount(t *testing.T) {
	ledger, userRepo, _, _ := newTestCreditLedger()

	_, err := ledger.Add(context.Background(), CreditChange{UserID: 1, Amount: decimal.Zero})
	assert.ErrorIs(t, err, entities.ErrInvalidAmount)

	_, err = ledger.Deduct(context.Background(), CreditChange{UserID: 1, Amount: decimal.NewFromInt(-2)})
	assert.ErrorIs(t, err, entities.ErrInvalidAmount)

	userRepo.AssertNotCalled(t, "GetByIDForUpdate", mock.Anything, mock.Anything)
}

func TestCreditLedger_RefundOrder(t *testing.T) {
	ctx := context.Background()

	t.Run("refunds credit used", func(t *testing.T) {
		ledger, userRepo, creditRepo, _ := newTestCreditLedger()
		order := testhelpers.CreateTestOrder(7, 1, entities.OrderStatusPending)
		order.CreditUsed = decimal.NewFromInt(10)

		creditRepo.On("FindByOrderAndKind", ctx, int64(7), entities.CreditKindOrderRefund).Return(nil, nil)
		userRepo.On("GetByIDForUpdate", ctx, int64(1)).Return(testhelpers.CreateTestUser(1, "0"), nil)
		userRepo.On("UpdateCredit", ctx, int64(1), decimalEq("10")).Return(nil)
		creditRepo.On("Record", ctx, mock.MatchedBy(func(tx *entities.CreditTransaction) bool {
			return tx.Kind == entities.CreditKindOrderRefund && tx.OrderID != nil && *tx.OrderID == 7
		})).Return(nil)

		refund, err := ledger.RefundOrder(ctx, order)

		require.NoError(t, err)
		require.NotNil(t, refund)
		assert.True(t, refund.Amount.Equal(decimal.NewFromInt(10)))
		creditRepo.AssertExpectations(t)
	})

	t.Run("already refunded is a no-op", func(t *testing.T) {
		ledger, userRepo, creditRepo, _ := newTestCreditLedger()
		order := testhelpers.CreateTestOrder(7, 1, entities.OrderStatusPending)
		order.CreditUsed = decimal.NewFromInt(10)

		creditRepo.On("FindByOrderAndKind", ctx, int64(7), entities.CreditKindOrderRefund).
			Return(&entities.CreditTransaction{ID: 3}, nil)

		refund, err := ledger.RefundOrder(ctx, order)

		require.NoError(t, err)
		assert.Nil(t, refund)
		userRepo.AssertNotCalled(t, "GetByIDForUpdate", mock.Anything, mock.Anything)
	})

	t.Run("no credit used", func(t *testing.T) {
		ledger, _, creditRepo, _ := newTestCreditLedger()
		order := testhelpers.CreateTestOrder(7, 1, entities.OrderStatusPending)

		refund, err := ledger.RefundOrder(ctx, order)

		require.NoError(t, err)
		assert.Nil(t, refund)
		creditRepo.AssertNotCalled(t, "FindByOrderAndKind", mock.Anything, mock.Anything, mock.Anything)
	})
}
