package services

import (
	"context"
	"errors"
	"testing"

	"raffle/domain/entities"
	"raffle/domain/testhelpers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// excluding matches the excludeOrderID argument of ledger queries
func excluding(orderID int64) any {
	return mock.MatchedBy(func(p *int64) bool { return p != nil && *p == orderID })
}

func newTestTicketLedger() (*TicketLedger, *testhelpers.MockGiveawayRepository, *testhelpers.MockTicketAssignmentRepository) {
	giveawayRepo := new(testhelpers.MockGiveawayRepository)
	ticketRepo := new(testhelpers.MockTicketAssignmentRepository)
	return NewTicketLedger(giveawayRepo, ticketRepo, seededAllocator(7)), giveawayRepo, ticketRepo
}

func TestTicketLedger_Reserve_KeepsRequestedNumbers(t *testing.T) {
	ctx := context.Background()
	ledger, giveawayRepo, ticketRepo := newTestTicketLedger()

	giveaway := testhelpers.CreateTestGiveaway(10, 10, 0)
	giveawayRepo.On("GetByIDForUpdate", ctx, int64(10)).Return(giveaway, nil)
	ticketRepo.On("ReservedCount", ctx, int64(10), entities.TicketScopeHeld, excluding(1)).Return(2, nil)
	ticketRepo.On("AssignedNumbers", ctx, int64(10), entities.TicketScopeHeld, excluding(1)).Return([]int{1, 2}, nil)
	ticketRepo.On("Upsert", ctx, mock.MatchedBy(func(a *entities.TicketAssignment) bool {
		return a.OrderID == 1 && a.GiveawayID == 10 && a.Amount == 2
	})).Return(nil)

	assignment, err := ledger.Reserve(ctx, ReserveRequest{
		OrderID:    1,
		UserID:     5,
		GiveawayID: 10,
		Amount:     2,
		Preferred:  []int{3, 7},
	})

	require.NoError(t, err)
	assert.Equal(t, []int{3, 7}, assignment.Numbers)
	giveawayRepo.AssertExpectations(t)
	ticketRepo.AssertExpectations(t)
	ticketRepo.AssertNotCalled(t, "CountForUser", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestTicketLedger_Reserve_CapacityExceeded(t *testing.T) {
	ctx := context.Background()
	ledger, giveawayRepo, ticketRepo := newTestTicketLedger()

	giveawayRepo.On("GetByIDForUpdate", ctx, int64(10)).Return(testhelpers.CreateTestGiveaway(10, 5, 0), nil)
	ticketRepo.On("ReservedCount", ctx, int64(10), entities.TicketScopeHeld, excluding(2)).Return(3, nil)

	_, err := ledger.Reserve(ctx, ReserveRequest{OrderID: 2, UserID: 5, GiveawayID: 10, Amount: 3})

	require.Error(t, err)
	assert.True(t, errors.Is(err, entities.ErrCapacityExceeded))
	assert.True(t, entities.IsCapacityError(err))
	ticketRepo.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
}

func TestTicketLedger_Reserve_PerUserLimit(t *testing.T) {
	ctx := context.Background()
	ledger, giveawayRepo, ticketRepo := newTestTicketLedger()

	// Unbounded pool, two tickets per user
	giveawayRepo.On("GetByIDForUpdate", ctx, int64(10)).Return(testhelpers.CreateTestGiveaway(10, 0, 2), nil)
	ticketRepo.On("CountForUser", ctx, int64(5), int64(10), entities.TicketScopeHeld, excluding(3)).Return(2, nil)

	_, err := ledger.Reserve(ctx, ReserveRequest{OrderID: 3, UserID: 5, GiveawayID: 10, Amount: 1})

	require.Error(t, err)
	assert.ErrorIs(t, err, entities.ErrPerUserLimitExceeded)
	ticketRepo.AssertNotCalled(t, "ReservedCount", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	ticketRepo.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
}

func TestTicketLedger_Reserve_GiveawayNotFound(t *testing.T) {
	ctx := context.Background()
	ledger, giveawayRepo, _ := newTestTicketLedger()

	giveawayRepo.On("GetByIDForUpdate", ctx, int64(99)).Return(nil, nil)

	_, err := ledger.Reserve(ctx, ReserveRequest{OrderID: 1, UserID: 5, GiveawayID: 99, Amount: 1})
	assert.ErrorIs(t, err, entities.ErrGiveawayNotFound)
}

func TestTicketLedger_Reserve_InvalidAmount(t *testing.T) {
	ledger, giveawayRepo, _ := newTestTicketLedger()

	_, err := ledger.Reserve(context.Background(), ReserveRequest{OrderID: 1, GiveawayID: 10, Amount: 0})
	assert.ErrorIs(t, err, entities.ErrInvalidAmount)
	giveawayRepo.AssertNotCalled(t, "GetByIDForUpdate", mock.Anything, mock.Anything)
}

func TestTicketLedger_RemoveNumbers(t *testing.T) {
	ctx := context.Background()
	ledger, giveawayRepo, ticketRepo := newTestTicketLedger()

	shrinking := testhelpers.CreateTestAssignment(100, 1, 10, 1, 2, 3)
	emptied := testhelpers.CreateTestAssignment(101, 1, 11, 5)
	untouched := testhelpers.CreateTestAssignment(102, 1, 12, 8)

	ticketRepo.On("GetByOrder", ctx, int64(1)).Return([]*entities.TicketAssignment{shrinking, emptied, untouched}, nil)
	giveawayRepo.On("GetByIDForUpdate", ctx, int64(10)).Return(testhelpers.CreateTestGiveaway(10, 10, 0), nil)
	giveawayRepo.On("GetByIDForUpdate", ctx, int64(11)).Return(testhelpers.CreateTestGiveaway(11, 10, 0), nil)
	ticketRepo.On("Upsert", ctx, shrinking).Return(nil)
	ticketRepo.On("Delete", ctx, int64(101)).Return(nil)

	changed, err := ledger.RemoveNumbers(ctx, 1, []int{2, 5})

	require.NoError(t, err)
	require.Len(t, changed, 2)
	assert.Equal(t, []int{1, 3}, shrinking.Numbers)
	assert.Equal(t, 2, shrinking.Amount)
	assert.Empty(t, emptied.Numbers)
	assert.Equal(t, []int{8}, untouched.Numbers)
	giveawayRepo.AssertNotCalled(t, "GetByIDForUpdate", ctx, int64(12))
	ticketRepo.AssertExpectations(t)
}

func TestTicketLedger_RemoveNumbers_RejectsWinningAssignment(t *testing.T) {
	ctx := context.Background()
	ledger, giveawayRepo, ticketRepo := newTestTicketLedger()

	winner := testhelpers.CreateTestAssignment(100, 1, 10, 1, 2, 3)
	winningTicket := 2
	winner.IsWinner = true
	winner.WinningTicket = &winningTicket

	ticketRepo.On("GetByOrder", ctx, int64(1)).Return([]*entities.TicketAssignment{winner}, nil)

	_, err := ledger.RemoveNumbers(ctx, 1, []int{3})

	require.ErrorIs(t, err, entities.ErrWinningAssignment)
	assert.Equal(t, []int{1, 2, 3}, winner.Numbers)
	giveawayRepo.AssertNotCalled(t, "GetByIDForUpdate", mock.Anything, mock.Anything)
	ticketRepo.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
}

func TestTicketLedger_Reassign(t *testing.T) {
	ctx := context.Background()

	t.Run("keep existing tops up current numbers", func(t *testing.T) {
		ledger, giveawayRepo, ticketRepo := newTestTicketLedger()
		order := testhelpers.CreateTestOrder(1, 5, entities.OrderStatusCompleted,
			entities.CartLine{GiveawayID: 10, Amount: 3, Numbers: []int{1, 2, 3}})

		giveawayRepo.On("GetByIDForUpdate", ctx, int64(10)).Return(testhelpers.CreateTestGiveaway(10, 20, 0), nil)
		ticketRepo.On("GetByOrderAndGiveaway", ctx, int64(1), int64(10)).
			Return(testhelpers.CreateTestAssignment(100, 1, 10, 4, 9), nil)
		ticketRepo.On("ReservedCount", ctx, int64(10), entities.TicketScopeHeld, excluding(1)).Return(0, nil)
		ticketRepo.On("AssignedNumbers", ctx, int64(10), entities.TicketScopeHeld, excluding(1)).Return([]int{1, 2, 3}, nil)
		ticketRepo.On("Upsert", ctx, mock.Anything).Return(nil)

		result, err := ledger.Reassign(ctx, order, ReassignKeepExisting)

		require.NoError(t, err)
		require.Len(t, result, 1)
		assert.Len(t, result[0].Numbers, 3)
		assert.Contains(t, result[0].Numbers, 4)
		assert.Contains(t, result[0].Numbers, 9)
		assert.NotContains(t, result[0].Numbers, 1)
	})

	t.Run("winning assignment is rejected", func(t *testing.T) {
		ledger, giveawayRepo, ticketRepo := newTestTicketLedger()
		order := testhelpers.CreateTestOrder(1, 5, entities.OrderStatusCompleted,
			entities.CartLine{GiveawayID: 10, Amount: 2})

		winner := testhelpers.CreateTestAssignment(100, 1, 10, 4, 9)
		winningTicket := 9
		winner.IsWinner = true
		winner.WinningTicket = &winningTicket
		ticketRepo.On("GetByOrderAndGiveaway", ctx, int64(1), int64(10)).Return(winner, nil)

		_, err := ledger.Reassign(ctx, order, ReassignRandom)

		require.ErrorIs(t, err, entities.ErrWinningAssignment)
		giveawayRepo.AssertNotCalled(t, "GetByIDForUpdate", mock.Anything, mock.Anything)
		ticketRepo.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
	})

	t.Run("unknown strategy", func(t *testing.T) {
		ledger, _, _ := newTestTicketLedger()
		order := testhelpers.CreateTestOrder(1, 5, entities.OrderStatusCompleted)

		_, err := ledger.Reassign(ctx, order, ReassignStrategy("lucky"))
		assert.Error(t, err)
	})
}
