package testhelpers

import (
	"time"

	"raffle/domain/entities"

	"github.com/shopspring/decimal"
)

// CreateTestUser creates a test user with the given credit
func CreateTestUser(id int64, credit string) *entities.User {
	now := time.Now()
	return &entities.User{
		ID:        id,
		Email:     "user@example.com",
		Credit:    decimal.RequireFromString(credit),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// CreateTestGiveaway creates an open giveaway priced at 1.00 per ticket
func CreateTestGiveaway(id int64, ticketsTotal, ticketsPerUser int) *entities.Giveaway {
	now := time.Now()
	return &entities.Giveaway{
		ID:             id,
		Title:          "Test giveaway",
		Price:          decimal.NewFromInt(1),
		TicketsTotal:   ticketsTotal,
		TicketsPerUser: ticketsPerUser,
		ClosesAt:       now.Add(24 * time.Hour),
		ManyWinners:    1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// CreateTestOrder creates an order in the given status with the given cart
func CreateTestOrder(id, userID int64, status entities.OrderStatus, cart ...entities.CartLine) *entities.Order {
	now := time.Now()
	total := decimal.Zero
	for _, line := range cart {
		total = total.Add(decimal.NewFromInt(int64(line.Amount)))
	}
	return &entities.Order{
		ID:            id,
		UserID:        userID,
		Status:        status,
		Total:         total,
		OriginalTotal: total,
		CreditUsed:    decimal.Zero,
		Cart:          cart,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// CreateTestAssignment creates an allocated assignment row
func CreateTestAssignment(id, orderID, giveawayID int64, numbers ...int) *entities.TicketAssignment {
	now := time.Now()
	return &entities.TicketAssignment{
		ID:         id,
		OrderID:    orderID,
		GiveawayID: giveawayID,
		Numbers:    numbers,
		Amount:     len(numbers),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}
