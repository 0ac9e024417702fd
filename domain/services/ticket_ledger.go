package services

import (
	"context"
	"fmt"

	"raffle/domain/entities"
	"raffle/domain/interfaces"

	log "github.com/sirupsen/logrus"
)

// ReassignStrategy selects which numbers are preferred when tickets are reassigned
type ReassignStrategy string

const (
	// ReassignKeepRequested prefers the numbers the buyer asked for at checkout
	ReassignKeepRequested ReassignStrategy = "keep_requested"
	// ReassignKeepExisting keeps the currently assigned numbers and tops up to the cart amount
	ReassignKeepExisting ReassignStrategy = "keep_existing"
	// ReassignRandom discards preferences and draws a fresh random set
	ReassignRandom ReassignStrategy = "random"
)

// IsValid returns true for known strategies
func (s ReassignStrategy) IsValid() bool {
	return s == ReassignKeepRequested || s == ReassignKeepExisting || s == ReassignRandom
}

// ReserveRequest asks the ledger to hold Amount numbers of a giveaway for an order
type ReserveRequest struct {
	OrderID    int64
	UserID     int64
	GiveawayID int64
	Amount     int
	Preferred  []int
}

// TicketLedger is the transactional front of the ticket assignment rows.
// Every mutation takes the per-giveaway lock first, so the taken set read
// and the write that follows happen against one consistent snapshot.
type TicketLedger struct {
	giveawayRepo interfaces.GiveawayRepository
	ticketRepo   interfaces.TicketAssignmentRepository
	allocator    *NumberAllocator
}

// NewTicketLedger creates a new ticket ledger
func NewTicketLedger(
	giveawayRepo interfaces.GiveawayRepository,
	ticketRepo interfaces.TicketAssignmentRepository,
	allocator *NumberAllocator,
) *TicketLedger {
	if allocator == nil {
		allocator = NewNumberAllocator(nil)
	}
	return &TicketLedger{
		giveawayRepo: giveawayRepo,
		ticketRepo:   ticketRepo,
		allocator:    allocator,
	}
}

// AssignedNumbersForGiveaway returns the union of numbers held for a giveaway.
// With onlyCompleted, provisional reservations of unsettled orders are ignored.
func (l *TicketLedger) AssignedNumbersForGiveaway(ctx context.Context, giveawayID int64, onlyCompleted bool) ([]int, error) {
	numbers, err := l.ticketRepo.AssignedNumbers(ctx, giveawayID, scopeFor(onlyCompleted), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get assigned numbers: %w", err)
	}
	return numbers, nil
}

// CountForUserInGiveaway returns how many tickets a user holds for a giveaway
func (l *TicketLedger) CountForUserInGiveaway(ctx context.Context, userID, giveawayID int64, excludeOrderID *int64, onlyCompleted bool) (int, error) {
	count, err := l.ticketRepo.CountForUser(ctx, userID, giveawayID, scopeFor(onlyCompleted), excludeOrderID)
	if err != nil {
		return 0, fmt.Errorf("failed to count user tickets: %w", err)
	}
	return count, nil
}

// Reserve locks the giveaway, rechecks capacity and the per-user cap against every
// held ticket, allocates numbers and upserts the (order, giveaway) row.
func (l *TicketLedger) Reserve(ctx context.Context, req ReserveRequest) (*entities.TicketAssignment, error) {
	if req.Amount < 1 {
		return nil, fmt.Errorf("%w: ticket amount must be at least 1", entities.ErrInvalidAmount)
	}

	giveaway, err := l.giveawayRepo.GetByIDForUpdate(ctx, req.GiveawayID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock giveaway: %w", err)
	}
	if giveaway == nil {
		return nil, fmt.Errorf("%w: %d", entities.ErrGiveawayNotFound, req.GiveawayID)
	}

	excludeOrderID := &req.OrderID

	if !giveaway.IsUnbounded() {
		reserved, err := l.ticketRepo.ReservedCount(ctx, giveaway.ID, entities.TicketScopeHeld, excludeOrderID)
		if err != nil {
			return nil, fmt.Errorf("failed to count reserved tickets: %w", err)
		}
		if reserved+req.Amount > giveaway.TicketsTotal {
			return nil, fmt.Errorf("%w: giveaway %d has %d of %d tickets left, requested %d",
				entities.ErrCapacityExceeded, giveaway.ID, max(giveaway.TicketsTotal-reserved, 0), giveaway.TicketsTotal, req.Amount)
		}
	}

	if giveaway.HasPerUserCap() {
		owned, err := l.ticketRepo.CountForUser(ctx, req.UserID, giveaway.ID, entities.TicketScopeHeld, excludeOrderID)
		if err != nil {
			return nil, fmt.Errorf("failed to count user tickets: %w", err)
		}
		if owned+req.Amount > giveaway.TicketsPerUser {
			return nil, fmt.Errorf("%w: user %d holds %d of %d tickets for giveaway %d, requested %d",
				entities.ErrPerUserLimitExceeded, req.UserID, owned, giveaway.TicketsPerUser, giveaway.ID, req.Amount)
		}
	}

	taken, err := l.ticketRepo.AssignedNumbers(ctx, giveaway.ID, entities.TicketScopeHeld, excludeOrderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get taken numbers: %w", err)
	}

	numbers, err := l.allocator.Allocate(AllocationRequest{
		Taken:        taken,
		Requested:    req.Preferred,
		Amount:       req.Amount,
		TicketsTotal: giveaway.TicketsTotal,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to allocate numbers for giveaway %d: %w", giveaway.ID, err)
	}

	assignment := &entities.TicketAssignment{
		OrderID:    req.OrderID,
		GiveawayID: giveaway.ID,
		Numbers:    numbers,
		Amount:     req.Amount,
	}
	if err := l.ticketRepo.Upsert(ctx, assignment); err != nil {
		return nil, fmt.Errorf("failed to store ticket assignment: %w", err)
	}

	log.WithFields(log.Fields{
		"orderID":    req.OrderID,
		"giveawayID": giveaway.ID,
		"amount":     req.Amount,
		"numbers":    numbers,
	}).Debug("Reserved ticket numbers")

	return assignment, nil
}

// Revoke removes every assignment of the order, releasing its numbers
func (l *TicketLedger) Revoke(ctx context.Context, orderID int64) ([]*entities.TicketAssignment, error) {
	revoked, err := l.ticketRepo.DeleteByOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to revoke tickets for order %d: %w", orderID, err)
	}
	return revoked, nil
}

// RemoveNumbers drops specific numbers from an order's assignments.
// Rows left without numbers are deleted; others shrink their declared amount.
func (l *TicketLedger) RemoveNumbers(ctx context.Context, orderID int64, numbers []int) ([]*entities.TicketAssignment, error) {
	remove := make(map[int]struct{}, len(numbers))
	for _, n := range numbers {
		remove[n] = struct{}{}
	}

	assignments, err := l.ticketRepo.GetByOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get order tickets: %w", err)
	}

	var changed []*entities.TicketAssignment
	for _, assignment := range assignments {
		if !ownsAny(assignment, numbers) {
			continue
		}
		if assignment.IsWinner {
			return nil, fmt.Errorf("%w: assignment %d", entities.ErrWinningAssignment, assignment.ID)
		}

		kept := make([]int, 0, len(assignment.Numbers))
		for _, n := range assignment.Numbers {
			if _, ok := remove[n]; !ok {
				kept = append(kept, n)
			}
		}

		if _, err := l.giveawayRepo.GetByIDForUpdate(ctx, assignment.GiveawayID); err != nil {
			return nil, fmt.Errorf("failed to lock giveaway: %w", err)
		}

		if len(kept) == 0 {
			if err := l.ticketRepo.Delete(ctx, assignment.ID); err != nil {
				return nil, fmt.Errorf("failed to delete ticket assignment: %w", err)
			}
			assignment.Numbers = nil
			assignment.Amount = 0
		} else {
			assignment.Numbers = kept
			assignment.Amount = len(kept)
			if err := l.ticketRepo.Upsert(ctx, assignment); err != nil {
				return nil, fmt.Errorf("failed to update ticket assignment: %w", err)
			}
		}
		changed = append(changed, assignment)
	}

	return changed, nil
}

// Reassign re-runs allocation for every cart line of the order using the strategy
func (l *TicketLedger) Reassign(ctx context.Context, order *entities.Order, strategy ReassignStrategy) ([]*entities.TicketAssignment, error) {
	if !strategy.IsValid() {
		return nil, fmt.Errorf("unknown reassign strategy %q", strategy)
	}

	var result []*entities.TicketAssignment
	for _, line := range order.CartLinesByGiveaway() {
		existing, err := l.ticketRepo.GetByOrderAndGiveaway(ctx, order.ID, line.GiveawayID)
		if err != nil {
			return nil, fmt.Errorf("failed to get current tickets: %w", err)
		}
		if existing != nil && existing.IsWinner {
			return nil, fmt.Errorf("%w: assignment %d", entities.ErrWinningAssignment, existing.ID)
		}

		var preferred []int
		switch strategy {
		case ReassignKeepRequested:
			preferred = line.Numbers
		case ReassignKeepExisting:
			if existing != nil {
				preferred = existing.Numbers
			}
		}

		assignment, err := l.Reserve(ctx, ReserveRequest{
			OrderID:    order.ID,
			UserID:     order.UserID,
			GiveawayID: line.GiveawayID,
			Amount:     line.Amount,
			Preferred:  preferred,
		})
		if err != nil {
			return nil, err
		}
		result = append(result, assignment)
	}

	return result, nil
}

func ownsAny(assignment *entities.TicketAssignment, numbers []int) bool {
	for _, n := range numbers {
		if assignment.Owns(n) {
			return true
		}
	}
	return false
}

func scopeFor(onlyCompleted bool) entities.TicketScope {
	if onlyCompleted {
		return entities.TicketScopeCompleted
	}
	return entities.TicketScopeHeld
}
