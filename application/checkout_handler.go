package application

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"time"

	"raffle/domain/entities"
	"raffle/domain/interfaces"
	"raffle/domain/services"
	"raffle/events"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// CheckoutRequest is an order intake from the storefront or an operator
type CheckoutRequest struct {
	UserID  int64
	Cart    []entities.CartLine
	Address entities.Address
	// CheckoutID is the gateway session reference when one was opened up front
	CheckoutID string
	UseCredit  bool
	// TotalOverride replaces the computed price, used for manual orders
	TotalOverride *decimal.Decimal
}

// CheckoutResult is returned for an accepted order
type CheckoutResult struct {
	OrderID    int64
	Status     entities.OrderStatus
	Total      decimal.Decimal
	CreditUsed decimal.Decimal
	Tickets    map[int64][]int
}

// CheckoutHandler turns carts into orders holding reserved ticket numbers
type CheckoutHandler struct {
	uowFactory interfaces.UnitOfWorkFactory
	allocator  *services.NumberAllocator
	retry      RetryPolicy
	now        func() time.Time
}

// NewCheckoutHandler creates a new checkout handler
func NewCheckoutHandler(uowFactory interfaces.UnitOfWorkFactory, allocator *services.NumberAllocator, retry RetryPolicy) *CheckoutHandler {
	return &CheckoutHandler{
		uowFactory: uowFactory,
		allocator:  allocator,
		retry:      retry,
		now:        utcNow,
	}
}

// cartEntry is a merged cart line remembering the first request line it came from
type cartEntry struct {
	line  int
	entry entities.CartLine
}

// Checkout validates the cart, reserves numbers for every line and persists the order
// in one transaction. Nothing is written when any line is rejected.
func (h *CheckoutHandler) Checkout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	cart, err := normalizeCart(req.Cart)
	if err != nil {
		return nil, err
	}
	if req.TotalOverride != nil && req.TotalOverride.IsNegative() {
		return nil, fmt.Errorf("%w: total override %s", entities.ErrInvalidAmount, req.TotalOverride.String())
	}

	var result *CheckoutResult
	err = h.retry.Run(ctx, func(ctx context.Context) error {
		var err error
		result, err = h.checkout(ctx, req, cart)
		return err
	})
	if err != nil {
		log.WithFields(log.Fields{
			"userID": req.UserID,
			"lines":  len(cart),
			"error":  err,
		}).Warn("Checkout rejected")
		return nil, err
	}
	return result, nil
}

func (h *CheckoutHandler) checkout(ctx context.Context, req CheckoutRequest, cart []cartEntry) (*CheckoutResult, error) {
	uow := h.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	user, err := uow.UserRepository().GetByID(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: %d", entities.ErrUserNotFound, req.UserID)
	}

	// Lock every giveaway in ascending id order before reserving anything
	now := h.now()
	verr := &entities.CartValidationError{}
	originalTotal := decimal.Zero
	for _, c := range cart {
		giveaway, err := uow.GiveawayRepository().GetByIDForUpdate(ctx, c.entry.GiveawayID)
		if err != nil {
			return nil, fmt.Errorf("failed to lock giveaway %d: %w", c.entry.GiveawayID, err)
		}
		if giveaway == nil {
			verr.Add(c.line, c.entry.GiveawayID, "giveaway_id", entities.ErrGiveawayNotFound, "unknown giveaway")
			continue
		}
		if giveaway.IsClosed(now) {
			verr.Add(c.line, giveaway.ID, "giveaway_id", entities.ErrGiveawayClosed, "giveaway is closed")
			continue
		}
		if giveaway.HasPerUserCap() && c.entry.Amount > giveaway.TicketsPerUser {
			verr.Add(c.line, giveaway.ID, "amount", entities.ErrPerUserLimitExceeded,
				fmt.Sprintf("at most %d tickets per customer", giveaway.TicketsPerUser))
			continue
		}
		if !giveaway.IsUnbounded() && c.entry.Amount > giveaway.TicketsTotal {
			verr.Add(c.line, giveaway.ID, "amount", entities.ErrCapacityExceeded,
				fmt.Sprintf("only %d tickets exist", giveaway.TicketsTotal))
			continue
		}
		originalTotal = originalTotal.Add(giveaway.LineTotal(c.entry.Amount))
	}
	if verr.HasErrors() {
		return nil, verr
	}

	total := originalTotal
	if req.TotalOverride != nil {
		total = *req.TotalOverride
	}
	creditUsed := decimal.Zero
	if req.UseCredit && total.IsPositive() && user.Credit.IsPositive() {
		creditUsed = decimal.Min(user.Credit, total)
	}
	owed := total.Sub(creditUsed)

	order := &entities.Order{
		UserID:        req.UserID,
		Status:        entities.OrderStatusCreated,
		Total:         owed,
		OriginalTotal: total,
		CreditUsed:    creditUsed,
		Cart:          cartLines(cart),
		Address:       req.Address,
	}
	if req.CheckoutID != "" && owed.IsPositive() {
		checkoutID := req.CheckoutID
		order.CheckoutID = &checkoutID
		order.Status = entities.OrderStatusPending
	}
	if err := uow.OrderRepository().Create(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	txs := newTxServices(uow, h.allocator)
	if creditUsed.IsPositive() {
		orderID := order.ID
		if _, err := txs.credit.Deduct(ctx, services.CreditChange{
			UserID:      req.UserID,
			Amount:      creditUsed,
			Kind:        entities.CreditKindOrderPayment,
			Description: fmt.Sprintf("Payment for order #%d", order.ID),
			OrderID:     &orderID,
		}); err != nil {
			return nil, fmt.Errorf("failed to spend credit: %w", err)
		}
	}

	tickets := make(map[int64][]int, len(cart))
	for _, c := range cart {
		assignment, err := txs.ledger.Reserve(ctx, services.ReserveRequest{
			OrderID:    order.ID,
			UserID:     req.UserID,
			GiveawayID: c.entry.GiveawayID,
			Amount:     c.entry.Amount,
			Preferred:  c.entry.Numbers,
		})
		if err != nil {
			if entities.IsCapacityError(err) {
				verr.Add(c.line, c.entry.GiveawayID, "amount", err, err.Error())
				return nil, verr
			}
			return nil, fmt.Errorf("failed to reserve tickets for giveaway %d: %w", c.entry.GiveawayID, err)
		}
		tickets[c.entry.GiveawayID] = assignment.SortedNumbers()
	}

	if order.IsZeroTotal() {
		if _, err := txs.machine.Transition(ctx, order, entities.OrderStatusCompleted, entities.TriggerZeroTotal); err != nil {
			return nil, fmt.Errorf("failed to complete zero-total order: %w", err)
		}
	} else {
		if err := uow.EventBus().Publish(events.OrderReceivedEvent{
			OrderID:       order.ID,
			UserID:        order.UserID,
			Status:        order.Status,
			Total:         order.Total,
			OriginalTotal: order.OriginalTotal,
			CreditUsed:    order.CreditUsed,
			Cart:          order.Cart,
		}); err != nil {
			log.WithError(err).WithField("orderID", order.ID).Warn("Failed to queue order received notification")
		}
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"orderID":    order.ID,
		"userID":     order.UserID,
		"status":     order.Status,
		"total":      order.Total.String(),
		"creditUsed": order.CreditUsed.String(),
		"lines":      len(cart),
	}).Info("Order created")

	return &CheckoutResult{
		OrderID:    order.ID,
		Status:     order.Status,
		Total:      order.Total,
		CreditUsed: order.CreditUsed,
		Tickets:    tickets,
	}, nil
}

// StartCheckoutSession attaches a gateway session to an order and moves it to pending
func (h *CheckoutHandler) StartCheckoutSession(ctx context.Context, orderID int64, checkoutID string) (*services.TransitionResult, error) {
	if checkoutID == "" {
		return nil, fmt.Errorf("checkout id is required")
	}

	var result *services.TransitionResult
	err := h.retry.Run(ctx, func(ctx context.Context) error {
		uow := h.uowFactory.Create()
		if err := uow.Begin(ctx); err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer uow.Rollback()

		order, err := uow.OrderRepository().GetByIDForUpdate(ctx, orderID)
		if err != nil {
			return fmt.Errorf("failed to lock order: %w", err)
		}
		if order == nil {
			return fmt.Errorf("%w: %d", entities.ErrOrderNotFound, orderID)
		}
		if order.CheckoutID != nil && *order.CheckoutID != checkoutID {
			return fmt.Errorf("order %d already has checkout session %s", orderID, *order.CheckoutID)
		}
		if order.CheckoutID == nil {
			if err := uow.OrderRepository().SetCheckoutID(ctx, orderID, checkoutID); err != nil {
				return fmt.Errorf("failed to set checkout id: %w", err)
			}
			order.CheckoutID = &checkoutID
		}

		txs := newTxServices(uow, h.allocator)
		result, err = txs.machine.Transition(ctx, order, entities.OrderStatusPending, entities.TriggerCheckoutSessionStarted)
		if err != nil {
			return err
		}
		return uow.Commit()
	})
	return result, err
}

// normalizeCart checks the cart shape and merges lines naming the same giveaway.
// Entries come back sorted by giveaway id, which is also the lock order.
func normalizeCart(lines []entities.CartLine) ([]cartEntry, error) {
	if len(lines) == 0 {
		return nil, entities.ErrEmptyCart
	}

	verr := &entities.CartValidationError{}
	merged := make(map[int64]*cartEntry, len(lines))
	for i, line := range lines {
		if line.GiveawayID <= 0 {
			verr.Add(i, line.GiveawayID, "giveaway_id", entities.ErrGiveawayNotFound, "giveaway id is required")
			continue
		}
		if line.Amount < 1 {
			verr.Add(i, line.GiveawayID, "amount", entities.ErrInvalidAmount, "amount must be at least 1")
			continue
		}
		existing, ok := merged[line.GiveawayID]
		if !ok {
			merged[line.GiveawayID] = &cartEntry{
				line: i,
				entry: entities.CartLine{
					GiveawayID: line.GiveawayID,
					Amount:     line.Amount,
					Numbers:    slices.Clone(line.Numbers),
				},
			}
			continue
		}
		existing.entry.Amount += line.Amount
		for _, n := range line.Numbers {
			if !slices.Contains(existing.entry.Numbers, n) {
				existing.entry.Numbers = append(existing.entry.Numbers, n)
			}
		}
	}
	if verr.HasErrors() {
		return nil, verr
	}

	out := make([]cartEntry, 0, len(merged))
	for _, c := range merged {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].entry.GiveawayID < out[j].entry.GiveawayID })
	return out, nil
}

func cartLines(cart []cartEntry) []entities.CartLine {
	lines := make([]entities.CartLine, len(cart))
	for i, c := range cart {
		lines[i] = c.entry
	}
	return lines
}
