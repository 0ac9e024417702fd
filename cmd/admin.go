package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"raffle/application"
	"raffle/config"
	"raffle/domain/entities"
	"raffle/domain/services"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

// AdminCommand groups the operator actions that act directly on orders, credit and giveaways
func AdminCommand() *cli.Command {
	orderFlag := &cli.Int64Flag{Name: "order", Usage: "order id", Required: true}
	userFlag := &cli.Int64Flag{Name: "user", Usage: "user id", Required: true}
	amountFlag := &cli.StringFlag{Name: "amount", Usage: "decimal amount, e.g. 10.00", Required: true}
	descriptionFlag := &cli.StringFlag{Name: "description", Usage: "ledger description"}

	return &cli.Command{
		Name:     "admin",
		Usage:    "Manual operator actions",
		Category: "Admin",
		Subcommands: []*cli.Command{
			{
				Name:   "complete-order",
				Usage:  "Force an order to completed, allocating its tickets",
				Flags:  []cli.Flag{orderFlag},
				Action: withAdmin(completeOrder),
			},
			{
				Name:   "fail-order",
				Usage:  "Force an order to failed, revoking tickets and refunding credit",
				Flags:  []cli.Flag{orderFlag},
				Action: withAdmin(failOrder),
			},
			{
				Name:  "reassign",
				Usage: "Reallocate the numbers held by an order",
				Flags: []cli.Flag{
					orderFlag,
					&cli.StringFlag{Name: "strategy", Value: string(services.ReassignKeepExisting), Usage: "keep_requested, keep_existing or random"},
				},
				Action: withAdmin(reassignTickets),
			},
			{
				Name:  "remove-tickets",
				Usage: "Remove specific numbers from an order",
				Flags: []cli.Flag{
					orderFlag,
					&cli.StringFlag{Name: "numbers", Usage: "comma separated numbers", Required: true},
				},
				Action: withAdmin(removeTickets),
			},
			{
				Name:   "add-credit",
				Usage:  "Add wallet credit to a user",
				Flags:  []cli.Flag{userFlag, amountFlag, descriptionFlag},
				Action: withAdmin(addCredit),
			},
			{
				Name:   "deduct-credit",
				Usage:  "Deduct wallet credit from a user",
				Flags:  []cli.Flag{userFlag, amountFlag, descriptionFlag},
				Action: withAdmin(deductCredit),
			},
			{
				Name:   "balance",
				Usage:  "Show a user's credit balance and ledger sum",
				Flags:  []cli.Flag{userFlag},
				Action: withAdmin(creditBalance),
			},
			{
				Name:   "draw",
				Usage:  "Draw winners for a giveaway",
				Flags:  []cli.Flag{&cli.Int64Flag{Name: "giveaway", Usage: "giveaway id", Required: true}},
				Action: withAdmin(drawWinners),
			},
			{
				Name:   "create-user",
				Usage:  "Create a user with an empty wallet",
				Flags:  []cli.Flag{&cli.StringFlag{Name: "email", Required: true}},
				Action: withAdmin(createUser),
			},
			{
				Name:  "create-giveaway",
				Usage: "Create a giveaway",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "title", Required: true},
					&cli.StringFlag{Name: "price", Value: "0", Usage: "ticket price"},
					&cli.IntFlag{Name: "tickets", Usage: "total tickets, 0 for unbounded"},
					&cli.IntFlag{Name: "per-user", Usage: "per-user cap, 0 for none"},
					&cli.TimestampFlag{Name: "closes-at", Layout: time.RFC3339, Required: true},
					&cli.BoolFlag{Name: "auto-draw"},
					&cli.IntFlag{Name: "winners", Value: 1},
				},
				Action: withAdmin(createGiveaway),
			},
			{
				Name:      "checkout",
				Usage:     "Place a manual order",
				ArgsUsage: "<giveaway:amount[:n,n,...]>...",
				Flags: []cli.Flag{
					userFlag,
					&cli.StringFlag{Name: "checkout-id", Usage: "gateway session reference"},
					&cli.BoolFlag{Name: "use-credit"},
					&cli.StringFlag{Name: "total", Usage: "override the computed total"},
				},
				Action: withAdmin(manualCheckout),
			},
			{
				Name:  "start-session",
				Usage: "Attach a gateway session to a created order",
				Flags: []cli.Flag{
					orderFlag,
					&cli.StringFlag{Name: "checkout-id", Required: true},
				},
				Action: withAdmin(startSession),
			},
			{
				Name:  "payment-event",
				Usage: "Apply a gateway result to the order holding a checkout session",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "checkout-id", Required: true},
					&cli.StringFlag{Name: "code", Usage: "gateway result code", Required: true},
				},
				Action: withAdmin(replayPaymentEvent),
			},
		},
	}
}

// adminContext carries what every admin action needs
type adminContext struct {
	rt       *runtime
	actions  *application.AdminActions
	checkout *application.CheckoutHandler
}

func withAdmin(fn func(c *cli.Context, a *adminContext) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		cfg := config.Get()
		ConfigureLogging(cfg)

		rt, err := newRuntime(c.Context, cfg)
		if err != nil {
			return err
		}
		defer rt.close()

		return fn(c, &adminContext{
			rt:       rt,
			actions:  application.NewAdminActions(rt.uowFactory, rt.allocator, nil, rt.retry),
			checkout: application.NewCheckoutHandler(rt.uowFactory, rt.allocator, rt.retry),
		})
	}
}

func completeOrder(c *cli.Context, a *adminContext) error {
	result, err := a.actions.CompleteOrder(c.Context, c.Int64("order"))
	if err != nil {
		return err
	}
	printTransition(result)
	return nil
}

func failOrder(c *cli.Context, a *adminContext) error {
	result, err := a.actions.FailOrder(c.Context, c.Int64("order"))
	if err != nil {
		return err
	}
	printTransition(result)
	return nil
}

func reassignTickets(c *cli.Context, a *adminContext) error {
	strategy := services.ReassignStrategy(c.String("strategy"))
	switch strategy {
	case services.ReassignKeepRequested, services.ReassignKeepExisting, services.ReassignRandom:
	default:
		return fmt.Errorf("unknown strategy %q", strategy)
	}

	assignments, err := a.actions.ReassignTickets(c.Context, c.Int64("order"), strategy)
	if err != nil {
		return err
	}
	printAssignments(assignments)
	return nil
}

func removeTickets(c *cli.Context, a *adminContext) error {
	numbers, err := parseNumbers(c.String("numbers"))
	if err != nil {
		return err
	}
	assignments, err := a.actions.RemoveTickets(c.Context, c.Int64("order"), numbers)
	if err != nil {
		return err
	}
	printAssignments(assignments)
	return nil
}

func addCredit(c *cli.Context, a *adminContext) error {
	amount, err := decimal.NewFromString(c.String("amount"))
	if err != nil {
		return fmt.Errorf("invalid amount: %w", err)
	}
	tx, err := a.actions.AddCredit(c.Context, c.Int64("user"), amount, c.String("description"))
	if err != nil {
		return err
	}
	fmt.Printf("credit transaction %d: +%s, balance %s\n", tx.ID, tx.Amount.StringFixed(2), tx.BalanceAfter.StringFixed(2))
	return nil
}

func deductCredit(c *cli.Context, a *adminContext) error {
	amount, err := decimal.NewFromString(c.String("amount"))
	if err != nil {
		return fmt.Errorf("invalid amount: %w", err)
	}
	tx, err := a.actions.DeductCredit(c.Context, c.Int64("user"), amount, c.String("description"))
	if err != nil {
		return err
	}
	fmt.Printf("credit transaction %d: -%s, balance %s\n", tx.ID, tx.Amount.StringFixed(2), tx.BalanceAfter.StringFixed(2))
	return nil
}

func creditBalance(c *cli.Context, a *adminContext) error {
	balance, ledgerSum, err := a.actions.CreditBalance(c.Context, c.Int64("user"))
	if err != nil {
		return err
	}
	fmt.Printf("balance %s, ledger sum %s\n", balance.StringFixed(2), ledgerSum.StringFixed(2))
	if !balance.Equal(ledgerSum) {
		log.WithFields(log.Fields{
			"userID":    c.Int64("user"),
			"balance":   balance.String(),
			"ledgerSum": ledgerSum.String(),
		}).Warn("Credit balance does not match ledger")
	}
	return nil
}

func drawWinners(c *cli.Context, a *adminContext) error {
	result, err := a.actions.DrawWinners(c.Context, c.Int64("giveaway"))
	if err != nil {
		return err
	}
	if result.AlreadyDrawn {
		fmt.Printf("giveaway %d was already drawn\n", result.GiveawayID)
	}
	for _, w := range result.Winners {
		fmt.Printf("ticket #%d: order %d, user %d\n", w.Number, w.OrderID, w.UserID)
	}
	return nil
}

func createUser(c *cli.Context, a *adminContext) error {
	user, err := a.actions.CreateUser(c.Context, c.String("email"))
	if err != nil {
		return err
	}
	fmt.Printf("user %d created\n", user.ID)
	return nil
}

func createGiveaway(c *cli.Context, a *adminContext) error {
	price, err := decimal.NewFromString(c.String("price"))
	if err != nil {
		return fmt.Errorf("invalid price: %w", err)
	}

	giveaway := &entities.Giveaway{
		Title:          c.String("title"),
		Price:          price,
		TicketsTotal:   c.Int("tickets"),
		TicketsPerUser: c.Int("per-user"),
		ClosesAt:       c.Timestamp("closes-at").UTC(),
		AutoDraw:       c.Bool("auto-draw"),
		ManyWinners:    c.Int("winners"),
	}
	if err := a.actions.CreateGiveaway(c.Context, giveaway); err != nil {
		return err
	}
	fmt.Printf("giveaway %d created\n", giveaway.ID)
	return nil
}

func manualCheckout(c *cli.Context, a *adminContext) error {
	if c.NArg() == 0 {
		return fmt.Errorf("at least one cart line is required")
	}

	cart := make([]entities.CartLine, 0, c.NArg())
	for _, arg := range c.Args().Slice() {
		line, err := parseCartLine(arg)
		if err != nil {
			return err
		}
		cart = append(cart, line)
	}

	req := application.CheckoutRequest{
		UserID:     c.Int64("user"),
		Cart:       cart,
		CheckoutID: c.String("checkout-id"),
		UseCredit:  c.Bool("use-credit"),
	}
	if raw := c.String("total"); raw != "" {
		total, err := decimal.NewFromString(raw)
		if err != nil {
			return fmt.Errorf("invalid total: %w", err)
		}
		req.TotalOverride = &total
	}

	result, err := a.checkout.Checkout(c.Context, req)
	if err != nil {
		return err
	}
	fmt.Printf("order %d %s, total %s, credit used %s\n", result.OrderID, result.Status, result.Total.StringFixed(2), result.CreditUsed.StringFixed(2))
	for giveawayID, numbers := range result.Tickets {
		fmt.Printf("  giveaway %d: %v\n", giveawayID, numbers)
	}
	return nil
}

func startSession(c *cli.Context, a *adminContext) error {
	result, err := a.checkout.StartCheckoutSession(c.Context, c.Int64("order"), c.String("checkout-id"))
	if err != nil {
		return err
	}
	printTransition(result)
	return nil
}

func replayPaymentEvent(c *cli.Context, a *adminContext) error {
	dedup, closeDedup, err := a.rt.newDedupCache(c.Context)
	if err != nil {
		return err
	}
	defer closeDedup()

	outcome, err := a.rt.newReconciler(dedup).HandlePaymentEvent(c.Context, application.PaymentEvent{
		CheckoutID: c.String("checkout-id"),
		ResultCode: c.String("code"),
	})
	if err != nil {
		return err
	}

	switch {
	case outcome.Duplicate:
		fmt.Println("duplicate event, skipped")
	case outcome.Ignored:
		fmt.Println("event ignored")
	default:
		printTransition(outcome.Result)
	}
	return nil
}

func printTransition(result *services.TransitionResult) {
	if result == nil {
		fmt.Println("no change")
		return
	}
	if !result.Changed {
		fmt.Printf("order %d already %s\n", result.Order.ID, result.To)
		return
	}
	fmt.Printf("order %d: %s -> %s (%s)\n", result.Order.ID, result.From, result.To, result.Trigger)
	printAssignments(result.Allocated)
	for _, revoked := range result.Revoked {
		fmt.Printf("  revoked giveaway %d: %v\n", revoked.GiveawayID, revoked.Numbers)
	}
	if result.Refund != nil {
		fmt.Printf("  refunded %s\n", result.Refund.Amount.StringFixed(2))
	}
}

func printAssignments(assignments []*entities.TicketAssignment) {
	for _, assignment := range assignments {
		fmt.Printf("  giveaway %d: %v\n", assignment.GiveawayID, assignment.Numbers)
	}
}

// parseCartLine reads "giveaway:amount" or "giveaway:amount:n,n,..."
func parseCartLine(raw string) (entities.CartLine, error) {
	parts := strings.Split(raw, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return entities.CartLine{}, fmt.Errorf("invalid cart line %q", raw)
	}

	giveawayID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return entities.CartLine{}, fmt.Errorf("invalid giveaway id in %q: %w", raw, err)
	}
	amount, err := strconv.Atoi(parts[1])
	if err != nil {
		return entities.CartLine{}, fmt.Errorf("invalid amount in %q: %w", raw, err)
	}

	line := entities.CartLine{GiveawayID: giveawayID, Amount: amount}
	if len(parts) == 3 {
		if line.Numbers, err = parseNumbers(parts[2]); err != nil {
			return entities.CartLine{}, err
		}
	}
	return line, nil
}

func parseNumbers(raw string) ([]int, error) {
	var numbers []int
	for _, field := range strings.Split(raw, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		n, err := strconv.Atoi(field)
		if err != nil {
			return nil, fmt.Errorf("invalid ticket number %q: %w", field, err)
		}
		numbers = append(numbers, n)
	}
	if len(numbers) == 0 {
		return nil, fmt.Errorf("no ticket numbers given")
	}
	return numbers, nil
}
