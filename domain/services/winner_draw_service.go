package services

import (
	"context"
	"fmt"
	"time"

	"raffle/domain/entities"
	"raffle/domain/interfaces"
	"raffle/events"

	log "github.com/sirupsen/logrus"
)

// DrawResult is the outcome of a draw attempt
type DrawResult struct {
	GiveawayID   int64
	Winners      []events.DrawnWinner
	AlreadyDrawn bool
	PoolSize     int
}

// WinnerDrawService selects winning tickets from the completed-order pool
type WinnerDrawService struct {
	giveawayRepo interfaces.GiveawayRepository
	ticketRepo   interfaces.TicketAssignmentRepository
	publisher    interfaces.EventPublisher
	rng          RandomSource
}

// NewWinnerDrawService creates a new winner draw service. A nil source uses the process-wide generator.
func NewWinnerDrawService(
	giveawayRepo interfaces.GiveawayRepository,
	ticketRepo interfaces.TicketAssignmentRepository,
	publisher interfaces.EventPublisher,
	rng RandomSource,
) *WinnerDrawService {
	if rng == nil {
		rng = globalRandom{}
	}
	return &WinnerDrawService{
		giveawayRepo: giveawayRepo,
		ticketRepo:   ticketRepo,
		publisher:    publisher,
		rng:          rng,
	}
}

// Draw picks up to WinnerCount distinct numbers uniformly from the completed pool of a
// closed giveaway. A giveaway that already has winners is left untouched.
func (s *WinnerDrawService) Draw(ctx context.Context, giveawayID int64, now time.Time) (*DrawResult, error) {
	giveaway, err := s.giveawayRepo.GetByIDForUpdate(ctx, giveawayID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock giveaway: %w", err)
	}
	if giveaway == nil {
		return nil, fmt.Errorf("%w: %d", entities.ErrGiveawayNotFound, giveawayID)
	}
	if !giveaway.IsClosed(now) {
		return nil, fmt.Errorf("%w: giveaway %d closes at %s", entities.ErrGiveawayOpen, giveaway.ID, giveaway.ClosesAt.Format(time.RFC3339))
	}

	result := &DrawResult{GiveawayID: giveaway.ID}

	drawn, err := s.ticketRepo.HasWinners(ctx, giveaway.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing winners: %w", err)
	}
	if drawn {
		result.AlreadyDrawn = true
		log.WithField("giveawayID", giveaway.ID).Info("Giveaway already has winners, skipping draw")
		return result, nil
	}

	pool, err := s.ticketRepo.GetCompletedPool(ctx, giveaway.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get ticket pool: %w", err)
	}
	result.PoolSize = len(pool)
	if len(pool) == 0 {
		log.WithField("giveawayID", giveaway.ID).Info("No completed tickets to draw from")
		return result, nil
	}

	// Partial shuffle; each assignment row can hold one winning ticket
	want := giveaway.WinnerCount()
	won := make(map[int64]struct{}, want)
	for i := 0; i < len(pool) && len(result.Winners) < want; i++ {
		j := i + s.rng.IntN(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]

		entry := pool[i]
		if _, ok := won[entry.AssignmentID]; ok {
			continue
		}
		won[entry.AssignmentID] = struct{}{}

		if err := s.ticketRepo.MarkWinner(ctx, entry.AssignmentID, entry.Number); err != nil {
			return nil, fmt.Errorf("failed to mark winner: %w", err)
		}
		result.Winners = append(result.Winners, events.DrawnWinner{
			OrderID:      entry.OrderID,
			UserID:       entry.UserID,
			AssignmentID: entry.AssignmentID,
			Number:       entry.Number,
		})
	}

	if s.publisher != nil {
		if err := s.publisher.Publish(events.WinnersDrawnEvent{
			GiveawayID: giveaway.ID,
			Winners:    result.Winners,
		}); err != nil {
			log.WithError(err).WithField("giveawayID", giveaway.ID).Warn("Failed to publish winners drawn event")
		}
	}

	log.WithFields(log.Fields{
		"giveawayID": giveaway.ID,
		"winners":    len(result.Winners),
		"poolSize":   len(pool),
	}).Info("Drew giveaway winners")

	return result, nil
}
