package application

import (
	"context"
	"fmt"
	"time"

	"raffle/domain/interfaces"
	"raffle/domain/services"

	log "github.com/sirupsen/logrus"
)

// WinnerDrawWorker draws winners for closed auto-draw giveaways
type WinnerDrawWorker struct {
	uowFactory interfaces.UnitOfWorkFactory
	rng        services.RandomSource
	retry      RetryPolicy
	interval   time.Duration
	now        func() time.Time
}

// NewWinnerDrawWorker creates a new winner draw worker
func NewWinnerDrawWorker(uowFactory interfaces.UnitOfWorkFactory, rng services.RandomSource, retry RetryPolicy, interval time.Duration) *WinnerDrawWorker {
	return &WinnerDrawWorker{
		uowFactory: uowFactory,
		rng:        rng,
		retry:      retry,
		interval:   interval,
		now:        utcNow,
	}
}

// Start begins the draw loop and returns a function that stops it
func (w *WinnerDrawWorker) Start(ctx context.Context) func() {
	stopChan := make(chan struct{})

	go func() {
		log.WithField("interval", w.interval).Info("Winner draw worker started")

		for {
			if _, err := w.DrawDue(ctx); err != nil {
				log.Errorf("Error processing due draws: %v", err)
			}

			select {
			case <-ctx.Done():
				log.Info("Winner draw worker shutting down (context cancelled)...")
				return
			case <-stopChan:
				log.Info("Winner draw worker shutting down (stop requested)...")
				return
			case <-time.After(w.interval):
			}
		}
	}()

	return func() {
		close(stopChan)
	}
}

// DrawDue draws every giveaway that is due, each in its own transaction
func (w *WinnerDrawWorker) DrawDue(ctx context.Context) ([]*services.DrawResult, error) {
	now := w.now()

	uow := w.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	due, err := uow.GiveawayRepository().GetDueForDraw(ctx, now)
	uow.Rollback()
	if err != nil {
		return nil, fmt.Errorf("failed to get giveaways due for draw: %w", err)
	}

	if len(due) == 0 {
		log.Debug("No giveaways due for draw")
		return nil, nil
	}

	var results []*services.DrawResult
	var failureCount int
	for _, giveaway := range due {
		var result *services.DrawResult
		err := w.retry.Run(ctx, func(ctx context.Context) error {
			var err error
			result, err = drawGiveaway(ctx, w.uowFactory, w.rng, giveaway.ID, now)
			return err
		})
		if err != nil {
			log.Errorf("Error drawing giveaway %d: %v", giveaway.ID, err)
			failureCount++
			continue
		}
		results = append(results, result)

		log.WithFields(log.Fields{
			"giveawayID":   giveaway.ID,
			"poolSize":     result.PoolSize,
			"winnerCount":  len(result.Winners),
			"alreadyDrawn": result.AlreadyDrawn,
		}).Info("Giveaway draw completed")
	}

	log.WithFields(log.Fields{
		"totalDraws": len(due),
		"successful": len(results),
		"failed":     failureCount,
	}).Info("Completed winner draw processing")

	return results, nil
}
