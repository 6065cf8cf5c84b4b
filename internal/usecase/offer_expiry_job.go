package usecase

import (
	"context"

	"github.com/robfig/cron/v3"

	"changas/pkg/logger"
)

// RunOfferExpiryJob sweeps overdue offers on the given cron schedule until ctx
// is cancelled. Overlapping runs are skipped.
func (uc *NegotiationUseCase) RunOfferExpiryJob(ctx context.Context, schedule string) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))

	_, err := c.AddFunc(schedule, func() {
		if _, err := uc.ExpireOffers(ctx); err != nil {
			logger.Error("Offer expiry job error: %v", err)
		}
	})
	if err != nil {
		return err
	}

	c.Start()
	logger.Info("Offer expiry job started (%s)", schedule)

	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}
