package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// StaleCleaner finishes chat deletions that were interrupted.
type StaleCleaner interface {
	ResumeStale(ctx context.Context, grace time.Duration) (int, error)
}

// StartCleanupCronJobs schedules the sweep for interrupted chat deletions. A sweep that is
// still running when the next one is due causes that next one to be skipped.
func StartCleanupCronJobs(cleaner StaleCleaner, schedule string, grace time.Duration) (*cron.Cron, error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))

	_, err := c.AddFunc(schedule, func() {
		sweep(context.Background(), cleaner, grace)
	})
	if err != nil {
		return nil, fmt.Errorf("invalid cleanup schedule %q: %w", schedule, err)
	}

	c.Start()
	logrus.WithField("schedule", schedule).Info("Cleanup cron started")
	return c, nil
}

func sweep(ctx context.Context, cleaner StaleCleaner, grace time.Duration) {
	purged, err := cleaner.ResumeStale(ctx, grace)
	if err != nil {
		logrus.WithError(err).Error("ResumeStale failed")
		return
	}
	if purged > 0 {
		logrus.WithField("purged", purged).Info("Resumed interrupted chat deletions")
	}
}
