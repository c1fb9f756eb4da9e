package services

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/sirupsen/logrus"
)

// StartSweepScheduler runs the challenge timeout sweep on a fixed interval.
// The sweep itself is idempotent, so overlapping or re-run executions are
// safe; failures are logged and retried on the next tick.
func (s *ChallengeService) StartSweepScheduler(interval time.Duration) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			defer cancel()
			if err := s.SweepTimeouts(ctx); err != nil {
				logrus.WithError(err).Error("challenge timeout sweep failed")
			}
		}),
	)
	if err != nil {
		return nil, err
	}

	sched.Start()
	logrus.WithField("interval", interval).Info("challenge sweep scheduler started")
	return sched, nil
}
