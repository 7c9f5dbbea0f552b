package reconcile

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog/log"
)

// Scheduler runs the reconciler on a fixed interval until ctx is done.
type Scheduler struct {
	r        *Reconciler
	interval time.Duration
}

func NewScheduler(r *Reconciler, interval time.Duration) *Scheduler {
	return &Scheduler{r: r, interval: interval}
}

func (s *Scheduler) Run(ctx context.Context) error {
	if s.interval <= 0 {
		log.Info().Msg("reconcile scheduler disabled")
		<-ctx.Done()
		return nil
	}
	sched, err := gocron.NewScheduler()
	if err != nil {
		return err
	}
	_, err = sched.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(func() {
			if _, err := s.r.Run(ctx); err != nil {
				log.Error().Err(err).Msg("reconcile run failed")
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sched.Shutdown()
		return err
	}
	sched.Start()
	log.Info().Dur("interval", s.interval).Msg("reconcile scheduler started")

	<-ctx.Done()
	return sched.Shutdown()
}
