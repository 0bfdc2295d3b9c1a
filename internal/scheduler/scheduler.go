package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// DefaultRunTimeout bounds a single optimization sweep.
const DefaultRunTimeout = 2 * time.Minute

// Optimizer is the part of the batch service the scheduler drives.
type Optimizer interface {
	RunScheduledOptimization(ctx context.Context) error
}

// Scheduler triggers a scheduled optimization sweep on a cron schedule.
// A sweep still running when the next tick fires is skipped.
type Scheduler struct {
	cron       *cron.Cron
	optimizer  Optimizer
	schedule   string
	runTimeout time.Duration
}

func NewScheduler(optimizer Optimizer, schedule string, runTimeout time.Duration) *Scheduler {
	if runTimeout <= 0 {
		runTimeout = DefaultRunTimeout
	}
	return &Scheduler{
		cron:       cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		optimizer:  optimizer,
		schedule:   schedule,
		runTimeout: runTimeout,
	}
}

func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(s.schedule, func() {
		if err := s.RunOnce(context.Background()); err != nil {
			log.Error().Err(err).Msg("scheduled optimization failed")
		}
	})
	if err != nil {
		return fmt.Errorf("scheduler: schedule %q: %w", s.schedule, err)
	}

	s.cron.Start()
	log.Info().Str("schedule", s.schedule).Msg("optimization scheduler started")
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	log.Info().Msg("optimization scheduler stopped")
}

// RunOnce performs one sweep bounded by the run timeout.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.runTimeout)
	defer cancel()

	start := time.Now()
	if err := s.optimizer.RunScheduledOptimization(ctx); err != nil {
		return fmt.Errorf("scheduler: run optimization: %w", err)
	}
	log.Debug().Dur("duration", time.Since(start)).Msg("scheduled optimization finished")
	return nil
}
