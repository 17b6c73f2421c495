// Package scheduler triggers the analysis pipeline on a cron schedule
// with a non-overlapping trigger policy: a tick that fires while the
// previous run is still going is dropped.
package scheduler

import (
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Job is a unit of scheduled work.
type Job interface {
	Run() error
	Name() string
}

// Scheduler manages background jobs.
type Scheduler struct {
	cron   *cron.Cron
	logger zerolog.Logger
}

// New creates a new scheduler. Schedules use the six-field form with
// seconds, e.g. "0 0 10 * * MON-FRI".
func New() *Scheduler {
	return &Scheduler{
		cron:   cron.New(cron.WithSeconds()),
		logger: log.With().Str("component", "scheduler").Logger(),
	}
}

// Start starts the scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info().Msg("Scheduler started")
}

// Stop stops the scheduler and waits for a running job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info().Msg("Scheduler stopped")
}

// AddJob registers a job with a cron schedule. Overlapping ticks are
// skipped, keeping at most one invocation of the pipeline running.
func (s *Scheduler) AddJob(schedule string, job Job) error {
	var mu sync.Mutex
	running := false

	_, err := s.cron.AddFunc(schedule, func() {
		mu.Lock()
		if running {
			mu.Unlock()
			s.logger.Warn().Str("job", job.Name()).Msg("Previous run still in progress, skipping tick")
			return
		}
		running = true
		mu.Unlock()

		defer func() {
			mu.Lock()
			running = false
			mu.Unlock()
		}()

		s.logger.Debug().Str("job", job.Name()).Msg("Running job")
		if err := job.Run(); err != nil {
			s.logger.Error().Err(err).Str("job", job.Name()).Msg("Job failed")
		} else {
			s.logger.Debug().Str("job", job.Name()).Msg("Job completed")
		}
	})
	if err != nil {
		return err
	}

	s.logger.Info().Str("schedule", schedule).Str("job", job.Name()).Msg("Job registered")
	return nil
}

// RunNow executes a job immediately, outside its schedule.
func (s *Scheduler) RunNow(job Job) error {
	s.logger.Info().Str("job", job.Name()).Msg("Running job immediately")
	return job.Run()
}
