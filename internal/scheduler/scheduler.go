package scheduler

import (
	"fmt"
	"time"

	"lendpool-backend/internal/config"
	"lendpool-backend/internal/jobs"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Scheduler manages cron job scheduling
type Scheduler struct {
	cron *cron.Cron
	jobs *jobs.JobRunner
}

// NewScheduler registers the lending jobs on a UTC, seconds-precision cron.
// An invalid spec is a startup error.
func NewScheduler(jobRunner *jobs.JobRunner, cfg config.ScheduleConfig) (*Scheduler, error) {
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithSeconds(),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	s := &Scheduler{cron: c, jobs: jobRunner}

	entries := []struct {
		name string
		spec string
		fn   func()
	}{
		{jobs.JobDetectOverdue, cfg.DetectOverdue, jobRunner.DetectOverdue},
		{jobs.JobAccruePenalties, cfg.AccruePenalties, jobRunner.AccruePenalties},
		{jobs.JobRelayOutbox, cfg.RelayOutbox, jobRunner.RelayOutbox},
	}
	for _, e := range entries {
		if e.spec == "" {
			log.Warn().Str("job", e.name).Msg("No schedule configured, job disabled")
			continue
		}
		if _, err := c.AddFunc(e.spec, e.fn); err != nil {
			return nil, fmt.Errorf("schedule %s %q: %w", e.name, e.spec, err)
		}
		log.Info().Str("job", e.name).Str("spec", e.spec).Msg("Job registered")
	}
	return s, nil
}

// Start begins the cron scheduler
func (s *Scheduler) Start() {
	log.Info().Msg("Starting cron scheduler")
	s.cron.Start()
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	log.Info().Msg("Stopping cron scheduler")
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info().Msg("Cron scheduler stopped")
}

func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}
