package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lendpool-backend/internal/application/notifications"
	"lendpool-backend/internal/application/penalties"
	"lendpool-backend/internal/infrastructure/redislock"

	"github.com/rs/zerolog/log"
)

const (
	JobDetectOverdue   = "detect-overdue"
	JobAccruePenalties = "accrue-penalties"
	JobRelayOutbox     = "relay-outbox"
)

// Locker keeps a job to one replica at a time.
type Locker interface {
	WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

// NoopLocker runs every job; used when Redis is not configured. The penalty
// gate and outbox checks keep reruns correct without it.
type NoopLocker struct{}

func (NoopLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// JobRunner coordinates all scheduled jobs.
type JobRunner struct {
	penalties *penalties.Service
	relay     *notifications.Relay
	locker    Locker
	timeout   time.Duration
}

func NewJobRunner(p *penalties.Service, relay *notifications.Relay, locker Locker, timeout time.Duration) *JobRunner {
	if locker == nil {
		locker = NoopLocker{}
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &JobRunner{penalties: p, relay: relay, locker: locker, timeout: timeout}
}

// runWithRecovery wraps job execution with the job lock, a timeout and panic
// recovery. It never lets a job failure escape into the cron loop.
func (jr *JobRunner) runWithRecovery(jobName string, jobFunc func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("job", jobName).Interface("panic", r).Msg("Job panicked")
			err = fmt.Errorf("job %s panicked: %v", jobName, r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), jr.timeout)
	defer cancel()

	started := time.Now()
	log.Debug().Str("job", jobName).Msg("Starting job")
	err = jr.locker.WithLock(ctx, jobName, jobFunc)
	switch {
	case errors.Is(err, redislock.ErrNotAcquired):
		log.Debug().Str("job", jobName).Msg("Job running elsewhere, skipped")
		return nil
	case err != nil:
		log.Error().Err(err).Str("job", jobName).Msg("Job failed")
		return err
	}
	log.Debug().Str("job", jobName).Dur("took", time.Since(started)).Msg("Job completed")
	return nil
}

func (jr *JobRunner) DetectOverdue() {
	_ = jr.runDetectOverdue()
}

func (jr *JobRunner) AccruePenalties() {
	_ = jr.runAccruePenalties()
}

func (jr *JobRunner) RelayOutbox() {
	_ = jr.runRelayOutbox()
}

func (jr *JobRunner) runDetectOverdue() error {
	return jr.runWithRecovery(JobDetectOverdue, func(ctx context.Context) error {
		_, err := jr.penalties.DetectOverdue(ctx)
		return err
	})
}

func (jr *JobRunner) runAccruePenalties() error {
	return jr.runWithRecovery(JobAccruePenalties, func(ctx context.Context) error {
		_, err := jr.penalties.AccruePenalties(ctx)
		return err
	})
}

func (jr *JobRunner) runRelayOutbox() error {
	return jr.runWithRecovery(JobRelayOutbox, func(ctx context.Context) error {
		res, err := jr.relay.RelayOnce(ctx)
		if res.Published > 0 || res.Failed > 0 {
			log.Info().Int("published", res.Published).Int("retrying", res.Retrying).Int("failed", res.Failed).Msg("Outbox relayed")
		}
		return err
	})
}

// RunOnce runs a single job by name, or all of them for "all", and reports
// the first failure. Used by the -run-once flag.
func (jr *JobRunner) RunOnce(name string) error {
	switch name {
	case JobDetectOverdue:
		return jr.runDetectOverdue()
	case JobAccruePenalties:
		return jr.runAccruePenalties()
	case JobRelayOutbox:
		return jr.runRelayOutbox()
	case "all":
		return errors.Join(jr.runDetectOverdue(), jr.runAccruePenalties(), jr.runRelayOutbox())
	}
	return fmt.Errorf("unknown job %q", name)
}
