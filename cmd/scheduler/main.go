package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"lendpool-backend/bootstrap"
	"lendpool-backend/internal/config"
	"lendpool-backend/internal/jobs"
	"lendpool-backend/internal/logging"
	"lendpool-backend/internal/scheduler"
)

func main() {
	runOnce := flag.String("run-once", "", "Run a job once and exit: "+jobs.JobDetectOverdue+", "+jobs.JobAccruePenalties+", "+jobs.JobRelayOutbox+" or all")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load: %v\n", err)
		os.Exit(1)
	}
	logging.Init(cfg.LogLevel, !cfg.IsProduction())
	logger := logging.Component("scheduler")

	c, err := bootstrap.Build(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Startup failed")
	}
	defer c.Close()

	if *runOnce != "" {
		logger.Info().Str("job", *runOnce).Msg("Running job once")
		if err := c.Jobs.RunOnce(*runOnce); err != nil {
			logger.Error().Err(err).Str("job", *runOnce).Msg("Job failed")
			c.Close()
			os.Exit(1)
		}
		logger.Info().Str("job", *runOnce).Msg("Job execution completed")
		return
	}

	s, err := scheduler.NewScheduler(c.Jobs, cfg.Schedule)
	if err != nil {
		logger.Fatal().Err(err).Msg("Invalid schedule")
	}
	s.Start()
	logger.Info().Int("jobs", s.Entries()).Msg("Scheduler is running. Press Ctrl+C to stop.")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info().Msg("Shutting down scheduler...")
	s.Stop()
	logger.Info().Msg("Scheduler stopped")
}
