package app

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
)

// runTimeout bounds a single scheduled collection pass.
const runTimeout = 30 * time.Minute

// Scheduler re-runs collection on a cron schedule (watch mode). A pass that
// outlives the schedule interval causes the next tick to be skipped rather
// than overlapping it; overlapping runs would race on the export files.
type Scheduler struct {
	run    func(context.Context) error
	cron   *cron.Cron
	logger arbor.ILogger
}

// NewScheduler creates a collection scheduler.
func NewScheduler(app *App, logger arbor.ILogger) *Scheduler {
	return newScheduler(app.Run, logger)
}

func newScheduler(run func(context.Context) error, logger arbor.ILogger) *Scheduler {
	return &Scheduler{
		run: run,
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithChain(cron.SkipIfStillRunning(cronLogger{logger})),
		),
		logger: logger,
	}
}

// Start begins scheduled collection.
func (s *Scheduler) Start(schedule string) error {
	if schedule == "" {
		// Default: every 30 minutes
		schedule = "0 */30 * * * *"
	}

	_, err := s.cron.AddFunc(schedule, func() {
		s.runCollection()
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info().
		Str("schedule", schedule).
		Msg("Collection scheduler started")

	return nil
}

// Stop stops the scheduler.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.logger.Info().Msg("Collection scheduler stopped")
}

func (s *Scheduler) runCollection() {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	s.logger.Info().Msg("Starting scheduled collection")

	if err := s.run(ctx); err != nil {
		s.logger.Error().
			Err(err).
			Msg("Scheduled collection failed")
	}
}

// cronLogger adapts arbor to the cron logger interface so skipped ticks are
// visible in the application log.
type cronLogger struct {
	logger arbor.ILogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Info().Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Msg(msg)
}
