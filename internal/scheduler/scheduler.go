// Package scheduler runs the background jobs: the nightly optimization run,
// retention pruning, and database maintenance.
package scheduler

import (
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/appadaycreator/jquants-stock-prediction-sub005/internal/events"
)

// Job represents a scheduled job
type Job interface {
	Run() error
	Name() string
}

// Scheduler manages background jobs. Every run is announced on the event bus
// so the WebSocket stream sees job lifecycles.
type Scheduler struct {
	cron *cron.Cron
	bus  *events.Bus
	log  zerolog.Logger
}

// New creates a new scheduler. The bus may be nil to skip event publication.
func New(bus *events.Bus, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithSeconds()),
		bus:  bus,
		log:  log.With().Str("component", "scheduler").Logger(),
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Msg("Scheduler started")
}

// Stop stops the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("Scheduler stopped")
}

// AddJob registers a job with a cron schedule (six fields, seconds first).
// Schedule examples:
//   - "0 */5 * * * *"    - Every 5 minutes
//   - "@hourly"          - Every hour
//   - "0 0 18 * * MON-FRI" - 18:00 weekdays
//   - "@every 30s"       - Every 30 seconds
func (s *Scheduler) AddJob(schedule string, job Job) error {
	_, err := s.cron.AddFunc(schedule, func() {
		s.runJob(job)
	})
	if err != nil {
		return err
	}

	s.log.Info().
		Str("schedule", schedule).
		Str("job", job.Name()).
		Msg("Job registered")

	return nil
}

// RunNow executes a job immediately (outside schedule)
func (s *Scheduler) RunNow(job Job) error {
	s.log.Info().Str("job", job.Name()).Msg("Running job immediately")
	return s.runJob(job)
}

func (s *Scheduler) runJob(job Job) error {
	s.log.Debug().Str("job", job.Name()).Msg("Running job")
	s.publish(&events.JobStatusData{JobName: job.Name(), Status: "started"})

	start := time.Now()
	err := job.Run()
	elapsed := time.Since(start)

	if err != nil {
		s.log.Error().
			Err(err).
			Str("job", job.Name()).
			Dur("elapsed", elapsed).
			Msg("Job failed")
		s.publish(&events.JobStatusData{
			JobName:  job.Name(),
			Status:   "failed",
			Error:    err.Error(),
			Duration: elapsed.Seconds(),
		})
		return err
	}

	s.log.Debug().
		Str("job", job.Name()).
		Dur("elapsed", elapsed).
		Msg("Job completed")
	s.publish(&events.JobStatusData{
		JobName:  job.Name(),
		Status:   "completed",
		Duration: elapsed.Seconds(),
	})
	return nil
}

func (s *Scheduler) publish(data events.EventData) {
	if s.bus != nil {
		s.bus.Publish("scheduler", data)
	}
}
