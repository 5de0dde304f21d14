package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/sirupsen/logrus"
)

// Job is a task repeated at a fixed interval
type Job struct {
	Name  string
	Every time.Duration
	Run   func(ctx context.Context) error
}

// Scheduler manages scheduled tasks for the application
type Scheduler struct {
	scheduler *gocron.Scheduler
	log       *logrus.Entry

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new scheduler instance
func New(logger *logrus.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		log:       logger.WithField("component", "scheduler"),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Add registers a job. A run never overlaps the previous run of the same job,
// and a failed run is logged without stopping later ones.
func (s *Scheduler) Add(job Job) error {
	if job.Every <= 0 {
		return fmt.Errorf("job %s: interval must be positive", job.Name)
	}

	_, err := s.scheduler.Every(job.Every).
		Tag(job.Name).
		SingletonMode().
		WaitForSchedule().
		Do(s.run, job)
	if err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", job.Name, err)
	}
	return nil
}

// Start begins running all scheduled tasks
func (s *Scheduler) Start() {
	// Start the scheduler in a non-blocking manner
	s.scheduler.StartAsync()
}

// RunNow triggers a job immediately
func (s *Scheduler) RunNow(name string) error {
	return s.scheduler.RunByTag(name)
}

// Len returns the number of registered jobs
func (s *Scheduler) Len() int {
	return s.scheduler.Len()
}

// Stop terminates all scheduled tasks and waits for running ones
func (s *Scheduler) Stop() {
	s.cancel()
	s.scheduler.Stop()
}

func (s *Scheduler) run(job Job) {
	started := time.Now()
	if err := job.Run(s.ctx); err != nil {
		s.log.WithError(err).WithField("job", job.Name).Error("Scheduled job failed")
		return
	}
	s.log.WithFields(logrus.Fields{
		"job":      job.Name,
		"duration": time.Since(started),
	}).Debug("Scheduled job finished")
}
