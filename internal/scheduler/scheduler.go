// Package scheduler runs background maintenance jobs on cron schedules.
package scheduler

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/aristath/finfolio/internal/domain"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job represents a scheduled job
type Job interface {
	Run() error
	Name() string
}

// runRecorder is implemented by jobs embedding JobBase
type runRecorder interface {
	RecordRun(at time.Time, err error)
	LastRun() (time.Time, error)
}

// JobStatus describes a registered job for the status endpoint
type JobStatus struct {
	Name      string     `json:"name"`
	Schedule  string     `json:"schedule"`
	NextRun   time.Time  `json:"next_run"`
	LastRun   *time.Time `json:"last_run,omitempty"`
	LastError string     `json:"last_error,omitempty"`
}

type registration struct {
	id       cron.EntryID
	schedule string
	job      Job
}

// Scheduler manages background jobs
type Scheduler struct {
	cron *cron.Cron
	log  zerolog.Logger

	mu   sync.RWMutex
	jobs []registration
}

// New creates a new scheduler. Schedules use the 6-field (seconds) cron format.
func New(log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		log:  log.With().Str("component", "scheduler").Logger(),
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Int("jobs", len(s.cron.Entries())).Msg("Scheduler started")
}

// Stop stops the scheduler and waits for running jobs to finish
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("Scheduler stopped")
}

// AddJob registers a job with a cron schedule.
// Schedule examples:
//   - "0 */5 * * * *"  - every 5 minutes
//   - "@daily"         - midnight
//   - "@every 30s"     - every 30 seconds
func (s *Scheduler) AddJob(schedule string, job Job) error {
	id, err := s.cron.AddFunc(schedule, func() {
		_ = s.execute(job)
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.jobs = append(s.jobs, registration{id: id, schedule: schedule, job: job})
	s.mu.Unlock()

	s.log.Info().Str("schedule", schedule).Str("job", job.Name()).Msg("Job registered")
	return nil
}

// RunNow executes a job immediately (outside schedule)
func (s *Scheduler) RunNow(job Job) error {
	s.log.Info().Str("job", job.Name()).Msg("Running job immediately")
	return s.execute(job)
}

// RunByName executes the registered job called name; ErrNotFound when unknown
func (s *Scheduler) RunByName(name string) error {
	s.mu.RLock()
	var job Job
	for _, reg := range s.jobs {
		if reg.job.Name() == name {
			job = reg.job
			break
		}
	}
	s.mu.RUnlock()

	if job == nil {
		return fmt.Errorf("job %s: %w", name, domain.ErrNotFound)
	}
	return s.RunNow(job)
}

func (s *Scheduler) execute(job Job) error {
	start := time.Now()
	err := job.Run()

	if rec, ok := job.(runRecorder); ok {
		rec.RecordRun(time.Now(), err)
	}

	if err != nil {
		s.log.Error().Err(err).Str("job", job.Name()).Dur("duration", time.Since(start)).Msg("Job failed")
		return err
	}

	s.log.Debug().Str("job", job.Name()).Dur("duration", time.Since(start)).Msg("Job completed")
	return nil
}

// Status lists registered jobs sorted by name
func (s *Scheduler) Status() []JobStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]JobStatus, 0, len(s.jobs))
	for _, reg := range s.jobs {
		st := JobStatus{
			Name:     reg.job.Name(),
			Schedule: reg.schedule,
			NextRun:  s.cron.Entry(reg.id).Next,
		}
		if rec, ok := reg.job.(runRecorder); ok {
			if at, err := rec.LastRun(); !at.IsZero() {
				st.LastRun = &at
				if err != nil {
					st.LastError = err.Error()
				}
			}
		}
		out = append(out, st)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
