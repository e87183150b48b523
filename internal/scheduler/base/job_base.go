// Package base provides the embeddable run bookkeeping shared by scheduled jobs.
package base

import (
	"sync"
	"time"
)

// JobBase records the outcome of the most recent run.
// Jobs embed it; the scheduler calls RecordRun after every execution.
type JobBase struct {
	mu      sync.RWMutex
	lastRun time.Time
	lastErr error
	runs    int64
}

// RecordRun stores the completion time and error of a run
func (j *JobBase) RecordRun(at time.Time, err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.lastRun = at
	j.lastErr = err
	j.runs++
}

// LastRun returns when the job last completed and its error (zero time if never run)
func (j *JobBase) LastRun() (time.Time, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.lastRun, j.lastErr
}

// Runs returns the number of completed runs
func (j *JobBase) Runs() int64 {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.runs
}
