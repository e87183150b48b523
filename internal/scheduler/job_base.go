package scheduler

import "github.com/aristath/finfolio/internal/scheduler/base"

// JobBase re-exports base.JobBase so jobs outside this package avoid an import cycle
type JobBase = base.JobBase
