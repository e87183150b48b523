package scheduler

import (
	"github.com/rs/zerolog"
)

// CounterResetter is implemented by upstream clients that keep a daily request budget
type CounterResetter interface {
	ResetDailyCounter()
}

// BudgetResetJob clears the upstream daily request counter at the start of each day
type BudgetResetJob struct {
	JobBase
	client CounterResetter
	log    zerolog.Logger
}

// NewBudgetResetJob creates a budget reset job
func NewBudgetResetJob(client CounterResetter, log zerolog.Logger) *BudgetResetJob {
	return &BudgetResetJob{
		client: client,
		log:    log.With().Str("job", "upstream_budget_reset").Logger(),
	}
}

// Run executes the job
func (j *BudgetResetJob) Run() error {
	j.client.ResetDailyCounter()
	j.log.Debug().Msg("Upstream request budget reset")
	return nil
}

// Name returns the job name for scheduler
func (j *BudgetResetJob) Name() string {
	return "upstream_budget_reset"
}
