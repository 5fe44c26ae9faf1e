// Package scheduler provides the timing cadences for the twintuition engine.
//
// It wraps a cron runner so the batch sweep can fire on a fixed wall-clock
// interval, with panic recovery around every job.
package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultSweepInterval is the default cadence of the batch correlation sweep.
const DefaultSweepInterval = 30 * time.Second

// Scheduler provides cron-based job scheduling.
type Scheduler struct {
	cron *cron.Cron
}

// NewScheduler creates and starts a cron scheduler. The parser accepts both
// standard 5-field expressions and @every descriptors, and jobs run inside a
// recovery chain.
func NewScheduler() *Scheduler {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	c := cron.New(cron.WithParser(parser), cron.WithChain(cron.Recover(cron.DefaultLogger)))
	c.Start()
	return &Scheduler{cron: c}
}

// AddJob schedules a task using the provided cron expression.
// It returns an error if the expression is invalid.
func (s *Scheduler) AddJob(expr string, task func()) error {
	_, err := s.cron.AddFunc(expr, task)
	return err
}

// AddEvery schedules a task on a fixed interval. Non-positive intervals fall
// back to the default sweep interval.
func (s *Scheduler) AddEvery(interval time.Duration, task func()) error {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return s.AddJob(fmt.Sprintf("@every %s", interval), task)
}

// Stop stops the cron scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
