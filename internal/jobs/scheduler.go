// Package jobs schedules the daily cycle: at local midnight the day's gains,
// session counts and limit latches reset. A persisted last-reset date guards
// against double fires, and an hourly drift check catches resets missed while
// the process was down or the host clock jumped.
package jobs

import (
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/lucrumlabs/lucrum/internal/models"
	"github.com/lucrumlabs/lucrum/internal/store"
	"github.com/lucrumlabs/lucrum/pkg/logger"
)

const dayFormat = "2006-01-02"

// CycleTarget is what the scheduler drives at each boundary.
type CycleTarget interface {
	DailyCycleReset()
}

type Scheduler struct {
	logger   *logger.Logger
	durable  models.KeyValueStore
	target   CycleTarget
	location *time.Location
	now      func() time.Time

	mu   sync.Mutex
	cron *cron.Cron
}

func NewScheduler(target CycleTarget, durable models.KeyValueStore, location *time.Location, log *logger.Logger) *Scheduler {
	return &Scheduler{
		logger:   log,
		durable:  durable,
		target:   target,
		location: location,
		now:      time.Now,
	}
}

// SetNow overrides the clock. Used by tests.
func (s *Scheduler) SetNow(now func() time.Time) { s.now = now }

// Start registers the midnight job and the hourly drift check, then runs one
// immediate check to cover a boundary crossed while the process was down.
func (s *Scheduler) Start() error {
	c := cron.New(cron.WithLocation(s.location))

	if _, err := c.AddFunc("0 0 * * *", s.RunIfDue); err != nil {
		return err
	}
	if _, err := c.AddFunc("5 * * * *", s.RunIfDue); err != nil {
		return err
	}

	s.mu.Lock()
	s.cron = c
	s.mu.Unlock()
	c.Start()

	s.RunIfDue()
	return nil
}

// Stop halts the cron runner and waits for a running job to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()
	if c != nil {
		<-c.Stop().Done()
	}
}

// RunIfDue performs the daily reset unless one already ran today. The guard is
// the persisted date string, so overlapping triggers (the midnight fire, the
// drift check, the startup check) collapse into a single reset per day.
func (s *Scheduler) RunIfDue() {
	s.mu.Lock()
	defer s.mu.Unlock()

	today := s.now().In(s.location).Format(dayFormat)
	if last, ok := s.durable.Get(store.KeyLastResetDate); ok && last == today {
		return
	}

	s.logger.Info("Daily cycle reset ", "date ", today)
	s.target.DailyCycleReset()
	s.durable.Set(store.KeyLastResetDate, today)
}
