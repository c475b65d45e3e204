// Package scheduler runs the periodic background conflict scan.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"eventcal/internal/calendar"
	"eventcal/internal/conflict"
	appLog "eventcal/internal/log"
	"eventcal/internal/model"
)

// Scanner is the part of calendar.Service the scan needs.
type Scanner interface {
	Conflicts(q calendar.Query) []model.ConflictGroup
}

// Report summarizes one scan.
type Report struct {
	RanAt  time.Time `json:"ranAt"`
	Groups int       `json:"groups"`
	Events int       `json:"events"`
	Dates  []string  `json:"dates"`
}

// Scheduler triggers conflict scans on a cron schedule.
type Scheduler struct {
	cron *cron.Cron
	scan Scanner
	now  func() time.Time

	mu   sync.RWMutex
	last *Report
}

// New registers the scan under schedule, a standard five-field cron expression
// or descriptor such as "@hourly".
func New(schedule string, scan Scanner) (*Scheduler, error) {
	logger := cronLogger{}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		scan: scan,
		now:  time.Now,
	}
	if _, err := s.cron.AddFunc(schedule, func() { s.RunOnce() }); err != nil {
		return nil, fmt.Errorf("scheduler: invalid schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Start runs the schedule until ctx is cancelled, then waits for a running
// scan to finish.
func (s *Scheduler) Start(ctx context.Context) {
	s.cron.Start()
	appLog.Info("conflict scan scheduled", "entries", len(s.cron.Entries()))

	go func() {
		<-ctx.Done()
		<-s.cron.Stop().Done()
		appLog.Info("conflict scan stopped")
	}()
}

// RunOnce scans the full calendar immediately and records the report.
func (s *Scheduler) RunOnce() Report {
	groups := s.scan.Conflicts(calendar.Query{})

	rep := Report{
		RanAt:  s.now(),
		Groups: len(groups),
		Events: conflict.Count(groups),
		Dates:  make([]string, 0, len(groups)),
	}
	for _, g := range groups {
		rep.Dates = append(rep.Dates, g.Date)
	}

	s.mu.Lock()
	s.last = &rep
	s.mu.Unlock()

	if rep.Groups > 0 {
		appLog.Info("conflict scan found overlaps", "groups", rep.Groups, "events", rep.Events, "first_date", rep.Dates[0])
	} else {
		appLog.Debug("conflict scan clean")
	}
	return rep
}

// Last returns the most recent report, if any scan has run.
func (s *Scheduler) Last() (Report, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return Report{}, false
	}
	return *s.last, true
}

// cronLogger routes cron's own messages into the process log.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	appLog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	appLog.Error("cron: "+msg, err, keysAndValues...)
}
