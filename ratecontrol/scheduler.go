package ratecontrol

import (
	"sync"
	"time"
)

// Scheduler is the structured-concurrency replacement for ad hoc
// setTimeout-style one-shot callbacks (Design Notes §9). Each scheduled task
// is named so a later call can supersede or cancel it deterministically —
// grounded on warming/cron.go's Scheduler (map of named jobs guarded by a
// mutex), simplified here to one-shot delayed calls rather than recurring
// cron jobs, since the periodic side of C3 already owns a plain
// time.Ticker in controller.go.
type Scheduler struct {
	mu      sync.Mutex
	timers  map[string]*time.Timer
	stopped bool
}

// NewScheduler constructs an empty Scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{timers: make(map[string]*time.Timer)}
}

// ScheduleAfter runs task after d, unless cancelled first. A second call
// with the same name replaces the pending timer.
func (s *Scheduler) ScheduleAfter(name string, d time.Duration, task func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if existing, ok := s.timers[name]; ok {
		existing.Stop()
	}
	s.timers[name] = time.AfterFunc(d, func() {
		s.mu.Lock()
		delete(s.timers, name)
		s.mu.Unlock()
		task()
	})
}

// Cancel stops a pending scheduled task by name, if any.
func (s *Scheduler) Cancel(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[name]; ok {
		t.Stop()
		delete(s.timers, name)
	}
}

// Stop cancels every pending scheduled task and rejects further scheduling.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, t := range s.timers {
		t.Stop()
		delete(s.timers, name)
	}
	s.stopped = true
}
