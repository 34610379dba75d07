// Package tasklet provides one-shot delayed callbacks driven by a
// cooperative event loop.
//
// Tasklets are registered once and then armed, re-armed and cancelled for the
// lifetime of the process. Nothing runs on its own: the loop calls Process,
// which runs every tasklet whose deadline has passed. Time is injected so the
// scheduler is deterministic under test.
//
// A Scheduler is not safe for concurrent use; it belongs to the loop goroutine.
package tasklet

import (
	"sort"
	"time"
)

// Func is the callback run when a tasklet expires. now is the time at which
// the scheduler processed it.
type Func func(now time.Time)

// Tasklet is a named, re-armable one-shot timer.
type Tasklet struct {
	name     string
	fn       Func
	deadline time.Time
	queued   bool
	seq      uint64 // tie-break for equal deadlines, in scheduling order
}

// Name returns the name given at registration.
func (t *Tasklet) Name() string {
	return t.name
}

// Scheduler owns a fixed set of tasklets.
type Scheduler struct {
	now   func() time.Time
	tasks []*Tasklet
	seq   uint64
}

// NewScheduler creates a scheduler reading time from now.
func NewScheduler(now func() time.Time) *Scheduler {
	return &Scheduler{now: now}
}

// Init registers a new, unarmed tasklet.
func (s *Scheduler) Init(name string, fn Func) *Tasklet {
	t := &Tasklet{name: name, fn: fn}
	s.tasks = append(s.tasks, t)
	return t
}

// ScheduleDelta arms t to fire delay from now. An already armed tasklet is
// moved to the new deadline. A zero delay fires on the next Process.
func (s *Scheduler) ScheduleDelta(t *Tasklet, delay time.Duration) {
	if delay < 0 {
		delay = 0
	}
	s.seq++
	t.deadline = s.now().Add(delay)
	t.queued = true
	t.seq = s.seq
}

// Cancel disarms t. Cancelling an unarmed tasklet is a no-op.
func (s *Scheduler) Cancel(t *Tasklet) {
	t.queued = false
}

// IsQueued reports whether t is armed.
func (s *Scheduler) IsQueued(t *Tasklet) bool {
	return t.queued
}

// TimeToNext returns the time until the earliest armed deadline, or false if
// nothing is armed. Overdue tasklets report zero.
func (s *Scheduler) TimeToNext() (time.Duration, bool) {
	var next *Tasklet
	for _, t := range s.tasks {
		if !t.queued {
			continue
		}
		if next == nil || t.deadline.Before(next.deadline) {
			next = t
		}
	}
	if next == nil {
		return 0, false
	}
	d := next.deadline.Sub(s.now())
	if d < 0 {
		d = 0
	}
	return d, true
}

// Process runs every tasklet that was due when Process was called, earliest
// deadline first, and returns how many ran. A tasklet re-armed by its own
// callback runs again on a later call, never within the same one.
func (s *Scheduler) Process() int {
	now := s.now()

	var due []*Tasklet
	for _, t := range s.tasks {
		if t.queued && !t.deadline.After(now) {
			due = append(due, t)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].deadline.Equal(due[j].deadline) {
			return due[i].seq < due[j].seq
		}
		return due[i].deadline.Before(due[j].deadline)
	})

	ran := 0
	for _, t := range due {
		// An earlier callback may have cancelled or re-armed this one.
		if !t.queued || t.deadline.After(now) {
			continue
		}
		t.queued = false
		t.fn(now)
		ran++
	}
	return ran
}
