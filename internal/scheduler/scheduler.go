package scheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/ogero/allocine-weekly/internal/common"
	"github.com/robfig/cron/v3"
)

// DefaultSpec fires every Wednesday at 03:00:00, when Allocine publishes the week's releases.
const DefaultSpec = "0 0 3 * * WED"

// State is the scheduler state.
type State int

const (
	// Idle means no timer is armed.
	Idle State = iota
	// Scheduled means exactly one timer is armed.
	Scheduled
	// Firing means the timer elapsed and the refresh it triggered has not re-armed it yet.
	Firing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Scheduled:
		return "scheduled"
	case Firing:
		return "firing"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Handle is an armed one-shot timer.
type Handle interface {
	// Stop cancels the timer, reporting whether it was still pending.
	Stop() bool
}

// Timer arms one-shot timers.
type Timer interface {
	AfterFunc(d time.Duration, f func()) Handle
}

type realTimer struct{}

func (realTimer) AfterFunc(d time.Duration, f func()) Handle {
	return time.AfterFunc(d, f)
}

// RealTimer arms timers with time.AfterFunc.
var RealTimer Timer = realTimer{}

var parser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseSchedule parses a six field (seconds first) cron spec such as DefaultSpec.
func ParseSchedule(spec string) (cron.Schedule, error) {
	schedule, err := parser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("failed to cron.Parser.Parse: %w", err)
	}

	return schedule, nil
}

// NextOccurrence returns the first slot of schedule strictly after now that does not fall on now's
// calendar day: when today is the scheduled weekday the run happens a week later.
func NextOccurrence(schedule cron.Schedule, now time.Time) time.Time {
	next := schedule.Next(now)
	if next.IsZero() {
		return now.AddDate(0, 0, 7)
	}

	if sameDay(next, now) {
		y, m, d := now.Date()
		tomorrow := time.Date(y, m, d+1, 0, 0, 0, 0, now.Location())
		next = schedule.Next(tomorrow.Add(-time.Second))
		if next.IsZero() {
			return now.AddDate(0, 0, 7)
		}
	}

	for !next.After(now) {
		next = next.AddDate(0, 0, 7)
	}

	return next
}

func sameDay(a, b time.Time) bool {
	a = a.In(b.Location())
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// Scheduler owns a single weekly one-shot timer.
type Scheduler struct {
	schedule cron.Schedule
	timer    Timer
	clock    func() time.Time

	mu     sync.Mutex
	handle Handle
	gen    uint64
	state  State
	next   time.Time
	closed bool
}

// New creates an Idle scheduler. timer and clock default to RealTimer and time.Now.
func New(schedule cron.Schedule, timer Timer, clock func() time.Time) *Scheduler {
	if timer == nil {
		timer = RealTimer
	}
	if clock == nil {
		clock = time.Now
	}

	return &Scheduler{
		schedule: schedule,
		timer:    timer,
		clock:    clock,
	}
}

// ScheduleNext cancels any armed timer and arms a new one for the next occurrence, calling onFire
// when it elapses. It returns the target time, or the zero time once the scheduler is shut down.
func (s *Scheduler) ScheduleNext(onFire func()) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return time.Time{}
	}

	s.cancelLocked()

	now := s.clock()
	target := NextOccurrence(s.schedule, now)
	delay := target.Sub(now)

	gen := s.gen
	s.handle = s.timer.AfterFunc(delay, func() {
		s.fire(gen, onFire)
	})
	s.state = Scheduled
	s.next = target

	common.Log.Info("Scheduling next update",
		"at", target.Format("2006-01-02 15:04"),
		"in_hours", fmt.Sprintf("%.1f", delay.Hours()))

	return target
}

func (s *Scheduler) fire(gen uint64, onFire func()) {
	s.mu.Lock()
	if s.closed || gen != s.gen || s.state != Scheduled {
		s.mu.Unlock()
		return
	}
	s.handle = nil
	s.state = Firing
	s.next = time.Time{}
	s.mu.Unlock()

	common.Log.Info("Scheduled update fired")
	onFire()
}

// Shutdown cancels the armed timer, if any. Further calls and later ScheduleNext calls are no-ops.
// A refresh already running is not affected.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true

	common.Log.Info("Shutting down scheduler and canceling scheduled updates")
	s.cancelLocked()
	s.state = Idle
}

// cancelLocked stops the armed timer and invalidates any fire already in flight.
func (s *Scheduler) cancelLocked() {
	if s.handle != nil {
		s.handle.Stop()
		s.handle = nil
	}
	s.gen++
	s.next = time.Time{}
}

// State returns the current state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Next returns the armed target, or the zero time when no timer is armed.
func (s *Scheduler) Next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}
