package scheduler_test

import (
	"testing"
	"time"

	"github.com/ogero/allocine-weekly/internal/scheduler"
	"github.com/ogero/allocine-weekly/internal/scheduler/schedulertest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(day, hour, minute, second int) time.Time {
	// October 2026: the 19th is a Monday, the 21st a Wednesday.
	return time.Date(2026, time.October, day, hour, minute, second, 0, time.UTC)
}

func TestNextOccurrence(t *testing.T) {
	schedule, err := scheduler.ParseSchedule(scheduler.DefaultSpec)
	require.NoError(t, err)

	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{"monday", date(19, 10, 0, 0), date(21, 3, 0, 0)},
		{"tuesday before midnight", date(20, 23, 59, 59), date(21, 3, 0, 0)},
		{"wednesday before slot", date(21, 1, 0, 0), date(28, 3, 0, 0)},
		{"wednesday at slot", date(21, 3, 0, 0), date(28, 3, 0, 0)},
		{"wednesday after slot", date(21, 5, 30, 0), date(28, 3, 0, 0)},
		{"thursday", date(22, 0, 0, 0), date(28, 3, 0, 0)},
		{"sunday", date(25, 12, 0, 0), date(28, 3, 0, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, scheduler.NextOccurrence(schedule, tt.now))
		})
	}
}

func TestNextOccurrence_AlwaysInTheFutureOnAnotherDay(t *testing.T) {
	schedule, err := scheduler.ParseSchedule(scheduler.DefaultSpec)
	require.NoError(t, err)

	start := date(19, 0, 0, 0)
	for now := start; now.Before(start.AddDate(0, 0, 14)); now = now.Add(17*time.Minute + 3*time.Second) {
		next := scheduler.NextOccurrence(schedule, now)

		require.True(t, next.After(now), "now=%s next=%s", now, next)
		assert.Equal(t, time.Wednesday, next.Weekday())
		assert.NotEqual(t, now.YearDay(), next.YearDay(), "now=%s next=%s", now, next)
		assert.LessOrEqual(t, next.Sub(now), 7*24*time.Hour+3*time.Hour)
	}
}

func TestParseSchedule(t *testing.T) {
	_, err := scheduler.ParseSchedule("0 0 3 * * WED")
	assert.NoError(t, err)

	_, err = scheduler.ParseSchedule("not a schedule")
	assert.Error(t, err)
}

func newScheduler(t *testing.T, now time.Time) (*scheduler.Scheduler, *schedulertest.Timer) {
	t.Helper()
	schedule, err := scheduler.ParseSchedule(scheduler.DefaultSpec)
	require.NoError(t, err)

	timer := &schedulertest.Timer{}
	return scheduler.New(schedule, timer, func() time.Time { return now }), timer
}

func TestScheduler_ScheduleNext(t *testing.T) {
	now := date(19, 10, 0, 0)
	s, timer := newScheduler(t, now)
	assert.Equal(t, scheduler.Idle, s.State())

	target := s.ScheduleNext(func() {})

	assert.Equal(t, date(21, 3, 0, 0), target)
	assert.Equal(t, target, s.Next())
	assert.Equal(t, scheduler.Scheduled, s.State())
	require.Len(t, timer.Pending(), 1)
	assert.Equal(t, target.Sub(now), timer.Last().Delay)
}

func TestScheduler_RearmCancelsPrevious(t *testing.T) {
	s, timer := newScheduler(t, date(19, 10, 0, 0))

	s.ScheduleNext(func() {})
	s.ScheduleNext(func() {})
	s.ScheduleNext(func() {})

	handles := timer.Handles()
	require.Len(t, handles, 3)
	assert.True(t, handles[0].Stopped())
	assert.True(t, handles[1].Stopped())
	assert.False(t, handles[2].Stopped())
	assert.Len(t, timer.Pending(), 1)
	assert.Equal(t, scheduler.Scheduled, s.State())
}

func TestScheduler_Fire(t *testing.T) {
	s, timer := newScheduler(t, date(19, 10, 0, 0))

	fired := 0
	s.ScheduleNext(func() { fired++ })
	timer.Last().Fire()

	assert.Equal(t, 1, fired)
	assert.Equal(t, scheduler.Firing, s.State())
	assert.True(t, s.Next().IsZero())

	// the refresh succeeded and re-armed
	s.ScheduleNext(func() { fired++ })
	assert.Equal(t, scheduler.Scheduled, s.State())
}

func TestScheduler_StaleFireIsIgnored(t *testing.T) {
	s, timer := newScheduler(t, date(19, 10, 0, 0))

	stale := 0
	s.ScheduleNext(func() { stale++ })
	first := timer.Last()
	s.ScheduleNext(func() {})

	first.Fire()

	assert.Zero(t, stale)
	assert.Equal(t, scheduler.Scheduled, s.State())
}

func TestScheduler_ShutdownTwice(t *testing.T) {
	s, timer := newScheduler(t, date(19, 10, 0, 0))

	fired := 0
	s.ScheduleNext(func() { fired++ })
	handle := timer.Last()

	s.Shutdown()
	s.Shutdown()

	assert.Equal(t, 1, handle.Stops())
	assert.Equal(t, scheduler.Idle, s.State())
	assert.True(t, s.Next().IsZero())

	handle.Fire()
	assert.Zero(t, fired)

	assert.True(t, s.ScheduleNext(func() {}).IsZero())
	assert.Len(t, timer.Handles(), 1)
}

func TestScheduler_ShutdownIdle(t *testing.T) {
	s, timer := newScheduler(t, date(19, 10, 0, 0))

	assert.NotPanics(t, s.Shutdown)
	assert.NotPanics(t, s.Shutdown)
	assert.Empty(t, timer.Handles())
	assert.Equal(t, scheduler.Idle, s.State())
}

func TestScheduler_RealTimer(t *testing.T) {
	schedule, err := scheduler.ParseSchedule("@every 1s")
	require.NoError(t, err)

	done := make(chan struct{})
	now := time.Now()
	s := scheduler.New(schedule, nil, func() time.Time { return now })
	target := s.ScheduleNext(func() { close(done) })
	assert.True(t, target.After(now))
	s.Shutdown()

	select {
	case <-done:
		t.Fatal("timer fired after shutdown")
	case <-time.After(10 * time.Millisecond):
	}
}
