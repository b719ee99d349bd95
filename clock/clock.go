package clock

import (
	"sort"
	"sync"
	"time"
)

// Clock is the monotonic time source and blocking delay used by everything
// that animates or samples pins.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

// Real is the wall clock.
type Real struct{}

func (Real) Now() time.Time        { return time.Now() }
func (Real) Sleep(d time.Duration) { time.Sleep(d) }

type timer struct {
	at time.Time
	fn func()
}

// Virtual is a manually driven clock. Sleep returns immediately after moving
// time forward, running any callbacks scheduled inside the slept interval in
// deadline order.
type Virtual struct {
	mu     sync.Mutex
	now    time.Time
	timers []timer
}

func NewVirtual(start time.Time) *Virtual {
	return &Virtual{now: start}
}

func (v *Virtual) Now() time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()

	return v.now
}

func (v *Virtual) Sleep(d time.Duration) {
	if d < 0 {
		d = 0
	}

	v.mu.Lock()
	target := v.now.Add(d)
	v.mu.Unlock()

	for {
		v.mu.Lock()
		if len(v.timers) == 0 || v.timers[0].at.After(target) {
			v.now = target
			v.mu.Unlock()
			return
		}
		t := v.timers[0]
		v.timers = v.timers[1:]
		if t.at.After(v.now) {
			v.now = t.at
		}
		v.mu.Unlock()

		// Callbacks may schedule more work, so never run them under the lock
		t.fn()
	}
}

// Advance is Sleep under a name that reads better from a test driving the clock.
func (v *Virtual) Advance(d time.Duration) {
	v.Sleep(d)
}

// AfterFunc schedules fn to run once the clock has been moved d past now.
func (v *Virtual) AfterFunc(d time.Duration, fn func()) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.timers = append(v.timers, timer{at: v.now.Add(d), fn: fn})
	sort.SliceStable(v.timers, func(i, j int) bool {
		return v.timers[i].at.Before(v.timers[j].at)
	})
}

// Since is time.Since for an arbitrary clock.
func Since(c Clock, t time.Time) time.Duration {
	return c.Now().Sub(t)
}
