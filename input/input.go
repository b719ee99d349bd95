// Package input watches the chain trigger line.
package input

import (
	"time"

	"gregoryjjb/glowchain/clock"
	"gregoryjjb/glowchain/gpio"
)

const (
	// Window is how long the line must stay low to count as a trigger
	Window = 5 * time.Millisecond
	sample = time.Millisecond
)

// Monitor reports debounced triggers on an active-low, pulled-up line.
type Monitor struct {
	in    gpio.Input
	clock clock.Clock
}

func New(in gpio.Input, c clock.Clock) *Monitor {
	return &Monitor{in: in, clock: c}
}

// Poll returns true when the line is low now and is still low at each of
// the following millisecond samples across Window. It returns false at once
// when the line is idle, and as soon as a glitch lets it go high again.
func (m *Monitor) Poll() bool {
	if m.in.Read() {
		return false
	}

	for i := time.Duration(0); i < Window; i += sample {
		if m.in.Read() {
			return false
		}
		m.clock.Sleep(sample)
	}

	return true
}
