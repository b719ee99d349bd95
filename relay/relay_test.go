package relay_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"gregoryjjb/glowchain/clock"
	"gregoryjjb/glowchain/gpio"
	"gregoryjjb/glowchain/input"
	"gregoryjjb/glowchain/relay"
)

var start = time.Unix(0, 0)

func TestPulse(t *testing.T) {
	tests := []struct {
		name  string
		prior func(o gpio.Output)
	}{
		{name: "from idle", prior: func(o gpio.Output) { o.High() }},
		{name: "from low", prior: func(o gpio.Output) { o.Low() }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vc := clock.NewVirtual(start)
			sim := gpio.NewSim(vc, nil)
			out := sim.SimOutput(24)
			tt.prior(out)

			r := relay.New(out, vc)
			r.Pulse()

			got := out.Transitions()[1:]
			assert.Equal(t, []gpio.Transition{
				{At: start, High: false},
				{At: start.Add(relay.Hold), High: true},
			}, got)
			assert.True(t, out.IsHigh())
			assert.Equal(t, int64(1), r.Pulses())
		})
	}
}

func TestKickoff(t *testing.T) {
	vc := clock.NewVirtual(start)
	sim := gpio.NewSim(vc, nil)
	out := sim.SimOutput(24)

	r := relay.New(out, vc)
	r.Idle()
	r.Kickoff()

	assert.Equal(t, []gpio.Transition{
		{At: start, High: true},
		{At: start.Add(600 * time.Millisecond), High: false},
		{At: start.Add(620 * time.Millisecond), High: true},
	}, out.Transitions())
}

// A relay pulse is long enough for the next device's monitor to accept.
func TestPulseTriggersNextDevice(t *testing.T) {
	vc := clock.NewVirtual(start)
	sim := gpio.NewSim(vc, nil)
	next := sim.SimInput(23)
	monitor := input.New(next, vc)

	r := relay.New(wire{in: next}, vc)

	triggered := false
	vc.AfterFunc(time.Millisecond, func() {
		triggered = monitor.Poll()
	})
	r.Pulse()

	assert.True(t, triggered)
	assert.True(t, next.Read())
}

// wire connects an output straight to another device's input.
type wire struct {
	in *gpio.SimInput
}

func (w wire) High() {}

func (w wire) Low() {
	w.in.HoldLow(relay.Hold)
}
