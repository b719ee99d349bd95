// Package relay passes a trigger on to the next device in a chain.
package relay

import (
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"gregoryjjb/glowchain/clock"
	"gregoryjjb/glowchain/gpio"
)

func rlog() *zerolog.Logger {
	l := log.With().Str("component", "relay").Logger()
	return &l
}

const (
	// Hold is how long the line is pulled low. It comfortably exceeds the
	// receiving device's debounce window.
	Hold = 20 * time.Millisecond

	// BootSettle gives the rest of the chain time to finish its self-test
	// before the first device fires.
	BootSettle = 600 * time.Millisecond
)

// Relay drives an idle-high output line.
type Relay struct {
	out    gpio.Output
	clock  clock.Clock
	pulses atomic.Int64
}

func New(out gpio.Output, c clock.Clock) *Relay {
	return &Relay{out: out, clock: c}
}

// Idle drives the line to its resting high level.
func (r *Relay) Idle() {
	r.out.High()
}

// Pulse pulls the line low for Hold and always leaves it high.
func (r *Relay) Pulse() {
	r.out.Low()
	r.clock.Sleep(Hold)
	r.out.High()

	n := r.pulses.Add(1)
	rlog().Debug().Int64("pulses", n).Msg("Relayed pulse")
}

// Kickoff starts the chain: it waits BootSettle then pulses once.
func (r *Relay) Kickoff() {
	rlog().Info().Str("settle", BootSettle.String()).Msg("Starting chain")
	r.clock.Sleep(BootSettle)
	r.Pulse()
}

func (r *Relay) Pulses() int64 {
	return r.pulses.Load()
}
