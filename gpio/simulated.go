package gpio

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"gregoryjjb/glowchain/circularbuffer"
	"gregoryjjb/glowchain/clock"
)

func glog() *zerolog.Logger {
	l := log.With().Str("component", "gpio").Logger()
	return &l
}

// historySize is enough to hold every write of the longest fade.
const historySize = 256

// Sim is an in-memory board. Pins are created on first use and keep enough
// history for tests to inspect what was driven onto them.
type Sim struct {
	clock clock.Clock
	noise func() uint16

	mu      sync.Mutex
	pwms    map[int]*SimPWM
	inputs  map[int]*SimInput
	outputs map[int]*SimOutput
}

// NewSim returns a simulated board. A nil noise function samples a
// time-seeded generator, like a floating pin would.
func NewSim(c clock.Clock, noise func() uint16) *Sim {
	if noise == nil {
		rng := rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))
		noise = func() uint16 { return uint16(rng.IntN(1024)) }
	}

	glog().Debug().Msg("GPIO will be simulated")

	return &Sim{
		clock:   c,
		noise:   noise,
		pwms:    make(map[int]*SimPWM),
		inputs:  make(map[int]*SimInput),
		outputs: make(map[int]*SimOutput),
	}
}

func (s *Sim) PWM(pin int) PWM { return s.SimPWM(pin) }

func (s *Sim) SimPWM(pin int) *SimPWM {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pwms[pin]
	if !ok {
		p = &SimPWM{pin: pin, history: circularbuffer.New[uint8](historySize)}
		s.pwms[pin] = p
	}
	return p
}

func (s *Sim) Input(pin int) Input { return s.SimInput(pin) }

func (s *Sim) SimInput(pin int) *SimInput {
	s.mu.Lock()
	defer s.mu.Unlock()

	in, ok := s.inputs[pin]
	if !ok {
		in = &SimInput{pin: pin, clock: s.clock}
		s.inputs[pin] = in
	}
	return in
}

func (s *Sim) Output(pin int) Output { return s.SimOutput(pin) }

func (s *Sim) SimOutput(pin int) *SimOutput {
	s.mu.Lock()
	defer s.mu.Unlock()

	out, ok := s.outputs[pin]
	if !ok {
		out = &SimOutput{pin: pin, clock: s.clock}
		s.outputs[pin] = out
	}
	return out
}

func (s *Sim) Analog(pin int) Analog {
	return simAnalog(s.noise)
}

func (s *Sim) HoldLow(pin int, d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("hold duration must be positive, got %s", d)
	}
	s.SimInput(pin).HoldLow(d)
	return nil
}

func (s *Sim) Close() error {
	glog().Debug().Msg("Simulated GPIO closing")
	return nil
}

type simAnalog func() uint16

func (a simAnalog) Sample() uint16 { return a() }

// SimPWM records the duty written to one pin.
type SimPWM struct {
	pin int

	mu      sync.Mutex
	duty    uint8
	writes  int
	history *circularbuffer.CircularBuffer[uint8]
}

func (p *SimPWM) SetDuty(duty uint8) {
	p.mu.Lock()
	p.duty = duty
	p.writes++
	p.mu.Unlock()

	p.history.Push(duty)
	glog().Trace().Int("pin", p.pin).Uint8("duty", duty).Msg("PWM")
}

func (p *SimPWM) Duty() uint8 {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.duty
}

func (p *SimPWM) Writes() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.writes
}

// History returns up to the last 256 duties written, oldest first.
func (p *SimPWM) History() []uint8 {
	return p.history.Snapshot()
}

type window struct {
	from, to time.Time
}

// SimInput is pulled up: it reads high except inside scheduled low windows.
type SimInput struct {
	pin   int
	clock clock.Clock

	mu   sync.Mutex
	lows []window
}

func (in *SimInput) Read() bool {
	now := in.clock.Now()

	in.mu.Lock()
	defer in.mu.Unlock()

	// Drop windows that are over
	kept := in.lows[:0]
	for _, w := range in.lows {
		if w.to.After(now) {
			kept = append(kept, w)
		}
	}
	in.lows = kept

	for _, w := range in.lows {
		if !now.Before(w.from) && now.Before(w.to) {
			return false
		}
	}
	return true
}

// HoldLow pulls the line low from now for d.
func (in *SimInput) HoldLow(d time.Duration) {
	in.HoldLowAt(in.clock.Now(), d)
}

// HoldLowAt pulls the line low during [from, from+d).
func (in *SimInput) HoldLowAt(from time.Time, d time.Duration) {
	in.mu.Lock()
	defer in.mu.Unlock()

	in.lows = append(in.lows, window{from: from, to: from.Add(d)})
	glog().Debug().Int("pin", in.pin).Str("hold", d.String()).Msg("Input held low")
}

type Transition struct {
	At   time.Time
	High bool
}

// SimOutput starts low and records every level it is driven to.
type SimOutput struct {
	pin   int
	clock clock.Clock

	mu          sync.Mutex
	high        bool
	transitions []Transition
}

func (o *SimOutput) High() { o.set(true) }
func (o *SimOutput) Low()  { o.set(false) }

func (o *SimOutput) set(high bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.high = high
	o.transitions = append(o.transitions, Transition{At: o.clock.Now(), High: high})

	state := "low"
	if high {
		state = "high"
	}
	glog().Trace().Int("pin", o.pin).Str("state", state).Msg("Output")
}

func (o *SimOutput) IsHigh() bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.high
}

func (o *SimOutput) Transitions() []Transition {
	o.mu.Lock()
	defer o.mu.Unlock()

	return append([]Transition(nil), o.transitions...)
}
