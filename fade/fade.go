// Package fade animates LED channels with a bounded random walk.
//
// Duty is inverted on this hardware: Max is dark and Min is full brightness.
package fade

import (
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"gregoryjjb/glowchain/channel"
	"gregoryjjb/glowchain/clock"
	"gregoryjjb/glowchain/gpio"
)

// flog derives from log.Logger on every call so it follows InitializeLogger.
func flog() *zerolog.Logger {
	l := log.With().Str("component", "fade").Logger()
	return &l
}

const (
	Min    = 127
	Max    = 255
	MinMod = 1
	MaxMod = 20

	// Off is the duty that turns a channel off
	Off = Max

	Tick = 30 * time.Millisecond

	// MaxTicks bounds single and two channel fades, AllTicks is the fixed
	// length of an all channel fade.
	MaxTicks = 80
	AllTicks = 60
)

type Kind string

const (
	KindNone   Kind = "none"
	KindSingle Kind = "single"
	KindTwo    Kind = "two"
	KindAll    Kind = "all"
)

// Event describes one finished animation.
type Event struct {
	Kind     Kind          `json:"kind"`
	Channels []string      `json:"channels"`
	Ticks    int           `json:"ticks"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
}

type PinSource interface {
	PWM(pin int) gpio.PWM
}

// Engine runs fades over the active channel set. Single and Two take their
// channels from the caller, which may name a masked out channel, but with an
// empty active set every fade is a KindNone no-op.
type Engine struct {
	pins     PinSource
	pwms     map[int]gpio.PWM
	active   []channel.Channel
	distinct int
	rng      *rand.Rand
	clock    clock.Clock
}

func New(pins PinSource, active []channel.Channel, rng *rand.Rand, c clock.Clock) *Engine {
	e := &Engine{
		pins:   pins,
		pwms:   make(map[int]gpio.PWM),
		active: active,
		rng:    rng,
		clock:  c,
	}

	seen := make(map[int]bool)
	for _, ch := range active {
		e.pwm(ch)
		if !seen[ch.Pin] {
			seen[ch.Pin] = true
			e.distinct++
		}
	}

	return e
}

func (e *Engine) Active() []channel.Channel {
	return e.active
}

func (e *Engine) pwm(c channel.Channel) gpio.PWM {
	p, ok := e.pwms[c.Pin]
	if !ok {
		p = e.pins.PWM(c.Pin)
		e.pwms[c.Pin] = p
	}
	return p
}

func magnitude(rng *rand.Rand) int {
	return MinMod + rng.IntN(MaxMod-MinMod+1)
}

func randomDuty(rng *rand.Rand) int {
	return Min + rng.IntN(Max-Min+1)
}

// Step moves duty by modifier. Near either bound the modifier is redrawn
// pointing away from it, so duty turns around before it can leave [Min, Max].
func Step(rng *rand.Rand, duty, modifier int) (int, int) {
	if duty >= Max-MaxMod {
		modifier = -magnitude(rng)
	} else if duty <= Min+MaxMod {
		modifier = magnitude(rng)
	}
	return duty + modifier, modifier
}

func (e *Engine) write(c channel.Channel, duty int) {
	e.pwm(c).SetDuty(uint8(duty))
}

// Off turns every active channel off.
func (e *Engine) Off() {
	for _, c := range e.active {
		e.write(c, Off)
	}
}

func (e *Engine) begin(kind Kind, chs ...channel.Channel) Event {
	return Event{
		Kind:     kind,
		Channels: channel.Names(chs),
		Started:  e.clock.Now(),
	}
}

func (e *Engine) finish(ev Event) Event {
	ev.Duration = clock.Since(e.clock, ev.Started)
	flog().Debug().
		Str("kind", string(ev.Kind)).
		Strs("channels", ev.Channels).
		Int("ticks", ev.Ticks).
		Dur("duration", ev.Duration).
		Msg("Fade finished")
	return ev
}

// Single flashes c at full brightness and lets it breathe out. It runs until
// the duty passes Max-MaxMod or MaxTicks have gone by.
func (e *Engine) Single(c channel.Channel) Event {
	if len(e.active) == 0 {
		return e.begin(KindNone)
	}

	ev := e.begin(KindSingle, c)

	duty := Min
	mod := magnitude(e.rng)

	for ev.Ticks < MaxTicks && duty <= Max-MaxMod {
		duty, mod = Step(e.rng, duty, mod)
		e.write(c, duty)
		e.clock.Sleep(Tick)
		ev.Ticks++
	}

	e.write(c, Off)
	e.Off()
	return e.finish(ev)
}

// Two mixes a and b. Only a's duty decides when the fade ends; b keeps
// walking regardless. The same channel twice is a Single fade.
func (e *Engine) Two(a, b channel.Channel) Event {
	if len(e.active) == 0 {
		return e.begin(KindNone)
	}
	if a.Pin == b.Pin {
		return e.Single(a)
	}

	ev := e.begin(KindTwo, a, b)

	dutyA := Min
	dutyB := randomDuty(e.rng)
	modA := magnitude(e.rng)
	modB := magnitude(e.rng)

	for ev.Ticks < MaxTicks && dutyA <= Max-MaxMod {
		dutyA, modA = Step(e.rng, dutyA, modA)
		dutyB, modB = Step(e.rng, dutyB, modB)

		e.write(a, dutyA)
		e.write(b, dutyB)
		e.clock.Sleep(Tick)
		ev.Ticks++
	}

	e.write(a, Off)
	e.write(b, Off)
	e.Off()
	return e.finish(ev)
}

// All walks every active channel from its own random start for AllTicks.
func (e *Engine) All() Event {
	if len(e.active) == 0 {
		return e.begin(KindNone)
	}

	ev := e.begin(KindAll, e.active...)

	duties := make([]int, len(e.active))
	mods := make([]int, len(e.active))
	for i := range e.active {
		duties[i] = randomDuty(e.rng)
		mods[i] = magnitude(e.rng)
	}

	for ; ev.Ticks < AllTicks; ev.Ticks++ {
		for i, c := range e.active {
			duties[i], mods[i] = Step(e.rng, duties[i], mods[i])
			e.write(c, duties[i])
		}
		e.clock.Sleep(Tick)
	}

	e.Off()
	return e.finish(ev)
}

// Random picks an animation: three in ten are All, one in ten is Two when
// there is more than one channel, the rest are Single on a random channel.
func (e *Engine) Random() Event {
	n := len(e.active)
	if n == 0 {
		return e.begin(KindNone)
	}

	r := e.rng.IntN(10)
	switch {
	case r >= 5 && r <= 7:
		return e.All()

	case r > 8 && e.distinct > 1:
		a := e.active[e.rng.IntN(n)]
		b := e.active[e.rng.IntN(n)]
		for a.Pin == b.Pin {
			b = e.active[e.rng.IntN(n)]
		}
		return e.Two(a, b)

	default:
		return e.Single(e.active[e.rng.IntN(n)])
	}
}
