// Package device wires the fade engine, trigger monitor and relay into the
// boot sequence and main loop of one wearable.
package device

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"gregoryjjb/glowchain/channel"
	"gregoryjjb/glowchain/circularbuffer"
	"gregoryjjb/glowchain/clock"
	"gregoryjjb/glowchain/fade"
	"gregoryjjb/glowchain/gpio"
	"gregoryjjb/glowchain/input"
	"gregoryjjb/glowchain/pubsub"
	"gregoryjjb/glowchain/relay"
	"gregoryjjb/glowchain/seed"
)

func dlog() *zerolog.Logger {
	l := log.With().Str("component", "device").Logger()
	return &l
}

const (
	SelfTestDwell = 200 * time.Millisecond

	historySize = 64
	eventBuffer = 16
)

type Phase string

const (
	PhaseNew        Phase = "new"
	PhaseInit       Phase = "init"
	PhaseSelfTest   Phase = "self-test"
	PhaseChainStart Phase = "chain-start"
	PhaseRun        Phase = "run"
	PhaseStopped    Phase = "stopped"
)

type Options struct {
	Mode   Mode
	Mask   channel.Mask
	Pinout gpio.Pinout

	// Single is the channel ModeFaderSingle breathes, masked or not.
	Single channel.Role

	// Seed fixes the random sequence instead of sampling the noise pin.
	Seed *uint32

	// PollInterval is slept between idle polls of the trigger line. Zero
	// polls flat out.
	PollInterval time.Duration

	Clock clock.Clock
}

type Status struct {
	Mode     Mode        `json:"mode"`
	Phase    Phase       `json:"phase"`
	Channels []string    `json:"channels"`
	Seed     uint32      `json:"seed"`
	Triggers int64       `json:"triggers"`
	Pulses   int64       `json:"pulses"`
	Fades    int64       `json:"fades"`
	Last     *fade.Event `json:"last,omitempty"`
}

type Device struct {
	board gpio.Board
	opts  Options
	clock clock.Clock

	active  []channel.Channel
	engine  *fade.Engine
	monitor *input.Monitor
	relay   *relay.Relay

	events  *pubsub.Pubsub[fade.Event]
	history *circularbuffer.CircularBuffer[fade.Event]

	statusMu sync.RWMutex
	status   Status
}

func New(board gpio.Board, opts Options) *Device {
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if !opts.Single.Valid() {
		dlog().Warn().Stringer("single", opts.Single).Msg("Unknown single channel, using red")
		opts.Single = channel.Red
	}

	return &Device{
		board:   board,
		opts:    opts,
		clock:   opts.Clock,
		events:  pubsub.New[fade.Event](eventBuffer),
		history: circularbuffer.New[fade.Event](historySize),
		status: Status{
			Mode:  opts.Mode,
			Phase: PhaseNew,
		},
	}
}

// Start runs every phase in order and returns once ctx is cancelled.
func (d *Device) Start(ctx context.Context) {
	d.Init()
	d.SelfTest()
	d.ChainStart()
	d.Run(ctx)
}

// Init seeds the generator, brings up the chain lines and turns every
// enabled channel off.
func (d *Device) Init() {
	d.setPhase(PhaseInit)

	var s uint32
	if d.opts.Seed != nil {
		s = *d.opts.Seed
	} else {
		s = seed.Generate(d.board.Analog(d.opts.Pinout.Noise), d.clock)
	}

	d.relay = relay.New(d.board.Output(d.opts.Pinout.Relay), d.clock)
	d.relay.Idle()
	d.monitor = input.New(d.board.Input(d.opts.Pinout.Trigger), d.clock)

	d.active = channel.Active(d.opts.Mask, channel.Declare(d.opts.Pinout))
	d.engine = fade.New(d.board, d.active, seed.Source(s), d.clock)
	d.engine.Off()

	d.statusMu.Lock()
	d.status.Seed = s
	d.status.Channels = channel.Names(d.active)
	d.statusMu.Unlock()

	if len(d.active) == 0 {
		dlog().Warn().Str("mask", d.opts.Mask.String()).Msg("No channels enabled, fades will do nothing")
	}

	dlog().Info().
		Str("mode", d.opts.Mode.String()).
		Str("mask", d.opts.Mask.String()).
		Strs("channels", channel.Names(d.active)).
		Uint32("seed", s).
		Msg("Initialized")
}

// SelfTest flashes each enabled channel in turn so wiring faults show.
func (d *Device) SelfTest() {
	d.setPhase(PhaseSelfTest)

	for _, c := range d.active {
		pwm := d.board.PWM(c.Pin)
		pwm.SetDuty(fade.Min)
		d.clock.Sleep(SelfTestDwell)
		pwm.SetDuty(fade.Off)
	}
}

// ChainStart fires the kickoff pulse when this device starts the chain.
func (d *Device) ChainStart() {
	if d.opts.Mode != ModeChainStarter {
		return
	}

	d.setPhase(PhaseChainStart)
	d.relay.Kickoff()
	d.recordPulse()
}

// Run is the main loop. A fade always runs to completion; cancellation is
// only noticed between iterations.
func (d *Device) Run(ctx context.Context) {
	if d.engine == nil {
		d.Init()
	}

	d.setPhase(PhaseRun)
	dlog().Info().Str("mode", d.opts.Mode.String()).Msg("Running")

	single := channel.Declare(d.opts.Pinout)[d.opts.Single]
	if d.opts.Mode == ModeFaderSingle && len(d.active) > 0 {
		if _, ok := channel.Find(d.active, single.Role); !ok {
			dlog().Warn().Stringer("channel", single).Msg("Single channel is masked out, fading it anyway")
		}
	}

	for ctx.Err() == nil {
		switch d.opts.Mode {
		case ModeFader:
			d.record(d.engine.Random())

		case ModeFaderSingle:
			d.record(d.engine.Single(single))

		default:
			if !d.monitor.Poll() {
				d.idle()
				continue
			}

			d.recordTrigger()
			d.record(d.engine.Random())
			d.relay.Pulse()
			d.recordPulse()
		}
	}

	d.engine.Off()
	d.setPhase(PhaseStopped)
	dlog().Info().Msg("Stopped")
}

func (d *Device) idle() {
	if d.opts.PollInterval > 0 {
		d.clock.Sleep(d.opts.PollInterval)
	}
}

func (d *Device) record(ev fade.Event) {
	if ev.Kind == fade.KindNone {
		d.idle()
		return
	}

	d.history.Push(ev)
	d.events.Publish(ev)

	d.statusMu.Lock()
	defer d.statusMu.Unlock()
	d.status.Fades++
	d.status.Last = &ev
}

func (d *Device) recordTrigger() {
	d.statusMu.Lock()
	defer d.statusMu.Unlock()
	d.status.Triggers++
}

func (d *Device) recordPulse() {
	d.statusMu.Lock()
	defer d.statusMu.Unlock()
	d.status.Pulses = d.relay.Pulses()
}

func (d *Device) setPhase(p Phase) {
	d.statusMu.Lock()
	d.status.Phase = p
	d.statusMu.Unlock()

	dlog().Debug().Str("phase", string(p)).Msg("Phase")
}

// Status returns a copy that is safe to use from other goroutines.
func (d *Device) Status() Status {
	d.statusMu.RLock()
	defer d.statusMu.RUnlock()

	s := d.status
	s.Channels = append([]string(nil), d.status.Channels...)
	if d.status.Last != nil {
		last := *d.status.Last
		s.Last = &last
	}
	return s
}

// History returns the most recent fades, oldest first.
func (d *Device) History() []fade.Event {
	return d.history.Snapshot()
}

// Subscribe delivers every finished fade until the returned func is called.
func (d *Device) Subscribe() (func(), <-chan fade.Event) {
	handle, ch := d.events.Subscribe()
	return func() {
		d.events.Unsubscribe(handle)
	}, ch
}

// Trigger is the input pin that an upstream device pulls low.
func (d *Device) Trigger() int {
	return d.opts.Pinout.Trigger
}

// Watchers is the number of live Subscribe calls.
func (d *Device) Watchers() int {
	return d.events.Subscribers()
}
