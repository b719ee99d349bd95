package device_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gregoryjjb/glowchain/channel"
	"gregoryjjb/glowchain/clock"
	"gregoryjjb/glowchain/device"
	"gregoryjjb/glowchain/fade"
	"gregoryjjb/glowchain/gpio"
)

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.WarnLevel)
	os.Exit(m.Run())
}

var start = time.Unix(1700000000, 0)

type rig struct {
	clock  *clock.Virtual
	sim    *gpio.Sim
	pinout gpio.Pinout
	device *device.Device
}

func newRig(t *testing.T, mode device.Mode, mask channel.Mask) *rig {
	t.Helper()

	vc := clock.NewVirtual(start)
	sim := gpio.NewSim(vc, func() uint16 { return 1 })
	pinout := gpio.DefaultPinout()
	s := uint32(1234)

	d := device.New(sim, device.Options{
		Mode:         mode,
		Mask:         mask,
		Pinout:       pinout,
		Single:       channel.Blue,
		Seed:         &s,
		PollInterval: time.Millisecond,
		Clock:        vc,
	})

	return &rig{clock: vc, sim: sim, pinout: pinout, device: d}
}

// runFor starts the device and cancels it once the virtual clock reaches d.
func (r *rig) runFor(d time.Duration) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r.clock.AfterFunc(d, cancel)
	r.device.Start(ctx)
}

func (r *rig) pulseAt(at time.Duration, hold time.Duration) {
	r.sim.SimInput(r.pinout.Trigger).HoldLowAt(start.Add(at), hold)
}

func (r *rig) assertAllOff(t *testing.T, mask channel.Mask) {
	t.Helper()
	for _, c := range channel.Active(mask, channel.Declare(r.pinout)) {
		assert.Equal(t, uint8(fade.Off), r.sim.SimPWM(c.Pin).Duty(), "channel %s", c)
	}
}

func TestSelfTest(t *testing.T) {
	r := newRig(t, device.ModeChainFollower, 0b1001)

	r.device.Init()
	r.device.SelfTest()

	assert.Equal(t, 2*device.SelfTestDwell, clock.Since(r.clock, start))

	// Init turns off, self-test flashes on then off
	for _, pin := range []int{r.pinout.Red, r.pinout.White} {
		assert.Equal(t, []uint8{fade.Off, fade.Min, fade.Off}, r.sim.SimPWM(pin).History())
	}
	assert.Zero(t, r.sim.SimPWM(r.pinout.Green).Writes())

	status := r.device.Status()
	assert.Equal(t, device.PhaseSelfTest, status.Phase)
	assert.Equal(t, []string{"red", "white"}, status.Channels)
	assert.Equal(t, uint32(1234), status.Seed)
}

func TestInit_SamplesSeed(t *testing.T) {
	vc := clock.NewVirtual(start)
	sim := gpio.NewSim(vc, func() uint16 { return 1 })

	d := device.New(sim, device.Options{
		Mode:   device.ModeChainFollower,
		Mask:   channel.MaskAll,
		Pinout: gpio.DefaultPinout(),
		Clock:  vc,
	})
	d.Init()

	assert.Equal(t, uint32(0xFFFFFFFF), d.Status().Seed)
	assert.Equal(t, 32*time.Millisecond, clock.Since(vc, start))
	assert.True(t, sim.SimOutput(gpio.DefaultPinout().Relay).IsHigh())
}

func TestChainFollower(t *testing.T) {
	r := newRig(t, device.ModeChainFollower, channel.MaskAll)

	r.pulseAt(2*time.Second, 20*time.Millisecond)
	r.pulseAt(6*time.Second, 20*time.Millisecond)
	r.pulseAt(9*time.Second, 3*time.Millisecond) // glitch

	r.runFor(12 * time.Second)

	status := r.device.Status()
	assert.Equal(t, device.PhaseStopped, status.Phase)
	assert.Equal(t, int64(2), status.Triggers)
	assert.Equal(t, int64(2), status.Pulses)
	assert.Equal(t, int64(2), status.Fades)
	require.NotNil(t, status.Last)

	history := r.device.History()
	require.Len(t, history, 2)
	assert.Equal(t, start.Add(2*time.Second+5*time.Millisecond), history[0].Started)
	assert.Equal(t, start.Add(6*time.Second+5*time.Millisecond), history[1].Started)

	// Each fade is followed straight away by a relay pulse
	out := r.sim.SimOutput(r.pinout.Relay).Transitions()
	require.Len(t, out, 5)
	assert.True(t, out[0].High)
	for i, ev := range history {
		low, high := out[1+2*i], out[2+2*i]
		assert.False(t, low.High)
		assert.Equal(t, ev.Started.Add(ev.Duration), low.At)
		assert.Equal(t, 20*time.Millisecond, high.At.Sub(low.At))
	}

	r.assertAllOff(t, channel.MaskAll)
}

func TestChainFollower_IgnoresTriggersDuringFade(t *testing.T) {
	r := newRig(t, device.ModeChainFollower, channel.MaskAll)

	r.pulseAt(time.Second, 20*time.Millisecond)
	// Arrives while the first fade's first tick is still running
	r.pulseAt(time.Second+25*time.Millisecond, 6*time.Millisecond)

	r.runFor(5 * time.Second)

	assert.Equal(t, int64(1), r.device.Status().Triggers)
}

func TestChainStarter(t *testing.T) {
	r := newRig(t, device.ModeChainStarter, 0b1110)

	r.runFor(3 * time.Second)

	// Three self-test flashes then the boot settle delay
	kickoff := start.Add(3*device.SelfTestDwell + 600*time.Millisecond)

	out := r.sim.SimOutput(r.pinout.Relay).Transitions()
	require.Len(t, out, 3)
	assert.Equal(t, gpio.Transition{At: kickoff, High: false}, out[1])
	assert.Equal(t, gpio.Transition{At: kickoff.Add(20 * time.Millisecond), High: true}, out[2])

	status := r.device.Status()
	assert.Equal(t, int64(1), status.Pulses)
	assert.Zero(t, status.Triggers)
}

func TestFader(t *testing.T) {
	r := newRig(t, device.ModeFader, channel.MaskAll)

	unsub, events := r.device.Subscribe()
	defer unsub()

	r.runFor(10 * time.Second)

	history := r.device.History()
	// No fade lasts longer than 80 ticks
	assert.GreaterOrEqual(t, len(history), 4)
	assert.Equal(t, int64(len(history)), r.device.Status().Fades)

	// Fades run back to back
	for i := 1; i < len(history); i++ {
		prev := history[i-1]
		assert.Equal(t, prev.Started.Add(prev.Duration), history[i].Started)
	}

	// Never touches the chain
	assert.Len(t, r.sim.SimOutput(r.pinout.Relay).Transitions(), 1)

	received := 0
	for len(events) > 0 {
		<-events
		received++
	}
	assert.Equal(t, min(len(history), 16), received)

	r.assertAllOff(t, channel.MaskAll)
}

func TestFaderSingle(t *testing.T) {
	// Blue is masked out but still the configured channel
	r := newRig(t, device.ModeFaderSingle, 0b1000)

	r.runFor(5 * time.Second)

	history := r.device.History()
	require.NotEmpty(t, history)
	for _, ev := range history {
		assert.Equal(t, fade.KindSingle, ev.Kind)
		assert.Equal(t, []string{"blue"}, ev.Channels)
	}
	assert.Equal(t, uint8(fade.Off), r.sim.SimPWM(r.pinout.Blue).Duty())
}

func TestFaderSingle_NoChannels(t *testing.T) {
	r := newRig(t, device.ModeFaderSingle, channel.MaskNone)

	r.runFor(time.Second)

	assert.Empty(t, r.device.History())
	assert.Zero(t, r.device.Status().Fades)
	assert.Zero(t, r.sim.SimPWM(r.pinout.Blue).Writes())
}

func TestNew_UnknownSingleFallsBackToRed(t *testing.T) {
	vc := clock.NewVirtual(start)
	sim := gpio.NewSim(vc, nil)
	s := uint32(1)

	d := device.New(sim, device.Options{
		Mode:         device.ModeFaderSingle,
		Mask:         channel.MaskAll,
		Pinout:       gpio.DefaultPinout(),
		Single:       channel.Role(9),
		Seed:         &s,
		PollInterval: time.Millisecond,
		Clock:        vc,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	vc.AfterFunc(2*time.Second, cancel)

	require.NotPanics(t, func() { d.Run(ctx) })

	history := d.History()
	require.NotEmpty(t, history)
	assert.Equal(t, []string{"red"}, history[0].Channels)
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    device.Mode
		wantErr bool
	}{
		{in: "fader", want: device.ModeFader},
		{in: "fader-single", want: device.ModeFaderSingle},
		{in: "Chain-Starter", want: device.ModeChainStarter},
		{in: " chain-follower ", want: device.ModeChainFollower},
		{in: "chaser", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := device.ParseMode(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, device.ErrUnknownMode)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got.String(), tt.want.String())
		})
	}

	assert.True(t, device.ModeChainStarter.Chases())
	assert.False(t, device.ModeFader.Chases())
}
