//go:build gpio

package gpio

import (
	"fmt"
	"os"

	"github.com/stianeikeland/go-rpio/v4"

	"gregoryjjb/glowchain/clock"
)

// pwmClock gives a ~1kHz carrier at a 256 step cycle
const (
	pwmCycle = 256
	pwmClock = pwmCycle * 1000
)

// HardwarePWM is set when channels are driven by the real PWM units.
const HardwarePWM = true

// Hardware drives pins through /dev/mem.
type Hardware struct{}

// Open maps the GPIO registers. Without root go-rpio falls back to
// /dev/gpiomem, where PWM writes are silently dropped, so that is refused.
func Open(pinout Pinout, c clock.Clock) (Board, error) {
	if os.Geteuid() != 0 {
		return nil, fmt.Errorf("hardware PWM needs root: %w", ErrUnsupported)
	}
	if err := rpio.Open(); err != nil {
		return nil, err
	}
	glog().Info().Msg("Opened GPIO memory")

	return &Hardware{}, nil
}

func (h *Hardware) PWM(pin int) PWM {
	p := rpio.Pin(pin)
	p.Mode(rpio.Pwm)
	p.Freq(pwmClock)
	return rpioPWM{pin: p}
}

func (h *Hardware) Input(pin int) Input {
	p := rpio.Pin(pin)
	p.Input()
	p.PullUp()
	return rpioInput{pin: p}
}

func (h *Hardware) Output(pin int) Output {
	p := rpio.Pin(pin)
	p.Output()
	return p
}

// Analog reads a floating digital input; the Pi has no ADC and the low bit
// of a floating pin is as noisy as the low bit of an analog one.
func (h *Hardware) Analog(pin int) Analog {
	p := rpio.Pin(pin)
	p.Input()
	p.PullOff()
	return rpioNoise{pin: p}
}

func (h *Hardware) Close() error {
	return rpio.Close()
}

type rpioPWM struct {
	pin rpio.Pin
}

// SetDuty keeps duty 255 a full cycle, so an inverted LED driver is dark.
func (p rpioPWM) SetDuty(duty uint8) {
	d := uint32(duty)
	if duty == 255 {
		d = pwmCycle
	}
	p.pin.DutyCycle(d, pwmCycle)
}

type rpioInput struct {
	pin rpio.Pin
}

func (in rpioInput) Read() bool {
	return in.pin.Read() == rpio.High
}

type rpioNoise struct {
	pin rpio.Pin
}

func (n rpioNoise) Sample() uint16 {
	return uint16(n.pin.Read())
}
