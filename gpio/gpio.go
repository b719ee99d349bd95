// Package gpio abstracts the handful of pins a glowchain device touches.
//
// Two boards exist: the go-rpio backed hardware board (build tag "gpio") and
// the simulated board used by default and in tests.
package gpio

import (
	"errors"
	"time"
)

var ErrUnsupported = errors.New("not supported by this board")

// PWM is a single duty-cycle output. Duty 255 is a full cycle.
type PWM interface {
	SetDuty(duty uint8)
}

// Input is a digital input line; Read reports true when the line is high.
type Input interface {
	Read() bool
}

// Output is a digital output line.
type Output interface {
	High()
	Low()
}

// Analog is a noisy sample source. Only the low bit is ever looked at.
type Analog interface {
	Sample() uint16
}

type Board interface {
	PWM(pin int) PWM
	Input(pin int) Input
	Output(pin int) Output
	Analog(pin int) Analog
	Close() error
}

// Injector is implemented by boards that can fake external signals on an
// input, standing in for the upstream device of a chain.
type Injector interface {
	HoldLow(pin int, d time.Duration) error
}

// Pinout is the BCM numbering of every pin a device uses.
type Pinout struct {
	Red   int `toml:"red"`
	Green int `toml:"green"`
	Blue  int `toml:"blue"`
	White int `toml:"white"`

	Trigger int `toml:"trigger"`
	Relay   int `toml:"relay"`
	Noise   int `toml:"noise"`
}

// DefaultPinout puts the colour channels on the four hardware PWM capable
// pins. Red/blue (12/18) and green/white (13/19) share a PWM unit, so the
// hardware board can only fade one channel of each pair; see PWMUnit.
func DefaultPinout() Pinout {
	return Pinout{
		Red:     12,
		Green:   13,
		Blue:    18,
		White:   19,
		Trigger: 23,
		Relay:   24,
		Noise:   25,
	}
}

// PWMUnit returns the BCM2835 PWM unit behind a header pin. Two pins on the
// same unit always carry the same duty.
func PWMUnit(pin int) (unit int, ok bool) {
	switch pin {
	case 12, 18:
		return 0, true
	case 13, 19:
		return 1, true
	}
	return 0, false
}
