//go:build !gpio

package gpio

import "gregoryjjb/glowchain/clock"

// Every simulated pin has a PWM of its own.
const HardwarePWM = false

// Open returns the simulated board; build with -tags gpio for hardware.
func Open(pinout Pinout, c clock.Clock) (Board, error) {
	return NewSim(c, nil), nil
}
