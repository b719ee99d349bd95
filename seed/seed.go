// Package seed gathers startup entropy from a floating input.
package seed

import (
	"math/rand/v2"
	"time"

	"gregoryjjb/glowchain/clock"
	"gregoryjjb/glowchain/gpio"
)

const (
	samplesPerBit = 9
	settle        = time.Millisecond
)

// Generate builds a 32-bit word one bit at a time. Each bit is the parity of
// nine low-bit samples of a, and the pin is left to drift for a millisecond
// after every bit. Bytes are assembled little-endian.
//
// The quality of the result is whatever the pin gives; it only seeds fades.
func Generate(a gpio.Analog, c clock.Clock) uint32 {
	var word uint32

	for byteIndex := 0; byteIndex < 4; byteIndex++ {
		var b uint8
		for bitIndex := 0; bitIndex < 8; bitIndex++ {
			var sum uint8
			for i := 0; i < samplesPerBit; i++ {
				sum += uint8(a.Sample() & 0x01)
			}
			c.Sleep(settle)

			b |= (sum & 0x01) << bitIndex
		}
		word |= uint32(b) << (8 * byteIndex)
	}

	return word
}

// Source returns the generator every random choice on a device is drawn from.
func Source(s uint32) *rand.Rand {
	return rand.New(rand.NewPCG(uint64(s), uint64(s)<<32|0x9e3779b9))
}
