// Package channel resolves which LED colour outputs a device drives.
package channel

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gregoryjjb/glowchain/gpio"
)

var ErrInvalid = errors.New("invalid channel configuration")

type Role int

const (
	Red Role = iota
	Green
	Blue
	White
)

var roleNames = [...]string{"red", "green", "blue", "white"}

func (r Role) Valid() bool {
	return r >= Red && r <= White
}

func (r Role) String() string {
	if !r.Valid() {
		return "Role(" + strconv.Itoa(int(r)) + ")"
	}
	return roleNames[r]
}

func ParseRole(s string) (Role, error) {
	for i, name := range roleNames {
		if strings.EqualFold(s, name) {
			return Role(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown channel %q", ErrInvalid, s)
}

// Channel is one physical LED output. Two channels are the same channel
// when they share a pin.
type Channel struct {
	Role Role
	Pin  int
}

func (c Channel) String() string {
	return fmt.Sprintf("%s(%d)", c.Role, c.Pin)
}

// Mask enables channels, written 0bRGBW.
type Mask uint8

const (
	MaskNone Mask = 0b0000
	MaskAll  Mask = 0b1111
)

// ParseMask accepts any Go integer literal: "0b1010", "0xA" or "10".
func ParseMask(s string) (Mask, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 0, 8)
	if err != nil {
		return 0, fmt.Errorf("%w: mask %q: %w", ErrInvalid, s, err)
	}
	m := Mask(v)
	if err := m.Validate(); err != nil {
		return 0, err
	}
	return m, nil
}

func (m Mask) Validate() error {
	if m > MaskAll {
		return fmt.Errorf("%w: mask 0b%b has more than 4 bits", ErrInvalid, uint8(m))
	}
	return nil
}

func (m Mask) String() string {
	return fmt.Sprintf("0b%04b", uint8(m))
}

// Declare lists every channel of a pinout in R, G, B, W order.
func Declare(p gpio.Pinout) [4]Channel {
	return [4]Channel{
		{Role: Red, Pin: p.Red},
		{Role: Green, Pin: p.Green},
		{Role: Blue, Pin: p.Blue},
		{Role: White, Pin: p.White},
	}
}

// Active returns the channels enabled by mask, in declaration order. The most
// significant of the four bits enables all[0].
func Active(mask Mask, all [4]Channel) []Channel {
	active := make([]Channel, 0, len(all))
	for i, c := range all {
		if mask&(1<<(3-i)) != 0 {
			active = append(active, c)
		}
	}
	return active
}

// Find returns the channel with the given role from a set.
func Find(set []Channel, role Role) (Channel, bool) {
	for _, c := range set {
		if c.Role == role {
			return c, true
		}
	}
	return Channel{}, false
}

func Names(set []Channel) []string {
	names := make([]string, len(set))
	for i, c := range set {
		names[i] = c.Role.String()
	}
	return names
}
