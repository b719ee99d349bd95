package device

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownMode = errors.New("unknown mode")

// Mode selects what a device does once it is running.
type Mode int

const (
	// ModeFader runs random fades back to back and ignores the chain.
	ModeFader Mode = iota
	// ModeFaderSingle breathes one configured channel forever.
	ModeFaderSingle
	// ModeChainStarter fires the first pulse of a chain, then chases.
	ModeChainStarter
	// ModeChainFollower fades and relays each pulse it receives.
	ModeChainFollower
)

var modeNames = map[Mode]string{
	ModeFader:         "fader",
	ModeFaderSingle:   "fader-single",
	ModeChainStarter:  "chain-starter",
	ModeChainFollower: "chain-follower",
}

func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

func ParseMode(s string) (Mode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for m, name := range modeNames {
		if name == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("%w %q", ErrUnknownMode, s)
}

func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Mode) UnmarshalText(text []byte) error {
	parsed, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Chases reports whether the mode listens to the chain input.
func (m Mode) Chases() bool {
	return m == ModeChainStarter || m == ModeChainFollower
}
