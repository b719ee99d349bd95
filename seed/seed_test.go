package seed_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"gregoryjjb/glowchain/clock"
	"gregoryjjb/glowchain/seed"
)

type scripted struct {
	samples []uint16
	calls   int
}

func (s *scripted) Sample() uint16 {
	v := s.samples[s.calls%len(s.samples)]
	s.calls++
	return v
}

// samplesFor returns nine samples per bit whose low-bit parity spells want.
// The high bits are noise the generator must ignore.
func samplesFor(want uint32) []uint16 {
	var out []uint16
	for bit := 0; bit < 32; bit++ {
		first := uint16(0x3F0)
		if want&(1<<bit) != 0 {
			first |= 1
		}
		out = append(out, first)
		for i := 0; i < 8; i++ {
			// pairs of odd samples cancel out
			if i < 4 {
				out = append(out, 0x201)
			} else {
				out = append(out, 0x100)
			}
		}
	}
	return out
}

func TestGenerate(t *testing.T) {
	start := time.Unix(0, 0)

	tests := []struct {
		name    string
		samples []uint16
		want    uint32
	}{
		{name: "all zero", samples: []uint16{0}, want: 0},
		{name: "all odd", samples: []uint16{1}, want: 0xFFFFFFFF},
		{name: "even noise", samples: []uint16{2, 512, 1022}, want: 0},
		{name: "little endian", samples: samplesFor(0xDEADBEEF), want: 0xDEADBEEF},
		{name: "low byte only", samples: samplesFor(0x000000A5), want: 0x000000A5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vc := clock.NewVirtual(start)
			src := &scripted{samples: tt.samples}

			got := seed.Generate(src, vc)

			assert.Equal(t, tt.want, got)
			assert.Equal(t, 32*9, src.calls)
			assert.Equal(t, 32*time.Millisecond, clock.Since(vc, start))
		})
	}
}

func TestSource_Deterministic(t *testing.T) {
	a := seed.Source(42)
	b := seed.Source(42)
	for i := 0; i < 10; i++ {
		assert.Equal(t, a.IntN(1000), b.IntN(1000))
	}
}
