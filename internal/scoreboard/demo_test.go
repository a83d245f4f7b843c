package scoreboard

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDemoPortFramesDecode(t *testing.T) {
	for _, tc := range []struct {
		strategy Strategy
		framing  Framing
	}{
		{StrategyPattern, FramingNewline},
		{StrategyPositional, FramingNewlineTab},
	} {
		t.Run(tc.strategy.String(), func(t *testing.T) {
			port := NewDemoPort(tc.strategy, tc.framing)
			port.interval = time.Millisecond
			asm := NewAssembler(tc.framing)
			dec := NewDecoder(tc.strategy)

			buf := make([]byte, 256)
			decoded := 0
			for i := 0; i < 10; i++ {
				n, err := port.Read(buf)
				require.NoError(t, err)
				for _, frame := range asm.Feed(buf[:n]) {
					if _, err := dec.Decode(frame); err == nil {
						decoded++
					}
				}
			}
			assert.Equal(t, 10, decoded)
		})
	}
}

func TestDemoPortEmitsNoise(t *testing.T) {
	port := NewDemoPort(StrategyPositional, FramingNewline)
	port.interval = time.Microsecond
	asm := NewAssembler(FramingNewline)
	dec := NewDecoder(StrategyPositional)

	buf := make([]byte, 256)
	failures := 0
	for i := 0; i < 40; i++ {
		n, err := port.Read(buf)
		require.NoError(t, err)
		for _, frame := range asm.Feed(buf[:n]) {
			if _, err := dec.Decode(frame); errors.Is(err, ErrMalformed) {
				failures++
			}
		}
	}
	assert.Equal(t, 1, failures)
}

func TestDemoPortClose(t *testing.T) {
	port := NewDemoPort(StrategyPattern, FramingNewline)
	require.NoError(t, port.Close())
	require.NoError(t, port.Close())

	_, err := port.Read(make([]byte, 8))
	assert.ErrorIs(t, err, ErrDemoClosed)
}
