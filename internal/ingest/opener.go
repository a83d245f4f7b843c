package ingest

import (
	"time"

	"github.com/shaunagostinho/scoreboard-dash/internal/scoreboard"
	"github.com/shaunagostinho/scoreboard-dash/internal/serialport"
)

// WireFormat reports the strategy and framing a demo port should emit.
type WireFormat func() (scoreboard.Strategy, scoreboard.Framing)

// DemoOpener opens a simulated scoreboard for scoreboard.DemoPortName and
// defers to next for every other name.
func DemoOpener(next serialport.Opener, format WireFormat) serialport.Opener {
	if next == nil {
		next = serialport.SerialOpener
	}
	return func(name string, baud int, readTimeout time.Duration) (serialport.Port, error) {
		if name == scoreboard.DemoPortName {
			strategy, framing := format()
			return scoreboard.NewDemoPort(strategy, framing), nil
		}
		return next(name, baud, readTimeout)
	}
}
