package scoreboard

import (
	"errors"
	"math/rand"
	"sync"
	"time"
)

// DemoPortName is the port name that opens a DemoPort instead of hardware.
const DemoPortName = "demo"

// ErrDemoClosed is returned by DemoPort.Read after Close.
var ErrDemoClosed = errors.New("scoreboard: demo port closed")

const chukkaSeconds = 7 * 60

// DemoPort simulates a scoreboard controller for UI development. It counts a
// chukka clock down, scores goals at random, and now and then emits line
// noise so the failure paths stay visible on the debug page.
type DemoPort struct {
	mu       sync.Mutex
	strategy Strategy
	framing  Framing
	interval time.Duration
	rng      *rand.Rand

	t          float64 // virtual seconds elapsed in the chukka
	home, away int
	frames     int

	closed    chan struct{}
	closeOnce sync.Once
}

// NewDemoPort returns a DemoPort emitting frames for strategy, terminated
// according to framing, roughly five times a second.
func NewDemoPort(strategy Strategy, framing Framing) *DemoPort {
	return &DemoPort{
		strategy: strategy,
		framing:  framing,
		interval: 200 * time.Millisecond,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		closed:   make(chan struct{}),
	}
}

// Read blocks for one frame interval and returns the next frame.
func (d *DemoPort) Read(p []byte) (int, error) {
	select {
	case <-d.closed:
		return 0, ErrDemoClosed
	case <-time.After(d.interval):
	}
	return copy(p, d.next()), nil
}

func (d *DemoPort) Close() error {
	d.closeOnce.Do(func() { close(d.closed) })
	return nil
}

func (d *DemoPort) next() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.t += d.interval.Seconds()
	if d.t >= chukkaSeconds {
		d.t = 0
	}
	if d.rng.Float64() < 0.01 && d.home < 99 {
		d.home++
	}
	if d.rng.Float64() < 0.01 && d.away < 99 {
		d.away++
	}
	d.frames++

	term := "\r\n"
	if d.framing == FramingNewlineTab {
		term = "\t"
	}
	if d.frames%40 == 0 {
		return []byte("\x00\x7fERR" + term)
	}

	left := chukkaSeconds - int(d.t)
	st := MatchState{
		Clock: twoDigit(left/60) + ":" + twoDigit(left%60),
		Home:  d.home,
		Away:  d.away,
	}

	var frame string
	var err error
	if d.strategy == StrategyPositional {
		frame, err = EncodePositional(st, 1, 0, int(d.t*100)%100)
		frame = "\x02" + frame
	} else {
		frame, err = EncodePattern(st, 1, 'D', 2)
		frame = "@" + frame
	}
	if err != nil {
		return []byte(term)
	}
	return []byte(frame + term)
}

func twoDigit(n int) string {
	return string([]byte{byte('0' + n/10%10), byte('0' + n%10)})
}
