// Package fakeport provides a scripted serial port for tests.
package fakeport

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shaunagostinho/scoreboard-dash/internal/serialport"
)

var ErrClosed = errors.New("fakeport: port closed")

// Port replays pushed chunks. Read behaves like a serial read with a
// timeout: it returns (0, nil) when nothing is queued in time.
type Port struct {
	Name string

	chunks  chan []byte
	errs    chan error
	closed  chan struct{}
	timeout time.Duration

	once   sync.Once
	closes atomic.Int32
	reads  atomic.Int32
}

// New returns a port whose idle reads time out after timeout.
func New(name string, timeout time.Duration) *Port {
	return &Port{
		Name:    name,
		chunks:  make(chan []byte, 64),
		errs:    make(chan error, 8),
		closed:  make(chan struct{}),
		timeout: timeout,
	}
}

// Push queues data for a later Read.
func (p *Port) Push(data string) { p.chunks <- []byte(data) }

// Fail makes a later Read return err.
func (p *Port) Fail(err error) { p.errs <- err }

func (p *Port) Read(b []byte) (int, error) {
	p.reads.Add(1)
	select {
	case <-p.closed:
		return 0, ErrClosed
	default:
	}
	select {
	case <-p.closed:
		return 0, ErrClosed
	case err := <-p.errs:
		return 0, err
	case c := <-p.chunks:
		return copy(b, c), nil
	case <-time.After(p.timeout):
		return 0, nil
	}
}

func (p *Port) Close() error {
	p.closes.Add(1)
	p.once.Do(func() { close(p.closed) })
	return nil
}

// Closes reports how many times Close was called.
func (p *Port) Closes() int { return int(p.closes.Load()) }

// Reads reports how many times Read was called.
func (p *Port) Reads() int { return int(p.reads.Load()) }

// Opener hands out fake ports and remembers them by name.
type Opener struct {
	Timeout time.Duration

	mu    sync.Mutex
	ports []*Port
	fail  map[string]error
	bauds []int
}

// NewOpener returns an Opener whose ports time out after timeout.
func NewOpener(timeout time.Duration) *Opener {
	return &Opener{Timeout: timeout, fail: map[string]error{}}
}

// FailOpen makes opening name return err.
func (o *Opener) FailOpen(name string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.fail[name] = err
}

// Open satisfies serialport.Opener.
func (o *Opener) Open(name string, baud int, _ time.Duration) (serialport.Port, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.fail[name]; err != nil {
		return nil, err
	}
	p := New(name, o.Timeout)
	o.ports = append(o.ports, p)
	o.bauds = append(o.bauds, baud)
	return p, nil
}

// Ports returns every port opened so far, oldest first.
func (o *Opener) Ports() []*Port {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]*Port(nil), o.ports...)
}

// Last returns the most recently opened port.
func (o *Opener) Last() *Port {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.ports) == 0 {
		return nil
	}
	return o.ports[len(o.ports)-1]
}

// Bauds returns the baud rate of each open, oldest first.
func (o *Opener) Bauds() []int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]int(nil), o.bauds...)
}
