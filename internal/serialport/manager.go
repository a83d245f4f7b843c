package serialport

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

const readChunk = 4096

// Handle is one open serial device. Reads belong to a single reader
// goroutine; Close may be called from anywhere and is idempotent.
type Handle struct {
	ID   string
	Name string
	Baud int

	port    Port
	buf     []byte
	pending []byte

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

func newHandle(name string, baud int, port Port) *Handle {
	return &Handle{
		ID:   uuid.NewString(),
		Name: name,
		Baud: baud,
		port: port,
		buf:  make([]byte, readChunk),
	}
}

// Closed reports whether Close has been called.
func (h *Handle) Closed() bool { return h.closed.Load() }

// Close closes the underlying port exactly once. A Read blocked on the port
// returns with an error, which the reader sees as ErrHandleClosed.
func (h *Handle) Close() error {
	h.closeOnce.Do(func() {
		h.closed.Store(true)
		h.closeErr = h.port.Close()
	})
	return h.closeErr
}

// BytesAvailable polls the device for up to its read timeout and returns how
// many received bytes are waiting to be taken with ReadAvailable.
func (h *Handle) BytesAvailable() (int, error) {
	if h.closed.Load() {
		return 0, ErrHandleClosed
	}
	if len(h.pending) > 0 {
		return len(h.pending), nil
	}
	n, err := h.port.Read(h.buf)
	if n > 0 {
		h.pending = append(h.pending, h.buf[:n]...)
	}
	if err != nil {
		if h.closed.Load() {
			return len(h.pending), ErrHandleClosed
		}
		return len(h.pending), &ConnectionError{Op: "read", Port: h.Name, Err: err}
	}
	return len(h.pending), nil
}

// ReadAvailable returns and clears every byte received so far. It returns an
// empty slice when nothing arrived within the read timeout.
func (h *Handle) ReadAvailable() ([]byte, error) {
	if len(h.pending) == 0 {
		if _, err := h.BytesAvailable(); err != nil && len(h.pending) == 0 {
			return nil, err
		}
	}
	out := h.pending
	h.pending = nil
	return out, nil
}

// Manager owns the single live Handle. Opening a port closes and discards
// the previous handle first.
type Manager struct {
	open        Opener
	readTimeout time.Duration

	mu  sync.Mutex
	cur *Handle
}

// NewManager returns a Manager. A nil opener means SerialOpener.
func NewManager(open Opener, readTimeout time.Duration) *Manager {
	if open == nil {
		open = SerialOpener
	}
	if readTimeout <= 0 {
		readTimeout = time.Second
	}
	return &Manager{open: open, readTimeout: readTimeout}
}

// Open replaces the current handle with a new one on name. The previous
// handle is closed even if the new open fails.
func (m *Manager) Open(name string, baud int) (*Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closeLocked()

	if name == "" {
		return nil, &ConnectionError{Op: "open", Port: name, Err: errors.New("no port selected")}
	}
	if !ValidBaud(baud) {
		return nil, &ConnectionError{Op: "open", Port: name, Err: fmt.Errorf("%w: %d", ErrUnsupportedBaud, baud)}
	}

	port, err := m.open(name, baud, m.readTimeout)
	if err != nil {
		return nil, &ConnectionError{Op: "open", Port: name, Err: err}
	}
	h := newHandle(name, baud, port)
	m.cur = h
	log.Printf("[serial] opened %s at %d baud (handle %s)", name, baud, h.ID)
	return h, nil
}

// Close closes the current handle, if any.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closeLocked()
}

// Current returns the live handle or nil.
func (m *Manager) Current() *Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cur
}

func (m *Manager) closeLocked() error {
	if m.cur == nil {
		return nil
	}
	h := m.cur
	m.cur = nil
	err := h.Close()
	if err != nil {
		log.Printf("[serial] close %s: %v", h.Name, err)
	} else {
		log.Printf("[serial] closed %s (handle %s)", h.Name, h.ID)
	}
	return err
}
