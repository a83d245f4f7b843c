package ingest

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/shaunagostinho/scoreboard-dash/internal/metrics"
	"github.com/shaunagostinho/scoreboard-dash/internal/scoreboard"
	"github.com/shaunagostinho/scoreboard-dash/internal/serialport"
)

// Session owns the connection lifecycle. Connect and Disconnect are
// serialized, and at most one reader runs at a time: a replaced reader is
// joined before its successor starts.
type Session struct {
	mgr      *serialport.Manager
	store    *scoreboard.Store
	pub      Publisher
	failures FailureRecorder
	metrics  *metrics.AppMetrics
	settings Settings

	mu     sync.Mutex // serializes Connect/Disconnect
	cancel context.CancelFunc
	done   chan struct{}

	statusMu sync.RWMutex
	status   Status
	reader   *Reader
}

// NewSession returns an idle session. failures and m may be nil.
func NewSession(mgr *serialport.Manager, store *scoreboard.Store, pub Publisher, failures FailureRecorder, m *metrics.AppMetrics, settings Settings) *Session {
	if pub == nil {
		pub = Discard{}
	}
	return &Session{
		mgr:      mgr,
		store:    store,
		pub:      pub,
		failures: failures,
		metrics:  m,
		settings: settings.withDefaults(),
		status:   Status{State: StateIdle.String(), Message: "No port selected"},
	}
}

// Settings returns the settings new readers are started with.
func (s *Session) Settings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// SetSettings replaces the settings used from the next Connect on.
func (s *Session) SetSettings(settings Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = settings.withDefaults()
}

// Connect closes any current connection, waits for its reader to exit, then
// opens port and starts a fresh reader on it. On failure the session is
// left idle.
func (s *Session) Connect(port string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()

	s.setStatus(Status{Port: port, State: StateConnecting.String(), Message: "Connecting to " + port})
	s.pub.PublishDiagnostic(NewDiagnostic(SeverityInfo, "Connecting to %s at %d baud...", port, s.settings.Baud))

	h, err := s.mgr.Open(port, s.settings.Baud)
	if err != nil {
		s.metrics.Connect(false)
		log.Printf("[session] connect %s failed: %v", port, err)
		s.setStatus(Status{Port: port, State: StateIdle.String(), Message: fmt.Sprintf("Failed to connect: %v", err)})
		s.pub.PublishDiagnostic(NewDiagnostic(SeverityError, "Failed to connect to %s: %v", port, err))
		return err
	}
	s.metrics.Connect(true)

	r := NewReader(h, s.store, s.pub, s.failures, s.metrics, s.settings)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	go func() {
		defer close(done)
		r.Run(ctx)
	}()

	s.statusMu.Lock()
	s.reader = r
	s.status = Status{Connected: true, Port: port, State: StateStreaming.String(), Message: "Connected to " + port}
	st := s.status
	s.statusMu.Unlock()
	s.pub.PublishStatus(st)
	s.pub.PublishDiagnostic(NewDiagnostic(SeveritySuccess, "Connected to %s", port))
	log.Printf("[session] connected to %s", port)
	return nil
}

// Disconnect closes the current connection and waits for its reader.
func (s *Session) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()

	port := s.Status().Port
	if !s.stopLocked() {
		return
	}
	s.setStatus(Status{Port: port, State: StateIdle.String(), Message: "Disconnected"})
	s.pub.PublishDiagnostic(NewDiagnostic(SeverityInfo, "Disconnected from %s", port))
	log.Printf("[session] disconnected from %s", port)
}

// Close is Disconnect for process shutdown.
func (s *Session) Close() error {
	s.Disconnect()
	return nil
}

// Status returns the operator-facing connection status. State follows the
// live reader, so a retrying link shows as such.
func (s *Session) Status() Status {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()
	st := s.status
	if s.reader != nil {
		st.State = s.reader.State().String()
	}
	return st
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()
	if s.reader != nil {
		return s.reader.State()
	}
	if s.status.State == StateConnecting.String() {
		return StateConnecting
	}
	return StateIdle
}

// stopLocked closes the live handle, which makes the reader's next read
// fail, then joins the reader. It reports whether anything was running.
func (s *Session) stopLocked() bool {
	hadHandle := s.mgr.Current() != nil
	if err := s.mgr.Close(); err != nil {
		log.Printf("[session] close: %v", err)
	}
	if s.done == nil {
		return hadHandle
	}

	s.cancel()
	select {
	case <-s.done:
	case <-time.After(s.settings.JoinTimeout):
		log.Printf("[session] reader did not exit within %s", s.settings.JoinTimeout)
	}
	s.cancel = nil
	s.done = nil

	s.statusMu.Lock()
	s.reader = nil
	s.statusMu.Unlock()
	return true
}

func (s *Session) setStatus(st Status) {
	s.statusMu.Lock()
	s.status = st
	s.statusMu.Unlock()
	s.pub.PublishStatus(st)
}
