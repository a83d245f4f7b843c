package ingest

import (
	"context"
	"errors"
	"log"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/shaunagostinho/scoreboard-dash/internal/metrics"
	"github.com/shaunagostinho/scoreboard-dash/internal/scoreboard"
	"github.com/shaunagostinho/scoreboard-dash/internal/serialport"
)

// State is where the reader is in its connection lifecycle.
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateStreaming
	StateRetrying
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	case StateRetrying:
		return "retrying"
	default:
		return "unknown"
	}
}

// Settings tune one deployment's reader.
type Settings struct {
	Strategy     scoreboard.Strategy
	Framing      scoreboard.Framing
	Baud         int
	PollInterval time.Duration // idle sleep when no bytes are waiting
	RetryDelay   time.Duration // pause after a read error
	JoinTimeout  time.Duration // how long to wait for a replaced loop to exit
	Debug        bool          // log every raw frame
}

func (s Settings) withDefaults() Settings {
	if s.Baud == 0 {
		s.Baud = serialport.Baud115200
	}
	if s.PollInterval <= 0 {
		s.PollInterval = 100 * time.Millisecond
	}
	if s.RetryDelay <= 0 {
		s.RetryDelay = time.Second
	}
	if s.JoinTimeout <= 0 {
		s.JoinTimeout = 2 * time.Second
	}
	return s
}

// Reader drives one handle: poll, read, frame, decode, publish. It is the
// only writer of the store while it runs.
type Reader struct {
	h        *serialport.Handle
	asm      *scoreboard.Assembler
	dec      *scoreboard.Decoder
	store    *scoreboard.Store
	pub      Publisher
	failures FailureRecorder
	metrics  *metrics.AppMetrics
	settings Settings

	state     atomic.Int32
	errLog    *rate.Limiter
	overflows int
}

// NewReader wires a reader to h. failures and m may be nil.
func NewReader(h *serialport.Handle, store *scoreboard.Store, pub Publisher, failures FailureRecorder, m *metrics.AppMetrics, settings Settings) *Reader {
	if pub == nil {
		pub = Discard{}
	}
	settings = settings.withDefaults()
	return &Reader{
		h:        h,
		asm:      scoreboard.NewAssembler(settings.Framing),
		dec:      scoreboard.NewDecoder(settings.Strategy),
		store:    store,
		pub:      pub,
		failures: failures,
		metrics:  m,
		settings: settings,
		errLog:   rate.NewLimiter(rate.Every(time.Second), 5),
	}
}

// State reports the loop's current state. Safe from any goroutine.
func (r *Reader) State() State { return State(r.state.Load()) }

func (r *Reader) setState(s State) { r.state.Store(int32(s)) }

// Run loops until the handle is closed or ctx is done. Read errors pause and
// retry on the same handle; they never end the loop.
func (r *Reader) Run(ctx context.Context) {
	r.setState(StateStreaming)
	r.metrics.SetReaderActive(true)
	log.Printf("[reader] streaming from %s (handle %s)", r.h.Name, r.h.ID)
	defer func() {
		r.asm.Reset()
		r.setState(StateIdle)
		r.metrics.SetReaderActive(false)
		log.Printf("[reader] stopped reading %s (handle %s)", r.h.Name, r.h.ID)
	}()

	for {
		if ctx.Err() != nil || r.h.Closed() {
			return
		}

		n, err := r.h.BytesAvailable()
		if err != nil {
			if errors.Is(err, serialport.ErrHandleClosed) || !r.retry(ctx, err) {
				return
			}
			continue
		}
		if n == 0 {
			if !sleep(ctx, r.settings.PollInterval) {
				return
			}
			continue
		}

		data, err := r.h.ReadAvailable()
		if err != nil {
			if errors.Is(err, serialport.ErrHandleClosed) || !r.retry(ctx, err) {
				return
			}
			continue
		}
		r.setState(StateStreaming)
		r.metrics.Bytes(len(data))

		for _, frame := range r.asm.Feed(data) {
			r.handleFrame(frame)
		}
		if o := r.asm.Overflows(); o != r.overflows {
			r.overflows = o
			r.pub.PublishDiagnostic(NewDiagnostic(SeverityWarning,
				"Discarded unterminated data from %s: no frame boundary within %d bytes", r.h.Name, scoreboard.DefaultMaxPending))
		}
	}
}

// retry reports the error and sleeps. It returns false if ctx ended first.
func (r *Reader) retry(ctx context.Context, err error) bool {
	r.setState(StateRetrying)
	r.metrics.ReadError()
	if r.errLog.Allow() {
		log.Printf("[reader] read error on %s: %v (retrying in %s)", r.h.Name, err, r.settings.RetryDelay)
	}
	r.pub.PublishDiagnostic(NewDiagnostic(SeverityError, "Error reading from serial port: %v", err))
	return sleep(ctx, r.settings.RetryDelay)
}

func (r *Reader) handleFrame(frame string) {
	if r.settings.Debug {
		log.Printf("[reader] raw frame: %q", frame)
	}
	r.pub.PublishDiagnostic(NewDiagnosticText(SeverityRaw, frame))

	dec, err := r.dec.Decode(frame)
	if err != nil {
		r.reject(frame, err)
		return
	}

	r.store.Update(dec.State)
	r.metrics.Frame("ok")
	r.metrics.Variant(dec.Variant.String())
	r.pub.PublishState(dec.State)

	for _, d := range dec.Details {
		r.pub.PublishDiagnostic(NewDiagnosticText(SeverityInfo, d))
	}
	r.pub.PublishDiagnostic(NewDiagnosticText(SeverityScore, dec.State.String()))
}

func (r *Reader) reject(frame string, err error) {
	var f *scoreboard.DecodeFailure
	if !errors.As(err, &f) {
		f = &scoreboard.DecodeFailure{
			Kind:    scoreboard.Malformed,
			Raw:     frame,
			Cleaned: frame,
			Reason:  "decode error",
			Time:    time.Now(),
			Err:     err,
		}
	}

	if r.failures != nil {
		if lerr := r.failures.Record(f); lerr != nil {
			log.Printf("[reader] failure log: %v", lerr)
		}
	}

	switch f.Kind {
	case scoreboard.Unrecognized:
		r.metrics.Frame("unrecognized")
		r.pub.PublishDiagnostic(NewDiagnostic(SeverityWarning, "Unrecognized data format: %q", f.Raw))
	default:
		r.metrics.Frame("malformed")
		if f.Err != nil {
			r.pub.PublishDiagnostic(NewDiagnostic(SeverityError, "Error parsing data %q: %s: %v", f.Raw, f.Reason, f.Err))
		} else {
			r.pub.PublishDiagnostic(NewDiagnostic(SeverityWarning, "Malformed data %q: %s", f.Raw, f.Reason))
		}
	}
}

// sleep waits for d and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
