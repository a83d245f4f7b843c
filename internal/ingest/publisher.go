// Package ingest runs the serial read loop: it pulls bytes off the live
// handle, frames and decodes them, keeps the match state current and tells
// subscribers what happened.
package ingest

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/shaunagostinho/scoreboard-dash/internal/scoreboard"
)

// Severity tags a diagnostic for the debug view.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
	SeverityRaw     Severity = "raw"
	SeverityScore   Severity = "score"
)

// Diagnostic is one line of the live debug feed.
type Diagnostic struct {
	ID       string    `json:"id"`
	Severity Severity  `json:"severity"`
	Message  string    `json:"message"`
	Time     time.Time `json:"time"`
}

// NewDiagnostic formats a diagnostic and stamps it with a fresh ID and the
// current time.
func NewDiagnostic(sev Severity, format string, args ...any) Diagnostic {
	return NewDiagnosticText(sev, fmt.Sprintf(format, args...))
}

// NewDiagnosticText is NewDiagnostic for a message used verbatim, such as a
// raw frame.
func NewDiagnosticText(sev Severity, msg string) Diagnostic {
	return Diagnostic{
		ID:       uuid.NewString(),
		Severity: sev,
		Message:  msg,
		Time:     time.Now(),
	}
}

// Status describes the connection as shown to the operator.
type Status struct {
	Connected bool   `json:"connected"`
	Port      string `json:"port"`
	State     string `json:"state"`
	Message   string `json:"message"`
}

// Publisher receives ingest events. Implementations must not block: the
// reader calls them inline and a slow subscriber would stall the port.
type Publisher interface {
	PublishState(scoreboard.MatchState)
	PublishDiagnostic(Diagnostic)
	PublishStatus(Status)
}

// MultiPublisher fans each event out to every member in order.
type MultiPublisher []Publisher

func (m MultiPublisher) PublishState(st scoreboard.MatchState) {
	for _, p := range m {
		p.PublishState(st)
	}
}

func (m MultiPublisher) PublishDiagnostic(d Diagnostic) {
	for _, p := range m {
		p.PublishDiagnostic(d)
	}
}

func (m MultiPublisher) PublishStatus(s Status) {
	for _, p := range m {
		p.PublishStatus(s)
	}
}

// Discard drops every event.
type Discard struct{}

func (Discard) PublishState(scoreboard.MatchState) {}
func (Discard) PublishDiagnostic(Diagnostic)       {}
func (Discard) PublishStatus(Status)               {}

// FailureRecorder persists rejected frames.
type FailureRecorder interface {
	Record(f *scoreboard.DecodeFailure) error
}
