package scoreboard

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrMalformed    = errors.New("scoreboard: malformed frame")
	ErrUnrecognized = errors.New("scoreboard: unrecognized frame")
)

// FailureKind classifies a frame that could not be decoded.
type FailureKind int

const (
	// Malformed frames have the wrong length or non-numeric fields.
	Malformed FailureKind = iota
	// Unrecognized frames matched no known layout.
	Unrecognized
)

func (k FailureKind) String() string {
	switch k {
	case Malformed:
		return "Malformed"
	case Unrecognized:
		return "Unrecognized"
	default:
		return fmt.Sprintf("FailureKind(%d)", int(k))
	}
}

// DecodeFailure carries the original frame text of a rejected frame so it can
// be written to the failure log.
type DecodeFailure struct {
	Kind    FailureKind
	Raw     string    // frame text exactly as received
	Cleaned string    // text the strategy actually inspected
	Reason  string    // short human-readable cause
	Time    time.Time // when the frame was rejected
	Err     error     // underlying parse error or recovered panic, if any
}

func (f *DecodeFailure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("scoreboard: %s frame %q: %s: %v", f.Kind, f.Raw, f.Reason, f.Err)
	}
	return fmt.Sprintf("scoreboard: %s frame %q: %s", f.Kind, f.Raw, f.Reason)
}

func (f *DecodeFailure) Unwrap() error { return f.Err }

// Is lets errors.Is match a failure against ErrMalformed or ErrUnrecognized.
func (f *DecodeFailure) Is(target error) bool {
	switch target {
	case ErrMalformed:
		return f.Kind == Malformed
	case ErrUnrecognized:
		return f.Kind == Unrecognized
	}
	return false
}

func newFailure(kind FailureKind, raw, cleaned, reason string, err error) *DecodeFailure {
	return &DecodeFailure{
		Kind:    kind,
		Raw:     raw,
		Cleaned: cleaned,
		Reason:  reason,
		Time:    time.Now(),
		Err:     err,
	}
}
