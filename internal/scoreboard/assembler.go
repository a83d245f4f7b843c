package scoreboard

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Framing selects which characters terminate a frame.
type Framing int

const (
	// FramingNewline splits on '\n' only.
	FramingNewline Framing = iota
	// FramingNewlineTab splits on '\n' or '\t'. Some firmware revisions
	// terminate frames with a tab.
	FramingNewlineTab
)

// DefaultMaxPending bounds the unterminated tail. A link that never sends a
// boundary would otherwise grow the buffer forever.
const DefaultMaxPending = 4096

func (f Framing) String() string {
	switch f {
	case FramingNewline:
		return "newline"
	case FramingNewlineTab:
		return "newline-tab"
	default:
		return fmt.Sprintf("Framing(%d)", int(f))
	}
}

// ParseFraming maps a config value to a Framing.
func ParseFraming(s string) (Framing, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "newline", "lf", "\\n":
		return FramingNewline, nil
	case "newline-tab", "newline_tab", "tab", "lf-tab":
		return FramingNewlineTab, nil
	}
	return FramingNewline, fmt.Errorf("scoreboard: unknown framing %q", s)
}

func (f Framing) boundaries() string {
	if f == FramingNewlineTab {
		return "\n\t"
	}
	return "\n"
}

// Assembler accumulates raw serial bytes and splits them into candidate
// frames. Bytes after the last boundary are carried into the next Feed.
//
// Assembler is not safe for concurrent use; it belongs to one reader loop.
type Assembler struct {
	framing    Framing
	maxPending int

	pending  strings.Builder
	partial  []byte // incomplete UTF-8 sequence split across reads
	overflow int
}

// NewAssembler returns an Assembler for the given framing.
func NewAssembler(framing Framing) *Assembler {
	return &Assembler{framing: framing, maxPending: DefaultMaxPending}
}

// Framing returns the configured framing.
func (a *Assembler) Framing() Framing { return a.framing }

// Feed appends data and returns every frame completed by it, in arrival
// order, trimmed of surrounding whitespace. Empty frames are dropped.
func (a *Assembler) Feed(data []byte) []string {
	if len(data) == 0 {
		return nil
	}
	a.pending.WriteString(a.decodeText(data))

	buf := a.pending.String()
	cut := strings.LastIndexAny(buf, a.framing.boundaries())
	if cut < 0 {
		if a.maxPending > 0 && len(buf) > a.maxPending {
			a.overflow++
			a.pending.Reset()
		}
		return nil
	}

	complete, tail := buf[:cut], buf[cut+1:]
	a.pending.Reset()
	a.pending.WriteString(tail)

	bounds := a.framing.boundaries()
	var frames []string
	for _, seg := range strings.FieldsFunc(complete, func(r rune) bool {
		return strings.ContainsRune(bounds, r)
	}) {
		if seg = strings.TrimSpace(seg); seg != "" {
			frames = append(frames, seg)
		}
	}
	return frames
}

// Pending returns the unterminated tail currently buffered.
func (a *Assembler) Pending() string { return a.pending.String() }

// Overflows reports how many times an unterminated tail exceeded the pending
// limit and was discarded.
func (a *Assembler) Overflows() int { return a.overflow }

// Reset discards any buffered tail, e.g. on disconnect.
func (a *Assembler) Reset() {
	a.pending.Reset()
	a.partial = a.partial[:0]
}

// decodeText converts bytes to text, dropping invalid sequences. A multi-byte
// rune cut off at the end of data is held back for the next call.
func (a *Assembler) decodeText(data []byte) string {
	if len(a.partial) > 0 {
		data = append(append([]byte{}, a.partial...), data...)
		a.partial = a.partial[:0]
	}

	var b strings.Builder
	b.Grow(len(data))
	for i := 0; i < len(data); {
		r, size := utf8.DecodeRune(data[i:])
		if r == utf8.RuneError && size <= 1 {
			if !utf8.FullRune(data[i:]) {
				a.partial = append(a.partial, data[i:]...)
				break
			}
			i++
			continue
		}
		b.WriteRune(r)
		i += size
	}
	return b.String()
}
