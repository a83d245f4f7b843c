package scoreboard

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// Strategy selects how legacy (non-JSON) frames are decoded. The two layouts
// come from different hardware revisions and are kept independent.
type Strategy int

const (
	// StrategyPattern looks for a channel marker such as "1D2" followed by
	// home, away, seconds and minutes, two digits each.
	StrategyPattern Strategy = iota
	// StrategyPositional reads a fixed-width 13 character layout starting
	// at the first digit.
	StrategyPositional
)

func (s Strategy) String() string {
	switch s {
	case StrategyPattern:
		return "pattern"
	case StrategyPositional:
		return "positional"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

// ParseStrategy maps a config value to a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pattern", "regex":
		return StrategyPattern, nil
	case "positional", "fixed", "fixed-width":
		return StrategyPositional, nil
	}
	return StrategyPattern, fmt.Errorf("scoreboard: unknown strategy %q", s)
}

// Variant records which decoder accepted a frame.
type Variant int

const (
	VariantJSON Variant = iota
	VariantPattern
	VariantPositional
)

func (v Variant) String() string {
	switch v {
	case VariantJSON:
		return "json"
	case VariantPattern:
		return "pattern"
	case VariantPositional:
		return "positional"
	default:
		return fmt.Sprintf("Variant(%d)", int(v))
	}
}

// PositionalFrameLen is the minimum usable length of a positional frame:
// channel(1) status(2) minutes(2) seconds(2) ms(2) home(2) away(2).
const PositionalFrameLen = 13

// framePattern matches channel digit, mode letter D or T, channel digit, then
// home, away, seconds, minutes.
var framePattern = regexp.MustCompile(`(\d[DT]\d)(\d{2})(\d{2})(\d{2})(\d{2})`)

// Decoded is a successfully decoded frame.
type Decoded struct {
	State   MatchState
	Variant Variant
	// Details are human-readable notes produced while decoding, surfaced as
	// info diagnostics by the reader.
	Details []string
}

// Decoder turns candidate frames into MatchState values.
//
// Precedence is fixed: a frame that is a JSON object carrying time, home and
// away is taken as-is; anything else goes to the configured strategy.
type Decoder struct {
	strategy Strategy
}

// NewDecoder returns a Decoder using strategy for legacy frames.
func NewDecoder(strategy Strategy) *Decoder {
	return &Decoder{strategy: strategy}
}

// Strategy returns the configured legacy strategy.
func (d *Decoder) Strategy() Strategy { return d.strategy }

// Decode never panics. A failed decode returns a *DecodeFailure that keeps
// the original text.
func (d *Decoder) Decode(frame string) (dec Decoded, err error) {
	defer func() {
		if r := recover(); r != nil {
			dec = Decoded{}
			err = newFailure(Malformed, frame, frame, "decoder fault", fmt.Errorf("panic: %v", r))
		}
	}()

	if st, ok := decodeJSON(frame); ok {
		return Decoded{State: st, Variant: VariantJSON}, nil
	}

	switch d.strategy {
	case StrategyPositional:
		return decodePositional(frame)
	default:
		return decodePattern(frame)
	}
}

// decodeJSON reports ok=false when the frame is not a JSON object with all
// three keys, so the legacy strategy gets a chance at it.
func decodeJSON(frame string) (MatchState, bool) {
	trimmed := strings.TrimSpace(frame)
	if !strings.HasPrefix(trimmed, "{") {
		return MatchState{}, false
	}
	st, err := stateFromJSON([]byte(trimmed))
	if err != nil {
		return MatchState{}, false
	}
	return st, true
}

func stateFromJSON(data []byte) (MatchState, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return MatchState{}, err
	}
	for _, k := range []string{"time", "home", "away"} {
		if _, ok := fields[k]; !ok {
			return MatchState{}, fmt.Errorf("missing %q", k)
		}
	}
	return stateFromFields(data, fields)
}

// stateFromFields takes values verbatim; digit widths are not re-checked.
// Scores that are not plain integers read as 0, and the object is kept in
// Raw so it goes back out exactly as it came in.
func stateFromFields(data []byte, fields map[string]json.RawMessage) (MatchState, error) {
	clock, canonical := jsonText(fields["time"])
	st := MatchState{Clock: clock}

	homeText, homeQuoted := jsonText(fields["home"])
	awayText, awayQuoted := jsonText(fields["away"])
	home, homeOK := scoreValue(homeText)
	away, awayOK := scoreValue(awayText)
	if homeOK {
		st.Home = home
	}
	if awayOK {
		st.Away = away
	}

	canonical = canonical && len(fields) == 3 &&
		homeQuoted && homeOK && homeText == strconv.Itoa(home) &&
		awayQuoted && awayOK && awayText == strconv.Itoa(away)
	if !canonical {
		var buf bytes.Buffer
		if err := json.Compact(&buf, data); err != nil {
			return MatchState{}, err
		}
		st.Raw = json.RawMessage(buf.Bytes())
	}
	return st, nil
}

// jsonText returns a string value unquoted, or any other value as its
// literal JSON text. quoted reports which it was.
func jsonText(raw json.RawMessage) (text string, quoted bool) {
	raw = bytes.TrimSpace(raw)
	var s string
	if len(raw) > 0 && raw[0] == '"' && json.Unmarshal(raw, &s) == nil {
		return s, true
	}
	return string(raw), false
}

func scoreValue(text string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func decodePattern(frame string) (Decoded, error) {
	m := framePattern.FindStringSubmatch(frame)
	if m == nil {
		return Decoded{}, newFailure(Unrecognized, frame, frame, "no pattern match", nil)
	}
	command := m[1]
	home, err := strconv.Atoi(m[2])
	if err != nil {
		return Decoded{}, newFailure(Malformed, frame, m[0], "home score", err)
	}
	away, err := strconv.Atoi(m[3])
	if err != nil {
		return Decoded{}, newFailure(Malformed, frame, m[0], "away score", err)
	}
	seconds, err := strconv.Atoi(m[4])
	if err != nil {
		return Decoded{}, newFailure(Malformed, frame, m[0], "seconds", err)
	}
	minutes, err := strconv.Atoi(m[5])
	if err != nil {
		return Decoded{}, newFailure(Malformed, frame, m[0], "minutes", err)
	}

	return Decoded{
		State: MatchState{
			Clock: fmt.Sprintf("%02d:%02d", minutes, seconds),
			Home:  home,
			Away:  away,
		},
		Variant: VariantPattern,
		Details: []string{
			fmt.Sprintf("Found potential scoreboard data pattern: %s", m[0]),
			fmt.Sprintf("Parsed - Command: %s, Home: %d, Away: %d, Seconds: %d, Minutes: %d",
				command, home, away, seconds, minutes),
		},
	}, nil
}

// cleanPositional drops non-printable characters and everything before the
// first decimal digit. Line noise ahead of the channel digit is common.
func cleanPositional(frame string) []rune {
	clean := make([]rune, 0, len(frame))
	for _, r := range frame {
		if unicode.IsPrint(r) {
			clean = append(clean, r)
		}
	}
	for i, r := range clean {
		if r >= '0' && r <= '9' {
			return clean[i:]
		}
	}
	return clean
}

func decodePositional(frame string) (Decoded, error) {
	clean := cleanPositional(frame)
	if len(clean) < PositionalFrameLen {
		return Decoded{}, newFailure(Malformed, frame, string(clean),
			fmt.Sprintf("need %d characters, have %d", PositionalFrameLen, len(clean)), nil)
	}

	channel := string(clean[0:1])
	status := string(clean[1:3])
	minutes := string(clean[3:5])
	seconds := string(clean[5:7])
	home, away := string(clean[9:11]), string(clean[11:13])

	if !isDigits(minutes) || !isDigits(seconds) {
		return Decoded{}, newFailure(Malformed, frame, string(clean), "non-numeric clock", nil)
	}
	h, err := strconv.Atoi(home)
	if err != nil || !isDigits(home) {
		return Decoded{}, newFailure(Malformed, frame, string(clean), "non-numeric home score", err)
	}
	a, err := strconv.Atoi(away)
	if err != nil || !isDigits(away) {
		return Decoded{}, newFailure(Malformed, frame, string(clean), "non-numeric away score", err)
	}

	return Decoded{
		State:   MatchState{Clock: minutes + ":" + seconds, Home: h, Away: a},
		Variant: VariantPositional,
		Details: []string{
			fmt.Sprintf("Parsed - Channel: %s, Status: %s, Minutes: %s, Seconds: %s, Home: %s, Away: %s",
				channel, status, minutes, seconds, home, away),
		},
	}, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
