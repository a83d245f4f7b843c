package scoreboard

import (
	"fmt"
	"strconv"
	"strings"
)

// splitClock parses "MM:SS" into minutes and seconds.
func splitClock(clock string) (int, int, error) {
	mm, ss, ok := strings.Cut(clock, ":")
	if !ok {
		return 0, 0, fmt.Errorf("scoreboard: clock %q is not MM:SS", clock)
	}
	m, err := strconv.Atoi(mm)
	if err != nil {
		return 0, 0, fmt.Errorf("scoreboard: clock minutes %q: %w", mm, err)
	}
	s, err := strconv.Atoi(ss)
	if err != nil {
		return 0, 0, fmt.Errorf("scoreboard: clock seconds %q: %w", ss, err)
	}
	return m, s, nil
}

func checkTwoDigits(name string, v int) error {
	if v < 0 || v > 99 {
		return fmt.Errorf("scoreboard: %s %d does not fit two digits", name, v)
	}
	return nil
}

// EncodePositional renders st in the 13 character fixed-width layout:
// channel(1) status(2) minutes(2) seconds(2) ms(2) home(2) away(2).
func EncodePositional(st MatchState, channel, status, millis int) (string, error) {
	m, s, err := splitClock(st.Clock)
	if err != nil {
		return "", err
	}
	if channel < 0 || channel > 9 {
		return "", fmt.Errorf("scoreboard: channel %d is not a single digit", channel)
	}
	for _, f := range []struct {
		name string
		v    int
	}{
		{"status", status}, {"minutes", m}, {"seconds", s},
		{"milliseconds", millis}, {"home score", st.Home}, {"away score", st.Away},
	} {
		if err := checkTwoDigits(f.name, f.v); err != nil {
			return "", err
		}
	}
	return fmt.Sprintf("%d%02d%02d%02d%02d%02d%02d", channel, status, m, s, millis, st.Home, st.Away), nil
}

// EncodePattern renders st behind a channel marker such as "1D2": home, away,
// seconds, minutes. mode must be 'D' or 'T'.
func EncodePattern(st MatchState, channel int, mode byte, subchannel int) (string, error) {
	m, s, err := splitClock(st.Clock)
	if err != nil {
		return "", err
	}
	if mode != 'D' && mode != 'T' {
		return "", fmt.Errorf("scoreboard: mode %q is not D or T", mode)
	}
	if channel < 0 || channel > 9 || subchannel < 0 || subchannel > 9 {
		return "", fmt.Errorf("scoreboard: channel %d%c%d is not single digits", channel, mode, subchannel)
	}
	for _, f := range []struct {
		name string
		v    int
	}{
		{"home score", st.Home}, {"away score", st.Away}, {"seconds", s}, {"minutes", m},
	} {
		if err := checkTwoDigits(f.name, f.v); err != nil {
			return "", err
		}
	}
	return fmt.Sprintf("%d%c%d%02d%02d%02d%02d", channel, mode, subchannel, st.Home, st.Away, s, m), nil
}
