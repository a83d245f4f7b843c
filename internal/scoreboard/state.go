package scoreboard

import (
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
)

// MatchState is the decoded clock / home score / away score triple shown on
// the display.
type MatchState struct {
	Clock string // "MM:SS"
	Home  int
	Away  int

	// Raw is the JSON object a structured frame carried when its values were
	// not in the canonical shape. It is re-emitted unchanged.
	Raw json.RawMessage
}

// DefaultState is the state held before any frame has been decoded.
func DefaultState() MatchState {
	return MatchState{Clock: "00:00", Home: 0, Away: 0}
}

func (m MatchState) String() string {
	return fmt.Sprintf("Time: %s, Home: %d, Away: %d", m.Clock, m.Home, m.Away)
}

// wireState is the JSON shape the dashboard pages consume. Scores travel as
// strings without leading zeros.
type wireState struct {
	Time string `json:"time"`
	Home string `json:"home"`
	Away string `json:"away"`
}

func (m MatchState) MarshalJSON() ([]byte, error) {
	if len(m.Raw) > 0 {
		return m.Raw, nil
	}
	return json.Marshal(wireState{
		Time: m.Clock,
		Home: strconv.Itoa(m.Home),
		Away: strconv.Itoa(m.Away),
	})
}

func (m *MatchState) UnmarshalJSON(data []byte) error {
	st, err := stateFromJSON(data)
	if err != nil {
		return err
	}
	*m = st
	return nil
}

// Store holds the single current MatchState. Update is the only mutator and
// replaces the slot wholesale; no history is kept.
type Store struct {
	mu    sync.RWMutex
	state MatchState
}

// NewStore returns a store holding DefaultState.
func NewStore() *Store {
	return &Store{state: DefaultState()}
}

// Current returns the latest state.
func (s *Store) Current() MatchState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Update replaces the current state.
func (s *Store) Update(st MatchState) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}
