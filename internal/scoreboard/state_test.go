package scoreboard

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreDefaults(t *testing.T) {
	s := NewStore()
	assert.Equal(t, MatchState{Clock: "00:00"}, s.Current())
}

func TestStoreUpdateReplaces(t *testing.T) {
	s := NewStore()
	s.Update(MatchState{Clock: "12:33", Home: 7, Away: 3})
	s.Update(MatchState{Clock: "12:32", Home: 8, Away: 3})
	assert.Equal(t, MatchState{Clock: "12:32", Home: 8, Away: 3}, s.Current())
}

func TestStoreConcurrentReaders(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				st := s.Current()
				assert.Len(t, st.Clock, 5)
			}
		}()
	}
	for j := 0; j < 100; j++ {
		s.Update(MatchState{Clock: "00:01", Home: j % 100})
	}
	wg.Wait()
}

func TestMatchStateJSON(t *testing.T) {
	data, err := json.Marshal(MatchState{Clock: "12:33", Home: 7, Away: 3})
	require.NoError(t, err)
	assert.JSONEq(t, `{"time":"12:33","home":"7","away":"3"}`, string(data))

	var back MatchState
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, MatchState{Clock: "12:33", Home: 7, Away: 3}, back)
}
