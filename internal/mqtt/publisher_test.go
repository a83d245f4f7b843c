package mqtt

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaunagostinho/scoreboard-dash/internal/ingest"
	"github.com/shaunagostinho/scoreboard-dash/internal/scoreboard"
)

type doneToken struct{}

func (doneToken) Wait() bool                     { return true }
func (doneToken) WaitTimeout(time.Duration) bool { return true }
func (doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (doneToken) Error() error { return nil }

type sent struct {
	topic   string
	qos     byte
	retain  bool
	payload []byte
}

type fakeSender struct {
	mu  sync.Mutex
	got []sent
}

func (f *fakeSender) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = append(f.got, sent{topic, qos, retained, payload.([]byte)})
	return doneToken{}
}

func (f *fakeSender) messages() []sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sent(nil), f.got...)
}

func TestPublishState(t *testing.T) {
	fs := &fakeSender{}
	p := newPublisher(fs, Options{Topic: "polo/field1", QoS: 1, Retain: true})

	p.PublishState(scoreboard.MatchState{Clock: "06:59", Home: 3, Away: 2})

	msgs := fs.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "polo/field1/state", msgs[0].topic)
	assert.Equal(t, byte(1), msgs[0].qos)
	assert.True(t, msgs[0].retain)

	var env struct {
		ID   string            `json:"id"`
		Type string            `json:"type"`
		Data map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(msgs[0].payload, &env))
	assert.NotEmpty(t, env.ID)
	assert.Equal(t, "state", env.Type)
	assert.Equal(t, map[string]string{"time": "06:59", "home": "3", "away": "2"}, env.Data)
}

func TestDiagnosticsAreOptIn(t *testing.T) {
	fs := &fakeSender{}
	p := newPublisher(fs, Options{Topic: "sb"})
	p.PublishDiagnostic(ingest.NewDiagnosticText(ingest.SeverityRaw, "1D207033312"))
	assert.Empty(t, fs.messages())

	p = newPublisher(fs, Options{Topic: "sb", Retain: true, Diagnostics: true})
	p.PublishDiagnostic(ingest.NewDiagnosticText(ingest.SeverityRaw, "1D207033312"))
	msgs := fs.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "sb/diagnostic", msgs[0].topic)
	assert.False(t, msgs[0].retain, "diagnostics are never retained")
}

func TestPublishStatus(t *testing.T) {
	fs := &fakeSender{}
	p := newPublisher(fs, Options{Topic: "sb"})
	p.PublishStatus(ingest.Status{Connected: true, Port: "/dev/ttyUSB0", State: "streaming"})

	msgs := fs.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "sb/status", msgs[0].topic)
	assert.Contains(t, string(msgs[0].payload), `"port":"/dev/ttyUSB0"`)
}

func TestBuildMessageWithoutPrefix(t *testing.T) {
	topic, payload, err := buildMessage("", "state", scoreboard.DefaultState())
	require.NoError(t, err)
	assert.Equal(t, "state", topic)
	assert.Contains(t, string(payload), `"time":"00:00"`)
}
