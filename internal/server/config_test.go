package server

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaunagostinho/scoreboard-dash/internal/scoreboard"
	"github.com/shaunagostinho/scoreboard-dash/internal/serialport"
)

func TestDefaultConfigSettings(t *testing.T) {
	s, err := DefaultConfig().IngestSettings(false)
	require.NoError(t, err)
	assert.Equal(t, serialport.Baud115200, s.Baud)
	assert.Equal(t, scoreboard.FramingNewline, s.Framing)
	assert.Equal(t, scoreboard.StrategyPattern, s.Strategy)
	assert.Equal(t, 100*time.Millisecond, s.PollInterval)
	assert.Equal(t, time.Second, s.RetryDelay)
	assert.Equal(t, 2*time.Second, s.JoinTimeout)
}

func TestProfiles(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Serial.Profile = ProfilePositional
	s, err := cfg.IngestSettings(true)
	require.NoError(t, err)
	assert.Equal(t, serialport.Baud9600, s.Baud)
	assert.Equal(t, scoreboard.FramingNewlineTab, s.Framing)
	assert.Equal(t, scoreboard.StrategyPositional, s.Strategy)
	assert.True(t, s.Debug)

	// Explicit settings win over the profile.
	cfg.Serial.BaudRate = serialport.Baud115200
	cfg.Decoder.Framing = "newline"
	s, err = cfg.IngestSettings(false)
	require.NoError(t, err)
	assert.Equal(t, serialport.Baud115200, s.Baud)
	assert.Equal(t, scoreboard.FramingNewline, s.Framing)
	assert.Equal(t, scoreboard.StrategyPositional, s.Strategy)
}

func TestIngestSettingsRejectsUnknownValues(t *testing.T) {
	for name, mutate := range map[string]func(*Config){
		"profile":  func(c *Config) { c.Serial.Profile = "v3" },
		"framing":  func(c *Config) { c.Decoder.Framing = "crlf-only" },
		"strategy": func(c *Config) { c.Decoder.Strategy = "guess" },
	} {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(cfg)
			_, err := cfg.IngestSettings(false)
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigYAMLAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
serial:
  port: /dev/ttyUSB3
  profile: positional
failure_log:
  path: /tmp/bad.log
server:
  listen_addr: ":9000"
`), 0644))

	t.Setenv("SCOREBOARD_STRATEGY", "pattern")
	t.Setenv("MQTT_ENABLED", "yes")
	t.Setenv("LISTEN_ADDR", ":9100")

	cfg := LoadConfig(path)
	assert.Equal(t, "/dev/ttyUSB3", cfg.Serial.Port)
	assert.Equal(t, ProfilePositional, cfg.Serial.Profile)
	assert.Equal(t, "/tmp/bad.log", cfg.FailureLog.Path)
	assert.True(t, cfg.FailureLog.Enabled, "unset fields keep defaults")
	assert.Equal(t, "pattern", cfg.Decoder.Strategy)
	assert.True(t, cfg.MQTT.Enabled)
	assert.Equal(t, ":9100", cfg.Server.ListenAddr)
	assert.Equal(t, 1000, cfg.Serial.ReadTimeoutMs)
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Equal(t, ":8080", cfg.Server.ListenAddr)
	assert.Equal(t, ProfilePattern, cfg.Serial.Profile)
	assert.Equal(t, time.Second, cfg.ReadTimeout())
}

func TestLoadEnvFileDoesNotOverrideRealEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("# comment\nSCOREBOARD_PORT='/dev/ttyACM0'\nSCOREBOARD_BAUD=9600\n"), 0644))
	t.Setenv("SCOREBOARD_PORT", "/dev/ttyUSB9")
	t.Setenv("SCOREBOARD_BAUD", "")

	cfg := LoadConfig(filepath.Join(dir, "config.yaml"))
	assert.Equal(t, "/dev/ttyUSB9", cfg.Serial.Port)
	assert.Equal(t, 9600, cfg.Serial.BaudRate)
}

func TestUpdateFromJSONDeepMerges(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Serial.Port = "/dev/ttyUSB0"

	require.NoError(t, cfg.UpdateFromJSON([]byte(`{"serial":{"profile":"positional"},"mqtt":{"topic":"field2"}}`)))
	assert.Equal(t, ProfilePositional, cfg.Serial.Profile)
	assert.Equal(t, "/dev/ttyUSB0", cfg.Serial.Port)
	assert.Equal(t, 1000, cfg.Serial.RetryDelayMs)
	assert.Equal(t, "field2", cfg.MQTT.Topic)
	assert.Equal(t, "tcp://127.0.0.1:1883", cfg.MQTT.Broker)

	assert.Error(t, cfg.UpdateFromJSON([]byte(`not json`)))
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := LoadConfig(path)
	cfg.Serial.Port = "demo"
	cfg.Decoder.Framing = "newline-tab"
	require.NoError(t, cfg.Save())

	again := LoadConfig(path)
	assert.Equal(t, "demo", again.Serial.Port)
	assert.Equal(t, "newline-tab", again.Decoder.Framing)
}
