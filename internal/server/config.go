package server

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/shaunagostinho/scoreboard-dash/internal/ingest"
	"github.com/shaunagostinho/scoreboard-dash/internal/logger"
	"github.com/shaunagostinho/scoreboard-dash/internal/scoreboard"
	"github.com/shaunagostinho/scoreboard-dash/internal/serialport"
)

// Deployment profiles. Each hardware revision speaks one of these.
const (
	ProfilePattern    = "pattern"    // 115200 baud, newline framing, pattern frames
	ProfilePositional = "positional" // 9600 baud, newline-or-tab framing, fixed-width frames
)

// Config holds all dashboard configuration.
type Config struct {
	mu sync.RWMutex

	// Serial link to the scoreboard controller
	Serial  SerialConfig  `yaml:"serial" json:"serial"`
	Decoder DecoderConfig `yaml:"decoder" json:"decoder"`

	// Rejected-frame log. Append-only; never rotated.
	FailureLog logger.Config `yaml:"failure_log" json:"failureLog"`

	// Process log
	Logging LoggingConfig `yaml:"logging" json:"logging"`

	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`
	MQTT    MQTTConfig    `yaml:"mqtt" json:"mqtt"`

	// Server
	Server ServerConfig `yaml:"server" json:"server"`

	path string // file path for save/load
}

type SerialConfig struct {
	Port            string `yaml:"port" json:"port"`       // e.g. /dev/ttyUSB0, or "demo"; empty waits for the operator
	Profile         string `yaml:"profile" json:"profile"` // "pattern" or "positional"
	BaudRate        int    `yaml:"baud_rate" json:"baudRate"`
	ReadTimeoutMs   int    `yaml:"read_timeout_ms" json:"readTimeoutMs"`
	PollIntervalMs  int    `yaml:"poll_interval_ms" json:"pollIntervalMs"`
	RetryDelayMs    int    `yaml:"retry_delay_ms" json:"retryDelayMs"`
	StartupAttempts int    `yaml:"startup_attempts" json:"startupAttempts"`
	JoinTimeoutMs   int    `yaml:"join_timeout_ms" json:"joinTimeoutMs"`
}

// DecoderConfig overrides the profile's framing and strategy when set.
type DecoderConfig struct {
	Framing  string `yaml:"framing" json:"framing"`   // "newline" or "newline-tab"
	Strategy string `yaml:"strategy" json:"strategy"` // "pattern" or "positional"
}

type LoggingConfig struct {
	File       string `yaml:"file" json:"file"` // empty logs to stderr only
	MaxSizeMB  int    `yaml:"max_size_mb" json:"maxSizeMb"`
	MaxBackups int    `yaml:"max_backups" json:"maxBackups"`
	MaxAgeDays int    `yaml:"max_age_days" json:"maxAgeDays"`
	Compress   bool   `yaml:"compress" json:"compress"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`
}

type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled" json:"enabled"`
	Broker      string `yaml:"broker" json:"broker"` // tcp://host:1883
	ClientID    string `yaml:"client_id" json:"clientId"`
	Topic       string `yaml:"topic" json:"topic"` // prefix; /state, /status, /diagnostic are appended
	QoS         int    `yaml:"qos" json:"qos"`
	Retain      bool   `yaml:"retain" json:"retain"`
	Diagnostics bool   `yaml:"diagnostics" json:"diagnostics"` // also publish the debug feed
}

type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr" json:"listenAddr"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Serial: SerialConfig{
			Port:            "",
			Profile:         ProfilePattern,
			BaudRate:        0, // from profile
			ReadTimeoutMs:   1000,
			PollIntervalMs:  100,
			RetryDelayMs:    1000,
			StartupAttempts: 1,
			JoinTimeoutMs:   2000,
		},
		FailureLog: logger.Config{
			Enabled: true,
			Path:    logger.DefaultPath,
		},
		Logging: LoggingConfig{
			File:       "",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
			Compress:   false,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		MQTT: MQTTConfig{
			Enabled:  false,
			Broker:   "tcp://127.0.0.1:1883",
			ClientID: "scoreboard-dash",
			Topic:    "scoreboard",
			QoS:      0,
		},
		Server: ServerConfig{
			ListenAddr: ":8080",
		},
	}
}

// LoadConfig reads config from a YAML file, then applies .env and environment
// variable overrides. Falls back to defaults if YAML not found.
func LoadConfig(path string) *Config {
	cfg := DefaultConfig()
	cfg.path = path

	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("[config] no config at %s, using defaults", path)
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		log.Printf("[config] error parsing %s: %v, using defaults", path, err)
		cfg = DefaultConfig()
		cfg.path = path
	} else {
		log.Printf("[config] loaded from %s", path)
	}

	// Load .env file from the same directory as the config, or from CWD
	envPaths := []string{
		filepath.Join(filepath.Dir(path), ".env"),
		".env",
	}
	for _, ep := range envPaths {
		loadEnvFile(ep)
	}

	cfg.applyEnvOverrides()
	return cfg
}

// loadEnvFile reads a simple KEY=VALUE .env file and sets os env vars.
func loadEnvFile(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	log.Printf("[config] loading .env from %s", path)
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		val := strings.Trim(strings.TrimSpace(parts[1]), `"'`)
		// Real env takes precedence
		if os.Getenv(key) == "" {
			os.Setenv(key, val)
		}
	}
}

// applyEnvOverrides reads environment variables and overrides config values.
// Supported: SCOREBOARD_PORT, SCOREBOARD_PROFILE, SCOREBOARD_BAUD,
// SCOREBOARD_FRAMING, SCOREBOARD_STRATEGY, FAILURE_LOG_PATH, LOG_FILE,
// LISTEN_ADDR, METRICS_ENABLED, MQTT_ENABLED, MQTT_BROKER, MQTT_TOPIC
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("SCOREBOARD_PORT"); v != "" {
		c.Serial.Port = v
	}
	if v := os.Getenv("SCOREBOARD_PROFILE"); v != "" {
		c.Serial.Profile = v
	}
	if v := os.Getenv("SCOREBOARD_BAUD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Serial.BaudRate = n
		}
	}
	if v := os.Getenv("SCOREBOARD_FRAMING"); v != "" {
		c.Decoder.Framing = v
	}
	if v := os.Getenv("SCOREBOARD_STRATEGY"); v != "" {
		c.Decoder.Strategy = v
	}
	if v := os.Getenv("FAILURE_LOG_PATH"); v != "" {
		c.FailureLog.Path = v
	}
	if v := os.Getenv("LOG_FILE"); v != "" {
		c.Logging.File = v
	}
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		c.Server.ListenAddr = v
	}
	if v := os.Getenv("METRICS_ENABLED"); v != "" {
		c.Metrics.Enabled = truthy(v)
	}
	if v := os.Getenv("MQTT_ENABLED"); v != "" {
		c.MQTT.Enabled = truthy(v)
	}
	if v := os.Getenv("MQTT_BROKER"); v != "" {
		c.MQTT.Broker = v
	}
	if v := os.Getenv("MQTT_TOPIC"); v != "" {
		c.MQTT.Topic = v
	}
}

func truthy(v string) bool {
	return v == "1" || v == "true" || v == "yes"
}

// IngestSettings resolves the deployment profile plus explicit overrides into
// reader settings. An unknown profile, framing or strategy is an error; an
// unknown baud rate is left for the port open to reject.
func (c *Config) IngestSettings(debug bool) (ingest.Settings, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var s ingest.Settings
	switch strings.ToLower(c.Serial.Profile) {
	case "", ProfilePattern:
		s.Baud = serialport.Baud115200
		s.Framing = scoreboard.FramingNewline
		s.Strategy = scoreboard.StrategyPattern
	case ProfilePositional:
		s.Baud = serialport.Baud9600
		s.Framing = scoreboard.FramingNewlineTab
		s.Strategy = scoreboard.StrategyPositional
	default:
		return s, fmt.Errorf("config: unknown serial profile %q", c.Serial.Profile)
	}

	if c.Serial.BaudRate != 0 {
		s.Baud = c.Serial.BaudRate
	}
	if c.Decoder.Framing != "" {
		f, err := scoreboard.ParseFraming(c.Decoder.Framing)
		if err != nil {
			return s, fmt.Errorf("config: %w", err)
		}
		s.Framing = f
	}
	if c.Decoder.Strategy != "" {
		st, err := scoreboard.ParseStrategy(c.Decoder.Strategy)
		if err != nil {
			return s, fmt.Errorf("config: %w", err)
		}
		s.Strategy = st
	}

	s.PollInterval = ms(c.Serial.PollIntervalMs)
	s.RetryDelay = ms(c.Serial.RetryDelayMs)
	s.JoinTimeout = ms(c.Serial.JoinTimeoutMs)
	s.Debug = debug
	return s, nil
}

// ReadTimeout is the bound on a single serial read.
func (c *Config) ReadTimeout() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.Serial.ReadTimeoutMs <= 0 {
		return time.Second
	}
	return ms(c.Serial.ReadTimeoutMs)
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

// Save writes the config to its YAML file.
func (c *Config) Save() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.path == "" {
		c.path = "/etc/scoreboard-dash/config.yaml"
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(c.path, data, 0644)
}

// ToJSON serializes config for the API.
func (c *Config) ToJSON() ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return json.Marshal(c)
}

// UpdateFromJSON applies a partial JSON config update by deep-merging
// incoming fields into the existing config. Fields not present in the
// incoming JSON are preserved.
func (c *Config) UpdateFromJSON(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	currentBytes, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal current config: %w", err)
	}
	var base map[string]interface{}
	if err := json.Unmarshal(currentBytes, &base); err != nil {
		return fmt.Errorf("unmarshal current config: %w", err)
	}

	var patch map[string]interface{}
	if err := json.Unmarshal(data, &patch); err != nil {
		return fmt.Errorf("unmarshal patch: %w", err)
	}

	deepMerge(base, patch)

	merged, err := json.Marshal(base)
	if err != nil {
		return fmt.Errorf("marshal merged config: %w", err)
	}
	return json.Unmarshal(merged, c)
}

// deepMerge recursively merges src into dst. For nested maps, values are
// merged rather than replaced. For all other types, src overwrites dst.
func deepMerge(dst, src map[string]interface{}) {
	for key, srcVal := range src {
		if srcMap, ok := srcVal.(map[string]interface{}); ok {
			if dstMap, ok := dst[key].(map[string]interface{}); ok {
				deepMerge(dstMap, srcMap)
				continue
			}
		}
		dst[key] = srcVal
	}
}
