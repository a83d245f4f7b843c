// Package logger keeps the append-only record of frames the decoder
// rejected. The file is only ever appended to; nothing here truncates or
// rotates it.
package logger

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/shaunagostinho/scoreboard-dash/internal/scoreboard"
)

// DefaultPath is used when no path is configured.
const DefaultPath = "scoreboard_malformed.log"

const timeLayout = "2006-01-02 15:04:05"

// FailureLog appends one line per rejected frame.
type FailureLog struct {
	mu      sync.Mutex
	path    string
	enabled bool

	file  *os.File
	lines int
}

// Config holds failure log configuration.
type Config struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`
}

// New creates a FailureLog. The file is opened lazily on the first Record.
func New(cfg Config) *FailureLog {
	if cfg.Path == "" {
		cfg.Path = DefaultPath
	}
	return &FailureLog{path: cfg.Path, enabled: cfg.Enabled}
}

// Path returns the file being appended to.
func (l *FailureLog) Path() string { return l.path }

// SetEnabled toggles recording at runtime.
func (l *FailureLog) SetEnabled(on bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enabled = on
	if !on {
		l.closeFile()
	}
}

// IsEnabled returns whether failures are being recorded.
func (l *FailureLog) IsEnabled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.enabled
}

// Lines reports how many lines this process has appended.
func (l *FailureLog) Lines() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lines
}

// Record appends f as a single line. While the file is disabled the line
// goes to the process log instead.
func (l *FailureLog) Record(f *scoreboard.DecodeFailure) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if f == nil {
		return nil
	}
	if !l.enabled {
		log.Printf("[faillog] %s", strings.TrimSuffix(FormatLine(f), "\n"))
		return nil
	}
	if l.file == nil {
		if err := l.openFile(); err != nil {
			return err
		}
	}
	if _, err := l.file.WriteString(FormatLine(f)); err != nil {
		return fmt.Errorf("append %s: %w", l.path, err)
	}
	l.lines++
	return nil
}

// Close closes the file. A later Record reopens it in append mode.
func (l *FailureLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closeFile()
}

// FormatLine renders f as one newline-terminated line. Raw and cleaned text
// are quoted so control bytes and embedded newlines never split an entry.
func FormatLine(f *scoreboard.DecodeFailure) string {
	ts := f.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	reason := f.Reason
	if f.Err != nil {
		reason = fmt.Sprintf("%s: %v", reason, f.Err)
	}
	return fmt.Sprintf("%s data: %q (cleaned: %q) reason: %q at %s\n",
		f.Kind, f.Raw, f.Cleaned, reason, ts.Format(timeLayout))
}

func (l *FailureLog) openFile() error {
	if dir := filepath.Dir(l.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open %s: %w", l.path, err)
	}
	l.file = f
	log.Printf("[faillog] appending to %s", l.path)
	return nil
}

func (l *FailureLog) closeFile() error {
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}
