package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Logger handles application logging. Output goes to stderr and, once Init
// has been called, to a run-numbered daily file in the log directory.
type Logger struct {
	mu      sync.Mutex
	file    *os.File
	console io.Writer
	level   zerolog.Level
	zl      zerolog.Logger
}

// NewLogger creates a new Logger instance writing to stderr at info level.
func NewLogger() *Logger {
	l := &Logger{console: os.Stderr, level: zerolog.InfoLevel}
	l.rebuild()
	return l
}

// NewWithWriter creates a Logger that writes JSON lines to w only. Used by tests.
func NewWithWriter(w io.Writer) *Logger {
	l := &Logger{level: zerolog.DebugLevel}
	l.zl = zerolog.New(w).Level(l.level).With().Timestamp().Logger()
	return l
}

// SetLevel parses a zerolog level name; unknown names leave the level unchanged.
func (l *Logger) SetLevel(name string) error {
	lvl, err := zerolog.ParseLevel(name)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", name, err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = lvl
	l.zl = l.zl.Level(lvl)
	return nil
}

// Init initializes the logging to a file in the specified directory
func (l *Logger) Init(logDir string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		l.file.Close()
		l.file = nil
	}

	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return fmt.Errorf("failed to create log dir: %w", err)
	}

	dateStr := time.Now().Format("2006-01-02")
	pattern := filepath.Join(logDir, fmt.Sprintf("supplychat_%s_*.log", dateStr))
	matches, _ := filepath.Glob(pattern)
	runCount := len(matches) + 1
	filename := filepath.Join(logDir, fmt.Sprintf("supplychat_%s_%d.log", dateStr, runCount))

	f, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	l.file = f
	l.rebuild()
	l.zl.Info().Str("file", filename).Msg("App Started")
	return nil
}

func (l *Logger) rebuild() {
	var writers []io.Writer
	if l.console != nil {
		writers = append(writers, zerolog.ConsoleWriter{Out: l.console, TimeFormat: "15:04:05.000"})
	}
	if l.file != nil {
		writers = append(writers, l.file)
	}
	var out io.Writer = io.Discard
	if len(writers) > 0 {
		out = zerolog.MultiLevelWriter(writers...)
	}
	l.zl = zerolog.New(out).Level(l.level).With().Timestamp().Logger()
}

// Zerolog returns the structured logger components should log through.
func (l *Logger) Zerolog() zerolog.Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.zl
}

// Log writes a message at info level
func (l *Logger) Log(message string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.zl.Info().Msg(message)
}

// Logf writes a formatted message at info level
func (l *Logger) Logf(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.zl.Info().Msgf(format, args...)
}

// Close closes the log file
func (l *Logger) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		l.zl.Info().Msg("Logging disabled or App stopped.")
		l.file.Close()
		l.file = nil
		l.rebuild()
	}
}
