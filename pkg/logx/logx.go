// Package logx provides the structured, rotating logger shared by every
// component of the core. It follows the teacher's own logging shape (a
// single *log.Logger writing timestamped lines, plus a stderr echo for
// user-facing messages) but actually wires the rotating writer the
// teacher depended on but never used.
package logx

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is a leveled, rotating-file logger with an optional stderr echo.
type Logger struct {
	mu      sync.Mutex
	file    *lumberjack.Logger
	std     *log.Logger
	echo    bool
	quiet   bool // suppress stderr echo even when echo is true (batch mode)
}

var (
	global     *Logger
	globalOnce sync.Once
)

// Default returns the process-wide logger, creating it on first use under
// the per-user data directory (see dataDir below).
func Default() *Logger {
	globalOnce.Do(func() {
		dir, err := dataDir()
		if err != nil {
			dir = "."
		}
		global = New(filepath.Join(dir, "angela.log"))
	})
	return global
}

// New creates a logger writing rotated logs at path.
func New(path string) *Logger {
	if dir := filepath.Dir(path); dir != "" {
		_ = os.MkdirAll(dir, 0o755)
	}
	fileLogger := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // megabytes
		MaxBackups: 5,
		MaxAge:     28, // days
		Compress:   true,
	}
	return &Logger{
		file: fileLogger,
		std:  log.New(fileLogger, "", log.LstdFlags),
		echo: true,
	}
}

// SetEcho toggles whether Info/Warn/Error also print to stderr.
func (l *Logger) SetEcho(echo bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.echo = echo
}

func (l *Logger) Close() error { return l.file.Close() }

func (l *Logger) log(level, format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	msg := fmt.Sprintf(format, args...)
	l.std.Printf("[%s] %s", strings.ToUpper(level), msg)
	if l.echo && !l.quiet {
		fmt.Fprintf(os.Stderr, "%s\n", msg)
	}
}

func (l *Logger) Debug(format string, args ...any) { l.log("debug", format, args...) }
func (l *Logger) Info(format string, args ...any)  { l.log("info", format, args...) }
func (l *Logger) Warn(format string, args ...any)  { l.log("warn", format, args...) }
func (l *Logger) Error(format string, args ...any) { l.log("error", format, args...) }

func dataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".angela"), nil
}
