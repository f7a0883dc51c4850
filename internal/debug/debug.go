// Package debug provides the launcher's debug log.
// Logging is only enabled when --debug (or debug: true in config) is set.
// Logs are written to ~/.launcher/debug.log, truncated on each launch;
// -check -debug sends them to stderr instead.
package debug

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	// LogFileName is the name of the debug log file.
	LogFileName = "debug.log"
	// LogDirName is the name of the directory containing the log file.
	LogDirName = ".launcher"
)

var (
	mu      sync.RWMutex
	enabled bool
	logger  *log.Logger
	logFile *os.File

	// getLogPath is a function variable to allow overriding in tests.
	getLogPath = defaultGetLogPath
)

// Init initializes the debug logging system.
// If enable is true, the log file is created/truncated at ~/.launcher/debug.log.
// If enable is false, all logging operations become no-ops.
// Calling Init again closes the file opened by the previous call.
func Init(enable bool) error {
	mu.Lock()
	defer mu.Unlock()

	closeFileLocked()
	enabled = enable
	if !enable {
		logger = log.New(io.Discard, "", 0)
		return nil
	}

	logPath, err := getLogPath()
	if err != nil {
		enabled = false
		return fmt.Errorf("determine log path: %w", err)
	}

	// Ensure directory exists
	//nolint:gosec // G301: User config directory needs standard permissions
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		enabled = false
		return fmt.Errorf("create log directory: %w", err)
	}

	// Open log file, truncating if it exists
	//nolint:gosec // G304: Log path is computed from user home, not user input
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		enabled = false
		return fmt.Errorf("open log file: %w", err)
	}
	logFile = f

	logger = log.New(f, "", log.Ldate|log.Ltime|log.Lmicroseconds)
	logger.Printf("=== launcher debug log started at %s (pid %d) ===", time.Now().Format(time.RFC3339), os.Getpid())
	return nil
}

// InitWriter routes debug output to w instead of the log file. -check -debug
// uses it to print the log on stderr. A nil w disables logging.
func InitWriter(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()

	closeFileLocked()
	if w == nil {
		enabled = false
		logger = log.New(io.Discard, "", 0)
		return
	}
	enabled = true
	logger = log.New(w, "", log.Ltime|log.Lmicroseconds)
}

// Close closes the debug log file if open.
// Safe to call even if logging is disabled.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	closeFileLocked()
}

// closeFileLocked must be called with mu held.
func closeFileLocked() {
	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}
}

// Logf writes a formatted debug message if debug logging is enabled.
// Arguments are handled in the manner of fmt.Printf.
func Logf(format string, v ...any) {
	mu.RLock()
	defer mu.RUnlock()

	if !enabled || logger == nil {
		return
	}
	logger.Printf(format, v...)
}

// Enabled returns whether debug logging is currently enabled.
func Enabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return enabled
}

// Component tags every message with a bracketed component name, e.g.
// "[manifest] fetch forced=true". Each package declares one as its log.
type Component string

// Logf writes a formatted message prefixed with the component name.
func (c Component) Logf(format string, v ...any) {
	Logf("["+string(c)+"] "+format, v...)
}

// defaultGetLogPath returns the path to the debug log file.
func defaultGetLogPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("determine user home: %w", err)
	}
	return filepath.Join(home, LogDirName, LogFileName), nil
}

// GetLogPath returns the path to the debug log file.
// The launcher prints it at startup so users can attach it to bug reports.
func GetLogPath() (string, error) {
	return getLogPath()
}
