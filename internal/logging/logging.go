package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the process-wide logger. It discards everything until
// Initialize enables it.
var Logger = zap.NewNop()

// Initialize sets up the logger based on the debug flag and log file.
// APPROBE_DEBUG=1 and APPROBE_DEBUG_FILE override the arguments so child
// invocations inherit the parent's settings. Returns the log file path, or
// "" when logging is disabled.
func Initialize(debug bool, debugFile string, logDir string) (string, error) {
	if os.Getenv("APPROBE_DEBUG") == "1" {
		debug = true
	}
	if envDebugFile := os.Getenv("APPROBE_DEBUG_FILE"); envDebugFile != "" && debugFile == "" {
		debugFile = envDebugFile
	}

	if !debug && debugFile == "" {
		Logger = zap.NewNop()
		return "", nil
	}

	logFilePath := debugFile
	if logFilePath == "" {
		logFilePath = filepath.Join(logDir, fmt.Sprintf("%s.log", uuid.New().String()))
	}
	if err := os.MkdirAll(filepath.Dir(logFilePath), 0755); err != nil {
		return "", fmt.Errorf("failed to create log directory: %w", err)
	}

	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	config.OutputPaths = []string{logFilePath}
	config.ErrorOutputPaths = []string{"stderr"}
	config.Sampling = nil

	l, err := config.Build()
	if err != nil {
		return "", fmt.Errorf("failed to initialize logger: %w", err)
	}
	Logger = l
	Logger.Debug("debug logging initialized", zap.String("log_file", logFilePath))
	return logFilePath, nil
}

// DebugEnabled reports whether Initialize turned debug logging on.
func DebugEnabled() bool {
	return Logger.Core().Enabled(zapcore.DebugLevel)
}

// Sync flushes buffered log entries. Errors from syncing stderr/stdout on
// some platforms are expected and ignored.
func Sync() {
	_ = Logger.Sync()
}
