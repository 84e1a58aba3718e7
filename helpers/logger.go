package helpers

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"sjsage522/harvester/logger"
)

// LoggerInterface records per-unit failures and progress messages of a run
type LoggerInterface interface {
	LogError(unit string, err error)
	LogInfo(format string, args ...interface{})
}

// Logger appends unit failures to an error log file and mirrors them to the structured log
type Logger struct {
	mu        sync.Mutex
	errorFile string
	log       *logger.Logger
}

// NewLogger creates a new logger instance. An empty errorFile disables the file sink.
func NewLogger(errorFile string) *Logger {
	return &Logger{
		errorFile: errorFile,
		log:       logger.ForWorker(),
	}
}

// LogError logs an error to the error file with the unit name and timestamp
func (l *Logger) LogError(unit string, err error) {
	l.log.Error().Str("unit", unit).Err(err).Msg("unit failed")

	if l.errorFile == "" {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if dir := filepath.Dir(l.errorFile); dir != "." {
		if mkErr := os.MkdirAll(dir, 0o755); mkErr != nil {
			l.log.Warn().Err(mkErr).Msg("cannot create error log directory")
			return
		}
	}

	f, fileErr := os.OpenFile(l.errorFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if fileErr != nil {
		l.log.Warn().Err(fileErr).Str("path", l.errorFile).Msg("cannot open error log")
		return
	}
	defer f.Close()

	timestamp := time.Now().Format("2006-01-02 15:04:05")
	fmt.Fprintf(f, "[%s] [%s] %s\n", timestamp, unit, err.Error())
}

// LogInfo logs an informational message
func (l *Logger) LogInfo(format string, args ...interface{}) {
	l.log.Info().Msgf(format, args...)
}
