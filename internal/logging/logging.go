// Package logging provides structured logging for scenario-miner using
// slog. Initialize once per mining or replay run, then log through the
// package-level functions — session/repository/scenario context is
// extracted from ctx automatically.
//
//	if err := logging.Init(runID); err != nil {
//	    // handle error
//	}
//	defer logging.Close()
//
//	ctx = logging.WithRun(ctx, runID)
//	ctx = logging.WithRepository(ctx, repo.ID)
//	logging.Info(ctx, "scenario evaluated", slog.Bool("passed", verdict.Passed))
package logging

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// LogLevelEnvVar controls the log level when set.
const LogLevelEnvVar = "SCENARIO_MINER_LOG_LEVEL"

// LogsDir is the directory log files are written under, relative to the
// current working directory.
const LogsDir = ".scenario-miner/logs"

var (
	logger       *slog.Logger
	logFile      *os.File
	logBufWriter *bufio.Writer
	currentRunID string
	mu           sync.RWMutex
)

// Init initializes the logger for one run, writing JSON logs to
// .scenario-miner/logs/<run-id>.log. Falls back to stderr if the log file
// cannot be created. runID must not contain path separators.
func Init(runID string) error {
	if strings.ContainsAny(runID, "/\\") {
		return fmt.Errorf("invalid run ID %q: contains path separators", runID)
	}

	mu.Lock()
	defer mu.Unlock()

	if logBufWriter != nil {
		_ = logBufWriter.Flush()
		logBufWriter = nil
	}
	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}

	level := parseLogLevel(os.Getenv(LogLevelEnvVar))

	if err := os.MkdirAll(LogsDir, 0o750); err != nil {
		logger = createLogger(os.Stderr, level)
		return nil
	}

	logFilePath := filepath.Join(LogsDir, runID+".log")
	f, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600) //nolint:gosec // runID validated above
	if err != nil {
		logger = createLogger(os.Stderr, level)
		return nil
	}

	logFile = f
	logBufWriter = bufio.NewWriterSize(f, 8192)
	logger = createLogger(logBufWriter, level)
	currentRunID = runID
	return nil
}

// Close flushes and closes the log file if one is open. Safe to call
// multiple times.
func Close() {
	mu.Lock()
	defer mu.Unlock()

	if logBufWriter != nil {
		_ = logBufWriter.Flush()
		logBufWriter = nil
	}
	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}
	currentRunID = ""
}

func getLogger() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if logger == nil {
		return slog.Default()
	}
	return logger
}

func getRunID() string {
	mu.RLock()
	defer mu.RUnlock()
	return currentRunID
}

func createLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Debug logs at DEBUG level with context values automatically extracted.
func Debug(ctx context.Context, msg string, attrs ...any) { log(ctx, slog.LevelDebug, msg, attrs...) }

// Info logs at INFO level with context values automatically extracted.
func Info(ctx context.Context, msg string, attrs ...any) { log(ctx, slog.LevelInfo, msg, attrs...) }

// Warn logs at WARN level with context values automatically extracted.
func Warn(ctx context.Context, msg string, attrs ...any) { log(ctx, slog.LevelWarn, msg, attrs...) }

// Error logs at ERROR level with context values automatically extracted.
func Error(ctx context.Context, msg string, attrs ...any) { log(ctx, slog.LevelError, msg, attrs...) }

// LogDuration logs msg with a duration_ms attribute computed from start.
// Designed for use with defer:
//
//	defer logging.LogDuration(ctx, slog.LevelInfo, "scenario replayed", time.Now())
func LogDuration(ctx context.Context, level slog.Level, msg string, start time.Time, attrs ...any) {
	allAttrs := make([]any, 0, len(attrs)+1)
	allAttrs = append(allAttrs, slog.Int64("duration_ms", time.Since(start).Milliseconds()))
	allAttrs = append(allAttrs, attrs...)
	log(ctx, level, msg, allAttrs...)
}

func log(ctx context.Context, level slog.Level, msg string, attrs ...any) {
	l := getLogger()

	var allAttrs []any
	if runID := getRunID(); runID != "" {
		allAttrs = append(allAttrs, slog.String("run_id", runID))
	}
	for _, a := range attrsFromContext(ctx) {
		allAttrs = append(allAttrs, a)
	}
	allAttrs = append(allAttrs, attrs...)

	//nolint:staticcheck // nil context is intentional: values are already extracted as attributes
	l.Log(nil, level, msg, allAttrs...)
}

func attrsFromContext(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	var attrs []slog.Attr
	if s := RepositoryIDFromContext(ctx); s != "" {
		attrs = append(attrs, slog.String("repository_id", s))
	}
	if s := ScenarioKindFromContext(ctx); s != "" {
		attrs = append(attrs, slog.String("scenario_kind", s))
	}
	if s := ComponentFromContext(ctx); s != "" {
		attrs = append(attrs, slog.String("component", s))
	}
	if s := AgentFromContext(ctx); s != "" {
		attrs = append(attrs, slog.String("agent", s))
	}
	return attrs
}
