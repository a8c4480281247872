package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// ParseLevel maps a level name to a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New initializes a logger that writes JSON to console and, when
// logFileName is set, to a log file inside outputDir. A nil console means
// stdout.
func New(outputDir, logFileName, level string, console io.Writer) (*slog.Logger, *os.File) {
	if console == nil {
		console = os.Stdout
	}
	var logWriter io.Writer = console
	var logFile *os.File

	handlerOpts := &slog.HandlerOptions{
		Level: ParseLevel(level),
	}

	if logFileName != "" {
		logPath := filepath.Join(outputDir, logFileName)
		var err error
		logFile, err = os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			slog.Error("Failed to open log file, continuing with console only", "error", err, "path", logPath)
		} else {
			logWriter = io.MultiWriter(console, logFile)
		}
	}

	logger := slog.New(slog.NewJSONHandler(logWriter, handlerOpts))
	slog.SetDefault(logger)

	return logger, logFile
}
