package slogutil

import (
	"io"
	"log/slog"
	"os"

	"qms/internal/config"
	"qms/internal/paths"
)

// LoggerFactory builds the process logger from configuration and CLI flags.
// Precedence for the level: CLI flag > config > default (warn for the CLI).
type LoggerFactory struct {
	projectRoot string
	config      *config.Config
	cliLevel    slog.Level
	cliLevelSet bool
	closers     []io.Closer
}

// NewLoggerFactory creates a new logger factory. projectRoot may be empty when
// the command runs outside a project; file logging is then disabled.
func NewLoggerFactory(projectRoot string, cfg *config.Config) *LoggerFactory {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &LoggerFactory{
		projectRoot: projectRoot,
		config:      cfg,
	}
}

// WithCLILevel overrides the configured level.
func (f *LoggerFactory) WithCLILevel(level slog.Level) *LoggerFactory {
	f.cliLevel = level
	f.cliLevelSet = true
	return f
}

// CLILogger returns a logger writing to w, teed into .qms/logs/qms.log when
// logging.file is enabled. Failure to open the log file falls back to w only.
func (f *LoggerFactory) CLILogger(w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	level := f.effectiveLevel()
	console := f.newHandler(w, level)

	if !f.config.Logging.File || f.projectRoot == "" {
		return slog.New(console)
	}

	logsDir, err := paths.EnsureLogsDir(f.projectRoot)
	if err != nil {
		return slog.New(console)
	}
	file, err := os.OpenFile(paths.LogPath(logsDir), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return slog.New(console)
	}
	f.closers = append(f.closers, file)

	// The file always records info and above so rebuild history survives -q.
	fileLevel := level
	if fileLevel > slog.LevelInfo {
		fileLevel = slog.LevelInfo
	}
	return NewTeeLogger(console, f.newHandler(file, fileLevel))
}

func (f *LoggerFactory) newHandler(w io.Writer, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if f.config.Logging.Format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return NewLineHandler(w, opts)
}

func (f *LoggerFactory) effectiveLevel() slog.Level {
	if f.cliLevelSet {
		return f.cliLevel
	}
	if f.config.Logging.Level != "" {
		return LevelFromString(f.config.Logging.Level)
	}
	return slog.LevelWarn
}

// Close closes all open log files.
func (f *LoggerFactory) Close() error {
	var firstErr error
	for _, c := range f.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	f.closers = nil
	return firstErr
}
