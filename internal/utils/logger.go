package utils

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// LoggerOptions controls verbosity, format, and the optional rotating file sink.
type LoggerOptions struct {
	Level      string
	JSON       bool
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
	// Console receives records alongside the file sink. Defaults to stdout.
	Console io.Writer
}

// NewLogger returns a slog.Logger configured for the desired verbosity and format.
// When File is set, records are written to the console and to a rotating file.
func NewLogger(opts LoggerOptions) *slog.Logger {
	return slog.New(newHandler(opts, logWriter(opts)))
}

func newHandler(opts LoggerOptions, w io.Writer) slog.Handler {
	handlerOpts := &slog.HandlerOptions{Level: parseLevel(opts.Level)}
	if opts.JSON {
		return slog.NewJSONHandler(w, handlerOpts)
	}
	return slog.NewTextHandler(w, handlerOpts)
}

func logWriter(opts LoggerOptions) io.Writer {
	console := opts.Console
	if console == nil {
		console = os.Stdout
	}
	if opts.File == "" {
		return console
	}
	sink := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   opts.Compress,
	}
	return io.MultiWriter(console, sink)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
