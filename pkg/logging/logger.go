// Package logging configures the zerolog logger shared by the browser
// components and hands out per-component loggers.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel is a minimum severity as written in configuration.
type LogLevel string

// Supported levels, lowest first.
const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// Config selects level, format and destination of log output.
type Config struct {
	Level LogLevel

	// Pretty switches from JSON lines to zerolog's console format.
	Pretty bool

	// Output defaults to os.Stderr.
	Output io.Writer
}

// DefaultConfig logs JSON at info level to stderr.
func DefaultConfig() Config {
	return Config{Level: LevelInfo, Output: os.Stderr}
}

// ParseLogLevel normalizes a configured level name. "" means info and
// "warning" is accepted for warn.
func ParseLogLevel(s string) (LogLevel, error) {
	switch name := strings.ToLower(strings.TrimSpace(s)); name {
	case "":
		return LevelInfo, nil
	case "warning":
		return LevelWarn, nil
	case string(LevelDebug), string(LevelInfo), string(LevelWarn), string(LevelError):
		return LogLevel(name), nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// zerologLevel maps level onto zerolog, falling back to info for names
// ParseLogLevel rejects.
func zerologLevel(level LogLevel) zerolog.Level {
	name, err := ParseLogLevel(string(level))
	if err != nil {
		return zerolog.InfoLevel
	}
	zl, err := zerolog.ParseLevel(string(name))
	if err != nil {
		return zerolog.InfoLevel
	}
	return zl
}

// Setup installs the global logger described by cfg and returns it.
// Component loggers created afterwards with NewLogger inherit it.
func Setup(cfg Config) zerolog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out}
	}

	zerolog.SetGlobalLevel(zerologLevel(cfg.Level))
	log.Logger = zerolog.New(out).With().Timestamp().Logger()
	return log.Logger
}

// NewLogger returns the global logger tagged with component.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Level guideline for the browser components:
//
//	debug  tree state transitions, node opens, page requests, cache hits
//	info   root loaded, path resolved, source swapped, end of data
//	warn   failed node or page fetches, stale pages dropped, layout store errors
//	error  selection invariant violations, configuration errors
//
// Common fields: component, node, kind, session, page, url, status_code,
// error_class, duration.
