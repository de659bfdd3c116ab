package config

import (
	"fmt"
	"io"
	"log/slog"
)

// NewLogger builds the process logger. Records go to w, normally stderr, so
// command output on stdout stays machine readable.
func NewLogger(w io.Writer, settings LogSettings) (*slog.Logger, error) {
	level, err := parseLevel(settings.Level)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{Level: level}
	switch settings.Format {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unsupported %s %q", KeyLogFormat, settings.Format)
	}
}

func parseLevel(value string) (slog.Level, error) {
	if value == "" {
		return slog.LevelInfo, nil
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(value)); err != nil {
		return 0, fmt.Errorf("unsupported %s %q", KeyLogLevel, value)
	}
	return level, nil
}
