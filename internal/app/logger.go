package app

import (
	"log/slog"
	"os"
)

// NewLogger returns the process logger. Production runs at info without
// source locations; everywhere else debug with source locations, and the
// text handler unless LOG_FORMAT asks for json.
func NewLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelDebug, AddSource: true}
	if cfg.IsProduction() {
		opts = &slog.HandlerOptions{Level: slog.LevelInfo}
	}
	if cfg != nil && cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
