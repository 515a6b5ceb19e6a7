package log

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Output formats accepted by NewLogger.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// ParseFormat validates a log format name. The empty string selects text.
func ParseFormat(s string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown log format %q (want %q or %q)", s, FormatText, FormatJSON)
	}
}

// LevelFor picks the log level. Verbose always means Debug. Long-running
// processes log at Info, one-shot commands only at Warn.
func LevelFor(verbose, longRunning bool) slog.Level {
	switch {
	case verbose:
		return slog.LevelDebug
	case longRunning:
		return slog.LevelInfo
	default:
		return slog.LevelWarn
	}
}

// NewLogger returns a redacting logger writing format to w.
func NewLogger(w io.Writer, format string, level slog.Leveler) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if format == FormatJSON {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(NewSecureHandler(h))
}
