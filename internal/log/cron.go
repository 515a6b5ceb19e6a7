package log

import (
	"log/slog"

	"github.com/robfig/cron/v3"
)

// cronLogger adapts a slog.Logger to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

// CronLogger returns a cron.Logger writing through logger. cron's Info
// messages are chatty per-tick bookkeeping and are logged at Debug.
func CronLogger(logger *slog.Logger) cron.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &cronLogger{logger: logger.With("component", "cron")}
}

func (l *cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
