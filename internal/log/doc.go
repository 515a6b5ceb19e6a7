// Package log builds the slog loggers used across darkwatch.
//
// Every logger is wrapped in a SecureHandler. It masks attributes whose
// key or value looks like a credential and strips user info and secret
// query parameters from URL attributes, since scanned URLs are copied
// verbatim from untrusted pages.
//
//	logger := log.NewLogger(os.Stderr, log.FormatText, log.LevelFor(verbose, false))
//	slog.SetDefault(logger)
//
// CronLogger routes robfig/cron's internal logging through the same
// handler chain.
package log
