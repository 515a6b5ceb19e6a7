// Package monitor schedules recurring scans of individual URLs.
//
// A Scheduler owns one robfig/cron instance. Every active monitor is one
// cron entry firing at its interval; paused monitors stay registered
// without an entry. The store is the source of truth and the in-memory
// registry is a cache of it, rebuilt by Load on startup.
//
// Mutations of one monitor are serialized by a per-ID lock. The registry
// lock is held while checking capacity so that concurrent creates cannot
// exceed MaxMonitors. A tick that fires while the previous run of the same
// monitor is still in flight is skipped.
package monitor
