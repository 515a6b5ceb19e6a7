package model

import (
	"crypto/md5" //nolint:gosec // identifier derivation, not a security boundary
	"encoding/hex"
	"time"
)

// MonitorStatus is the lifecycle state of a monitor.
type MonitorStatus string

const (
	MonitorActive   MonitorStatus = "active"
	MonitorPaused   MonitorStatus = "paused"
	MonitorInactive MonitorStatus = "inactive"
)

// MonitorIDLength is the number of hex characters kept from the URL digest.
const MonitorIDLength = 12

// Monitor is a recurring scan of a single URL.
type Monitor struct {
	ID        string        `json:"id" bson:"_id"`
	URL       string        `json:"url" bson:"url"`
	Interval  int           `json:"interval" bson:"interval"`
	Status    MonitorStatus `json:"status" bson:"status"`
	CreatedAt time.Time     `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time     `json:"updated_at" bson:"updated_at"`
	LastScan  *time.Time    `json:"last_scan,omitempty" bson:"last_scan,omitempty"`
	ScanCount int           `json:"scan_count" bson:"scan_count"`
}

// Registered reports whether the monitor still owns a recurring job.
func (m *Monitor) Registered() bool {
	return m.Status == MonitorActive || m.Status == MonitorPaused
}

// IntervalDuration returns the interval as a time.Duration.
func (m *Monitor) IntervalDuration() time.Duration {
	return time.Duration(m.Interval) * time.Minute
}

// MonitorID derives the stable monitor identifier for a URL.
func MonitorID(url string) string {
	sum := md5.Sum([]byte(url)) //nolint:gosec // see import comment
	return hex.EncodeToString(sum[:])[:MonitorIDLength]
}
