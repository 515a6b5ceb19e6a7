package store

import (
	"context"
	"fmt"
	"time"

	"github.com/nao1215/darkwatch/internal/model"
)

// Store is the storage collaborator used by the scan pipeline, the
// correlation ledger and the monitor scheduler.
type Store interface {
	// InsertScan appends doc. It assigns doc.ID when empty, appends the
	// document's status entry to the URL history and sets
	// doc.StatusHistory to the full history including that entry.
	InsertScan(ctx context.Context, doc *model.ScanDocument) error
	// LatestScan returns the most recently inserted document for url, or
	// nil when the URL was never scanned.
	LatestScan(ctx context.Context, url string) (*model.ScanDocument, error)
	// GetScan returns the document with the given ID.
	GetScan(ctx context.Context, id string) (*model.ScanDocument, error)
	// ScansByURL returns every document for url, oldest first.
	ScansByURL(ctx context.Context, url string) ([]*model.ScanDocument, error)
	// LatestPerURL returns the newest document of each URL, newest first.
	LatestPerURL(ctx context.Context, limit int) ([]*model.ScanDocument, error)

	// InsertIOC appends an indicator occurrence.
	InsertIOC(ctx context.Context, rec *model.IOCRecord) error
	// FindIOCs returns every occurrence of value with type typ, oldest first.
	FindIOCs(ctx context.Context, value string, typ model.IOCType) ([]model.IOCRecord, error)

	// InsertAlert appends an alert.
	InsertAlert(ctx context.Context, alert *model.Alert) error
	// ListAlerts returns alerts newest first.
	ListAlerts(ctx context.Context, limit int) ([]*model.Alert, error)
	// AcknowledgeAlert moves an alert from new to acknowledged.
	AcknowledgeAlert(ctx context.Context, id string, at time.Time) (*model.Alert, error)

	// SaveMonitor creates or updates a monitor. The scan counters are
	// owned by RecordMonitorScan and are only written on creation.
	SaveMonitor(ctx context.Context, m *model.Monitor) error
	// GetMonitor returns the monitor with the given ID.
	GetMonitor(ctx context.Context, id string) (*model.Monitor, error)
	// ListMonitors returns monitors in creation order, optionally
	// filtered by status.
	ListMonitors(ctx context.Context, statuses ...model.MonitorStatus) ([]*model.Monitor, error)
	// RecordMonitorScan increments the scan count and sets the last scan time.
	RecordMonitorScan(ctx context.Context, id string, at time.Time) error

	// Ping checks that the engine is reachable.
	Ping(ctx context.Context) error
	// Close releases the engine.
	Close() error
}

// Driver names accepted by Open.
const (
	DriverSQLite = "sqlite"
	DriverMongo  = "mongo"
)

// DefaultListLimit is used when a list call passes a non-positive limit.
const DefaultListLimit = 100

// Options selects and configures a storage engine.
type Options struct {
	Driver string

	// SQLite
	DBDir string

	// MongoDB
	MongoURI      string
	MongoDatabase string
}

// Open returns the engine named by opts.Driver.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Driver {
	case "", DriverSQLite:
		return OpenSQLite(opts.DBDir)
	case DriverMongo:
		return OpenMongo(ctx, opts.MongoURI, opts.MongoDatabase)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, opts.Driver)
	}
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}
