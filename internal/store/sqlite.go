package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/darkwatch/internal/model"
)

// DBFileName is the SQLite database file created inside the DB directory.
const DBFileName = "darkwatch.db"

// timeLayout keeps a fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLite is the default Store engine.
type SQLite struct {
	db     *sql.DB
	dbPath string
}

var _ Store = (*SQLite)(nil)

// OpenSQLite opens or creates the database in dbDir.
func OpenSQLite(dbDir string) (*SQLite, error) {
	if err := os.MkdirAll(dbDir, 0750); err != nil {
		return nil, unavailable("create database directory", err)
	}
	dbPath := filepath.Join(dbDir, DBFileName)

	db, err := sql.Open("sqlite", dbPath+"?mode=rwc&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, unavailable("open database", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	s := &SQLite{db: db, dbPath: dbPath}
	if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, unavailable("enable WAL mode", err)
	}
	if err := s.createTables(); err != nil {
		_ = db.Close()
		return nil, unavailable("create tables", err)
	}
	return s, nil
}

// Path returns the database file path.
func (s *SQLite) Path() string {
	return s.dbPath
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *SQLite) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

func (s *SQLite) createTables() error {
	schema := `
	-- Scan documents, append-only
	CREATE TABLE IF NOT EXISTS scans (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		url TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		doc_json TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_scans_url ON scans(url, seq);

	-- Fetch observations per URL, append-only
	CREATE TABLE IF NOT EXISTS status_history (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		url TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		status TEXT NOT NULL,
		response_time REAL,
		status_code INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_status_url ON status_history(url, seq);

	-- Indicator occurrences, append-only
	CREATE TABLE IF NOT EXISTS iocs (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		value TEXT NOT NULL,
		type TEXT NOT NULL,
		url TEXT NOT NULL,
		first_seen TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_iocs_value ON iocs(value, type);

	CREATE TABLE IF NOT EXISTS alerts (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		url TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		status TEXT NOT NULL,
		alert_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS monitors (
		id TEXT PRIMARY KEY,
		url TEXT NOT NULL,
		interval_minutes INTEGER NOT NULL,
		status TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		last_scan TEXT,
		scan_count INTEGER NOT NULL DEFAULT 0
	);
	`
	_, err := s.db.ExecContext(context.Background(), schema)
	return err
}

// InsertScan appends doc and its status entry in one transaction.
func (s *SQLite) InsertScan(ctx context.Context, doc *model.ScanDocument) (err error) {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.Timestamp.IsZero() {
		doc.Timestamp = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return unavailable("begin insert scan", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	entry := doc.StatusEntry()
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO status_history (url, timestamp, status, response_time, status_code) VALUES (?, ?, ?, ?, ?)`,
		doc.URL, formatTime(entry.Timestamp), string(entry.Status), nullFloat(entry.ResponseTime), nullInt(entry.StatusCode),
	); err != nil {
		return unavailable("append status history", err)
	}

	history, err := statusHistory(ctx, tx, doc.URL)
	if err != nil {
		return err
	}
	doc.StatusHistory = history

	docJSON, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to serialize scan document: %w", err)
	}
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO scans (id, url, timestamp, doc_json) VALUES (?, ?, ?, ?)`,
		doc.ID, doc.URL, formatTime(doc.Timestamp), string(docJSON),
	); err != nil {
		return unavailable("insert scan", err)
	}
	if err = tx.Commit(); err != nil {
		return unavailable("commit scan", err)
	}
	return nil
}

func statusHistory(ctx context.Context, tx *sql.Tx, url string) ([]model.StatusEntry, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT timestamp, status, response_time, status_code FROM status_history WHERE url = ? ORDER BY seq ASC`, url)
	if err != nil {
		return nil, unavailable("read status history", err)
	}
	defer rows.Close()

	history := make([]model.StatusEntry, 0)
	for rows.Next() {
		var (
			ts, status   string
			responseTime sql.NullFloat64
			statusCode   sql.NullInt64
		)
		if err := rows.Scan(&ts, &status, &responseTime, &statusCode); err != nil {
			return nil, unavailable("scan status history", err)
		}
		entry := model.StatusEntry{
			Timestamp: parseTimestamp(ts),
			Status:    model.FetchStatus(status),
		}
		if responseTime.Valid {
			v := responseTime.Float64
			entry.ResponseTime = &v
		}
		if statusCode.Valid {
			v := int(statusCode.Int64)
			entry.StatusCode = &v
		}
		history = append(history, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("read status history", err)
	}
	return history, nil
}

// LatestScan returns the newest document for url or nil.
func (s *SQLite) LatestScan(ctx context.Context, url string) (*model.ScanDocument, error) {
	docs, err := s.queryScans(ctx,
		`SELECT doc_json FROM scans WHERE url = ? ORDER BY seq DESC LIMIT 1`, url)
	if err != nil || len(docs) == 0 {
		return nil, err
	}
	return docs[0], nil
}

// GetScan returns the document with the given ID.
func (s *SQLite) GetScan(ctx context.Context, id string) (*model.ScanDocument, error) {
	docs, err := s.queryScans(ctx, `SELECT doc_json FROM scans WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrScanNotFound, id)
	}
	return docs[0], nil
}

// ScansByURL returns every document for url, oldest first.
func (s *SQLite) ScansByURL(ctx context.Context, url string) ([]*model.ScanDocument, error) {
	return s.queryScans(ctx, `SELECT doc_json FROM scans WHERE url = ? ORDER BY seq ASC`, url)
}

// LatestPerURL returns the newest document per URL, newest first.
func (s *SQLite) LatestPerURL(ctx context.Context, limit int) ([]*model.ScanDocument, error) {
	return s.queryScans(ctx, `
	SELECT doc_json FROM scans
	WHERE seq IN (SELECT MAX(seq) FROM scans GROUP BY url)
	ORDER BY seq DESC
	LIMIT ?`, normalizeLimit(limit))
}

func (s *SQLite) queryScans(ctx context.Context, query string, args ...any) ([]*model.ScanDocument, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, unavailable("query scans", err)
	}
	defer rows.Close()

	docs := make([]*model.ScanDocument, 0)
	for rows.Next() {
		var docJSON string
		if err := rows.Scan(&docJSON); err != nil {
			return nil, unavailable("scan row", err)
		}
		var doc model.ScanDocument
		if err := json.Unmarshal([]byte(docJSON), &doc); err != nil {
			return nil, fmt.Errorf("failed to deserialize scan document: %w", err)
		}
		docs = append(docs, &doc)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("query scans", err)
	}
	return docs, nil
}

// InsertIOC appends an indicator occurrence.
func (s *SQLite) InsertIOC(ctx context.Context, rec *model.IOCRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.FirstSeen.IsZero() {
		rec.FirstSeen = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO iocs (id, value, type, url, first_seen) VALUES (?, ?, ?, ?, ?)`,
		rec.ID, rec.Value, string(rec.Type), rec.URL, formatTime(rec.FirstSeen))
	if err != nil {
		return unavailable("insert ioc", err)
	}
	return nil
}

// FindIOCs returns all occurrences of (value, typ), oldest first.
func (s *SQLite) FindIOCs(ctx context.Context, value string, typ model.IOCType) ([]model.IOCRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, value, type, url, first_seen FROM iocs WHERE value = ? AND type = ? ORDER BY seq ASC`,
		value, string(typ))
	if err != nil {
		return nil, unavailable("query iocs", err)
	}
	defer rows.Close()

	records := make([]model.IOCRecord, 0)
	for rows.Next() {
		var (
			rec       model.IOCRecord
			typeStr   string
			firstSeen string
		)
		if err := rows.Scan(&rec.ID, &rec.Value, &typeStr, &rec.URL, &firstSeen); err != nil {
			return nil, unavailable("scan ioc", err)
		}
		rec.Type = model.IOCType(typeStr)
		rec.FirstSeen = parseTimestamp(firstSeen)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("query iocs", err)
	}
	return records, nil
}

// InsertAlert appends an alert.
func (s *SQLite) InsertAlert(ctx context.Context, alert *model.Alert) error {
	if alert.ID == "" {
		alert.ID = uuid.NewString()
	}
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now().UTC()
	}
	if alert.Status == "" {
		alert.Status = model.AlertNew
	}
	alertJSON, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to serialize alert: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO alerts (id, url, timestamp, status, alert_json) VALUES (?, ?, ?, ?, ?)`,
		alert.ID, alert.URL, formatTime(alert.CreatedAt), string(alert.Status), string(alertJSON))
	if err != nil {
		return unavailable("insert alert", err)
	}
	return nil
}

// ListAlerts returns alerts newest first.
func (s *SQLite) ListAlerts(ctx context.Context, limit int) ([]*model.Alert, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT alert_json FROM alerts ORDER BY seq DESC LIMIT ?`, normalizeLimit(limit))
	if err != nil {
		return nil, unavailable("query alerts", err)
	}
	defer rows.Close()

	alerts := make([]*model.Alert, 0)
	for rows.Next() {
		var alertJSON string
		if err := rows.Scan(&alertJSON); err != nil {
			return nil, unavailable("scan alert", err)
		}
		var a model.Alert
		if err := json.Unmarshal([]byte(alertJSON), &a); err != nil {
			return nil, fmt.Errorf("failed to deserialize alert: %w", err)
		}
		alerts = append(alerts, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("query alerts", err)
	}
	return alerts, nil
}

// AcknowledgeAlert marks a new alert as acknowledged.
func (s *SQLite) AcknowledgeAlert(ctx context.Context, id string, at time.Time) (_ *model.Alert, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, unavailable("begin acknowledge", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var alertJSON string
	err = tx.QueryRowContext(ctx, `SELECT alert_json FROM alerts WHERE id = ?`, id).Scan(&alertJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrAlertNotFound, id)
	}
	if err != nil {
		return nil, unavailable("read alert", err)
	}

	var a model.Alert
	if err = json.Unmarshal([]byte(alertJSON), &a); err != nil {
		return nil, fmt.Errorf("failed to deserialize alert: %w", err)
	}
	if a.Status == model.AlertAcknowledged {
		err = model.ErrAlertAcknowledged
		return nil, err
	}
	at = at.UTC()
	a.Status = model.AlertAcknowledged
	a.AcknowledgedAt = &at

	updated, err := json.Marshal(&a)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize alert: %w", err)
	}
	if _, err = tx.ExecContext(ctx,
		`UPDATE alerts SET status = ?, alert_json = ? WHERE id = ?`,
		string(a.Status), string(updated), id); err != nil {
		return nil, unavailable("acknowledge alert", err)
	}
	if err = tx.Commit(); err != nil {
		return nil, unavailable("commit acknowledge", err)
	}
	return &a, nil
}

// SaveMonitor inserts m or updates its URL, interval, status and
// updated_at. The scan counters are left to RecordMonitorScan.
func (s *SQLite) SaveMonitor(ctx context.Context, m *model.Monitor) error {
	_, err := s.db.ExecContext(ctx, `
	INSERT INTO monitors (id, url, interval_minutes, status, created_at, updated_at, last_scan, scan_count)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		url = excluded.url,
		interval_minutes = excluded.interval_minutes,
		status = excluded.status,
		created_at = excluded.created_at,
		updated_at = excluded.updated_at`,
		m.ID, m.URL, m.Interval, string(m.Status),
		formatTime(m.CreatedAt), formatTime(m.UpdatedAt), nullTime(m.LastScan), m.ScanCount)
	if err != nil {
		return unavailable("save monitor", err)
	}
	return nil
}

const monitorColumns = `id, url, interval_minutes, status, created_at, updated_at, last_scan, scan_count`

// GetMonitor returns the monitor with the given ID.
func (s *SQLite) GetMonitor(ctx context.Context, id string) (*model.Monitor, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+monitorColumns+` FROM monitors WHERE id = ?`, id)
	m, err := scanMonitor(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrMonitorNotFound, id)
	}
	if err != nil {
		return nil, unavailable("read monitor", err)
	}
	return m, nil
}

// ListMonitors returns monitors in creation order.
func (s *SQLite) ListMonitors(ctx context.Context, statuses ...model.MonitorStatus) ([]*model.Monitor, error) {
	query := `SELECT ` + monitorColumns + ` FROM monitors`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, st := range statuses {
			placeholders[i] = "?"
			args = append(args, string(st))
		}
		query += ` WHERE status IN (` + strings.Join(placeholders, ", ") + `)`
	}
	query += ` ORDER BY created_at ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, unavailable("query monitors", err)
	}
	defer rows.Close()

	monitors := make([]*model.Monitor, 0)
	for rows.Next() {
		m, err := scanMonitor(rows)
		if err != nil {
			return nil, unavailable("scan monitor", err)
		}
		monitors = append(monitors, m)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("query monitors", err)
	}
	return monitors, nil
}

// RecordMonitorScan increments scan_count in place.
func (s *SQLite) RecordMonitorScan(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE monitors SET scan_count = scan_count + 1, last_scan = ?, updated_at = ? WHERE id = ?`,
		formatTime(at), formatTime(at), id)
	if err != nil {
		return unavailable("record monitor scan", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return unavailable("record monitor scan", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrMonitorNotFound, id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMonitor(row rowScanner) (*model.Monitor, error) {
	var (
		m                    model.Monitor
		status               string
		createdAt, updatedAt string
		lastScan             sql.NullString
	)
	if err := row.Scan(&m.ID, &m.URL, &m.Interval, &status, &createdAt, &updatedAt, &lastScan, &m.ScanCount); err != nil {
		return nil, err
	}
	m.Status = model.MonitorStatus(status)
	m.CreatedAt = parseTimestamp(createdAt)
	m.UpdatedAt = parseTimestamp(updatedAt)
	if lastScan.Valid {
		t := parseTimestamp(lastScan.String)
		m.LastScan = &t
	}
	return &m, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func nullFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func nullInt(i *int) any {
	if i == nil {
		return nil
	}
	return *i
}

// timestampFormats lists the layouts accepted when reading timestamps.
var timestampFormats = []string{
	timeLayout,
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
}

// parseTimestamp returns the zero time when no layout matches.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
