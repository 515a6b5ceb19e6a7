package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/nao1215/darkwatch/internal/model"
)

// DefaultMongoDatabase is used when no database name is configured.
const DefaultMongoDatabase = "darkwatch"

const mongoConnectTimeout = 10 * time.Second

// Collection names.
const (
	collScans         = "scans"
	collStatusHistory = "status_history"
	collIOCs          = "iocs"
	collAlerts        = "alerts"
	collMonitors      = "monitors"
	collCounters      = "counters"
)

// Mongo is the MongoDB Store engine.
type Mongo struct {
	client        *mongo.Client
	database      *mongo.Database
	scans         *mongo.Collection
	statusHistory *mongo.Collection
	iocs          *mongo.Collection
	alerts        *mongo.Collection
	monitors      *mongo.Collection
	counters      *mongo.Collection
}

var _ Store = (*Mongo)(nil)

// mongoScan adds the insertion sequence used for "latest" queries.
type mongoScan struct {
	model.ScanDocument `bson:",inline"`
	Seq                int64 `bson:"seq"`
}

type mongoStatus struct {
	model.StatusEntry `bson:",inline"`
	URL               string `bson:"url"`
	Seq               int64  `bson:"seq"`
}

type mongoIOC struct {
	model.IOCRecord `bson:",inline"`
	Seq             int64 `bson:"seq"`
}

// OpenMongo connects to uri and prepares the collections and indexes.
func OpenMongo(ctx context.Context, uri, database string) (*Mongo, error) {
	if uri == "" {
		return nil, fmt.Errorf("%w: mongo URI is empty", model.ErrInvalidInput)
	}
	if database == "" {
		database = DefaultMongoDatabase
	}

	ctx, cancel := context.WithTimeout(ctx, mongoConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, unavailable("connect to MongoDB", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, unavailable("ping MongoDB", err)
	}

	db := client.Database(database)
	m := &Mongo{
		client:        client,
		database:      db,
		scans:         db.Collection(collScans),
		statusHistory: db.Collection(collStatusHistory),
		iocs:          db.Collection(collIOCs),
		alerts:        db.Collection(collAlerts),
		monitors:      db.Collection(collMonitors),
		counters:      db.Collection(collCounters),
	}
	if err := m.createIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, unavailable("create indexes", err)
	}
	return m, nil
}

func (m *Mongo) createIndexes(ctx context.Context) error {
	indexes := []struct {
		coll  *mongo.Collection
		index mongo.IndexModel
	}{
		{m.scans, mongo.IndexModel{Keys: bson.D{{Key: "url", Value: 1}, {Key: "seq", Value: -1}}}},
		{m.scans, mongo.IndexModel{Keys: bson.D{{Key: "seq", Value: -1}}}},
		{m.statusHistory, mongo.IndexModel{Keys: bson.D{{Key: "url", Value: 1}, {Key: "seq", Value: 1}}}},
		{m.iocs, mongo.IndexModel{Keys: bson.D{{Key: "value", Value: 1}, {Key: "type", Value: 1}}}},
		{m.alerts, mongo.IndexModel{Keys: bson.D{{Key: "timestamp", Value: -1}}}},
	}
	for _, idx := range indexes {
		if _, err := idx.coll.Indexes().CreateOne(ctx, idx.index); err != nil {
			return err
		}
	}
	return nil
}

// Close disconnects the client.
func (m *Mongo) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), mongoConnectTimeout)
	defer cancel()
	return m.client.Disconnect(ctx)
}

// Ping checks the server connection.
func (m *Mongo) Ping(ctx context.Context) error {
	if err := m.client.Ping(ctx, nil); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

// nextSeq atomically increments and returns the named counter.
func (m *Mongo) nextSeq(ctx context.Context, name string) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := m.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"seq": 1}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return 0, unavailable("next sequence", err)
	}
	return counter.Seq, nil
}

// InsertScan appends the status entry, then inserts doc with the history
// up to and including that entry.
func (m *Mongo) InsertScan(ctx context.Context, doc *model.ScanDocument) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.Timestamp.IsZero() {
		doc.Timestamp = time.Now().UTC()
	}

	statusSeq, err := m.nextSeq(ctx, collStatusHistory)
	if err != nil {
		return err
	}
	if _, err := m.statusHistory.InsertOne(ctx, mongoStatus{
		StatusEntry: doc.StatusEntry(),
		URL:         doc.URL,
		Seq:         statusSeq,
	}); err != nil {
		return unavailable("append status history", err)
	}

	cursor, err := m.statusHistory.Find(ctx,
		bson.M{"url": doc.URL, "seq": bson.M{"$lte": statusSeq}},
		options.Find().SetSort(bson.D{{Key: "seq", Value: 1}}))
	if err != nil {
		return unavailable("read status history", err)
	}
	var entries []mongoStatus
	if err := cursor.All(ctx, &entries); err != nil {
		return unavailable("read status history", err)
	}
	history := make([]model.StatusEntry, 0, len(entries))
	for _, e := range entries {
		history = append(history, e.StatusEntry)
	}
	doc.StatusHistory = history

	scanSeq, err := m.nextSeq(ctx, collScans)
	if err != nil {
		return err
	}
	if _, err := m.scans.InsertOne(ctx, mongoScan{ScanDocument: *doc, Seq: scanSeq}); err != nil {
		return unavailable("insert scan", err)
	}
	return nil
}

// LatestScan returns the newest document for url or nil.
func (m *Mongo) LatestScan(ctx context.Context, url string) (*model.ScanDocument, error) {
	var s mongoScan
	err := m.scans.FindOne(ctx, bson.M{"url": url},
		options.FindOne().SetSort(bson.D{{Key: "seq", Value: -1}})).Decode(&s)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("find latest scan", err)
	}
	return &s.ScanDocument, nil
}

// GetScan returns the document with the given ID.
func (m *Mongo) GetScan(ctx context.Context, id string) (*model.ScanDocument, error) {
	var s mongoScan
	err := m.scans.FindOne(ctx, bson.M{"_id": id}).Decode(&s)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: %s", ErrScanNotFound, id)
	}
	if err != nil {
		return nil, unavailable("find scan", err)
	}
	return &s.ScanDocument, nil
}

// ScansByURL returns every document for url, oldest first.
func (m *Mongo) ScansByURL(ctx context.Context, url string) ([]*model.ScanDocument, error) {
	cursor, err := m.scans.Find(ctx, bson.M{"url": url},
		options.Find().SetSort(bson.D{{Key: "seq", Value: 1}}))
	if err != nil {
		return nil, unavailable("find scans", err)
	}
	return decodeScans(ctx, cursor)
}

// LatestPerURL groups scans by URL and keeps the newest of each.
func (m *Mongo) LatestPerURL(ctx context.Context, limit int) ([]*model.ScanDocument, error) {
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$sort", Value: bson.D{{Key: "seq", Value: -1}}}},
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$url"},
			{Key: "doc", Value: bson.D{{Key: "$first", Value: "$$ROOT"}}},
		}}},
		bson.D{{Key: "$replaceRoot", Value: bson.D{{Key: "newRoot", Value: "$doc"}}}},
		bson.D{{Key: "$sort", Value: bson.D{{Key: "seq", Value: -1}}}},
		bson.D{{Key: "$limit", Value: int64(normalizeLimit(limit))}},
	}
	cursor, err := m.scans.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, unavailable("aggregate latest scans", err)
	}
	return decodeScans(ctx, cursor)
}

func decodeScans(ctx context.Context, cursor *mongo.Cursor) ([]*model.ScanDocument, error) {
	var rows []mongoScan
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, unavailable("decode scans", err)
	}
	docs := make([]*model.ScanDocument, 0, len(rows))
	for i := range rows {
		docs = append(docs, &rows[i].ScanDocument)
	}
	return docs, nil
}

// InsertIOC appends an indicator occurrence.
func (m *Mongo) InsertIOC(ctx context.Context, rec *model.IOCRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.FirstSeen.IsZero() {
		rec.FirstSeen = time.Now().UTC()
	}
	seq, err := m.nextSeq(ctx, collIOCs)
	if err != nil {
		return err
	}
	if _, err := m.iocs.InsertOne(ctx, mongoIOC{IOCRecord: *rec, Seq: seq}); err != nil {
		return unavailable("insert ioc", err)
	}
	return nil
}

// FindIOCs returns all occurrences of (value, typ), oldest first.
func (m *Mongo) FindIOCs(ctx context.Context, value string, typ model.IOCType) ([]model.IOCRecord, error) {
	cursor, err := m.iocs.Find(ctx,
		bson.M{"value": value, "type": string(typ)},
		options.Find().SetSort(bson.D{{Key: "seq", Value: 1}}))
	if err != nil {
		return nil, unavailable("find iocs", err)
	}
	var rows []mongoIOC
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, unavailable("decode iocs", err)
	}
	records := make([]model.IOCRecord, 0, len(rows))
	for _, r := range rows {
		records = append(records, r.IOCRecord)
	}
	return records, nil
}

// InsertAlert appends an alert.
func (m *Mongo) InsertAlert(ctx context.Context, alert *model.Alert) error {
	if alert.ID == "" {
		alert.ID = uuid.NewString()
	}
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now().UTC()
	}
	if alert.Status == "" {
		alert.Status = model.AlertNew
	}
	if _, err := m.alerts.InsertOne(ctx, alert); err != nil {
		return unavailable("insert alert", err)
	}
	return nil
}

// ListAlerts returns alerts newest first.
func (m *Mongo) ListAlerts(ctx context.Context, limit int) ([]*model.Alert, error) {
	cursor, err := m.alerts.Find(ctx, bson.M{},
		options.Find().
			SetSort(bson.D{{Key: "timestamp", Value: -1}}).
			SetLimit(int64(normalizeLimit(limit))))
	if err != nil {
		return nil, unavailable("find alerts", err)
	}
	alerts := make([]*model.Alert, 0)
	if err := cursor.All(ctx, &alerts); err != nil {
		return nil, unavailable("decode alerts", err)
	}
	return alerts, nil
}

// AcknowledgeAlert performs the new to acknowledged transition with a
// conditional update.
func (m *Mongo) AcknowledgeAlert(ctx context.Context, id string, at time.Time) (*model.Alert, error) {
	at = at.UTC()
	var a model.Alert
	err := m.alerts.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "status": model.AlertNew},
		bson.M{"$set": bson.M{"status": model.AlertAcknowledged, "acknowledged_at": at}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&a)
	if err == nil {
		return &a, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, unavailable("acknowledge alert", err)
	}

	n, err := m.alerts.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return nil, unavailable("find alert", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: %s", ErrAlertNotFound, id)
	}
	return nil, model.ErrAlertAcknowledged
}

// SaveMonitor upserts m without touching the scan counters of an
// existing record.
func (m *Mongo) SaveMonitor(ctx context.Context, mon *model.Monitor) error {
	update := bson.M{
		"$set": bson.M{
			"url":        mon.URL,
			"interval":   mon.Interval,
			"status":     mon.Status,
			"created_at": mon.CreatedAt,
			"updated_at": mon.UpdatedAt,
		},
		"$setOnInsert": bson.M{
			"scan_count": mon.ScanCount,
		},
	}
	_, err := m.monitors.UpdateOne(ctx, bson.M{"_id": mon.ID}, update, options.Update().SetUpsert(true))
	if err != nil {
		return unavailable("save monitor", err)
	}
	return nil
}

// GetMonitor returns the monitor with the given ID.
func (m *Mongo) GetMonitor(ctx context.Context, id string) (*model.Monitor, error) {
	var mon model.Monitor
	err := m.monitors.FindOne(ctx, bson.M{"_id": id}).Decode(&mon)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: %s", ErrMonitorNotFound, id)
	}
	if err != nil {
		return nil, unavailable("find monitor", err)
	}
	return &mon, nil
}

// ListMonitors returns monitors in creation order.
func (m *Mongo) ListMonitors(ctx context.Context, statuses ...model.MonitorStatus) ([]*model.Monitor, error) {
	filter := bson.M{}
	if len(statuses) > 0 {
		filter["status"] = bson.M{"$in": statuses}
	}
	cursor, err := m.monitors.Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, unavailable("find monitors", err)
	}
	monitors := make([]*model.Monitor, 0)
	if err := cursor.All(ctx, &monitors); err != nil {
		return nil, unavailable("decode monitors", err)
	}
	return monitors, nil
}

// RecordMonitorScan increments scan_count with $inc.
func (m *Mongo) RecordMonitorScan(ctx context.Context, id string, at time.Time) error {
	at = at.UTC()
	res, err := m.monitors.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{
			"$inc": bson.M{"scan_count": 1},
			"$set": bson.M{"last_scan": at, "updated_at": at},
		})
	if err != nil {
		return unavailable("record monitor scan", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", ErrMonitorNotFound, id)
	}
	return nil
}
