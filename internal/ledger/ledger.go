package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nao1215/darkwatch/internal/keylock"
	"github.com/nao1215/darkwatch/internal/model"
)

// Storage is the subset of store.Store used by the ledger.
type Storage interface {
	InsertIOC(ctx context.Context, rec *model.IOCRecord) error
	FindIOCs(ctx context.Context, value string, typ model.IOCType) ([]model.IOCRecord, error)
}

// Reuse describes what the ledger knew about an indicator before the
// current occurrence was recorded.
type Reuse struct {
	Value string        `json:"value"`
	Type  model.IOCType `json:"type"`
	URL   string        `json:"url"`

	// Reused is true when the indicator occurred before, at any URL.
	Reused bool `json:"reused"`
	// CrossURL is true when a prior occurrence has a different URL.
	CrossURL bool `json:"cross_url"`
	// FirstSeen is the time of the earliest occurrence, including the
	// current one when the indicator is new.
	FirstSeen time.Time `json:"first_seen"`
	// PriorURLs lists the distinct URLs of prior occurrences in the
	// order they were first seen.
	PriorURLs []string `json:"prior_urls"`
	// ReuseCount is the number of distinct URLs across all occurrences,
	// the current one included.
	ReuseCount int `json:"reuse_count"`
	// PriorOccurrences is the number of records that existed before this one.
	PriorOccurrences int `json:"prior_occurrences"`
}

// OtherURLs returns the prior URLs that differ from the current one.
func (r Reuse) OtherURLs() []string {
	others := make([]string, 0, len(r.PriorURLs))
	for _, u := range r.PriorURLs {
		if u != r.URL {
			others = append(others, u)
		}
	}
	return others
}

// Ledger is the indicator correlation ledger.
type Ledger struct {
	storage Storage
	logger  *slog.Logger
	now     func() time.Time

	locks keylock.Map
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		l.now = now
	}
}

// New creates a Ledger backed by storage.
func New(storage Storage, opts ...Option) *Ledger {
	l := &Ledger{
		storage: storage,
		logger:  slog.Default(),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// RecordAndCheck looks up every prior occurrence of (value, typ), then
// records the occurrence at url. Lookup and insert for the same pair are
// serialized within the process.
func (l *Ledger) RecordAndCheck(ctx context.Context, value string, typ model.IOCType, url string) (Reuse, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return Reuse{}, fmt.Errorf("%w: empty indicator value", model.ErrInvalidInput)
	}
	if !typ.Valid() {
		return Reuse{}, fmt.Errorf("%w: unknown indicator type %q", model.ErrInvalidInput, typ)
	}
	if url == "" {
		return Reuse{}, fmt.Errorf("%w: empty source URL", model.ErrInvalidInput)
	}

	key := string(typ) + "\x00" + value
	unlock := l.locks.Lock(key)
	defer unlock()

	prior, err := l.storage.FindIOCs(ctx, value, typ)
	if err != nil {
		return Reuse{}, fmt.Errorf("failed to look up indicator: %w", err)
	}

	now := l.now()
	rec := &model.IOCRecord{Value: value, Type: typ, URL: url, FirstSeen: now}
	if err := l.storage.InsertIOC(ctx, rec); err != nil {
		return Reuse{}, fmt.Errorf("failed to record indicator: %w", err)
	}

	reuse := summarize(value, typ, url, prior, now)
	if reuse.Reused {
		l.logger.Info("indicator reuse detected",
			"type", typ, "url", url, "reuse_count", reuse.ReuseCount, "cross_url", reuse.CrossURL)
	}
	return reuse, nil
}

func summarize(value string, typ model.IOCType, url string, prior []model.IOCRecord, now time.Time) Reuse {
	r := Reuse{
		Value:            value,
		Type:             typ,
		URL:              url,
		Reused:           len(prior) > 0,
		FirstSeen:        now,
		PriorURLs:        make([]string, 0),
		PriorOccurrences: len(prior),
	}
	distinct := map[string]struct{}{url: {}}
	seenPrior := make(map[string]struct{})
	for _, rec := range prior {
		if rec.FirstSeen.Before(r.FirstSeen) {
			r.FirstSeen = rec.FirstSeen
		}
		if rec.URL != url {
			r.CrossURL = true
		}
		distinct[rec.URL] = struct{}{}
		if _, ok := seenPrior[rec.URL]; !ok {
			seenPrior[rec.URL] = struct{}{}
			r.PriorURLs = append(r.PriorURLs, rec.URL)
		}
	}
	r.ReuseCount = len(distinct)
	return r
}
