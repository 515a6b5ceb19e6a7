package scan

import (
	"context"
	"fmt"
	"strings"

	"github.com/nao1215/darkwatch/internal/model"
)

// DefaultListLimit is used when a list query has no positive limit.
const DefaultListLimit = 100

// History returns the latest document of every scanned URL, newest first.
func (o *Orchestrator) History(ctx context.Context, limit int) ([]*model.ScanDocument, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	return o.store.LatestPerURL(ctx, limit)
}

// HistoryEntry returns one stored document by ID.
func (o *Orchestrator) HistoryEntry(ctx context.Context, id string) (*model.ScanDocument, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: history id is required", model.ErrInvalidInput)
	}
	return o.store.GetScan(ctx, id)
}

// Alerts returns the most recent alerts, newest first.
func (o *Orchestrator) Alerts(ctx context.Context, limit int) ([]*model.Alert, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	return o.store.ListAlerts(ctx, limit)
}

// Acknowledge marks an alert as acknowledged.
func (o *Orchestrator) Acknowledge(ctx context.Context, id string) (*model.Alert, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: alert id is required", model.ErrInvalidInput)
	}
	alert, err := o.store.AcknowledgeAlert(ctx, id, o.now())
	if err != nil {
		return nil, err
	}
	o.logger.Info("alert acknowledged", "alert_id", id, "url", alert.URL)
	return alert, nil
}
