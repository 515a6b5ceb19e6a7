package scan

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultBatchConcurrency is the number of scans a batch runs at once.
const DefaultBatchConcurrency = 4

// BatchItem is the outcome of one URL in a batch.
type BatchItem struct {
	URL    string  `json:"url"`
	Result *Result `json:"result,omitempty"`
	Err    error   `json:"-"`
	Error  string  `json:"error,omitempty"`
}

// Batch scans urls concurrently. Items keep the order of urls; a failed
// scan is recorded in its item and does not stop the others.
func (o *Orchestrator) Batch(ctx context.Context, urls []string, concurrency int) ([]BatchItem, error) {
	if concurrency <= 0 {
		concurrency = DefaultBatchConcurrency
	}
	o.logger.Info("starting batch", "total", len(urls), "concurrency", concurrency)
	start := time.Now()

	items := make([]BatchItem, len(urls))
	for i, u := range urls {
		items[i].URL = u
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, u := range urls {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				items[i].Err = err
				items[i].Error = err.Error()
				return err
			}
			res, err := o.Scan(gctx, u)
			items[i] = BatchItem{URL: u, Result: res, Err: err}
			if err != nil {
				items[i].Error = err.Error()
				o.logger.Warn("scan failed", "url", u, "error", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return items, err
	}

	o.logger.Info("batch completed", "total", len(urls), "duration", time.Since(start))
	return items, nil
}
