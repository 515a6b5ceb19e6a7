// Package api exposes scans, comparisons, history, alerts and monitors
// over HTTP with gin.
//
// Handlers never implement behavior of their own. They decode requests,
// call the scan orchestrator or the monitor scheduler and translate the
// model error kinds into status codes:
//
//	model.ErrInvalidInput -> 400
//	model.ErrNotFound     -> 404
//	model.ErrCapacity     -> 409
//	model.ErrUnavailable  -> 503
//
// Anything else is a 500.
package api
