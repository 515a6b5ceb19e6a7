// Package store persists scan documents, indicator occurrences, alerts
// and monitors.
//
// Two engines implement Store:
//   - SQLite (modernc.org/sqlite), the default, a single file under the
//     XDG data directory
//   - MongoDB (go.mongodb.org/mongo-driver) for shared deployments
//
// Scan documents, IOC records and alerts are append-only. The status
// history of a URL lives in its own append-only table or collection and
// is written together with the document that contributes the entry, so
// concurrent scans of the same URL never lose history.
package store
