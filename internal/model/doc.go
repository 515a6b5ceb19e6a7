// Package model defines the data shared by every darkwatch component:
// scan documents with their status history and file forensics, alerts,
// indicator records and monitors, together with the error kinds that
// cross the core boundary.
//
// All types carry json and bson tags so the same values are rendered by
// the API and stored by either storage engine.
package model
