// Package ledger records every occurrence of an indicator (email, crypto
// address or file hash) and reports when an indicator was seen before.
//
// The ledger never deduplicates and never expires: each RecordAndCheck
// appends one IOC record, and reuse is judged against the full history.
package ledger
