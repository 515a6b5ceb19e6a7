package model

import (
	"fmt"
	"time"
)

// IOCType is the kind of indicator tracked by the correlation ledger.
type IOCType string

const (
	IOCEmail    IOCType = "email"
	IOCCrypto   IOCType = "crypto"
	IOCFileHash IOCType = "file_hash"
)

// Valid reports whether t is one of the known indicator types.
func (t IOCType) Valid() bool {
	switch t {
	case IOCEmail, IOCCrypto, IOCFileHash:
		return true
	default:
		return false
	}
}

// ParseIOCType validates a user-supplied indicator type.
func ParseIOCType(s string) (IOCType, error) {
	t := IOCType(s)
	if !t.Valid() {
		return "", fmt.Errorf("%w: unknown indicator type %q", ErrInvalidInput, s)
	}
	return t, nil
}

// IOCRecord is one occurrence of an indicator at a URL.
type IOCRecord struct {
	ID        string    `json:"id" bson:"_id"`
	Value     string    `json:"value" bson:"value"`
	Type      IOCType   `json:"type" bson:"type"`
	URL       string    `json:"url" bson:"url"`
	FirstSeen time.Time `json:"first_seen" bson:"first_seen"`
}
