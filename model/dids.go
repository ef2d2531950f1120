// File: model/dids.go
package model

import "time"

// DidStatus defines the possible states of an identity record.
// The lifecycle is NONE -> ACTIVE -> DEACTIVATED; deactivation is a
// tombstone, never an erasure, and there is no way back to ACTIVE.
type DidStatus string

const (
	DidStatusNone        DidStatus = "NONE"        // Record does not exist
	DidStatusActive      DidStatus = "ACTIVE"      // Identity is live and mutable
	DidStatusDeactivated DidStatus = "DEACTIVATED" // Terminal; record kept for audit
)

// DidRecord is the on-ledger identity record, keyed by the identity's own
// principal. The document body lives off-chain; only its digest is stored.
type DidRecord struct {
	ObjectType     string    `json:"objectType"`     // Set to the composite key object type (DidRecord)
	Identity       string    `json:"identity"`       // Principal this record describes (also the key)
	Owner          string    `json:"owner"`          // Controlling principal; equals Identity by construction
	DocumentDigest string    `json:"documentDigest"` // Hex multihash of the off-chain identity document
	Created        time.Time `json:"created"`        // Timestamp of creation; never changes afterwards
	Updated        time.Time `json:"updated"`        // Timestamp of last accepted mutation
	VersionID      uint64    `json:"versionId"`      // Increments once per accepted mutation
	Status         DidStatus `json:"status"`
}
