// File: model/credentials.go
package model

import "time"

// CredentialStatus defines the possible states of a credential.
type CredentialStatus string

const (
	CredentialStatusNone      CredentialStatus = "NONE"      // Record does not exist
	CredentialStatusActive    CredentialStatus = "ACTIVE"    // Credential is valid
	CredentialStatusSuspended CredentialStatus = "SUSPENDED" // Temporarily invalid; may be reactivated
	CredentialStatusRevoked   CredentialStatus = "REVOKED"   // Terminal; no transition leaves this state
)

// CredentialMetadata holds the lifecycle fields of a credential.
type CredentialMetadata struct {
	IssuanceDate   time.Time        `json:"issuanceDate"`   // Timestamp of issuance; non-zero iff the record exists
	ExpirationDate time.Time        `json:"expirationDate"` // Zero value means no expiry
	Status         CredentialStatus `json:"status"`
}

// CredentialRecord is the on-ledger credential record, keyed by the
// credential's content hash. Issuer/holder DID hashes are derived views of
// the stored principals, cached for query efficiency.
type CredentialRecord struct {
	ObjectType     string             `json:"objectType"`     // Set to the composite key object type (CredentialRecord)
	CredentialID   string             `json:"credentialId"`   // Hex multihash of the credential payload (also the key)
	Issuer         string             `json:"issuer"`         // Principal that issued the credential
	Holder         string             `json:"holder"`         // Principal the credential is bound to
	IssuerDidHash  string             `json:"issuerDidHash"`  // Cached hash of the issuer's DID string
	HolderDidHash  string             `json:"holderDidHash"`  // Cached hash of the holder's DID string
	ContentLocator string             `json:"contentLocator"` // CID of the off-chain credential document
	Metadata       CredentialMetadata `json:"metadata"`
}
