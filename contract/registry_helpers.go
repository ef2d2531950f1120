package contract

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
	"github.com/multiformats/go-multihash"
)

// --- Core Helper Methods (used across all registries) ---

// didMethodPrefix is prepended to a principal to form its DID string.
// Issuer/holder DID hashes are derived from these strings, so the prefix is
// part of the deterministic derivation and must never change once deployed.
const didMethodPrefix = "did:vdr:"

const (
	maxStringInputLength = 256
	maxLocatorLength     = 512
)

// getCurrentTxTimestamp retrieves the current transaction timestamp from the stub.
// This is the ordering service's logical clock, identical on every endorser.
func getCurrentTxTimestamp(ctx contractapi.TransactionContextInterface) (time.Time, error) {
	ts, err := ctx.GetStub().GetTxTimestamp()
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get transaction timestamp: %w", err)
	}
	return ts.AsTime(), nil
}

// getCurrentPrincipal retrieves the principal of the direct transaction
// submitter from the client identity.
func getCurrentPrincipal(ctx contractapi.TransactionContextInterface) (string, error) {
	clientIdentity := ctx.GetClientIdentity()
	if clientIdentity == nil {
		return "", registryErrorf(ErrUnauthorized, "client identity is nil from context")
	}
	id, err := clientIdentity.GetID()
	if err != nil {
		return "", fmt.Errorf("failed to get client identity ID from context: %w", err)
	}
	if id == "" {
		return "", registryErrorf(ErrUnauthorized, "client identity ID from context is empty")
	}
	return id, nil
}

// --- Validation Helpers ---

func validateRequiredString(input, field string, max int) error {
	if strings.TrimSpace(input) == "" {
		return registryErrorf(ErrInvalidInput, "%s cannot be empty", field)
	}
	if len(input) > max {
		return registryErrorf(ErrInvalidInput, "%s exceeds max length %d", field, max)
	}
	return nil
}

// validateMultihashHex checks that the supplied value parses as a hex-encoded
// multihash. Document digests and credential ids are content hashes; a value
// that does not decode can never match any derivation.
func validateMultihashHex(value, field string) error {
	if err := validateRequiredString(value, field, maxStringInputLength); err != nil {
		return err
	}
	if _, err := multihash.FromHexString(value); err != nil {
		return registryErrorf(ErrInvalidInput, "%s '%s' is not a valid hex multihash: %v", field, value, err)
	}
	return nil
}

// --- Deterministic Derivations ---

// didForPrincipal builds the DID string for a principal.
func didForPrincipal(principal string) string {
	return didMethodPrefix + principal
}

// deriveDidHash computes the deterministic hash of a principal's DID string.
// Cached issuer/holder DID hashes on credential records must always equal
// this derivation; the stored principal is the only source of truth.
func deriveDidHash(principal string) string {
	sum, err := multihash.Sum([]byte(didForPrincipal(principal)), multihash.SHA2_256, -1)
	if err != nil {
		// multihash.Sum only fails on unknown hash codes; SHA2_256 is built in.
		panic("deriveDidHash: " + err.Error())
	}
	return sum.HexString()
}

// --- Event Emission ---

// emitRegistryEvent sends a chaincode event with a JSON payload. Events are
// the only state-change notification mechanism; external indexers rebuild
// registry state from them without direct storage access.
func emitRegistryEvent(ctx contractapi.TransactionContextInterface, eventName string, payload map[string]interface{}) {
	for k, v := range payload {
		if t, ok := v.(time.Time); ok {
			payload[k] = t.Format(time.RFC3339)
		}
	}
	eventBytes, err := json.Marshal(payload)
	if err != nil {
		logger.Warningf("emitRegistryEvent: failed to marshal payload for event '%s': %v", eventName, err)
		return
	}
	if errSet := ctx.GetStub().SetEvent(eventName, eventBytes); errSet != nil {
		logger.Warningf("emitRegistryEvent: failed to set event '%s': %v", eventName, errSet)
	}
}
