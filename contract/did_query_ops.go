package contract

import (
	"fmt"

	"trustregistry/model"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
)

// --- DID Registry Read Operations ---
// Pure reads; none of these mutate state.

// ResolveDid returns the identity record, including deactivated tombstones.
func (dr *DidRegistry) ResolveDid(identity string) (*model.DidRecord, error) {
	record, err := dr.getDidRecord(identity)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, registryErrorf(ErrNotFound, "DID record for identity '%s' does not exist", identity)
	}
	return record, nil
}

// DidExists reports whether an identity record exists at all.
func (dr *DidRegistry) DidExists(identity string) (bool, error) {
	record, err := dr.getDidRecord(identity)
	if err != nil {
		return false, err
	}
	return record != nil, nil
}

// IsDidActive reports whether an identity record exists and is ACTIVE.
func (dr *DidRegistry) IsDidActive(identity string) (bool, error) {
	record, err := dr.getDidRecord(identity)
	if err != nil {
		return false, err
	}
	return record != nil && record.Status == model.DidStatusActive, nil
}

// GetDidStatus returns the record status, DidStatusNone for absent records.
func (dr *DidRegistry) GetDidStatus(identity string) (model.DidStatus, error) {
	record, err := dr.getDidRecord(identity)
	if err != nil {
		return model.DidStatusNone, err
	}
	if record == nil {
		return model.DidStatusNone, nil
	}
	return record.Status, nil
}

// ValidateDocumentHash compares a candidate digest against the stored one,
// so a third party that fetched the off-chain document can verify integrity.
func (dr *DidRegistry) ValidateDocumentHash(identity, candidateHash string) (bool, error) {
	record, err := dr.ResolveDid(identity)
	if err != nil {
		return false, err
	}
	return record.DocumentDigest == candidateHash, nil
}

// --- Chaincode Entrypoints ---

func (s *TrustRegistrySmartContract) ResolveDid(ctx contractapi.TransactionContextInterface, identity string) (*model.DidRecord, error) {
	logger.Debugf("Chaincode Call: ResolveDid for '%s'", identity)
	dr, err := NewDidRegistry(ctx, NewRoleControl(ctx))
	if err != nil {
		return nil, err
	}
	return dr.ResolveDid(identity)
}

func (s *TrustRegistrySmartContract) DidExists(ctx contractapi.TransactionContextInterface, identity string) (bool, error) {
	logger.Debugf("Chaincode Call: DidExists for '%s'", identity)
	dr, err := NewDidRegistry(ctx, NewRoleControl(ctx))
	if err != nil {
		return false, err
	}
	return dr.DidExists(identity)
}

func (s *TrustRegistrySmartContract) IsDidActive(ctx contractapi.TransactionContextInterface, identity string) (bool, error) {
	logger.Debugf("Chaincode Call: IsDidActive for '%s'", identity)
	dr, err := NewDidRegistry(ctx, NewRoleControl(ctx))
	if err != nil {
		return false, err
	}
	return dr.IsDidActive(identity)
}

func (s *TrustRegistrySmartContract) GetDidStatus(ctx contractapi.TransactionContextInterface, identity string) (string, error) {
	logger.Debugf("Chaincode Call: GetDidStatus for '%s'", identity)
	dr, err := NewDidRegistry(ctx, NewRoleControl(ctx))
	if err != nil {
		return "", err
	}
	status, err := dr.GetDidStatus(identity)
	if err != nil {
		return "", fmt.Errorf("GetDidStatus: %w", err)
	}
	return string(status), nil
}

func (s *TrustRegistrySmartContract) ValidateDocumentHash(ctx contractapi.TransactionContextInterface, identity, candidateHash string) (bool, error) {
	logger.Debugf("Chaincode Call: ValidateDocumentHash for '%s'", identity)
	dr, err := NewDidRegistry(ctx, NewRoleControl(ctx))
	if err != nil {
		return false, err
	}
	return dr.ValidateDocumentHash(identity, candidateHash)
}
