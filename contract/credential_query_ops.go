package contract

import (
	"fmt"

	"trustregistry/model"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
)

// --- Credential Registry Read Operations ---

// ResolveCredential returns the credential record. Resolution of REVOKED
// credentials is refused with a distinct error so read-path consumers cannot
// accidentally rely on a dead credential; auditors observe revoked
// credentials through GetCredentialStatus instead.
func (cr *CredentialRegistry) ResolveCredential(credentialID string) (*model.CredentialRecord, error) {
	record, err := cr.getCredentialRecord(credentialID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, registryErrorf(ErrNotFound, "credential '%s' does not exist", credentialID)
	}
	if record.Metadata.Status == model.CredentialStatusRevoked {
		return nil, registryErrorf(ErrInvalidState, "credential '%s' is revoked and cannot be resolved", credentialID)
	}
	return record, nil
}

// GetCredentialStatus returns the status only, CredentialStatusNone for
// absent records. Revoked credentials are visible here.
func (cr *CredentialRegistry) GetCredentialStatus(credentialID string) (model.CredentialStatus, error) {
	record, err := cr.getCredentialRecord(credentialID)
	if err != nil {
		return model.CredentialStatusNone, err
	}
	if record == nil {
		return model.CredentialStatusNone, nil
	}
	return record.Metadata.Status, nil
}

// GetIssuerDidHash returns the cached issuer DID hash, recomputing from the
// stored issuer principal if the cache is unexpectedly empty. The cache is a
// derived view, never an independent source of truth.
func (cr *CredentialRegistry) GetIssuerDidHash(credentialID string) (string, error) {
	record, err := cr.getCredentialRecord(credentialID)
	if err != nil {
		return "", err
	}
	if record == nil {
		return "", registryErrorf(ErrNotFound, "credential '%s' does not exist", credentialID)
	}
	if record.IssuerDidHash == "" {
		credLogger.Warningf("Issuer DID hash cache empty for credential '%s'; recomputing from issuer '%s'.", credentialID, record.Issuer)
		return deriveDidHash(record.Issuer), nil
	}
	return record.IssuerDidHash, nil
}

// GetHolderDidHash returns the cached holder DID hash, recomputing from the
// stored holder principal if the cache is unexpectedly empty.
func (cr *CredentialRegistry) GetHolderDidHash(credentialID string) (string, error) {
	record, err := cr.getCredentialRecord(credentialID)
	if err != nil {
		return "", err
	}
	if record == nil {
		return "", registryErrorf(ErrNotFound, "credential '%s' does not exist", credentialID)
	}
	if record.HolderDidHash == "" {
		credLogger.Warningf("Holder DID hash cache empty for credential '%s'; recomputing from holder '%s'.", credentialID, record.Holder)
		return deriveDidHash(record.Holder), nil
	}
	return record.HolderDidHash, nil
}

// GetHolder returns the holder principal of a credential.
func (cr *CredentialRegistry) GetHolder(credentialID string) (string, error) {
	record, err := cr.getCredentialRecord(credentialID)
	if err != nil {
		return "", err
	}
	if record == nil {
		return "", registryErrorf(ErrNotFound, "credential '%s' does not exist", credentialID)
	}
	return record.Holder, nil
}

// --- Chaincode Entrypoints ---

func (s *TrustRegistrySmartContract) ResolveCredential(ctx contractapi.TransactionContextInterface, credentialID string) (*model.CredentialRecord, error) {
	logger.Debugf("Chaincode Call: ResolveCredential '%s'", credentialID)
	cr, err := newCredentialRegistryFromContext(ctx)
	if err != nil {
		return nil, err
	}
	return cr.ResolveCredential(credentialID)
}

func (s *TrustRegistrySmartContract) GetCredentialStatus(ctx contractapi.TransactionContextInterface, credentialID string) (string, error) {
	logger.Debugf("Chaincode Call: GetCredentialStatus '%s'", credentialID)
	cr, err := newCredentialRegistryFromContext(ctx)
	if err != nil {
		return "", err
	}
	status, err := cr.GetCredentialStatus(credentialID)
	if err != nil {
		return "", fmt.Errorf("GetCredentialStatus: %w", err)
	}
	return string(status), nil
}

func (s *TrustRegistrySmartContract) GetIssuerDidHash(ctx contractapi.TransactionContextInterface, credentialID string) (string, error) {
	logger.Debugf("Chaincode Call: GetIssuerDidHash '%s'", credentialID)
	cr, err := newCredentialRegistryFromContext(ctx)
	if err != nil {
		return "", err
	}
	return cr.GetIssuerDidHash(credentialID)
}

func (s *TrustRegistrySmartContract) GetHolderDidHash(ctx contractapi.TransactionContextInterface, credentialID string) (string, error) {
	logger.Debugf("Chaincode Call: GetHolderDidHash '%s'", credentialID)
	cr, err := newCredentialRegistryFromContext(ctx)
	if err != nil {
		return "", err
	}
	return cr.GetHolderDidHash(credentialID)
}

func (s *TrustRegistrySmartContract) GetHolder(ctx contractapi.TransactionContextInterface, credentialID string) (string, error) {
	logger.Debugf("Chaincode Call: GetHolder '%s'", credentialID)
	cr, err := newCredentialRegistryFromContext(ctx)
	if err != nil {
		return "", err
	}
	return cr.GetHolder(credentialID)
}
