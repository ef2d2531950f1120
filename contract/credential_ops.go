package contract

import (
	"encoding/json"
	"fmt"
	"strings"

	"trustregistry/model"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
	"github.com/hyperledger/fabric/common/flogging"
	"github.com/ipfs/go-cid"
)

var credLogger = flogging.MustGetLogger("trustregistry.credentialregistry")

// credentialObjectType is used for composite keys and as a 'docType' for CouchDB queries.
const credentialObjectType = "CredentialRecord"

// allowedCredentialTransitions is the closed status transition table.
// REVOKED is terminal; NONE is never a valid current status for a mutation.
var allowedCredentialTransitions = map[model.CredentialStatus]map[model.CredentialStatus]bool{
	model.CredentialStatusActive: {
		model.CredentialStatusSuspended: true,
		model.CredentialStatusRevoked:   true,
	},
	model.CredentialStatusSuspended: {
		model.CredentialStatusActive:  true,
		model.CredentialStatusRevoked: true,
	},
	model.CredentialStatusRevoked: {},
}

// CredentialRegistry manages issuance and status lifecycle of verifiable
// credentials. It consults RoleControl for authorization and reads (never
// writes) DID registry state to validate issuer and holder identities.
type CredentialRegistry struct {
	Ctx   contractapi.TransactionContextInterface
	Roles *RoleControl
	Dids  *DidRegistry
}

// NewCredentialRegistry creates a CredentialRegistry. Both dependencies are
// required; construction fails if either is unset.
func NewCredentialRegistry(ctx contractapi.TransactionContextInterface, roles *RoleControl, dids *DidRegistry) (*CredentialRegistry, error) {
	if roles == nil {
		return nil, registryErrorf(ErrInvalidState, "CredentialRegistry requires a RoleControl dependency")
	}
	if dids == nil {
		return nil, registryErrorf(ErrInvalidState, "CredentialRegistry requires a DidRegistry dependency")
	}
	return &CredentialRegistry{Ctx: ctx, Roles: roles, Dids: dids}, nil
}

// newCredentialRegistryFromContext wires the full dependency chain for one
// transaction: RoleControl -> DidRegistry -> CredentialRegistry.
func newCredentialRegistryFromContext(ctx contractapi.TransactionContextInterface) (*CredentialRegistry, error) {
	roles := NewRoleControl(ctx)
	dids, err := NewDidRegistry(ctx, roles)
	if err != nil {
		return nil, err
	}
	return NewCredentialRegistry(ctx, roles, dids)
}

func (cr *CredentialRegistry) createCredentialCompositeKey(credentialID string) (string, error) {
	return cr.Ctx.GetStub().CreateCompositeKey(credentialObjectType, []string{credentialID})
}

// getCredentialRecord returns the stored record, or nil if absent.
func (cr *CredentialRegistry) getCredentialRecord(credentialID string) (*model.CredentialRecord, error) {
	credKey, err := cr.createCredentialCompositeKey(credentialID)
	if err != nil {
		return nil, fmt.Errorf("failed to create credential composite key for '%s': %w", credentialID, err)
	}
	recordBytes, err := cr.Ctx.GetStub().GetState(credKey)
	if err != nil {
		return nil, fmt.Errorf("ledger error retrieving credential record for '%s': %w", credentialID, err)
	}
	if recordBytes == nil {
		return nil, nil
	}
	var record model.CredentialRecord
	if err := json.Unmarshal(recordBytes, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal CredentialRecord for '%s': %w", credentialID, err)
	}
	return &record, nil
}

func (cr *CredentialRegistry) putCredentialRecord(record *model.CredentialRecord) error {
	recordBytes, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal CredentialRecord for '%s': %w", record.CredentialID, err)
	}
	credKey, err := cr.createCredentialCompositeKey(record.CredentialID)
	if err != nil {
		return fmt.Errorf("failed to create credential composite key for '%s': %w", record.CredentialID, err)
	}
	if err := cr.Ctx.GetStub().PutState(credKey, recordBytes); err != nil {
		return fmt.Errorf("failed to save CredentialRecord for '%s': %w", record.CredentialID, err)
	}
	return nil
}

// requireActiveSelfControlledDid confirms the principal has an existing,
// ACTIVE identity record that it controls itself.
func (cr *CredentialRegistry) requireActiveSelfControlledDid(principal, party string) error {
	record, err := cr.Dids.getDidRecord(principal)
	if err != nil {
		return err
	}
	if record == nil {
		return registryErrorf(ErrNotFound, "%s '%s' has no DID record", party, principal)
	}
	if record.Status != model.DidStatusActive {
		return registryErrorf(ErrInvalidState, "%s DID record for '%s' has status '%s', expected '%s'", party, principal, record.Status, model.DidStatusActive)
	}
	if record.Owner != principal {
		return registryErrorf(ErrUnauthorized, "%s DID record for '%s' is not self-controlled (owner '%s')", party, principal, record.Owner)
	}
	return nil
}

// parseCredentialStatus maps a status argument to its enum value.
func parseCredentialStatus(value, field string) (model.CredentialStatus, error) {
	status := model.CredentialStatus(strings.ToUpper(strings.TrimSpace(value)))
	switch status {
	case model.CredentialStatusNone, model.CredentialStatusActive, model.CredentialStatusSuspended, model.CredentialStatusRevoked:
		return status, nil
	}
	return "", registryErrorf(ErrInvalidInput, "%s '%s' is not a known credential status", field, value)
}

// --- Internal Operations (parameterized by the acting principal) ---

func (cr *CredentialRegistry) issueCredential(actor, holder, credentialID, issuerDidHash, holderDidHash, contentLocator string) error {
	if err := validateMultihashHex(credentialID, "credentialId"); err != nil {
		return err
	}
	if err := validateRequiredString(holder, "holder identity", maxStringInputLength); err != nil {
		return err
	}
	if err := validateRequiredString(contentLocator, "contentLocator", maxLocatorLength); err != nil {
		return err
	}
	if _, err := cid.Decode(contentLocator); err != nil {
		return registryErrorf(ErrInvalidInput, "contentLocator '%s' is not a valid CID: %v", contentLocator, err)
	}

	if err := cr.Roles.RequireTrusteeOrIssuer(actor); err != nil {
		return err
	}
	if err := cr.requireActiveSelfControlledDid(actor, "issuer"); err != nil {
		return err
	}
	if err := cr.requireActiveSelfControlledDid(holder, "holder"); err != nil {
		return err
	}

	// DID-hash arguments must equal the deterministic derivation from the
	// issuer/holder principals; anything else is a spoofed reference.
	derivedIssuerHash := deriveDidHash(actor)
	if issuerDidHash != derivedIssuerHash {
		return registryErrorf(ErrMismatch, "issuerDidHash '%s' does not match derivation '%s' for issuer '%s'", issuerDidHash, derivedIssuerHash, actor)
	}
	derivedHolderHash := deriveDidHash(holder)
	if holderDidHash != derivedHolderHash {
		return registryErrorf(ErrMismatch, "holderDidHash '%s' does not match derivation '%s' for holder '%s'", holderDidHash, derivedHolderHash, holder)
	}
	if derivedIssuerHash == derivedHolderHash {
		return registryErrorf(ErrIdenticalParties, "issuer '%s' and holder '%s' resolve to the same identity; self-issuance is not allowed", actor, holder)
	}

	existing, err := cr.getCredentialRecord(credentialID)
	if err != nil {
		return err
	}
	if existing != nil {
		return registryErrorf(ErrAlreadyExists, "credential '%s' already exists", credentialID)
	}

	now, err := getCurrentTxTimestamp(cr.Ctx)
	if err != nil {
		return err
	}
	record := model.CredentialRecord{
		ObjectType:     credentialObjectType,
		CredentialID:   credentialID,
		Issuer:         actor,
		Holder:         holder,
		IssuerDidHash:  derivedIssuerHash,
		HolderDidHash:  derivedHolderHash,
		ContentLocator: contentLocator,
		Metadata: model.CredentialMetadata{
			IssuanceDate: now,
			Status:       model.CredentialStatusActive,
		},
	}
	if err := cr.putCredentialRecord(&record); err != nil {
		return err
	}

	emitRegistryEvent(cr.Ctx, "CredentialIssued", map[string]interface{}{
		"credentialId":   credentialID,
		"issuer":         actor,
		"holder":         holder,
		"issuerDidHash":  derivedIssuerHash,
		"holderDidHash":  derivedHolderHash,
		"contentLocator": contentLocator,
		"timestamp":      now,
	})
	credLogger.Infof("Credential '%s' issued by '%s' to '%s'.", credentialID, actor, holder)
	return nil
}

func (cr *CredentialRegistry) updateCredentialStatus(actor, credentialID string, expectedStatus, newStatus model.CredentialStatus) error {
	record, err := cr.getCredentialRecord(credentialID)
	if err != nil {
		return err
	}
	if record == nil {
		return registryErrorf(ErrNotFound, "credential '%s' does not exist", credentialID)
	}

	if actor != record.Issuer {
		isTrustee, err := cr.Roles.IsTrustee(actor)
		if err != nil {
			return err
		}
		if !isTrustee {
			return registryErrorf(ErrUnauthorized, "principal '%s' is neither the issuer of credential '%s' nor a trustee", actor, credentialID)
		}
	}
	issuerActive, err := cr.Dids.IsDidActive(record.Issuer)
	if err != nil {
		return err
	}
	if !issuerActive {
		return registryErrorf(ErrInvalidState, "issuer DID record for '%s' is no longer active", record.Issuer)
	}

	// Optimistic concurrency: the caller asserts the status it observed.
	// A stale expectation is rejected even when the target status would be
	// reachable from the actual one, so racing writers cannot clobber each
	// other's transitions.
	if record.Metadata.Status != expectedStatus {
		return registryErrorf(ErrInvalidStatusTransition, "status mismatch for credential '%s': stored status '%s' does not match expected '%s'", credentialID, record.Metadata.Status, expectedStatus)
	}
	if expectedStatus == newStatus {
		credLogger.Infof("Credential '%s' already has status '%s'. No action taken.", credentialID, newStatus)
		return nil
	}
	if !allowedCredentialTransitions[record.Metadata.Status][newStatus] {
		return registryErrorf(ErrInvalidStatusTransition, "credential '%s' cannot move from '%s' to '%s'", credentialID, record.Metadata.Status, newStatus)
	}

	now, err := getCurrentTxTimestamp(cr.Ctx)
	if err != nil {
		return err
	}
	previousStatus := record.Metadata.Status
	record.Metadata.Status = newStatus
	if err := cr.putCredentialRecord(record); err != nil {
		return err
	}

	payload := map[string]interface{}{
		"credentialId":   credentialID,
		"previousStatus": previousStatus,
		"newStatus":      newStatus,
		"actor":          actor,
		"timestamp":      now,
	}
	emitRegistryEvent(cr.Ctx, "CredentialStatusChanged", payload)
	// A second, status-specific event lets downstream indexers subscribe to
	// one lifecycle transition without filtering the generic stream.
	switch newStatus {
	case model.CredentialStatusRevoked:
		emitRegistryEvent(cr.Ctx, "CredentialRevoked", payload)
	case model.CredentialStatusSuspended:
		emitRegistryEvent(cr.Ctx, "CredentialSuspended", payload)
	case model.CredentialStatusActive:
		emitRegistryEvent(cr.Ctx, "CredentialReactivated", payload)
	}
	credLogger.Infof("Credential '%s' moved from '%s' to '%s' by '%s'.", credentialID, previousStatus, newStatus, actor)
	return nil
}

// --- Chaincode Entrypoints ---

// IssueCredential binds a credential to a holder identity. The caller must
// hold TRUSTEE or ISSUER and control an active DID record of its own.
func (s *TrustRegistrySmartContract) IssueCredential(ctx contractapi.TransactionContextInterface, holderIdentity, credentialID, issuerDidHash, holderDidHash, contentLocator string) error {
	logger.Infof("Chaincode Call: IssueCredential '%s' for holder '%s'", credentialID, holderIdentity)
	actor, err := getCurrentPrincipal(ctx)
	if err != nil {
		return fmt.Errorf("IssueCredential: %w", err)
	}
	cr, err := newCredentialRegistryFromContext(ctx)
	if err != nil {
		return err
	}
	return cr.issueCredential(actor, holderIdentity, credentialID, issuerDidHash, holderDidHash, contentLocator)
}

// IssueCredentialSigned issues a credential on behalf of the signer of the
// supplied off-chain signature.
func (s *TrustRegistrySmartContract) IssueCredentialSigned(ctx contractapi.TransactionContextInterface, holderIdentity, credentialID, issuerDidHash, holderDidHash, contentLocator, signature string) error {
	logger.Infof("Chaincode Call: IssueCredentialSigned '%s' for holder '%s'", credentialID, holderIdentity)
	actor, err := s.recoverSigner("IssueCredential", holderIdentity, signature, credentialID, issuerDidHash, holderDidHash, contentLocator)
	if err != nil {
		return err
	}
	cr, err := newCredentialRegistryFromContext(ctx)
	if err != nil {
		return err
	}
	return cr.issueCredential(actor, holderIdentity, credentialID, issuerDidHash, holderDidHash, contentLocator)
}

// UpdateCredentialStatus transitions a credential's status. The caller
// asserts the status it expects; a stale assertion is rejected.
func (s *TrustRegistrySmartContract) UpdateCredentialStatus(ctx contractapi.TransactionContextInterface, credentialID, expectedStatus, newStatus string) error {
	logger.Infof("Chaincode Call: UpdateCredentialStatus '%s' %s -> %s", credentialID, expectedStatus, newStatus)
	actor, err := getCurrentPrincipal(ctx)
	if err != nil {
		return fmt.Errorf("UpdateCredentialStatus: %w", err)
	}
	return s.updateCredentialStatus(ctx, actor, credentialID, expectedStatus, newStatus)
}

// UpdateCredentialStatusSigned transitions a credential's status on behalf
// of the signer of the supplied off-chain signature.
func (s *TrustRegistrySmartContract) UpdateCredentialStatusSigned(ctx contractapi.TransactionContextInterface, credentialID, expectedStatus, newStatus, signature string) error {
	logger.Infof("Chaincode Call: UpdateCredentialStatusSigned '%s' %s -> %s", credentialID, expectedStatus, newStatus)
	actor, err := s.recoverSigner("UpdateCredentialStatus", credentialID, signature, expectedStatus, newStatus)
	if err != nil {
		return err
	}
	return s.updateCredentialStatus(ctx, actor, credentialID, expectedStatus, newStatus)
}

func (s *TrustRegistrySmartContract) updateCredentialStatus(ctx contractapi.TransactionContextInterface, actor, credentialID, expectedStatus, newStatus string) error {
	expected, err := parseCredentialStatus(expectedStatus, "expectedStatus")
	if err != nil {
		return err
	}
	next, err := parseCredentialStatus(newStatus, "newStatus")
	if err != nil {
		return err
	}
	cr, err := newCredentialRegistryFromContext(ctx)
	if err != nil {
		return err
	}
	return cr.updateCredentialStatus(actor, credentialID, expected, next)
}
