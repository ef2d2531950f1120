package contract

import (
	"encoding/json"
	"fmt"

	"trustregistry/model"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
	"github.com/hyperledger/fabric/common/flogging"
)

var didLogger = flogging.MustGetLogger("trustregistry.didregistry")

// didObjectType is used for composite keys and as a 'docType' for CouchDB queries.
const didObjectType = "DidRecord"

// DidRegistry manages the lifecycle of identity records keyed by the
// identity's own principal. It consults RoleControl for authorization and
// owns the DidRecord object type exclusively.
type DidRegistry struct {
	Ctx   contractapi.TransactionContextInterface
	Roles *RoleControl
}

// NewDidRegistry creates a DidRegistry. The role control dependency is
// required; construction fails if it is unset.
func NewDidRegistry(ctx contractapi.TransactionContextInterface, roles *RoleControl) (*DidRegistry, error) {
	if roles == nil {
		return nil, registryErrorf(ErrInvalidState, "DidRegistry requires a RoleControl dependency")
	}
	return &DidRegistry{Ctx: ctx, Roles: roles}, nil
}

func (dr *DidRegistry) createDidCompositeKey(identity string) (string, error) {
	return dr.Ctx.GetStub().CreateCompositeKey(didObjectType, []string{identity})
}

// getDidRecord returns the stored record for an identity, or nil if absent.
func (dr *DidRegistry) getDidRecord(identity string) (*model.DidRecord, error) {
	didKey, err := dr.createDidCompositeKey(identity)
	if err != nil {
		return nil, fmt.Errorf("failed to create DID composite key for '%s': %w", identity, err)
	}
	recordBytes, err := dr.Ctx.GetStub().GetState(didKey)
	if err != nil {
		return nil, fmt.Errorf("ledger error retrieving DID record for '%s': %w", identity, err)
	}
	if recordBytes == nil {
		return nil, nil
	}
	var record model.DidRecord
	if err := json.Unmarshal(recordBytes, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal DidRecord for '%s': %w", identity, err)
	}
	return &record, nil
}

func (dr *DidRegistry) putDidRecord(record *model.DidRecord) error {
	recordBytes, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal DidRecord for '%s': %w", record.Identity, err)
	}
	didKey, err := dr.createDidCompositeKey(record.Identity)
	if err != nil {
		return fmt.Errorf("failed to create DID composite key for '%s': %w", record.Identity, err)
	}
	if err := dr.Ctx.GetStub().PutState(didKey, recordBytes); err != nil {
		return fmt.Errorf("failed to save DidRecord for '%s': %w", record.Identity, err)
	}
	return nil
}

// requireOwnerActor confirms the acting principal is the record owner.
// Identity mutations are always owner-authorized; no role escalates past
// this, a trustee included.
func (dr *DidRegistry) requireOwnerActor(actor string, record *model.DidRecord) error {
	if actor != record.Owner {
		return registryErrorf(ErrUnauthorized, "principal '%s' does not own identity '%s'; only the owner may mutate its record", actor, record.Identity)
	}
	return nil
}

// requireSubmitterControl confirms the transaction submitter may carry the
// operation to the ledger: the identity itself, or a trustee relaying a
// signed operation on its behalf.
func (dr *DidRegistry) requireSubmitterControl(submitter string, record *model.DidRecord) error {
	if submitter == record.Identity {
		return nil
	}
	isTrustee, err := dr.Roles.IsTrustee(submitter)
	if err != nil {
		return err
	}
	if !isTrustee {
		return registryErrorf(ErrUnauthorized, "submitter '%s' may not relay operations for identity '%s'; only the identity or a trustee may submit", submitter, record.Identity)
	}
	return nil
}

// --- Internal Operations (parameterized by the acting principal) ---
// Direct and signed entrypoints both land here, so authorization semantics
// are single-sourced regardless of who submitted the transaction.

func (dr *DidRegistry) createDid(actor, identity, documentDigest string) error {
	if err := validateRequiredString(identity, "identity", maxStringInputLength); err != nil {
		return err
	}
	if err := validateMultihashHex(documentDigest, "documentDigest"); err != nil {
		return err
	}
	if actor != identity {
		return registryErrorf(ErrUnauthorized, "principal '%s' cannot create a DID record for '%s'; identities are self-registered", actor, identity)
	}
	if err := dr.Roles.RequireAnyRole(actor, model.RoleTrustee, model.RoleIssuer, model.RoleHolder); err != nil {
		return err
	}

	existing, err := dr.getDidRecord(identity)
	if err != nil {
		return err
	}
	if existing != nil {
		return registryErrorf(ErrAlreadyExists, "DID record for identity '%s' already exists", identity)
	}

	now, err := getCurrentTxTimestamp(dr.Ctx)
	if err != nil {
		return err
	}
	record := model.DidRecord{
		ObjectType:     didObjectType,
		Identity:       identity,
		Owner:          identity,
		DocumentDigest: documentDigest,
		Created:        now,
		Updated:        now,
		VersionID:      1,
		Status:         model.DidStatusActive,
	}
	if err := dr.putDidRecord(&record); err != nil {
		return err
	}

	emitRegistryEvent(dr.Ctx, "DidCreated", map[string]interface{}{
		"identity":       identity,
		"documentDigest": documentDigest,
		"versionId":      record.VersionID,
		"actor":          actor,
		"timestamp":      now,
	})
	didLogger.Infof("DID record created for identity '%s' (digest %s).", identity, documentDigest)
	return nil
}

func (dr *DidRegistry) updateDid(actor, submitter, identity, documentDigest string) error {
	if err := validateMultihashHex(documentDigest, "documentDigest"); err != nil {
		return err
	}
	record, err := dr.getDidRecord(identity)
	if err != nil {
		return err
	}
	if record == nil {
		return registryErrorf(ErrNotFound, "DID record for identity '%s' does not exist", identity)
	}
	if record.Status != model.DidStatusActive {
		return registryErrorf(ErrInvalidState, "DID record for identity '%s' has status '%s', expected '%s'", identity, record.Status, model.DidStatusActive)
	}
	if err := dr.requireOwnerActor(actor, record); err != nil {
		return err
	}
	if err := dr.requireSubmitterControl(submitter, record); err != nil {
		return err
	}

	now, err := getCurrentTxTimestamp(dr.Ctx)
	if err != nil {
		return err
	}
	record.DocumentDigest = documentDigest
	record.Updated = now
	record.VersionID++
	if err := dr.putDidRecord(record); err != nil {
		return err
	}

	emitRegistryEvent(dr.Ctx, "DidUpdated", map[string]interface{}{
		"identity":       identity,
		"documentDigest": documentDigest,
		"versionId":      record.VersionID,
		"actor":          actor,
		"timestamp":      now,
	})
	didLogger.Infof("DID record for identity '%s' updated to version %d.", identity, record.VersionID)
	return nil
}

func (dr *DidRegistry) deactivateDid(actor, submitter, identity string) error {
	record, err := dr.getDidRecord(identity)
	if err != nil {
		return err
	}
	if record == nil {
		return registryErrorf(ErrNotFound, "DID record for identity '%s' does not exist", identity)
	}
	if record.Status != model.DidStatusActive {
		return registryErrorf(ErrInvalidState, "DID record for identity '%s' has status '%s', expected '%s'", identity, record.Status, model.DidStatusActive)
	}
	if err := dr.requireOwnerActor(actor, record); err != nil {
		return err
	}
	if err := dr.requireSubmitterControl(submitter, record); err != nil {
		return err
	}

	now, err := getCurrentTxTimestamp(dr.Ctx)
	if err != nil {
		return err
	}
	record.Status = model.DidStatusDeactivated
	record.Updated = now
	record.VersionID++
	if err := dr.putDidRecord(record); err != nil {
		return err
	}

	emitRegistryEvent(dr.Ctx, "DidDeactivated", map[string]interface{}{
		"identity":  identity,
		"versionId": record.VersionID,
		"actor":     actor,
		"timestamp": now,
	})
	didLogger.Infof("DID record for identity '%s' deactivated.", identity)
	return nil
}

// --- Chaincode Entrypoints ---

// CreateDid registers a new identity record. The caller must be the
// identity itself and hold one of the trust-triangle roles.
func (s *TrustRegistrySmartContract) CreateDid(ctx contractapi.TransactionContextInterface, identity, documentDigest string) error {
	logger.Infof("Chaincode Call: CreateDid for '%s'", identity)
	actor, err := getCurrentPrincipal(ctx)
	if err != nil {
		return fmt.Errorf("CreateDid: %w", err)
	}
	dr, err := NewDidRegistry(ctx, NewRoleControl(ctx))
	if err != nil {
		return err
	}
	return dr.createDid(actor, identity, documentDigest)
}

// CreateDidSigned registers a new identity record on behalf of the signer of
// the supplied off-chain signature.
func (s *TrustRegistrySmartContract) CreateDidSigned(ctx contractapi.TransactionContextInterface, identity, documentDigest, signature string) error {
	logger.Infof("Chaincode Call: CreateDidSigned for '%s'", identity)
	actor, err := s.recoverSigner("CreateDid", identity, signature, documentDigest)
	if err != nil {
		return err
	}
	dr, err := NewDidRegistry(ctx, NewRoleControl(ctx))
	if err != nil {
		return err
	}
	return dr.createDid(actor, identity, documentDigest)
}

// UpdateDid replaces the document digest of an active identity record.
// The caller must be the identity itself.
func (s *TrustRegistrySmartContract) UpdateDid(ctx contractapi.TransactionContextInterface, identity, documentDigest string) error {
	logger.Infof("Chaincode Call: UpdateDid for '%s'", identity)
	actor, err := getCurrentPrincipal(ctx)
	if err != nil {
		return fmt.Errorf("UpdateDid: %w", err)
	}
	dr, err := NewDidRegistry(ctx, NewRoleControl(ctx))
	if err != nil {
		return err
	}
	return dr.updateDid(actor, actor, identity, documentDigest)
}

// UpdateDidSigned replaces the document digest on behalf of the signer,
// who must be the identity itself. Only the identity or a trustee may
// relay the signed operation.
func (s *TrustRegistrySmartContract) UpdateDidSigned(ctx contractapi.TransactionContextInterface, identity, documentDigest, signature string) error {
	logger.Infof("Chaincode Call: UpdateDidSigned for '%s'", identity)
	actor, err := s.recoverSigner("UpdateDid", identity, signature, documentDigest)
	if err != nil {
		return err
	}
	submitter, err := getCurrentPrincipal(ctx)
	if err != nil {
		return fmt.Errorf("UpdateDidSigned: %w", err)
	}
	dr, err := NewDidRegistry(ctx, NewRoleControl(ctx))
	if err != nil {
		return err
	}
	return dr.updateDid(actor, submitter, identity, documentDigest)
}

// DeactivateDid irreversibly deactivates an identity record. The record
// remains resolvable as a tombstone. The caller must be the identity itself.
func (s *TrustRegistrySmartContract) DeactivateDid(ctx contractapi.TransactionContextInterface, identity string) error {
	logger.Infof("Chaincode Call: DeactivateDid for '%s'", identity)
	actor, err := getCurrentPrincipal(ctx)
	if err != nil {
		return fmt.Errorf("DeactivateDid: %w", err)
	}
	dr, err := NewDidRegistry(ctx, NewRoleControl(ctx))
	if err != nil {
		return err
	}
	return dr.deactivateDid(actor, actor, identity)
}

// DeactivateDidSigned deactivates an identity record on behalf of the
// signer, who must be the identity itself. Only the identity or a trustee
// may relay the signed operation.
func (s *TrustRegistrySmartContract) DeactivateDidSigned(ctx contractapi.TransactionContextInterface, identity, signature string) error {
	logger.Infof("Chaincode Call: DeactivateDidSigned for '%s'", identity)
	actor, err := s.recoverSigner("DeactivateDid", identity, signature)
	if err != nil {
		return err
	}
	submitter, err := getCurrentPrincipal(ctx)
	if err != nil {
		return fmt.Errorf("DeactivateDidSigned: %w", err)
	}
	dr, err := NewDidRegistry(ctx, NewRoleControl(ctx))
	if err != nil {
		return err
	}
	return dr.deactivateDid(actor, submitter, identity)
}
