package contract

import (
	"fmt"
	"strings"

	"trustregistry/model"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
	"github.com/hyperledger/fabric/common/flogging"
)

var logger = flogging.MustGetLogger("trustregistry.contract")

// registryName identifies this registry inside signed payloads, so a
// signature produced for one deployment cannot be replayed against another.
const registryName = "trustregistry"

// TrustRegistrySmartContract exposes the role control, DID registry and
// credential registry operations as chaincode transactions.
// @contract:TrustRegistrySmartContract
type TrustRegistrySmartContract struct {
	contractapi.Contract

	// Verifier resolves the signing principal for the signed operation
	// variants. Signed operations fail if it is unset.
	Verifier SignatureVerifier
}

// NewTrustRegistrySmartContract creates the contract with the default
// Ed25519 signature verifier.
func NewTrustRegistrySmartContract() *TrustRegistrySmartContract {
	return &TrustRegistrySmartContract{Verifier: NewEd25519Verifier()}
}

// Instantiate is called during chaincode instantiation.
func (s *TrustRegistrySmartContract) Instantiate(ctx contractapi.TransactionContextInterface) {
	logger.Info("TrustRegistrySmartContract Instantiated/Upgraded")
}

// recoverSigner resolves the acting principal for a signed operation from
// the supplied signature over the canonical payload.
func (s *TrustRegistrySmartContract) recoverSigner(operation, identity, signature string, args ...string) (string, error) {
	if s.Verifier == nil {
		return "", registryErrorf(ErrInvalidState, "signature verifier is not configured")
	}
	if err := validateRequiredString(signature, "signature", maxLocatorLength); err != nil {
		return "", err
	}
	payload := buildSignedPayload(registryName, operation, identity, args...)
	principal, err := s.Verifier.RecoverPrincipal(payload, signature)
	if err != nil {
		return "", fmt.Errorf("%s: failed to recover signer: %w", operation, err)
	}
	if principal == "" {
		return "", registryErrorf(ErrUnauthorized, "%s: recovered an empty principal", operation)
	}
	return principal, nil
}

// --- Role Control Wrappers (delegating to RoleControl) ---

// BootstrapTrustee makes the calling principal the registry's first trustee.
func (s *TrustRegistrySmartContract) BootstrapTrustee(ctx contractapi.TransactionContextInterface) error {
	logger.Info("Chaincode Call: BootstrapTrustee")
	return NewRoleControl(ctx).BootstrapTrustee()
}

// AssignRole assigns a role to a principal. Trustee only.
func (s *TrustRegistrySmartContract) AssignRole(ctx contractapi.TransactionContextInterface, role, principal string) error {
	logger.Infof("Chaincode Call: AssignRole '%s' to '%s'", role, principal)
	return NewRoleControl(ctx).AssignRole(model.Role(strings.ToUpper(strings.TrimSpace(role))), principal)
}

// GetRole returns the role held by a principal, "NONE" if unset.
func (s *TrustRegistrySmartContract) GetRole(ctx contractapi.TransactionContextInterface, principal string) (string, error) {
	logger.Debugf("Chaincode Call: GetRole for '%s'", principal)
	role, err := NewRoleControl(ctx).GetRole(principal)
	if err != nil {
		return "", err
	}
	return string(role), nil
}

func (s *TrustRegistrySmartContract) IsTrustee(ctx contractapi.TransactionContextInterface, principal string) (bool, error) {
	return NewRoleControl(ctx).IsTrustee(principal)
}

func (s *TrustRegistrySmartContract) IsIssuer(ctx contractapi.TransactionContextInterface, principal string) (bool, error) {
	return NewRoleControl(ctx).IsIssuer(principal)
}

func (s *TrustRegistrySmartContract) IsHolder(ctx contractapi.TransactionContextInterface, principal string) (bool, error) {
	return NewRoleControl(ctx).IsHolder(principal)
}

// GetRoleCounts returns how many principals currently hold each role.
func (s *TrustRegistrySmartContract) GetRoleCounts(ctx contractapi.TransactionContextInterface) (map[string]int, error) {
	logger.Debug("Chaincode Call: GetRoleCounts")
	return NewRoleControl(ctx).GetRoleCounts()
}
