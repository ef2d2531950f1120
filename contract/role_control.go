package contract

import (
	"encoding/json"
	"fmt"
	"strconv"

	"trustregistry/model"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
	"github.com/hyperledger/fabric/common/flogging"
)

var rcLogger = flogging.MustGetLogger("trustregistry.rolecontrol")

// Object types for composite keys.
const (
	roleObjectType      = "RoleAssignment" // Stores RoleAssignment objects. Attribute: principal.
	roleCountObjectType = "RoleCount"      // Stores per-role assignment counts. Attribute: role.
)

// RoleControl is the single source of truth for "who may do what". It owns
// the principal-to-role mapping and is its sole mutator; the DID and
// credential registries consult it for authorization and never write to it.
type RoleControl struct {
	Ctx contractapi.TransactionContextInterface
}

// NewRoleControl creates a new instance of RoleControl.
func NewRoleControl(ctx contractapi.TransactionContextInterface) *RoleControl {
	return &RoleControl{Ctx: ctx}
}

// --- Key Creation Helpers ---

func (rc *RoleControl) createRoleCompositeKey(principal string) (string, error) {
	return rc.Ctx.GetStub().CreateCompositeKey(roleObjectType, []string{principal})
}

func (rc *RoleControl) createRoleCountCompositeKey(role model.Role) (string, error) {
	return rc.Ctx.GetStub().CreateCompositeKey(roleCountObjectType, []string{string(role)})
}

// --- Lookups ---

// getRoleAssignment returns the stored assignment for a principal, or nil if
// the principal has never been assigned a role.
func (rc *RoleControl) getRoleAssignment(principal string) (*model.RoleAssignment, error) {
	roleKey, err := rc.createRoleCompositeKey(principal)
	if err != nil {
		return nil, fmt.Errorf("failed to create role composite key for '%s': %w", principal, err)
	}
	assignmentBytes, err := rc.Ctx.GetStub().GetState(roleKey)
	if err != nil {
		return nil, fmt.Errorf("ledger error retrieving role assignment for '%s': %w", principal, err)
	}
	if assignmentBytes == nil {
		return nil, nil
	}
	var assignment model.RoleAssignment
	if err := json.Unmarshal(assignmentBytes, &assignment); err != nil {
		return nil, fmt.Errorf("failed to unmarshal RoleAssignment for '%s': %w", principal, err)
	}
	return &assignment, nil
}

// GetRole returns the role currently held by a principal, RoleNone if unset.
func (rc *RoleControl) GetRole(principal string) (model.Role, error) {
	assignment, err := rc.getRoleAssignment(principal)
	if err != nil {
		return model.RoleNone, err
	}
	if assignment == nil {
		return model.RoleNone, nil
	}
	return assignment.Role, nil
}

// HasAnyRole reports whether the principal holds one of the given roles.
func (rc *RoleControl) HasAnyRole(principal string, roles ...model.Role) (bool, error) {
	current, err := rc.GetRole(principal)
	if err != nil {
		return false, err
	}
	for _, r := range roles {
		if current == r {
			return true, nil
		}
	}
	return false, nil
}

// RequireAnyRole confirms the principal holds one of the given roles or
// fails with an Unauthorized error carrying the principal.
func (rc *RoleControl) RequireAnyRole(principal string, roles ...model.Role) error {
	has, err := rc.HasAnyRole(principal, roles...)
	if err != nil {
		return fmt.Errorf("error checking roles for principal '%s': %w", principal, err)
	}
	if !has {
		return registryErrorf(ErrUnauthorized, "principal '%s' does not hold any of the required roles %v", principal, roles)
	}
	return nil
}

func (rc *RoleControl) IsTrustee(principal string) (bool, error) {
	return rc.HasAnyRole(principal, model.RoleTrustee)
}

func (rc *RoleControl) IsIssuer(principal string) (bool, error) {
	return rc.HasAnyRole(principal, model.RoleIssuer)
}

func (rc *RoleControl) IsHolder(principal string) (bool, error) {
	return rc.HasAnyRole(principal, model.RoleHolder)
}

// RequireTrustee confirms the principal holds TRUSTEE.
func (rc *RoleControl) RequireTrustee(principal string) error {
	return rc.RequireAnyRole(principal, model.RoleTrustee)
}

// RequireTrusteeOrIssuer confirms the principal holds TRUSTEE or ISSUER.
func (rc *RoleControl) RequireTrusteeOrIssuer(principal string) error {
	return rc.RequireAnyRole(principal, model.RoleTrustee, model.RoleIssuer)
}

// --- Role Count Bookkeeping ---

func (rc *RoleControl) getRoleCount(role model.Role) (int, error) {
	countKey, err := rc.createRoleCountCompositeKey(role)
	if err != nil {
		return 0, fmt.Errorf("failed to create role count key for '%s': %w", role, err)
	}
	countBytes, err := rc.Ctx.GetStub().GetState(countKey)
	if err != nil {
		return 0, fmt.Errorf("ledger error retrieving role count for '%s': %w", role, err)
	}
	if countBytes == nil {
		return 0, nil
	}
	count, err := strconv.Atoi(string(countBytes))
	if err != nil {
		return 0, fmt.Errorf("corrupt role count for '%s': %w", role, err)
	}
	return count, nil
}

func (rc *RoleControl) setRoleCount(role model.Role, count int) error {
	countKey, err := rc.createRoleCountCompositeKey(role)
	if err != nil {
		return fmt.Errorf("failed to create role count key for '%s': %w", role, err)
	}
	if err := rc.Ctx.GetStub().PutState(countKey, []byte(strconv.Itoa(count))); err != nil {
		return fmt.Errorf("failed to save role count for '%s': %w", role, err)
	}
	return nil
}

func (rc *RoleControl) adjustRoleCounts(previous, next model.Role) error {
	if previous != model.RoleNone && previous != next {
		count, err := rc.getRoleCount(previous)
		if err != nil {
			return err
		}
		if count > 0 {
			count--
		}
		if err := rc.setRoleCount(previous, count); err != nil {
			return err
		}
	}
	count, err := rc.getRoleCount(next)
	if err != nil {
		return err
	}
	if previous != next {
		count++
	}
	// Reassigning the same role re-writes the unchanged count so the
	// bookkeeping entry always reflects the last accepted assignment.
	return rc.setRoleCount(next, count)
}

// GetRoleCounts returns the number of principals currently holding each role.
func (rc *RoleControl) GetRoleCounts() (map[string]int, error) {
	counts := map[string]int{}
	for _, role := range []model.Role{model.RoleIssuer, model.RoleHolder, model.RoleTrustee} {
		count, err := rc.getRoleCount(role)
		if err != nil {
			return nil, err
		}
		counts[string(role)] = count
	}
	return counts, nil
}

// --- Mutations ---

// AssignRole gives a principal a role, overwriting any existing assignment.
// Only a trustee may assign roles.
func (rc *RoleControl) AssignRole(role model.Role, principal string) error {
	caller, err := getCurrentPrincipal(rc.Ctx)
	if err != nil {
		return fmt.Errorf("failed to get caller principal for AssignRole: %w", err)
	}
	if err := rc.RequireTrustee(caller); err != nil {
		return fmt.Errorf("AssignRole: %w", err)
	}
	if !model.ValidAssignableRoles[role] {
		return registryErrorf(ErrInvalidInput, "invalid role '%s'; valid roles are ISSUER, HOLDER, TRUSTEE", role)
	}
	if err := validateRequiredString(principal, "principal", maxStringInputLength); err != nil {
		return err
	}
	return rc.putRoleAssignment(role, principal, caller)
}

// BootstrapTrustee assigns TRUSTEE to the calling principal. It may only run
// while no trustee exists; every later assignment goes through AssignRole.
func (rc *RoleControl) BootstrapTrustee() error {
	trusteeCount, err := rc.getRoleCount(model.RoleTrustee)
	if err != nil {
		return fmt.Errorf("BootstrapTrustee: failed to check for existing trustees: %w", err)
	}
	if trusteeCount > 0 {
		return registryErrorf(ErrInvalidState, "registry already has a trustee; BootstrapTrustee must not be re-run")
	}
	caller, err := getCurrentPrincipal(rc.Ctx)
	if err != nil {
		return fmt.Errorf("BootstrapTrustee: failed to get caller principal: %w", err)
	}
	rcLogger.Infof("Bootstrapping registry: principal '%s' becomes the first trustee.", caller)
	return rc.putRoleAssignment(model.RoleTrustee, caller, caller)
}

// putRoleAssignment writes the assignment, updates counts and emits the
// role-changed audit event. Authorization is the caller's responsibility.
func (rc *RoleControl) putRoleAssignment(role model.Role, principal, assignedBy string) error {
	now, err := getCurrentTxTimestamp(rc.Ctx)
	if err != nil {
		return err
	}

	existing, err := rc.getRoleAssignment(principal)
	if err != nil {
		return err
	}
	previousRole := model.RoleNone
	assignment := model.RoleAssignment{
		ObjectType: roleObjectType,
		Principal:  principal,
		Role:       role,
		AssignedBy: assignedBy,
		AssignedAt: now,
		UpdatedAt:  now,
	}
	if existing != nil {
		previousRole = existing.Role
		assignment.AssignedAt = existing.AssignedAt
	}

	assignmentBytes, err := json.Marshal(assignment)
	if err != nil {
		return fmt.Errorf("failed to marshal RoleAssignment for '%s': %w", principal, err)
	}
	roleKey, err := rc.createRoleCompositeKey(principal)
	if err != nil {
		return fmt.Errorf("failed to create role composite key for '%s': %w", principal, err)
	}
	if err := rc.Ctx.GetStub().PutState(roleKey, assignmentBytes); err != nil {
		return fmt.Errorf("failed to save RoleAssignment for '%s': %w", principal, err)
	}
	if err := rc.adjustRoleCounts(previousRole, role); err != nil {
		return err
	}

	emitRegistryEvent(rc.Ctx, "RoleAssigned", map[string]interface{}{
		"principal":    principal,
		"role":         role,
		"previousRole": previousRole,
		"assignedBy":   assignedBy,
		"timestamp":    now,
	})
	rcLogger.Infof("Role '%s' assigned to principal '%s' by '%s' (previous: '%s').", role, principal, assignedBy, previousRole)
	return nil
}
