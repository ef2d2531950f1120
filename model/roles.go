// File: model/roles.go
package model

import "time"

// Role defines the trust-triangle roles a principal can hold.
// A principal holds at most one role at a time; assigning a new role
// overwrites the previous one.
type Role string

const (
	RoleNone    Role = "NONE"    // No role assigned (absent record)
	RoleIssuer  Role = "ISSUER"  // May issue credentials
	RoleHolder  Role = "HOLDER"  // May hold credentials
	RoleTrustee Role = "TRUSTEE" // Governance principal; may assign roles
)

// ValidAssignableRoles is the set of roles a trustee may assign.
var ValidAssignableRoles = map[Role]bool{
	RoleIssuer:  true,
	RoleHolder:  true,
	RoleTrustee: true,
}

// RoleAssignment stores the single role held by a principal.
type RoleAssignment struct {
	ObjectType string    `json:"objectType"` // Set to the composite key object type (RoleAssignment)
	Principal  string    `json:"principal"`  // Principal this assignment belongs to
	Role       Role      `json:"role"`       // Current role of the principal
	AssignedBy string    `json:"assignedBy"` // Principal that performed the assignment
	AssignedAt time.Time `json:"assignedAt"` // Timestamp of first assignment
	UpdatedAt  time.Time `json:"updatedAt"`  // Timestamp of last (re)assignment
}
