// Package identity maps caller roles to the capabilities the API checks.
package identity

import "sort"

// Role is the role claim of an authenticated user
type Role string

const (
	RoleSuperAdmin Role = "SUPER_ADMIN"
	RoleAdmin      Role = "ADMIN"
	RoleOwner      Role = "OWNER"
	RoleManager    Role = "MANAGER"
	RoleTenant     Role = "TENANT"
)

// IsValid reports whether r is a known role
func (r Role) IsValid() bool {
	_, ok := roleCapabilities[r]
	return ok
}

// Capability is one atomic permission
type Capability string

const (
	CapPaymentsRecord    Capability = "payments:record"
	CapPaymentsRecordAny Capability = "payments:record_any" // record on behalf of any tenant
	CapPaymentsRead      Capability = "payments:read"
	CapInvoicesCreate    Capability = "invoices:create"
	CapInvoicesRead      Capability = "invoices:read"
	CapLeasesRead        Capability = "leases:read"
	CapLeasesManage      Capability = "leases:manage"
	CapPolicyRead        Capability = "policy:read"
	CapPolicyManage      Capability = "policy:manage"   // global and property policies
	CapPolicyOverride    Capability = "policy:override" // lease-level overrides
	CapSystemOutbox      Capability = "system:outbox"
)

// AllCapabilities lists every capability
func AllCapabilities() []Capability {
	return []Capability{
		CapPaymentsRecord, CapPaymentsRecordAny, CapPaymentsRead,
		CapInvoicesCreate, CapInvoicesRead,
		CapLeasesRead, CapLeasesManage,
		CapPolicyRead, CapPolicyManage, CapPolicyOverride,
		CapSystemOutbox,
	}
}

var roleCapabilities = map[Role][]Capability{
	RoleSuperAdmin: AllCapabilities(),
	RoleAdmin:      AllCapabilities(),
	RoleOwner: {
		CapPaymentsRecord, CapPaymentsRecordAny, CapPaymentsRead,
		CapInvoicesCreate, CapInvoicesRead,
		CapLeasesRead, CapLeasesManage,
		CapPolicyRead, CapPolicyManage, CapPolicyOverride,
	},
	RoleManager: {
		CapPaymentsRecord, CapPaymentsRecordAny, CapPaymentsRead,
		CapInvoicesCreate, CapInvoicesRead,
		CapLeasesRead, CapLeasesManage,
		CapPolicyRead, CapPolicyOverride,
	},
	RoleTenant: {
		CapPaymentsRecord, CapPaymentsRead,
		CapInvoicesRead, CapLeasesRead, CapPolicyRead,
	},
}

// CapabilitySet is an immutable set of capabilities
type CapabilitySet struct {
	caps map[Capability]struct{}
}

// CapabilitiesFor returns the capabilities granted to role. An unknown role
// gets the empty set.
func CapabilitiesFor(role Role) CapabilitySet {
	granted := roleCapabilities[role]
	set := CapabilitySet{caps: make(map[Capability]struct{}, len(granted))}
	for _, c := range granted {
		set.caps[c] = struct{}{}
	}
	return set
}

// Has reports whether c is in the set
func (s CapabilitySet) Has(c Capability) bool {
	_, ok := s.caps[c]
	return ok
}

// Len returns the number of capabilities
func (s CapabilitySet) Len() int {
	return len(s.caps)
}

// Strings returns the capabilities sorted
func (s CapabilitySet) Strings() []string {
	out := make([]string, 0, len(s.caps))
	for c := range s.caps {
		out = append(out, string(c))
	}
	sort.Strings(out)
	return out
}
