// Package store defines the persistence interfaces used by the service layer.
// Implementations live in the memory and postgres subpackages.
package store

// Stores bundles every store the server needs.
type Stores struct {
	Organizations OrganizationStore
	Principals    PrincipalStore
	Memberships   MembershipStore
	Sessions      SessionStore
	Clients       ClientStore
	Projects      ProjectStore
}
