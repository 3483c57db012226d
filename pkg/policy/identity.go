// Package policy holds the access-control decision logic and the derived
// ticket lifecycle. Everything here is a pure function over facts the caller
// already loaded: the policy never reads or writes the store, so a decision
// is deterministic for a given request snapshot.
package policy

import "crowdtrack-backend/pkg/models"

// Identity is the authenticated principal for the current operation, as
// resolved by the transport layer.
type Identity struct {
	LoginName string
	Role      models.AccountRole
}

// IsOwner reports whether the identity carries the owner role.
func (id Identity) IsOwner() bool {
	return id.Role == models.RoleOwner
}

// IsContributor reports whether the identity carries the contributor role.
func (id Identity) IsContributor() bool {
	return id.Role == models.RoleContributor
}
