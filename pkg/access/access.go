// Package access implements the identity and permission store: role
// assignments per principal and the fixed role→permission table.
package access

import (
	"sort"
	"sync"

	"github.com/Mindburn-Labs/vaultgate/pkg/contracts"
)

// Store holds role assignments. Reads are safe under concurrent use;
// the orchestrator serializes mutations against the rest of the engine
// state.
type Store struct {
	mu    sync.RWMutex
	roles map[contracts.Principal][]contracts.Role
}

// NewStore creates an empty role store.
func NewStore() *Store {
	return &Store{roles: make(map[contracts.Principal][]contracts.Role)}
}

// AssignRole grants role to principal. Assigning an already-held role
// is a no-op, never a duplicate.
func (s *Store) AssignRole(principal contracts.Principal, role contracts.Role) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.roles[principal] {
		if r == role {
			return
		}
	}
	s.roles[principal] = append(s.roles[principal], role)
}

// RevokeRole removes role from principal. Revoking an unheld role is a
// no-op, not an error.
func (s *Store) RevokeRole(principal contracts.Principal, role contracts.Role) {
	s.mu.Lock()
	defer s.mu.Unlock()

	held := s.roles[principal]
	kept := held[:0]
	for _, r := range held {
		if r != role {
			kept = append(kept, r)
		}
	}
	if len(kept) == 0 {
		delete(s.roles, principal)
		return
	}
	s.roles[principal] = kept
}

// HasRole reports whether principal currently holds role.
func (s *Store) HasRole(principal contracts.Principal, role contracts.Role) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.roles[principal] {
		if r == role {
			return true
		}
	}
	return false
}

// Roles returns all roles held by principal.
func (s *Store) Roles(principal contracts.Principal) []contracts.Role {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]contracts.Role, len(s.roles[principal]))
	copy(out, s.roles[principal])
	return out
}

// HasPermission reports whether any role held by principal maps to the
// permission. A principal with no assignments has no permissions.
func (s *Store) HasPermission(principal contracts.Principal, perm contracts.Permission) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, role := range s.roles[principal] {
		if roleHasPermission(role, perm) {
			return true
		}
	}
	return false
}

// roleHasPermission is the fixed grant table. Owner holds everything,
// Operator can execute/sign/read, Viewer can only read.
func roleHasPermission(role contracts.Role, perm contracts.Permission) bool {
	switch role {
	case contracts.RoleOwner:
		return true
	case contracts.RoleOperator:
		return perm == contracts.PermissionExecute ||
			perm == contracts.PermissionSign ||
			perm == contracts.PermissionViewLogs
	case contracts.RoleViewer:
		return perm == contracts.PermissionViewLogs
	}
	return false
}

// ListRoleAssignments returns a flattened (principal, role) view,
// sorted for a deterministic order within a process run.
func (s *Store) ListRoleAssignments() []contracts.RoleAssignment {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]contracts.RoleAssignment, 0, len(s.roles))
	for principal, held := range s.roles {
		for _, role := range held {
			out = append(out, contracts.RoleAssignment{Principal: principal, Role: role})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Principal != out[j].Principal {
			return out[i].Principal < out[j].Principal
		}
		return out[i].Role < out[j].Role
	})
	return out
}

// Snapshot exports all assignments for the persistence layer.
func (s *Store) Snapshot() []contracts.RoleAssignment {
	return s.ListRoleAssignments()
}

// Restore replaces the store contents with a snapshot.
func (s *Store) Restore(assignments []contracts.RoleAssignment) {
	s.mu.Lock()
	s.roles = make(map[contracts.Principal][]contracts.Role)
	s.mu.Unlock()

	for _, a := range assignments {
		s.AssignRole(a.Principal, a.Role)
	}
}
