package access

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/vaultgate/pkg/contracts"
)

func TestAssignAndRevokeRole(t *testing.T) {
	s := NewStore()

	s.AssignRole("alice", contracts.RoleOperator)
	assert.True(t, s.HasRole("alice", contracts.RoleOperator))
	assert.False(t, s.HasRole("alice", contracts.RoleOwner))

	// Assigning again is a no-op, not a duplicate.
	s.AssignRole("alice", contracts.RoleOperator)
	assert.Len(t, s.Roles("alice"), 1)

	s.RevokeRole("alice", contracts.RoleOperator)
	assert.False(t, s.HasRole("alice", contracts.RoleOperator))
	assert.Empty(t, s.Roles("alice"))

	// Revoking an absent role is a no-op.
	s.RevokeRole("alice", contracts.RoleOperator)
	s.RevokeRole("nobody", contracts.RoleViewer)
}

func TestPermissionDerivation(t *testing.T) {
	s := NewStore()
	s.AssignRole("owner", contracts.RoleOwner)
	s.AssignRole("op", contracts.RoleOperator)
	s.AssignRole("view", contracts.RoleViewer)

	all := []contracts.Permission{
		contracts.PermissionExecute,
		contracts.PermissionConfigure,
		contracts.PermissionViewLogs,
		contracts.PermissionSign,
		contracts.PermissionEmergency,
	}
	for _, perm := range all {
		assert.True(t, s.HasPermission("owner", perm), "owner should have %s", perm)
	}

	assert.True(t, s.HasPermission("op", contracts.PermissionExecute))
	assert.True(t, s.HasPermission("op", contracts.PermissionSign))
	assert.True(t, s.HasPermission("op", contracts.PermissionViewLogs))
	assert.False(t, s.HasPermission("op", contracts.PermissionConfigure))
	assert.False(t, s.HasPermission("op", contracts.PermissionEmergency))

	assert.True(t, s.HasPermission("view", contracts.PermissionViewLogs))
	assert.False(t, s.HasPermission("view", contracts.PermissionExecute))
	assert.False(t, s.HasPermission("view", contracts.PermissionSign))
}

func TestUnknownPrincipalHasNothing(t *testing.T) {
	s := NewStore()
	assert.False(t, s.HasPermission("ghost", contracts.PermissionViewLogs))
	assert.Empty(t, s.Roles("ghost"))
}

func TestMultipleRolesUnionPermissions(t *testing.T) {
	s := NewStore()
	s.AssignRole("bob", contracts.RoleViewer)
	s.AssignRole("bob", contracts.RoleOperator)

	assert.True(t, s.HasPermission("bob", contracts.PermissionExecute))
	assert.True(t, s.HasPermission("bob", contracts.PermissionViewLogs))
	assert.Len(t, s.Roles("bob"), 2)
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	s := NewStore()
	s.AssignRole("alice", contracts.RoleOwner)
	s.AssignRole("bob", contracts.RoleOperator)
	s.AssignRole("bob", contracts.RoleViewer)

	snap := s.Snapshot()
	require.Len(t, snap, 3)

	restored := NewStore()
	restored.Restore(snap)
	assert.True(t, restored.HasRole("alice", contracts.RoleOwner))
	assert.True(t, restored.HasRole("bob", contracts.RoleOperator))
	assert.True(t, restored.HasRole("bob", contracts.RoleViewer))
	assert.Equal(t, s.ListRoleAssignments(), restored.ListRoleAssignments())
}
