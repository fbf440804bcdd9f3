package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/vaultgate/pkg/contracts"
	"github.com/Mindburn-Labs/vaultgate/pkg/executor"
	"github.com/Mindburn-Labs/vaultgate/pkg/gate"
)

func openTestStore(t *testing.T) *SQLiteSnapshotStore {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func populatedGate(t *testing.T) *gate.Gate {
	t.Helper()
	g, err := gate.New("owner", executor.NewStatic("0xtest"))
	require.NoError(t, err)

	_, err = g.AddPolicy("owner", contracts.Policy{
		Name:       "small-auto",
		Conditions: []contracts.Condition{contracts.MaxAmount(100)},
		Action:     contracts.Allow(),
		Priority:   1,
	})
	require.NoError(t, err)
	_, err = g.AddPolicy("owner", contracts.Policy{
		Name:     "review",
		Action:   contracts.RequireThreshold(2),
		Priority: 2,
	})
	require.NoError(t, err)
	require.NoError(t, g.AssignRole("owner", "op", contracts.RoleOperator))

	_, err = g.RequestAction(context.Background(), "op",
		contracts.Transfer{Chain: "ethereum", Token: "USDC", To: "0x1", Amount: 50})
	require.NoError(t, err)
	_, err = g.RequestAction(context.Background(), "op",
		contracts.Transfer{Chain: "ethereum", Token: "USDC", To: "0x2", Amount: 5000})
	require.NoError(t, err)

	return g
}

func TestEmptyStoreLoadsNothing(t *testing.T) {
	s := openTestStore(t)

	snap, err := s.LoadLatest(context.Background())
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := openTestStore(t)
	g := populatedGate(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, g.Snapshot()))

	snap, err := s.LoadLatest(ctx)
	require.NoError(t, err)
	require.NotNil(t, snap)

	restored, err := gate.New("other", executor.NewStatic("0xr"))
	require.NoError(t, err)
	require.NoError(t, restored.Restore(*snap))

	assert.Len(t, restored.Policies(), 2)
	assert.True(t, restored.HasPermission("op", contracts.PermissionExecute))
	assert.Len(t, restored.PendingRequests(), 1)

	// The hash chain survives serialization intact.
	valid, err := restored.VerifyAuditChain("owner")
	require.NoError(t, err)
	assert.True(t, valid)

	entries, err := restored.AuditEntries("owner", nil, nil)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestLatestSnapshotWins(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	g := populatedGate(t)
	require.NoError(t, s.Save(ctx, g.Snapshot()))

	// Mutate and save again.
	require.NoError(t, g.AssignRole("owner", "late", contracts.RoleViewer))
	require.NoError(t, s.Save(ctx, g.Snapshot()))

	snap, err := s.LoadLatest(ctx)
	require.NoError(t, err)
	require.NotNil(t, snap)

	restored, err := gate.New("other", executor.NewStatic("0xr"))
	require.NoError(t, err)
	require.NoError(t, restored.Restore(*snap))
	assert.True(t, restored.HasPermission("late", contracts.PermissionViewLogs))
}

func TestPruneKeepsNewest(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	g := populatedGate(t)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Save(ctx, g.Snapshot()))
	}
	require.NoError(t, s.Prune(ctx, 2))

	var count int
	require.NoError(t, s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM snapshots`).Scan(&count))
	assert.Equal(t, 2, count)

	snap, err := s.LoadLatest(ctx)
	require.NoError(t, err)
	assert.NotNil(t, snap)
}

func TestAuditMirrorQueryable(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	g := populatedGate(t)

	require.NoError(t, s.Save(ctx, g.Snapshot()))

	var count int
	require.NoError(t, s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM audit_entries WHERE decision = ?`, "ALLOWED").Scan(&count))
	assert.Equal(t, 1, count)

	var requester string
	require.NoError(t, s.db.QueryRowContext(ctx,
		`SELECT requester FROM audit_entries WHERE id = 0`).Scan(&requester))
	assert.Equal(t, "op", requester)
}
