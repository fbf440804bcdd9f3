package threshold

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/vaultgate/pkg/contracts"
)

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func testAction() contracts.Action {
	return contracts.Transfer{Chain: "ethereum", Token: "USDC", To: "0xdead", Amount: 5000}
}

func TestCreateRequest(t *testing.T) {
	m := NewManager()

	req := m.CreateRequest(testAction(), "alice", 2, t0)
	assert.Equal(t, uint64(0), req.ID)
	assert.Equal(t, contracts.RequestPending, req.Status)
	assert.Equal(t, uint8(2), req.RequiredSignatures)
	assert.Empty(t, req.CollectedSignatures)
	assert.Equal(t, t0, req.CreatedAt)
	assert.Equal(t, t0.Add(DefaultExpiry), req.ExpiresAt)

	second := m.CreateRequest(testAction(), "bob", 1, t0)
	assert.Equal(t, uint64(1), second.ID)
}

func TestSignRequestLifecycle(t *testing.T) {
	m := NewManager()
	req := m.CreateRequest(testAction(), "alice", 2, t0)

	// First signature keeps the request pending.
	after, err := m.SignRequest(req.ID, "signer-1", t0.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, contracts.RequestPending, after.Status)
	require.Len(t, after.CollectedSignatures, 1)
	assert.Equal(t, contracts.Principal("signer-1"), after.CollectedSignatures[0].Signer)

	// Second signature crosses the quorum.
	after, err = m.SignRequest(req.ID, "signer-2", t0.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, contracts.RequestApproved, after.Status)
	assert.Len(t, after.CollectedSignatures, 2)
	assert.True(t, m.IsApproved(req.ID))
}

func TestRequesterMaySign(t *testing.T) {
	m := NewManager()
	req := m.CreateRequest(testAction(), "alice", 1, t0)

	after, err := m.SignRequest(req.ID, "alice", t0.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, contracts.RequestApproved, after.Status)
}

func TestSignErrors(t *testing.T) {
	m := NewManager()
	req := m.CreateRequest(testAction(), "alice", 2, t0)

	// Unknown ID.
	_, err := m.SignRequest(999, "signer-1", t0)
	assert.ErrorIs(t, err, ErrNotFound)

	// Duplicate signer.
	_, err = m.SignRequest(req.ID, "signer-1", t0.Add(time.Minute))
	require.NoError(t, err)
	_, err = m.SignRequest(req.ID, "signer-1", t0.Add(2*time.Minute))
	assert.ErrorIs(t, err, ErrAlreadySigned)

	// Signing past expiry flips the request to Expired.
	_, err = m.SignRequest(req.ID, "signer-2", t0.Add(DefaultExpiry+time.Second))
	assert.ErrorIs(t, err, ErrExpired)
	stored, getErr := m.Request(req.ID)
	require.NoError(t, getErr)
	assert.Equal(t, contracts.RequestExpired, stored.Status)

	// Once expired, further signs report invalid status via the expiry
	// check (the request stays expired).
	_, err = m.SignRequest(req.ID, "signer-3", t0.Add(DefaultExpiry+2*time.Second))
	assert.ErrorIs(t, err, ErrExpired)
}

func TestSignAfterApprovalFails(t *testing.T) {
	m := NewManager()
	req := m.CreateRequest(testAction(), "alice", 1, t0)

	_, err := m.SignRequest(req.ID, "signer-1", t0.Add(time.Second))
	require.NoError(t, err)

	_, err = m.SignRequest(req.ID, "signer-2", t0.Add(2*time.Second))
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestExpiredSignatureDiscarded(t *testing.T) {
	m := NewManager()
	req := m.CreateRequest(testAction(), "alice", 2, t0)

	_, err := m.SignRequest(req.ID, "signer-1", t0.Add(DefaultExpiry+time.Hour))
	assert.ErrorIs(t, err, ErrExpired)

	stored, getErr := m.Request(req.ID)
	require.NoError(t, getErr)
	assert.Empty(t, stored.CollectedSignatures)
}

func TestRejectRequest(t *testing.T) {
	m := NewManager()
	req := m.CreateRequest(testAction(), "alice", 2, t0)

	require.NoError(t, m.RejectRequest(req.ID, "looks wrong"))
	stored, err := m.Request(req.ID)
	require.NoError(t, err)
	assert.Equal(t, contracts.RequestRejected, stored.Status)

	// Rejection is terminal for signing.
	_, err = m.SignRequest(req.ID, "signer-1", t0.Add(time.Second))
	assert.ErrorIs(t, err, ErrInvalidStatus)

	assert.ErrorIs(t, m.RejectRequest(404, "nope"), ErrNotFound)
}

func TestMarkExecuted(t *testing.T) {
	m := NewManager()
	req := m.CreateRequest(testAction(), "alice", 1, t0)
	_, err := m.SignRequest(req.ID, "signer-1", t0.Add(time.Second))
	require.NoError(t, err)

	require.NoError(t, m.MarkExecuted(req.ID))
	stored, err := m.Request(req.ID)
	require.NoError(t, err)
	assert.Equal(t, contracts.RequestExecuted, stored.Status)

	assert.ErrorIs(t, m.MarkExecuted(404), ErrNotFound)
}

func TestPendingRequestsSortedAndFiltered(t *testing.T) {
	m := NewManager()
	a := m.CreateRequest(testAction(), "alice", 2, t0)
	b := m.CreateRequest(testAction(), "bob", 1, t0)
	c := m.CreateRequest(testAction(), "carol", 2, t0)

	// Approve b so it drops out of the pending view.
	_, err := m.SignRequest(b.ID, "signer-1", t0.Add(time.Second))
	require.NoError(t, err)

	pending := m.PendingRequests()
	require.Len(t, pending, 2)
	assert.Equal(t, a.ID, pending[0].ID)
	assert.Equal(t, c.ID, pending[1].ID)
}

func TestCleanupExpired(t *testing.T) {
	m := NewManager().WithExpiry(time.Hour)
	a := m.CreateRequest(testAction(), "alice", 2, t0)
	b := m.CreateRequest(testAction(), "bob", 2, t0.Add(30*time.Minute))

	m.CleanupExpired(t0.Add(90 * time.Minute))

	storedA, err := m.Request(a.ID)
	require.NoError(t, err)
	assert.Equal(t, contracts.RequestExpired, storedA.Status)

	storedB, err := m.Request(b.ID)
	require.NoError(t, err)
	assert.Equal(t, contracts.RequestPending, storedB.Status)

	// Idempotent.
	m.CleanupExpired(t0.Add(90 * time.Minute))
	storedA, err = m.Request(a.ID)
	require.NoError(t, err)
	assert.Equal(t, contracts.RequestExpired, storedA.Status)
}

func TestReturnedRequestIsACopy(t *testing.T) {
	m := NewManager()
	req := m.CreateRequest(testAction(), "alice", 2, t0)

	req.Status = contracts.RequestExecuted
	req.CollectedSignatures = append(req.CollectedSignatures, contracts.Signature{Signer: "evil"})

	stored, err := m.Request(req.ID)
	require.NoError(t, err)
	assert.Equal(t, contracts.RequestPending, stored.Status)
	assert.Empty(t, stored.CollectedSignatures)
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	m := NewManager()
	m.CreateRequest(testAction(), "alice", 2, t0)
	b := m.CreateRequest(testAction(), "bob", 1, t0)
	_, err := m.SignRequest(b.ID, "signer-1", t0.Add(time.Second))
	require.NoError(t, err)

	requests, nextID := m.Snapshot()
	require.Len(t, requests, 2)
	assert.Equal(t, uint64(2), nextID)

	restored := NewManager()
	restored.Restore(requests, nextID)

	// IDs continue from where the snapshot left off.
	c := restored.CreateRequest(testAction(), "carol", 1, t0)
	assert.Equal(t, uint64(2), c.ID)

	fromRestore, err := restored.Request(b.ID)
	require.NoError(t, err)
	assert.Equal(t, contracts.RequestApproved, fromRestore.Status)
}
