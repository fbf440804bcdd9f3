// Package threshold manages the lifecycle of multi-signature approval
// requests: Pending → Approved → Executed, with Rejected and Expired as
// the other terminal states. Timeouts are cooperative — they are
// enforced when a request is touched, never by a background timer.
package threshold

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/Mindburn-Labs/vaultgate/pkg/contracts"
)

// DefaultExpiry is how long a request stays signable after creation.
const DefaultExpiry = 24 * time.Hour

var (
	// ErrNotFound is returned for an unknown request ID.
	ErrNotFound = errors.New("request not found")
	// ErrExpired is returned when signing past the deadline. The
	// transition to Expired persists even though the call fails.
	ErrExpired = errors.New("request expired")
	// ErrAlreadySigned is returned when a signer signs twice.
	ErrAlreadySigned = errors.New("already signed by this principal")
	// ErrInvalidStatus is returned when signing a non-pending request.
	ErrInvalidStatus = errors.New("request is not pending")
)

// Manager owns the pending request table. Requests are never deleted;
// terminal requests are retained for audit.
type Manager struct {
	mu       sync.Mutex
	requests map[uint64]*contracts.PendingRequest
	nextID   uint64
	expiry   time.Duration
}

// NewManager creates a manager with the default 24h expiry.
func NewManager() *Manager {
	return &Manager{
		requests: make(map[uint64]*contracts.PendingRequest),
		expiry:   DefaultExpiry,
	}
}

// WithExpiry overrides the request lifetime. Useful in tests and for
// hosts with tighter approval SLAs.
func (m *Manager) WithExpiry(d time.Duration) *Manager {
	m.expiry = d
	return m
}

// CreateRequest opens a new pending request. IDs are monotonically
// increasing; creation always succeeds.
func (m *Manager) CreateRequest(action contracts.Action, requester contracts.Principal, required uint8, now time.Time) contracts.PendingRequest {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++

	req := &contracts.PendingRequest{
		ID:                  id,
		Action:              action,
		Requester:           requester,
		CreatedAt:           now,
		ExpiresAt:           now.Add(m.expiry),
		RequiredSignatures:  required,
		CollectedSignatures: []contracts.Signature{},
		Status:              contracts.RequestPending,
	}
	m.requests[id] = req
	return cloneRequest(req)
}

// SignRequest appends a signature and flips the request to Approved on
// the signature that crosses the quorum. Error precedence: unknown ID,
// then expiry (side-effecting), then duplicate signer, then non-pending
// status.
func (m *Manager) SignRequest(id uint64, signer contracts.Principal, now time.Time) (contracts.PendingRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	req, ok := m.requests[id]
	if !ok {
		return contracts.PendingRequest{}, ErrNotFound
	}

	if now.After(req.ExpiresAt) {
		req.Status = contracts.RequestExpired
		return contracts.PendingRequest{}, ErrExpired
	}

	for _, sig := range req.CollectedSignatures {
		if sig.Signer == signer {
			return contracts.PendingRequest{}, ErrAlreadySigned
		}
	}

	if req.Status != contracts.RequestPending {
		return contracts.PendingRequest{}, ErrInvalidStatus
	}

	req.CollectedSignatures = append(req.CollectedSignatures, contracts.Signature{
		Signer:   signer,
		SignedAt: now,
	})

	if len(req.CollectedSignatures) >= int(req.RequiredSignatures) {
		req.Status = contracts.RequestApproved
	}

	return cloneRequest(req), nil
}

// RejectRequest forces a request to Rejected. It is an override
// available regardless of the current status; rejecting an already
// executed request is meaningless but not an error.
func (m *Manager) RejectRequest(id uint64, reason string) error {
	_ = reason // recorded by the orchestrator's audit trail, not here

	m.mu.Lock()
	defer m.mu.Unlock()

	req, ok := m.requests[id]
	if !ok {
		return ErrNotFound
	}
	req.Status = contracts.RequestRejected
	return nil
}

// MarkExecuted transitions a request to Executed. The orchestrator
// calls this exactly once, strictly after the external executor ran.
func (m *Manager) MarkExecuted(id uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	req, ok := m.requests[id]
	if !ok {
		return ErrNotFound
	}
	req.Status = contracts.RequestExecuted
	return nil
}

// Request returns a copy of the request with the given ID.
func (m *Manager) Request(id uint64) (contracts.PendingRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	req, ok := m.requests[id]
	if !ok {
		return contracts.PendingRequest{}, ErrNotFound
	}
	return cloneRequest(req), nil
}

// IsApproved reports whether the request exists and is Approved.
func (m *Manager) IsApproved(id uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	req, ok := m.requests[id]
	return ok && req.Status == contracts.RequestApproved
}

// PendingRequests returns all requests still in Pending, ordered by ID.
func (m *Manager) PendingRequests() []contracts.PendingRequest {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]contracts.PendingRequest, 0)
	for _, req := range m.requests {
		if req.Status == contracts.RequestPending {
			out = append(out, cloneRequest(req))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// CleanupExpired sweeps every pending request past its deadline to
// Expired. Idempotent; safe to call repeatedly.
func (m *Manager) CleanupExpired(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, req := range m.requests {
		if req.Status == contracts.RequestPending && now.After(req.ExpiresAt) {
			req.Status = contracts.RequestExpired
		}
	}
}

// Snapshot exports all requests, ordered by ID, plus the next ID for
// the persistence layer.
func (m *Manager) Snapshot() ([]contracts.PendingRequest, uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]contracts.PendingRequest, 0, len(m.requests))
	for _, req := range m.requests {
		out = append(out, cloneRequest(req))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, m.nextID
}

// Restore replaces the manager contents with a snapshot.
func (m *Manager) Restore(requests []contracts.PendingRequest, nextID uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = make(map[uint64]*contracts.PendingRequest, len(requests))
	for i := range requests {
		req := cloneRequest(&requests[i])
		m.requests[req.ID] = &req
	}
	m.nextID = nextID
}

func cloneRequest(req *contracts.PendingRequest) contracts.PendingRequest {
	out := *req
	out.CollectedSignatures = make([]contracts.Signature, len(req.CollectedSignatures))
	copy(out.CollectedSignatures, req.CollectedSignatures)
	return out
}
