package gate

import (
	"github.com/Mindburn-Labs/vaultgate/pkg/contracts"
)

// Snapshot is the full serializable state of a Gate: every component's
// durable state plus the gate's own bookkeeping. It is what a snapshot
// store persists and what Restore rebuilds from.
type Snapshot struct {
	Roles          []contracts.RoleAssignment `json:"roles"`
	Policies       []contracts.Policy         `json:"policies"`
	Requests       []contracts.PendingRequest `json:"requests"`
	NextRequestID  uint64                     `json:"next_request_id"`
	AuditEntries   []contracts.AuditEntry     `json:"audit_entries"`
	NextAuditID    uint64                     `json:"next_audit_id"`
	AuditByRequest map[uint64]uint64          `json:"audit_by_request"`
	Paused         bool                       `json:"paused"`
	Config         *contracts.GateConfig      `json:"config,omitempty"`
}

// Snapshot captures the gate's current state for persistence.
func (g *Gate) Snapshot() Snapshot {
	requests, nextReq := g.requests.Snapshot()
	entries, nextAudit := g.trail.Snapshot()

	g.mu.Lock()
	byRequest := make(map[uint64]uint64, len(g.auditByRequest))
	for k, v := range g.auditByRequest {
		byRequest[k] = v
	}
	paused := g.paused
	cfg := g.cfg
	g.mu.Unlock()

	return Snapshot{
		Roles:          g.access.Snapshot(),
		Policies:       g.policies.Snapshot(),
		Requests:       requests,
		NextRequestID:  nextReq,
		AuditEntries:   entries,
		NextAuditID:    nextAudit,
		AuditByRequest: byRequest,
		Paused:         paused,
		Config:         cfg,
	}
}

// Restore replaces the gate's state with a previously captured
// snapshot. It fails if a restored policy no longer compiles, leaving
// the policy store partially restored; callers should treat a restore
// error as fatal.
func (g *Gate) Restore(snap Snapshot) error {
	g.access.Restore(snap.Roles)
	if err := g.policies.Restore(snap.Policies); err != nil {
		return err
	}
	g.requests.Restore(snap.Requests, snap.NextRequestID)
	g.trail.Restore(snap.AuditEntries, snap.NextAuditID)

	g.mu.Lock()
	g.auditByRequest = make(map[uint64]uint64, len(snap.AuditByRequest))
	for k, v := range snap.AuditByRequest {
		g.auditByRequest[k] = v
	}
	g.paused = snap.Paused
	g.cfg = snap.Config
	g.mu.Unlock()
	return nil
}
