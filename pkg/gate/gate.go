// Package gate implements the authorization orchestrator. It owns the
// four engine components — access store, policy store, threshold
// manager and audit trail — as explicit state, sequences them per
// request, and hands approved actions to the execution collaborator.
//
// Ordering guarantee: the decision (and its audit entry) is recorded
// strictly before the external execution call, and the execution
// result is attached strictly after it returns. A crash between those
// two points leaves an entry with no execution result, which readers
// must treat as "outcome unknown", not as proof either way.
package gate

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Mindburn-Labs/vaultgate/pkg/access"
	"github.com/Mindburn-Labs/vaultgate/pkg/audit"
	"github.com/Mindburn-Labs/vaultgate/pkg/contracts"
	"github.com/Mindburn-Labs/vaultgate/pkg/executor"
	"github.com/Mindburn-Labs/vaultgate/pkg/policy"
	"github.com/Mindburn-Labs/vaultgate/pkg/spend"
	"github.com/Mindburn-Labs/vaultgate/pkg/threshold"
)

// Gate is the authorization orchestrator. One Gate guards one vault;
// all mutating operations on shared state are serialized through the
// component locks plus the gate's own mutex.
type Gate struct {
	access   *access.Store
	policies *policy.Store
	requests *threshold.Manager
	trail    *audit.Trail
	exec     executor.Executor
	tracker  spend.Tracker
	clock    func() time.Time
	logger   *slog.Logger
	metrics  Metrics

	mu             sync.Mutex
	paused         bool
	cfg            *contracts.GateConfig
	auditByRequest map[uint64]uint64
}

// Metrics receives decision telemetry. The observability provider
// satisfies it; a nil Metrics disables recording.
type Metrics interface {
	RecordDecision(ctx context.Context, decision contracts.Decision, actionType contracts.ActionType)
	RecordEvaluation(ctx context.Context, d time.Duration)
}

// Option configures a Gate at construction time.
type Option func(*Gate)

// WithMetrics attaches a decision telemetry sink.
func WithMetrics(m Metrics) Option {
	return func(g *Gate) { g.metrics = m }
}

// WithClock overrides the wall clock for deterministic testing.
func WithClock(clock func() time.Time) Option {
	return func(g *Gate) { g.clock = clock }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gate) { g.logger = logger }
}

// WithSpendTracker replaces the in-memory daily spend tracker.
func WithSpendTracker(t spend.Tracker) Option {
	return func(g *Gate) { g.tracker = t }
}

// WithRequestExpiry overrides the threshold request lifetime.
func WithRequestExpiry(d time.Duration) Option {
	return func(g *Gate) { g.requests.WithExpiry(d) }
}

// New creates a Gate with the deployer as its initial Owner, mirroring
// the bootstrap rule that the party who stands the gate up controls it
// until roles are handed out.
func New(owner contracts.Principal, exec executor.Executor, opts ...Option) (*Gate, error) {
	policies, err := policy.NewStore()
	if err != nil {
		return nil, fmt.Errorf("create policy store: %w", err)
	}

	g := &Gate{
		access:         access.NewStore(),
		policies:       policies,
		requests:       threshold.NewManager(),
		trail:          audit.NewTrail(),
		exec:           exec,
		tracker:        spend.NewMemory(),
		clock:          time.Now,
		logger:         slog.Default(),
		auditByRequest: make(map[uint64]uint64),
	}
	for _, opt := range opts {
		opt(g)
	}

	g.access.AssignRole(owner, contracts.RoleOwner)
	return g, nil
}

// Initialize applies the startup configuration once: initial policies
// and role seeds. Only an Owner may initialize.
func (g *Gate) Initialize(caller contracts.Principal, cfg contracts.GateConfig) error {
	if !g.access.HasRole(caller, contracts.RoleOwner) {
		return unauthorized("only owner can initialize")
	}

	g.mu.Lock()
	if g.cfg != nil {
		g.mu.Unlock()
		return &Error{Code: CodeAlreadyInitialized, Message: "gate already initialized"}
	}
	g.mu.Unlock()

	for _, p := range cfg.Policies {
		if _, err := g.policies.AddPolicy(p); err != nil {
			return fmt.Errorf("seed policy %q: %w", p.Name, err)
		}
	}
	for _, seed := range cfg.Roles {
		g.access.AssignRole(seed.Principal, seed.Role)
	}

	g.mu.Lock()
	g.cfg = &cfg
	g.mu.Unlock()

	g.logger.Info("gate initialized",
		"name", cfg.Name,
		"policies", len(cfg.Policies),
		"role_seeds", len(cfg.Roles))
	return nil
}

// Config returns the startup configuration, or nil before Initialize.
func (g *Gate) Config() *contracts.GateConfig {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cfg
}

// RequestAction runs the full authorization sequence for an action:
// pause check, permission check, policy evaluation, then the
// decision's consequence — denial, a new threshold request, or
// immediate execution.
func (g *Gate) RequestAction(ctx context.Context, caller contracts.Principal, action contracts.Action) (contracts.ActionResult, error) {
	if g.IsPaused() {
		return contracts.ActionResult{}, &Error{Code: CodePaused, Message: "system is paused"}
	}
	if !g.access.HasPermission(caller, contracts.PermissionExecute) {
		return contracts.ActionResult{}, unauthorized("no execute permission")
	}

	now := g.clock()
	spent, err := g.tracker.DailySpent(ctx, now)
	if err != nil {
		// Fail closed: without a trustworthy spend figure, DailyLimit
		// policies cannot be evaluated safely.
		return contracts.ActionResult{}, &Error{Code: CodeInternal, Message: fmt.Sprintf("daily spend unavailable: %v", err)}
	}

	evalStart := g.clock()
	result := g.policies.EvaluateAction(action, caller, contracts.SpendingContext{DailySpent: spent})
	if g.metrics != nil {
		g.metrics.RecordEvaluation(ctx, g.clock().Sub(evalStart))
		g.metrics.RecordDecision(ctx, result.Decision, action.Type())
	}

	switch result.Decision {
	case contracts.DecisionDenied:
		if _, err := g.trail.LogAction(action, caller, result, nil, now); err != nil {
			return contracts.ActionResult{}, translate(err)
		}
		g.logger.Info("action denied",
			"requester", caller,
			"action", action.Type(),
			"reason", result.Reason)
		return contracts.ActionResult{Kind: contracts.ResultDenied, Reason: result.Reason}, nil

	case contracts.DecisionRequiresThreshold:
		required := uint8(0)
		if result.Threshold != nil {
			required = result.Threshold.Required
		}
		if required == 0 {
			required = g.defaultThreshold()
		}

		req := g.requests.CreateRequest(action, caller, required, now)
		auditID, err := g.trail.LogAction(action, caller, result, &req.ID, now)
		if err != nil {
			return contracts.ActionResult{}, translate(err)
		}

		g.mu.Lock()
		g.auditByRequest[req.ID] = auditID
		g.mu.Unlock()

		g.logger.Info("threshold request opened",
			"requester", caller,
			"action", action.Type(),
			"request_id", req.ID,
			"required_signatures", required)
		return contracts.ActionResult{Kind: contracts.ResultPendingSignatures, Request: &req}, nil

	default: // DecisionAllowed
		auditID, err := g.trail.LogAction(action, caller, result, nil, now)
		if err != nil {
			return contracts.ActionResult{}, translate(err)
		}

		// The Allowed decision is durable before the external call.
		execResult := g.exec.Execute(ctx, action)
		g.recordOutcome(ctx, auditID, action, execResult)

		return contracts.ActionResult{Kind: contracts.ResultExecuted, Execution: &execResult}, nil
	}
}

// SignRequest adds the caller's signature to a pending request. The
// signature that crosses the quorum approves the request, triggers
// exactly one execution, and attaches the outcome to the originating
// audit entry.
func (g *Gate) SignRequest(ctx context.Context, caller contracts.Principal, id uint64) (contracts.PendingRequest, error) {
	if !g.access.HasPermission(caller, contracts.PermissionSign) {
		return contracts.PendingRequest{}, unauthorized("no sign permission")
	}

	req, err := g.requests.SignRequest(id, caller, g.clock())
	if err != nil {
		return contracts.PendingRequest{}, translate(err)
	}

	if req.Status == contracts.RequestApproved {
		// Approval is recorded before the external call; MarkExecuted
		// follows it so a crash in between leaves the request Approved
		// with an unknown outcome, never double-executed on replay of
		// sign calls (further signs fail with InvalidState).
		execResult := g.exec.Execute(ctx, req.Action)
		if err := g.requests.MarkExecuted(id); err != nil {
			return contracts.PendingRequest{}, translate(err)
		}

		g.mu.Lock()
		auditID, ok := g.auditByRequest[id]
		g.mu.Unlock()
		if ok {
			g.recordOutcome(ctx, auditID, req.Action, execResult)
		}

		updated, err := g.requests.Request(id)
		if err != nil {
			return contracts.PendingRequest{}, translate(err)
		}
		g.logger.Info("threshold request executed",
			"request_id", id,
			"success", execResult.Success,
			"tx_hash", execResult.TxHash)
		return updated, nil
	}

	return req, nil
}

// RejectRequest forces a pending request to Rejected.
func (g *Gate) RejectRequest(caller contracts.Principal, id uint64, reason string) error {
	if !g.access.HasPermission(caller, contracts.PermissionSign) {
		return unauthorized("no sign permission")
	}
	if err := g.requests.RejectRequest(id, reason); err != nil {
		return translate(err)
	}
	g.logger.Info("threshold request rejected", "request_id", id, "reason", reason)
	return nil
}

// PendingRequests lists all requests still awaiting signatures.
func (g *Gate) PendingRequests() []contracts.PendingRequest {
	return g.requests.PendingRequests()
}

// Request returns one threshold request by ID.
func (g *Gate) Request(id uint64) (contracts.PendingRequest, error) {
	req, err := g.requests.Request(id)
	if err != nil {
		return contracts.PendingRequest{}, translate(err)
	}
	return req, nil
}

// CleanupExpired sweeps overdue pending requests to Expired.
func (g *Gate) CleanupExpired() {
	g.requests.CleanupExpired(g.clock())
}

// recordOutcome attaches an execution result to its audit entry and
// counts successful spend toward the daily volume.
func (g *Gate) recordOutcome(ctx context.Context, auditID uint64, action contracts.Action, result contracts.ExecutionResult) {
	if err := g.trail.UpdateExecutionResult(auditID, result); err != nil {
		g.logger.Error("attach execution result", "audit_id", auditID, "error", err)
	}
	if result.Success {
		if err := g.tracker.Record(ctx, contracts.ActionAmount(action), g.clock()); err != nil {
			g.logger.Error("record daily spend", "error", err)
		}
	}
}

func (g *Gate) defaultThreshold() uint8 {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cfg != nil && g.cfg.DefaultThreshold.Required > 0 {
		return g.cfg.DefaultThreshold.Required
	}
	return 1
}

// --- Role management ---

// AssignRole grants a role; requires Configure.
func (g *Gate) AssignRole(caller, principal contracts.Principal, role contracts.Role) error {
	if !g.access.HasPermission(caller, contracts.PermissionConfigure) {
		return unauthorized("no permission to assign roles")
	}
	g.access.AssignRole(principal, role)
	return nil
}

// RevokeRole removes a role; requires Configure.
func (g *Gate) RevokeRole(caller, principal contracts.Principal, role contracts.Role) error {
	if !g.access.HasPermission(caller, contracts.PermissionConfigure) {
		return unauthorized("no permission to revoke roles")
	}
	g.access.RevokeRole(principal, role)
	return nil
}

// Roles returns the roles held by a principal.
func (g *Gate) Roles(principal contracts.Principal) []contracts.Role {
	return g.access.Roles(principal)
}

// HasPermission reports a principal's derived permission.
func (g *Gate) HasPermission(principal contracts.Principal, perm contracts.Permission) bool {
	return g.access.HasPermission(principal, perm)
}

// ListRoleAssignments returns the flattened (principal, role) view.
func (g *Gate) ListRoleAssignments() []contracts.RoleAssignment {
	return g.access.ListRoleAssignments()
}

// --- Policy management ---

// AddPolicy appends a policy; requires Configure.
func (g *Gate) AddPolicy(caller contracts.Principal, p contracts.Policy) (string, error) {
	if !g.access.HasPermission(caller, contracts.PermissionConfigure) {
		return "", unauthorized("no permission to add policies")
	}
	id, err := g.policies.AddPolicy(p)
	if err != nil {
		return "", translate(err)
	}
	return id, nil
}

// UpdatePolicy replaces a policy in place; requires Configure.
func (g *Gate) UpdatePolicy(caller contracts.Principal, id string, p contracts.Policy) error {
	if !g.access.HasPermission(caller, contracts.PermissionConfigure) {
		return unauthorized("no permission to update policies")
	}
	return translate(g.policies.UpdatePolicy(id, p))
}

// RemovePolicy deletes a policy; requires Configure.
func (g *Gate) RemovePolicy(caller contracts.Principal, id string) error {
	if !g.access.HasPermission(caller, contracts.PermissionConfigure) {
		return unauthorized("no permission to remove policies")
	}
	return translate(g.policies.RemovePolicy(id))
}

// Policies lists policies in store order.
func (g *Gate) Policies() []contracts.Policy {
	return g.policies.Policies()
}

// --- Audit queries ---

// AuditEntries returns entries in [start, end]; requires ViewLogs.
func (g *Gate) AuditEntries(caller contracts.Principal, start, end *time.Time) ([]contracts.AuditEntry, error) {
	if !g.access.HasPermission(caller, contracts.PermissionViewLogs) {
		return nil, unauthorized("no permission to view logs")
	}
	return g.trail.Entries(start, end), nil
}

// AuditEntry returns one entry by ID; requires ViewLogs.
func (g *Gate) AuditEntry(caller contracts.Principal, id uint64) (contracts.AuditEntry, error) {
	if !g.access.HasPermission(caller, contracts.PermissionViewLogs) {
		return contracts.AuditEntry{}, unauthorized("no permission to view logs")
	}
	entry, ok := g.trail.Entry(id)
	if !ok {
		return contracts.AuditEntry{}, notFound(fmt.Sprintf("audit entry %d not found", id))
	}
	return entry, nil
}

// VerifyAuditChain checks the integrity of the audit trail; requires
// ViewLogs.
func (g *Gate) VerifyAuditChain(caller contracts.Principal) (bool, error) {
	if !g.access.HasPermission(caller, contracts.PermissionViewLogs) {
		return false, unauthorized("no permission to view logs")
	}
	return g.trail.VerifyChain()
}

// --- Emergency controls ---

// Pause stops new action requests; requires Emergency.
func (g *Gate) Pause(caller contracts.Principal) error {
	if !g.access.HasPermission(caller, contracts.PermissionEmergency) {
		return unauthorized("no emergency permission")
	}
	g.mu.Lock()
	g.paused = true
	g.mu.Unlock()
	g.logger.Warn("gate paused", "by", caller)
	return nil
}

// Resume re-enables action requests; requires Emergency.
func (g *Gate) Resume(caller contracts.Principal) error {
	if !g.access.HasPermission(caller, contracts.PermissionEmergency) {
		return unauthorized("no emergency permission")
	}
	g.mu.Lock()
	g.paused = false
	g.mu.Unlock()
	g.logger.Warn("gate resumed", "by", caller)
	return nil
}

// IsPaused reports whether the gate is currently paused.
func (g *Gate) IsPaused() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.paused
}
