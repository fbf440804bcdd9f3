// Package contracts defines the shared data model of the VaultGate
// authorization engine: principals, roles, policies, threshold requests,
// and audit records. Types here are plain data — all behavior lives in
// the component packages that own the corresponding state.
package contracts

import "time"

// Principal is the opaque identity of an authenticated caller.
// It is supplied by the host environment; the engine never mints or
// mutates principals, only compares them.
type Principal string

// Role is a coarse grant bucket assigned to a principal.
type Role string

const (
	RoleOwner    Role = "OWNER"
	RoleOperator Role = "OPERATOR"
	RoleViewer   Role = "VIEWER"
)

// Permission is a capability derived from roles. Permissions are never
// stored directly; the access store derives them from the fixed
// role→permission table.
type Permission string

const (
	PermissionExecute   Permission = "EXECUTE"   // request actions
	PermissionConfigure Permission = "CONFIGURE" // mutate roles and policies
	PermissionViewLogs  Permission = "VIEW_LOGS" // read the audit trail
	PermissionSign      Permission = "SIGN"      // sign pending requests
	PermissionEmergency Permission = "EMERGENCY" // pause/resume
)

// RoleAssignment is a flattened (principal, role) pair for
// administration and audit views.
type RoleAssignment struct {
	Principal Principal `json:"principal"`
	Role      Role      `json:"role"`
}

// RequestStatus is the state of a threshold approval request.
type RequestStatus string

const (
	RequestPending  RequestStatus = "PENDING"
	RequestApproved RequestStatus = "APPROVED"
	RequestExecuted RequestStatus = "EXECUTED"
	RequestExpired  RequestStatus = "EXPIRED"
	RequestRejected RequestStatus = "REJECTED"
)

// Signature records one principal's approval of a pending request.
// A request never holds two signatures from the same signer.
type Signature struct {
	Signer   Principal `json:"signer"`
	SignedAt time.Time `json:"signed_at"`
}

// PendingRequest is a threshold approval request awaiting N independent
// signatures. It is created once per RequiresThreshold decision and is
// retained for audit after it leaves the Pending state.
type PendingRequest struct {
	ID                  uint64        `json:"id"`
	Action              Action        `json:"action"`
	Requester           Principal     `json:"requester"`
	CreatedAt           time.Time     `json:"created_at"`
	ExpiresAt           time.Time     `json:"expires_at"`
	RequiredSignatures  uint8         `json:"required_signatures"`
	CollectedSignatures []Signature   `json:"collected_signatures"`
	Status              RequestStatus `json:"status"`
}

// ExecutionResult is the execution collaborator's report of an on-chain
// outcome. The engine records it verbatim and never inspects
// chain-specific payloads.
type ExecutionResult struct {
	Success bool   `json:"success"`
	Chain   string `json:"chain"`
	TxHash  string `json:"tx_hash,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ActionResultKind tags the outcome of a RequestAction call.
type ActionResultKind string

const (
	ResultExecuted          ActionResultKind = "EXECUTED"
	ResultPendingSignatures ActionResultKind = "PENDING_SIGNATURES"
	ResultDenied            ActionResultKind = "DENIED"
)

// ActionResult is the caller-facing outcome of an authorization attempt.
type ActionResult struct {
	Kind      ActionResultKind `json:"kind"`
	Execution *ExecutionResult `json:"execution,omitempty"`
	Request   *PendingRequest  `json:"request,omitempty"`
	Reason    string           `json:"reason,omitempty"`
}

// SpendingContext carries the accumulated spend visible to policy
// evaluation. It is computed by the orchestrator per request; policies
// only read it.
type SpendingContext struct {
	DailySpent uint64 `json:"daily_spent"`
}

// ThresholdConfig is the default quorum applied when a policy demands
// threshold approval without overriding the size.
type ThresholdConfig struct {
	Required uint8 `json:"required" yaml:"required"`
	Total    uint8 `json:"total" yaml:"total"`
}

// GateConfig is the startup configuration supplied once by the host.
type GateConfig struct {
	Name             string           `json:"name"`
	DefaultThreshold ThresholdConfig  `json:"default_threshold"`
	SupportedChains  []string         `json:"supported_chains"`
	Policies         []Policy         `json:"policies"`
	Roles            []RoleAssignment `json:"roles"`
}
