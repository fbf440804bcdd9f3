package contracts

// ConditionKind tags the variant of a policy condition.
type ConditionKind string

const (
	CondMaxAmount     ConditionKind = "max_amount"
	CondMinAmount     ConditionKind = "min_amount"
	CondDailyLimit    ConditionKind = "daily_limit"
	CondAllowedTokens ConditionKind = "allowed_tokens"
	CondAllowedChains ConditionKind = "allowed_chains"
	CondTimeWindow    ConditionKind = "time_window"
	CondCooldown      ConditionKind = "cooldown"
	CondExpression    ConditionKind = "expression"
)

// Condition is one predicate of a policy. All conditions of a policy
// must pass (logical AND) for the policy to match. The payload fields
// are sparse: which ones are meaningful depends on Kind.
type Condition struct {
	Kind ConditionKind `json:"kind"`

	// Limit is the threshold for MaxAmount, MinAmount and DailyLimit,
	// and the cooldown length in seconds for Cooldown.
	Limit uint64 `json:"limit,omitempty"`

	// Values is the whitelist for AllowedTokens and AllowedChains.
	Values []string `json:"values,omitempty"`

	// Start and End bound a TimeWindow (hours, UTC).
	Start uint64 `json:"start,omitempty"`
	End   uint64 `json:"end,omitempty"`

	// Expr is a CEL expression for Expression conditions. It is
	// compiled when the policy is stored and evaluated fail-closed.
	Expr string `json:"expr,omitempty"`
}

// MaxAmount passes when the action amount is at most n.
func MaxAmount(n uint64) Condition { return Condition{Kind: CondMaxAmount, Limit: n} }

// MinAmount passes when the action amount is at least n.
func MinAmount(n uint64) Condition { return Condition{Kind: CondMinAmount, Limit: n} }

// DailyLimit passes when daily spend plus the action amount stays at
// or below n.
func DailyLimit(n uint64) Condition { return Condition{Kind: CondDailyLimit, Limit: n} }

// AllowedTokens passes when every token the action references is in
// the whitelist.
func AllowedTokens(tokens ...string) Condition {
	return Condition{Kind: CondAllowedTokens, Values: tokens}
}

// AllowedChains passes when the action's chain is in the whitelist.
func AllowedChains(chains ...string) Condition {
	return Condition{Kind: CondAllowedChains, Values: chains}
}

// TimeWindow bounds the allowed hours (UTC). The current implementation
// is degenerate: it fails only when start > end and performs no
// time-of-day check.
func TimeWindow(start, end uint64) Condition {
	return Condition{Kind: CondTimeWindow, Start: start, End: end}
}

// Cooldown declares a minimum spacing between operations in seconds.
// No last-execution tracking exists yet, so it currently always passes.
func Cooldown(seconds uint64) Condition { return Condition{Kind: CondCooldown, Limit: seconds} }

// Expression evaluates a CEL predicate over the action attributes.
func Expression(src string) Condition { return Condition{Kind: CondExpression, Expr: src} }

// PolicyActionKind tags the outcome a matched policy maps to.
type PolicyActionKind string

const (
	PolicyAllow            PolicyActionKind = "allow"
	PolicyDeny             PolicyActionKind = "deny"
	PolicyRequireThreshold PolicyActionKind = "require_threshold"
)

// PolicyAction is the outcome a policy maps to when it matches.
type PolicyAction struct {
	Kind PolicyActionKind `json:"kind"`

	// Required and FromRoles configure the quorum for
	// require_threshold outcomes.
	Required  uint8  `json:"required,omitempty"`
	FromRoles []Role `json:"from_roles,omitempty"`
}

// Allow maps a matched policy to an immediate Allowed decision.
func Allow() PolicyAction { return PolicyAction{Kind: PolicyAllow} }

// Deny maps a matched policy to a Denied decision.
func Deny() PolicyAction { return PolicyAction{Kind: PolicyDeny} }

// RequireThreshold maps a matched policy to a RequiresThreshold
// decision with the given quorum.
func RequireThreshold(required uint8, fromRoles ...Role) PolicyAction {
	return PolicyAction{Kind: PolicyRequireThreshold, Required: required, FromRoles: fromRoles}
}

// Policy is a named, prioritized rule. A smaller Priority means higher
// precedence. Policies are addressed by their stable ID, not by
// position, so removal never invalidates references.
type Policy struct {
	ID         string       `json:"id"`
	Name       string       `json:"name"`
	Conditions []Condition  `json:"conditions"`
	Action     PolicyAction `json:"action"`
	Priority   uint32       `json:"priority"`
}

// Decision is the verdict of policy evaluation.
type Decision string

const (
	DecisionAllowed           Decision = "ALLOWED"
	DecisionDenied            Decision = "DENIED"
	DecisionRequiresThreshold Decision = "REQUIRES_THRESHOLD"
)

// ThresholdRequirement carries the quorum demanded by a matched
// require_threshold policy.
type ThresholdRequirement struct {
	Required  uint8  `json:"required"`
	FromRoles []Role `json:"from_roles,omitempty"`
}

// PolicyResult is the outcome of one evaluation. It is produced fresh
// on every call and never stored as mutable state.
type PolicyResult struct {
	Decision      Decision              `json:"decision"`
	MatchedPolicy string                `json:"matched_policy,omitempty"`
	Reason        string                `json:"reason"`
	Threshold     *ThresholdRequirement `json:"threshold,omitempty"`
}
