package policy

import (
	"fmt"
	"sort"

	"github.com/Mindburn-Labs/vaultgate/pkg/contracts"
)

// defaultDenyReason is the reason attached when no policy matches.
// Default deny is a decision, not an error, and is always logged.
const defaultDenyReason = "No matching policy found"

// EvaluateAction scans the policies in ascending priority order (stable
// sort — ties keep store order) and returns the decision of the first
// policy whose conditions all pass. If nothing matches, the result is
// Denied.
func (s *Store) EvaluateAction(action contracts.Action, requester contracts.Principal, sc contracts.SpendingContext) contracts.PolicyResult {
	s.mu.RLock()
	sorted := make([]contracts.Policy, len(s.policies))
	copy(sorted, s.policies)
	s.mu.RUnlock()

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority < sorted[j].Priority
	})

	for _, p := range sorted {
		if !s.conditionsMatch(p.Conditions, action, requester, sc) {
			continue
		}
		result := contracts.PolicyResult{
			MatchedPolicy: p.Name,
			Reason:        fmt.Sprintf("Matched policy: %s", p.Name),
		}
		switch p.Action.Kind {
		case contracts.PolicyAllow:
			result.Decision = contracts.DecisionAllowed
		case contracts.PolicyDeny:
			result.Decision = contracts.DecisionDenied
		case contracts.PolicyRequireThreshold:
			result.Decision = contracts.DecisionRequiresThreshold
			result.Threshold = &contracts.ThresholdRequirement{
				Required:  p.Action.Required,
				FromRoles: p.Action.FromRoles,
			}
		}
		return result
	}

	return contracts.PolicyResult{
		Decision: contracts.DecisionDenied,
		Reason:   defaultDenyReason,
	}
}

// conditionsMatch evaluates the AND of all conditions, short-circuiting
// on the first failure.
func (s *Store) conditionsMatch(conditions []contracts.Condition, action contracts.Action, requester contracts.Principal, sc contracts.SpendingContext) bool {
	amount := contracts.ActionAmount(action)
	chain := contracts.ActionChain(action)

	for _, c := range conditions {
		switch c.Kind {
		case contracts.CondMaxAmount:
			if amount > c.Limit {
				return false
			}
		case contracts.CondMinAmount:
			if amount < c.Limit {
				return false
			}
		case contracts.CondDailyLimit:
			if sc.DailySpent+amount > c.Limit {
				return false
			}
		case contracts.CondAllowedChains:
			if !contains(c.Values, chain) {
				return false
			}
		case contracts.CondAllowedTokens:
			for _, token := range contracts.ActionTokens(action) {
				if !contains(c.Values, token) {
					return false
				}
			}
		case contracts.CondTimeWindow:
			// Degenerate check: an inverted window can never pass.
			// The actual hour is not consulted.
			if c.Start > c.End {
				return false
			}
		case contracts.CondCooldown:
			// No last-execution tracking exists; always passes.
		case contracts.CondExpression:
			ok, err := s.exprs.evaluate(c.Expr, exprInput(action, requester, sc))
			if err != nil || !ok {
				// Fail closed on evaluation errors.
				return false
			}
		default:
			// Unknown condition kinds fail closed.
			return false
		}
	}
	return true
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
