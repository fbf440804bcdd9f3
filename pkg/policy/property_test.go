//go:build property
// +build property

// Property-based tests for policy evaluation determinism and ordering.
package policy_test

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/Mindburn-Labs/vaultgate/pkg/contracts"
	"github.com/Mindburn-Labs/vaultgate/pkg/policy"
)

// TestEvaluationDeterminism verifies the same action against the same
// store always yields the same result.
func TestEvaluationDeterminism(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	store, err := policy.NewStore()
	if err != nil {
		t.Fatal(err)
	}
	seed := []contracts.Policy{
		{Name: "small", Conditions: []contracts.Condition{contracts.MaxAmount(100)}, Action: contracts.Allow(), Priority: 1},
		{Name: "medium", Conditions: []contracts.Condition{contracts.MaxAmount(10_000)}, Action: contracts.RequireThreshold(2), Priority: 2},
		{Name: "fallback", Action: contracts.Deny(), Priority: 100},
	}
	for _, p := range seed {
		if _, err := store.AddPolicy(p); err != nil {
			t.Fatal(err)
		}
	}

	properties.Property("evaluation is deterministic", prop.ForAll(
		func(amount uint64, spent uint64) bool {
			action := contracts.Transfer{Chain: "ethereum", Token: "USDC", To: "0x1", Amount: amount}
			sc := contracts.SpendingContext{DailySpent: spent}

			first := store.EvaluateAction(action, "alice", sc)
			second := store.EvaluateAction(action, "alice", sc)
			return first.Decision == second.Decision &&
				first.MatchedPolicy == second.MatchedPolicy &&
				first.Reason == second.Reason
		},
		gen.UInt64(),
		gen.UInt64(),
	))

	properties.Property("some policy always answers", prop.ForAll(
		func(amount uint64) bool {
			action := contracts.Transfer{Chain: "ethereum", Token: "USDC", To: "0x1", Amount: amount}
			result := store.EvaluateAction(action, "alice", contracts.SpendingContext{})
			switch result.Decision {
			case contracts.DecisionAllowed, contracts.DecisionDenied, contracts.DecisionRequiresThreshold:
				return result.Reason != ""
			}
			return false
		},
		gen.UInt64(),
	))

	properties.TestingRun(t)
}

// TestPriorityOrdering verifies the matched policy is always the one
// with the lowest priority value among those that match.
func TestPriorityOrdering(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("lowest matching priority wins", prop.ForAll(
		func(pa, pb uint32) bool {
			store, err := policy.NewStore()
			if err != nil {
				return false
			}
			if _, err := store.AddPolicy(contracts.Policy{Name: "a", Action: contracts.Allow(), Priority: pa}); err != nil {
				return false
			}
			if _, err := store.AddPolicy(contracts.Policy{Name: "b", Action: contracts.Deny(), Priority: pb}); err != nil {
				return false
			}

			action := contracts.Transfer{Chain: "ethereum", Token: "USDC", To: "0x1", Amount: 1}
			result := store.EvaluateAction(action, "alice", contracts.SpendingContext{})

			if pa < pb {
				return result.MatchedPolicy == "a"
			}
			if pb < pa {
				return result.MatchedPolicy == "b"
			}
			// Equal priorities keep insertion order.
			return result.MatchedPolicy == "a"
		},
		gen.UInt32(),
		gen.UInt32(),
	))

	properties.TestingRun(t)
}
