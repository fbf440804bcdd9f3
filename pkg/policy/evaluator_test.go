package policy

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/vaultgate/pkg/contracts"
)

func transfer(amount uint64) contracts.Transfer {
	return contracts.Transfer{
		Chain:  "ethereum",
		Token:  "USDC",
		To:     "0xdead",
		Amount: amount,
	}
}

func mustAdd(t *testing.T, s *Store, p contracts.Policy) string {
	t.Helper()
	id, err := s.AddPolicy(p)
	require.NoError(t, err)
	return id
}

func TestDefaultDeny(t *testing.T) {
	s := newTestStore(t)

	result := s.EvaluateAction(transfer(100), "alice", contracts.SpendingContext{})
	assert.Equal(t, contracts.DecisionDenied, result.Decision)
	assert.Equal(t, "No matching policy found", result.Reason)
	assert.Empty(t, result.MatchedPolicy)
}

func TestFirstMatchByPriority(t *testing.T) {
	s := newTestStore(t)
	mustAdd(t, s, contracts.Policy{
		Name:     "allow-all",
		Action:   contracts.Allow(),
		Priority: 10,
	})
	mustAdd(t, s, contracts.Policy{
		Name:     "deny-all",
		Action:   contracts.Deny(),
		Priority: 1,
	})

	// Lower priority value wins regardless of insertion order.
	result := s.EvaluateAction(transfer(5), "alice", contracts.SpendingContext{})
	assert.Equal(t, contracts.DecisionDenied, result.Decision)
	assert.Equal(t, "deny-all", result.MatchedPolicy)
	assert.Equal(t, "Matched policy: deny-all", result.Reason)
}

func TestEqualPriorityKeepsInsertionOrder(t *testing.T) {
	s := newTestStore(t)
	mustAdd(t, s, contracts.Policy{Name: "first", Action: contracts.Allow(), Priority: 1})
	mustAdd(t, s, contracts.Policy{Name: "second", Action: contracts.Deny(), Priority: 1})

	result := s.EvaluateAction(transfer(5), "alice", contracts.SpendingContext{})
	assert.Equal(t, "first", result.MatchedPolicy)
	assert.Equal(t, contracts.DecisionAllowed, result.Decision)
}

func TestMaxAmountBoundary(t *testing.T) {
	s := newTestStore(t)
	mustAdd(t, s, contracts.Policy{
		Name:       "small-ok",
		Conditions: []contracts.Condition{contracts.MaxAmount(100)},
		Action:     contracts.Allow(),
	})

	// Exactly at the limit matches.
	result := s.EvaluateAction(transfer(100), "alice", contracts.SpendingContext{})
	assert.Equal(t, contracts.DecisionAllowed, result.Decision)

	// One over falls through to default deny.
	result = s.EvaluateAction(transfer(101), "alice", contracts.SpendingContext{})
	assert.Equal(t, contracts.DecisionDenied, result.Decision)
	assert.Equal(t, "No matching policy found", result.Reason)
}

func TestMinAmountBoundary(t *testing.T) {
	s := newTestStore(t)
	mustAdd(t, s, contracts.Policy{
		Name:       "big-needs-review",
		Conditions: []contracts.Condition{contracts.MinAmount(1000)},
		Action:     contracts.RequireThreshold(2),
	})

	result := s.EvaluateAction(transfer(1000), "alice", contracts.SpendingContext{})
	assert.Equal(t, contracts.DecisionRequiresThreshold, result.Decision)
	require.NotNil(t, result.Threshold)
	assert.Equal(t, uint8(2), result.Threshold.Required)

	result = s.EvaluateAction(transfer(999), "alice", contracts.SpendingContext{})
	assert.Equal(t, contracts.DecisionDenied, result.Decision)
}

func TestDailyLimitCountsAccumulatedSpend(t *testing.T) {
	s := newTestStore(t)
	mustAdd(t, s, contracts.Policy{
		Name:       "daily-cap",
		Conditions: []contracts.Condition{contracts.DailyLimit(1000)},
		Action:     contracts.Allow(),
	})

	// 600 spent + 400 requested == limit: matches.
	result := s.EvaluateAction(transfer(400), "alice", contracts.SpendingContext{DailySpent: 600})
	assert.Equal(t, contracts.DecisionAllowed, result.Decision)

	// 600 spent + 401 requested exceeds the limit.
	result = s.EvaluateAction(transfer(401), "alice", contracts.SpendingContext{DailySpent: 600})
	assert.Equal(t, contracts.DecisionDenied, result.Decision)
}

func TestAllowedChains(t *testing.T) {
	s := newTestStore(t)
	mustAdd(t, s, contracts.Policy{
		Name:       "mainnet-only",
		Conditions: []contracts.Condition{contracts.AllowedChains("ethereum", "arbitrum")},
		Action:     contracts.Allow(),
	})

	ok := s.EvaluateAction(transfer(1), "alice", contracts.SpendingContext{})
	assert.Equal(t, contracts.DecisionAllowed, ok.Decision)

	other := contracts.Transfer{Chain: "dogechain", Token: "USDC", To: "0x1", Amount: 1}
	denied := s.EvaluateAction(other, "alice", contracts.SpendingContext{})
	assert.Equal(t, contracts.DecisionDenied, denied.Decision)
}

func TestAllowedTokensChecksEveryToken(t *testing.T) {
	s := newTestStore(t)
	mustAdd(t, s, contracts.Policy{
		Name:       "stable-only",
		Conditions: []contracts.Condition{contracts.AllowedTokens("USDC", "DAI")},
		Action:     contracts.Allow(),
	})

	// A swap touches two tokens; both must be whitelisted.
	good := contracts.Swap{Chain: "ethereum", TokenIn: "USDC", TokenOut: "DAI", AmountIn: 10}
	assert.Equal(t, contracts.DecisionAllowed,
		s.EvaluateAction(good, "alice", contracts.SpendingContext{}).Decision)

	bad := contracts.Swap{Chain: "ethereum", TokenIn: "USDC", TokenOut: "SHIB", AmountIn: 10}
	assert.Equal(t, contracts.DecisionDenied,
		s.EvaluateAction(bad, "alice", contracts.SpendingContext{}).Decision)
}

func TestConditionsAreANDed(t *testing.T) {
	s := newTestStore(t)
	mustAdd(t, s, contracts.Policy{
		Name: "narrow",
		Conditions: []contracts.Condition{
			contracts.MaxAmount(100),
			contracts.AllowedChains("ethereum"),
		},
		Action: contracts.Allow(),
	})

	assert.Equal(t, contracts.DecisionAllowed,
		s.EvaluateAction(transfer(50), "alice", contracts.SpendingContext{}).Decision)

	// Amount passes but chain fails.
	offChain := contracts.Transfer{Chain: "solana", Token: "USDC", To: "x", Amount: 50}
	assert.Equal(t, contracts.DecisionDenied,
		s.EvaluateAction(offChain, "alice", contracts.SpendingContext{}).Decision)
}

func TestEmptyConditionsAlwaysMatch(t *testing.T) {
	s := newTestStore(t)
	mustAdd(t, s, contracts.Policy{Name: "catch-all", Action: contracts.Allow()})

	result := s.EvaluateAction(transfer(1 << 40), "anyone", contracts.SpendingContext{})
	assert.Equal(t, contracts.DecisionAllowed, result.Decision)
}

func TestInvertedTimeWindowNeverMatches(t *testing.T) {
	s := newTestStore(t)
	mustAdd(t, s, contracts.Policy{
		Name:       "inverted",
		Conditions: []contracts.Condition{contracts.TimeWindow(20, 8)},
		Action:     contracts.Allow(),
	})

	result := s.EvaluateAction(transfer(1), "alice", contracts.SpendingContext{})
	assert.Equal(t, contracts.DecisionDenied, result.Decision)
}

func TestCooldownAlwaysPasses(t *testing.T) {
	s := newTestStore(t)
	mustAdd(t, s, contracts.Policy{
		Name:       "cooldown",
		Conditions: []contracts.Condition{contracts.Cooldown(3600)},
		Action:     contracts.Allow(),
	})

	for i := 0; i < 3; i++ {
		result := s.EvaluateAction(transfer(1), "alice", contracts.SpendingContext{})
		assert.Equal(t, contracts.DecisionAllowed, result.Decision, "iteration %d", i)
	}
}

func TestExpressionCondition(t *testing.T) {
	s := newTestStore(t)
	mustAdd(t, s, contracts.Policy{
		Name: "cel-guard",
		Conditions: []contracts.Condition{
			contracts.Expression(`action_type == "transfer" && amount <= 500u && requester == "alice"`),
		},
		Action: contracts.Allow(),
	})

	assert.Equal(t, contracts.DecisionAllowed,
		s.EvaluateAction(transfer(500), "alice", contracts.SpendingContext{}).Decision)
	assert.Equal(t, contracts.DecisionDenied,
		s.EvaluateAction(transfer(501), "alice", contracts.SpendingContext{}).Decision)
	assert.Equal(t, contracts.DecisionDenied,
		s.EvaluateAction(transfer(500), "mallory", contracts.SpendingContext{}).Decision)
}

func TestExpressionNonBooleanFailsClosed(t *testing.T) {
	s := newTestStore(t)
	_, err := s.AddPolicy(contracts.Policy{
		Name:       "non-bool",
		Conditions: []contracts.Condition{contracts.Expression(`amount + 1u`)},
		Action:     contracts.Allow(),
	})
	// Non-boolean expressions are rejected at compile time.
	assert.Error(t, err)
}

func TestManyPoliciesOrderIsDeterministic(t *testing.T) {
	s := newTestStore(t)
	for i := 0; i < 20; i++ {
		mustAdd(t, s, contracts.Policy{
			Name:       fmt.Sprintf("p%d", i),
			Conditions: []contracts.Condition{contracts.MaxAmount(uint64(1000 + i))},
			Action:     contracts.Allow(),
			Priority:   7,
		})
	}

	for run := 0; run < 5; run++ {
		result := s.EvaluateAction(transfer(500), "alice", contracts.SpendingContext{})
		assert.Equal(t, "p0", result.MatchedPolicy)
	}
}
