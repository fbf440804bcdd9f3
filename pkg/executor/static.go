package executor

import (
	"context"
	"sync"

	"github.com/Mindburn-Labs/vaultgate/pkg/contracts"
)

// Static is an executor that records every action and replies with a
// fixed result. It backs tests and dry-run deployments where no chain
// backend is configured.
type Static struct {
	mu      sync.Mutex
	Result  contracts.ExecutionResult
	actions []contracts.Action
}

// NewStatic creates a Static executor that reports success with the
// given transaction hash.
func NewStatic(txHash string) *Static {
	return &Static{Result: contracts.ExecutionResult{Success: true, TxHash: txHash}}
}

// Execute records the action and returns the configured result with
// the chain filled in from the action.
func (s *Static) Execute(_ context.Context, action contracts.Action) contracts.ExecutionResult {
	s.mu.Lock()
	s.actions = append(s.actions, action)
	s.mu.Unlock()

	result := s.Result
	result.Chain = contracts.ActionChain(action)
	return result
}

// Executed returns every action this executor has seen, in order.
func (s *Static) Executed() []contracts.Action {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]contracts.Action, len(s.actions))
	copy(out, s.actions)
	return out
}
