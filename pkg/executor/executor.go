// Package executor defines the boundary to the execution collaborator:
// the component that turns an authorized Action into an on-chain
// transaction. The engine treats it as opaque, fallible and possibly
// slow; failures surface as ExecutionResult values, never as faults
// that roll back an authorization decision.
package executor

import (
	"context"

	"github.com/Mindburn-Labs/vaultgate/pkg/contracts"
)

// Executor runs an authorized action against a chain and reports what
// happened.
type Executor interface {
	Execute(ctx context.Context, action contracts.Action) contracts.ExecutionResult
}
