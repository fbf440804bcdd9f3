// Package policy implements the ordered policy store and the
// priority-sorted, first-match evaluator that turns an action plus its
// spending context into an Allow / Deny / RequireThreshold decision.
package policy

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/Mindburn-Labs/vaultgate/pkg/contracts"
)

// ErrNotFound is returned when a policy ID does not exist in the store.
var ErrNotFound = errors.New("policy not found")

// Store holds policies in insertion order and evaluates them in
// priority order. Policies are addressed by stable IDs rather than
// positions, so removal never shifts references.
type Store struct {
	mu       sync.RWMutex
	policies []contracts.Policy
	exprs    *exprEvaluator
}

// NewStore creates an empty policy store.
func NewStore() (*Store, error) {
	exprs, err := newExprEvaluator()
	if err != nil {
		return nil, err
	}
	return &Store{exprs: exprs}, nil
}

// AddPolicy appends a policy and returns its stable ID. An empty ID is
// replaced with a fresh one. Expression conditions are compiled here so
// a malformed policy is rejected before it can influence evaluation.
func (s *Store) AddPolicy(p contracts.Policy) (string, error) {
	if err := s.compileConditions(p); err != nil {
		return "", err
	}
	if p.ID == "" {
		p.ID = uuid.New().String()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.policies = append(s.policies, p)
	return p.ID, nil
}

// UpdatePolicy replaces the policy with the given ID in place,
// preserving its position in store order.
func (s *Store) UpdatePolicy(id string, p contracts.Policy) error {
	if err := s.compileConditions(p); err != nil {
		return err
	}
	p.ID = id

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.policies {
		if s.policies[i].ID == id {
			s.policies[i] = p
			return nil
		}
	}
	return fmt.Errorf("update policy %q: %w", id, ErrNotFound)
}

// RemovePolicy deletes the policy with the given ID.
func (s *Store) RemovePolicy(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.policies {
		if s.policies[i].ID == id {
			s.policies = append(s.policies[:i], s.policies[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("remove policy %q: %w", id, ErrNotFound)
}

// Policies returns the policies in store (insertion) order, not
// priority order.
func (s *Store) Policies() []contracts.Policy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]contracts.Policy, len(s.policies))
	copy(out, s.policies)
	return out
}

func (s *Store) compileConditions(p contracts.Policy) error {
	for _, c := range p.Conditions {
		if c.Kind == contracts.CondExpression {
			if err := s.exprs.compile(c.Expr); err != nil {
				return fmt.Errorf("policy %q: %w", p.Name, err)
			}
		}
	}
	return nil
}

// Snapshot exports the policies for the persistence layer.
func (s *Store) Snapshot() []contracts.Policy {
	return s.Policies()
}

// Restore replaces the store contents with a snapshot. Policies whose
// expressions no longer compile are rejected as a whole, keeping the
// store unchanged.
func (s *Store) Restore(policies []contracts.Policy) error {
	for _, p := range policies {
		if err := s.compileConditions(p); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.policies = make([]contracts.Policy, len(policies))
	copy(s.policies, policies)
	return nil
}
