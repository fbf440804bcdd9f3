// Package audit implements the append-only authorization trail. Every
// decision produces exactly one entry; entries are hash-chained over
// their immutable fields so retroactive edits are detectable. The one
// permitted late write is a single attachment of the execution result.
package audit

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Mindburn-Labs/vaultgate/pkg/canonicalize"
	"github.com/Mindburn-Labs/vaultgate/pkg/contracts"
)

var (
	// ErrNotFound is returned for an unknown entry ID.
	ErrNotFound = errors.New("audit entry not found")
	// ErrResultRecorded is returned when an execution result is
	// attached a second time. Results are write-once.
	ErrResultRecorded = errors.New("execution result already recorded")
)

// Trail is the in-memory audit log. IDs are monotonically increasing
// from zero and are never reused.
type Trail struct {
	mu      sync.RWMutex
	entries []*contracts.AuditEntry
	nextID  uint64
}

// NewTrail creates an empty trail.
func NewTrail() *Trail {
	return &Trail{entries: make([]*contracts.AuditEntry, 0)}
}

// LogAction appends one entry for an authorization attempt and returns
// its ID. thresholdRequestID links RequiresThreshold decisions to the
// pending request so the eventual outcome can be joined back.
func (t *Trail) LogAction(action contracts.Action, requester contracts.Principal, result contracts.PolicyResult, thresholdRequestID *uint64, now time.Time) (uint64, error) {
	params, err := json.Marshal(action)
	if err != nil {
		return 0, fmt.Errorf("serialize action params: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	prevHash := ""
	if len(t.entries) > 0 {
		prevHash = t.entries[len(t.entries)-1].EntryHash
	}

	entry := &contracts.AuditEntry{
		ID:                 t.nextID,
		Timestamp:          now,
		ActionType:         action.Type(),
		ActionParams:       params,
		Requester:          requester,
		PolicyResult:       result,
		ThresholdRequestID: thresholdRequestID,
		PreviousHash:       prevHash,
	}

	hash, err := entryHash(entry)
	if err != nil {
		return 0, err
	}
	entry.EntryHash = hash

	t.entries = append(t.entries, entry)
	t.nextID++
	return entry.ID, nil
}

// UpdateExecutionResult attaches the execution outcome to an entry.
// Write-once: a second attachment returns ErrResultRecorded and
// mutates nothing.
func (t *Trail) UpdateExecutionResult(id uint64, result contracts.ExecutionResult) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry := t.lookup(id)
	if entry == nil {
		return fmt.Errorf("entry %d: %w", id, ErrNotFound)
	}
	if entry.Execution != nil {
		return fmt.Errorf("entry %d: %w", id, ErrResultRecorded)
	}
	entry.Execution = &result
	return nil
}

// Entries returns the entries whose timestamp falls in [start, end].
// Either bound may be nil for an open range.
func (t *Trail) Entries(start, end *time.Time) []contracts.AuditEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]contracts.AuditEntry, 0)
	for _, entry := range t.entries {
		if start != nil && entry.Timestamp.Before(*start) {
			continue
		}
		if end != nil && entry.Timestamp.After(*end) {
			continue
		}
		out = append(out, *entry)
	}
	return out
}

// Entry returns the entry with the given ID.
func (t *Trail) Entry(id uint64) (contracts.AuditEntry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	entry := t.lookup(id)
	if entry == nil {
		return contracts.AuditEntry{}, false
	}
	return *entry, true
}

// VerifyChain checks every entry's hash and link to its predecessor.
func (t *Trail) VerifyChain() (bool, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for i, entry := range t.entries {
		if i == 0 {
			if entry.PreviousHash != "" {
				return false, fmt.Errorf("genesis entry has non-empty previous hash")
			}
		} else if entry.PreviousHash != t.entries[i-1].EntryHash {
			return false, fmt.Errorf("chain broken at entry %d: previous hash mismatch", entry.ID)
		}

		computed, err := entryHash(entry)
		if err != nil {
			return false, fmt.Errorf("recompute hash for entry %d: %w", entry.ID, err)
		}
		if computed != entry.EntryHash {
			return false, fmt.Errorf("integrity failure at entry %d", entry.ID)
		}
	}
	return true, nil
}

// Snapshot exports all entries plus the next ID for the persistence
// layer.
func (t *Trail) Snapshot() ([]contracts.AuditEntry, uint64) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]contracts.AuditEntry, len(t.entries))
	for i, entry := range t.entries {
		out[i] = *entry
	}
	return out, t.nextID
}

// Restore replaces the trail contents with a snapshot.
func (t *Trail) Restore(entries []contracts.AuditEntry, nextID uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.entries = make([]*contracts.AuditEntry, len(entries))
	for i := range entries {
		entry := entries[i]
		t.entries[i] = &entry
	}
	t.nextID = nextID
}

func (t *Trail) lookup(id uint64) *contracts.AuditEntry {
	// IDs are dense and start at zero, so the slice index is the ID.
	if id < uint64(len(t.entries)) {
		return t.entries[id]
	}
	return nil
}

// entryHash digests the immutable decision fields. The execution
// result is excluded: it is the one field attached after the fact.
func entryHash(e *contracts.AuditEntry) (string, error) {
	content := map[string]interface{}{
		"id":                   e.ID,
		"timestamp":            e.Timestamp.UTC().Format(time.RFC3339Nano),
		"action_type":          e.ActionType,
		"action_params":        string(e.ActionParams),
		"requester":            e.Requester,
		"policy_result":        e.PolicyResult,
		"threshold_request_id": e.ThresholdRequestID,
		"previous_hash":        e.PreviousHash,
	}
	return canonicalize.CanonicalHash(content)
}
