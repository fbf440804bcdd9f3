package contracts

import (
	"encoding/json"
	"time"
)

// AuditEntry is one immutable record of an authorization attempt.
// Every attempt — Allowed, Denied or RequiresThreshold — produces
// exactly one entry. The only permitted late write is a single
// attachment of Execution; everything else is covered by the entry's
// hash chain and must never change.
type AuditEntry struct {
	ID                 uint64          `json:"id"`
	Timestamp          time.Time       `json:"timestamp"`
	ActionType         ActionType      `json:"action_type"`
	ActionParams       json.RawMessage `json:"action_params"`
	Requester          Principal       `json:"requester"`
	PolicyResult       PolicyResult    `json:"policy_result"`
	ThresholdRequestID *uint64         `json:"threshold_request_id,omitempty"`
	Execution          *ExecutionResult `json:"execution_result,omitempty"`

	// PreviousHash and EntryHash chain the immutable decision fields
	// of consecutive entries, making retroactive edits detectable.
	// Execution is deliberately outside the chained content.
	PreviousHash string `json:"previous_hash"`
	EntryHash    string `json:"entry_hash"`
}
