package contracts

import (
	"encoding/json"
	"fmt"
	"time"
)

// actionEnvelope is the wire form of an Action: the variant tag next to
// the variant's own fields. It exists because Action is an interface
// and cannot be unmarshalled without the tag.
type actionEnvelope struct {
	Type   ActionType      `json:"type"`
	Params json.RawMessage `json:"params"`
}

// EncodeAction serializes an action together with its variant tag.
func EncodeAction(a Action) ([]byte, error) {
	params, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("encode action params: %w", err)
	}
	return json.Marshal(actionEnvelope{Type: a.Type(), Params: params})
}

// DecodeAction reverses EncodeAction. Unknown variant tags are an
// error, never a silently dropped action.
func DecodeAction(data []byte) (Action, error) {
	var env actionEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode action envelope: %w", err)
	}
	switch env.Type {
	case ActionSwap:
		var a Swap
		if err := json.Unmarshal(env.Params, &a); err != nil {
			return nil, fmt.Errorf("decode swap: %w", err)
		}
		return a, nil
	case ActionTransfer:
		var a Transfer
		if err := json.Unmarshal(env.Params, &a); err != nil {
			return nil, fmt.Errorf("decode transfer: %w", err)
		}
		return a, nil
	case ActionApprove:
		var a ApproveToken
		if err := json.Unmarshal(env.Params, &a); err != nil {
			return nil, fmt.Errorf("decode approve: %w", err)
		}
		return a, nil
	default:
		return nil, fmt.Errorf("unknown action type %q", env.Type)
	}
}

// pendingRequestJSON mirrors PendingRequest with the action in
// envelope form so the interface field survives a round trip.
type pendingRequestJSON struct {
	ID                  uint64          `json:"id"`
	Action              json.RawMessage `json:"action"`
	Requester           Principal       `json:"requester"`
	CreatedAt           time.Time       `json:"created_at"`
	ExpiresAt           time.Time       `json:"expires_at"`
	RequiredSignatures  uint8           `json:"required_signatures"`
	CollectedSignatures []Signature     `json:"collected_signatures"`
	Status              RequestStatus   `json:"status"`
}

func (r PendingRequest) MarshalJSON() ([]byte, error) {
	action, err := EncodeAction(r.Action)
	if err != nil {
		return nil, err
	}
	return json.Marshal(pendingRequestJSON{
		ID:                  r.ID,
		Action:              action,
		Requester:           r.Requester,
		CreatedAt:           r.CreatedAt,
		ExpiresAt:           r.ExpiresAt,
		RequiredSignatures:  r.RequiredSignatures,
		CollectedSignatures: r.CollectedSignatures,
		Status:              r.Status,
	})
}

func (r *PendingRequest) UnmarshalJSON(data []byte) error {
	var raw pendingRequestJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	action, err := DecodeAction(raw.Action)
	if err != nil {
		return err
	}
	*r = PendingRequest{
		ID:                  raw.ID,
		Action:              action,
		Requester:           raw.Requester,
		CreatedAt:           raw.CreatedAt,
		ExpiresAt:           raw.ExpiresAt,
		RequiredSignatures:  raw.RequiredSignatures,
		CollectedSignatures: raw.CollectedSignatures,
		Status:              raw.Status,
	}
	return nil
}
