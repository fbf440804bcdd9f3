package contracts

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActionRoundTrip(t *testing.T) {
	fee := uint32(3000)
	actions := []Action{
		Swap{Chain: "ethereum", TokenIn: "USDC", TokenOut: "WETH", AmountIn: 1000, MinAmountOut: 990, FeeTier: &fee},
		Transfer{Chain: "arbitrum", Token: "DAI", To: "0xabc", Amount: 42},
		ApproveToken{Chain: "ethereum", Token: "USDC", Spender: "0xrouter", Amount: 1 << 40},
	}

	for _, a := range actions {
		data, err := EncodeAction(a)
		require.NoError(t, err)

		decoded, err := DecodeAction(data)
		require.NoError(t, err)
		assert.Equal(t, a, decoded)
		assert.Equal(t, a.Type(), decoded.Type())
	}
}

func TestDecodeUnknownTypeFails(t *testing.T) {
	_, err := DecodeAction([]byte(`{"type":"teleport","params":{}}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "teleport")
}

func TestDecodeMalformedEnvelope(t *testing.T) {
	_, err := DecodeAction([]byte(`not json`))
	assert.Error(t, err)
}

func TestPendingRequestRoundTrip(t *testing.T) {
	created := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	req := PendingRequest{
		ID:        3,
		Action:    Transfer{Chain: "ethereum", Token: "USDC", To: "0x1", Amount: 7},
		Requester: "alice",
		CreatedAt: created,
		ExpiresAt: created.Add(24 * time.Hour),
		RequiredSignatures: 2,
		CollectedSignatures: []Signature{
			{Signer: "bob", SignedAt: created.Add(time.Minute)},
		},
		Status: RequestPending,
	}

	data, err := json.Marshal(req)
	require.NoError(t, err)

	var decoded PendingRequest
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, req, decoded)
}

func TestActionHelpers(t *testing.T) {
	swap := Swap{Chain: "base", TokenIn: "USDC", TokenOut: "WETH", AmountIn: 10}
	assert.Equal(t, uint64(10), ActionAmount(swap))
	assert.Equal(t, "base", ActionChain(swap))
	assert.ElementsMatch(t, []string{"USDC", "WETH"}, ActionTokens(swap))

	transfer := Transfer{Chain: "ethereum", Token: "DAI", To: "0x1", Amount: 5}
	assert.Equal(t, uint64(5), ActionAmount(transfer))
	assert.Equal(t, []string{"DAI"}, ActionTokens(transfer))

	approve := ApproveToken{Chain: "ethereum", Token: "USDC", Spender: "0x2", Amount: 9}
	assert.Equal(t, uint64(9), ActionAmount(approve))
	assert.Equal(t, []string{"USDC"}, ActionTokens(approve))
}
