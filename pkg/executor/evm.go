package executor

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/Mindburn-Labs/vaultgate/pkg/contracts"
)

// ERC-20 function selectors: keccak256 of the canonical signature,
// first four bytes.
var (
	selectorTransfer = []byte{0xa9, 0x05, 0x9c, 0xbb} // transfer(address,uint256)
	selectorApprove  = []byte{0x09, 0x5e, 0xa7, 0xb3} // approve(address,uint256)
)

// ChainBackend is one configured EVM endpoint.
type ChainBackend struct {
	Client  *ethclient.Client
	ChainID *big.Int
}

// EVM executes transfer and approve actions against EVM-family chains.
// Swaps require a router integration that is not wired yet and are
// reported as unsupported, mirroring the gate's fail-visible stance.
type EVM struct {
	backends map[string]ChainBackend
	key      *ecdsa.PrivateKey
	from     common.Address
	gasLimit uint64
}

// NewEVM creates an executor over the given chain backends, signing
// with the supplied key.
func NewEVM(backends map[string]ChainBackend, key *ecdsa.PrivateKey) *EVM {
	return &EVM{
		backends: backends,
		key:      key,
		from:     crypto.PubkeyToAddress(key.PublicKey),
		gasLimit: 100_000,
	}
}

// WithGasLimit overrides the default gas limit for submitted
// transactions.
func (e *EVM) WithGasLimit(limit uint64) *EVM {
	if limit > 0 {
		e.gasLimit = limit
	}
	return e
}

// Execute builds, signs and submits the transaction for an action.
// Every failure is reported in the result; the executor never panics
// into the gate.
func (e *EVM) Execute(ctx context.Context, action contracts.Action) contracts.ExecutionResult {
	chain := contracts.ActionChain(action)
	backend, ok := e.backends[chain]
	if !ok {
		return failure(chain, fmt.Sprintf("chain %q is not configured", chain))
	}

	switch a := action.(type) {
	case contracts.Transfer:
		data := erc20Calldata(selectorTransfer, common.HexToAddress(a.To), a.Amount)
		return e.submit(ctx, backend, chain, common.HexToAddress(a.Token), data)
	case contracts.ApproveToken:
		data := erc20Calldata(selectorApprove, common.HexToAddress(a.Spender), a.Amount)
		return e.submit(ctx, backend, chain, common.HexToAddress(a.Token), data)
	case contracts.Swap:
		return failure(chain, "swap execution requires a router integration that is not configured")
	}
	return failure(chain, "unknown action type")
}

func (e *EVM) submit(ctx context.Context, backend ChainBackend, chain string, to common.Address, data []byte) contracts.ExecutionResult {
	nonce, err := backend.Client.PendingNonceAt(ctx, e.from)
	if err != nil {
		return failure(chain, fmt.Sprintf("fetch nonce: %v", err))
	}
	gasPrice, err := backend.Client.SuggestGasPrice(ctx)
	if err != nil {
		return failure(chain, fmt.Sprintf("suggest gas price: %v", err))
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    big.NewInt(0),
		Gas:      e.gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(backend.ChainID), e.key)
	if err != nil {
		return failure(chain, fmt.Sprintf("sign transaction: %v", err))
	}
	if err := backend.Client.SendTransaction(ctx, signed); err != nil {
		return failure(chain, fmt.Sprintf("send transaction: %v", err))
	}

	return contracts.ExecutionResult{
		Success: true,
		Chain:   chain,
		TxHash:  signed.Hash().Hex(),
	}
}

// erc20Calldata packs selector ++ pad32(address) ++ pad32(amount).
func erc20Calldata(selector []byte, addr common.Address, amount uint64) []byte {
	data := make([]byte, 0, 4+32+32)
	data = append(data, selector...)
	data = append(data, common.LeftPadBytes(addr.Bytes(), 32)...)
	data = append(data, common.LeftPadBytes(new(big.Int).SetUint64(amount).Bytes(), 32)...)
	return data
}

func failure(chain, msg string) contracts.ExecutionResult {
	return contracts.ExecutionResult{Success: false, Chain: chain, Error: msg}
}
