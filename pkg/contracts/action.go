package contracts

// ActionType tags the variant of a requested operation.
type ActionType string

const (
	ActionSwap     ActionType = "swap"
	ActionTransfer ActionType = "transfer"
	ActionApprove  ActionType = "approve"
)

// Action describes a requested blockchain operation. It is a closed
// union: the only implementations are Swap, Transfer and ApproveToken.
// Amounts are unsigned integers in the chain's smallest unit; an Action
// is immutable once created.
type Action interface {
	Type() ActionType

	// sealed prevents implementations outside this package so that
	// switches over the three variants stay exhaustive.
	sealed()
}

// Swap exchanges TokenIn for TokenOut on a single chain.
type Swap struct {
	Chain        string  `json:"chain"`
	TokenIn      string  `json:"token_in"`
	TokenOut     string  `json:"token_out"`
	AmountIn     uint64  `json:"amount_in"`
	MinAmountOut uint64  `json:"min_amount_out"`
	FeeTier      *uint32 `json:"fee_tier,omitempty"`
}

func (Swap) Type() ActionType { return ActionSwap }
func (Swap) sealed()          {}

// Transfer moves Amount of Token to a destination address.
type Transfer struct {
	Chain  string `json:"chain"`
	Token  string `json:"token"`
	To     string `json:"to"`
	Amount uint64 `json:"amount"`
}

func (Transfer) Type() ActionType { return ActionTransfer }
func (Transfer) sealed()          {}

// ApproveToken grants a spender an allowance over Token.
type ApproveToken struct {
	Chain   string `json:"chain"`
	Token   string `json:"token"`
	Spender string `json:"spender"`
	Amount  uint64 `json:"amount"`
}

func (ApproveToken) Type() ActionType { return ActionApprove }
func (ApproveToken) sealed()          {}

// ActionAmount returns the spend-relevant amount of an action.
func ActionAmount(a Action) uint64 {
	switch v := a.(type) {
	case Swap:
		return v.AmountIn
	case Transfer:
		return v.Amount
	case ApproveToken:
		return v.Amount
	}
	return 0
}

// ActionChain returns the chain an action targets.
func ActionChain(a Action) string {
	switch v := a.(type) {
	case Swap:
		return v.Chain
	case Transfer:
		return v.Chain
	case ApproveToken:
		return v.Chain
	}
	return ""
}

// ActionTokens returns every token an action references: both legs for
// a swap, the single token otherwise.
func ActionTokens(a Action) []string {
	switch v := a.(type) {
	case Swap:
		return []string{v.TokenIn, v.TokenOut}
	case Transfer:
		return []string{v.Token}
	case ApproveToken:
		return []string{v.Token}
	}
	return nil
}
