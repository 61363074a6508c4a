package chainrpc

import "context"

// TxState is the chain-level view of a transaction.
type TxState string

const (
	TxPending   TxState = "pending"
	TxConfirmed TxState = "confirmed"
	TxReverted  TxState = "reverted"
)

// Reader provides read-only access to the supported chains. Balances are
// returned as decimal strings in user-facing units.
type Reader interface {
	// NativeBalance returns the native-token balance of address on the
	// given chain.
	NativeBalance(ctx context.Context, chainID, address string) (string, error)
	// StableBalance returns the stable-coin balance of address on the
	// given chain, using the chain's configured stable-coin contract.
	StableBalance(ctx context.Context, chainID, address string) (string, error)
	// TransactionStatus resolves a transaction hash to its current state.
	TransactionStatus(ctx context.Context, chainID, txHash string) (TxState, error)
}
