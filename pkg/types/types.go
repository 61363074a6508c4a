package types

import "time"

// Token identifies which of the two supported value units a payment moves.
type Token string

const (
	TokenNative Token = "native"
	TokenStable Token = "stable"
)

// TxStatus is the lifecycle status of a bridge transaction. Once a
// transaction leaves StatusPending it is terminal.
type TxStatus string

const (
	StatusPending   TxStatus = "pending"
	StatusCompleted TxStatus = "completed"
	StatusFailed    TxStatus = "failed"
)

// Balance holds the native and stable-coin balances for one wallet address
// on one chain. Amounts are decimal strings in user-facing units. Stale
// entries are kept around so the UI has something to show, but they carry
// the timestamp of the last successful read.
type Balance struct {
	Chain        string    `json:"chain"`
	NativeAmount string    `json:"nativeAmount"`
	StableAmount string    `json:"stableAmount"`
	AsOf         time.Time `json:"asOf"`
	Stale        bool      `json:"stale,omitempty"`
}

// Quote is a fee/time estimate for moving value between chains. It is
// immutable once issued; when any of the defining fields changes on the
// user's side the quote is discarded, never mutated.
type Quote struct {
	SourceChain        string    `json:"sourceChain"`
	DestinationChain   string    `json:"destinationChain"`
	Token              Token     `json:"token"`
	Amount             string    `json:"amount"`
	EstimatedFeeNative string    `json:"estimatedFeeNative"`
	EstimatedTimeLabel string    `json:"estimatedTimeLabel"`
	IssuedAt           time.Time `json:"issuedAt"`
}

// Matches reports whether the quote was computed for exactly the given
// selection. Executing against a quote whose selection no longer matches
// is forbidden, so every consumer gates on this before using the quote.
func (q *Quote) Matches(sourceChain, destChain string, token Token, amount string) bool {
	if q == nil {
		return false
	}
	return q.SourceChain == sourceChain &&
		q.DestinationChain == destChain &&
		q.Token == token &&
		q.Amount == amount
}

// EscrowDepositRequest seeds a payment attempt. RequestID is an opaque
// identifier supplied by the offer-acceptance flow that ties the payment to
// an off-chain negotiation thread; it is encoded as a fixed-width id
// on-chain. The request is validated before any wallet interaction.
type EscrowDepositRequest struct {
	RequestID           string `json:"requestId" validate:"required,max=32"`
	CounterpartyAddress string `json:"counterpartyAddress" validate:"required,eth_addr"`
	Amount              string `json:"amount" validate:"required"`
	Token               Token  `json:"token" validate:"required,oneof=native stable"`
}

// BridgeTransaction is the handle returned when the first on-chain call of
// a payment is submitted. Stage and ProgressPercent are advanced as the
// step sequence completes; Status never regresses once terminal.
type BridgeTransaction struct {
	TxHash           string   `json:"txHash"`
	SourceChain      string   `json:"sourceChain"`
	DestinationChain string   `json:"destinationChain"`
	Token            Token    `json:"token"`
	Amount           string   `json:"amount"`
	Status           TxStatus `json:"status"`
	Stage            string   `json:"stage"`
	ProgressPercent  int      `json:"progressPercent"`
	FeesNative       string   `json:"feesNative,omitempty"`
}

// PaymentReceipt is the minimal record proving a payment was submitted.
// Produced exactly once per successful payment and handed to the caller;
// persistence is the caller's concern.
type PaymentReceipt struct {
	TxHash string `json:"txHash"`
	Token  Token  `json:"token"`
	Amount string `json:"amount"`
	Chain  string `json:"chain"`
}
