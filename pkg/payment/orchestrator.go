package payment

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"bridgepay/pkg/balance"
	"bridgepay/pkg/chain"
	"bridgepay/pkg/escrow"
	"bridgepay/pkg/logger"
	"bridgepay/pkg/quote"
	"bridgepay/pkg/types"
	"bridgepay/pkg/wallet"
)

// State is the orchestrator's presentation state. Side effects happen only
// in StateSwitchChain and StateProcessing; the other states are pure
// presentation.
type State string

const (
	StateConfirm     State = "confirm"
	StateSwitchChain State = "switch-chain"
	StateProcessing  State = "processing"
	StateSuccess     State = "success"
	StateError       State = "error"
)

// Event is one entry in the stream UI layers render from.
type Event struct {
	State State
	Tx    *types.BridgeTransaction
	Err   error
}

// Orchestrator composes the quote service, balance tracker, and executor
// behind a single confirm → execute → receipt flow. One payment attempt is
// active at a time; the wallet signer is a singleton resource.
type Orchestrator struct {
	registry *chain.Registry
	quotes   *quote.Service
	balances *balance.Tracker
	executor *escrow.Executor
	signer   wallet.Signer
	conn     *wallet.ConnState
	log      logger.Logger

	mu          sync.Mutex
	active      bool
	state       State
	req         types.EscrowDepositRequest
	sourceChain string
	destChain   string
	quote       *types.Quote
	receipt     *types.PaymentReceipt
	receiptSent bool
	onReceipt   func(types.PaymentReceipt)
	lastErr     error
	lastTx      *types.BridgeTransaction

	events chan Event
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger attaches a logger.
func WithLogger(log logger.Logger) Option {
	return func(o *Orchestrator) { o.log = log }
}

// New builds an Orchestrator over its collaborators.
func New(registry *chain.Registry, quotes *quote.Service, balances *balance.Tracker, executor *escrow.Executor, signer wallet.Signer, conn *wallet.ConnState, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		registry: registry,
		quotes:   quotes,
		balances: balances,
		executor: executor,
		signer:   signer,
		conn:     conn,
		log:      logger.Noop{},
		state:    StateConfirm,
		events:   make(chan Event, 16),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Events returns the stream of state transitions. Sends never block; a
// slow consumer misses intermediate events, not terminal ones.
func (o *Orchestrator) Events() <-chan Event {
	return o.events
}

// Start seeds a payment attempt from an EscrowDepositRequest and the
// user's chain selection. onReceipt is invoked exactly once, when the
// success state is closed. A second Start while an attempt is active, or
// while a payment for the same request id is still pending, is rejected
// without touching the wallet.
func (o *Orchestrator) Start(req types.EscrowDepositRequest, sourceChain, destChain string, onReceipt func(types.PaymentReceipt)) error {
	if _, err := o.registry.MetadataFor(sourceChain); err != nil {
		return types.NewInvalidInput("unsupported source chain %q", sourceChain)
	}
	if _, err := o.registry.MetadataFor(destChain); err != nil {
		return types.NewInvalidInput("unsupported destination chain %q", destChain)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.active {
		return fmt.Errorf("a payment attempt is already active")
	}
	if o.executor.InFlight(req.RequestID) {
		return types.NewRequestInFlight(req.RequestID)
	}

	o.active = true
	o.state = StateConfirm
	o.req = req
	o.sourceChain = sourceChain
	o.destChain = destChain
	o.quote = nil
	o.receipt = nil
	o.receiptSent = false
	o.onReceipt = onReceipt
	o.lastErr = nil
	o.lastTx = nil

	o.emitLocked()
	return nil
}

// SetSelection updates the source/destination chains of the active
// attempt. Any change discards the current quote; it is never reused.
func (o *Orchestrator) SetSelection(sourceChain, destChain string) error {
	if _, err := o.registry.MetadataFor(sourceChain); err != nil {
		return types.NewInvalidInput("unsupported source chain %q", sourceChain)
	}
	if _, err := o.registry.MetadataFor(destChain); err != nil {
		return types.NewInvalidInput("unsupported destination chain %q", destChain)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.active || o.state != StateConfirm {
		return fmt.Errorf("selection can only change while confirming")
	}
	if sourceChain == o.sourceChain && destChain == o.destChain {
		return nil
	}

	o.sourceChain = sourceChain
	o.destChain = destChain
	o.quote = nil
	o.quotes.Invalidate()
	return nil
}

// RequestQuote fetches an estimate for the current selection and attaches
// it to the attempt. Superseded in-flight requests resolve to no-ops.
func (o *Orchestrator) RequestQuote(ctx context.Context) (*types.Quote, error) {
	o.mu.Lock()
	if !o.active {
		o.mu.Unlock()
		return nil, fmt.Errorf("no active payment attempt")
	}
	source, dest := o.sourceChain, o.destChain
	token, amount := o.req.Token, o.req.Amount
	o.mu.Unlock()

	q, err := o.quotes.Quote(ctx, source, dest, token, amount)
	if errors.Is(err, quote.ErrSuperseded) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	// The selection may have moved while the request was in flight.
	if q.Matches(o.sourceChain, o.destChain, o.req.Token, o.req.Amount) {
		o.quote = q
	}
	return q, nil
}

// Quote returns the attached quote, already guaranteed to match the
// current selection.
func (o *Orchestrator) Quote() *types.Quote {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.quote
}

// Pay advances from confirm. Depending on wallet state it connects and
// stays in confirm, moves to switch-chain, or runs the full execution
// sequence. Invalid input is rejected here, before any wallet call.
func (o *Orchestrator) Pay(ctx context.Context) error {
	o.mu.Lock()
	if !o.active || o.state != StateConfirm {
		o.mu.Unlock()
		return fmt.Errorf("payment is not in the confirm state")
	}

	// A quote that no longer matches the selection is discarded before
	// anything executes.
	if o.quote != nil && !o.quote.Matches(o.sourceChain, o.destChain, o.req.Token, o.req.Amount) {
		o.quote = nil
		o.quotes.Invalidate()
	}

	req := o.req
	source := o.sourceChain
	o.mu.Unlock()

	if err := o.executor.ValidateRequest(source, req); err != nil {
		return err
	}

	connected, _, _ := o.conn.Snapshot()
	if !connected {
		address, err := o.signer.Connect(ctx)
		if err != nil {
			return fmt.Errorf("wallet connection failed: %w", err)
		}
		o.conn.SetConnected(address, o.signer.ActiveChain())
		o.mu.Lock()
		o.emitLocked()
		o.mu.Unlock()
		return nil
	}

	if active := o.signer.ActiveChain(); active != source {
		o.mu.Lock()
		o.state = StateSwitchChain
		o.emitLocked()
		o.mu.Unlock()
		return nil
	}

	return o.process(ctx)
}

// ConfirmSwitch asks the wallet to switch to the required source chain.
// On success the flow returns to confirm, not processing, so the user
// re-confirms against fresh balances. On cancellation it stays in
// switch-chain.
func (o *Orchestrator) ConfirmSwitch(ctx context.Context) error {
	o.mu.Lock()
	if o.state != StateSwitchChain {
		o.mu.Unlock()
		return fmt.Errorf("no chain switch is pending")
	}
	source := o.sourceChain
	o.mu.Unlock()

	switched, err := o.signer.RequestChainSwitch(ctx, source)
	if err != nil {
		return fmt.Errorf("chain switch failed: %w", err)
	}
	if !switched {
		// User cancelled; the switch prompt stays open.
		return nil
	}

	o.conn.SetChain(source)

	_, address, _ := o.conn.Snapshot()
	if address != "" {
		o.balances.RefreshAll(ctx, address)
	}

	o.mu.Lock()
	o.state = StateConfirm
	o.emitLocked()
	o.mu.Unlock()
	return nil
}

// CancelSwitch closes the switch prompt and returns to confirm.
func (o *Orchestrator) CancelSwitch() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state == StateSwitchChain {
		o.state = StateConfirm
		o.emitLocked()
	}
}

// Retry is the only way out of the error state: back to confirm with the
// prior selections intact.
func (o *Orchestrator) Retry() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != StateError {
		return fmt.Errorf("nothing to retry")
	}
	o.state = StateConfirm
	o.lastErr = nil
	o.emitLocked()
	return nil
}

// CloseSuccess closes the success state: the receipt is handed to the
// caller exactly once and internal state resets.
func (o *Orchestrator) CloseSuccess() error {
	o.mu.Lock()
	if o.state != StateSuccess {
		o.mu.Unlock()
		return fmt.Errorf("payment has not succeeded")
	}
	var deliver func(types.PaymentReceipt)
	var receipt types.PaymentReceipt
	if !o.receiptSent && o.onReceipt != nil && o.receipt != nil {
		deliver = o.onReceipt
		receipt = *o.receipt
		o.receiptSent = true
	}
	o.resetLocked()
	o.mu.Unlock()

	if deliver != nil {
		deliver(receipt)
	}
	return nil
}

// Abandon discards the attempt from any non-processing state. A payment
// that is mid-signature cannot be abandoned.
func (o *Orchestrator) Abandon() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state == StateProcessing {
		return fmt.Errorf("payment is processing and cannot be abandoned")
	}
	o.resetLocked()
	return nil
}

// State returns the current state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// LastError returns the error shown in the error state.
func (o *Orchestrator) LastError() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastErr
}

// Tx returns the latest bridge-transaction snapshot, or nil.
func (o *Orchestrator) Tx() *types.BridgeTransaction {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastTx
}

// Receipt returns the receipt after success, or nil.
func (o *Orchestrator) Receipt() *types.PaymentReceipt {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.receipt
}

func (o *Orchestrator) process(ctx context.Context) error {
	o.mu.Lock()
	o.state = StateProcessing
	req := o.req
	source := o.sourceChain
	dest := o.destChain
	o.emitLocked()
	o.mu.Unlock()

	// Auto-refresh must not race the pending deposit.
	_, address, _ := o.conn.Snapshot()
	if address != "" {
		o.balances.Suspend(address)
		defer o.balances.Resume(address)
	}

	receipt, err := o.executor.Execute(ctx, source, dest, req, func(tx types.BridgeTransaction) {
		o.mu.Lock()
		snapshot := tx
		o.lastTx = &snapshot
		o.emitLocked()
		o.mu.Unlock()
	})

	o.mu.Lock()
	defer o.mu.Unlock()
	if err != nil {
		o.lastErr = err
		o.state = StateError
		o.log.Warn("payment failed", "requestId", req.RequestID, "err", err)
		o.emitLocked()
		return err
	}

	o.receipt = receipt
	o.state = StateSuccess
	o.log.Info("payment completed", "requestId", req.RequestID, "tx", receipt.TxHash)
	o.emitLocked()
	return nil
}

// resetLocked clears the attempt. Caller holds the lock.
func (o *Orchestrator) resetLocked() {
	o.active = false
	o.state = StateConfirm
	o.req = types.EscrowDepositRequest{}
	o.quote = nil
	o.receipt = nil
	o.onReceipt = nil
	o.lastErr = nil
	o.lastTx = nil
}

// emitLocked publishes the current state without blocking. Caller holds
// the lock.
func (o *Orchestrator) emitLocked() {
	ev := Event{State: o.state, Tx: o.lastTx, Err: o.lastErr}
	select {
	case o.events <- ev:
	default:
	}
}
