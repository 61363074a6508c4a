package escrow

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/go-playground/validator/v10"

	"bridgepay/pkg/chain"
	"bridgepay/pkg/chainrpc"
	"bridgepay/pkg/logger"
	"bridgepay/pkg/types"
	"bridgepay/pkg/wallet"
)

// Stage labels reported through the progress callback.
const (
	StageValidating = "validating"
	StageApproving  = "approving"
	StageDepositing = "depositing"
	StageConfirming = "confirming"
	StageCompleted  = "completed"
)

const (
	defaultPollInterval    = 2 * time.Second
	defaultMaxPollInterval = 15 * time.Second
	defaultConfirmTimeout  = 5 * time.Minute
)

// Executor drives the on-chain step sequence of an escrow payment:
// approve then deposit for stable-coin, a single depositNative for the
// native token. The deposit is never submitted before the approval is
// confirmed. No step is retried internally; a retry is a fresh Execute.
type Executor struct {
	registry *chain.Registry
	signer   wallet.Signer
	reader   chainrpc.Reader
	validate *validator.Validate
	log      logger.Logger

	pollInterval    time.Duration
	maxPollInterval time.Duration
	confirmTimeout  time.Duration

	erc20  abi.ABI
	escrow abi.ABI

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger attaches a logger.
func WithLogger(log logger.Logger) Option {
	return func(e *Executor) { e.log = log }
}

// WithConfirmTimeout bounds how long confirmation polling may run before
// the payment is failed.
func WithConfirmTimeout(d time.Duration) Option {
	return func(e *Executor) {
		if d > 0 {
			e.confirmTimeout = d
		}
	}
}

// WithPollInterval sets the initial confirmation poll interval.
func WithPollInterval(d time.Duration) Option {
	return func(e *Executor) {
		if d > 0 {
			e.pollInterval = d
		}
	}
}

// New builds an Executor.
func New(registry *chain.Registry, signer wallet.Signer, reader chainrpc.Reader, opts ...Option) (*Executor, error) {
	erc20, err := abi.JSON(strings.NewReader(erc20ApproveABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ERC20 ABI: %w", err)
	}
	escrowParsed, err := abi.JSON(strings.NewReader(escrowABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse escrow ABI: %w", err)
	}

	e := &Executor{
		registry:        registry,
		signer:          signer,
		reader:          reader,
		validate:        validator.New(),
		log:             logger.Noop{},
		pollInterval:    defaultPollInterval,
		maxPollInterval: defaultMaxPollInterval,
		confirmTimeout:  defaultConfirmTimeout,
		erc20:           erc20,
		escrow:          escrowParsed,
		inFlight:        make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// ValidateRequest checks everything that must hold before the signer is
// touched: struct shape, address validity, a positive exactly-representable
// amount, and a configured escrow contract on the source chain. Violations
// come back as InvalidInput, never as a transaction failure.
func (e *Executor) ValidateRequest(sourceChain string, req types.EscrowDepositRequest) error {
	if err := e.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			f := verrs[0]
			switch f.Field() {
			case "CounterpartyAddress":
				return types.NewInvalidInput("counterparty address %q is not a valid address", req.CounterpartyAddress)
			case "RequestID":
				return types.NewInvalidInput("request id is missing or longer than 32 bytes")
			case "Amount":
				return types.NewInvalidInput("amount is required")
			case "Token":
				return types.NewInvalidInput("token must be native or stable")
			}
		}
		return types.NewInvalidInput("invalid payment request")
	}

	meta, err := e.registry.MetadataFor(sourceChain)
	if err != nil {
		return types.NewInvalidInput("unsupported source chain %q", sourceChain)
	}
	if meta.EscrowAddress == "" || !common.IsHexAddress(meta.EscrowAddress) {
		return types.NewInvalidInput("no escrow contract configured for chain %s", sourceChain)
	}

	if _, err := chain.ToUnits(req.Amount, meta.TokenDecimals(req.Token)); err != nil {
		return types.NewInvalidInput("invalid amount %q: %v", req.Amount, err)
	}

	return nil
}

// InFlight reports whether a payment for the request id is pending.
func (e *Executor) InFlight(requestID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.inFlight[requestID]
	return ok
}

// Execute runs the full payment sequence on sourceChain and returns the
// receipt. progress, when non-nil, receives a snapshot after every stage
// change. Exactly one Execute may be pending per request id; a second
// attempt is rejected before any wallet interaction.
func (e *Executor) Execute(ctx context.Context, sourceChain, destChain string, req types.EscrowDepositRequest, progress func(types.BridgeTransaction)) (*types.PaymentReceipt, error) {
	if err := e.ValidateRequest(sourceChain, req); err != nil {
		return nil, err
	}

	e.mu.Lock()
	if _, pending := e.inFlight[req.RequestID]; pending {
		e.mu.Unlock()
		return nil, types.NewRequestInFlight(req.RequestID)
	}
	e.inFlight[req.RequestID] = struct{}{}
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		delete(e.inFlight, req.RequestID)
		e.mu.Unlock()
	}()

	meta, err := e.registry.MetadataFor(sourceChain)
	if err != nil {
		return nil, types.NewInvalidInput("unsupported source chain %q", sourceChain)
	}

	units, err := chain.ToUnits(req.Amount, meta.TokenDecimals(req.Token))
	if err != nil {
		return nil, types.NewInvalidInput("invalid amount %q: %v", req.Amount, err)
	}

	requestID32, err := encodeRequestID(req.RequestID)
	if err != nil {
		return nil, types.NewInvalidInput("request id: %v", err)
	}

	tx := types.BridgeTransaction{
		SourceChain:      sourceChain,
		DestinationChain: destChain,
		Token:            req.Token,
		Amount:           req.Amount,
		Status:           types.StatusPending,
		Stage:            StageValidating,
		ProgressPercent:  5,
	}
	report := func() {
		if progress != nil {
			progress(tx)
		}
	}
	report()

	counterparty := common.HexToAddress(req.CounterpartyAddress)

	// Step 1: stable-coin payments need the escrow contract approved to
	// pull the amount. The deposit depends on this allowance, so the
	// approval must be mined before the deposit is submitted.
	if req.Token == types.TokenStable {
		approveData, err := e.erc20.Pack("approve", common.HexToAddress(meta.EscrowAddress), units)
		if err != nil {
			return nil, types.NewExecutionFailed(StageApproving, err)
		}

		tx.Stage = StageApproving
		tx.ProgressPercent = 20
		report()

		approveHash, err := e.signer.SignAndSend(ctx, wallet.CallSpec{
			Chain: sourceChain,
			To:    meta.StableAddress,
			Value: big.NewInt(0),
			Data:  approveData,
		})
		if err != nil {
			tx.Status = types.StatusFailed
			report()
			return nil, e.signerError(StageApproving, err)
		}
		e.log.Info("approval submitted", "chain", sourceChain, "tx", approveHash)

		tx.ProgressPercent = 40
		report()

		if err := e.waitMined(ctx, sourceChain, approveHash); err != nil {
			tx.Status = types.StatusFailed
			report()
			return nil, err
		}
	}

	// Step 2: the deposit itself.
	var depositData []byte
	value := big.NewInt(0)
	if req.Token == types.TokenStable {
		depositData, err = e.escrow.Pack("deposit", requestID32, counterparty, units)
	} else {
		depositData, err = e.escrow.Pack("depositNative", requestID32, counterparty)
		value = units
	}
	if err != nil {
		return nil, types.NewExecutionFailed(StageDepositing, err)
	}

	tx.Stage = StageDepositing
	tx.ProgressPercent = 60
	report()

	depositHash, err := e.signer.SignAndSend(ctx, wallet.CallSpec{
		Chain: sourceChain,
		To:    meta.EscrowAddress,
		Value: value,
		Data:  depositData,
	})
	if err != nil {
		tx.Status = types.StatusFailed
		report()
		return nil, e.signerError(StageDepositing, err)
	}
	e.log.Info("deposit submitted", "chain", sourceChain, "tx", depositHash)

	tx.TxHash = depositHash
	tx.Stage = StageConfirming
	tx.ProgressPercent = 80
	report()

	if err := e.waitMined(ctx, sourceChain, depositHash); err != nil {
		tx.Status = types.StatusFailed
		report()
		return nil, err
	}

	tx.Status = types.StatusCompleted
	tx.Stage = StageCompleted
	tx.ProgressPercent = 100
	report()

	return &types.PaymentReceipt{
		TxHash: depositHash,
		Token:  req.Token,
		Amount: req.Amount,
		Chain:  sourceChain,
	}, nil
}

// waitMined polls the transaction until it confirms. Backoff is bounded
// and the overall wait has a terminal timeout: a payment never polls
// forever.
func (e *Executor) waitMined(ctx context.Context, chainID, txHash string) error {
	deadline := time.Now().Add(e.confirmTimeout)
	interval := e.pollInterval

	for {
		state, err := e.reader.TransactionStatus(ctx, chainID, txHash)
		if err != nil {
			return types.NewExecutionFailed(StageConfirming, err)
		}

		switch state {
		case chainrpc.TxConfirmed:
			return nil
		case chainrpc.TxReverted:
			return types.NewExecutionFailed(StageConfirming, fmt.Errorf("transaction %s reverted", txHash))
		}

		if time.Now().After(deadline) {
			return types.NewExecutionFailed(StageConfirming, fmt.Errorf("transaction %s not confirmed within %s", txHash, e.confirmTimeout))
		}

		select {
		case <-ctx.Done():
			return types.NewExecutionFailed(StageConfirming, ctx.Err())
		case <-time.After(interval):
		}

		interval = interval * 3 / 2
		if interval > e.maxPollInterval {
			interval = e.maxPollInterval
		}
	}
}

func (e *Executor) signerError(stage string, err error) error {
	if errors.Is(err, wallet.ErrRejected) {
		return types.NewWalletRejected(err)
	}
	return types.NewExecutionFailed(stage, err)
}

// encodeRequestID encodes the opaque request id as the fixed-width bytes32
// the contract stores.
func encodeRequestID(id string) ([32]byte, error) {
	var out [32]byte
	if id == "" {
		return out, fmt.Errorf("request id is empty")
	}
	if len(id) > 32 {
		return out, fmt.Errorf("request id longer than 32 bytes: %d", len(id))
	}
	copy(out[:], id)
	return out, nil
}
