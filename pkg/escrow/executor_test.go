package escrow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"bridgepay/pkg/chain"
	"bridgepay/pkg/chainrpc"
	"bridgepay/pkg/types"
	"bridgepay/pkg/wallet"
)

const (
	testEscrowAddr = "0x8C4b52b8C2a6a0Fb3f94e04E7a1CB2fAe3b4Dd01"
	testStableAddr = "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"
	testPartyAddr  = "0xE4d365a5a8fC0DCEE9E3C5985D7FcBab8B4A0fE1"
)

func testRegistry() *chain.Registry {
	return chain.NewRegistry(
		chain.Chain{
			ID:             "base",
			EVMChainID:     8453,
			NativeDecimals: 18,
			StableDecimals: 6,
			EscrowAddress:  testEscrowAddr,
			StableAddress:  testStableAddr,
		},
		chain.Chain{
			ID:             "arbitrum",
			EVMChainID:     42161,
			NativeDecimals: 18,
			StableDecimals: 6,
			EscrowAddress:  testEscrowAddr,
			StableAddress:  testStableAddr,
		},
	)
}

// fakeSigner records calls and hands out sequential tx hashes.
type fakeSigner struct {
	mu      sync.Mutex
	calls   []wallet.CallSpec
	events  *eventLog
	sendErr error
	block   chan struct{}
}

func (f *fakeSigner) Connect(ctx context.Context) (string, error) { return testPartyAddr, nil }
func (f *fakeSigner) Address() string                             { return testPartyAddr }
func (f *fakeSigner) ActiveChain() string                         { return "base" }
func (f *fakeSigner) RequestChainSwitch(ctx context.Context, chainID string) (bool, error) {
	return true, nil
}

func (f *fakeSigner) SignAndSend(ctx context.Context, call wallet.CallSpec) (string, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return "", f.sendErr
	}
	f.calls = append(f.calls, call)
	hash := fmt.Sprintf("0xtx%d", len(f.calls))
	if f.events != nil {
		f.events.add("send " + call.To)
	}
	return hash, nil
}

func (f *fakeSigner) sentCalls() []wallet.CallSpec {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]wallet.CallSpec, len(f.calls))
	copy(out, f.calls)
	return out
}

// fakeTxReader resolves every transaction to a fixed state.
type fakeTxReader struct {
	state  chainrpc.TxState
	err    error
	events *eventLog
}

func (f *fakeTxReader) NativeBalance(ctx context.Context, chainID, address string) (string, error) {
	return "0", nil
}

func (f *fakeTxReader) StableBalance(ctx context.Context, chainID, address string) (string, error) {
	return "0", nil
}

func (f *fakeTxReader) TransactionStatus(ctx context.Context, chainID, txHash string) (chainrpc.TxState, error) {
	if f.events != nil {
		f.events.add("status " + txHash)
	}
	return f.state, f.err
}

type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(e string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.events))
	copy(out, l.events)
	return out
}

func stableRequest() types.EscrowDepositRequest {
	return types.EscrowDepositRequest{
		RequestID:           "req-1",
		CounterpartyAddress: testPartyAddr,
		Amount:              "50",
		Token:               types.TokenStable,
	}
}

func newTestExecutor(t *testing.T, signer wallet.Signer, reader chainrpc.Reader, opts ...Option) *Executor {
	t.Helper()
	opts = append(opts, WithPollInterval(time.Millisecond))
	e, err := New(testRegistry(), signer, reader, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

// Stable-coin payments submit approve and deposit in order, and the
// approval is confirmed before the deposit is sent.
func TestExecuteStable(t *testing.T) {
	events := &eventLog{}
	signer := &fakeSigner{events: events}
	reader := &fakeTxReader{state: chainrpc.TxConfirmed, events: events}
	e := newTestExecutor(t, signer, reader)

	receipt, err := e.Execute(context.Background(), "base", "arbitrum", stableRequest(), nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	calls := signer.sentCalls()
	if len(calls) != 2 {
		t.Fatalf("got %d calls, want approve then deposit", len(calls))
	}
	if calls[0].To != testStableAddr {
		t.Errorf("first call to %s, want the token contract", calls[0].To)
	}
	if calls[1].To != testEscrowAddr {
		t.Errorf("second call to %s, want the escrow contract", calls[1].To)
	}
	if calls[1].Value.Sign() != 0 {
		t.Errorf("stable deposit carries value %s, want 0", calls[1].Value)
	}

	want := []string{"send " + testStableAddr, "status 0xtx1", "send " + testEscrowAddr, "status 0xtx2"}
	got := events.all()
	if len(got) != len(want) {
		t.Fatalf("event sequence %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event sequence %v, want %v", got, want)
		}
	}

	if receipt.TxHash != "0xtx2" || receipt.Chain != "base" || receipt.Amount != "50" {
		t.Errorf("receipt = %+v", receipt)
	}
}

// Same-chain deposits run the identical sequence; trailing zeros in the
// display amount convert to the same exact base units.
func TestExecuteSameChainDeposit(t *testing.T) {
	signer := &fakeSigner{}
	reader := &fakeTxReader{state: chainrpc.TxConfirmed}
	e := newTestExecutor(t, signer, reader)

	req := stableRequest()
	req.Amount = "50.00"

	receipt, err := e.Execute(context.Background(), "base", "base", req, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	calls := signer.sentCalls()
	if len(calls) != 2 {
		t.Fatalf("got %d calls, want approve then deposit", len(calls))
	}
	if receipt.TxHash == "" {
		t.Error("receipt has no tx hash")
	}
	if receipt.Amount != "50.00" {
		t.Errorf("receipt amount = %s, want the amount as entered", receipt.Amount)
	}
}

// Native payments skip the approval entirely and attach the amount as
// transferred value.
func TestExecuteNative(t *testing.T) {
	signer := &fakeSigner{}
	reader := &fakeTxReader{state: chainrpc.TxConfirmed}
	e := newTestExecutor(t, signer, reader)

	req := types.EscrowDepositRequest{
		RequestID:           "req-2",
		CounterpartyAddress: testPartyAddr,
		Amount:              "0.25",
		Token:               types.TokenNative,
	}

	receipt, err := e.Execute(context.Background(), "base", "arbitrum", req, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	calls := signer.sentCalls()
	if len(calls) != 1 {
		t.Fatalf("got %d calls, want a single deposit", len(calls))
	}
	if calls[0].To != testEscrowAddr {
		t.Errorf("call to %s, want the escrow contract", calls[0].To)
	}
	if calls[0].Value.String() != "250000000000000000" {
		t.Errorf("deposit value = %s, want 0.25 in wei", calls[0].Value)
	}
	if receipt.Token != types.TokenNative {
		t.Errorf("receipt token = %s", receipt.Token)
	}
}

func TestValidateRequest(t *testing.T) {
	e := newTestExecutor(t, &fakeSigner{}, &fakeTxReader{state: chainrpc.TxConfirmed})

	tests := []struct {
		name   string
		chain  string
		mutate func(*types.EscrowDepositRequest)
	}{
		{name: "zero amount", chain: "base", mutate: func(r *types.EscrowDepositRequest) { r.Amount = "0" }},
		{name: "negative amount", chain: "base", mutate: func(r *types.EscrowDepositRequest) { r.Amount = "-5" }},
		{name: "too many decimals", chain: "base", mutate: func(r *types.EscrowDepositRequest) { r.Amount = "1.2345678" }},
		{name: "bad address", chain: "base", mutate: func(r *types.EscrowDepositRequest) { r.CounterpartyAddress = "not-an-address" }},
		{name: "empty request id", chain: "base", mutate: func(r *types.EscrowDepositRequest) { r.RequestID = "" }},
		{name: "oversized request id", chain: "base", mutate: func(r *types.EscrowDepositRequest) {
			r.RequestID = "this-request-id-is-much-longer-than-32-bytes"
		}},
		{name: "bad token", chain: "base", mutate: func(r *types.EscrowDepositRequest) { r.Token = "doge" }},
		{name: "unknown chain", chain: "dogechain", mutate: func(r *types.EscrowDepositRequest) {}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := stableRequest()
			tt.mutate(&req)

			err := e.ValidateRequest(tt.chain, req)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !types.IsCode(err, types.CodeInvalidInput) {
				t.Errorf("error code = %q, want %q", types.CodeOf(err), types.CodeInvalidInput)
			}
		})
	}

	if err := e.ValidateRequest("base", stableRequest()); err != nil {
		t.Errorf("valid request rejected: %v", err)
	}
}

// Invalid input never reaches the wallet.
func TestExecuteInvalidInputSkipsWallet(t *testing.T) {
	signer := &fakeSigner{}
	e := newTestExecutor(t, signer, &fakeTxReader{state: chainrpc.TxConfirmed})

	req := stableRequest()
	req.Amount = "0"

	_, err := e.Execute(context.Background(), "base", "arbitrum", req, nil)
	if !types.IsCode(err, types.CodeInvalidInput) {
		t.Fatalf("error code = %q, want %q", types.CodeOf(err), types.CodeInvalidInput)
	}
	if len(signer.sentCalls()) != 0 {
		t.Error("wallet was called for invalid input")
	}
}

func TestExecuteWalletRejected(t *testing.T) {
	signer := &fakeSigner{sendErr: fmt.Errorf("user declined: %w", wallet.ErrRejected)}
	e := newTestExecutor(t, signer, &fakeTxReader{state: chainrpc.TxConfirmed})

	_, err := e.Execute(context.Background(), "base", "arbitrum", stableRequest(), nil)
	if !types.IsCode(err, types.CodeWalletRejected) {
		t.Errorf("error code = %q, want %q", types.CodeOf(err), types.CodeWalletRejected)
	}
}

func TestExecuteRevertedDeposit(t *testing.T) {
	signer := &fakeSigner{}
	reader := &fakeTxReader{state: chainrpc.TxReverted}
	e := newTestExecutor(t, signer, reader)

	req := types.EscrowDepositRequest{
		RequestID:           "req-3",
		CounterpartyAddress: testPartyAddr,
		Amount:              "0.25",
		Token:               types.TokenNative,
	}

	_, err := e.Execute(context.Background(), "base", "arbitrum", req, nil)
	if !types.IsCode(err, types.CodeExecutionFailed) {
		t.Errorf("error code = %q, want %q", types.CodeOf(err), types.CodeExecutionFailed)
	}
	if err == nil || !errors.As(err, new(*types.Error)) {
		t.Fatalf("unexpected error: %v", err)
	}
}

// Confirmation polling is bounded: a transaction that never confirms fails
// the payment instead of polling forever.
func TestExecuteConfirmTimeout(t *testing.T) {
	signer := &fakeSigner{}
	reader := &fakeTxReader{state: chainrpc.TxPending}
	e := newTestExecutor(t, signer, reader, WithConfirmTimeout(time.Nanosecond))

	req := types.EscrowDepositRequest{
		RequestID:           "req-4",
		CounterpartyAddress: testPartyAddr,
		Amount:              "0.25",
		Token:               types.TokenNative,
	}

	_, err := e.Execute(context.Background(), "base", "arbitrum", req, nil)
	if !types.IsCode(err, types.CodeExecutionFailed) {
		t.Fatalf("error code = %q, want %q", types.CodeOf(err), types.CodeExecutionFailed)
	}
}

// At most one payment may be pending per request id.
func TestExecuteSingleFlight(t *testing.T) {
	block := make(chan struct{})
	signer := &fakeSigner{block: block}
	e := newTestExecutor(t, signer, &fakeTxReader{state: chainrpc.TxConfirmed})
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		e.Execute(ctx, "base", "arbitrum", stableRequest(), nil)
	}()

	// Wait for the first attempt to register as in flight.
	for !e.InFlight("req-1") {
		time.Sleep(time.Millisecond)
	}

	_, err := e.Execute(ctx, "base", "arbitrum", stableRequest(), nil)
	if !types.IsCode(err, types.CodeRequestInFlight) {
		t.Errorf("error code = %q, want %q", types.CodeOf(err), types.CodeRequestInFlight)
	}

	close(block)
	wg.Wait()

	if e.InFlight("req-1") {
		t.Error("request still marked in flight after completion")
	}
}

// Progress snapshots walk the stage sequence and never regress.
func TestExecuteProgress(t *testing.T) {
	signer := &fakeSigner{}
	reader := &fakeTxReader{state: chainrpc.TxConfirmed}
	e := newTestExecutor(t, signer, reader)

	var snapshots []types.BridgeTransaction
	_, err := e.Execute(context.Background(), "base", "arbitrum", stableRequest(), func(tx types.BridgeTransaction) {
		snapshots = append(snapshots, tx)
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if len(snapshots) < 3 {
		t.Fatalf("got %d progress snapshots, want several", len(snapshots))
	}
	if snapshots[0].Stage != StageValidating {
		t.Errorf("first stage = %s, want %s", snapshots[0].Stage, StageValidating)
	}

	last := snapshots[len(snapshots)-1]
	if last.Stage != StageCompleted || last.Status != types.StatusCompleted || last.ProgressPercent != 100 {
		t.Errorf("final snapshot = %+v", last)
	}

	for i := 1; i < len(snapshots); i++ {
		if snapshots[i].ProgressPercent < snapshots[i-1].ProgressPercent {
			t.Errorf("progress regressed at %d: %d -> %d", i, snapshots[i-1].ProgressPercent, snapshots[i].ProgressPercent)
		}
	}
}
